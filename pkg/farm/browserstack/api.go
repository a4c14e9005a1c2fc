package browserstack

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/entrhq/bunyip/pkg/farm"
)

// client talks to the BrowserStack REST API.
type client struct {
	baseURL string
	user    string
	pass    string
	http    *http.Client
}

// call performs one API request. GET and DELETE send params as a query
// string, POST sends them form-encoded. A body carrying "errors" is a
// failure even on a 2xx status.
func (c *client) call(ctx context.Context, op, method, path string, params url.Values) (gjson.Result, error) {
	endpoint := strings.TrimRight(c.baseURL, "/") + path

	var body io.Reader
	if method == http.MethodPost {
		body = strings.NewReader(params.Encode())
	} else if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return gjson.Result{}, &farm.VendorAPIError{Vendor: Name, Op: op, Err: err}
	}
	req.SetBasicAuth(c.user, c.pass)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return gjson.Result{}, &farm.VendorAPIError{Vendor: Name, Op: op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return gjson.Result{}, &farm.VendorAPIError{Vendor: Name, Op: op, Status: resp.StatusCode, Err: err}
	}

	result := gjson.ParseBytes(data)
	if result.IsObject() && result.Get("errors").Exists() {
		return gjson.Result{}, &farm.VendorAPIError{
			Vendor:  Name,
			Op:      op,
			Status:  resp.StatusCode,
			Message: errorMessage(result),
		}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := strings.TrimSpace(result.Get("message").String())
		if msg == "" {
			msg = strings.TrimSpace(string(data))
		}
		if msg == "" {
			msg = resp.Status
		}
		return gjson.Result{}, &farm.VendorAPIError{Vendor: Name, Op: op, Status: resp.StatusCode, Message: msg}
	}
	if len(data) > 0 && !gjson.ValidBytes(data) {
		return gjson.Result{}, &farm.VendorAPIError{
			Vendor:  Name,
			Op:      op,
			Status:  resp.StatusCode,
			Message: fmt.Sprintf("unexpected response: %.80s", data),
		}
	}
	return result, nil
}

func errorMessage(body gjson.Result) string {
	msg := body.Get("message").String()
	var details []string
	for _, e := range body.Get("errors").Array() {
		field, text := e.Get("field").String(), e.Get("code").String()
		if field == "" && text == "" {
			continue
		}
		details = append(details, strings.TrimSpace(field+" "+text))
	}
	if len(details) > 0 {
		msg = fmt.Sprintf("%s (%s)", msg, strings.Join(details, ", "))
	}
	return msg
}
