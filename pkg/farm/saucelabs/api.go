package saucelabs

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/entrhq/bunyip/pkg/farm"
)

type client struct {
	baseURL string
	user    string
	key     string
	http    *http.Client
}

// get fetches path and parses the JSON body. An object carrying "error"
// is a failure regardless of the status code.
func (c *client) get(ctx context.Context, op, path string) (gjson.Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(c.baseURL, "/")+path, nil)
	if err != nil {
		return gjson.Result{}, &farm.VendorAPIError{Vendor: Name, Op: op, Err: err}
	}
	req.SetBasicAuth(c.user, c.key)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return gjson.Result{}, &farm.VendorAPIError{Vendor: Name, Op: op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return gjson.Result{}, &farm.VendorAPIError{Vendor: Name, Op: op, Status: resp.StatusCode, Err: err}
	}

	body := gjson.ParseBytes(data)
	if body.IsObject() && body.Get("error").Exists() {
		return gjson.Result{}, &farm.VendorAPIError{
			Vendor:  Name,
			Op:      op,
			Status:  resp.StatusCode,
			Message: body.Get("error").String(),
		}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := strings.TrimSpace(string(data))
		if msg == "" {
			msg = resp.Status
		}
		return gjson.Result{}, &farm.VendorAPIError{Vendor: Name, Op: op, Status: resp.StatusCode, Message: msg}
	}
	return body, nil
}
