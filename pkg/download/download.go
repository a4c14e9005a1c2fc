// Package download retrieves remote artifacts, such as farm tunnel
// binaries, into a local directory.
package download

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// ProgressFunc is called as bytes arrive. total is -1 when the server
// does not announce a length.
type ProgressFunc func(loaded, total int64)

// Options configures a Fetch.
type Options struct {
	// Dir is the destination directory. It must exist.
	Dir string

	// FileName overrides the name derived from the response or URL.
	FileName string

	// Client is the HTTP client to use (default: http.DefaultClient).
	Client *http.Client

	// Progress receives byte counts while the body is copied.
	Progress ProgressFunc
}

// File describes a fetched artifact.
type File struct {
	Name string
	Path string // directory holding the file
	Size int64
	Type string
}

// FullPath returns the location of the file on disk.
func (f *File) FullPath() string {
	return filepath.Join(f.Path, f.Name)
}

// UnsupportedTransportError reports a URI scheme Fetch cannot handle.
type UnsupportedTransportError struct {
	Scheme string
}

func (e *UnsupportedTransportError) Error() string {
	return fmt.Sprintf("protocol %q is not supported", e.Scheme)
}

// Fetch downloads uri into opts.Dir and returns what was written.
func Fetch(ctx context.Context, uri string, opts Options) (*File, error) {
	if opts.Dir == "" {
		return nil, fmt.Errorf("destination directory is required")
	}
	if info, err := os.Stat(opts.Dir); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("directory %q doesn't exist", opts.Dir)
	}

	parsed, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("invalid uri %q: %w", uri, err)
	}
	scheme := strings.ToLower(parsed.Scheme)
	if scheme == "" {
		scheme = "http"
		parsed.Scheme = scheme
	}
	if scheme != "http" && scheme != "https" {
		return nil, &UnsupportedTransportError{Scheme: scheme}
	}

	client := opts.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", uri, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("failed to fetch %s: server returned %s", uri, resp.Status)
	}

	name := opts.FileName
	if name == "" {
		name = fileName(parsed, resp.Header.Get("Content-Disposition"))
	}
	if name == "" {
		return nil, fmt.Errorf("cannot derive a file name from %s", uri)
	}

	dest := filepath.Join(opts.Dir, name)
	out, err := os.Create(dest)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", dest, err)
	}

	counter := &progressWriter{total: resp.ContentLength, progress: opts.Progress}
	written, copyErr := io.Copy(out, io.TeeReader(resp.Body, counter))
	closeErr := out.Close()
	if copyErr != nil {
		os.Remove(dest)
		return nil, fmt.Errorf("failed to download %s: %w", uri, copyErr)
	}
	if closeErr != nil {
		return nil, fmt.Errorf("failed to write %s: %w", dest, closeErr)
	}

	return &File{
		Name: name,
		Path: opts.Dir,
		Size: written,
		Type: resp.Header.Get("Content-Type"),
	}, nil
}

// fileName prefers the Content-Disposition filename over the last path
// segment of the URL.
func fileName(u *url.URL, disposition string) string {
	if disposition != "" {
		if _, params, err := mime.ParseMediaType(disposition); err == nil {
			if name := filepath.Base(params["filename"]); name != "." && name != "/" && name != "" {
				return name
			}
		}
	}
	name := path.Base(u.Path)
	if name == "." || name == "/" {
		return ""
	}
	return name
}

type progressWriter struct {
	loaded   int64
	total    int64
	progress ProgressFunc
}

func (w *progressWriter) Write(p []byte) (int, error) {
	w.loaded += int64(len(p))
	if w.progress != nil {
		w.progress(w.loaded, w.total)
	}
	return len(p), nil
}
