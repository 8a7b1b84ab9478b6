package hostenv

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	apiwasm "github.com/woxQAQ/wbg-host/api/wasm"
	"github.com/woxQAQ/wbg-host/pkg/protocol"
)

// defaultMaxBodyBytes caps how much of a response body is buffered.
const defaultMaxBodyBytes = 64 << 20

// BodyTooLargeError reports a response body over the configured cap.
type BodyTooLargeError struct {
	URL   string
	Limit int64
}

func (e *BodyTooLargeError) Error() string {
	return fmt.Sprintf("response body of '%s' exceeds %d bytes", e.URL, e.Limit)
}

// Request is a GET request for an absolute URL.
type Request struct {
	url    string
	method string
}

// URL returns the absolute request URL.
func (r *Request) URL() string { return r.url }

// Method returns the request method.
func (r *Request) Method() string { return r.method }

// Response is a completed fetch with its body buffered.
type Response struct {
	env    *Env
	url    string
	status int
	body   []byte
}

// Status returns the HTTP status code.
func (r *Response) Status() int { return r.status }

// OK reports whether the status is in the 2xx range.
func (r *Response) OK() bool { return r.status >= 200 && r.status < 300 }

// URL returns the final response URL.
func (r *Response) URL() string { return r.url }

// Text returns a promise for the body decoded as UTF-8.
func (r *Response) Text() (apiwasm.Promise, error) {
	p := r.env.newPromise()
	p.Resolve(strings.ToValidUTF8(string(r.body), "\uFFFD"))
	return p, nil
}

// Get exposes response fields to generic property access.
func (r *Response) Get(key string) any {
	switch key {
	case "status":
		return float64(r.status)
	case "ok":
		return r.OK()
	case "url":
		return r.url
	}
	return protocol.Undefined{}
}

func (e *Env) newRequest(raw string) (*Request, error) {
	target, err := e.resolveURL(raw)
	if err != nil {
		return nil, err
	}
	return &Request{url: target, method: http.MethodGet}, nil
}

// fetch performs input on a background goroutine. Network failures reject the
// promise with a TypeError; HTTP error statuses still resolve it.
func (e *Env) fetch(input any) apiwasm.Promise {
	p := e.newPromise()

	req, err := e.requestFor(input)
	if err != nil {
		p.Reject(err)
		return p
	}

	e.loop.Async(func() Task {
		resp, err := e.do(req)
		if err != nil {
			e.logger.Warn("Fetch failed", zap.String("url", req.url), zap.Error(err))
			return func(ctx context.Context) error {
				p.Reject(&protocol.ErrorValue{Name: "TypeError", Message: "Failed to fetch", Cause: err})
				return nil
			}
		}
		return func(ctx context.Context) error {
			p.Resolve(resp)
			return nil
		}
	})

	return p
}

func (e *Env) requestFor(input any) (*Request, error) {
	switch v := input.(type) {
	case *Request:
		return v, nil
	case apiwasm.Request:
		return &Request{url: v.URL(), method: v.Method()}, nil
	case apiwasm.URL:
		return &Request{url: v.Href(), method: http.MethodGet}, nil
	case string:
		return e.newRequest(v)
	}
	return nil, protocol.NewTypeError("failed to execute 'fetch': invalid input")
}

func (e *Env) do(r *Request) (*Response, error) {
	ctx, cancel := context.WithTimeout(context.Background(), e.cfg.FetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, r.method, r.url, nil)
	if err != nil {
		return nil, err
	}
	if e.cfg.Origin != "" {
		req.Header.Set("Origin", e.cfg.Origin)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, e.cfg.MaxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if int64(len(body)) > e.cfg.MaxBodyBytes {
		return nil, &BodyTooLargeError{URL: r.url, Limit: e.cfg.MaxBodyBytes}
	}

	e.logger.Debug("Fetch completed",
		zap.String("url", r.url),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(body)),
	)

	return &Response{env: e, url: resp.Request.URL.String(), status: resp.StatusCode, body: body}, nil
}

// download fetches target and fails on non-2xx statuses.
func (e *Env) download(target string) ([]byte, error) {
	resp, err := e.do(&Request{url: target, method: http.MethodGet})
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, fmt.Errorf("GET %s: status %d", target, resp.status)
	}
	return resp.body, nil
}

// resolveURL resolves raw against the configured base URL.
func (e *Env) resolveURL(raw string) (string, error) {
	ref, err := url.Parse(raw)
	if err != nil {
		return "", protocol.NewTypeError("invalid URL '%s'", raw)
	}
	if ref.IsAbs() {
		return ref.String(), nil
	}
	if e.base == nil {
		return "", protocol.NewTypeError("relative URL '%s' without a base URL", raw)
	}
	return e.base.ResolveReference(ref).String(), nil
}
