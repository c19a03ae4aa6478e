// Package http is a small fluent client for outbound JSON/form APIs.
//
//	c := http.NewClient("https://api.stripe.com", 10*time.Second)
//	resp, err := c.Post("/v1/payment_intents").
//	    Bearer(secretKey).
//	    Form(url.Values{"amount": {"1500"}}).
//	    Retry(3, 200*time.Millisecond).
//	    Send(ctx)
//
// Retries apply to transport errors, 429 and 5xx answers only, back off
// exponentially and stop as soon as ctx is done.
package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	gohttp "net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shashiranjanraj/storefront/pkg/logger"
)

// maxBody caps how much of a response is buffered.
const maxBody = 4 << 20

// Client sends requests relative to a base URL.
type Client struct {
	base string
	http *gohttp.Client
}

// NewClient builds a Client with a pooled transport. timeout bounds each
// attempt; zero leaves attempts bounded by the caller's context only.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: &gohttp.Client{
			Timeout: timeout,
			Transport: &gohttp.Transport{
				Proxy:               gohttp.ProxyFromEnvironment,
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

func (c *Client) Get(path string) *Request  { return c.newRequest(gohttp.MethodGet, path) }
func (c *Client) Post(path string) *Request { return c.newRequest(gohttp.MethodPost, path) }

func (c *Client) newRequest(method, path string) *Request {
	return &Request{
		client:    c,
		method:    method,
		url:       c.base + "/" + strings.TrimLeft(path, "/"),
		headers:   gohttp.Header{"Accept": {"application/json"}},
		retries:   1,
		retryWait: 200 * time.Millisecond,
	}
}

// Request is a fluent request builder. It is not safe for concurrent use.
type Request struct {
	client    *Client
	method    string
	url       string
	headers   gohttp.Header
	body      []byte
	bodyType  string
	retries   int
	retryWait time.Duration
}

func (r *Request) Header(key, value string) *Request {
	r.headers.Set(key, value)
	return r
}

func (r *Request) Bearer(token string) *Request {
	return r.Header("Authorization", "Bearer "+token)
}

// Form sends values as application/x-www-form-urlencoded.
func (r *Request) Form(values url.Values) *Request {
	r.body, r.bodyType = []byte(values.Encode()), "application/x-www-form-urlencoded"
	return r
}

// Retry sets the total attempt count and the initial backoff.
func (r *Request) Retry(attempts int, wait time.Duration) *Request {
	if attempts < 1 {
		attempts = 1
	}
	r.retries, r.retryWait = attempts, wait
	return r
}

// Send executes the request. A non-2xx answer is returned as a Response,
// not an error, once retries are exhausted.
func (r *Request) Send(ctx context.Context) (*Response, error) {
	var (
		resp *Response
		err  error
	)
	for attempt := 1; attempt <= r.retries; attempt++ {
		resp, err = r.do(ctx)
		if !retryable(resp, err) || attempt == r.retries {
			break
		}

		backoff := r.retryWait << (attempt - 1)
		logger.WithCtx(ctx).Warn("http: retrying",
			"method", r.method, "url", r.url, "attempt", attempt, "backoff", backoff.String(), "error", err)

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("http: %s %s: %w", r.method, r.url, ctx.Err())
		case <-timer.C:
		}
	}
	if err != nil {
		return nil, fmt.Errorf("http: %s %s: %w", r.method, r.url, err)
	}
	return resp, nil
}

func retryable(resp *Response, err error) bool {
	if err != nil {
		return true
	}
	return resp.StatusCode == gohttp.StatusTooManyRequests || resp.StatusCode >= 500
}

func (r *Request) do(ctx context.Context) (*Response, error) {
	var body io.Reader
	if r.body != nil {
		body = bytes.NewReader(r.body)
	}

	req, err := gohttp.NewRequestWithContext(ctx, r.method, r.url, body)
	if err != nil {
		return nil, err
	}
	req.Header = r.headers.Clone()
	if r.bodyType != "" {
		req.Header.Set("Content-Type", r.bodyType)
	}

	resp, err := r.client.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return &Response{StatusCode: resp.StatusCode, Headers: resp.Header, Raw: raw}, nil
}

// Response is a fully buffered answer.
type Response struct {
	StatusCode int
	Headers    gohttp.Header
	Raw        []byte
}

// OK reports whether the status code is 2xx.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

func (r *Response) Decode(dest interface{}) error {
	if err := json.Unmarshal(r.Raw, dest); err != nil {
		return fmt.Errorf("http: decode JSON: %w", err)
	}
	return nil
}
