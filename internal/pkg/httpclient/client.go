package httpclient

import (
	"context"
	"crypto/tls"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

const defaultTimeout = 8 * time.Second

// Client wraps resty for calls to panels and payment gateways. Calls carry a
// short fixed timeout and are never retried; a timed-out call is a hard
// failure of the operation that triggered it.
type Client struct {
	r *resty.Client
}

// New returns a client with the default timeout applied.
func New() *Client {
	return &Client{r: resty.New().SetTimeout(defaultTimeout)}
}

// WithTimeout overrides the default timeout.
func (c *Client) WithTimeout(d time.Duration) *Client {
	c.r.SetTimeout(d)
	return c
}

// WithBearerToken attaches a bearer token to every request.
func (c *Client) WithBearerToken(token string) *Client {
	c.r.SetAuthToken(token)
	return c
}

// WithCookie attaches a session cookie to every request.
func (c *Client) WithCookie(name, value string) *Client {
	c.r.SetCookie(&http.Cookie{Name: name, Value: value})
	return c
}

// WithHeader attaches a fixed header to every request.
func (c *Client) WithHeader(key, value string) *Client {
	c.r.SetHeader(key, value)
	return c
}

// WithInsecureSkipVerify disables TLS verification. Most self-hosted panels
// run on self-signed certificates.
func (c *Client) WithInsecureSkipVerify() *Client {
	c.r.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	return c
}

// do executes a prepared request and hands the raw body back. Non-2xx
// responses are not treated as errors here; callers inspect the body, since
// panels report failures as 200s with an error payload as often as not.
func do(ctx context.Context, req *resty.Request, method, url string) ([]byte, error) {
	resp, err := req.SetContext(ctx).Execute(method, url)
	if err != nil {
		return nil, err
	}
	return resp.Body(), nil
}

// Get fetches a URL and returns the response body.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	return do(ctx, c.r.R(), http.MethodGet, url)
}

// Post sends a JSON body. A nil body sends an empty POST.
func (c *Client) Post(ctx context.Context, url string, body interface{}) ([]byte, error) {
	req := c.r.R().SetHeader("Content-Type", "application/json")
	if body != nil {
		req.SetBody(body)
	}
	return do(ctx, req, http.MethodPost, url)
}

// PostForm sends URL-encoded form data.
func (c *Client) PostForm(ctx context.Context, url string, data map[string]string) ([]byte, error) {
	return do(ctx, c.r.R().SetFormData(data), http.MethodPost, url)
}

// Put sends a JSON body via PUT.
func (c *Client) Put(ctx context.Context, url string, body interface{}) ([]byte, error) {
	req := c.r.R().SetHeader("Content-Type", "application/json").SetBody(body)
	return do(ctx, req, http.MethodPut, url)
}

// Delete issues a DELETE request.
func (c *Client) Delete(ctx context.Context, url string) ([]byte, error) {
	return do(ctx, c.r.R(), http.MethodDelete, url)
}

// Request exposes a raw resty request for callers that need streaming or
// custom verbs.
func (c *Client) Request() *resty.Request {
	return c.r.R()
}
