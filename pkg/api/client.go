package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	defaultTimeout   = 60 * time.Second
	defaultUserAgent = "dltctl"
)

// ClientOption configures the client.
type ClientOption func(*Client)

func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func WithUserAgent(ua string) ClientOption {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithTracing wraps the transport so every request gets a client span.
func WithTracing() ClientOption {
	return func(c *Client) {
		base := c.httpClient.Transport
		if base == nil {
			base = http.DefaultTransport
		}
		hc := *c.httpClient
		hc.Transport = otelhttp.NewTransport(base)
		c.httpClient = &hc
	}
}

// Client talks to the workspace REST API with a bearer token.
type Client struct {
	host       string
	token      string
	userAgent  string
	httpClient *http.Client
}

func NewClient(host, token string, opts ...ClientOption) (*Client, error) {
	host = strings.TrimSpace(host)
	if host == "" {
		return nil, errors.New("workspace host is required")
	}
	if !strings.Contains(host, "://") {
		host = "https://" + host
	}
	if _, err := url.Parse(host); err != nil {
		return nil, errors.Wrap(err, "parse workspace host")
	}
	c := &Client{
		host:       strings.TrimSuffix(host, "/"),
		token:      token,
		userAgent:  defaultUserAgent,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) Host() string { return c.host }

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	return c.do(ctx, http.MethodGet, path, query, nil, out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, nil, body, out)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := c.host + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return errors.Wrapf(err, "marshal %s %s", method, path)
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, rdr)
	if err != nil {
		return errors.Wrapf(err, "build %s %s", method, path)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, path)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrapf(err, "read %s %s response", method, path)
	}
	log.Debug().Str("method", method).Str("path", path).Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).Msg("api call")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return parseError(method, path, resp.StatusCode, respBody)
	}
	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return errors.Wrapf(err, "decode %s %s response", method, path)
	}
	return nil
}
