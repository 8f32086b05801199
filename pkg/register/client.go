// Package register implements a client for the UK Financial Services
// Register API (https://register.fca.org.uk/Developer/s/).
package register

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

// DefaultBaseURL is the production register API root.
const DefaultBaseURL = "https://register.fca.org.uk/services/V0.1"

// Config carries the explicit settings a Client needs. Credentials always
// travel here, never in process-global state.
type Config struct {
	// BaseURL overrides DefaultBaseURL (proxies, testing).
	BaseURL string
	// AuthEmail is the email address registered with the API developer portal.
	AuthEmail string
	// AuthKey is the API key issued for AuthEmail.
	AuthKey string
	// CAPath optionally points at a PEM bundle to trust for TLS.
	CAPath string
	// Timeout bounds each request. Defaults to 30s.
	Timeout time.Duration
}

// Client issues authenticated requests against the register API.
type Client struct {
	baseURL   *url.URL
	authEmail string
	authKey   string
	http      *http.Client
}

// New constructs a Client. AuthEmail and AuthKey are required.
func New(cfg Config) (*Client, error) {
	email := strings.TrimSpace(cfg.AuthEmail)
	if email == "" {
		return nil, fmt.Errorf("auth email is required")
	}
	key := strings.TrimSpace(cfg.AuthKey)
	if key == "" {
		return nil, fmt.Errorf("auth key is required")
	}

	raw := strings.TrimSpace(cfg.BaseURL)
	if raw == "" {
		raw = DefaultBaseURL
	}
	base, err := parseBaseURL(raw)
	if err != nil {
		return nil, err
	}

	hc, err := newHTTPClient(cfg.CAPath, cfg.Timeout)
	if err != nil {
		return nil, err
	}

	return &Client{
		baseURL:   base,
		authEmail: email,
		authKey:   key,
		http:      hc,
	}, nil
}

func parseBaseURL(raw string) (*url.URL, error) {
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base URL must include a host (got %q)", raw)
	}
	// Ensure the base path ends with a slash so ResolveReference treats it as a directory.
	u.Path = strings.TrimRight(u.Path, "/") + "/"
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}

func newHTTPClient(caPath string, timeout time.Duration) (*http.Client, error) {
	tr := http.DefaultTransport.(*http.Transport).Clone()
	if strings.TrimSpace(caPath) != "" {
		b, err := os.ReadFile(strings.TrimSpace(caPath))
		if err != nil {
			return nil, fmt.Errorf("read CA bundle file: %w", err)
		}
		pool := x509.NewCertPool()
		if ok := pool.AppendCertsFromPEM(b); !ok {
			return nil, fmt.Errorf("parse CA bundle PEM: no certs found")
		}
		tr.TLSClientConfig = &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12}
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &http.Client{
		Transport: tr,
		Timeout:   timeout,
	}, nil
}

// endpoint joins a relative API path onto the base URL.
func (c *Client) endpoint(relPath string) *url.URL {
	relPath = strings.TrimPrefix(relPath, "/")
	return c.baseURL.ResolveReference(&url.URL{Path: relPath})
}

// get issues one authenticated GET and decodes the response envelope.
func (c *Client) get(ctx context.Context, op string, u *url.URL) (*Envelope, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Auth-Email", c.authEmail)
	req.Header.Set("X-Auth-Key", c.authKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode/100 != 2 {
		return nil, newHTTPError(op, resp, b)
	}

	var env Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, fmt.Errorf("parse %s response: %w", op, err)
	}
	return &env, nil
}

// Search performs the register's case-insensitive substring search within one
// category. Zero matches are a valid response: Results is empty and the
// envelope Status reports "no search result found".
func (c *Client) Search(ctx context.Context, query string, cat Category) (*SearchResponse, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("search query is required")
	}
	if !cat.valid() {
		return nil, fmt.Errorf("unknown category %q (want firm, individual, or fund)", string(cat))
	}

	u := c.endpoint("Search")
	q := url.Values{}
	q.Set("q", query)
	q.Set("type", string(cat))
	u.RawQuery = q.Encode()

	env, err := c.get(ctx, "search", u)
	if err != nil {
		return nil, err
	}

	out := &SearchResponse{Envelope: *env}
	if env.HasData() {
		if err := json.Unmarshal(env.Data, &out.Results); err != nil {
			return nil, fmt.Errorf("parse search results: %w", err)
		}
	}
	return out, nil
}

// RegulatedMarkets returns details of all current regulated markets, as
// defined in UK and EU/EEA financial services legislation.
func (c *Client) RegulatedMarkets(ctx context.Context) (*Envelope, error) {
	u := c.endpoint("CommonSearch")
	q := url.Values{}
	q.Set("q", "RM")
	u.RawQuery = q.Encode()
	return c.get(ctx, "regulatedMarkets", u)
}
