// Package fetcher issues the outbound HTTP request for a scrape and
// wraps it in the bounded retry loop with error-class-specific backoff.
package fetcher

import (
	"compress/flate"
	"compress/gzip"
	"context"
	"errors"
	"io"
	"mime"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/publicsuffix"

	"pagevault/internal/profile"
)

// maxRedirects caps redirect following to prevent loops.
const maxRedirects = 10

// RawResult is the raw outcome of one completed HTTP exchange. Any
// status code can appear here, including 4xx and 5xx; interpreting the
// status is the caller's job.
type RawResult struct {
	StatusCode    int
	FinalURL      string
	RedirectChain []string
	Headers       http.Header
	Body          []byte
	Elapsed       time.Duration
	Encoding      string
}

// WasRedirected reports whether the exchange followed at least one redirect.
func (r *RawResult) WasRedirected() bool {
	return len(r.RedirectChain) > 0
}

// Client performs single GET fetches with a randomized browser profile.
// One Client is created per invocation and reused across retry attempts,
// so cookies set on an early attempt (or a redirect hop) carry into
// later ones, like a real browser session would.
type Client struct {
	http         *http.Client
	maxBodyBytes int64
	log          logrus.FieldLogger
}

// NewClient builds a fetch session with a cookie jar and a bounded
// per-attempt timeout.
func NewClient(timeout time.Duration, maxBodyBytes int64, logger logrus.FieldLogger) *Client {
	jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})

	transport := &http.Transport{
		DialContext:           (&net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		MaxIdleConns:          10,
		IdleConnTimeout:       30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		// The profile supplies Accept-Encoding; decoding happens in readBody.
		DisableCompression: true,
	}

	return &Client{
		http: &http.Client{
			Timeout:   timeout,
			Transport: transport,
			Jar:       jar,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return errTooManyRedirects
				}
				return nil
			},
		},
		maxBodyBytes: maxBodyBytes,
		log:          logger.WithField("component", "fetcher"),
	}
}

// Fetch performs one GET with the given profile. Transport failures are
// returned as *NetError; completed exchanges always return a RawResult,
// whatever the status code.
func (c *Client) Fetch(ctx context.Context, rawURL string, p profile.Profile) (*RawResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &NetError{Kind: KindOther, URL: rawURL, Err: err}
	}

	req.Header.Set("User-Agent", p.UserAgent)
	for _, h := range p.Headers {
		req.Header.Set(h.Name, h.Value)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		kind := classify(err)
		c.log.WithError(err).WithFields(logrus.Fields{
			"url":  rawURL,
			"kind": kind,
		}).Warn("Fetch attempt failed")
		return nil, &NetError{Kind: kind, URL: rawURL, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := c.readBody(resp)
	if err != nil {
		return nil, &NetError{Kind: KindOther, URL: rawURL, Err: err}
	}

	finalURL := rawURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	result := &RawResult{
		StatusCode:    resp.StatusCode,
		FinalURL:      finalURL,
		RedirectChain: redirectChain(resp),
		Headers:       resp.Header.Clone(),
		Body:          body,
		Elapsed:       time.Since(start),
		Encoding:      charsetOf(resp.Header.Get("Content-Type")),
	}

	c.log.WithFields(logrus.Fields{
		"url":        rawURL,
		"final_url":  finalURL,
		"status":     resp.StatusCode,
		"elapsed_ms": result.Elapsed.Milliseconds(),
		"redirects":  len(result.RedirectChain),
	}).Debug("Fetch attempt completed")

	return result, nil
}

// redirectChain reconstructs the ordered hop URLs by walking the
// response chain net/http keeps on redirected requests. The final URL
// is not part of the chain.
func redirectChain(resp *http.Response) []string {
	var chain []string
	for prev := resp.Request.Response; prev != nil; prev = prev.Request.Response {
		chain = append([]string{prev.Request.URL.String()}, chain...)
	}
	return chain
}

// readBody decodes the body according to Content-Encoding and caps it
// at maxBodyBytes. Oversized bodies are truncated, not failed: a huge
// page is still analyzable from its prefix.
func (c *Client) readBody(resp *http.Response) ([]byte, error) {
	reader := io.Reader(resp.Body)
	var closers []io.Closer

	encoding := strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding")))
	switch encoding {
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, err
		}
		reader = gz
		closers = append(closers, gz)
	case "br":
		reader = brotli.NewReader(resp.Body)
	case "deflate":
		fl := flate.NewReader(resp.Body)
		reader = fl
		closers = append(closers, fl)
	}

	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i].Close()
		}
	}()

	body, err := io.ReadAll(io.LimitReader(reader, c.maxBodyBytes))
	if err != nil {
		return nil, err
	}
	return body, nil
}

// charsetOf extracts the charset parameter of a Content-Type header.
func charsetOf(contentType string) string {
	if contentType == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	return params["charset"]
}

// ValidateURL checks that a string parses as an absolute http/https URL.
// Used by the router before any network activity.
func ValidateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return &url.Error{Op: "parse", URL: raw, Err: errNotAbsoluteHTTP}
	}
	return nil
}

var errNotAbsoluteHTTP = errors.New("URL must be absolute with http or https scheme")
