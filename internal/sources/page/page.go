// Package page fetches upstream HTML pages with the request identity and
// timeout policy shared by the listing and detail fetchers.
package page

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/brotli"

	"github.com/bakkerme/adhunter/internal/retry"
)

const (
	DefaultUserAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36"
	DefaultAcceptLanguage = "pl-PL,pl;q=0.9,en-US;q=0.8,en;q=0.7"
	defaultTimeout        = 15 * time.Second
	defaultMaxBodyBytes   = 5 << 20 // 5 MiB
)

// Options controls HTTP fetching behaviour.
type Options struct {
	Timeout        time.Duration
	UserAgent      string
	AcceptLanguage string
	MaxBodyBytes   int64
	// Attempts is the number of tries for transient failures (network errors,
	// 429 and 5xx responses). Values <= 1 disable retries.
	Attempts int
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d", e.URL, e.Code)
}

// Page is a fetched upstream document.
type Page struct {
	URL         *url.URL
	Body        []byte
	ContentType string
	StatusCode  int

	once   sync.Once
	doc    *goquery.Document
	docErr error
}

// Document parses the body as HTML. The result is cached.
func (p *Page) Document() (*goquery.Document, error) {
	p.once.Do(func() {
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(p.Body))
		if err != nil {
			p.docErr = fmt.Errorf("parse html: %w", err)
			return
		}
		doc.Url = p.URL
		p.doc = doc
	})
	return p.doc, p.docErr
}

// Client performs GET requests with a browser-like identity.
type Client struct {
	client         *http.Client
	userAgent      string
	acceptLanguage string
	maxBodyBytes   int64
	attempts       int
}

func NewClient(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaultMaxBodyBytes
	}
	if strings.TrimSpace(opts.UserAgent) == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if strings.TrimSpace(opts.AcceptLanguage) == "" {
		opts.AcceptLanguage = DefaultAcceptLanguage
	}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		MaxIdleConns:          20,
		IdleConnTimeout:       90 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &Client{
		client:         &http.Client{Timeout: opts.Timeout, Transport: transport},
		userAgent:      opts.UserAgent,
		acceptLanguage: opts.AcceptLanguage,
		maxBodyBytes:   opts.MaxBodyBytes,
		attempts:       opts.Attempts,
	}
}

// WithHTTPClient replaces the underlying client, keeping the request policy.
// Tests use it to inject fake transports.
func (c *Client) WithHTTPClient(client *http.Client) *Client {
	clone := *c
	clone.client = client
	return &clone
}

// Get fetches rawURL. Non-2xx responses are reported as *StatusError.
func (c *Client) Get(ctx context.Context, rawURL string) (*Page, error) {
	var page *Page
	err := retry.Do(ctx, retry.Config{Attempts: c.attempts, BaseDelay: 500 * time.Millisecond, MaxDelay: 5 * time.Second, Retryable: isTransient}, func() error {
		p, err := c.get(ctx, rawURL)
		if err != nil {
			return err
		}
		page = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return page, nil
}

func (c *Client) get(ctx context.Context, rawURL string) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", c.acceptLanguage)
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", rawURL, err)
	}
	body, err := c.readBody(resp)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", rawURL, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{URL: rawURL, Code: resp.StatusCode}
	}

	finalURL := req.URL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL
	}
	return &Page{
		URL:         finalURL,
		Body:        body,
		ContentType: resp.Header.Get("Content-Type"),
		StatusCode:  resp.StatusCode,
	}, nil
}

func (c *Client) readBody(resp *http.Response) ([]byte, error) {
	if resp == nil || resp.Body == nil {
		return nil, errors.New("empty response body")
	}

	reader := io.Reader(resp.Body)
	closers := []io.Closer{resp.Body}

	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			_ = resp.Body.Close()
			return nil, fmt.Errorf("gzip decode: %w", err)
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

	body, err := io.ReadAll(io.LimitReader(reader, c.maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > c.maxBodyBytes {
		return nil, fmt.Errorf("response body exceeds limit of %d bytes", c.maxBodyBytes)
	}
	return body, nil
}

func isTransient(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Code == http.StatusTooManyRequests || statusErr.Code >= http.StatusInternalServerError
	}
	return !errors.Is(err, context.Canceled)
}
