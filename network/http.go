// Package network provides the resilient HTTP fetcher used by the provider
// extractors and the license resolver. It retries transient failures with a
// fixed backoff, supports IPv4-forced dialing for hosts with broken AAAA
// records, and exposes HEAD probes for URL-accessibility checks.
package network

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/modelatlas/pipeline/schemas"
	"github.com/valyala/fasthttp"
)

// DefaultUserAgent is a browser-like user agent; several documentation hosts
// serve reduced markup to unknown clients.
const DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// DefaultClientConfig holds default timeout values for the fetcher's client.
var DefaultClientConfig = struct {
	ReadTimeout         time.Duration
	WriteTimeout        time.Duration
	MaxIdleConnDuration time.Duration
	MaxConnsPerHost     int
}{
	ReadTimeout:         60 * time.Second,
	WriteTimeout:        60 * time.Second,
	MaxIdleConnDuration: 30 * time.Second,
	MaxConnsPerHost:     200,
}

const (
	// DefaultMaxAttempts is the total request budget including the first try.
	DefaultMaxAttempts = 3
	// DefaultRetryDelay is the fixed inter-attempt backoff.
	DefaultRetryDelay = 2 * time.Second
	// DefaultFetchTimeout bounds a single attempt.
	DefaultFetchTimeout = 30 * time.Second
	// DefaultHeadTimeout bounds an accessibility probe.
	DefaultHeadTimeout = 8 * time.Second
	// rateLimitBackoffBase seeds the exponential backoff applied on 429
	// when the caller opts in.
	rateLimitBackoffBase = 5 * time.Second
)

// FetcherConfig configures a Fetcher.
type FetcherConfig struct {
	// ForceIPv4 resolves hostnames to their first A record and dials the
	// literal address. TLS verification stays name-based: fasthttp derives
	// the SNI hostname from the request URL, not from the dialed address.
	ForceIPv4 bool
	UserAgent string
}

// Fetcher performs GET and HEAD requests with retry semantics.
type Fetcher struct {
	client    *fasthttp.Client
	userAgent string
	logger    schemas.Logger
}

// FetchOptions controls a single Fetch call.
type FetchOptions struct {
	URL         string
	Method      string // GET or HEAD; empty defaults to GET
	Timeout     time.Duration
	MaxAttempts int
	RetryDelay  time.Duration
	// Retry429 enables exponential backoff (base 5s) on 429 responses.
	Retry429 bool
	Headers  map[string]string
}

// FetchResult is the outcome of a successful (2xx) fetch.
type FetchResult struct {
	StatusCode int
	Body       []byte
}

// NewFetcher creates a Fetcher with a shared fasthttp client.
func NewFetcher(config FetcherConfig, logger schemas.Logger) *Fetcher {
	client := &fasthttp.Client{
		ReadTimeout:         DefaultClientConfig.ReadTimeout,
		WriteTimeout:        DefaultClientConfig.WriteTimeout,
		MaxIdleConnDuration: DefaultClientConfig.MaxIdleConnDuration,
		MaxConnsPerHost:     DefaultClientConfig.MaxConnsPerHost,
		TLSConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
	}
	if config.ForceIPv4 {
		client.Dial = dialFirstIPv4
	}
	userAgent := config.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return &Fetcher{
		client:    client,
		userAgent: userAgent,
		logger:    logger,
	}
}

// dialFirstIPv4 resolves the host to its first A record and dials the literal
// address, keeping the TLS handshake on the original hostname.
func dialFirstIPv4(addr string) (net.Conn, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("invalid dial address %q: %w", addr, err)
	}
	if ip := net.ParseIP(host); ip != nil {
		return fasthttp.DialTimeout(addr, 10*time.Second)
	}
	ips, err := net.LookupIP(host)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", host, err)
	}
	for _, ip := range ips {
		if v4 := ip.To4(); v4 != nil {
			return fasthttp.DialTimeout(net.JoinHostPort(v4.String(), port), 10*time.Second)
		}
	}
	return nil, fmt.Errorf("no A record for %s", host)
}

// Fetch performs the request described by opts, retrying timeouts, connection
// errors and 5xx responses with a fixed backoff. The first 2xx wins; a non-2xx
// non-5xx status is returned to the caller without retrying (unless it is a
// 429 and Retry429 is set).
func (f *Fetcher) Fetch(ctx context.Context, opts FetchOptions) (*FetchResult, error) {
	method := opts.Method
	if method == "" {
		method = fasthttp.MethodGet
	}
	if method != fasthttp.MethodGet && method != fasthttp.MethodHead {
		return nil, fmt.Errorf("unsupported method %q", method)
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	retryDelay := opts.RetryDelay
	if retryDelay <= 0 {
		retryDelay = DefaultRetryDelay
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			if err := sleepCtx(ctx, retryDelay); err != nil {
				return nil, err
			}
		}

		status, body, err := f.doOnce(ctx, method, opts.URL, timeout, opts.Headers)
		if err != nil {
			lastErr = err
			f.logger.Debug("fetch attempt %d/%d for %s failed: %v", attempt, maxAttempts, opts.URL, err)
			continue
		}
		switch {
		case status >= 200 && status < 300:
			return &FetchResult{StatusCode: status, Body: body}, nil
		case status >= 500:
			lastErr = fmt.Errorf("HTTP %d from %s", status, opts.URL)
			f.logger.Debug("fetch attempt %d/%d for %s: HTTP %d", attempt, maxAttempts, opts.URL, status)
		case status == fasthttp.StatusTooManyRequests && opts.Retry429:
			backoff := rateLimitBackoffBase * time.Duration(1<<(attempt-1))
			f.logger.Warn("rate limited by %s; backing off %s", opts.URL, backoff)
			if err := sleepCtx(ctx, backoff); err != nil {
				return nil, err
			}
			lastErr = fmt.Errorf("HTTP 429 from %s", opts.URL)
		default:
			return &FetchResult{StatusCode: status, Body: body}, fmt.Errorf("HTTP %d from %s", status, opts.URL)
		}
	}
	return nil, fmt.Errorf("all %d attempts failed for %s: %w", maxAttempts, opts.URL, lastErr)
}

// Head probes url with a HEAD request and reports whether it is accessible
// (2xx). A 4xx/5xx or transport failure yields false without raising; the
// status code is 0 when the request never completed.
func (f *Fetcher) Head(ctx context.Context, url string) (accessible bool, statusCode int) {
	status, _, err := f.doOnce(ctx, fasthttp.MethodHead, url, DefaultHeadTimeout, nil)
	if err != nil {
		return false, 0
	}
	return status >= 200 && status < 300, status
}

// doOnce performs a single attempt, observing ctx at the HTTP suspension
// point. On cancellation the in-flight goroutine keeps ownership of the
// pooled request and response and returns them once DoTimeout finishes;
// releasing them here would race the transport still writing into them.
func (f *Fetcher) doOnce(ctx context.Context, method, url string, timeout time.Duration, headers map[string]string) (int, []byte, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()

	req.SetRequestURI(url)
	req.Header.SetMethod(method)
	req.Header.SetUserAgent(f.userAgent)
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	done := make(chan error, 1)
	go func() {
		done <- f.client.DoTimeout(req, resp, timeout)
	}()

	select {
	case <-ctx.Done():
		go func() {
			<-done
			fasthttp.ReleaseRequest(req)
			fasthttp.ReleaseResponse(resp)
		}()
		return 0, nil, ctx.Err()
	case err := <-done:
		defer fasthttp.ReleaseRequest(req)
		defer fasthttp.ReleaseResponse(resp)
		if err != nil {
			return 0, nil, classifyTransportError(url, err)
		}
		body := make([]byte, len(resp.Body()))
		copy(body, resp.Body())
		return resp.StatusCode(), body, nil
	}
}

func classifyTransportError(url string, err error) error {
	switch {
	case err == fasthttp.ErrTimeout || strings.Contains(err.Error(), "timeout"):
		return fmt.Errorf("timeout fetching %s: %w", url, err)
	case err == io.EOF || strings.Contains(err.Error(), "connection"):
		return fmt.Errorf("connection error fetching %s: %w", url, err)
	default:
		return fmt.Errorf("failed to fetch %s: %w", url, err)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
