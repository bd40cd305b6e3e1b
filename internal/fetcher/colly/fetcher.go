// Package collyfetcher implements crawler.Fetcher using gocolly.
package collyfetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/gocolly/colly/v2/extensions"

	"github.com/JakeFAU/tuoitre-crawler/internal/crawler"
	"github.com/JakeFAU/tuoitre-crawler/internal/metrics"
)

const defaultTimeout = 15 * time.Second

// Config controls collector behavior.
type Config struct {
	UserAgent       string
	RandomUserAgent bool
	// Headers are sent with every request; per-request headers win.
	Headers     http.Header
	Timeout     time.Duration
	// MaxBodySize caps a response body in bytes; 0 means unlimited. Colly
	// truncates silently at the cap, so a body that reaches it is an error.
	MaxBodySize int
}

// Fetcher implements crawler.Fetcher using Colly collectors. Colly keeps the
// request timeout on the shared backend client, so one base collector is kept
// per distinct timeout and every request runs on a fresh clone of it.
type Fetcher struct {
	cfg       Config
	transport http.RoundTripper

	mu         sync.Mutex
	collectors map[time.Duration]*colly.Collector
}

type collectorHooks interface {
	OnRequest(colly.RequestCallback)
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// New builds a Fetcher.
func New(cfg Config) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Fetcher{
		cfg:        cfg,
		transport:  newHTTPTransport(),
		collectors: make(map[time.Duration]*colly.Collector),
	}
}

// Fetch executes a single request. Any completed HTTP exchange is returned
// without error regardless of status; errors are transport failures only.
func (f *Fetcher) Fetch(ctx context.Context, request crawler.FetchRequest) (crawler.FetchResponse, error) {
	var (
		result   crawler.FetchResponse
		fetchErr error
	)
	target, err := requestURL(request)
	if err != nil {
		return crawler.FetchResponse{}, err
	}
	start := time.Now()
	collector := f.buildCollector(request.Timeout)
	f.configureCollectorHooks(collector, start, &result, &fetchErr)

	if err := f.runCollector(ctx, collector, request.Method, target, f.mergeHeaders(request.Headers), &fetchErr); err != nil {
		metrics.ObserveFetch(target, 0, 0)
		return crawler.FetchResponse{}, err
	}
	if result.StatusCode == 0 {
		metrics.ObserveFetch(target, 0, 0)
		return crawler.FetchResponse{}, errors.New("colly fetch produced no response")
	}
	if f.cfg.MaxBodySize > 0 && len(result.Body) >= f.cfg.MaxBodySize {
		metrics.ObserveFetch(target, result.StatusCode, len(result.Body))
		return crawler.FetchResponse{}, fmt.Errorf("%w: %s reached %d bytes", crawler.ErrBodyTooLarge, target, f.cfg.MaxBodySize)
	}
	metrics.ObserveFetch(target, result.StatusCode, len(result.Body))
	return result, nil
}

func (f *Fetcher) buildCollector(timeout time.Duration) *colly.Collector {
	collector := f.baseCollector(timeout).Clone()
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	if f.cfg.RandomUserAgent {
		extensions.RandomUserAgent(collector)
	}
	return collector
}

func (f *Fetcher) baseCollector(timeout time.Duration) *colly.Collector {
	if timeout <= 0 {
		timeout = f.cfg.Timeout
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.collectors[timeout]; ok {
		return c
	}
	c := colly.NewCollector(colly.Async(false))
	c.AllowURLRevisit = true
	c.IgnoreRobotsTxt = true
	c.ParseHTTPErrorResponse = true
	c.MaxBodySize = f.cfg.MaxBodySize
	c.WithTransport(f.transport)
	c.SetRequestTimeout(timeout)
	f.collectors[timeout] = c
	return c
}

func (f *Fetcher) configureCollectorHooks(
	hooks collectorHooks,
	start time.Time,
	result *crawler.FetchResponse,
	fetchErr *error,
) {
	hooks.OnResponse(func(r *colly.Response) {
		headers := http.Header{}
		if r.Headers != nil {
			headers = r.Headers.Clone()
		}
		*result = crawler.FetchResponse{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Headers:    headers,
			Body:       append([]byte(nil), r.Body...),
			Duration:   time.Since(start),
		}
	})

	hooks.OnError(func(_ *colly.Response, err error) {
		*fetchErr = err
	})
}

func (f *Fetcher) runCollector(
	ctx context.Context,
	collector *colly.Collector,
	method string,
	target string,
	headers http.Header,
	fetchErr *error,
) error {
	if method == "" {
		method = http.MethodGet
	}
	done := make(chan error, 1)
	go func() {
		done <- collector.Request(method, target, nil, nil, headers)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("colly request failed: %w", err)
		}
		if *fetchErr != nil {
			return fmt.Errorf("colly response failed: %w", *fetchErr)
		}
		return nil
	}
}

// mergeHeaders builds a fresh header set per request so concurrent requests
// never share mutable header state.
func (f *Fetcher) mergeHeaders(extra http.Header) http.Header {
	merged := http.Header{}
	for key, values := range f.cfg.Headers {
		for _, v := range values {
			merged.Add(key, v)
		}
	}
	for key, values := range extra {
		merged.Del(key)
		for _, v := range values {
			merged.Add(key, v)
		}
	}
	return merged
}

func requestURL(request crawler.FetchRequest) (string, error) {
	if request.URL == "" {
		return "", errors.New("request url is required")
	}
	if len(request.Query) == 0 {
		return request.URL, nil
	}
	sep := "?"
	if strings.Contains(request.URL, "?") {
		sep = "&"
	}
	return request.URL + sep + request.Query.Encode(), nil
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
