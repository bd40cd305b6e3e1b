// Package category walks listing pages and feeds their articles to the post
// parser, plus the fallback hunt for a high-engagement article.
package category

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/tuoitre-crawler/internal/crawler"
	"github.com/JakeFAU/tuoitre-crawler/internal/metrics"
	"github.com/JakeFAU/tuoitre-crawler/internal/post"
)

// PostParser is the slice of post.Parser the crawlers depend on.
type PostParser interface {
	Parse(ctx context.Context, rawURL, category string, mode post.Mode) bool
}

// Config tunes pagination and pacing.
type Config struct {
	BaseURL     string
	PageTimeout time.Duration
	PageCeiling int
	DelayMin    time.Duration
	DelayMax    time.Duration
	// Concurrency is the number of posts parsed at once; 1 keeps the crawl
	// strictly sequential.
	Concurrency  int
	ListingLinks crawler.SelectorChain
}

// Crawler collects up to a target number of posts from one category.
type Crawler struct {
	fetcher crawler.Fetcher
	parser  PostParser
	pauser  crawler.Pauser
	cfg     Config
	logger  *zap.Logger
}

// NewCrawler constructs a Crawler.
func NewCrawler(fetcher crawler.Fetcher, parser PostParser, pauser crawler.Pauser, cfg Config, logger *zap.Logger) *Crawler {
	if cfg.PageCeiling <= 0 {
		cfg.PageCeiling = 10
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if pauser == nil {
		pauser = crawler.TimerPauser{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Crawler{fetcher: fetcher, parser: parser, pauser: pauser, cfg: cfg, logger: logger}
}

// Crawl visits pages startPage through startPage+PageCeiling-1 until target
// posts are saved, and returns how many were. A non-success listing status
// ends the category; a transport or parse failure skips to the next page.
func (c *Crawler) Crawl(ctx context.Context, listingURL string, target, startPage int) int {
	if startPage < 1 {
		startPage = 1
	}
	label := crawler.CategoryLabel(listingURL)
	logger := c.logger.With(zap.String("category", label))
	logger.Info("crawling category", zap.String("url", listingURL), zap.Int("target", target))

	count := 0
	for page := startPage; count < target && page < startPage+c.cfg.PageCeiling; page++ {
		if ctx.Err() != nil {
			break
		}
		pageURL := crawler.PageURL(listingURL, page)
		logger.Info("category page", zap.String("url", pageURL), zap.Int("page", page))

		resp, err := c.fetcher.Fetch(ctx, crawler.FetchRequest{URL: pageURL, Timeout: c.cfg.PageTimeout})
		if err != nil {
			logger.Warn("category page error", zap.String("url", pageURL), zap.Error(err))
			metrics.ObserveListingPage(label, "error")
			continue
		}
		if !resp.OK() {
			logger.Warn("category page unavailable, stopping", zap.Error(crawler.StatusError(resp.StatusCode, pageURL)))
			metrics.ObserveListingPage(label, "stopped")
			break
		}
		links, err := ExtractLinks(resp.Body, c.cfg.ListingLinks, c.cfg.BaseURL, true)
		if err != nil {
			logger.Warn("category page error", zap.String("url", pageURL), zap.Error(err))
			metrics.ObserveListingPage(label, "error")
			continue
		}
		metrics.ObserveListingPage(label, "ok")
		logger.Debug("listing links", zap.Int("count", len(links)))

		count += c.parseLinks(ctx, links, label, target-count)
	}
	logger.Info("category done", zap.Int("saved", count), zap.Int("target", target))
	return count
}

// parseLinks parses links in batches no larger than the remaining quota, so
// the target is never overshot, and pauses after each saved post.
func (c *Crawler) parseLinks(ctx context.Context, links []string, label string, remaining int) int {
	saved := 0
	for len(links) > 0 && saved < remaining {
		if ctx.Err() != nil {
			break
		}
		size := min(c.cfg.Concurrency, remaining-saved, len(links))
		batch := links[:size]
		links = links[size:]

		var batchSaved atomic.Int32
		g, gctx := errgroup.WithContext(ctx)
		for _, link := range batch {
			g.Go(func() error {
				if c.parser.Parse(gctx, link, label, post.ModeNormal) {
					batchSaved.Add(1)
					delay := crawler.RandomDelay(c.cfg.DelayMin, c.cfg.DelayMax)
					metrics.ObservePoliteness(delay)
					c.pauser.Pause(gctx, delay)
				}
				return nil
			})
		}
		_ = g.Wait()
		saved += int(batchSaved.Load())
	}
	return saved
}
