package category

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/tuoitre-crawler/internal/crawler"
	"github.com/JakeFAU/tuoitre-crawler/internal/metrics"
	"github.com/JakeFAU/tuoitre-crawler/internal/post"
)

// HuntLabel is the category recorded on posts found by the hunt.
const HuntLabel = "ban-doc-hunt"

// HuntConfig tunes the fallback hunt.
type HuntConfig struct {
	BaseURL      string
	ListingURL   string
	PageTimeout  time.Duration
	PageCeiling  int
	Delay        time.Duration
	ListingLinks crawler.SelectorChain
}

// Hunter searches a secondary listing for one post above the engagement
// threshold.
type Hunter struct {
	fetcher crawler.Fetcher
	parser  PostParser
	pauser  crawler.Pauser
	stats   *crawler.Stats
	cfg     HuntConfig
	logger  *zap.Logger
}

// NewHunter constructs a Hunter.
func NewHunter(
	fetcher crawler.Fetcher,
	parser PostParser,
	pauser crawler.Pauser,
	stats *crawler.Stats,
	cfg HuntConfig,
	logger *zap.Logger,
) *Hunter {
	if cfg.PageCeiling <= 0 {
		cfg.PageCeiling = 10
	}
	if pauser == nil {
		pauser = crawler.TimerPauser{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hunter{fetcher: fetcher, parser: parser, pauser: pauser, stats: stats, cfg: cfg, logger: logger}
}

// Hunt checks candidates page by page (pages 1 through PageCeiling-1) and
// returns true as soon as one is saved. It does nothing when a high-comment
// post has already been found.
func (h *Hunter) Hunt(ctx context.Context) bool {
	logger := h.logger.With(zap.String("category", HuntLabel))
	if h.stats.HighCommentFound() {
		logger.Info("high-comment requirement already satisfied, skipping hunt")
		return false
	}
	logger.Info("hunting for high-comment posts", zap.String("url", h.cfg.ListingURL))

	for page := 1; page < h.cfg.PageCeiling; page++ {
		if ctx.Err() != nil {
			return false
		}
		pageURL := crawler.PageURL(h.cfg.ListingURL, page)
		logger.Info("hunt page", zap.String("url", pageURL), zap.Int("page", page))

		resp, err := h.fetcher.Fetch(ctx, crawler.FetchRequest{URL: pageURL, Timeout: h.cfg.PageTimeout})
		if err != nil {
			logger.Warn("hunt page error", zap.String("url", pageURL), zap.Error(err))
			metrics.ObserveListingPage(HuntLabel, "error")
			continue
		}
		if !resp.OK() {
			logger.Warn("hunt page unavailable", zap.Error(crawler.StatusError(resp.StatusCode, pageURL)))
		}
		links, err := ExtractLinks(resp.Body, h.cfg.ListingLinks, h.cfg.BaseURL, false)
		if err != nil {
			logger.Warn("hunt page error", zap.String("url", pageURL), zap.Error(err))
			metrics.ObserveListingPage(HuntLabel, "error")
			continue
		}
		metrics.ObserveListingPage(HuntLabel, "ok")

		for _, link := range links {
			if h.parser.Parse(ctx, link, HuntLabel, post.ModeCheckOnly) {
				logger.Info("high-comment requirement satisfied", zap.String("url", link))
				return true
			}
			h.pauser.Pause(ctx, h.cfg.Delay)
		}
	}
	logger.Info("hunt finished without a high-comment post")
	return false
}
