// Package reactions aggregates article-level vote counts.
package reactions

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/tuoitre-crawler/internal/crawler"
)

const (
	typeGeneral = 2
	typeStar    = 3
)

// Config controls the reaction API request.
type Config struct {
	APIURL  string
	Timeout time.Duration
}

// Fetcher reads the vote breakdown for an article.
type Fetcher struct {
	fetcher crawler.Fetcher
	cfg     Config
	logger  *zap.Logger
}

// New constructs a Fetcher.
func New(fetcher crawler.Fetcher, cfg Config, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{fetcher: fetcher, cfg: cfg, logger: logger}
}

type voteItem struct {
	Type       any `json:"Type"`
	TotalVotes any `json:"TotalVotes"`
	TotalStar  any `json:"TotalStar"`
}

// Fetch returns the summed vote buckets. On error the returned summary is zero.
func (f *Fetcher) Fetch(ctx context.Context, articleID string) (crawler.ReactionSummary, error) {
	resp, err := f.fetcher.Fetch(ctx, crawler.FetchRequest{
		URL:     f.cfg.APIURL,
		Query:   url.Values{"newsid": {articleID}, "m": {"viewreact"}},
		Timeout: f.cfg.Timeout,
	})
	if err != nil {
		return crawler.ReactionSummary{}, fmt.Errorf("fetch reactions: %w", err)
	}
	if !resp.OK() {
		return crawler.ReactionSummary{}, crawler.StatusError(resp.StatusCode, f.cfg.APIURL)
	}

	var payload struct {
		Data []voteItem `json:"Data"`
	}
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		return crawler.ReactionSummary{}, fmt.Errorf("decode reactions: %w", err)
	}
	summary := aggregate(payload.Data)
	f.logger.Debug("reactions fetched",
		zap.String("article_id", articleID),
		zap.Int("general", summary.GeneralVotes),
		zap.Int("star", summary.StarRatings),
		zap.Int("other", summary.OtherTypeVotes),
	)
	return summary, nil
}

// aggregate buckets items by type code. Unknown codes count as other.
func aggregate(items []voteItem) crawler.ReactionSummary {
	var summary crawler.ReactionSummary
	for _, item := range items {
		total := count(item.TotalVotes) + count(item.TotalStar)
		switch count(item.Type) {
		case typeGeneral:
			summary.GeneralVotes += total
		case typeStar:
			summary.StarRatings += total
		default:
			summary.OtherTypeVotes += total
		}
	}
	return summary
}

// count reads a JSON number (or numeric string) as a non-negative int.
func count(v any) int {
	var n float64
	switch t := v.(type) {
	case float64:
		n = t
	case string:
		f, err := json.Number(t).Float64()
		if err != nil {
			return 0
		}
		n = f
	default:
		return 0
	}
	if n < 0 {
		return 0
	}
	return int(n)
}
