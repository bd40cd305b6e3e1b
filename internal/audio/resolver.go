// Package audio discovers podcast URLs for an article, either from an embedded
// <audio> tag or by probing the text-to-speech CDN for date-based paths.
package audio

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/tuoitre-crawler/internal/crawler"
	"github.com/JakeFAU/tuoitre-crawler/internal/metrics"
)

// Config describes the CDN naming scheme and probe limits.
type Config struct {
	BaseURL          string
	CDNBase          string
	Voices           []string
	Formats          []string
	ProbeTimeout     time.Duration
	ProbeConcurrency int
	AudioTags        crawler.SelectorChain
	PublishedTime    crawler.SelectorChain
}

// Resolver finds audio URLs for a post.
type Resolver struct {
	fetcher crawler.Fetcher
	cfg     Config
	logger  *zap.Logger
}

// New constructs a Resolver.
func New(fetcher crawler.Fetcher, cfg Config, logger *zap.Logger) *Resolver {
	if cfg.ProbeConcurrency <= 0 {
		cfg.ProbeConcurrency = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{fetcher: fetcher, cfg: cfg, logger: logger}
}

// Resolve returns the embedded audio URL (if any) followed by every CDN
// candidate whose probe answered 200, without duplicates.
func (r *Resolver) Resolve(ctx context.Context, doc *goquery.Selection, postID string) []string {
	var found []string
	if src := r.cfg.AudioTags.Attr(doc, "src"); src != "" {
		found = append(found, crawler.ResolveURL(r.cfg.BaseURL, src))
	}

	if date, ok := publishedDate(r.cfg.PublishedTime.Attr(doc, "content")); ok {
		found = append(found, r.probe(ctx, Candidates(r.cfg.CDNBase, date, postID, r.cfg.Voices, r.cfg.Formats))...)
	} else {
		r.logger.Debug("no publish date, skipping cdn probe", zap.String("post_id", postID))
	}
	return dedupe(found)
}

// Candidates lists CDN URLs voice by voice, format by format.
func Candidates(cdnBase string, date [3]string, postID string, voices, formats []string) []string {
	base := strings.TrimRight(cdnBase, "/")
	out := make([]string, 0, len(voices)*len(formats))
	for _, voice := range voices {
		for _, format := range formats {
			out = append(out, fmt.Sprintf("%s/%s/%s/%s/tuoitre-%s-%s.%s", base, date[0], date[1], date[2], voice, postID, format))
		}
	}
	return out
}

// probe HEADs every candidate with bounded concurrency and returns the hits in
// candidate order.
func (r *Resolver) probe(ctx context.Context, candidates []string) []string {
	hits := make([]bool, len(candidates))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.ProbeConcurrency)
	for i, candidate := range candidates {
		g.Go(func() error {
			ok := r.exists(gctx, candidate)
			metrics.ObserveAudioProbe(ok)
			if ok {
				mu.Lock()
				hits[i] = true
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	out := make([]string, 0, len(candidates))
	for i, hit := range hits {
		if hit {
			out = append(out, candidates[i])
		}
	}
	return out
}

// exists treats anything other than a clean 200 as absent.
func (r *Resolver) exists(ctx context.Context, candidate string) bool {
	resp, err := r.fetcher.Fetch(ctx, crawler.FetchRequest{
		Method:  http.MethodHead,
		URL:     candidate,
		Timeout: r.cfg.ProbeTimeout,
	})
	if err != nil {
		r.logger.Debug("audio probe failed", zap.String("url", candidate), zap.Error(err))
		return false
	}
	if resp.StatusCode != http.StatusOK {
		return false
	}
	r.logger.Info("audio found on cdn", zap.String("url", candidate))
	return true
}

// publishedDate pulls yyyy, mm, dd out of an ISO timestamp such as
// "2024-05-01T08:30:00+07:00".
func publishedDate(value string) ([3]string, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return [3]string{}, false
	}
	day, _, _ := strings.Cut(value, "T")
	parts := strings.Split(day, "-")
	if len(parts) != 3 {
		return [3]string{}, false
	}
	return [3]string{parts[0], parts[1], parts[2]}, true
}

func dedupe(urls []string) []string {
	seen := make(map[string]struct{}, len(urls))
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}
