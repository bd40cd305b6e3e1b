// Package runner drives a full crawl: every configured category in order, the
// fallback hunt, then the final report.
package runner

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/tuoitre-crawler/internal/crawler"
)

// CategoryTarget pairs a listing URL with the number of posts wanted from it.
type CategoryTarget struct {
	URL    string `mapstructure:"url" yaml:"url"`
	Target int    `mapstructure:"target" yaml:"target"`
}

// CategoryCrawler is satisfied by category.Crawler.
type CategoryCrawler interface {
	Crawl(ctx context.Context, listingURL string, target, startPage int) int
}

// Hunter is satisfied by category.Hunter.
type Hunter interface {
	Hunt(ctx context.Context) bool
}

// Report summarizes a finished run.
type Report struct {
	RunID      string                `json:"run_id"`
	StartedAt  time.Time             `json:"started_at"`
	FinishedAt time.Time             `json:"finished_at"`
	Categories map[string]int        `json:"categories"`
	HuntFound  bool                  `json:"hunt_found"`
	Stats      crawler.StatsSnapshot `json:"stats"`
	Folders    []string              `json:"folders"`
}

// Runner runs the configured categories sequentially.
type Runner struct {
	runID      string
	categories []CategoryTarget
	crawler    CategoryCrawler
	hunter     Hunter
	stats      *crawler.Stats
	folders    []string
	clock      crawler.Clock
	out        io.Writer
	logger     *zap.Logger
}

// New constructs a Runner. The report is printed to out when it is non-nil.
func New(
	runID string,
	categories []CategoryTarget,
	categoryCrawler CategoryCrawler,
	hunter Hunter,
	stats *crawler.Stats,
	folders []string,
	clock crawler.Clock,
	out io.Writer,
	logger *zap.Logger,
) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		runID:      runID,
		categories: categories,
		crawler:    categoryCrawler,
		hunter:     hunter,
		stats:      stats,
		folders:    folders,
		clock:      clock,
		out:        out,
		logger:     logger,
	}
}

// Run crawls each category in configuration order, then hunts if no
// high-comment post was found, then prints and returns the report.
func (r *Runner) Run(ctx context.Context) Report {
	logger := r.logger.With(zap.String("run_id", r.runID))
	report := Report{
		RunID:      r.runID,
		StartedAt:  r.clock.Now(),
		Categories: make(map[string]int, len(r.categories)),
		Folders:    r.folders,
	}
	logger.Info("crawler started", zap.Int("categories", len(r.categories)))

	for _, category := range r.categories {
		if ctx.Err() != nil {
			logger.Warn("run cancelled", zap.Error(ctx.Err()))
			break
		}
		saved := r.crawler.Crawl(ctx, category.URL, category.Target, 1)
		report.Categories[crawler.CategoryLabel(category.URL)] += saved
	}

	if ctx.Err() == nil && r.hunter != nil {
		report.HuntFound = r.hunter.Hunt(ctx)
	}

	report.FinishedAt = r.clock.Now()
	report.Stats = r.stats.Snapshot()
	logger.Info("crawler finished",
		zap.Int("total_posts_saved", report.Stats.TotalPostsSaved),
		zap.Int("max_comments_found", report.Stats.MaxCommentsFound),
		zap.Int("posts_with_audio", report.Stats.PostsWithAudio),
		zap.Int("errors", report.Stats.Errors),
		zap.Bool("high_comment_post_found", report.Stats.HighCommentPostFound),
		zap.Duration("elapsed", report.FinishedAt.Sub(report.StartedAt)),
	)
	if r.out != nil {
		if err := WriteReport(r.out, report); err != nil {
			logger.Warn("write report failed", zap.Error(err))
		}
	}
	return report
}

// WriteReport prints the human-readable final report.
func WriteReport(w io.Writer, report Report) error {
	folders := make([]string, 0, len(report.Folders))
	for _, f := range report.Folders {
		folders = append(folders, "./"+strings.TrimPrefix(f, "./"))
	}
	_, err := fmt.Fprintf(w,
		"\n=== FINAL REPORT ===\n"+
			"Total Posts Saved: %d\n"+
			"Max Comments Found: %d\n"+
			"Audio Posts Found: %d\n"+
			"Errors: %d\n"+
			"High Comment Post Found: %t\n"+
			"Data is saved in: %s\n"+
			"=====================\n",
		report.Stats.TotalPostsSaved,
		report.Stats.MaxCommentsFound,
		report.Stats.PostsWithAudio,
		report.Stats.Errors,
		report.Stats.HighCommentPostFound,
		strings.Join(folders, ", "),
	)
	return err
}
