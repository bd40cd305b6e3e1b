// Package video downloads the MP4 behind each harvested video page.
package video

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/tuoitre-crawler/internal/crawler"
)

var mp4Pattern = regexp.MustCompile(`https?://[^\s"']+\.mp4`)

// Outcome describes what happened to one video page.
type Outcome string

// Possible outcomes.
const (
	OutcomeSaved   Outcome = "saved"
	OutcomeSkipped Outcome = "skipped"
	OutcomeNoMP4   Outcome = "no_mp4"
	OutcomeFailed  Outcome = "failed"
)

// LinkHarvester produces the list of video page URLs.
type LinkHarvester interface {
	Harvest(ctx context.Context, hubURL string) ([]string, error)
}

// FileSaver stores a file unless it already exists.
type FileSaver interface {
	DownloadIfMissing(ctx context.Context, rawURL, folder, filename string) (string, bool)
}

// Config controls the downloader.
type Config struct {
	HubURL      string
	OutputDir   string
	PageTimeout time.Duration
}

// Summary counts outcomes across a run.
type Summary struct {
	Links   int
	Saved   int
	Skipped int
	NoMP4   int
	Failed  int
}

// Downloader resolves and saves videos.
type Downloader struct {
	fetcher   crawler.Fetcher
	harvester LinkHarvester
	saver     FileSaver
	cfg       Config
	logger    *zap.Logger
}

// New constructs a Downloader.
func New(fetcher crawler.Fetcher, harvester LinkHarvester, saver FileSaver, cfg Config, logger *zap.Logger) *Downloader {
	if cfg.OutputDir == "" {
		cfg.OutputDir = "tuoitre_videos"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Downloader{fetcher: fetcher, harvester: harvester, saver: saver, cfg: cfg, logger: logger}
}

// Run harvests links from the hub and downloads each one in turn. A harvest
// error still downloads whatever was collected before it.
func (d *Downloader) Run(ctx context.Context) (Summary, error) {
	links, err := d.harvester.Harvest(ctx, d.cfg.HubURL)
	if err != nil {
		if len(links) == 0 {
			return Summary{}, fmt.Errorf("harvest video links: %w", err)
		}
		d.logger.Warn("harvest ended early", zap.Int("links", len(links)), zap.Error(err))
	}
	d.logger.Info("downloading videos", zap.Int("links", len(links)))

	summary := Summary{Links: len(links)}
	for i, link := range links {
		if ctx.Err() != nil {
			break
		}
		outcome := d.Download(ctx, link)
		d.logger.Info("video processed",
			zap.Int("index", i+1),
			zap.Int("total", len(links)),
			zap.String("url", link),
			zap.String("outcome", string(outcome)),
		)
		switch outcome {
		case OutcomeSaved:
			summary.Saved++
		case OutcomeSkipped:
			summary.Skipped++
		case OutcomeNoMP4:
			summary.NoMP4++
		default:
			summary.Failed++
		}
	}
	return summary, nil
}

// Download fetches pageURL, takes the first MP4 URL in its source and saves
// it as {slug}.mp4, skipping files that already exist.
func (d *Downloader) Download(ctx context.Context, pageURL string) Outcome {
	resp, err := d.fetcher.Fetch(ctx, crawler.FetchRequest{URL: pageURL, Timeout: d.cfg.PageTimeout})
	if err != nil {
		d.logger.Warn("video page fetch failed", zap.String("url", pageURL), zap.Error(err))
		return OutcomeFailed
	}
	if !resp.OK() {
		d.logger.Warn("video page fetch failed", zap.Error(crawler.StatusError(resp.StatusCode, pageURL)))
		return OutcomeFailed
	}
	mp4 := FindMP4(resp.Body)
	if mp4 == "" {
		d.logger.Info("no mp4 found", zap.String("url", pageURL))
		return OutcomeNoMP4
	}

	saved, skipped := d.saver.DownloadIfMissing(ctx, mp4, d.cfg.OutputDir, Filename(pageURL))
	switch {
	case skipped:
		return OutcomeSkipped
	case saved == "":
		return OutcomeFailed
	default:
		return OutcomeSaved
	}
}

// FindMP4 returns the first absolute .mp4 URL in body.
func FindMP4(body []byte) string {
	return string(mp4Pattern.Find(body))
}

// Filename maps ".../video/clip-2024050101.htm" to "clip-2024050101.mp4".
func Filename(pageURL string) string {
	name := pageURL
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	return strings.ReplaceAll(name, ".htm", ".mp4")
}
