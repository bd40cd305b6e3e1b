// Package media downloads audio, image and video files into a blob store.
package media

import (
	"bytes"
	"context"
	"path"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/tuoitre-crawler/internal/crawler"
	"github.com/JakeFAU/tuoitre-crawler/internal/metrics"
)

// Downloader performs one timed GET per file and stores the body.
type Downloader struct {
	fetcher crawler.Fetcher
	store   crawler.BlobStore
	baseURL string
	timeout time.Duration
	logger  *zap.Logger
}

// New constructs a Downloader. Site-relative URLs are resolved against baseURL.
func New(fetcher crawler.Fetcher, store crawler.BlobStore, baseURL string, timeout time.Duration, logger *zap.Logger) *Downloader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Downloader{fetcher: fetcher, store: store, baseURL: baseURL, timeout: timeout, logger: logger}
}

// Download fetches rawURL and writes it to folder/filename, overwriting any
// existing file. It returns the relative path on success and "" when nothing
// was saved; failures are logged, never returned.
func (d *Downloader) Download(ctx context.Context, rawURL, folder, filename string) string {
	target := crawler.ResolveURL(d.baseURL, rawURL)
	rel := path.Join(folder, filename)

	resp, err := d.fetcher.Fetch(ctx, crawler.FetchRequest{URL: target, Timeout: d.timeout})
	if err != nil {
		d.logger.Warn("media download failed", zap.String("url", target), zap.Error(err))
		metrics.ObserveMedia(folder, false)
		return ""
	}
	if !resp.OK() {
		d.logger.Warn("media download failed", zap.String("url", target), zap.Error(crawler.StatusError(resp.StatusCode, target)))
		metrics.ObserveMedia(folder, false)
		return ""
	}

	if _, err := d.store.PutObject(ctx, rel, contentType(resp), bytes.NewReader(resp.Body)); err != nil {
		d.logger.Warn("media write failed", zap.String("path", rel), zap.Error(err))
		metrics.ObserveMedia(folder, false)
		return ""
	}
	metrics.ObserveMedia(folder, true)
	d.logger.Debug("media saved", zap.String("url", target), zap.String("path", rel), zap.Int("bytes", len(resp.Body)))
	return rel
}

// DownloadIfMissing skips the fetch when folder/filename is already stored.
// The bool reports whether the file was skipped.
func (d *Downloader) DownloadIfMissing(ctx context.Context, rawURL, folder, filename string) (string, bool) {
	rel := path.Join(folder, filename)
	exists, err := d.store.Exists(ctx, rel)
	if err != nil {
		d.logger.Warn("existence check failed", zap.String("path", rel), zap.Error(err))
	}
	if exists {
		d.logger.Info("already downloaded", zap.String("path", rel))
		return rel, true
	}
	return d.Download(ctx, rawURL, folder, filename), false
}

func contentType(resp crawler.FetchResponse) string {
	if resp.Headers == nil {
		return ""
	}
	return resp.Headers.Get("Content-Type")
}
