package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	collyfetcher "github.com/JakeFAU/tuoitre-crawler/internal/fetcher/colly"
	"github.com/JakeFAU/tuoitre-crawler/internal/fetcher/headless"
	localstorage "github.com/JakeFAU/tuoitre-crawler/internal/storage/local"
	"github.com/JakeFAU/tuoitre-crawler/internal/media"
	"github.com/JakeFAU/tuoitre-crawler/internal/video"
)

func newVideosCmd() *cobra.Command {
	var target int
	cmd := &cobra.Command{
		Use:   "videos",
		Short: "Harvests video pages from the video hub and downloads their MP4 files",
		Long: `Opens the video hub in a headless browser, scrolls and clicks
"load more" until enough video page links are collected, then downloads the
MP4 referenced by each page. Files that already exist are skipped.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runVideosCommand(cmd, target)
		},
	}
	cmd.Flags().IntVar(&target, "target", 0, "number of video links to collect (default from config)")
	return cmd
}

func runVideosCommand(cmd *cobra.Command, target int) error {
	e, err := resolveEnv(cmd.Context())
	if err != nil {
		return err
	}
	cfg := e.cfg
	logger := e.logger.Named("videos")
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if target <= 0 {
		target = cfg.Video.TargetLinks
	}
	headers := sessionHeaders(cfg)

	harvester, err := headless.NewHarvester(headless.Config{
		Headless:          cfg.Video.Headless,
		UserAgent:         cfg.Crawler.UserAgent,
		Headers:           headers,
		NavigationTimeout: cfg.Video.NavTimeout,
		Target:            target,
		ScrollPause:       cfg.Video.ScrollPause,
		IdlePause:         cfg.Video.IdlePause,
		MaxIdleScrolls:    cfg.Video.MaxIdleScrolls,
	}, logger)
	if err != nil {
		return fmt.Errorf("init harvester: %w", err)
	}
	defer harvester.Close()

	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent:   cfg.Crawler.UserAgent,
		Headers:     headers,
		Timeout:     cfg.HTTP.VideoTimeout,
		MaxBodySize: cfg.Video.MaxBodySize,
	})
	store, err := localstorage.New(localstorage.Config{BaseDir: cfg.Storage.BaseDir})
	if err != nil {
		return fmt.Errorf("init local storage: %w", err)
	}
	saver := media.New(fetcher, store, cfg.Site.BaseURL, cfg.HTTP.VideoTimeout, logger)

	downloader := video.New(fetcher, harvester, saver, video.Config{
		HubURL:      cfg.Site.VideoURL,
		OutputDir:   cfg.Video.OutputDir,
		PageTimeout: cfg.HTTP.PageTimeout,
	}, logger)

	summary, err := downloader.Run(ctx)
	if err != nil {
		return fmt.Errorf("download videos: %w", err)
	}
	logger.Info("videos command finished",
		zap.Int("links", summary.Links),
		zap.Int("saved", summary.Saved),
		zap.Int("skipped", summary.Skipped),
		zap.Int("no_mp4", summary.NoMP4),
		zap.Int("failed", summary.Failed),
	)
	fmt.Fprintf(cmd.OutOrStdout(), "Videos: %d links, %d saved, %d skipped, %d without mp4, %d failed\n",
		summary.Links, summary.Saved, summary.Skipped, summary.NoMP4, summary.Failed)
	return nil
}
