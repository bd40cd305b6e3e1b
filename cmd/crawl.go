package cmd

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"strconv"
	"syscall"

	"cloud.google.com/go/pubsub"
	gcs "cloud.google.com/go/storage"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/tuoitre-crawler/internal/api"
	"github.com/JakeFAU/tuoitre-crawler/internal/audio"
	"github.com/JakeFAU/tuoitre-crawler/internal/category"
	"github.com/JakeFAU/tuoitre-crawler/internal/clock/system"
	"github.com/JakeFAU/tuoitre-crawler/internal/comments"
	"github.com/JakeFAU/tuoitre-crawler/internal/config"
	"github.com/JakeFAU/tuoitre-crawler/internal/crawler"
	collyfetcher "github.com/JakeFAU/tuoitre-crawler/internal/fetcher/colly"
	"github.com/JakeFAU/tuoitre-crawler/internal/id/uuid"
	"github.com/JakeFAU/tuoitre-crawler/internal/logging"
	"github.com/JakeFAU/tuoitre-crawler/internal/media"
	"github.com/JakeFAU/tuoitre-crawler/internal/metrics"
	"github.com/JakeFAU/tuoitre-crawler/internal/post"
	gcppublisher "github.com/JakeFAU/tuoitre-crawler/internal/publisher/pubsub"
	"github.com/JakeFAU/tuoitre-crawler/internal/reactions"
	"github.com/JakeFAU/tuoitre-crawler/internal/runner"
	gcsstorage "github.com/JakeFAU/tuoitre-crawler/internal/storage/gcs"
	localstorage "github.com/JakeFAU/tuoitre-crawler/internal/storage/local"
	"github.com/JakeFAU/tuoitre-crawler/internal/storage/mirror"
	pgstore "github.com/JakeFAU/tuoitre-crawler/internal/storage/postgres"
	"github.com/JakeFAU/tuoitre-crawler/internal/telemetry"
)

func newCrawlCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "crawl",
		Short: "Crawls every configured category, then hunts for a high-comment post",
		Long: `Walks each configured category listing until its target number of
posts is saved, runs the reader-mail hunt when no post crossed the
engagement threshold, and prints the final report.`,
		RunE: runCrawlCommand,
	}
}

func runCrawlCommand(cmd *cobra.Command, _ []string) error {
	e, err := resolveEnv(cmd.Context())
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clk := system.New(system.Vietnam)
	runID, err := uuid.New().RunID(clk.Now())
	if err != nil {
		return fmt.Errorf("run id: %w", err)
	}
	logger := logging.ForRun(e.logger, runID)

	tp, err := telemetry.InitTracerProvider(ctx, telemetry.Config{
		ServiceName:  "tuoitre-crawler",
		Version:      version,
		OTLPEndpoint: e.cfg.Telemetry.OTLPEndpoint,
		SampleRatio:  e.cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		return fmt.Errorf("tracer init failed: %w", err)
	}
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			logger.Warn("tracer shutdown failed", zap.Error(err))
		}
	}()
	metrics.Init()

	app, err := buildCrawlApp(ctx, e.cfg, runID, clk, cmd.OutOrStdout(), logger)
	if err != nil {
		return err
	}
	defer app.close()

	if e.cfg.Server.Enabled {
		srv := api.NewServer(app.stats, api.RunInfo{RunID: runID, StartedAt: clk.Now()}, clk, logger)
		go func() {
			if err := srv.Serve(ctx, ":"+strconv.Itoa(e.cfg.Server.Port)); err != nil {
				logger.Error("status server stopped", zap.Error(err))
			}
		}()
	}

	report := app.runner.Run(ctx)
	logger.Info("crawl command finished",
		zap.Int("posts_saved", report.Stats.TotalPostsSaved),
		zap.Int("errors", report.Stats.Errors),
	)
	return nil
}

// crawlApp is the object graph behind one crawl run.
type crawlApp struct {
	runner  *runner.Runner
	stats   *crawler.Stats
	closers []func()
}

func (a *crawlApp) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func buildCrawlApp(
	ctx context.Context,
	cfg config.Config,
	runID string,
	clk crawler.Clock,
	out io.Writer,
	logger *zap.Logger,
) (*crawlApp, error) {
	app := &crawlApp{stats: crawler.NewStats()}
	fail := func(err error) (*crawlApp, error) {
		app.close()
		return nil, err
	}

	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent:       cfg.Crawler.UserAgent,
		RandomUserAgent: cfg.Crawler.RandomUserAgent,
		Headers:         sessionHeaders(cfg),
		Timeout:         cfg.HTTP.PageTimeout,
		MaxBodySize:     cfg.HTTP.MaxBodySize,
	})

	store, err := buildBlobStore(ctx, cfg, app, logger)
	if err != nil {
		return fail(err)
	}
	index, err := buildPostIndex(ctx, cfg, app, logger)
	if err != nil {
		return fail(err)
	}
	publisher, err := buildPublisher(ctx, cfg, app, logger)
	if err != nil {
		return fail(err)
	}

	deps := post.Deps{
		Fetcher: fetcher,
		Comments: comments.New(fetcher, comments.Config{
			APIURL:  cfg.Site.CommentAPIURL,
			AppKey:  cfg.Site.AppKey,
			BaseURL: cfg.Site.BaseURL,
			Timeout: cfg.HTTP.APITimeout,
		}, logger),
		Reactions: reactions.New(fetcher, reactions.Config{
			APIURL:  cfg.Site.ReactionAPIURL,
			Timeout: cfg.HTTP.APITimeout,
		}, logger),
		Audio: audio.New(fetcher, audio.Config{
			BaseURL:          cfg.Site.BaseURL,
			CDNBase:          cfg.Site.AudioCDNBase,
			Voices:           cfg.Audio.Voices,
			Formats:          cfg.Audio.Formats,
			ProbeTimeout:     cfg.HTTP.ProbeTimeout,
			ProbeConcurrency: cfg.Audio.ProbeConcurrency,
			AudioTags:        cfg.Selectors.Audio,
			PublishedTime:    cfg.Selectors.PublishedTime,
		}, logger),
		Media:     media.New(fetcher, store, cfg.Site.BaseURL, cfg.HTTP.MediaTimeout, logger),
		Store:     store,
		Stats:     app.stats,
		Selectors: cfg.Selectors,
		Clock:     clk,
	}
	// Typed nils would defeat the parser's nil checks.
	if index != nil {
		deps.Index = index
	}
	if publisher != nil {
		deps.Publisher = publisher
	}

	parser := post.New(deps, post.Config{
		PageTimeout:         cfg.HTTP.PageTimeout,
		EngagementThreshold: cfg.Crawler.EngagementThreshold,
		DataDir:             cfg.Storage.DataDir,
		AudioDir:            cfg.Storage.AudioDir,
		ImagesDir:           cfg.Storage.ImagesDir,
		Topic:               cfg.PubSub.TopicName,
		RunID:               runID,
	}, logger)

	pauser := crawler.TimerPauser{}
	categoryCrawler := category.NewCrawler(fetcher, parser, pauser, category.Config{
		BaseURL:      cfg.Site.BaseURL,
		PageTimeout:  cfg.HTTP.PageTimeout,
		PageCeiling:  cfg.Crawler.PageCeiling,
		DelayMin:     cfg.Crawler.DelayMin,
		DelayMax:     cfg.Crawler.DelayMax,
		Concurrency:  cfg.Crawler.PostConcurrency,
		ListingLinks: cfg.Selectors.ListingLinks,
	}, logger)
	hunter := category.NewHunter(fetcher, parser, pauser, app.stats, category.HuntConfig{
		BaseURL:      cfg.Site.BaseURL,
		ListingURL:   cfg.Site.HuntURL,
		PageTimeout:  cfg.HTTP.PageTimeout,
		PageCeiling:  cfg.Crawler.HuntPageCeiling,
		Delay:        cfg.Crawler.HuntDelay,
		ListingLinks: cfg.Selectors.ListingLinks,
	}, logger)

	app.runner = runner.New(runID, cfg.Crawler.Categories, categoryCrawler, hunter,
		app.stats, cfg.Folders(), clk, out, logger)
	return app, nil
}

// buildBlobStore returns the local store, mirrored to GCS when a bucket is set.
func buildBlobStore(ctx context.Context, cfg config.Config, app *crawlApp, logger *zap.Logger) (crawler.BlobStore, error) {
	local, err := localstorage.New(localstorage.Config{BaseDir: cfg.Storage.BaseDir})
	if err != nil {
		return nil, fmt.Errorf("init local storage: %w", err)
	}
	if cfg.Storage.GCSBucket == "" {
		return local, nil
	}
	client, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("init gcs client: %w", err)
	}
	app.closers = append(app.closers, func() {
		if err := client.Close(); err != nil {
			logger.Warn("gcs client close failed", zap.Error(err))
		}
	})
	remote, err := gcsstorage.New(client, gcsstorage.Config{Bucket: cfg.Storage.GCSBucket, Prefix: cfg.Storage.GCSPrefix})
	if err != nil {
		return nil, fmt.Errorf("init gcs storage: %w", err)
	}
	logger.Info("mirroring artifacts to gcs", zap.String("bucket", cfg.Storage.GCSBucket))
	return mirror.New(local, remote, logger)
}

func buildPostIndex(ctx context.Context, cfg config.Config, app *crawlApp, logger *zap.Logger) (*pgstore.PostStore, error) {
	if cfg.DB.DSN == "" {
		return nil, nil
	}
	store, err := pgstore.NewPostStore(ctx, pgstore.PostStoreConfig{
		DSN:      cfg.DB.DSN,
		Table:    cfg.DB.Table,
		MaxConns: cfg.DB.MaxOpenConns,
	})
	if err != nil {
		return nil, fmt.Errorf("init post index: %w", err)
	}
	app.closers = append(app.closers, store.Close)
	if cfg.DB.EnsureSchema {
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("ensure post index schema: %w", err)
		}
	}
	logger.Info("indexing posts in postgres", zap.String("table", cfg.DB.Table))
	return store, nil
}

func buildPublisher(ctx context.Context, cfg config.Config, app *crawlApp, logger *zap.Logger) (*gcppublisher.Publisher, error) {
	if cfg.PubSub.TopicName == "" {
		return nil, nil
	}
	client, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("init pubsub client: %w", err)
	}
	publisher := gcppublisher.New(client)
	app.closers = append(app.closers, func() {
		if err := publisher.Close(); err != nil {
			logger.Warn("pubsub publisher close failed", zap.Error(err))
		}
	})
	logger.Info("publishing post notifications", zap.String("topic", cfg.PubSub.TopicName))
	return publisher, nil
}
