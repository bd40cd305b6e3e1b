package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/tuoitre-crawler/internal/config"
	"github.com/JakeFAU/tuoitre-crawler/internal/logging"
)

// version is overridden at link time.
var version = "dev"

// envKeyType is the key for storing the env in the command context.
type envKeyType struct{}

// env holds what every subcommand needs before it builds its own graph.
type env struct {
	cfg    config.Config
	logger *zap.Logger
}

// newEnv is the environment factory. It's a variable so tests can swap it.
var newEnv = func(cfgPath string) (*env, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}
	return &env{cfg: cfg, logger: logger}, nil
}

func newRootCmd() *cobra.Command {
	var cfgFile string
	cmd := &cobra.Command{
		Use:   "tuoitre-crawler",
		Short: "Crawls Tuoi Tre articles with their comments, reactions and media.",
		Long: `tuoitre-crawler walks the configured news categories, saves each
article as JSON together with its comments, reaction totals, narration audio
and images, then prints a run report.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			e, err := newEnv(cfgFile)
			if err != nil {
				return err
			}
			zap.ReplaceGlobals(e.logger)
			cmd.SetContext(context.WithValue(cmd.Context(), envKeyType{}, e))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if e, ok := cmd.Context().Value(envKeyType{}).(*env); ok && e != nil {
				_ = e.logger.Sync()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to a YAML config file")

	cmd.AddCommand(newCrawlCmd())
	cmd.AddCommand(newVideosCmd())
	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func resolveEnv(ctx context.Context) (*env, error) {
	e, ok := ctx.Value(envKeyType{}).(*env)
	if !ok || e == nil {
		return nil, errors.New("environment not initialized")
	}
	return e, nil
}

// sessionHeaders are sent with every request so the site and its APIs see a
// browser session that came from the home page.
func sessionHeaders(cfg config.Config) http.Header {
	base := strings.TrimRight(cfg.Site.BaseURL, "/")
	h := http.Header{}
	h.Set("Referer", base+"/")
	h.Set("Origin", base)
	if cfg.Crawler.AcceptLanguage != "" {
		h.Set("Accept-Language", cfg.Crawler.AcceptLanguage)
	}
	return h
}
