// Package config loads and validates crawler configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/tuoitre-crawler/internal/crawler"
	"github.com/JakeFAU/tuoitre-crawler/internal/runner"
)

// Config captures every knob of a crawl run.
type Config struct {
	Site      SiteConfig        `mapstructure:"site"`
	Crawler   CrawlerConfig     `mapstructure:"crawler"`
	HTTP      HTTPConfig        `mapstructure:"http"`
	Audio     AudioConfig       `mapstructure:"audio"`
	Selectors crawler.Selectors `mapstructure:"selectors"`
	Storage   StorageConfig     `mapstructure:"storage"`
	DB        DBConfig          `mapstructure:"db"`
	PubSub    PubSubConfig      `mapstructure:"pubsub"`
	Server    ServerConfig      `mapstructure:"server"`
	Video     VideoConfig       `mapstructure:"video"`
	Logging   LoggingConfig     `mapstructure:"logging"`
	Telemetry TelemetryConfig   `mapstructure:"telemetry"`
}

// SiteConfig holds the endpoints of the news site.
type SiteConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	CommentAPIURL  string `mapstructure:"comment_api_url"`
	ReactionAPIURL string `mapstructure:"reaction_api_url"`
	AppKey         string `mapstructure:"app_key"`
	AudioCDNBase   string `mapstructure:"audio_cdn_base"`
	HuntURL        string `mapstructure:"hunt_url"`
	VideoURL       string `mapstructure:"video_url"`
}

// CrawlerConfig governs pagination, pacing and quotas.
type CrawlerConfig struct {
	Categories          []runner.CategoryTarget `mapstructure:"categories"`
	PageCeiling         int                     `mapstructure:"page_ceiling"`
	HuntPageCeiling     int                     `mapstructure:"hunt_page_ceiling"`
	EngagementThreshold int                     `mapstructure:"engagement_threshold"`
	DelayMin            time.Duration           `mapstructure:"delay_min"`
	DelayMax            time.Duration           `mapstructure:"delay_max"`
	HuntDelay           time.Duration           `mapstructure:"hunt_delay"`
	PostConcurrency     int                     `mapstructure:"post_concurrency"`
	UserAgent           string                  `mapstructure:"user_agent"`
	RandomUserAgent     bool                    `mapstructure:"random_user_agent"`
	AcceptLanguage      string                  `mapstructure:"accept_language"`
}

// HTTPConfig sets per-endpoint timeouts. There are no retries.
type HTTPConfig struct {
	PageTimeout  time.Duration `mapstructure:"page_timeout"`
	APITimeout   time.Duration `mapstructure:"api_timeout"`
	ProbeTimeout time.Duration `mapstructure:"probe_timeout"`
	MediaTimeout time.Duration `mapstructure:"media_timeout"`
	VideoTimeout time.Duration `mapstructure:"video_timeout"`
	// MaxBodySize caps page, API and media bodies in bytes; 0 is unlimited.
	MaxBodySize  int           `mapstructure:"max_body_size"`
}

// AudioConfig describes the CDN guessing scheme.
type AudioConfig struct {
	Voices           []string `mapstructure:"voices"`
	Formats          []string `mapstructure:"formats"`
	ProbeConcurrency int      `mapstructure:"probe_concurrency"`
}

// StorageConfig sets the output layout and the optional GCS mirror.
type StorageConfig struct {
	BaseDir   string `mapstructure:"base_dir"`
	DataDir   string `mapstructure:"data_dir"`
	AudioDir  string `mapstructure:"audio_dir"`
	ImagesDir string `mapstructure:"images_dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	GCSPrefix string `mapstructure:"gcs_prefix"`
}

// DBConfig controls the optional Postgres post index.
type DBConfig struct {
	DSN          string `mapstructure:"dsn"`
	Table        string `mapstructure:"table"`
	MaxOpenConns int32  `mapstructure:"max_open_conns"`
	EnsureSchema bool   `mapstructure:"ensure_schema"`
}

// PubSubConfig holds metadata for post notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// ServerConfig controls the status endpoint exposed during a run.
type ServerConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// VideoConfig controls the video harvester and downloader.
type VideoConfig struct {
	TargetLinks    int           `mapstructure:"target_links"`
	OutputDir      string        `mapstructure:"output_dir"`
	ScrollPause    time.Duration `mapstructure:"scroll_pause"`
	IdlePause      time.Duration `mapstructure:"idle_pause"`
	MaxIdleScrolls int           `mapstructure:"max_idle_scrolls"`
	Headless       bool          `mapstructure:"headless"`
	NavTimeout     time.Duration `mapstructure:"nav_timeout"`
	// MaxBodySize caps a single MP4 download in bytes; 0 is unlimited.
	MaxBodySize    int           `mapstructure:"max_body_size"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// TelemetryConfig controls OpenTelemetry tracing.
type TelemetryConfig struct {
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CRAWLER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("site.base_url", "https://tuoitre.vn")
	v.SetDefault("site.comment_api_url", "https://id.tuoitre.vn/api/getlist-comment.api")
	v.SetDefault("site.reaction_api_url", "https://s5.tuoitre.vn/showvote-reaction.htm")
	v.SetDefault("site.app_key", "lHLShlUMAshjvNkHmBzNqERFZammKUXB1DjEuXKfWAwkunzW6fFbfrhP/IG0Xwp7aPwhwIuucLW1TVC9lzmUoA==")
	v.SetDefault("site.audio_cdn_base", "https://tts.mediacdn.vn")
	v.SetDefault("site.hunt_url", "https://tuoitre.vn/ban-doc.htm")
	v.SetDefault("site.video_url", "https://tuoitre.vn/video.htm")

	v.SetDefault("crawler.categories", []map[string]any{
		{"url": "https://tuoitre.vn/thoi-su.htm", "target": 35},
		{"url": "https://tuoitre.vn/the-gioi.htm", "target": 35},
		{"url": "https://tuoitre.vn/phap-luat.htm", "target": 35},
	})
	v.SetDefault("crawler.page_ceiling", 10)
	v.SetDefault("crawler.hunt_page_ceiling", 10)
	v.SetDefault("crawler.engagement_threshold", 20)
	v.SetDefault("crawler.delay_min", 500*time.Millisecond)
	v.SetDefault("crawler.delay_max", time.Second)
	v.SetDefault("crawler.hunt_delay", 500*time.Millisecond)
	v.SetDefault("crawler.post_concurrency", 1)
	v.SetDefault("crawler.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36")
	v.SetDefault("crawler.random_user_agent", false)
	v.SetDefault("crawler.accept_language", "vi-VN,vi;q=0.9,en-US;q=0.8,en;q=0.7")

	v.SetDefault("http.page_timeout", 10*time.Second)
	v.SetDefault("http.api_timeout", 5*time.Second)
	v.SetDefault("http.probe_timeout", 2*time.Second)
	v.SetDefault("http.media_timeout", 15*time.Second)
	v.SetDefault("http.video_timeout", 20*time.Second)
	v.SetDefault("http.max_body_size", 32<<20)

	v.SetDefault("audio.voices", []string{"nu", "nam", "nam-1", "nu-1"})
	v.SetDefault("audio.formats", []string{"m4a", "mp3"})
	v.SetDefault("audio.probe_concurrency", 4)

	sel := crawler.DefaultSelectors()
	v.SetDefault("selectors.content", []string(sel.Content))
	v.SetDefault("selectors.content_garbage", []string(sel.Garbage))
	v.SetDefault("selectors.title", []string(sel.Title))
	v.SetDefault("selectors.author", []string(sel.Author))
	v.SetDefault("selectors.date", []string(sel.Date))
	v.SetDefault("selectors.article_id_inputs", []string(sel.ArticleID))
	v.SetDefault("selectors.published_time", []string(sel.PublishedTime))
	v.SetDefault("selectors.audio", []string(sel.Audio))
	v.SetDefault("selectors.listing_links", []string(sel.ListingLinks))

	v.SetDefault("storage.base_dir", ".")
	v.SetDefault("storage.data_dir", "data")
	v.SetDefault("storage.audio_dir", "audio")
	v.SetDefault("storage.images_dir", "images")
	v.SetDefault("storage.gcs_bucket", "")
	v.SetDefault("storage.gcs_prefix", "")

	v.SetDefault("db.dsn", "")
	v.SetDefault("db.table", "tuoitre_posts")
	v.SetDefault("db.max_open_conns", 4)
	v.SetDefault("db.ensure_schema", true)

	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic_name", "")

	v.SetDefault("server.enabled", false)
	v.SetDefault("server.port", 8080)

	v.SetDefault("video.target_links", 1000)
	v.SetDefault("video.output_dir", "tuoitre_videos")
	v.SetDefault("video.scroll_pause", 2*time.Second)
	v.SetDefault("video.idle_pause", 3*time.Second)
	v.SetDefault("video.max_idle_scrolls", 5)
	v.SetDefault("video.headless", true)
	v.SetDefault("video.nav_timeout", 45*time.Second)
	v.SetDefault("video.max_body_size", 1<<30)

	v.SetDefault("logging.development", true)

	v.SetDefault("telemetry.otlp_endpoint", "")
	v.SetDefault("telemetry.sample_ratio", 1.0)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Site.BaseURL == "" {
		return fmt.Errorf("site.base_url is required")
	}
	if len(c.Crawler.Categories) == 0 {
		return fmt.Errorf("crawler.categories must list at least one category")
	}
	for i, cat := range c.Crawler.Categories {
		if cat.URL == "" {
			return fmt.Errorf("crawler.categories[%d].url is required", i)
		}
		if cat.Target <= 0 {
			return fmt.Errorf("crawler.categories[%d].target must be > 0", i)
		}
	}
	if c.Crawler.PageCeiling <= 0 {
		return fmt.Errorf("crawler.page_ceiling must be > 0")
	}
	if c.Crawler.HuntPageCeiling <= 0 {
		return fmt.Errorf("crawler.hunt_page_ceiling must be > 0")
	}
	if c.Crawler.EngagementThreshold < 0 {
		return fmt.Errorf("crawler.engagement_threshold must be >= 0")
	}
	if c.Crawler.DelayMax < c.Crawler.DelayMin {
		return fmt.Errorf("crawler.delay_max must be >= crawler.delay_min")
	}
	if c.Crawler.PostConcurrency <= 0 {
		return fmt.Errorf("crawler.post_concurrency must be > 0")
	}
	if c.HTTP.PageTimeout <= 0 || c.HTTP.APITimeout <= 0 || c.HTTP.ProbeTimeout <= 0 ||
		c.HTTP.MediaTimeout <= 0 || c.HTTP.VideoTimeout <= 0 {
		return fmt.Errorf("http timeouts must be > 0")
	}
	if c.HTTP.MaxBodySize < 0 || c.Video.MaxBodySize < 0 {
		return fmt.Errorf("max_body_size must be >= 0")
	}
	if c.Audio.ProbeConcurrency <= 0 {
		return fmt.Errorf("audio.probe_concurrency must be > 0")
	}
	if c.Storage.BaseDir == "" {
		return fmt.Errorf("storage.base_dir is required")
	}
	if c.PubSub.TopicName != "" && c.PubSub.ProjectID == "" {
		return fmt.Errorf("pubsub.project_id must be set when pubsub.topic_name is set")
	}
	if c.Server.Enabled && c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0 when the server is enabled")
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("telemetry.sample_ratio must be within [0, 1]")
	}
	if c.Video.TargetLinks <= 0 {
		return fmt.Errorf("video.target_links must be > 0")
	}
	return nil
}

// Folders lists the output directories in report order.
func (c Config) Folders() []string {
	return []string{c.Storage.DataDir, c.Storage.AudioDir, c.Storage.ImagesDir}
}
