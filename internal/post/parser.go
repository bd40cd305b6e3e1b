// Package post turns one article URL into a persisted PostRecord.
package post

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/tuoitre-crawler/internal/crawler"
	"github.com/JakeFAU/tuoitre-crawler/internal/hash/sha256"
	"github.com/JakeFAU/tuoitre-crawler/internal/metrics"
)

const tracerName = "github.com/JakeFAU/tuoitre-crawler/internal/post"

// Mode selects how much work Parse does before deciding to persist.
type Mode int

const (
	// ModeNormal always saves a successfully fetched article.
	ModeNormal Mode = iota
	// ModeCheckOnly saves only articles above the engagement threshold.
	ModeCheckOnly
)

func (m Mode) String() string {
	if m == ModeCheckOnly {
		return "check_only"
	}
	return "normal"
}

const (
	defaultTitle       = "No Title"
	defaultPlaceholder = "Unknown"
)

// CommentSource loads the first page of reader comments.
type CommentSource interface {
	Fetch(ctx context.Context, postID, articleID string) ([]crawler.Comment, error)
}

// ReactionSource loads the article-level vote summary.
type ReactionSource interface {
	Fetch(ctx context.Context, articleID string) (crawler.ReactionSummary, error)
}

// AudioSource discovers podcast URLs for a parsed page.
type AudioSource interface {
	Resolve(ctx context.Context, doc *goquery.Selection, postID string) []string
}

// MediaSaver downloads one file and returns its relative path, or "" if it
// was not saved.
type MediaSaver interface {
	Download(ctx context.Context, rawURL, folder, filename string) string
}

// Config holds the parser's tunables.
type Config struct {
	PageTimeout         time.Duration
	EngagementThreshold int
	DataDir             string
	AudioDir            string
	ImagesDir           string
	Topic               string
	RunID               string
}

// Deps bundles the collaborators a Parser needs. Index and Publisher are
// optional.
type Deps struct {
	Fetcher   crawler.Fetcher
	Comments  CommentSource
	Reactions ReactionSource
	Audio     AudioSource
	Media     MediaSaver
	Store     crawler.BlobStore
	Stats     *crawler.Stats
	Selectors crawler.Selectors
	Index     crawler.PostIndex
	Publisher crawler.Publisher
	Clock     crawler.Clock
}

// Parser orchestrates the extraction of a single article.
type Parser struct {
	deps   Deps
	cfg    Config
	logger *zap.Logger
}

// New constructs a Parser.
func New(deps Deps, cfg Config, logger *zap.Logger) *Parser {
	if cfg.DataDir == "" {
		cfg.DataDir = "data"
	}
	if cfg.AudioDir == "" {
		cfg.AudioDir = "audio"
	}
	if cfg.ImagesDir == "" {
		cfg.ImagesDir = "images"
	}
	if deps.Stats == nil {
		deps.Stats = crawler.NewStats()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Parser{deps: deps, cfg: cfg, logger: logger}
}

// Parse fetches and persists the article at rawURL. It reports whether a
// record was written. Failures never escape: identity, status and threshold
// misses are skipped quietly, anything else is counted as an error.
func (p *Parser) Parse(ctx context.Context, rawURL, category string, mode Mode) (saved bool) {
	postID, err := crawler.PostID(rawURL)
	if err != nil {
		p.logger.Debug("skipping url without post id", zap.Error(err))
		metrics.ObservePost(category, metrics.OutcomeSkipped)
		return false
	}
	logger := p.logger.With(zap.String("post_id", postID), zap.String("category", category), zap.Stringer("mode", mode))
	logger.Info("parsing post", zap.String("url", rawURL))

	ctx, span := otel.Tracer(tracerName).Start(ctx, "post.parse")
	span.SetAttributes(
		attribute.String("post.id", postID),
		attribute.String("post.category", category),
		attribute.String("post.mode", mode.String()),
	)
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			span.SetStatus(codes.Error, "panic")
			logger.Error("post parser panicked", zap.Any("panic", r))
			p.deps.Stats.AddError()
			metrics.ObservePost(category, metrics.OutcomeError)
			saved = false
		}
	}()

	summary, err := p.parse(ctx, logger, rawURL, postID, category, mode)
	switch {
	case err == nil:
		metrics.ObservePost(category, metrics.OutcomeSaved)
		p.announce(ctx, logger, summary)
		return true
	case errors.Is(err, crawler.ErrBelowThreshold):
		logger.Debug("post below engagement threshold")
		metrics.ObservePost(category, metrics.OutcomeBelowThreshold)
	case errors.Is(err, crawler.ErrHTTPStatus):
		logger.Warn("failed to fetch post", zap.Error(err))
		metrics.ObservePost(category, metrics.OutcomeSkipped)
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Error("error parsing post", zap.Error(err))
		p.deps.Stats.AddError()
		metrics.ObservePost(category, metrics.OutcomeError)
	}
	return false
}

func (p *Parser) parse(
	ctx context.Context,
	logger *zap.Logger,
	rawURL, postID, category string,
	mode Mode,
) (crawler.PostSummary, error) {
	resp, err := p.deps.Fetcher.Fetch(ctx, crawler.FetchRequest{URL: rawURL, Timeout: p.cfg.PageTimeout})
	if err != nil {
		return crawler.PostSummary{}, fmt.Errorf("fetch page: %w", err)
	}
	if !resp.OK() {
		return crawler.PostSummary{}, crawler.StatusError(resp.StatusCode, rawURL)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return crawler.PostSummary{}, fmt.Errorf("parse html: %w", err)
	}
	root := doc.Selection
	articleID := p.deps.Selectors.ArticleID.Attr(root, "value")
	if articleID == "" {
		articleID = postID
	}

	comments, reactions, err := p.engagement(ctx, logger, postID, articleID, mode)
	if err != nil {
		return crawler.PostSummary{}, err
	}

	var content string
	contentDiv := p.deps.Selectors.Content.First(root)
	if contentDiv != nil {
		p.deps.Selectors.Garbage.Remove(contentDiv)
		content = crawler.StrippedText(contentDiv)
	}

	audioPaths := p.downloadAudio(ctx, root, postID)
	if contentDiv != nil {
		p.downloadImages(ctx, contentDiv, postID)
	}

	record := crawler.PostRecord{
		PostID:           postID,
		ArticleID:        articleID,
		Title:            p.deps.Selectors.Title.Text(root, defaultTitle),
		Content:          content,
		Author:           p.deps.Selectors.Author.Text(root, defaultPlaceholder),
		Date:             p.deps.Selectors.Date.Text(root, defaultPlaceholder),
		Category:         category,
		ArticleReactions: reactions,
		AudioPodcast:     audioPaths,
		Comments:         comments,
	}

	if p.deps.Stats.RecordSaved(len(comments), p.cfg.EngagementThreshold) {
		logger.Info("high comment post found", zap.Int("comments", len(comments)))
	}

	uri, err := p.persist(ctx, record)
	if err != nil {
		return crawler.PostSummary{}, err
	}
	logger.Info("post saved", zap.String("uri", uri), zap.Int("comments", len(comments)), zap.Int("audio", len(audioPaths)))

	return crawler.PostSummary{
		RunID:        p.cfg.RunID,
		PostID:       postID,
		ArticleID:    articleID,
		URL:          rawURL,
		Category:     category,
		Title:        record.Title,
		CommentCount: len(comments),
		AudioCount:   len(audioPaths),
		RecordURI:    uri,
		ContentHash:  sha256.Hex([]byte(content)),
		SavedAt:      p.now(),
	}, nil
}

// engagement loads comments and reactions. In check-only mode comments are
// read first so a quiet article costs no reaction call.
func (p *Parser) engagement(
	ctx context.Context,
	logger *zap.Logger,
	postID, articleID string,
	mode Mode,
) ([]crawler.Comment, crawler.ReactionSummary, error) {
	if mode == ModeCheckOnly {
		comments := p.comments(ctx, logger, postID, articleID)
		if len(comments) <= p.cfg.EngagementThreshold {
			return nil, crawler.ReactionSummary{}, fmt.Errorf("%d comments: %w", len(comments), crawler.ErrBelowThreshold)
		}
		return comments, p.reactions(ctx, logger, articleID), nil
	}

	var (
		comments  []crawler.Comment
		reactions crawler.ReactionSummary
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return guard(func() { comments = p.comments(gctx, logger, postID, articleID) })
	})
	g.Go(func() error {
		return guard(func() { reactions = p.reactions(gctx, logger, articleID) })
	})
	if err := g.Wait(); err != nil {
		return nil, crawler.ReactionSummary{}, err
	}
	return comments, reactions, nil
}

// guard turns a panic inside a fan-out goroutine into an error.
func guard(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	fn()
	return nil
}

func (p *Parser) comments(ctx context.Context, logger *zap.Logger, postID, articleID string) []crawler.Comment {
	comments, err := p.deps.Comments.Fetch(ctx, postID, articleID)
	if err != nil {
		logger.Warn("comment fetch failed", zap.String("article_id", articleID), zap.Error(err))
		return []crawler.Comment{}
	}
	if comments == nil {
		comments = []crawler.Comment{}
	}
	logger.Info("comments fetched", zap.Int("count", len(comments)))
	return comments
}

func (p *Parser) reactions(ctx context.Context, logger *zap.Logger, articleID string) crawler.ReactionSummary {
	reactions, err := p.deps.Reactions.Fetch(ctx, articleID)
	if err != nil {
		logger.Warn("reaction fetch failed", zap.String("article_id", articleID), zap.Error(err))
		return crawler.ReactionSummary{}
	}
	return reactions
}

// downloadAudio saves every resolved URL as {postId}_{i}.{ext}. Existing files
// are overwritten.
func (p *Parser) downloadAudio(ctx context.Context, root *goquery.Selection, postID string) []string {
	paths := []string{}
	if p.deps.Audio == nil {
		return paths
	}
	for i, audioURL := range p.deps.Audio.Resolve(ctx, root, postID) {
		ext := crawler.FileExtension(audioURL)
		if ext == "" {
			p.logger.Warn("skipping audio without file extension", zap.String("post_id", postID), zap.String("url", audioURL))
			continue
		}
		filename := fmt.Sprintf("%s_%d.%s", postID, i, ext)
		if saved := p.deps.Media.Download(ctx, audioURL, p.cfg.AudioDir, filename); saved != "" {
			paths = append(paths, saved)
		}
	}
	if len(paths) > 0 {
		p.deps.Stats.AddAudioPost()
	}
	return paths
}

// downloadImages saves absolute image URLs from the article body, preferring
// the lazy-load attribute. Indexes follow document order, so skipped images
// leave gaps.
func (p *Parser) downloadImages(ctx context.Context, content *goquery.Selection, postID string) {
	folder := path.Join(p.cfg.ImagesDir, postID)
	content.Find("img").Each(func(i int, img *goquery.Selection) {
		src := strings.TrimSpace(img.AttrOr("data-src", ""))
		if src == "" {
			src = strings.TrimSpace(img.AttrOr("src", ""))
		}
		if !strings.HasPrefix(src, "http") {
			return
		}
		p.deps.Media.Download(ctx, src, folder, fmt.Sprintf("img_%d.jpg", i))
	})
}

// persist writes the record as 4-space indented JSON with non-ASCII text kept
// as is.
func (p *Parser) persist(ctx context.Context, record crawler.PostRecord) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(record); err != nil {
		return "", fmt.Errorf("encode record: %w", err)
	}
	recordPath := path.Join(p.cfg.DataDir, record.PostID+".json")
	uri, err := p.deps.Store.PutObject(ctx, recordPath, "application/json; charset=utf-8", bytes.NewReader(bytes.TrimRight(buf.Bytes(), "\n")))
	if err != nil {
		return "", fmt.Errorf("write record: %w", err)
	}
	return uri, nil
}

// announce indexes and publishes a saved post. Failures are logged only.
func (p *Parser) announce(ctx context.Context, logger *zap.Logger, summary crawler.PostSummary) {
	if p.deps.Index != nil {
		if err := p.deps.Index.IndexPost(ctx, summary); err != nil {
			logger.Warn("index post failed", zap.Error(err))
		}
	}
	if p.deps.Publisher == nil || p.cfg.Topic == "" {
		return
	}
	msgID, err := p.deps.Publisher.Publish(ctx, p.cfg.Topic, summary)
	if err != nil {
		logger.Warn("publish post failed", zap.Error(err))
		return
	}
	logger.Debug("post published", zap.String("message_id", msgID), zap.String("topic", p.cfg.Topic))
}

func (p *Parser) now() time.Time {
	if p.deps.Clock == nil {
		return time.Now().UTC()
	}
	return p.deps.Clock.Now()
}
