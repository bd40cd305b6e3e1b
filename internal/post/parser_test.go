package post

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/tuoitre-crawler/internal/crawler"
	collyfetcher "github.com/JakeFAU/tuoitre-crawler/internal/fetcher/colly"
	"github.com/JakeFAU/tuoitre-crawler/internal/publisher/memory"
	"github.com/JakeFAU/tuoitre-crawler/internal/storage/local"
)

const postID = "20240501083015123"

const articlePage = `<html><head>
<meta property="article:published_time" content="2024-05-01T08:30:00+07:00">
</head><body>
<input type="hidden" id="hdNewsId" value="2024050108">
<h1 class="detail-title">  Tiêu đề bài viết </h1>
<div class="detail-author"><span class="name">Hoàng Lan</span></div>
<div class="detail-time">01/05/2024 08:30 GMT+7</div>
<div class="detail-content">
  <p>Đoạn một.</p>
  <div class="relate-container"><a href="/x.htm">Tin liên quan</a></div>
  <script>var ads = 1;</script>
  <img data-src="https://cdn.tuoitre.vn/lazy.jpg" src="data:image/gif;base64,R0lGOD">
  <img src="/relative.jpg">
  <img src="https://cdn.tuoitre.vn/direct.jpg">
  <p>Đoạn hai.</p>
</div>
</body></html>`

type fakeComments struct {
	mu      sync.Mutex
	calls   int
	result  []crawler.Comment
	err     error
	panicOn bool
}

func (f *fakeComments) Fetch(_ context.Context, _, _ string) ([]crawler.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.panicOn {
		panic("comment api exploded")
	}
	return f.result, f.err
}

type fakeReactions struct {
	mu     sync.Mutex
	calls  int
	result crawler.ReactionSummary
	err    error
}

func (f *fakeReactions) Fetch(_ context.Context, _ string) (crawler.ReactionSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.result, f.err
}

type fakeAudio struct {
	urls  []string
	calls int
}

func (f *fakeAudio) Resolve(_ context.Context, _ *goquery.Selection, _ string) []string {
	f.calls++
	return f.urls
}

type fakeMedia struct {
	mu      sync.Mutex
	calls   []string
	failing map[string]bool
}

func (f *fakeMedia) Download(_ context.Context, rawURL, folder, filename string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	rel := path.Join(folder, filename)
	f.calls = append(f.calls, rawURL+" -> "+rel)
	if f.failing[rawURL] {
		return ""
	}
	return rel
}

type fakeIndex struct{ summaries []crawler.PostSummary }

func (f *fakeIndex) IndexPost(_ context.Context, s crawler.PostSummary) error {
	f.summaries = append(f.summaries, s)
	return nil
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type harness struct {
	parser    *Parser
	dir       string
	stats     *crawler.Stats
	comments  *fakeComments
	reactions *fakeReactions
	audio     *fakeAudio
	media     *fakeMedia
	index     *fakeIndex
	publisher *memory.Publisher
	siteURL   string
}

func newHarness(t *testing.T, handler http.Handler) *harness {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	store, err := local.New(local.Config{BaseDir: dir})
	require.NoError(t, err)

	h := &harness{
		dir:       dir,
		stats:     crawler.NewStats(),
		comments:  &fakeComments{result: makeComments(3)},
		reactions: &fakeReactions{result: crawler.ReactionSummary{GeneralVotes: 10, StarRatings: 5, OtherTypeVotes: 2}},
		audio:     &fakeAudio{urls: []string{"https://tuoitre.vn/a.mp3", "https://tts.mediacdn.vn/2024/05/01/tuoitre-nu-" + postID + ".m4a?v=1"}},
		media:     &fakeMedia{failing: map[string]bool{}},
		index:     &fakeIndex{},
		publisher: memory.New(),
		siteURL:   srv.URL,
	}
	h.parser = New(Deps{
		Fetcher:   collyfetcher.New(collyfetcher.Config{Timeout: time.Second}),
		Comments:  h.comments,
		Reactions: h.reactions,
		Audio:     h.audio,
		Media:     h.media,
		Store:     store,
		Stats:     h.stats,
		Selectors: crawler.DefaultSelectors(),
		Index:     h.index,
		Publisher: h.publisher,
		Clock:     fixedClock{t: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)},
	}, Config{
		PageTimeout:         time.Second,
		EngagementThreshold: 20,
		Topic:               "posts",
		RunID:               "run-1",
	}, zap.NewNop())
	return h
}

func articleHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(articlePage))
	})
}

func (h *harness) articleURL() string {
	return h.siteURL + "/thoi-su/bai-viet-thu-nghiem-" + postID + ".htm"
}

func (h *harness) readRecord(t *testing.T) map[string]any {
	t.Helper()
	// #nosec G304 -- test reads from the controlled temp directory.
	raw, err := os.ReadFile(filepath.Join(h.dir, "data", postID+".json"))
	require.NoError(t, err)
	var record map[string]any
	require.NoError(t, json.Unmarshal(raw, &record))
	return record
}

func makeComments(n int) []crawler.Comment {
	out := make([]crawler.Comment, 0, n)
	for i := range n {
		out = append(out, crawler.Comment{
			CommentID:     strconv.Itoa(i),
			Author:        "Độc giả",
			Text:          "Bình luận",
			Date:          "2024-05-01",
			VoteReactList: map[string]int{},
			Replies:       []crawler.Reply{},
		})
	}
	return out
}

func TestParseNormalWritesRecord(t *testing.T) {
	h := newHarness(t, articleHandler())

	require.True(t, h.parser.Parse(context.Background(), h.articleURL(), "thoi-su", ModeNormal))

	record := h.readRecord(t)
	assert.Equal(t, postID, record["postId"])
	assert.Equal(t, "2024050108", record["articleId"])
	assert.Equal(t, "Tiêu đề bài viết", record["title"])
	assert.Equal(t, "Hoàng Lan", record["author"])
	assert.Equal(t, "01/05/2024 08:30 GMT+7", record["date"])
	assert.Equal(t, "thoi-su", record["category"])
	assert.Equal(t, "Đoạn một.Đoạn hai.", record["content"])
	assert.Equal(t, map[string]any{"general_votes": 10.0, "star_ratings": 5.0, "other_type_votes": 2.0}, record["article_reactions"])
	assert.Equal(t, []any{"audio/" + postID + "_0.mp3", "audio/" + postID + "_1.m4a"}, record["audio_podcast"])
	assert.Len(t, record["comments"], 3)

	assert.ElementsMatch(t, []string{
		"https://tuoitre.vn/a.mp3 -> audio/" + postID + "_0.mp3",
		"https://tts.mediacdn.vn/2024/05/01/tuoitre-nu-" + postID + ".m4a?v=1 -> audio/" + postID + "_1.m4a",
		"https://cdn.tuoitre.vn/lazy.jpg -> images/" + postID + "/img_0.jpg",
		"https://cdn.tuoitre.vn/direct.jpg -> images/" + postID + "/img_2.jpg",
	}, h.media.calls)

	snap := h.stats.Snapshot()
	assert.Equal(t, 1, snap.TotalPostsSaved)
	assert.Equal(t, 3, snap.MaxCommentsFound)
	assert.Equal(t, 1, snap.PostsWithAudio)
	assert.Zero(t, snap.Errors)
	assert.False(t, snap.HighCommentPostFound)

	require.Len(t, h.index.summaries, 1)
	assert.Equal(t, "run-1", h.index.summaries[0].RunID)
	assert.Equal(t, 2, h.index.summaries[0].AudioCount)
	assert.Len(t, h.index.summaries[0].ContentHash, 64)
	msgs := h.publisher.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "posts", msgs[0].Topic)
	assert.Equal(t, h.index.summaries[0], msgs[0].Payload)
}

func TestParseRecordUsesFourSpaceIndentAndRawUnicode(t *testing.T) {
	h := newHarness(t, articleHandler())
	require.True(t, h.parser.Parse(context.Background(), h.articleURL(), "thoi-su", ModeNormal))

	// #nosec G304 -- test reads from the controlled temp directory.
	raw, err := os.ReadFile(filepath.Join(h.dir, "data", postID+".json"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), "\n    \"postId\": \""+postID+"\"")
	assert.Contains(t, string(raw), "Tiêu đề bài viết")
}

func TestParseSkipsURLWithoutIdentity(t *testing.T) {
	hits := 0
	h := newHarness(t, http.HandlerFunc(func(http.ResponseWriter, *http.Request) { hits++ }))

	require.False(t, h.parser.Parse(context.Background(), h.siteURL+"/thoi-su/trang-5.htm", "thoi-su", ModeNormal))
	assert.Zero(t, hits)
	assert.Zero(t, h.comments.calls)
	assert.Zero(t, h.stats.Snapshot().Errors)
}

func TestParseNonSuccessStatusIsNotAnError(t *testing.T) {
	h := newHarness(t, http.NotFoundHandler())

	require.False(t, h.parser.Parse(context.Background(), h.articleURL(), "thoi-su", ModeNormal))
	assert.Zero(t, h.stats.Snapshot().Errors)
	assert.Zero(t, h.comments.calls)
	assert.NoDirExists(t, filepath.Join(h.dir, "data"))
}

func TestParseTransportFailureCountsError(t *testing.T) {
	h := newHarness(t, articleHandler())
	closed := httptest.NewServer(http.NotFoundHandler())
	closed.Close()

	require.False(t, h.parser.Parse(context.Background(), closed.URL+"/a-"+postID+".htm", "thoi-su", ModeNormal))
	assert.Equal(t, 1, h.stats.Snapshot().Errors)
}

func TestParseCheckOnlyBelowThreshold(t *testing.T) {
	h := newHarness(t, articleHandler())
	h.comments.result = makeComments(20)

	require.False(t, h.parser.Parse(context.Background(), h.articleURL(), "ban-doc-hunt", ModeCheckOnly))
	assert.Equal(t, 1, h.comments.calls)
	assert.Zero(t, h.reactions.calls)
	assert.Zero(t, h.audio.calls)
	assert.Empty(t, h.media.calls)
	assert.NoDirExists(t, filepath.Join(h.dir, "data"))

	snap := h.stats.Snapshot()
	assert.Zero(t, snap.TotalPostsSaved)
	assert.Zero(t, snap.Errors)
	assert.False(t, snap.HighCommentPostFound)
}

func TestParseCheckOnlyAboveThresholdLatches(t *testing.T) {
	h := newHarness(t, articleHandler())
	h.comments.result = makeComments(21)

	require.True(t, h.parser.Parse(context.Background(), h.articleURL(), "ban-doc-hunt", ModeCheckOnly))
	assert.Equal(t, 1, h.reactions.calls)

	snap := h.stats.Snapshot()
	assert.True(t, snap.HighCommentPostFound)
	assert.Equal(t, 21, snap.MaxCommentsFound)
	assert.Equal(t, "ban-doc-hunt", h.readRecord(t)["category"])
}

func TestParseDegradesCollaboratorFailures(t *testing.T) {
	h := newHarness(t, articleHandler())
	h.comments.err = errors.New("timeout")
	h.comments.result = nil
	h.reactions.err = errors.New("bad json")
	h.media.failing = map[string]bool{
		"https://tuoitre.vn/a.mp3": true,
		"https://tts.mediacdn.vn/2024/05/01/tuoitre-nu-" + postID + ".m4a?v=1": true,
	}
	h.publisher.FailWith(errors.New("pubsub down"))

	require.True(t, h.parser.Parse(context.Background(), h.articleURL(), "thoi-su", ModeNormal))

	record := h.readRecord(t)
	assert.Equal(t, []any{}, record["comments"])
	assert.Equal(t, []any{}, record["audio_podcast"])
	assert.Equal(t, map[string]any{"general_votes": 0.0, "star_ratings": 0.0, "other_type_votes": 0.0}, record["article_reactions"])

	snap := h.stats.Snapshot()
	assert.Zero(t, snap.PostsWithAudio)
	assert.Zero(t, snap.Errors)
}

func TestParseDefaultsForMissingFields(t *testing.T) {
	h := newHarness(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html><body><p>bare</p></body></html>`))
	}))
	h.audio.urls = nil

	require.True(t, h.parser.Parse(context.Background(), h.articleURL(), "the-gioi", ModeNormal))

	record := h.readRecord(t)
	assert.Equal(t, postID, record["articleId"])
	assert.Equal(t, "No Title", record["title"])
	assert.Equal(t, "Unknown", record["author"])
	assert.Equal(t, "Unknown", record["date"])
	assert.Equal(t, "", record["content"])
	assert.Empty(t, h.media.calls)
}

func TestParseRecoversPanics(t *testing.T) {
	h := newHarness(t, articleHandler())
	h.comments.panicOn = true

	require.False(t, h.parser.Parse(context.Background(), h.articleURL(), "thoi-su", ModeCheckOnly))
	assert.Equal(t, 1, h.stats.Snapshot().Errors)
}

func TestParseOverwritesExistingRecord(t *testing.T) {
	h := newHarness(t, articleHandler())
	require.True(t, h.parser.Parse(context.Background(), h.articleURL(), "thoi-su", ModeNormal))
	require.True(t, h.parser.Parse(context.Background(), h.articleURL(), "phap-luat", ModeNormal))

	assert.Equal(t, "phap-luat", h.readRecord(t)["category"])
	assert.Equal(t, 2, h.stats.Snapshot().TotalPostsSaved)
}

func TestModeString(t *testing.T) {
	assert.Equal(t, "normal", ModeNormal.String())
	assert.Equal(t, "check_only", ModeCheckOnly.String())
}

func TestParseRecoversPanicsInFanOut(t *testing.T) {
	h := newHarness(t, articleHandler())
	h.comments.panicOn = true

	require.False(t, h.parser.Parse(context.Background(), h.articleURL(), "thoi-su", ModeNormal))
	assert.Equal(t, 1, h.stats.Snapshot().Errors)
	assert.NoDirExists(t, filepath.Join(h.dir, "data"))
}

func TestParseSkipsAudioWithoutExtension(t *testing.T) {
	h := newHarness(t, articleHandler())
	h.audio.urls = []string{"https://tuoitre.vn/audio/stream?id=1", "https://tuoitre.vn/a.mp3"}

	require.True(t, h.parser.Parse(context.Background(), h.articleURL(), "thoi-su", ModeNormal))

	record := h.readRecord(t)
	assert.Equal(t, []any{"audio/" + postID + "_1.mp3"}, record["audio_podcast"])
	for _, call := range h.media.calls {
		assert.NotContains(t, call, "stream")
	}
	assert.Equal(t, 1, h.stats.Snapshot().PostsWithAudio)
}
