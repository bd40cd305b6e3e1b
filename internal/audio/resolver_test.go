package audio

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/tuoitre-crawler/internal/crawler"
	collyfetcher "github.com/JakeFAU/tuoitre-crawler/internal/fetcher/colly"
)

const fixture = `<html><head>
<meta property="article:published_time" content="2024-05-01T08:30:00+07:00">
</head><body>
<div class="detail-content"><audio src="/a.mp3"></audio><p>Nội dung</p></div>
</body></html>`

func TestCandidatesOrder(t *testing.T) {
	t.Parallel()

	got := Candidates("https://tts.mediacdn.vn/", [3]string{"2024", "05", "01"}, "20240501083015123",
		[]string{"nu", "nam"}, []string{"m4a", "mp3"})
	require.Equal(t, []string{
		"https://tts.mediacdn.vn/2024/05/01/tuoitre-nu-20240501083015123.m4a",
		"https://tts.mediacdn.vn/2024/05/01/tuoitre-nu-20240501083015123.mp3",
		"https://tts.mediacdn.vn/2024/05/01/tuoitre-nam-20240501083015123.m4a",
		"https://tts.mediacdn.vn/2024/05/01/tuoitre-nam-20240501083015123.mp3",
	}, got)
}

func TestPublishedDate(t *testing.T) {
	t.Parallel()

	date, ok := publishedDate("2024-05-01")
	require.True(t, ok)
	assert.Equal(t, [3]string{"2024", "05", "01"}, date)

	_, ok = publishedDate("")
	assert.False(t, ok)
	_, ok = publishedDate("01/05/2024")
	assert.False(t, ok)
}

func TestResolveEmbeddedAndProbed(t *testing.T) {
	t.Parallel()

	var probes atomic.Int32
	cdn := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		probes.Add(1)
		assert.Equal(t, http.MethodHead, r.Method)
		if r.URL.Path == "/2024/05/01/tuoitre-nam-1-20240501083015123.mp3" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer cdn.Close()

	resolver := newResolver(cdn.URL)
	urls := resolver.Resolve(context.Background(), parse(t, fixture), "20240501083015123")

	require.Equal(t, []string{
		"https://tuoitre.vn/a.mp3",
		cdn.URL + "/2024/05/01/tuoitre-nam-1-20240501083015123.mp3",
	}, urls)
	require.Equal(t, int32(8), probes.Load())
}

func TestResolveSkipsProbeWithoutDate(t *testing.T) {
	t.Parallel()

	var probes atomic.Int32
	cdn := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		probes.Add(1)
	}))
	defer cdn.Close()

	doc := parse(t, `<html><body><p>no audio</p></body></html>`)
	urls := newResolver(cdn.URL).Resolve(context.Background(), doc, "20240501083015123")

	require.Empty(t, urls)
	require.Zero(t, probes.Load())
}

func TestResolveTreatsProbeErrorsAsMissing(t *testing.T) {
	t.Parallel()

	cdn := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	cdnURL := cdn.URL
	cdn.Close()

	urls := newResolver(cdnURL).Resolve(context.Background(), parse(t, fixture), "20240501083015123")
	require.Equal(t, []string{"https://tuoitre.vn/a.mp3"}, urls)
}

func TestDedupe(t *testing.T) {
	t.Parallel()

	require.Equal(t, []string{"a", "b"}, dedupe([]string{"a", "b", "a"}))
}

func newResolver(cdnBase string) *Resolver {
	defaults := crawler.DefaultSelectors()
	return New(
		collyfetcher.New(collyfetcher.Config{Timeout: time.Second}),
		Config{
			BaseURL:          "https://tuoitre.vn",
			CDNBase:          cdnBase,
			Voices:           []string{"nu", "nam", "nam-1", "nu-1"},
			Formats:          []string{"m4a", "mp3"},
			ProbeTimeout:     time.Second,
			ProbeConcurrency: 4,
			AudioTags:        defaults.Audio,
			PublishedTime:    defaults.PublishedTime,
		},
		zap.NewNop(),
	)
}

func parse(t *testing.T, body string) *goquery.Selection {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	require.NoError(t, err)
	return doc.Selection
}
