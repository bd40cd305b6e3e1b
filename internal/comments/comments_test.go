package comments

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/tuoitre-crawler/internal/crawler"
	collyfetcher "github.com/JakeFAU/tuoitre-crawler/internal/fetcher/colly"
)

const commentList = `[
  {"id": 101, "sender_fullname": "Lan", "content": "Hay quá", "created_date": "2024-05-01T08:00:00",
   "reactions": {"1": 2, "5": 0, "99": 4},
   "child_comments": [
     {"id": "102", "sender_fullname": "Minh", "content": "Đồng ý", "created_date": "2024-05-01T09:00:00",
      "reactions": {"3": 1}}
   ]},
  {"id": 103, "sender_fullname": null, "content": "Ok", "created_date": "2024-05-02T08:00:00"}
]`

func TestMapReactionsDropsUnknownAndZero(t *testing.T) {
	t.Parallel()

	got := MapReactions(map[string]float64{"5": 3, "99": 4, "1": 0})
	require.Equal(t, map[string]int{"haha": 3}, got)
	require.Empty(t, MapReactions(nil))
}

func TestFetchParsesInlineList(t *testing.T) {
	t.Parallel()

	var gotQuery, gotReferer, gotXRW string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		gotReferer = r.Header.Get("Referer")
		gotXRW = r.Header.Get("X-Requested-With")
		_, _ = w.Write([]byte(`{"Data":` + commentList + `}`))
	}))
	defer srv.Close()

	f := newFetcher(srv.URL)
	comments, err := f.Fetch(context.Background(), "20240501083015123", "2024050108")
	require.NoError(t, err)
	require.Len(t, comments, 2)

	first := comments[0]
	assert.Equal(t, "101", first.CommentID)
	assert.Equal(t, "Lan", first.Author)
	assert.Equal(t, "Hay quá", first.Text)
	assert.Equal(t, "2024-05-01T08:00:00", first.Date)
	assert.Equal(t, map[string]int{"like": 2}, first.VoteReactList)
	require.Len(t, first.Replies, 1)
	assert.Equal(t, crawler.Reply{
		CommentID:     "102",
		Author:        "Minh",
		Text:          "Đồng ý",
		VoteReactList: map[string]int{"love": 1},
	}, first.Replies[0])

	assert.Empty(t, comments[1].Author)
	assert.Empty(t, comments[1].Replies)

	assert.Contains(t, gotQuery, "objId=2024050108")
	assert.Contains(t, gotQuery, "pageindex=1")
	assert.Contains(t, gotQuery, "pagesize=100")
	assert.Contains(t, gotQuery, "objType=1")
	assert.Contains(t, gotQuery, "sort=2")
	assert.Contains(t, gotQuery, "appKey=key")
	assert.Equal(t, "https://tuoitre.vn/2024050108.htm", gotReferer)
	assert.Equal(t, "XMLHttpRequest", gotXRW)
}

func TestFetchParsesStringEncodedData(t *testing.T) {
	t.Parallel()

	encoded, err := json.Marshal(commentList)
	require.NoError(t, err)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"Data":` + string(encoded) + `}`))
	}))
	defer srv.Close()

	comments, err := newFetcher(srv.URL).Fetch(context.Background(), "p", "a")
	require.NoError(t, err)
	require.Len(t, comments, 2)
}

func TestFetchKeepsCommentsAroundMalformedOnes(t *testing.T) {
	t.Parallel()

	body := `{"Data":[
	  {"id": 1, "content": "a", "reactions": {"5": 3}},
	  {"id": 2, "content": "b", "reactions": []},
	  "not a comment",
	  {"id": 3, "content": "c", "reactions": {"1": "4", "3": "many", "5": null},
	   "child_comments": [{"id": 4, "reactions": null}, 7]},
	  {"id": 5, "content": "d", "reactions": null, "child_comments": {}}
	]}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	comments, err := newFetcher(srv.URL).Fetch(context.Background(), "p", "a")
	require.NoError(t, err)
	require.Len(t, comments, 4)

	assert.Equal(t, "1", comments[0].CommentID)
	assert.Equal(t, map[string]int{"haha": 3}, comments[0].VoteReactList)
	assert.Equal(t, "2", comments[1].CommentID)
	assert.Empty(t, comments[1].VoteReactList)
	assert.Equal(t, "3", comments[2].CommentID)
	assert.Equal(t, map[string]int{"like": 4}, comments[2].VoteReactList)
	require.Len(t, comments[2].Replies, 1)
	assert.Equal(t, "4", comments[2].Replies[0].CommentID)
	assert.Equal(t, "5", comments[3].CommentID)
	assert.Empty(t, comments[3].Replies)
}

func TestFetchFailuresYieldNoComments(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusInternalServerError, `{"Data":[]}`},
		{"malformed json", http.StatusOK, `{"Data":`},
		{"object data", http.StatusOK, `{"Data":{"id":1}}`},
		{"string non list", http.StatusOK, `{"Data":"{\"id\":1}"}`},
		{"null data", http.StatusOK, `{"Data":null}`},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			comments, err := newFetcher(srv.URL).Fetch(context.Background(), "p", "a")
			require.Error(t, err)
			require.Empty(t, comments)
		})
	}
}

func newFetcher(apiURL string) *Fetcher {
	return New(
		collyfetcher.New(collyfetcher.Config{Timeout: time.Second}),
		Config{APIURL: apiURL, AppKey: "key", BaseURL: "https://tuoitre.vn", Timeout: time.Second},
		zap.NewNop(),
	)
}
