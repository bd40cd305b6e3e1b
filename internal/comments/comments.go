// Package comments fetches and normalizes reader comments for an article.
package comments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/tuoitre-crawler/internal/crawler"
)

// reactionNames maps the API's numeric reaction codes to their names.
var reactionNames = map[string]string{
	"1":  "like",
	"3":  "love",
	"5":  "haha",
	"7":  "sad",
	"9":  "wow",
	"11": "angry",
	"13": "star",
}

// Config controls the comment API request.
type Config struct {
	APIURL   string
	AppKey   string
	BaseURL  string
	Timeout  time.Duration
	PageSize int
	SortCode int
}

// Fetcher retrieves the first page of comments for an article.
type Fetcher struct {
	fetcher crawler.Fetcher
	cfg     Config
	logger  *zap.Logger
}

// New constructs a Fetcher.
func New(fetcher crawler.Fetcher, cfg Config, logger *zap.Logger) *Fetcher {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 100
	}
	if cfg.SortCode == 0 {
		cfg.SortCode = 2
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{fetcher: fetcher, cfg: cfg, logger: logger}
}

type apiEnvelope struct {
	Data json.RawMessage `json:"Data"`
}

type apiComment struct {
	ID            looseString        `json:"id"`
	SenderName    looseString        `json:"sender_fullname"`
	Content       looseString        `json:"content"`
	CreatedDate   looseString        `json:"created_date"`
	Reactions     looseCounts        `json:"reactions"`
	ChildComments looseList          `json:"child_comments"`
}

// Fetch requests page 1 of the comment list. Only the first page is read even
// when the API reports more.
func (f *Fetcher) Fetch(ctx context.Context, postID, articleID string) ([]crawler.Comment, error) {
	f.logger.Debug("fetching comments", zap.String("post_id", postID), zap.String("article_id", articleID))

	resp, err := f.fetcher.Fetch(ctx, crawler.FetchRequest{
		URL: f.cfg.APIURL,
		Query: url.Values{
			"appKey":    {f.cfg.AppKey},
			"pageindex": {"1"},
			"pagesize":  {strconv.Itoa(f.cfg.PageSize)},
			"objId":     {articleID},
			"objType":   {"1"},
			"sort":      {strconv.Itoa(f.cfg.SortCode)},
		},
		Headers: http.Header{
			"Accept":           {"application/json, text/javascript, */*; q=0.01"},
			"X-Requested-With": {"XMLHttpRequest"},
			"Referer":          {fmt.Sprintf("%s/%s.htm", strings.TrimRight(f.cfg.BaseURL, "/"), articleID)},
		},
		Timeout: f.cfg.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("fetch comments: %w", err)
	}
	if !resp.OK() {
		return nil, crawler.StatusError(resp.StatusCode, f.cfg.APIURL)
	}

	raw, err := decodeData(resp.Body)
	if err != nil {
		return nil, err
	}
	comments := make([]crawler.Comment, 0, len(raw))
	for i, item := range raw {
		var c apiComment
		if err := json.Unmarshal(item, &c); err != nil {
			f.logger.Warn("skipping malformed comment",
				zap.String("post_id", postID), zap.Int("index", i), zap.Error(err))
			continue
		}
		comments = append(comments, normalize(c))
	}
	f.logger.Debug("comments fetched", zap.String("post_id", postID), zap.Int("count", len(comments)))
	return comments, nil
}

// decodeData unwraps the Data field, which the API sometimes ships as a
// JSON-encoded string instead of an inline list.
func decodeData(body []byte) ([]json.RawMessage, error) {
	var env apiEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode comment envelope: %w", err)
	}
	data := bytes.TrimSpace(env.Data)
	if len(data) > 0 && data[0] == '"' {
		var inner string
		if err := json.Unmarshal(data, &inner); err != nil {
			return nil, fmt.Errorf("decode comment data string: %w", err)
		}
		data = bytes.TrimSpace([]byte(inner))
	}
	if len(data) == 0 || data[0] != '[' {
		return nil, fmt.Errorf("comment data: %w", crawler.ErrUnexpectedPayload)
	}
	var out []json.RawMessage
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode comment list: %w", err)
	}
	return out, nil
}

func normalize(c apiComment) crawler.Comment {
	comment := crawler.Comment{
		CommentID:     string(c.ID),
		Author:        string(c.SenderName),
		Text:          string(c.Content),
		Date:          string(c.CreatedDate),
		VoteReactList: MapReactions(c.Reactions),
		Replies:       make([]crawler.Reply, 0, len(c.ChildComments)),
	}
	for _, r := range c.ChildComments {
		comment.Replies = append(comment.Replies, crawler.Reply{
			CommentID:     string(r.ID),
			Author:        string(r.SenderName),
			Text:          string(r.Content),
			VoteReactList: MapReactions(r.Reactions),
		})
	}
	return comment
}

// MapReactions names the known reaction codes and keeps positive counts only.
func MapReactions(raw map[string]float64) map[string]int {
	out := make(map[string]int)
	for code, count := range raw {
		name, ok := reactionNames[code]
		if !ok || count <= 0 {
			continue
		}
		out[name] = int(count)
	}
	return out
}

// looseString accepts a JSON string, number or null.
type looseString string

func (s *looseString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*s = ""
	case len(b) > 0 && b[0] == '"':
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = looseString(v)
	default:
		*s = looseString(b)
	}
	return nil
}

// looseCounts accepts a reaction map whose counts may be numbers or numeric
// strings. Anything other than an object, such as [] or null, is empty, and
// entries that are not numbers are dropped.
type looseCounts map[string]float64

func (m *looseCounts) UnmarshalJSON(b []byte) error {
	*m = looseCounts{}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil
	}
	for code, v := range raw {
		var n float64
		if err := json.Unmarshal(v, &n); err == nil {
			(*m)[code] = n
			continue
		}
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			continue
		}
		if n, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			(*m)[code] = n
		}
	}
	return nil
}

// looseList decodes replies one by one and drops the ones that do not parse.
// A value that is not a list yields no replies.
type looseList []apiComment

func (l *looseList) UnmarshalJSON(b []byte) error {
	*l = nil
	var items []json.RawMessage
	if err := json.Unmarshal(b, &items); err != nil {
		return nil
	}
	for _, item := range items {
		var c apiComment
		if err := json.Unmarshal(item, &c); err == nil {
			*l = append(*l, c)
		}
	}
	return nil
}
