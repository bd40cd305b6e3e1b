package crawler

import (
	"net/http"
	"net/url"
	"time"
)

// PostRecord is the normalized article written to data/{postId}.json.
type PostRecord struct {
	PostID           string          `json:"postId"`
	ArticleID        string          `json:"articleId"`
	Title            string          `json:"title"`
	Content          string          `json:"content"`
	Author           string          `json:"author"`
	Date             string          `json:"date"`
	Category         string          `json:"category"`
	ArticleReactions ReactionSummary `json:"article_reactions"`
	AudioPodcast     []string        `json:"audio_podcast"`
	Comments         []Comment       `json:"comments"`
}

// Comment is a top-level reader comment with its first level of replies.
type Comment struct {
	CommentID     string         `json:"commentId"`
	Author        string         `json:"author"`
	Text          string         `json:"text"`
	Date          string         `json:"date"`
	VoteReactList map[string]int `json:"vote_react_list"`
	Replies       []Reply        `json:"replies"`
}

// Reply mirrors Comment without a date.
type Reply struct {
	CommentID     string         `json:"commentId"`
	Author        string         `json:"author"`
	Text          string         `json:"text"`
	VoteReactList map[string]int `json:"vote_react_list"`
}

// ReactionSummary buckets article-level votes by type code.
type ReactionSummary struct {
	GeneralVotes   int `json:"general_votes"`
	StarRatings    int `json:"star_ratings"`
	OtherTypeVotes int `json:"other_type_votes"`
}

// PostSummary is the compact row announced and indexed after a record is saved.
type PostSummary struct {
	RunID        string    `json:"run_id"`
	PostID       string    `json:"post_id"`
	ArticleID    string    `json:"article_id"`
	URL          string    `json:"url"`
	Category     string    `json:"category"`
	Title        string    `json:"title"`
	CommentCount int       `json:"comment_count"`
	AudioCount   int       `json:"audio_count"`
	RecordURI    string    `json:"record_uri"`
	ContentHash  string    `json:"content_sha256"`
	SavedAt      time.Time `json:"saved_at"`
}

// FetchRequest captures everything needed to issue one HTTP request.
type FetchRequest struct {
	Method  string
	URL     string
	Query   url.Values
	Headers http.Header
	Timeout time.Duration
}

// FetchResponse is the result returned by a Fetcher implementation.
type FetchResponse struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}

// OK reports whether the response carried a 2xx status.
func (r FetchResponse) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}
