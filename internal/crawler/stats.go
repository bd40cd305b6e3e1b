package crawler

import "sync"

// Stats accumulates run-wide counters. It is shared by every parser
// invocation and is safe for concurrent use.
type Stats struct {
	mu               sync.Mutex
	totalPostsSaved  int
	maxComments      int
	postsWithAudio   int
	errors           int
	highCommentFound bool
}

// StatsSnapshot is an immutable copy of Stats.
type StatsSnapshot struct {
	TotalPostsSaved      int  `json:"total_posts_saved"`
	MaxCommentsFound     int  `json:"max_comments_found"`
	PostsWithAudio       int  `json:"posts_with_audio"`
	Errors               int  `json:"errors"`
	HighCommentPostFound bool `json:"high_comment_post_found"`
}

// NewStats returns zeroed statistics.
func NewStats() *Stats {
	return &Stats{}
}

// RecordSaved notes a post about to be persisted with commentCount comments.
// It reports whether this post crossed the engagement threshold.
func (s *Stats) RecordSaved(commentCount, threshold int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	high := commentCount > threshold
	if high {
		s.highCommentFound = true
	}
	if commentCount > s.maxComments {
		s.maxComments = commentCount
	}
	s.totalPostsSaved++
	return high
}

// AddAudioPost counts a post with at least one saved audio file.
func (s *Stats) AddAudioPost() {
	s.mu.Lock()
	s.postsWithAudio++
	s.mu.Unlock()
}

// AddError counts a post that failed unexpectedly.
func (s *Stats) AddError() {
	s.mu.Lock()
	s.errors++
	s.mu.Unlock()
}

// HighCommentFound reports whether any post so far exceeded the threshold.
func (s *Stats) HighCommentFound() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.highCommentFound
}

// Snapshot copies the current counters.
func (s *Stats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return StatsSnapshot{
		TotalPostsSaved:      s.totalPostsSaved,
		MaxCommentsFound:     s.maxComments,
		PostsWithAudio:       s.postsWithAudio,
		Errors:               s.errors,
		HighCommentPostFound: s.highCommentFound,
	}
}
