// Package crawler holds the shared vocabulary of the news crawler: normalized
// post records, fetch request/response envelopes, the collaborator interfaces
// wired together by the post parser and category crawler, run statistics, and
// the small URL and selector helpers every extraction step leans on.
package crawler
