package crawler

import (
	"errors"
	"fmt"
)

var (
	// ErrNoIdentity marks URLs that do not carry a usable post id.
	ErrNoIdentity = errors.New("url has no post identity")
	// ErrHTTPStatus marks a completed request with a non-success status.
	ErrHTTPStatus = errors.New("unexpected http status")
	// ErrBelowThreshold marks a check-only parse that did not reach the engagement threshold.
	ErrBelowThreshold = errors.New("comment count below engagement threshold")
	// ErrBodyTooLarge marks a response cut off at the fetcher's body cap.
	ErrBodyTooLarge = errors.New("response body reached size limit")
	// ErrUnexpectedPayload marks JSON that parsed but had the wrong shape.
	ErrUnexpectedPayload = errors.New("unexpected payload shape")
)

// StatusError wraps ErrHTTPStatus with the offending code and URL.
func StatusError(code int, rawURL string) error {
	return fmt.Errorf("%w: %d from %s", ErrHTTPStatus, code, rawURL)
}
