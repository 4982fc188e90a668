// Package llm holds the plumbing shared by all AI provider clients: the
// error vocabulary the retry loop keys on, prompt construction, and the
// tolerant decoding of model output.
package llm

import "errors"

var (
	// ErrRateLimited means the provider rejected the call with a rate limit;
	// worth retrying after backoff.
	ErrRateLimited = errors.New("ai provider rate limited")
	// ErrUnavailable covers transport failures and 5xx responses; worth
	// retrying after backoff.
	ErrUnavailable = errors.New("ai provider unavailable")
	// ErrInvalidResponse means the provider answered but the payload could
	// not be parsed as an analysis; the attempt is consumed and retried.
	ErrInvalidResponse = errors.New("ai provider returned invalid response")
)

// IsRetryable reports whether a provider error should consume a retry
// attempt rather than moving straight to the next provider.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrUnavailable) ||
		errors.Is(err, ErrInvalidResponse)
}
