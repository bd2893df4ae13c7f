package core

import (
	"errors"
	"fmt"
)

// Error taxonomy for sync runs. Callers branch on these with errors.Is to
// decide between retrying now, retrying later, or requiring manual
// re-authentication.
var (
	// ErrReauthRequired means the upstream item reported an expired
	// credential. The run performed no pagination and no mutation.
	ErrReauthRequired = errors.New("upstream item requires re-authentication")

	// ErrRateLimited means upstream throttled the request. Retryable by
	// the caller after backoff; no ledger mutation happened for the
	// rejected page.
	ErrRateLimited = errors.New("upstream rate limit exceeded")

	// ErrPaginationConflict means upstream invalidated the pagination
	// stream mid-run. Retryable by restarting from the last committed
	// cursor.
	ErrPaginationConflict = errors.New("pagination invalidated by concurrent upstream mutation")

	// ErrUnknownAccount means an added record referenced an account the
	// ledger does not know. The page was rolled back.
	ErrUnknownAccount = errors.New("added transaction references unknown account")

	// ErrTooManyPages is the safety valve against upstream pagination
	// bugs; the run stops rather than loop unboundedly.
	ErrTooManyPages = errors.New("page limit exceeded during sync run")

	// ErrAccountNotFound is returned by ledger reads for an unknown account.
	ErrAccountNotFound = errors.New("account not found")

	// ErrTransactionNotFound is returned by point lookups on the ledger.
	ErrTransactionNotFound = errors.New("transaction not found")
)

// UpstreamError carries the raw detail of a non-retryable upstream failure.
type UpstreamError struct {
	Code    string
	Message string
}

func (e *UpstreamError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("upstream error: %s", e.Message)
	}
	return fmt.Sprintf("upstream error %s: %s", e.Code, e.Message)
}
