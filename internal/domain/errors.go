package domain

import "errors"

// Error kind sentinels. Collaborator clients and repositories wrap these with
// %w so callers can classify a failure with errors.Is without depending on a
// specific package's concrete error type.
var (
	// ErrTransport covers network failure, timeout, or a 5xx from an upstream
	// collaborator. Recovery: retried on the next tick; state is never poisoned.
	ErrTransport = errors.New("transport error")

	// ErrAuthRejected means an upstream rejected the credentials presented to
	// it. The orchestrator only logs this; it never mutates WatchUser.Active.
	ErrAuthRejected = errors.New("auth rejected")

	// ErrNotFound is expected during races (job gone, torrent gone) and is
	// treated as success when reconciling.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey signals a concurrent tick would violate the
	// torrent_hash uniqueness invariant; the current candidate is abandoned.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrMalformedResponse means an upstream response could not be parsed
	// even by a tolerant decoder. The caller drops that one entry and
	// continues.
	ErrMalformedResponse = errors.New("malformed response")

	// ErrScan means the scanner was unavailable or returned something other
	// than a verdict. The job is left untouched and retried next tick.
	ErrScan = errors.New("scan error")

	// ErrFilesystem means a move or delete failed. The job is left in place;
	// no automatic destructive retry is attempted.
	ErrFilesystem = errors.New("filesystem error")
)
