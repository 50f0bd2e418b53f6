package errors

import "errors"

// Pre-run validation errors. A sync run never starts when one of these
// applies.
var (
	ErrSyncInProgress  = errors.New("a sync run is already in progress")
	ErrNoDestination   = errors.New("no destination root selected")
	ErrUploadsDisabled = errors.New("uploads are disabled by the server")
	ErrNoLocalFolder   = errors.New("folder source selected but no local folder chosen")
)

// Server/transport errors.
var (
	ErrAPIRequest  = errors.New("API request failed")
	ErrAPIResponse = errors.New("unexpected API response")

	// ErrOffsetConflict means the server's recorded offset for a resumable
	// upload is behind ours and the gap cannot be reconciled.
	ErrOffsetConflict = errors.New("unresolvable upload offset mismatch")
)
