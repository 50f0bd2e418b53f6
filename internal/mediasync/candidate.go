// Package mediasync implements the camera/folder media-sync engine: a
// resumable, chunked, conflict-aware uploader that mirrors local media
// to a remote storage root over the cloud storage API.
package mediasync

import (
	"fmt"
	"strings"

	"github.com/alexjbarnes/media-sync/internal/api"
	"github.com/alexjbarnes/media-sync/internal/pathutil"
)

// Kind selects how a candidate's remote target and wire payloads are
// shaped.
type Kind string

const (
	// KindCamera places files server-side in month buckets beneath the
	// base path.
	KindCamera Kind = "camera"
	// KindFolder mirrors the local folder structure beneath the base path.
	KindFolder Kind = "folder"
)

// ParseKind parses a persisted source string.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindCamera, KindFolder:
		return Kind(s), nil
	default:
		return "", fmt.Errorf("unknown sync source %q", s)
	}
}

// ConflictPolicy is the rule applied when a remote path already exists
// under a different upload.
type ConflictPolicy string

const (
	PolicySkip      ConflictPolicy = "skip"
	PolicyOverwrite ConflictPolicy = "overwrite"
	PolicyRename    ConflictPolicy = "rename"
)

// ParseConflictPolicy parses a persisted conflict policy string.
func ParseConflictPolicy(s string) (ConflictPolicy, error) {
	switch ConflictPolicy(s) {
	case PolicySkip, PolicyOverwrite, PolicyRename:
		return ConflictPolicy(s), nil
	default:
		return "", fmt.Errorf("unknown conflict policy %q", s)
	}
}

// Candidate is one local file queued for possible upload. Immutable once
// chunking begins except for Offset; conflict renaming always produces a
// new candidate via renameForAttempt, never a mutation, so an abandoned
// rename probe leaves the original intact.
type Candidate struct {
	Kind Kind

	// DisplayName is the human-readable name. For camera items it is
	// also the remote filename before bucket-relative placement.
	DisplayName string

	// LocalPath is the local source file. Owned exclusively by this
	// candidate until the upload completes or is abandoned.
	LocalPath string

	// Size is fixed at discovery time and never re-read mid-upload.
	Size int64

	// Offset is the byte offset upload resumes from. Set by the status
	// resolver; 0 <= Offset <= Size.
	Offset int64

	// RemoteTarget is the normalized remote relative path (folder kind
	// only). For camera kind the server resolves placement from
	// (path, file, cameraMonth).
	RemoteTarget string

	// MonthBucket is the "YYYY-MM" capture-month grouping (camera kind).
	MonthBucket string

	// CapturedAt is the ISO-8601 capture timestamp (camera kind).
	CapturedAt string

	// Overwrite is sent with every status and chunk request.
	Overwrite bool
}

// statusItem shapes the candidate into the wire payload for status and
// chunk requests. basePath is the configured upload base path; camera
// items carry it as "path" for server-side placement.
func (c Candidate) statusItem(basePath string) api.StatusItem {
	if c.Kind == KindCamera {
		return api.StatusItem{
			Path:        basePath,
			File:        c.DisplayName,
			Camera:      1,
			CameraMonth: c.MonthBucket,
			CapturedAt:  c.CapturedAt,
			Size:        c.Size,
			Overwrite:   c.Overwrite,
		}
	}

	return api.StatusItem{
		Target:    c.RemoteTarget,
		Size:      c.Size,
		Overwrite: c.Overwrite,
	}
}

// renameForAttempt returns a new candidate with a conflict suffix
// applied: camera kind renames the display name, folder kind renames the
// last segment of the remote target. The overwrite flag is cleared on
// both; a renamed target is never known to exist, so overwrite must not
// be asserted.
func (c Candidate) renameForAttempt(attempt int) Candidate {
	renamed := c
	renamed.Overwrite = false

	if c.Kind == KindCamera {
		renamed.DisplayName = pathutil.AddConflictSuffix(c.DisplayName, attempt)
		return renamed
	}

	segments := strings.Split(c.RemoteTarget, "/")
	last := len(segments) - 1
	segments[last] = pathutil.AddConflictSuffix(segments[last], attempt)
	renamed.RemoteTarget = strings.Join(segments, "/")

	return renamed
}
