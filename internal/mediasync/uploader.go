package mediasync

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/alexjbarnes/media-sync/internal/api"
	apperrors "github.com/alexjbarnes/media-sync/internal/errors"
)

const (
	// minChunkSize and maxChunkSize clamp the server-advertised chunk
	// size. defaultChunkSize applies when the server advertises nothing
	// usable.
	minChunkSize     = 256 * 1024
	maxChunkSize     = 2 * 1024 * 1024
	defaultChunkSize = maxChunkSize
)

// clampChunkSize maps the server-advertised value into the supported
// range.
func clampChunkSize(advertised int64) int64 {
	if advertised <= 0 {
		return defaultChunkSize
	}
	if advertised < minChunkSize {
		return minChunkSize
	}
	if advertised > maxChunkSize {
		return maxChunkSize
	}
	return advertised
}

// uploader streams one candidate's remaining bytes to the server in
// bounded chunks.
type uploader struct {
	server    Server
	root      string
	basePath  string
	chunkSize int64
	tracker   *tracker
	logger    *slog.Logger
}

// errCancelled is returned by upload when the cooperative cancellation
// flag was observed between chunks. Not an upload failure.
var errCancelled = fmt.Errorf("upload cancelled")

// upload sends cand's bytes [cand.Offset, cand.Size) in order. Within a
// candidate, chunks are sent at strictly increasing offsets; the local
// offset after each response is max(local+sent, serverReported), so a
// server that deduplicates or absorbs partial writes can move us
// forward but never backward.
//
// An offset_mismatch rejection triggers one status re-check: when the
// server is strictly ahead, the gap is treated as already-uploaded and
// the loop fast-forwards; otherwise the mismatch is unresolvable and
// apperrors.ErrOffsetConflict is returned. Any other chunk error fails
// the candidate immediately; retrying here would mask persistent
// failures as transient.
func (u *uploader) upload(ctx context.Context, cand Candidate, cancelled func() bool) error {
	item := cand.statusItem(u.basePath)
	offset := cand.Offset

	u.tracker.startFile(cand.DisplayName, cand.Size, offset)

	for offset < cand.Size {
		if cancelled() {
			return errCancelled
		}

		n := u.chunkSize
		if remaining := cand.Size - offset; remaining < n {
			n = remaining
		}

		chunk, err := readFileChunk(cand.LocalPath, offset, n)
		if err != nil {
			return fmt.Errorf("reading %s at offset %d: %w", cand.LocalPath, offset, err)
		}

		serverOffset, err := u.server.UploadChunk(ctx, u.root, item, offset, chunk)
		if err != nil {
			if api.HasCode(err, api.CodeOffsetMismatch) {
				newOffset, recoverErr := u.recoverOffset(ctx, item, offset)
				if recoverErr != nil {
					return recoverErr
				}
				if newOffset > cand.Size {
					newOffset = cand.Size
				}
				u.tracker.addFileBytes(newOffset - offset)
				offset = newOffset
				continue
			}
			return fmt.Errorf("uploading chunk at offset %d: %w", offset, err)
		}

		next := offset + int64(len(chunk))
		if serverOffset > next {
			// The server accepted more than we sent this round (duplicate
			// absorbing semantics). Trust its larger value.
			next = serverOffset
		}
		if next > cand.Size {
			// A confirmed offset past the candidate size would overshoot
			// the byte accounting. Cap at size; the file is complete.
			next = cand.Size
		}

		u.tracker.addFileBytes(next - offset)
		offset = next
	}

	u.tracker.finishFile()
	u.logger.Info("uploaded",
		slog.String("name", cand.DisplayName),
		slog.Int64("bytes", cand.Size),
	)

	return nil
}

// recoverOffset asks the server for its authoritative offset after an
// offset_mismatch rejection. Only a server that is strictly ahead is
// recoverable; anything else indicates corruption or a race this client
// cannot resolve.
func (u *uploader) recoverOffset(ctx context.Context, item api.StatusItem, localOffset int64) (int64, error) {
	status, err := u.server.UploadStatus(ctx, u.root, item)
	if err != nil {
		return 0, fmt.Errorf("re-checking offset after mismatch: %w", err)
	}

	if status.Offset <= localOffset {
		return 0, fmt.Errorf("server offset %d not ahead of local %d: %w",
			status.Offset, localOffset, apperrors.ErrOffsetConflict)
	}

	u.logger.Info("fast-forwarding after offset mismatch",
		slog.Int64("local", localOffset),
		slog.Int64("server", status.Offset),
	)

	return status.Offset, nil
}

// readFileChunk reads n bytes from path starting at offset. The file
// handle is scoped to this call and released on every path. A short
// read is an error: candidate sizes are fixed at discovery and a
// shrunken file cannot be uploaded consistently.
func readFileChunk(path string, offset, n int64) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf := make([]byte, n)
	read, err := f.ReadAt(buf, offset)
	if int64(read) == n {
		// A full read may still carry io.EOF when it ends exactly at the
		// end of file; that is not an error here.
		return buf, nil
	}
	if err == io.EOF {
		return nil, fmt.Errorf("file shorter than expected size")
	}
	return nil, err
}
