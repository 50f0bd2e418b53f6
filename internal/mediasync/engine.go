package mediasync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/alexjbarnes/media-sync/internal/api"
	apperrors "github.com/alexjbarnes/media-sync/internal/errors"
)

// Server is the subset of the storage API the sync engine consumes.
// Satisfied by *api.Client. Extracted for testability.
type Server interface {
	Capabilities(ctx context.Context) (api.Capabilities, error)
	UploadStatusBatch(ctx context.Context, root string, items []api.StatusItem) (map[int]api.UploadStatus, error)
	UploadStatus(ctx context.Context, root string, item api.StatusItem) (api.UploadStatus, error)
	UploadChunk(ctx context.Context, root string, item api.StatusItem, offset int64, chunk []byte) (int64, error)
	List(ctx context.Context, root, path string, limit, offset int) ([]api.ListEntry, error)
	Delete(ctx context.Context, root string, paths []string) error
}

// Config holds the parameters for one engine instance.
type Config struct {
	Server Server

	// DestRoot is the destination storage root id on the server.
	DestRoot string
	// BasePath is the upload base path beneath the destination root.
	BasePath string

	// Source selects camera or folder sync.
	Source Kind
	// LocalFolder is the walked directory for the folder source.
	LocalFolder string
	// Library provides camera-roll enumeration for the camera source.
	Library MediaLibrary
	// IncludeVideos extends the camera source from photos to
	// photos+videos.
	IncludeVideos bool

	// MirrorDelete prunes remote files absent from the local folder
	// (folder source only).
	MirrorDelete bool
	// ConflictPolicy is the requested policy; folder+mirror coerces
	// rename to overwrite before resolution begins.
	ConflictPolicy ConflictPolicy

	// OnProgress observes every progress mutation. Optional.
	OnProgress func(Progress)

	Logger *slog.Logger
}

// Engine is the sync orchestrator. One logical run at a time: Run
// rejects a second concurrent invocation. Cancellation is cooperative;
// Cancel is observed at the next checkpoint (between items, batches,
// chunks and delete batches), never mid-request, so remote and local
// state are always exactly what the last completed operation left.
type Engine struct {
	cfg     Config
	logger  *slog.Logger
	tracker *tracker

	running  atomic.Bool
	cancel   atomic.Bool
	chunkLen int64
}

// NewEngine creates an engine. cfg.Server and cfg.Logger are required.
func NewEngine(cfg Config) *Engine {
	return &Engine{
		cfg:     cfg,
		logger:  cfg.Logger,
		tracker: newTracker(cfg.OnProgress),
	}
}

// Progress returns a snapshot of the current (or last) run's progress.
func (e *Engine) Progress() Progress {
	return e.tracker.snapshot()
}

// Cancel requests cooperative cancellation of the active run. Safe to
// call at any time, including when no run is active.
func (e *Engine) Cancel() {
	e.cancel.Store(true)
}

func (e *Engine) cancelled() bool {
	return e.cancel.Load()
}

// Run executes one sync: planning (enumeration + status resolution),
// sequential chunked uploads, and, for folder-source mirror runs, remote
// pruning. Per-item failures are counted and do not abort the run; the
// returned error is non-nil only for run-fatal conditions, which also
// leave the progress stage at StageError.
func (e *Engine) Run(ctx context.Context) (Progress, error) {
	if !e.running.CompareAndSwap(false, true) {
		return e.tracker.snapshot(), apperrors.ErrSyncInProgress
	}
	defer e.running.Store(false)
	e.cancel.Store(false)

	e.tracker.begin()

	progress, err := e.run(ctx)
	if err != nil {
		e.tracker.finish(StageError, "sync failed", err.Error())
		e.logger.Error("sync failed", slog.String("error", err.Error()))
		return e.tracker.snapshot(), err
	}

	return progress, nil
}

func (e *Engine) run(ctx context.Context) (Progress, error) {
	if err := e.validate(); err != nil {
		return Progress{}, err
	}

	caps, err := e.cfg.Server.Capabilities(ctx)
	if err != nil {
		return Progress{}, fmt.Errorf("negotiating capabilities: %w", err)
	}
	if !caps.UploadsEnabled {
		return Progress{}, apperrors.ErrUploadsDisabled
	}
	e.chunkLen = clampChunkSize(caps.ChunkSize)

	policy := effectivePolicy(e.cfg.ConflictPolicy, e.cfg.Source, e.cfg.MirrorDelete)
	if policy != e.cfg.ConflictPolicy {
		e.logger.Info("conflict policy coerced for mirror sync",
			slog.String("requested", string(e.cfg.ConflictPolicy)),
			slog.String("effective", string(policy)),
		)
	}

	// Planning: discover candidates, then classify them in batches.
	discovered, err := e.enumerate(ctx, policy)
	if err != nil {
		return Progress{}, err
	}

	res := &resolver{
		server:   e.cfg.Server,
		root:     e.cfg.DestRoot,
		basePath: e.cfg.BasePath,
		policy:   policy,
		tracker:  e.tracker,
		logger:   e.logger,
	}
	planned, err := res.resolve(ctx, discovered, e.cancelled)
	if err != nil {
		return Progress{}, err
	}

	if e.cancelled() {
		return e.finishCancelled(), nil
	}

	snap := e.tracker.snapshot()
	e.logger.Info("planning complete",
		slog.String("run_id", snap.RunID),
		slog.Int("discovered", snap.Discovered),
		slog.Int("planned", snap.Planned),
		slog.Int("skipped", snap.Skipped),
		slog.Int("failed", snap.Failed),
		slog.Int64("planned_bytes", snap.PlannedBytes),
	)

	// Uploading: one candidate at a time, in discovery order. The server
	// offset model assumes strictly ordered writes per file, and one
	// open handle at a time bounds resources.
	e.tracker.setStage(StageUploading, "uploading")

	up := &uploader{
		server:    e.cfg.Server,
		root:      e.cfg.DestRoot,
		basePath:  e.cfg.BasePath,
		chunkSize: e.chunkLen,
		tracker:   e.tracker,
		logger:    e.logger,
	}

	for _, cand := range planned {
		if e.cancelled() {
			break
		}

		err := up.upload(ctx, cand, e.cancelled)
		switch {
		case err == nil:
		case errors.Is(err, errCancelled):
			// Counted neither as uploaded nor failed; the next run
			// resumes from the server-confirmed offset.
		case errors.Is(err, apperrors.ErrOffsetConflict):
			return Progress{}, err
		default:
			e.logger.Warn("upload failed",
				slog.String("name", cand.DisplayName),
				slog.String("error", err.Error()),
			)
			e.tracker.addFailed(1)
		}
	}

	if e.cancelled() {
		return e.finishCancelled(), nil
	}

	// Mirroring: folder-source mirror runs prune remote files absent
	// locally. Skipped entirely on cancellation.
	if e.cfg.Source == KindFolder && e.cfg.MirrorDelete {
		e.tracker.setStage(StageMirroring, "pruning remote files")

		pr := &pruner{
			server:   e.cfg.Server,
			root:     e.cfg.DestRoot,
			basePath: e.cfg.BasePath,
			tracker:  e.tracker,
			logger:   e.logger,
		}

		localTargets := make([]string, 0, len(discovered))
		for _, cand := range discovered {
			localTargets = append(localTargets, cand.RemoteTarget)
		}

		if err := pr.prune(ctx, localTargets, e.cancelled); err != nil {
			return Progress{}, err
		}

		if e.cancelled() {
			return e.finishCancelled(), nil
		}
	}

	e.tracker.finish(StageDone, "sync complete", "")
	final := e.tracker.snapshot()
	e.logger.Info("sync complete",
		slog.String("run_id", final.RunID),
		slog.Int("uploaded", final.Uploaded),
		slog.Int("skipped", final.Skipped),
		slog.Int("failed", final.Failed),
		slog.Int64("uploaded_bytes", final.UploadedBytes),
		slog.Int("remote_deleted", final.RemoteDeleted),
		slog.Int("remote_delete_failed", final.RemoteDeleteFailed),
	)

	return final, nil
}

// validate performs the pre-run checks that must fail before any work
// starts.
func (e *Engine) validate() error {
	if e.cfg.DestRoot == "" {
		return apperrors.ErrNoDestination
	}

	switch e.cfg.Source {
	case KindFolder:
		if e.cfg.LocalFolder == "" {
			return apperrors.ErrNoLocalFolder
		}
	case KindCamera:
		if e.cfg.Library == nil {
			return fmt.Errorf("camera source selected but no media library configured")
		}
	default:
		return fmt.Errorf("unknown sync source %q", e.cfg.Source)
	}

	return nil
}

// enumerate produces the raw candidate list for the configured source.
func (e *Engine) enumerate(ctx context.Context, policy ConflictPolicy) ([]Candidate, error) {
	overwrite := policy == PolicyOverwrite

	if e.cfg.Source == KindCamera {
		candidates, err := enumerateCamera(ctx, e.cfg.Library, e.cfg.IncludeVideos, overwrite, e.tracker, e.cancelled, e.logger)
		if err != nil {
			return nil, fmt.Errorf("enumerating camera roll: %w", err)
		}
		return candidates, nil
	}

	files := walkFolder(e.cfg.LocalFolder, e.tracker, e.cancelled, e.logger)
	return folderCandidates(files, e.cfg.BasePath, overwrite), nil
}

func (e *Engine) finishCancelled() Progress {
	e.tracker.finish(StageCancelled, "sync cancelled", "")
	final := e.tracker.snapshot()
	e.logger.Info("sync cancelled",
		slog.String("run_id", final.RunID),
		slog.Int("uploaded", final.Uploaded),
		slog.Int("failed", final.Failed),
	)
	return final
}
