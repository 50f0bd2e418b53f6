package mediasync

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alexjbarnes/media-sync/internal/api"
	"github.com/samber/lo"
)

const (
	// statusBatchSize caps how many candidates one status request carries.
	statusBatchSize = 60

	// renameMaxAttempts bounds the sequential rename probing loop.
	renameMaxAttempts = 50
)

// resolver classifies raw candidates against the server's status
// endpoint and applies the conflict policy, producing the planned upload
// list.
type resolver struct {
	server   Server
	root     string
	basePath string
	policy   ConflictPolicy
	tracker  *tracker
	logger   *slog.Logger
}

// resolve consults the server in batches and returns the candidates that
// should be uploaded, each carrying its resume offset. Skipped and
// failed candidates are accounted on the tracker. The cancelled
// checkpoint is polled between batches, never mid-request.
func (r *resolver) resolve(ctx context.Context, candidates []Candidate, cancelled func() bool) ([]Candidate, error) {
	var planned []Candidate

	for _, batch := range lo.Chunk(candidates, statusBatchSize) {
		if cancelled() {
			break
		}

		items := make([]api.StatusItem, len(batch))
		for i, cand := range batch {
			items[i] = cand.statusItem(r.basePath)
		}

		results, err := r.server.UploadStatusBatch(ctx, r.root, items)
		if err != nil {
			return nil, fmt.Errorf("resolving upload status: %w", err)
		}

		for i, cand := range batch {
			status, ok := results[i]
			if !ok {
				// The server omitted this index. Fail closed: uploading
				// without a confirmed offset risks clobbering remote data.
				r.logger.Warn("status response missing item", slog.String("name", cand.DisplayName))
				r.tracker.addFailed(1)
				continue
			}

			resolved, outcome := r.classify(ctx, cand, status)
			switch outcome {
			case outcomePlanned:
				planned = append(planned, resolved)
				r.tracker.addPlanned(1, resolved.Size-resolved.Offset)
			case outcomeSkipped:
				r.tracker.addSkipped(1)
			case outcomeFailed:
				r.tracker.addFailed(1)
			}
		}
	}

	return planned, nil
}

type outcome int

const (
	outcomePlanned outcome = iota
	outcomeSkipped
	outcomeFailed
)

// classify applies the per-result policy table to one candidate.
func (r *resolver) classify(ctx context.Context, cand Candidate, status api.UploadStatus) (Candidate, outcome) {
	// Fully present already, regardless of reported status string.
	if status.Status == api.StatusComplete || status.Offset >= cand.Size {
		return cand, outcomeSkipped
	}

	switch status.Status {
	case api.StatusReady:
		cand.Offset = status.Offset
		return cand, outcomePlanned

	case api.StatusExists:
		switch r.policy {
		case PolicySkip:
			return cand, outcomeSkipped
		case PolicyOverwrite:
			cand.Overwrite = true
			cand.Offset = 0
			return cand, outcomePlanned
		case PolicyRename:
			return r.resolveRename(ctx, cand)
		}
	}

	r.logger.Warn("unexpected upload status",
		slog.String("name", cand.DisplayName),
		slog.String("status", status.Status),
	)
	return cand, outcomeFailed
}

// resolveRename probes conflict-suffixed names sequentially until the
// server accepts one. Inherently sequential: each probe depends on the
// previous name being rejected. Probes always send overwrite=false; a
// renamed target is never known to exist.
func (r *resolver) resolveRename(ctx context.Context, cand Candidate) (Candidate, outcome) {
	for attempt := 1; attempt <= renameMaxAttempts; attempt++ {
		renamed := cand.renameForAttempt(attempt)

		status, err := r.server.UploadStatus(ctx, r.root, renamed.statusItem(r.basePath))
		if err != nil {
			r.logger.Warn("rename probe failed",
				slog.String("name", renamed.DisplayName),
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()),
			)
			return cand, outcomeFailed
		}

		switch status.Status {
		case api.StatusExists:
			continue
		case api.StatusReady:
			renamed.Offset = status.Offset
			return renamed, outcomePlanned
		case api.StatusComplete:
			return renamed, outcomeSkipped
		default:
			r.logger.Warn("unexpected status during rename probe",
				slog.String("name", renamed.DisplayName),
				slog.String("status", status.Status),
			)
			return cand, outcomeFailed
		}
	}

	r.logger.Warn("rename attempts exhausted", slog.String("name", cand.DisplayName))
	return cand, outcomeFailed
}

// effectivePolicy coerces rename to overwrite for folder-source mirror
// runs. A renamed remote path would never match the local set and the
// mirror pass would leave permanent dangling copies, so renaming and
// mirroring are mutually exclusive.
func effectivePolicy(policy ConflictPolicy, source Kind, mirror bool) ConflictPolicy {
	if policy == PolicyRename && source == KindFolder && mirror {
		return PolicyOverwrite
	}
	return policy
}
