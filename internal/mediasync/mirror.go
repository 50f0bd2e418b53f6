package mediasync

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alexjbarnes/media-sync/internal/pathutil"
	"github.com/samber/lo"
)

const (
	// listPageSize is how many entries one remote listing page requests.
	listPageSize = 200

	// deleteBatchSize is how many paths one bulk-delete call carries.
	deleteBatchSize = 100
)

// pruner deletes remote files beneath the base path that are absent from
// the local folder being mirrored. Server deletion is move-to-trash, not
// permanent erasure.
type pruner struct {
	server   Server
	root     string
	basePath string
	tracker  *tracker
	logger   *slog.Logger
}

// prune lists the remote tree, computes remote − local, and deletes the
// difference in batches. Each batch is counted independently; a failed
// batch never aborts the remaining ones. The cancelled checkpoint is
// polled between delete batches.
func (p *pruner) prune(ctx context.Context, localTargets []string, cancelled func() bool) error {
	remote, err := p.listRemoteFiles(ctx, cancelled)
	if err != nil {
		return fmt.Errorf("listing remote tree: %w", err)
	}

	local := make([]string, 0, len(localTargets))
	for _, target := range localTargets {
		local = append(local, pathutil.NormalizePath(target))
	}

	toDelete := lo.Without(remote, local...)
	if len(toDelete) == 0 {
		p.logger.Info("mirror: nothing to prune", slog.Int("remote_files", len(remote)))
		return nil
	}

	p.logger.Info("mirror: pruning remote files",
		slog.Int("remote_files", len(remote)),
		slog.Int("to_delete", len(toDelete)),
	)

	for _, batch := range lo.Chunk(toDelete, deleteBatchSize) {
		if cancelled() {
			break
		}

		if err := p.server.Delete(ctx, p.root, batch); err != nil {
			p.logger.Warn("delete batch failed",
				slog.Int("paths", len(batch)),
				slog.String("error", err.Error()),
			)
			p.tracker.addRemoteDeleteFailed(len(batch))
			continue
		}

		p.tracker.addRemoteDeleted(len(batch))
	}

	return nil
}

// listRemoteFiles walks the remote tree under the base path through the
// paginated listing endpoint, enqueueing subdirectories as they appear.
// Pagination of a directory stops once a page comes back shorter than
// the page size. A directory that fails to list is logged and skipped;
// missing remote entries can only shrink the deletion set, never grow
// it, so this fails safe.
func (p *pruner) listRemoteFiles(ctx context.Context, cancelled func() bool) ([]string, error) {
	var files []string

	queue := []string{pathutil.NormalizePath(p.basePath)}
	for len(queue) > 0 {
		if cancelled() {
			break
		}

		dir := queue[0]
		queue = queue[1:]

		for offset := 0; ; offset += listPageSize {
			entries, err := p.server.List(ctx, p.root, dir, listPageSize, offset)
			if err != nil {
				p.logger.Warn("listing remote directory failed",
					slog.String("dir", dir),
					slog.String("error", err.Error()),
				)
				break
			}

			for _, entry := range entries {
				path := pathutil.NormalizePath(entry.Path)
				if entry.IsDir {
					queue = append(queue, path)
					continue
				}
				files = append(files, path)
			}

			if len(entries) < listPageSize {
				break
			}
		}
	}

	return files, nil
}
