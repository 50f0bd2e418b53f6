package mediasync

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/alexjbarnes/media-sync/internal/pathutil"
)

// discoveryReportEvery throttles progress updates during enumeration so
// a large tree does not flood observers.
const discoveryReportEvery = 25

// LocalFolderFile is one file discovered by the folder walker: the local
// path, the path relative to the walked root, and its size at discovery
// time.
type LocalFolderFile struct {
	LocalPath    string
	RelativePath string
	Size         int64
}

// walkFolder walks root depth-first with an explicit stack (iterative,
// not recursive, so deep trees cannot exhaust the call stack) and
// returns every regular file found. Directories that cannot be listed
// and entries whose metadata cannot be read are counted as failures and
// skipped; they never abort the walk. Between directories the cancelled
// checkpoint is polled.
func walkFolder(root string, t *tracker, cancelled func() bool, logger *slog.Logger) []LocalFolderFile {
	var files []LocalFolderFile
	pendingDiscovered := 0

	flush := func() {
		if pendingDiscovered > 0 {
			t.addDiscovered(pendingDiscovered)
			pendingDiscovered = 0
		}
	}

	stack := []string{root}
	for len(stack) > 0 {
		if cancelled() {
			break
		}

		dir := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		entries, err := os.ReadDir(dir)
		if err != nil {
			logger.Warn("listing directory failed",
				slog.String("dir", dir),
				slog.String("error", err.Error()),
			)
			t.addFailed(1)
			continue
		}

		for _, entry := range entries {
			abs := filepath.Join(dir, entry.Name())

			if entry.IsDir() {
				stack = append(stack, abs)
				continue
			}

			info, err := entry.Info()
			if err != nil {
				logger.Warn("stat failed during walk",
					slog.String("path", abs),
					slog.String("error", err.Error()),
				)
				t.addFailed(1)
				continue
			}

			if info.Size() < 0 {
				t.addFailed(1)
				continue
			}

			rel, err := filepath.Rel(root, abs)
			if err != nil {
				logger.Warn("computing relative path",
					slog.String("path", abs),
					slog.String("error", err.Error()),
				)
				t.addFailed(1)
				continue
			}

			files = append(files, LocalFolderFile{
				LocalPath:    abs,
				RelativePath: pathutil.NormalizePath(rel),
				Size:         info.Size(),
			})

			pendingDiscovered++
			if pendingDiscovered >= discoveryReportEvery {
				flush()
			}
		}
	}

	flush()

	return files
}

// folderCandidates converts walker output into folder-kind candidates.
// The remote target is base + relative path, '/'-joined and normalized.
// overwrite seeds the per-candidate flag from the conflict policy.
func folderCandidates(files []LocalFolderFile, basePath string, overwrite bool) []Candidate {
	candidates := make([]Candidate, 0, len(files))

	for _, f := range files {
		candidates = append(candidates, Candidate{
			Kind:         KindFolder,
			DisplayName:  filepath.Base(f.LocalPath),
			LocalPath:    f.LocalPath,
			Size:         f.Size,
			RemoteTarget: pathutil.Join(basePath, f.RelativePath),
			Overwrite:    overwrite,
		})
	}

	return candidates
}
