package mediasync

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/alexjbarnes/media-sync/internal/pathutil"
	"github.com/gabriel-vasile/mimetype"
)

// cameraPageSize is the fixed page size used when enumerating the media
// library.
const cameraPageSize = 150

// AssetRef is a cheap handle to one media library asset. Full metadata
// is resolved separately because resolution can fail per asset.
type AssetRef struct {
	ID string
}

// MediaAsset is the resolved metadata for one asset.
type MediaAsset struct {
	ID         string
	Name       string
	LocalPath  string
	Size       int64
	CapturedAt time.Time // zero when the library has no capture time
	Video      bool
}

// MediaLibrary enumerates the device media library sorted by capture
// time. Page returns the refs at [offset, offset+limit) and whether more
// pages follow; Resolve loads full metadata for one ref and may fail per
// asset without poisoning the enumeration.
type MediaLibrary interface {
	Page(ctx context.Context, offset, limit int) ([]AssetRef, bool, error)
	Resolve(ctx context.Context, ref AssetRef) (MediaAsset, error)
}

// DirMediaLibrary is a MediaLibrary backed by a camera-roll directory on
// disk. Assets are media files (detected by content sniffing), sorted by
// file modification time, which stands in for capture time. Requesting
// page zero rescans the directory, so each sync run sees a fresh view.
type DirMediaLibrary struct {
	dir string

	mu     sync.Mutex
	assets []MediaAsset // sorted by CapturedAt, populated on page 0
}

// NewDirMediaLibrary creates a library rooted at dir.
func NewDirMediaLibrary(dir string) *DirMediaLibrary {
	return &DirMediaLibrary{dir: dir}
}

// Page implements MediaLibrary. A scan failure of the root directory is
// a page-level error; unreadable individual files are simply not listed.
func (l *DirMediaLibrary) Page(ctx context.Context, offset, limit int) ([]AssetRef, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if offset == 0 {
		if err := l.scanLocked(); err != nil {
			return nil, false, err
		}
	}

	if offset >= len(l.assets) {
		return nil, false, nil
	}

	end := offset + limit
	if end > len(l.assets) {
		end = len(l.assets)
	}

	refs := make([]AssetRef, 0, end-offset)
	for _, a := range l.assets[offset:end] {
		refs = append(refs, AssetRef{ID: a.ID})
	}

	return refs, end < len(l.assets), nil
}

// Resolve implements MediaLibrary. The asset is re-stat'ed so the size
// reflects the file at resolution time; a vanished file fails resolution.
func (l *DirMediaLibrary) Resolve(_ context.Context, ref AssetRef) (MediaAsset, error) {
	l.mu.Lock()
	var found *MediaAsset
	for i := range l.assets {
		if l.assets[i].ID == ref.ID {
			found = &l.assets[i]
			break
		}
	}
	l.mu.Unlock()

	if found == nil {
		return MediaAsset{}, fmt.Errorf("unknown asset %q", ref.ID)
	}

	info, err := os.Stat(found.LocalPath)
	if err != nil {
		return MediaAsset{}, fmt.Errorf("resolving asset %q: %w", ref.ID, err)
	}

	asset := *found
	asset.Size = info.Size()

	return asset, nil
}

// scanLocked walks the camera roll and rebuilds the asset list. Media
// detection is by content sniffing, not extension, since camera apps
// write files with misleading or missing extensions.
func (l *DirMediaLibrary) scanLocked() error {
	var assets []MediaAsset

	err := filepath.WalkDir(l.dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}

		mt, err := mimetype.DetectFile(path)
		if err != nil {
			return nil
		}

		isImage := strings.HasPrefix(mt.String(), "image/")
		isVideo := strings.HasPrefix(mt.String(), "video/")
		if !isImage && !isVideo {
			return nil
		}

		rel, err := filepath.Rel(l.dir, path)
		if err != nil {
			return nil
		}

		assets = append(assets, MediaAsset{
			ID:         pathutil.NormalizePath(rel),
			Name:       d.Name(),
			LocalPath:  path,
			Size:       info.Size(),
			CapturedAt: info.ModTime(),
			Video:      isVideo,
		})

		return nil
	})
	if err != nil {
		return fmt.Errorf("scanning camera roll: %w", err)
	}

	sort.Slice(assets, func(i, j int) bool {
		return assets[i].CapturedAt.Before(assets[j].CapturedAt)
	})

	l.assets = assets

	return nil
}

// enumerateCamera pages through the media library and produces
// camera-kind candidates. Per-asset resolution failures and invalid
// sizes count as failed and never abort the run. Assets with a missing
// or non-positive capture time fall back to "now", which buckets them
// into the current month; best-effort bucketing, kept from the original
// behavior.
func enumerateCamera(ctx context.Context, lib MediaLibrary, includeVideos, overwrite bool, t *tracker, cancelled func() bool, logger *slog.Logger) ([]Candidate, error) {
	var candidates []Candidate
	pendingDiscovered := 0

	flush := func() {
		if pendingDiscovered > 0 {
			t.addDiscovered(pendingDiscovered)
			pendingDiscovered = 0
		}
	}

	offset := 0
	for {
		if cancelled() {
			break
		}

		refs, more, err := lib.Page(ctx, offset, cameraPageSize)
		if err != nil {
			flush()
			return nil, fmt.Errorf("paging media library: %w", err)
		}

		for _, ref := range refs {
			asset, err := lib.Resolve(ctx, ref)
			if err != nil {
				logger.Warn("resolving media asset",
					slog.String("asset", ref.ID),
					slog.String("error", err.Error()),
				)
				t.addFailed(1)
				continue
			}

			if asset.Video && !includeVideos {
				continue
			}

			if asset.Size <= 0 {
				t.addFailed(1)
				continue
			}

			capturedAt := asset.CapturedAt
			if capturedAt.IsZero() || capturedAt.Unix() <= 0 {
				capturedAt = time.Now()
			}

			candidates = append(candidates, Candidate{
				Kind:        KindCamera,
				DisplayName: pathutil.SanitizeFileName(asset.Name, asset.ID),
				LocalPath:   asset.LocalPath,
				Size:        asset.Size,
				MonthBucket: capturedAt.Format("2006-01"),
				CapturedAt:  capturedAt.Format(time.RFC3339),
				Overwrite:   overwrite,
			})

			pendingDiscovered++
			if pendingDiscovered >= discoveryReportEvery {
				flush()
			}
		}

		if !more {
			break
		}
		offset += len(refs)
	}

	flush()

	return candidates, nil
}
