package mediasync

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/alexjbarnes/media-sync/internal/api"
	apperrors "github.com/alexjbarnes/media-sync/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newTestUploader(server Server, chunkSize int64) (*uploader, *tracker) {
	tr := newTracker(nil)
	tr.begin()

	return &uploader{
		server:    server,
		root:      "root-1",
		basePath:  "backup",
		chunkSize: chunkSize,
		tracker:   tr,
		logger:    quietLogger,
	}, tr
}

func tempCandidate(t *testing.T, content string, offset int64) Candidate {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.bin")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	return Candidate{
		Kind:         KindFolder,
		DisplayName:  "data.bin",
		LocalPath:    path,
		Size:         int64(len(content)),
		Offset:       offset,
		RemoteTarget: "backup/data.bin",
	}
}

func offsetMismatchErr() error {
	return &api.Error{
		Endpoint:   "upload",
		HTTPStatus: http.StatusConflict,
		Code:       api.CodeOffsetMismatch,
		Message:    "offset mismatch",
	}
}

// --- clampChunkSize ---

func TestClampChunkSize(t *testing.T) {
	assert.Equal(t, int64(defaultChunkSize), clampChunkSize(0))
	assert.Equal(t, int64(defaultChunkSize), clampChunkSize(-1))
	assert.Equal(t, int64(minChunkSize), clampChunkSize(1))
	assert.Equal(t, int64(minChunkSize), clampChunkSize(minChunkSize))
	assert.Equal(t, int64(512*1024), clampChunkSize(512*1024))
	assert.Equal(t, int64(maxChunkSize), clampChunkSize(maxChunkSize+1))
}

// --- upload ---

func TestUploader_ChunksAtIncreasingOffsets(t *testing.T) {
	ctrl := gomock.NewController(t)
	mock := NewMockServer(ctrl)
	up, tr := newTestUploader(mock, 2)

	cand := tempCandidate(t, "hello", 0)

	gomock.InOrder(
		mock.EXPECT().UploadChunk(gomock.Any(), "root-1", gomock.Any(), int64(0), []byte("he")).Return(int64(2), nil),
		mock.EXPECT().UploadChunk(gomock.Any(), "root-1", gomock.Any(), int64(2), []byte("ll")).Return(int64(4), nil),
		mock.EXPECT().UploadChunk(gomock.Any(), "root-1", gomock.Any(), int64(4), []byte("o")).Return(int64(5), nil),
	)

	require.NoError(t, up.upload(context.Background(), cand, neverCancelled))

	snap := tr.snapshot()
	assert.Equal(t, 1, snap.Uploaded)
	assert.Equal(t, int64(5), snap.UploadedBytes)
}

func TestUploader_ResumesFromOffset(t *testing.T) {
	ctrl := gomock.NewController(t)
	mock := NewMockServer(ctrl)
	up, tr := newTestUploader(mock, 10)

	cand := tempCandidate(t, "hello", 3)

	mock.EXPECT().UploadChunk(gomock.Any(), "root-1", gomock.Any(), int64(3), []byte("lo")).Return(int64(5), nil)

	require.NoError(t, up.upload(context.Background(), cand, neverCancelled))

	// Only the remaining two bytes cross the wire.
	assert.Equal(t, int64(2), tr.snapshot().UploadedBytes)
}

func TestUploader_ServerAheadAdvancesOffset(t *testing.T) {
	ctrl := gomock.NewController(t)
	mock := NewMockServer(ctrl)
	up, _ := newTestUploader(mock, 2)

	cand := tempCandidate(t, "hello", 0)

	gomock.InOrder(
		// The server already had bytes [2,4): it confirms 4, not 2.
		mock.EXPECT().UploadChunk(gomock.Any(), "root-1", gomock.Any(), int64(0), []byte("he")).Return(int64(4), nil),
		mock.EXPECT().UploadChunk(gomock.Any(), "root-1", gomock.Any(), int64(4), []byte("o")).Return(int64(5), nil),
	)

	require.NoError(t, up.upload(context.Background(), cand, neverCancelled))
}

func TestUploader_ServerOffsetBeyondSizeClampedToSize(t *testing.T) {
	ctrl := gomock.NewController(t)
	mock := NewMockServer(ctrl)
	up, tr := newTestUploader(mock, 2)

	cand := tempCandidate(t, "hello", 0)

	// A misbehaving server confirms an offset past the file size. The
	// byte accounting must still land exactly on the size.
	mock.EXPECT().UploadChunk(gomock.Any(), "root-1", gomock.Any(), int64(0), []byte("he")).
		Return(int64(99), nil)

	require.NoError(t, up.upload(context.Background(), cand, neverCancelled))

	snap := tr.snapshot()
	assert.Equal(t, 1, snap.Uploaded)
	assert.Equal(t, int64(5), snap.UploadedBytes)
}

func TestUploader_OffsetMismatchFastForwards(t *testing.T) {
	ctrl := gomock.NewController(t)
	mock := NewMockServer(ctrl)
	up, _ := newTestUploader(mock, 2)

	cand := tempCandidate(t, "hello", 0)

	gomock.InOrder(
		mock.EXPECT().UploadChunk(gomock.Any(), "root-1", gomock.Any(), int64(0), []byte("he")).
			Return(int64(0), offsetMismatchErr()),
		// The server is strictly ahead; resume from its offset.
		mock.EXPECT().UploadStatus(gomock.Any(), "root-1", gomock.Any()).
			Return(api.UploadStatus{Status: api.StatusReady, Offset: 4}, nil),
		mock.EXPECT().UploadChunk(gomock.Any(), "root-1", gomock.Any(), int64(4), []byte("o")).
			Return(int64(5), nil),
	)

	require.NoError(t, up.upload(context.Background(), cand, neverCancelled))
}

func TestUploader_FastForwardBeyondSizeClampedToSize(t *testing.T) {
	ctrl := gomock.NewController(t)
	mock := NewMockServer(ctrl)
	up, tr := newTestUploader(mock, 2)

	cand := tempCandidate(t, "hello", 0)

	gomock.InOrder(
		mock.EXPECT().UploadChunk(gomock.Any(), "root-1", gomock.Any(), int64(0), []byte("he")).
			Return(int64(0), offsetMismatchErr()),
		mock.EXPECT().UploadStatus(gomock.Any(), "root-1", gomock.Any()).
			Return(api.UploadStatus{Status: api.StatusReady, Offset: 99}, nil),
	)

	require.NoError(t, up.upload(context.Background(), cand, neverCancelled))

	snap := tr.snapshot()
	assert.Equal(t, 1, snap.Uploaded)
	assert.Equal(t, int64(5), snap.UploadedBytes)
}

func TestUploader_OffsetMismatchNotAheadIsConflict(t *testing.T) {
	ctrl := gomock.NewController(t)
	mock := NewMockServer(ctrl)
	up, _ := newTestUploader(mock, 2)

	cand := tempCandidate(t, "hello", 2)

	gomock.InOrder(
		mock.EXPECT().UploadChunk(gomock.Any(), "root-1", gomock.Any(), int64(2), []byte("ll")).
			Return(int64(0), offsetMismatchErr()),
		mock.EXPECT().UploadStatus(gomock.Any(), "root-1", gomock.Any()).
			Return(api.UploadStatus{Status: api.StatusReady, Offset: 2}, nil),
	)

	err := up.upload(context.Background(), cand, neverCancelled)

	assert.ErrorIs(t, err, apperrors.ErrOffsetConflict)
}

func TestUploader_ChunkErrorFailsCandidate(t *testing.T) {
	ctrl := gomock.NewController(t)
	mock := NewMockServer(ctrl)
	up, _ := newTestUploader(mock, 10)

	cand := tempCandidate(t, "hello", 0)

	mock.EXPECT().UploadChunk(gomock.Any(), "root-1", gomock.Any(), int64(0), gomock.Any()).
		Return(int64(0), fmt.Errorf("server unreachable"))

	err := up.upload(context.Background(), cand, neverCancelled)

	assert.Error(t, err)
	assert.False(t, errors.Is(err, errCancelled))
}

func TestUploader_CancelledBetweenChunks(t *testing.T) {
	ctrl := gomock.NewController(t)
	mock := NewMockServer(ctrl)
	up, tr := newTestUploader(mock, 2)

	cand := tempCandidate(t, "hello", 0)

	calls := 0
	mock.EXPECT().UploadChunk(gomock.Any(), "root-1", gomock.Any(), int64(0), []byte("he")).
		DoAndReturn(func(context.Context, string, api.StatusItem, int64, []byte) (int64, error) {
			calls++
			return 2, nil
		})

	err := up.upload(context.Background(), cand, func() bool { return calls > 0 })

	assert.ErrorIs(t, err, errCancelled)
	// The in-flight chunk landed; nothing after it went out.
	assert.Equal(t, int64(2), tr.snapshot().UploadedBytes)
	assert.Zero(t, tr.snapshot().Uploaded)
}

func TestUploader_MissingFileFails(t *testing.T) {
	ctrl := gomock.NewController(t)
	mock := NewMockServer(ctrl)
	up, _ := newTestUploader(mock, 10)

	cand := Candidate{
		Kind:         KindFolder,
		DisplayName:  "gone.bin",
		LocalPath:    filepath.Join(t.TempDir(), "gone.bin"),
		Size:         10,
		RemoteTarget: "backup/gone.bin",
	}

	err := up.upload(context.Background(), cand, neverCancelled)
	assert.Error(t, err)
}

func TestUploader_ShrunkenFileFails(t *testing.T) {
	ctrl := gomock.NewController(t)
	mock := NewMockServer(ctrl)
	up, _ := newTestUploader(mock, 10)

	cand := tempCandidate(t, "he", 0)
	cand.Size = 100 // discovery-time size no longer matches disk

	err := up.upload(context.Background(), cand, neverCancelled)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "shorter than expected")
}

// --- readFileChunk ---

func TestReadFileChunk_ExactEOF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f.bin")
	require.NoError(t, os.WriteFile(path, []byte("abcdef"), 0o644))

	buf, err := readFileChunk(path, 4, 2)
	require.NoError(t, err)
	assert.Equal(t, []byte("ef"), buf)
}

func TestReadFileChunk_PastEOF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f.bin")
	require.NoError(t, os.WriteFile(path, []byte("abc"), 0o644))

	_, err := readFileChunk(path, 2, 5)
	assert.Error(t, err)
}
