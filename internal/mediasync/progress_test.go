package mediasync

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Stage ---

func TestStage_Terminal(t *testing.T) {
	assert.True(t, StageDone.Terminal())
	assert.True(t, StageCancelled.Terminal())
	assert.True(t, StageError.Terminal())

	assert.False(t, StageIdle.Terminal())
	assert.False(t, StagePlanning.Terminal())
	assert.False(t, StageUploading.Terminal())
	assert.False(t, StageMirroring.Terminal())
}

// --- tracker ---

func TestTracker_BeginResetsState(t *testing.T) {
	tr := newTracker(nil)

	tr.begin()
	tr.addDiscovered(5)
	tr.addPlanned(3, 300)
	tr.finish(StageDone, "done", "")

	tr.begin()
	snap := tr.snapshot()

	assert.Equal(t, StagePlanning, snap.Stage)
	assert.Zero(t, snap.Discovered)
	assert.Zero(t, snap.Planned)
	assert.Zero(t, snap.PlannedBytes)
	assert.NotEmpty(t, snap.RunID)
	assert.False(t, snap.StartedAt.IsZero())
	assert.True(t, snap.FinishedAt.IsZero())
}

func TestTracker_FreshRunIDPerRun(t *testing.T) {
	tr := newTracker(nil)

	tr.begin()
	first := tr.snapshot().RunID
	tr.begin()
	second := tr.snapshot().RunID

	assert.NotEqual(t, first, second)
}

func TestTracker_FileProgress(t *testing.T) {
	tr := newTracker(nil)
	tr.begin()

	tr.startFile("a.jpg", 100, 40)
	snap := tr.snapshot()
	assert.Equal(t, "a.jpg", snap.CurrentFile)
	assert.Equal(t, int64(100), snap.CurrentFileBytes)
	assert.Equal(t, int64(40), snap.CurrentFileUploaded)

	tr.addFileBytes(60)
	snap = tr.snapshot()
	assert.Equal(t, int64(100), snap.CurrentFileUploaded)
	assert.Equal(t, int64(60), snap.UploadedBytes)

	tr.finishFile()
	snap = tr.snapshot()
	assert.Equal(t, 1, snap.Uploaded)
	assert.Empty(t, snap.CurrentFile)
	assert.Zero(t, snap.CurrentFileUploaded)
}

func TestTracker_OnChangeObservesEveryMutation(t *testing.T) {
	var seen []Progress
	tr := newTracker(func(p Progress) { seen = append(seen, p) })

	tr.begin()
	tr.addDiscovered(2)
	tr.finish(StageDone, "done", "")

	require.Len(t, seen, 3)
	assert.Equal(t, StagePlanning, seen[0].Stage)
	assert.Equal(t, 2, seen[1].Discovered)
	assert.Equal(t, StageDone, seen[2].Stage)
}

func TestTracker_FinishRecordsErrorOnlyWhenGiven(t *testing.T) {
	tr := newTracker(nil)
	tr.begin()
	tr.startFile("a.jpg", 10, 0)

	tr.finish(StageError, "sync failed", "boom")

	snap := tr.snapshot()
	assert.Equal(t, StageError, snap.Stage)
	assert.Equal(t, "boom", snap.Error)
	assert.False(t, snap.FinishedAt.IsZero())
	// Current-file sub-progress is cleared at terminal stages.
	assert.Empty(t, snap.CurrentFile)
}
