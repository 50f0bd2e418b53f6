package mediasync

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Stage is the orchestrator state machine position.
type Stage string

const (
	StageIdle      Stage = "idle"
	StagePlanning  Stage = "planning"
	StageUploading Stage = "uploading"
	StageMirroring Stage = "mirroring"
	StageDone      Stage = "done"
	StageCancelled Stage = "cancelled"
	StageError     Stage = "error"
)

// Terminal reports whether the stage ends a run.
func (s Stage) Terminal() bool {
	return s == StageDone || s == StageCancelled || s == StageError
}

// Progress is a point-in-time snapshot of one sync run. Created fresh at
// the start of every run, mutated by the currently active phase only,
// and handed to observers by value.
type Progress struct {
	RunID string
	Stage Stage

	Discovered int
	Planned    int
	Skipped    int
	Failed     int
	Uploaded   int

	RemoteDeleted      int
	RemoteDeleteFailed int

	PlannedBytes  int64
	UploadedBytes int64

	// Current-file sub-progress, valid during StageUploading.
	CurrentFile         string
	CurrentFileBytes    int64
	CurrentFileUploaded int64

	Message string
	Error   string

	StartedAt  time.Time
	FinishedAt time.Time
}

// tracker owns the Progress for the run's duration. Mutation is
// single-threaded (only the active phase writes); reads hand out value
// snapshots, so observers never see a partially-updated state.
type tracker struct {
	mu       sync.Mutex
	p        Progress
	onChange func(Progress)
}

func newTracker(onChange func(Progress)) *tracker {
	return &tracker{
		p:        Progress{Stage: StageIdle},
		onChange: onChange,
	}
}

// snapshot returns a copy of the current progress.
func (t *tracker) snapshot() Progress {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.p
}

// update applies fn under the lock and notifies the observer with the
// resulting snapshot.
func (t *tracker) update(fn func(p *Progress)) {
	t.mu.Lock()
	fn(&t.p)
	snap := t.p
	onChange := t.onChange
	t.mu.Unlock()

	if onChange != nil {
		onChange(snap)
	}
}

// begin resets the progress for a fresh run.
func (t *tracker) begin() {
	t.update(func(p *Progress) {
		*p = Progress{
			RunID:     uuid.NewString(),
			Stage:     StagePlanning,
			StartedAt: time.Now(),
			Message:   "discovering local files",
		}
	})
}

func (t *tracker) setStage(stage Stage, message string) {
	t.update(func(p *Progress) {
		p.Stage = stage
		p.Message = message
	})
}

func (t *tracker) addDiscovered(n int) {
	t.update(func(p *Progress) { p.Discovered += n })
}

func (t *tracker) addFailed(n int) {
	t.update(func(p *Progress) { p.Failed += n })
}

func (t *tracker) addSkipped(n int) {
	t.update(func(p *Progress) { p.Skipped += n })
}

func (t *tracker) addPlanned(count int, bytes int64) {
	t.update(func(p *Progress) {
		p.Planned += count
		p.PlannedBytes += bytes
	})
}

// startFile begins current-file sub-progress. resumeOffset bytes are
// already on the server and count as uploaded immediately.
func (t *tracker) startFile(name string, size, resumeOffset int64) {
	t.update(func(p *Progress) {
		p.CurrentFile = name
		p.CurrentFileBytes = size
		p.CurrentFileUploaded = resumeOffset
	})
}

func (t *tracker) addFileBytes(n int64) {
	t.update(func(p *Progress) {
		p.CurrentFileUploaded += n
		p.UploadedBytes += n
	})
}

func (t *tracker) finishFile() {
	t.update(func(p *Progress) {
		p.Uploaded++
		p.CurrentFile = ""
		p.CurrentFileBytes = 0
		p.CurrentFileUploaded = 0
	})
}

func (t *tracker) addRemoteDeleted(n int) {
	t.update(func(p *Progress) { p.RemoteDeleted += n })
}

func (t *tracker) addRemoteDeleteFailed(n int) {
	t.update(func(p *Progress) { p.RemoteDeleteFailed += n })
}

// finish moves the run to a terminal stage. errMsg is recorded only for
// StageError.
func (t *tracker) finish(stage Stage, message, errMsg string) {
	t.update(func(p *Progress) {
		p.Stage = stage
		p.Message = message
		p.Error = errMsg
		p.FinishedAt = time.Now()
		p.CurrentFile = ""
		p.CurrentFileBytes = 0
		p.CurrentFileUploaded = 0
	})
}
