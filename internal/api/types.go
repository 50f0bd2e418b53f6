package api

// Upload status values the server may report for a candidate file.
// Anything outside this closed set is treated as a failure by callers.
const (
	StatusReady    = "ready"
	StatusComplete = "complete"
	StatusExists   = "exists"
)

// Error codes the sync engine branches on. Classification is always by
// code string, never by response shape.
const (
	CodeExists         = "exists"
	CodeOffsetMismatch = "offset_mismatch"
)

// StatusItem is the per-candidate payload sent to the status and chunk
// endpoints. Camera items carry Path/File/Camera/CameraMonth/CapturedAt;
// folder items carry Target. Size and Overwrite are common to both.
type StatusItem struct {
	// Folder kind: normalized remote relative path.
	Target string `json:"target,omitempty"`

	// Camera kind: the server resolves the final location from the base
	// path, filename and month bucket.
	Path        string `json:"path,omitempty"`
	File        string `json:"file,omitempty"`
	Camera      int    `json:"camera,omitempty"`
	CameraMonth string `json:"cameraMonth,omitempty"`
	CapturedAt  string `json:"capturedAt,omitempty"`

	Size      int64 `json:"size"`
	Overwrite bool  `json:"overwrite"`
}

// UploadStatus is the classified outcome of a status query for one item.
type UploadStatus struct {
	Status string
	Offset int64
}

// Capabilities describes what the server allows this client to do.
type Capabilities struct {
	UploadsEnabled bool
	// ChunkSize is the server-advertised upload chunk size in bytes.
	// Zero means the server advertised nothing usable.
	ChunkSize int64
}

// ListEntry is one row of a paginated directory listing.
type ListEntry struct {
	Path   string
	RootID string
	IsDir  bool
}
