// Package state persists client-side configuration and the cached auth
// token in a bbolt database. Settings are written immediately on change
// and reloaded at startup, so a sync run always starts from what the
// user last selected.
package state

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

const (
	// stateDirPerm is the permission mode for the state directory (~/.media-sync/).
	stateDirPerm = fs.FileMode(0o700)

	// stateFilePerm is the permission mode for the state database file.
	stateFilePerm = fs.FileMode(0o600)

	// stateOpenTimeout is the maximum time to wait for the bolt database lock.
	stateOpenTimeout = 5 * time.Second
)

var (
	appBucket   = []byte("app")
	tokenKey    = []byte("token")
	settingsKey = []byte("settings")
)

// Settings holds everything the user can change between sync runs.
// Stored as a single JSON document under the app bucket. Enum-like
// fields (Source, ConflictPolicy) are kept as strings here; the sync
// engine parses them into typed values at run start.
type Settings struct {
	// DestRoot is the id of the destination storage root on the server.
	DestRoot string `json:"dest_root"`
	// BasePath is the upload base path beneath the destination root.
	BasePath string `json:"base_path"`
	// Source selects what is synced: "camera" or "folder".
	Source string `json:"source"`
	// LocalFolder is the absolute path of the folder-source directory.
	LocalFolder string `json:"local_folder"`
	// CameraDir is the absolute path of the local camera roll directory.
	CameraDir string `json:"camera_dir"`
	// IncludeVideos extends the camera source from photos to photos+videos.
	IncludeVideos bool `json:"include_videos"`
	// MirrorDelete prunes remote files absent from the local folder.
	MirrorDelete bool `json:"mirror_delete"`
	// ConflictPolicy is "skip", "overwrite" or "rename".
	ConflictPolicy string `json:"conflict_policy"`
}

// DefaultSettings returns the settings used before the user has chosen
// anything: camera source, photos only, skip on conflict.
func DefaultSettings() Settings {
	return Settings{
		Source:         "camera",
		ConflictPolicy: "skip",
	}
}

// State wraps a bbolt database for all persistent application state.
type State struct {
	db *bolt.DB
}

// Load opens the state database at ~/.media-sync/state.db, creating it
// if it does not exist. The app bucket is created on open.
func Load() (*State, error) {
	return LoadAt(dbPath())
}

// LoadAt opens a state database at the given path, creating it if it
// does not exist. Useful for tests that need an isolated database.
func LoadAt(path string) (*State, error) {
	if err := os.MkdirAll(filepath.Dir(path), stateDirPerm); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}

	db, err := bolt.Open(path, stateFilePerm, &bolt.Options{Timeout: stateOpenTimeout})
	if err != nil {
		return nil, fmt.Errorf("opening state db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(appBucket)

		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing state db: %w", err)
	}

	return &State{db: db}, nil
}

// Close closes the database.
func (s *State) Close() error {
	return s.db.Close()
}

// Token returns the cached authentication token, or empty string.
func (s *State) Token() string {
	var token string

	_ = s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(appBucket)

		v := b.Get(tokenKey)
		if v != nil {
			token = string(v)
		}

		return nil
	})

	return token
}

// SetToken persists the authentication token.
func (s *State) SetToken(token string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(appBucket).Put(tokenKey, []byte(token))
	})
}

// Settings returns the persisted sync settings, or the defaults when
// nothing has been stored yet.
func (s *State) Settings() (Settings, error) {
	settings := DefaultSettings()

	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(appBucket)

		v := b.Get(settingsKey)
		if v == nil {
			return nil
		}

		return json.Unmarshal(v, &settings)
	})
	if err != nil {
		return Settings{}, fmt.Errorf("reading settings: %w", err)
	}

	return settings, nil
}

// SetSettings persists the sync settings.
func (s *State) SetSettings(settings Settings) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(settings)
		if err != nil {
			return err
		}

		return tx.Bucket(appBucket).Put(settingsKey, data)
	})
}

func dbPath() string {
	dir, err := os.UserHomeDir()
	if err != nil {
		// Fail loudly rather than silently writing to the current directory
		// where the database (containing the session token) might end up
		// with wrong permissions or inside a source-controlled tree.
		fmt.Fprintf(os.Stderr, "fatal: cannot determine home directory: %v\n", err)
		os.Exit(1)
	}

	return filepath.Join(dir, ".media-sync", "state.db")
}
