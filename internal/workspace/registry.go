package workspace

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/golutra/golutra/internal/apperr"
)

// Registry is C12: the persisted project-id -> path mapping, one JSON
// file per user config directory, guarded by a sibling .lock file so
// concurrent daemon/CLI processes never interleave writes.
type Registry struct {
	dir string // directory containing registry.json and registry.lock
}

// Open prepares a Registry rooted at dir, creating dir if needed. It does
// not read registry.json yet — every operation below locks, reads,
// mutates, and writes within the same critical section.
func Open(dir string) (*Registry, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("workspace: open: %w", err)
	}
	return &Registry{dir: dir}, nil
}

func (r *Registry) path() string     { return filepath.Join(r.dir, "registry.json") }
func (r *Registry) lockPath() string { return filepath.Join(r.dir, "registry.lock") }

func (r *Registry) withLock(fn func(*registryFile) (*registryFile, error)) error {
	fl := flock.New(r.lockPath())
	if err := fl.Lock(); err != nil {
		return fmt.Errorf("workspace: acquire lock: %w", err)
	}
	defer fl.Unlock()

	rf, err := r.readLocked()
	if err != nil {
		return err
	}
	updated, err := fn(rf)
	if err != nil {
		return err
	}
	if updated == nil {
		return nil
	}
	return r.writeLocked(updated)
}

func (r *Registry) readLocked() (*registryFile, error) {
	data, err := os.ReadFile(r.path())
	if os.IsNotExist(err) {
		return &registryFile{Version: currentRegistryVersion, Entries: make(map[string]Entry)}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("workspace: read registry: %w", err)
	}
	var rf registryFile
	if err := json.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("workspace: parse registry: %w", err)
	}
	if rf.Entries == nil {
		rf.Entries = make(map[string]Entry)
	}
	return &rf, nil
}

// writeLocked writes rf atomically: encode to a temp file in the same
// directory, then rename over the target, so a crash mid-write never
// leaves a truncated registry.json behind.
func (r *Registry) writeLocked(rf *registryFile) error {
	rf.Version = currentRegistryVersion
	data, err := json.MarshalIndent(rf, "", "  ")
	if err != nil {
		return fmt.Errorf("workspace: encode registry: %w", err)
	}
	tmp := r.path() + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("workspace: write registry temp file: %w", err)
	}
	if err := os.Rename(tmp, r.path()); err != nil {
		return fmt.Errorf("workspace: commit registry: %w", err)
	}
	return nil
}

// Get returns the registered entry for projectID, if any.
func (r *Registry) Get(projectID string) (Entry, bool, error) {
	var out Entry
	var found bool
	err := r.withLock(func(rf *registryFile) (*registryFile, error) {
		out, found = rf.Entries[projectID]
		return nil, nil
	})
	return out, found, err
}

// ConflictError reports that a project's registered path differs from
// where the caller is opening it from, spec §4.12.
type ConflictError struct {
	ProjectID     string
	LastKnownPath string
	CurrentPath   string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("workspace: project %s is registered at %s, not %s", e.ProjectID, e.LastKnownPath, e.CurrentPath)
}

// Register records projectID at path, or verifies it already matches.
// A mismatch returns a *ConflictError rather than silently overwriting —
// the caller (C12's move/copy resolution) decides how to reconcile it.
func (r *Registry) Register(projectID, name, path string) error {
	return r.withLock(func(rf *registryFile) (*registryFile, error) {
		if existing, ok := rf.Entries[projectID]; ok && existing.Path != path {
			return nil, &ConflictError{ProjectID: projectID, LastKnownPath: existing.Path, CurrentPath: path}
		}
		rf.Entries[projectID] = Entry{ProjectID: projectID, Path: path, Name: name, LastOpenedAt: time.Now()}
		return rf, nil
	})
}

// Move updates projectID's registered path without complaint — the
// resolution a caller applies after confirming with the user that the
// project genuinely moved (spec §4.12's "Move" resolution for a conflict).
func (r *Registry) Move(projectID, newPath string) error {
	return r.withLock(func(rf *registryFile) (*registryFile, error) {
		e, ok := rf.Entries[projectID]
		if !ok {
			return nil, apperr.New(apperr.KindNotFound, "workspace.Move", "project not registered")
		}
		e.Path = newPath
		e.LastOpenedAt = time.Now()
		rf.Entries[projectID] = e
		return rf, nil
	})
}

// Copy registers a second, independent project id at newPath sharing
// name — the "Copy" resolution for a conflict (spec §4.12): the original
// registration at its old path is left untouched.
func (r *Registry) Copy(newProjectID, name, newPath string) error {
	return r.withLock(func(rf *registryFile) (*registryFile, error) {
		rf.Entries[newProjectID] = Entry{ProjectID: newProjectID, Path: newPath, Name: name, LastOpenedAt: time.Now()}
		return rf, nil
	})
}

// Touch updates an entry's LastOpenedAt, used whenever a workspace is
// opened so GC's staleness clock resets.
func (r *Registry) Touch(projectID string) error {
	return r.withLock(func(rf *registryFile) (*registryFile, error) {
		e, ok := rf.Entries[projectID]
		if !ok {
			return nil, apperr.New(apperr.KindNotFound, "workspace.Touch", "project not registered")
		}
		e.LastOpenedAt = time.Now()
		rf.Entries[projectID] = e
		return rf, nil
	})
}

// List returns every registered entry.
func (r *Registry) List() ([]Entry, error) {
	var out []Entry
	err := r.withLock(func(rf *registryFile) (*registryFile, error) {
		out = make([]Entry, 0, len(rf.Entries))
		for _, e := range rf.Entries {
			out = append(out, e)
		}
		return nil, nil
	})
	return out, err
}
