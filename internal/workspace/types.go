// Package workspace implements C12: the cross-process registry mapping a
// project id to the filesystem path the daemon last knew it at, guarded by
// a file lock so two daemon instances (or a daemon and an operator CLI
// invocation) never write registry.json concurrently. Grounded on the
// teacher's directory-resolution style (internal/config/paths.go) for
// layout, and gastown's internal/quota/state.go for the flock-guarded
// atomic-JSON persistence pattern — the closest pack analogue to a
// cross-process registry file, repurposed here from quota accounting to
// workspace-path bookkeeping.
package workspace

import "time"

// Entry is one tracked project's registry row, spec §4.12.
type Entry struct {
	ProjectID    string    `json:"project_id"`
	Path         string    `json:"path"`
	Name         string    `json:"name"`
	LastOpenedAt time.Time `json:"last_opened_at"`
}

// registryFile is registry.json's on-disk shape.
type registryFile struct {
	Version int              `json:"version"`
	Entries map[string]Entry `json:"entries"`
}

const currentRegistryVersion = 1

// staleAfter is the GC threshold spec §4.12 names: an entry whose path no
// longer exists on disk and hasn't been opened in this long is eligible
// for removal.
const staleAfter = 30 * 24 * time.Hour

// gcBatchLimit bounds how many stale entries one GC call removes, so a
// registry with a large backlog of dead projects doesn't pause the
// calling operation, spec §4.12.
const gcBatchLimit = 12
