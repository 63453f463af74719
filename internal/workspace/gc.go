package workspace

import (
	"os"
	"time"
)

// GC removes at most gcBatchLimit entries whose path no longer exists on
// disk and whose LastOpenedAt is older than staleAfter, spec §4.12. It
// returns the project ids it removed so the caller can log them.
func (r *Registry) GC() ([]string, error) {
	var removed []string
	err := r.withLock(func(rf *registryFile) (*registryFile, error) {
		now := time.Now()
		for id, e := range rf.Entries {
			if len(removed) >= gcBatchLimit {
				break
			}
			if now.Sub(e.LastOpenedAt) < staleAfter {
				continue
			}
			if _, err := os.Stat(e.Path); err == nil {
				continue // path still exists; not stale regardless of age
			}
			delete(rf.Entries, id)
			removed = append(removed, id)
		}
		if len(removed) == 0 {
			return nil, nil
		}
		return rf, nil
	})
	return removed, err
}
