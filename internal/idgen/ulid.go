// Package idgen mints the 128-bit lexicographically sortable ids used
// throughout the core (terminal ids, message ids, member ids).
package idgen

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// entropy is a single shared, mutex-guarded source. ulid.ULID generation
// is not safe for concurrent use across goroutines without serialization
// of the monotonic reader, so we protect it here rather than asking every
// caller to do so.
var (
	mu      sync.Mutex
	entropy = ulid.Monotonic(rand.Reader, 0)
)

// New mints a new ULID for the current instant, 26-character Crockford
// base32 text form. Safe for concurrent use.
func New() string {
	mu.Lock()
	defer mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// NewAt mints a ULID for a specific instant — used by tests and by
// replay/import paths that must preserve original timestamps.
func NewAt(t time.Time) string {
	mu.Lock()
	defer mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}

// Timestamp extracts the embedded millisecond timestamp from a ULID's
// text form. Returns the zero time if id is malformed.
func Timestamp(id string) time.Time {
	parsed, err := ulid.ParseStrict(id)
	if err != nil {
		return time.Time{}
	}
	return ulid.Time(parsed.Time())
}

// Valid reports whether id is a well-formed 26-character ULID.
func Valid(id string) bool {
	_, err := ulid.ParseStrict(id)
	return err == nil
}
