package workspace

import (
	"testing"
	"time"
)

func openTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	return r
}

func TestRegisterAndGet(t *testing.T) {
	r := openTestRegistry(t)
	if err := r.Register("p1", "My Project", "/home/user/proj"); err != nil {
		t.Fatalf("register: %v", err)
	}
	e, ok, err := r.Get("p1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !ok || e.Path != "/home/user/proj" {
		t.Fatalf("got %+v", e)
	}
}

func TestRegisterConflict(t *testing.T) {
	r := openTestRegistry(t)
	if err := r.Register("p1", "My Project", "/a"); err != nil {
		t.Fatalf("register: %v", err)
	}
	err := r.Register("p1", "My Project", "/b")
	if err == nil {
		t.Fatal("expected conflict error")
	}
	if _, ok := err.(*ConflictError); !ok {
		t.Fatalf("expected *ConflictError, got %T", err)
	}
}

func TestMoveResolvesConflict(t *testing.T) {
	r := openTestRegistry(t)
	if err := r.Register("p1", "My Project", "/a"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := r.Move("p1", "/b"); err != nil {
		t.Fatalf("move: %v", err)
	}
	e, _, err := r.Get("p1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if e.Path != "/b" {
		t.Fatalf("path = %q, want /b", e.Path)
	}
}

func TestCopyCreatesIndependentEntry(t *testing.T) {
	r := openTestRegistry(t)
	if err := r.Register("p1", "My Project", "/a"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := r.Copy("p2", "My Project (copy)", "/b"); err != nil {
		t.Fatalf("copy: %v", err)
	}
	orig, _, _ := r.Get("p1")
	if orig.Path != "/a" {
		t.Fatalf("original entry mutated: %+v", orig)
	}
	copyEntry, ok, _ := r.Get("p2")
	if !ok || copyEntry.Path != "/b" {
		t.Fatalf("copy entry = %+v", copyEntry)
	}
}

func TestGCRemovesOnlyStaleMissingPaths(t *testing.T) {
	r := openTestRegistry(t)
	existingDir := t.TempDir()
	if err := r.Register("p1", "exists", existingDir); err != nil {
		t.Fatalf("register p1: %v", err)
	}
	if err := r.Register("p2", "missing-fresh", "/nonexistent/path"); err != nil {
		t.Fatalf("register p2: %v", err)
	}

	removed, err := r.GC()
	if err != nil {
		t.Fatalf("gc: %v", err)
	}
	if len(removed) != 0 {
		t.Fatalf("expected nothing removed (p2 not yet stale), got %v", removed)
	}

	err = r.withLock(func(rf *registryFile) (*registryFile, error) {
		e := rf.Entries["p2"]
		e.LastOpenedAt = time.Now().Add(-60 * 24 * time.Hour)
		rf.Entries["p2"] = e
		return rf, nil
	})
	if err != nil {
		t.Fatalf("backdate: %v", err)
	}

	removed, err = r.GC()
	if err != nil {
		t.Fatalf("gc: %v", err)
	}
	if len(removed) != 1 || removed[0] != "p2" {
		t.Fatalf("removed = %v, want [p2]", removed)
	}
	if _, ok, _ := r.Get("p1"); !ok {
		t.Fatal("p1 should survive GC (path exists)")
	}
}
