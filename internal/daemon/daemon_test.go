package daemon

import (
	"testing"

	"github.com/golutra/golutra/internal/chatstore"
	"github.com/golutra/golutra/internal/orchestrate"
	"github.com/golutra/golutra/internal/session"
	"github.com/golutra/golutra/internal/triggerbus"
	"github.com/golutra/golutra/internal/workspace"
)

func newTestDaemon(t *testing.T) *Daemon {
	t.Helper()
	dir := t.TempDir()
	wsReg, err := workspace.Open(dir + "/registry")
	if err != nil {
		t.Fatalf("open workspace registry: %v", err)
	}
	bus := triggerbus.New()
	return &Daemon{
		Config:     Config{Dir: dir},
		Workspace:  wsReg,
		Sessions:   session.NewRegistry(nil, bus),
		Bus:        bus,
		chatStores: make(map[string]*chatstore.Store),
	}
}

func TestChatStoreReusesHandle(t *testing.T) {
	d := newTestDaemon(t)
	first, err := d.ChatStore("ws1")
	if err != nil {
		t.Fatalf("chat store: %v", err)
	}
	second, err := d.ChatStore("ws1")
	if err != nil {
		t.Fatalf("chat store: %v", err)
	}
	if first != second {
		t.Fatal("expected the same *chatstore.Store handle to be reused")
	}
	d.closeChatStores()
}

type fakeMembers struct{}

func (fakeMembers) Member(memberID string) (orchestrate.MemberConfig, bool) { return orchestrate.MemberConfig{}, false }
func (fakeMembers) Members(conversationID string) ([]orchestrate.Member, error) {
	return nil, nil
}

func TestOrchestratorBuildsAgainstSharedSessionRegistry(t *testing.T) {
	d := newTestDaemon(t)
	orch, err := d.Orchestrator("ws1", fakeMembers{})
	if err != nil {
		t.Fatalf("orchestrator: %v", err)
	}
	if orch == nil {
		t.Fatal("expected non-nil orchestrator")
	}
}
