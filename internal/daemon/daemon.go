// Package daemon wires together the registry, chat storage, orchestrator,
// and workspace registry into the long-running golutrad process, in the
// teacher's shape (signal-handling select loop over a small set of
// goroutines, internal/daemon/daemon.go) generalized from a task-timeline
// engine to the terminal-session pipeline this spec describes.
package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/golutra/golutra/internal/chatstore"
	"github.com/golutra/golutra/internal/cron"
	"github.com/golutra/golutra/internal/orchestrate"
	"github.com/golutra/golutra/internal/session"
	"github.com/golutra/golutra/internal/triggerbus"
	"github.com/golutra/golutra/internal/workspace"
)

// Config is golutrad's runtime configuration — a directory holding the
// workspace registry and per-workspace chat databases. SocketPath is
// recorded only; the daemon opens no socket on it.
type Config struct {
	Dir        string
	SocketPath string

	// GCSchedule is a 5-field cron expression (internal/cron) governing
	// how often the workspace registry's stale-entry sweep runs. Empty
	// disables the scheduled sweep.
	GCSchedule string

	// AuditDispatchLog, if set, turns on internal/session's dispatch-span
	// audit sink, appending one JSON line per completed command to this
	// path.
	AuditDispatchLog string
}

func (c Config) chatDBPath(workspaceID string) string {
	return filepath.Join(c.Dir, "workspaces", workspaceID, "chat.db")
}

func (c Config) registryDir() string {
	return filepath.Join(c.Dir, "registry")
}

// Daemon holds the long-lived components one golutrad process owns.
type Daemon struct {
	Config    Config
	Workspace *workspace.Registry
	Sessions  *session.Registry
	Bus       *triggerbus.Bus
	Poller    *session.Poller

	chatStores map[string]*chatstore.Store
}

// Run starts the daemon and blocks until it receives SIGINT/SIGTERM or a
// component goroutine fails.
func Run(cfg Config) error {
	if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
		return fmt.Errorf("daemon: create data dir: %w", err)
	}

	wsReg, err := workspace.Open(cfg.registryDir())
	if err != nil {
		return fmt.Errorf("daemon: open workspace registry: %w", err)
	}

	bus := triggerbus.New()
	sessions := session.NewRegistry(nil, bus)
	poller := session.NewPoller(sessions)

	if cfg.AuditDispatchLog != "" {
		f, err := os.OpenFile(cfg.AuditDispatchLog, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("daemon: open audit dispatch log: %w", err)
		}
		defer f.Close()
		sessions.EnableAudit(f)
	}

	d := &Daemon{
		Config:     cfg,
		Workspace:  wsReg,
		Sessions:   sessions,
		Bus:        bus,
		Poller:     poller,
		chatStores: make(map[string]*chatstore.Store),
	}
	defer d.closeChatStores()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	errCh := make(chan error, 2)

	go func() {
		slog.Info("status poller started")
		poller.Run(ctx)
		errCh <- nil
	}()

	go func() {
		slog.Info("workspace registry watch started")
		errCh <- wsReg.Watch(ctx, func() { slog.Debug("registry.json changed externally") })
	}()

	if cfg.GCSchedule != "" {
		sched, err := cron.Parse(cfg.GCSchedule)
		if err != nil {
			return fmt.Errorf("daemon: parse gc_schedule: %w", err)
		}
		go runScheduledGC(ctx, sched, wsReg)
	}

	slog.Info("golutrad started", "dir", cfg.Dir)

	select {
	case sig := <-sigCh:
		slog.Info("received signal, shutting down", "signal", sig.String())
		cancel()
		time.Sleep(time.Second)
	case err := <-errCh:
		if err != nil && err != context.Canceled {
			cancel()
			return fmt.Errorf("daemon: %w", err)
		}
	}

	return nil
}

// runScheduledGC fires workspace.Registry.GC at each time sched.Next
// produces, stopping when ctx is canceled. Grounded on internal/cron's
// Schedule.Next loop rather than a bare time.Ticker, so the sweep cadence
// can be reconfigured without code changes.
func runScheduledGC(ctx context.Context, sched *cron.Schedule, wsReg *workspace.Registry) {
	log := slog.With("component", "daemon.gc")
	for {
		next := sched.Next(time.Now())
		if next.IsZero() {
			log.Warn("cron schedule produced no next fire time, stopping sweep")
			return
		}
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			removed, err := wsReg.GC()
			if err != nil {
				log.Warn("gc sweep failed", "err", err)
				continue
			}
			if len(removed) > 0 {
				log.Info("gc sweep removed stale entries", "count", len(removed))
			}
		}
	}
}

// ChatStore returns the (lazily opened) chat store for a workspace, so
// the same database handle is reused across requests rather than
// reopened per call.
func (d *Daemon) ChatStore(workspaceID string) (*chatstore.Store, error) {
	if s, ok := d.chatStores[workspaceID]; ok {
		return s, nil
	}
	path := d.Config.chatDBPath(workspaceID)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("daemon: create workspace dir: %w", err)
	}
	s, err := chatstore.Open(path)
	if err != nil {
		return nil, fmt.Errorf("daemon: open chat store for %s: %w", workspaceID, err)
	}
	d.chatStores[workspaceID] = s
	return s, nil
}

func (d *Daemon) closeChatStores() {
	for id, s := range d.chatStores {
		if err := s.Close(); err != nil {
			slog.Warn("error closing chat store", "workspace_id", id, "err", err)
		}
	}
}

// Orchestrator builds an orchestrate.Orchestrator for workspaceID, tying
// its chat store to the daemon's shared session registry. members is the
// workspace's own member directory (workspace-scoped, not daemon-scoped,
// so it's supplied by the caller rather than held on Daemon).
func (d *Daemon) Orchestrator(workspaceID string, members orchestrate.MemberDirectory) (*orchestrate.Orchestrator, error) {
	store, err := d.ChatStore(workspaceID)
	if err != nil {
		return nil, err
	}
	return orchestrate.New(d.Sessions, store, members), nil
}
