package session

import (
	"bytes"
	"context"
	"log/slog"
	"time"

	"github.com/golutra/golutra/internal/apperr"
	"github.com/golutra/golutra/internal/ptyspawn"
	"github.com/golutra/golutra/internal/semantic"
	"github.com/golutra/golutra/internal/triggerbus"
)

// Flow-control and batching constants, spec §4.4.
const (
	AckHighWaterMark = 200 * 1024
	AckLowWaterMark  = 20 * 1024
	BatchInterval    = 16 * time.Millisecond
	BatchMaxBytes    = 64 * 1024
)

// OutputSink receives batched, shim-marker-stripped PTY output ready to
// forward to connected clients.
type OutputSink interface {
	EmitOutput(sessionID string, data []byte)
}

// Pipeline runs C4: one reader goroutine per session draining the PTY,
// stripping shim markers, feeding the VT emulator and (if active) the
// semantic worker, and batching output for client delivery (flushed every
// BatchInterval or once BatchMaxBytes accumulate). It keeps no count of
// unacknowledged bytes and never pauses reading: AckHighWaterMark and
// AckLowWaterMark are not used by it.
type Pipeline struct {
	reg  *Registry
	sink OutputSink
	log  *slog.Logger
}

func NewPipeline(reg *Registry, sink OutputSink) *Pipeline {
	return &Pipeline{reg: reg, sink: sink, log: slog.With("component", "session.pipeline")}
}

// Run drains ts's PTY until it exits or ctx is canceled. Intended to run
// on its own goroutine per session, started right after Registry.Create.
func (p *Pipeline) Run(ctx context.Context, ts *TerminalSession) {
	buf := make([]byte, 32*1024)
	var batch bytes.Buffer
	flushTimer := time.NewTimer(BatchInterval)
	defer flushTimer.Stop()

	flush := func() {
		if batch.Len() == 0 {
			return
		}
		p.sink.EmitOutput(ts.ID, append([]byte(nil), batch.Bytes()...))
		batch.Reset()
	}

	events := make(chan readerEvent, 1)
	go func() {
		for {
			n, err := ts.pty.PTY.Read(buf)
			if n > 0 {
				chunk := append([]byte(nil), buf[:n]...)
				select {
				case events <- readerEvent{chunk: chunk}:
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				events <- readerEvent{closed: true}
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			p.onExit(ts, -1)
			return
		case ev := <-events:
			if ev.closed {
				code := p.waitExitCode(ts)
				flush()
				p.onExit(ts, code)
				return
			}
			p.handleChunk(ts, ev.chunk, &batch)
			if batch.Len() >= BatchMaxBytes {
				flush()
			}
		case <-flushTimer.C:
			flush()
			flushTimer.Reset(BatchInterval)
		}
	}
}

// readerEvent is one message from the blocking PTY-read goroutine to the
// pipeline's select loop: either a chunk of output or end-of-stream.
type readerEvent struct {
	chunk  []byte
	closed bool
}

func (p *Pipeline) handleChunk(ts *TerminalSession, chunk []byte, batch *bytes.Buffer) {
	if !ts.Status().shellReadyBit() {
		if ptyspawn.FindReady(chunk) {
			ts.noteShellReady()
			p.reg.publish(triggerbus.FactShellReady, ts.ID)
		}
		if reason, ok := ptyspawn.FindLaunchError(chunk); ok {
			p.log.Warn("shim reported launch error", "session_id", ts.ID, "reason", reason)
		}
	}

	clean := ptyspawn.StripShimMarkers(chunk)
	if len(clean) == 0 {
		return
	}

	ts.emu.Write(clean)
	ts.noteOutput(time.Now())
	p.reg.markWorking(ts.ID)
	p.reg.publish(triggerbus.FactOutputUpdated, ts.ID)

	if sema := ts.semaWorker(); sema != nil {
		sema.Send(semantic.Event{Kind: semantic.EventOutput, Data: clean})
	}

	batch.Write(clean)
}

func (p *Pipeline) waitExitCode(ts *TerminalSession) int {
	if ts.pty.Cmd == nil {
		return 0
	}
	err := ts.pty.Cmd.Wait()
	if err == nil {
		return 0
	}
	return exitCodeFromErr(err)
}

func (p *Pipeline) onExit(ts *TerminalSession, code int) {
	ts.markOffline()
	p.reg.clearWorking(ts.ID)
	if sema := ts.semaWorker(); sema != nil {
		sema.Send(semantic.Event{Kind: semantic.EventFlush, MsgType: "exit", Source: "system"})
		sema.Send(semantic.Event{Kind: semantic.EventShutdown})
	}
	p.log.Info("session exited", "session_id", ts.ID, "exit_code", code)
}

// WriteRawInput pushes raw keystroke bytes (not a chat dispatch) straight
// to the PTY — the path used by an interactively attached client.
func (ts *TerminalSession) WriteRawInput(p []byte) error {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if ts.pty == nil || ts.pty.PTY == nil {
		return apperr.New(apperr.KindState, "WriteRawInput", "session has no active pty")
	}
	_, err := ts.pty.PTY.Write(p)
	if err != nil {
		return apperr.Wrap(apperr.KindIO, "WriteRawInput", "pty write failed", err)
	}
	return nil
}

// Resize applies a new viewport size to both the PTY and the VT emulator.
func (ts *TerminalSession) Resize(rows, cols int) error {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.emu.SetSize(rows, cols)
	if sema := ts.sema; sema != nil {
		sema.Send(semantic.Event{Kind: semantic.EventResize, Rows: rows, Cols: cols})
	}
	if ts.pty == nil || ts.pty.PTY == nil {
		return nil
	}
	return ptyspawn.Resize(ts.pty.PTY, rows, cols)
}

func (ts *TerminalSession) semaWorker() *semantic.Worker {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.sema
}

// shellReadyBit is a tiny helper so handleChunk can skip the ready-marker
// scan once a session is already past Connecting.
func (s Status) shellReadyBit() bool {
	return s != StatusConnecting
}

// exitCodeFromErr extracts a process exit code from the error
// exec.Cmd.Wait returns (an *exec.ExitError reports -1 for a process
// killed by a signal), defaulting to 1 for errors without an ExitCode.
func exitCodeFromErr(err error) int {
	if ec, ok := err.(interface{ ExitCode() int }); ok {
		return ec.ExitCode()
	}
	return 1
}
