// Package semantic implements the per-session secondary emulator that
// turns PTY output between a chat-originated command and idle back into
// chat messages (spec §4.8 and design note "semantic block control flow":
// the open-at-input/close-at-idle generator pattern is an explicit event
// queue, not a goroutine-as-coroutine).
package semantic

import (
	"strings"
	"sync"
	"time"

	"github.com/golutra/golutra/internal/dispatch"
	"github.com/golutra/golutra/internal/idgen"
	"github.com/golutra/golutra/internal/vterm"
)

// EventKind enumerates the semantic worker's event queue entries.
type EventKind int

const (
	EventUserInput EventKind = iota
	EventOutput
	EventFlush
	EventResize
	EventSeedSnapshot
	EventShutdown
)

// Event is one entry on a worker's queue.
type Event struct {
	Kind    EventKind
	Data    []byte
	Ctx     dispatch.Context
	Rows    int
	Cols    int
	MsgType string // for EventFlush
	Source  string // for EventFlush, e.g. "system" on process exit
}

// Sink receives the chat messages a worker produces.
type Sink interface {
	EmitStreaming(terminalID, spanID, content string, ctx dispatch.Context)
	EmitFinal(terminalID, spanID, msgType, source, content string, ctx dispatch.Context)
}

const streamThrottle = 160 * time.Millisecond

// Worker captures PTY output belonging to one in-flight chat-originated
// command and, at Flush, runs it through the filter pipeline and emits a
// final chat message. Exactly one Worker exists per session with an
// active semantic capture; it is not shared.
type Worker struct {
	terminalID   string
	terminalType string
	emu          *vterm.Emulator
	sink         Sink
	filter       Filter
	onGateRelease func(terminalID string)

	events chan Event

	mu          sync.Mutex
	blockOpen   bool
	spanID      string
	lastCommand string
	ctx         dispatch.Context
	lastStream  string
	lastStreamAt time.Time
}

// New constructs a worker. onGateRelease is called each time a Flush
// closes an open output block (a Flush with no open block does not call
// it) so the dispatch queue (spec §4.6) can advance to its next batch; it
// must not block.
func New(terminalID, terminalType string, rows, cols int, sink Sink, filter Filter, onGateRelease func(string)) *Worker {
	return &Worker{
		terminalID:    terminalID,
		terminalType:  terminalType,
		emu:           vterm.New(rows, cols),
		sink:          sink,
		filter:        filter,
		onGateRelease: onGateRelease,
		events:        make(chan Event, 64),
	}
}

// Send enqueues an event for the worker's Run loop. It never blocks: when
// the 64-event buffer is full, the event is dropped without notice.
func (w *Worker) Send(ev Event) {
	select {
	case w.events <- ev:
	default:
	}
}

// Run processes events until EventShutdown. Intended to run on its own
// goroutine, one per session with active semantic capture.
func (w *Worker) Run() {
	for ev := range w.events {
		switch ev.Kind {
		case EventUserInput:
			w.onUserInput(ev)
		case EventOutput:
			w.onOutput(ev)
		case EventFlush:
			w.onFlush(ev)
		case EventResize:
			w.emu.SetSize(ev.Rows, ev.Cols)
		case EventSeedSnapshot:
			w.emu.Write(ev.Data)
		case EventShutdown:
			return
		}
	}
}

func (w *Worker) onUserInput(ev Event) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.blockOpen {
		return
	}
	w.blockOpen = true
	w.spanID = idgen.New()
	w.lastCommand = extractCommand(ev.Data)
	w.ctx = ev.Ctx
	w.lastStream = ""
	w.lastStreamAt = time.Time{}
}

func (w *Worker) onOutput(ev Event) {
	w.emu.Write(ev.Data)

	w.mu.Lock()
	open := w.blockOpen
	spanID := w.spanID
	ctx := w.ctx
	sinceLast := time.Since(w.lastStreamAt)
	w.mu.Unlock()
	if !open {
		return
	}
	if sinceLast < streamThrottle {
		return
	}

	lines := w.emu.LogicalLines()
	content := strings.Join(lines, "\n")

	w.mu.Lock()
	prev := w.lastStream
	w.lastStream = content
	w.lastStreamAt = time.Now()
	w.mu.Unlock()

	delta := content
	if strings.HasPrefix(content, prev) {
		delta = content[len(prev):]
	}
	if delta == "" {
		return
	}
	w.sink.EmitStreaming(w.terminalID, spanID, delta, ctx)
}

// Flush is idempotent: a second Flush with the block already closed is a
// no-op, per the design note in spec §9.
func (w *Worker) onFlush(ev Event) {
	w.mu.Lock()
	if !w.blockOpen {
		w.mu.Unlock()
		return
	}
	spanID := w.spanID
	lastCommand := w.lastCommand
	ctx := w.ctx
	w.blockOpen = false
	w.mu.Unlock()

	lines := w.emu.LogicalLines()
	verdict := w.filter(Input{
		TerminalID:   w.terminalID,
		TerminalType: w.terminalType,
		LastCommand:  lastCommand,
		NowMS:        time.Now().UnixMilli(),
		Source:       ev.Source,
		Mode:         ModeFinal,
		Lines:        lines,
	})

	if verdict.Decision == DecisionAllow {
		content := strings.Join(lines, "\n")
		if verdict.Lines != nil {
			content = strings.Join(verdict.Lines, "\n")
		}
		w.sink.EmitFinal(w.terminalID, spanID, ev.MsgType, ev.Source, content, ctx)
	}

	if w.onGateRelease != nil {
		w.onGateRelease(w.terminalID)
	}
}

// extractCommand takes the first line of chat-originated input text —
// the command the user effectively typed — trimmed of the trailing
// newline/carriage-return commit keystroke.
func extractCommand(data []byte) string {
	s := string(data)
	if i := strings.IndexAny(s, "\r\n"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
