package pty

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"unicode"

	"github.com/google/uuid"
	runewidth "github.com/mattn/go-runewidth"

	"bavini/builtins"
	"bavini/log"
	"bavini/mount"
	"bavini/shell"
)

// EventKind tags output events handed to the host widget.
type EventKind string

const (
	EventStdout EventKind = "stdout"
	EventStderr EventKind = "stderr"
	EventPrompt EventKind = "prompt"
)

// Event is one chunk of terminal output.
type Event struct {
	Kind EventKind
	Data string
}

// escState tracks the escape-sequence scanner.
type escState int

const (
	escNone escState = iota
	escSawEsc
	escInCSI
)

// PTY is the virtual terminal. It owns its shell state, line buffer and
// executor, and holds a shared reference to the mount manager. All entry
// points serialize on one mutex; while a pipeline runs, only Ctrl-C is
// honored and every other input byte is dropped.
type PTY struct {
	ID string

	mu       sync.Mutex
	executor *Executor
	state    shell.State
	logger   log.LibraryLogger

	output        func(Event)
	onStateChange func(shell.State)
	onExit        func()

	cols, rows int

	buffer    []rune
	cursor    int
	histIdx   int // -1 = not navigating
	savedLine []rune

	esc       escState
	escParams []byte

	isExecuting bool
	cancel      context.CancelFunc
	execDone    chan struct{}
}

// New creates a PTY over the shared mount manager. A nil logger is
// replaced by NoOp.
func New(mounts *mount.Manager, registry *builtins.Registry, state shell.State, logger log.LibraryLogger) *PTY {
	if logger == nil {
		logger = log.NoOpLogger{}
	}
	return &PTY{
		ID:       uuid.New().String(),
		executor: NewExecutor(mounts, registry, logger),
		state:    state,
		logger:   logger,
		cols:     80,
		rows:     24,
		histIdx:  -1,
	}
}

// SetOutput registers the output callback. Events may be emitted from the
// execution goroutine.
func (p *PTY) SetOutput(cb func(Event)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.output = cb
}

// OnStateChange registers a callback fired after every pipeline completes.
func (p *PTY) OnStateChange(cb func(shell.State)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onStateChange = cb
}

// OnExit registers a callback for Ctrl-D on an empty line.
func (p *PTY) OnExit(cb func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onExit = cb
}

// Resize updates the advisory terminal dimensions.
func (p *PTY) Resize(cols, rows int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if cols > 0 {
		p.cols = cols
	}
	if rows > 0 {
		p.rows = rows
	}
}

// State returns a snapshot of the shell state.
func (p *PTY) State() shell.State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Line returns the current edit buffer and cursor position.
func (p *PTY) Line() (string, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return string(p.buffer), p.cursor
}

// Start emits the first prompt.
func (p *PTY) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.emitPrompt()
}

// WaitIdle blocks until the currently running pipeline (if any) finishes.
func (p *PTY) WaitIdle() {
	p.mu.Lock()
	done := p.execDone
	p.mu.Unlock()
	if done != nil {
		<-done
	}
}

func (p *PTY) emit(kind EventKind, data string) {
	if p.output != nil && data != "" {
		p.output(Event{Kind: kind, Data: data})
	}
}

func (p *PTY) emitPrompt() {
	p.emit(EventPrompt, shell.PromptString(p.state))
}

// Write feeds raw input bytes into the terminal. Escape sequences are
// consumed atomically; while a pipeline is executing only Ctrl-C has any
// effect.
func (p *PTY) Write(data []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, b := range data {
		if p.isExecuting {
			if b == keyCtrlC && p.cancel != nil {
				p.cancel()
			}
			continue
		}
		p.feed(b)
	}
}

// feed advances the input state machine by one byte.
func (p *PTY) feed(b byte) {
	switch p.esc {
	case escSawEsc:
		if b == '[' {
			p.esc = escInCSI
			p.escParams = p.escParams[:0]
			return
		}
		// Lone ESC followed by anything else is dropped.
		p.esc = escNone
		return
	case escInCSI:
		// A CSI sequence ends at the first final byte (0x40-0x7E).
		if b >= 0x40 && b <= 0x7e {
			p.esc = escNone
			p.handleCSI(b)
			return
		}
		p.escParams = append(p.escParams, b)
		return
	}

	switch b {
	case keyEscape:
		p.esc = escSawEsc
	case keyEnter, keyNewline:
		p.commitLine()
	case keyBackspace, keyDelete:
		if p.cursor > 0 {
			p.buffer = append(p.buffer[:p.cursor-1], p.buffer[p.cursor:]...)
			p.cursor--
			p.redraw()
		}
	case keyCtrlC:
		p.buffer = p.buffer[:0]
		p.cursor = 0
		p.histIdx = -1
		p.emit(EventStdout, "^C"+ansiCRLF)
		p.emitPrompt()
	case keyCtrlD:
		if len(p.buffer) == 0 {
			p.emit(EventStdout, "exit"+ansiCRLF)
			if p.onExit != nil {
				p.onExit()
			}
		}
	case keyCtrlL:
		p.emit(EventStdout, ansiClear)
		p.redraw()
	case keyCtrlU:
		p.buffer = append([]rune(nil), p.buffer[p.cursor:]...)
		p.cursor = 0
		p.redraw()
	case keyCtrlW:
		p.killWord()
	case keyCtrlA:
		p.cursor = 0
		p.redraw()
	case keyCtrlE:
		p.cursor = len(p.buffer)
		p.redraw()
	case keyCtrlK:
		p.buffer = p.buffer[:p.cursor]
		p.redraw()
	case keyTab:
		// Placeholder completion.
		p.insert([]rune("    "))
	default:
		if b >= 0x20 && b <= 0x7e {
			p.insert([]rune{rune(b)})
		}
	}
}

// handleCSI applies a completed escape sequence. Unknown finals are inert.
func (p *PTY) handleCSI(final byte) {
	switch final {
	case 'A':
		p.historyPrev()
	case 'B':
		p.historyNext()
	case 'C':
		if p.cursor < len(p.buffer) {
			p.cursor++
			p.redraw()
		}
	case 'D':
		if p.cursor > 0 {
			p.cursor--
			p.redraw()
		}
	case 'H':
		p.cursor = 0
		p.redraw()
	case 'F':
		p.cursor = len(p.buffer)
		p.redraw()
	}
}

// insert places runes at the cursor and redraws.
func (p *PTY) insert(runes []rune) {
	p.buffer = append(p.buffer[:p.cursor], append(append([]rune(nil), runes...), p.buffer[p.cursor:]...)...)
	p.cursor += len(runes)
	p.redraw()
}

// killWord removes the whitespace-delimited word left of the cursor.
func (p *PTY) killWord() {
	i := p.cursor
	for i > 0 && unicode.IsSpace(p.buffer[i-1]) {
		i--
	}
	for i > 0 && !unicode.IsSpace(p.buffer[i-1]) {
		i--
	}
	p.buffer = append(p.buffer[:i], p.buffer[p.cursor:]...)
	p.cursor = i
	p.redraw()
}

// historyPrev walks backwards through history, stashing the in-progress
// line on first entry.
func (p *PTY) historyPrev() {
	if len(p.state.History) == 0 {
		return
	}
	if p.histIdx == -1 {
		p.savedLine = append([]rune(nil), p.buffer...)
		p.histIdx = len(p.state.History) - 1
	} else if p.histIdx > 0 {
		p.histIdx--
	}
	p.buffer = []rune(p.state.History[p.histIdx])
	p.cursor = len(p.buffer)
	p.redraw()
}

// historyNext walks forwards; stepping past the newest entry restores the
// stashed line.
func (p *PTY) historyNext() {
	if p.histIdx == -1 {
		return
	}
	p.histIdx++
	if p.histIdx >= len(p.state.History) {
		p.histIdx = -1
		p.buffer = append([]rune(nil), p.savedLine...)
	} else {
		p.buffer = []rune(p.state.History[p.histIdx])
	}
	p.cursor = len(p.buffer)
	p.redraw()
}

// redraw repaints the input line: carriage return, erase, prompt, buffer,
// then a cursor-back to the edit position.
func (p *PTY) redraw() {
	var b strings.Builder
	b.WriteString(ansiCR)
	b.WriteString(ansiEraseLine)
	b.WriteString(shell.PromptString(p.state))
	b.WriteString(string(p.buffer))
	if p.cursor < len(p.buffer) {
		back := runewidth.StringWidth(string(p.buffer[p.cursor:]))
		fmt.Fprintf(&b, "\x1b[%dD", back)
	}
	p.emit(EventStdout, b.String())
}

// commitLine finalizes the buffer and dispatches it. Called with the
// mutex held; execution itself runs on its own goroutine so input (and
// Ctrl-C in particular) stays live.
func (p *PTY) commitLine() {
	line := string(p.buffer)
	p.buffer = p.buffer[:0]
	p.cursor = 0
	p.histIdx = -1
	p.savedLine = nil
	p.emit(EventStdout, ansiCRLF)

	p.state = shell.AddToHistory(p.state, line)
	if strings.TrimSpace(line) == "" {
		p.emitPrompt()
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.isExecuting = true
	done := make(chan struct{})
	p.execDone = done

	state := p.state
	cols, rows := p.cols, p.rows
	go func() {
		defer close(done)
		defer cancel()

		stdout := func(s string) { p.emit(EventStdout, s) }
		stderr := func(s string) { p.emit(EventStderr, ansiRed+s+ansiReset) }

		res := p.runLine(ctx, line, state, stdout, stderr, cols, rows)

		p.mu.Lock()
		defer p.mu.Unlock()
		if ctx.Err() != nil {
			res.ExitCode = builtins.ExitInterrupted
		}
		if res.ExitCode == builtins.ExitInterrupted {
			p.emit(EventStdout, "^C"+ansiCRLF)
		}
		p.state = shell.ApplyUpdates(p.state, res.Updates)
		p.state = shell.WithExitCode(p.state, res.ExitCode)
		p.isExecuting = false
		p.cancel = nil
		p.execDone = nil
		p.emitPrompt()
		if p.onStateChange != nil {
			p.onStateChange(p.state)
		}
	}()
}

// runLine guards the executor call so a panicking stage cannot take the
// whole terminal down.
func (p *PTY) runLine(ctx context.Context, line string, state shell.State, stdout, stderr func(string), cols, rows int) (res ExecResult) {
	defer func() {
		if r := recover(); r != nil {
			stderr(fmt.Sprintf("Pipeline error: %v\n", r))
			res = ExecResult{ExitCode: builtins.ExitFailure}
		}
	}()
	return p.executor.ExecuteLine(ctx, line, state, stdout, stderr, cols, rows)
}
