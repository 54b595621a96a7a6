// Package term implements the Terminal component: one PTY-backed login
// shell driven by a VT100-compatible emulator, with idle detection via a
// prompt sentinel.
package term

import (
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"sync"
	"time"

	uv "github.com/charmbracelet/ultraviolet"
	"github.com/charmbracelet/x/vt"
	"github.com/creack/pty"
	"go.uber.org/zap"
)

// maxScrollbackLines bounds the scrollback ring so a long-lived shell
// doesn't grow memory unbounded, mirroring the wingthing egg package's
// VTerm scrollback ring.
const maxScrollbackLines = 10000

// Default virtual screen size, per spec.md §4.1.
const (
	DefaultCols = 160
	DefaultRows = 500
)

// ShellDeadError is returned by every operation before the first Start and
// once the child process has exited, until Restart is called.
type ShellDeadError struct{}

func (e *ShellDeadError) Error() string { return "shell is dead" }

// StillRunningError is returned by Interrupt when the shell fails to reach
// idle after the interrupt budget.
type StillRunningError struct{}

func (e *StillRunningError) Error() string { return "still running after interrupt" }

// Terminal owns a PTY child and its VT100 emulator.
type Terminal struct {
	mu sync.Mutex

	ptmx *os.File
	cmd  *exec.Cmd
	emu  *vt.Emulator

	cols, rows int
	sentinelRe *regexp.Regexp

	dead         bool
	notify       chan struct{}
	lastRendered string

	scrollback []string // ring buffer of lines scrolled off the top
	sbHead     int
	sbLen      int
	altScreen  bool

	logger *zap.Logger
}

// New creates an unstarted Terminal with the default virtual screen size.
// It reports Dead until Start is called.
func New(logger *zap.Logger) *Terminal {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Terminal{cols: DefaultCols, rows: DefaultRows, dead: true, logger: logger}
}

// detectShell picks the user's preferred shell, falling back to a POSIX
// shell, mirroring the kandev shell-session idiom.
func detectShell() (string, []string) {
	if shell := os.Getenv("SHELL"); shell != "" {
		return shell, []string{"-l"}
	}
	for _, sh := range []string{"/bin/bash", "/bin/zsh", "/bin/sh"} {
		if _, err := os.Stat(sh); err == nil {
			return sh, []string{"-l"}
		}
	}
	return "/bin/sh", nil
}

// Start forks the login shell child and begins feeding its output to the
// emulator. Restart is the idempotent re-entry point after a dead shell.
func (t *Terminal) Start(cwd string, env []string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.startLocked(cwd, env)
}

func (t *Terminal) startLocked(cwd string, env []string) error {
	shell, args := detectShell()
	cmd := exec.Command(shell, args...)
	cmd.Dir = cwd
	cmd.Env = env

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{Cols: uint16(t.cols), Rows: uint16(t.rows)})
	if err != nil {
		return fmt.Errorf("start pty: %w", err)
	}

	t.ptmx = ptmx
	t.cmd = cmd
	t.emu = vt.NewEmulator(t.cols, t.rows)
	t.dead = false
	t.notify = make(chan struct{})
	t.lastRendered = ""
	t.scrollback = make([]string, maxScrollbackLines)
	t.sbHead = 0
	t.sbLen = 0
	t.altScreen = false

	t.emu.SetCallbacks(vt.Callbacks{
		ScrollOut: func(lines []uv.Line) {
			// emu.Write already holds t.mu when this fires.
			if t.altScreen {
				return
			}
			for _, line := range lines {
				t.pushScrollback(line.Render())
			}
		},
		ScrollbackClear: func() {
			for i := range t.scrollback {
				t.scrollback[i] = ""
			}
			t.sbHead, t.sbLen = 0, 0
		},
		AltScreen: func(on bool) {
			t.altScreen = on
		},
	})

	nonce := newSentinelNonce()
	t.sentinelRe = sentinelRegexp(nonce)

	go t.readLoop()
	go t.waitExit()

	if _, err := t.ptmx.Write([]byte(promptCommand(nonce))); err != nil {
		return fmt.Errorf("write prompt sentinel: %w", err)
	}

	t.logger.Info("terminal started",
		zap.String("shell", shell),
		zap.Int("pid", cmd.Process.Pid),
		zap.String("cwd", cwd))
	return nil
}

// Restart tears down any running child (idempotent if already dead) and
// starts a fresh one.
func (t *Terminal) Restart(cwd string, env []string) error {
	t.mu.Lock()
	if t.cmd != nil && t.cmd.Process != nil && !t.dead {
		t.cmd.Process.Kill()
	}
	if t.ptmx != nil {
		t.ptmx.Close()
	}
	defer t.mu.Unlock()
	return t.startLocked(cwd, env)
}

func (t *Terminal) readLoop() {
	buf := make([]byte, 4096)
	for {
		n, err := t.ptmx.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			t.mu.Lock()
			t.emu.Write(data)
			ch := t.notify
			t.notify = make(chan struct{})
			t.mu.Unlock()
			close(ch)
		}
		if err != nil {
			t.markDead()
			return
		}
	}
}

func (t *Terminal) waitExit() {
	if t.cmd != nil {
		t.cmd.Wait()
	}
	t.markDead()
	t.logger.Info("terminal shell exited")
}

func (t *Terminal) markDead() {
	t.mu.Lock()
	if t.dead {
		t.mu.Unlock()
		return
	}
	t.dead = true
	ch := t.notify
	t.notify = make(chan struct{})
	t.mu.Unlock()
	close(ch)
}

func (t *Terminal) checkAlive() error {
	if t.dead {
		return &ShellDeadError{}
	}
	return nil
}

// SendText writes literal bytes to the PTY master with no newline added.
func (t *Terminal) SendText(data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.checkAlive(); err != nil {
		return err
	}
	_, err := t.ptmx.Write(data)
	return err
}

// SendSpecials writes the byte sequences for each symbolic key in order.
func (t *Terminal) SendSpecials(keys []string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.checkAlive(); err != nil {
		return err
	}
	for _, k := range keys {
		seq, ok := specialKeys[k]
		if !ok {
			return fmt.Errorf("unknown special key %q", k)
		}
		if _, err := t.ptmx.Write(seq); err != nil {
			return err
		}
	}
	return nil
}

// SendASCII writes raw byte codes.
func (t *Terminal) SendASCII(codes []int) error {
	buf := make([]byte, len(codes))
	for i, c := range codes {
		buf[i] = byte(c)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.checkAlive(); err != nil {
		return err
	}
	_, err := t.ptmx.Write(buf)
	return err
}

// PollResult is one Poll call's outcome.
type PollResult struct {
	Delta    string
	Idle     bool
	ExitCode int
	Pwd      string
}

// Poll reads available output until either the sentinel appears on the
// last non-empty row (idle) or maxWait elapses, returning the delta of
// rendered text since the last poll.
func (t *Terminal) Poll(maxWait time.Duration) (PollResult, error) {
	deadline := time.Now().Add(maxWait)
	for {
		t.mu.Lock()
		if err := t.checkAlive(); err != nil {
			t.mu.Unlock()
			return PollResult{}, err
		}
		rendered := t.emu.Render()
		delta := renderDelta(t.lastRendered, rendered)
		match, idle := findSentinel(t.sentinelRe, rendered)
		ch := t.notify
		t.mu.Unlock()

		if idle {
			t.mu.Lock()
			t.lastRendered = rendered
			t.mu.Unlock()
			return PollResult{Delta: delta, Idle: true, ExitCode: match.exitCode, Pwd: match.pwd}, nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			t.mu.Lock()
			t.lastRendered = rendered
			t.mu.Unlock()
			return PollResult{Delta: delta, Idle: false}, nil
		}

		select {
		case <-ch:
		case <-time.After(remaining):
			t.mu.Lock()
			t.lastRendered = rendered
			t.mu.Unlock()
			return PollResult{Delta: delta, Idle: false}, nil
		}
	}
}

// pushScrollback appends a scrolled-off line to the ring, evicting the
// oldest entry once full. Caller must hold t.mu (true from the ScrollOut
// callback, which fires inside emu.Write).
func (t *Terminal) pushScrollback(rendered string) {
	if t.sbLen == len(t.scrollback) {
		t.scrollback[t.sbHead] = ""
	}
	t.scrollback[t.sbHead] = rendered
	t.sbHead = (t.sbHead + 1) % len(t.scrollback)
	if t.sbLen < len(t.scrollback) {
		t.sbLen++
	}
}

// Scrollback returns every captured scrolled-off line, oldest first. Poll's
// delta is computed from the visible screen only and does not include these
// lines.
func (t *Terminal) Scrollback() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sbLen == 0 {
		return nil
	}
	out := make([]string, t.sbLen)
	start := (t.sbHead - t.sbLen + len(t.scrollback)) % len(t.scrollback)
	for i := 0; i < t.sbLen; i++ {
		out[i] = t.scrollback[(start+i)%len(t.scrollback)]
	}
	return out
}

// renderDelta returns the suffix of next that differs from prev, by
// common-line-prefix length — a cheap approximation of "what changed" that
// is exact for the common case of output being appended.
func renderDelta(prev, next string) string {
	if prev == next {
		return ""
	}
	prevLines := strings.Split(prev, "\n")
	nextLines := strings.Split(next, "\n")
	i := 0
	for i < len(prevLines) && i < len(nextLines) && prevLines[i] == nextLines[i] {
		i++
	}
	return strings.Join(nextLines[i:], "\n")
}

const interruptBudget = 2 * time.Second

// Interrupt sends Ctrl-c, waits for idle, and retries once before failing
// with StillRunningError.
func (t *Terminal) Interrupt() error {
	if err := t.SendASCII([]int{3}); err != nil {
		return err
	}
	res, err := t.Poll(interruptBudget)
	if err != nil {
		return err
	}
	if res.Idle {
		return nil
	}
	if err := t.SendASCII([]int{3}); err != nil {
		return err
	}
	res, err = t.Poll(interruptBudget)
	if err != nil {
		return err
	}
	if !res.Idle {
		return &StillRunningError{}
	}
	return nil
}

// Geometry resizes the PTY and the emulator's screen atomically.
func (t *Terminal) Geometry(rows, cols int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.checkAlive(); err != nil {
		return err
	}
	if err := pty.Setsize(t.ptmx, &pty.Winsize{Cols: uint16(cols), Rows: uint16(rows)}); err != nil {
		return fmt.Errorf("resize pty: %w", err)
	}
	t.emu.Resize(cols, rows)
	t.cols, t.rows = cols, rows
	return nil
}

// Dead reports whether no live shell is attached: the Terminal was never
// started or its shell has exited.
func (t *Terminal) Dead() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dead
}

// Close tears down the PTY and child process.
func (t *Terminal) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cmd != nil && t.cmd.Process != nil && !t.dead {
		t.cmd.Process.Kill()
	}
	if t.emu != nil {
		t.emu.Close()
	}
	if t.ptmx != nil {
		return t.ptmx.Close()
	}
	return nil
}
