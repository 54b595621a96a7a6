// Package shell implements the Shell component: the command state machine
// exposed to the agent, wrapping Terminal with run/status_check/send_*
// operations and the freshness-window wait heuristic.
package shell

import (
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/lowkaihon/wcgwcore/internal/term"
)

// State is the command lifecycle state.
type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
)

// BusyError is returned by run when a command is already pending.
type BusyError struct{ Snapshot string }

func (e *BusyError) Error() string { return "a command is already running" }

// NotRunningError is returned by status_check when no command is pending.
type NotRunningError struct{}

func (e *NotRunningError) Error() string { return "no command is currently running" }

// UnescapedNewlineError is returned by run when command contains a raw
// newline (spec.md §4.2: the agent must use send_text for heredocs).
type UnescapedNewlineError struct{}

func (e *UnescapedNewlineError) Error() string {
	return "command contains an unescaped newline; use send_text for multi-line input"
}

// pollQuantum is the internal polling granularity for the wait heuristic.
const pollQuantum = 100 * time.Millisecond

// freshnessWindow is how long to tolerate no new output before giving up
// on a deadline-passed, non-idle command (spec.md §4.2, ≈4x the quantum).
const freshnessWindow = 4 * pollQuantum

// Result is returned by every Shell operation.
type Result struct {
	Output       string
	StatusWord   string // "still running" | "exited"
	ExitCode     int    // valid only when StatusWord == "exited"
	Cwd          string
	StreamingNote bool // deadline hit with continuous streaming output
}

// Shell wraps a Terminal with the one-in-flight command state machine.
type Shell struct {
	term       *term.Terminal
	state      State
	accumOut   strings.Builder
	startedAt  time.Time
	logger     *zap.Logger
}

// New wraps an already-started Terminal.
func New(t *term.Terminal, logger *zap.Logger) *Shell {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Shell{term: t, state: StateIdle, logger: logger}
}

// Run starts a new command. Refuses with BusyError if one is already
// pending (unless waitForSeconds == 0, which is also a Busy response per
// spec.md §4.2's edge case, just without interfering).
func (s *Shell) Run(command string, waitForSeconds float64) (Result, error) {
	if s.state == StateRunning {
		snap := s.currentSnapshot()
		return Result{}, &BusyError{Snapshot: snap}
	}
	if strings.ContainsAny(command, "\n") {
		return Result{}, &UnescapedNewlineError{}
	}

	if err := s.term.SendText([]byte(command + "\n")); err != nil {
		return Result{}, err
	}
	s.state = StateRunning
	s.startedAt = time.Now()
	s.accumOut.Reset()
	s.logger.Info("command started", zap.String("command", command))

	return s.wait(waitForSeconds)
}

// StatusCheck runs the wait heuristic without sending new input. Only
// valid while running.
func (s *Shell) StatusCheck(waitForSeconds float64) (Result, error) {
	if s.state != StateRunning {
		return Result{}, &NotRunningError{}
	}
	return s.wait(waitForSeconds)
}

// SendText passes bytes through to Terminal, running the wait heuristic
// afterward if hasWait is set.
func (s *Shell) SendText(data []byte, waitForSeconds float64, hasWait bool) (Result, error) {
	if err := s.term.SendText(data); err != nil {
		return Result{}, err
	}
	if !hasWait {
		return Result{StatusWord: s.statusWord()}, nil
	}
	return s.wait(waitForSeconds)
}

// SendSpecials passes symbolic keys through to Terminal. Ctrl-c here is
// just a keystroke — it never calls Terminal.Interrupt (spec.md §4.2).
func (s *Shell) SendSpecials(keys []string, waitForSeconds float64, hasWait bool) (Result, error) {
	if err := s.term.SendSpecials(keys); err != nil {
		return Result{}, err
	}
	if !hasWait {
		return Result{StatusWord: s.statusWord()}, nil
	}
	return s.wait(waitForSeconds)
}

// SendASCII passes raw byte codes through to Terminal.
func (s *Shell) SendASCII(codes []int, waitForSeconds float64, hasWait bool) (Result, error) {
	if err := s.term.SendASCII(codes); err != nil {
		return Result{}, err
	}
	if !hasWait {
		return Result{StatusWord: s.statusWord()}, nil
	}
	return s.wait(waitForSeconds)
}

func (s *Shell) statusWord() string {
	if s.state == StateRunning {
		return "still running"
	}
	return "exited"
}

func (s *Shell) currentSnapshot() string {
	res, err := s.term.Poll(0)
	if err != nil {
		return ""
	}
	return res.Delta
}

// wait implements spec.md §4.2's wait heuristic.
func (s *Shell) wait(waitForSeconds float64) (Result, error) {
	deadline := time.Now().Add(time.Duration(waitForSeconds * float64(time.Second)))
	lastNewOutput := time.Now()
	streaming := false

	for {
		quantum := pollQuantum
		if remaining := time.Until(deadline); remaining > 0 && remaining < quantum {
			quantum = remaining
		}
		res, err := s.term.Poll(quantum)
		if err != nil {
			return Result{}, err
		}
		if res.Delta != "" {
			s.accumOut.WriteString(res.Delta)
			lastNewOutput = time.Now()
			streaming = true
		}

		if res.Idle {
			s.state = StateIdle
			out := s.accumOut.String()
			return Result{
				Output:     out,
				StatusWord: "exited",
				ExitCode:   res.ExitCode,
				Cwd:        res.Pwd,
			}, nil
		}

		now := time.Now()
		deadlinePassed := !now.Before(deadline)
		noOutputFor := now.Sub(lastNewOutput)

		if deadlinePassed && noOutputFor >= freshnessWindow {
			return Result{
				Output:     s.accumOut.String(),
				StatusWord: "still running",
			}, nil
		}
		if deadlinePassed && streaming {
			return Result{
				Output:        s.accumOut.String(),
				StatusWord:    "still running",
				StreamingNote: true,
			}, nil
		}
	}
}

// State reports the current lifecycle state.
func (s *Shell) State() State { return s.state }
