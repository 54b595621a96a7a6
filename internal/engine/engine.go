// Package engine implements the Engine component: the tool dispatcher that
// binds RepoMap, Tracker, Mode, Terminal+Shell, TaskStore, FileIO, and
// FileEdit into the six boundary operations, per spec.md §4.9.
package engine

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/lowkaihon/wcgwcore/internal/config"
	"github.com/lowkaihon/wcgwcore/internal/fileedit"
	"github.com/lowkaihon/wcgwcore/internal/fileio"
	"github.com/lowkaihon/wcgwcore/internal/fsutil"
	"github.com/lowkaihon/wcgwcore/internal/mode"
	"github.com/lowkaihon/wcgwcore/internal/repomap"
	"github.com/lowkaihon/wcgwcore/internal/shell"
	"github.com/lowkaihon/wcgwcore/internal/syntaxcheck"
	"github.com/lowkaihon/wcgwcore/internal/taskstore"
	"github.com/lowkaihon/wcgwcore/internal/term"
	"github.com/lowkaihon/wcgwcore/internal/tracker"
)

// InitType is the Initialize reason, per spec.md §4.9.
type InitType string

const (
	FirstCall               InitType = "first_call"
	UserAskedModeChange     InitType = "user_asked_mode_change"
	ResetShell              InitType = "reset_shell"
	UserAskedChangeWorkspace InitType = "user_asked_change_workspace"
)

// ForbiddenError is Mode's denial surfaced at the Engine boundary.
type ForbiddenError struct{ Rule string }

func (e *ForbiddenError) Error() string { return fmt.Sprintf("forbidden: %s", e.Rule) }

// NotReadError is an edit/write attempted on a path the ledger has not
// observed at its current hash.
type NotReadError struct{ Path string }

func (e *NotReadError) Error() string {
	return fmt.Sprintf("%s has not been read at its current content, or was never read", e.Path)
}

// BadRangeError is an invalid ReadFiles range.
type BadRangeError struct{ Path, Spec string }

func (e *BadRangeError) Error() string {
	return fmt.Sprintf("invalid range %q for %s", e.Spec, e.Path)
}

// NoSuchTaskError is a TaskStore.load miss.
type NoSuchTaskError struct{ ID string }

func (e *NoSuchTaskError) Error() string { return fmt.Sprintf("no such task: %s", e.ID) }

// Engine owns every component as an explicit field (spec.md §5/§9 — no
// ambient/global state). It holds no lock: callers issue one tool call at a
// time and never call it reentrantly.
type Engine struct {
	logger *zap.Logger

	workspace string
	policy    mode.Policy

	ledger   *tracker.Tracker
	terminal *term.Terminal
	sh       *shell.Shell
}

// New constructs an Engine with a fresh ReadLedger and an unstarted
// Terminal; call Initialize before any other operation.
func New(logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	t := term.New(logger)
	return &Engine{
		logger:   logger,
		ledger:   tracker.New(),
		terminal: t,
		sh:       shell.New(t, logger),
	}
}

// InitializeArgs is the Initialize operation's argument bundle.
type InitializeArgs struct {
	Type                InitType
	AnyWorkspacePath    string
	InitialFilesToRead  []string
	TaskIDToResume      string
	ModeName            mode.Name
	CodeWriterConfig    *mode.WriterConfig
}

// InitializeResult is returned by Initialize.
type InitializeResult struct {
	Workspace          string
	ModeSummary        string
	RepoMap            string
	InitialFiles       []fileio.FileResult
	ResumedDescription string
}

// Initialize resolves the workspace, (re)builds Mode policy, optionally
// resets Terminal, builds RepoMap, reads initial files into the ledger, and
// merges a resumed task snapshot's files into the ledger.
func (e *Engine) Initialize(args InitializeArgs) (InitializeResult, error) {
	workspace := args.AnyWorkspacePath
	initialFiles := append([]string{}, args.InitialFilesToRead...)

	if info, err := os.Stat(workspace); err == nil && !info.IsDir() {
		initialFiles = append(initialFiles, workspace)
		workspace = filepath.Dir(workspace)
	}
	e.workspace = workspace

	fc, err := config.Load(workspace)
	if err != nil {
		return InitializeResult{}, fmt.Errorf("load workspace config: %w", err)
	}
	e.policy = fc.ToPolicy()
	if args.ModeName != "" {
		e.policy.Mode = args.ModeName
		if args.ModeName == "wcgw" {
			// "wcgw" is the tool-boundary name of the unrestricted mode.
			e.policy.Mode = mode.Unrestricted
		}
	}
	if args.CodeWriterConfig != nil {
		e.policy.Writer = *args.CodeWriterConfig
	}

	if args.Type == ResetShell {
		if !e.terminal.Dead() {
			e.terminal.Interrupt()
		}
		if err := e.terminal.Restart(workspace, os.Environ()); err != nil {
			return InitializeResult{}, fmt.Errorf("restart terminal: %w", err)
		}
	} else if e.terminal.Dead() || args.Type == FirstCall {
		if err := e.terminal.Start(workspace, os.Environ()); err != nil {
			return InitializeResult{}, fmt.Errorf("start terminal: %w", err)
		}
	}

	e.ledger.Clear()

	repoMapBudget := fc.RepoMapBudget
	if repoMapBudget <= 0 {
		repoMapBudget = defaultRepoMapBudget
	}
	tree, err := repomap.Build(workspace, repoMapBudget)
	if err != nil {
		return InitializeResult{}, fmt.Errorf("build repo map: %w", err)
	}

	var resumedDescription string
	if args.TaskIDToResume != "" {
		bundle, err := taskstore.Load(args.TaskIDToResume)
		if err != nil {
			return InitializeResult{}, &NoSuchTaskError{ID: args.TaskIDToResume}
		}
		e.workspace = bundle.Workspace
		workspace = bundle.Workspace
		resumedDescription = bundle.Description
		for path, content := range bundle.Files {
			e.ledger.RecordFull(path, tracker.HashBytes([]byte(content)))
		}
	}

	var results []fileio.FileResult
	if len(initialFiles) > 0 {
		results, err = fileio.Read(e.ledger, e.workspace, restrictedWorkspaceScope(e.policy), initialFiles, nil, "", fileio.DefaultBudget)
		if err != nil {
			return InitializeResult{}, fmt.Errorf("read initial files: %w", err)
		}
	}

	e.logger.Info("engine initialized",
		zap.String("workspace", workspace),
		zap.String("mode", string(e.policy.Mode)),
		zap.String("type", string(args.Type)))

	return InitializeResult{
		Workspace:          workspace,
		ModeSummary:        string(e.policy.Mode),
		RepoMap:            tree,
		InitialFiles:       results,
		ResumedDescription: resumedDescription,
	}, nil
}

// defaultRepoMapBudget is used when the workspace config does not set a
// positive repo_map_budget.
const defaultRepoMapBudget = 2000

// BashAction is the tagged union spec.md §9 calls for: a dispatcher
// switching on exactly one populated case.
type BashAction struct {
	Command      string
	StatusCheck  bool
	SendText     string
	SendSpecials []string
	SendASCII    []int
}

// BashCommand dispatches a BashAction into Shell, after a Mode check when
// the action is a new command.
func (e *Engine) BashCommand(action BashAction, waitForSeconds float64) (shell.Result, error) {
	if action.Command != "" {
		if d := mode.Check(e.policy, mode.OpShell, action.Command); !d.Allowed {
			return shell.Result{}, &ForbiddenError{Rule: d.Rule}
		}
		return e.sh.Run(action.Command, waitForSeconds)
	}
	if action.StatusCheck {
		return e.sh.StatusCheck(waitForSeconds)
	}
	if action.SendText != "" {
		return e.sh.SendText([]byte(action.SendText), waitForSeconds, true)
	}
	if len(action.SendSpecials) > 0 {
		return e.sh.SendSpecials(action.SendSpecials, waitForSeconds, true)
	}
	if len(action.SendASCII) > 0 {
		return e.sh.SendASCII(action.SendASCII, waitForSeconds, true)
	}
	return shell.Result{}, fmt.Errorf("empty bash action")
}

// ReadFiles reads the given absolute paths through FileIO, resolving
// symlinks and enforcing the workspace-escape refusal when the active
// policy is code_writer with restricted globs (spec.md §4.3).
func (e *Engine) ReadFiles(paths []string, rangeSpecs map[string]string, showLineNumbersReason string) ([]fileio.FileResult, error) {
	ranges := make(map[string]fileio.FileRange, len(rangeSpecs))
	for path, spec := range rangeSpecs {
		rng, err := fileio.ParseRange(spec)
		if err != nil {
			return nil, &BadRangeError{Path: path, Spec: spec}
		}
		ranges[path] = rng
	}
	return fileio.Read(e.ledger, e.workspace, restrictedWorkspaceScope(e.policy), paths, ranges, showLineNumbersReason, fileio.DefaultBudget)
}

// restrictedWorkspaceScope reports whether the active policy is
// code_writer with globs restricted (not the "all" sentinel) — the one
// condition spec.md §4.3 names for refusing a workspace-escaping read.
func restrictedWorkspaceScope(p mode.Policy) bool {
	if p.Mode != mode.CodeWriter || p.Writer.GlobsAll {
		return false
	}
	for _, g := range p.Writer.AllowedGlobs {
		if g == mode.All {
			return false
		}
	}
	return true
}

// WriteIfEmpty gates on Mode before delegating to FileIO.
func (e *Engine) WriteIfEmpty(path, content string) ([]syntaxcheck.Diagnostic, error) {
	if d := mode.Check(e.policy, mode.OpWriteFile, path); !d.Allowed {
		return nil, &ForbiddenError{Rule: d.Rule}
	}
	return fileio.WriteIfEmpty(e.ledger, path, content)
}

// FileEdit gates on Mode and the ReadLedger before applying SEARCH/REPLACE
// blocks, per spec.md invariant 2 and testable property 1/2.
func (e *Engine) FileEdit(path, blocksBody string) (fileedit.ApplyResult, []syntaxcheck.Diagnostic, error) {
	if d := mode.Check(e.policy, mode.OpEditFile, path); !d.Allowed {
		return fileedit.ApplyResult{}, nil, &ForbiddenError{Rule: d.Rule}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fileedit.ApplyResult{}, nil, fmt.Errorf("read %s: %w", path, err)
	}
	currentHash := tracker.HashBytes(data)
	if !e.ledger.WriteEligible(path, currentHash, true) {
		return fileedit.ApplyResult{}, nil, &NotReadError{Path: path}
	}

	blocks, err := fileedit.ParseBlocks(blocksBody)
	if err != nil {
		return fileedit.ApplyResult{}, nil, err
	}

	result, err := fileedit.Apply(string(data), blocks)
	if err != nil {
		return fileedit.ApplyResult{}, nil, err
	}

	if err := writeAtomic(path, result.Content); err != nil {
		return fileedit.ApplyResult{}, nil, err
	}
	e.ledger.RecordFull(path, tracker.HashBytes([]byte(result.Content)))

	return result, syntaxcheck.Check(path, []byte(result.Content)), nil
}

func writeAtomic(path, content string) error {
	info, err := os.Stat(path)
	perm := os.FileMode(0644)
	if err == nil {
		perm = info.Mode().Perm()
	}
	return fsutil.AtomicWrite(path, []byte(content), perm)
}

// ContextSave gates on nothing (TaskStore.save is always permitted — it
// only reads) and delegates to TaskStore, sharing this Engine's ReadLedger
// so every bundled file becomes read-eligible the same as any other read.
func (e *Engine) ContextSave(id, projectRootPath, description string, globs []string) (taskstore.Bundle, error) {
	return taskstore.Save(e.ledger, id, projectRootPath, description, globs)
}
