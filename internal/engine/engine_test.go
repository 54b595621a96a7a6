package engine

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lowkaihon/wcgwcore/internal/fileio"
	"github.com/lowkaihon/wcgwcore/internal/mode"
)

func newTestEngine(t *testing.T) (*Engine, string) {
	t.Helper()
	ws := t.TempDir()
	home := t.TempDir()
	t.Setenv("HOME", home)

	e := New(nil)
	_, err := e.Initialize(InitializeArgs{
		Type:             FirstCall,
		AnyWorkspacePath: ws,
		ModeName:         mode.Unrestricted,
	})
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	t.Cleanup(func() { e.terminal.Close() })
	return e, ws
}

func TestGatedEditScenarioS1(t *testing.T) {
	e, ws := newTestEngine(t)
	path := filepath.Join(ws, "a.txt")

	if _, err := e.WriteIfEmpty(path, "hello\n"); err != nil {
		t.Fatalf("write: %v", err)
	}

	block := "<<<<<<< SEARCH\nhello\n=======\nHELLO\n>>>>>>> REPLACE"
	if _, _, err := e.FileEdit(path, block); err != nil {
		t.Fatalf("edit: %v", err)
	}

	results, err := e.ReadFiles([]string{path}, nil, "")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(results[0].Content, "HELLO") {
		t.Fatalf("expected HELLO in content, got %q", results[0].Content)
	}
}

func TestUnreadRefusalScenarioS2(t *testing.T) {
	e, ws := newTestEngine(t)
	path := filepath.Join(ws, "a.txt")
	if err := os.WriteFile(path, []byte("hello\n"), 0644); err != nil {
		t.Fatal(err)
	}

	block := "<<<<<<< SEARCH\nhello\n=======\nHELLO\n>>>>>>> REPLACE"
	_, _, err := e.FileEdit(path, block)
	if _, ok := err.(*NotReadError); !ok {
		t.Fatalf("expected NotReadError, got %v (%T)", err, err)
	}

	if _, err := e.ReadFiles([]string{path}, nil, ""); err != nil {
		t.Fatalf("read: %v", err)
	}
	if _, _, err := e.FileEdit(path, block); err != nil {
		t.Fatalf("expected edit to succeed after read, got %v", err)
	}
}

func TestArchitectDeniesScenarioS3(t *testing.T) {
	ws := t.TempDir()
	home := t.TempDir()
	t.Setenv("HOME", home)

	e := New(nil)
	if _, err := e.Initialize(InitializeArgs{
		Type:             UserAskedModeChange,
		AnyWorkspacePath: ws,
		ModeName:         mode.Architect,
	}); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	t.Cleanup(func() { e.terminal.Close() })

	_, err := e.BashCommand(BashAction{Command: "rm -rf /"}, 1)
	if _, ok := err.(*ForbiddenError); !ok {
		t.Fatalf("expected ForbiddenError, got %v (%T)", err, err)
	}

	res, err := e.BashCommand(BashAction{Command: "ls"}, 2)
	if err != nil {
		t.Fatalf("expected ls to succeed, got %v", err)
	}
	if res.StatusWord != "exited" {
		t.Fatalf("expected exited, got %+v", res)
	}
}

func TestReadFilesRefusesWorkspaceEscapeInRestrictedCodeWriter(t *testing.T) {
	ws := t.TempDir()
	home := t.TempDir()
	t.Setenv("HOME", home)
	outside := t.TempDir()
	secret := filepath.Join(outside, "secret.txt")
	if err := os.WriteFile(secret, []byte("nope\n"), 0644); err != nil {
		t.Fatal(err)
	}

	e := New(nil)
	if _, err := e.Initialize(InitializeArgs{
		Type:             UserAskedModeChange,
		AnyWorkspacePath: ws,
		ModeName:         mode.CodeWriter,
		CodeWriterConfig: &mode.WriterConfig{AllowedGlobs: []string{"*.go"}, AllowedCommands: []string{"all"}},
	}); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	t.Cleanup(func() { e.terminal.Close() })

	_, err := e.ReadFiles([]string{secret}, nil, "")
	var escapeErr *fileio.WorkspaceEscapeError
	if !errors.As(err, &escapeErr) {
		t.Fatalf("expected WorkspaceEscapeError, got %v", err)
	}
}

func TestContextSaveAndResume(t *testing.T) {
	e, ws := newTestEngine(t)
	path := filepath.Join(ws, "notes.go")
	if err := os.WriteFile(path, []byte("package notes\n"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := e.ContextSave("task-x", ws, "save notes", []string{"*.go"}); err != nil {
		t.Fatalf("context save: %v", err)
	}

	e2 := New(nil)
	result, err := e2.Initialize(InitializeArgs{
		Type:             FirstCall,
		AnyWorkspacePath: t.TempDir(),
		TaskIDToResume:   "task-x",
		ModeName:         mode.Unrestricted,
	})
	if err != nil {
		t.Fatalf("resume initialize: %v", err)
	}
	t.Cleanup(func() { e2.terminal.Close() })
	if result.ResumedDescription != "save notes" {
		t.Fatalf("expected resumed description, got %q", result.ResumedDescription)
	}
	if result.Workspace != ws {
		t.Fatalf("expected resumed workspace %q, got %q", ws, result.Workspace)
	}
}

func TestStreamingCommandScenarioS5(t *testing.T) {
	e, _ := newTestEngine(t)

	res, err := e.BashCommand(BashAction{Command: "for i in 1 2 3; do echo $i; sleep 1; done"}, 1)
	if err != nil {
		t.Fatalf("bash command: %v", err)
	}
	if res.StatusWord != "still running" {
		t.Fatalf("expected still running after 1s, got %+v", res)
	}

	res, err = e.BashCommand(BashAction{StatusCheck: true}, 5)
	if err != nil {
		t.Fatalf("status check: %v", err)
	}
	if res.StatusWord != "exited" || res.ExitCode != 0 {
		t.Fatalf("expected exited 0 after status check, got %+v", res)
	}
}

func TestInterruptViaResetScenarioS6(t *testing.T) {
	e, _ := newTestEngine(t)

	if _, err := e.BashCommand(BashAction{Command: "sleep 100"}, 1); err != nil {
		t.Fatalf("start sleep: %v", err)
	}

	if _, err := e.Initialize(InitializeArgs{
		Type:             ResetShell,
		AnyWorkspacePath: e.workspace,
		ModeName:         mode.Unrestricted,
	}); err != nil {
		t.Fatalf("reset shell: %v", err)
	}

	res, err := e.BashCommand(BashAction{Command: "echo ok"}, 2)
	if err != nil {
		t.Fatalf("echo ok: %v", err)
	}
	if res.StatusWord != "exited" || res.ExitCode != 0 {
		t.Fatalf("expected exited 0 after reset, got %+v", res)
	}
	if !strings.Contains(res.Output, "ok") {
		t.Fatalf("expected output to contain ok, got %q", res.Output)
	}
}
