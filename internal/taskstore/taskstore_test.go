package taskstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/lowkaihon/wcgwcore/internal/tracker"
)

func withTempHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	return home
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	withTempHome(t)
	ws := t.TempDir()
	if err := os.WriteFile(filepath.Join(ws, "main.go"), []byte("package main\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(ws, "sub"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(ws, "sub", "helper.go"), []byte("package sub\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(ws, "notes.txt"), []byte("irrelevant\n"), 0644); err != nil {
		t.Fatal(err)
	}

	saved, err := Save(tracker.New(), "task-1", ws, "implement feature X", []string{"**/*.go"})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if len(saved.Files) != 2 {
		t.Fatalf("expected 2 matched files, got %d: %+v", len(saved.Files), saved.Files)
	}

	loaded, err := Load("task-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Description != "implement feature X" {
		t.Fatalf("unexpected description: %q", loaded.Description)
	}
	if loaded.Workspace != ws {
		t.Fatalf("unexpected workspace: %q", loaded.Workspace)
	}
	if len(loaded.Files) != 2 {
		t.Fatalf("expected 2 files after load, got %d", len(loaded.Files))
	}
	mainPath := filepath.Join(ws, "main.go")
	if loaded.Files[mainPath] != "package main\n" {
		t.Fatalf("unexpected content for main.go: %q", loaded.Files[mainPath])
	}
	subPath := filepath.Join(ws, "sub", "helper.go")
	if loaded.Files[subPath] != "package sub\n" {
		t.Fatalf("unexpected content for sub/helper.go: %q", loaded.Files[subPath])
	}
}

func TestSaveRecordsBundledFilesInLedger(t *testing.T) {
	withTempHome(t)
	ws := t.TempDir()
	path := filepath.Join(ws, "a.go")
	if err := os.WriteFile(path, []byte("package a\n"), 0644); err != nil {
		t.Fatal(err)
	}

	trk := tracker.New()
	if _, err := Save(trk, "task-ledger", ws, "note", []string{"*.go"}); err != nil {
		t.Fatalf("save: %v", err)
	}

	hash, ok := trk.Hash(path)
	if !ok {
		t.Fatal("expected bundled file to be recorded in the ledger")
	}
	if hash != tracker.HashBytes([]byte("package a\n")) {
		t.Fatalf("unexpected recorded hash: %q", hash)
	}
}

func TestSaveOverwritesOnIDCollision(t *testing.T) {
	withTempHome(t)
	ws := t.TempDir()
	if err := os.WriteFile(filepath.Join(ws, "a.go"), []byte("package a\n"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := Save(tracker.New(), "dup", ws, "first version", []string{"*.go"}); err != nil {
		t.Fatalf("first save: %v", err)
	}
	if _, err := Save(tracker.New(), "dup", ws, "second version", []string{"*.go"}); err != nil {
		t.Fatalf("second save: %v", err)
	}

	loaded, err := Load("dup")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Description != "second version" {
		t.Fatalf("expected overwrite to win, got description %q", loaded.Description)
	}
}

func TestLoadMissingIDErrors(t *testing.T) {
	withTempHome(t)
	if _, err := Load("never-saved"); err == nil {
		t.Fatal("expected error loading a never-saved id")
	}
}

func TestSaveGlobExcludesUnmatchedFiles(t *testing.T) {
	withTempHome(t)
	ws := t.TempDir()
	if err := os.WriteFile(filepath.Join(ws, "keep.py"), []byte("x = 1\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(ws, "skip.md"), []byte("# doc\n"), 0644); err != nil {
		t.Fatal(err)
	}

	saved, err := Save(tracker.New(), "py-only", ws, "python files", []string{"*.py"})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if len(saved.Files) != 1 {
		t.Fatalf("expected 1 matched file, got %d", len(saved.Files))
	}
	if _, ok := saved.Files[filepath.Join(ws, "keep.py")]; !ok {
		t.Fatal("expected keep.py to be matched")
	}
}
