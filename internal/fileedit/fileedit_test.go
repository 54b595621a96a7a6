package fileedit

import (
	"strings"
	"testing"
)

func TestParseBlocksSingle(t *testing.T) {
	body := "<<<<<<< SEARCH\nfoo\n=======\nbar\n>>>>>>> REPLACE\n"
	blocks, err := ParseBlocks(body)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(blocks) != 1 {
		t.Fatalf("expected 1 block, got %d", len(blocks))
	}
	if blocks[0].Search != "foo" || blocks[0].Replace != "bar" {
		t.Fatalf("unexpected block: %+v", blocks[0])
	}
}

func TestParseBlocksUnterminated(t *testing.T) {
	body := "<<<<<<< SEARCH\nfoo\n=======\nbar\n"
	if _, err := ParseBlocks(body); err == nil {
		t.Fatal("expected error for unterminated block")
	}
}

func TestApplyExactMatch(t *testing.T) {
	content := "line1\nline2\nline3\n"
	blocks := []Block{{Search: "line2", Replace: "replaced"}}
	res, err := Apply(content, blocks)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Content != "line1\nreplaced\nline3\n" {
		t.Fatalf("unexpected content: %q", res.Content)
	}
	if len(res.Warnings) != 0 {
		t.Fatalf("expected no warnings, got %v", res.Warnings)
	}
}

func TestApplyAmbiguousExactMatch(t *testing.T) {
	content := "dup\nmid\ndup\n"
	blocks := []Block{{Search: "dup", Replace: "x"}}
	_, err := Apply(content, blocks)
	ambErr, ok := err.(*AmbiguousError)
	if !ok {
		t.Fatalf("expected AmbiguousError, got %v (%T)", err, err)
	}
	if len(ambErr.Offsets) != 2 {
		t.Fatalf("expected 2 ambiguous offsets, got %v", ambErr.Offsets)
	}
}

func TestApplyMultiBlockForwardScan(t *testing.T) {
	// The first block rewrites the first "dup"; the second block's "dup"
	// then matches only the later occurrence, which lies after the first
	// block's applied position.
	content := "dup\nmid\ndup\n"
	blocks := []Block{
		{Search: "dup\nmid", Replace: "A\nmid"},
		{Search: "dup", Replace: "B"},
	}
	res, err := Apply(content, blocks)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Content != "A\nmid\nB\n" {
		t.Fatalf("unexpected content: %q", res.Content)
	}
	if len(res.Applied) != 2 {
		t.Fatalf("expected 2 applied blocks, got %v", res.Applied)
	}
}

func TestApplyWhitespaceTolerantIndentWarning(t *testing.T) {
	// spec.md scenario S4: file has extra indentation beyond SEARCH's.
	content := "class C:\n    def f():\n        return 1\n"
	blocks := []Block{{Search: "def f():\n    return 1", Replace: "def f():\n    return 2"}}
	res, err := Apply(content, blocks)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(res.Content, "        return 2") {
		t.Fatalf("expected preserved extra indent in output, got %q", res.Content)
	}
	if len(res.Warnings) != 1 {
		t.Fatalf("expected 1 IndentWarning, got %v", res.Warnings)
	}
}

func TestApplyNoMatchReturnsClosest(t *testing.T) {
	content := "alpha\nbeta\ngamma\n"
	blocks := []Block{{Search: "beta2", Replace: "x"}}
	_, err := Apply(content, blocks)
	noMatchErr, ok := err.(*NoMatchError)
	if !ok {
		t.Fatalf("expected NoMatchError, got %v (%T)", err, err)
	}
	if noMatchErr.ClosestText != "beta" {
		t.Fatalf("expected closest candidate %q, got %q", "beta", noMatchErr.ClosestText)
	}
}

func TestApplyEmptyEditIsNoOp(t *testing.T) {
	// spec.md testable property 7: SEARCH == REPLACE leaves file untouched.
	content := "unchanged content\nline two\n"
	blocks := []Block{{Search: "line two", Replace: "line two"}}
	res, err := Apply(content, blocks)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Content != content {
		t.Fatalf("expected content unchanged, got %q", res.Content)
	}
	if len(res.Warnings) != 0 {
		t.Fatalf("expected no warnings, got %v", res.Warnings)
	}
}

func TestApplyAllOrNothingOnSecondBlockFailure(t *testing.T) {
	content := "one\ntwo\nthree\n"
	blocks := []Block{
		{Search: "one", Replace: "ONE"},
		{Search: "nonexistent", Replace: "x"},
	}
	_, err := Apply(content, blocks)
	if err == nil {
		t.Fatal("expected error from second block")
	}
	noMatchErr, ok := err.(*NoMatchError)
	if !ok {
		t.Fatalf("expected NoMatchError, got %T", err)
	}
	if noMatchErr.BlockIndex != 1 {
		t.Fatalf("expected failure at block index 1, got %d", noMatchErr.BlockIndex)
	}
}
