// Package fileio implements the FileIO component: chunked, token-budgeted
// reads and write-if-empty, both gated through the ReadLedger.
package fileio

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/lowkaihon/wcgwcore/internal/fsutil"
	"github.com/lowkaihon/wcgwcore/internal/syntaxcheck"
	"github.com/lowkaihon/wcgwcore/internal/tokenizer"
	"github.com/lowkaihon/wcgwcore/internal/tracker"
)

// DefaultBudget is the total token budget across a Read batch (spec.md §4.3).
const DefaultBudget = 8000

// FileExistsError is returned by WriteIfEmpty when the target already has
// content.
type FileExistsError struct{ Path string }

func (e *FileExistsError) Error() string {
	return fmt.Sprintf("file exists and is non-empty: %s", e.Path)
}

// WorkspaceEscapeError is returned by Read when enforceScope is set and the
// (symlink-resolved) path falls outside the workspace, per spec.md §4.3.
type WorkspaceEscapeError struct{ Path string }

func (e *WorkspaceEscapeError) Error() string {
	return fmt.Sprintf("path escapes workspace: %s", e.Path)
}

// FileRange is a parsed `:start-end` / `:start-` / `:-end` line-range
// request. End == 0 means to-EOF; Start == 0 means from-line-1.
type FileRange struct {
	Start int
	End   int
}

// ParseRange parses the suffix after a path, e.g. "10-20", "10-", "-20".
// An empty spec means the whole file.
func ParseRange(spec string) (FileRange, error) {
	if spec == "" {
		return FileRange{}, nil
	}
	if !strings.Contains(spec, "-") {
		return FileRange{}, fmt.Errorf("invalid range %q: expected start-end, start-, or -end", spec)
	}
	parts := strings.SplitN(spec, "-", 2)
	var rng FileRange
	if parts[0] != "" {
		n, err := strconv.Atoi(parts[0])
		if err != nil {
			return FileRange{}, fmt.Errorf("invalid range start %q: %w", parts[0], err)
		}
		rng.Start = n
	}
	if parts[1] != "" {
		n, err := strconv.Atoi(parts[1])
		if err != nil {
			return FileRange{}, fmt.Errorf("invalid range end %q: %w", parts[1], err)
		}
		rng.End = n
	}
	return rng, nil
}

// FileResult is one file's read outcome.
type FileResult struct {
	Path          string
	Content       string
	LinesShown    FileRange
	TotalLines    int
	Truncated     bool // more content exists beyond LinesShown
	AdvertisedEnd int  // if Truncated, the last line shown; the next chunk begins at AdvertisedEnd+1
}

// Read loads each of paths (absolute paths), resolving symlinks and, when
// enforceScope is set (code_writer mode with restricted globs, per
// spec.md §4.3), refusing any path whose resolved target escapes workspace.
// Applies the optional per-path range, chunking under budgetTokens shared
// across the whole batch, and records the shown range into trk.
func Read(trk *tracker.Tracker, workspace string, enforceScope bool, paths []string, ranges map[string]FileRange, showLineNumbersReason string, budgetTokens int) ([]FileResult, error) {
	if budgetTokens <= 0 {
		budgetTokens = DefaultBudget
	}
	remaining := budgetTokens
	var results []FileResult

	for _, path := range paths {
		rng := ranges[path]
		res, hash, err := readOne(workspace, enforceScope, path, rng, showLineNumbersReason, remaining)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		results = append(results, res)
		remaining -= tokenizer.Count(res.Content)
		if remaining < 0 {
			remaining = 0
		}

		shown := res.LinesShown
		if shown.Start == 0 {
			shown.Start = 1
		}
		if !res.Truncated && shown.End == 0 {
			shown.End = res.TotalLines
		} else if res.Truncated {
			shown.End = res.AdvertisedEnd
		}
		trk.Record(path, hash, tracker.LineRange{Start: shown.Start, End: shown.End})
	}
	return results, nil
}

func readOne(workspace string, enforceScope bool, path string, rng FileRange, showLineNumbersReason string, budget int) (FileResult, string, error) {
	resolved := path
	if real, err := filepath.EvalSymlinks(path); err == nil {
		resolved = real
	}
	if enforceScope && fsutil.Escapes(workspace, resolved) {
		return FileResult{}, "", &WorkspaceEscapeError{Path: path}
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		return FileResult{}, "", err
	}
	hash := tracker.HashBytes(data)

	lines := strings.Split(string(data), "\n")
	// Trailing empty element from a final "\n"; drop it for line counting,
	// matching conventional 1-indexed line semantics.
	totalLines := len(lines)
	if totalLines > 0 && lines[totalLines-1] == "" {
		totalLines--
	}

	start := rng.Start
	if start <= 0 {
		start = 1
	}
	end := rng.End
	if end <= 0 || end > totalLines {
		end = totalLines
	}

	// Cheap whole-file pre-check: when the whole file is requested (no
	// explicit range, no line-number rendering) and even the coarse
	// bytes/4 estimate fits the remaining budget, skip the per-line Count
	// pass entirely. The bytes/4 estimate can be lower than Count for text
	// dense in short words and punctuation, so a file admitted here may use
	// more of the budget than Count would have allowed.
	if rng.Start == 0 && rng.End == 0 && showLineNumbersReason == "" && tokenizer.CountBytes(len(data)) <= budget {
		content := string(data)
		if content != "" && !strings.HasSuffix(content, "\n") {
			content += "\n"
		}
		return FileResult{
			Path:       path,
			Content:    content,
			LinesShown: FileRange{Start: 1, End: totalLines},
			TotalLines: totalLines,
		}, hash, nil
	}

	var b strings.Builder
	shownEnd := start - 1
	usedTokens := 0
	truncated := false
	for lineNum := start; lineNum <= end; lineNum++ {
		var lineText string
		if lineNum-1 < len(lines) {
			lineText = lines[lineNum-1]
		}
		rendered := lineText
		if showLineNumbersReason != "" {
			rendered = fmt.Sprintf("%d | %s", lineNum, lineText)
		}
		lineTokens := tokenizer.Count(rendered) + 1
		if usedTokens+lineTokens > budget && shownEnd >= start {
			truncated = true
			break
		}
		b.WriteString(rendered)
		b.WriteString("\n")
		usedTokens += lineTokens
		shownEnd = lineNum
	}

	res := FileResult{
		Path:       path,
		Content:    b.String(),
		LinesShown: FileRange{Start: start, End: shownEnd},
		TotalLines: totalLines,
		Truncated:  truncated,
	}
	if truncated {
		res.AdvertisedEnd = shownEnd
	}
	return res, hash, nil
}

// WriteIfEmpty creates path with content if it does not exist or is empty,
// records it in trk, runs Syntax, and returns any diagnostics.
func WriteIfEmpty(trk *tracker.Tracker, path string, content string) ([]syntaxcheck.Diagnostic, error) {
	if info, err := os.Stat(path); err == nil && info.Size() > 0 {
		return nil, &FileExistsError{Path: path}
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create parent directories: %w", err)
	}

	if err := fsutil.AtomicWrite(path, []byte(content), 0644); err != nil {
		return nil, fmt.Errorf("write file: %w", err)
	}

	trk.RecordFull(path, tracker.HashBytes([]byte(content)))

	return syntaxcheck.Check(path, []byte(content)), nil
}
