// Package repomap implements the RepoMap component: a deterministic,
// token-budgeted picker of "important" files for a workspace, emitted as a
// compact textual tree. It never mutates disk.
package repomap

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/lowkaihon/wcgwcore/internal/tokenizer"
)

// skipDirs mirrors the teacher's glob/grep walk: directories never worth
// descending into regardless of .gitignore contents.
var skipDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	".venv":        true,
	"__pycache__":  true,
}

type fileEntry struct {
	relPath string
	absPath string
	size    int64
	isDir   bool
	boost   int
}

// Build walks root and returns a token-budgeted textual tree of its most
// important files, never exceeding budgetTokens.
func Build(root string, budgetTokens int) (string, error) {
	rules := loadGitignore(root)

	var entries []fileEntry
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if path == root {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		base := filepath.Base(path)
		isDir := d.IsDir()

		if isDir {
			if skipDirs[base] {
				return filepath.SkipDir
			}
			if ignored(rules, rel, true) {
				return filepath.SkipDir
			}
			entries = append(entries, fileEntry{relPath: rel, absPath: path, isDir: true})
			return nil
		}

		if ignored(rules, rel, false) {
			return nil
		}
		info, statErr := os.Lstat(path)
		var size int64
		if statErr == nil {
			size = info.Size()
		}
		entries = append(entries, fileEntry{relPath: rel, absPath: path, size: size})
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("walk %s: %w", root, err)
	}

	var files []fileEntry
	for _, e := range entries {
		if !e.isDir {
			files = append(files, e)
		}
	}
	boosts := lexicalBoosts(files)

	for i := range entries {
		entries[i].boost = conventionalBoost(entries[i].relPath, entries[i].isDir)
		if !entries[i].isDir {
			entries[i].boost += boosts[entries[i].relPath]
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].boost != entries[j].boost {
			return entries[i].boost > entries[j].boost
		}
		return entries[i].relPath < entries[j].relPath
	})

	return render(root, entries, budgetTokens), nil
}

// render emits a compact textual tree, one entry per line, truncating
// before the next line would exceed budgetTokens.
func render(root string, entries []fileEntry, budgetTokens int) string {
	var b strings.Builder
	header := fmt.Sprintf("Repository map for %s\n", root)
	b.WriteString(header)
	used := tokenizer.Count(header)

	for _, e := range entries {
		marker := "file"
		if e.isDir {
			marker = "dir "
		}
		line := fmt.Sprintf("%s %s\n", marker, e.relPath)
		lineTokens := tokenizer.Count(line)
		if used+lineTokens > budgetTokens {
			b.WriteString("... (truncated to fit token budget)\n")
			break
		}
		b.WriteString(line)
		used += lineTokens
	}
	return b.String()
}
