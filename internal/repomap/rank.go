package repomap

import (
	"os"
	"path/filepath"
	"strings"
)

// conventionalRoots get a ranking boost regardless of content: build and
// manifest files, plus the top-level source directories the teacher's own
// layout uses.
var conventionalRoots = map[string]bool{
	"go.mod":            true,
	"go.sum":            true,
	"package.json":      true,
	"Cargo.toml":        true,
	"pyproject.toml":    true,
	"requirements.txt":  true,
	"Makefile":          true,
	"Dockerfile":        true,
	"README.md":         true,
	"README":            true,
	"main.go":           true,
	".gitignore":        true,
}

var conventionalDirs = map[string]bool{
	"cmd":      true,
	"internal": true,
	"pkg":      true,
	"src":      true,
	"lib":      true,
}

const (
	conventionalRootBoost = 5
	conventionalDirBoost  = 2
	// lexicalScanMaxBytes bounds which files are cheap enough to scan for
	// cross-references; spec.md §4.6 calls for scanning "other short files".
	lexicalScanMaxBytes = 16 * 1024
)

func conventionalBoost(relPath string, isDir bool) int {
	if isDir {
		if conventionalDirs[filepath.Base(relPath)] && !strings.Contains(relPath, string(filepath.Separator)) {
			return conventionalDirBoost
		}
		return 0
	}
	if conventionalRoots[filepath.Base(relPath)] {
		return conventionalRootBoost
	}
	return 0
}

// lexicalBoosts scans every file under lexicalScanMaxBytes for occurrences
// of other files' base names (sans extension), giving a cheap reference
// count without any language-specific import resolution.
func lexicalBoosts(files []fileEntry) map[string]int {
	boosts := make(map[string]int, len(files))
	names := make([]string, len(files))
	for i, f := range files {
		base := filepath.Base(f.relPath)
		names[i] = strings.TrimSuffix(base, filepath.Ext(base))
	}

	for _, f := range files {
		if f.size > lexicalScanMaxBytes {
			continue
		}
		data, err := os.ReadFile(f.absPath)
		if err != nil {
			continue
		}
		content := string(data)
		for i, name := range names {
			if name == "" || len(name) < 3 {
				continue
			}
			if files[i].relPath == f.relPath {
				continue
			}
			if strings.Contains(content, name) {
				boosts[files[i].relPath]++
			}
		}
	}
	return boosts
}
