package taskstore

import (
	"io/fs"
	"path/filepath"
	"strings"
)

// matchGlobs walks workspace and returns the absolute paths of every
// regular file whose path relative to workspace matches at least one of
// globs, mirroring mode.matchDoublestarGlob's "**" support.
func matchGlobs(workspace string, globs []string) ([]string, error) {
	var matches []string
	err := filepath.WalkDir(workspace, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(workspace, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		for _, g := range globs {
			if matchGlob(g, rel) {
				matches = append(matches, path)
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return matches, nil
}

// matchGlob matches a single glob (with optional "**") against a
// slash-separated relative path.
func matchGlob(pattern, name string) bool {
	if matched, _ := filepath.Match(pattern, name); matched {
		return true
	}
	if !strings.Contains(pattern, "**") {
		return false
	}
	parts := strings.SplitN(pattern, "**", 2)
	prefix := strings.TrimSuffix(parts[0], "/")
	suffix := strings.TrimPrefix(parts[1], "/")

	if prefix != "" && !strings.HasPrefix(name, prefix+"/") && name != prefix {
		return false
	}
	rest := name
	if prefix != "" {
		rest = strings.TrimPrefix(name, prefix+"/")
	}
	if suffix == "" {
		return true
	}
	segments := strings.Split(rest, "/")
	for i := range segments {
		subpath := strings.Join(segments[i:], "/")
		if matched, _ := filepath.Match(suffix, subpath); matched {
			return true
		}
	}
	return false
}
