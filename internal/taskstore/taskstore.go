// Package taskstore implements the TaskStore component: save/load of task
// snapshots as a single UTF-8 document bundling a workspace's matched
// files, keyed by task id under ~/.wcgwcore/tasks/.
package taskstore

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/lowkaihon/wcgwcore/internal/fileio"
	"github.com/lowkaihon/wcgwcore/internal/fsutil"
	"github.com/lowkaihon/wcgwcore/internal/tracker"
)

const fileDelimiterPrefix = "=== "
const fileDelimiterSuffix = " ==="

// noBudget is passed to fileio.Read so every matched file comes back whole,
// per spec.md §4.8 ("each read through FileIO's chunker, no budget").
const noBudget = 1 << 30

// Bundle is one saved task snapshot.
type Bundle struct {
	ID          string
	Workspace   string
	Description string
	Files       map[string]string // absolute path -> full content
}

// tasksDir returns ~/.wcgwcore/tasks, creating it if needed.
func tasksDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	dir := filepath.Join(home, ".wcgwcore", "tasks")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create tasks directory: %w", err)
	}
	return dir, nil
}

func taskPath(dir, id string) string {
	return filepath.Join(dir, id+".txt")
}

// Save collects every file under workspace matching any of globs, reads
// each through FileIO's chunker with no budget (full content) — which also
// records every bundled file into trk at its current hash, the same as any
// other Read — and writes one textual document to
// ~/.wcgwcore/tasks/<id>.txt. Ids collide → overwrite.
func Save(trk *tracker.Tracker, id, workspace, description string, globs []string) (Bundle, error) {
	matches, err := matchGlobs(workspace, globs)
	if err != nil {
		return Bundle{}, err
	}

	var present []string
	for _, path := range matches {
		if _, err := os.Stat(path); err == nil {
			present = append(present, path) // best-effort: skip files that vanished mid-collection
		}
	}

	results, err := fileio.Read(trk, workspace, false, present, nil, "", noBudget)
	if err != nil {
		return Bundle{}, fmt.Errorf("read matched files: %w", err)
	}

	files := make(map[string]string, len(results))
	for _, res := range results {
		files[res.Path] = res.Content
	}

	bundle := Bundle{ID: id, Workspace: workspace, Description: description, Files: files}

	dir, err := tasksDir()
	if err != nil {
		return Bundle{}, err
	}
	if err := fsutil.AtomicWrite(taskPath(dir, id), []byte(render(bundle)), 0644); err != nil {
		return Bundle{}, fmt.Errorf("write task snapshot: %w", err)
	}
	return bundle, nil
}

// Load reads and parses a previously saved bundle.
func Load(id string) (Bundle, error) {
	dir, err := tasksDir()
	if err != nil {
		return Bundle{}, err
	}
	data, err := os.ReadFile(taskPath(dir, id))
	if err != nil {
		return Bundle{}, fmt.Errorf("read task snapshot: %w", err)
	}
	return parse(id, string(data))
}

// render serializes a bundle into its on-disk textual form: a header with
// description and workspace, followed by one "=== <absolute-path> ==="
// delimited section per file.
func render(b Bundle) string {
	var sb strings.Builder
	sb.WriteString("description: ")
	sb.WriteString(b.Description)
	sb.WriteString("\n")
	sb.WriteString("workspace: ")
	sb.WriteString(b.Workspace)
	sb.WriteString("\n")

	paths := make([]string, 0, len(b.Files))
	for p := range b.Files {
		paths = append(paths, p)
	}
	sortStrings(paths)

	for _, p := range paths {
		sb.WriteString(fileDelimiterPrefix)
		sb.WriteString(p)
		sb.WriteString(fileDelimiterSuffix)
		sb.WriteString("\n")
		sb.WriteString(b.Files[p])
		if !strings.HasSuffix(b.Files[p], "\n") {
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

// parse reverses render.
func parse(id, content string) (Bundle, error) {
	b := Bundle{ID: id, Files: map[string]string{}}
	scanner := bufio.NewScanner(strings.NewReader(content))
	scanner.Buffer(make([]byte, 0, 256*1024), 16*1024*1024)

	var currentPath string
	var currentBody strings.Builder
	inHeader := true

	flush := func() {
		if currentPath != "" {
			b.Files[currentPath] = currentBody.String()
			currentBody.Reset()
		}
	}

	for scanner.Scan() {
		line := scanner.Text()
		if inHeader {
			if strings.HasPrefix(line, "description: ") {
				b.Description = strings.TrimPrefix(line, "description: ")
				continue
			}
			if strings.HasPrefix(line, "workspace: ") {
				b.Workspace = strings.TrimPrefix(line, "workspace: ")
				continue
			}
		}
		if strings.HasPrefix(line, fileDelimiterPrefix) && strings.HasSuffix(line, fileDelimiterSuffix) {
			flush()
			inHeader = false
			currentPath = strings.TrimSuffix(strings.TrimPrefix(line, fileDelimiterPrefix), fileDelimiterSuffix)
			continue
		}
		if currentPath != "" {
			currentBody.WriteString(line)
			currentBody.WriteString("\n")
		}
	}
	flush()

	if err := scanner.Err(); err != nil {
		return Bundle{}, fmt.Errorf("parse task snapshot: %w", err)
	}
	return b, nil
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}
