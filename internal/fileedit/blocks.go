package fileedit

import (
	"fmt"
	"strings"
)

// Block is one SEARCH/REPLACE pair, per spec.md §4.4 and §6's bit-exact
// delimiter format.
type Block struct {
	Search  string
	Replace string
}

const (
	searchMarker  = "<<<<<<< SEARCH"
	dividerMarker = "======="
	replaceMarker = ">>>>>>> REPLACE"
)

// ParseBlocks splits body into ordered SEARCH/REPLACE blocks.
func ParseBlocks(body string) ([]Block, error) {
	lines := strings.Split(body, "\n")

	var blocks []Block
	i := 0
	for i < len(lines) {
		if strings.TrimRight(lines[i], "\r") != searchMarker {
			if strings.TrimSpace(lines[i]) == "" {
				i++
				continue
			}
			return nil, fmt.Errorf("expected %q at line %d, got %q", searchMarker, i+1, lines[i])
		}
		i++

		searchLines := []string{}
		for i < len(lines) && strings.TrimRight(lines[i], "\r") != dividerMarker {
			searchLines = append(searchLines, lines[i])
			i++
		}
		if i >= len(lines) {
			return nil, fmt.Errorf("unterminated SEARCH block: missing %q", dividerMarker)
		}
		i++ // skip divider

		replaceLines := []string{}
		for i < len(lines) && strings.TrimRight(lines[i], "\r") != replaceMarker {
			replaceLines = append(replaceLines, lines[i])
			i++
		}
		if i >= len(lines) {
			return nil, fmt.Errorf("unterminated REPLACE block: missing %q", replaceMarker)
		}
		i++ // skip REPLACE marker

		blocks = append(blocks, Block{
			Search:  strings.Join(searchLines, "\n"),
			Replace: strings.Join(replaceLines, "\n"),
		})
	}

	if len(blocks) == 0 {
		return nil, fmt.Errorf("no SEARCH/REPLACE blocks found")
	}
	return blocks, nil
}
