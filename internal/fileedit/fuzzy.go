package fileedit

import "strings"

// whitespaceMatch is one candidate whitespace-tolerant match.
type whitespaceMatch struct {
	start, end int // byte range in content
	indentDelta int // content's leading-whitespace count minus search's, for the first line
}

// findWhitespaceTolerant looks for windows of content whose lines equal
// search's lines after stripping trailing whitespace and normalizing
// leading-whitespace amount (not content), recording the indentation delta
// of the first line so the caller can re-indent the REPLACE body.
func findWhitespaceTolerant(content, search string) []whitespaceMatch {
	searchLines := strings.Split(search, "\n")
	if len(searchLines) == 0 {
		return nil
	}
	normSearch := make([]string, len(searchLines))
	for i, l := range searchLines {
		normSearch[i] = strings.TrimRight(l, " \t")
		normSearch[i] = strings.TrimLeft(normSearch[i], " \t")
	}

	contentLines, lineOffsets := splitWithOffsets(content)

	var matches []whitespaceMatch
	n := len(searchLines)
	for start := 0; start+n <= len(contentLines); start++ {
		ok := true
		for j := 0; j < n; j++ {
			cl := strings.TrimRight(contentLines[start+j], " \t")
			clNorm := strings.TrimLeft(cl, " \t")
			if clNorm != normSearch[j] {
				ok = false
				break
			}
		}
		if !ok {
			continue
		}
		delta := leadingWhitespaceCount(contentLines[start]) - leadingWhitespaceCount(searchLines[0])
		endLineIdx := start + n - 1
		endOffset := lineOffsets[endLineIdx] + len(contentLines[endLineIdx])
		matches = append(matches, whitespaceMatch{
			start:       lineOffsets[start],
			end:         endOffset,
			indentDelta: delta,
		})
	}
	return matches
}

// reindent shifts every line of s by delta spaces (delta may be negative,
// removing up to -delta leading spaces; never negative past zero).
func reindent(s string, delta int) string {
	if delta == 0 {
		return s
	}
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		if delta > 0 {
			lines[i] = strings.Repeat(" ", delta) + l
		} else {
			n := leadingSpaceCount(l)
			cut := -delta
			if cut > n {
				cut = n
			}
			lines[i] = l[cut:]
		}
	}
	return strings.Join(lines, "\n")
}

func leadingWhitespaceCount(s string) int {
	n := 0
	for _, r := range s {
		if r == ' ' || r == '\t' {
			n++
		} else {
			break
		}
	}
	return n
}

func leadingSpaceCount(s string) int {
	n := 0
	for _, r := range s {
		if r == ' ' {
			n++
		} else {
			break
		}
	}
	return n
}

// splitWithOffsets splits content into lines (by "\n", keeping no
// terminator) along with each line's starting byte offset in content.
func splitWithOffsets(content string) ([]string, []int) {
	lines := strings.Split(content, "\n")
	offsets := make([]int, len(lines))
	pos := 0
	for i, l := range lines {
		offsets[i] = pos
		pos += len(l) + 1 // +1 for the "\n" we split on
	}
	return lines, offsets
}

// closestMatch finds the sliding window of content (by line count equal to
// search's line count) with the smallest line-level edit distance to
// search, per spec.md §4.4 rule 3. Windows tied on line distance are ranked
// by the summed character-level edit distance of their aligned lines.
func closestMatch(content, search string) (start, end, distance int) {
	contentLines, lineOffsets := splitWithOffsets(content)
	searchLines := strings.Split(search, "\n")
	n := len(searchLines)

	if len(contentLines) < n {
		return 0, len(content), lineDistance(contentLines, searchLines)
	}

	bestDist := -1
	bestStart := 0
	bestChars := 0
	for start := 0; start+n <= len(contentLines); start++ {
		window := contentLines[start : start+n]
		d := lineDistance(window, searchLines)
		if bestDist != -1 && d > bestDist {
			continue
		}
		chars := 0
		for j := range window {
			chars += lineDistance(strings.Split(window[j], ""), strings.Split(searchLines[j], ""))
		}
		if bestDist == -1 || d < bestDist || chars < bestChars {
			bestDist, bestStart, bestChars = d, start, chars
		}
	}
	endLineIdx := bestStart + n - 1
	endOffset := lineOffsets[endLineIdx] + len(contentLines[endLineIdx])
	return lineOffsets[bestStart], endOffset, bestDist
}

// lineDistance computes Levenshtein edit distance over sequences of lines
// (treating each line as one "character" of the sequence).
func lineDistance(a, b []string) int {
	m, n := len(a), len(b)
	prev := make([]int, n+1)
	curr := make([]int, n+1)
	for j := 0; j <= n; j++ {
		prev[j] = j
	}
	for i := 1; i <= m; i++ {
		curr[0] = i
		for j := 1; j <= n; j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			del := prev[j] + 1
			ins := curr[j-1] + 1
			sub := prev[j-1] + cost
			curr[j] = min3(del, ins, sub)
		}
		prev, curr = curr, prev
	}
	return prev[n]
}

func min3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}
