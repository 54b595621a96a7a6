package fileedit

import "strings"

// ApplyResult summarizes a successful Apply call.
type ApplyResult struct {
	Content  string // final file content
	Applied  []int  // block indexes applied, in order
	Warnings []string
}

// Apply runs blocks in order against content, implementing spec.md §4.4:
// exact match, then whitespace-tolerant match with re-indentation, then
// closest-match failure; a match that starts before the end of the last
// applied block is never used, which also resolves ambiguity. All-or-nothing: any error leaves content
// logically untouched (the caller must not persist a failed Apply's
// return value).
func Apply(content string, blocks []Block) (ApplyResult, error) {
	result := ApplyResult{Content: content}
	lastEnd := 0

	for idx, b := range blocks {
		if b.Search == b.Replace {
			// Empty edit: spec.md testable property 7 — success, no warnings,
			// bytes unchanged (but still advances lastEnd so later blocks
			// behave consistently).
			offsets := allOffsets(result.Content, b.Search)
			if len(offsets) == 0 {
				return ApplyResult{}, &NoMatchError{BlockIndex: idx}
			}
			pos := firstAtOrAfter(offsets, lastEnd)
			if pos == -1 {
				return ApplyResult{}, &NoMatchError{BlockIndex: idx}
			}
			lastEnd = pos + len(b.Search)
			result.Applied = append(result.Applied, idx)
			continue
		}

		offsets := allOffsets(result.Content, b.Search)

		switch len(offsets) {
		case 1:
			if offsets[0] < lastEnd {
				return ApplyResult{}, &NoMatchError{BlockIndex: idx}
			}
			result.Content = spliceAt(result.Content, offsets[0], len(b.Search), b.Replace)
			lastEnd = offsets[0] + len(b.Replace)
			result.Applied = append(result.Applied, idx)
			continue
		case 0:
			// fall through to whitespace-tolerant match below
		default:
			filtered := filterAtOrAfter(offsets, lastEnd)
			if len(filtered) == 1 {
				pos := filtered[0]
				result.Content = spliceAt(result.Content, pos, len(b.Search), b.Replace)
				lastEnd = pos + len(b.Replace)
				result.Applied = append(result.Applied, idx)
				continue
			}
			if len(filtered) == 0 {
				return ApplyResult{}, &NoMatchError{BlockIndex: idx}
			}
			return ApplyResult{}, &AmbiguousError{BlockIndex: idx, Offsets: filtered}
		}

		// Whitespace-tolerant fallback.
		wsMatches := findWhitespaceTolerant(result.Content, b.Search)
		if len(wsMatches) == 1 {
			m := wsMatches[0]
			if m.start < lastEnd {
				return ApplyResult{}, &NoMatchError{BlockIndex: idx}
			}
			replace := reindent(b.Replace, m.indentDelta)
			result.Content = spliceAt(result.Content, m.start, m.end-m.start, replace)
			lastEnd = m.start + len(replace)
			result.Applied = append(result.Applied, idx)
			result.Warnings = append(result.Warnings,
				"IndentWarning: block "+itoa(idx)+" matched with different indentation; re-indented REPLACE body")
			continue
		}
		if len(wsMatches) > 1 {
			var starts []int
			for _, m := range wsMatches {
				starts = append(starts, m.start)
			}
			filtered := filterAtOrAfter(starts, lastEnd)
			if len(filtered) == 1 {
				var chosen whitespaceMatch
				for _, m := range wsMatches {
					if m.start == filtered[0] {
						chosen = m
						break
					}
				}
				replace := reindent(b.Replace, chosen.indentDelta)
				result.Content = spliceAt(result.Content, chosen.start, chosen.end-chosen.start, replace)
				lastEnd = chosen.start + len(replace)
				result.Applied = append(result.Applied, idx)
				result.Warnings = append(result.Warnings,
					"IndentWarning: block "+itoa(idx)+" matched with different indentation; re-indented REPLACE body")
				continue
			}
			if len(filtered) == 0 {
				return ApplyResult{}, &NoMatchError{BlockIndex: idx}
			}
			return ApplyResult{}, &AmbiguousError{BlockIndex: idx, Offsets: filtered}
		}

		// No exact or fuzzy match: report the closest candidate.
		start, end, dist := closestMatch(result.Content, b.Search)
		return ApplyResult{}, &NoMatchError{
			BlockIndex:   idx,
			ClosestStart: start,
			ClosestEnd:   end,
			ClosestText:  result.Content[start:end],
			EditDistance: dist,
		}
	}

	return result, nil
}

func allOffsets(content, search string) []int {
	var offsets []int
	start := 0
	for {
		i := strings.Index(content[start:], search)
		if i == -1 {
			break
		}
		offsets = append(offsets, start+i)
		start = start + i + 1
		if start >= len(content) {
			break
		}
	}
	return offsets
}

func filterAtOrAfter(offsets []int, floor int) []int {
	var out []int
	for _, o := range offsets {
		if o >= floor {
			out = append(out, o)
		}
	}
	return out
}

func firstAtOrAfter(offsets []int, floor int) int {
	for _, o := range offsets {
		if o >= floor {
			return o
		}
	}
	return -1
}

func spliceAt(content string, start, length int, replacement string) string {
	return content[:start] + replacement + content[start+length:]
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
