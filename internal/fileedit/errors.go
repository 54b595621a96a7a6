package fileedit

import "fmt"

// NoMatchError is returned when a SEARCH block cannot be matched at all
// (spec.md §7's NoMatch). It carries the closest candidate so the caller
// (the agent) can correct its SEARCH text.
type NoMatchError struct {
	BlockIndex    int
	ClosestStart  int
	ClosestEnd    int
	ClosestText   string
	EditDistance  int
}

func (e *NoMatchError) Error() string {
	return fmt.Sprintf("block %d: no match found; closest candidate at bytes [%d,%d) (edit distance %d)",
		e.BlockIndex, e.ClosestStart, e.ClosestEnd, e.EditDistance)
}

// AmbiguousError is returned when multiple exact/fuzzy matches remain after
// filtering by the "scan from end of last applied block" rule (spec.md §4.4
// rule 4, §9 open question b).
type AmbiguousError struct {
	BlockIndex int
	Offsets    []int
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("block %d: ambiguous match at offsets %v", e.BlockIndex, e.Offsets)
}
