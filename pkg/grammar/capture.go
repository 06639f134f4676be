package grammar

import (
	"sort"
)

// Capture annotates one numbered group of a rule's regex. A capture without nested patterns
// scopes the group's span as a whole; one with nested patterns is tokenized again over the
// group's text.
type Capture struct {
	Index    int
	Name     string
	Patterns []Pattern
}

// Captures maps a capture group index to its Capture.
type Captures map[int]*Capture

// Indices returns the declared group indices in ascending order.
func (c Captures) Indices() []int {
	out := make([]int, 0, len(c))
	for idx := range c {
		out = append(out, idx)
	}
	sort.Ints(out)
	return out
}
