package grammar

// Group is one capture group of a match. Offsets are rune offsets into the line.
type Group struct {
	Index   int
	Text    string
	Start   int
	End     int
	Matched bool
}

// MatchedPattern is a successful match attempt: the pattern that matched and its groups.
// Group 0 is the whole match.
type MatchedPattern struct {
	Pattern Pattern
	Groups  []Group
}

func (m *MatchedPattern) Start() int {
	return m.Groups[0].Start
}

func (m *MatchedPattern) End() int {
	return m.Groups[0].End
}

func (m *MatchedPattern) Text() string {
	return m.Groups[0].Text
}

// Empty reports whether the match consumed no text.
func (m *MatchedPattern) Empty() bool {
	return m.End() == m.Start()
}

// Group returns the group with the given index. The second result is false when the regex
// has no such group.
func (m *MatchedPattern) Group(index int) (Group, bool) {
	if index < 0 || index >= len(m.Groups) {
		return Group{}, false
	}
	return m.Groups[index], true
}

func match(p Pattern, re *Regex, line []rune, pos, limit int) (*MatchedPattern, error) {
	groups, err := re.FindAt(line, pos, limit)
	if err != nil || groups == nil {
		return nil, err
	}
	return &MatchedPattern{Pattern: p, Groups: groups}, nil
}
