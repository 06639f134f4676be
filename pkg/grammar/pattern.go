package grammar

import (
	"strings"
)

// Pattern is one rule of a grammar. The set of implementations is closed: MatchPattern,
// BeginEndPattern, EndPattern, IncludePattern and CollectionPattern.
type Pattern interface {
	// Match attempts a match in line[:limit] starting the search at pos. Patterns without a
	// regex of their own (includes, collections) never match and return nil.
	Match(line []rune, pos, limit int) (*MatchedPattern, error)

	// CaptureTable returns the captures that apply to this pattern's own match.
	CaptureTable() Captures

	// Scope returns the scope name assigned to the match, or "".
	Scope() string

	// Rules returns the nested rule list, if any.
	Rules() []Pattern

	isPattern()
}

var (
	_ Pattern = (*MatchPattern)(nil)
	_ Pattern = (*BeginEndPattern)(nil)
	_ Pattern = (*EndPattern)(nil)
	_ Pattern = (*IncludePattern)(nil)
	_ Pattern = (*CollectionPattern)(nil)
)

// MatchPattern is a single-regex rule: {match, name?, captures?}.
type MatchPattern struct {
	Regex    *Regex
	Name     string
	Captures Captures
}

func (p *MatchPattern) Match(line []rune, pos, limit int) (*MatchedPattern, error) {
	return match(p, p.Regex, line, pos, limit)
}

func (p *MatchPattern) CaptureTable() Captures { return p.Captures }
func (p *MatchPattern) Scope() string          { return p.Name }
func (p *MatchPattern) Rules() []Pattern       { return nil }
func (p *MatchPattern) isPattern()             {}

// BeginEndPattern opens a construct that may span lines. End is a template: \N refers to group
// N of the begin match and is substituted when the construct is entered.
type BeginEndPattern struct {
	Begin               *Regex
	End                 string
	Name                string
	ContentName         string
	BeginCaptures       Captures
	EndCaptures         Captures
	Captures            Captures
	Patterns            []Pattern
	ApplyEndPatternLast bool

	// set when End holds no backreferences and can be compiled once
	end *Regex
}

func (p *BeginEndPattern) Match(line []rune, pos, limit int) (*MatchedPattern, error) {
	return match(p, p.Begin, line, pos, limit)
}

// CaptureTable returns beginCaptures, falling back to captures.
func (p *BeginEndPattern) CaptureTable() Captures {
	if len(p.BeginCaptures) > 0 {
		return p.BeginCaptures
	}
	return p.Captures
}

func (p *BeginEndPattern) Scope() string    { return p.Name }
func (p *BeginEndPattern) Rules() []Pattern { return p.Patterns }
func (p *BeginEndPattern) isPattern()       {}

// NewEnd binds the rule to a begin match, resolving backreferences in the end template.
func (p *BeginEndPattern) NewEnd(begin *MatchedPattern) *EndPattern {
	re := p.end
	if re == nil {
		re = NewRegex(substituteBackrefs(p.End, begin))
	}

	captures := p.EndCaptures
	if len(captures) == 0 {
		captures = p.Captures
	}

	return &EndPattern{
		Rule:                p,
		Begin:               begin,
		Regex:               re,
		Name:                p.Name,
		ContentName:         p.ContentName,
		Captures:            captures,
		Patterns:            p.Patterns,
		ApplyEndPatternLast: p.ApplyEndPatternLast,
	}
}

// EndPattern is a BeginEndPattern bound to the begin match that opened it. It lives on the
// tokenizer's pattern stack until its regex matches.
type EndPattern struct {
	Rule                *BeginEndPattern
	Begin               *MatchedPattern
	Regex               *Regex
	Name                string
	ContentName         string
	Captures            Captures
	Patterns            []Pattern
	ApplyEndPatternLast bool
}

func (p *EndPattern) Match(line []rune, pos, limit int) (*MatchedPattern, error) {
	return match(p, p.Regex, line, pos, limit)
}

func (p *EndPattern) CaptureTable() Captures { return p.Captures }
func (p *EndPattern) Scope() string          { return p.Name }
func (p *EndPattern) Rules() []Pattern       { return p.Patterns }
func (p *EndPattern) isPattern()             {}

// IncludePattern references another rule set: $self, $base, #name, scope or scope#name.
type IncludePattern struct {
	Reference string
}

func (p *IncludePattern) Match([]rune, int, int) (*MatchedPattern, error) { return nil, nil }
func (p *IncludePattern) CaptureTable() Captures                          { return nil }
func (p *IncludePattern) Scope() string                                   { return "" }
func (p *IncludePattern) Rules() []Pattern                                { return nil }
func (p *IncludePattern) isPattern()                                      {}

// IsSelf reports a reference to the owning grammar's root rules.
func (p *IncludePattern) IsSelf() bool { return p.Reference == "$self" }

// IsBase reports a reference to the root rules of the grammar tokenizing the document.
func (p *IncludePattern) IsBase() bool { return p.Reference == "$base" }

// Target splits the reference into a foreign scope name and a repository entry. Either may
// be empty: "#name" has no scope, "source.x" has no entry.
func (p *IncludePattern) Target() (scope, name string) {
	scope, name, _ = strings.Cut(p.Reference, "#")
	return scope, name
}

// CollectionPattern is a bare ordered rule list with no match of its own.
type CollectionPattern struct {
	Patterns []Pattern
}

func (p *CollectionPattern) Match([]rune, int, int) (*MatchedPattern, error) { return nil, nil }
func (p *CollectionPattern) CaptureTable() Captures                          { return nil }
func (p *CollectionPattern) Scope() string                                   { return "" }
func (p *CollectionPattern) Rules() []Pattern                                { return p.Patterns }
func (p *CollectionPattern) isPattern()                                      {}
