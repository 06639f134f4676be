package grammar

import (
	"strings"

	"github.com/google/uuid"
)

// Grammar is a parsed grammar document. It is immutable once built and may be shared by any
// number of tokenizers; repository entries are looked up by name at match time, so rules may
// refer to themselves or to each other.
type Grammar struct {
	ScopeName      string
	Name           string
	FileTypes      []string
	FirstLineMatch *Regex
	// UUID is the document's uuid key, the zero value when absent or unparsable.
	UUID       uuid.UUID
	Patterns   []Pattern
	Repository map[string]Pattern
	Injections []Injection

	root *CollectionPattern
}

// Injection is a rule set applied wherever its selector matches the current scope stack.
type Injection struct {
	Selector string
	Pattern  Pattern
}

// RootScopes returns the scope name split on whitespace; every token's scope path starts with
// these.
func (g *Grammar) RootScopes() []string {
	return strings.Fields(g.ScopeName)
}

// Root returns the root rule list as a single collection. The same value is returned on every
// call.
func (g *Grammar) Root() *CollectionPattern {
	return g.root
}

// Lookup returns the repository entry with the given name.
func (g *Grammar) Lookup(name string) (Pattern, bool) {
	p, ok := g.Repository[name]
	return p, ok
}

func (g *Grammar) HasInjections() bool {
	return len(g.Injections) > 0
}

// MatchesFirstLine reports whether line matches the grammar's firstLineMatch.
func (g *Grammar) MatchesFirstLine(line string) bool {
	if g.FirstLineMatch == nil {
		return false
	}
	runes := []rune(line)
	groups, err := g.FirstLineMatch.FindAt(runes, 0, len(runes))
	return err == nil && groups != nil
}
