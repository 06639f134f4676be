package tokenizer

import (
	"strings"

	"gitlab.com/tozd/go/errors"
)

// Priority orders injected rules relative to the rules of the active context.
type Priority int

const (
	PriorityLeft    Priority = -1
	PriorityDefault Priority = 0
	PriorityRight   Priority = 1
)

// Selector is a compiled scope selector such as "L:source.php - (comment | string)".
type Selector struct {
	source string
	alts   []alternative
}

type alternative struct {
	matcher  matcher
	priority Priority
}

type matcher func(scopes []string) bool

// ParseSelector compiles a scope selector.
func ParseSelector(src string) (*Selector, error) {
	p := &selectorParser{tokens: lexSelector(src)}

	sel := &Selector{source: src}
	for p.peek() != "" {
		priority := PriorityDefault
		switch p.peek() {
		case "L:":
			priority = PriorityLeft
			p.next()
		case "R:":
			priority = PriorityRight
			p.next()
		case "B:":
			p.next()
		}

		m, err := p.conjunction()
		if err != nil {
			return nil, errors.Errorf("parsing selector %q: %w", src, err)
		}
		if m != nil {
			sel.alts = append(sel.alts, alternative{matcher: m, priority: priority})
		}

		if p.peek() != "," {
			break
		}
		p.next()
	}

	if tok := p.peek(); tok != "" {
		return nil, errors.Errorf("parsing selector %q: unexpected %q", src, tok)
	}

	return sel, nil
}

func (s *Selector) String() string {
	return s.source
}

// Match reports whether the selector matches a scope stack (outermost first) and the priority
// of the first alternative that did.
func (s *Selector) Match(scopes []string) (bool, Priority) {
	for _, alt := range s.alts {
		if alt.matcher(scopes) {
			return true, alt.priority
		}
	}
	return false, PriorityDefault
}

type selectorParser struct {
	tokens []string
	pos    int
}

func (p *selectorParser) peek() string {
	if p.pos >= len(p.tokens) {
		return ""
	}
	return p.tokens[p.pos]
}

func (p *selectorParser) next() string {
	tok := p.peek()
	p.pos++
	return tok
}

// conjunction parses operands until a separator; all must match.
func (p *selectorParser) conjunction() (matcher, error) {
	var operands []matcher
	for {
		if p.peek() == "&" {
			p.next()
			continue
		}
		m, err := p.operand()
		if err != nil {
			return nil, err
		}
		if m == nil {
			break
		}
		operands = append(operands, m)
	}
	if len(operands) == 0 {
		return nil, nil
	}
	return func(scopes []string) bool {
		for _, m := range operands {
			if !m(scopes) {
				return false
			}
		}
		return true
	}, nil
}

func (p *selectorParser) operand() (matcher, error) {
	switch tok := p.peek(); {
	case tok == "-":
		p.next()
		m, err := p.operand()
		if err != nil {
			return nil, err
		}
		if m == nil {
			return nil, errors.New("dangling '-'")
		}
		return func(scopes []string) bool { return !m(scopes) }, nil

	case tok == "(":
		p.next()
		m, err := p.disjunction()
		if err != nil {
			return nil, err
		}
		if p.next() != ")" {
			return nil, errors.New("missing ')'")
		}
		if m == nil {
			return func([]string) bool { return false }, nil
		}
		return m, nil

	case isScopeToken(tok):
		var path []string
		for isScopeToken(p.peek()) {
			path = append(path, p.next())
		}
		return pathMatcher(path), nil
	}
	return nil, nil
}

// disjunction parses conjunctions separated by '|' or ','; any may match.
func (p *selectorParser) disjunction() (matcher, error) {
	var options []matcher
	for {
		m, err := p.conjunction()
		if err != nil {
			return nil, err
		}
		if m != nil {
			options = append(options, m)
		}
		if tok := p.peek(); tok != "|" && tok != "," {
			break
		}
		p.next()
	}
	if len(options) == 0 {
		return nil, nil
	}
	return func(scopes []string) bool {
		for _, m := range options {
			if m(scopes) {
				return true
			}
		}
		return false
	}, nil
}

// pathMatcher matches when each selector scope prefixes a stack entry, in order.
func pathMatcher(path []string) matcher {
	return func(scopes []string) bool {
		i := 0
		for _, want := range path {
			found := false
			for i < len(scopes) {
				s := scopes[i]
				i++
				if ScopePrefix(want, s) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
		return true
	}
}

// ScopePrefix reports whether selector names scope or one of its dot-separated ancestors.
func ScopePrefix(selector, scope string) bool {
	if selector == "*" {
		return true
	}
	return scope == selector || (strings.HasPrefix(scope, selector) && scope[len(selector)] == '.')
}

func isScopeToken(tok string) bool {
	if tok == "" {
		return false
	}
	switch tok {
	case "(", ")", ",", "|", "&", "-", "L:", "R:", "B:":
		return false
	}
	return true
}

func lexSelector(src string) []string {
	var tokens []string
	for i := 0; i < len(src); {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n':
			i++
		case (c == 'L' || c == 'R' || c == 'B') && i+1 < len(src) && src[i+1] == ':':
			tokens = append(tokens, src[i:i+2])
			i += 2
		case strings.IndexByte("(),|&-", c) >= 0:
			tokens = append(tokens, string(c))
			i++
		default:
			j := i + 1
			for j < len(src) && strings.IndexByte(" \t\n(),|&", src[j]) < 0 {
				j++
			}
			tokens = append(tokens, src[i:j])
			i = j
		}
	}
	return tokens
}
