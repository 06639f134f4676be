package tokenizer

import (
	"github.com/walteh/tmtokenize/pkg/grammar"
	"gitlab.com/tozd/go/errors"
)

// frame is one entry of the pattern stack. The bottom frame holds the grammar's root rules;
// every frame above it is an open begin/end construct waiting for its end regex.
type frame struct {
	grammar *grammar.Grammar
	rules   grammar.Pattern
	end     *grammar.EndPattern

	// scope depth before the construct pushed its name
	depth int
	// whether contentName was pushed on top of the name
	content bool
	// where the begin matched, to catch a rule re-entering itself without progress
	lineIndex int
	anchor    int

	candidates []candidate
	expanded   bool
}

// candidate is a leaf rule together with the grammar its includes resolve against.
type candidate struct {
	pattern grammar.Pattern
	grammar *grammar.Grammar
}

// hit is the winning match of one selection round.
type hit struct {
	match   *grammar.MatchedPattern
	grammar *grammar.Grammar
	closes  bool
}

var errStalled = errors.Base("grammar made no progress")

// scan runs the selection loop over line[pos:limit].
func (t *Tokenizer) scan(limit int) error {
	stalls := 0
	for t.pos < limit {
		h, err := t.best(limit)
		if err != nil {
			return err
		}

		if h == nil {
			t.fill(limit)
			return nil
		}

		before := t.pos
		if h.closes {
			top := t.stack[len(t.stack)-1]
			t.stack = t.stack[:len(t.stack)-1]
			err = t.processEnd(top, h.match)
		} else {
			err = t.process(h, limit)
		}

		if errors.Is(err, errStalled) {
			t.stall(limit, h)
			return nil
		}
		if err != nil {
			return err
		}

		if t.pos > before {
			stalls = 0
			continue
		}

		if _, ok := h.match.Pattern.(*grammar.MatchPattern); ok {
			t.stall(limit, h)
			return nil
		}

		// empty begins and ends are legitimate, but only a bounded run of them
		stalls++
		if stalls > t.maxStall {
			t.stall(limit, h)
			return nil
		}
	}
	return nil
}

// stall gives up on the rest of the line: one token under the current scopes covers it.
func (t *Tokenizer) stall(limit int, h *hit) {
	if t.logger != nil {
		t.logger.Warn().
			Str("scope", t.grammar.ScopeName).
			Int("line", t.lineIndex+1).
			Int("offset", t.pos).
			Str("rule", describe(h.match.Pattern)).
			Msg("grammar stopped advancing, skipping rest of line")
	}
	t.fill(limit)
}

func describe(p grammar.Pattern) string {
	switch p := p.(type) {
	case *grammar.MatchPattern:
		return "match " + p.Regex.Source()
	case *grammar.BeginEndPattern:
		return "begin " + p.Begin.Source()
	case *grammar.EndPattern:
		return "end " + p.Regex.Source()
	}
	return p.Scope()
}

// best selects the winning match at the cursor: the first candidate matching exactly at the
// cursor, otherwise the leftmost, the earlier declared one winning ties. The open construct's
// end regex competes against it.
func (t *Tokenizer) best(limit int) (*hit, error) {
	top := t.stack[len(t.stack)-1]

	if !top.expanded {
		var rules []grammar.Pattern
		if top.end != nil {
			rules = top.end.Patterns
		} else {
			rules = []grammar.Pattern{top.rules}
		}
		cands, err := t.expand(rules, top.grammar)
		if err != nil {
			return nil, err
		}
		top.candidates = cands
		top.expanded = true
	}

	left, right, err := t.injected()
	if err != nil {
		return nil, err
	}

	var best *hit
	for _, set := range [][]candidate{left, top.candidates, right} {
		for _, c := range set {
			m, err := c.pattern.Match(t.line, t.pos, limit)
			if err != nil {
				return nil, err
			}
			if m == nil {
				continue
			}
			if best == nil || m.Start() < best.match.Start() {
				best = &hit{match: m, grammar: c.grammar}
			}
			if m.Start() == t.pos {
				break
			}
		}
		if best != nil && best.match.Start() == t.pos {
			break
		}
	}

	if top.end == nil {
		return best, nil
	}

	em, err := top.end.Match(t.line, t.pos, limit)
	if err != nil {
		return nil, err
	}
	if em == nil {
		return best, nil
	}

	end := &hit{match: em, grammar: top.grammar, closes: true}
	switch {
	case best == nil:
		return end, nil
	case top.end.ApplyEndPatternLast:
		if em.Start() < best.match.Start() {
			return end, nil
		}
	case em.Start() < best.match.Start():
		return end, nil
	case em.Start() == best.match.Start() && !em.Empty():
		return end, nil
	}
	return best, nil
}

// expand flattens rules into leaf candidates in declaration order, resolving includes and
// unpacking collections. Each rule set is visited once, which also breaks include cycles.
func (t *Tokenizer) expand(rules []grammar.Pattern, g *grammar.Grammar) ([]candidate, error) {
	var out []candidate
	seen := map[grammar.Pattern]bool{}

	var walk func(p grammar.Pattern, g *grammar.Grammar) error
	walk = func(p grammar.Pattern, g *grammar.Grammar) error {
		if seen[p] {
			return nil
		}
		seen[p] = true

		switch p := p.(type) {
		case *grammar.IncludePattern:
			target, owner, err := t.resolve(p, g)
			if err != nil {
				return err
			}
			return walk(target, owner)
		case *grammar.CollectionPattern:
			for _, r := range p.Patterns {
				if err := walk(r, g); err != nil {
					return err
				}
			}
			return nil
		default:
			out = append(out, candidate{pattern: p, grammar: g})
			return nil
		}
	}

	for _, r := range rules {
		if err := walk(r, g); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// resolve looks up an include relative to the grammar that declared it.
func (t *Tokenizer) resolve(inc *grammar.IncludePattern, g *grammar.Grammar) (grammar.Pattern, *grammar.Grammar, error) {
	switch {
	case inc.IsSelf():
		return g.Root(), g, nil
	case inc.IsBase():
		return t.grammar.Root(), t.grammar, nil
	}

	scope, name := inc.Target()

	owner := g
	if scope != "" && scope != g.ScopeName {
		if t.repo == nil {
			return nil, nil, errors.Errorf("%w: %s: no grammar repository", grammar.ErrUnresolvedReference, inc.Reference)
		}
		other, err := t.repo.GetFromScope(scope)
		if err != nil {
			return nil, nil, errors.Errorf("%w: %s: %s", grammar.ErrUnresolvedReference, inc.Reference, err.Error())
		}
		owner = other
	}

	if name == "" {
		return owner.Root(), owner, nil
	}

	p, ok := owner.Lookup(name)
	if !ok {
		return nil, nil, errors.Errorf("%w: %s in %s", grammar.ErrUnresolvedReference, inc.Reference, owner.ScopeName)
	}
	return p, owner, nil
}

// injected returns the candidates of the injections whose selectors match the current scope
// stack, split into those that go before the active rules and those that go after.
func (t *Tokenizer) injected() (left, right []candidate, err error) {
	if !t.injections || !t.grammar.HasInjections() {
		return nil, nil, nil
	}

	for _, inj := range t.grammar.Injections {
		sel, ok := t.selectors[inj.Selector]
		if !ok {
			sel, err = ParseSelector(inj.Selector)
			if err != nil {
				return nil, nil, errors.Errorf("%w: injection selector: %s", grammar.ErrMalformedGrammar, err.Error())
			}
			t.selectors[inj.Selector] = sel
		}

		matched, priority := sel.Match(t.scopes)
		if !matched {
			continue
		}

		cands, ok := t.injectedRules[inj.Selector]
		if !ok {
			cands, err = t.expand([]grammar.Pattern{inj.Pattern}, t.grammar)
			if err != nil {
				return nil, nil, err
			}
			t.injectedRules[inj.Selector] = cands
		}
		if priority == PriorityLeft {
			left = append(left, cands...)
		} else {
			right = append(right, cands...)
		}
	}
	return left, right, nil
}
