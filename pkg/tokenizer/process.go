package tokenizer

import (
	"github.com/walteh/tmtokenize/pkg/grammar"
)

// span identifies a rule matched over [start, end) of the current line.
type span struct {
	rule       grammar.Pattern
	start, end int
}

func spanOf(m *grammar.MatchedPattern) span {
	rule := m.Pattern
	if e, ok := rule.(*grammar.EndPattern); ok {
		rule = e.Rule
	}
	return span{rule: rule, start: m.Start(), end: m.End()}
}

// process consumes a winning match that is not the active construct's end.
func (t *Tokenizer) process(h *hit, limit int) error {
	m := h.match
	t.fill(m.Start())

	// a capture's rules matching the rule that owns the capture over the same text again
	if t.active[spanOf(m)] {
		return errStalled
	}

	switch p := m.Pattern.(type) {
	case *grammar.MatchPattern:
		return t.processMatch(p, m, h.grammar)
	case *grammar.BeginEndPattern:
		return t.processBegin(p, m, h.grammar, limit)
	}
	return nil
}

func (t *Tokenizer) processMatch(p *grammar.MatchPattern, m *grammar.MatchedPattern, g *grammar.Grammar) error {
	if len(p.Captures) == 0 {
		t.emit(m.Start(), m.End(), t.with(p.Name))
		t.pos = m.End()
		return nil
	}

	depth := len(t.scopes)
	t.push(p.Name)
	err := t.captures(m, p.Captures, g)
	t.fill(m.End())
	t.truncate(depth)
	return err
}

// processBegin enters a begin/end construct. When the construct has no nested rules and its
// end is already on this line it is closed in place; otherwise it stays open on the pattern
// stack until a later match of its end.
func (t *Tokenizer) processBegin(p *grammar.BeginEndPattern, m *grammar.MatchedPattern, g *grammar.Grammar, limit int) error {
	if m.Empty() {
		top := t.stack[len(t.stack)-1]
		if top.end != nil && top.end.Rule == p && top.lineIndex == t.lineIndex && top.anchor == m.Start() {
			return errStalled
		}
	}

	f := &frame{
		grammar:   g,
		depth:     len(t.scopes),
		lineIndex: t.lineIndex,
		anchor:    m.Start(),
	}

	t.push(p.Name)

	if caps := p.CaptureTable(); len(caps) > 0 {
		if err := t.captures(m, caps, g); err != nil {
			return err
		}
		t.fill(m.End())
	} else {
		t.emit(m.Start(), m.End(), t.scopes)
		t.pos = m.End()
	}

	f.end = p.NewEnd(m)

	if f.end.ContentName != "" {
		t.push(f.end.ContentName)
		f.content = true
	}

	if len(f.end.Patterns) == 0 && !t.grammar.HasInjections() {
		em, err := f.end.Match(t.line, t.pos, limit)
		if err != nil {
			return err
		}
		if em != nil {
			return t.processEnd(f, em)
		}
	}

	t.stack = append(t.stack, f)
	return nil
}

// processEnd closes a construct whose end regex matched. The frame has already been taken off
// the pattern stack.
func (t *Tokenizer) processEnd(f *frame, m *grammar.MatchedPattern) error {
	t.fill(m.Start())

	// drop contentName and anything a capture left behind, keeping the construct's own name
	t.truncate(f.depth)
	t.push(f.end.Name)

	var err error
	if caps := f.end.CaptureTable(); len(caps) > 0 {
		err = t.captures(m, caps, f.grammar)
		t.fill(m.End())
	} else {
		t.emit(m.Start(), m.End(), t.scopes)
		t.pos = m.End()
	}

	t.truncate(f.depth)
	return err
}

// captures scopes the groups of m in ascending index order. Groups that did not participate,
// that start before the cursor, or that reach past the match are skipped. A capture with nested
// rules is tokenized again within its group.
func (t *Tokenizer) captures(m *grammar.MatchedPattern, caps grammar.Captures, g *grammar.Grammar) error {
	if key := spanOf(m); !t.active[key] {
		t.active[key] = true
		defer delete(t.active, key)
	}

	for _, idx := range caps.Indices() {
		c := caps[idx]

		grp, ok := m.Group(idx)
		if !ok || !grp.Matched {
			continue
		}
		if grp.Start < t.pos || grp.End > m.End() {
			continue
		}

		t.fill(grp.Start)

		depth := len(t.scopes)
		t.push(c.Name)

		if len(c.Patterns) > 0 {
			if err := t.scanCapture(c.Patterns, g, grp.End); err != nil {
				return err
			}
		}

		if t.pos < grp.End {
			t.emit(t.pos, grp.End, t.scopes)
			t.pos = grp.End
		}

		t.truncate(depth)
	}
	return nil
}

// scanCapture runs the scan loop over [cursor, limit) with rules as the only context.
// Constructs opened inside the group do not outlive it.
func (t *Tokenizer) scanCapture(rules []grammar.Pattern, g *grammar.Grammar, limit int) error {
	if t.captureDepth >= maxCaptureDepth {
		if t.logger != nil {
			t.logger.Warn().
				Str("scope", t.grammar.ScopeName).
				Int("line", t.lineIndex+1).
				Int("offset", t.pos).
				Msg("captures nested too deeply, leaving group unscanned")
		}
		return nil
	}
	t.captureDepth++
	defer func() { t.captureDepth-- }()

	saved := t.stack
	depth := len(t.scopes)

	t.stack = []*frame{{grammar: g, rules: &grammar.CollectionPattern{Patterns: rules}}}
	err := t.scan(limit)

	t.stack = saved
	t.truncate(depth)
	return err
}
