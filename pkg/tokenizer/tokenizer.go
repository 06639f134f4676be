// Package tokenizer turns source text into scoped tokens by running a TextMate grammar over it
// line by line.
//
// A Tokenizer owns the state of one document: the scope stack, the stack of open begin/end
// constructs and the cursor into the current line. Both stacks survive line boundaries, which
// is how block comments and other multi-line constructs carry over. Tokenizers are not safe
// for concurrent use; grammars and the repository are.
package tokenizer

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/walteh/tmtokenize/pkg/grammar"
	"gitlab.com/tozd/go/errors"
)

// Repository resolves grammars referenced by include rules of other grammars.
type Repository interface {
	Get(name string) (*grammar.Grammar, error)
	GetFromScope(scope string) (*grammar.Grammar, error)
}

const (
	defaultMaxStall = 100
	// bound on captures re-tokenized inside captures
	maxCaptureDepth = 64
)

type Option func(*Tokenizer)

// WithInjections toggles the grammar's injection rules. They are on by default.
func WithInjections(enabled bool) Option {
	return func(t *Tokenizer) {
		t.injections = enabled
	}
}

// WithMaxStall bounds the number of consecutive scan steps that may leave the cursor in place
// before the rest of the line is emitted as is.
func WithMaxStall(n int) Option {
	return func(t *Tokenizer) {
		if n > 0 {
			t.maxStall = n
		}
	}
}

type Tokenizer struct {
	grammar *grammar.Grammar
	repo    Repository

	injections bool
	maxStall   int
	selectors  map[string]*Selector

	injectedRules map[string][]candidate

	scopes    []string
	rootDepth int
	stack     []*frame

	line []rune
	// the line as given and the byte offset of each rune in it, so token text keeps bytes that
	// are not valid UTF-8
	text      string
	offsets   []int
	lineIndex int
	pos       int
	out       []Token

	// rules whose captures are being tokenized, keyed by the span they matched
	active       map[span]bool
	captureDepth int

	logger *zerolog.Logger
}

// New creates a tokenizer for one document. repo may be nil when the grammar does not include
// other grammars.
func New(g *grammar.Grammar, repo Repository, opts ...Option) *Tokenizer {
	t := &Tokenizer{
		grammar:    g,
		repo:       repo,
		injections: true,
		maxStall:   defaultMaxStall,
		selectors:  map[string]*Selector{},

		injectedRules: map[string][]candidate{},
	}
	for _, opt := range opts {
		opt(t)
	}
	t.Reset()
	return t
}

// Reset discards all document state.
func (t *Tokenizer) Reset() {
	t.scopes = t.grammar.RootScopes()
	t.rootDepth = len(t.scopes)
	t.stack = []*frame{{grammar: t.grammar, rules: t.grammar.Root()}}
	t.line = nil
	t.text = ""
	t.offsets = nil
	t.lineIndex = -1
	t.pos = 0
	t.out = nil
	t.active = map[span]bool{}
	t.captureDepth = 0
}

// Tokenize resets the tokenizer and tokenizes a whole document, returning one token slice per
// line.
func (t *Tokenizer) Tokenize(ctx context.Context, input string) ([][]Token, error) {
	t.Reset()

	lines := SplitLines(input)
	out := make([][]Token, 0, len(lines))
	for i, line := range lines {
		tokens, err := t.TokenizeLine(ctx, line)
		if err != nil {
			t.Reset()
			return nil, errors.Errorf("tokenizing line %d: %w", i+1, err)
		}
		out = append(out, tokens)
	}

	zerolog.Ctx(ctx).Trace().Int("lines", len(out)).Str("scope", t.grammar.ScopeName).Msg("tokenized document")

	return out, nil
}

// TokenizeLine tokenizes the next line of the document, continuing from the state the previous
// line left. A line without a terminator is given "\n".
func (t *Tokenizer) TokenizeLine(ctx context.Context, line string) ([]Token, error) {
	if n := len(line); n == 0 || (line[n-1] != '\n' && line[n-1] != '\r') {
		line += "\n"
	}

	t.logger = zerolog.Ctx(ctx)
	t.text = line
	t.line = make([]rune, 0, len(line))
	t.offsets = make([]int, 0, len(line)+1)
	for i, r := range line {
		t.line = append(t.line, r)
		t.offsets = append(t.offsets, i)
	}
	t.offsets = append(t.offsets, len(line))
	t.lineIndex++
	t.pos = 0
	t.out = nil

	if err := t.scan(len(t.line)); err != nil {
		return nil, err
	}

	return t.out, nil
}

// Scopes returns a copy of the current scope stack.
func (t *Tokenizer) Scopes() []string {
	return append([]string(nil), t.scopes...)
}

// Depth returns the number of open begin/end constructs.
func (t *Tokenizer) Depth() int {
	return len(t.stack) - 1
}

// emit appends a token for line[start:end] under scopes, which is copied.
func (t *Tokenizer) emit(start, end int, scopes []string) {
	if end <= start {
		return
	}
	t.out = append(t.out, Token{
		Scopes: append([]string(nil), scopes...),
		Text:   t.text[t.offsets[start]:t.offsets[end]],
		Start:  start,
		End:    end,
	})
}

// fill emits a token under the current scopes for the gap up to offset and moves the cursor.
func (t *Tokenizer) fill(to int) {
	if to > t.pos {
		t.emit(t.pos, to, t.scopes)
		t.pos = to
	}
}

func (t *Tokenizer) push(scope string) {
	if scope != "" {
		t.scopes = append(t.scopes, scope)
	}
}

// truncate pops scopes down to depth, never below the grammar's own scopes.
func (t *Tokenizer) truncate(depth int) {
	if depth < t.rootDepth {
		depth = t.rootDepth
	}
	if depth < len(t.scopes) {
		t.scopes = t.scopes[:depth]
	}
}

func (t *Tokenizer) with(scope string) []string {
	if scope == "" {
		return t.scopes
	}
	out := make([]string, len(t.scopes), len(t.scopes)+1)
	copy(out, t.scopes)
	return append(out, scope)
}
