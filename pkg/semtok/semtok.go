package semtok

import (
	"strings"

	"github.com/walteh/tmtokenize/pkg/tokenizer"
)

type rule struct {
	prefix   string
	kind     TokenType
	modifier TokenModifier
}

// rules are tried in order against one scope; more specific prefixes come first.
var rules = []rule{
	{prefix: "comment", kind: TokenComment},
	{prefix: "string", kind: TokenString},
	{prefix: "constant.numeric", kind: TokenNumber},
	{prefix: "keyword.operator", kind: TokenOperator},
	{prefix: "keyword", kind: TokenKeyword},
	{prefix: "storage.modifier", kind: TokenKeyword},
	{prefix: "storage.type", kind: TokenTypeName},
	{prefix: "entity.name.function", kind: TokenFunction, modifier: ModifierDeclaration},
	{prefix: "support.function", kind: TokenFunction, modifier: ModifierDefaultLibrary},
	{prefix: "entity.name.type", kind: TokenTypeName, modifier: ModifierDeclaration},
	{prefix: "entity.name.class", kind: TokenTypeName, modifier: ModifierDeclaration},
	{prefix: "support.type", kind: TokenTypeName, modifier: ModifierDefaultLibrary},
	{prefix: "support.class", kind: TokenTypeName, modifier: ModifierDefaultLibrary},
	{prefix: "variable.other.constant", kind: TokenVariable, modifier: ModifierReadonly},
	{prefix: "variable", kind: TokenVariable},
}

// Classify maps a scope path to a kind using its innermost mapped scope. ok is false when no
// scope maps.
func Classify(scopes []string) (kind TokenType, modifier TokenModifier, scope string, ok bool) {
	for i := len(scopes) - 1; i >= 0; i-- {
		for _, r := range rules {
			if tokenizer.ScopePrefix(r.prefix, scopes[i]) {
				return r.kind, r.modifier, scopes[i], true
			}
		}
	}
	return 0, ModifierNone, "", false
}

// FromLines converts tokenized lines into semantic tokens, in document order.
func FromLines(lines [][]tokenizer.Token) []Token {
	var out []Token
	for lineNo, line := range lines {
		prev := -1
		for _, tk := range line {
			kind, mod, scope, ok := Classify(tk.Scopes)
			if !ok {
				prev = -1
				continue
			}

			length := tk.End - tk.Start - terminatorWidth(tk.Text)
			if length <= 0 {
				prev = -1
				continue
			}

			if prev >= 0 {
				p := &out[prev]
				if p.Type == kind && p.Modifier == mod && p.Start+p.Length == tk.Start {
					p.Length += length
					continue
				}
			}

			out = append(out, Token{
				Line:     lineNo,
				Start:    tk.Start,
				Length:   length,
				Type:     kind,
				Modifier: mod,
				Scope:    scope,
			})
			prev = len(out) - 1
		}
	}
	return out
}

// Encode packs tokens into the relative five-integer form of the LSP semantic tokens protocol:
// delta line, delta start, length, type index in Legend, modifier bits.
func Encode(tokens []Token) []uint32 {
	data := make([]uint32, 0, len(tokens)*5)
	line, start := 0, 0
	for _, t := range tokens {
		deltaLine := t.Line - line
		deltaStart := t.Start
		if deltaLine == 0 {
			deltaStart = t.Start - start
		}
		data = append(data,
			uint32(deltaLine),
			uint32(deltaStart),
			uint32(t.Length),
			uint32(t.Type-1),
			uint32(t.Modifier),
		)
		line, start = t.Line, t.Start
	}
	return data
}

func terminatorWidth(text string) int {
	switch {
	case strings.HasSuffix(text, "\r\n"):
		return 2
	case strings.HasSuffix(text, "\n"), strings.HasSuffix(text, "\r"):
		return 1
	}
	return 0
}
