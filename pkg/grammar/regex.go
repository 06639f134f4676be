package grammar

import (
	"strconv"
	"strings"
	"sync"

	"github.com/dlclark/regexp2"
	"gitlab.com/tozd/go/errors"
)

// Regex is a lazily compiled TextMate (oniguruma flavoured) regular expression.
// Once compiled it is immutable and safe to share between tokenizers.
type Regex struct {
	source string

	once sync.Once
	re   *regexp2.Regexp
	err  error
}

func NewRegex(source string) *Regex {
	return &Regex{source: source}
}

func (r *Regex) Source() string {
	return r.source
}

func (r *Regex) String() string {
	return r.source
}

// Compile compiles the expression if that has not happened yet and reports any failure.
func (r *Regex) Compile() error {
	r.once.Do(func() {
		translated, err := translate(r.source)
		if err != nil {
			r.err = errors.Errorf("%w: %q: %s", ErrInvalidRegex, r.source, err.Error())
			return
		}
		re, err := regexp2.Compile(translated, regexp2.None)
		if err != nil {
			r.err = errors.Errorf("%w: %q: %s", ErrInvalidRegex, r.source, err.Error())
			return
		}
		r.re = re
	})
	return r.err
}

// FindAt searches line[:limit] for the first match starting at or after pos.
// It returns nil groups when nothing matches.
func (r *Regex) FindAt(line []rune, pos, limit int) ([]Group, error) {
	if err := r.Compile(); err != nil {
		return nil, err
	}

	if limit > len(line) {
		limit = len(line)
	}
	if pos > limit {
		return nil, nil
	}

	m, err := r.re.FindRunesMatchStartingAt(line[:limit], pos)
	if err != nil {
		return nil, errors.Errorf("matching %q: %w", r.source, err)
	}
	if m == nil {
		return nil, nil
	}

	raw := m.Groups()
	groups := make([]Group, len(raw))
	for i, g := range raw {
		groups[i] = Group{Index: i}
		if len(g.Captures) == 0 {
			continue
		}
		groups[i].Matched = true
		groups[i].Start = g.Index
		groups[i].End = g.Index + g.Length
		groups[i].Text = string(line[g.Index : g.Index+g.Length])
	}

	return groups, nil
}

// translate rewrites the oniguruma constructs that regexp2 does not understand.
//
// Named groups become plain groups so that every capturing group is numbered left to right,
// which is what grammar authors index captures by. Named backreferences are rewritten to
// their number. POSIX bracket classes become their Unicode property equivalents and
// possessive quantifiers become atomic groups.
func translate(src string) (string, error) {
	names := map[string]int{}
	group := 0

	// first pass: number the capturing groups
	inClass := false
	for i := 0; i < len(src); i++ {
		switch c := src[i]; {
		case c == '\\':
			i++
		case inClass:
			if _, width, ok := posixClass(src[i:]); ok {
				i += width - 1
			} else if c == ']' {
				inClass = false
			}
		case c == '[':
			inClass = true
			if strings.HasPrefix(src[i+1:], "]") || strings.HasPrefix(src[i+1:], "^]") {
				i += strings.Index(src[i:], "]")
			}
		case c == '(':
			if name, _, ok := namedGroup(src[i:]); ok {
				group++
				names[name] = group
			} else if !strings.HasPrefix(src[i+1:], "?") {
				group++
			}
		}
	}

	var sb strings.Builder
	sb.Grow(len(src))

	// output offsets of the last atom and of the open groups, for possessive quantifiers
	atom := 0
	var groups []int

	inClass = false
	for i := 0; i < len(src); i++ {
		c := src[i]

		if c == '\\' && i+1 < len(src) {
			if !inClass {
				atom = sb.Len()
			}
			next := src[i+1]
			switch {
			case next == 'x' && i+2 < len(src) && src[i+2] == '{':
				end := strings.IndexByte(src[i+3:], '}')
				if end < 0 {
					return "", errors.Errorf("unterminated \\x{ escape")
				}
				cp, err := strconv.ParseUint(src[i+3:i+3+end], 16, 32)
				if err != nil {
					return "", errors.Errorf("bad \\x{} escape: %w", err)
				}
				writeCodepoint(&sb, rune(cp))
				i += 3 + end
			case next == 'g' && !inClass && i+2 < len(src) && src[i+2] == '<':
				return "", errors.Errorf("subroutine call %q is not supported", src[i:])
			case next == 'h':
				if inClass {
					sb.WriteString("0-9a-fA-F")
				} else {
					sb.WriteString("[0-9a-fA-F]")
				}
				i++
			case next == 'H' && !inClass:
				sb.WriteString("[^0-9a-fA-F]")
				i++
			case next == 'k' && i+2 < len(src) && src[i+2] == '<':
				end := strings.IndexByte(src[i+3:], '>')
				if end < 0 {
					return "", errors.Errorf("unterminated \\k< backreference")
				}
				name := src[i+3 : i+3+end]
				n, ok := names[name]
				if num, err := strconv.Atoi(name); err == nil {
					n, ok = num, true
				}
				if !ok {
					return "", errors.Errorf("unknown group name %q", name)
				}
				sb.WriteString("(?:\\" + strconv.Itoa(n) + ")")
				i += 3 + end
			default:
				sb.WriteByte(c)
				sb.WriteByte(next)
				i++
			}
			continue
		}

		switch {
		case inClass:
			if class, width, ok := posixClass(src[i:]); ok {
				if class == "" {
					return "", errors.Errorf("unsupported posix class %q", src[i:i+width])
				}
				sb.WriteString(class)
				i += width - 1
				continue
			}
			if c == ']' {
				inClass = false
			}
			sb.WriteByte(c)
		case c == '[':
			inClass = true
			atom = sb.Len()
			sb.WriteByte(c)
			// a leading ] is literal
			if strings.HasPrefix(src[i+1:], "^]") {
				sb.WriteString("^]")
				i += 2
			} else if strings.HasPrefix(src[i+1:], "]") {
				sb.WriteByte(']')
				i++
			}
		case c == '(':
			groups = append(groups, sb.Len())
			if _, width, ok := namedGroup(src[i:]); ok {
				sb.WriteByte('(')
				i += width - 1
			} else {
				sb.WriteByte(c)
			}
		case c == ')':
			if n := len(groups); n > 0 {
				atom = groups[n-1]
				groups = groups[:n-1]
			}
			sb.WriteByte(c)
		case c == '*' || c == '+' || c == '?' || c == '{':
			quant := string(c)
			if c == '{' {
				width := intervalWidth(src[i:])
				if width == 0 {
					atom = sb.Len()
					sb.WriteByte(c)
					continue
				}
				quant = src[i : i+width]
			}
			i += len(quant) - 1
			if i+1 < len(src) && src[i+1] == '+' {
				// possessive: X*+ is (?>X*)
				out := sb.String()
				sb.Reset()
				sb.WriteString(out[:atom])
				sb.WriteString("(?>")
				sb.WriteString(out[atom:])
				sb.WriteString(quant)
				sb.WriteByte(')')
				i++
				continue
			}
			sb.WriteString(quant)
		default:
			atom = sb.Len()
			sb.WriteByte(c)
		}
	}

	return sb.String(), nil
}

var posixClasses = map[string][2]string{
	"alpha":  {`\p{L}\p{M}`, ""},
	"alnum":  {`\p{L}\p{M}\p{Nd}`, ""},
	"digit":  {`\d`, `\D`},
	"space":  {`\s`, `\S`},
	"upper":  {`\p{Lu}`, `\P{Lu}`},
	"lower":  {`\p{Ll}`, `\P{Ll}`},
	"punct":  {`\p{P}`, `\P{P}`},
	"xdigit": {`0-9a-fA-F`, ""},
	"word":   {`\w`, `\W`},
	"blank":  {` \t`, ""},
	"cntrl":  {`\p{Cc}`, `\P{Cc}`},
}

// posixClass reports whether s starts with a bracket class such as [:alpha:] or [:^digit:],
// returning its replacement inside a character class and its width. The replacement is "" for
// names or negations that have no single-class equivalent.
func posixClass(s string) (string, int, bool) {
	if !strings.HasPrefix(s, "[:") {
		return "", 0, false
	}
	end := strings.Index(s, ":]")
	if end < 0 {
		return "", 0, false
	}
	name, negated := s[2:end], false
	if strings.HasPrefix(name, "^") {
		name, negated = name[1:], true
	}
	for _, r := range name {
		if r < 'a' || r > 'z' {
			return "", 0, false
		}
	}
	class := posixClasses[name]
	if negated {
		return class[1], end + 2, true
	}
	return class[0], end + 2, true
}

// intervalWidth returns the width of a {n}, {n,} or {n,m} quantifier at the start of s, or 0.
func intervalWidth(s string) int {
	end := strings.IndexByte(s, '}')
	if end < 2 {
		return 0
	}
	lo, hi, _ := strings.Cut(s[1:end], ",")
	if lo == "" || strings.Trim(lo, "0123456789") != "" || strings.Trim(hi, "0123456789") != "" {
		return 0
	}
	return end + 1
}

// namedGroup reports whether s starts with a named group opener such as (?<name> or (?'name'
// or (?P<name>, returning the name and the width of the opener.
func namedGroup(s string) (string, int, bool) {
	var open, close byte
	var rest string
	switch {
	case strings.HasPrefix(s, "(?P<"):
		open, close, rest = '<', '>', s[4:]
	case strings.HasPrefix(s, "(?<"):
		open, close, rest = '<', '>', s[3:]
	case strings.HasPrefix(s, "(?'"):
		open, close, rest = '\'', '\'', s[3:]
	default:
		return "", 0, false
	}
	if open == '<' && (strings.HasPrefix(rest, "=") || strings.HasPrefix(rest, "!")) {
		return "", 0, false
	}
	end := strings.IndexByte(rest, close)
	if end <= 0 {
		return "", 0, false
	}
	name := rest[:end]
	return name, len(s) - len(rest) + end + 1, true
}

func writeCodepoint(sb *strings.Builder, r rune) {
	if r < 0x80 {
		sb.WriteString("\\x")
		h := strconv.FormatInt(int64(r), 16)
		if len(h) < 2 {
			sb.WriteByte('0')
		}
		sb.WriteString(h)
		return
	}
	sb.WriteRune(r)
}

// substituteBackrefs replaces \N in an end template with the escaped text of group N of the
// begin match. Escaped backslashes are left alone; unknown groups are kept verbatim.
func substituteBackrefs(template string, begin *MatchedPattern) string {
	if !strings.Contains(template, "\\") {
		return template
	}

	var sb strings.Builder
	for i := 0; i < len(template); i++ {
		c := template[i]
		if c != '\\' || i+1 >= len(template) {
			sb.WriteByte(c)
			continue
		}

		j := i + 1
		for j < len(template) && template[j] >= '0' && template[j] <= '9' {
			j++
		}
		if j == i+1 {
			sb.WriteByte(c)
			sb.WriteByte(template[i+1])
			i++
			continue
		}

		n, _ := strconv.Atoi(template[i+1 : j])
		if g, ok := begin.Group(n); ok && g.Matched {
			sb.WriteString(regexp2.Escape(g.Text))
		} else {
			sb.WriteString(template[i:j])
		}
		i = j - 1
	}
	return sb.String()
}
