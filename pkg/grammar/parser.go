package grammar

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"gitlab.com/tozd/go/errors"
	"gopkg.in/yaml.v3"
)

// Parser builds a Grammar from a raw grammar document: the nested maps a tmLanguage.json or
// tmLanguage.yaml file decodes to.
type Parser struct{}

func NewParser() *Parser {
	return &Parser{}
}

// Parse is shorthand for NewParser().Parse(raw).
func Parse(raw map[string]any) (*Grammar, error) {
	return NewParser().Parse(raw)
}

// ParseJSON decodes and parses a tmLanguage.json document.
func ParseJSON(data []byte) (*Grammar, error) {
	raw, err := DecodeJSON(data)
	if err != nil {
		return nil, err
	}
	return Parse(raw)
}

// ParseYAML decodes and parses a tmLanguage.yaml document.
func ParseYAML(data []byte) (*Grammar, error) {
	raw, err := DecodeYAML(data)
	if err != nil {
		return nil, err
	}
	return Parse(raw)
}

func DecodeJSON(data []byte) (map[string]any, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.Errorf("decoding grammar json: %w", err)
	}
	return raw, nil
}

func DecodeYAML(data []byte) (map[string]any, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Errorf("decoding grammar yaml: %w", err)
	}
	raw, ok := asMap(doc)
	if !ok {
		return nil, errors.Errorf("%w: document is not a mapping", ErrMalformedGrammar)
	}
	return raw, nil
}

func (p *Parser) Parse(raw map[string]any) (*Grammar, error) {
	scopeName, ok := raw["scopeName"].(string)
	if !ok || strings.TrimSpace(scopeName) == "" {
		return nil, errors.Errorf("%w: scopeName is required", ErrMalformedGrammar)
	}

	g := &Grammar{
		ScopeName:  scopeName,
		Repository: map[string]Pattern{},
	}

	if name, ok := raw["name"].(string); ok {
		g.Name = name
	}

	if fileTypes, ok := raw["fileTypes"].([]any); ok {
		for _, ft := range fileTypes {
			if s, ok := ft.(string); ok {
				g.FileTypes = append(g.FileTypes, s)
			}
		}
	}

	if id, ok := raw["uuid"].(string); ok {
		if parsed, err := uuid.Parse(id); err == nil {
			g.UUID = parsed
		}
	}

	if flm, ok := raw["firstLineMatch"].(string); ok && flm != "" {
		g.FirstLineMatch = NewRegex(flm)
	}

	patterns, err := p.parseList(raw["patterns"], "patterns")
	if err != nil {
		return nil, err
	}
	g.Patterns = patterns
	g.root = &CollectionPattern{Patterns: patterns}

	if repo, ok := raw["repository"]; ok {
		entries, ok := asMap(repo)
		if !ok {
			return nil, errors.Errorf("%w: repository must be a mapping", ErrMalformedGrammar)
		}
		for name, entry := range entries {
			rule, err := p.parseRule(entry, "repository."+name)
			if err != nil {
				return nil, err
			}
			g.Repository[name] = rule
		}
	}

	if inj, ok := raw["injections"]; ok {
		entries, ok := asMap(inj)
		if !ok {
			return nil, errors.Errorf("%w: injections must be a mapping", ErrMalformedGrammar)
		}
		selectors := make([]string, 0, len(entries))
		for selector := range entries {
			selectors = append(selectors, selector)
		}
		sort.Strings(selectors)
		for _, selector := range selectors {
			rule, err := p.parseRule(entries[selector], "injections."+selector)
			if err != nil {
				return nil, err
			}
			g.Injections = append(g.Injections, Injection{Selector: selector, Pattern: rule})
		}
	}

	return g, nil
}

func (p *Parser) parseList(v any, path string) ([]Pattern, error) {
	if v == nil {
		return nil, nil
	}
	items, ok := v.([]any)
	if !ok {
		return nil, errors.Errorf("%w: %s must be a list of rules", ErrMalformedGrammar, path)
	}
	out := make([]Pattern, 0, len(items))
	for i, item := range items {
		rule, err := p.parseRule(item, fmt.Sprintf("%s[%d]", path, i))
		if err != nil {
			return nil, err
		}
		out = append(out, rule)
	}
	return out, nil
}

func (p *Parser) parseRule(v any, path string) (Pattern, error) {
	raw, ok := asMap(v)
	if !ok {
		return nil, errors.Errorf("%w: %s must be a rule mapping", ErrMalformedGrammar, path)
	}

	if isTrue(raw["disabled"]) {
		return &CollectionPattern{}, nil
	}

	name, _ := raw["name"].(string)

	switch {
	case raw["match"] != nil:
		src, ok := raw["match"].(string)
		if !ok {
			return nil, errors.Errorf("%w: %s.match must be a string", ErrMalformedGrammar, path)
		}
		captures, err := p.parseCaptures(raw["captures"], path+".captures")
		if err != nil {
			return nil, err
		}
		return &MatchPattern{Regex: NewRegex(src), Name: name, Captures: captures}, nil

	case raw["begin"] != nil && raw["end"] != nil:
		return p.parseBeginEnd(raw, name, path)

	case raw["begin"] != nil || raw["end"] != nil:
		return nil, errors.Errorf("%w: %s has begin or end without the other", ErrMalformedGrammar, path)

	case raw["include"] != nil:
		ref, ok := raw["include"].(string)
		if !ok || ref == "" {
			return nil, errors.Errorf("%w: %s.include must be a non-empty string", ErrMalformedGrammar, path)
		}
		return &IncludePattern{Reference: ref}, nil

	case raw["patterns"] != nil:
		patterns, err := p.parseList(raw["patterns"], path+".patterns")
		if err != nil {
			return nil, err
		}
		return &CollectionPattern{Patterns: patterns}, nil
	}

	return nil, errors.Errorf("%w: %s is not a match, begin/end, include or patterns rule", ErrMalformedGrammar, path)
}

func (p *Parser) parseBeginEnd(raw map[string]any, name, path string) (Pattern, error) {
	begin, ok := raw["begin"].(string)
	if !ok {
		return nil, errors.Errorf("%w: %s.begin must be a string", ErrMalformedGrammar, path)
	}
	end, ok := raw["end"].(string)
	if !ok {
		return nil, errors.Errorf("%w: %s.end must be a string", ErrMalformedGrammar, path)
	}

	rule := &BeginEndPattern{
		Begin: NewRegex(begin),
		End:   end,
		Name:  name,
	}
	rule.ContentName, _ = raw["contentName"].(string)
	rule.ApplyEndPatternLast = isTrue(raw["applyEndPatternLast"])

	if !hasBackref(end) {
		rule.end = NewRegex(end)
	}

	var err error
	if rule.BeginCaptures, err = p.parseCaptures(raw["beginCaptures"], path+".beginCaptures"); err != nil {
		return nil, err
	}
	if rule.EndCaptures, err = p.parseCaptures(raw["endCaptures"], path+".endCaptures"); err != nil {
		return nil, err
	}
	if rule.Captures, err = p.parseCaptures(raw["captures"], path+".captures"); err != nil {
		return nil, err
	}
	if rule.Patterns, err = p.parseList(raw["patterns"], path+".patterns"); err != nil {
		return nil, err
	}

	return rule, nil
}

func (p *Parser) parseCaptures(v any, path string) (Captures, error) {
	if v == nil {
		return nil, nil
	}

	// some grammars write captures as a list indexed from 0
	if list, ok := v.([]any); ok {
		m := make(map[string]any, len(list))
		for i, item := range list {
			m[strconv.Itoa(i)] = item
		}
		v = m
	}

	entries, ok := asMap(v)
	if !ok {
		return nil, errors.Errorf("%w: %s must be a mapping", ErrMalformedGrammar, path)
	}

	captures := make(Captures, len(entries))
	for key, entry := range entries {
		idx, err := strconv.Atoi(key)
		if err != nil || idx < 0 {
			return nil, errors.Errorf("%w: %s key %q is not a group index", ErrMalformedGrammar, path, key)
		}
		raw, ok := asMap(entry)
		if !ok {
			return nil, errors.Errorf("%w: %s.%s must be a mapping", ErrMalformedGrammar, path, key)
		}
		capture := &Capture{Index: idx}
		capture.Name, _ = raw["name"].(string)
		if capture.Patterns, err = p.parseList(raw["patterns"], path+"."+key+".patterns"); err != nil {
			return nil, err
		}
		captures[idx] = capture
	}

	return captures, nil
}

func hasBackref(s string) bool {
	for i := 0; i+1 < len(s); i++ {
		if s[i] != '\\' {
			continue
		}
		if s[i+1] >= '0' && s[i+1] <= '9' {
			return true
		}
		i++
	}
	return false
}

// isTrue accepts the 1/true spellings grammars use for flags such as disabled.
func isTrue(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case float64:
		return b != 0
	case int:
		return b != 0
	}
	return false
}

// asMap accepts both string keyed maps (json) and the any keyed maps yaml produces for
// documents with numeric keys such as capture indices.
func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			out[fmt.Sprint(k)] = val
		}
		return out, true
	}
	return nil, false
}
