package grammar_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/walteh/tmtokenize/pkg/grammar"
)

type M = map[string]any
type L = []any

func TestParse(t *testing.T) {
	t.Run("test_rule_kinds", func(t *testing.T) {
		g, err := grammar.Parse(M{
			"scopeName": "source.test",
			"name":      "Test",
			"fileTypes": L{"tst", "test"},
			"patterns": L{
				M{"match": `\d+`, "name": "constant.numeric.test"},
				M{"begin": `"`, "end": `"`, "name": "string.test", "contentName": "string.content.test"},
				M{"include": "#block"},
				M{"patterns": L{M{"include": "$self"}}},
			},
			"repository": M{
				"block": M{"begin": `\{`, "end": `\}`, "patterns": L{M{"include": "$base"}}},
			},
		})
		require.NoError(t, err)

		assert.Equal(t, "source.test", g.ScopeName)
		assert.Equal(t, "Test", g.Name)
		assert.Equal(t, []string{"tst", "test"}, g.FileTypes)
		require.Len(t, g.Patterns, 4)

		m, ok := g.Patterns[0].(*grammar.MatchPattern)
		require.True(t, ok, "first rule should be a match rule")
		assert.Equal(t, `\d+`, m.Regex.Source())
		assert.Equal(t, "constant.numeric.test", m.Scope())

		be, ok := g.Patterns[1].(*grammar.BeginEndPattern)
		require.True(t, ok, "second rule should be a begin/end rule")
		assert.Equal(t, `"`, be.Begin.Source())
		assert.Equal(t, `"`, be.End)
		assert.Equal(t, "string.content.test", be.ContentName)

		inc, ok := g.Patterns[2].(*grammar.IncludePattern)
		require.True(t, ok, "third rule should be an include")
		scope, name := inc.Target()
		assert.Equal(t, "", scope)
		assert.Equal(t, "block", name)

		coll, ok := g.Patterns[3].(*grammar.CollectionPattern)
		require.True(t, ok, "fourth rule should be a collection")
		require.Len(t, coll.Patterns, 1)
		assert.True(t, coll.Patterns[0].(*grammar.IncludePattern).IsSelf())

		block, ok := g.Lookup("block")
		require.True(t, ok)
		require.Len(t, block.Rules(), 1)
		assert.True(t, block.Rules()[0].(*grammar.IncludePattern).IsBase())

		assert.Same(t, g.Root(), g.Root(), "root should be stable")
		assert.Len(t, g.Root().Patterns, 4)
	})

	t.Run("test_captures", func(t *testing.T) {
		g, err := grammar.Parse(M{
			"scopeName": "source.test",
			"patterns": L{
				M{
					"match": `(a)(b)`,
					"captures": M{
						"2": M{"name": "b.test"},
						"1": M{"name": "a.test", "patterns": L{M{"match": "a", "name": "inner.test"}}},
					},
				},
				M{
					"begin":         `(x)`,
					"end":           `(y)`,
					"beginCaptures": L{M{"name": "whole.test"}, M{"name": "x.test"}},
					"captures":      M{"1": M{"name": "shared.test"}},
				},
			},
		})
		require.NoError(t, err)

		m := g.Patterns[0].(*grammar.MatchPattern)
		assert.Equal(t, []int{1, 2}, m.Captures.Indices())
		assert.Equal(t, "a.test", m.Captures[1].Name)
		assert.Len(t, m.Captures[1].Patterns, 1)

		be := g.Patterns[1].(*grammar.BeginEndPattern)
		assert.Equal(t, "x.test", be.CaptureTable()[1].Name, "beginCaptures should win")
		assert.Equal(t, "whole.test", be.CaptureTable()[0].Name, "list captures index from 0")

		end := be.NewEnd(&grammar.MatchedPattern{Pattern: be, Groups: []grammar.Group{{Matched: true}}})
		assert.Equal(t, "shared.test", end.CaptureTable()[1].Name, "end should fall back to captures")
	})

	t.Run("test_injections", func(t *testing.T) {
		g, err := grammar.Parse(M{
			"scopeName": "source.test",
			"patterns":  L{},
			"injections": M{
				"R:source.test string":  M{"patterns": L{M{"match": "b"}}},
				"L:source.test comment": M{"patterns": L{M{"match": "a"}}},
			},
		})
		require.NoError(t, err)

		require.True(t, g.HasInjections())
		require.Len(t, g.Injections, 2)
		assert.Equal(t, "L:source.test comment", g.Injections[0].Selector)
		assert.Equal(t, "R:source.test string", g.Injections[1].Selector)
	})

	t.Run("test_disabled_rule", func(t *testing.T) {
		g, err := grammar.Parse(M{
			"scopeName": "source.test",
			"patterns":  L{M{"match": "x", "disabled": 1}},
		})
		require.NoError(t, err)

		coll, ok := g.Patterns[0].(*grammar.CollectionPattern)
		require.True(t, ok)
		assert.Empty(t, coll.Patterns)
	})

	t.Run("test_uuid", func(t *testing.T) {
		g, err := grammar.Parse(M{"scopeName": "source.test", "uuid": "E3BACE6E-1F1C-4B0E-8A2A-6C4B9C0E5C11"})
		require.NoError(t, err)
		assert.Equal(t, "e3bace6e-1f1c-4b0e-8a2a-6c4b9c0e5c11", g.UUID.String())

		g, err = grammar.Parse(M{"scopeName": "source.test", "uuid": "not-a-uuid"})
		require.NoError(t, err, "a bad uuid is metadata, not structure")
		assert.Equal(t, uuid.Nil, g.UUID)
	})

	t.Run("test_root_scopes", func(t *testing.T) {
		g, err := grammar.Parse(M{"scopeName": "text.html.markdown source.gfm"})
		require.NoError(t, err)
		assert.Equal(t, []string{"text.html.markdown", "source.gfm"}, g.RootScopes())
	})

	t.Run("test_first_line_match", func(t *testing.T) {
		g, err := grammar.Parse(M{"scopeName": "source.shell", "firstLineMatch": `^#!.*\bbash\b`})
		require.NoError(t, err)
		assert.True(t, g.MatchesFirstLine("#!/usr/bin/env bash"))
		assert.False(t, g.MatchesFirstLine("echo hi"))
	})
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  M
	}{
		{name: "missing_scope_name", raw: M{"patterns": L{}}},
		{name: "patterns_not_a_list", raw: M{"scopeName": "s", "patterns": M{}}},
		{name: "begin_without_end", raw: M{"scopeName": "s", "patterns": L{M{"begin": "a"}}}},
		{name: "end_without_begin", raw: M{"scopeName": "s", "patterns": L{M{"end": "a"}}}},
		{name: "unknown_rule", raw: M{"scopeName": "s", "patterns": L{M{"name": "x"}}}},
		{name: "rule_not_a_mapping", raw: M{"scopeName": "s", "patterns": L{"x"}}},
		{name: "bad_capture_key", raw: M{"scopeName": "s", "patterns": L{M{"match": "a", "captures": M{"one": M{}}}}}},
		{name: "bad_repository", raw: M{"scopeName": "s", "repository": L{}}},
		{name: "bad_repository_entry", raw: M{"scopeName": "s", "repository": M{"x": M{"begin": "a"}}}},
		{name: "empty_include", raw: M{"scopeName": "s", "patterns": L{M{"include": ""}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := grammar.Parse(tt.raw)
			require.Error(t, err)
			assert.ErrorIs(t, err, grammar.ErrMalformedGrammar)
		})
	}
}

func TestParseDocuments(t *testing.T) {
	t.Run("test_json", func(t *testing.T) {
		g, err := grammar.ParseJSON([]byte(`{
			"scopeName": "source.json.test",
			"patterns": [{"match": "x", "captures": {"0": {"name": "x.test"}}}]
		}`))
		require.NoError(t, err)
		assert.Equal(t, "source.json.test", g.ScopeName)
		assert.Equal(t, "x.test", g.Patterns[0].CaptureTable()[0].Name)
	})

	t.Run("test_yaml_numeric_capture_keys", func(t *testing.T) {
		g, err := grammar.ParseYAML([]byte(`
scopeName: source.yaml.test
patterns:
  - match: (a)(b)
    captures:
      1: {name: a.test}
      2: {name: b.test}
`))
		require.NoError(t, err)
		assert.Equal(t, []int{1, 2}, g.Patterns[0].CaptureTable().Indices())
	})

	t.Run("test_invalid_json", func(t *testing.T) {
		_, err := grammar.ParseJSON([]byte(`{`))
		assert.Error(t, err)
	})

	t.Run("test_yaml_not_a_mapping", func(t *testing.T) {
		_, err := grammar.ParseYAML([]byte(`- a`))
		require.Error(t, err)
		assert.ErrorIs(t, err, grammar.ErrMalformedGrammar)
	})
}
