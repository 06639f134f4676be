package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/apparentlymart/go-textseg/v13/textseg"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/tmtokenize/pkg/grammar"
	"github.com/walteh/tmtokenize/pkg/semtok"
	"github.com/walteh/tmtokenize/pkg/tokenizer"
)

type tokenizeOptions struct {
	grammar    string
	scope      string
	format     string
	injections bool
	maxStall   int
}

func newTokenizeCommand(root *rootOptions) *cobra.Command {
	opts := &tokenizeOptions{}

	cmd := &cobra.Command{
		Use:   "tokenize [file]",
		Short: "Print the scoped tokens of a file (stdin when no file is given)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, root, args)
		},
	}

	cmd.Flags().StringVarP(&opts.grammar, "grammar", "g", "", "grammar name, alias or path to a grammar document")
	cmd.Flags().StringVarP(&opts.scope, "scope", "s", "", "grammar scope name, e.g. source.go")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "output format: text, json or semtok")
	cmd.Flags().BoolVar(&opts.injections, "injections", true, "apply the grammar's injections")
	cmd.Flags().IntVar(&opts.maxStall, "max-stall", 0, "non-advancing steps tolerated before a line is skipped")

	return cmd
}

func (o *tokenizeOptions) run(cmd *cobra.Command, root *rootOptions, args []string) error {
	ctx := cmd.Context()

	var (
		filename string
		src      []byte
		err      error
	)
	if len(args) == 1 {
		filename = args[0]
		src, err = afero.ReadFile(root.fs, filename)
	} else {
		src, err = io.ReadAll(cmd.InOrStdin())
	}
	if err != nil {
		return errors.Errorf("reading input: %w", err)
	}

	store := root.store(ctx)

	g, err := o.pickGrammar(ctx, root, store, filename, string(src))
	if err != nil {
		return err
	}

	zerolog.Ctx(ctx).Debug().Str("scope", g.ScopeName).Str("file", filename).Msg("tokenizing")

	tk := tokenizer.New(g, store, tokenizer.WithInjections(o.injections), tokenizer.WithMaxStall(o.maxStall))
	lines, err := tk.Tokenize(ctx, string(src))
	if err != nil {
		return errors.Errorf("tokenizing with %s: %w", g.ScopeName, err)
	}

	out := cmd.OutOrStdout()
	switch o.format {
	case "text":
		return writeText(out, lines)
	case "json":
		return writeJSON(out, lines)
	case "semtok":
		return writeSemtok(out, semtok.FromLines(lines))
	}
	return errors.Errorf("unknown format %q", o.format)
}

// pickGrammar resolves the grammar in order: --grammar, --scope, the file's name or first
// line, then the configured default.
func (o *tokenizeOptions) pickGrammar(ctx context.Context, root *rootOptions, store *grammar.Store, filename, src string) (*grammar.Grammar, error) {
	if o.grammar != "" {
		if store.Has(o.grammar) {
			return store.Get(o.grammar)
		}
		if ok, _ := afero.Exists(root.fs, o.grammar); ok {
			data, err := afero.ReadFile(root.fs, o.grammar)
			if err != nil {
				return nil, errors.Errorf("reading grammar %s: %w", o.grammar, err)
			}
			name := filepath.Base(o.grammar)
			if err := store.LoadCustomGrammar(ctx, name, data); err != nil {
				return nil, err
			}
			store.Alias(grammar.NameFromPath(name), name)
			return store.Get(name)
		}
		return store.Get(o.grammar)
	}

	if o.scope != "" {
		return store.GetFromScope(o.scope)
	}

	if filename != "" {
		firstLine, _, _ := strings.Cut(src, "\n")
		if g, err := store.ForFile(ctx, filename, firstLine); err == nil {
			return g, nil
		}
	}

	if root.config.DefaultGrammar != "" {
		return store.Get(root.config.DefaultGrammar)
	}

	return nil, errors.Errorf("%w: no grammar selected; use --grammar or --scope", grammar.ErrUnrecognisedGrammar)
}

// writeText prints one row per token: position, text and scopes, with the text column padded
// by display width so rows line up for non-ASCII text.
func writeText(w io.Writer, lines [][]tokenizer.Token) error {
	type row struct {
		pos, text, scopes string
		width             int
	}

	var rows []row
	posWidth, textWidth := 0, 0
	for i, line := range lines {
		for _, tk := range line {
			r := row{
				pos:    fmt.Sprintf("%d:%d-%d", i+1, tk.Start, tk.End),
				text:   strconv.Quote(tk.Text),
				scopes: strings.Join(tk.Scopes, " "),
			}
			r.width = displayWidth(r.text)
			posWidth = max(posWidth, len(r.pos))
			textWidth = max(textWidth, r.width)
			rows = append(rows, r)
		}
	}

	bw := bufio.NewWriter(w)
	for _, r := range rows {
		fmt.Fprintf(bw, "%-*s  %s%s  %s\n", posWidth, r.pos, r.text, strings.Repeat(" ", textWidth-r.width), r.scopes)
	}
	return bw.Flush()
}

// displayWidth counts grapheme clusters, so combining marks do not widen a column.
func displayWidth(s string) int {
	n, err := textseg.TokenCount([]byte(s), textseg.ScanGraphemeClusters)
	if err != nil {
		return len([]rune(s))
	}
	return n
}

func writeJSON(w io.Writer, lines [][]tokenizer.Token) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(lines); err != nil {
		return errors.Errorf("encoding tokens: %w", err)
	}
	return nil
}

func writeSemtok(w io.Writer, tokens []semtok.Token) error {
	bw := bufio.NewWriter(w)
	for _, t := range tokens {
		fmt.Fprintf(bw, "%d:%d+%d %s %s\n", t.Line+1, t.Start, t.Length, t.Type, t.Scope)
	}
	return bw.Flush()
}
