package grammar

import (
	"context"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/walteh/tmtokenize/pkg/targz"
	"gitlab.com/tozd/go/errors"
	"go.uber.org/multierr"
)

// DefaultGlob matches the grammar documents LoadDir picks up.
const DefaultGlob = "**/*.{json,yaml,yml}"

// Store manages a collection of TextMate grammars. Documents are registered cheaply and
// parsed on first use; parsed grammars are cached and shared.
type Store struct {
	fs     afero.Fs
	parser *Parser

	mu       sync.Mutex
	entries  map[string]*entry
	scopes   map[string]string
	aliases  map[string]string
	fsByName map[string]afero.Fs
}

type entry struct {
	path    string
	raw     map[string]any
	grammar *Grammar
}

type StoreOption func(*Store)

// WithFs sets the filesystem paths are read from. The default is the OS filesystem.
func WithFs(fs afero.Fs) StoreOption {
	return func(s *Store) {
		s.fs = fs
	}
}

// NewStore creates an empty grammar store.
func NewStore(ctx context.Context, opts ...StoreOption) *Store {
	zerolog.Ctx(ctx).Debug().Msg("creating new grammar store")

	s := &Store{
		fs:       afero.NewOsFs(),
		parser:   NewParser(),
		entries:  make(map[string]*entry),
		scopes:   make(map[string]string),
		aliases:  make(map[string]string),
		fsByName: make(map[string]afero.Fs),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register adds a grammar document by path. Nothing is read until the grammar is needed, so
// the scope name is only known to GetFromScope after MapScope or a first Get.
func (s *Store) Register(name, path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[name] = &entry{path: path}
}

// RegisterRaw adds an already decoded grammar document.
func (s *Store) RegisterRaw(name string, raw map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[name] = &entry{raw: raw}
	if scope, ok := raw["scopeName"].(string); ok {
		s.scopes[scope] = name
	}
}

// RegisterGrammar adds a parsed grammar.
func (s *Store) RegisterGrammar(name string, g *Grammar) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[name] = &entry{grammar: g}
	s.scopes[g.ScopeName] = name
}

// LoadCustomGrammar decodes and registers a JSON or YAML grammar document.
func (s *Store) LoadCustomGrammar(ctx context.Context, name string, data []byte) error {
	zerolog.Ctx(ctx).Debug().Str("name", name).Msg("loading custom grammar")

	raw, err := decode(name, data)
	if err != nil {
		return errors.Errorf("decoding custom grammar %s: %w", name, err)
	}
	s.RegisterRaw(name, raw)
	return nil
}

// MapScope records which grammar name serves a scope.
func (s *Store) MapScope(scope, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scopes[scope] = name
}

// Alias makes alias resolve to target in Get and Has.
func (s *Store) Alias(alias, target string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.aliases[alias] = target
}

func (s *Store) Has(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[s.resolveAlias(name)]
	return ok
}

// Names returns the registered grammar names, sorted.
func (s *Store) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.entries))
	for name := range s.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Scopes returns the known scope name to grammar name mapping.
func (s *Store) Scopes() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.scopes))
	for k, v := range s.scopes {
		out[k] = v
	}
	return out
}

// Get returns the grammar registered under name or an alias of it, parsing it on first use.
func (s *Store) Get(name string) (*Grammar, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(name)
}

// GetFromScope returns the grammar serving the given scope name.
func (s *Store) GetFromScope(scope string) (*Grammar, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	name, ok := s.scopes[scope]
	if !ok {
		return nil, errors.Errorf("%w: scope %s", ErrUnrecognisedGrammar, scope)
	}
	return s.get(name)
}

// ForFile picks a grammar for a file: first by fileTypes against the file's base name or
// extension, then by firstLineMatch against firstLine. Grammars that fail to parse are skipped.
func (s *Store) ForFile(ctx context.Context, filename, firstLine string) (*Grammar, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.entries))
	for name := range s.entries {
		names = append(names, name)
	}
	sort.Strings(names)

	base := filepath.Base(filename)
	ext := strings.TrimPrefix(filepath.Ext(base), ".")

	var byLine string
	for _, name := range names {
		g, err := s.get(name)
		if err != nil {
			zerolog.Ctx(ctx).Debug().Err(err).Str("name", name).Msg("skipping unparsable grammar")
			continue
		}
		for _, ft := range g.FileTypes {
			if ft == base || (ext != "" && ft == ext) {
				return g, nil
			}
		}
		if byLine == "" && firstLine != "" && g.MatchesFirstLine(firstLine) {
			byLine = name
		}
	}

	if byLine != "" {
		return s.get(byLine)
	}

	return nil, errors.Errorf("%w: no grammar for file %s", ErrUnrecognisedGrammar, filename)
}

// LoadDir registers every grammar document under dir matching glob (DefaultGlob when empty).
// Documents are decoded to learn their scope names but parsed lazily. Failures are collected
// and returned together; the documents that did decode stay registered.
func (s *Store) LoadDir(ctx context.Context, dir, glob string) error {
	return s.loadFs(ctx, s.fs, dir, glob)
}

// LoadBundle registers the grammar documents inside a gzipped tarball.
func (s *Store) LoadBundle(ctx context.Context, data []byte, opts targz.LoadOptions) error {
	mem := afero.NewMemMapFs()
	if err := targz.LoadIntoFs(data, mem, "/", opts); err != nil {
		return errors.Errorf("loading bundle: %w", err)
	}
	return s.loadFs(ctx, mem, "/", "")
}

func (s *Store) loadFs(ctx context.Context, fs afero.Fs, dir, glob string) error {
	logger := zerolog.Ctx(ctx)

	if glob == "" {
		glob = DefaultGlob
	}

	matches, err := doublestar.Glob(afero.NewIOFS(afero.NewBasePathFs(fs, dir)), glob, doublestar.WithFilesOnly())
	if err != nil {
		return errors.Errorf("globbing %s in %s: %w", glob, dir, err)
	}
	sort.Strings(matches)

	var errs error
	for _, match := range matches {
		file := path.Join(dir, match)

		data, err := afero.ReadFile(fs, file)
		if err != nil {
			errs = multierr.Append(errs, errors.Errorf("reading %s: %w", file, err))
			continue
		}

		raw, err := decode(file, data)
		if err != nil {
			errs = multierr.Append(errs, errors.Errorf("decoding %s: %w", file, err))
			continue
		}

		scope, _ := raw["scopeName"].(string)
		if scope == "" {
			logger.Debug().Str("file", file).Msg("skipping document without scopeName")
			continue
		}

		name := NameFromPath(file)
		logger.Debug().Str("name", name).Str("scope", scope).Str("file", file).Msg("registering grammar")

		s.mu.Lock()
		s.entries[name] = &entry{path: file, raw: raw}
		s.scopes[scope] = name
		s.fsByName[name] = fs
		s.mu.Unlock()
	}

	return errs
}

// NameFromPath derives a grammar name from a document path: "langs/go.tmLanguage.json" is "go".
func NameFromPath(p string) string {
	name := filepath.Base(p)
	name = strings.TrimSuffix(name, filepath.Ext(name))
	name = strings.TrimSuffix(name, ".tmLanguage")
	return name
}

func (s *Store) resolveAlias(name string) string {
	if target, ok := s.aliases[name]; ok {
		return target
	}
	return name
}

// get expects s.mu to be held.
func (s *Store) get(name string) (*Grammar, error) {
	name = s.resolveAlias(name)

	e, ok := s.entries[name]
	if !ok {
		return nil, errors.Errorf("%w: %s", ErrUnrecognisedGrammar, name)
	}
	if e.grammar != nil {
		return e.grammar, nil
	}

	if e.raw == nil {
		fs := s.fs
		if owner, ok := s.fsByName[name]; ok {
			fs = owner
		}
		data, err := afero.ReadFile(fs, e.path)
		if err != nil {
			return nil, errors.Errorf("reading grammar %s: %w", name, err)
		}
		raw, err := decode(e.path, data)
		if err != nil {
			return nil, errors.Errorf("decoding grammar %s: %w", name, err)
		}
		e.raw = raw
	}

	g, err := s.parser.Parse(e.raw)
	if err != nil {
		return nil, errors.Errorf("parsing grammar %s: %w", name, err)
	}

	e.grammar = g
	e.raw = nil
	s.scopes[g.ScopeName] = name

	return g, nil
}

func decode(name string, data []byte) (map[string]any, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		return DecodeYAML(data)
	case ".json":
		return DecodeJSON(data)
	}
	// unnamed custom documents: json first, yaml is a superset
	if raw, err := DecodeJSON(data); err == nil {
		return raw, nil
	}
	return DecodeYAML(data)
}
