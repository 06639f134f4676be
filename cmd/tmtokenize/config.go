package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/walteh/tmtokenize/pkg/grammar"
	"github.com/walteh/tmtokenize/pkg/targz"
	"github.com/zclconf/go-cty/cty"
	"gitlab.com/tozd/go/errors"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

const defaultConfigFile = ".tmtokenize.yaml"

// Config is the optional configuration file. YAML and HCL spell the fields the same way.
type Config struct {
	GrammarDirs    []string          `yaml:"grammar_dirs,omitempty" hcl:"grammar_dirs,optional"`
	GrammarGlob    string            `yaml:"grammar_glob,omitempty" hcl:"grammar_glob,optional"`
	Bundles        []string          `yaml:"bundles,omitempty" hcl:"bundles,optional"`
	Aliases        map[string]string `yaml:"aliases,omitempty" hcl:"aliases,optional"`
	DefaultGrammar string            `yaml:"default_grammar,omitempty" hcl:"default_grammar,optional"`
}

// LoadConfig reads a config file: YAML for .yaml/.yml paths, HCL otherwise. HCL files may
// refer to environment variables as env.NAME.
func LoadConfig(fs afero.Fs, path string) (*Config, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, errors.Errorf("reading config file: %w", err)
	}

	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		var cfg Config
		decoder := yaml.NewDecoder(bytes.NewReader(data))
		decoder.KnownFields(true)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, errors.Errorf("parsing YAML: %w", err)
		}
		return &cfg, nil
	}

	parser := hclparse.NewParser()
	hclFile, diags := parser.ParseHCL(data, path)
	if diags.HasErrors() {
		return nil, errors.Errorf("parsing HCL: %s", diags.Error())
	}

	ctx := &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"env": environment(),
		},
	}

	var cfg Config
	diags = gohcl.DecodeBody(hclFile.Body, ctx, &cfg)
	if diags.HasErrors() {
		return nil, errors.Errorf("decoding HCL: %s", diags.Error())
	}

	return &cfg, nil
}

func environment() cty.Value {
	vars := map[string]cty.Value{}
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok && k != "" {
			vars[k] = cty.StringVal(v)
		}
	}
	if len(vars) == 0 {
		return cty.EmptyObjectVal
	}
	return cty.ObjectVal(vars)
}

// findConfig returns the explicit path, or the default file when it exists, or "".
func findConfig(fs afero.Fs, explicit string) string {
	if explicit != "" {
		return explicit
	}
	if ok, _ := afero.Exists(fs, defaultConfigFile); ok {
		return defaultConfigFile
	}
	return ""
}

// NewStore registers every grammar the config names. Directories and bundles that fail to
// load are reported together; whatever did load stays usable.
func (cfg *Config) NewStore(ctx context.Context, fs afero.Fs) (*grammar.Store, error) {
	logger := zerolog.Ctx(ctx)
	store := grammar.NewStore(ctx, grammar.WithFs(fs))

	var errs error
	for _, dir := range cfg.GrammarDirs {
		logger.Debug().Str("dir", dir).Msg("loading grammar directory")
		if err := store.LoadDir(ctx, dir, cfg.GrammarGlob); err != nil {
			errs = multierr.Append(errs, errors.Errorf("grammar dir %s: %w", dir, err))
		}
	}

	for _, bundle := range cfg.Bundles {
		logger.Debug().Str("bundle", bundle).Msg("loading grammar bundle")
		data, err := afero.ReadFile(fs, bundle)
		if err != nil {
			errs = multierr.Append(errs, errors.Errorf("reading bundle %s: %w", bundle, err))
			continue
		}
		if err := store.LoadBundle(ctx, data, targz.LoadOptions{}); err != nil {
			errs = multierr.Append(errs, errors.Errorf("bundle %s: %w", filepath.Base(bundle), err))
		}
	}

	for alias, target := range cfg.Aliases {
		store.Alias(alias, target)
	}

	return store, errs
}
