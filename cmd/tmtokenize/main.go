package main

import (
	"context"
	"os"
	"runtime/debug"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"

	tmdebug "github.com/walteh/tmtokenize/pkg/debug"
	"github.com/walteh/tmtokenize/pkg/grammar"
)

func main() {
	if err := run(); err != nil {
		println(err.Error())
		os.Exit(1)
	}
}

func run() error {
	rootCmd := newRootCommand(afero.NewOsFs())

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		return errors.Errorf("failed to execute command: %w", err)
	}

	return nil
}

// rootOptions are the persistent flags shared by every subcommand, plus what they produce.
type rootOptions struct {
	fs afero.Fs

	configPath  string
	grammarDirs []string
	bundles     []string
	debug       bool
	color       bool

	config *Config
}

func newRootCommand(fs afero.Fs) *cobra.Command {
	opts := &rootOptions{fs: fs}

	rootCmd := &cobra.Command{
		Use:           "tmtokenize",
		Short:         "Tokenize source text with TextMate grammars",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.setup(cmd)
		},
	}

	info, ok := debug.ReadBuildInfo()
	if !ok {
		rootCmd.Version = "unknown"
	} else {
		rootCmd.Version = info.Main.Version
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "config file (default "+defaultConfigFile+" when present)")
	flags.StringSliceVar(&opts.grammarDirs, "grammar-dir", nil, "directory of grammar documents to load")
	flags.StringSliceVar(&opts.bundles, "bundle", nil, "grammar bundle (.tar.gz) to load")
	flags.BoolVar(&opts.debug, "debug", false, "enable debug logging")
	flags.BoolVar(&opts.color, "color", false, "colorize log output")

	cmdVersion := &cobra.Command{
		Use: "raw-version",
		Run: func(cmdz *cobra.Command, args []string) {
			cmdz.Println(rootCmd.Version)
		},
		Hidden: true,
	}

	rootCmd.AddCommand(cmdVersion)
	rootCmd.AddCommand(newTokenizeCommand(opts))
	rootCmd.AddCommand(newGrammarsCommand(opts))

	return rootCmd
}

// setup installs the logger and loads the config file. Flags are appended to the config's
// lists.
func (o *rootOptions) setup(cmd *cobra.Command) error {
	level := zerolog.WarnLevel
	if o.debug {
		level = zerolog.DebugLevel
	}

	ctx := tmdebug.WithLogger(cmd.Context(), tmdebug.LoggerOptions{
		Out:     cmd.ErrOrStderr(),
		Level:   level,
		Color:   o.color,
		Console: true,
	})
	cmd.SetContext(ctx)

	cfg := &Config{}
	if path := findConfig(o.fs, o.configPath); path != "" {
		loaded, err := LoadConfig(o.fs, path)
		if err != nil {
			return errors.Errorf("loading config %s: %w", path, err)
		}
		zerolog.Ctx(ctx).Debug().Str("path", path).Msg("loaded config")
		cfg = loaded
	}

	cfg.GrammarDirs = append(cfg.GrammarDirs, o.grammarDirs...)
	cfg.Bundles = append(cfg.Bundles, o.bundles...)
	o.config = cfg

	return nil
}

// store builds the grammar store from the config. Load failures are logged, not fatal, so a
// single broken document does not hide the rest.
func (o *rootOptions) store(ctx context.Context) *grammar.Store {
	store, err := o.config.NewStore(ctx, o.fs)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("some grammars failed to load")
	}
	return store
}
