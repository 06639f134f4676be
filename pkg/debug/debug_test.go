package debug_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/walteh/tmtokenize/pkg/debug"
)

func TestSplitFuncName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		pkg      string
		function string
	}{
		{name: "function", input: "github.com/walteh/tmtokenize/pkg/grammar.Parse", pkg: "github.com/walteh/tmtokenize/pkg/grammar", function: "Parse"},
		{name: "method", input: "github.com/walteh/tmtokenize/pkg/grammar.(*Store).Get", pkg: "github.com/walteh/tmtokenize/pkg/grammar", function: "(*Store).Get"},
		{name: "closure", input: "main.run.func1", pkg: "main", function: "run.func1"},
		{name: "no_dot", input: "weird", pkg: "weird", function: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pkg, function := debug.SplitFuncName(tt.input)
			assert.Equal(t, tt.pkg, pkg)
			assert.Equal(t, tt.function, function)
		})
	}
}

func TestFormatCaller(t *testing.T) {
	assert.Equal(t, "main:main.go:12", debug.FormatCaller("main", "/src/cmd/tmtokenize/main.go", 12, false))
	assert.Equal(t, "x.go", debug.FileNameOfPath("x.go"))
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := debug.NewLogger(debug.LoggerOptions{Out: &buf, Level: zerolog.InfoLevel})

	logger.Debug().Msg("hidden")
	logger.Info().Str("scope", "source.go").Msg("loaded")

	var event map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &event), "exactly one json event should be written")
	assert.Equal(t, "loaded", event["message"])
	assert.Equal(t, "source.go", event["scope"])
	assert.NotEmpty(t, event["time"])
	assert.NotEmpty(t, event["caller"])
}

func TestNewConsoleLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := debug.NewLogger(debug.LoggerOptions{Out: &buf, Level: zerolog.DebugLevel, Console: true})

	logger.Debug().Msg("hello")
	assert.Contains(t, buf.String(), "hello")
	assert.NotContains(t, buf.String(), "\x1b[", "color is off unless asked for")
}
