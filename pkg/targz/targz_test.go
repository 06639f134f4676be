package targz_test

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/walteh/tmtokenize/pkg/targz"
)

func createTestTarGz(t *testing.T, files map[string]string) []byte {
	var buf bytes.Buffer
	gzw := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gzw)

	for name, content := range files {
		hdr := &tar.Header{
			Name:     name,
			Mode:     0644,
			Size:     int64(len(content)),
			Typeflag: tar.TypeReg,
		}
		require.NoError(t, tw.WriteHeader(hdr))
		_, err := tw.Write([]byte(content))
		require.NoError(t, err)
	}

	require.NoError(t, tw.Close())
	require.NoError(t, gzw.Close())

	return buf.Bytes()
}

func TestLoadIntoFs(t *testing.T) {
	files := map[string]string{
		"grammars/go.tmLanguage.json":       `{"scopeName":"source.go"}`,
		"grammars/sub/yaml.tmLanguage.yaml": "scopeName: source.yaml",
	}

	fs := afero.NewMemMapFs()
	err := targz.LoadIntoFs(createTestTarGz(t, files), fs, "/out", targz.LoadOptions{})
	require.NoError(t, err)

	for name, want := range files {
		got, err := afero.ReadFile(fs, "/out/"+name)
		require.NoError(t, err, "reading %s", name)
		assert.Equal(t, want, string(got))
	}
}

func TestLoadIntoFsWithOptions(t *testing.T) {
	files := map[string]string{
		"prefix/keep/a.json": "a",
		"prefix/skip/b.json": "b",
		"prefix/keep/c.txt":  "c",
	}

	fs := afero.NewMemMapFs()
	err := targz.LoadIntoFs(createTestTarGz(t, files), fs, "/", targz.LoadOptions{
		StripComponents: 1,
		Filter: func(header *tar.Header) bool {
			return strings.Contains(header.Name, "keep") && strings.HasSuffix(header.Name, ".json")
		},
	})
	require.NoError(t, err)

	got, err := afero.ReadFile(fs, "/keep/a.json")
	require.NoError(t, err)
	assert.Equal(t, "a", string(got))

	exists, err := afero.Exists(fs, "/skip/b.json")
	require.NoError(t, err)
	assert.False(t, exists, "filtered file should not be written")

	exists, err = afero.Exists(fs, "/keep/c.txt")
	require.NoError(t, err)
	assert.False(t, exists, "filtered file should not be written")
}

func TestLoadIntoFsCollision(t *testing.T) {
	files := map[string]string{
		"a/x.json": "1",
		"b/x.json": "2",
	}

	err := targz.LoadIntoFs(createTestTarGz(t, files), afero.NewMemMapFs(), "/", targz.LoadOptions{
		TransformName: func(name string) string {
			return name[strings.LastIndex(name, "/")+1:]
		},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "file collision")
}

func TestLoadIntoFsInvalidData(t *testing.T) {
	err := targz.LoadIntoFs([]byte("not a tarball"), afero.NewMemMapFs(), "/", targz.LoadOptions{})
	require.Error(t, err)
}

func TestSplitPath(t *testing.T) {
	tests := []struct {
		path string
		want []string
	}{
		{path: "", want: nil},
		{path: "/", want: nil},
		{path: "a", want: []string{"a"}},
		{path: "a/b/c", want: []string{"a", "b", "c"}},
		{path: "/a/b/", want: []string{"a", "b"}},
		{path: "./a//b", want: []string{"a", "b"}},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, targz.SplitPath(tt.path))
		})
	}
}
