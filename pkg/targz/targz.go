// Package targz unpacks gzipped tarballs of grammar documents into an afero filesystem.
package targz

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"io"
	"os"
	"path"
	"strings"

	"github.com/spf13/afero"
	"gitlab.com/tozd/go/errors"
)

// LoadOptions provides configuration for loading a bundle
type LoadOptions struct {
	// StripComponents removes the specified number of leading path components
	// Similar to tar's --strip-components
	StripComponents int

	// Filter allows filtering files during loading
	// Return true to load the file, false to skip it
	Filter func(header *tar.Header) bool

	// TransformName allows renaming files before they are written
	// If the transformed name collides with an existing file, an error is returned
	TransformName func(string) string

	// FileMode is the mode to use for created files (defaults to 0644)
	FileMode os.FileMode
}

// LoadIntoFs writes the regular files of a tar.gz archive below dir in fs.
func LoadIntoFs(data []byte, fs afero.Fs, dir string, opts LoadOptions) error {
	if opts.FileMode == 0 {
		opts.FileMode = 0644
	}

	gzr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return errors.Errorf("creating gzip reader: %w", err)
	}
	defer gzr.Close()

	tr := tar.NewReader(gzr)
	written := map[string]string{}

	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return errors.Errorf("reading tar: %w", err)
		}

		if header.Typeflag != tar.TypeReg {
			continue
		}

		components := SplitPath(header.Name)
		if len(components) <= opts.StripComponents {
			continue
		}
		stripped := path.Join(components[opts.StripComponents:]...)

		if opts.Filter != nil && !opts.Filter(header) {
			continue
		}

		final := stripped
		if opts.TransformName != nil {
			final = opts.TransformName(stripped)
		}

		if orig, exists := written[final]; exists {
			return errors.Errorf("file collision: %s (from %s and %s)", final, orig, header.Name)
		}
		written[final] = header.Name

		target := path.Join(dir, final)
		if err := fs.MkdirAll(path.Dir(target), 0755); err != nil {
			return errors.Errorf("creating directory for %s: %w", target, err)
		}

		f, err := fs.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, opts.FileMode)
		if err != nil {
			return errors.Errorf("creating file %s: %w", target, err)
		}
		if _, err := io.Copy(f, tr); err != nil {
			f.Close()
			return errors.Errorf("writing file %s: %w", target, err)
		}
		if err := f.Close(); err != nil {
			return errors.Errorf("closing file %s: %w", target, err)
		}
	}

	return nil
}

// SplitPath splits a slash separated archive path into its components
func SplitPath(p string) []string {
	p = strings.Trim(path.Clean("/"+p), "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}
