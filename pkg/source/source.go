// Package source provides read-only artifact sources for model descriptors
// and provider modules: a local directory and an S3 directory, plus
// resolution of the named parameters that point at the remote locations.
package source

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/llmhub", "source")

var (
	// ErrNotFound is returned when the named artifact does not exist in
	// the source.
	ErrNotFound = errors.New("artifact not found")
	// ErrFetch is returned on network or access failures reaching a
	// remote source.
	ErrFetch = errors.New("remote fetch failed")
	// ErrFetchTimeout is returned when a remote fetch exceeds its
	// deadline. Distinguishable from ErrFetch so callers can decide to
	// retry.
	ErrFetchTimeout = errors.New("remote fetch timed out")
)

// Source is a directory-like collection of artifacts addressed by file name.
type Source interface {
	// Name identifies the source in logs and error messages.
	Name() string
	// Fetch returns the content of the named artifact.
	Fetch(ctx context.Context, name string) ([]byte, error)
	// List returns the names of artifacts with the given extension.
	List(ctx context.Context, ext string) ([]string, error)
}

type bypassKey struct{}

// WithBypassCache marks the context so that sources skip any byte cache in
// front of them and fetch fresh content. Used by forced reloads.
func WithBypassCache(ctx context.Context) context.Context {
	return context.WithValue(ctx, bypassKey{}, true)
}

func bypassCache(ctx context.Context) bool {
	v, _ := ctx.Value(bypassKey{}).(bool)
	return v
}

// Dir is a local directory source.
type Dir struct {
	dir string
}

// NewDir creates a source over a local directory.
func NewDir(dir string) *Dir {
	return &Dir{dir: dir}
}

// Name implements the Source interface.
func (d *Dir) Name() string {
	return d.dir
}

// Fetch implements the Source interface.
func (d *Dir) Fetch(_ context.Context, name string) ([]byte, error) {
	if name == "" || name != filepath.Base(name) {
		return nil, errors.Wrapf(ErrNotFound, "invalid artifact name: %q", name)
	}
	data, err := os.ReadFile(filepath.Join(d.dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(ErrNotFound, "%s/%s", d.dir, name)
		}
		return nil, errors.Wrapf(err, "failed to read %s/%s", d.dir, name)
	}
	return data, nil
}

// List implements the Source interface.
func (d *Dir) List(_ context.Context, ext string) ([]string, error) {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(ErrNotFound, "%s", d.dir)
		}
		return nil, errors.Wrapf(err, "failed to read directory %s", d.dir)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasSuffix(e.Name(), ext) {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// Stem returns the artifact name without its extension. Model and provider
// keys follow the file-stem-as-key convention.
func Stem(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}
