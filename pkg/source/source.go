// Package source abstracts where analyzed file content comes from.
package source

import (
	"os"

	"github.com/spf13/afero"
)

// ContentSource provides file content from a specific source.
type ContentSource interface {
	// Read returns the content of the file at path.
	Read(path string) ([]byte, error)
}

// FSSource reads files from an afero filesystem.
type FSSource struct {
	fs afero.Fs
}

// New creates a source over fs.
func New(fs afero.Fs) *FSSource {
	return &FSSource{fs: fs}
}

// NewFilesystem creates a source that reads from the local filesystem.
func NewFilesystem() *FSSource {
	return New(afero.NewOsFs())
}

// NewMemory creates a source backed by an in-memory filesystem holding files.
// Safe for concurrent use.
func NewMemory(files map[string]string) *FSSource {
	s := New(afero.NewMemMapFs())
	for path, content := range files {
		_ = s.Put(path, content)
	}
	return s
}

// Put adds or replaces a file, creating parent directories as needed.
func (s *FSSource) Put(path, content string) error {
	return afero.WriteFile(s.fs, path, []byte(content), os.FileMode(0o644))
}

// Read implements ContentSource.
func (s *FSSource) Read(path string) ([]byte, error) {
	return afero.ReadFile(s.fs, path)
}
