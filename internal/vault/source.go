package vault

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/spf13/afero"

	"github.com/danielbwilkinson/jargon-rag/internal/domain"
)

// File is a raw note as read from a vault.
type File struct {
	Title   string
	Type    domain.NoteType
	Content []byte
}

// Category maps a vault directory to the note type of the files in it.
type Category struct {
	Dir  string
	Type domain.NoteType
}

// Layout is the directory structure of the vault.
var Layout = []Category{
	{Dir: "01 - Primary Categories", Type: domain.NoteTypePrimary},
	{Dir: "02 - Secondary Categories", Type: domain.NoteTypeSecondary},
	{Dir: "03 - Content", Type: domain.NoteTypeContent},
}

// TitleFromName strips the .md extension. ok is false for any other file.
func TitleFromName(name string) (string, bool) {
	if !strings.HasSuffix(name, ".md") {
		return "", false
	}
	title := strings.TrimSuffix(name, ".md")
	return title, title != ""
}

// DirSource reads notes from a directory tree on any afero filesystem.
type DirSource struct {
	fs   afero.Fs
	root string
}

func NewDirSource(fs afero.Fs, root string) *DirSource {
	return &DirSource{fs: fs, root: root}
}

// NewOSDirSource reads from the local disk.
func NewOSDirSource(root string) *DirSource {
	return NewDirSource(afero.NewOsFs(), root)
}

// Files returns every note in layout order, then by file name. Missing
// category directories are skipped; subdirectories are not descended into.
func (s *DirSource) Files(ctx context.Context) ([]File, error) {
	var files []File
	for _, cat := range Layout {
		dir := path.Join(s.root, cat.Dir)

		exists, err := afero.DirExists(s.fs, dir)
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", dir, err)
		}
		if !exists {
			continue
		}

		entries, err := afero.ReadDir(s.fs, dir)
		if err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", dir, err)
		}

		for _, entry := range entries {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if entry.IsDir() {
				continue
			}
			title, ok := TitleFromName(entry.Name())
			if !ok {
				continue
			}

			content, err := afero.ReadFile(s.fs, path.Join(dir, entry.Name()))
			if err != nil {
				return nil, fmt.Errorf("failed to read %s: %w", entry.Name(), err)
			}

			files = append(files, File{Title: title, Type: cat.Type, Content: content})
		}
	}
	return files, nil
}
