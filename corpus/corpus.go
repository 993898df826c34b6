// Package corpus discovers the Markdown sources of a content tree that still
// need a translation, and writes translated files atomically.
package corpus

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/javierasping/Markdown-translation/mdfile"
)

// Entry is one source file selected for translation.
type Entry struct {
	// Path is the source file path.
	Path string
	// Rel is Path relative to the walked root, slash separated.
	Rel string
	// Output is the translated sibling, <stem>.<target>.md.
	Output string
	// Kind is derived from the base name.
	Kind mdfile.Kind
}

// Options controls discovery.
type Options struct {
	// Exclude holds doublestar patterns matched against Rel. A pattern that
	// matches a directory prunes it.
	Exclude []string
	// IncludeExisting also returns sources whose output already exists.
	IncludeExisting bool
}

// Discover walks root in lexical order and returns every .md file that is
// not itself a translation into target and has no translation yet.
// Hidden directories are skipped.
func Discover(root, target string, opts Options) ([]Entry, error) {
	for _, p := range opts.Exclude {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid exclude pattern %q", p)
		}
	}

	var entries []Entry
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			if rel != "." && excluded(rel, opts.Exclude) {
				return filepath.SkipDir
			}
			return nil
		}

		if !d.Type().IsRegular() || !strings.HasSuffix(d.Name(), ".md") {
			return nil
		}
		if mdfile.IsTranslation(path, target) || excluded(rel, opts.Exclude) {
			return nil
		}

		out := mdfile.OutputPath(path, target)
		if !opts.IncludeExisting {
			if _, statErr := os.Stat(out); statErr == nil {
				return nil
			}
		}

		entries = append(entries, Entry{
			Path:   path,
			Rel:    rel,
			Output: out,
			Kind:   mdfile.KindOf(path),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}
	return entries, nil
}

// Sources returns every non-translation .md file under root, whether or not
// it has been translated.
func Sources(root, target string, exclude []string) ([]Entry, error) {
	return Discover(root, target, Options{Exclude: exclude, IncludeExisting: true})
}

// Exists reports whether e's output file is present.
func (e Entry) Exists() bool {
	_, err := os.Stat(e.Output)
	return err == nil
}

func excluded(rel string, patterns []string) bool {
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}

// WriteFileAtomic writes data to a temp file in the same directory and
// renames it over path, so readers never observe a partial file.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	cleanup := func(cause error) error {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return cause
	}

	if _, err := tmp.Write(data); err != nil {
		return cleanup(fmt.Errorf("writing temp file: %w", err))
	}
	if err := tmp.Sync(); err != nil {
		return cleanup(fmt.Errorf("syncing temp file: %w", err))
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("setting permissions: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("renaming into place: %w", err)
	}
	return nil
}
