// Package outline builds the category tree of a content directory from the
// front matter of its _index.md files.
package outline

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"

	"github.com/javierasping/Markdown-translation/mdfile"
)

const indexFile = "_index.md"

// Post is a section below a category.
type Post struct {
	Title      string `yaml:"title"`
	Identifier string `yaml:"identifier"`
}

// Category is a top-level directory.
type Category struct {
	Title      string `yaml:"title"`
	Identifier string `yaml:"identifier"`
	Children   []Post `yaml:"children"`
}

// Outline maps each top-level directory name to its category.
type Outline map[string]Category

// Build reads root and returns its outline. Hidden directories are skipped.
//
// A category's title is the menu.sidebar.name of its _index.md, falling back
// to the directory name with underscores turned into spaces and title-cased.
// Its children are the subdirectories whose _index.md declares both a title
// and an identifier, in name order.
func Build(root string) (Outline, error) {
	dirs, err := subdirs(root)
	if err != nil {
		return nil, err
	}

	out := Outline{}
	for _, name := range dirs {
		dir := filepath.Join(root, name)
		cat := Category{
			Title:      titleCase(strings.ReplaceAll(name, "_", " ")),
			Identifier: name,
			Children:   []Post{},
		}

		doc, err := readIndex(dir)
		if err != nil {
			return nil, err
		}
		if doc != nil {
			if v, ok := mdfile.StringAt(doc.Meta, "menu", "sidebar", "name"); ok && v != "" {
				cat.Title = v
			}
		}

		children, err := subdirs(dir)
		if err != nil {
			return nil, err
		}
		for _, child := range children {
			doc, err := readIndex(filepath.Join(dir, child))
			if err != nil {
				return nil, err
			}
			if doc == nil {
				continue
			}
			title, okTitle := mdfile.StringAt(doc.Meta, "title")
			id, okID := mdfile.StringAt(doc.Meta, "identifier")
			if okTitle && okID {
				cat.Children = append(cat.Children, Post{Title: title, Identifier: id})
			}
		}

		out[name] = cat
	}
	return out, nil
}

// Encode writes o as YAML. Keys are sorted.
func (o Outline) Encode(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(map[string]Category(o)); err != nil {
		return err
	}
	return enc.Close()
}

func readIndex(dir string) (*mdfile.Document, error) {
	doc, err := mdfile.ParseFile(filepath.Join(dir, indexFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	return doc, nil
}

func subdirs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", dir, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// titleCase upper-cases the first letter of every word and lower-cases the rest.
func titleCase(s string) string {
	var b strings.Builder
	start := true
	for _, r := range s {
		if unicode.IsLetter(r) {
			if start {
				r = unicode.ToUpper(r)
			} else {
				r = unicode.ToLower(r)
			}
			start = false
		} else {
			start = true
		}
		b.WriteRune(r)
	}
	return b.String()
}
