// Package mdfile implements reading and writing of Markdown documents with a
// YAML front matter block, and the pure text transformations the translator
// applies to them:
//
//   - Front matter (YAML between --- delimiters) is kept as an ordered
//     yaml.Node mapping so keys round-trip in source order.
//
//   - The body is kept byte-for-byte as it appears after the closing
//     delimiter line.
//
//   - Fenced code blocks (``` ... ```) are masked with placeholder tokens
//     before translation and restored afterwards (see Mask).
//
//   - Body lines are classified as translatable or protected (see Classifier).
//
//   - Only the title and menu.sidebar.name metadata fields are translated
//     (see SelectMetadata).
package mdfile

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrParse is returned when a document's metadata and body cannot be split.
var ErrParse = errors.New("parse error")

// IndexFileName is the section index file whose body is never translated.
const IndexFileName = "_index.md"

// Kind selects which metadata/body policy applies to a document.
type Kind int

const (
	// ContentDocument is any Markdown file other than the section index.
	ContentDocument Kind = iota
	// IndexDocument is a section index: metadata-only translation.
	IndexDocument
)

func (k Kind) String() string {
	if k == IndexDocument {
		return "index"
	}
	return "content"
}

// KindOf returns the document kind for a path, decided by exact base name.
func KindOf(path string) Kind {
	if filepath.Base(path) == IndexFileName {
		return IndexDocument
	}
	return ContentDocument
}

// ---------------------------------------------------------------------------
// Document model
// ---------------------------------------------------------------------------

// Document is a parsed Markdown file.
type Document struct {
	// Path is where the document was read from (empty for in-memory data).
	Path string
	// Meta is the front matter mapping node, nil when absent or empty.
	Meta *yaml.Node
	// Body is everything after the closing front matter delimiter line.
	Body string
	// HasFrontmatter is true if the source had a delimited front matter block.
	HasFrontmatter bool
	// Newline is the source's line ending, "\r\n" or "\n". Marshal writes the
	// front matter with it; empty means "\n".
	Newline string
}

// frontmatterBlock matches a YAML front matter block at the start of the file.
// The closing delimiter must sit on its own line; an empty block is allowed.
var frontmatterBlock = regexp.MustCompile(`(?s)^---[ \t]*\r?\n(?:(.*?)\r?\n)?---[ \t]*(?:\r?\n|$)`)

// openingDelimiter matches a first line that opens a front matter block.
var openingDelimiter = regexp.MustCompile(`^---[ \t]*\r?\n`)

// ParseFile reads and parses a Markdown document.
func ParseFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	doc.Path = path
	return doc, nil
}

// Parse splits Markdown data into front matter and body.
// A file without front matter yields a nil Meta and the whole text as body.
func Parse(data []byte) (*Document, error) {
	text := string(data)
	doc := &Document{Newline: lineEnding(text)}

	m := frontmatterBlock.FindStringSubmatchIndex(text)
	if m == nil {
		if openingDelimiter.MatchString(text) {
			return nil, fmt.Errorf("%w: unclosed front matter block", ErrParse)
		}
		doc.Body = text
		return doc, nil
	}

	doc.HasFrontmatter = true
	doc.Body = text[m[1]:]

	if m[2] < 0 {
		return doc, nil
	}
	raw := text[m[2]:m[3]]

	var node yaml.Node
	if err := yaml.Unmarshal([]byte(raw), &node); err != nil {
		return nil, fmt.Errorf("%w: front matter: %v", ErrParse, err)
	}
	if len(node.Content) == 0 {
		// Only comments or whitespace.
		return doc, nil
	}
	root := node.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: front matter is not a key/value mapping", ErrParse)
	}
	doc.Meta = root
	return doc, nil
}

// ---------------------------------------------------------------------------
// Marshaling
// ---------------------------------------------------------------------------

// Marshal serialises the document back to Markdown. The front matter block is
// emitted only when the mapping has at least one key.
func (d *Document) Marshal() ([]byte, error) {
	var buf bytes.Buffer

	if d.Meta != nil && len(d.Meta.Content) > 0 {
		var fm bytes.Buffer
		enc := yaml.NewEncoder(&fm)
		enc.SetIndent(2)
		if err := enc.Encode(d.Meta); err != nil {
			return nil, fmt.Errorf("marshaling front matter: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("marshaling front matter: %w", err)
		}
		nl := d.Newline
		if nl == "" {
			nl = "\n"
		}
		buf.WriteString("---" + nl)
		buf.WriteString(strings.ReplaceAll(fm.String(), "\n", nl))
		buf.WriteString("---" + nl)
	}

	buf.WriteString(d.Body)
	return buf.Bytes(), nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// lineEnding reports the ending of the first line of text.
func lineEnding(text string) string {
	if i := strings.IndexByte(text, '\n'); i > 0 && text[i-1] == '\r' {
		return "\r\n"
	}
	return "\n"
}

// OutputPath returns where the translation of path into lang is written:
// <stem>.<lang>.md beside the source.
func OutputPath(path, lang string) string {
	dir, base := filepath.Split(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, stem+"."+lang+".md")
}

// IsTranslation reports whether path already carries the .<lang>.md suffix.
func IsTranslation(path, lang string) bool {
	return strings.HasSuffix(filepath.Base(path), "."+lang+".md")
}
