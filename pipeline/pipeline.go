// Package pipeline translates one Markdown document: it narrows and
// translates the front matter, masks fenced code, translates the remaining
// body line by line, restores the masked spans and writes the result beside
// the source.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/javierasping/Markdown-translation/corpus"
	"github.com/javierasping/Markdown-translation/mdfile"
	"github.com/javierasping/Markdown-translation/translate"
)

// ErrWrite is a failure to serialise or store a translated document.
var ErrWrite = errors.New("write error")

// ---------------------------------------------------------------------------
// Per-file state machine
// ---------------------------------------------------------------------------

// State is how far a file got through the pipeline.
type State int

const (
	Pending State = iota
	Loaded
	MetadataProcessed
	Masked
	LineTranslated
	Unmasked
	Serialized
	Written
	Failed
)

var stateNames = [...]string{
	Pending:           "pending",
	Loaded:            "loaded",
	MetadataProcessed: "metadata-processed",
	Masked:            "masked",
	LineTranslated:    "line-translated",
	Unmasked:          "unmasked",
	Serialized:        "serialized",
	Written:           "written",
	Failed:            "failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// Warning is a recoverable per-field or per-line failure. The affected text
// was kept in the source language.
type Warning struct {
	// Field is the metadata path ("title", "menu.sidebar.name"); empty for body lines.
	Field string
	// Line is the 1-based body line; 0 for metadata.
	Line int
	Err  error
}

func (w Warning) Error() string {
	if w.Field != "" {
		return fmt.Sprintf("field %s: %v", w.Field, w.Err)
	}
	return fmt.Sprintf("line %d: %v", w.Line, w.Err)
}

func (w Warning) Unwrap() error { return w.Err }

// Outcome describes what happened to one file.
type Outcome struct {
	Path     string
	Output   string
	State    State
	Requests int
	Warnings []Warning
}

// ---------------------------------------------------------------------------
// Translator
// ---------------------------------------------------------------------------

// Service translates one piece of text, falling back to the input on failure.
// *translate.Client implements it.
type Service interface {
	Translate(ctx context.Context, req translate.Request) translate.Result
}

// Options configures a Translator.
type Options struct {
	Source string
	Target string
	// ProtectedLines are body line numbers never sent for translation.
	// nil selects mdfile.DefaultProtectedLines.
	ProtectedLines []int
	// Keep lists extra front matter keys copied untranslated.
	Keep []string
	// RepairHeadings normalises heading markers mangled by the service.
	RepairHeadings bool
	// Perm is the mode of written files (default 0644).
	Perm os.FileMode
	// OnLog emits log messages during translation.
	OnLog func(format string, args ...any)
}

func (o *Options) log(format string, args ...any) {
	if o.OnLog != nil {
		o.OnLog(format, args...)
	}
}

// Translator runs documents through the pipeline. It holds no per-file
// state and may be shared by concurrent workers.
type Translator struct {
	svc        Service
	opts       Options
	classifier mdfile.Classifier
}

// NewTranslator returns a Translator sending requests to svc.
func NewTranslator(svc Service, opts Options) *Translator {
	if opts.Perm == 0 {
		opts.Perm = 0o644
	}
	return &Translator{
		svc:        svc,
		opts:       opts,
		classifier: mdfile.NewClassifier(opts.ProtectedLines),
	}
}

// TranslateFile translates e.Path into e.Output. Service failures are
// recorded as warnings and the original text is kept. Parse, write and
// cancellation errors fail the file; nothing is written in that case.
func (t *Translator) TranslateFile(ctx context.Context, e corpus.Entry) (*Outcome, error) {
	out := &Outcome{Path: e.Path, Output: e.Output}

	doc, err := mdfile.ParseFile(e.Path)
	if err != nil {
		out.State = Failed
		return out, err
	}
	out.State = Loaded

	data, err := t.translateDocument(ctx, out, doc, e.Kind)
	if err != nil {
		out.State = Failed
		return out, err
	}

	if err := ctx.Err(); err != nil {
		out.State = Failed
		return out, err
	}
	if err := corpus.WriteFileAtomic(e.Output, data, t.opts.Perm); err != nil {
		out.State = Failed
		return out, fmt.Errorf("%w: %s: %v", ErrWrite, e.Output, err)
	}
	out.State = Written
	return out, nil
}

// Translate runs the in-memory part of the pipeline on data and returns the
// serialised translation.
func (t *Translator) Translate(ctx context.Context, data []byte, kind mdfile.Kind) ([]byte, *Outcome, error) {
	out := &Outcome{}
	doc, err := mdfile.Parse(data)
	if err != nil {
		out.State = Failed
		return nil, out, err
	}
	out.State = Loaded

	res, err := t.translateDocument(ctx, out, doc, kind)
	if err != nil {
		out.State = Failed
		return nil, out, err
	}
	return res, out, ctx.Err()
}

func (t *Translator) translateDocument(ctx context.Context, out *Outcome, doc *mdfile.Document, kind mdfile.Kind) ([]byte, error) {
	meta := mdfile.SelectMetadata(doc.Meta, kind, t.opts.Keep, func(field, text string) string {
		translated, err := t.request(ctx, out, text)
		if err != nil {
			out.Warnings = append(out.Warnings, Warning{Field: field, Err: err})
			t.opts.log("%s: keeping %s untranslated: %v", doc.Path, field, err)
		}
		return translated
	})
	out.State = MetadataProcessed

	body := doc.Body
	if kind == mdfile.ContentDocument {
		body = t.translateBody(ctx, out, doc.Path, doc.Body)
	}

	data, err := (&mdfile.Document{Meta: meta, Body: body, Newline: doc.Newline}).Marshal()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWrite, err)
	}
	out.State = Serialized
	return data, nil
}

// translateBody masks fenced code, translates each unprotected line and
// unmasks the result. Line structure and line endings are preserved.
func (t *Translator) translateBody(ctx context.Context, out *Outcome, path, body string) string {
	masked, spans := mdfile.Mask(body)
	out.State = Masked

	lines := strings.Split(masked, "\n")
	nums := spans.LineNumbers(lines)

	for i, line := range lines {
		if ctx.Err() != nil {
			break
		}
		if t.classifier.IsProtected(nums[i], line) {
			continue
		}

		lead, core, trail := mdfile.SplitPadding(line)
		translated, err := t.request(ctx, out, core)
		if err != nil {
			out.Warnings = append(out.Warnings, Warning{Line: nums[i], Err: err})
			t.opts.log("%s:%d: keeping line untranslated: %v", path, nums[i], err)
			continue
		}
		if t.opts.RepairHeadings {
			translated = mdfile.RepairHeadings(translated)
		}
		if missing := missingTokens(spans.Tokens(core), translated); len(missing) > 0 {
			err := fmt.Errorf("translation dropped %s", strings.Join(missing, ", "))
			out.Warnings = append(out.Warnings, Warning{Line: nums[i], Err: err})
			t.opts.log("%s:%d: keeping line untranslated: %v", path, nums[i], err)
			continue
		}
		lines[i] = lead + translated + trail
	}
	out.State = LineTranslated

	result := spans.Unmask(strings.Join(lines, "\n"))
	out.State = Unmasked
	return result
}

// request sends one non-blank text to the service.
func (t *Translator) request(ctx context.Context, out *Outcome, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return text, nil
	}
	out.Requests++
	res := t.svc.Translate(ctx, translate.Request{
		Text:   text,
		Source: t.opts.Source,
		Target: t.opts.Target,
		Format: translate.FormatHTML,
	})
	return res.Text, res.Err
}

func missingTokens(want []string, text string) []string {
	var missing []string
	for _, tok := range want {
		if !strings.Contains(text, tok) {
			missing = append(missing, tok)
		}
	}
	return missing
}
