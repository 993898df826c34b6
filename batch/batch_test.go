package batch

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/javierasping/Markdown-translation/config"
	"github.com/javierasping/Markdown-translation/corpus"
	"github.com/javierasping/Markdown-translation/lockfile"
	"github.com/javierasping/Markdown-translation/mdfile"
	"github.com/javierasping/Markdown-translation/pipeline"
)

// libreDouble upper-cases every request and counts hits.
type libreDouble struct {
	hits atomic.Int64
}

func (d *libreDouble) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	d.hits.Add(1)
	var req struct {
		Q string `json:"q"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)
	_ = json.NewEncoder(w).Encode(map[string]string{"translatedText": strings.ToUpper(req.Q)})
}

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func loadConfig(t *testing.T, root, endpoint string, concurrency int) config.Config {
	t.Helper()
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	for _, k := range []string{"PROVIDER", "ENDPOINT", "TARGET_LANG", "SOURCE_LANG", "CONCURRENCY", "EXCLUDE"} {
		t.Setenv(config.EnvPrefix+k, "")
	}
	cfg, err := config.Load(root, config.Overrides{
		Endpoint:    &endpoint,
		Concurrency: &concurrency,
	})
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}
	return cfg
}

func newRun(t *testing.T, cfg config.Config) *pipeline.Translator {
	t.Helper()
	tr, _, err := NewTranslator(context.Background(), cfg, false, nil)
	if err != nil {
		t.Fatalf("NewTranslator: %v", err)
	}
	return tr
}

func snapshot(t *testing.T, root string) map[string]string {
	t.Helper()
	out := map[string]string{}
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(path, ".en.md") {
			return err
		}
		data, err := os.ReadFile(path)
		out[path] = string(data)
		return err
	})
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	return out
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	return string(data)
}

var corpusFiles = map[string]string{
	"_index.md":          "---\ntitle: Hola\nmenu:\n  sidebar:\n    name: Inicio\n    identifier: inicio\n---\ntexto\n",
	"posts/uno.md":       "---\ntitle: Uno\ndate: 2024-01-01\n---\nl1\nl2\nl3\nl4\nl5\nl6\nl7\nocho\n",
	"posts/dos.md":       "sin front matter\n",
	"posts/dos.en.md":    "already translated\n",
	"guide/_index.md":    "---\ntitle: Guía\n---\n",
	"guide/setup/pre.md": "```\ncode\n```\nfin\n",
}

func TestRunIsIdempotent(t *testing.T) {
	srv := &libreDouble{}
	ts := httptest.NewServer(srv)
	defer ts.Close()

	root := t.TempDir()
	writeTree(t, root, corpusFiles)
	cfg := loadConfig(t, root, ts.URL, 1)

	lock, err := lockfile.Load(root)
	if err != nil {
		t.Fatalf("lockfile.Load: %v", err)
	}

	var progress []string
	sum, err := Run(context.Background(), cfg, newRun(t, cfg), Options{
		Lock: lock,
		OnProgress: func(done, total int, e corpus.Entry, out *pipeline.Outcome) {
			progress = append(progress, e.Rel)
		},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !sum.OK() || sum.Discovered != 4 || sum.Translated != 4 {
		t.Fatalf("summary = %+v", sum)
	}
	wantOrder := []string{"_index.md", "guide/_index.md", "guide/setup/pre.md", "posts/uno.md"}
	if !reflect.DeepEqual(progress, wantOrder) {
		t.Fatalf("progress = %v, want %v", progress, wantOrder)
	}
	if int64(sum.Requests) != srv.hits.Load() {
		t.Fatalf("Requests = %d, server saw %d", sum.Requests, srv.hits.Load())
	}

	first := snapshot(t, root)
	checks := map[string]string{
		filepath.Join(root, "posts", "dos.en.md"):          "already translated\n",
		filepath.Join(root, "_index.en.md"):                "---\ntitle: HOLA\nmenu:\n  sidebar:\n    name: INICIO\n    identifier: inicio\n---\ntexto\n",
		filepath.Join(root, "posts", "uno.en.md"):          "---\ntitle: UNO\n---\nl1\nL2\nl3\nL4\nl5\nl6\nl7\nOCHO\n",
		filepath.Join(root, "guide", "setup", "pre.en.md"): "```\ncode\n```\nFIN\n",
	}
	for path, want := range checks {
		if got := first[path]; got != want {
			t.Errorf("%s =\n%q\nwant\n%q", path, got, want)
		}
	}

	if _, err := os.Stat(filepath.Join(root, lockfile.LockFileName)); err != nil {
		t.Fatalf("lock file not written: %v", err)
	}

	// Second run: nothing to do, no requests, outputs unchanged.
	hits := srv.hits.Load()
	sum, err = Run(context.Background(), cfg, newRun(t, cfg), Options{Lock: lock})
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if sum.Discovered != 0 {
		t.Fatalf("second run discovered %d files", sum.Discovered)
	}
	if srv.hits.Load() != hits {
		t.Fatalf("second run issued %d requests", srv.hits.Load()-hits)
	}
	if !reflect.DeepEqual(first, snapshot(t, root)) {
		t.Fatal("second run changed existing translations")
	}
}

func TestRunContinuesPastFailures(t *testing.T) {
	ts := httptest.NewServer(&libreDouble{})
	defer ts.Close()

	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"a.md":      "hola\n",
		"broken.md": "---\ntitle: [x\n",
		"c.md":      "adiós\n",
	})
	cfg := loadConfig(t, root, ts.URL, 1)

	var errs []string
	sum, err := Run(context.Background(), cfg, newRun(t, cfg), Options{
		OnError: func(format string, args ...any) { errs = append(errs, format) },
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Translated != 2 {
		t.Fatalf("Translated = %d, want 2", sum.Translated)
	}
	if len(sum.Failed) != 1 || sum.Failed[0].Path != "broken.md" {
		t.Fatalf("Failed = %v", sum.Failed)
	}
	if !errors.Is(sum.Failed[0], mdfile.ErrParse) {
		t.Fatalf("failure %v is not ErrParse", sum.Failed[0])
	}
	if len(errs) != 1 {
		t.Fatalf("OnError called %d times", len(errs))
	}
	if sum.OK() {
		t.Fatal("OK() = true with a failed file")
	}
	if _, err := os.Stat(filepath.Join(root, "broken.en.md")); !os.IsNotExist(err) {
		t.Fatalf("broken.en.md must not be written, stat err = %v", err)
	}
}

func TestRunServiceDownStillWritesOriginals(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	root := t.TempDir()
	writeTree(t, root, map[string]string{"a.md": "hola\nmundo\n"})
	t.Setenv(config.EnvPrefix+"MAX_RETRIES", "0")
	cfg := loadConfig(t, root, ts.URL, 1)

	sum, err := Run(context.Background(), cfg, newRun(t, cfg), Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Translated != 1 {
		t.Fatalf("Translated = %d, want 1", sum.Translated)
	}
	// Line 1 is protected by default, line 2 falls back.
	if sum.Warnings != 1 {
		t.Fatalf("Warnings = %d, want 1", sum.Warnings)
	}
	if got := readFile(t, filepath.Join(root, "a.en.md")); got != "hola\nmundo\n" {
		t.Fatalf("a.en.md = %q", got)
	}
}

func TestRunParallel(t *testing.T) {
	srv := &libreDouble{}
	ts := httptest.NewServer(srv)
	defer ts.Close()

	root := t.TempDir()
	files := map[string]string{}
	for _, name := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
		files["p/"+name+".md"] = "x\n" + name + "\n"
	}
	writeTree(t, root, files)
	cfg := loadConfig(t, root, ts.URL, 4)

	lock := lockfile.New(root)
	sum, err := Run(context.Background(), cfg, newRun(t, cfg), Options{Concurrency: cfg.Concurrency(), Lock: lock})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Translated != 8 || sum.Requests != 8 {
		t.Fatalf("summary = %+v", sum)
	}
	if _, docs := lock.Stats(); docs != 8 {
		t.Fatalf("lock tracks %d documents, want 8", docs)
	}
	if got := readFile(t, filepath.Join(root, "p", "c.en.md")); got != "x\nC\n" {
		t.Fatalf("c.en.md = %q", got)
	}
}

func TestRunDryRun(t *testing.T) {
	srv := &libreDouble{}
	ts := httptest.NewServer(srv)
	defer ts.Close()

	root := t.TempDir()
	writeTree(t, root, map[string]string{"a.md": "hola\n", "b.md": "b\n", "b.en.md": "b\n"})
	cfg := loadConfig(t, root, ts.URL, 1)

	sum, err := Run(context.Background(), cfg, newRun(t, cfg), Options{DryRun: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(sum.Pending) != 1 || sum.Pending[0].Rel != "a.md" {
		t.Fatalf("Pending = %v", sum.Pending)
	}
	if srv.hits.Load() != 0 {
		t.Fatalf("dry run issued %d requests", srv.hits.Load())
	}
	if _, err := os.Stat(filepath.Join(root, "a.en.md")); !os.IsNotExist(err) {
		t.Fatalf("dry run wrote a.en.md, stat err = %v", err)
	}
}

func TestRunCancelled(t *testing.T) {
	ts := httptest.NewServer(&libreDouble{})
	defer ts.Close()

	root := t.TempDir()
	writeTree(t, root, map[string]string{"a.md": "hola\n"})
	cfg := loadConfig(t, root, ts.URL, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sum, err := Run(ctx, cfg, newRun(t, cfg), Options{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if sum.Translated != 0 {
		t.Fatalf("Translated = %d after cancellation", sum.Translated)
	}
}

func TestRunDropsLockEntriesOfDeletedSources(t *testing.T) {
	ts := httptest.NewServer(&libreDouble{})
	defer ts.Close()

	root := t.TempDir()
	writeTree(t, root, map[string]string{"a.md": "hola\n", "old.md": "viejo\n"})
	cfg := loadConfig(t, root, ts.URL, 1)

	lock := lockfile.New(root)
	if _, err := Run(context.Background(), cfg, newRun(t, cfg), Options{Lock: lock}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !lock.Known("en", "old.md") {
		t.Fatal("old.md should be tracked after the first run")
	}

	for _, name := range []string{"old.md", "old.en.md"} {
		if err := os.Remove(filepath.Join(root, name)); err != nil {
			t.Fatal(err)
		}
	}

	// Nothing is left to translate; the run still prunes and saves the lock.
	sum, err := Run(context.Background(), cfg, newRun(t, cfg), Options{Lock: lock})
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if sum.Discovered != 0 {
		t.Fatalf("Discovered = %d", sum.Discovered)
	}

	saved, err := lockfile.Load(root)
	if err != nil {
		t.Fatalf("lockfile.Load: %v", err)
	}
	if saved.Known("en", "old.md") {
		t.Fatal("saved lock still tracks deleted old.md")
	}
	if !saved.Known("en", "a.md") {
		t.Fatal("saved lock lost a.md")
	}
}

func TestInspectReportsStaleAndUntracked(t *testing.T) {
	ts := httptest.NewServer(&libreDouble{})
	defer ts.Close()

	root := t.TempDir()
	writeTree(t, root, map[string]string{"a.md": "hola\n", "b.md": "b\n", "c.md": "c\n"})
	cfg := loadConfig(t, root, ts.URL, 1)
	lock := lockfile.New(root)

	// c has a hand-written translation; a and b go through the batch.
	if err := os.WriteFile(filepath.Join(root, "c.en.md"), []byte("manual\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Run(context.Background(), cfg, newRun(t, cfg), Options{Lock: lock}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if err := os.Remove(filepath.Join(root, "b.en.md")); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "a.md"), []byte("hola de nuevo\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	rep, err := Inspect(cfg, lock)
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if rep.Sources != 3 || rep.Translated != 2 {
		t.Fatalf("report = %+v", rep)
	}
	if !reflect.DeepEqual(rep.Pending, []string{"b.md"}) {
		t.Errorf("Pending = %v", rep.Pending)
	}
	if !reflect.DeepEqual(rep.Stale, []string{"a.md"}) {
		t.Errorf("Stale = %v", rep.Stale)
	}
	if !reflect.DeepEqual(rep.Untracked, []string{"c.md"}) {
		t.Errorf("Untracked = %v", rep.Untracked)
	}
}
