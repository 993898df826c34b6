package main

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"

	"github.com/javierasping/Markdown-translation/config"
	"github.com/javierasping/Markdown-translation/lockfile"
	"github.com/javierasping/Markdown-translation/pipeline"
	"github.com/javierasping/Markdown-translation/settings"
)

func TestProgressCell(t *testing.T) {
	tests := []struct {
		name        string
		done, total int
		want        string
	}{
		{"nothing done", 0, 4, "0/4 " + colorRed + "  0%" + colorReset},
		{"half uses yellow", 2, 4, "2/4 " + colorYellow + " 50%" + colorReset},
		{"complete uses green", 4, 4, "4/4 " + colorGreen + "100%" + colorReset},
		{"empty tree is complete", 0, 0, "0/0 " + colorGreen + "100%" + colorReset},
	}

	for _, tc := range tests {
		if got := progressCell(tc.done, tc.total); got != tc.want {
			t.Fatalf("%s: progressCell() = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestWarningLinesNameTheDocument(t *testing.T) {
	out := &pipeline.Outcome{
		State: pipeline.Written,
		Warnings: []pipeline.Warning{
			{Field: "title", Err: errors.New("service unavailable")},
			{Line: 4, Err: errors.New("placeholder lost")},
		},
	}
	want := []string{
		"    guia/dns.md: field title: service unavailable",
		"    guia/dns.md: line 4: placeholder lost",
	}
	if got := warningLines("guia/dns.md", out); !reflect.DeepEqual(got, want) {
		t.Fatalf("warningLines() = %q, want %q", got, want)
	}

	failed := &pipeline.Outcome{State: pipeline.Failed, Warnings: []pipeline.Warning{{Line: 1, Err: errors.New("x")}}}
	if got := warningLines("b.md", failed); len(got) != 1 {
		t.Fatalf("warnings must be shown whatever the state, got %q", got)
	}
	if got := warningLines("c.md", nil); got != nil {
		t.Fatalf("nil outcome: %q", got)
	}
}

func TestOverridesFromFlagsOnlyChanged(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	addConfigFlags(fs)
	if err := fs.Parse([]string{
		"--target", "fr",
		"--max-retries", "0",
		"--timeout", "5s",
		"--exclude", "drafts/**",
		"--exclude", "tmp/**",
		"--repair-headings",
	}); err != nil {
		t.Fatalf("Parse: %v", err)
	}

	ov := overridesFromFlags(fs)
	if ov.TargetLang == nil || *ov.TargetLang != "fr" {
		t.Fatalf("TargetLang = %v", ov.TargetLang)
	}
	if ov.MaxRetries == nil || *ov.MaxRetries != 0 {
		t.Fatalf("MaxRetries = %v, want explicit 0", ov.MaxRetries)
	}
	if ov.Timeout == nil || *ov.Timeout != 5*time.Second {
		t.Fatalf("Timeout = %v", ov.Timeout)
	}
	if !reflect.DeepEqual(ov.Exclude, []string{"drafts/**", "tmp/**"}) {
		t.Fatalf("Exclude = %#v", ov.Exclude)
	}
	if ov.RepairHeadings == nil || !*ov.RepairHeadings {
		t.Fatalf("RepairHeadings = %v", ov.RepairHeadings)
	}

	if ov.SourceLang != nil || ov.Provider != nil || ov.Concurrency != nil || ov.RequestDelay != nil {
		t.Fatalf("unset flags must stay nil: %+v", ov)
	}
}

func TestKnownProvider(t *testing.T) {
	for _, id := range []string{"libretranslate", "openai", "gemini"} {
		if !knownProvider(id) {
			t.Fatalf("knownProvider(%q) = false", id)
		}
	}
	if knownProvider("deepl") {
		t.Fatal("knownProvider(deepl) = true")
	}
	if got := len(providerCompletions()); got != 3 {
		t.Fatalf("providerCompletions() has %d entries, want 3", got)
	}
}

func TestUnknownStoredProviders(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	if got := unknownStoredProviders(); got != nil {
		t.Fatalf("empty store: %v", got)
	}
	for _, id := range []string{"openai", "deepl", "azure"} {
		if err := settings.SetAPIKey(id, "sk-test", ""); err != nil {
			t.Fatalf("SetAPIKey(%s): %v", id, err)
		}
	}
	if got := unknownStoredProviders(); !reflect.DeepEqual(got, []string{"azure", "deepl"}) {
		t.Fatalf("unknownStoredProviders() = %v, want [azure deepl]", got)
	}
}

func TestRootCommandTree(t *testing.T) {
	root := newRootCmd()
	want := []string{"auth", "outline", "status", "translate", "version", "watch"}
	var got []string
	for _, c := range root.Commands() {
		got = append(got, c.Name())
	}
	for _, name := range want {
		found := false
		for _, g := range got {
			if g == name {
				found = true
			}
		}
		if !found {
			t.Fatalf("missing command %q in %v", name, got)
		}
	}
}

func TestRunOutlineWritesFile(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "redes", "dns")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(sub, "_index.md"), []byte("---\ntitle: DNS\nidentifier: dns\n---\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	out := filepath.Join(t.TempDir(), "outline.yaml")
	if err := runOutline(dir, out); err != nil {
		t.Fatalf("runOutline: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	for _, want := range []string{"redes:", "title: Redes", "identifier: dns"} {
		if !strings.Contains(string(data), want) {
			t.Fatalf("outline missing %q:\n%s", want, data)
		}
	}
}

// staleFixture lays out two translated sources, records both in the lock
// file and then edits a.md so only its translation is stale.
func staleFixture(t *testing.T) (string, config.Config) {
	t.Helper()
	root := t.TempDir()
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	for _, k := range []string{"SOURCE_LANG", "TARGET_LANG", "PROVIDER", "EXCLUDE"} {
		t.Setenv("MDTRANS_"+k, "")
	}

	write := func(name, content string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(root, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write("a.md", "hola\n")
	write("a.en.md", "hello\n")
	write("b.md", "b\n")
	write("b.en.md", "b\n")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	addConfigFlags(fs)
	rootDir = root
	t.Cleanup(func() { rootDir = "." })
	cfg, err := loadConfig(fs)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}

	lock := lockfile.New(root)
	lock.Record("en", "a.md", []byte("hola\n"))
	lock.Record("en", "b.md", []byte("b\n"))
	if err := lock.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	write("a.md", "hola otra vez\n")
	return root, cfg
}

func TestHandleStaleReportsWithoutRemoving(t *testing.T) {
	root, cfg := staleFixture(t)

	stale, err := handleStale(cfg, []string{"a.md", "b.md"}, false)
	if err != nil {
		t.Fatalf("handleStale: %v", err)
	}
	if !reflect.DeepEqual(stale, []string{"a.md"}) {
		t.Fatalf("stale = %v, want [a.md]", stale)
	}
	for _, name := range []string{"a.en.md", "b.en.md"} {
		if _, err := os.Stat(filepath.Join(root, name)); err != nil {
			t.Fatalf("%s must be kept: %v", name, err)
		}
	}

	lock, err := lockfile.Load(root)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !lock.Known("en", "a.md") {
		t.Fatal("lock entry for a.md must be kept when only reporting")
	}
}

func TestHandleStaleRetranslateRemovesAndForgets(t *testing.T) {
	root, cfg := staleFixture(t)

	stale, err := handleStale(cfg, []string{"a.md", "b.md"}, true)
	if err != nil {
		t.Fatalf("handleStale: %v", err)
	}
	if !reflect.DeepEqual(stale, []string{"a.md"}) {
		t.Fatalf("stale = %v, want [a.md]", stale)
	}
	if _, err := os.Stat(filepath.Join(root, "a.en.md")); !os.IsNotExist(err) {
		t.Fatalf("a.en.md should be removed, stat err = %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "b.en.md")); err != nil {
		t.Fatalf("b.en.md should be kept: %v", err)
	}

	lock, err := lockfile.Load(root)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if lock.Known("en", "a.md") {
		t.Fatal("a.md should be forgotten by the saved lock file")
	}
	if !lock.Known("en", "b.md") {
		t.Fatal("b.md should still be tracked")
	}
}
