// mdtrans translates a tree of Hugo-style Markdown documents into another
// language, writing each translation next to its source.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/javierasping/Markdown-translation/batch"
	"github.com/javierasping/Markdown-translation/config"
	"github.com/javierasping/Markdown-translation/corpus"
	"github.com/javierasping/Markdown-translation/i18n"
	"github.com/javierasping/Markdown-translation/langmeta"
	"github.com/javierasping/Markdown-translation/lockfile"
	"github.com/javierasping/Markdown-translation/mdfile"
	"github.com/javierasping/Markdown-translation/outline"
	"github.com/javierasping/Markdown-translation/pipeline"
	"github.com/javierasping/Markdown-translation/settings"
	"github.com/javierasping/Markdown-translation/translate"
	"github.com/javierasping/Markdown-translation/watch"
)

// Version information (set via -ldflags during build)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// ANSI colors
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[0;31m"
	colorGreen  = "\033[0;32m"
	colorYellow = "\033[1;33m"
	colorBlue   = "\033[0;34m"
)

func logInfo(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorBlue+"[INFO]"+colorReset+" "+format+"\n", args...)
}

func logSuccess(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorGreen+"[OK]"+colorReset+" "+format+"\n", args...)
}

func logWarning(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorYellow+"[WARN]"+colorReset+" "+format+"\n", args...)
}

func logError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorRed+"[ERROR]"+colorReset+" "+format+"\n", args...)
}

// errFilesFailed makes the process exit with status 1 after the summary has
// already been printed.
var errFilesFailed = errors.New("some files could not be translated")

// ---------------------------------------------------------------------------
// Global flags
// ---------------------------------------------------------------------------

var (
	rootDir string
	uiLang  string
)

// ---------------------------------------------------------------------------
// Root command
// ---------------------------------------------------------------------------

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "mdtrans",
		Short: "Translate a Markdown content tree",
		Long: `mdtrans translates Hugo-style Markdown documents (front matter plus body)
from a source language into a target language. Each translation is written next
to its source as <name>.<target>.md; files that already have one are skipped.

Commands:
  translate   Translate every document that has no translation yet
  status      Show how much of the tree is translated
  watch       Translate, then keep translating new and changed documents
  outline     Print the category tree as YAML
  auth        Manage stored API keys
  version     Show version information

Configuration is layered: built-in defaults, .mdtrans.yaml in the root,
.env in the root, MDTRANS_* environment variables, then command-line flags.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			i18n.Init(uiLang)
		},
	}

	root.PersistentFlags().StringVar(&rootDir, "root", ".", "Content root directory")
	root.PersistentFlags().StringVar(&uiLang, "ui-lang", "", "Language of mdtrans messages (default: from LANGUAGE/LC_ALL/LANG)")

	root.AddCommand(
		newTranslateCmd(),
		newStatusCmd(),
		newWatchCmd(),
		newOutlineCmd(),
		newAuthCmd(),
		newVersionCmd(),
	)

	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if !errors.Is(err, errFilesFailed) {
			logError("%v", err)
		}
		os.Exit(1)
	}
}

// ---------------------------------------------------------------------------
// version
// ---------------------------------------------------------------------------

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Display version, commit hash, and build date.`,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("mdtrans version %s\n", version)
			fmt.Printf("  commit:    %s\n", commit)
			fmt.Printf("  built:     %s\n", date)
		},
	}
}

// ---------------------------------------------------------------------------
// Shared flags
// ---------------------------------------------------------------------------

// addConfigFlags registers the flags that override configuration values.
func addConfigFlags(fs *pflag.FlagSet) {
	fs.String("source", "", "Source language code (default es)")
	fs.String("target", "", "Target language code (default en)")
	fs.String("provider", "", "Translation provider: libretranslate, openai, gemini")
	fs.String("endpoint", "", "LibreTranslate /translate URL")
	fs.String("base-url", "", "API base URL for OpenAI-compatible servers")
	fs.String("api-key", "", "API key (or the provider's environment variable)")
	fs.String("model", "", "Model name for LLM providers")
	fs.String("proxy", "", "HTTP/HTTPS proxy URL")
	fs.Duration("timeout", 0, "Per-request timeout (default 30s)")
	fs.Int("max-retries", 0, "Retries on rate limits, 5xx and network errors (default 2)")
	fs.Int("concurrency", 0, "Files translated at once (default 1)")
	fs.Duration("request-delay", 0, "Pause between starting two files")
	fs.StringSlice("exclude", nil, "Glob patterns to skip, relative to the root (repeatable)")
	fs.Bool("repair-headings", false, "Restore heading markers the service dropped")
}

// overridesFromFlags collects the flags the user actually set.
func overridesFromFlags(fs *pflag.FlagSet) config.Overrides {
	var ov config.Overrides
	str := func(name string) *string {
		if !fs.Changed(name) {
			return nil
		}
		v, _ := fs.GetString(name)
		return &v
	}
	num := func(name string) *int {
		if !fs.Changed(name) {
			return nil
		}
		v, _ := fs.GetInt(name)
		return &v
	}
	dur := func(name string) *time.Duration {
		if !fs.Changed(name) {
			return nil
		}
		v, _ := fs.GetDuration(name)
		return &v
	}

	ov.SourceLang = str("source")
	ov.TargetLang = str("target")
	ov.Provider = str("provider")
	ov.Endpoint = str("endpoint")
	ov.BaseURL = str("base-url")
	ov.APIKey = str("api-key")
	ov.Model = str("model")
	ov.Proxy = str("proxy")
	ov.Timeout = dur("timeout")
	ov.MaxRetries = num("max-retries")
	ov.Concurrency = num("concurrency")
	ov.RequestDelay = dur("request-delay")
	if fs.Changed("exclude") {
		ov.Exclude, _ = fs.GetStringSlice("exclude")
	}
	if fs.Changed("repair-headings") {
		v, _ := fs.GetBool("repair-headings")
		ov.RepairHeadings = &v
	}
	return ov
}

// loadConfig loads the layered configuration and reports its warnings.
func loadConfig(fs *pflag.FlagSet) (config.Config, error) {
	cfg, err := config.Load(rootDir, overridesFromFlags(fs))
	if err != nil {
		return config.Config{}, err
	}
	for _, w := range cfg.Warnings() {
		logWarning("%s", w)
	}
	return cfg, nil
}

// signalContext returns a context cancelled on the first interrupt.
func signalContext(onInterrupt string) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	go func() {
		select {
		case <-sigCh:
			logWarning("%s", onInterrupt)
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}

// ---------------------------------------------------------------------------
// translate
// ---------------------------------------------------------------------------

func newTranslateCmd() *cobra.Command {
	var (
		dryRun  bool
		verbose bool
	)

	cmd := &cobra.Command{
		Use:   "translate",
		Short: "Translate every document that has no translation yet",
		Long: `Translate every Markdown document under the root that has no translation yet.

Front matter is narrowed to the fields a translation keeps (title and menu for
content documents), fenced code blocks and image lines are left untouched, and
each remaining body line is translated on its own. Lines the service cannot
translate keep their original text and are reported as warnings.

Examples:
  # Local LibreTranslate, Spanish to English
  mdtrans translate --root content

  # French, four files at once
  mdtrans translate --root content --target fr --concurrency 4

  # OpenAI-compatible server
  mdtrans translate --provider openai --model gpt-4o-mini

  # Show what would be translated
  mdtrans translate --dry-run`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd.Flags())
			if err != nil {
				return err
			}
			ctx, cancel := signalContext(i18n.T("Interrupted, finishing files in progress..."))
			defer cancel()

			sum, err := runTranslate(ctx, cfg, dryRun, verbose)
			if err != nil {
				if ctx.Err() != nil {
					logWarning("%s", i18n.T("Translation interrupted"))
					return errFilesFailed
				}
				return err
			}
			if !sum.OK() {
				return errFilesFailed
			}
			return nil
		},
	}

	addConfigFlags(cmd.Flags())
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "List the documents that would be translated")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "Enable detailed logging")

	_ = cmd.RegisterFlagCompletionFunc("provider", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return providerCompletions(), cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

// runTranslate runs one batch over cfg.Root() and prints its summary.
func runTranslate(ctx context.Context, cfg config.Config, dryRun, verbose bool) (*batch.Summary, error) {
	src, dst := langmeta.Resolve(cfg.SourceLang()), langmeta.Resolve(cfg.TargetLang())
	logInfo(i18n.T("Translating %s (%s) to %s (%s) with %s"),
		src.Native, cfg.SourceLang(), dst.Native, cfg.TargetLang(), cfg.Provider().Name)

	lock, err := lockfile.Load(cfg.Root())
	if err != nil {
		return nil, err
	}

	var onLog func(string, ...any)
	if verbose {
		onLog = logInfo
	}
	tr, client, err := batch.NewTranslator(ctx, cfg, verbose, onLog)
	if err != nil {
		return nil, err
	}

	sum, err := batch.Run(ctx, cfg, tr, batch.Options{
		Concurrency: cfg.Concurrency(),
		Delay:       cfg.RequestDelay(),
		DryRun:      dryRun,
		Lock:        lock,
		OnProgress: func(done, total int, e corpus.Entry, out *pipeline.Outcome) {
			if out == nil {
				return
			}
			if out.State == pipeline.Written {
				logInfo("  [%d/%d] %s -> %s", done, total, e.Rel, mdfile.OutputPath(e.Rel, cfg.TargetLang()))
			}
			for _, line := range warningLines(e.Rel, out) {
				logWarning("%s", line)
			}
		},
		OnLog:   onLog,
		OnError: logError,
	})
	if sum == nil {
		return nil, err
	}

	if dryRun {
		printPending(sum.Pending)
		return sum, err
	}
	printSummary(sum, client)
	return sum, err
}

// warningLines formats an outcome's warnings with the document they belong
// to, so they stay readable when documents finish out of order.
func warningLines(rel string, out *pipeline.Outcome) []string {
	if out == nil {
		return nil
	}
	lines := make([]string, 0, len(out.Warnings))
	for _, w := range out.Warnings {
		lines = append(lines, fmt.Sprintf("    %s: %v", rel, w))
	}
	return lines
}

func printPending(pending []corpus.Entry) {
	if len(pending) == 0 {
		logSuccess("%s", i18n.T("Nothing to translate"))
		return
	}
	logInfo(i18n.N("%d document would be translated:", "%d documents would be translated:", len(pending)), len(pending))
	for _, e := range pending {
		fmt.Fprintf(os.Stderr, "  %-8s %s\n", e.Kind, e.Rel)
	}
}

func printSummary(sum *batch.Summary, client *translate.Client) {
	if sum.Discovered == 0 {
		logSuccess("%s", i18n.T("Nothing to translate"))
		return
	}
	logInfo(i18n.N("%d document translated", "%d documents translated", sum.Translated), sum.Translated)
	logInfo(i18n.N("%d translation request, %d sent to the service", "%d translation requests, %d sent to the service", sum.Requests),
		sum.Requests, client.Calls())
	if sum.Warnings > 0 {
		logWarning(i18n.N("%d line or field kept in the source language", "%d lines or fields kept in the source language", sum.Warnings), sum.Warnings)
	}
	for _, f := range sum.Failed {
		logError("%s: %v", f.Path, f.Err)
	}
	if sum.OK() {
		logSuccess("%s", i18n.T("Translation complete!"))
	} else {
		logError(i18n.N("%d document failed", "%d documents failed", len(sum.Failed)), len(sum.Failed))
	}
}

// ---------------------------------------------------------------------------
// status
// ---------------------------------------------------------------------------

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show how much of the tree is translated",
		Long: `Count source documents, existing translations, pending documents and stale
translations (sources edited after they were translated). Does not contact the
translation service or modify any files.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd.Flags())
			if err != nil {
				return err
			}
			return runStatus(cfg)
		},
	}
	addConfigFlags(cmd.Flags())
	return cmd
}

func runStatus(cfg config.Config) error {
	lock, err := lockfile.Load(cfg.Root())
	if err != nil {
		return err
	}
	rep, err := batch.Inspect(cfg, lock)
	if err != nil {
		return err
	}

	dst := langmeta.Resolve(cfg.TargetLang())
	fmt.Fprintf(os.Stderr, "\n%s%s%s\n", colorBlue, i18n.T("Translation Status"), colorReset)
	fmt.Fprintln(os.Stderr, strings.Repeat("─", 60))
	fmt.Fprintf(os.Stderr, "  %-14s %s\n", i18n.T("Root:"), cfg.Root())
	fmt.Fprintf(os.Stderr, "  %-14s %s (%s)\n", i18n.T("Target:"), dst.Native, cfg.TargetLang())
	fmt.Fprintf(os.Stderr, "  %-14s %s\n", i18n.T("Provider:"), cfg.Provider().Name)
	fmt.Fprintln(os.Stderr)
	fmt.Fprintf(os.Stderr, "  %-14s %d\n", i18n.T("Sources:"), rep.Sources)
	fmt.Fprintf(os.Stderr, "  %-14s %s\n", i18n.T("Translated:"), progressCell(rep.Translated, rep.Sources))
	fmt.Fprintf(os.Stderr, "  %-14s %d\n", i18n.T("Pending:"), len(rep.Pending))
	for _, rel := range rep.Pending {
		fmt.Fprintf(os.Stderr, "    %s\n", rel)
	}
	if len(rep.Stale) > 0 {
		fmt.Fprintf(os.Stderr, "  %s%-14s %d%s\n", colorYellow, i18n.T("Stale:"), len(rep.Stale), colorReset)
		for _, rel := range rep.Stale {
			fmt.Fprintf(os.Stderr, "    %s\n", rel)
		}
	}
	if len(rep.Untracked) > 0 {
		fmt.Fprintf(os.Stderr, "  %-14s %d\n", i18n.T("Untracked:"), len(rep.Untracked))
	}
	if targets, _ := lock.Stats(); targets > 0 {
		fmt.Fprintf(os.Stderr, "  %-14s %s\n", i18n.T("Lock file:"), lock.Summary())
	}
	fmt.Fprintln(os.Stderr)
	return nil
}

// progressCell renders done/total with a colored percentage.
func progressCell(done, total int) string {
	percent := 100
	if total > 0 {
		percent = done * 100 / total
	}
	color := colorRed
	switch {
	case percent >= 100:
		color = colorGreen
	case percent >= 50:
		color = colorYellow
	}
	return fmt.Sprintf("%d/%d %s%3d%%%s", done, total, color, percent, colorReset)
}

// ---------------------------------------------------------------------------
// watch
// ---------------------------------------------------------------------------

func newWatchCmd() *cobra.Command {
	var (
		debounce         time.Duration
		verbose          bool
		retranslateStale bool
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Translate, then keep translating new and changed documents",
		Long: `Run a translation batch, then watch the root and run another batch whenever
a source document is created or saved. Stop with Ctrl+C.

Existing translations are never overwritten. A source edited after it was
translated is reported as stale; with --retranslate-stale its translation is
removed and the next batch writes a new one.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd.Flags())
			if err != nil {
				return err
			}
			ctx, cancel := signalContext(i18n.T("Stopping watcher..."))
			defer cancel()
			return runWatch(ctx, cfg, debounce, verbose, retranslateStale)
		},
	}

	addConfigFlags(cmd.Flags())
	cmd.Flags().DurationVar(&debounce, "debounce", watch.DefaultDebounce, "Quiet period before a batch starts")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "Enable detailed logging")
	cmd.Flags().BoolVar(&retranslateStale, "retranslate-stale", false, "Replace the translation of a source edited after it was translated")
	return cmd
}

func runWatch(ctx context.Context, cfg config.Config, debounce time.Duration, verbose, retranslateStale bool) error {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	w, err := watch.New(cfg.Root(), watch.Options{
		Target:   cfg.TargetLang(),
		Exclude:  cfg.Exclude(),
		Debounce: debounce,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	if _, err := runTranslate(ctx, cfg, false, verbose); err != nil && ctx.Err() == nil {
		logError("%v", err)
	}
	logInfo(i18n.T("Watching %s for changes"), cfg.Root())

	return w.Run(ctx, func(ctx context.Context, changed []string) {
		logger.Info("sources changed", "files", changed)
		if _, err := handleStale(cfg, changed, retranslateStale); err != nil {
			logError("%v", err)
		}
		if _, err := runTranslate(ctx, cfg, false, verbose); err != nil && ctx.Err() == nil {
			logError("%v", err)
		}
	})
}

// handleStale returns the changed sources whose translation predates their
// last edit. Without retranslate they are only reported. With it their
// translations are removed and forgotten by the lock file, so the next batch
// writes them again.
func handleStale(cfg config.Config, changed []string, retranslate bool) ([]string, error) {
	lock, err := lockfile.Load(cfg.Root())
	if err != nil {
		return nil, err
	}
	sources, err := corpus.Sources(cfg.Root(), cfg.TargetLang(), cfg.Exclude())
	if err != nil {
		return nil, err
	}
	want := make(map[string]bool, len(changed))
	for _, rel := range changed {
		want[rel] = true
	}

	var stale []string
	for _, e := range sources {
		if !want[e.Rel] || !e.Exists() {
			continue
		}
		data, err := os.ReadFile(e.Path)
		if err != nil {
			continue
		}
		if !lock.IsStale(cfg.TargetLang(), e.Rel, data) {
			continue
		}
		stale = append(stale, e.Rel)
		if !retranslate {
			logWarning(i18n.T("%s changed after it was translated (use --retranslate-stale to replace %s)"), e.Rel, mdfile.OutputPath(e.Rel, cfg.TargetLang()))
			continue
		}
		logInfo(i18n.T("%s changed, retranslating"), e.Rel)
		if err := os.Remove(e.Output); err != nil && !os.IsNotExist(err) {
			return stale, err
		}
		lock.Forget(cfg.TargetLang(), e.Rel)
	}

	if retranslate && len(stale) > 0 {
		if err := lock.Save(); err != nil {
			return stale, err
		}
	}
	return stale, nil
}

// ---------------------------------------------------------------------------
// outline
// ---------------------------------------------------------------------------

func newOutlineCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "outline [dir]",
		Short: "Print the category tree as YAML",
		Long: `Build the category tree of a content directory: one category per top-level
directory (titled by its _index.md sidebar name) with the subdirectories whose
_index.md declares a title and an identifier as children.

Examples:
  mdtrans outline content/posts
  mdtrans outline content/posts -o outline.yaml`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := rootDir
			if len(args) == 1 {
				dir = args[0]
			}
			return runOutline(dir, output)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to a file instead of stdout")
	return cmd
}

func runOutline(dir, output string) error {
	o, err := outline.Build(dir)
	if err != nil {
		return err
	}
	if output == "" {
		return o.Encode(os.Stdout)
	}

	var sb strings.Builder
	if err := o.Encode(&sb); err != nil {
		return err
	}
	if err := corpus.WriteFileAtomic(output, []byte(sb.String()), 0o644); err != nil {
		return err
	}
	logSuccess(i18n.T("Outline written to %s"), output)
	return nil
}

// ---------------------------------------------------------------------------
// auth
// ---------------------------------------------------------------------------

// allProviders is the ordered provider list shown by auth and completions.
var allProviders = []struct {
	id   string
	desc string
}{
	{translate.ProviderLibreTranslate, "LibreTranslate server, key optional"},
	{translate.ProviderOpenAI, "OpenAI or any OpenAI-compatible server"},
	{translate.ProviderGemini, "Google Gemini API"},
}

func providerCompletions() []string {
	out := make([]string, 0, len(allProviders))
	for _, p := range allProviders {
		out = append(out, p.id+"\t"+p.desc)
	}
	return out
}

func knownProvider(id string) bool {
	for _, p := range allProviders {
		if p.id == id {
			return true
		}
	}
	return false
}

func newAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage stored API keys",
		Long: `Manage API keys and endpoints stored in the user data directory.

A key passed with --api-key or set in the provider's environment variable
(OPENAI_API_KEY, GEMINI_API_KEY, LIBRETRANSLATE_API_KEY) takes precedence
over a stored one.

Examples:
  mdtrans auth set --provider openai --key sk-...
  mdtrans auth set --provider libretranslate --base-url https://lt.example.com/translate
  mdtrans auth list
  mdtrans auth remove --provider openai
  mdtrans auth remove`,
	}

	cmd.AddCommand(
		newAuthSetCmd(),
		newAuthListCmd(),
		newAuthRemoveCmd(),
	)
	return cmd
}

func newAuthSetCmd() *cobra.Command {
	var provider, key, baseURL string

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Store an API key and/or endpoint for a provider",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !knownProvider(provider) {
				return fmt.Errorf(i18n.T("unknown provider %q"), provider)
			}
			if key == "" && baseURL == "" {
				return errors.New(i18n.T("nothing to store: pass --key and/or --base-url"))
			}
			if err := settings.SetAPIKey(provider, key, baseURL); err != nil {
				return err
			}
			logSuccess(i18n.T("Credentials for %s saved to %s"), provider, settings.FilePath())
			return nil
		},
	}

	cmd.Flags().StringVar(&provider, "provider", "", "Provider ID (required)")
	cmd.Flags().StringVar(&key, "key", "", "API key")
	cmd.Flags().StringVar(&baseURL, "base-url", "", "Endpoint or API base URL")
	_ = cmd.MarkFlagRequired("provider")
	_ = cmd.RegisterFlagCompletionFunc("provider", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return providerCompletions(), cobra.ShellCompDirectiveNoFileComp
	})
	return cmd
}

func newAuthListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "Show stored credentials",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(os.Stderr, "\n%s%s%s\n", colorBlue, i18n.T("Stored Credentials"), colorReset)
			fmt.Fprintln(os.Stderr, strings.Repeat("─", 60))
			for _, p := range allProviders {
				key := settings.GetAPIKey(p.id)
				url := settings.GetBaseURL(p.id)
				switch {
				case key != "":
					fmt.Fprintf(os.Stderr, "  %-16s %s%s%s (key: %s)\n", p.id, colorGreen, i18n.T("configured"), colorReset, settings.MaskKey(key))
				case url != "":
					fmt.Fprintf(os.Stderr, "  %-16s %s%s%s (%s)\n", p.id, colorGreen, i18n.T("configured"), colorReset, i18n.T("no key"))
				default:
					fmt.Fprintf(os.Stderr, "  %-16s %s%s%s\n", p.id, colorRed, i18n.T("not configured"), colorReset)
				}
				if url != "" {
					fmt.Fprintf(os.Stderr, "  %16s endpoint: %s\n", "", url)
				}
			}

			for _, id := range unknownStoredProviders() {
				fmt.Fprintf(os.Stderr, "  %-16s %s%s%s\n", id, colorYellow, i18n.T("unknown provider (remove with: mdtrans auth remove --provider ID)"), colorReset)
			}

			fmt.Fprintf(os.Stderr, "\n  %s%s%s\n", colorYellow, i18n.T("Environment Variables"), colorReset)
			for _, p := range allProviders {
				env := settings.EnvVarForProvider(p.id)
				if v := os.Getenv(env); v != "" {
					fmt.Fprintf(os.Stderr, "  %-24s %s%s%s\n", env, colorGreen, settings.MaskKey(v), colorReset)
				} else {
					fmt.Fprintf(os.Stderr, "  %-24s %s%s%s\n", env, colorRed, i18n.T("not set"), colorReset)
				}
			}
			fmt.Fprintln(os.Stderr)
		},
	}
}

// unknownStoredProviders returns stored credential entries that no
// provider of this build uses.
func unknownStoredProviders() []string {
	var ids []string
	for _, id := range settings.Providers() {
		if !knownProvider(id) {
			ids = append(ids, id)
		}
	}
	return ids
}

func newAuthRemoveCmd() *cobra.Command {
	var provider string

	cmd := &cobra.Command{
		Use:     "remove",
		Aliases: []string{"logout"},
		Short:   "Remove stored credentials (default: all)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if provider == "" {
				if err := settings.RemoveAll(); err != nil {
					return err
				}
				logSuccess("%s", i18n.T("All stored credentials removed"))
				return nil
			}
			if !knownProvider(provider) && !slices.Contains(settings.Providers(), provider) {
				return fmt.Errorf(i18n.T("unknown provider %q"), provider)
			}
			if err := settings.Remove(provider); err != nil {
				return err
			}
			logSuccess(i18n.T("Credentials for %s removed"), provider)
			return nil
		},
	}

	cmd.Flags().StringVar(&provider, "provider", "", "Provider to remove (default: all)")
	_ = cmd.RegisterFlagCompletionFunc("provider", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return providerCompletions(), cobra.ShellCompDirectiveNoFileComp
	})
	return cmd
}
