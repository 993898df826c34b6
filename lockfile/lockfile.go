// Package lockfile implements .mdtrans.lock, a ledger of MD5 checksums of
// the source documents that have been translated, per target language.
// It lets `status` report translations whose source changed after they
// were written, without touching the network.
//
// The lock file lives in the corpus root.
package lockfile

import (
	"crypto/md5"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/javierasping/Markdown-translation/corpus"
)

// LockFileName is the default lock file name.
const LockFileName = ".mdtrans.lock"

// Version is the lock file format version.
const Version = 1

// ---------------------------------------------------------------------------
// Types
// ---------------------------------------------------------------------------

// LockFile represents the .mdtrans.lock file structure.
type LockFile struct {
	Version   int                          `yaml:"version"`
	Checksums map[string]map[string]string `yaml:"checksums"` // target lang -> source rel path -> md5

	mu   sync.Mutex `yaml:"-"`
	path string     `yaml:"-"`
}

// New returns an empty lock file that will be saved in dir.
func New(dir string) *LockFile {
	return &LockFile{
		Version:   Version,
		Checksums: make(map[string]map[string]string),
		path:      filepath.Join(dir, LockFileName),
	}
}

// ---------------------------------------------------------------------------
// Loading and saving
// ---------------------------------------------------------------------------

// Load reads the lock file from dir.
// Returns an empty lock file if the file doesn't exist.
func Load(dir string) (*LockFile, error) {
	lf := New(dir)

	data, err := os.ReadFile(lf.path)
	if err != nil {
		if os.IsNotExist(err) {
			return lf, nil
		}
		return nil, fmt.Errorf("reading %s: %w", lf.path, err)
	}

	if err := yaml.Unmarshal(data, lf); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", lf.path, err)
	}
	if lf.Version > Version {
		return nil, fmt.Errorf("%s: unsupported version %d", lf.path, lf.Version)
	}
	if lf.Checksums == nil {
		lf.Checksums = make(map[string]map[string]string)
	}

	return lf, nil
}

// Save writes the lock file to disk atomically.
func (lf *LockFile) Save() error {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	if lf.path == "" {
		return fmt.Errorf("lock file path not set")
	}

	data, err := yaml.Marshal(lf)
	if err != nil {
		return fmt.Errorf("marshaling lock file: %w", err)
	}

	if err := corpus.WriteFileAtomic(lf.path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", lf.path, err)
	}

	return nil
}

// Path returns the lock file path.
func (lf *LockFile) Path() string {
	return lf.path
}

// ---------------------------------------------------------------------------
// Checksum operations
// ---------------------------------------------------------------------------

// Hash computes the MD5 hex digest of data.
func Hash(data []byte) string {
	return fmt.Sprintf("%x", md5.Sum(data))
}

// DocumentKey normalises a source path relative to the corpus root.
func DocumentKey(rel string) string {
	return filepath.ToSlash(rel)
}

// Record stores the checksum of a source document after its translation
// into target was written.
func (lf *LockFile) Record(target, rel string, source []byte) {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	if lf.Checksums[target] == nil {
		lf.Checksums[target] = make(map[string]string)
	}
	lf.Checksums[target][DocumentKey(rel)] = Hash(source)
}

// Known reports whether a checksum was ever recorded for rel.
func (lf *LockFile) Known(target, rel string) bool {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	_, ok := lf.Checksums[target][DocumentKey(rel)]
	return ok
}

// IsStale reports whether a recorded source has changed since its
// translation was written. Untracked documents are never stale.
func (lf *LockFile) IsStale(target, rel string, source []byte) bool {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	old, ok := lf.Checksums[target][DocumentKey(rel)]
	if !ok {
		return false
	}
	return old != Hash(source)
}

// Clean removes entries for documents no longer present in the corpus and
// returns how many were removed.
func (lf *LockFile) Clean(target string, currentRels []string) int {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	existing := lf.Checksums[target]
	if existing == nil {
		return 0
	}

	valid := make(map[string]bool, len(currentRels))
	for _, k := range currentRels {
		valid[DocumentKey(k)] = true
	}

	removed := 0
	for k := range existing {
		if !valid[k] {
			delete(existing, k)
			removed++
		}
	}
	return removed
}

// Forget drops the entry for rel, e.g. after its translation was removed.
func (lf *LockFile) Forget(target, rel string) {
	lf.mu.Lock()
	defer lf.mu.Unlock()
	delete(lf.Checksums[target], DocumentKey(rel))
}

// ---------------------------------------------------------------------------
// Stats
// ---------------------------------------------------------------------------

// Stats returns the number of target languages and tracked documents.
func (lf *LockFile) Stats() (targets, docs int) {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	targets = len(lf.Checksums)
	for _, m := range lf.Checksums {
		docs += len(m)
	}
	return
}

// Targets returns the sorted target languages.
func (lf *LockFile) Targets() []string {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	targets := make([]string, 0, len(lf.Checksums))
	for t := range lf.Checksums {
		targets = append(targets, t)
	}
	sort.Strings(targets)
	return targets
}

// Summary returns a human-readable summary string.
func (lf *LockFile) Summary() string {
	targets, docs := lf.Stats()
	if targets == 0 {
		return "empty"
	}

	var parts []string
	for _, t := range lf.Targets() {
		lf.mu.Lock()
		n := len(lf.Checksums[t])
		lf.mu.Unlock()
		parts = append(parts, fmt.Sprintf("%s: %d", t, n))
	}
	return fmt.Sprintf("%d languages, %d documents (%s)", targets, docs, strings.Join(parts, ", "))
}
