// Package manifest remembers, per file, the stat fingerprint and policy
// signature under which the file was last found optimal, so repeated runs
// can skip files that have not changed.
package manifest

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/agilira/go-errors"
	"github.com/rm-hull/png-optimizer/internal/atomicfile"
	"github.com/rm-hull/png-optimizer/internal/policy"
	"golang.org/x/text/unicode/norm"
)

const DefaultPath = ".png-opt-manifest.json"

const ErrCodeManifest = "PNGOPT_MANIFEST"

// Entry is the fingerprint recorded for one file. Fields are declared in
// key order so the encoded document is sorted throughout.
type Entry struct {
	ModificationTimeNanos int64  `json:"modificationTimeNanos"`
	Signature             string `json:"signature"`
	Size                  int64  `json:"size"`
}

type Manifest struct {
	Files           map[string]Entry `json:"files"`
	PolicySignature string           `json:"policySignature"`
	Version         string           `json:"version"`

	mu sync.Mutex
}

func New() *Manifest {
	return &Manifest{
		Files:   make(map[string]Entry),
		Version: policy.Version,
	}
}

// ComputeSignature digests every tunable parameter together with the
// format-version tag. Any parameter change yields a different signature.
func ComputeSignature(p policy.Policy) string {
	sum := sha256.Sum256([]byte(p.String()))
	return hex.EncodeToString(sum[:])
}

// Refresh stamps the manifest with the current format version and policy
// signature. Entries recorded under another signature are kept; they simply
// stop matching until they are overwritten.
func (m *Manifest) Refresh(signature string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Version = policy.Version
	m.PolicySignature = signature
}

// IsSkippable is true only when force is off and the stored entry matches
// the current size, modification time and signature exactly.
func (m *Manifest) IsSkippable(key string, size, modTimeNanos int64, signature string, force bool) bool {
	if force {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.Files[key]
	return ok &&
		entry.Size == size &&
		entry.ModificationTimeNanos == modTimeNanos &&
		entry.Signature == signature
}

// RecordSuccess upserts the entry for key.
func (m *Manifest) RecordSuccess(key string, size, modTimeNanos int64, signature string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Files[key] = Entry{
		ModificationTimeNanos: modTimeNanos,
		Signature:             signature,
		Size:                  size,
	}
}

func (m *Manifest) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Files)
}

// Marshal encodes the manifest deterministically: two-space indent, sorted
// keys and a trailing newline.
func (m *Manifest) Marshal() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// Key normalises path into a manifest key: relative to base when the file
// lives below it (absolute otherwise), forward slashes, Unicode NFC.
func Key(base, path string) string {
	key := path
	if abs, err := filepath.Abs(path); err == nil {
		key = abs
		if rel, err := filepath.Rel(base, abs); err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			key = rel
		}
	}
	return norm.NFC.String(filepath.ToSlash(key))
}

// Store loads and persists a manifest file. A read-only store never touches
// the file on disk, which is how dry runs are kept side-effect free.
type Store struct {
	path     string
	readOnly bool
}

func NewStore(path string, readOnly bool) *Store {
	return &Store{path: path, readOnly: readOnly}
}

func (s *Store) Path() string {
	return s.path
}

// Load never fails: a missing file gives an empty manifest and an
// unreadable or corrupt one is logged and likewise replaced by an empty
// manifest, which just means every target gets re-checked.
func (s *Store) Load() *Manifest {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("warning: failed to read manifest %s, re-checking all files: %v", s.path, err)
		}
		return New()
	}

	m := New()
	if err := json.Unmarshal(data, m); err != nil {
		log.Printf("warning: failed to parse manifest %s, re-checking all files: %v", s.path, err)
		return New()
	}
	if m.Files == nil {
		m.Files = make(map[string]Entry)
	}
	if m.Version == "" {
		m.Version = policy.Version
	}
	return m
}

func (s *Store) Persist(m *Manifest) error {
	if s.readOnly {
		return nil
	}

	data, err := m.Marshal()
	if err != nil {
		return errors.Wrap(err, ErrCodeManifest, "failed to encode manifest").
			WithContext("path", s.path)
	}
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrap(err, ErrCodeManifest, "failed to create manifest directory").
				WithContext("path", s.path)
		}
	}
	if err := atomicfile.WriteFile(s.path, data); err != nil {
		return errors.Wrap(err, ErrCodeManifest, "failed to persist manifest").
			WithContext("path", s.path)
	}
	return nil
}
