// Package protectedwords persists the glossary of words excluded from conversion.
package protectedwords

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/text/unicode/norm"

	"textcorrector/pkg/segment"
)

var (
	// ErrDuplicate is returned when adding a word that is already stored.
	ErrDuplicate = errors.New("protected word already exists")
	// ErrNotFound is returned when removing a word that is not stored.
	ErrNotFound = errors.New("protected word not found")
)

// legacyFile is the older on-disk layout.
type legacyFile struct {
	ProtectedWords []string `json:"protected_words"`
}

// Store holds an ordered list of protected words backed by a JSON file.
// It is safe for concurrent use; correction runs read it through Snapshot.
type Store struct {
	mu    sync.RWMutex
	path  string
	words []string
}

// NewStore returns an empty store bound to path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Open loads the store at path. A missing file yields an empty store.
func Open(path string) (*Store, error) {
	s := NewStore(path)
	if err := s.Load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the backing file.
func (s *Store) Path() string { return s.path }

// Load replaces the in-memory list with the file contents.
func (s *Store) Load() error {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		s.mu.Lock()
		s.words = nil
		s.mu.Unlock()
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read protected words: %w", err)
	}

	words, err := Decode(data)
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", filepath.Base(s.path), err)
	}

	s.mu.Lock()
	s.words = words
	s.mu.Unlock()
	return nil
}

// Save writes the list as an indented JSON array.
func (s *Store) Save() error {
	s.mu.RLock()
	data, err := Encode(s.words)
	s.mu.RUnlock()
	if err != nil {
		return err
	}

	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create protected words dir: %w", err)
		}
	}
	if err := os.WriteFile(s.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write protected words: %w", err)
	}
	return nil
}

// Add appends word after trimming and NFC normalisation.
func (s *Store) Add(word string) error {
	w, err := normalize(word)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.words {
		if existing == w {
			return fmt.Errorf("%w: %s", ErrDuplicate, w)
		}
	}
	s.words = append(s.words, w)
	return nil
}

// Remove deletes word from the list.
func (s *Store) Remove(word string) error {
	w := norm.NFC.String(strings.TrimSpace(word))

	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.words {
		if existing == w {
			s.words = append(s.words[:i:i], s.words[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrNotFound, w)
}

// Contains reports whether word is stored.
func (s *Store) Contains(word string) bool {
	w := norm.NFC.String(strings.TrimSpace(word))
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, existing := range s.words {
		if existing == w {
			return true
		}
	}
	return false
}

// Snapshot returns a copy of the list for one correction run.
func (s *Store) Snapshot() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.words))
	copy(out, s.words)
	return out
}

// Len returns the number of stored words.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.words)
}

// Import replaces the list with the JSON read from r.
func (s *Store) Import(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read import: %w", err)
	}
	words, err := Decode(data)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.words = words
	s.mu.Unlock()
	return nil
}

// Export writes the list as JSON to w.
func (s *Store) Export(w io.Writer) error {
	s.mu.RLock()
	data, err := Encode(s.words)
	s.mu.RUnlock()
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// Decode parses a JSON array of words, or the legacy object form.
// Entries are trimmed, normalised and deduplicated; an empty entry is an
// invalid argument.
func Decode(data []byte) ([]string, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}

	var raw []string
	switch data[0] {
	case '[':
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("protected words must be a JSON array of strings: %w", err)
		}
	case '{':
		var legacy legacyFile
		if err := json.Unmarshal(data, &legacy); err != nil {
			return nil, fmt.Errorf("invalid legacy protected words object: %w", err)
		}
		raw = legacy.ProtectedWords
	default:
		return nil, fmt.Errorf("%w: protected words must be a JSON array", segment.ErrInvalidArgument)
	}

	words := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for i, r := range raw {
		w, err := normalize(r)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		words = append(words, w)
	}
	return words, nil
}

// Encode renders words as a 4-space indented JSON array without HTML escaping.
func Encode(words []string) ([]byte, error) {
	if words == nil {
		words = []string{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(words); err != nil {
		return nil, fmt.Errorf("failed to marshal protected words: %w", err)
	}
	return buf.Bytes(), nil
}

func normalize(word string) (string, error) {
	w := norm.NFC.String(strings.TrimSpace(word))
	if w == "" {
		return "", fmt.Errorf("%w: protected word is empty", segment.ErrInvalidArgument)
	}
	return w, nil
}
