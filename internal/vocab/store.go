// Package vocab implements the persistent vocabulary of canonical field
// labels. The backing store is a JSON file with a "standardized_field_labels"
// list plus an optional metadata block; labels accumulate across runs and are
// never removed automatically.
package vocab

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"
)

// ErrDuplicateLabel is returned by Insert when the label is already present,
// including labels inserted earlier in the same process run.
var ErrDuplicateLabel = errors.New("label already exists in vocabulary")

// labelsKey is the list field of the backing JSON document.
const labelsKey = "standardized_field_labels"

// Match is one fuzzy-search hit.
type Match struct {
	Label      string `json:"label"`
	Similarity int    `json:"similarity"`
}

// Store holds the vocabulary in memory and knows how to persist it back to
// its backing file. All mutation funnels through Insert and Persist; a single
// writer lock serializes concurrent access from parallel documents.
type Store struct {
	path   string
	mu     sync.RWMutex
	labels map[string]struct{}
}

// Load reads the vocabulary from path. A missing or corrupt backing file is
// recovered by starting with an empty vocabulary; loading never fails, since
// an unreadable vocabulary must not abort the pipeline.
func Load(path string) *Store {
	s := &Store{
		path:   path,
		labels: make(map[string]struct{}),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		log.Printf("[vocab] no vocabulary at %s, starting empty: %v", path, err)
		return s
	}

	var doc struct {
		Labels []string `json:"standardized_field_labels"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		log.Printf("[vocab] corrupt vocabulary at %s, starting empty: %v", path, err)
		return s
	}

	for _, l := range doc.Labels {
		s.labels[l] = struct{}{}
	}
	log.Printf("[vocab] loaded %d labels from %s", len(s.labels), path)
	return s
}

// Path returns the location of the backing JSON file.
func (s *Store) Path() string {
	return s.path
}

// Len returns the number of labels currently in the vocabulary.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.labels)
}

// Exists reports whether label is present in the vocabulary.
func (s *Store) Exists(label string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.labels[label]
	return ok
}

// Labels returns the vocabulary as a sorted slice.
func (s *Store) Labels() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedLocked()
}

func (s *Store) sortedLocked() []string {
	out := make([]string, 0, len(s.labels))
	for l := range s.labels {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

// FuzzySearch returns up to limit labels ordered by descending similarity to
// query, ties broken lexically. An empty vocabulary yields an empty list.
func (s *Store) FuzzySearch(query string, limit int) []Match {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := make([]Match, 0, len(s.labels))
	for l := range s.labels {
		matches = append(matches, Match{Label: l, Similarity: Similarity(query, l)})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Similarity != matches[j].Similarity {
			return matches[i].Similarity > matches[j].Similarity
		}
		return matches[i].Label < matches[j].Label
	})

	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}

var digits = regexp.MustCompile(`[0-9]`)

// alnumCore strips underscores and digits so that numbered variants of the
// same base compare equal.
func alnumCore(s string) string {
	return digits.ReplaceAllString(strings.ReplaceAll(s, "_", ""), "")
}

// NumberedVariants returns every vocabulary entry that shares base's
// alphanumeric core and contains at least one digit. This surfaces patterns
// like previous_marriage_1_when when deciding how to number a new sibling.
func (s *Store) NumberedVariants(base string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	core := alnumCore(base)
	if core == "" {
		return nil
	}

	var out []string
	for l := range s.labels {
		if !digits.MatchString(l) {
			continue
		}
		if alnumCore(l) == core {
			out = append(out, l)
		}
	}
	sort.Strings(out)
	return out
}

// Insert adds label to the vocabulary. It fails with ErrDuplicateLabel when
// the label is already present.
func (s *Store) Insert(label string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.labels[label]; ok {
		return fmt.Errorf("insert %q: %w", label, ErrDuplicateLabel)
	}
	s.labels[label] = struct{}{}
	return nil
}

// Persist atomically rewrites the backing file with the current sorted,
// deduplicated label set. Sibling fields of the backing document are merged
// rather than overwritten: unknown top-level keys survive untouched, and an
// existing metadata block keeps its unrecognized entries while total_labels
// and last_modified are refreshed.
func (s *Store) Persist() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := make(map[string]json.RawMessage)
	if data, err := os.ReadFile(s.path); err == nil {
		// Best effort; a corrupt file is replaced wholesale.
		_ = json.Unmarshal(data, &doc)
	}

	labelsJSON, err := json.Marshal(s.sortedLocked())
	if err != nil {
		return fmt.Errorf("marshal labels: %w", err)
	}
	doc[labelsKey] = labelsJSON

	if rawMeta, ok := doc["metadata"]; ok {
		meta := make(map[string]any)
		if err := json.Unmarshal(rawMeta, &meta); err == nil {
			meta["total_labels"] = len(s.labels)
			meta["last_modified"] = time.Now().UTC().Format(time.RFC3339)
			if merged, err := json.Marshal(meta); err == nil {
				doc["metadata"] = merged
			}
		}
	}

	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal vocabulary: %w", err)
	}

	return atomicWrite(s.path, out)
}

// atomicWrite writes data to a temp file in the target directory and renames
// it into place so readers never observe a partial vocabulary.
func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create vocabulary directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".vocab-*.json")
	if err != nil {
		return fmt.Errorf("create temp vocabulary: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp vocabulary: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp vocabulary: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace vocabulary: %w", err)
	}
	return nil
}
