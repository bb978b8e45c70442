// Package pipeline runs the four document stages end to end: unlock the
// form, extract its fields, decide standardized labels, and rewrite the form
// dictionary. Documents are independent; one failure never stops the batch.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ankitmukherjee01/form-pre-processor/internal/fields"
	"github.com/ankitmukherjee01/form-pre-processor/internal/match"
	"github.com/ankitmukherjee01/form-pre-processor/internal/pdfform"
	"github.com/ankitmukherjee01/form-pre-processor/internal/vocab"
)

// Options configures a batch run.
type Options struct {
	InputDir     string
	UnlockedDir  string
	OutputDir    string
	DecisionsDir string
	Workers      int
	// SkipProcessed leaves documents alone when their output already exists.
	SkipProcessed bool
	DetectHints   bool
}

// Runner orchestrates the batch. The stage functions default to the real
// PDF adapters and are swappable for tests.
type Runner struct {
	store  *vocab.Store
	engine *match.Engine
	opts   Options

	unlock  func(in, out string) (pdfform.UnlockResult, error)
	extract func(path string) ([]fields.RawField, error)
	apply   func(in, out string, renames map[string]string) (pdfform.ApplyResult, error)
}

// NewRunner builds a runner over a vocabulary store and decision engine.
func NewRunner(store *vocab.Store, engine *match.Engine, opts Options) *Runner {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	extractor := pdfform.NewExtractor(opts.DetectHints)
	return &Runner{
		store:   store,
		engine:  engine,
		opts:    opts,
		unlock:  pdfform.Unlock,
		extract: extractor.ExtractFile,
		apply:   pdfform.Apply,
	}
}

// DocumentResult is the outcome for one input file.
type DocumentResult struct {
	Name       string        `json:"name"`
	Skipped    bool          `json:"skipped,omitempty"`
	NoFields   bool          `json:"no_fields,omitempty"`
	Fields     int           `json:"fields,omitempty"`
	Renamed    int           `json:"renamed,omitempty"`
	Unmatched  int           `json:"unmatched,omitempty"`
	Collisions []string      `json:"collisions,omitempty"`
	Err        string        `json:"error,omitempty"`
	Elapsed    time.Duration `json:"-"`
}

// Summary aggregates a whole run.
type Summary struct {
	Processed  int
	Skipped    int
	Failed     int
	NoFields   int
	Fields     int
	Renamed    int
	Collisions []string
	Documents  []DocumentResult
	Elapsed    time.Duration
}

// Run processes every PDF in the input directory. The returned error is
// non-nil only for setup problems or cancellation; per-document failures are
// reported in the summary.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	inputs, err := listPDFs(r.opts.InputDir)
	if err != nil {
		return nil, err
	}
	if len(inputs) == 0 {
		return nil, fmt.Errorf("no PDF files found in %s", r.opts.InputDir)
	}

	for _, dir := range []string{r.opts.UnlockedDir, r.opts.OutputDir, r.opts.DecisionsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	start := time.Now()
	summary := &Summary{}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Workers)
	for _, name := range inputs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			result := r.processDocument(gctx, name, filepath.Join(r.opts.InputDir, name))

			mu.Lock()
			summary.Documents = append(summary.Documents, result)
			switch {
			case result.Skipped:
				summary.Skipped++
			case result.Err != "":
				summary.Failed++
			case result.NoFields:
				summary.NoFields++
			default:
				summary.Processed++
				summary.Fields += result.Fields
				summary.Renamed += result.Renamed
				summary.Collisions = append(summary.Collisions, result.Collisions...)
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return summary, err
	}

	sort.Slice(summary.Documents, func(i, j int) bool {
		return summary.Documents[i].Name < summary.Documents[j].Name
	})
	summary.Elapsed = time.Since(start)
	return summary, nil
}

// ProcessFile runs a single document, which may live outside the input
// directory, through all four stages. Intermediate and output files use the
// configured directories.
func (r *Runner) ProcessFile(ctx context.Context, pdfPath string) (DocumentResult, error) {
	for _, dir := range []string{r.opts.UnlockedDir, r.opts.OutputDir, r.opts.DecisionsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return DocumentResult{}, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return r.processDocument(ctx, filepath.Base(pdfPath), pdfPath), nil
}

// processDocument runs one document through all four stages. All failures
// are captured in the result.
func (r *Runner) processDocument(ctx context.Context, name, inPath string) DocumentResult {
	start := time.Now()
	result := DocumentResult{Name: name}
	defer func() { result.Elapsed = time.Since(start) }()

	outPath := filepath.Join(r.opts.OutputDir, name)
	if r.opts.SkipProcessed {
		if _, err := os.Stat(outPath); err == nil {
			log.Printf("[pipeline] %s: output exists, skipping", name)
			result.Skipped = true
			return result
		}
	}

	unlockedPath := filepath.Join(r.opts.UnlockedDir, name)
	unlockRes, err := r.unlock(inPath, unlockedPath)
	if err != nil {
		result.Err = fmt.Sprintf("unlock: %v", err)
		log.Printf("[pipeline] %s: %s", name, result.Err)
		return result
	}
	if unlockRes.Changed() {
		log.Printf("[pipeline] %s: unlocked (perms=%t xfa=%t sigflags=%t fields=%d)",
			name, unlockRes.RemovedPerms, unlockRes.RemovedXFA, unlockRes.ClearedSigFlags, unlockRes.UnlockedFields)
	}

	rawFields, err := r.extract(unlockedPath)
	if err != nil {
		result.Err = fmt.Sprintf("extract: %v", err)
		log.Printf("[pipeline] %s: %s", name, result.Err)
		return result
	}
	if len(rawFields) == 0 {
		log.Printf("[pipeline] %s: no interactive form fields", name)
		result.NoFields = true
		return result
	}
	result.Fields = len(rawFields)

	records, err := r.engine.ProcessDocument(ctx, name, rawFields)
	if err != nil {
		result.Err = fmt.Sprintf("match: %v", err)
		log.Printf("[pipeline] %s: %s", name, result.Err)
		return result
	}
	result.Collisions = resolveCollisions(name, records)

	if err := r.writeDecisions(name, records); err != nil {
		result.Err = fmt.Sprintf("decisions: %v", err)
		log.Printf("[pipeline] %s: %s", name, result.Err)
		return result
	}

	renames := make(map[string]string, len(records))
	for _, rec := range records {
		if rec.Label != rec.SourceIdentifier {
			renames[rec.SourceIdentifier] = rec.Label
		}
	}
	applyRes, err := r.apply(unlockedPath, outPath, renames)
	if err != nil {
		result.Err = fmt.Sprintf("apply: %v", err)
		log.Printf("[pipeline] %s: %s", name, result.Err)
		return result
	}
	result.Renamed = applyRes.Renamed
	result.Unmatched = len(applyRes.Unmatched)

	if err := r.store.Persist(); err != nil {
		// Vocabulary growth is lost but the rewritten document is good.
		log.Printf("[pipeline] %s: failed to persist vocabulary: %v", name, err)
	}

	log.Printf("[pipeline] %s: %d fields, %d renamed, %d unmatched (%.1fs)",
		name, result.Fields, result.Renamed, result.Unmatched, time.Since(start).Seconds())
	return result
}

// decisionsDocument is the JSON sidecar written next to each processed file.
type decisionsDocument struct {
	SourceFile  string                 `json:"source_file"`
	ProcessedAt string                 `json:"processed_at"`
	Fields      []match.DecisionRecord `json:"fields"`
}

func (r *Runner) writeDecisions(name string, records []match.DecisionRecord) error {
	doc := decisionsDocument{
		SourceFile:  name,
		ProcessedAt: time.Now().UTC().Format(time.RFC3339),
		Fields:      records,
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	base := strings.TrimSuffix(name, filepath.Ext(name)) + ".json"
	return os.WriteFile(filepath.Join(r.opts.DecisionsDir, base), data, 0o644)
}

// resolveCollisions re-decides labels assigned to more than one field of the
// same document before anything is written: later occurrences get a free
// numbered variant. The engine prevents collisions, so a hit means corrupted
// decisions and is surfaced as a critical warning.
func resolveCollisions(name string, records []match.DecisionRecord) []string {
	used := make(map[string]bool, len(records))
	var collisions []string
	for i := range records {
		l := records[i].Label
		if !used[l] {
			used[l] = true
			continue
		}
		collisions = append(collisions, l)
		variant := match.FreeVariant(l, func(s string) bool { return used[s] })
		log.Printf("[pipeline] CRITICAL: %s: label %q assigned to multiple fields, reassigning %q to %q",
			name, l, variant, records[i].SourceIdentifier)
		records[i].Label = variant
		used[variant] = true
	}
	return collisions
}

// Log prints the end-of-run summary.
func (s *Summary) Log() {
	log.Printf("[pipeline] done: %d processed, %d skipped, %d without fields, %d failed (%.1fs)",
		s.Processed, s.Skipped, s.NoFields, s.Failed, s.Elapsed.Seconds())
	log.Printf("[pipeline] %d fields seen, %d renamed", s.Fields, s.Renamed)
	if len(s.Collisions) > 0 {
		log.Printf("[pipeline] CRITICAL: %d label collisions: %s", len(s.Collisions), strings.Join(s.Collisions, ", "))
	}
	for _, doc := range s.Documents {
		if doc.Err != "" {
			log.Printf("[pipeline] failed: %s: %s", doc.Name, doc.Err)
		}
	}
}

// listPDFs returns the base names of all PDFs directly inside dir, sorted.
func listPDFs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read input directory: %w", err)
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(entry.Name()), ".pdf") {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}
