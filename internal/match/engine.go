package match

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"

	"github.com/ankitmukherjee01/form-pre-processor/internal/fields"
	"github.com/ankitmukherjee01/form-pre-processor/internal/label"
	"github.com/ankitmukherjee01/form-pre-processor/internal/vocab"
)

// Config tunes the decision engine.
type Config struct {
	// MatchThreshold is the minimum fuzzy similarity (0-100) for the
	// deterministic fallback to reuse an existing label.
	MatchThreshold int
	// BatchSize is how many fields go to the oracle per request.
	BatchSize int
}

// DefaultConfig returns the tuning used in production runs.
func DefaultConfig() Config {
	return Config{
		MatchThreshold: 90,
		BatchSize:      8,
	}
}

// Engine turns raw fields into decision records. The oracle is the primary
// path; when it is absent or fails, a deterministic fuzzy fallback keeps the
// pipeline moving. Every accepted label is grammar-valid and unique within
// the document.
type Engine struct {
	store  *vocab.Store
	oracle Oracle
	cfg    Config
}

// NewEngine builds an engine over a vocabulary store. oracle may be nil, in
// which case every field takes the deterministic fallback path.
func NewEngine(store *vocab.Store, oracle Oracle, cfg Config) *Engine {
	if cfg.MatchThreshold <= 0 {
		cfg.MatchThreshold = DefaultConfig().MatchThreshold
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultConfig().BatchSize
	}
	return &Engine{store: store, oracle: oracle, cfg: cfg}
}

// docToolbox scopes vocabulary queries to one document's tracker.
type docToolbox struct {
	store   *vocab.Store
	tracker *Tracker
}

func (t docToolbox) SearchSimilar(query string, limit int) []vocab.Match {
	return t.store.FuzzySearch(query, limit)
}

func (t docToolbox) NumberedVariants(base string) []string {
	return t.store.NumberedVariants(base)
}

func (t docToolbox) LabelExists(l string) bool { return t.store.Exists(l) }

func (t docToolbox) UsedInDocument(l string) bool { return t.tracker.IsUsed(l) }

// ProcessDocument decides a label for every field of one document. Returns
// one record per input field, in input order.
func (e *Engine) ProcessDocument(ctx context.Context, docName string, fs []fields.RawField) ([]DecisionRecord, error) {
	tracker := NewTracker()
	tools := docToolbox{store: e.store, tracker: tracker}
	records := make([]DecisionRecord, 0, len(fs))

	for start := 0; start < len(fs); start += e.cfg.BatchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := start + e.cfg.BatchSize
		if end > len(fs) {
			end = len(fs)
		}
		batch := fs[start:end]

		decisions := e.decideBatch(ctx, docName, batch, tools)
		for i, f := range batch {
			rec := e.finalize(f, decisions[i], tracker)
			records = append(records, rec)
		}
	}
	return records, nil
}

// decideBatch asks the oracle and aligns its answers with the batch. Any
// failure or unmatched field degrades to the deterministic fallback for the
// affected fields only.
func (e *Engine) decideBatch(ctx context.Context, docName string, batch []fields.RawField, tools docToolbox) []Decision {
	out := make([]Decision, len(batch))
	var answered []Decision
	if e.oracle != nil {
		var err error
		answered, err = e.oracle.DecideBatch(ctx, batch, tools)
		if err != nil {
			log.Printf("[match] %s: oracle batch failed, using fallback for %d fields: %v", docName, len(batch), err)
			answered = nil
		}
	}

	byName := make(map[string]Decision, len(answered))
	for _, d := range answered {
		if _, dup := byName[d.OriginalFieldName]; !dup {
			byName[d.OriginalFieldName] = d
		}
	}
	for i, f := range batch {
		if d, ok := byName[f.Identifier]; ok {
			out[i] = d
			continue
		}
		if len(answered) == len(batch) && answered[i].OriginalFieldName == "" {
			// Positional alignment for oracles that omit the echo field.
			out[i] = answered[i]
			out[i].OriginalFieldName = f.Identifier
			continue
		}
		out[i] = e.fallbackDecision(f, tools)
	}
	return out
}

// fallbackDecision is the oracle-free path: fuzzy-match the best hint against
// the vocabulary, otherwise normalize the hint into a new label.
func (e *Engine) fallbackDecision(f fields.RawField, tools docToolbox) Decision {
	query := f.BestHint()
	if query == "" {
		query = f.Identifier
	}

	if best := tools.SearchSimilar(query, 1); len(best) > 0 && best[0].Similarity >= e.cfg.MatchThreshold {
		return Decision{
			Action:            string(ActionMatchExisting),
			OriginalFieldName: f.Identifier,
			StandardizedLabel: best[0].Label,
			Confidence:        best[0].Similarity,
			Reasoning:         fmt.Sprintf("fuzzy match to existing label (similarity %d)", best[0].Similarity),
		}
	}

	candidate := label.Normalize(query)
	if f.Kind.IsButtonLike() && !hasCheckboxSuffix(candidate) {
		candidate = label.Normalize(candidate + "_checkbox")
	}
	if _, reason := label.Validate(candidate); reason != label.ReasonOK {
		return Decision{
			Action:            string(ActionKeepOriginal),
			OriginalFieldName: f.Identifier,
			StandardizedLabel: f.Identifier,
			Confidence:        0,
			Reasoning:         "no usable label could be derived",
		}
	}
	return Decision{
		Action:            string(ActionCreateNew),
		OriginalFieldName: f.Identifier,
		StandardizedLabel: candidate,
		Confidence:        50,
		Reasoning:         "derived from field hint without oracle",
	}
}

func hasCheckboxSuffix(l string) bool {
	return l == "checkbox" || len(l) > 9 && l[len(l)-9:] == "_checkbox"
}

// finalize validates an untrusted decision, enforces per-document uniqueness,
// and commits vocabulary growth. It always yields a usable record.
func (e *Engine) finalize(f fields.RawField, d Decision, tracker *Tracker) DecisionRecord {
	action := Action(d.Action)
	switch action {
	case ActionKeepOriginal, ActionMatchExisting, ActionCreateNew:
	default:
		log.Printf("[match] unknown action %q for field %q, keeping original", d.Action, f.Identifier)
		return e.keepOriginal(f, tracker, "oracle returned an unrecognized action")
	}

	chosen := d.StandardizedLabel
	if action == ActionKeepOriginal {
		chosen = f.Identifier
	}

	if _, reason := label.Validate(chosen); reason != label.ReasonOK {
		renorm := label.Normalize(chosen)
		if _, r2 := label.Validate(renorm); r2 != label.ReasonOK {
			return e.keepOriginal(f, tracker, fmt.Sprintf("label %q failed validation (%s)", chosen, reason))
		}
		chosen = renorm
		if action == ActionKeepOriginal {
			// The raw identifier was not clean after all; treat the
			// normalized form as a new label.
			action = ActionCreateNew
		}
	}

	// create_new on a label that already exists is just a match.
	if action == ActionCreateNew && e.store.Exists(chosen) {
		action = ActionMatchExisting
	}
	// match_existing must point at a real entry.
	if action == ActionMatchExisting && !e.store.Exists(chosen) {
		action = ActionCreateNew
	}

	if tracker.IsUsed(chosen) {
		disambiguated := e.nextFreeVariant(chosen, tracker)
		log.Printf("[match] label %q already used in document, assigning %q to %q", chosen, disambiguated, f.Identifier)
		chosen = disambiguated
		if !e.store.Exists(chosen) {
			action = ActionCreateNew
		} else {
			action = ActionMatchExisting
		}
	}

	if action == ActionCreateNew {
		if err := e.store.Insert(chosen); err != nil && !errors.Is(err, vocab.ErrDuplicateLabel) {
			log.Printf("[match] vocabulary insert %q: %v", chosen, err)
		}
	}

	tracker.RecordUsage(chosen)
	return DecisionRecord{
		Action:           action,
		SourceIdentifier: f.Identifier,
		Label:            chosen,
		Confidence:       NormalizeConfidence(d.Confidence),
		Rationale:        d.Reasoning,
	}
}

// keepOriginal is the safety net: the raw identifier survives with zero
// confidence so downstream consumers can spot it. It is still subject to
// per-document uniqueness, so a kept identifier colliding with an assigned
// label gets a numbered variant.
func (e *Engine) keepOriginal(f fields.RawField, tracker *Tracker, why string) DecisionRecord {
	chosen := f.Identifier
	if tracker.IsUsed(chosen) {
		chosen = e.nextFreeVariant(chosen, tracker)
		log.Printf("[match] kept identifier %q already used in document, assigning %q", f.Identifier, chosen)
	}
	tracker.RecordUsage(chosen)
	return DecisionRecord{
		Action:           ActionKeepOriginal,
		SourceIdentifier: f.Identifier,
		Label:            chosen,
		Confidence:       0,
		Rationale:        why,
	}
}

var trailingNumber = regexp.MustCompile(`_\d+$`)

// FreeVariant returns the lowest numbered variant of base for which used
// reports false, starting at _2. Any existing trailing number is stripped
// first, and the stem is truncated so the variant stays within the label
// length limit.
func FreeVariant(base string, used func(string) bool) string {
	stem := trailingNumber.ReplaceAllString(base, "")
	for n := 2; ; n++ {
		suffix := fmt.Sprintf("_%d", n)
		candidate := trimStem(stem, label.MaxLength-len(suffix)) + suffix
		if !used(candidate) {
			return candidate
		}
	}
}

func (e *Engine) nextFreeVariant(base string, tracker *Tracker) string {
	return FreeVariant(base, tracker.IsUsed)
}

func trimStem(stem string, max int) string {
	if len(stem) > max {
		stem = stem[:max]
	}
	return strings.TrimRight(stem, "_")
}
