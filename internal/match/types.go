// Package match implements the label standardization decision engine: for
// each raw field it produces exactly one decision record, reusing existing
// vocabulary where possible, creating new canonical labels where necessary,
// and never assigning the same label twice within one document.
package match

import (
	"context"
	"math"
	"strconv"
	"strings"

	"github.com/ankitmukherjee01/form-pre-processor/internal/fields"
	"github.com/ankitmukherjee01/form-pre-processor/internal/vocab"
)

// Action is the kind of decision taken for a field.
type Action string

const (
	ActionKeepOriginal  Action = "keep_original"
	ActionMatchExisting Action = "match_existing"
	ActionCreateNew     Action = "create_new"
)

// DecisionRecord is the final per-field output of the engine. The JSON tags
// match the standardized-output document consumed by the rewriting adapter.
type DecisionRecord struct {
	Action           Action `json:"action"`
	SourceIdentifier string `json:"original_field_name"`
	Label            string `json:"standardized_label"`
	Confidence       int    `json:"confidence"`
	Rationale        string `json:"reasoning"`
}

// Toolbox exposes the read-only queries an oracle may call while deciding:
// fuzzy vocabulary search, numbered-variant search, and per-document usage
// checks.
type Toolbox interface {
	SearchSimilar(query string, limit int) []vocab.Match
	NumberedVariants(base string) []string
	LabelExists(label string) bool
	UsedInDocument(label string) bool
}

// Decision is the untrusted per-field payload returned by an oracle. Every
// field is validated by the engine before acceptance; Confidence is kept
// loosely typed because providers return numbers, fractions, and descriptors
// like "very high" interchangeably.
type Decision struct {
	Action            string `json:"action"`
	OriginalFieldName string `json:"original_field_name"`
	StandardizedLabel string `json:"standardized_label"`
	Confidence        any    `json:"confidence"`
	Reasoning         string `json:"reasoning"`
}

// Oracle is the external semantic decision service. Implementations must
// return one Decision per input field in input order; the engine tolerates
// short, long, or misordered responses by falling back per item.
type Oracle interface {
	DecideBatch(ctx context.Context, batch []fields.RawField, tools Toolbox) ([]Decision, error)
}

// confidenceWords maps textual confidence descriptors to the fixed numeric
// scale.
var confidenceWords = map[string]int{
	"very high": 95,
	"high":      90,
	"medium":    70,
	"low":       50,
	"very low":  30,
}

// NormalizeConfidence converts whatever an oracle returned into an integer in
// [0,100]. Fractions in [0,1] scale by 100; unknown descriptors default to 90
// since providers only use them for confident answers; nil means absent and
// maps to 0.
func NormalizeConfidence(raw any) int {
	switch v := raw.(type) {
	case nil:
		return 0
	case int:
		return clampConfidence(v)
	case int64:
		return clampConfidence(int(v))
	case float64:
		if v > 0 && v <= 1 {
			return clampConfidence(int(math.Round(v * 100)))
		}
		return clampConfidence(int(math.Round(v)))
	case string:
		s := strings.ToLower(strings.TrimSpace(v))
		if c, ok := confidenceWords[s]; ok {
			return c
		}
		if f, err := strconv.ParseFloat(strings.TrimSuffix(s, "%"), 64); err == nil {
			return NormalizeConfidence(f)
		}
		return 90
	default:
		return 0
	}
}

func clampConfidence(c int) int {
	if c < 0 {
		return 0
	}
	if c > 100 {
		return 100
	}
	return c
}
