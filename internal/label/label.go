// Package label implements validation and normalization of canonical field
// labels. A canonical label is lowercase snake_case, 2-80 characters, with no
// leading, trailing, or doubled underscores. Normalize converts arbitrary raw
// field names into canonical candidates and is idempotent.
package label

import (
	"regexp"
	"strings"
)

const (
	// MinLength and MaxLength bound the canonical label grammar.
	MinLength = 2
	MaxLength = 80
)

// Reason explains why a label failed (or passed) validation.
type Reason string

const (
	ReasonOK               Reason = "ok"
	ReasonNotLowercase     Reason = "not_lowercase"
	ReasonContainsSpace    Reason = "contains_space"
	ReasonInvalidChars     Reason = "invalid_characters"
	ReasonTooShort         Reason = "too_short"
	ReasonTooLong          Reason = "too_long"
	ReasonDoubleUnderscore Reason = "double_underscore"
	ReasonEdgeUnderscore   Reason = "edge_underscore"
)

var labelPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// Validate checks a candidate against the canonical label grammar.
func Validate(candidate string) (bool, Reason) {
	if candidate != strings.ToLower(candidate) {
		return false, ReasonNotLowercase
	}
	if strings.Contains(candidate, " ") {
		return false, ReasonContainsSpace
	}
	if !labelPattern.MatchString(candidate) {
		return false, ReasonInvalidChars
	}
	if len(candidate) < MinLength {
		return false, ReasonTooShort
	}
	if len(candidate) > MaxLength {
		return false, ReasonTooLong
	}
	if strings.Contains(candidate, "__") {
		return false, ReasonDoubleUnderscore
	}
	if strings.HasPrefix(candidate, "_") || strings.HasSuffix(candidate, "_") {
		return false, ReasonEdgeUnderscore
	}
	return true, ReasonOK
}

var (
	bracketIndex   = regexp.MustCompile(`\[\d+\]`)
	camelBoundary  = regexp.MustCompile(`([a-z0-9])([A-Z])`)
	nonAlnum       = regexp.MustCompile(`[^a-zA-Z0-9]+`)
	repeatedUnder  = regexp.MustCompile(`_+`)
	leadNoiseToken = regexp.MustCompile(`^(topmost|subform|bodypage\d*|body|page\d*|p\d+|n\d+)$`)
	tailNoiseToken = regexp.MustCompile(`^(fld|field|cb\d+|btn)$`)
	checkboxToken  = regexp.MustCompile(`^(cb\d*|checkbox|check|yes|no|tick)$`)
)

// semanticMap rewrites whole candidates whose raw form is a known
// abbreviation. Exact matches only; partial substitution is unsafe.
var semanticMap = map[string]string{
	"wage_earner_ssn": "wage_earner_social_security_number",
	"ssn":             "social_security_number",
	"spouse_ssn":      "spouse_social_security_number",
	"wage_earner":     "wage_earner_name",
	"spouse":          "spouse_name",
}

// tokenMap expands well-known abbreviation tokens when the whole-candidate
// map did not apply.
var tokenMap = map[string]string{
	"ssn": "social_security_number",
}

// Normalize converts a raw field name into a canonical label candidate.
//
// The pipeline: drop bracketed indices, underscore camelCase boundaries,
// collapse non-alphanumeric runs to single underscores, lowercase, trim and
// collapse underscores, strip leading page/subform markers and trailing
// field-type markers, apply the semantic substitution table, and append
// "_checkbox" when the raw name carries a checkbox-indicating token.
//
// Normalize is idempotent: applying it to its own output is a no-op. It
// returns "" only when the input has no usable alphanumeric content.
func Normalize(raw string) string {
	cleaned := bracketIndex.ReplaceAllString(raw, "")
	cleaned = camelBoundary.ReplaceAllString(cleaned, "${1}_${2}")
	cleaned = nonAlnum.ReplaceAllString(cleaned, "_")
	cleaned = strings.ToLower(cleaned)
	cleaned = repeatedUnder.ReplaceAllString(cleaned, "_")
	cleaned = strings.Trim(cleaned, "_")
	if cleaned == "" {
		return ""
	}

	candidate := stripNoiseTokens(cleaned)

	if mapped, ok := semanticMap[candidate]; ok {
		candidate = mapped
	} else {
		candidate = expandTokens(candidate)
	}

	if hasCheckboxToken(raw) && !strings.HasSuffix(candidate, "checkbox") {
		candidate += "_checkbox"
	}

	return candidate
}

// stripNoiseTokens removes internal-notation markers from the edges of a
// cleaned candidate: page and subform prefixes like "p1" or "topmost", and
// field-type suffixes like "fld" or "cb1". If stripping would consume the
// entire candidate, the input is returned unchanged.
func stripNoiseTokens(cleaned string) string {
	tokens := strings.Split(cleaned, "_")

	start := 0
	for start < len(tokens) && leadNoiseToken.MatchString(tokens[start]) {
		start++
	}
	end := len(tokens)
	for end > start && tailNoiseToken.MatchString(tokens[end-1]) {
		end--
	}

	if start >= end {
		return cleaned
	}
	return strings.Join(tokens[start:end], "_")
}

func expandTokens(candidate string) string {
	tokens := strings.Split(candidate, "_")
	changed := false
	for i, tok := range tokens {
		if expanded, ok := tokenMap[tok]; ok {
			tokens[i] = expanded
			changed = true
		}
	}
	if !changed {
		return candidate
	}
	return strings.Join(tokens, "_")
}

// hasCheckboxToken reports whether the raw name contains a token that marks
// the field as a checkbox (cb, cb1, check, yes, no, tick, ...). Tokens are
// compared exactly; substrings like "number" never match "no".
func hasCheckboxToken(raw string) bool {
	cleaned := bracketIndex.ReplaceAllString(raw, "")
	cleaned = camelBoundary.ReplaceAllString(cleaned, "${1}_${2}")
	cleaned = nonAlnum.ReplaceAllString(cleaned, "_")
	cleaned = strings.ToLower(cleaned)
	for _, tok := range strings.Split(strings.Trim(cleaned, "_"), "_") {
		if checkboxToken.MatchString(tok) {
			return true
		}
	}
	return false
}

// gibberishMarkers flag machine-generated XFA-style identifiers.
var gibberishMarkers = []string{
	"topmostSubform",
	"BodyPage",
	"[0]",
	"[1]",
	"[2]",
	".",
	"FLD[",
	"CB[",
}

// descriptiveSubstrings are common semantic fragments found in hand-named
// fields.
var descriptiveSubstrings = []string{
	"first_name",
	"last_name",
	"middle_name",
	"full_name",
	"city",
	"state",
	"zip_code",
	"address",
	"phone",
	"email",
	"date",
	"signature",
	"ssn",
	"social_security",
	"yes",
	"no",
	"checkbox",
	"check",
}

var titleWord = regexp.MustCompile(`^[A-Z][a-z0-9]*$`)

// IsLikelyDescriptive heuristically decides whether a raw identifier already
// carries human-readable meaning. It is a prior hint for the decision engine,
// never a short-circuit: every candidate is still validated and checked for
// uniqueness.
func IsLikelyDescriptive(identifier string) bool {
	for _, marker := range gibberishMarkers {
		if strings.Contains(identifier, marker) {
			return false
		}
	}

	lower := strings.ToLower(identifier)
	for _, sub := range descriptiveSubstrings {
		if strings.Contains(lower, sub) {
			return true
		}
	}

	// Already snake_case of reasonable length.
	if ok, _ := Validate(identifier); ok && strings.Contains(identifier, "_") {
		return true
	}

	// Title-Case with at most three words and no punctuation.
	words := strings.Fields(identifier)
	if len(words) > 0 && len(words) <= 3 {
		for _, w := range words {
			if !titleWord.MatchString(w) {
				return false
			}
		}
		return true
	}

	return false
}
