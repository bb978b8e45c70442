package label

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		candidate string
		wantOK    bool
		wantWhy   Reason
	}{
		{"simple label", "first_name", true, ReasonOK},
		{"single word", "city", true, ReasonOK},
		{"digits allowed", "previous_marriage_1_when", true, ReasonOK},
		{"uppercase rejected", "First_Name", false, ReasonNotLowercase},
		{"space rejected", "first name", false, ReasonContainsSpace},
		{"hyphen rejected", "first-name", false, ReasonInvalidChars},
		{"leading digit rejected", "1name", false, ReasonInvalidChars},
		{"leading underscore rejected", "_first_name", false, ReasonInvalidChars},
		{"too short", "a", false, ReasonTooShort},
		{"too long", strings.Repeat("a", 81), false, ReasonTooLong},
		{"double underscore", "first__name", false, ReasonDoubleUnderscore},
		{"trailing underscore", "first_name_", false, ReasonEdgeUnderscore},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, why := Validate(tt.candidate)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantWhy, why)
		})
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"already canonical", "first_name", "first_name"},
		{"camel case split", "FirstNameofSpouse", "first_nameof_spouse"},
		{"xfa notation stripped", "topmostSubform[0].BodyPage1[0].P1_City_FLD[0]", "city"},
		{"wage earner ssn expanded", "P1_WageEarnerSSN_FLD", "wage_earner_social_security_number"},
		{"bare ssn expanded", "ssn", "social_security_number"},
		{"spouse ssn expanded", "spouse_ssn", "spouse_social_security_number"},
		{"ssn token expanded in context", "employee_ssn", "employee_social_security_number"},
		{"checkbox suffix from cb token", "P1_N1MarriagePerfBy_CB1", "marriage_perf_by_checkbox"},
		{"checkbox suffix not doubled", "agree_checkbox", "agree_checkbox"},
		{"yes token marks checkbox", "AgreeYes", "agree_yes_checkbox"},
		{"number does not imply checkbox", "phone_number", "phone_number"},
		{"whitespace and punctuation", "Name of Wage Earner!", "name_of_wage_earner"},
		{"noise only input keeps cleaned form", "P1_FLD[0]", "p1_fld"},
		{"empty input", "...", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.raw))
		})
	}
}

// Normalizing twice must always equal normalizing once, and one pass over any
// non-degenerate input must land inside the grammar.
func TestNormalizeIdempotentAndClosed(t *testing.T) {
	inputs := []string{
		"first_name",
		"topmostSubform[0].BodyPage1[0].P1_City_FLD[0]",
		"P1_WageEarnerSSN_FLD",
		"P1_N1MarriagePerfBy_CB1",
		"FirstNameofSpouse",
		"Clergyman or Authorized Public Official",
		"CITY",
		"ssn",
		"cb",
		"spouse",
		"DATE  (MM/DD/Y Y Y Y)",
		"health_coverage_start_year_1",
		"x",
		"A",
	}

	for _, in := range inputs {
		once := Normalize(in)
		twice := Normalize(once)
		assert.Equal(t, once, twice, "normalize not idempotent for %q", in)

		if once != "" && len(once) >= MinLength && len(once) <= MaxLength {
			ok, why := Validate(once)
			assert.True(t, ok, "normalize(%q) = %q failed grammar: %s", in, once, why)
		}
	}
}

func TestIsLikelyDescriptive(t *testing.T) {
	tests := []struct {
		identifier string
		want       bool
	}{
		{"topmostSubform[0].BodyPage1[0].P1_City_FLD[0]", false},
		{"form1[0].section2[0].txt42[0]", false},
		{"first_name", true},
		{"spouse_date_of_birth", true},
		{"Mailing Address", true},
		{"City", true},
		{"Full Legal Name", true},
		{"x9q7", false},
		{"This Is A Very Long Field Caption Indeed", false},
	}

	for _, tt := range tests {
		t.Run(tt.identifier, func(t *testing.T) {
			assert.Equal(t, tt.want, IsLikelyDescriptive(tt.identifier))
		})
	}
}
