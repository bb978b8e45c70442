package pdfform

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ankitmukherjee01/form-pre-processor/internal/fields"
)

func TestKindFromType(t *testing.T) {
	tests := []struct {
		name  string
		ft    string
		flags int64
		want  fields.Kind
	}{
		{"text", "Tx", 0, fields.KindText},
		{"plain button is checkbox", "Btn", 0, fields.KindCheckbox},
		{"radio flag", "Btn", flagRadio, fields.KindRadio},
		{"pushbutton flag", "Btn", flagPushbutton, fields.KindButton},
		{"radio wins over pushbutton", "Btn", flagRadio | flagPushbutton, fields.KindRadio},
		{"choice default is listbox", "Ch", 0, fields.KindListbox},
		{"combo flag", "Ch", 1 << 17, fields.KindCombo},
		{"signature", "Sig", 0, fields.KindSignature},
		{"unrecognized", "Zzz", 0, fields.KindUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, kindFromType(tt.ft, tt.flags))
		})
	}
}

func TestClearRestrictiveFlags(t *testing.T) {
	tests := []struct {
		name  string
		flags int64
		want  int64
	}{
		{"readonly cleared", flagReadOnly, 0},
		{"locked cleared", flagLocked, 0},
		{"both cleared", flagReadOnly | flagLocked, 0},
		{"required survives", flagReadOnly | flagRequired, flagRequired},
		{"radio survives", flagLocked | flagRadio, flagRadio},
		{"clean flags untouched", flagRequired, flagRequired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, clearRestrictiveFlags(tt.flags))
		})
	}
}

func TestJoinQualified(t *testing.T) {
	assert.Equal(t, "form1.page1.city", joinQualified("form1.page1", "city"))
	assert.Equal(t, "city", joinQualified("", "city"))
	assert.Equal(t, "form1", joinQualified("form1", ""))
}

func TestResolveRename(t *testing.T) {
	renames := map[string]string{
		"topmostSubform[0].Page1[0].P1_City_FLD[0]": "city",
		"topmostSubform[0].Page1[0].P1_SSN_FLD[0]":  "social_security_number",
	}

	t.Run("exact match", func(t *testing.T) {
		label, ok := resolveRename("topmostSubform[0].Page1[0].P1_City_FLD[0]", renames, map[string]bool{})
		assert.True(t, ok)
		assert.Equal(t, "city", label)
	})

	t.Run("fuzzy match tolerates encoding drift", func(t *testing.T) {
		label, ok := resolveRename("topmostSubform[0]-Page1[0]-P1_CITY_FLD[0]", renames, map[string]bool{})
		assert.True(t, ok)
		assert.Equal(t, "city", label)
	})

	t.Run("unrelated identifier stays unmatched", func(t *testing.T) {
		_, ok := resolveRename("completely_different_field", renames, map[string]bool{})
		assert.False(t, ok)
	})

	t.Run("each rename entry is consumed once", func(t *testing.T) {
		consumed := map[string]bool{}

		label, ok := resolveRename("topmostSubform[0].Page1[0].P1_City_FLD[0]", renames, consumed)
		assert.True(t, ok)
		assert.Equal(t, "city", label)

		// A second terminal drifting close to the same key must not
		// receive the same name again.
		_, ok = resolveRename("topmostSubform[0]-Page1[0]-P1_CITY_FLD[0]", renames, consumed)
		assert.False(t, ok)
	})
}

func TestUnlockResultChanged(t *testing.T) {
	assert.False(t, UnlockResult{}.Changed())
	assert.True(t, UnlockResult{RemovedPerms: true}.Changed())
	assert.True(t, UnlockResult{UnlockedFields: 3}.Changed())
}

func TestNearestLinePrefersClosestCaption(t *testing.T) {
	rect := fields.Rect{X0: 100, Y0: 500, X1: 300, Y1: 515}
	frags := []fragment{
		{text: "City", x: 60, y: 505, w: 25},
		{text: "Far away header", x: 60, y: 700, w: 80},
		{text: "State", x: 320, y: 505, w: 30},
	}

	assert.Equal(t, "City", nearestLine(frags, rect, fields.HintLeft))
	assert.Equal(t, "State", nearestLine(frags, rect, fields.HintRight))
	assert.Equal(t, "", nearestLine(frags, rect, fields.HintBottom))
}

func TestNearestLineJoinsFragmentsInReadingOrder(t *testing.T) {
	rect := fields.Rect{X0: 200, Y0: 500, X1: 400, Y1: 515}
	frags := []fragment{
		{text: "Security", x: 60, y: 505, w: 40},
		{text: "Social", x: 20, y: 505, w: 35},
		{text: "Number:", x: 105, y: 505, w: 40},
	}

	assert.Equal(t, "Social Security Number", nearestLine(frags, rect, fields.HintLeft))
}

func TestFindHintDirectionOrder(t *testing.T) {
	finder := &hintFinder{pages: map[int][]fragment{
		1: {
			{text: "Married", x: 325, y: 505, w: 40},
			{text: "Status", x: 40, y: 505, w: 35},
		},
	}}
	rect := fields.Rect{X0: 100, Y0: 500, X1: 320, Y1: 515}

	// A checkbox prefers the caption on its right.
	hint, dir := finder.findHint(1, rect, fields.KindCheckbox)
	assert.Equal(t, "Married", hint)
	assert.Equal(t, fields.HintRight, dir)

	// A text field prefers the caption on its left.
	hint, dir = finder.findHint(1, rect, fields.KindText)
	assert.Equal(t, "Status", hint)
	assert.Equal(t, fields.HintLeft, dir)
}

func TestRenderLineStripsDecorations(t *testing.T) {
	line := []fragment{{text: "  Spouse Name: ", x: 10, y: 100, w: 80}}
	assert.Equal(t, "Spouse Name", renderLine(line))
}
