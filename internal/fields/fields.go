// Package fields defines the domain types shared by the extraction adapter,
// the matching engine, and the rewriting adapter: one RawField per fillable
// form control, in document order.
package fields

import "fmt"

// Kind represents the type of a form field
type Kind string

const (
	KindText      Kind = "text"
	KindCheckbox  Kind = "checkbox"
	KindRadio     Kind = "radio"
	KindCombo     Kind = "combo"
	KindListbox   Kind = "listbox"
	KindSignature Kind = "signature"
	KindButton    Kind = "button"
	KindUnknown   Kind = "unknown"
)

// IsButtonLike reports whether nearby-text search should prefer text to the
// right of the widget, which is where checkbox and radio captions sit.
func (k Kind) IsButtonLike() bool {
	return k == KindCheckbox || k == KindRadio
}

// Rect is a widget rectangle in page coordinates.
type Rect struct {
	X0 float64 `json:"x0"`
	Y0 float64 `json:"y0"`
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
}

// Width returns the horizontal extent of the rectangle.
func (r Rect) Width() float64 { return r.X1 - r.X0 }

// Height returns the vertical extent of the rectangle.
func (r Rect) Height() float64 { return r.Y1 - r.Y0 }

// String formats the rectangle for prompts and logs.
func (r Rect) String() string {
	return fmt.Sprintf("(%.1f, %.1f) to (%.1f, %.1f)", r.X0, r.Y0, r.X1, r.Y1)
}

// HintDirection tags where a detected hint was found relative to the widget.
type HintDirection string

const (
	HintLeft   HintDirection = "left"
	HintRight  HintDirection = "right"
	HintTop    HintDirection = "top"
	HintBottom HintDirection = "bottom"
)

// RawField is one fillable form control as observed on a page.
//
// Identifier is the fully-qualified internal name and is unique within one
// document's field tree; it carries no meaning across documents. BuiltinHint
// is the authoritative label embedded in the document itself (the /TU entry)
// and always takes priority over DetectedHint, which is text found near the
// widget on the page.
type RawField struct {
	Identifier    string        `json:"identifier"`
	Kind          Kind          `json:"kind"`
	BuiltinHint   string        `json:"builtin_hint,omitempty"`
	DetectedHint  string        `json:"detected_hint,omitempty"`
	HintDirection HintDirection `json:"hint_direction,omitempty"`
	Page          int           `json:"page"`
	Position      Rect          `json:"position"`
	Value         string        `json:"value,omitempty"`
	ReadOnly      bool          `json:"read_only,omitempty"`
	Required      bool          `json:"required,omitempty"`
}

// BestHint returns the strongest context available for the field. The builtin
// hint wins whenever it is non-empty; the detected hint is a weaker positional
// signal used only as a fallback.
func (f *RawField) BestHint() string {
	if f.BuiltinHint != "" {
		return f.BuiltinHint
	}
	return f.DetectedHint
}
