package pdfform

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/ankitmukherjee01/form-pre-processor/internal/fields"
)

// Search bands around a widget, in page points. Horizontal neighbors are
// worth looking further for than vertical ones because forms put captions
// beside their inputs.
const (
	horizontalReach = 200.0
	verticalReach   = 150.0
	lineTolerance   = 3.0
	maxHintLength   = 120
)

// fragment is one positioned piece of page text.
type fragment struct {
	text string
	x    float64
	y    float64
	w    float64
}

// attachDetectedHints fills DetectedHint for fields that lack a builtin
// hint, using positioned text from the rendered pages.
func attachDetectedHints(filePath string, fs []fields.RawField) error {
	finder, err := newHintFinder(filePath)
	if err != nil {
		return err
	}
	defer finder.Close()

	for i := range fs {
		if fs[i].BuiltinHint != "" || fs[i].Page == 0 {
			continue
		}
		hint, dir := finder.findHint(fs[i].Page, fs[i].Position, fs[i].Kind)
		if hint != "" {
			fs[i].DetectedHint = hint
			fs[i].HintDirection = dir
		}
	}
	return nil
}

// hintFinder caches positioned page text for one document.
type hintFinder struct {
	file  interface{ Close() error }
	pages map[int][]fragment
}

func newHintFinder(filePath string) (*hintFinder, error) {
	f, reader, err := pdf.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF for text extraction: %w", err)
	}

	finder := &hintFinder{file: f, pages: make(map[int][]fragment)}
	for pageNum := 1; pageNum <= reader.NumPage(); pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		content := page.Content()
		for _, t := range content.Text {
			s := strings.TrimSpace(t.S)
			if s == "" {
				continue
			}
			finder.pages[pageNum] = append(finder.pages[pageNum], fragment{
				text: t.S,
				x:    t.X,
				y:    t.Y,
				w:    t.W,
			})
		}
	}
	return finder, nil
}

func (h *hintFinder) Close() error {
	if h.file != nil {
		return h.file.Close()
	}
	return nil
}

// findHint searches the bands around the widget, trying directions in order
// of how forms usually place captions for the given field kind.
func (h *hintFinder) findHint(page int, rect fields.Rect, kind fields.Kind) (string, fields.HintDirection) {
	frags := h.pages[page]
	if len(frags) == 0 {
		return "", ""
	}

	// Checkbox and radio captions sit to the right of the box; text inputs
	// carry their caption on the left or above.
	order := []fields.HintDirection{fields.HintLeft, fields.HintTop, fields.HintRight, fields.HintBottom}
	if kind.IsButtonLike() {
		order = []fields.HintDirection{fields.HintRight, fields.HintLeft, fields.HintTop, fields.HintBottom}
	}

	for _, dir := range order {
		if text := nearestLine(frags, rect, dir); text != "" {
			return text, dir
		}
	}
	return "", ""
}

// nearestLine collects the fragments inside one directional band, keeps the
// line closest to the widget, and joins it in reading order.
func nearestLine(frags []fragment, rect fields.Rect, dir fields.HintDirection) string {
	var band []fragment
	for _, f := range frags {
		if inBand(f, rect, dir) {
			band = append(band, f)
		}
	}
	if len(band) == 0 {
		return ""
	}

	// Group into lines by baseline, closest line first.
	sort.Slice(band, func(i, j int) bool { return band[i].y > band[j].y })
	lines := groupLines(band)
	sort.Slice(lines, func(i, j int) bool {
		return lineDistance(lines[i], rect, dir) < lineDistance(lines[j], rect, dir)
	})

	return renderLine(lines[0])
}

func inBand(f fragment, rect fields.Rect, dir fields.HintDirection) bool {
	switch dir {
	case fields.HintLeft:
		return f.x+f.w <= rect.X0+1 && f.x >= rect.X0-horizontalReach && verticalOverlap(f, rect)
	case fields.HintRight:
		return f.x >= rect.X1-1 && f.x <= rect.X1+horizontalReach && verticalOverlap(f, rect)
	case fields.HintTop:
		return f.y >= rect.Y1 && f.y <= rect.Y1+verticalReach && horizontalOverlap(f, rect)
	case fields.HintBottom:
		return f.y <= rect.Y0 && f.y >= rect.Y0-verticalReach && horizontalOverlap(f, rect)
	default:
		return false
	}
}

// verticalOverlap accepts fragments whose baseline falls within the widget's
// vertical extent, padded a little for superscripts and tight rows.
func verticalOverlap(f fragment, rect fields.Rect) bool {
	const pad = 4.0
	return f.y >= rect.Y0-pad && f.y <= rect.Y1+pad
}

// horizontalOverlap accepts fragments roughly aligned with the widget's
// column.
func horizontalOverlap(f fragment, rect fields.Rect) bool {
	const pad = 40.0
	return f.x+f.w >= rect.X0-pad && f.x <= rect.X1+pad
}

func groupLines(sorted []fragment) [][]fragment {
	var lines [][]fragment
	for _, f := range sorted {
		placed := false
		for i := range lines {
			if abs(lines[i][0].y-f.y) <= lineTolerance {
				lines[i] = append(lines[i], f)
				placed = true
				break
			}
		}
		if !placed {
			lines = append(lines, []fragment{f})
		}
	}
	return lines
}

// lineDistance measures how far a line is from the widget edge facing it.
func lineDistance(line []fragment, rect fields.Rect, dir fields.HintDirection) float64 {
	switch dir {
	case fields.HintLeft:
		best := horizontalReach
		for _, f := range line {
			if d := rect.X0 - (f.x + f.w); d >= 0 && d < best {
				best = d
			}
		}
		return best
	case fields.HintRight:
		best := horizontalReach
		for _, f := range line {
			if d := f.x - rect.X1; d >= 0 && d < best {
				best = d
			}
		}
		return best
	case fields.HintTop:
		return line[0].y - rect.Y1
	case fields.HintBottom:
		return rect.Y0 - line[0].y
	default:
		return horizontalReach
	}
}

func renderLine(line []fragment) string {
	sort.Slice(line, func(i, j int) bool { return line[i].x < line[j].x })
	var sb strings.Builder
	prevEnd := 0.0
	for i, f := range line {
		if i > 0 && f.x-prevEnd > 1.0 {
			sb.WriteString(" ")
		}
		sb.WriteString(f.text)
		prevEnd = f.x + f.w
	}
	text := strings.Join(strings.Fields(sb.String()), " ")
	text = strings.Trim(text, ":*. ")
	if len(text) > maxHintLength {
		text = text[:maxHintLength]
	}
	return text
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
