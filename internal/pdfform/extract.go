package pdfform

import (
	"fmt"
	"log"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/ankitmukherjee01/form-pre-processor/internal/fields"
)

// Extractor reads the interactive field tree out of a PDF's AcroForm
// dictionary. Field identifiers are fully qualified with dots, the way the
// form hierarchy spells them.
type Extractor struct {
	detectHints bool
}

// NewExtractor creates a form field extractor. When detectHints is true the
// extractor also scans page text for label candidates near each widget.
func NewExtractor(detectHints bool) *Extractor {
	return &Extractor{detectHints: detectHints}
}

// ExtractFile returns every terminal form field in the document, in field
// tree order. Documents without an AcroForm yield an empty slice and no
// error.
func (e *Extractor) ExtractFile(filePath string) ([]fields.RawField, error) {
	ctx, err := openContext(filePath)
	if err != nil {
		return nil, err
	}

	fieldRefs, err := acroFormFields(ctx)
	if err != nil {
		return nil, err
	}
	if len(fieldRefs) == 0 {
		return nil, nil
	}

	pageIndex := buildAnnotationPageIndex(ctx)

	var out []fields.RawField
	for i, ref := range fieldRefs {
		walked, err := e.walkField(ctx, ref, "", pageIndex)
		if err != nil {
			log.Printf("[extract] %s: skipping field %d: %v", filePath, i, err)
			continue
		}
		out = append(out, walked...)
	}

	if e.detectHints {
		if err := attachDetectedHints(filePath, out); err != nil {
			// Hints are a best-effort signal; extraction still succeeds.
			log.Printf("[extract] %s: nearby-text detection failed: %v", filePath, err)
		}
	}
	return out, nil
}

// acroFormFields returns the top-level Fields array of the AcroForm, or nil
// when the document has no interactive form.
func acroFormFields(ctx *model.Context) (types.Array, error) {
	rootDict, err := ctx.Catalog()
	if err != nil {
		return nil, fmt.Errorf("failed to get catalog: %w", err)
	}

	acroFormObj, found := rootDict.Find("AcroForm")
	if !found {
		return nil, nil
	}
	acroFormDict, err := ctx.DereferenceDict(acroFormObj)
	if err != nil {
		return nil, fmt.Errorf("failed to dereference AcroForm: %w", err)
	}
	if acroFormDict == nil {
		return nil, nil
	}

	fieldsObj, found := acroFormDict.Find("Fields")
	if !found {
		return nil, nil
	}
	fieldsArray, err := ctx.DereferenceArray(fieldsObj)
	if err != nil {
		return nil, fmt.Errorf("failed to dereference Fields array: %w", err)
	}
	return fieldsArray, nil
}

// walkField descends one node of the field tree. Nodes whose Kids carry
// their own partial names are internal; everything else is a terminal field
// that produces one RawField.
func (e *Extractor) walkField(ctx *model.Context, fieldObj types.Object, prefix string, pageIndex map[int]int) ([]fields.RawField, error) {
	fieldDict, err := ctx.DereferenceDict(fieldObj)
	if err != nil {
		return nil, fmt.Errorf("failed to dereference field: %w", err)
	}
	if fieldDict == nil {
		return nil, nil
	}

	name := partialName(ctx, fieldDict)
	qualified := joinQualified(prefix, name)

	if kids, ok := namedKids(ctx, fieldDict); ok {
		var out []fields.RawField
		for _, kid := range kids {
			walked, err := e.walkField(ctx, kid, qualified, pageIndex)
			if err != nil {
				return nil, err
			}
			out = append(out, walked...)
		}
		return out, nil
	}

	field := e.terminalField(ctx, fieldDict, fieldObj, qualified, pageIndex)
	return []fields.RawField{field}, nil
}

// namedKids returns the Kids array when at least one kid carries its own T
// entry, meaning the kids are sub-fields rather than bare widget
// annotations.
func namedKids(ctx *model.Context, fieldDict types.Dict) (types.Array, bool) {
	kidsObj, found := fieldDict.Find("Kids")
	if !found {
		return nil, false
	}
	kidsArray, err := ctx.DereferenceArray(kidsObj)
	if err != nil || len(kidsArray) == 0 {
		return nil, false
	}
	for _, kid := range kidsArray {
		kidDict, err := ctx.DereferenceDict(kid)
		if err != nil || kidDict == nil {
			continue
		}
		if _, hasName := kidDict.Find("T"); hasName {
			return kidsArray, true
		}
	}
	return nil, false
}

func (e *Extractor) terminalField(ctx *model.Context, fieldDict types.Dict, fieldObj types.Object, qualified string, pageIndex map[int]int) fields.RawField {
	field := fields.RawField{
		Identifier: qualified,
		Kind:       fieldKind(ctx, fieldDict),
	}

	if tuObj, found := fieldDict.Find("TU"); found {
		if hint, err := ctx.DereferenceStringOrHexLiteral(tuObj, model.V10, nil); err == nil {
			field.BuiltinHint = hint
		}
	}
	if valueObj, found := fieldDict.Find("V"); found {
		field.Value = fieldValue(ctx, valueObj)
	}
	if flagsObj, found := fieldDict.Find("Ff"); found {
		if flags, err := ctx.DereferenceInteger(flagsObj); err == nil && flags != nil {
			field.ReadOnly = (*flags & flagReadOnly) != 0
			field.Required = (*flags & flagRequired) != 0
		}
	}

	field.Position, field.Page = fieldBounds(ctx, fieldDict, fieldObj, pageIndex)
	return field
}

// partialName reads the field's T entry.
func partialName(ctx *model.Context, fieldDict types.Dict) string {
	nameObj, found := fieldDict.Find("T")
	if !found {
		return ""
	}
	name, err := ctx.DereferenceStringOrHexLiteral(nameObj, model.V10, nil)
	if err != nil {
		return ""
	}
	return name
}

func joinQualified(prefix, name string) string {
	switch {
	case prefix == "":
		return name
	case name == "":
		return prefix
	default:
		return prefix + "." + name
	}
}

// Field flag bits per ISO 32000 (1-based Ff bit positions 1, 2, 16, 17).
const (
	flagReadOnly   = 1
	flagRequired   = 1 << 1
	flagRadio      = 1 << 15
	flagPushbutton = 1 << 16
)

// fieldKind maps the FT entry (inherited from Parent when absent) onto a
// field kind. Btn fields split into radio, pushbutton, and checkbox by their
// flag bits.
func fieldKind(ctx *model.Context, fieldDict types.Dict) fields.Kind {
	ftObj, found := fieldDict.Find("FT")
	if !found {
		if parentObj, found := fieldDict.Find("Parent"); found {
			if parentDict, err := ctx.DereferenceDict(parentObj); err == nil && parentDict != nil {
				return fieldKind(ctx, parentDict)
			}
		}
		return fields.KindUnknown
	}

	ftName, err := ctx.DereferenceName(ftObj, model.V10, nil)
	if err != nil {
		return fields.KindUnknown
	}

	var flags int64
	if flagsObj, found := fieldDict.Find("Ff"); found {
		if v, err := ctx.DereferenceInteger(flagsObj); err == nil && v != nil {
			flags = int64(*v)
		}
	}
	return kindFromType(string(ftName), flags)
}

// kindFromType resolves an FT name and field flags into a Kind.
func kindFromType(ftName string, flags int64) fields.Kind {
	switch ftName {
	case "Btn":
		if flags&flagRadio != 0 {
			return fields.KindRadio
		}
		if flags&flagPushbutton != 0 {
			return fields.KindButton
		}
		return fields.KindCheckbox
	case "Tx":
		return fields.KindText
	case "Ch":
		// Combo flag is bit 18.
		if flags&(1<<17) != 0 {
			return fields.KindCombo
		}
		return fields.KindListbox
	case "Sig":
		return fields.KindSignature
	default:
		return fields.KindUnknown
	}
}

// fieldValue renders the V entry as a display string regardless of type.
func fieldValue(ctx *model.Context, valueObj types.Object) string {
	if val, err := ctx.DereferenceStringOrHexLiteral(valueObj, model.V10, nil); err == nil {
		return val
	}
	if name, err := ctx.DereferenceName(valueObj, model.V10, nil); err == nil {
		return string(name)
	}
	return ""
}

// fieldBounds finds the widget rectangle for a field, looking at the field
// dictionary itself first and then its first widget kid.
func fieldBounds(ctx *model.Context, fieldDict types.Dict, fieldObj types.Object, pageIndex map[int]int) (fields.Rect, int) {
	page := pageOf(fieldObj, pageIndex)

	if rectObj, found := fieldDict.Find("Rect"); found {
		if rect, ok := parseRect(ctx, rectObj); ok {
			return rect, page
		}
	}

	if kidsObj, found := fieldDict.Find("Kids"); found {
		if kidsArray, err := ctx.DereferenceArray(kidsObj); err == nil && len(kidsArray) > 0 {
			if page == 0 {
				page = pageOf(kidsArray[0], pageIndex)
			}
			if widgetDict, err := ctx.DereferenceDict(kidsArray[0]); err == nil && widgetDict != nil {
				if rectObj, found := widgetDict.Find("Rect"); found {
					if rect, ok := parseRect(ctx, rectObj); ok {
						return rect, page
					}
				}
			}
		}
	}
	return fields.Rect{}, page
}

func parseRect(ctx *model.Context, rectObj types.Object) (fields.Rect, bool) {
	rectArray, err := ctx.DereferenceArray(rectObj)
	if err != nil || len(rectArray) != 4 {
		return fields.Rect{}, false
	}
	coords := make([]float64, 4)
	for i, coord := range rectArray {
		f, err := ctx.DereferenceNumber(coord)
		if err != nil {
			return fields.Rect{}, false
		}
		coords[i] = f
	}
	return fields.Rect{X0: coords[0], Y0: coords[1], X1: coords[2], Y1: coords[3]}, true
}

// buildAnnotationPageIndex maps widget annotation object numbers to 1-based
// page numbers by scanning each page's Annots array.
func buildAnnotationPageIndex(ctx *model.Context) map[int]int {
	index := make(map[int]int)
	for pageNr := 1; pageNr <= ctx.PageCount; pageNr++ {
		pageDict, _, _, err := ctx.PageDict(pageNr, false)
		if err != nil || pageDict == nil {
			continue
		}
		annotsObj, found := pageDict.Find("Annots")
		if !found {
			continue
		}
		annots, err := ctx.DereferenceArray(annotsObj)
		if err != nil {
			continue
		}
		for _, annot := range annots {
			if ref, ok := annot.(types.IndirectRef); ok {
				index[ref.ObjectNumber.Value()] = pageNr
			}
		}
	}
	return index
}

func pageOf(obj types.Object, pageIndex map[int]int) int {
	ref, ok := obj.(types.IndirectRef)
	if !ok {
		return 0
	}
	return pageIndex[ref.ObjectNumber.Value()]
}
