package pdfform

import (
	"fmt"
	"log"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/ankitmukherjee01/form-pre-processor/internal/vocab"
)

// fuzzyRenameThreshold is the minimum similarity for matching a field whose
// stored identifier drifted from the extracted one (encoding differences,
// re-saves between extraction and rewriting).
const fuzzyRenameThreshold = 95

// ApplyResult reports the outcome of rewriting one document.
type ApplyResult struct {
	Renamed   int
	Unmatched []string
}

// Apply rewrites field names in the form dictionary: each terminal field
// whose fully-qualified identifier appears in renames gets its T entry
// replaced with the standardized label, its Parent link removed, and the
// AcroForm Fields array flattened so every renamed field sits at the top
// level under its full standardized name. The rewritten document goes to
// outPath.
func Apply(filePath, outPath string, renames map[string]string) (ApplyResult, error) {
	var result ApplyResult

	ctx, err := openContext(filePath)
	if err != nil {
		return result, err
	}

	fieldRefs, err := acroFormFields(ctx)
	if err != nil {
		return result, err
	}
	if len(fieldRefs) == 0 {
		return result, fmt.Errorf("document has no interactive form fields")
	}

	terminals, err := collectTerminals(ctx, fieldRefs, "")
	if err != nil {
		return result, err
	}

	var flattened types.Array
	consumed := make(map[string]bool, len(renames))
	for _, term := range terminals {
		label, ok := resolveRename(term.qualified, renames, consumed)
		if !ok {
			result.Unmatched = append(result.Unmatched, term.qualified)
			flattened = append(flattened, term.ref)
			continue
		}
		term.dict["T"] = types.StringLiteral(label)
		term.dict.Delete("Parent")
		flattened = append(flattened, term.ref)
		result.Renamed++
	}

	if err := setAcroFormFields(ctx, flattened); err != nil {
		return result, err
	}
	if err := writeContext(ctx, outPath); err != nil {
		return result, err
	}
	return result, nil
}

// terminal is one renameable leaf of the field tree.
type terminal struct {
	qualified string
	dict      types.Dict
	ref       types.Object
}

// collectTerminals walks the field tree the same way extraction does, so the
// qualified identifiers line up with previously extracted fields.
func collectTerminals(ctx *model.Context, fieldRefs types.Array, prefix string) ([]terminal, error) {
	var out []terminal
	for _, ref := range fieldRefs {
		fieldDict, err := ctx.DereferenceDict(ref)
		if err != nil {
			return nil, fmt.Errorf("failed to dereference field: %w", err)
		}
		if fieldDict == nil {
			continue
		}
		qualified := joinQualified(prefix, partialName(ctx, fieldDict))

		if kids, ok := namedKids(ctx, fieldDict); ok {
			nested, err := collectTerminals(ctx, kids, qualified)
			if err != nil {
				return nil, err
			}
			out = append(out, nested...)
			continue
		}
		out = append(out, terminal{qualified: qualified, dict: fieldDict, ref: ref})
	}
	return out, nil
}

// resolveRename looks the qualified identifier up exactly, then falls back
// to the closest fuzzy match above the rename threshold. Each rename entry
// maps to a single field, so a matched key is consumed and never reused for
// another terminal.
func resolveRename(qualified string, renames map[string]string, consumed map[string]bool) (string, bool) {
	if label, ok := renames[qualified]; ok && !consumed[qualified] {
		consumed[qualified] = true
		return label, true
	}

	bestScore := 0
	bestLabel := ""
	bestKey := ""
	for key, label := range renames {
		if consumed[key] {
			continue
		}
		score := vocab.Similarity(qualified, key)
		if score > bestScore {
			bestScore, bestLabel, bestKey = score, label, key
		}
	}
	if bestScore >= fuzzyRenameThreshold {
		log.Printf("[apply] fuzzy-matched field %q to %q (similarity %d)", qualified, bestKey, bestScore)
		consumed[bestKey] = true
		return bestLabel, true
	}
	return "", false
}

// setAcroFormFields replaces the AcroForm Fields array with the flattened
// list of terminal fields.
func setAcroFormFields(ctx *model.Context, flattened types.Array) error {
	rootDict, err := ctx.Catalog()
	if err != nil {
		return fmt.Errorf("failed to get catalog: %w", err)
	}
	acroFormObj, found := rootDict.Find("AcroForm")
	if !found {
		return fmt.Errorf("document has no AcroForm dictionary")
	}
	acroFormDict, err := ctx.DereferenceDict(acroFormObj)
	if err != nil || acroFormDict == nil {
		return fmt.Errorf("failed to dereference AcroForm: %w", err)
	}
	acroFormDict["Fields"] = flattened
	return nil
}
