package pdfform

import (
	"fmt"
	"log"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// Field flag bit 14 locks a field after signing.
const flagLocked = 1 << 13

// UnlockResult reports what the unlock pass changed in one document.
type UnlockResult struct {
	RemovedPerms    bool
	RemovedXFA      bool
	ClearedSigFlags bool
	UnlockedFields  int
}

// Changed reports whether the unlock pass modified anything.
func (r UnlockResult) Changed() bool {
	return r.RemovedPerms || r.RemovedXFA || r.ClearedSigFlags || r.UnlockedFields > 0
}

// Unlock removes the usage restrictions that stop form fields from being
// edited: the Perms dictionary, the XFA entry, signature flags, and the
// per-field ReadOnly and Locked flag bits. The unlocked document is written
// to outPath; the input file is never modified.
func Unlock(filePath, outPath string) (UnlockResult, error) {
	var result UnlockResult

	ctx, err := openContext(filePath)
	if err != nil {
		return result, err
	}

	rootDict, err := ctx.Catalog()
	if err != nil {
		return result, fmt.Errorf("failed to get catalog: %w", err)
	}
	if _, found := rootDict.Find("Perms"); found {
		rootDict.Delete("Perms")
		result.RemovedPerms = true
	}

	if acroFormObj, found := rootDict.Find("AcroForm"); found {
		acroFormDict, err := ctx.DereferenceDict(acroFormObj)
		if err != nil {
			return result, fmt.Errorf("failed to dereference AcroForm: %w", err)
		}
		if acroFormDict != nil {
			if _, found := acroFormDict.Find("XFA"); found {
				acroFormDict.Delete("XFA")
				result.RemovedXFA = true
			}
			if _, found := acroFormDict.Find("SigFlags"); found {
				acroFormDict.Delete("SigFlags")
				result.ClearedSigFlags = true
			}
		}
	}

	fieldRefs, err := acroFormFields(ctx)
	if err != nil {
		return result, err
	}
	for i, ref := range fieldRefs {
		n, err := unlockFieldTree(ctx, ref)
		if err != nil {
			log.Printf("[unlock] %s: skipping field %d: %v", filePath, i, err)
			continue
		}
		result.UnlockedFields += n
	}

	if err := writeContext(ctx, outPath); err != nil {
		return result, err
	}
	return result, nil
}

// unlockFieldTree clears restrictive flag bits on a field and all of its
// descendants, returning how many dictionaries changed.
func unlockFieldTree(ctx *model.Context, fieldObj types.Object) (int, error) {
	fieldDict, err := ctx.DereferenceDict(fieldObj)
	if err != nil {
		return 0, fmt.Errorf("failed to dereference field: %w", err)
	}
	if fieldDict == nil {
		return 0, nil
	}

	changed := 0
	if flagsObj, found := fieldDict.Find("Ff"); found {
		if flags, err := ctx.DereferenceInteger(flagsObj); err == nil && flags != nil {
			cleared := clearRestrictiveFlags(int64(*flags))
			if cleared != int64(*flags) {
				fieldDict["Ff"] = types.Integer(cleared)
				changed++
			}
		}
	}

	if kidsObj, found := fieldDict.Find("Kids"); found {
		if kidsArray, err := ctx.DereferenceArray(kidsObj); err == nil {
			for _, kid := range kidsArray {
				n, err := unlockFieldTree(ctx, kid)
				if err != nil {
					return changed, err
				}
				changed += n
			}
		}
	}
	return changed, nil
}

// clearRestrictiveFlags drops the ReadOnly and Locked bits, keeping
// everything else (Required, Radio, Pushbutton, Combo) intact.
func clearRestrictiveFlags(flags int64) int64 {
	return flags &^ (flagReadOnly | flagLocked)
}
