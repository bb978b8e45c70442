// Package pdfform adapts the form-field pipeline to real PDF files: it
// unlocks restricted forms, extracts the interactive field tree, finds label
// text near widgets, and rewrites field names in the form dictionary.
package pdfform

import (
	"fmt"
	"os"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// openContext reads a PDF into a pdfcpu context with relaxed validation,
// which tolerates the malformed structures common in scanned government
// forms.
func openContext(filePath string) (*model.Context, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF file: %w", err)
	}
	defer file.Close()

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	ctx, err := api.ReadContext(file, conf)
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF context: %w", err)
	}
	if err := ctx.EnsurePageCount(); err != nil {
		return nil, fmt.Errorf("failed to ensure page count: %w", err)
	}
	return ctx, nil
}

// writeContext serializes a modified context to outPath.
func writeContext(ctx *model.Context, outPath string) error {
	if err := api.WriteContextFile(ctx, outPath); err != nil {
		return fmt.Errorf("failed to write PDF: %w", err)
	}
	return nil
}
