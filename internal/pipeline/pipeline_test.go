package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ankitmukherjee01/form-pre-processor/internal/fields"
	"github.com/ankitmukherjee01/form-pre-processor/internal/match"
	"github.com/ankitmukherjee01/form-pre-processor/internal/pdfform"
	"github.com/ankitmukherjee01/form-pre-processor/internal/vocab"
)

// testRunner wires a runner with fake PDF stages over temp directories.
func testRunner(t *testing.T, inputs []string) *Runner {
	t.Helper()
	root := t.TempDir()
	opts := Options{
		InputDir:     filepath.Join(root, "input"),
		UnlockedDir:  filepath.Join(root, "unlocked"),
		OutputDir:    filepath.Join(root, "output"),
		DecisionsDir: filepath.Join(root, "decisions"),
		Workers:      2,
	}
	require.NoError(t, os.MkdirAll(opts.InputDir, 0o755))
	for _, name := range inputs {
		require.NoError(t, os.WriteFile(filepath.Join(opts.InputDir, name), []byte("%PDF-1.7"), 0o644))
	}

	store := vocab.Load(filepath.Join(root, "labels.json"))
	engine := match.NewEngine(store, nil, match.DefaultConfig())
	runner := NewRunner(store, engine, opts)

	runner.unlock = func(in, out string) (pdfform.UnlockResult, error) {
		return pdfform.UnlockResult{}, nil
	}
	runner.extract = func(path string) ([]fields.RawField, error) {
		return []fields.RawField{
			{Identifier: "P1_City_FLD", Kind: fields.KindText, BuiltinHint: "City"},
			{Identifier: "P1_State_FLD", Kind: fields.KindText, BuiltinHint: "State"},
		}, nil
	}
	runner.apply = func(in, out string, renames map[string]string) (pdfform.ApplyResult, error) {
		if err := os.WriteFile(out, []byte("%PDF-1.7"), 0o644); err != nil {
			return pdfform.ApplyResult{}, err
		}
		return pdfform.ApplyResult{Renamed: len(renames)}, nil
	}
	return runner
}

func TestRunProcessesAllDocuments(t *testing.T) {
	runner := testRunner(t, []string{"a.pdf", "b.pdf", "c.pdf"})

	summary, err := runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Processed)
	assert.Equal(t, 0, summary.Failed)
	assert.Equal(t, 6, summary.Fields)
	assert.Empty(t, summary.Collisions)
	require.Len(t, summary.Documents, 3)
	assert.Equal(t, "a.pdf", summary.Documents[0].Name)
}

func TestRunWritesDecisionSidecars(t *testing.T) {
	runner := testRunner(t, []string{"form.pdf"})

	_, err := runner.Run(context.Background())
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(runner.opts.DecisionsDir, "form.json"))
	require.NoError(t, err)

	var doc decisionsDocument
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "form.pdf", doc.SourceFile)
	require.Len(t, doc.Fields, 2)
	assert.Equal(t, "city", doc.Fields[0].Label)
	assert.Equal(t, "state", doc.Fields[1].Label)
}

func TestProcessFileSingleDocument(t *testing.T) {
	runner := testRunner(t, []string{"form.pdf"})

	result, err := runner.ProcessFile(context.Background(), filepath.Join(runner.opts.InputDir, "form.pdf"))
	require.NoError(t, err)

	assert.Equal(t, "form.pdf", result.Name)
	assert.Empty(t, result.Err)
	assert.Equal(t, 2, result.Fields)
	assert.Equal(t, 2, result.Renamed)
	assert.FileExists(t, filepath.Join(runner.opts.OutputDir, "form.pdf"))
	assert.FileExists(t, filepath.Join(runner.opts.DecisionsDir, "form.json"))
}

func TestRunPersistsVocabulary(t *testing.T) {
	runner := testRunner(t, []string{"form.pdf"})

	_, err := runner.Run(context.Background())
	require.NoError(t, err)

	reloaded := vocab.Load(runner.store.Path())
	assert.True(t, reloaded.Exists("city"))
	assert.True(t, reloaded.Exists("state"))
}

func TestRunIsolatesDocumentFailures(t *testing.T) {
	runner := testRunner(t, []string{"bad.pdf", "good.pdf"})
	realExtract := runner.extract
	runner.extract = func(path string) ([]fields.RawField, error) {
		if filepath.Base(path) == "bad.pdf" {
			return nil, errors.New("corrupted xref table")
		}
		return realExtract(path)
	}

	summary, err := runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Processed)
	assert.Equal(t, 1, summary.Failed)

	var failed DocumentResult
	for _, doc := range summary.Documents {
		if doc.Name == "bad.pdf" {
			failed = doc
		}
	}
	assert.Contains(t, failed.Err, "corrupted xref table")
}

func TestRunSkipsProcessedDocuments(t *testing.T) {
	runner := testRunner(t, []string{"done.pdf", "new.pdf"})
	runner.opts.SkipProcessed = true
	require.NoError(t, os.MkdirAll(runner.opts.OutputDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(runner.opts.OutputDir, "done.pdf"), []byte("%PDF-1.7"), 0o644))

	summary, err := runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Processed)
	assert.Equal(t, 1, summary.Skipped)
}

func TestRunCountsDocumentsWithoutFields(t *testing.T) {
	runner := testRunner(t, []string{"flat.pdf"})
	runner.extract = func(path string) ([]fields.RawField, error) { return nil, nil }

	summary, err := runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, summary.Processed)
	assert.Equal(t, 1, summary.NoFields)
}

func TestRunRejectsEmptyInputDir(t *testing.T) {
	runner := testRunner(t, nil)

	_, err := runner.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no PDF files")
}

func TestResolveCollisions(t *testing.T) {
	records := []match.DecisionRecord{
		{SourceIdentifier: "f1", Label: "city"},
		{SourceIdentifier: "f2", Label: "city"},
		{SourceIdentifier: "f3", Label: "state"},
	}
	assert.Equal(t, []string{"city"}, resolveCollisions("doc.pdf", records))

	// The duplicate was re-decided in place, so every label is now unique.
	assert.Equal(t, "city", records[0].Label)
	assert.Equal(t, "city_2", records[1].Label)
	assert.Equal(t, "state", records[2].Label)
	assert.Empty(t, resolveCollisions("doc.pdf", records))
}
