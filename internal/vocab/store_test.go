package vocab

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeVocabFile(t *testing.T, dir string, content string) string {
	t.Helper()
	path := filepath.Join(dir, "label_list.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadMissingFileStartsEmpty(t *testing.T) {
	s := Load(filepath.Join(t.TempDir(), "nope.json"))
	assert.Equal(t, 0, s.Len())
	assert.Empty(t, s.FuzzySearch("anything", 5))
}

func TestLoadCorruptFileStartsEmpty(t *testing.T) {
	path := writeVocabFile(t, t.TempDir(), "{not json")
	s := Load(path)
	assert.Equal(t, 0, s.Len())
}

func TestLoadReadsLabels(t *testing.T) {
	path := writeVocabFile(t, t.TempDir(),
		`{"standardized_field_labels": ["city", "first_name", "social_security_number"]}`)
	s := Load(path)

	assert.Equal(t, 3, s.Len())
	assert.True(t, s.Exists("city"))
	assert.False(t, s.Exists("last_name"))
}

func TestFuzzySearchOrdering(t *testing.T) {
	path := writeVocabFile(t, t.TempDir(),
		`{"standardized_field_labels": ["social_security_number", "spouse_social_security_number", "city", "phone_number"]}`)
	s := Load(path)

	matches := s.FuzzySearch("social security number", 3)
	require.Len(t, matches, 3)
	assert.Equal(t, "social_security_number", matches[0].Label)
	assert.Equal(t, 100, matches[0].Similarity)
	assert.GreaterOrEqual(t, matches[0].Similarity, matches[1].Similarity)
	assert.GreaterOrEqual(t, matches[1].Similarity, matches[2].Similarity)
}

func TestFuzzySearchTokenOrderInsensitive(t *testing.T) {
	path := writeVocabFile(t, t.TempDir(),
		`{"standardized_field_labels": ["social_security_number"]}`)
	s := Load(path)

	matches := s.FuzzySearch("number social security", 1)
	require.Len(t, matches, 1)
	assert.Equal(t, 100, matches[0].Similarity)
}

func TestFuzzySearchTiesBreakLexically(t *testing.T) {
	path := writeVocabFile(t, t.TempDir(),
		`{"standardized_field_labels": ["zz_unrelated_bb", "aa_unrelated_bb"]}`)
	s := Load(path)

	matches := s.FuzzySearch("completely different", 2)
	require.Len(t, matches, 2)
	if matches[0].Similarity == matches[1].Similarity {
		assert.Less(t, matches[0].Label, matches[1].Label)
	}
}

func TestNumberedVariants(t *testing.T) {
	path := writeVocabFile(t, t.TempDir(),
		`{"standardized_field_labels": ["previous_marriage_1_when", "previous_marriage_2_when", "previous_marriage_when", "city"]}`)
	s := Load(path)

	variants := s.NumberedVariants("previous_marriage_when")
	assert.Equal(t, []string{"previous_marriage_1_when", "previous_marriage_2_when"}, variants)

	assert.Empty(t, s.NumberedVariants("city"))
}

func TestInsertRejectsDuplicates(t *testing.T) {
	s := Load(filepath.Join(t.TempDir(), "v.json"))

	require.NoError(t, s.Insert("city"))
	err := s.Insert("city")
	assert.True(t, errors.Is(err, ErrDuplicateLabel))
	assert.Equal(t, 1, s.Len())
}

func TestPersistSortsAndMergesMetadata(t *testing.T) {
	dir := t.TempDir()
	path := writeVocabFile(t, dir, `{
		"standardized_field_labels": ["city"],
		"metadata": {"total_labels": 1, "curator": "forms-team"},
		"schema_version": 2
	}`)

	s := Load(path)
	require.NoError(t, s.Insert("address"))
	require.NoError(t, s.Persist())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc struct {
		Labels        []string       `json:"standardized_field_labels"`
		Metadata      map[string]any `json:"metadata"`
		SchemaVersion int            `json:"schema_version"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))

	assert.Equal(t, []string{"address", "city"}, doc.Labels)
	assert.EqualValues(t, 2, doc.Metadata["total_labels"])
	assert.Equal(t, "forms-team", doc.Metadata["curator"])
	assert.NotEmpty(t, doc.Metadata["last_modified"])
	assert.Equal(t, 2, doc.SchemaVersion)
}

func TestPersistCreatesFileWhenMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "label_list.json")
	s := Load(path)
	require.NoError(t, s.Insert("first_name"))
	require.NoError(t, s.Persist())

	reloaded := Load(path)
	assert.True(t, reloaded.Exists("first_name"))
}

func TestSimilarityBasics(t *testing.T) {
	assert.Equal(t, 100, Similarity("first_name", "first name"))
	assert.Equal(t, 0, Similarity("", "city"))
	assert.Greater(t, Similarity("city", "city_2"), Similarity("city", "zip_code"))
}
