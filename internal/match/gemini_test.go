package match

import (
	"testing"

	"cloud.google.com/go/vertexai/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ankitmukherjee01/form-pre-processor/internal/fields"
)

func TestParseDecisions(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		want    int
		wantErr bool
	}{
		{
			name: "bare array",
			text: `[{"action":"match_existing","original_field_name":"f1","standardized_label":"city","confidence":95,"reasoning":"ok"}]`,
			want: 1,
		},
		{
			name: "fenced json",
			text: "```json\n[{\"action\":\"create_new\",\"original_field_name\":\"f1\",\"standardized_label\":\"city\",\"confidence\":\"high\",\"reasoning\":\"ok\"}]\n```",
			want: 1,
		},
		{
			name: "leading prose",
			text: "Here are the decisions:\n[{\"action\":\"keep_original\",\"original_field_name\":\"city\",\"standardized_label\":\"city\",\"confidence\":90,\"reasoning\":\"ok\"}]",
			want: 1,
		},
		{
			name:    "no array",
			text:    "I could not decide.",
			wantErr: true,
		},
		{
			name:    "broken json",
			text:    `[{"action":`,
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDecisions(tt.text)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, got, tt.want)
		})
	}
}

func TestParseDecisionsKeepsLooseConfidence(t *testing.T) {
	got, err := ParseDecisions(`[{"action":"match_existing","original_field_name":"f1","standardized_label":"city","confidence":"very high","reasoning":"ok"}]`)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 95, NormalizeConfidence(got[0].Confidence))
}

func TestBatchPrompt(t *testing.T) {
	batch := []fields.RawField{
		{
			Identifier:  "P1_City_FLD",
			Kind:        fields.KindText,
			BuiltinHint: "City",
			Page:        1,
			Position:    fields.Rect{X0: 100, Y0: 200, X1: 260, Y1: 218},
			Value:       "Springfield",
		},
		{Identifier: "c1", Kind: fields.KindCheckbox, Page: 2},
	}
	prompt, err := batchPrompt(batch)
	require.NoError(t, err)

	assert.Contains(t, prompt, `"P1_City_FLD"`)
	assert.Contains(t, prompt, `"City"`)
	assert.Contains(t, prompt, `"checkbox"`)
	assert.Contains(t, prompt, `(100.0, 200.0) to (260.0, 218.0)`)
	assert.Contains(t, prompt, `"Springfield"`)
	assert.NotContains(t, prompt, `"position": ""`)
}

func TestDispatchTool(t *testing.T) {
	store := newTestStore(t, "city", "dependent_name", "dependent_name_2")
	tracker := NewTracker()
	tracker.RecordUsage("city")
	tools := docToolbox{store: store, tracker: tracker}

	t.Run("search", func(t *testing.T) {
		resp := dispatchTool(genai.FunctionCall{
			Name: "search_similar_labels",
			Args: map[string]any{"query": "City"},
		}, tools)
		matches, ok := resp["matches"].([]map[string]any)
		require.True(t, ok)
		require.NotEmpty(t, matches)
		assert.Equal(t, "city", matches[0]["label"])
	})

	t.Run("variants", func(t *testing.T) {
		resp := dispatchTool(genai.FunctionCall{
			Name: "get_numbered_variants",
			Args: map[string]any{"base_label": "dependent_name"},
		}, tools)
		assert.Equal(t, []string{"dependent_name_2"}, resp["variants"])
	})

	t.Run("usage", func(t *testing.T) {
		resp := dispatchTool(genai.FunctionCall{
			Name: "check_label_usage",
			Args: map[string]any{"label": "city"},
		}, tools)
		assert.Equal(t, true, resp["exists"])
		assert.Equal(t, true, resp["used_in_document"])
	})

	t.Run("missing argument", func(t *testing.T) {
		resp := dispatchTool(genai.FunctionCall{Name: "search_similar_labels"}, tools)
		assert.Contains(t, resp, "error")
	})

	t.Run("unknown tool", func(t *testing.T) {
		resp := dispatchTool(genai.FunctionCall{Name: "delete_vocabulary"}, tools)
		assert.Contains(t, resp, "error")
	})
}

var _ Oracle = (*GeminiOracle)(nil)
