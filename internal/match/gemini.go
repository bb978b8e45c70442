package match

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"cloud.google.com/go/vertexai/genai"

	"github.com/ankitmukherjee01/form-pre-processor/internal/fields"
)

// standardizerSystemPrompt steers the model toward the fixed label grammar
// and the reuse-before-create policy.
const standardizerSystemPrompt = `You standardize interactive form field names from government PDF forms.

For each field you receive the raw field identifier, the field type, and any
nearby label text found on the page. Decide ONE of three actions per field:

- "match_existing": the field means the same thing as a label already in the
  vocabulary. Reuse that label exactly. Always prefer this when a good match
  exists; use the search_similar_labels tool to look for candidates before
  creating anything.
- "create_new": no existing label fits. Invent a descriptive snake_case label:
  lowercase letters, digits and single underscores only, starting with a
  letter, 2 to 80 characters, no leading, trailing or doubled underscores.
  Describe what the field collects (for example "wage_earner_social_security_number",
  not "p1_ssn_fld"). Checkbox fields end with "_checkbox".
- "keep_original": the raw identifier is already a clean descriptive
  snake_case label meeting the rules above.

Each label may be used at most ONCE per document. Before assigning a label,
call check_label_usage; if it is already used in this document, pick a
numbered variant instead (use get_numbered_variants to see which suffixes are
taken, then use the next free one, for example "dependent_name_2").

Abbreviations expand: ssn becomes social_security_number, dob becomes
date_of_birth, addr becomes address.

Respond ONLY with a JSON array, one object per input field in input order:
[{"action": "...", "original_field_name": "...", "standardized_label": "...",
"confidence": 0-100, "reasoning": "one short sentence"}]`

// toolLoopCap bounds the tool-calling conversation so a confused model
// cannot spin forever.
const toolLoopCap = 10

// GeminiOracle answers label decisions with a Vertex AI generative model that
// can call back into the vocabulary through function tools.
type GeminiOracle struct {
	model  *genai.GenerativeModel
	client *genai.Client
	retry  RetryPolicy
}

// NewGeminiOracle dials Vertex AI and configures the generative model with
// the standardizer instructions and vocabulary tools.
func NewGeminiOracle(ctx context.Context, projectID, region, modelName string) (*GeminiOracle, error) {
	if projectID == "" || region == "" {
		return nil, fmt.Errorf("NewGeminiOracle: projectID and region cannot be empty")
	}
	client, err := genai.NewClient(ctx, projectID, region)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(standardizerSystemPrompt)},
	}
	model.GenerationConfig = genai.GenerationConfig{
		Temperature: genai.Ptr[float32](0.0),
	}
	model.Tools = []*genai.Tool{vocabularyTool()}

	return &GeminiOracle{
		model:  model,
		client: client,
		retry:  DefaultRetryPolicy(),
	}, nil
}

// Close releases the underlying Vertex AI connection.
func (o *GeminiOracle) Close() error {
	if o.client != nil {
		return o.client.Close()
	}
	return nil
}

func vocabularyTool() *genai.Tool {
	return &genai.Tool{
		FunctionDeclarations: []*genai.FunctionDeclaration{
			{
				Name:        "search_similar_labels",
				Description: "Search the existing vocabulary for labels similar to a query. Returns the best matches with similarity scores 0-100.",
				Parameters: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"query": {Type: genai.TypeString, Description: "Text to match against existing labels, e.g. a field hint or draft label."},
					},
					Required: []string{"query"},
				},
			},
			{
				Name:        "get_numbered_variants",
				Description: "List existing numbered variants of a base label, e.g. dependent_name_2, dependent_name_3.",
				Parameters: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"base_label": {Type: genai.TypeString, Description: "Base label without a numeric suffix."},
					},
					Required: []string{"base_label"},
				},
			},
			{
				Name:        "check_label_usage",
				Description: "Check whether a label exists in the vocabulary and whether it is already used for another field in the current document.",
				Parameters: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"label": {Type: genai.TypeString, Description: "Exact label to check."},
					},
					Required: []string{"label"},
				},
			},
		},
	}
}

// DecideBatch sends one batch of fields through a tool-enabled chat and
// parses the final JSON decision array.
func (o *GeminiOracle) DecideBatch(ctx context.Context, batch []fields.RawField, tools Toolbox) ([]Decision, error) {
	prompt, err := batchPrompt(batch)
	if err != nil {
		return nil, err
	}

	var decisions []Decision
	err = o.retry.Do(ctx, func(ctx context.Context) error {
		session := o.model.StartChat()
		resp, err := session.SendMessage(ctx, genai.Text(prompt))
		if err != nil {
			return fmt.Errorf("oracle send: %w", err)
		}
		for round := 0; round < toolLoopCap; round++ {
			calls := functionCalls(resp)
			if len(calls) == 0 {
				break
			}
			replies := make([]genai.Part, 0, len(calls))
			for _, call := range calls {
				replies = append(replies, genai.FunctionResponse{
					Name:     call.Name,
					Response: dispatchTool(call, tools),
				})
			}
			resp, err = session.SendMessage(ctx, replies...)
			if err != nil {
				return fmt.Errorf("oracle tool reply: %w", err)
			}
		}

		text := responseText(resp)
		if text == "" {
			return fmt.Errorf("oracle returned no text content")
		}
		parsed, perr := ParseDecisions(text)
		if perr != nil {
			return perr
		}
		decisions = parsed
		return nil
	})
	if err != nil {
		return nil, err
	}
	return decisions, nil
}

// batchPrompt renders the per-field context the model decides from.
func batchPrompt(batch []fields.RawField) (string, error) {
	type item struct {
		FieldName  string `json:"field_name"`
		FieldType  string `json:"field_type"`
		NearbyText string `json:"nearby_text,omitempty"`
		Page       int    `json:"page,omitempty"`
		Position   string `json:"position,omitempty"`
		Value      string `json:"current_value,omitempty"`
	}
	items := make([]item, 0, len(batch))
	for _, f := range batch {
		it := item{
			FieldName:  f.Identifier,
			FieldType:  string(f.Kind),
			NearbyText: f.BestHint(),
			Page:       f.Page,
			Value:      f.Value,
		}
		if f.Position != (fields.Rect{}) {
			it.Position = f.Position.String()
		}
		items = append(items, it)
	}
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal batch: %w", err)
	}
	return "Standardize these form fields:\n" + string(data), nil
}

func functionCalls(resp *genai.GenerateContentResponse) []genai.FunctionCall {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil
	}
	var calls []genai.FunctionCall
	for _, part := range resp.Candidates[0].Content.Parts {
		if call, ok := part.(genai.FunctionCall); ok {
			calls = append(calls, call)
		}
	}
	return calls
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}
	return sb.String()
}

// dispatchTool executes one vocabulary tool call and packages the result for
// the model. Unknown tools and bad arguments return an error payload instead
// of failing the batch.
func dispatchTool(call genai.FunctionCall, tools Toolbox) map[string]any {
	switch call.Name {
	case "search_similar_labels":
		query, ok := stringArg(call.Args, "query")
		if !ok {
			return map[string]any{"error": "missing query"}
		}
		matches := tools.SearchSimilar(query, 5)
		out := make([]map[string]any, 0, len(matches))
		for _, m := range matches {
			out = append(out, map[string]any{"label": m.Label, "similarity": m.Similarity})
		}
		return map[string]any{"matches": out}
	case "get_numbered_variants":
		base, ok := stringArg(call.Args, "base_label")
		if !ok {
			return map[string]any{"error": "missing base_label"}
		}
		return map[string]any{"variants": tools.NumberedVariants(base)}
	case "check_label_usage":
		label, ok := stringArg(call.Args, "label")
		if !ok {
			return map[string]any{"error": "missing label"}
		}
		return map[string]any{
			"exists":           tools.LabelExists(label),
			"used_in_document": tools.UsedInDocument(label),
		}
	default:
		log.Printf("[oracle] ignoring unknown tool call %q", call.Name)
		return map[string]any{"error": "unknown tool " + call.Name}
	}
}

func stringArg(args map[string]any, key string) (string, bool) {
	v, ok := args[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return "", false
	}
	return strings.TrimSpace(s), true
}

// ParseDecisions extracts the JSON decision array from model output,
// tolerating markdown code fences and leading prose.
func ParseDecisions(text string) ([]Decision, error) {
	cleaned := strings.TrimSpace(text)
	if i := strings.Index(cleaned, "```"); i >= 0 {
		cleaned = cleaned[i+3:]
		cleaned = strings.TrimPrefix(cleaned, "json")
		if j := strings.Index(cleaned, "```"); j >= 0 {
			cleaned = cleaned[:j]
		}
	}
	start := strings.Index(cleaned, "[")
	end := strings.LastIndex(cleaned, "]")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON array in oracle response")
	}
	var decisions []Decision
	if err := json.Unmarshal([]byte(cleaned[start:end+1]), &decisions); err != nil {
		return nil, fmt.Errorf("parse oracle decisions: %w", err)
	}
	return decisions, nil
}
