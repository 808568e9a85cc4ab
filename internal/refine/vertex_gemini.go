package refine

import (
	"context"
	"encoding/json"
	"strings"

	vertexgenai "cloud.google.com/go/vertexai/genai"
	"google.golang.org/api/iterator"

	"github.com/relevohq/relevo/internal/models"
)

const refinePrompt = `You are assisting a nurse-to-nurse shift handoff. Enrich the structured
handoff record below. Rules:
- Keep patient_key, alias_token, and room_token EXACTLY as given. Never invent,
  alter, or remove them.
- Every plan item with priority P0 must get due "now"; P1 items must get one of
  "now", "within_1h", "today", "next_shift". P2 items may stay "unspecified".
- Add at least one short clarifying question per patient in "questions".
- Summaries must refer to patients only by patient_key.
Respond with ONLY the enriched JSON object, same shape as the input.

Input:
`

// VertexGemini enriches results through Vertex AI. The streamed response is
// re-assembled, stripped of markdown fences, parsed, and still subject to
// Validate at the call site; the model is never trusted with the contract.
type VertexGemini struct {
	client *vertexgenai.Client
	model  *vertexgenai.GenerativeModel
}

func NewVertexGemini(ctx context.Context, projectID, location, modelName string) (*VertexGemini, error) {
	c, err := vertexgenai.NewClient(ctx, projectID, location)
	if err != nil {
		return nil, err
	}
	if modelName == "" {
		modelName = "gemini-1.5-flash"
	}
	return &VertexGemini{client: c, model: c.GenerativeModel(modelName)}, nil
}

func (v *VertexGemini) Close() error   { return v.client.Close() }
func (v *VertexGemini) Name() string   { return "vertex-gemini" }
func (v *VertexGemini) External() bool { return true }

func (v *VertexGemini) Refine(ctx context.Context, result models.PipelineResult) (models.PipelineResult, error) {
	payload, err := json.Marshal(result)
	if err != nil {
		return models.PipelineResult{}, err
	}

	it := v.model.GenerateContentStream(ctx, vertexgenai.Text(refinePrompt+string(payload)))

	var full strings.Builder
	for {
		resp, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return models.PipelineResult{}, err
		}
		for _, cand := range resp.Candidates {
			if cand.Content == nil {
				continue
			}
			for _, part := range cand.Content.Parts {
				if t, ok := part.(vertexgenai.Text); ok {
					full.WriteString(string(t))
				}
			}
		}
	}

	var enriched models.PipelineResult
	if err := json.Unmarshal([]byte(stripFences(full.String())), &enriched); err != nil {
		return models.PipelineResult{}, err
	}
	return enriched, nil
}

// stripFences removes a ```json ... ``` wrapper when the model adds one.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
