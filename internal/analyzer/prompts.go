package analyzer

import (
	"fmt"
	"strings"

	"github.com/triario/avatar-backend/internal/prospect"
	"github.com/triario/avatar-backend/internal/taxonomy"
)

// SchemaName names the structured output schema sent to models that support it.
const SchemaName = "conversation_analysis"

const systemPrompt = `You are an expert sales conversation analyst. You read the transcript of a call between an SDR agent and a prospect and extract the information a sales team needs to follow up.

Always answer in Spanish. Respond with a single JSON object and nothing else.`

const userPromptTemplate = `Analyze the transcript below.

INSTRUCTIONS:
1. Read the whole transcript.
2. Identify the prospect's main sales pain. It MUST be exactly one of the valid pains listed below.
3. Write an executive summary of at most 200 words.
4. Extract the key insights.
5. Recommend next steps.
6. Score how qualified the prospect is from 1 (not a fit) to 10 (ready to buy).

VALID SALES PAINS:
%s

OUTPUT FORMAT (JSON):
{
  "summary": string,
  "pain_point": string,
  "pain_confidence": number between 0.0 and 1.0,
  "qualification_score": integer between 1 and 10,
  "key_insights": [string],
  "next_steps": [string]
}

TRANSCRIPT:
%s

PROSPECT CONTEXT:
- Name: %s
- Company: %s
- Role: %s
- Email: %s`

func buildPrompt(tax *taxonomy.Taxonomy, t Transcript, p prospect.Prospect) string {
	var pains strings.Builder
	for _, label := range tax.Labels() {
		pains.WriteString("- ")
		pains.WriteString(string(label))
		pains.WriteString("\n")
	}
	return fmt.Sprintf(userPromptTemplate,
		strings.TrimRight(pains.String(), "\n"),
		t.Format(),
		orNA(p.FullName()),
		orNA(p.Company),
		orNA(p.Role),
		orNA(p.Email),
	)
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}

// Schema is the strict JSON schema of an Analysis, with pain_point
// restricted to the taxonomy's labels.
func Schema(tax *taxonomy.Taxonomy) map[string]any {
	labels := make([]any, 0, len(tax.Pains)+1)
	for _, l := range tax.Labels() {
		labels = append(labels, string(l))
	}
	labels = append(labels, string(tax.Other))

	stringList := map[string]any{"type": "array", "items": map[string]any{"type": "string"}}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"summary":             map[string]any{"type": "string"},
			"pain_point":          map[string]any{"type": "string", "enum": labels},
			"pain_confidence":     map[string]any{"type": "number"},
			"qualification_score": map[string]any{"type": "integer"},
			"key_insights":        stringList,
			"next_steps":          stringList,
		},
		"required": []any{"summary", "pain_point", "pain_confidence", "qualification_score", "key_insights", "next_steps"},
	}
}
