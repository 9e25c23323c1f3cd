package analyzer

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/triario/avatar-backend/internal/taxonomy"
)

// Utterance roles as sent by the video platform.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Utterance is one turn of the conversation.
type Utterance struct {
	Role      string     `json:"role"`
	Content   string     `json:"content"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

// ToolCall is a function invocation made by the agent during the call.
type ToolCall struct {
	ID       string `json:"id,omitempty"`
	Type     string `json:"type,omitempty"`
	Function struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments,omitempty"`
	} `json:"function"`
}

// Transcript is the conversation in speaking order.
type Transcript []Utterance

// Steps is a list of recommended actions. Models sometimes answer with a
// single string, which decodes as a one-element list.
type Steps []string

func (s *Steps) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*s = list
		return nil
	}
	var single string
	if err := json.Unmarshal(data, &single); err != nil {
		return fmt.Errorf("next_steps must be a string or a list of strings: %w", err)
	}
	if strings.TrimSpace(single) == "" {
		*s = Steps{}
		return nil
	}
	*s = Steps{single}
	return nil
}

// MarshalJSON always emits a list, never null.
func (s Steps) MarshalJSON() ([]byte, error) {
	if s == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(s))
}

// Analysis is the structured result of analyzing one conversation.
type Analysis struct {
	Summary            string             `json:"summary"`
	PainPoint          taxonomy.PainPoint `json:"pain_point"`
	PainConfidence     float64            `json:"pain_confidence"`
	QualificationScore int                `json:"qualification_score"`
	KeyInsights        []string           `json:"key_insights"`
	NextSteps          Steps              `json:"next_steps"`
}

func (a Analysis) validate() error {
	if strings.TrimSpace(a.Summary) == "" {
		return fmt.Errorf("summary is empty")
	}
	if strings.TrimSpace(string(a.PainPoint)) == "" {
		return fmt.Errorf("pain_point is empty")
	}
	if a.PainConfidence < 0 || a.PainConfidence > 1 {
		return fmt.Errorf("pain_confidence %v out of range", a.PainConfidence)
	}
	if a.QualificationScore < 1 || a.QualificationScore > 10 {
		return fmt.Errorf("qualification_score %d out of range", a.QualificationScore)
	}
	return nil
}
