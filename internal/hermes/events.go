package hermes

import (
	"time"

	"github.com/google/uuid"
)

const (
	SubjectProspectCreated      = "avatar.prospect.created"
	SubjectConversationAnalyzed = "avatar.conversation.analyzed"
)

// Event is the envelope of every published message.
type Event struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Data       any       `json:"data"`
}

func NewEvent(subject string, data any) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       subject,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	}
}

// ProspectCreated is published after a prospect is written to the CRM.
type ProspectCreated struct {
	ConversationID string `json:"conversation_id,omitempty"`
	HubSpotID      string `json:"hubspot_id"`
	Email          string `json:"email"`
	Company        string `json:"company"`
	Enriched       bool   `json:"enriched"`
	MappingStored  bool   `json:"mapping_stored"`
}

// ConversationAnalyzed is published after a transcript has been processed.
type ConversationAnalyzed struct {
	ConversationID     string  `json:"conversation_id"`
	HubSpotID          string  `json:"hubspot_id"`
	PainPoint          string  `json:"pain_point"`
	PainConfidence     float64 `json:"pain_confidence"`
	QualificationScore int     `json:"qualification_score"`
	AnalyzerMode       string  `json:"analyzer_mode"`
	PainFieldUpdated   bool    `json:"pain_field_updated"`
	CallCreated        bool    `json:"call_created"`
}
