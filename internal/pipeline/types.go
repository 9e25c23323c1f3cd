package pipeline

import (
	"encoding/json"

	"github.com/triario/avatar-backend/internal/analyzer"
	"github.com/triario/avatar-backend/internal/apierr"
	"github.com/triario/avatar-backend/internal/apollo"
	"github.com/triario/avatar-backend/internal/prospect"
)

// Outcome statuses reported to the webhook caller.
const (
	StatusSuccess = "success"
	StatusPartial = "partial"
	StatusFailed  = "failed"
	StatusWarning = "warning"
)

// ReasonNotFound is reported when no mapping exists for a conversation.
const ReasonNotFound = "not_found"

// TranscriptEvent is a finished conversation delivered by the video platform.
type TranscriptEvent struct {
	ConversationID string
	ReplicaID      string
	Transcript     analyzer.Transcript
}

// Updates reports each CRM write independently.
type Updates struct {
	PainFieldUpdated bool          `json:"pain_field_updated"`
	PainFieldError   *apierr.Error `json:"pain_field_error,omitempty"`
	CallCreated      bool          `json:"call_created"`
	CallID           string        `json:"call_id,omitempty"`
	CallError        *apierr.Error `json:"call_error,omitempty"`
}

// TranscriptResult is the outcome of HandleTranscript.
type TranscriptResult struct {
	Status         string             `json:"status"`
	Reason         string             `json:"reason,omitempty"`
	Message        string             `json:"message"`
	ConversationID string             `json:"conversation_id"`
	HubSpotID      string             `json:"hubspot_id,omitempty"`
	AnalyzerMode   string             `json:"analyzer_mode,omitempty"`
	Analysis       *analyzer.Analysis `json:"analysis,omitempty"`
	Updates        *Updates           `json:"updates,omitempty"`
}

// ProspectResult is the outcome of a successful CreateProspect.
type ProspectResult struct {
	Status         string            `json:"status"`
	Message        string            `json:"message"`
	HubSpotID      string            `json:"hubspot_id"`
	ConversationID string            `json:"conversation_id,omitempty"`
	MappingStored  bool              `json:"mapping_stored"`
	Prospect       prospect.Prospect `json:"prospect_data"`
	Company        *apollo.Company   `json:"apollo_company_data,omitempty"`
}

// ToolCallEvent is a function call the agent made during a live conversation.
type ToolCallEvent struct {
	ConversationID string
	Name           string
	Arguments      json.RawMessage
}

// ToolResult is the outcome of HandleToolCall.
type ToolResult struct {
	Status    string `json:"status"`
	Tool      string `json:"tool"`
	Message   string `json:"message"`
	MessageID string `json:"message_id,omitempty"`
}

// ToolStatusUnsupported marks a tool this service does not implement.
const ToolStatusUnsupported = "unsupported"
