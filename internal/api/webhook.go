package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/triario/avatar-backend/internal/analyzer"
	"github.com/triario/avatar-backend/internal/pipeline"
	"github.com/triario/avatar-backend/internal/prospect"
)

const eventToolCall = "conversation.tool_call"

// webhookEnvelope is the callback body sent by the video platform.
type webhookEnvelope struct {
	ConversationID string            `json:"conversation_id"`
	EventType      string            `json:"event_type"`
	MessageType    string            `json:"message_type"`
	Properties     webhookProperties `json:"properties"`
}

type webhookProperties struct {
	// Transcript is nil when the key is absent.
	Transcript *analyzer.Transcript `json:"transcript"`
	ReplicaID  string               `json:"replica_id"`

	// Tool calls arrive either flat or nested under "function".
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
	Function  *struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	} `json:"function"`
}

func (s *Server) webhook(w http.ResponseWriter, r *http.Request) {
	var env webhookEnvelope
	if err := decodeBody(w, r, &env); err != nil {
		s.metrics.WebhooksReceived.WithLabelValues("invalid").Inc()
		s.logger.Warn("malformed webhook", "error", err)
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	logger := s.logger.With("conversation_id", env.ConversationID, "event_type", env.EventType)

	switch {
	case env.Properties.Transcript != nil:
		s.metrics.WebhooksReceived.WithLabelValues("transcript").Inc()
		if strings.TrimSpace(env.ConversationID) == "" {
			writeJSON(w, http.StatusBadRequest, errorBody("conversation_id is required with a transcript"))
			return
		}
		logger.Info("transcript received",
			"replica_id", env.Properties.ReplicaID,
			"utterances", len(*env.Properties.Transcript),
			"spoken", env.Properties.Transcript.Spoken(),
		)
		res := s.proc.HandleTranscript(r.Context(), pipeline.TranscriptEvent{
			ConversationID: env.ConversationID,
			ReplicaID:      env.Properties.ReplicaID,
			Transcript:     *env.Properties.Transcript,
		})
		writeJSON(w, http.StatusOK, res)

	case env.EventType == eventToolCall:
		s.metrics.WebhooksReceived.WithLabelValues("tool_call").Inc()
		ev := pipeline.ToolCallEvent{
			ConversationID: env.ConversationID,
			Name:           env.Properties.Name,
			Arguments:      env.Properties.Arguments,
		}
		if fn := env.Properties.Function; fn != nil {
			ev.Name, ev.Arguments = fn.Name, fn.Arguments
		}
		if ev.Name == "" {
			writeJSON(w, http.StatusBadRequest, errorBody("tool call without a name"))
			return
		}
		logger.Info("tool call received", "tool", ev.Name)
		res := s.proc.HandleToolCall(r.Context(), ev)
		writeJSON(w, http.StatusOK, map[string]any{
			"status": res.Status,
			"result": res,
		})

	default:
		s.metrics.WebhooksReceived.WithLabelValues("other").Inc()
		logger.Debug("webhook acknowledged", "message_type", env.MessageType)
		writeJSON(w, http.StatusOK, map[string]string{"status": "received"})
	}
}

type prospectRequest struct {
	prospect.Prospect
	ConversationID string `json:"conversation_id"`
}

func (s *Server) createProspect(w http.ResponseWriter, r *http.Request) {
	var req prospectRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}

	res, err := s.proc.CreateProspect(r.Context(), req.Prospect, strings.TrimSpace(req.ConversationID))
	if err != nil {
		var missing *prospect.MissingFieldError
		if errors.As(err, &missing) {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"status":  "error",
				"message": err.Error(),
				"field":   missing.Field,
			})
			return
		}
		writeAPIError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
