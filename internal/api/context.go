package api

import (
	"errors"
	"net/http"

	"github.com/triario/avatar-backend/internal/apierr"
	"github.com/triario/avatar-backend/internal/pipeline"
	"github.com/triario/avatar-backend/internal/prospect"
)

type engagementRequest struct {
	ContactID        string               `json:"contact_id"`
	ConversationData *pipeline.Engagement `json:"conversation_data"`
}

// enrichContext returns the agent briefing for a prospect's company. Only
// websiteUrl is required; the other form fields fill the prospect section.
func (s *Server) enrichContext(w http.ResponseWriter, r *http.Request) {
	var req prospect.Prospect
	if err := decodeBody(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}

	res, err := s.proc.EnrichContext(r.Context(), req)
	switch {
	case errors.Is(err, pipeline.ErrWebsiteRequired):
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
	case apierr.CodeOf(err) == apierr.CodeNotConfigured:
		writeAPIError(w, http.StatusServiceUnavailable, err)
	case err != nil:
		writeAPIError(w, http.StatusBadRequest, err)
	default:
		writeJSON(w, http.StatusOK, res)
	}
}

func (s *Server) logEngagement(w http.ResponseWriter, r *http.Request) {
	var req engagementRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	if req.ConversationData == nil {
		writeJSON(w, http.StatusBadRequest, errorBody("conversation_data is required"))
		return
	}

	res, err := s.proc.LogEngagement(r.Context(), req.ContactID, *req.ConversationData)
	switch {
	case errors.Is(err, pipeline.ErrContactRequired):
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
	case err != nil:
		writeAPIError(w, http.StatusInternalServerError, err)
	default:
		writeJSON(w, http.StatusOK, res)
	}
}
