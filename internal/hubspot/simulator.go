package hubspot

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/triario/avatar-backend/internal/prospect"
)

// Simulator stands in for the CRM when no API key is configured. Every write
// succeeds and is only logged.
type Simulator struct {
	logger *slog.Logger
}

func NewSimulator(logger *slog.Logger) *Simulator {
	return &Simulator{logger: logger}
}

func (s *Simulator) UpsertContact(_ context.Context, p prospect.Prospect, _ *Enrichment) (string, error) {
	id := "simulated-" + uuid.NewString()
	s.logger.Warn("hubspot not configured, simulating contact", "email", p.Email, "hubspot_id", id)
	return id, nil
}

func (s *Simulator) UpdateContactProperty(_ context.Context, contactID, property, value string) error {
	s.logger.Warn("hubspot not configured, simulating property update",
		"hubspot_id", contactID,
		"property", property,
		"value", value,
	)
	return nil
}

func (s *Simulator) CreateCall(_ context.Context, contactID string, call Call) (string, error) {
	id := "simulated-" + uuid.NewString()
	s.logger.Warn("hubspot not configured, simulating call",
		"hubspot_id", contactID,
		"call_id", id,
		"title", call.Title,
	)
	return id, nil
}
