// Package mailer sends transactional email through Resend.
package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/triario/avatar-backend/internal/apierr"
)

const (
	DefaultBaseURL = "https://api.resend.com"
	service        = "resend"
)

// Message is one outgoing email.
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// Sender delivers a message and returns the provider's message id.
type Sender interface {
	Send(ctx context.Context, m Message) (string, error)
}

// Resend sends mail through the Resend HTTP API.
type Resend struct {
	apiKey  string
	from    string
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

func NewResend(apiKey, from, baseURL string, timeout time.Duration, logger *slog.Logger) *Resend {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Resend{
		apiKey:  apiKey,
		from:    from,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

func (r *Resend) Send(ctx context.Context, m Message) (string, error) {
	if r.from == "" {
		return "", &apierr.Error{Service: service, Code: apierr.CodeNotConfigured, Message: "FROM_EMAIL is required"}
	}

	body, err := json.Marshal(map[string]any{
		"from":    r.from,
		"to":      []string{m.To},
		"subject": m.Subject,
		"html":    m.HTML,
		"text":    m.Text,
	})
	if err != nil {
		return "", fmt.Errorf("marshal email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/emails", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+r.apiKey)

	resp, err := r.client.Do(req)
	if err != nil {
		return "", apierr.FromTransport(service, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", apierr.FromTransport(service, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", apierr.FromStatus(service, resp.StatusCode, string(respBody))
	}

	var sent struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(respBody, &sent); err != nil {
		return "", apierr.Invalid(service, err)
	}
	if sent.ID == "" {
		r.logger.Warn("unexpected resend response", "body", string(respBody))
	}

	r.logger.Info("email sent", "to", m.To, "subject", m.Subject, "id", sent.ID)
	return sent.ID, nil
}

// LogSender only logs messages. Used when no Resend key is configured.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (l *LogSender) Send(_ context.Context, m Message) (string, error) {
	id := "simulated-" + uuid.NewString()
	l.logger.Warn("email not configured, simulating send", "to", m.To, "subject", m.Subject, "id", id)
	return id, nil
}
