// Package hubspot writes prospects, sales pains and call records to the
// HubSpot CRM v3 API.
package hubspot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/triario/avatar-backend/internal/apierr"
	"github.com/triario/avatar-backend/internal/prospect"
)

const (
	DefaultBaseURL = "https://api.hubapi.com"
	service        = "hubspot"

	// callToContact is HubSpot's defined association type from a call to a contact.
	callToContact = 194
	// dispositionConnected is the built-in "Connected" call outcome.
	dispositionConnected = "f240bbac-87c9-4f6e-bf70-924b57d47db7"
)

// Enrichment is company data merged into a contact's properties.
type Enrichment struct {
	Industry      string
	Phone         string
	Address       string
	AnnualRevenue string
}

// Call is a call engagement logged against a contact.
type Call struct {
	Title           string
	Body            string
	DurationSeconds int
	RecordingURL    string
	Timestamp       time.Time
}

type Client struct {
	token   string
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

func NewClient(token, baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		token:   token,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

type objectResponse struct {
	ID string `json:"id"`
}

// UpsertContact creates the contact, or updates the existing one with the
// same email when HubSpot reports a conflict. Returns the contact id.
func (c *Client) UpsertContact(ctx context.Context, p prospect.Prospect, e *Enrichment) (string, error) {
	props := contactProperties(p, e)
	props["email"] = p.Email

	var created objectResponse
	err := c.do(ctx, http.MethodPost, "/crm/v3/objects/contacts", map[string]any{"properties": props}, &created)
	if err == nil {
		c.logger.Info("contact created", "hubspot_id", created.ID, "email", p.Email)
		return created.ID, nil
	}
	if apierr.CodeOf(err) != apierr.CodeConflict {
		return "", err
	}

	c.logger.Info("contact exists, updating", "email", p.Email)
	id, err := c.searchByEmail(ctx, p.Email)
	if err != nil {
		return "", err
	}

	delete(props, "email")
	if err := c.do(ctx, http.MethodPatch, "/crm/v3/objects/contacts/"+id, map[string]any{"properties": props}, nil); err != nil {
		return "", err
	}
	c.logger.Info("contact updated", "hubspot_id", id, "email", p.Email)
	return id, nil
}

func (c *Client) searchByEmail(ctx context.Context, email string) (string, error) {
	payload := map[string]any{
		"filterGroups": []map[string]any{{
			"filters": []map[string]any{{
				"propertyName": "email",
				"operator":     "EQ",
				"value":        email,
			}},
		}},
		"properties": []string{"email", "firstname", "lastname"},
		"limit":      1,
	}

	var resp struct {
		Results []objectResponse `json:"results"`
	}
	if err := c.do(ctx, http.MethodPost, "/crm/v3/objects/contacts/search", payload, &resp); err != nil {
		return "", err
	}
	if len(resp.Results) == 0 {
		return "", &apierr.Error{Service: service, Code: apierr.CodeNotFound, Message: "no contact with email " + email}
	}
	return resp.Results[0].ID, nil
}

// UpdateContactProperty sets a single contact property.
func (c *Client) UpdateContactProperty(ctx context.Context, contactID, property, value string) error {
	payload := map[string]any{"properties": map[string]string{property: value}}
	if err := c.do(ctx, http.MethodPatch, "/crm/v3/objects/contacts/"+contactID, payload, nil); err != nil {
		return err
	}
	c.logger.Info("contact property updated", "hubspot_id", contactID, "property", property)
	return nil
}

// CreateCall logs a completed inbound call on the contact and returns the call id.
func (c *Client) CreateCall(ctx context.Context, contactID string, call Call) (string, error) {
	ts := call.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	payload := map[string]any{
		"properties": map[string]string{
			"hs_timestamp":          strconv.FormatInt(ts.UnixMilli(), 10),
			"hs_call_title":         call.Title,
			"hs_call_body":          call.Body,
			"hs_call_duration":      strconv.Itoa(call.DurationSeconds * 1000),
			"hs_call_status":        "COMPLETED",
			"hs_call_direction":     "INBOUND",
			"hs_call_disposition":   dispositionConnected,
			"hs_call_recording_url": call.RecordingURL,
			"hs_call_source":        "INTEGRATIONS_PLATFORM",
		},
		"associations": []map[string]any{{
			"to": map[string]string{"id": contactID},
			"types": []map[string]any{{
				"associationCategory": "HUBSPOT_DEFINED",
				"associationTypeId":   callToContact,
			}},
		}},
	}

	var created objectResponse
	if err := c.do(ctx, http.MethodPost, "/crm/v3/objects/calls", payload, &created); err != nil {
		return "", err
	}
	c.logger.Info("call created", "hubspot_id", contactID, "call_id", created.ID)
	return created.ID, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal hubspot payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		return apierr.FromTransport(service, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return apierr.FromTransport(service, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("hubspot request failed",
			"method", method,
			"path", path,
			"status", resp.StatusCode,
		)
		return apierr.FromStatus(service, resp.StatusCode, string(respBody))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return apierr.Invalid(service, err)
	}
	return nil
}
