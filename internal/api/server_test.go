package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/triario/avatar-backend/internal/analyzer"
	"github.com/triario/avatar-backend/internal/apierr"
	"github.com/triario/avatar-backend/internal/apollo"
	"github.com/triario/avatar-backend/internal/hubspot"
	"github.com/triario/avatar-backend/internal/mailer"
	"github.com/triario/avatar-backend/internal/mapping"
	"github.com/triario/avatar-backend/internal/metrics"
	"github.com/triario/avatar-backend/internal/pipeline"
	"github.com/triario/avatar-backend/internal/prospect"
	"github.com/triario/avatar-backend/internal/taxonomy"
)

type brokenCRM struct{}

func (brokenCRM) UpsertContact(context.Context, prospect.Prospect, *hubspot.Enrichment) (string, error) {
	return "", apierr.FromStatus("hubspot", http.StatusBadGateway, "upstream down")
}

func (brokenCRM) UpdateContactProperty(context.Context, string, string, string) error {
	return apierr.FromStatus("hubspot", http.StatusBadGateway, "upstream down")
}

func (brokenCRM) CreateCall(context.Context, string, hubspot.Call) (string, error) {
	return "", apierr.FromStatus("hubspot", http.StatusBadGateway, "upstream down")
}

type stubEnricher struct {
	company *apollo.Company
	err     error
}

func (s stubEnricher) Enrich(context.Context, string) (*apollo.Company, error) {
	return s.company, s.err
}

func newTestServer(t *testing.T, crm pipeline.CRM, token string) (*Server, mapping.Store) {
	t.Helper()
	return newEnrichedTestServer(t, crm, nil, token)
}

func newEnrichedTestServer(t *testing.T, crm pipeline.CRM, enricher pipeline.Enricher, token string) (*Server, mapping.Store) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	store, err := mapping.OpenFile(filepath.Join(t.TempDir(), mapping.DefaultFileName), logger)
	require.NoError(t, err)
	if crm == nil {
		crm = hubspot.NewSimulator(logger)
	}
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	tax := taxonomy.Default()

	proc := pipeline.New(pipeline.Deps{
		Store:    store,
		Analyzer: analyzer.New(nil, tax, logger),
		Taxonomy: tax,
		CRM:      crm,
		Enricher: enricher,
		Mailer:   mailer.NewLogSender(logger),
		Metrics:  m,
	}, pipeline.Options{
		MeetingLinks: map[string]string{mailer.LangES: "https://meetings.example/latam"},
	}, logger)

	return NewServer(proc, Options{Port: 5003, APIToken: token, Gatherer: reg, Metrics: m}, logger), store
}

func do(srv *Server, method, path, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body), "failed to decode response")
	return body
}

const prospectJSON = `{
	"nombres": "Ana",
	"apellidos": "Pérez",
	"compania": "Acme",
	"emailCorporativo": "ana@acme.com",
	"rol": "CEO",
	"conversation_id": "conv-1"
}`

func TestHealthEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, nil, "")

	w := do(srv, "GET", "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "avatar-backend", body["service"])
}

func TestNotFoundEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, nil, "")

	w := do(srv, "GET", "/nonexistent", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestWebhook_Malformed(t *testing.T) {
	srv, _ := newTestServer(t, nil, "")

	for _, body := range []string{
		`{not json`,
		`{"conversation_id":"c","properties":{"transcript":"oops"}}`,
		`{"properties":{"transcript":[]}}`,
	} {
		w := do(srv, "POST", "/webhook", body)
		if !assert.Equal(t, http.StatusBadRequest, w.Code, body) {
			continue
		}
		assert.Equal(t, "error", decode(t, w)["status"], body)
	}
}

func TestWebhook_UnknownConversation(t *testing.T) {
	srv, _ := newTestServer(t, nil, "")

	w := do(srv, "POST", "/webhook", `{
		"conversation_id": "never-stored",
		"properties": {"transcript": [{"role": "user", "content": "hola"}]}
	}`)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "warning", body["status"])
	assert.Equal(t, "not_found", body["reason"])
}

func TestWebhook_TranscriptAfterProspect(t *testing.T) {
	srv, _ := newTestServer(t, nil, "")

	w := do(srv, "POST", "/api/prospect", prospectJSON)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(srv, "POST", "/webhook", `{
		"conversation_id": "conv-1",
		"event_type": "application.transcription_ready",
		"properties": {
			"replica_id": "r1",
			"transcript": [
				{"role": "system", "content": "eres Wayne"},
				{"role": "assistant", "content": "¿Qué CRM usan?"},
				{"role": "user", "content": "No tenemos CRM, usamos hojas de cálculo"}
			]
		}
	}`)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	require.Equal(t, "success", body["status"])

	a := body["analysis"].(map[string]any)
	assert.Equal(t, string(taxonomy.PainNoCRM), a["pain_point"])
	u := body["updates"].(map[string]any)
	assert.Equal(t, true, u["pain_field_updated"])
	assert.Equal(t, true, u["call_created"])
}

func TestWebhook_CRMFailuresReported(t *testing.T) {
	srv, store := newTestServer(t, brokenCRM{}, "")
	store.Put(context.Background(), "conv-1", "101", prospect.Prospect{FirstName: "Ana", Company: "Acme"})

	w := do(srv, "POST", "/webhook", `{"conversation_id":"conv-1","properties":{"transcript":[]}}`)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	require.Equal(t, "failed", body["status"])

	pe := body["updates"].(map[string]any)["pain_field_error"].(map[string]any)
	assert.Equal(t, apierr.CodeAPIError, pe["code"])
	assert.Equal(t, "upstream down", pe["error"])
}

func TestWebhook_ToolCall(t *testing.T) {
	srv, _ := newTestServer(t, nil, "")

	w := do(srv, "POST", "/webhook", `{
		"event_type": "conversation.tool_call",
		"properties": {"function": {"name": "schedule_meeting", "arguments": {"email": "a@b.co"}}}
	}`)
	assert.Equal(t, "success", decode(t, w)["status"])

	w = do(srv, "POST", "/webhook", `{
		"event_type": "conversation.tool_call",
		"properties": {"name": "tool_no_existe", "arguments": "{}"}
	}`)
	assert.Equal(t, pipeline.ToolStatusUnsupported, decode(t, w)["status"])
}

func TestWebhook_OtherEventAcknowledged(t *testing.T) {
	srv, _ := newTestServer(t, nil, "")

	w := do(srv, "POST", "/webhook", `{"event_type":"otro_evento","data":"test"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "received", decode(t, w)["status"])
}

func TestProspect_MissingField(t *testing.T) {
	srv, _ := newTestServer(t, nil, "")

	w := do(srv, "POST", "/api/prospect", `{"nombres":"Ana"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "apellidos", decode(t, w)["field"])
}

func TestProspect_CRMFailure(t *testing.T) {
	srv, _ := newTestServer(t, brokenCRM{}, "")

	w := do(srv, "POST", "/api/prospect", prospectJSON)
	require.Equal(t, http.StatusInternalServerError, w.Code)
	body := decode(t, w)
	assert.Equal(t, apierr.CodeAPIError, body["code"])
	assert.Equal(t, float64(http.StatusBadGateway), body["upstream_status"])
}

func TestEnrichContext(t *testing.T) {
	acme := &apollo.Company{Name: "Acme Corp", Domain: "acme.com", Industry: "Software", Employees: 120}
	srv, _ := newEnrichedTestServer(t, nil, stubEnricher{company: acme}, "")

	w := do(srv, "POST", "/api/enrich-context", `{
		"nombres": "Ana",
		"apellidos": "Pérez",
		"compania": "Acme",
		"rol": "CEO",
		"websiteUrl": "https://www.acme.com/es"
	}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, "success", body["status"])
	assert.Contains(t, body["context"], "Nombre: Ana Pérez")
	assert.Contains(t, body["context"], "Industria: Software")
	assert.Contains(t, body["context"], "Número de empleados: 120")
	assert.Equal(t, "Acme Corp", body["enriched_data"].(map[string]any)["name"])
}

func TestEnrichContext_Errors(t *testing.T) {
	tests := []struct {
		name     string
		enricher pipeline.Enricher
		body     string
		status   int
		code     string
	}{
		{"missing website", stubEnricher{}, `{"nombres":"Ana"}`, http.StatusBadRequest, ""},
		{"not configured", nil, `{"websiteUrl":"acme.com"}`, http.StatusServiceUnavailable, apierr.CodeNotConfigured},
		{"lookup failed", stubEnricher{err: apierr.FromStatus("apollo", http.StatusNotFound, "no organization")}, `{"websiteUrl":"acme.com"}`, http.StatusBadRequest, apierr.CodeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newEnrichedTestServer(t, nil, tt.enricher, "")

			w := do(srv, "POST", "/api/enrich-context", tt.body)
			require.Equal(t, tt.status, w.Code)
			body := decode(t, w)
			assert.Equal(t, "error", body["status"])
			if tt.code != "" {
				assert.Equal(t, tt.code, body["code"])
			}
		})
	}
}

func TestConversationEngagement(t *testing.T) {
	srv, _ := newTestServer(t, nil, "")

	w := do(srv, "POST", "/api/conversation-engagement", `{
		"contact_id": "101",
		"conversation_data": {
			"title": "Demo con Acme",
			"duration": 600,
			"engagement_score": 8,
			"pain_points": ["Mi nivel de recompra es muy bajo"],
			"next_steps": "Enviar propuesta",
			"summary": "Llamada productiva"
		}
	}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, "101", body["contact_id"])
	assert.True(t, strings.HasPrefix(body["engagement_id"].(string), "simulated-"))
	assert.NotEmpty(t, body["timestamp"])
}

func TestConversationEngagement_Errors(t *testing.T) {
	srv, _ := newTestServer(t, nil, "")

	w := do(srv, "POST", "/api/conversation-engagement", `{"conversation_data":{"summary":"x"}}`)
	assert.Equal(t, http.StatusBadRequest, w.Code, "missing contact_id")

	w = do(srv, "POST", "/api/conversation-engagement", `{"contact_id":"101"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code, "missing conversation_data")

	broken, _ := newTestServer(t, brokenCRM{}, "")
	w = do(broken, "POST", "/api/conversation-engagement", `{"contact_id":"101","conversation_data":{}}`)
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, float64(http.StatusBadGateway), decode(t, w)["upstream_status"])
}

func TestConversationEndpoints(t *testing.T) {
	srv, _ := newTestServer(t, nil, "secret")

	w := do(srv, "GET", "/api/conversation/conv-1", "")
	assert.Equal(t, http.StatusNotFound, w.Code, "before prospect")
	w = do(srv, "POST", "/api/prospect", prospectJSON)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(srv, "GET", "/api/conversation/conv-1", "")
	require.Equal(t, http.StatusOK, w.Code)
	m := decode(t, w)["mapping"].(map[string]any)
	assert.Equal(t, "ana@acme.com", m["prospect_data"].(map[string]any)["emailCorporativo"])

	w = do(srv, "GET", "/api/conversation/conv-1/hubspot", "")
	id, _ := decode(t, w)["hubspot_id"].(string)
	assert.True(t, strings.HasPrefix(id, "simulated-"), "unexpected hubspot id %q", id)

	w = do(srv, "GET", "/api/conversations?limit=5", "")
	data := decode(t, w)["data"].(map[string]any)
	assert.Equal(t, float64(1), data["total_count"])
	w = do(srv, "GET", "/api/conversations?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code, "bad limit")

	w = do(srv, "DELETE", "/api/conversation/conv-1", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code, "without token")
	req := httptest.NewRequest("DELETE", "/api/conversation/conv-1", nil)
	req.Header.Set("Authorization", "Bearer secret")
	w = httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code, "with token")

	w = do(srv, "GET", "/api/conversation/conv-1/hubspot", "")
	assert.Equal(t, http.StatusNotFound, w.Code, "after delete")
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, nil, "")
	do(srv, "POST", "/webhook", `{"event_type":"otro_evento"}`)

	w := do(srv, "GET", "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `avatar_backend_webhooks_received_total{kind="other"} 1`)
}
