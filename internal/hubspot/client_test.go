package hubspot

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/triario/avatar-backend/internal/apierr"
	"github.com/triario/avatar-backend/internal/prospect"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recorded struct {
	method string
	path   string
	body   map[string]any
}

// fakeHubSpot routes requests by "METHOD path" and records every call.
type fakeHubSpot struct {
	mu       sync.Mutex
	calls    []recorded
	handlers map[string]func(w http.ResponseWriter)
}

func (f *fakeHubSpot) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	json.NewDecoder(r.Body).Decode(&body)

	f.mu.Lock()
	f.calls = append(f.calls, recorded{method: r.Method, path: r.URL.Path, body: body})
	f.mu.Unlock()

	if r.Header.Get("Authorization") != "Bearer test-token" {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	h, ok := f.handlers[r.Method+" "+r.URL.Path]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	h(w)
}

func respond(status int, body string) func(w http.ResponseWriter) {
	return func(w http.ResponseWriter) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		io.WriteString(w, body)
	}
}

func newTestClient(t *testing.T, f *fakeHubSpot) *Client {
	t.Helper()
	server := httptest.NewServer(f)
	t.Cleanup(server.Close)
	return NewClient("test-token", server.URL, 5*time.Second, discardLogger())
}

var ana = prospect.Prospect{
	FirstName: "Ana",
	LastName:  "Pérez",
	Company:   "Acme",
	Email:     "ana@acme.com",
	Role:      "CEO",
	Website:   "https://acme.com",
}

func TestUpsertContact_Created(t *testing.T) {
	f := &fakeHubSpot{handlers: map[string]func(http.ResponseWriter){
		"POST /crm/v3/objects/contacts": respond(http.StatusCreated, `{"id":"101"}`),
	}}
	c := newTestClient(t, f)

	id, err := c.UpsertContact(context.Background(), ana, &Enrichment{Industry: "Software", Phone: "+57 1", AnnualRevenue: "1000000"})
	require.NoError(t, err)
	assert.Equal(t, "101", id)

	props := f.calls[0].body["properties"].(map[string]any)
	assert.Equal(t, "ana@acme.com", props["email"])
	assert.Equal(t, "Ana", props["firstname"])
	assert.Equal(t, "CEO", props["jobtitle"])
	assert.Equal(t, "Software y tecnologías SaaS", props["industry"])
	assert.Equal(t, "+57 1", props["phone"])
	assert.Equal(t, "1000000", props["annualrevenue"])
	assert.NotContains(t, props, "address", "empty enrichment fields should be omitted")
}

func TestUpsertContact_ConflictUpdatesExisting(t *testing.T) {
	f := &fakeHubSpot{handlers: map[string]func(http.ResponseWriter){
		"POST /crm/v3/objects/contacts":        respond(http.StatusConflict, `{"message":"Contact already exists"}`),
		"POST /crm/v3/objects/contacts/search": respond(http.StatusOK, `{"total":1,"results":[{"id":"555"}]}`),
		"PATCH /crm/v3/objects/contacts/555":   respond(http.StatusOK, `{"id":"555"}`),
	}}
	c := newTestClient(t, f)

	id, err := c.UpsertContact(context.Background(), ana, nil)
	require.NoError(t, err)
	assert.Equal(t, "555", id)
	require.Len(t, f.calls, 3, "expected create, search, update")

	filter := f.calls[1].body["filterGroups"].([]any)[0].(map[string]any)["filters"].([]any)[0].(map[string]any)
	assert.Equal(t, "email", filter["propertyName"])
	assert.Equal(t, "ana@acme.com", filter["value"])

	patch := f.calls[2].body["properties"].(map[string]any)
	assert.NotContains(t, patch, "email", "update should not rewrite the email")
	assert.Equal(t, "Acme", patch["company"])
}

func TestUpsertContact_ConflictWithoutMatch(t *testing.T) {
	f := &fakeHubSpot{handlers: map[string]func(http.ResponseWriter){
		"POST /crm/v3/objects/contacts":        respond(http.StatusConflict, `{}`),
		"POST /crm/v3/objects/contacts/search": respond(http.StatusOK, `{"results":[]}`),
	}}
	_, err := newTestClient(t, f).UpsertContact(context.Background(), ana, nil)
	assert.Equal(t, apierr.CodeNotFound, apierr.CodeOf(err))
}

func TestUpsertContact_ServerError(t *testing.T) {
	f := &fakeHubSpot{handlers: map[string]func(http.ResponseWriter){
		"POST /crm/v3/objects/contacts": respond(http.StatusInternalServerError, `boom`),
	}}
	_, err := newTestClient(t, f).UpsertContact(context.Background(), ana, nil)

	var apiErr *apierr.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 500, apiErr.Status)
	assert.Equal(t, apierr.CodeAPIError, apiErr.Code)
}

func TestUpdateContactProperty(t *testing.T) {
	f := &fakeHubSpot{handlers: map[string]func(http.ResponseWriter){
		"PATCH /crm/v3/objects/contacts/101": respond(http.StatusOK, `{"id":"101"}`),
	}}
	err := newTestClient(t, f).UpdateContactProperty(context.Background(), "101", "dolores_de_venta", "Mi nivel de recompra es muy bajo")
	require.NoError(t, err)

	props := f.calls[0].body["properties"].(map[string]any)
	assert.Equal(t, "Mi nivel de recompra es muy bajo", props["dolores_de_venta"])
}

func TestUpdateContactProperty_Failure(t *testing.T) {
	f := &fakeHubSpot{handlers: map[string]func(http.ResponseWriter){
		"PATCH /crm/v3/objects/contacts/101": respond(http.StatusInternalServerError, `{"message":"internal"}`),
	}}
	err := newTestClient(t, f).UpdateContactProperty(context.Background(), "101", "dolores_de_venta", "x")
	assert.Equal(t, apierr.CodeAPIError, apierr.CodeOf(err))
}

func TestCreateCall(t *testing.T) {
	f := &fakeHubSpot{handlers: map[string]func(http.ResponseWriter){
		"POST /crm/v3/objects/calls": respond(http.StatusCreated, `{"id":"c-9"}`),
	}}
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	id, err := newTestClient(t, f).CreateCall(context.Background(), "101", Call{
		Title:           "Conversación con Ana Pérez",
		Body:            "body",
		DurationSeconds: 90,
		Timestamp:       ts,
	})
	require.NoError(t, err)
	assert.Equal(t, "c-9", id)

	body := f.calls[0].body
	props := body["properties"].(map[string]any)
	assert.Equal(t, "90000", props["hs_call_duration"], "duration is sent in ms")
	assert.Equal(t, "1772366400000", props["hs_timestamp"])
	assert.Equal(t, "COMPLETED", props["hs_call_status"])
	assert.Equal(t, "INBOUND", props["hs_call_direction"])

	assoc := body["associations"].([]any)[0].(map[string]any)
	assert.Equal(t, "101", assoc["to"].(map[string]any)["id"])
	typ := assoc["types"].([]any)[0].(map[string]any)
	assert.Equal(t, float64(194), typ["associationTypeId"])
}

func TestClient_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	c := NewClient("test-token", server.URL, 20*time.Millisecond, discardLogger())
	err := c.UpdateContactProperty(context.Background(), "1", "p", "v")
	assert.Equal(t, apierr.CodeTimeout, apierr.CodeOf(err))
}

func TestMapIndustry(t *testing.T) {
	assert.Equal(t, "Servicios de salud", MapIndustry("Healthcare"), "mapping is case-insensitive")
	assert.Equal(t, "Otro", MapIndustry("mining"))
}

func TestFormatCallBody(t *testing.T) {
	body := FormatCallBody(CallNote{
		ConversationID:     "conv-1",
		Date:               time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Agent:              "Wayne",
		Company:            "Acme",
		PainPoint:          "Mi nivel de recompra es muy bajo",
		QualificationScore: 8,
		FollowUpRequired:   true,
		KeyInsights:        []string{"usa excel"},
		NextSteps:          []string{"enviar propuesta"},
		Summary:            "Llamada productiva",
		Transcript:         "PROSPECT: hola",
	})

	for _, want := range []string{
		"Puntuación: 8/10",
		"Seguimiento requerido: Sí",
		"ID conversación: conv-1",
		"• Empresa: Acme",
		"• Cargo: N/A",
		"• Mi nivel de recompra es muy bajo",
		"• usa excel",
		"• enviar propuesta",
		"Llamada productiva",
		"TRANSCRIPCIÓN",
		"PROSPECT: hola",
	} {
		assert.Contains(t, body, want)
	}
}

func TestSimulator(t *testing.T) {
	s := NewSimulator(discardLogger())
	ctx := context.Background()

	id, err := s.UpsertContact(ctx, ana, nil)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(id, "simulated-"), "unexpected simulated contact %q", id)
	assert.NoError(t, s.UpdateContactProperty(ctx, id, "p", "v"))

	callID, err := s.CreateCall(ctx, id, Call{})
	require.NoError(t, err)
	assert.NotEmpty(t, callID)
}
