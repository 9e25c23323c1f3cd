package mailer

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/triario/avatar-backend/internal/apierr"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestResend_Send(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/emails", r.URL.Path)
		assert.Equal(t, "Bearer re_test", r.Header.Get("Authorization"))
		json.NewDecoder(r.Body).Decode(&got)
		io.WriteString(w, `{"id":"email-1"}`)
	}))
	defer server.Close()

	r := NewResend("re_test", "sdr@triario.com", server.URL, 5*time.Second, discardLogger())
	id, err := r.Send(context.Background(), Message{To: "ana@acme.com", Subject: "Hola", HTML: "<p>x</p>", Text: "x"})
	require.NoError(t, err)
	assert.Equal(t, "email-1", id)

	assert.Equal(t, "sdr@triario.com", got["from"])
	assert.Equal(t, []any{"ana@acme.com"}, got["to"])
	assert.Equal(t, "Hola", got["subject"])
}

func TestResend_Errors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		io.WriteString(w, `{"message":"invalid from"}`)
	}))
	defer server.Close()

	_, err := NewResend("k", "from@x.com", server.URL, 5*time.Second, discardLogger()).Send(context.Background(), Message{To: "a@b.c"})
	assert.Equal(t, apierr.CodeAPIError, apierr.CodeOf(err))

	_, err = NewResend("k", "", server.URL, 5*time.Second, discardLogger()).Send(context.Background(), Message{To: "a@b.c"})
	assert.Equal(t, apierr.CodeNotConfigured, apierr.CodeOf(err))
}

func TestLogSender(t *testing.T) {
	id, err := NewLogSender(discardLogger()).Send(context.Background(), Message{To: "a@b.c"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(id, "simulated-"))
}

func TestNormalizeLanguage(t *testing.T) {
	assert.Equal(t, LangEN, NormalizeLanguage("English"))
	assert.Equal(t, LangEN, NormalizeLanguage("en"))
	assert.Equal(t, LangES, NormalizeLanguage("spanish"))
	assert.Equal(t, LangES, NormalizeLanguage(""))
	assert.Equal(t, LangES, NormalizeLanguage("fr"))
}

func TestMeetingInvite(t *testing.T) {
	es, err := MeetingInvite("ana@acme.com", "es", "https://meetings.example/latam?a=1&b=2")
	require.NoError(t, err)
	assert.Equal(t, "Programar Reunión - Triario", es.Subject)
	assert.Equal(t, "ana@acme.com", es.To)
	assert.Contains(t, es.HTML, `href="https://meetings.example/latam?a=1&amp;b=2"`)
	assert.Contains(t, es.Text, "https://meetings.example/latam?a=1&b=2")

	en, err := MeetingInvite("bob@acme.com", "english", "https://meetings.example/en")
	require.NoError(t, err)
	assert.Equal(t, "Schedule Meeting - Triario", en.Subject)
	assert.Contains(t, en.Text, "Hello!")
}
