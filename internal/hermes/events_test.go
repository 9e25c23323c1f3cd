package hermes

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEvent(t *testing.T) {
	ev := NewEvent(SubjectProspectCreated, ProspectCreated{HubSpotID: "101", Email: "ana@acme.com"})
	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, "avatar.prospect.created", ev.Type)
	assert.False(t, ev.OccurredAt.IsZero(), "expected occurred_at")

	raw, err := json.Marshal(ev)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	data := decoded["data"].(map[string]any)
	assert.Equal(t, "101", data["hubspot_id"])
	assert.NotContains(t, data, "conversation_id", "empty conversation_id should be omitted")
}

func TestNop(t *testing.T) {
	var p Publisher = Nop{}
	assert.NoError(t, p.Publish(SubjectConversationAnalyzed, ConversationAnalyzed{}))
	p.Close()
}
