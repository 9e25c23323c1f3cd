// Package mapping persists the link between a video conversation and the CRM
// contact created for it, so a transcript that arrives later can be joined
// back to the right contact.
package mapping

import (
	"context"
	"sort"
	"time"

	"github.com/triario/avatar-backend/internal/prospect"
)

// DefaultListLimit caps List when no limit is given.
const DefaultListLimit = 100

// Mapping is one conversation to contact link. ConversationID and HubSpotID
// never change after the first Put.
type Mapping struct {
	ConversationID string            `json:"conversation_id"`
	HubSpotID      string            `json:"hubspot_id"`
	Prospect       prospect.Prospect `json:"prospect_data"`
	Attributes     map[string]any    `json:"attributes,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// Listing is a page of mappings, newest first.
type Listing struct {
	TotalCount    int       `json:"total_count"`
	ReturnedCount int       `json:"returned_count"`
	Mappings      []Mapping `json:"mappings"`
}

// Store is a durable conversation mapping table. Operations do not return
// errors: failures are logged and reported through the bool results.
type Store interface {
	Put(ctx context.Context, conversationID, hubspotID string, p prospect.Prospect) bool
	Get(ctx context.Context, conversationID string) (*Mapping, bool)
	ContactID(ctx context.Context, conversationID string) (string, bool)
	Update(ctx context.Context, conversationID string, fields map[string]any) bool
	List(ctx context.Context, limit int) Listing
	Delete(ctx context.Context, conversationID string) bool
	Close() error
}

// reserved keys cannot be set through Update.
var reserved = map[string]bool{
	"conversation_id": true,
	"hubspot_id":      true,
	"prospect_data":   true,
	"created_at":      true,
	"updated_at":      true,
}

func attributeFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		if reserved[k] {
			continue
		}
		out[k] = v
	}
	return out
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return limit
}

func newestFirst(ms []Mapping) {
	sort.SliceStable(ms, func(i, j int) bool {
		if ms[i].CreatedAt.Equal(ms[j].CreatedAt) {
			return ms[i].ConversationID < ms[j].ConversationID
		}
		return ms[i].CreatedAt.After(ms[j].CreatedAt)
	})
}
