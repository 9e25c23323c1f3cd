package mapping

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/triario/avatar-backend/internal/prospect"
)

// DefaultFileName is the mapping file created under the data directory.
const DefaultFileName = "conversation_mappings.json"

// FileStore keeps all mappings in memory and rewrites a JSON file, keyed by
// conversation id, on every mutation. Safe for concurrent use within one
// process.
type FileStore struct {
	mu     sync.Mutex
	path   string
	data   map[string]Mapping
	logger *slog.Logger
	now    func() time.Time
}

// OpenFile loads the store at path, starting empty when the file does not
// exist. A file that cannot be parsed is an error rather than silently
// replaced.
func OpenFile(path string, logger *slog.Logger) (*FileStore, error) {
	s := &FileStore{
		path:   path,
		data:   make(map[string]Mapping),
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Info("mapping store initialized empty", "path", path)
			return s, nil
		}
		return nil, fmt.Errorf("read mappings: %w", err)
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &s.data); err != nil {
			return nil, fmt.Errorf("parse mappings: %w", err)
		}
	}
	logger.Info("mapping store loaded", "path", path, "mappings", len(s.data))
	return s, nil
}

func (s *FileStore) Put(_ context.Context, conversationID, hubspotID string, p prospect.Prospect) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	prev, exists := s.data[conversationID]
	if exists && prev.HubSpotID != hubspotID {
		s.logger.Warn("refusing to change contact of existing mapping",
			"conversation_id", conversationID,
			"hubspot_id", prev.HubSpotID,
			"new_hubspot_id", hubspotID,
		)
		return false
	}

	m := Mapping{
		ConversationID: conversationID,
		HubSpotID:      hubspotID,
		Prospect:       p,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if exists {
		m.CreatedAt = prev.CreatedAt
		m.Attributes = prev.Attributes
	}

	s.data[conversationID] = m
	if err := s.save(); err != nil {
		s.restore(conversationID, prev, exists)
		s.logger.Error("failed to store mapping", "conversation_id", conversationID, "error", err)
		return false
	}

	s.logger.Info("mapping stored", "conversation_id", conversationID, "hubspot_id", hubspotID)
	return true
}

func (s *FileStore) Get(_ context.Context, conversationID string) (*Mapping, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.data[conversationID]
	if !ok {
		return nil, false
	}
	m.Attributes = maps.Clone(m.Attributes)
	return &m, true
}

func (s *FileStore) ContactID(ctx context.Context, conversationID string) (string, bool) {
	m, ok := s.Get(ctx, conversationID)
	if !ok {
		return "", false
	}
	return m.HubSpotID, true
}

func (s *FileStore) Update(_ context.Context, conversationID string, fields map[string]any) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.data[conversationID]
	if !ok {
		s.logger.Warn("no mapping to update", "conversation_id", conversationID)
		return false
	}

	m := prev
	m.Attributes = maps.Clone(prev.Attributes)
	if m.Attributes == nil {
		m.Attributes = make(map[string]any)
	}
	maps.Copy(m.Attributes, attributeFields(fields))
	m.UpdatedAt = s.now()

	s.data[conversationID] = m
	if err := s.save(); err != nil {
		s.restore(conversationID, prev, true)
		s.logger.Error("failed to update mapping", "conversation_id", conversationID, "error", err)
		return false
	}
	return true
}

func (s *FileStore) List(_ context.Context, limit int) Listing {
	s.mu.Lock()
	all := make([]Mapping, 0, len(s.data))
	for _, m := range s.data {
		m.Attributes = maps.Clone(m.Attributes)
		all = append(all, m)
	}
	s.mu.Unlock()

	total := len(all)
	newestFirst(all)
	limit = normalizeLimit(limit)
	if len(all) > limit {
		all = all[:limit]
	}
	return Listing{TotalCount: total, ReturnedCount: len(all), Mappings: all}
}

func (s *FileStore) Delete(_ context.Context, conversationID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.data[conversationID]
	if !ok {
		return false
	}
	delete(s.data, conversationID)
	if err := s.save(); err != nil {
		s.restore(conversationID, prev, true)
		s.logger.Error("failed to delete mapping", "conversation_id", conversationID, "error", err)
		return false
	}
	s.logger.Info("mapping deleted", "conversation_id", conversationID)
	return true
}

func (s *FileStore) Close() error { return nil }

func (s *FileStore) restore(conversationID string, prev Mapping, existed bool) {
	if existed {
		s.data[conversationID] = prev
		return
	}
	delete(s.data, conversationID)
}

// save writes the whole table to a temp file and renames it over the target.
// Callers hold mu.
func (s *FileStore) save() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}

	data, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal mappings: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".mappings-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	return os.Rename(tmp.Name(), s.path)
}
