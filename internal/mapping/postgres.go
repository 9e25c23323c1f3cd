package mapping

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/triario/avatar-backend/internal/prospect"
)

const schema = `
CREATE TABLE IF NOT EXISTS conversation_mappings (
	conversation_id TEXT PRIMARY KEY,
	hubspot_id      TEXT NOT NULL,
	prospect_data   JSONB NOT NULL,
	attributes      JSONB NOT NULL DEFAULT '{}'::jsonb,
	created_at      TIMESTAMPTZ NOT NULL,
	updated_at      TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS conversation_mappings_created_at_idx ON conversation_mappings (created_at DESC);`

// PostgresStore is the Store used when several processes share mappings.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// OpenPostgres connects, pings and makes sure the table exists.
func OpenPostgres(ctx context.Context, databaseURL string, logger *slog.Logger) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &PostgresStore{pool: pool, logger: logger}, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) Put(ctx context.Context, conversationID, hubspotID string, p prospect.Prospect) bool {
	data, err := json.Marshal(p)
	if err != nil {
		s.logger.Error("failed to encode prospect", "conversation_id", conversationID, "error", err)
		return false
	}

	now := time.Now().UTC()
	// The WHERE clause keeps hubspot_id immutable: a conflicting contact
	// updates zero rows.
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO conversation_mappings (conversation_id, hubspot_id, prospect_data, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (conversation_id) DO UPDATE
		SET prospect_data = EXCLUDED.prospect_data, updated_at = EXCLUDED.updated_at
		WHERE conversation_mappings.hubspot_id = EXCLUDED.hubspot_id`,
		conversationID, hubspotID, data, now,
	)
	if err != nil {
		s.logger.Error("failed to store mapping", "conversation_id", conversationID, "error", err)
		return false
	}
	if tag.RowsAffected() == 0 {
		s.logger.Warn("refusing to change contact of existing mapping",
			"conversation_id", conversationID,
			"new_hubspot_id", hubspotID,
		)
		return false
	}
	s.logger.Info("mapping stored", "conversation_id", conversationID, "hubspot_id", hubspotID)
	return true
}

func (s *PostgresStore) Get(ctx context.Context, conversationID string) (*Mapping, bool) {
	row := s.pool.QueryRow(ctx, `
		SELECT conversation_id, hubspot_id, prospect_data, attributes, created_at, updated_at
		FROM conversation_mappings WHERE conversation_id = $1`, conversationID)

	m, err := scanMapping(row)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			s.logger.Error("failed to get mapping", "conversation_id", conversationID, "error", err)
		}
		return nil, false
	}
	return m, true
}

func (s *PostgresStore) ContactID(ctx context.Context, conversationID string) (string, bool) {
	var id string
	err := s.pool.QueryRow(ctx,
		`SELECT hubspot_id FROM conversation_mappings WHERE conversation_id = $1`, conversationID,
	).Scan(&id)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			s.logger.Error("failed to get contact id", "conversation_id", conversationID, "error", err)
		}
		return "", false
	}
	return id, true
}

func (s *PostgresStore) Update(ctx context.Context, conversationID string, fields map[string]any) bool {
	data, err := json.Marshal(attributeFields(fields))
	if err != nil {
		s.logger.Error("failed to encode attributes", "conversation_id", conversationID, "error", err)
		return false
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE conversation_mappings
		SET attributes = attributes || $2::jsonb, updated_at = $3
		WHERE conversation_id = $1`,
		conversationID, data, time.Now().UTC(),
	)
	if err != nil {
		s.logger.Error("failed to update mapping", "conversation_id", conversationID, "error", err)
		return false
	}
	return tag.RowsAffected() == 1
}

func (s *PostgresStore) List(ctx context.Context, limit int) Listing {
	out := Listing{Mappings: []Mapping{}}

	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM conversation_mappings`).Scan(&out.TotalCount); err != nil {
		s.logger.Error("failed to count mappings", "error", err)
		return out
	}

	rows, err := s.pool.Query(ctx, `
		SELECT conversation_id, hubspot_id, prospect_data, attributes, created_at, updated_at
		FROM conversation_mappings
		ORDER BY created_at DESC, conversation_id
		LIMIT $1`, normalizeLimit(limit))
	if err != nil {
		s.logger.Error("failed to list mappings", "error", err)
		return out
	}
	defer rows.Close()

	for rows.Next() {
		m, err := scanMapping(rows)
		if err != nil {
			s.logger.Error("failed to scan mapping", "error", err)
			continue
		}
		out.Mappings = append(out.Mappings, *m)
	}
	if err := rows.Err(); err != nil {
		s.logger.Error("failed to iterate mappings", "error", err)
	}
	out.ReturnedCount = len(out.Mappings)
	return out
}

func (s *PostgresStore) Delete(ctx context.Context, conversationID string) bool {
	tag, err := s.pool.Exec(ctx, `DELETE FROM conversation_mappings WHERE conversation_id = $1`, conversationID)
	if err != nil {
		s.logger.Error("failed to delete mapping", "conversation_id", conversationID, "error", err)
		return false
	}
	return tag.RowsAffected() == 1
}

func scanMapping(row pgx.Row) (*Mapping, error) {
	var (
		m          Mapping
		prospectJS []byte
		attrsJS    []byte
	)
	if err := row.Scan(&m.ConversationID, &m.HubSpotID, &prospectJS, &attrsJS, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(prospectJS, &m.Prospect); err != nil {
		return nil, fmt.Errorf("decode prospect_data: %w", err)
	}
	if err := json.Unmarshal(attrsJS, &m.Attributes); err != nil {
		return nil, fmt.Errorf("decode attributes: %w", err)
	}
	if len(m.Attributes) == 0 {
		m.Attributes = nil
	}
	return &m, nil
}
