// Package entdriver implements storage.Driver on top of ent's dialect-aware
// SQL builders. It is database-agnostic and is embedded by the SQLite and
// PostgreSQL drivers.
package entdriver

import (
	"context"
	stdsql "database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/papercomputeco/tapestream/pkg/storage"
)

// EntDriver provides storage operations over an ent SQL driver.
type EntDriver struct {
	drv     *entsql.Driver
	dialect string
	now     func() time.Time
}

// New wraps drv and creates the schema when it does not exist yet.
func New(ctx context.Context, drv *entsql.Driver) (*EntDriver, error) {
	ed := &EntDriver{
		drv:     drv,
		dialect: drv.Dialect(),
		now:     time.Now,
	}
	if err := ed.migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return ed, nil
}

// SaveMessage inserts a message record.
func (ed *EntDriver) SaveMessage(ctx context.Context, m *storage.Message) error {
	if m == nil {
		return errors.New("cannot store nil message")
	}
	storage.PrepareMessage(m, ed.now())

	query, args := entsql.Dialect(ed.dialect).
		Insert(tableMessages).
		Columns("id", "conversation_id", "agent_id", "role", "content", "tool_name", "status", "metadata", "created_at").
		Values(m.ID, m.ConversationID, m.AgentID, m.Role, m.Content, m.ToolName, m.Status, nullJSON(m.Metadata), m.CreatedAt.UTC()).
		Query()

	if err := ed.drv.Exec(ctx, query, args, nil); err != nil {
		return fmt.Errorf("could not insert message: %w", err)
	}
	return nil
}

// ListMessages returns a conversation's messages, oldest first.
func (ed *EntDriver) ListMessages(ctx context.Context, conversationID string) ([]*storage.Message, error) {
	query, args := entsql.Dialect(ed.dialect).
		Select("id", "conversation_id", "agent_id", "role", "content", "tool_name", "status", "metadata", "created_at").
		From(entsql.Table(tableMessages)).
		Where(entsql.EQ("conversation_id", conversationID)).
		OrderBy("created_at", "id").
		Query()

	var rows entsql.Rows
	if err := ed.drv.Query(ctx, query, args, &rows); err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var out []*storage.Message
	for rows.Next() {
		var (
			m        storage.Message
			metadata []byte
		)
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.AgentID, &m.Role, &m.Content, &m.ToolName, &m.Status, &metadata, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		m.Metadata = rawJSON(metadata)
		out = append(out, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate messages: %w", err)
	}
	return out, nil
}

// SaveInteraction inserts an interaction record.
func (ed *EntDriver) SaveInteraction(ctx context.Context, i *storage.Interaction) error {
	if i == nil {
		return errors.New("cannot store nil interaction")
	}
	storage.PrepareInteraction(i, ed.now())

	query, args := entsql.Dialect(ed.dialect).
		Insert(tableInteractions).
		Columns("id", "conversation_id", "agent_id", "action_type", "from_agent", "reason", "state_snapshot", "created_at").
		Values(i.ID, i.ConversationID, i.AgentID, i.ActionType, i.FromAgent, i.Reason, nullJSON(i.StateSnapshot), i.CreatedAt.UTC()).
		Query()

	if err := ed.drv.Exec(ctx, query, args, nil); err != nil {
		return fmt.Errorf("could not insert interaction: %w", err)
	}
	return nil
}

// ListInteractions returns a conversation's interactions, oldest first.
func (ed *EntDriver) ListInteractions(ctx context.Context, conversationID string) ([]*storage.Interaction, error) {
	query, args := entsql.Dialect(ed.dialect).
		Select("id", "conversation_id", "agent_id", "action_type", "from_agent", "reason", "state_snapshot", "created_at").
		From(entsql.Table(tableInteractions)).
		Where(entsql.EQ("conversation_id", conversationID)).
		OrderBy("created_at", "id").
		Query()

	var rows entsql.Rows
	if err := ed.drv.Query(ctx, query, args, &rows); err != nil {
		return nil, fmt.Errorf("failed to query interactions: %w", err)
	}
	defer rows.Close()

	var out []*storage.Interaction
	for rows.Next() {
		var (
			i        storage.Interaction
			snapshot []byte
		)
		if err := rows.Scan(&i.ID, &i.ConversationID, &i.AgentID, &i.ActionType, &i.FromAgent, &i.Reason, &snapshot, &i.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan interaction: %w", err)
		}
		i.StateSnapshot = rawJSON(snapshot)
		out = append(out, &i)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate interactions: %w", err)
	}
	return out, nil
}

// UpsertAgentData inserts d or replaces the entry with the same key.
func (ed *EntDriver) UpsertAgentData(ctx context.Context, d *storage.AgentData) error {
	if d == nil {
		return errors.New("cannot store nil agent data")
	}
	if d.UpdatedAt.IsZero() {
		d.UpdatedAt = ed.now()
	}

	var expiresAt any
	if d.ExpiresAt != nil {
		expiresAt = d.ExpiresAt.UTC()
	}

	query, args := entsql.Dialect(ed.dialect).
		Insert(tableAgentData).
		Columns("conversation_id", "agent_id", "data_type", "data", "expires_at", "updated_at").
		Values(d.ConversationID, d.AgentID, d.DataType, string(d.Data), expiresAt, d.UpdatedAt.UTC()).
		OnConflict(
			entsql.ConflictColumns("conversation_id", "agent_id", "data_type"),
			entsql.ResolveWithNewValues(),
		).
		Query()

	if err := ed.drv.Exec(ctx, query, args, nil); err != nil {
		return fmt.Errorf("could not upsert agent data: %w", err)
	}
	return nil
}

// GetAgentData returns the stored entry for the key.
func (ed *EntDriver) GetAgentData(ctx context.Context, conversationID, agentID, dataType string) (*storage.AgentData, error) {
	query, args := entsql.Dialect(ed.dialect).
		Select("conversation_id", "agent_id", "data_type", "data", "expires_at", "updated_at").
		From(entsql.Table(tableAgentData)).
		Where(entsql.And(
			entsql.EQ("conversation_id", conversationID),
			entsql.EQ("agent_id", agentID),
			entsql.EQ("data_type", dataType),
		)).
		Query()

	var rows entsql.Rows
	if err := ed.drv.Query(ctx, query, args, &rows); err != nil {
		return nil, fmt.Errorf("failed to query agent data: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("failed to query agent data: %w", err)
		}
		return nil, storage.NotFoundError{
			Kind: "agent data",
			Key:  storage.AgentDataKey(conversationID, agentID, dataType),
		}
	}

	var (
		d         storage.AgentData
		data      []byte
		expiresAt stdsql.NullTime
	)
	if err := rows.Scan(&d.ConversationID, &d.AgentID, &d.DataType, &data, &expiresAt, &d.UpdatedAt); err != nil {
		return nil, fmt.Errorf("failed to scan agent data: %w", err)
	}
	d.Data = rawJSON(data)
	if expiresAt.Valid {
		t := expiresAt.Time
		d.ExpiresAt = &t
	}
	return &d, nil
}

// DeleteExpiredAgentData deletes entries whose expiration is at or before now.
func (ed *EntDriver) DeleteExpiredAgentData(ctx context.Context, now time.Time) (int64, error) {
	query, args := entsql.Dialect(ed.dialect).
		Delete(tableAgentData).
		Where(entsql.And(
			entsql.NotNull("expires_at"),
			entsql.LTE("expires_at", now.UTC()),
		)).
		Query()

	var res stdsql.Result
	if err := ed.drv.Exec(ctx, query, args, &res); err != nil {
		return 0, fmt.Errorf("could not delete expired agent data: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("could not count deleted agent data: %w", err)
	}
	return n, nil
}

// Close closes the underlying database connection.
func (ed *EntDriver) Close() error {
	return ed.drv.Close()
}

func nullJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

func rawJSON(b []byte) json.RawMessage {
	if len(b) == 0 {
		return nil
	}
	return json.RawMessage(append([]byte(nil), b...))
}
