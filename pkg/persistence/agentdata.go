package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/papercomputeco/tapestream/pkg/storage"
)

// SaveAgentData upserts a side-store value. Unlike SaveEvent it writes
// synchronously and returns any datastore error.
func (p *Persister) SaveAgentData(ctx context.Context, conversationID, agentID, dataType string, data any, expiresAt *time.Time) error {
	if conversationID == "" || agentID == "" || dataType == "" {
		return errors.New("agent data requires a conversation, an agent and a data type")
	}

	var raw json.RawMessage
	switch v := data.(type) {
	case json.RawMessage:
		raw = v
	case []byte:
		raw = v
	default:
		b, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("encoding agent data: %w", err)
		}
		raw = b
	}
	if !json.Valid(raw) {
		return errors.New("agent data is not valid JSON")
	}

	var exp *time.Time
	if expiresAt != nil {
		t := expiresAt.UTC()
		exp = &t
	}

	err := p.agentData.UpsertAgentData(ctx, &storage.AgentData{
		ConversationID: conversationID,
		AgentID:        agentID,
		DataType:       dataType,
		Data:           raw,
		ExpiresAt:      exp,
		UpdatedAt:      p.now(),
	})
	if err != nil {
		return fmt.Errorf("saving agent data %s: %w", storage.AgentDataKey(conversationID, agentID, dataType), err)
	}
	return nil
}

// GetAgentData returns a side-store value, or nil when it is missing or
// expired.
func (p *Persister) GetAgentData(ctx context.Context, conversationID, agentID, dataType string) (json.RawMessage, error) {
	d, err := p.agentData.GetAgentData(ctx, conversationID, agentID, dataType)
	if storage.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading agent data %s: %w", storage.AgentDataKey(conversationID, agentID, dataType), err)
	}
	if d.Expired(p.scheduler.Now()) {
		return nil, nil
	}
	return d.Data, nil
}

// CleanupExpiredData deletes every side-store value past its expiration.
func (p *Persister) CleanupExpiredData(ctx context.Context) (int64, error) {
	n, err := p.agentData.DeleteExpiredAgentData(ctx, p.now())
	if err != nil {
		return 0, fmt.Errorf("deleting expired agent data: %w", err)
	}
	return n, nil
}

// RunJanitor sweeps expired agent data and long-ended stream states every
// interval until ctx is done. It returns ctx's error.
func (p *Persister) RunJanitor(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("invalid janitor interval %s", interval)
	}

	for {
		tick := make(chan struct{})
		stop := p.scheduler.AfterFunc(interval, func() { close(tick) })

		select {
		case <-ctx.Done():
			stop()
			return ctx.Err()
		case <-tick:
		}

		p.sweep(ctx)
	}
}

func (p *Persister) sweep(ctx context.Context) {
	n, err := p.CleanupExpiredData(ctx)
	if err != nil {
		p.logger.Error("agent data cleanup failed", "error", err)
	} else if n > 0 {
		p.logger.Info("expired agent data removed", "count", n)
	}

	if pruned := p.states.pruneEnded(p.scheduler.Now().Add(-EndedRetention)); pruned > 0 {
		p.logger.Debug("ended stream states pruned", "count", pruned)
	}
}
