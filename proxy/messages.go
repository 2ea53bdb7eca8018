package proxy

import (
	"encoding/json"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/tapestream/pkg/storage"
)

// clientSourceMetadata tags messages persisted by a client after a stream.
var clientSourceMetadata = json.RawMessage(`{"source":"client"}`)

// SaveMessageRequest is the body of POST /v1/conversations/:id/messages.
type SaveMessageRequest struct {
	Content string `json:"content"`
}

// SaveMessageResponse identifies the stored record.
type SaveMessageResponse struct {
	ID string `json:"id"`
}

// handleSaveMessage stores the final content a client assembled from a
// stream. Unlike the buffered path the write is synchronous.
func (p *Proxy) handleSaveMessage(c *fiber.Ctx) error {
	convID := c.Params("id")
	if convID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "conversation id is required"})
	}

	var req SaveMessageRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}
	if strings.TrimSpace(req.Content) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "content is required"})
	}

	m := &storage.Message{
		ConversationID: convID,
		AgentID:        p.headerHandler.AgentName(c, ""),
		Role:           storage.RoleAssistant,
		Content:        req.Content,
		Status:         storage.StatusCompleted,
		Metadata:       clientSourceMetadata,
	}
	if err := p.store.SaveMessage(c.UserContext(), m); err != nil {
		p.logger.Error("saving client message", "conversation_id", convID, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to save message"})
	}

	return c.Status(fiber.StatusCreated).JSON(SaveMessageResponse{ID: m.ID})
}
