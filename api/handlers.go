package api

import (
	"encoding/json"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/tapestream/pkg/storage"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// MessagesResponse lists a conversation's messages, oldest first.
type MessagesResponse struct {
	ConversationID string             `json:"conversationId"`
	Count          int                `json:"count"`
	Messages       []*storage.Message `json:"messages"`
}

// InteractionsResponse lists a conversation's interactions, oldest first.
type InteractionsResponse struct {
	ConversationID string                 `json:"conversationId"`
	Count          int                    `json:"count"`
	Interactions   []*storage.Interaction `json:"interactions"`
}

// PutAgentDataRequest is the body of a side-store write. ExpiresAt wins over
// TTL when both are set; neither means the entry never expires.
type PutAgentDataRequest struct {
	Data      json.RawMessage `json:"data"`
	ExpiresAt *time.Time      `json:"expiresAt,omitempty"`
	TTL       string          `json:"ttl,omitempty"`
}

// CleanupResponse reports a maintenance sweep.
type CleanupResponse struct {
	Deleted int64 `json:"deleted"`
}

func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

func (s *Server) handleStats(c *fiber.Ctx) error {
	return c.JSON(s.persistence.Stats())
}

func (s *Server) handleListMessages(c *fiber.Ctx) error {
	convID := c.Params("id")

	msgs, err := s.records.ListMessages(c.UserContext(), convID)
	if err != nil {
		s.logger.Error("listing messages", "conversation_id", convID, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to list messages"})
	}
	if msgs == nil {
		msgs = []*storage.Message{}
	}

	return c.JSON(MessagesResponse{ConversationID: convID, Count: len(msgs), Messages: msgs})
}

func (s *Server) handleListInteractions(c *fiber.Ctx) error {
	convID := c.Params("id")

	interactions, err := s.records.ListInteractions(c.UserContext(), convID)
	if err != nil {
		s.logger.Error("listing interactions", "conversation_id", convID, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to list interactions"})
	}
	if interactions == nil {
		interactions = []*storage.Interaction{}
	}

	return c.JSON(InteractionsResponse{ConversationID: convID, Count: len(interactions), Interactions: interactions})
}

func (s *Server) handleGetAgentData(c *fiber.Ctx) error {
	convID, agentID, dataType := c.Params("id"), c.Params("agent"), c.Params("type")

	data, err := s.persistence.GetAgentData(c.UserContext(), convID, agentID, dataType)
	if err != nil {
		s.logger.Error("loading agent data",
			"key", storage.AgentDataKey(convID, agentID, dataType),
			"error", err,
		)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to load agent data"})
	}
	if data == nil {
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: "agent data not found"})
	}

	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Send(data)
}

func (s *Server) handlePutAgentData(c *fiber.Ctx) error {
	convID, agentID, dataType := c.Params("id"), c.Params("agent"), c.Params("type")

	var req PutAgentDataRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}
	if len(req.Data) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "data is required"})
	}

	expiresAt := req.ExpiresAt
	if expiresAt == nil && req.TTL != "" {
		ttl, err := time.ParseDuration(req.TTL)
		if err != nil || ttl <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "ttl must be a positive duration"})
		}
		t := s.now().Add(ttl)
		expiresAt = &t
	}

	if err := s.persistence.SaveAgentData(c.UserContext(), convID, agentID, dataType, req.Data, expiresAt); err != nil {
		s.logger.Error("saving agent data",
			"key", storage.AgentDataKey(convID, agentID, dataType),
			"error", err,
		)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to save agent data"})
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) handleCleanup(c *fiber.Ctx) error {
	n, err := s.persistence.CleanupExpiredData(c.UserContext())
	if err != nil {
		s.logger.Error("cleaning up expired agent data", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "cleanup failed"})
	}

	s.logger.Info("expired agent data removed", "count", n)
	return c.JSON(CleanupResponse{Deleted: n})
}
