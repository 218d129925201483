package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"caradvisor/internal/model"
	"caradvisor/internal/service"

	"github.com/gin-gonic/gin"
)

// ChatHandler handles the conversational questionnaire endpoints
type ChatHandler struct {
	dialogue *service.DialogueManager
	sessions *service.SessionManager
}

// NewChatHandler creates a new chat handler
func NewChatHandler(dialogue *service.DialogueManager, sessions *service.SessionManager) *ChatHandler {
	return &ChatHandler{
		dialogue: dialogue,
		sessions: sessions,
	}
}

// Chat handles POST /api/v1/chat
func (h *ChatHandler) Chat(c *gin.Context) {
	var req model.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	session := h.sessions.GetOrCreate(req.SessionID)
	resp, err := h.dialogue.HandleTurn(c.Request.Context(), session, req.Message, nil)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Chat turn failed: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, resp)
}

// ChatStream handles POST /api/v1/chat/stream - SSE streaming turn
func (h *ChatHandler) ChatStream(c *gin.Context) {
	var req model.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	// Set SSE headers
	c.Header("Content-Type", "text/event-stream; charset=utf-8")
	c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Streaming not supported"})
		return
	}

	session := h.sessions.GetOrCreate(req.SessionID)

	sendSSE(c, "start", map[string]any{"session_id": session.ID})
	flusher.Flush()

	resp, err := h.dialogue.HandleTurn(c.Request.Context(), session, req.Message, func(event string, data any) error {
		sendSSE(c, event, data)
		flusher.Flush()
		return nil
	})

	if err != nil {
		sendSSE(c, "error", map[string]any{"error": err.Error()})
		flusher.Flush()
		return
	}

	sendSSE(c, "turn", resp)
	flusher.Flush()

	sendSSE(c, "done", nil)
	flusher.Flush()
}

// Reset handles POST /api/v1/reset - idempotent session reset
func (h *ChatHandler) Reset(c *gin.Context) {
	var req model.ResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	session := h.sessions.Reset(req.SessionID)

	c.JSON(http.StatusOK, gin.H{
		"session_id": session.ID,
		"messages":   session.Transcript,
	})
}

// GetProfile handles GET /api/v1/sessions/:id/profile
func (h *ChatHandler) GetProfile(c *gin.Context) {
	session, ok := h.sessions.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session_id": session.ID,
		"profile":    session.Profile,
		"done":       session.Done,
	})
}

// sendSSE sends a Server-Sent Event
func sendSSE(c *gin.Context, event string, data any) {
	if data != nil {
		jsonData, err := json.Marshal(data)
		if err != nil {
			fmt.Fprintf(c.Writer, "event: error\ndata: {\"error\": \"JSON marshal failed\"}\n\n")
			return
		}
		fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", event, string(jsonData))
	} else {
		fmt.Fprintf(c.Writer, "event: %s\ndata: {}\n\n", event)
	}
}
