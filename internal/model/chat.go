package model

// Message is one transcript entry in a session
type Message struct {
	Role    string `json:"role"` // assistant or user
	Content string `json:"content"`
}

// PendingAsk is the single question currently awaiting an answer.
// At most one exists per session at any time.
type PendingAsk struct {
	SlotKey string   `json:"slot_key"`
	Prompt  string   `json:"prompt"`
	Options []string `json:"options,omitempty"`
}

// ChatRequest represents one user turn
type ChatRequest struct {
	SessionID string `json:"session_id,omitempty"`
	Message   string `json:"message" binding:"required"`
}

// ChatResponse represents the assistant's side of one turn
type ChatResponse struct {
	SessionID      string          `json:"session_id"`
	Messages       []Message       `json:"messages"` // assistant messages emitted this turn
	Ask            *PendingAsk     `json:"ask,omitempty"`
	Profile        Profile         `json:"profile"`
	Done           bool            `json:"done"`
	Recommendation *Recommendation `json:"recommendation,omitempty"`
	Status         string          `json:"status,omitempty"` // non-blocking degradation notices
	Took           int64           `json:"took_ms"`
}

// ResetRequest discards a session and reinitializes the greeting state
type ResetRequest struct {
	SessionID string `json:"session_id" binding:"required"`
}

// RecommendRequest runs the pipeline directly for an explicit profile
type RecommendRequest struct {
	Profile map[string]any `json:"profile" binding:"required"`
}

// EmbeddingBatchRequest represents a batch catalog embedding update
type EmbeddingBatchRequest struct {
	Embeddings []EmbeddingItem `json:"embeddings" binding:"required"`
}

// EmbeddingItem represents a single embedding with catalog row info
type EmbeddingItem struct {
	CarID     int64     `json:"car_id" binding:"required"`
	Embedding []float32 `json:"embedding" binding:"required"`
	Text      string    `json:"text,omitempty"` // the text used to generate the embedding
}

// EmbeddingBatchResponse represents the response for a batch embedding update
type EmbeddingBatchResponse struct {
	Success int      `json:"success"`
	Failed  int      `json:"failed"`
	Errors  []string `json:"errors,omitempty"`
}
