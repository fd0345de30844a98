package domain

import "time"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is a single message in a conversation, tagged with who produced it.
type Turn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Session holds per-user conversation state. It lives for the process
// lifetime and is never persisted; FeedbackCount is reset to zero at the
// start of every top-level request.
type Session struct {
	UserID          string    `json:"user_id"`
	History         []Turn    `json:"history"`
	LastInteraction time.Time `json:"last_interaction"`
	FeedbackCount   int       `json:"feedback_count"`
}
