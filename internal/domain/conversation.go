package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ConversationRecord is the persisted artifact capturing one completed
// request/response pair. It is written exactly once and never mutated.
type ConversationRecord struct {
	ConversationID string    `json:"conversation_id"`
	UserID         string    `json:"user_id"`
	Timestamp      time.Time `json:"timestamp"`
	Query          string    `json:"query"`
	Response       string    `json:"response"`
}

// Status reports how a pipeline request concluded.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Result is the structured output of one pipeline run.
type Result struct {
	ConversationID string    `json:"conversation_id"`
	UserID         string    `json:"user_id"`
	Timestamp      time.Time `json:"timestamp"`
	Query          string    `json:"query"`
	Response       string    `json:"response"`
	Status         Status    `json:"status"`
	CycleCount     int       `json:"cycle_count"`
	StorageRef     string    `json:"storage_reference,omitempty"`
	ErrorMessage   string    `json:"error_message,omitempty"`
}

// NewConversationID builds a unique conversation identifier from the user id,
// the wall clock, and a short random suffix.
func NewConversationID(userID string) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%s_%s_%s", userID, time.Now().Format("20060102_150405"), suffix)
}
