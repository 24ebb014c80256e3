// Package message defines the conversation-log record types.
package message

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/CLIAIRMONITOR/memoryd/internal/apperr"
)

// Role identifies the sender of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ParseRole validates a role string against the closed vocabulary.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleSystem, RoleUser, RoleAssistant, RoleTool:
		return Role(s), nil
	default:
		return "", apperr.InvalidInput("unknown role: %q", s)
	}
}

func (r Role) String() string { return string(r) }

// ToolStatus is the lifecycle state of a ToolCall.
type ToolStatus string

const (
	ToolStatusPending ToolStatus = "pending"
	ToolStatusRunning ToolStatus = "running"
	ToolStatusSuccess ToolStatus = "success"
	ToolStatusError   ToolStatus = "error"
)

// ToolCall is an embedded record of one tool invocation within a message.
type ToolCall struct {
	ID     string          `json:"id"`
	Name   string          `json:"name"`
	Input  json.RawMessage `json:"input"`
	Output json.RawMessage `json:"output,omitempty"`
	Status ToolStatus      `json:"status"`
}

// Metadata carries the optional extras a Message may record.
type Metadata struct {
	ToolCalls        []ToolCall `json:"tool_calls,omitempty"`
	Thinking         string     `json:"thinking,omitempty"`
	Model            string     `json:"model,omitempty"`
	TriggeredMemory  bool       `json:"triggered_memory,omitempty"`
}

// Message is one immutable entry in a conversation log.
type Message struct {
	ID        string    `json:"id"`
	AgentID   string    `json:"agent_id"`
	TopicID   string    `json:"topic_id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Tokens    uint32    `json:"tokens"`
	Timestamp time.Time `json:"timestamp"`
	Metadata  *Metadata `json:"metadata,omitempty"`
}

// New creates a message with a fresh ID and the current timestamp. Tokens
// are left at zero; the caller (the service layer) fills them in once the
// token counter has run.
func New(agentID, topicID string, role Role, content string) *Message {
	return &Message{
		ID:        uuid.New().String(),
		AgentID:   agentID,
		TopicID:   topicID,
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
	}
}
