package eventbus

import "time"

// Subject constants for the memory service's write-notification feed.
// Replaces the teacher's agent-orchestration subjects (agent.*.status,
// sergeant.*, escalation.*) with the memory domain's own events.
const (
	SubjectMemoryCreated     = "memory.created"
	SubjectMemoryDeleted     = "memory.deleted"
	SubjectMemoryDeactivated = "memory.deactivated"
	SubjectMessageAppended   = "message.appended"
)

// MemoryCreatedEvent announces a new memory saved to the MetaStore and
// VectorIndex.
type MemoryCreatedEvent struct {
	ID         string    `json:"id"`
	Scope      string    `json:"scope"`
	MemoryType string    `json:"memory_type"`
	AgentID    *string   `json:"agent_id,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// MemoryDeletedEvent announces a hard delete.
type MemoryDeletedEvent struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
}

// MemoryDeactivatedEvent announces a soft delete (active set to false).
type MemoryDeactivatedEvent struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
}

// MessageAppendedEvent announces a new conversation-log entry.
type MessageAppendedEvent struct {
	AgentID   string    `json:"agent_id"`
	TopicID   string    `json:"topic_id"`
	MessageID string    `json:"message_id"`
	Tokens    uint32    `json:"tokens"`
	Timestamp time.Time `json:"timestamp"`
}
