// Package memrecord defines the learned-memory record type and the scope
// and type vocabularies it is built from.
package memrecord

import (
	"time"

	"github.com/google/uuid"

	"github.com/CLIAIRMONITOR/memoryd/internal/apperr"
)

// Scope is the visibility envelope of a Memory.
type Scope string

const (
	ScopeGlobal   Scope = "global"
	ScopeAgent    Scope = "agent"
	ScopeTopic    Scope = "topic"
	ScopePersonal Scope = "personal"
)

// ParseScope validates a scope string against the closed vocabulary.
func ParseScope(s string) (Scope, error) {
	switch Scope(s) {
	case ScopeGlobal, ScopeAgent, ScopeTopic, ScopePersonal:
		return Scope(s), nil
	default:
		return "", apperr.InvalidInput("unknown scope: %q", s)
	}
}

func (s Scope) String() string { return string(s) }

// Type is the kind of thing a Memory records.
type Type string

const (
	TypeCorrection Type = "correction"
	TypePreference Type = "preference"
	TypeFact       Type = "fact"
	TypeWorkflow   Type = "workflow"
	TypeConstraint Type = "constraint"
)

// ParseType validates a memory-type string against the closed vocabulary.
func ParseType(s string) (Type, error) {
	switch Type(s) {
	case TypeCorrection, TypePreference, TypeFact, TypeWorkflow, TypeConstraint:
		return Type(s), nil
	default:
		return "", apperr.InvalidInput("unknown memory_type: %q", s)
	}
}

func (t Type) String() string { return string(t) }

// Memory is a piece of learned knowledge persisted across conversations.
type Memory struct {
	ID             string     `json:"id"`
	Scope          Scope      `json:"scope"`
	MemoryType     Type       `json:"memory_type"`
	AgentID        *string    `json:"agent_id,omitempty"`
	TopicID        *string    `json:"topic_id,omitempty"`
	Content        string     `json:"content"`
	Context        *string    `json:"context,omitempty"`
	Tags           []string   `json:"tags,omitempty"`
	Embedding      []float32  `json:"-"`
	CreatedAt      time.Time  `json:"created_at"`
	LastUsedAt     *time.Time `json:"last_used_at,omitempty"`
	RetrievalCount uint32     `json:"retrieval_count"`
	Active         bool       `json:"active"`
}

// ValidateScopeShape enforces the §3 scope-field invariants.
func ValidateScopeShape(scope Scope, agentID, topicID *string) error {
	switch scope {
	case ScopeGlobal, ScopePersonal:
		if agentID != nil {
			return apperr.InvalidInput("scope %q must not carry agent_id", scope)
		}
		if topicID != nil {
			return apperr.InvalidInput("scope %q must not carry topic_id", scope)
		}
	case ScopeAgent:
		if agentID == nil {
			return apperr.InvalidInput("scope %q requires agent_id", scope)
		}
		if topicID != nil {
			return apperr.InvalidInput("scope %q must not carry topic_id", scope)
		}
	case ScopeTopic:
		if agentID == nil || topicID == nil {
			return apperr.InvalidInput("scope %q requires both agent_id and topic_id", scope)
		}
	default:
		return apperr.InvalidInput("unknown scope: %q", scope)
	}
	return nil
}

// New builds a Memory after validating the scope shape.
func New(scope Scope, memoryType Type, agentID, topicID *string, content string) (*Memory, error) {
	if err := ValidateScopeShape(scope, agentID, topicID); err != nil {
		return nil, err
	}
	return &Memory{
		ID:         uuid.New().String(),
		Scope:      scope,
		MemoryType: memoryType,
		AgentID:    agentID,
		TopicID:    topicID,
		Content:    content,
		CreatedAt:  time.Now().UTC(),
		Active:     true,
	}, nil
}

// Global builds a global-scope memory.
func Global(memoryType Type, content string) *Memory {
	m, _ := New(ScopeGlobal, memoryType, nil, nil, content)
	return m
}

// ForAgent builds an agent-scope memory.
func ForAgent(agentID string, memoryType Type, content string) *Memory {
	m, _ := New(ScopeAgent, memoryType, &agentID, nil, content)
	return m
}

// ForTopic builds a topic-scope memory.
func ForTopic(agentID, topicID string, memoryType Type, content string) *Memory {
	m, _ := New(ScopeTopic, memoryType, &agentID, &topicID, content)
	return m
}

// WithContext sets the context snippet and returns the receiver.
func (m *Memory) WithContext(context string) *Memory {
	m.Context = &context
	return m
}

// WithTags sets the tags and returns the receiver.
func (m *Memory) WithTags(tags []string) *Memory {
	m.Tags = tags
	return m
}

// WithEmbedding sets the embedding vector and returns the receiver.
func (m *Memory) WithEmbedding(embedding []float32) *Memory {
	m.Embedding = embedding
	return m
}

// MarkUsed records a retrieval: bumps the count and stamps last-used.
func (m *Memory) MarkUsed() {
	now := time.Now().UTC()
	m.LastUsedAt = &now
	m.RetrievalCount++
}

// AgentRecord is the MetaStore's denormalized view of an agent.
type AgentRecord struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Model        string    `json:"model"`
	ContextLimit uint32    `json:"context_limit"`
	Color        string    `json:"color"`
	CreatedAt    time.Time `json:"created_at"`
}

// TopicRecord is the MetaStore's denormalized view of a topic.
type TopicRecord struct {
	ID            string     `json:"id"`
	AgentID       string     `json:"agent_id"`
	Name          string     `json:"name"`
	CreatedAt     time.Time  `json:"created_at"`
	LastMessageAt *time.Time `json:"last_message_at,omitempty"`
	MessageCount  uint32     `json:"message_count"`
	TokenCount    uint32     `json:"token_count"`
}
