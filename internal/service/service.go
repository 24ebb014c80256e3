// Package service wires AppendLog, MetaStore, VectorIndex, Embedder,
// Retrieval, and the event bus behind the verb surface spec §4.6/§6
// describes. It is the coordinating facade: one struct holding every
// storage handle, generalized from the original's MemoryStore.
package service

import (
	"time"

	"github.com/CLIAIRMONITOR/memoryd/internal/apperr"
	"github.com/CLIAIRMONITOR/memoryd/internal/applog"
	"github.com/CLIAIRMONITOR/memoryd/internal/embedder"
	"github.com/CLIAIRMONITOR/memoryd/internal/eventbus"
	"github.com/CLIAIRMONITOR/memoryd/internal/memrecord"
	"github.com/CLIAIRMONITOR/memoryd/internal/message"
	"github.com/CLIAIRMONITOR/memoryd/internal/metastore"
	"github.com/CLIAIRMONITOR/memoryd/internal/retrieval"
	"github.com/CLIAIRMONITOR/memoryd/internal/vectorindex"
)

// defaultContextLimit is the context-window size used for budget
// reporting. The intended source is the per-agent AgentRecord.ContextLimit
// field, but that join is not wired up — a known gap, not silently
// closed here.
const defaultContextLimit uint32 = 128_000

// Bus is the subset of eventbus.Client the service needs to publish
// write notifications. Accepting an interface lets tests run without an
// embedded NATS server.
type Bus interface {
	PublishJSON(subject string, v any) error
}

// Service orchestrates every storage layer behind the verbs of §6.
type Service struct {
	Log       *applog.AppendLog
	Meta      *metastore.MetaStore
	Vector    *vectorindex.VectorIndex
	Embedder  *embedder.Embedder
	Tokens    *embedder.TokenCounter
	Retrieval *retrieval.Engine
	Bus       Bus

	ContextWarningThreshold  float32
	ContextCriticalThreshold float32
}

// New assembles a Service from already-constructed components.
func New(log *applog.AppendLog, meta *metastore.MetaStore, vector *vectorindex.VectorIndex, emb *embedder.Embedder, tokens *embedder.TokenCounter, ret *retrieval.Engine, bus Bus, warningThreshold, criticalThreshold float32) *Service {
	return &Service{
		Log: log, Meta: meta, Vector: vector, Embedder: emb, Tokens: tokens,
		Retrieval: ret, Bus: bus,
		ContextWarningThreshold: warningThreshold, ContextCriticalThreshold: criticalThreshold,
	}
}

// CreateMemoryRequest is the validated input to CreateMemory.
type CreateMemoryRequest struct {
	Scope      string
	MemoryType string
	AgentID    *string
	TopicID    *string
	Content    string
	Context    *string
	Tags       []string
}

// CreateMemory validates enums and scope shape, embeds the content, and
// saves to MetaStore then VectorIndex (metadata-then-vector write order,
// per spec §5's ordering rule).
func (s *Service) CreateMemory(req CreateMemoryRequest) (*memrecord.Memory, error) {
	scope, err := memrecord.ParseScope(req.Scope)
	if err != nil {
		return nil, err
	}
	memType, err := memrecord.ParseType(req.MemoryType)
	if err != nil {
		return nil, err
	}
	if err := memrecord.ValidateScopeShape(scope, req.AgentID, req.TopicID); err != nil {
		return nil, err
	}

	m, err := memrecord.New(scope, memType, req.AgentID, req.TopicID, req.Content)
	if err != nil {
		return nil, err
	}
	if req.Context != nil {
		m.WithContext(*req.Context)
	}
	if req.Tags != nil {
		m.WithTags(req.Tags)
	}

	vec, err := s.Embedder.Embed(m.Content)
	if err != nil {
		return nil, err
	}
	m.WithEmbedding(vec)

	if err := s.Meta.SaveMemory(m); err != nil {
		return nil, err
	}
	if err := s.Vector.Upsert(m); err != nil {
		return nil, err
	}

	s.publish(eventbus.SubjectMemoryCreated, eventbus.MemoryCreatedEvent{
		ID: m.ID, Scope: string(m.Scope), MemoryType: string(m.MemoryType), AgentID: m.AgentID, Timestamp: time.Now().UTC(),
	})

	return m, nil
}

// GetMemory returns a memory by id.
func (s *Service) GetMemory(id string) (*memrecord.Memory, error) {
	return s.Meta.GetMemory(id)
}

// ListMemoriesRequest narrows ListMemories.
type ListMemoriesRequest struct {
	Scope      *string
	AgentID    *string
	TopicID    *string
	ActiveOnly bool
}

// ListMemories validates the optional scope filter and delegates to
// MetaStore.
func (s *Service) ListMemories(req ListMemoriesRequest) ([]*memrecord.Memory, error) {
	filter := metastore.ListFilter{AgentID: req.AgentID, TopicID: req.TopicID, ActiveOnly: req.ActiveOnly}
	if req.Scope != nil {
		scope, err := memrecord.ParseScope(*req.Scope)
		if err != nil {
			return nil, err
		}
		filter.Scope = &scope
	}
	return s.Meta.ListMemories(filter)
}

// DeleteMemory hard-deletes a memory from MetaStore then VectorIndex
// (metadata-then-vector, so a mid-delete crash leaves an orphan vector
// row rather than a phantom-visible memory). Idempotent: deleting a
// missing id succeeds.
func (s *Service) DeleteMemory(id string) error {
	if err := s.Meta.DeleteMemory(id); err != nil {
		return err
	}
	if err := s.Vector.Delete(id); err != nil {
		return err
	}
	s.publish(eventbus.SubjectMemoryDeleted, eventbus.MemoryDeletedEvent{ID: id, Timestamp: time.Now().UTC()})
	return nil
}

// SetMemoryActive flips the soft-delete flag.
func (s *Service) SetMemoryActive(id string, active bool) error {
	if err := s.Meta.SetMemoryActive(id, active); err != nil {
		return err
	}
	if !active {
		s.publish(eventbus.SubjectMemoryDeactivated, eventbus.MemoryDeactivatedEvent{ID: id, Timestamp: time.Now().UTC()})
	}
	return nil
}

// AppendMessageRequest is the validated input to AppendMessage.
type AppendMessageRequest struct {
	AgentID string
	TopicID string
	Role    string
	Content string
}

// AppendMessage counts tokens via the Embedder's token counter, persists
// the resulting Message to the AppendLog, and publishes a notification.
func (s *Service) AppendMessage(req AppendMessageRequest) (*message.Message, error) {
	role, err := message.ParseRole(req.Role)
	if err != nil {
		return nil, err
	}

	msg := message.New(req.AgentID, req.TopicID, role, req.Content)
	msg.Tokens = s.Tokens.Count(req.Content)

	if _, err := s.Log.Append(msg); err != nil {
		return nil, err
	}

	s.publish(eventbus.SubjectMessageAppended, eventbus.MessageAppendedEvent{
		AgentID: msg.AgentID, TopicID: msg.TopicID, MessageID: msg.ID, Tokens: msg.Tokens, Timestamp: msg.Timestamp,
	})

	return msg, nil
}

// ListMessages returns up to limit most-recent messages for (agentID,
// topicID), oldest-to-newest. limit <= 0 returns every message.
func (s *Service) ListMessages(agentID, topicID string, limit int) ([]*message.Message, error) {
	if limit <= 0 {
		return s.Log.ReadAll(agentID, topicID)
	}
	return s.Log.ReadLastN(agentID, topicID, limit)
}

// Retrieve runs the retrieval pipeline for query and marks every returned
// memory as used in MetaStore. A hit whose metadata row is missing (an
// orphan vector row) is skipped rather than treated as an error.
func (s *Service) Retrieve(query string, agentID, topicID *string, maxRecentMessages int) (*retrieval.Context, error) {
	ctx, err := s.Retrieval.Retrieve(query, agentID, topicID, maxRecentMessages)
	if err != nil {
		return nil, err
	}
	for _, m := range ctx.Memories {
		if err := s.Meta.MarkMemoryUsed(m.ID); err != nil && apperr.KindOf(err) != apperr.KindNotFound {
			return nil, err
		}
	}
	return ctx, nil
}

// CountTokens counts tokens in text via the Embedder's token counter.
func (s *Service) CountTokens(text string) uint32 {
	return s.Tokens.Count(text)
}

// Budget is the token-budget report for (agentID, topicID).
type Budget struct {
	Used        uint32
	Limit       uint32
	Remaining   uint32
	Utilization float32
	Status      string
}

// TokenBudget reads total tokens from the AppendLog and reports usage
// against the currently-hard-coded context limit.
func (s *Service) TokenBudget(agentID, topicID string) (*Budget, error) {
	used, err := s.Log.TotalTokens(agentID, topicID)
	if err != nil {
		return nil, err
	}

	b := retrieval.NewBudget(defaultContextLimit, s.ContextWarningThreshold, s.ContextCriticalThreshold)
	b.Add(used)

	return &Budget{
		Used:        b.Used,
		Limit:       b.Limit,
		Remaining:   b.Remaining(),
		Utilization: b.Utilization(),
		Status:      b.Status(),
	}, nil
}

// ListAgents enumerates agent ids from the AppendLog tree.
func (s *Service) ListAgents() ([]string, error) {
	return s.Log.ListAgents()
}

// ListTopics enumerates topic ids for an agent from the AppendLog tree.
func (s *Service) ListTopics(agentID string) ([]string, error) {
	return s.Log.ListTopics(agentID)
}

func (s *Service) publish(subject string, v any) {
	if s.Bus == nil {
		return
	}
	if err := s.Bus.PublishJSON(subject, v); err != nil {
		_ = apperr.WrapConfig(err, "publish %s", subject)
	}
}
