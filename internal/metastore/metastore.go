// Package metastore is the relational index of memories, agents, and
// topics: MetaStore, authoritative for memory metadata per spec §4.2.
package metastore

import (
	"database/sql"
	_ "embed"
	"encoding/json"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/CLIAIRMONITOR/memoryd/internal/apperr"
	"github.com/CLIAIRMONITOR/memoryd/internal/memrecord"
)

//go:embed schema.sql
var schema string

// MetaStore is the SQLite-backed metadata index. All access is serialised
// through mu; the underlying connection pool is capped at one connection,
// matching the teacher's single-writer SQLite discipline.
type MetaStore struct {
	mu sync.Mutex
	db *sql.DB
}

// Open creates or opens a MetaStore at path, initialising its schema.
func Open(path string) (*MetaStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, apperr.WrapStorage(err, "open metastore: %s", path)
	}

	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, apperr.WrapStorage(err, "set pragma %q", p)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, apperr.WrapStorage(err, "initialize metastore schema")
	}

	return &MetaStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *MetaStore) Close() error {
	return s.db.Close()
}

func timeStr(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// SaveMemory upserts a memory by id. Scope, memory_type, agent_id, topic_id,
// and created_at are immutable identity fields once a row exists — an
// upsert only refreshes content, context, tags, last_used_at,
// retrieval_count, and active.
func (s *MetaStore) SaveMemory(m *memrecord.Memory) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tagsJSON, err := json.Marshal(m.Tags)
	if err != nil {
		return apperr.WrapJSON(err, "marshal tags for memory %s", m.ID)
	}

	var lastUsed sql.NullString
	if m.LastUsedAt != nil {
		lastUsed = sql.NullString{String: timeStr(*m.LastUsedAt), Valid: true}
	}

	query := `
		INSERT INTO memories (id, scope, memory_type, agent_id, topic_id, content, context, tags_json, created_at, last_used_at, retrieval_count, active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			content = excluded.content,
			context = excluded.context,
			tags_json = excluded.tags_json,
			last_used_at = excluded.last_used_at,
			retrieval_count = excluded.retrieval_count,
			active = excluded.active
	`
	_, err = s.db.Exec(query,
		m.ID, string(m.Scope), string(m.MemoryType), m.AgentID, m.TopicID,
		m.Content, m.Context, string(tagsJSON), timeStr(m.CreatedAt), lastUsed,
		m.RetrievalCount, boolToInt(m.Active),
	)
	if err != nil {
		return apperr.WrapStorage(err, "save memory %s", m.ID)
	}
	return nil
}

func scanMemory(row interface {
	Scan(dest ...any) error
}) (*memrecord.Memory, error) {
	var id, scope, memType, content, createdAt string
	var agentID, topicID, context, tagsJSON, lastUsed sql.NullString
	var retrievalCount int64
	var active int

	if err := row.Scan(&id, &scope, &memType, &agentID, &topicID, &content, &context, &tagsJSON, &createdAt, &lastUsed, &retrievalCount, &active); err != nil {
		return nil, err
	}

	parsedScope, err := memrecord.ParseScope(scope)
	if err != nil {
		return nil, apperr.Storage("corrupt scope %q in memory %s", scope, id)
	}
	parsedType, err := memrecord.ParseType(memType)
	if err != nil {
		return nil, apperr.Storage("corrupt memory_type %q in memory %s", memType, id)
	}
	created, err := parseTime(createdAt)
	if err != nil {
		return nil, apperr.Storage("corrupt created_at %q in memory %s", createdAt, id)
	}

	m := &memrecord.Memory{
		ID:             id,
		Scope:          parsedScope,
		MemoryType:     parsedType,
		Content:        content,
		CreatedAt:      created,
		RetrievalCount: uint32(retrievalCount),
		Active:         active != 0,
	}
	if agentID.Valid {
		v := agentID.String
		m.AgentID = &v
	}
	if topicID.Valid {
		v := topicID.String
		m.TopicID = &v
	}
	if context.Valid {
		v := context.String
		m.Context = &v
	}
	if tagsJSON.Valid && tagsJSON.String != "" {
		if err := json.Unmarshal([]byte(tagsJSON.String), &m.Tags); err != nil {
			return nil, apperr.WrapJSON(err, "parse tags for memory %s", id)
		}
	}
	if lastUsed.Valid {
		t, err := parseTime(lastUsed.String)
		if err != nil {
			return nil, apperr.Storage("corrupt last_used_at %q in memory %s", lastUsed.String, id)
		}
		m.LastUsedAt = &t
	}
	return m, nil
}

const memorySelectColumns = "id, scope, memory_type, agent_id, topic_id, content, context, tags_json, created_at, last_used_at, retrieval_count, active"

// GetMemory returns a memory by id, with its embedding always absent.
func (s *MetaStore) GetMemory(id string) (*memrecord.Memory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRow("SELECT "+memorySelectColumns+" FROM memories WHERE id = ?", id)
	m, err := scanMemory(row)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("memory not found: %s", id)
	}
	if err != nil {
		if _, ok := err.(*apperr.Error); ok {
			return nil, err
		}
		return nil, apperr.WrapStorage(err, "get memory %s", id)
	}
	return m, nil
}

// ListFilter conjunctively narrows ListMemories.
type ListFilter struct {
	Scope      *memrecord.Scope
	AgentID    *string
	TopicID    *string
	ActiveOnly bool
}

// ListMemories returns memories matching filter, ordered by created_at
// descending.
func (s *MetaStore) ListMemories(filter ListFilter) ([]*memrecord.Memory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := "SELECT " + memorySelectColumns + " FROM memories WHERE 1=1"
	var args []any

	if filter.Scope != nil {
		query += " AND scope = ?"
		args = append(args, string(*filter.Scope))
	}
	if filter.AgentID != nil {
		query += " AND agent_id = ?"
		args = append(args, *filter.AgentID)
	}
	if filter.TopicID != nil {
		query += " AND topic_id = ?"
		args = append(args, *filter.TopicID)
	}
	if filter.ActiveOnly {
		query += " AND active = 1"
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, apperr.WrapStorage(err, "list memories")
	}
	defer rows.Close()

	memories := []*memrecord.Memory{}
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			if _, ok := err.(*apperr.Error); ok {
				return nil, err
			}
			return nil, apperr.WrapStorage(err, "scan memory")
		}
		memories = append(memories, m)
	}
	return memories, rows.Err()
}

// DeleteMemory removes a memory row. Idempotent: deleting a missing id is
// not an error.
func (s *MetaStore) DeleteMemory(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec("DELETE FROM memories WHERE id = ?", id); err != nil {
		return apperr.WrapStorage(err, "delete memory %s", id)
	}
	return nil
}

// SetMemoryActive flips the soft-delete flag.
func (s *MetaStore) SetMemoryActive(id string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.Exec("UPDATE memories SET active = ? WHERE id = ?", boolToInt(active), id)
	if err != nil {
		return apperr.WrapStorage(err, "set memory active %s", id)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return apperr.NotFound("memory not found: %s", id)
	}
	return nil
}

// MarkMemoryUsed sets last_used_at to now and increments retrieval_count.
func (s *MetaStore) MarkMemoryUsed(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.Exec(
		"UPDATE memories SET last_used_at = ?, retrieval_count = retrieval_count + 1 WHERE id = ?",
		timeStr(time.Now()), id,
	)
	if err != nil {
		return apperr.WrapStorage(err, "mark memory used %s", id)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return apperr.NotFound("memory not found: %s", id)
	}
	return nil
}

// SaveAgent upserts an agent record.
func (s *MetaStore) SaveAgent(a *memrecord.AgentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO agents (id, name, model, context_limit, color, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			model = excluded.model,
			context_limit = excluded.context_limit,
			color = excluded.color
	`
	_, err := s.db.Exec(query, a.ID, a.Name, a.Model, a.ContextLimit, a.Color, timeStr(a.CreatedAt))
	if err != nil {
		return apperr.WrapStorage(err, "save agent %s", a.ID)
	}
	return nil
}

// GetAgent returns an agent record by id.
func (s *MetaStore) GetAgent(id string) (*memrecord.AgentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a := &memrecord.AgentRecord{}
	var createdAt string
	err := s.db.QueryRow("SELECT id, name, model, context_limit, color, created_at FROM agents WHERE id = ?", id).
		Scan(&a.ID, &a.Name, &a.Model, &a.ContextLimit, &a.Color, &createdAt)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("agent not found: %s", id)
	}
	if err != nil {
		return nil, apperr.WrapStorage(err, "get agent %s", id)
	}
	a.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, apperr.Storage("corrupt created_at for agent %s", id)
	}
	return a, nil
}

// ListAgents returns every known agent record.
func (s *MetaStore) ListAgents() ([]*memrecord.AgentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query("SELECT id, name, model, context_limit, color, created_at FROM agents ORDER BY created_at ASC")
	if err != nil {
		return nil, apperr.WrapStorage(err, "list agents")
	}
	defer rows.Close()

	agents := []*memrecord.AgentRecord{}
	for rows.Next() {
		a := &memrecord.AgentRecord{}
		var createdAt string
		if err := rows.Scan(&a.ID, &a.Name, &a.Model, &a.ContextLimit, &a.Color, &createdAt); err != nil {
			return nil, apperr.WrapStorage(err, "scan agent")
		}
		a.CreatedAt, err = parseTime(createdAt)
		if err != nil {
			return nil, apperr.Storage("corrupt created_at for agent %s", a.ID)
		}
		agents = append(agents, a)
	}
	return agents, rows.Err()
}

// SaveTopic upserts a topic record.
func (s *MetaStore) SaveTopic(t *memrecord.TopicRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var lastMessageAt sql.NullString
	if t.LastMessageAt != nil {
		lastMessageAt = sql.NullString{String: timeStr(*t.LastMessageAt), Valid: true}
	}

	query := `
		INSERT INTO topics (id, agent_id, name, created_at, last_message_at, message_count, token_count)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			last_message_at = excluded.last_message_at,
			message_count = excluded.message_count,
			token_count = excluded.token_count
	`
	_, err := s.db.Exec(query, t.ID, t.AgentID, t.Name, timeStr(t.CreatedAt), lastMessageAt, t.MessageCount, t.TokenCount)
	if err != nil {
		return apperr.WrapStorage(err, "save topic %s", t.ID)
	}
	return nil
}

// ListTopics returns every topic belonging to agentID, ordered by
// last_message_at descending with nulls last.
func (s *MetaStore) ListTopics(agentID string) ([]*memrecord.TopicRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		SELECT id, agent_id, name, created_at, last_message_at, message_count, token_count
		FROM topics
		WHERE agent_id = ?
		ORDER BY last_message_at IS NULL, last_message_at DESC
	`
	rows, err := s.db.Query(query, agentID)
	if err != nil {
		return nil, apperr.WrapStorage(err, "list topics for %s", agentID)
	}
	defer rows.Close()

	topics := []*memrecord.TopicRecord{}
	for rows.Next() {
		t := &memrecord.TopicRecord{}
		var createdAt string
		var lastMessageAt sql.NullString
		if err := rows.Scan(&t.ID, &t.AgentID, &t.Name, &createdAt, &lastMessageAt, &t.MessageCount, &t.TokenCount); err != nil {
			return nil, apperr.WrapStorage(err, "scan topic")
		}
		t.CreatedAt, err = parseTime(createdAt)
		if err != nil {
			return nil, apperr.Storage("corrupt created_at for topic %s", t.ID)
		}
		if lastMessageAt.Valid {
			lt, err := parseTime(lastMessageAt.String)
			if err != nil {
				return nil, apperr.Storage("corrupt last_message_at for topic %s", t.ID)
			}
			t.LastMessageAt = &lt
		}
		topics = append(topics, t)
	}
	return topics, rows.Err()
}
