// Package vectorindex is the local, fixed-dimension embedding store: one
// SQLite-backed table scanned brute-force in Go, with a scalar-column
// pre-filter pushed down to SQL before the distance pass runs.
package vectorindex

import (
	"database/sql"
	_ "embed"
	"encoding/binary"
	"math"
	"sort"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/CLIAIRMONITOR/memoryd/internal/apperr"
	"github.com/CLIAIRMONITOR/memoryd/internal/memrecord"
)

//go:embed schema.sql
var schema string

// VectorIndex stores vectors plus the scalar columns needed to pre-filter
// a search before the brute-force distance scan.
type VectorIndex struct {
	mu         sync.Mutex
	db         *sql.DB
	dimensions int
}

// Open creates or opens a VectorIndex at path, fixed at dimensions-wide
// vectors.
func Open(path string, dimensions int) (*VectorIndex, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, apperr.WrapVectorDB(err, "open vector index: %s", path)
	}

	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, apperr.WrapVectorDB(err, "set pragma %q", p)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, apperr.WrapVectorDB(err, "initialize vector index schema")
	}

	return &VectorIndex{db: db, dimensions: dimensions}, nil
}

// Close closes the underlying database connection.
func (v *VectorIndex) Close() error {
	return v.db.Close()
}

// Dimensions returns the configured embedding width.
func (v *VectorIndex) Dimensions() int { return v.dimensions }

func encodeVector(vec []float32) []byte {
	buf := make([]byte, len(vec)*4)
	for i, f := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(blob []byte) []float32 {
	if len(blob)%4 != 0 {
		return nil
	}
	vec := make([]float32, len(blob)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return vec
}

// l2Distance computes the Euclidean distance between two equal-length
// vectors.
func l2Distance(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

// normalizeScope folds "personal" into "global" for predicate purposes
// only: spec treats personal-scoped memories as shaped identically to
// global ones, so they must surface from the same global-scope search
// rather than needing a dedicated predicate. MetaStore keeps the literal
// scope string; only this index's predicate column is folded.
func normalizeScope(s memrecord.Scope) memrecord.Scope {
	if s == memrecord.ScopePersonal {
		return memrecord.ScopeGlobal
	}
	return s
}

// Upsert stores m's embedding and scalar columns, replacing any existing
// row with the same id. Requires an embedding of exactly the configured
// dimension.
func (v *VectorIndex) Upsert(m *memrecord.Memory) error {
	if len(m.Embedding) != v.dimensions {
		return apperr.VectorDB("embedding has %d dimensions, want %d", len(m.Embedding), v.dimensions)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if _, err := v.db.Exec("DELETE FROM vectors WHERE id = ?", m.ID); err != nil {
		return apperr.WrapVectorDB(err, "upsert (delete phase) %s", m.ID)
	}

	query := `
		INSERT INTO vectors (id, content, scope, memory_type, agent_id, topic_id, vector)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := v.db.Exec(query, m.ID, m.Content, string(normalizeScope(m.Scope)), string(m.MemoryType), m.AgentID, m.TopicID, encodeVector(m.Embedding))
	if err != nil {
		return apperr.WrapVectorDB(err, "upsert (insert phase) %s", m.ID)
	}
	return nil
}

// Delete removes any rows with the given id.
func (v *VectorIndex) Delete(id string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if _, err := v.db.Exec("DELETE FROM vectors WHERE id = ?", id); err != nil {
		return apperr.WrapVectorDB(err, "delete %s", id)
	}
	return nil
}

// SearchHit is one ranked result from Search.
type SearchHit struct {
	ID         string
	Content    string
	Scope      memrecord.Scope
	MemoryType memrecord.Type
	Score      float32
}

// SearchFilter is the optional scalar predicate applied before the
// distance scan.
type SearchFilter struct {
	Scope   *memrecord.Scope
	AgentID *string
}

// Search returns the nearest neighbours of query by ascending L2 distance
// (descending score), after converting distance d to score s = 1/(1+d)
// and dropping hits below minScore.
func (v *VectorIndex) Search(query []float32, limit int, minScore float32, filter SearchFilter) ([]SearchHit, error) {
	if len(query) != v.dimensions {
		return nil, apperr.VectorDB("query embedding has %d dimensions, want %d", len(query), v.dimensions)
	}

	v.mu.Lock()
	sqlQuery := "SELECT id, content, scope, memory_type, agent_id, topic_id, vector FROM vectors WHERE 1=1"
	var args []any
	if filter.Scope != nil {
		sqlQuery += " AND scope = ?"
		args = append(args, string(*filter.Scope))
	}
	if filter.AgentID != nil {
		sqlQuery += " AND agent_id = ?"
		args = append(args, *filter.AgentID)
	}

	rows, err := v.db.Query(sqlQuery, args...)
	if err != nil {
		v.mu.Unlock()
		return nil, apperr.WrapVectorDB(err, "search query")
	}

	type scoredRow struct {
		hit  SearchHit
		dist float64
	}
	var scored []scoredRow

	for rows.Next() {
		var id, content, scope, memType string
		var agentID, topicID sql.NullString
		var blob []byte
		if err := rows.Scan(&id, &content, &scope, &memType, &agentID, &topicID, &blob); err != nil {
			rows.Close()
			v.mu.Unlock()
			return nil, apperr.WrapVectorDB(err, "scan search row")
		}
		vec := decodeVector(blob)
		if vec == nil {
			continue
		}
		d := l2Distance(query, vec)
		scored = append(scored, scoredRow{
			hit: SearchHit{
				ID:         id,
				Content:    content,
				Scope:      memrecord.Scope(scope),
				MemoryType: memrecord.Type(memType),
				Score:      float32(1.0 / (1.0 + d)),
			},
			dist: d,
		})
	}
	rowsErr := rows.Err()
	rows.Close()
	v.mu.Unlock()
	if rowsErr != nil {
		return nil, apperr.WrapVectorDB(rowsErr, "iterate search rows")
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].dist < scored[j].dist
	})

	hits := []SearchHit{}
	for _, sr := range scored {
		if sr.hit.Score < minScore {
			continue
		}
		hits = append(hits, sr.hit)
		if len(hits) >= limit {
			break
		}
	}
	return hits, nil
}
