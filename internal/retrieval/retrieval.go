// Package retrieval orchestrates the embed-then-search-then-merge
// pipeline that produces a RetrievalContext for prompt injection, plus
// the stateless correction-detection helpers and context-budget
// accounting.
package retrieval

import (
	"sort"

	"github.com/CLIAIRMONITOR/memoryd/internal/apperr"
	"github.com/CLIAIRMONITOR/memoryd/internal/embedder"
	"github.com/CLIAIRMONITOR/memoryd/internal/message"
	"github.com/CLIAIRMONITOR/memoryd/internal/memrecord"
	"github.com/CLIAIRMONITOR/memoryd/internal/vectorindex"
)

// RetrievedMemory is one ranked memory hit returned in a RetrievalContext.
type RetrievedMemory struct {
	ID         string          `json:"id"`
	Content    string          `json:"content"`
	Scope      memrecord.Scope `json:"scope"`
	MemoryType memrecord.Type  `json:"memory_type"`
	Score      float32         `json:"score"`
}

// Context is the ranked memories plus recent conversation tail, ready for
// prompt injection.
type Context struct {
	Memories        []RetrievedMemory  `json:"memories"`
	RecentMessages  []*message.Message `json:"recent_messages"`
	TotalTokens     uint32             `json:"total_tokens"`
}

// Empty returns a Context with no memories and no recent messages.
func Empty() *Context {
	return &Context{Memories: []RetrievedMemory{}, RecentMessages: []*message.Message{}}
}

// IsEmpty reports whether c carries neither memories nor recent messages.
func (c *Context) IsEmpty() bool {
	return len(c.Memories) == 0 && len(c.RecentMessages) == 0
}

// FormatForPrompt renders two optional sections, each omitted if empty:
// "## Relevant Memories" with "- [<type>] <content>" bullets, and
// "## Recent Conversation Context" with "<role>: <content>" lines.
func (c *Context) FormatForPrompt() string {
	var out string

	if len(c.Memories) > 0 {
		out += "## Relevant Memories\n"
		for _, m := range c.Memories {
			out += "- [" + string(m.MemoryType) + "] " + m.Content + "\n"
		}
	}

	if len(c.RecentMessages) > 0 {
		out += "\n## Recent Conversation Context\n"
		for _, m := range c.RecentMessages {
			out += string(m.Role) + ": " + m.Content + "\n"
		}
	}

	return out
}

// VectorSearcher is the subset of vectorindex.VectorIndex Retrieve needs.
type VectorSearcher interface {
	Search(query []float32, limit int, minScore float32, filter vectorindex.SearchFilter) ([]vectorindex.SearchHit, error)
}

// LogReader is the subset of applog.AppendLog Retrieve needs.
type LogReader interface {
	ReadLastN(agentID, topicID string, n int) ([]*message.Message, error)
}

// Engine runs the retrieval algorithm of spec §4.5.
type Engine struct {
	Embedder            *embedder.Embedder
	Vector               VectorSearcher
	Log                  LogReader
	MaxRetrievalResults  int
	MinSimilarityScore   float32
}

// NewEngine builds a retrieval Engine.
func NewEngine(emb *embedder.Embedder, vec VectorSearcher, log LogReader, maxResults int, minScore float32) *Engine {
	return &Engine{Embedder: emb, Vector: vec, Log: log, MaxRetrievalResults: maxResults, MinSimilarityScore: minScore}
}

// Retrieve runs the seven-step algorithm: embed the query, search global
// scope, search agent scope if agentID is set, sort and truncate, read
// the recent tail if both agentID and topicID are set, and sum tokens.
func (e *Engine) Retrieve(query string, agentID, topicID *string, maxRecentMessages int) (*Context, error) {
	queryVector, err := e.Embedder.Embed(query)
	if err != nil {
		return nil, apperr.WrapEmbedding(err, "embed retrieval query")
	}

	limit := e.MaxRetrievalResults / 2

	globalScope := memrecord.ScopeGlobal
	globalHits, err := e.Vector.Search(queryVector, limit, e.MinSimilarityScore, vectorindex.SearchFilter{Scope: &globalScope})
	if err != nil {
		return nil, err
	}
	hits := append([]vectorindex.SearchHit{}, globalHits...)

	if agentID != nil {
		agentScope := memrecord.ScopeAgent
		agentHits, err := e.Vector.Search(queryVector, limit, e.MinSimilarityScore, vectorindex.SearchFilter{Scope: &agentScope, AgentID: agentID})
		if err != nil {
			return nil, err
		}
		hits = append(hits, agentHits...)
	}

	sort.SliceStable(hits, func(i, j int) bool {
		a, b := hits[i].Score, hits[j].Score
		// Treat NaN as equal to anything: fall through to the stable
		// sort's insertion-order tie-break by reporting "not less".
		if a != a || b != b {
			return false
		}
		return a > b
	})
	if len(hits) > e.MaxRetrievalResults {
		hits = hits[:e.MaxRetrievalResults]
	}

	memories := make([]RetrievedMemory, len(hits))
	var memoryTokens uint32
	for i, h := range hits {
		memories[i] = RetrievedMemory{ID: h.ID, Content: h.Content, Scope: h.Scope, MemoryType: h.MemoryType, Score: h.Score}
		memoryTokens += embedder.EstimateTokens(h.Content)
	}

	var recent []*message.Message
	if agentID != nil && topicID != nil {
		recent, err = e.Log.ReadLastN(*agentID, *topicID, maxRecentMessages)
		if err != nil {
			return nil, err
		}
	}
	if recent == nil {
		recent = []*message.Message{}
	}

	var messageTokens uint32
	for _, m := range recent {
		messageTokens += m.Tokens
	}

	return &Context{
		Memories:       memories,
		RecentMessages: recent,
		TotalTokens:    memoryTokens + messageTokens,
	}, nil
}
