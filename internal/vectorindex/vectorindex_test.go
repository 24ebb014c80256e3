package vectorindex

import (
	"path/filepath"
	"testing"

	"github.com/CLIAIRMONITOR/memoryd/internal/apperr"
	"github.com/CLIAIRMONITOR/memoryd/internal/memrecord"
)

func setupIndex(t *testing.T, dims int) *VectorIndex {
	t.Helper()
	v, err := Open(filepath.Join(t.TempDir(), "vectors.db"), dims)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { v.Close() })
	return v
}

func memWithEmbedding(content string, embedding []float32) *memrecord.Memory {
	m := memrecord.Global(memrecord.TypeFact, content)
	m.WithEmbedding(embedding)
	return m
}

func TestUpsertRejectsDimensionMismatch(t *testing.T) {
	v := setupIndex(t, 4)

	m := memWithEmbedding("bad vector", []float32{1, 2, 3})
	err := v.Upsert(m)
	if apperr.KindOf(err) != apperr.KindVectorDB {
		t.Errorf("expected vector-db kind error, got %v", err)
	}
}

func TestSearchRejectsQueryDimensionMismatch(t *testing.T) {
	v := setupIndex(t, 4)

	_, err := v.Search([]float32{1, 2}, 5, 0, SearchFilter{})
	if apperr.KindOf(err) != apperr.KindVectorDB {
		t.Errorf("expected vector-db kind error, got %v", err)
	}
}

func TestSearchOrdersByAscendingDistance(t *testing.T) {
	v := setupIndex(t, 2)

	near := memWithEmbedding("near", []float32{1, 0})
	far := memWithEmbedding("far", []float32{10, 0})
	exact := memWithEmbedding("exact", []float32{0, 0})

	for _, m := range []*memrecord.Memory{far, near, exact} {
		if err := v.Upsert(m); err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}
	}

	hits, err := v.Search([]float32{0, 0}, 10, 0, SearchFilter{})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(hits) != 3 {
		t.Fatalf("expected 3 hits, got %d", len(hits))
	}
	if hits[0].ID != exact.ID || hits[1].ID != near.ID || hits[2].ID != far.ID {
		t.Errorf("expected order [exact near far], got [%s %s %s]", hits[0].ID, hits[1].ID, hits[2].ID)
	}
	if hits[0].Score < hits[1].Score || hits[1].Score < hits[2].Score {
		t.Errorf("scores should be descending: %v %v %v", hits[0].Score, hits[1].Score, hits[2].Score)
	}
}

func TestSearchRespectsMinScoreAndLimit(t *testing.T) {
	v := setupIndex(t, 2)

	for i := 0; i < 5; i++ {
		m := memWithEmbedding("m", []float32{float32(i) * 10, 0})
		if err := v.Upsert(m); err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}
	}

	hits, err := v.Search([]float32{0, 0}, 2, 0, SearchFilter{})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(hits) != 2 {
		t.Errorf("expected limit to truncate to 2, got %d", len(hits))
	}

	strict, err := v.Search([]float32{0, 0}, 10, 0.9, SearchFilter{})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	for _, h := range strict {
		if h.Score < 0.9 {
			t.Errorf("hit %s has score %f below min 0.9", h.ID, h.Score)
		}
	}
}

func TestSearchFiltersByScopeAndAgent(t *testing.T) {
	v := setupIndex(t, 2)

	agentID := "agent-1"
	global := memWithEmbedding("global", []float32{0, 0})
	agentMem := memrecord.ForAgent(agentID, memrecord.TypeFact, "agent scoped")
	agentMem.WithEmbedding([]float32{0, 0})

	if err := v.Upsert(global); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if err := v.Upsert(agentMem); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	scope := memrecord.ScopeAgent
	hits, err := v.Search([]float32{0, 0}, 10, 0, SearchFilter{Scope: &scope, AgentID: &agentID})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(hits) != 1 || hits[0].ID != agentMem.ID {
		t.Errorf("expected only the agent-scoped memory, got %+v", hits)
	}
}

func TestUpsertReplacesExistingID(t *testing.T) {
	v := setupIndex(t, 2)

	m := memWithEmbedding("v1", []float32{1, 1})
	if err := v.Upsert(m); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	m.Content = "v2"
	m.WithEmbedding([]float32{2, 2})
	if err := v.Upsert(m); err != nil {
		t.Fatalf("Upsert (replace) failed: %v", err)
	}

	hits, err := v.Search([]float32{2, 2}, 10, 0, SearchFilter{})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected exactly 1 row after replace, got %d", len(hits))
	}
	if hits[0].Content != "v2" {
		t.Errorf("expected replaced content, got %q", hits[0].Content)
	}
}

func TestPersonalScopeFoldsIntoGlobalSearch(t *testing.T) {
	v := setupIndex(t, 2)

	personal := memrecord.Global(memrecord.TypeFact, "personal-scoped fact")
	personal.Scope = memrecord.ScopePersonal
	personal.WithEmbedding([]float32{1, 1})
	if err := v.Upsert(personal); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	globalScope := memrecord.ScopeGlobal
	hits, err := v.Search([]float32{1, 1}, 10, 0, SearchFilter{Scope: &globalScope})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(hits) != 1 || hits[0].ID != personal.ID {
		t.Errorf("expected a personal-scoped memory to surface from a global-scope search, got %+v", hits)
	}
}

func TestDeleteRemovesRow(t *testing.T) {
	v := setupIndex(t, 2)

	m := memWithEmbedding("to delete", []float32{1, 1})
	if err := v.Upsert(m); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if err := v.Delete(m.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	hits, err := v.Search([]float32{1, 1}, 10, 0, SearchFilter{})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("expected 0 hits after delete, got %d", len(hits))
	}
}
