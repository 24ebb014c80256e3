package retrieval

import (
	"testing"

	"github.com/CLIAIRMONITOR/memoryd/internal/memrecord"
)

func TestDetectCorrectionContextMatchesIndicator(t *testing.T) {
	snippet := DetectCorrectionContext("No, that's not right, it's Tuesday.", "I said it's Monday.")
	if snippet == nil {
		t.Fatal("expected a correction snippet to be detected")
	}
}

func TestDetectCorrectionContextNoIndicatorReturnsNil(t *testing.T) {
	snippet := DetectCorrectionContext("Thanks, that's helpful!", "Glad I could help.")
	if snippet != nil {
		t.Errorf("expected nil, got %q", *snippet)
	}
}

func TestDetectCorrectionContextTruncatesLongAssistantMessage(t *testing.T) {
	long := ""
	for i := 0; i < 300; i++ {
		long += "x"
	}
	snippet := DetectCorrectionContext("actually, that's wrong", long)
	if snippet == nil {
		t.Fatal("expected a correction snippet")
	}
	if len(*snippet) > len(long)+100 {
		t.Errorf("expected the assistant message to be truncated in the snippet")
	}
}

func TestSuggestMemoryFromCorrectionPreference(t *testing.T) {
	m := SuggestMemoryFromCorrection("I always want responses in Go", "agent-1")
	if m == nil {
		t.Fatal("expected a suggested memory")
	}
	if m.MemoryType != memrecord.TypePreference {
		t.Errorf("expected preference type, got %s", m.MemoryType)
	}
	if m.Scope != memrecord.ScopeAgent || m.AgentID == nil || *m.AgentID != "agent-1" {
		t.Errorf("expected agent-scoped memory for agent-1, got %+v", m)
	}
}

func TestSuggestMemoryFromCorrectionConstraint(t *testing.T) {
	m := SuggestMemoryFromCorrection("never use tabs for indentation", "agent-1")
	if m == nil {
		t.Fatal("expected a suggested memory")
	}
	if m.MemoryType != memrecord.TypeConstraint {
		t.Errorf("expected constraint type, got %s", m.MemoryType)
	}
}

func TestSuggestMemoryFromCorrectionNoMatchReturnsNil(t *testing.T) {
	m := SuggestMemoryFromCorrection("hello there, how are you", "agent-1")
	if m != nil {
		t.Errorf("expected nil, got %+v", m)
	}
}
