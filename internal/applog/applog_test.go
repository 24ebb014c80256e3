package applog

import (
	"testing"

	"github.com/CLIAIRMONITOR/memoryd/internal/message"
)

func setupLog(t *testing.T) *AppendLog {
	t.Helper()
	l, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return l
}

func TestAppendAndReadAllRoundTrip(t *testing.T) {
	l := setupLog(t)

	msg := message.New("agent-1", "topic-1", message.RoleUser, "hello there")
	msg.Tokens = 3
	if _, err := l.Append(msg); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	all, err := l.ReadAll("agent-1", "topic-1")
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected 1 message, got %d", len(all))
	}
	if all[0].Content != msg.Content || all[0].ID != msg.ID {
		t.Errorf("round-tripped message does not match: got %+v", all[0])
	}
}

func TestReadAllMissingLogReturnsEmpty(t *testing.T) {
	l := setupLog(t)

	all, err := l.ReadAll("nobody", "nothing")
	if err != nil {
		t.Fatalf("ReadAll on missing log should not error: %v", err)
	}
	if len(all) != 0 {
		t.Errorf("expected empty slice, got %d messages", len(all))
	}
}

func TestAppendOrderPreserved(t *testing.T) {
	l := setupLog(t)

	for i := 0; i < 5; i++ {
		msg := message.New("agent-1", "topic-1", message.RoleUser, string(rune('a'+i)))
		if _, err := l.Append(msg); err != nil {
			t.Fatalf("Append %d failed: %v", i, err)
		}
	}

	all, err := l.ReadAll("agent-1", "topic-1")
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	for i, m := range all {
		want := string(rune('a' + i))
		if m.Content != want {
			t.Errorf("message %d: expected content %q, got %q", i, want, m.Content)
		}
	}
}

func TestReadLastN(t *testing.T) {
	l := setupLog(t)

	for i := 0; i < 5; i++ {
		msg := message.New("agent-1", "topic-1", message.RoleUser, string(rune('a'+i)))
		if _, err := l.Append(msg); err != nil {
			t.Fatalf("Append %d failed: %v", i, err)
		}
	}

	last, err := l.ReadLastN("agent-1", "topic-1", 2)
	if err != nil {
		t.Fatalf("ReadLastN failed: %v", err)
	}
	if len(last) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(last))
	}
	if last[0].Content != "d" || last[1].Content != "e" {
		t.Errorf("expected tail [d e], got [%s %s]", last[0].Content, last[1].Content)
	}
}

func TestReadLastNGreaterThanCountReturnsAll(t *testing.T) {
	l := setupLog(t)

	msg := message.New("agent-1", "topic-1", message.RoleUser, "only one")
	if _, err := l.Append(msg); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	last, err := l.ReadLastN("agent-1", "topic-1", 10)
	if err != nil {
		t.Fatalf("ReadLastN failed: %v", err)
	}
	if len(last) != 1 {
		t.Errorf("expected 1 message, got %d", len(last))
	}
}

func TestCountMatchesReadAll(t *testing.T) {
	l := setupLog(t)

	for i := 0; i < 3; i++ {
		msg := message.New("agent-1", "topic-1", message.RoleAssistant, "x")
		if _, err := l.Append(msg); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	count, err := l.Count("agent-1", "topic-1")
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	all, err := l.ReadAll("agent-1", "topic-1")
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if count != len(all) {
		t.Errorf("Count() = %d, len(ReadAll()) = %d", count, len(all))
	}
}

func TestTotalTokensSumsMessages(t *testing.T) {
	l := setupLog(t)

	tokenCounts := []uint32{5, 10, 7}
	for _, tc := range tokenCounts {
		msg := message.New("agent-1", "topic-1", message.RoleUser, "x")
		msg.Tokens = tc
		if _, err := l.Append(msg); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	total, err := l.TotalTokens("agent-1", "topic-1")
	if err != nil {
		t.Fatalf("TotalTokens failed: %v", err)
	}
	if total != 22 {
		t.Errorf("expected total 22, got %d", total)
	}
}

func TestListAgentsAndTopics(t *testing.T) {
	l := setupLog(t)

	l.Append(message.New("agent-a", "topic-1", message.RoleUser, "x"))
	l.Append(message.New("agent-a", "topic-2", message.RoleUser, "x"))
	l.Append(message.New("agent-b", "topic-1", message.RoleUser, "x"))

	agents, err := l.ListAgents()
	if err != nil {
		t.Fatalf("ListAgents failed: %v", err)
	}
	if len(agents) != 2 {
		t.Fatalf("expected 2 agents, got %d", len(agents))
	}

	topics, err := l.ListTopics("agent-a")
	if err != nil {
		t.Fatalf("ListTopics failed: %v", err)
	}
	if len(topics) != 2 {
		t.Errorf("expected 2 topics for agent-a, got %d", len(topics))
	}
}

func TestDeleteTopicIsIdempotent(t *testing.T) {
	l := setupLog(t)

	l.Append(message.New("agent-1", "topic-1", message.RoleUser, "x"))

	if err := l.DeleteTopic("agent-1", "topic-1"); err != nil {
		t.Fatalf("DeleteTopic failed: %v", err)
	}
	if err := l.DeleteTopic("agent-1", "topic-1"); err != nil {
		t.Errorf("second DeleteTopic should be idempotent, got error: %v", err)
	}
}

func TestExportImportTopicRoundTrip(t *testing.T) {
	l := setupLog(t)

	l.Append(message.New("agent-1", "topic-1", message.RoleUser, "first"))
	l.Append(message.New("agent-1", "topic-1", message.RoleAssistant, "second"))

	exportPath := t.TempDir() + "/export.json"
	if err := l.ExportTopic("agent-1", "topic-1", exportPath); err != nil {
		t.Fatalf("ExportTopic failed: %v", err)
	}

	n, err := l.ImportTopic("agent-2", "topic-1", exportPath)
	if err != nil {
		t.Fatalf("ImportTopic failed: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 imported messages, got %d", n)
	}

	imported, err := l.ReadAll("agent-2", "topic-1")
	if err != nil {
		t.Fatalf("ReadAll after import failed: %v", err)
	}
	if len(imported) != 2 || imported[0].Content != "first" || imported[1].Content != "second" {
		t.Errorf("imported messages do not match: %+v", imported)
	}
}
