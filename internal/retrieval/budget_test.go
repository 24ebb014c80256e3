package retrieval

import "testing"

func TestBudgetStatusBanding(t *testing.T) {
	// Mirrors the worked example: limit 100, warning at 0.8, critical at 0.95.
	b := NewBudget(100, 0.8, 0.95)

	b.Add(70)
	if b.Status() != "ok" {
		t.Errorf("at 70%% expected ok, got %s", b.Status())
	}

	b.Add(15) // 85 total
	if b.Status() != "warning" {
		t.Errorf("at 85%% expected warning, got %s", b.Status())
	}

	b.Add(12) // 97 total
	if b.Status() != "critical" {
		t.Errorf("at 97%% expected critical, got %s", b.Status())
	}
}

func TestBudgetRemainingFloorsAtZero(t *testing.T) {
	b := NewBudget(100, 0.8, 0.95)
	b.Add(150)

	if b.Remaining() != 0 {
		t.Errorf("expected remaining to floor at 0, got %d", b.Remaining())
	}
}

func TestBudgetUtilizationZeroLimit(t *testing.T) {
	b := NewBudget(0, 0.8, 0.95)
	b.Add(10)

	if b.Utilization() != 0 {
		t.Errorf("expected 0 utilization with 0 limit, got %f", b.Utilization())
	}
}

func TestBudgetUtilizationFraction(t *testing.T) {
	b := NewBudget(200, 0.8, 0.95)
	b.Add(50)

	if got := b.Utilization(); got != 0.25 {
		t.Errorf("expected utilization 0.25, got %f", got)
	}
}
