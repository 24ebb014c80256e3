package retrieval

// Budget tracks token usage against a context-window limit and reports a
// status band.
type Budget struct {
	Limit             uint32
	Used              uint32
	WarningThreshold  float32
	CriticalThreshold float32
}

// NewBudget builds a Budget starting at zero used tokens.
func NewBudget(limit uint32, warningThreshold, criticalThreshold float32) *Budget {
	return &Budget{Limit: limit, WarningThreshold: warningThreshold, CriticalThreshold: criticalThreshold}
}

// Add accounts tokens against the budget.
func (b *Budget) Add(tokens uint32) {
	b.Used += tokens
}

// Utilization returns the fraction of the limit consumed.
func (b *Budget) Utilization() float32 {
	if b.Limit == 0 {
		return 0
	}
	return float32(b.Used) / float32(b.Limit)
}

// IsWarning reports whether utilization has reached the warning threshold.
func (b *Budget) IsWarning() bool {
	return b.Utilization() >= b.WarningThreshold
}

// IsCritical reports whether utilization has reached the critical
// threshold.
func (b *Budget) IsCritical() bool {
	return b.Utilization() >= b.CriticalThreshold
}

// Remaining returns the tokens left before the limit, floored at zero.
func (b *Budget) Remaining() uint32 {
	if b.Used >= b.Limit {
		return 0
	}
	return b.Limit - b.Used
}

// Status evaluates band priority critical, then warning, then ok.
func (b *Budget) Status() string {
	switch {
	case b.IsCritical():
		return "critical"
	case b.IsWarning():
		return "warning"
	default:
		return "ok"
	}
}
