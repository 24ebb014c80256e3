package retrieval

import (
	"fmt"
	"strings"

	"github.com/CLIAIRMONITOR/memoryd/internal/memrecord"
)

// correctionIndicators are the lead-in markers that flag a user message as
// a likely correction of the assistant's prior turn. Restored from the
// original two-argument helper that spec.md's distillation dropped in
// favor of the single-argument suggestion helper below — the two serve
// different purposes.
var correctionIndicators = []string{
	"no,",
	"no that's",
	"that's wrong",
	"that's not",
	"actually,",
	"actually ",
	"incorrect",
	"not quite",
	"you're wrong",
	"wrong,",
	"nope,",
	"i meant",
	"what i meant",
	"let me clarify",
	"to clarify",
	"correction:",
	"i should have said",
	"remember that",
	"don't forget",
	"always ",
	"never ",
	"make sure to",
	"please remember",
}

// DetectCorrectionContext scans userMessage for a correction indicator and,
// on match, returns a context snippet pairing the correction with a
// truncated view of assistantMessage. This is a suggestion, not an
// automatic write — nil means no indicator matched.
func DetectCorrectionContext(userMessage, assistantMessage string) *string {
	userLower := strings.ToLower(userMessage)

	for _, indicator := range correctionIndicators {
		if strings.HasPrefix(userLower, indicator) || strings.Contains(userLower, " "+indicator) {
			truncated := assistantMessage
			if len(truncated) > 200 {
				truncated = truncated[:200]
			}
			snippet := fmt.Sprintf("User corrected: %q\nOriginal context: %q", userMessage, truncated)
			return &snippet
		}
	}
	return nil
}

// correctionPatterns maps a lead-in phrase to the memory type it suggests.
var correctionPatterns = []struct {
	pattern string
	memType memrecord.Type
}{
	{"always ", memrecord.TypePreference},
	{"never ", memrecord.TypeConstraint},
	{"remember ", memrecord.TypeFact},
	{"don't forget", memrecord.TypeFact},
	{"i prefer", memrecord.TypePreference},
	{"i like", memrecord.TypePreference},
	{"i don't like", memrecord.TypePreference},
	{"make sure", memrecord.TypeWorkflow},
	{"when you", memrecord.TypeWorkflow},
}

// SuggestMemoryFromCorrection scans userMessage for a known pattern and
// proposes a Memory to save, scoped to agentID. Returns nil if no pattern
// matches. Never fails — this is a suggestion, not a write.
func SuggestMemoryFromCorrection(userMessage, agentID string) *memrecord.Memory {
	userLower := strings.ToLower(userMessage)

	for _, p := range correctionPatterns {
		if strings.Contains(userLower, p.pattern) {
			return memrecord.ForAgent(agentID, p.memType, userMessage)
		}
	}
	return nil
}
