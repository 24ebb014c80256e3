package embedder

import (
	tiktoken "github.com/pkoukk/tiktoken-go"
)

// encodingName is the reference BPE vocabulary used for all token
// accounting, per spec §4.4 — GPT-family cl100k_base.
const encodingName = "cl100k_base"

// TokenCounter counts tokens for a chosen reference model. It is safe for
// concurrent use: the underlying tiktoken encoder is read-only after load.
type TokenCounter struct {
	enc *tiktoken.Tiktoken
}

// NewTokenCounter loads the cl100k_base BPE encoding. If the encoding
// cannot be loaded (e.g. no network access to fetch its vocabulary file
// on first use), the returned TokenCounter falls back to the static
// length estimator for every call — loading never fails outright, matching
// spec §7's "correction detection and memory suggestion never fail"
// posture extended to token counting, a best-effort accounting service.
func NewTokenCounter() *TokenCounter {
	enc, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		return &TokenCounter{}
	}
	return &TokenCounter{enc: enc}
}

// Count returns the BPE token count of text, or the len(text)/4 static
// estimate if the tokenizer failed to load.
func (c *TokenCounter) Count(text string) uint32 {
	if c.enc == nil {
		return EstimateTokens(text)
	}
	return uint32(len(c.enc.Encode(text, nil, nil)))
}

// EstimateTokens is the coarse len/4 static fallback for paths that must
// not pay the cost of loading (or running) the real tokenizer — spec
// §4.5 step 6 uses this for the memory-content contribution to
// total_tokens.
func EstimateTokens(text string) uint32 {
	return uint32(len(text) / 4)
}
