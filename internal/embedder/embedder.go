// Package embedder turns text into vectors and counts tokens: the two
// services spec §4.4 groups under "Embedder".
package embedder

import (
	"bytes"
	"encoding/json"
	"hash/fnv"
	"io"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/CLIAIRMONITOR/memoryd/internal/apperr"
)

// Provider produces fixed-length embeddings for text. Implementations need
// not be safe for concurrent use; Embedder serialises calls on their
// behalf, matching the single-forward-pass-at-a-time model handle.
type Provider interface {
	Embed(text string) ([]float32, error)
	EmbedBatch(texts []string) ([][]float32, error)
	Dimensions() int
}

// Embedder wraps a Provider with the exclusive lock spec §4.4/§5 require
// ("the model is not safely shared across concurrent forward passes").
type Embedder struct {
	mu       sync.Mutex
	provider Provider
}

// New wraps provider in an Embedder.
func New(provider Provider) *Embedder {
	return &Embedder{provider: provider}
}

// Embed produces one embedding, serialised against concurrent callers.
func (e *Embedder) Embed(text string) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.provider.Embed(text)
}

// EmbedBatch produces one embedding per text, serialised against
// concurrent callers.
func (e *Embedder) EmbedBatch(texts []string) ([][]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.provider.EmbedBatch(texts)
}

// Dimensions returns the configured embedding width.
func (e *Embedder) Dimensions() int { return e.provider.Dimensions() }

// HTTPProvider calls an OpenAI-compatible /embeddings endpoint (LM Studio,
// Ollama, llama.cpp server — all loopback, never leaving the machine).
type HTTPProvider struct {
	baseURL    string
	model      string
	client     *http.Client
	dimensions int
}

// NewHTTPProvider builds a provider against baseURL (no trailing slash)
// for model, expecting dimensions-wide output.
func NewHTTPProvider(baseURL, model string, dimensions int) *HTTPProvider {
	return &HTTPProvider{
		baseURL:    baseURL,
		model:      model,
		client:     &http.Client{Timeout: 30 * time.Second},
		dimensions: dimensions,
	}
}

type embeddingRequest struct {
	Input string `json:"input"`
	Model string `json:"model"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

func (p *HTTPProvider) Embed(text string) ([]float32, error) {
	body, err := json.Marshal(embeddingRequest{Input: text, Model: p.model})
	if err != nil {
		return nil, apperr.WrapJSON(err, "marshal embedding request")
	}

	resp, err := p.client.Post(p.baseURL+"/embeddings", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, apperr.WrapEmbedding(err, "call embedding endpoint")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, apperr.Embedding("embedding endpoint returned %s: %s", resp.Status, string(respBody))
	}

	var embResp embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&embResp); err != nil {
		return nil, apperr.WrapEmbedding(err, "decode embedding response")
	}
	if len(embResp.Data) == 0 {
		return nil, apperr.Embedding("embedding endpoint returned no data")
	}

	vec := embResp.Data[0].Embedding
	if p.dimensions == 0 {
		p.dimensions = len(vec)
	}
	return vec, nil
}

func (p *HTTPProvider) EmbedBatch(texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := p.Embed(text)
		if err != nil {
			return nil, apperr.WrapEmbedding(err, "embed batch item %d", i)
		}
		results[i] = vec
	}
	return results, nil
}

func (p *HTTPProvider) Dimensions() int { return p.dimensions }

// DeterministicProvider is a zero-dependency fallback: a byte-3-gram hash
// embedding, optionally L2-normalized, used when no embedding_endpoint is
// configured. It makes the service (and its tests) runnable with no
// external model.
type DeterministicProvider struct {
	dimensions int
	normalize  bool
	seed       uint64
}

// NewDeterministicProvider builds a hash-based provider of the given
// dimension.
func NewDeterministicProvider(dimensions int, normalize bool, seed uint64) *DeterministicProvider {
	if dimensions <= 0 {
		dimensions = 384
	}
	return &DeterministicProvider{dimensions: dimensions, normalize: normalize, seed: seed}
}

func (d *DeterministicProvider) Embed(text string) ([]float32, error) {
	vec := make([]float32, d.dimensions)
	b := []byte(text)
	if len(b) == 0 {
		return vec, nil
	}
	if len(b) < 3 {
		addGram(d.seed, b, vec)
	} else {
		for i := 0; i <= len(b)-3; i++ {
			addGram(d.seed, b[i:i+3], vec)
		}
	}
	if d.normalize {
		var sum float64
		for _, x := range vec {
			sum += float64(x) * float64(x)
		}
		if sum > 0 {
			inv := float32(1.0 / math.Sqrt(sum))
			for i := range vec {
				vec[i] *= inv
			}
		}
	}
	return vec, nil
}

func (d *DeterministicProvider) EmbedBatch(texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		vec, _ := d.Embed(t)
		out[i] = vec
	}
	return out, nil
}

func (d *DeterministicProvider) Dimensions() int { return d.dimensions }

func addGram(seed uint64, gram []byte, v []float32) {
	h := fnv.New64a()
	if seed != 0 {
		var tmp [8]byte
		for i := 0; i < 8; i++ {
			tmp[i] = byte(seed >> (8 * i))
		}
		_, _ = h.Write(tmp[:])
	}
	_, _ = h.Write(gram)
	hv := h.Sum64()
	idx := int(hv % uint64(len(v)))
	w := float32(int32(hv>>32)) / float32(1<<31)
	v[idx] += w
}
