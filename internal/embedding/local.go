package embedding

import (
	"context"
	"errors"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// LocalEmbedder is a deterministic in-process embedder for local/dev use.
// Each token is hashed into a handful of vector positions and the sum is
// unit-normalized, so identical texts map to identical vectors and texts
// sharing tokens score higher under cosine similarity. It is not a semantic
// model; it exists so the full retrieval path runs without a network
// dependency.
type LocalEmbedder struct {
	dim int
}

func NewLocalEmbedder(dim int) *LocalEmbedder {
	if dim <= 0 {
		dim = 768
	}
	return &LocalEmbedder{dim: dim}
}

func (e *LocalEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	tokens := tokenize(text)
	if len(tokens) == 0 {
		return nil, errors.New("cannot embed empty text")
	}

	vec := make([]float32, e.dim)
	for _, tok := range tokens {
		h := fnv.New64a()
		_, _ = h.Write([]byte(tok))
		seed := h.Sum64()
		// Spread each token across a few positions with alternating sign.
		for i := 0; i < 4; i++ {
			idx := int((seed >> (i * 13)) % uint64(e.dim))
			if (seed>>(i*7))&1 == 0 {
				vec[idx] += 1
			} else {
				vec[idx] -= 1
			}
		}
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		return nil, errors.New("degenerate embedding")
	}
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec, nil
}

func (e *LocalEmbedder) Dimension() int { return e.dim }

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}
