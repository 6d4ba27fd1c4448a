// Package embedtest provides a deterministic contracts.Embedder for tests.
package embedtest

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"sync"
)

// Embedder hashes lower-cased words into a fixed number of buckets and
// L2-normalizes the result. Identical texts map to identical vectors and
// texts sharing no words are nearly orthogonal.
//
// Fixed pins a text to a given vector, for tests that need exact distances.
type Embedder struct {
	Dims  int
	Fixed map[string][]float64

	mu    sync.Mutex
	calls int
}

// New returns a hashing embedder of 64 dimensions.
func New() *Embedder { return &Embedder{Dims: 64} }

func (e *Embedder) Name() string    { return "embedtest" }
func (e *Embedder) Dimensions() int { return e.Dims }

// Calls returns the number of Embed invocations.
func (e *Embedder) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

// Embed returns one vector per text.
func (e *Embedder) Embed(_ context.Context, texts []string) ([][]float64, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()

	out := make([][]float64, len(texts))
	for i, t := range texts {
		if v, ok := e.Fixed[t]; ok {
			out[i] = append([]float64(nil), v...)
			continue
		}
		out[i] = e.hash(t)
	}
	return out, nil
}

func (e *Embedder) hash(text string) []float64 {
	v := make([]float64, e.Dims)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		h.Write([]byte(w))
		v[h.Sum32()%uint32(e.Dims)] += 1
	}
	var norm float64
	for _, x := range v {
		norm += x * x
	}
	if norm == 0 {
		v[0] = 1
		return v
	}
	norm = math.Sqrt(norm)
	for i := range v {
		v[i] /= norm
	}
	return v
}
