package retrieval

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

// Embedder turns texts into vectors. The provider package supplies one.
type Embedder func(ctx context.Context, texts []string) ([][]float32, error)

// VectorIndex is the vector evidence source, plus the write side used
// by ingestion.
type VectorIndex interface {
	Source
	Upsert(ctx context.Context, contents, sources []string) (int, error)
	Count() int
	Clear()
	// Documents returns every indexed document, for lexical scoring
	// over the same corpus.
	Documents() []Document
}

type vecEntry struct {
	content string
	source  string
	vec     []float32
}

// MemoryIndex is an in-memory vector index over provider embeddings,
// suitable for small corpora. Reads are safe for concurrent use.
type MemoryIndex struct {
	embed Embedder

	mu      sync.RWMutex
	entries []vecEntry
	byHash  map[string]int
}

func NewMemoryIndex(embed Embedder) *MemoryIndex {
	return &MemoryIndex{embed: embed, byHash: make(map[string]int)}
}

func (m *MemoryIndex) Upsert(ctx context.Context, contents, sources []string) (int, error) {
	if len(contents) != len(sources) {
		return 0, fmt.Errorf("contents and sources length mismatch: %d vs %d", len(contents), len(sources))
	}
	var newContents, newSources []string
	m.mu.RLock()
	for i, c := range contents {
		if _, ok := m.byHash[Fingerprint(c)]; !ok {
			newContents = append(newContents, c)
			newSources = append(newSources, sources[i])
		}
	}
	m.mu.RUnlock()
	if len(newContents) == 0 {
		return 0, nil
	}

	vecs, err := m.embed(ctx, newContents)
	if err != nil {
		return 0, fmt.Errorf("embedding %d chunks: %w", len(newContents), err)
	}
	if len(vecs) != len(newContents) {
		return 0, fmt.Errorf("embedder returned %d vectors for %d texts", len(vecs), len(newContents))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	added := 0
	for i, c := range newContents {
		fp := Fingerprint(c)
		if _, ok := m.byHash[fp]; ok {
			continue
		}
		m.byHash[fp] = len(m.entries)
		m.entries = append(m.entries, vecEntry{content: c, source: newSources[i], vec: vecs[i]})
		added++
	}
	return added, nil
}

func (m *MemoryIndex) Search(ctx context.Context, query string, k int) ([]Document, error) {
	vecs, err := m.embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	if len(vecs) == 0 {
		return nil, fmt.Errorf("embedder returned no vector for query")
	}
	q := vecs[0]

	m.mu.RLock()
	defer m.mu.RUnlock()
	type scored struct {
		idx   int
		score float64
	}
	scoreds := make([]scored, 0, len(m.entries))
	for i, e := range m.entries {
		scoreds = append(scoreds, scored{idx: i, score: cosine(q, e.vec)})
	}
	sort.SliceStable(scoreds, func(i, j int) bool { return scoreds[i].score > scoreds[j].score })

	if k > len(scoreds) {
		k = len(scoreds)
	}
	out := make([]Document, 0, k)
	for _, s := range scoreds[:k] {
		e := m.entries[s.idx]
		out = append(out, Document{Content: e.content, Source: e.source, Score: s.score})
	}
	return out, nil
}

func (m *MemoryIndex) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func (m *MemoryIndex) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = nil
	m.byHash = make(map[string]int)
}

func (m *MemoryIndex) Documents() []Document {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Document, len(m.entries))
	for i, e := range m.entries {
		out[i] = Document{Content: e.content, Source: e.source}
	}
	return out
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
