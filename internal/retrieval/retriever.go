package retrieval

import (
	"context"
	"log"
	"sort"
	"sync"

	"github.com/questor-ai/questor/config"
	"github.com/questor-ai/questor/internal/telemetry"
)

// HybridRetriever fans a set of queries out over the vector and
// lexical sources, deduplicates by content fingerprint, fuses the two
// ranked lists, and optionally reranks the head of the fused list.
//
// A process holds a single HybridRetriever, constructed once at
// startup and passed by reference; it is stateless per call apart from
// the indexes it reads, so concurrent sessions can share it.
type HybridRetriever struct {
	vector   Source
	lexical  Source
	reranker Reranker // nil disables reranking

	topK        int
	topN        int
	weight      float64
	parallelism int
	logger      *log.Logger
}

func NewHybridRetriever(vector, lexical Source, reranker Reranker, cfg config.RetrievalConfig) *HybridRetriever {
	topK := cfg.TopK
	if topK <= 0 {
		topK = 20
	}
	topN := cfg.TopN
	if topN <= 0 {
		topN = 5
	}
	weight := cfg.VectorWeight
	if weight < 0 || weight > 1 {
		weight = 0.6
	}
	parallelism := cfg.Parallelism
	if parallelism <= 0 {
		parallelism = 5
	}
	return &HybridRetriever{
		vector:      vector,
		lexical:     lexical,
		reranker:    reranker,
		topK:        topK,
		topN:        topN,
		weight:      weight,
		parallelism: parallelism,
		logger:      log.New(log.Writer(), "[RETRIEVAL] ", log.LstdFlags),
	}
}

// Retrieve runs the full pipeline for one retrieval pass. Queries are
// the expanded phrasings of one question; every (query, source) pair
// is independent and runs on a bounded worker pool. Results are merged
// in query order, so the outcome does not depend on completion order.
func (r *HybridRetriever) Retrieve(ctx context.Context, queries []string) ([]Document, error) {
	if len(queries) == 0 {
		return nil, nil
	}

	vecLists := make([][]Document, len(queries))
	lexLists := make([][]Document, len(queries))
	errs := make([]error, 2*len(queries))

	sem := make(chan struct{}, r.parallelism)
	var wg sync.WaitGroup
	for i, q := range queries {
		wg.Add(2)
		go func(i int, q string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			docs, err := r.vector.Search(ctx, q, r.topK)
			vecLists[i], errs[2*i] = docs, err
		}(i, q)
		go func(i int, q string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			docs, err := r.lexical.Search(ctx, q, r.topK)
			lexLists[i], errs[2*i+1] = docs, err
		}(i, q)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			telemetry.AdapterErrors.WithLabelValues("retrieval").Inc()
			return nil, err
		}
	}

	// Join point: dedup each side by content fingerprint across all
	// expanded queries before fusing.
	vector := dedupe(vecLists)
	lexical := dedupe(lexLists)
	if len(vector) == 0 && len(lexical) == 0 {
		return nil, nil
	}

	fused := Fuse(vector, lexical, r.weight)
	if len(fused) > r.topK {
		fused = fused[:r.topK]
	}

	ranked := r.rerank(ctx, queries[0], fused)
	if len(ranked) > r.topN {
		ranked = ranked[:r.topN]
	}
	return ranked, nil
}

// rerank re-sorts candidates by pairwise relevance to the query. A
// reranker failure degrades to the fused order rather than failing the
// retrieval pass.
func (r *HybridRetriever) rerank(ctx context.Context, query string, candidates []Document) []Document {
	if r.reranker == nil || len(candidates) == 0 {
		return candidates
	}
	texts := make([]string, len(candidates))
	for i, c := range candidates {
		texts[i] = c.Content
	}
	scores, err := r.reranker.Score(ctx, query, texts)
	if err != nil || len(scores) != len(candidates) {
		telemetry.RerankFallbacks.Inc()
		r.logger.Printf("rerank failed, keeping fused order: %v", err)
		return candidates
	}
	out := make([]Document, len(candidates))
	copy(out, candidates)
	for i := range out {
		out[i].Score = scores[i]
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// dedupe concatenates the per-query lists in order and keeps each
// distinct content fingerprint once, at its first rank, with the best
// score seen for it.
func dedupe(lists [][]Document) []Document {
	var out []Document
	index := make(map[string]int)
	for _, list := range lists {
		for _, d := range list {
			fp := Fingerprint(d.Content)
			if at, ok := index[fp]; ok {
				if d.Score > out[at].Score {
					out[at].Score = d.Score
				}
				continue
			}
			index[fp] = len(out)
			out = append(out, d)
		}
	}
	return out
}
