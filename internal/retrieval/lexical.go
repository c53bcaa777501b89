package retrieval

import (
	"context"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/blevesearch/bleve"
)

// BleveIndex is a full-text lexical index backed by an in-memory bleve
// index.
type BleveIndex struct {
	index bleve.Index

	mu   sync.RWMutex
	docs map[string]Document
}

type bleveDoc struct {
	Content string `json:"content"`
}

func NewBleveIndex() (*BleveIndex, error) {
	idx, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, err
	}
	return &BleveIndex{index: idx, docs: make(map[string]Document)}, nil
}

// Add indexes a document under its content fingerprint.
func (b *BleveIndex) Add(content, source string) error {
	id := Fingerprint(content)
	b.mu.Lock()
	b.docs[id] = Document{Content: content, Source: source}
	b.mu.Unlock()
	return b.index.Index(id, bleveDoc{Content: content})
}

func (b *BleveIndex) Search(ctx context.Context, query string, k int) ([]Document, error) {
	q := bleve.NewMatchQuery(query)
	req := bleve.NewSearchRequestOptions(q, k, 0, false)
	res, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Document, 0, len(res.Hits))
	for _, hit := range res.Hits {
		doc, ok := b.docs[hit.ID]
		if !ok {
			continue
		}
		doc.Score = hit.Score
		out = append(out, doc)
	}
	return out, nil
}

// OverlapIndex scores by smoothed term overlap against the documents
// of a vector index:
//
//	score = sum(query-token frequency in doc) / (doc token count + 1)
//
// This is an explicit simplification, not BM25; it exists so local
// retrieval works without a separate lexical index.
type OverlapIndex struct {
	corpus interface{ Documents() []Document }
}

func NewOverlapIndex(corpus interface{ Documents() []Document }) *OverlapIndex {
	return &OverlapIndex{corpus: corpus}
}

func (o *OverlapIndex) Search(ctx context.Context, query string, k int) ([]Document, error) {
	queryTokens := make(map[string]bool)
	for _, t := range tokenize(query) {
		queryTokens[t] = true
	}

	docs := o.corpus.Documents()
	out := make([]Document, 0, len(docs))
	for _, d := range docs {
		tokens := tokenize(d.Content)
		freq := make(map[string]int, len(tokens))
		for _, t := range tokens {
			freq[t]++
		}
		sum := 0
		for t := range queryTokens {
			sum += freq[t]
		}
		d.Score = float64(sum) / float64(len(tokens)+1)
		out = append(out, d)
	}

	// Stable by corpus order so equal scores keep a deterministic rank.
	sortDocsByScore(out)
	if k < len(out) {
		out = out[:k]
	}
	return out, nil
}

func sortDocsByScore(docs []Document) {
	sort.SliceStable(docs, func(i, j int) bool { return docs[i].Score > docs[j].Score })
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
