// Package retrieval implements hybrid retrieval: vector similarity and
// lexical scoring fused into one ranked list, optionally refined by a
// pairwise reranker.
package retrieval

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
)

// Source is the uniform read interface over evidence indexes. Vector
// and lexical indexes both serve it; the retriever treats them alike.
type Source interface {
	Search(ctx context.Context, query string, k int) ([]Document, error)
}

// Document is one retrieval candidate.
type Document struct {
	Content string  `json:"content"`
	Source  string  `json:"source"`
	Score   float64 `json:"score"`
}

// fingerprintPrefix bounds how much content feeds the dedup hash, so
// near-identical long chunks that share a head collapse to one entry.
const fingerprintPrefix = 200

// Fingerprint identifies a document by a hash of a fixed-length prefix
// of its content. Used for deduplication within one retrieval pass.
func Fingerprint(content string) string {
	r := []rune(content)
	if len(r) > fingerprintPrefix {
		r = r[:fingerprintPrefix]
	}
	sum := sha256.Sum256([]byte(string(r)))
	return hex.EncodeToString(sum[:8])
}
