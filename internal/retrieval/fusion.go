package retrieval

import "sort"

// normalize maps each document's score to [0,1] by min-max scaling,
// keyed by exact content. A list whose scores are all equal maps to
// 1.0 everywhere: everything is equally relevant, and dividing by the
// zero range is avoided.
func normalize(docs []Document) map[string]float64 {
	if len(docs) == 0 {
		return map[string]float64{}
	}
	min, max := docs[0].Score, docs[0].Score
	for _, d := range docs[1:] {
		if d.Score < min {
			min = d.Score
		}
		if d.Score > max {
			max = d.Score
		}
	}
	out := make(map[string]float64, len(docs))
	if min == max {
		for _, d := range docs {
			out[d.Content] = 1.0
		}
		return out
	}
	for _, d := range docs {
		out[d.Content] = (d.Score - min) / (max - min)
	}
	return out
}

// Fuse merges two independently ranked lists by exact content identity:
// fused = weight*vector + (1-weight)*lexical, with a document missing
// from one side contributing 0 for that side. The result is sorted by
// fused score descending, ties broken by original vector rank.
func Fuse(vector, lexical []Document, weight float64) []Document {
	if len(vector) == 0 && len(lexical) == 0 {
		return nil
	}

	vecNorm := normalize(vector)
	lexNorm := normalize(lexical)

	type entry struct {
		doc  Document
		rank int
	}
	seen := make(map[string]*entry, len(vector)+len(lexical))
	var order []*entry
	for i, d := range vector {
		if _, ok := seen[d.Content]; ok {
			continue
		}
		e := &entry{doc: d, rank: i}
		seen[d.Content] = e
		order = append(order, e)
	}
	for i, d := range lexical {
		if prev, ok := seen[d.Content]; ok {
			if prev.doc.Source == "" {
				prev.doc.Source = d.Source
			}
			continue
		}
		// Documents absent from the vector list rank after every
		// vector hit, in lexical order, keeping the sort stable.
		e := &entry{doc: d, rank: len(vector) + i}
		seen[d.Content] = e
		order = append(order, e)
	}

	for _, e := range order {
		e.doc.Score = weight*vecNorm[e.doc.Content] + (1-weight)*lexNorm[e.doc.Content]
	}
	sort.SliceStable(order, func(i, j int) bool {
		if order[i].doc.Score != order[j].doc.Score {
			return order[i].doc.Score > order[j].doc.Score
		}
		return order[i].rank < order[j].rank
	})

	out := make([]Document, len(order))
	for i, e := range order {
		out[i] = e.doc
	}
	return out
}
