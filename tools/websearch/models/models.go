package models

// Result is one web search hit. Providers that synthesize a direct
// answer return it as a leading result with Answer set and no URL;
// callers must handle both shapes.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
	Answer  bool   `json:"answer,omitempty"`
}
