// Package agent holds the question-answering assistant: the session
// state threaded through the workflow graph, the nodes that mutate it,
// and the routers that pick the path through the graph.
package agent

import "encoding/json"

// SearchMode says which evidence sources a question needs.
type SearchMode string

const (
	ModeNone   SearchMode = "none"
	ModeLocal  SearchMode = "local"
	ModeWeb    SearchMode = "web"
	ModeHybrid SearchMode = "hybrid"
)

// Verdict is the sufficiency judge's classification of the evidence.
type Verdict string

const (
	VerdictSufficient   Verdict = "sufficient"
	VerdictInsufficient Verdict = "insufficient"
	VerdictIrrelevant   Verdict = "irrelevant"
)

// Origin tags where an evidence item came from.
type Origin string

const (
	OriginLocal Origin = "local"
	OriginWeb   Origin = "web"
)

// Message is one role-tagged entry in the conversation history.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Evidence is one retrieved item. Read-only once appended; items are
// deduplicated by content fingerprint within a single retrieval pass.
type Evidence struct {
	Content string  `json:"content"`
	Source  string  `json:"source"`
	Score   float64 `json:"score"`
	Origin  Origin  `json:"origin"`
}

// State is the single mutable record threaded through the workflow.
//
// The conversation history is unexported on purpose: most nodes get a
// read-only view through History, and only the answer node appends, so
// re-running any other node after a crash cannot duplicate entries.
type State struct {
	history []Message

	Question        string     `json:"question"`
	SearchMode      SearchMode `json:"search_mode"`
	ExpandQueries   bool       `json:"expand_queries"`
	ExpandedQueries []string   `json:"expanded_queries,omitempty"`
	Evidence        []Evidence `json:"evidence,omitempty"`

	Verdict       Verdict `json:"verdict,omitempty"`
	VerdictReason string  `json:"verdict_reason,omitempty"`
	RefinedQuery  string  `json:"refined_query,omitempty"`

	LoopCount int `json:"loop_count"`
	LoopCap   int `json:"loop_cap"`

	FinalAnswer   string `json:"final_answer,omitempty"`
	PendingAction string `json:"pending_action,omitempty"`
}

// NewState builds the initial state for one question. prior carries the
// conversation so far, if any; it is copied, not aliased.
func NewState(question string, loopCap int, expandQueries bool, prior []Message) *State {
	if loopCap < 0 {
		loopCap = 0
	}
	s := &State{
		Question:      question,
		ExpandQueries: expandQueries,
		LoopCap:       loopCap,
	}
	s.history = append(s.history, prior...)
	return s
}

// History returns a copy of the conversation history. Nodes other than
// the answer node only ever see this view.
func (s State) History() []Message {
	out := make([]Message, len(s.history))
	copy(out, s.history)
	return out
}

// appendHistory adds messages and trims the log to the newest max
// entries. Only the answer node calls this.
func (s *State) appendHistory(max int, msgs ...Message) {
	s.history = append(s.history, msgs...)
	if max > 0 && len(s.history) > max {
		s.history = s.history[len(s.history)-max:]
	}
}

// stateJSON mirrors State with the history made visible, so the
// checkpoint codec round-trips the full record.
type stateJSON struct {
	History []Message `json:"history"`

	Question        string     `json:"question"`
	SearchMode      SearchMode `json:"search_mode"`
	ExpandQueries   bool       `json:"expand_queries"`
	ExpandedQueries []string   `json:"expanded_queries,omitempty"`
	Evidence        []Evidence `json:"evidence,omitempty"`
	Verdict         Verdict    `json:"verdict,omitempty"`
	VerdictReason   string     `json:"verdict_reason,omitempty"`
	RefinedQuery    string     `json:"refined_query,omitempty"`
	LoopCount       int        `json:"loop_count"`
	LoopCap         int        `json:"loop_cap"`
	FinalAnswer     string     `json:"final_answer,omitempty"`
	PendingAction   string     `json:"pending_action,omitempty"`
}

func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(stateJSON{
		History:         s.history,
		Question:        s.Question,
		SearchMode:      s.SearchMode,
		ExpandQueries:   s.ExpandQueries,
		ExpandedQueries: s.ExpandedQueries,
		Evidence:        s.Evidence,
		Verdict:         s.Verdict,
		VerdictReason:   s.VerdictReason,
		RefinedQuery:    s.RefinedQuery,
		LoopCount:       s.LoopCount,
		LoopCap:         s.LoopCap,
		FinalAnswer:     s.FinalAnswer,
		PendingAction:   s.PendingAction,
	})
}

func (s *State) UnmarshalJSON(data []byte) error {
	var aux stateJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*s = State{
		history:         aux.History,
		Question:        aux.Question,
		SearchMode:      aux.SearchMode,
		ExpandQueries:   aux.ExpandQueries,
		ExpandedQueries: aux.ExpandedQueries,
		Evidence:        aux.Evidence,
		Verdict:         aux.Verdict,
		VerdictReason:   aux.VerdictReason,
		RefinedQuery:    aux.RefinedQuery,
		LoopCount:       aux.LoopCount,
		LoopCap:         aux.LoopCap,
		FinalAnswer:     aux.FinalAnswer,
		PendingAction:   aux.PendingAction,
	}
	return nil
}
