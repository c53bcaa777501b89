package server

import "github.com/questor-ai/questor/internal/agent"

type AskRequest struct {
	SessionID string `json:"session_id"`
	Question  string `json:"question"`
	// MultiQuery overrides the configured query expansion default.
	MultiQuery *bool `json:"multi_query,omitempty"`
}

// SessionResponse is the state of a session as of the last completed
// node, plus where the run stands.
type SessionResponse struct {
	SessionID     string           `json:"session_id"`
	Status        string           `json:"status"` // completed | paused | in-progress
	NextNode      string           `json:"next_node,omitempty"`
	PendingAction string           `json:"pending_action,omitempty"`
	Answer        string           `json:"answer,omitempty"`
	Verdict       agent.Verdict    `json:"verdict,omitempty"`
	VerdictReason string           `json:"verdict_reason,omitempty"`
	Loops         int              `json:"loops"`
	Evidence      []agent.Evidence `json:"evidence,omitempty"`
	History       []agent.Message  `json:"history,omitempty"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type TokenResponse struct {
	Token string `json:"token"`
}

type HTTPError struct {
	Error string `json:"error"`
}
