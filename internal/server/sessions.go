package server

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/questor-ai/questor/internal/agent"
	"github.com/questor-ai/questor/internal/app"
	"github.com/questor-ai/questor/internal/workflow"
)

// SessionsHandler exposes the question-answering workflow over HTTP.
type SessionsHandler struct {
	App *app.App
}

func (h *SessionsHandler) Register(g *echo.Group) {
	g.POST("/ask", h.ask)
	g.POST("/sessions/:id/resume", h.resume)
	g.GET("/sessions/:id", h.get)
	g.GET("/sessions/:id/history", h.history)
}

// ask starts a fresh question. Omitting session_id starts a new
// conversation under a generated id.
func (h *SessionsHandler) ask(c echo.Context) error {
	var req AskRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Question == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "question is required")
	}
	if req.SessionID == "" {
		req.SessionID = uuid.New().String()
	}

	res, err := h.App.Ask(c.Request().Context(), req.SessionID, req.Question, req.MultiQuery)
	if err != nil {
		return runError(req.SessionID, err)
	}
	return c.JSON(http.StatusOK, toResponse(req.SessionID, res))
}

// resume continues a session paused at the approval boundary, or
// retries one aborted by a step failure.
func (h *SessionsHandler) resume(c echo.Context) error {
	id := c.Param("id")
	res, err := h.App.Resume(c.Request().Context(), id)
	if err != nil {
		return runError(id, err)
	}
	return c.JSON(http.StatusOK, toResponse(id, res))
}

// get returns the session's latest checkpointed state without running
// anything.
func (h *SessionsHandler) get(c echo.Context) error {
	id := c.Param("id")
	state, next, err := h.App.Engine.State(c.Request().Context(), id)
	if err != nil {
		return runError(id, err)
	}
	resp := stateResponse(id, state)
	resp.NextNode = next
	switch {
	case next == workflow.End:
		resp.Status = "completed"
	case state.PendingAction != "":
		resp.Status = "paused"
	default:
		resp.Status = "in-progress"
	}
	return c.JSON(http.StatusOK, resp)
}

// history returns the conversation log of a session.
func (h *SessionsHandler) history(c echo.Context) error {
	id := c.Param("id")
	state, _, err := h.App.Engine.State(c.Request().Context(), id)
	if err != nil {
		return runError(id, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"session_id": id,
		"history":    state.History(),
	})
}

func toResponse(id string, res workflow.Result[agent.State]) SessionResponse {
	resp := stateResponse(id, res.State)
	resp.NextNode = res.NextNode
	if res.Interrupted {
		resp.Status = "paused"
	} else {
		resp.Status = "completed"
	}
	return resp
}

func stateResponse(id string, state agent.State) SessionResponse {
	return SessionResponse{
		SessionID:     id,
		PendingAction: state.PendingAction,
		Answer:        state.FinalAnswer,
		Verdict:       state.Verdict,
		VerdictReason: state.VerdictReason,
		Loops:         state.LoopCount,
		Evidence:      state.Evidence,
		History:       state.History(),
	}
}

// runError maps engine errors onto HTTP statuses. A step failure keeps
// the last checkpoint intact, so 502 with the cause lets the caller
// decide between resuming and abandoning the session.
func runError(id string, err error) error {
	var stepErr *workflow.StepError
	var cfgErr *workflow.ConfigError
	switch {
	case errors.Is(err, workflow.ErrSessionNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "session not found: "+id)
	case errors.Is(err, workflow.ErrSessionBusy):
		return echo.NewHTTPError(http.StatusConflict, "session busy: "+id)
	case errors.As(err, &cfgErr):
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	case errors.As(err, &stepErr):
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
