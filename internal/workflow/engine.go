package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/questor-ai/questor/internal/checkpoint"
	"github.com/questor-ai/questor/internal/telemetry"
)

// Result is what a Run hands back to its caller.
type Result[S any] struct {
	State S
	// NextNode is the node that will execute on the next Run when
	// Interrupted is true, or End when the run completed.
	NextNode    string
	Interrupted bool
}

// Engine drives a compiled graph, persisting a checkpoint after every
// completed node. One Run per session may be in flight at a time.
type Engine[S any] struct {
	graph  *Graph[S]
	store  checkpoint.Store
	logger *log.Logger

	mu      sync.Mutex
	running map[string]bool
}

// NewEngine compiles the graph and binds it to a checkpoint store.
func NewEngine[S any](graph *Graph[S], store checkpoint.Store) (*Engine[S], error) {
	if !graph.compiled {
		if err := graph.Compile(); err != nil {
			return nil, err
		}
	}
	return &Engine[S]{
		graph:   graph,
		store:   store,
		logger:  log.New(log.Writer(), "[WORKFLOW] ", log.LstdFlags),
		running: make(map[string]bool),
	}, nil
}

// Run executes the graph for sessionID. A non-nil initial state starts
// a fresh session at the entry node; nil resumes from the session's
// last checkpoint. The returned Result carries the state as of the
// moment control came back: at an interrupt boundary, at the terminal
// node, or (with a non-nil error) at the last good checkpoint.
func (e *Engine[S]) Run(ctx context.Context, sessionID string, initial *S) (Result[S], error) {
	var zero Result[S]
	if sessionID == "" {
		return zero, fmt.Errorf("session id required")
	}

	e.mu.Lock()
	if e.running[sessionID] {
		e.mu.Unlock()
		return zero, fmt.Errorf("session %q: %w", sessionID, ErrSessionBusy)
	}
	e.running[sessionID] = true
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		delete(e.running, sessionID)
		e.mu.Unlock()
	}()

	var state S
	var node string
	resumed := false
	if initial != nil {
		state = *initial
		node = e.graph.entry
	} else {
		rec, err := e.store.Load(ctx, sessionID)
		if err != nil {
			if errors.Is(err, checkpoint.ErrNotFound) {
				return zero, fmt.Errorf("session %q: %w", sessionID, ErrSessionNotFound)
			}
			return zero, fmt.Errorf("loading checkpoint: %w", err)
		}
		if err := json.Unmarshal(rec.State, &state); err != nil {
			return zero, fmt.Errorf("decoding checkpoint state: %w", err)
		}
		node = rec.NextNode
		resumed = true
	}

	for node != End {
		if err := ctx.Err(); err != nil {
			return Result[S]{State: state, NextNode: node}, err
		}

		// Interrupt-before boundary: persist "next step = this node"
		// and hand control back without running it. A resumption
		// lands here with resumed=true and falls through, so the
		// node executes exactly once.
		if e.graph.interrupts[node] && !resumed {
			if err := e.save(ctx, sessionID, state, node); err != nil {
				return Result[S]{State: state, NextNode: node}, err
			}
			e.logger.Printf("session %s paused before %q", sessionID, node)
			telemetry.RunsTotal.WithLabelValues("interrupted").Inc()
			return Result[S]{State: state, NextNode: node, Interrupted: true}, nil
		}
		resumed = false

		next, err := e.step(ctx, sessionID, node, &state)
		if err != nil {
			telemetry.RunsTotal.WithLabelValues("failed").Inc()
			return Result[S]{State: state, NextNode: node}, err
		}
		if err := e.save(ctx, sessionID, state, next); err != nil {
			return Result[S]{State: state, NextNode: node}, err
		}
		node = next
	}

	telemetry.RunsTotal.WithLabelValues("completed").Inc()
	return Result[S]{State: state, NextNode: End}, nil
}

// step executes one node and resolves its successor. Node panics are
// converted to step failures so a crash inside an adapter cannot take
// the caller down with it.
func (e *Engine[S]) step(ctx context.Context, sessionID, node string, state *S) (next string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &StepError{Node: node, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	fn := e.graph.nodes[node]
	start := time.Now()
	out, nodeErr := fn(ctx, *state)
	telemetry.NodeDuration.WithLabelValues(node).Observe(time.Since(start).Seconds())
	if nodeErr != nil {
		e.logger.Printf("session %s node %q failed: %v", sessionID, node, nodeErr)
		return "", &StepError{Node: node, Err: nodeErr}
	}
	*state = out

	next, err = e.graph.next(node, out)
	if err != nil {
		return "", err
	}
	return next, nil
}

func (e *Engine[S]) save(ctx context.Context, sessionID string, state S, next string) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encoding checkpoint state: %w", err)
	}
	if err := e.store.Save(ctx, sessionID, data, next); err != nil {
		return fmt.Errorf("saving checkpoint: %w", err)
	}
	return nil
}

// State returns the latest checkpointed state for a session without
// running anything.
func (e *Engine[S]) State(ctx context.Context, sessionID string) (S, string, error) {
	var state S
	rec, err := e.store.Load(ctx, sessionID)
	if err != nil {
		if errors.Is(err, checkpoint.ErrNotFound) {
			return state, "", fmt.Errorf("session %q: %w", sessionID, ErrSessionNotFound)
		}
		return state, "", err
	}
	if err := json.Unmarshal(rec.State, &state); err != nil {
		return state, "", fmt.Errorf("decoding checkpoint state: %w", err)
	}
	return state, rec.NextNode, nil
}
