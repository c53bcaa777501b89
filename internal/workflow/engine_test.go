package workflow

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/questor-ai/questor/internal/checkpoint/inmemory"
)

type testState struct {
	Steps []string `json:"steps"`
	N     int      `json:"n"`
}

func record(name string) Node[testState] {
	return func(ctx context.Context, s testState) (testState, error) {
		s.Steps = append(s.Steps, name)
		return s, nil
	}
}

func linearGraph(names ...string) *Graph[testState] {
	g := NewGraph[testState]()
	for _, n := range names {
		g.AddNode(n, record(n))
	}
	for i := 0; i < len(names)-1; i++ {
		g.AddEdge(names[i], names[i+1])
	}
	g.AddEdge(names[len(names)-1], End)
	g.SetEntryPoint(names[0])
	return g
}

func TestRunLinearGraph(t *testing.T) {
	t.Parallel()

	eng, err := NewEngine(linearGraph("a", "b", "c"), inmemory.NewStore())
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	res, err := eng.Run(context.Background(), "s1", &testState{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Interrupted {
		t.Error("interrupted without an interrupt set")
	}
	if res.NextNode != End {
		t.Errorf("next node: got %q, want End", res.NextNode)
	}
	want := []string{"a", "b", "c"}
	if fmt.Sprint(res.State.Steps) != fmt.Sprint(want) {
		t.Errorf("steps: got %v, want %v", res.State.Steps, want)
	}
}

func TestResumeWithoutCheckpointIsSessionNotFound(t *testing.T) {
	t.Parallel()

	eng, err := NewEngine(linearGraph("a"), inmemory.NewStore())
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	_, err = eng.Run(context.Background(), "missing", nil)
	if !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("got %v, want ErrSessionNotFound", err)
	}
}

func TestConcurrentRunIsSessionBusy(t *testing.T) {
	t.Parallel()

	entered := make(chan struct{})
	release := make(chan struct{})
	g := NewGraph[testState]().
		AddNode("wait", func(ctx context.Context, s testState) (testState, error) {
			close(entered)
			<-release
			return s, nil
		}).
		AddEdge("wait", End).
		SetEntryPoint("wait")

	eng, err := NewEngine(g, inmemory.NewStore())
	if err != nil {
		t.Fatalf("engine: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := eng.Run(context.Background(), "s1", &testState{})
		done <- err
	}()
	<-entered

	_, err = eng.Run(context.Background(), "s1", &testState{})
	if !errors.Is(err, ErrSessionBusy) {
		t.Errorf("got %v, want ErrSessionBusy", err)
	}

	// A different session is not blocked.
	g2, _ := NewEngine(linearGraph("a"), inmemory.NewStore())
	if _, err := g2.Run(context.Background(), "s2", &testState{}); err != nil {
		t.Errorf("unrelated session: %v", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first run: %v", err)
	}

	// The lock is released once the run returns.
	if _, err := eng.Run(context.Background(), "s1", nil); err != nil {
		t.Errorf("rerun after release: %v", err)
	}
}

func TestStepFailureKeepsLastCheckpoint(t *testing.T) {
	t.Parallel()

	fail := true
	g := NewGraph[testState]().
		AddNode("a", record("a")).
		AddNode("b", func(ctx context.Context, s testState) (testState, error) {
			if fail {
				return s, errors.New("boom")
			}
			s.Steps = append(s.Steps, "b")
			return s, nil
		}).
		AddEdge("a", "b").
		AddEdge("b", End).
		SetEntryPoint("a")

	store := inmemory.NewStore()
	eng, err := NewEngine(g, store)
	if err != nil {
		t.Fatalf("engine: %v", err)
	}

	_, err = eng.Run(context.Background(), "s1", &testState{})
	var stepErr *StepError
	if !errors.As(err, &stepErr) {
		t.Fatalf("got %v, want StepError", err)
	}
	if stepErr.Node != "b" {
		t.Errorf("failed node: got %q, want b", stepErr.Node)
	}

	// The checkpoint written after "a" survives, so resuming retries
	// "b" without re-running "a".
	rec, err := store.Load(context.Background(), "s1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if rec.NextNode != "b" {
		t.Errorf("checkpointed next node: got %q, want b", rec.NextNode)
	}

	fail = false
	res, err := eng.Run(context.Background(), "s1", nil)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	want := []string{"a", "b"}
	if fmt.Sprint(res.State.Steps) != fmt.Sprint(want) {
		t.Errorf("steps after resume: got %v, want %v", res.State.Steps, want)
	}
}

func TestNodePanicBecomesStepError(t *testing.T) {
	t.Parallel()

	g := NewGraph[testState]().
		AddNode("a", func(ctx context.Context, s testState) (testState, error) {
			panic("adapter blew up")
		}).
		AddEdge("a", End).
		SetEntryPoint("a")

	eng, err := NewEngine(g, inmemory.NewStore())
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	_, err = eng.Run(context.Background(), "s1", &testState{})
	var stepErr *StepError
	if !errors.As(err, &stepErr) {
		t.Fatalf("got %v, want StepError", err)
	}
}

func TestInterruptBeforeNode(t *testing.T) {
	t.Parallel()

	executed := 0
	g := NewGraph[testState]().
		AddNode("a", record("a")).
		AddNode("x", func(ctx context.Context, s testState) (testState, error) {
			executed++
			s.Steps = append(s.Steps, "x")
			return s, nil
		}).
		AddEdge("a", "x").
		AddEdge("x", End).
		SetEntryPoint("a").
		InterruptBefore("x")

	eng, err := NewEngine(g, inmemory.NewStore())
	if err != nil {
		t.Fatalf("engine: %v", err)
	}

	res, err := eng.Run(context.Background(), "s1", &testState{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !res.Interrupted || res.NextNode != "x" {
		t.Fatalf("expected pause before x, got interrupted=%v next=%q", res.Interrupted, res.NextNode)
	}
	if executed != 0 {
		t.Fatal("interrupted node ran before approval")
	}

	res, err = eng.Run(context.Background(), "s1", nil)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if res.Interrupted {
		t.Fatal("paused again on resume")
	}
	if executed != 1 {
		t.Errorf("interrupted node ran %d times, want exactly once", executed)
	}
}

func TestBackEdgeLoopBoundedByRouter(t *testing.T) {
	t.Parallel()

	g := NewGraph[testState]().
		AddNode("work", func(ctx context.Context, s testState) (testState, error) {
			s.N++
			return s, nil
		}).
		AddNode("done", record("done")).
		AddConditionalEdges("work", func(s testState) string {
			if s.N >= 5 {
				return "done"
			}
			return "work"
		}, "work", "done").
		AddEdge("done", End).
		SetEntryPoint("work")

	eng, err := NewEngine(g, inmemory.NewStore())
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	res, err := eng.Run(context.Background(), "s1", &testState{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.State.N != 5 {
		t.Errorf("iterations: got %d, want 5", res.State.N)
	}
}

func TestUndeclaredRouterTargetIsConfigError(t *testing.T) {
	t.Parallel()

	g := NewGraph[testState]().
		AddNode("a", record("a")).
		AddNode("b", record("b")).
		AddConditionalEdges("a", func(s testState) string { return "nowhere" }, "b").
		AddEdge("b", End).
		SetEntryPoint("a")

	eng, err := NewEngine(g, inmemory.NewStore())
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	_, err = eng.Run(context.Background(), "s1", &testState{})
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Errorf("got %v, want ConfigError", err)
	}
}

func TestCancelledContextStopsRun(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	g := NewGraph[testState]().
		AddNode("work", func(ctx context.Context, s testState) (testState, error) {
			s.N++
			if s.N == 2 {
				cancel()
			}
			return s, nil
		}).
		AddConditionalEdges("work", func(s testState) string { return "work" }, "work").
		SetEntryPoint("work")

	store := inmemory.NewStore()
	eng, err := NewEngine(g, store)
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	_, err = eng.Run(ctx, "s1", &testState{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}

	// Checkpoints already written stay valid for a later resume.
	rec, err := store.Load(context.Background(), "s1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if rec.NextNode != "work" {
		t.Errorf("checkpointed next node: got %q, want work", rec.NextNode)
	}
}

func TestStateAccessor(t *testing.T) {
	t.Parallel()

	eng, err := NewEngine(linearGraph("a", "b"), inmemory.NewStore())
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	if _, err := eng.Run(context.Background(), "s1", &testState{}); err != nil {
		t.Fatalf("run: %v", err)
	}
	state, next, err := eng.State(context.Background(), "s1")
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if next != End {
		t.Errorf("next: got %q, want End", next)
	}
	if len(state.Steps) != 2 {
		t.Errorf("steps: got %v", state.Steps)
	}

	if _, _, err := eng.State(context.Background(), "missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("missing session: got %v, want ErrSessionNotFound", err)
	}
}

func TestCompileValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		graph func() *Graph[testState]
	}{
		{"no entry point", func() *Graph[testState] {
			return NewGraph[testState]().AddNode("a", record("a")).AddEdge("a", End)
		}},
		{"unknown entry point", func() *Graph[testState] {
			return NewGraph[testState]().AddNode("a", record("a")).AddEdge("a", End).SetEntryPoint("b")
		}},
		{"edge to unknown node", func() *Graph[testState] {
			return NewGraph[testState]().AddNode("a", record("a")).AddEdge("a", "ghost").SetEntryPoint("a")
		}},
		{"node with no successor", func() *Graph[testState] {
			return NewGraph[testState]().AddNode("a", record("a")).SetEntryPoint("a")
		}},
		{"node with edge and router", func() *Graph[testState] {
			return NewGraph[testState]().
				AddNode("a", record("a")).
				AddEdge("a", End).
				AddConditionalEdges("a", func(s testState) string { return End }, End).
				SetEntryPoint("a")
		}},
		{"router targeting unknown node", func() *Graph[testState] {
			return NewGraph[testState]().
				AddNode("a", record("a")).
				AddConditionalEdges("a", func(s testState) string { return "ghost" }, "ghost").
				SetEntryPoint("a")
		}},
		{"interrupt on unknown node", func() *Graph[testState] {
			return NewGraph[testState]().
				AddNode("a", record("a")).AddEdge("a", End).
				SetEntryPoint("a").InterruptBefore("ghost")
		}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.graph().Compile()
			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) {
				t.Errorf("got %v, want ConfigError", err)
			}
		})
	}
}

func TestCheckpointHistoryRetained(t *testing.T) {
	t.Parallel()

	store := inmemory.NewStore()
	eng, err := NewEngine(linearGraph("a", "b", "c"), store)
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	if _, err := eng.Run(context.Background(), "s1", &testState{}); err != nil {
		t.Fatalf("run: %v", err)
	}
	recs, err := store.History(context.Background(), "s1")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	// One checkpoint per completed node; superseded ones remain.
	if len(recs) != 3 {
		t.Errorf("checkpoints: got %d, want 3", len(recs))
	}
	for i := 1; i < len(recs); i++ {
		if recs[i].CreatedAt.Before(recs[i-1].CreatedAt.Add(-time.Second)) {
			t.Errorf("checkpoint %d older than its predecessor", i)
		}
	}
}
