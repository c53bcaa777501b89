package agent

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/questor-ai/questor/config"
	"github.com/questor-ai/questor/internal/checkpoint/inmemory"
	"github.com/questor-ai/questor/internal/retrieval"
	"github.com/questor-ai/questor/internal/workflow"
	"github.com/questor-ai/questor/provider"
)

// scriptedLLM answers each node's system prompt from a fixed script
// and records how often the judge was consulted.
type scriptedLLM struct {
	mode    string
	verdict string

	mu         sync.Mutex
	judgeCalls int
}

func (f *scriptedLLM) Complete(ctx context.Context, msgs []provider.Message) (string, error) {
	switch msgs[0].Content {
	case decideSystemPrompt:
		return "MODE: " + f.mode, nil
	case expandSystemPrompt:
		return "", nil
	case judgeSystemPrompt:
		f.mu.Lock()
		f.judgeCalls++
		f.mu.Unlock()
		return f.verdict, nil
	case answerSystemPrompt:
		return "the final answer", nil
	}
	return "", nil
}

func (f *scriptedLLM) CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

func (f *scriptedLLM) judgePasses() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.judgeCalls
}

func newTestAssistant(t *testing.T, llm *scriptedLLM) *Assistant {
	t.Helper()
	vec := retrieval.NewMemoryIndex(llm.CreateEmbedding)
	if _, err := vec.Upsert(context.Background(), []string{"raft elects a leader per term"}, []string{"docs/raft.md#0"}); err != nil {
		t.Fatalf("seeding index: %v", err)
	}
	retr := retrieval.NewHybridRetriever(vec, retrieval.NewOverlapIndex(vec), nil, config.RetrievalConfig{})
	cfg := &config.Config{}
	cfg.Workflow.MaxHistory = 10
	return NewAssistant(llm, retr, nil, nil, cfg)
}

func newTestEngine(t *testing.T, a *Assistant, requireApprove bool) (*workflow.Engine[State], *inmemory.Store) {
	t.Helper()
	store := inmemory.NewStore()
	eng, err := workflow.NewEngine(BuildGraph(a, requireApprove), store)
	if err != nil {
		t.Fatalf("building engine: %v", err)
	}
	return eng, store
}

// An always-insufficient judge with loop cap 3 yields 4 judge passes
// (the initial one plus one per refinement loop), then the router
// forces the answer with the counter at the cap.
func TestRefinementLoopStopsAtCap(t *testing.T) {
	t.Parallel()

	llm := &scriptedLLM{
		mode:    "local",
		verdict: "VERDICT: insufficient\nREASON: not enough\nREFINED_QUERY: raft leader election",
	}
	eng, store := newTestEngine(t, newTestAssistant(t, llm), false)

	res, err := eng.Run(context.Background(), "s1", NewState("what is raft", 3, false, nil))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Interrupted {
		t.Fatal("run interrupted without an interrupt set")
	}
	if got := llm.judgePasses(); got != 4 {
		t.Errorf("judge passes: got %d, want 4", got)
	}
	if res.State.LoopCount != 3 {
		t.Errorf("loop counter at force-route: got %d, want 3", res.State.LoopCount)
	}
	if res.State.FinalAnswer == "" {
		t.Error("no final answer after forced answer route")
	}

	// The counter never exceeds the cap at any checkpoint.
	recs, err := store.History(context.Background(), "s1")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(recs) == 0 {
		t.Fatal("no checkpoints written")
	}
	for i, rec := range recs {
		var s State
		if err := json.Unmarshal(rec.State, &s); err != nil {
			t.Fatalf("decoding checkpoint %d: %v", i, err)
		}
		if s.LoopCount > s.LoopCap {
			t.Errorf("checkpoint %d: loop counter %d exceeds cap %d", i, s.LoopCount, s.LoopCap)
		}
	}
}

func TestSufficientVerdictAnswersWithoutLooping(t *testing.T) {
	t.Parallel()

	llm := &scriptedLLM{
		mode:    "local",
		verdict: "VERDICT: sufficient\nREASON: covers it",
	}
	eng, _ := newTestEngine(t, newTestAssistant(t, llm), false)

	res, err := eng.Run(context.Background(), "s1", NewState("what is raft", 3, false, nil))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := llm.judgePasses(); got != 1 {
		t.Errorf("judge passes: got %d, want 1", got)
	}
	if res.State.LoopCount != 0 {
		t.Errorf("loop counter: got %d, want 0", res.State.LoopCount)
	}
	if len(res.State.Evidence) == 0 {
		t.Error("no evidence retrieved")
	}
	hist := res.State.History()
	if len(hist) != 2 || hist[1].Content != "the final answer" {
		t.Errorf("answer node did not append to history: %+v", hist)
	}
}

func TestModeNoneSkipsRetrieval(t *testing.T) {
	t.Parallel()

	llm := &scriptedLLM{mode: "none"}
	eng, _ := newTestEngine(t, newTestAssistant(t, llm), false)

	res, err := eng.Run(context.Background(), "s1", NewState("what is two plus two", 3, false, nil))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := llm.judgePasses(); got != 0 {
		t.Errorf("judge consulted on a no-search question: %d passes", got)
	}
	if len(res.State.Evidence) != 0 {
		t.Errorf("evidence retrieved in mode none: %+v", res.State.Evidence)
	}
	if res.State.FinalAnswer == "" {
		t.Error("no final answer")
	}
}

// With approval required, the run pauses before the search node with
// the pending action described; resuming executes the search exactly
// once and completes.
func TestApprovalInterruptPausesBeforeSearch(t *testing.T) {
	t.Parallel()

	llm := &scriptedLLM{
		mode:    "local",
		verdict: "VERDICT: sufficient\nREASON: fine",
	}
	eng, _ := newTestEngine(t, newTestAssistant(t, llm), true)

	res, err := eng.Run(context.Background(), "s1", NewState("what is raft", 3, false, nil))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !res.Interrupted {
		t.Fatal("run did not pause at the approval boundary")
	}
	if res.NextNode != NodeLocalSearch {
		t.Errorf("paused before %q, want %q", res.NextNode, NodeLocalSearch)
	}
	if len(res.State.Evidence) != 0 {
		t.Error("search side effects observable before approval")
	}
	if !strings.Contains(res.State.PendingAction, "local search") {
		t.Errorf("pending action not described: %q", res.State.PendingAction)
	}

	res, err = eng.Run(context.Background(), "s1", nil)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if res.Interrupted {
		t.Fatal("resumed run paused again")
	}
	if len(res.State.Evidence) == 0 {
		t.Error("search did not run after approval")
	}
	if res.State.PendingAction != "" {
		t.Errorf("pending action not cleared: %q", res.State.PendingAction)
	}
	if res.State.FinalAnswer == "" {
		t.Error("no final answer after resume")
	}
}

func TestIrrelevantVerdictGivesUpAfterTwoLoops(t *testing.T) {
	t.Parallel()

	llm := &scriptedLLM{
		mode:    "local",
		verdict: "VERDICT: irrelevant\nREASON: off topic\nREFINED_QUERY: other terms",
	}
	eng, _ := newTestEngine(t, newTestAssistant(t, llm), false)

	res, err := eng.Run(context.Background(), "s1", NewState("what is raft", 5, false, nil))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	// Initial pass plus two retries, then the anti-thrash rule answers.
	if got := llm.judgePasses(); got != 3 {
		t.Errorf("judge passes: got %d, want 3", got)
	}
	if res.State.LoopCount != 2 {
		t.Errorf("loop counter: got %d, want 2", res.State.LoopCount)
	}
}
