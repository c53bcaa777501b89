package agent

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/questor-ai/questor/config"
	"github.com/questor-ai/questor/internal/retrieval"
	"github.com/questor-ai/questor/internal/telemetry"
	"github.com/questor-ai/questor/provider"
	"github.com/questor-ai/questor/tools/webfetch"
	"github.com/questor-ai/questor/tools/websearch"
)

// Node names of the assistant graph.
const (
	NodeDecide       = "decide"
	NodeExpand       = "expand"
	NodePrepare      = "prepare"
	NodeLocalSearch  = "local_search"
	NodeWebSearch    = "web_search"
	NodeHybridSearch = "hybrid_search"
	NodeJudge        = "judge"
	NodeRefine       = "refine"
	NodeAnswer       = "answer"
)

// Assistant owns the collaborators the graph nodes talk to. One
// instance is constructed at startup and shared by all sessions; it
// keeps no per-session state.
type Assistant struct {
	llm       provider.Provider
	retriever *retrieval.HybridRetriever
	searcher  websearch.WebSearcher
	fetcher   webfetch.WebFetcher

	maxResults  int
	fetchPages  bool
	maxHistory  int
	parallelism int
	logger      *log.Logger
}

// NewAssistant wires the collaborators. searcher and fetcher may be
// nil when web search is not configured; web and hybrid modes then
// fall back to local evidence only.
func NewAssistant(llm provider.Provider, retriever *retrieval.HybridRetriever, searcher websearch.WebSearcher, fetcher webfetch.WebFetcher, cfg *config.Config) *Assistant {
	maxResults := cfg.Search.MaxResults
	if maxResults <= 0 {
		maxResults = 3
	}
	parallelism := cfg.Retrieval.Parallelism
	if parallelism <= 0 {
		parallelism = 5
	}
	return &Assistant{
		llm:         llm,
		retriever:   retriever,
		searcher:    searcher,
		fetcher:     fetcher,
		maxResults:  maxResults,
		fetchPages:  cfg.Search.FetchPages,
		maxHistory:  cfg.Workflow.MaxHistory,
		parallelism: parallelism,
		logger:      log.New(log.Writer(), "[AGENT] ", log.LstdFlags),
	}
}

// Decide classifies the question into a search mode. An unparseable
// reply falls back to hybrid so a formatting slip never skips
// retrieval silently.
func (a *Assistant) Decide(ctx context.Context, s State) (State, error) {
	raw, err := a.llm.Complete(ctx, a.messages(decideSystemPrompt, decideUserPrompt(s.Question), s.History()))
	if err != nil {
		return s, fmt.Errorf("decide: %w", err)
	}
	mode, ok := parseMode(raw)
	if !ok {
		a.logger.Printf("unrecognized mode in decide output %q, using hybrid", strings.TrimSpace(raw))
		mode = ModeHybrid
	}
	s.SearchMode = mode
	return s, nil
}

// Expand fans the question out into alternative phrasings, always
// keeping the original first. Expansion is best-effort: a provider
// failure degrades to the original question alone.
func (a *Assistant) Expand(ctx context.Context, s State) (State, error) {
	s.ExpandedQueries = []string{s.Question}
	if !s.ExpandQueries {
		return s, nil
	}
	raw, err := a.llm.Complete(ctx, []provider.Message{
		{Role: provider.RoleSystem, Content: expandSystemPrompt},
		{Role: provider.RoleUser, Content: expandUserPrompt(s.Question)},
	})
	if err != nil {
		a.logger.Printf("query expansion failed, searching with the original only: %v", err)
		return s, nil
	}
	seen := map[string]bool{strings.ToLower(s.Question): true}
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || seen[strings.ToLower(line)] {
			continue
		}
		seen[strings.ToLower(line)] = true
		s.ExpandedQueries = append(s.ExpandedQueries, line)
		if len(s.ExpandedQueries) == 4 {
			break
		}
	}
	return s, nil
}

// Prepare describes the imminent retrieval so a caller paused at the
// approval boundary can show what it is approving.
func (a *Assistant) Prepare(ctx context.Context, s State) (State, error) {
	s.PendingAction = fmt.Sprintf("%s search for: %s", s.SearchMode, strings.Join(s.ExpandedQueries, " | "))
	return s, nil
}

// LocalSearch retrieves from the document indexes only.
func (a *Assistant) LocalSearch(ctx context.Context, s State) (State, error) {
	evidence, err := a.searchLocal(ctx, s.ExpandedQueries)
	if err != nil {
		return s, err
	}
	s.Evidence = evidence
	s.PendingAction = ""
	return s, nil
}

// WebSearch retrieves from the web provider only.
func (a *Assistant) WebSearch(ctx context.Context, s State) (State, error) {
	evidence, err := a.searchWeb(ctx, s.ExpandedQueries)
	if err != nil {
		return s, err
	}
	s.Evidence = evidence
	s.PendingAction = ""
	return s, nil
}

// HybridSearch retrieves from both sources, local evidence first,
// deduplicated across them by content fingerprint.
func (a *Assistant) HybridSearch(ctx context.Context, s State) (State, error) {
	local, err := a.searchLocal(ctx, s.ExpandedQueries)
	if err != nil {
		return s, err
	}
	web, err := a.searchWeb(ctx, s.ExpandedQueries)
	if err != nil {
		return s, err
	}
	s.Evidence = mergeEvidence(local, web)
	s.PendingAction = ""
	return s, nil
}

// Judge classifies the retrieved evidence against the question. It
// never looks at the loop counter; that policy lives in the router.
func (a *Assistant) Judge(ctx context.Context, s State) (State, error) {
	raw, err := a.llm.Complete(ctx, []provider.Message{
		{Role: provider.RoleSystem, Content: judgeSystemPrompt},
		{Role: provider.RoleUser, Content: judgeUserPrompt(s.Question, s.Evidence)},
	})
	if err != nil {
		return s, fmt.Errorf("judge: %w", err)
	}
	j := ParseJudgment(raw)
	if j.ParseFailed {
		telemetry.JudgeParseFailures.Inc()
		a.logger.Printf("unparseable judge output %q, defaulting to sufficient", strings.TrimSpace(raw))
	}
	telemetry.JudgeVerdicts.WithLabelValues(string(j.Verdict)).Inc()
	s.Verdict = j.Verdict
	s.VerdictReason = j.Reason
	s.RefinedQuery = j.RefinedQuery
	return s, nil
}

// Refine takes the judge's refined query, advances the loop counter,
// and runs another retrieval pass in the current search mode. The
// judge sees the fresh evidence on the back-edge that follows.
func (a *Assistant) Refine(ctx context.Context, s State) (State, error) {
	s.LoopCount++
	query := strings.TrimSpace(s.RefinedQuery)
	if query == "" {
		query = s.Question
	}
	s.ExpandedQueries = []string{query}

	var (
		evidence []Evidence
		err      error
	)
	switch s.SearchMode {
	case ModeWeb:
		evidence, err = a.searchWeb(ctx, s.ExpandedQueries)
	case ModeHybrid:
		var local, web []Evidence
		local, err = a.searchLocal(ctx, s.ExpandedQueries)
		if err == nil {
			web, err = a.searchWeb(ctx, s.ExpandedQueries)
		}
		evidence = mergeEvidence(local, web)
	default:
		evidence, err = a.searchLocal(ctx, s.ExpandedQueries)
	}
	if err != nil {
		return s, err
	}
	s.Evidence = evidence
	return s, nil
}

// Answer produces the final answer and is the only node that appends
// to the conversation history.
func (a *Assistant) Answer(ctx context.Context, s State) (State, error) {
	raw, err := a.llm.Complete(ctx, a.messages(answerSystemPrompt, answerUserPrompt(s.Question, s.Evidence), s.History()))
	if err != nil {
		return s, fmt.Errorf("answer: %w", err)
	}
	s.FinalAnswer = strings.TrimSpace(raw)
	s.PendingAction = ""
	s.appendHistory(a.maxHistory,
		Message{Role: provider.RoleUser, Content: s.Question},
		Message{Role: provider.RoleAssistant, Content: s.FinalAnswer},
	)
	telemetry.LoopIterations.Observe(float64(s.LoopCount))
	return s, nil
}

// RouteAfterDecide skips retrieval entirely when the question needs
// none.
func RouteAfterDecide(s State) string {
	if s.SearchMode == ModeNone {
		return NodeAnswer
	}
	return NodeExpand
}

// RouteSearch dispatches to the search node for the decided mode.
func RouteSearch(s State) string {
	switch s.SearchMode {
	case ModeWeb:
		return NodeWebSearch
	case ModeHybrid:
		return NodeHybridSearch
	default:
		return NodeLocalSearch
	}
}

// irrelevantRetryLimit bounds how many refinement loops an irrelevant
// verdict may trigger before the question is answered with what is on
// hand, so off-topic evidence is not retried indefinitely.
const irrelevantRetryLimit = 2

// RouteAfterJudge enforces loop termination. The counter is compared
// against the cap before the refine node advances it, so a session
// with cap C takes at most C refinement loops and the counter never
// exceeds the cap at any checkpoint.
func RouteAfterJudge(s State) string {
	if s.LoopCount >= s.LoopCap {
		return NodeAnswer
	}
	switch s.Verdict {
	case VerdictInsufficient:
		return NodeRefine
	case VerdictIrrelevant:
		if s.LoopCount < irrelevantRetryLimit {
			return NodeRefine
		}
		return NodeAnswer
	default:
		return NodeAnswer
	}
}

func (a *Assistant) messages(system, user string, history []Message) []provider.Message {
	msgs := make([]provider.Message, 0, len(history)+2)
	msgs = append(msgs, provider.Message{Role: provider.RoleSystem, Content: system})
	for _, m := range history {
		msgs = append(msgs, provider.Message{Role: m.Role, Content: m.Content})
	}
	return append(msgs, provider.Message{Role: provider.RoleUser, Content: user})
}

func (a *Assistant) searchLocal(ctx context.Context, queries []string) ([]Evidence, error) {
	if a.retriever == nil {
		return nil, nil
	}
	docs, err := a.retriever.Retrieve(ctx, queries)
	if err != nil {
		return nil, fmt.Errorf("local retrieval: %w", err)
	}
	evidence := make([]Evidence, 0, len(docs))
	for _, d := range docs {
		evidence = append(evidence, Evidence{
			Content: d.Content,
			Source:  d.Source,
			Score:   d.Score,
			Origin:  OriginLocal,
		})
	}
	return evidence, nil
}

// searchWeb fans the queries out over the web provider on a bounded
// worker pool, joining results in query order so the outcome does not
// depend on completion order, then deduplicates across queries.
func (a *Assistant) searchWeb(ctx context.Context, queries []string) ([]Evidence, error) {
	if a.searcher == nil {
		return nil, nil
	}
	lists := make([][]Evidence, len(queries))
	errs := make([]error, len(queries))

	sem := make(chan struct{}, a.parallelism)
	var wg sync.WaitGroup
	for i, q := range queries {
		wg.Add(1)
		go func(i int, q string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results, err := a.searcher.Search(ctx, q, a.maxResults)
			if err != nil {
				errs[i] = err
				return
			}
			list := make([]Evidence, 0, len(results))
			for rank, r := range results {
				content := r.Content
				source := r.URL
				if r.Answer {
					source = "web:answer"
				} else if a.fetchPages && a.fetcher != nil {
					if page, err := a.fetcher.Exec(ctx, r.URL); err == nil && page.Text != "" {
						content = page.Text
					}
				}
				list = append(list, Evidence{
					Content: content,
					Source:  source,
					Score:   1.0 / float64(rank+1),
					Origin:  OriginWeb,
				})
			}
			lists[i] = list
		}(i, q)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			telemetry.AdapterErrors.WithLabelValues("websearch").Inc()
			return nil, fmt.Errorf("web search: %w", err)
		}
	}

	var merged []Evidence
	for _, list := range lists {
		merged = mergeEvidence(merged, list)
	}
	return merged, nil
}

// mergeEvidence concatenates two evidence lists keeping each distinct
// content fingerprint once, at its first position, with the best score
// seen for it.
func mergeEvidence(a, b []Evidence) []Evidence {
	out := make([]Evidence, 0, len(a)+len(b))
	index := make(map[string]int, len(a)+len(b))
	for _, list := range [][]Evidence{a, b} {
		for _, ev := range list {
			fp := retrieval.Fingerprint(ev.Content)
			if at, ok := index[fp]; ok {
				if ev.Score > out[at].Score {
					out[at].Score = ev.Score
				}
				continue
			}
			index[fp] = len(out)
			out = append(out, ev)
		}
	}
	return out
}

func parseMode(raw string) (SearchMode, bool) {
	lower := strings.ToLower(raw)
	for _, line := range strings.Split(lower, "\n") {
		if !strings.Contains(line, "mode") {
			continue
		}
		if m, ok := modeToken(line); ok {
			return m, true
		}
	}
	return modeToken(lower)
}

func modeToken(s string) (SearchMode, bool) {
	switch {
	case strings.Contains(s, "hybrid"):
		return ModeHybrid, true
	case strings.Contains(s, "local"):
		return ModeLocal, true
	case strings.Contains(s, "web"):
		return ModeWeb, true
	case strings.Contains(s, "none"):
		return ModeNone, true
	}
	return "", false
}
