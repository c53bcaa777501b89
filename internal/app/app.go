// Package app wires the assistant's collaborators from configuration.
// One App is constructed at process startup and shared by every
// session; the server and the CLI both go through it, so there is a
// single place where the retrieval subsystem, the provider, and the
// checkpoint store come to life.
package app

import (
	"context"
	"fmt"
	"log"

	"github.com/questor-ai/questor/config"
	"github.com/questor-ai/questor/internal/agent"
	"github.com/questor-ai/questor/internal/checkpoint"
	"github.com/questor-ai/questor/internal/checkpoint/inmemory"
	"github.com/questor-ai/questor/internal/checkpoint/pgstore"
	"github.com/questor-ai/questor/internal/checkpoint/redisstore"
	"github.com/questor-ai/questor/internal/ingest"
	"github.com/questor-ai/questor/internal/retrieval"
	"github.com/questor-ai/questor/internal/workflow"
	"github.com/questor-ai/questor/provider"
	"github.com/questor-ai/questor/tools/webfetch"
	"github.com/questor-ai/questor/tools/websearch"
)

type App struct {
	Cfg       *config.Config
	LLM       provider.Provider
	Vector    *retrieval.MemoryIndex
	Lexical   *retrieval.BleveIndex
	Retriever *retrieval.HybridRetriever
	Searcher  websearch.WebSearcher
	Fetcher   webfetch.WebFetcher
	Assistant *agent.Assistant
	Store     checkpoint.Store
	Engine    *workflow.Engine[agent.State]

	logger *log.Logger
}

func New(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := log.New(log.Writer(), "[APP] ", log.LstdFlags)

	base, err := provider.NewProvider(cfg.LLM)
	if err != nil {
		return nil, err
	}
	llm := provider.WithResilience(base, cfg.LLM.Retry, cfg.LLM.Breaker)

	vector := retrieval.NewMemoryIndex(llm.CreateEmbedding)
	lexical, err := retrieval.NewBleveIndex()
	if err != nil {
		return nil, fmt.Errorf("creating lexical index: %w", err)
	}

	var reranker retrieval.Reranker
	if cfg.Retrieval.UseRerank && cfg.Retrieval.RerankURL != "" {
		reranker = retrieval.NewHTTPReranker(cfg.Retrieval.RerankURL, cfg.Retrieval.RerankAPIKey)
	}
	retriever := retrieval.NewHybridRetriever(vector, lexical, reranker, cfg.Retrieval)

	var searcher websearch.WebSearcher
	if cfg.Search.APIKey != "" {
		searcher, err = websearch.NewWebSearcher(websearch.Provider(cfg.Search.Provider), cfg.Search.APIKey)
		if err != nil {
			return nil, fmt.Errorf("web search provider %q: %w", cfg.Search.Provider, err)
		}
	} else {
		logger.Printf("no web search api key configured, web evidence disabled")
	}

	var fetcher webfetch.WebFetcher
	if cfg.Search.FetchPages {
		fetcher, err = webfetch.NewWebFetcher(webfetch.HTTPFetcherType, cfg.General.DefaultTimeout, 0)
		if err != nil {
			return nil, err
		}
	}

	store, err := newStore(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}

	assistant := agent.NewAssistant(llm, retriever, searcher, fetcher, cfg)
	engine, err := workflow.NewEngine(agent.BuildGraph(assistant, cfg.Workflow.RequireApprove), store)
	if err != nil {
		return nil, err
	}

	return &App{
		Cfg:       cfg,
		LLM:       llm,
		Vector:    vector,
		Lexical:   lexical,
		Retriever: retriever,
		Searcher:  searcher,
		Fetcher:   fetcher,
		Assistant: assistant,
		Store:     store,
		Engine:    engine,
		logger:    logger,
	}, nil
}

func newStore(ctx context.Context, cfg config.StorageConfig) (checkpoint.Store, error) {
	switch cfg.Backend {
	case "", "memory":
		return inmemory.NewStore(), nil
	case "redis":
		client, err := redisstore.Conn(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		return redisstore.NewStore(client), nil
	case "postgres":
		return pgstore.New(ctx, cfg.Postgres.DSN())
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// IndexKnowledge loads the configured knowledge directory, splits it,
// and feeds the chunks to both retrieval indexes. Returns the number
// of chunks added to the vector index; previously indexed chunks are
// skipped by content fingerprint.
func (a *App) IndexKnowledge(ctx context.Context) (int, error) {
	chunks, err := ingest.LoadDir(a.Cfg.General.KnowledgeDir, a.Cfg.Retrieval.ChunkSize, a.Cfg.Retrieval.ChunkOverlap)
	if err != nil {
		return 0, fmt.Errorf("loading knowledge dir: %w", err)
	}
	if len(chunks) == 0 {
		a.logger.Printf("no documents found under %s", a.Cfg.General.KnowledgeDir)
		return 0, nil
	}
	contents := make([]string, len(chunks))
	sources := make([]string, len(chunks))
	for i, c := range chunks {
		contents[i] = c.Content
		sources[i] = c.Source
	}
	added, err := a.Vector.Upsert(ctx, contents, sources)
	if err != nil {
		return 0, err
	}
	for _, c := range chunks {
		if err := a.Lexical.Add(c.Content, c.Source); err != nil {
			return added, fmt.Errorf("indexing chunk from %s: %w", c.Source, err)
		}
	}
	a.logger.Printf("indexed %d chunks (%d new) from %s", len(chunks), added, a.Cfg.General.KnowledgeDir)
	return added, nil
}

// Ask runs a fresh question in the given session. multiQuery overrides
// the configured query expansion default when non-nil.
func (a *App) Ask(ctx context.Context, sessionID, question string, multiQuery *bool) (workflow.Result[agent.State], error) {
	expand := a.Cfg.Workflow.MultiQuery
	if multiQuery != nil {
		expand = *multiQuery
	}
	prior := a.priorHistory(ctx, sessionID)
	state := agent.NewState(question, a.Cfg.Workflow.LoopCap, expand, prior)
	return a.Engine.Run(ctx, sessionID, state)
}

// Resume continues a session paused at an approval boundary or aborted
// by a step failure.
func (a *App) Resume(ctx context.Context, sessionID string) (workflow.Result[agent.State], error) {
	return a.Engine.Run(ctx, sessionID, nil)
}

// priorHistory carries the conversation forward when a session asks a
// follow-up question. A session with no checkpoint starts empty.
func (a *App) priorHistory(ctx context.Context, sessionID string) []agent.Message {
	state, _, err := a.Engine.State(ctx, sessionID)
	if err != nil {
		return nil
	}
	return state.History()
}
