package app

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/storefront-labs/concierge/internal/chat"
	"github.com/storefront-labs/concierge/internal/config"
	"github.com/storefront-labs/concierge/internal/conversation"
	"github.com/storefront-labs/concierge/internal/embedding"
	"github.com/storefront-labs/concierge/internal/gate"
	"github.com/storefront-labs/concierge/internal/httpapi"
	"github.com/storefront-labs/concierge/internal/knowledge"
	"github.com/storefront-labs/concierge/internal/llm"
	"github.com/storefront-labs/concierge/internal/observability"
	"github.com/storefront-labs/concierge/internal/prompt"
	"github.com/storefront-labs/concierge/internal/retrieval"
)

type BuildResult struct {
	Config       config.Config
	API          *httpapi.Server
	Orchestrator *chat.Orchestrator
	Knowledge    *knowledge.Store
	Seeder       *knowledge.Seeder
	Metrics      *observability.Metrics

	// Cleanup should be called on shutdown to release external resources (DB, cache, etc).
	Cleanup func() error
}

// Build wires the whole service from configuration. Optional backends
// (Postgres, Redis, Gemini) degrade to local equivalents when not
// configured, so a bare `go run` serves a working chat.
func Build(ctx context.Context, cfg config.Config) (*BuildResult, error) {
	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	embedder, err := embedding.New(ctx, embedding.Config{
		Mode:      cfg.EmbeddingProvider,
		APIKey:    cfg.GoogleAPIKey,
		Model:     cfg.GoogleEmbedModel,
		Dimension: cfg.EmbeddingDim,
	})
	if err != nil {
		return nil, fmt.Errorf("embedder init failed: %w", err)
	}

	store := knowledge.NewStore(cfg.EmbeddingDim)

	var (
		knowledgeRepo knowledge.Repository
		knowledgePool *pgxpool.Pool
	)
	if strings.TrimSpace(cfg.DatabaseURL) != "" {
		knowledgePool, err = pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("knowledge pool init failed: %w", err)
		}
		repo, err := knowledge.NewPostgresRepository(ctx, knowledgePool)
		if err != nil {
			knowledgePool.Close()
			return nil, fmt.Errorf("knowledge repository init failed: %w", err)
		}
		knowledgeRepo = repo
	}

	seeder := knowledge.NewSeeder(embedder, store, knowledgeRepo)
	if err := loadKnowledge(ctx, cfg, seeder); err != nil {
		if knowledgePool != nil {
			knowledgePool.Close()
		}
		return nil, err
	}

	cache, err := retrieval.NewCache(ctx, cfg.RedisURL, cfg.CacheDisabled)
	if err != nil {
		// A cache outage must not keep the service down.
		log.Printf("retrieval cache unavailable, continuing without: %v", err)
		cache = retrieval.NewNoopCache()
	}

	retriever := retrieval.NewRetriever(embedder, store, cache, cfg.CacheTTL, cfg.RetrievalTopK)

	adapter, err := llm.NewAdapter(ctx, llm.Config{
		Mode:        cfg.LLMProvider,
		APIKey:      cfg.GoogleAPIKey,
		Model:       cfg.GoogleModel,
		HTTPURL:     cfg.LLMHTTPURL,
		MaxTokens:   cfg.LLMMaxTokens,
		Temperature: cfg.LLMTemperature,
	})
	if err != nil {
		if knowledgePool != nil {
			knowledgePool.Close()
		}
		return nil, fmt.Errorf("llm adapter init failed: %w", err)
	}

	client := llm.NewClient(adapter, cfg.GenerationAttempts, cfg.GenerationBackoff, cfg.GenerationTimeout)
	client.OnRetry = func(int) { metrics.GenerationRetries.Inc() }

	ledger, err := conversation.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		if knowledgePool != nil {
			knowledgePool.Close()
		}
		return nil, fmt.Errorf("conversation store init failed: %w", err)
	}

	assembler := prompt.NewAssembler(cfg.StaticInstructions, cfg.HistoryLimit)

	orchestrator := chat.NewOrchestrator(
		gate.New(),
		retriever,
		assembler,
		client,
		ledger,
		metrics,
		cfg.MaxMessageLength,
		cfg.HistoryLimit,
	)

	api := httpapi.New(cfg, orchestrator, seeder, store, metrics)

	cleanup := func() error {
		var errs []string
		if err := ledger.Close(); err != nil {
			errs = append(errs, err.Error())
		}
		if knowledgePool != nil {
			knowledgePool.Close()
		}
		if len(errs) > 0 {
			return fmt.Errorf("%s", strings.Join(errs, "; "))
		}
		return nil
	}

	return &BuildResult{
		Config:       cfg,
		API:          api,
		Orchestrator: orchestrator,
		Knowledge:    store,
		Seeder:       seeder,
		Metrics:      metrics,
		Cleanup:      cleanup,
	}, nil
}

// loadKnowledge restores persisted entries first, then applies the seed
// file when the store is still empty. Startup does not fail on a missing
// knowledge base; the seed endpoint can fill it later.
func loadKnowledge(ctx context.Context, cfg config.Config, seeder *knowledge.Seeder) error {
	restored, err := seeder.LoadPersisted(ctx)
	if err != nil {
		return fmt.Errorf("load persisted knowledge failed: %w", err)
	}
	if restored > 0 {
		log.Printf("restored %d knowledge entries from storage", restored)
		return nil
	}

	path := strings.TrimSpace(cfg.KnowledgeSeedFile)
	if path == "" {
		log.Printf("knowledge base empty, waiting for seed")
		return nil
	}

	seeded, err := seeder.SeedFromFile(ctx, path)
	if err != nil {
		return fmt.Errorf("seed from %s failed: %w", path, err)
	}
	log.Printf("seeded %d knowledge entries from %s", seeded, path)
	return nil
}
