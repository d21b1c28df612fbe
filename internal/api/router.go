package api

import (
	"encoding/json"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/visaflow/visaflow/internal/api/handlers"
	mw "github.com/visaflow/visaflow/internal/api/middleware"
	"github.com/visaflow/visaflow/internal/config"
	"github.com/visaflow/visaflow/internal/domain"
	"github.com/visaflow/visaflow/internal/embedding"
	"github.com/visaflow/visaflow/internal/llm"
	"github.com/visaflow/visaflow/internal/reasoning"
	"github.com/visaflow/visaflow/internal/retrieval"
	"github.com/visaflow/visaflow/internal/rules"
	"github.com/visaflow/visaflow/internal/service"
	"github.com/visaflow/visaflow/internal/store"
	"go.uber.org/zap"
)

// App holds the router and request metrics for lifecycle management.
type App struct {
	Router       *chi.Mux
	startTime    time.Time
	requestCount atomic.Int64
	errorCount   atomic.Int64
	checkCount   atomic.Int64
}

func NewApp(db *pgxpool.Pool, logger *zap.Logger) *App {
	// Stores
	factStore := store.NewFactStore(db)
	ruleStore := store.NewRuleStore(db)
	chunkStore := store.NewChunkStore(db)
	resultStore := store.NewResultStore(db)
	caseStore := store.NewCaseStore(db)

	// External clients via provider factory
	llmProvider := config.LLMProvider()
	embeddingProvider := config.EmbeddingProvider()
	remoteTimeout := time.Duration(config.LLMTimeoutSeconds()) * time.Second

	llmClient, err := llm.NewClient(llmProvider, config.LLMAPIKey(), remoteTimeout)
	if err != nil {
		logger.Warn("LLM client initialization failed", zap.String("provider", llmProvider), zap.Error(err))
	} else {
		logger.Info("LLM client initialized", zap.String("provider", llmProvider))
	}

	embeddingClient, err := embedding.NewClient(embeddingProvider, config.EmbeddingAPIKey(), remoteTimeout)
	if err != nil {
		logger.Warn("Embedding client initialization failed", zap.String("provider", embeddingProvider), zap.Error(err))
	} else {
		logger.Info("Embedding client initialized", zap.String("provider", embeddingProvider))
	}

	// Engine and services. The orchestrator stays nil if either client is
	// unavailable; every check then degrades to a rule-only verdict.
	engine := rules.NewEngine(ruleStore, logger)

	var reasoner service.Reasoner
	if llmClient != nil && embeddingClient != nil {
		retriever := retrieval.NewRetriever(embeddingClient, chunkStore, logger)
		retriever.SetLimits(config.RetrievalTopK(), config.RetrievalMinSimilarity())
		reasoner = reasoning.NewOrchestrator(retriever, llmClient, logger)
	} else {
		logger.Warn("AI reasoning disabled, checks will use rule verdicts only")
	}

	eligibilitySvc := service.NewEligibilityService(factStore, engine, reasoner, resultStore, caseStore, logger)

	// Handlers
	eligibilityHandler := handlers.NewEligibilityHandler(eligibilitySvc, resultStore)

	r := chi.NewRouter()

	app := &App{
		Router:    r,
		startTime: time.Now(),
	}

	// Metrics collector for middleware
	metricsCollector := mw.NewMetricsCollector(&app.requestCount, &app.errorCount, &app.checkCount)

	// Global middleware (order matters)
	r.Use(mw.RequestID)
	r.Use(middleware.RealIP)
	r.Use(metricsCollector.Middleware)
	r.Use(mw.Logging(logger))
	r.Use(middleware.Recoverer)
	r.Use(mw.RateLimit(config.RateLimitRPS(), config.RateLimitBurst()))

	// Health
	r.Get("/health", healthHandler(db))

	// Metrics
	r.Get("/metrics", app.metricsHandler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/checks", eligibilityHandler.Check)
		r.Get("/results/{id}", eligibilityHandler.GetResultByID)
		r.Get("/cases/{caseID}/results", eligibilityHandler.ListResultsByCase)
	})

	return app
}

// NewRouter returns just the chi.Mux.
func NewRouter(db *pgxpool.Pool, logger *zap.Logger) *chi.Mux {
	return NewApp(db, logger).Router
}

func healthHandler(db *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := db.Ping(r.Context()); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "error", "error": err.Error()})
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}

func (app *App) metricsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var memStats runtime.MemStats
		runtime.ReadMemStats(&memStats)

		uptime := time.Since(app.startTime)

		response := map[string]any{
			"uptime_seconds": uptime.Seconds(),
			"uptime_human":   uptime.Round(time.Second).String(),
			"request_count":  app.requestCount.Load(),
			"error_count":    app.errorCount.Load(),
			"check_count":    app.checkCount.Load(),
			"goroutines":     runtime.NumGoroutine(),
			"memory": map[string]any{
				"alloc_mb":       float64(memStats.Alloc) / 1024 / 1024,
				"total_alloc_mb": float64(memStats.TotalAlloc) / 1024 / 1024,
				"sys_mb":         float64(memStats.Sys) / 1024 / 1024,
				"num_gc":         memStats.NumGC,
			},
			"go_version": runtime.Version(),
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(response)
	}
}

// Ensure stores and clients satisfy interfaces at compile time.
var (
	_ domain.FactStore        = (*store.FactStore)(nil)
	_ domain.RuleStore        = (*store.RuleStore)(nil)
	_ domain.ChunkStore       = (*store.ChunkStore)(nil)
	_ domain.ResultStore      = (*store.ResultStore)(nil)
	_ domain.CaseNotifier     = (*store.CaseStore)(nil)
	_ domain.EmbeddingClient  = (*embedding.OpenAIClient)(nil)
	_ domain.EmbeddingClient  = (*embedding.MockClient)(nil)
	_ domain.CompletionClient = (*llm.OpenAIClient)(nil)
	_ domain.CompletionClient = (*llm.AnthropicClient)(nil)
	_ domain.CompletionClient = (*llm.MockClient)(nil)
	_ service.Reasoner        = (*reasoning.Orchestrator)(nil)
)
