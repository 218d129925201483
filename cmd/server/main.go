package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"caradvisor/internal/config"
	"caradvisor/internal/handler"
	"caradvisor/internal/model"
	"caradvisor/internal/repository"
	"caradvisor/internal/service"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	log.Printf("Used Car Advisor")
	log.Printf("Version: %s", Version)
	log.Printf("Build Time: %s", BuildTime)
	log.Printf("Git Commit: %s", GitCommit)
	log.Println("")

	// Load configuration; a misconfigured process refuses to start
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Slot registry; duplicate keys are a configuration error
	registry, err := model.NewRegistry(model.DefaultSlots())
	if err != nil {
		log.Fatalf("Invalid slot registry: %v", err)
	}

	// Set Gin mode
	gin.SetMode(cfg.Server.GinMode)

	// The reference catalog is optional: a missing or unreachable
	// database downgrades to no pre-filter and no run log.
	var repo *repository.PostgresRepository
	if cfg.PostgreSQL.Enabled {
		repo, err = repository.NewPostgresRepository(
			cfg.GetPostgreSQLDSN(),
			cfg.PostgreSQL.MaxConnections,
			cfg.PostgreSQL.MaxIdleConnections,
		)
		if err != nil {
			log.Printf("Warning: reference catalog unavailable, continuing without pre-filter: %v", err)
			repo = nil
		} else {
			defer repo.Close()
			log.Println("Connected to the catalog database")
		}
	} else {
		log.Println("Catalog database not configured - candidate pre-filter and run log disabled")
	}

	// Text-generation backend
	openaiClient := service.NewOpenAIClient(&cfg.OpenAI)
	if cfg.OpenAI.Enabled {
		log.Printf("Text-generation client initialized")
		log.Printf("   - API Base: %s", cfg.OpenAI.APIBase)
		log.Printf("   - Chat model: %s", cfg.OpenAI.ChatModel)
		log.Printf("   - Embedding model: %s", cfg.OpenAI.EmbeddingModel)
	} else {
		log.Println("Warning: OPENAI_API_KEY not set - free-text interpretation and candidate generation disabled,")
		log.Println("   the questionnaire falls back to structured answers only")
	}

	// Information-retrieval backend for enrichment
	retrievalClient := service.NewRetrievalClient(&cfg.Retrieval)
	if cfg.Retrieval.Enabled {
		log.Printf("Retrieval client initialized (base: %s, model: %s)", cfg.Retrieval.APIBase, cfg.Retrieval.Model)
	} else {
		log.Println("Warning: RETRIEVAL_API_KEY not set - candidates will carry insufficient-data records")
	}

	var catalog service.CatalogStore
	if repo != nil {
		catalog = repo
	}

	// Initialize services
	interpreter := service.NewInterpreter(openaiClient, registry)
	generator := service.NewCandidateGenerator(openaiClient, catalog, cfg.Advisor.MaxCandidates)
	enricher := service.NewEnricher(retrievalClient, cfg.Advisor.EnrichRepeats)
	ranker := service.NewRanker(service.RankPolicy(cfg.Advisor.RankPolicy), cfg.Advisor.TopN)

	advisor, err := service.NewAdvisorService(
		generator, enricher, ranker, openaiClient, catalog,
		cfg.Advisor.Workers,
		cfg.Cache.Size,
		time.Duration(cfg.Cache.TTLMinutes)*time.Minute,
	)
	if err != nil {
		log.Fatalf("Failed to initialize advisor: %v", err)
	}

	sessions := service.NewSessionManager(registry)
	dialogue := service.NewDialogueManager(registry, interpreter, advisor)

	log.Println("Services initialized")

	// Initialize handlers
	chatHandler := handler.NewChatHandler(dialogue, sessions)
	recommendHandler := handler.NewRecommendHandler(advisor)
	embeddingHandler := handler.NewEmbeddingHandler(repo, cfg.OpenAI.EmbeddingDimensions)

	// Setup Gin router
	router := gin.Default()

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{cfg.Server.AllowedOrigins}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Content-Type", "Authorization"}
	router.Use(cors.New(corsConfig))

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":     "healthy",
			"service":    "used-car-advisor",
			"version":    Version,
			"build_time": BuildTime,
			"git_commit": GitCommit,
			"catalog":    repo != nil,
			"generation": cfg.OpenAI.Enabled,
			"retrieval":  cfg.Retrieval.Enabled,
		})
	})

	// Version endpoint
	router.GET("/version", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"version":    Version,
			"build_time": BuildTime,
			"git_commit": GitCommit,
		})
	})

	// API routes
	apiV1 := router.Group("/api/v1")
	{
		apiV1.POST("/chat", chatHandler.Chat)
		apiV1.POST("/chat/stream", chatHandler.ChatStream)
		apiV1.POST("/reset", chatHandler.Reset)
		apiV1.GET("/sessions/:id/profile", chatHandler.GetProfile)

		apiV1.POST("/recommend", recommendHandler.Recommend)

		apiV1.POST("/catalog/embeddings/batch", embeddingHandler.BatchUpdate)
	}

	// Serve the chat page; implemented in embed.go (production) or
	// static_dev.go (development)
	setupStaticFiles(router)

	// Start server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Printf("Starting server on %s", addr)

	go func() {
		if err := router.Run(addr); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	log.Println("Server stopped")
}
