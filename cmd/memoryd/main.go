package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/CLIAIRMONITOR/memoryd/internal/applog"
	"github.com/CLIAIRMONITOR/memoryd/internal/config"
	"github.com/CLIAIRMONITOR/memoryd/internal/embedder"
	"github.com/CLIAIRMONITOR/memoryd/internal/eventbus"
	"github.com/CLIAIRMONITOR/memoryd/internal/httpapi"
	"github.com/CLIAIRMONITOR/memoryd/internal/metastore"
	"github.com/CLIAIRMONITOR/memoryd/internal/retrieval"
	"github.com/CLIAIRMONITOR/memoryd/internal/service"
	"github.com/CLIAIRMONITOR/memoryd/internal/vectorindex"
)

func main() {
	configPath := flag.String("config", "configs/memoryd.yaml", "Path to configuration file")
	port := flag.Int("port", 0, "Override server port (0 = use config)")
	flag.Parse()

	log.Println("===============================================")
	log.Println("  memoryd - cross-session agent memory service")
	log.Println("===============================================")

	var cfg *config.Config
	if _, err := os.Stat(*configPath); err == nil {
		cfg, err = config.Load(*configPath)
		if err != nil {
			log.Printf("[MAIN] Warning: failed to load config from %s: %v", *configPath, err)
			log.Println("[MAIN] Using default configuration")
			cfg = config.Default()
		} else {
			log.Printf("[MAIN] Loaded configuration from %s", *configPath)
		}
	} else {
		log.Println("[MAIN] Config file not found, using defaults")
		cfg = config.Default()
	}

	if *port > 0 {
		cfg.ServerPort = *port
	}

	log.Printf("[MAIN] Server port: %d", cfg.ServerPort)
	log.Printf("[MAIN] NATS port: %d", cfg.NATSPort)
	log.Printf("[MAIN] Embedding model: %s (dims=%d)", cfg.EmbeddingModel, cfg.EmbeddingDimensions)

	if err := cfg.EnsureDirs(); err != nil {
		log.Fatalf("[MAIN] Failed to create data directories: %v", err)
	}

	appendLog, err := applog.New(cfg.ConversationsDir())
	if err != nil {
		log.Fatalf("[MAIN] Failed to open conversation log: %v", err)
	}

	meta, err := metastore.Open(cfg.SQLitePath())
	if err != nil {
		log.Fatalf("[MAIN] Failed to open metadata store: %v", err)
	}
	defer meta.Close()

	vector, err := vectorindex.Open(cfg.VectorDBPath(), cfg.EmbeddingDimensions)
	if err != nil {
		log.Fatalf("[MAIN] Failed to open vector index: %v", err)
	}
	defer vector.Close()

	var provider embedder.Provider
	if cfg.EmbeddingEndpoint != "" {
		provider = embedder.NewHTTPProvider(cfg.EmbeddingEndpoint, cfg.EmbeddingModel, cfg.EmbeddingDimensions)
		log.Printf("[MAIN] Embedding provider: HTTP at %s", cfg.EmbeddingEndpoint)
	} else {
		provider = embedder.NewDeterministicProvider(cfg.EmbeddingDimensions, true, 0)
		log.Println("[MAIN] Embedding provider: deterministic local fallback (no embedding_endpoint configured)")
	}
	emb := embedder.New(provider)
	tokens := embedder.NewTokenCounter()

	retrievalEngine := retrieval.NewEngine(emb, vector, appendLog, cfg.MaxRetrievalResults, cfg.MinSimilarityScore)

	log.Println("[MAIN] Memory system initialized (append log + metadata store + vector index)")

	natsServer, err := eventbus.StartServer(cfg.NATSPort)
	if err != nil {
		log.Fatalf("[MAIN] Failed to start embedded event bus: %v", err)
	}
	log.Printf("[MAIN] Embedded event bus started on port %d", cfg.NATSPort)

	busClient, err := eventbus.Connect(natsServer.URL())
	if err != nil {
		log.Fatalf("[MAIN] Failed to connect to embedded event bus: %v", err)
	}
	defer busClient.Close()

	svc := service.New(appendLog, meta, vector, emb, tokens, retrievalEngine, busClient,
		cfg.ContextWarningThreshold, cfg.ContextCriticalThreshold)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf("127.0.0.1:%d", cfg.ServerPort),
		Handler: httpapi.NewMux(svc),
	}

	go func() {
		log.Printf("[MAIN] HTTP server starting on port %d", cfg.ServerPort)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[MAIN] HTTP server error: %v", err)
		}
	}()

	log.Println("===============================================")
	log.Printf("  memoryd ready!")
	log.Printf("  Health:   http://localhost:%d/health", cfg.ServerPort)
	log.Printf("  Memories: http://localhost:%d/memories", cfg.ServerPort)
	log.Println("===============================================")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("[MAIN] Shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Printf("[MAIN] HTTP server shutdown error: %v", err)
	}

	natsServer.Shutdown()

	log.Println("[MAIN] memoryd shutdown complete")
}
