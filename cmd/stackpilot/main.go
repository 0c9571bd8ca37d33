package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"stackpilot/internal/analysis"
	"stackpilot/internal/chat"
	"stackpilot/internal/config"
	"stackpilot/internal/deploy"
	"stackpilot/internal/events"
	"stackpilot/internal/generator"
	"stackpilot/internal/orchestrator"
	"stackpilot/internal/server"

	"github.com/joho/godotenv"
	"github.com/philippgille/chromem-go"
)

func main() {
	log.Println("🚀 Starting StackPilot, the AI platform engineering assistant...")

	// Load environment variables from .env file if present
	if err := godotenv.Load(); err != nil {
		log.Println("ℹ️  No .env file found, using environment variables")
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("❌ Configuration error: %v", err)
	}
	log.Println("✅ Configuration loaded and validated")

	// Vector index for persisted analysis reports. The assistant works fine
	// without it; reports are still written to disk.
	var db *chromem.DB
	if persistent, err := chromem.NewPersistentDB(filepath.Join(cfg.StateDir, "chromem"), false); err != nil {
		log.Printf("⚠️  Analysis index unavailable: %v", err)
	} else {
		db = persistent
		log.Println("✅ Analysis index opened")
	}
	store := analysis.NewStore(cfg.AnalysisDir, db)

	gen := generator.New(cfg.WorkspaceDir)
	analyzer := analysis.NewClient(cfg.Copilot.Endpoint, cfg.PulumiToken, cfg.Copilot.OrgID, cfg.Copilot.StackURL)
	launcher := deploy.NewExecLauncher(cfg.Deploy.Tool, cfg.Azure, cfg.PulumiToken)
	executor := deploy.NewExecutor(launcher, cfg.Deploy.Tool)

	opts := []orchestrator.Option{
		orchestrator.WithReportSink(store),
		orchestrator.WithRequireAnalysis(cfg.RequireAnalysis),
	}

	// Optional Kafka lifecycle event stream
	var producer *events.Producer
	if cfg.Events.Enable {
		producer = events.NewProducer(events.ProducerConfig{Brokers: cfg.Events.Brokers})
		connectCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := producer.Connect(connectCtx); err != nil {
			log.Printf("⚠️  Event stream unavailable, continuing without it: %v", err)
		} else {
			log.Println("✅ Lifecycle event stream connected")
			defer producer.Close()
		}
		cancel()
		opts = append(opts, orchestrator.WithEventProducer(producer))
	}

	orch := orchestrator.New(gen, analyzer, executor, opts...)
	conversation := chat.NewConversation(orch)

	srv := server.NewServer(cfg.ServerPort, conversation, orch, store)
	go func() {
		if err := srv.Start(); err != nil {
			log.Printf("⚠️  HTTP server stopped: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The terminal chat session is the primary interface; the HTTP server
	// shares the same conversation.
	if err := conversation.Run(ctx, os.Stdin, os.Stdout); err != nil {
		log.Printf("⚠️  Chat session ended with error: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("⚠️  Server shutdown error: %v", err)
	}
	log.Println("👋 StackPilot stopped")
}
