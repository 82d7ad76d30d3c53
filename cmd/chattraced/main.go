// Chattraced is a chat daemon with Langfuse trace instrumentation.
//
// This binary starts the chattrace HTTP server: an OpenAI-compatible chat
// pipeline where every conversation turn is recorded as a Langfuse trace.
//
// Configuration is loaded from environment variables. See internal/config
// for details.
//
// Usage:
//
//	# Start server with defaults
//	chattraced
//
//	# Configure via environment
//	SERVER_PORT=9090 CHAT_API_KEY=sk-... LANGFUSE_ENABLED=true chattraced
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

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/chattrace/internal/chat"
	"github.com/fyrsmithlabs/chattrace/internal/config"
	"github.com/fyrsmithlabs/chattrace/internal/langfuse"
	"github.com/fyrsmithlabs/chattrace/internal/logging"
	"github.com/fyrsmithlabs/chattrace/internal/server"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	// Parse command-line arguments
	flag.Parse()
	args := flag.Args()

	// Handle subcommands
	if len(args) > 0 {
		switch args[0] {
		case "version":
			printVersion()
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			fmt.Fprintf(os.Stderr, "\nUsage:\n")
			fmt.Fprintf(os.Stderr, "  chattraced           Start the chattrace daemon\n")
			fmt.Fprintf(os.Stderr, "  chattraced version   Show version information\n")
			os.Exit(1)
		}
	}

	// Local development convenience; a missing .env file is not an error.
	_ = godotenv.Load()

	// Setup signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Printf("Received signal %v, shutting down gracefully...", sig)
		cancel()
	}()

	// Run server
	if err := run(ctx); err != nil {
		log.Fatalf("Server error: %v", err)
	}

	log.Println("Server shutdown complete")
}

// printVersion prints version information
func printVersion() {
	fmt.Printf("chattraced by Fyrsmith Labs\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run starts the chattrace server and blocks until context is cancelled.
//
// This function initializes all dependencies and services:
//  1. Loads and validates configuration
//  2. Initializes logger
//  3. Initializes the Langfuse tracing facade (fail-open)
//  4. Builds the chat pipeline on the OpenAI backend
//  5. Starts the HTTP server
//  6. Performs graceful shutdown on context cancellation
//
// Returns nil on graceful shutdown.
func run(ctx context.Context) error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// Initialize logger
	logCfg, err := logging.ConfigFromEnv()
	if err != nil {
		return fmt.Errorf("invalid logging configuration: %w", err)
	}
	logger, err := logging.New(logCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Sync() // Best-effort sync on shutdown
	}()

	logger.Info("Starting chattraced",
		zap.String("version", version),
		zap.Int("port", cfg.Server.Port),
		zap.String("model", cfg.Chat.Model),
		zap.Duration("shutdown_timeout", cfg.Server.ShutdownTimeout.Duration()))

	// Initialize tracing. All failure modes disable tracing and keep the
	// daemon running.
	lfCfg, err := langfuse.ConfigFromEnv()
	if err != nil {
		logger.Warn("invalid langfuse configuration, tracing disabled", zap.Error(err))
		lfCfg = langfuse.NewDefaultConfig()
	}
	tracer := langfuse.New(lfCfg, logger)
	tracer.Initialize(ctx)

	// Build the chat pipeline
	completer, err := chat.NewOpenAICompleter(cfg.Chat)
	if err != nil {
		return fmt.Errorf("failed to initialize chat backend: %w", err)
	}
	chatSvc := chat.NewService(completer, tracer, logger)

	// Start HTTP server
	srv, err := server.NewServer(chatSvc, logger, &server.Config{
		Host: "0.0.0.0",
		Port: cfg.Server.Port,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize http server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	// Graceful shutdown: stop accepting requests, then flush traces.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown failed", zap.Error(err))
	}
	if err := tracer.Shutdown(shutdownCtx); err != nil {
		logger.Error("trace shutdown failed", zap.Error(err))
	}

	return nil
}
