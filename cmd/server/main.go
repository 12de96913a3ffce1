package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/repolens/repolens/internal/api"
	"github.com/repolens/repolens/internal/gitrepo"
	"github.com/repolens/repolens/internal/graph"
	"github.com/repolens/repolens/internal/storage"
)

// initLogger configures the global slog default with JSON output.
func initLogger(level string) {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{
		Level:     lvl,
		AddSource: lvl == slog.LevelDebug,
	}
	h := slog.NewJSONHandler(os.Stdout, opts)
	slog.SetDefault(slog.New(h))
}

// envOrDefault resolves a configuration value with the priority:
//
//	flag (if explicitly set, i.e. differs from defaultVal) > env var > default.
func envOrDefault(envKey, flagVal, defaultVal string) string {
	if flagVal != defaultVal {
		return flagVal
	}
	if v := os.Getenv(envKey); v != "" {
		return v
	}
	return defaultVal
}

func main() {
	// Optional .env file in the working directory.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("warning: could not load .env: %v", err)
	}

	// ---- Flags -----------------------------------------------------------
	dbPathFlag := flag.String("db-path", "./repolens.db", "Path to SQLite database file")
	portFlag := flag.Int("port", 8080, "HTTP server port")
	logLevel := flag.String("log-level", "info", "Log level (debug|info|warn|error)")
	cloneDirFlag := flag.String("clone-dir", os.TempDir(), "Base directory for temporary repository clones")
	maxRepoMBFlag := flag.Int("max-repo-mb", 512, "Maximum cloned repository size in MiB (0 = unlimited)")
	flag.Parse()

	// Resolve config: flag > env var > default.
	dbPath := envOrDefault("REPOLENS_DB_PATH", *dbPathFlag, "./repolens.db")
	portStr := envOrDefault("REPOLENS_PORT", strconv.Itoa(*portFlag), "8080")
	port, err := strconv.Atoi(portStr)
	if err != nil {
		log.Fatalf("invalid port value %q: %v", portStr, err)
	}
	cloneDir := envOrDefault("REPOLENS_CLONE_DIR", *cloneDirFlag, os.TempDir())
	maxRepoStr := envOrDefault("REPOLENS_MAX_REPO_MB", strconv.Itoa(*maxRepoMBFlag), "512")
	maxRepoMB, err := strconv.Atoi(maxRepoStr)
	if err != nil {
		log.Fatalf("invalid max-repo-mb value %q: %v", maxRepoStr, err)
	}

	initLogger(envOrDefault("REPOLENS_LOG_LEVEL", *logLevel, "info"))

	// ---- Storage ---------------------------------------------------------
	store, err := storage.New(dbPath)
	if err != nil {
		log.Fatalf("failed to initialise storage: %v", err)
	}

	// ---- Graph Index -----------------------------------------------------
	// Preload the most recent persisted analysis, if any.
	ctx := context.Background()
	index := graph.NewIndex()
	if rec, g, err := store.GetLatestAnalysis(ctx); err == nil {
		index.Load(g)
		slog.Info("loaded previous analysis",
			"analysis_id", rec.ID,
			"source", rec.Source,
			"nodes", rec.NodeCount,
			"edges", rec.EdgeCount,
		)
	} else if !errors.Is(err, storage.ErrNotFound) {
		log.Fatalf("failed to load latest analysis: %v", err)
	}
	nodeCount := index.NodeCount()
	edgeCount := index.EdgeCount()

	// ---- SSE Broadcaster -------------------------------------------------
	sse := api.NewSSEBroadcaster()

	// ---- Repository cloner -----------------------------------------------
	cloner := gitrepo.NewCloner(cloneDir, maxRepoMB)

	// ---- HTTP Server -----------------------------------------------------
	srv := api.NewServer(store, index, sse, cloner)

	// ---- Startup banner --------------------------------------------------
	banner := fmt.Sprintf(`
═══════════════════════════════
 REPOLENS — Dependency Graphs
 DB:   %s
 Port: %d
 Nodes loaded: %d
 Edges loaded: %d
═══════════════════════════════`, dbPath, port, nodeCount, edgeCount)
	fmt.Println(banner)

	slog.Info("repolens starting",
		"db_path", dbPath,
		"port", port,
		"clone_dir", cloneDir,
		"nodes", nodeCount,
		"edges", edgeCount,
	)

	srv.RegisterRoutes()

	addr := fmt.Sprintf(":%d", port)

	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	// ---- Graceful shutdown -----------------------------------------------
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig.String())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	if err := store.Close(); err != nil {
		slog.Error("storage close error", "error", err)
	}

	slog.Info("repolens shutdown complete")
}
