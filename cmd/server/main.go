/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the carbon bookkeeping API server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env, parse command-line flags
  2. Initialize logger
  3. Load engine config and parameter tables
  4. Initialize run store (SQLite or process memory)
  5. Create API handler and router
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS (environment fallback in brackets):
  -port     HTTP server port [CBOOK_PORT] (default: 8080)
  -store    Run store backend [CBOOK_STORE] (sqlite, memory; default: sqlite)
  -db       SQLite database path [CBOOK_DB] (default: cbook.db)
            Use ":memory:" for in-memory database
  -config   YAML engine config [CBOOK_CONFIG] (default: built-in constants)
  -params   Parameter file or CSV directory [CBOOK_PARAMS]
            (default: the amazon preset)
  -preset   Named preset when -params is empty (amazon, colombia, dry-forest)
  -debug    Development logging

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  # Run with file database and Colombian parameters
  ./server -db="./data/cbook.db" -params=./parameters/colombia/

  # Run with in-memory database
  ./server -db=":memory:" -preset=dry-forest

  # Keep runs in process memory only
  ./server -store=memory

SEE ALSO:
  - api/server.go: Router configuration
  - factory/config.go: YAML engine config
  - store/sqlite/sqlite.go: Database implementation
  - carbon/store/memory.go: Process-memory store
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/warp/carbon-book/api"
	"github.com/warp/carbon-book/carbon"
	"github.com/warp/carbon-book/carbon/store"
	"github.com/warp/carbon-book/factory"
	"github.com/warp/carbon-book/landcover"
	"github.com/warp/carbon-book/log"
	"github.com/warp/carbon-book/store/sqlite"
)

func main() {
	// A missing .env is fine; the environment and flags still apply.
	_ = godotenv.Load()

	// Flags
	port := flag.Int("port", getEnvInt("CBOOK_PORT", 8080), "HTTP server port")
	backend := flag.String("store", getEnv("CBOOK_STORE", "sqlite"), "run store backend (sqlite, memory)")
	dbPath := flag.String("db", getEnv("CBOOK_DB", "cbook.db"), "SQLite database path")
	configPath := flag.String("config", getEnv("CBOOK_CONFIG", ""), "YAML engine config")
	paramsPath := flag.String("params", getEnv("CBOOK_PARAMS", ""), "parameter file or CSV directory")
	preset := flag.String("preset", "amazon", "parameter preset when -params is empty")
	debug := flag.Bool("debug", false, "development logging")
	flag.Parse()

	if err := log.Init(*debug); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer log.Sync()

	cfg, err := factory.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	params, err := loadParams(*paramsPath, *preset)
	if err != nil {
		log.Fatalf("Failed to load parameters: %v", err)
	}
	log.Infof("Loaded %d classes and %d products", len(params.Classes()), len(params.Products()))

	// Initialize store
	var runs carbon.PoolStore
	switch *backend {
	case "memory":
		runs = store.NewMemory()
	case "sqlite":
		db, err := sqlite.New(*dbPath)
		if err != nil {
			log.Fatalf("Failed to initialize database: %v", err)
		}
		defer db.Close()
		runs = db
	default:
		log.Fatalf("Unknown store %q", *backend)
	}

	handler := api.NewHandler(runs, cfg, params)
	router := api.NewRouter(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
		ErrorLog:     zap.NewStdLog(log.GetZapLogger()),
	}

	go func() {
		log.Infow("server starting",
			"addr", server.Addr,
			"store", *backend,
			"classes", len(params.Classes()),
			"window", fmt.Sprintf("%s-%s", cfg.ForceStart, cfg.ForceEnd),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Infow("server stopped")
}

func loadParams(path, preset string) (*carbon.Params, error) {
	if path != "" {
		return factory.LoadParams(path)
	}
	build, ok := landcover.Presets[preset]
	if !ok {
		return nil, fmt.Errorf("unknown preset %q", preset)
	}
	return factory.ParseParams([]byte(build()))
}

func getEnv(key, fallback string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return fallback
}
