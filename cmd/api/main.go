package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/botbridge/chatbridge/internal/config"
	"github.com/botbridge/chatbridge/internal/handler"
	"github.com/botbridge/chatbridge/internal/model/chat"
	"github.com/botbridge/chatbridge/internal/service/ai"
	"github.com/botbridge/chatbridge/internal/service/bridge"
	"github.com/botbridge/chatbridge/internal/service/dispatch"
	"github.com/botbridge/chatbridge/internal/service/history"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	store := newHistoryStore(ctx, cfg.Store)

	// Initialize completion engine
	var engine bridge.Engine
	if cfg.AI.Enabled() {
		aiService, err := ai.NewService(ctx, cfg.AI, cfg.Bridge)
		if err != nil {
			log.Printf("warning: failed to initialize completion engine: %v", err)
			log.Println("continuing with fallback replies only - check the ARK_* environment variables")
		} else {
			engine = aiService
			log.Println("completion engine initialized successfully")
		}
	} else {
		log.Println("model credentials not configured, replies fall back to the configured text")
	}

	if cfg.ManyChat.APIKey == "" {
		log.Println("warning: MANYCHAT_API_KEY not set, ManyChat pushes will fail")
	}
	dispatcher := dispatch.New(dispatch.NewManyChatClient(nil, cfg.ManyChat.URL, cfg.ManyChat.APIKey))

	bridgeService := bridge.NewService(store, engine, dispatcher, cfg.Bridge)
	router := handler.NewRouter(bridgeService)

	startServer(ctx, cfg.Server, router)
}

// newHistoryStore selects Postgres when DATABASE_URL is configured and
// falls back to the in-memory store otherwise.
func newHistoryStore(ctx context.Context, storeCfg config.StoreConfig) chat.Store {
	if storeCfg.DatabaseURL == "" {
		log.Println("DATABASE_URL not set, using in-memory history store")
		return chat.NewMemoryStore()
	}

	pool, err := history.NewPool(ctx, storeCfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to history database: %v", err)
	}

	store, err := history.NewPostgresStore(pool)
	if err != nil {
		log.Fatalf("failed to initialize history store: %v", err)
	}
	if err := store.EnsureSchema(ctx); err != nil {
		log.Fatalf("failed to ensure history schema: %v", err)
	}

	log.Println("postgres history store initialized successfully")
	return store
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("chatbridge listening on %s", addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
