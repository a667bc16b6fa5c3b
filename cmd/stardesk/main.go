package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/edoardoferri/stardesk/internal/agentruntime"
	"github.com/edoardoferri/stardesk/internal/chat"
	"github.com/edoardoferri/stardesk/internal/config"
	"github.com/edoardoferri/stardesk/internal/httpapi"
	"github.com/edoardoferri/stardesk/internal/memory"
	"github.com/edoardoferri/stardesk/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	ctx := context.Background()
	stores, err := memory.NewStores(ctx, memory.StoreConfig{
		Backend:          cfg.MemoryBackend,
		AWSRegion:        cfg.AWSRegion,
		SessionTable:     cfg.SessionTable,
		EventTable:       cfg.EventTable,
		MemoryNamePrefix: cfg.MemoryNamePrefix,
		DatabaseURL:      cfg.DatabaseURL,
	})
	if err != nil {
		log.Fatalf("memory store init failed: %v", err)
	}
	defer stores.Close()
	log.Printf("memory backend: %s", stores.Backend)

	manager := memory.NewManager(ctx, stores.Events, stores.Sessions,
		log.New(os.Stdout, "[memory] ", log.LstdFlags))
	if !manager.Available() {
		log.Printf("conversation memory unavailable, continuing degraded")
	}

	adapter, err := agentruntime.NewAdapter(agentruntime.Config{
		Mode:    cfg.RuntimeMode,
		URL:     cfg.RuntimeURL,
		Token:   cfg.RuntimeToken,
		Timeout: cfg.RuntimeTimeout,
	})
	if err != nil {
		log.Fatalf("agent runtime init failed: %v", err)
	}

	chatService := chat.New(manager, adapter, metrics,
		log.New(os.Stdout, "[chat] ", log.LstdFlags))

	api := httpapi.New(cfg, manager, chatService, metrics)
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	go func() {
		log.Printf("server listening on %s", cfg.BindAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Printf("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
		_ = httpServer.Close()
	}

	log.Printf("shutdown complete")
}
