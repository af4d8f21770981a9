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

	"fleetnav/internal/api"
	"fleetnav/internal/buildinfo"
	"fleetnav/internal/config"
	"fleetnav/internal/webhooks"
)

func main() {
	cfg := config.ServerFromEnv()
	srvDeps, err := api.NewServer(cfg)
	if err != nil {
		log.Fatalf("failed to init server: %v", err)
	}

	handler := logMiddleware(api.Instrument(api.RateLimit(cfg.RateRPS, cfg.RateBurst, srvDeps.Routes())))
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if cfg.WebhookURL != "" {
		srvDeps.StartWebhooks(ctx, webhooks.NewForwarder(cfg.WebhookURL, cfg.WebhookSecret, cfg.WebhookMaxAttempts), cfg.WebhookEvents)
		log.Printf("[fleetd] forwarding events to %s", cfg.WebhookURL)
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("[fleetd] shutdown: %v", err)
		}
	}()

	log.Printf("[fleetd] %s listening on %s (policy=%s robots=%d pending=%d)",
		buildinfo.Version, cfg.Addr, srvDeps.Policy, len(srvDeps.Sim.Robots()), len(srvDeps.Sim.Pending()))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server error: %v", err)
	}
	log.Printf("[fleetd] stopped")
}

func logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %s %v", r.RemoteAddr, r.Method, r.URL.Path, time.Since(start))
	})
}
