package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"carnet/internal/contact"
	contactmetrics "carnet/internal/contact/metrics"
	"carnet/internal/contact/service"
	"carnet/internal/contact/store"
	"carnet/internal/platform/config"
	"carnet/internal/platform/httpserver"
	"carnet/internal/platform/logger"
	"carnet/internal/platform/metrics"
	"carnet/internal/platform/middleware"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal service packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	contacts, cleanup, err := newStore(cfg)
	if err != nil {
		log.Error("store initialization failed", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	svc := contact.NewService(contacts,
		service.WithLogger(log),
		service.WithMetrics(contactmetrics.New()),
		service.WithPhonePolicy(cfg.PhonePolicy),
		service.WithExportBOM(cfg.ExportBOM),
	)
	h := contact.NewHandler(svc, log)

	httpMetrics := metrics.NewHTTP()

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(httpMetrics.Middleware)
	r.Use(middleware.RequestLogger(log))

	h.Register(r)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	srv := httpserver.New(cfg.Addr, r)

	log.Info("starting carnet", "addr", cfg.Addr, "store", storeKind(cfg))

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
}

// newStore picks postgres when DATABASE_URL is set, the in-memory store
// otherwise. The cleanup closes whatever was opened.
func newStore(cfg config.Server) (service.ContactStore, func(), error) {
	if cfg.DatabaseURL == "" {
		return store.NewMemory(), func() {}, nil
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	pg := store.NewPostgres(db)
	if err := pg.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return pg, func() { _ = db.Close() }, nil
}

func storeKind(cfg config.Server) string {
	if cfg.DatabaseURL == "" {
		return "memory"
	}
	return "postgres"
}
