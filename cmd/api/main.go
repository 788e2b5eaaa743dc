package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/safar/sellanything/internal/config"
	"github.com/safar/sellanything/internal/docstore"
	"github.com/safar/sellanything/internal/events"
	"github.com/safar/sellanything/internal/httpx"
	"github.com/safar/sellanything/internal/logging"
	"github.com/safar/sellanything/internal/models"
	"github.com/safar/sellanything/internal/seed"
	"github.com/safar/sellanything/internal/store"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Load config: %v", err)
	}

	log := logging.New(cfg.Log)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	be, err := docstore.Open(ctx, cfg)
	if err != nil {
		log.Fatalf("Open %s store: %v", cfg.Store.Backend, err)
	}
	defer be.Close()
	log.WithField("backend", cfg.Store.Backend).Info("Store ready")

	var publisher events.Publisher = events.Noop{}
	if len(cfg.Kafka.Brokers) > 0 {
		k := events.NewKafka(cfg.Kafka.Brokers, cfg.Kafka.TopicPrefix, "sellanything-api", 1024, log)
		k.Start()
		defer k.Close()
		publisher = k
	}

	roles := models.RoleSet(0)
	if cfg.NewUserRoles == "all" {
		roles = models.AllRoles()
	}
	opts := []store.Option{
		store.WithLogger(log),
		store.WithPublisher(publisher),
		store.WithNewUserRoles(roles),
	}
	if cfg.Store.UseIndex {
		opts = append(opts, store.WithIndex(be.Index))
	}
	repo := store.New(be.Store, opts...)

	if cfg.Store.UseIndex {
		if err := repo.RebuildIndex(ctx); err != nil {
			log.WithError(err).Warn("Rebuild index; listings will scan")
		}
	}

	if cfg.SeedDemo {
		seeded, err := seed.Demo(ctx, repo, be.Store)
		if err != nil {
			log.Fatalf("Seed demo data: %v", err)
		}
		if seeded {
			log.Info("Seeded demo data")
		}
	}

	router := httpx.NewRouter(log)
	h := &httpx.Handler{
		Repo:        repo,
		Auth:        httpx.NewAuth(cfg.Auth),
		MapsEnabled: cfg.MapsAPIKey != "",
		Log:         log,
	}
	h.Register(router)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Infof("Server starting on port %s", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server error: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("Shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("Server shutdown")
	}
}
