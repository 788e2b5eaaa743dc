package main

import (
	"context"
	"os"

	"github.com/safar/sellanything/internal/config"
	"github.com/safar/sellanything/internal/database"
	"github.com/safar/sellanything/internal/logging"
	"github.com/sirupsen/logrus"
)

func main() {
	if len(os.Args) < 2 {
		logrus.Fatal("Usage: go run scripts/run_migrations.go [up|down]")
	}

	direction, err := database.ParseDirection(os.Args[1])
	if err != nil {
		logrus.Fatal(err)
	}

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Load config: %v", err)
	}
	log := logging.New(cfg.Log)

	ctx := context.Background()
	db, err := database.NewConnection(ctx, &cfg.Database)
	if err != nil {
		log.Fatalf("Connect to database: %v", err)
	}
	defer db.Close()

	applied, err := database.Migrate(ctx, db, "migrations", direction)
	for _, name := range applied {
		log.WithField("migration", name).Info("Applied migration")
	}
	if err != nil {
		log.Fatalf("Migrate %s: %v", direction, err)
	}

	log.Infof("Successfully ran %d migration(s) %s", len(applied), direction)
}
