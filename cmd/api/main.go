package main

import (
	"database/sql"
	"flag"
	"log/slog"
	"os"

	_ "github.com/lib/pq"

	"github.com/devraulu/scannr/pkg/api"
	"github.com/devraulu/scannr/pkg/config"
	"github.com/devraulu/scannr/pkg/crawler"
	"github.com/devraulu/scannr/pkg/logger"
	"github.com/devraulu/scannr/pkg/storage"
)

func main() {
	configPath := flag.String("config", "config.toml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("fatal: couldn't load config", slog.Any("err", err))
		os.Exit(1)
	}

	logger.InitLogger(cfg)

	pool, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		slog.Error("fatal: couldn't open database", slog.Any("err", err))
		os.Exit(1)
	}

	defer pool.Close()

	if err := storage.RunMigrations(pool); err != nil {
		slog.Error("fatal: failed to run migrations", "err", err)
		os.Exit(1)
	}

	store := storage.NewPostgresStorage(pool)
	c := crawler.New(cfg, store)

	server := api.NewServer(store, c)
	if err := server.Start(cfg.Server.Addr); err != nil {
		slog.Error("fatal: api server stopped", slog.Any("err", err))
		os.Exit(1)
	}
}
