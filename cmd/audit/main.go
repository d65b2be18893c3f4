package main

import (
	"context"
	"database/sql"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	_ "github.com/lib/pq"

	"github.com/devraulu/scannr/pkg/config"
	"github.com/devraulu/scannr/pkg/crawler"
	"github.com/devraulu/scannr/pkg/logger"
	"github.com/devraulu/scannr/pkg/storage"
)

// One-shot audit: create a run and crawl it synchronously, without going
// through the HTTP API.
func main() {
	var (
		configPath = flag.String("config", "config.toml", "path to config file")
		domain     = flag.String("domain", "", "target domain to audit")
		keywords   = flag.String("keywords", "", "comma-separated keyword rules")
		excludes   = flag.String("excludes", "", "comma-separated exclude rules")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("fatal: couldn't load config", slog.Any("err", err))
		os.Exit(1)
	}

	logger.InitLogger(cfg)

	if *domain == "" || *keywords == "" {
		slog.Error("fatal: -domain and -keywords are required")
		os.Exit(1)
	}

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

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	appSignal := make(chan os.Signal, 1)
	signal.Notify(appSignal, syscall.SIGINT, syscall.SIGQUIT)
	go func() {
		s := <-appSignal
		slog.Info("received system signal", slog.String("signal", s.String()))
		stop()
	}()

	runID, err := store.CreateRun(ctx, *domain, "cli")
	if err != nil {
		slog.Error("fatal: couldn't create run", slog.Any("err", err))
		os.Exit(1)
	}

	c.Run(ctx, runID, *domain, splitList(*keywords), splitList(*excludes))

	run, err := store.GetRun(context.Background(), runID)
	if err != nil {
		slog.Error("fatal: couldn't read run back", slog.Any("err", err))
		os.Exit(1)
	}

	slog.Info("audit finished",
		slog.String("run_id", run.ID.String()),
		slog.String("status", string(run.Status)),
		slog.Int("pages_found", run.PagesFound),
		slog.Int("pages_scanned", run.PagesScanned),
		slog.Int("errors", run.ErrorCount),
	)
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
