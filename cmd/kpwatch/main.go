package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"gopkg.in/natefinch/lumberjack.v2"

	"kpwatch/internal/bot"
	"kpwatch/internal/config"
	"kpwatch/internal/fetcher"
	"kpwatch/internal/publish"
	"kpwatch/internal/scheduler"
	"kpwatch/internal/storage"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		return 1
	}

	log, closeLog := newLogger(cfg.LogLevel, cfg.LogFile)
	defer func() { _ = closeLog() }()

	searches, err := config.LoadSearches(cfg.SearchesFile)
	if err != nil {
		log.Error("load searches", "path", cfg.SearchesFile, "error", err)
		return 1
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, err := openStore(ctx, cfg)
	if err != nil {
		log.Error("open state store", "backend", cfg.StateBackend, "error", err)
		return 1
	}
	defer func() { _ = store.Close() }()

	mirror, err := storage.NewFileMirror(cfg.DataDir)
	if err != nil {
		log.Error("create local mirror", "path", cfg.DataDir, "error", err)
		return 1
	}

	var sender bot.Sender = bot.LogSender{Log: log}
	if !cfg.DryRun {
		b, err := bot.New(cfg.TelegramBotToken, cfg.TelegramChatID, log)
		if err != nil {
			log.Error("create bot", "error", err)
			return 1
		}
		sender = b
	}

	src := fetcher.New(http.DefaultClient,
		fetcher.WithTimeout(cfg.FetchTimeout),
		fetcher.WithUserAgent(cfg.UserAgent),
	)
	gate := publish.New(store, mirror, cfg.PublishAttempts, cfg.PublishBackoff, log)
	disp := bot.NewDispatcher(sender, bot.DispatcherConfig{
		Interval:  cfg.SendInterval,
		MaxLength: cfg.MessageLimit,
		Separator: cfg.SeparatorText,
	}, log)

	sched := scheduler.New(searches, scheduler.Deps{
		Source:    src,
		Loader:    store,
		Publisher: gate,
		Notifier:  disp,
	}, cfg.Eviction(), log)

	if cfg.Schedule != "" {
		if err := sched.Run(ctx, cfg.Schedule); err != nil {
			log.Error("run scheduler", "error", err)
			return 1
		}
		return 0
	}

	if _, err := sched.RunOnce(ctx); err != nil {
		if errors.Is(err, publish.ErrPublishFailed) {
			// Nothing was announced; the next run will pick the listings up again.
			return 0
		}
		log.Error("run", "error", err)
		return 1
	}
	return 0
}

func openStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	if cfg.StateBackend == config.BackendPostgres {
		pg, err := storage.NewPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return pg, nil
	}
	if dir := filepath.Dir(cfg.DatabasePath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}
	db, err := storage.NewSQLite(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}
	return db, nil
}

func newLogger(level, file string) (*slog.Logger, func() error) {
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

	var w io.Writer = os.Stderr
	closeFn := func() error { return nil }
	if file != "" {
		lj := &lumberjack.Logger{
			Filename:   file,
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     28,
		}
		w = io.MultiWriter(os.Stderr, lj)
		closeFn = lj.Close
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})), closeFn
}
