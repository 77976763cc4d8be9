package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"finsim/internal/api"
	"finsim/internal/config"
	"finsim/internal/questions"
	"finsim/internal/session"
	"finsim/internal/sim"
	"finsim/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.LoadAPIFromEnv()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	bank, err := questions.Load(nil)
	if err != nil {
		logger.Error("load question bank", "err", err)
		os.Exit(1)
	}

	var sessionStore session.Store
	if cfg.DatabaseURL != "" {
		pool, err := store.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("db connect failed", "err", err)
			os.Exit(1)
		}
		defer pool.Close()
		pg := store.NewPostgres(pool)
		if err := pg.Init(ctx); err != nil {
			logger.Error("db init failed", "err", err)
			os.Exit(1)
		}
		sessionStore = pg
		logger.Info("using postgres session store")
	} else {
		sessionStore = store.NewMemory()
		logger.Info("using in-memory session store")
	}

	params := sim.DefaultParams()
	params.CarryDebt = cfg.CarryDebt
	svc := session.NewService(sessionStore, bank, sim.NewEngine(params), logger)

	server := api.New(logger, svc, bank)
	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	logger.Info("finsim api listening", "addr", cfg.Addr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server failed", "err", err)
		os.Exit(1)
	}
}
