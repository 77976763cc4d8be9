package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"finsim/internal/config"
	"finsim/internal/questions"
	"finsim/internal/session"
	"finsim/internal/sim"
	"finsim/internal/store"
)

// The worker sweeps sessions whose quarter has been open longer than the
// configured deadline and closes them. Closes carry the quarter they target,
// so a sweep racing a player-triggered close is a no-op.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.LoadAPIFromEnv()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if cfg.DatabaseURL == "" {
		logger.Error("DATABASE_URL is required: the worker needs a shared session store")
		os.Exit(1)
	}

	bank, err := questions.Load(nil)
	if err != nil {
		logger.Error("load question bank", "err", err)
		os.Exit(1)
	}
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

	params := sim.DefaultParams()
	params.CarryDebt = cfg.CarryDebt
	svc := session.NewService(pg, bank, sim.NewEngine(params), logger)

	if strings.EqualFold(strings.TrimSpace(os.Getenv("FINSIM_WORKER_RUN_ONCE")), "true") {
		sweep(ctx, logger, svc, pg, cfg.QuarterDeadline)
		logger.Info("worker run-once completed")
		return
	}

	ticker := time.NewTicker(cfg.QuarterDeadline / 4)
	defer ticker.Stop()

	logger.Info("worker started", "quarter_deadline", cfg.QuarterDeadline.String())
	for {
		select {
		case <-ctx.Done():
			logger.Info("worker shutdown")
			return
		case <-ticker.C:
			sweep(ctx, logger, svc, pg, cfg.QuarterDeadline)
		}
	}
}

func sweep(ctx context.Context, logger *slog.Logger, svc *session.Service, lister session.Lister, deadline time.Duration) {
	ids, err := lister.ListIDs(ctx)
	if err != nil {
		logger.Error("list sessions failed", "err", err)
		return
	}
	now := time.Now().UTC()
	for _, id := range ids {
		sess, err := svc.GetSession(ctx, id)
		if err != nil {
			logger.Error("session read failed", "session_id", id, "err", err)
			continue
		}
		if sess.Status == session.StatusFinished {
			continue
		}
		if now.Sub(sess.LastUpdate) < deadline {
			continue
		}
		closed, err := svc.CloseQuarter(ctx, id, sess.CurrentQuarter)
		if errors.Is(err, session.ErrQuarterClosed) || errors.Is(err, session.ErrSessionFinished) {
			continue
		}
		if err != nil {
			logger.Error("deadline close failed", "session_id", id, "err", err)
			continue
		}
		if closed.Status != session.StatusFinished {
			if _, err := svc.AssignQuarterQuestions(ctx, id); err != nil {
				logger.Error("question assignment failed", "session_id", id, "err", err)
			}
		}
		logger.Info("deadline close", "session_id", id, "status", closed.Status, "current_quarter", closed.CurrentQuarter)
	}
}
