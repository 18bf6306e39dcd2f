package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/emilythestrangee/qna-forum/backend/internal/acceptance"
	"github.com/emilythestrangee/qna-forum/backend/internal/config"
	"github.com/emilythestrangee/qna-forum/backend/internal/database"
	"github.com/emilythestrangee/qna-forum/backend/internal/handlers"
	"github.com/emilythestrangee/qna-forum/backend/internal/logger"
	"github.com/emilythestrangee/qna-forum/backend/internal/notify"
	"github.com/emilythestrangee/qna-forum/backend/internal/reputation"
	"github.com/emilythestrangee/qna-forum/backend/internal/server"
	"github.com/emilythestrangee/qna-forum/backend/internal/voting"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Environment)
	defer func() { _ = log.Sync() }()
	log.Info("config loaded")

	db, err := database.New(cfg.DB, log)
	if err != nil {
		log.Fatalw("failed to initialize database", "error", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Errorw("failed to close database", "error", err)
		}
	}()

	gormDB := db.GetDB()
	notifications := notify.NewService(gormDB, log, cfg.Notifications.DedupWindow)
	rep := reputation.NewLedger(gormDB, log)
	votes := voting.NewService(gormDB, rep, notifications, log, cfg.Voting.MaxRetries)
	accept := acceptance.NewManager(gormDB, rep, votes.Ledger(), notifications, log)

	scheduler, err := notify.StartSweeper(notifications, cfg.Notifications.SweepCron, cfg.Notifications.Retention, log)
	if err != nil {
		log.Fatalw("failed to start notification sweeper", "error", err)
	}
	defer scheduler.Stop()

	handler := handlers.NewHandler(handlers.Services{
		DB:            gormDB,
		Votes:         votes,
		Acceptance:    accept,
		Notifications: notifications,
		Reputation:    rep,
	}, log)
	srv := server.NewServer(cfg, db, handler, log)

	go func() {
		log.Infow("server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			log.Errorw("failed to start http server", "error", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Errorw("failed to shutdown http server", "error", err)
		return
	}

	log.Info("shutting down")
}
