package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/dmcewen/quarterdeck/server/internal/config"
	"github.com/dmcewen/quarterdeck/server/internal/db"
	"github.com/dmcewen/quarterdeck/server/internal/httpapi"
	"github.com/dmcewen/quarterdeck/server/internal/quarterdeck/clock"
	"github.com/dmcewen/quarterdeck/server/internal/quarterdeck/opcal"
	"github.com/dmcewen/quarterdeck/server/internal/quarterdeck/service"
	"github.com/dmcewen/quarterdeck/server/internal/quarterdeck/store/sqlite"
)

func main() {
	// Optional .env for local development; missing file is fine.
	_ = godotenv.Load()

	cfg := config.FromEnv()
	logger := log.New(os.Stdout, "quarterdeck-server ", log.LstdFlags|log.LUTC)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cal, err := opcal.New(cfg.Timezone, cfg.RolloverHour)
	if err != nil {
		logger.Fatalf("calendar: %v", err)
	}
	clk := clock.System()

	database, err := db.Open(ctx, db.Config{Path: cfg.DBPath, Env: cfg.Env})
	if err != nil {
		logger.Fatalf("db open: %v", err)
	}
	defer database.Close()

	writer := db.NewWorker(database)
	defer writer.Close()

	if cfg.Env == "dev" {
		weekStart, _ := cal.Week(clk.Now())
		if err := db.SeedDev(ctx, database, weekStart.Format(opcal.DateFormat)); err != nil {
			logger.Fatalf("dev seed: %v", err)
		}
	}

	// Stores
	memberStore := sqlite.NewMemberStore(database, writer)
	qualStore := sqlite.NewQualificationStore(database, writer)
	lockupStore := sqlite.NewLockupStore(database, writer)
	presenceStore := sqlite.NewPresenceStore(database, writer)
	rosterStore := sqlite.NewRosterStore(database, writer, presenceStore)
	alertStore := sqlite.NewAlertStore(database, writer)

	// Services
	alertSvc := service.NewAlertService(alertStore, nil, clk, logger)
	engine := service.NewQualificationEngine(memberStore, qualStore, nil, clk, logger)
	lockupSvc := service.NewLockupService(service.LockupDeps{
		Lockups:  lockupStore,
		Members:  memberStore,
		Quals:    qualStore,
		Presence: presenceStore,
		Calendar: cal,
		Clock:    clk,
		Logger:   logger,
	})
	reset := service.NewDailyReset(service.ResetDeps{
		Lockups:  lockupStore,
		Members:  memberStore,
		Presence: presenceStore,
		Roster:   rosterStore,
		Calendar: cal,
		Clock:    clk,
		Alerts:   alertSvc,
		Logger:   logger,
	})
	watch := service.NewDutyWatchMonitor(service.WatchDeps{
		Lockups:           lockupStore,
		Members:           memberStore,
		Roster:            rosterStore,
		Calendar:          cal,
		Clock:             clk,
		Alerts:            alertSvc,
		Logger:            logger,
		RequiredPositions: cfg.RequiredPositions,
		LeaderPositions:   cfg.LeaderPositions,
	})

	// Converge qualifications once on boot so rule changes apply immediately.
	if _, err := engine.SyncAll(ctx); err != nil {
		logger.Printf("startup qualification sync: %v", err)
	}

	sched := service.NewScheduler(reset, watch, cal, clk, service.SchedulerConfig{
		WatchHour:       cfg.WatchAlertHour,
		WatchMinute:     cfg.WatchAlertMinute,
		CatchupInterval: time.Duration(cfg.CatchupIntervalMinutes) * time.Minute,
	}, logger)
	sched.Start(ctx)
	defer sched.Stop()

	// HTTP
	srv := httpapi.NewServer(httpapi.Dependencies{
		Logger: logger,
		Addr:   cfg.HTTPAddr,
		Lockup: lockupSvc,
		Quals:  engine,
		Alerts: alertSvc,
	})

	go func() {
		logger.Printf("listening on %s", cfg.HTTPAddr)
		if err := srv.Start(); err != nil {
			logger.Printf("server error: %v", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}
