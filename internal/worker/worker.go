// Package worker runs the scheduled maintenance sweeps over asynq. A
// cron-style scheduler enqueues the tasks and a small server consumes
// them, so sweeps keep running even when no request traffic arrives.
package worker

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/dquispe/cineticket/internal/config"
	"github.com/dquispe/cineticket/internal/logger"
	"github.com/dquispe/cineticket/internal/service"
)

// Task type names, also visible in asynq tooling.
const (
	TypeSweepExpiredHolds = "cleanup:expired_holds"
	TypeDailyCleanup      = "cleanup:daily"
)

// Cron expressions for the two sweeps.
const (
	sweepSchedule = "*/5 * * * *"
	dailySchedule = "0 3 * * *"
)

// Worker owns the asynq server and scheduler.
type Worker struct {
	srv       *asynq.Server
	scheduler *asynq.Scheduler
	cleanup   *service.CleanupService
}

// New builds a worker backed by the same Redis instance as the cache.
func New(cleanup *service.CleanupService) *Worker {
	redisOpt := asynq.RedisClientOpt{
		Addr:     config.RedisAddr(),
		Password: config.RedisPassword(),
		DB:       config.RedisDB(),
	}
	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: 2,
		Logger:      asynqLogger{},
	})
	scheduler := asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{
		Logger: asynqLogger{},
	})
	return &Worker{srv: srv, scheduler: scheduler, cleanup: cleanup}
}

// Run registers the schedules and blocks serving tasks until Shutdown.
func (w *Worker) Run() error {
	if _, err := w.scheduler.Register(sweepSchedule, asynq.NewTask(TypeSweepExpiredHolds, nil)); err != nil {
		return err
	}
	if _, err := w.scheduler.Register(dailySchedule, asynq.NewTask(TypeDailyCleanup, nil)); err != nil {
		return err
	}
	if err := w.scheduler.Start(); err != nil {
		return err
	}

	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeSweepExpiredHolds, w.handleSweepExpiredHolds)
	mux.HandleFunc(TypeDailyCleanup, w.handleDailyCleanup)
	return w.srv.Run(mux)
}

// Shutdown stops the scheduler and drains in-flight tasks.
func (w *Worker) Shutdown() {
	w.scheduler.Shutdown()
	w.srv.Shutdown()
}

func (w *Worker) handleSweepExpiredHolds(ctx context.Context, _ *asynq.Task) error {
	res, err := w.cleanup.CleanupExpiredReservations(ctx)
	if err != nil {
		return err
	}
	if res.CleanedCount > 0 {
		logger.Info("expired holds swept", zap.Int64("count", res.CleanedCount))
	}
	return nil
}

func (w *Worker) handleDailyCleanup(ctx context.Context, _ *asynq.Task) error {
	_, err := w.cleanup.PerformDailyCleanup(ctx)
	return err
}

// asynqLogger routes asynq's own messages through zap.
type asynqLogger struct{}

func (asynqLogger) Debug(args ...interface{}) { logger.Debug(sprint(args...)) }
func (asynqLogger) Info(args ...interface{})  { logger.Info(sprint(args...)) }
func (asynqLogger) Warn(args ...interface{})  { logger.Warn(sprint(args...)) }
func (asynqLogger) Error(args ...interface{}) { logger.Error(sprint(args...)) }
func (asynqLogger) Fatal(args ...interface{}) { logger.Fatal(sprint(args...)) }

func sprint(args ...interface{}) string { return fmt.Sprint(args...) }
