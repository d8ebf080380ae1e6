package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/dquispe/cineticket/internal/cache"
	"github.com/dquispe/cineticket/internal/config"
	"github.com/dquispe/cineticket/internal/database"
	"github.com/dquispe/cineticket/internal/handler"
	"github.com/dquispe/cineticket/internal/logger"
	"github.com/dquispe/cineticket/internal/queue"
	"github.com/dquispe/cineticket/internal/repository"
	"github.com/dquispe/cineticket/internal/router"
	"github.com/dquispe/cineticket/internal/service"
	"github.com/dquispe/cineticket/internal/worker"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	logger.Set(logger.New(cfg.Env))
	defer logger.Sync()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		logger.Fatal("database connect failed", zap.Error(err))
	}
	defer db.Close()

	rdb := config.NewRedisClient()
	if rdb == nil {
		logger.Warn("redis unavailable, cache, rate limiting and worker disabled")
	}

	reservationRepo := repository.NewReservationRepo(db)
	ticketRepo := repository.NewTicketRepo(db)
	userRepo := repository.NewUserRepo(db)
	tokenRepo := repository.NewTokenRepo(db)
	txm := database.NewTxManager(db)

	occupancy := cache.NewOccupancyCache(rdb, 30*time.Second)

	reservationSvc := service.NewReservationService(
		txm, reservationRepo, ticketRepo, occupancy,
		queue.PublishTicketConfirmed,
		time.Duration(cfg.HoldTTLMin)*time.Minute,
	)
	cleanupSvc := service.NewCleanupService(
		reservationRepo, ticketRepo, occupancy,
		time.Duration(cfg.PendingTicketTTLHr)*time.Hour,
	)
	gateway := &service.SimulatedGateway{
		Delay: time.Duration(cfg.PaymentDelayMs) * time.Millisecond,
	}

	go func() {
		if err := queue.StartTicketConsumer(); err != nil {
			logger.Error("ticket consumer stopped", zap.Error(err))
		}
	}()

	var w *worker.Worker
	if rdb != nil {
		w = worker.New(cleanupSvc)
		go func() {
			if err := w.Run(); err != nil {
				logger.Error("cleanup worker stopped", zap.Error(err))
			}
		}()
	}

	e := echo.New()
	e.HideBanner = true
	router.Register(e, router.Handlers{
		Auth:        handler.NewAuthHandler(cfg, userRepo, tokenRepo),
		Reservation: handler.NewReservationHandler(reservationSvc, gateway),
		Seat:        handler.NewSeatHandler(reservationSvc),
		Admin:       handler.NewAdminHandler(reservationSvc, cleanupSvc),
	}, cfg, rdb)

	go func() {
		addr := ":" + cfg.Port
		logger.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env))
		if err := e.Start(addr); err != nil {
			logger.Info("server stopped", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if w != nil {
		w.Shutdown()
	}
	if err := e.Shutdown(ctx); err != nil {
		logger.Error("shutdown failed", zap.Error(err))
	}
}
