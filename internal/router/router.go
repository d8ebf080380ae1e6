// Package router wires handlers, middleware groups and the metrics
// endpoint onto the Echo instance.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/dquispe/cineticket/internal/config"
	"github.com/dquispe/cineticket/internal/handler"
	"github.com/dquispe/cineticket/internal/middleware"
	"github.com/dquispe/cineticket/internal/model"
)

// Handlers bundles everything the router mounts.
type Handlers struct {
	Auth        *handler.AuthHandler
	Reservation *handler.ReservationHandler
	Seat        *handler.SeatHandler
	Admin       *handler.AdminHandler
}

// Register mounts all routes. Public browse endpoints need no token; the
// purchase workflow requires a customer or admin token; maintenance
// endpoints require ADMIN.
func Register(e *echo.Echo, h Handlers, cfg config.Config, rdb *redis.Client) {
	e.Validator = handler.NewValidator()

	e.GET("/healthz", handler.Health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	rl := middleware.RateLimit(config.LoadRateLimitConfig(), rdb)

	auth := e.Group("/v1/auth", rl)
	auth.POST("/register", h.Auth.Register)
	auth.POST("/login", h.Auth.Login)
	auth.POST("/refresh", h.Auth.Refresh)

	// Seat maps and occupancy are browsable without a session.
	pub := e.Group("/v1", rl)
	pub.GET("/cinemas/:cinemaId/showtimes/:showtimeId/seats", h.Seat.Seats)
	pub.GET("/showtimes/:showtimeId/occupancy", h.Seat.Occupancy)

	protected := e.Group("/v1", middleware.JWTAuth(cfg.JWTSecret), rl)
	protected.Use(middleware.RequireRole(model.RoleCustomer, model.RoleAdmin))
	protected.GET("/me", h.Auth.Me)
	protected.POST("/auth/logout", h.Auth.Logout)
	protected.POST("/reservations", h.Reservation.Create)
	protected.GET("/reservations", h.Reservation.List)
	protected.GET("/reservations/:id", h.Reservation.Get)
	protected.POST("/reservations/:id/confirm", h.Reservation.Confirm)
	protected.POST("/reservations/:id/cancel", h.Reservation.Cancel)
	protected.POST("/reservations/:id/pay", h.Reservation.Pay)

	admin := e.Group("/v1/admin", middleware.JWTAuth(cfg.JWTSecret), middleware.RequireRole(model.RoleAdmin))
	admin.POST("/cleanup/expired", h.Admin.CleanupExpired)
	admin.POST("/cleanup/pending", h.Admin.CleanupPending)
	admin.DELETE("/movies/:movieId/reservations", h.Admin.CleanupMovie)
	admin.GET("/showtimes/:showtimeId/reservations", h.Admin.ShowtimeReservations)
}
