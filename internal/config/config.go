// Package config loads application configuration from environment variables.
package config

import (
	"log"
	"os"
	"strconv"
)

// Config holds all runtime configuration values. Each field corresponds to an
// environment variable: strings for identifiers and secrets, ints for
// durations and costs.
type Config struct {
	Env                string // application environment ("dev", "prod")
	Port               string // HTTP port to listen on
	DBUser             string // database username
	DBPass             string // database password (optional)
	DBHost             string // database host address
	DBPort             string // database port number
	DBName             string // database name
	JWTSecret          string // secret used to sign JWTs
	AccessTTLMin       int    // access token time-to-live in minutes
	RefreshTTLDays     int    // refresh token time-to-live in days
	BcryptCost         int    // bcrypt cost for password hashing
	HoldTTLMin         int    // minutes a seat reservation is held before expiring
	PendingTicketTTLHr int    // hours a pending ticket may linger before it is swept
	PaymentDelayMs     int    // simulated payment gateway latency in milliseconds
}

// Load reads configuration from the environment. Required variables are
// enforced by must() and missing values abort startup with a fatal log.
// The hold, pending-ticket and payment knobs default to production values
// when unset so local runs only need the core variables.
func Load() Config {
	return Config{
		Env:                must("APP_ENV"),
		Port:               must("APP_PORT"),
		DBUser:             must("DB_USER"),
		DBPass:             os.Getenv("DB_PASS"),
		DBHost:             must("DB_HOST"),
		DBPort:             must("DB_PORT"),
		DBName:             must("DB_NAME"),
		JWTSecret:          must("JWT_SECRET"),
		AccessTTLMin:       mustInt("ACCESS_TOKEN_TTL_MIN"),
		RefreshTTLDays:     mustInt("REFRESH_TOKEN_TTL_DAYS"),
		BcryptCost:         mustInt("BCRYPT_COST"),
		HoldTTLMin:         intOr("SEAT_HOLD_TTL_MIN", 10),
		PendingTicketTTLHr: intOr("PENDING_TICKET_TTL_HOURS", 24),
		PaymentDelayMs:     intOr("PAYMENT_DELAY_MS", 1500),
	}
}

// must retrieves a required environment variable or aborts the process.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// mustInt is like must() but converts the value into an integer.
func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}

// intOr reads an optional integer variable, falling back to def when the
// variable is unset or malformed.
func intOr(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
