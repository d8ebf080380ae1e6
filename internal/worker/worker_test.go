package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dquispe/cineticket/internal/service"
)

type stubSweeper struct {
	n   int64
	err error
}

func (s *stubSweeper) DeleteExpired(ctx context.Context) (int64, []string, error) {
	return s.n, nil, s.err
}

type stubExpirer struct {
	n   int64
	err error
}

func (s *stubExpirer) ExpireOldPending(ctx context.Context, cutoff time.Time) (int64, error) {
	return s.n, s.err
}

func TestHandleSweepExpiredHolds(t *testing.T) {
	cleanup := service.NewCleanupService(&stubSweeper{n: 3}, &stubExpirer{}, nil, 0)
	w := &Worker{cleanup: cleanup}

	assert.NoError(t, w.handleSweepExpiredHolds(context.Background(), nil))
}

func TestHandleSweepExpiredHoldsPropagatesError(t *testing.T) {
	boom := errors.New("db gone")
	cleanup := service.NewCleanupService(&stubSweeper{err: boom}, &stubExpirer{}, nil, 0)
	w := &Worker{cleanup: cleanup}

	assert.ErrorIs(t, w.handleSweepExpiredHolds(context.Background(), nil), boom)
}

func TestHandleDailyCleanup(t *testing.T) {
	cleanup := service.NewCleanupService(&stubSweeper{n: 2}, &stubExpirer{n: 1}, nil, 0)
	w := &Worker{cleanup: cleanup}

	assert.NoError(t, w.handleDailyCleanup(context.Background(), nil))
}
