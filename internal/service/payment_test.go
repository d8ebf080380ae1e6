package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSimulatedGatewayApprovesByDefault(t *testing.T) {
	gw := &SimulatedGateway{}
	assert.NoError(t, gw.Charge(context.Background(), 4500))
}

func TestSimulatedGatewayDecline(t *testing.T) {
	declined := errors.New("card declined")
	gw := &SimulatedGateway{Decline: func(uint32) error { return declined }}
	assert.ErrorIs(t, gw.Charge(context.Background(), 4500), declined)
}

func TestSimulatedGatewayHonorsContext(t *testing.T) {
	gw := &SimulatedGateway{Delay: time.Minute}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, gw.Charge(ctx, 4500), context.DeadlineExceeded)
}
