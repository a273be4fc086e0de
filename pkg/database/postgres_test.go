package database

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/course-ledger-api/pkg/config"
)

type countingPinger struct {
	failures int
	calls    int
}

func (p *countingPinger) PingContext(context.Context) error {
	p.calls++
	if p.calls <= p.failures {
		return errors.New("connection refused")
	}
	return nil
}

func TestDSNCarriesApplicationName(t *testing.T) {
	dsn := DSN(config.DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", Name: "ledger", SSLMode: "disable"})
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=ledger sslmode=disable application_name=course-ledger-api", dsn)
}

func TestWaitForPingRetriesUntilReady(t *testing.T) {
	p := &countingPinger{failures: 1}
	require.NoError(t, waitForPing(context.Background(), p, 3, nil))
	assert.Equal(t, 2, p.calls)
}

func TestWaitForPingGivesUp(t *testing.T) {
	p := &countingPinger{failures: 10}
	err := waitForPing(context.Background(), p, 1, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 1 attempts")
	assert.Equal(t, 1, p.calls)
}

func TestWaitForPingStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := &countingPinger{failures: 10}
	err := waitForPing(ctx, p, 5, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, p.calls)
}
