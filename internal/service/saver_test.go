package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbonduro/sitecheck/internal/domain"
	"github.com/vbonduro/sitecheck/internal/metrics"
	"github.com/vbonduro/sitecheck/internal/resilience"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// flakyGateway fails the first failures saves and records the rest.
type flakyGateway struct {
	mu       sync.Mutex
	failures int
	failErr  error
	calls    int
	saved    []*domain.Aggregate
}

func (g *flakyGateway) Load(context.Context, string) (*domain.Aggregate, error) { return nil, nil }

func (g *flakyGateway) Save(_ context.Context, a *domain.Aggregate) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.calls <= g.failures {
		if g.failErr != nil {
			return g.failErr
		}
		return errors.New("database is locked")
	}
	g.saved = append(g.saved, a)
	return nil
}

func fastExecutor() *resilience.Executor {
	return resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: time.Millisecond,
		RetryMaxBackoff:     2 * time.Millisecond,
		RetryMultiplier:     2,
	}, quietLogger())
}

func TestAsyncSaverWritesInOrder(t *testing.T) {
	gw := &flakyGateway{}
	saver := NewAsyncSaver(gw, fastExecutor(), metrics.New(), 4, quietLogger())

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range 10 {
		a := domain.NewAggregate("p1", base.Add(time.Duration(i)*time.Second))
		require.NoError(t, saver.Enqueue(context.Background(), a))
	}
	saver.Close()

	require.Len(t, gw.saved, 10)
	for i := 1; i < len(gw.saved); i++ {
		assert.True(t, gw.saved[i].UpdatedAt.After(gw.saved[i-1].UpdatedAt))
	}
}

func TestAsyncSaverRetriesTransientFailure(t *testing.T) {
	gw := &flakyGateway{failures: 2}
	saver := NewAsyncSaver(gw, fastExecutor(), metrics.New(), 1, quietLogger())

	require.NoError(t, saver.Enqueue(context.Background(), domain.NewAggregate("p1", time.Now())))
	saver.Close()

	assert.Equal(t, 3, gw.calls)
	assert.Len(t, gw.saved, 1)
}

func TestAsyncSaverDropsAfterRetriesExhausted(t *testing.T) {
	gw := &flakyGateway{failures: 100}
	saver := NewAsyncSaver(gw, fastExecutor(), metrics.New(), 1, quietLogger())

	require.NoError(t, saver.Enqueue(context.Background(), domain.NewAggregate("p1", time.Now())))
	saver.Close()

	assert.Equal(t, 3, gw.calls)
	assert.Empty(t, gw.saved)
}

func TestAsyncSaverRejectsAfterClose(t *testing.T) {
	saver := NewAsyncSaver(&flakyGateway{}, nil, metrics.New(), 1, quietLogger())
	saver.Close()
	saver.Close()

	err := saver.Enqueue(context.Background(), domain.NewAggregate("p1", time.Now()))
	assert.ErrorIs(t, err, ErrSaverClosed)
}

func TestAsyncSaverDoesNotRetryUnencodableAggregate(t *testing.T) {
	gw := &flakyGateway{failures: 100, failErr: fmt.Errorf("failed to encode aggregate p1: %w", domain.ErrCodec)}
	saver := NewAsyncSaver(gw, fastExecutor(), metrics.New(), 1, quietLogger())

	require.NoError(t, saver.Enqueue(context.Background(), domain.NewAggregate("p1", time.Now())))
	saver.Close()

	assert.Equal(t, 1, gw.calls)
	assert.Empty(t, gw.saved)
}

func TestAsyncSaverReportsBreakerState(t *testing.T) {
	gw := &flakyGateway{failures: 100}
	exec := resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts:        1,
		RetryInitialBackoff:     time.Millisecond,
		BreakerEnabled:          true,
		BreakerMinRequests:      2,
		BreakerFailureRatio:     0.5,
		BreakerOpenTimeout:      time.Minute,
		BreakerHalfOpenMaxCalls: 1,
	}, quietLogger())
	m := metrics.New()
	saver := NewAsyncSaver(gw, exec, m, 4, quietLogger())

	for range 3 {
		require.NoError(t, saver.Enqueue(context.Background(), domain.NewAggregate("p1", time.Now())))
	}
	saver.Close()

	assert.Equal(t, gobreaker.StateOpen, exec.State(saveOperation))
	assert.Equal(t, 2, gw.calls)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rec.Body.String(), `sitecheck_resilience_breaker_state{operation="inspection.save"} 2`)
}
