// Package resilience wraps calls to external collaborators (storage, message
// bus) with retries and a circuit breaker per operation name. Callers supply a
// Classifier that knows their collaborator's failure modes.
package resilience

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// ErrorClass says whether a failed call may be tried again and whether it
// counts against the operation's breaker.
type ErrorClass struct {
	Retry bool
	Trip  bool
}

type Classifier func(err error) ErrorClass

var errNoClassifier = errors.New("resilience: classifier is required")

type Executor struct {
	cfg    Config
	logger *slog.Logger

	mu sync.Mutex
	// One breaker per operation, created with the classifier of its first call.
	breakers map[string]*gobreaker.CircuitBreaker[struct{}]
}

func NewExecutor(cfg Config, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		cfg:      cfg.normalize(),
		logger:   logger,
		breakers: make(map[string]*gobreaker.CircuitBreaker[struct{}]),
	}
}

// Do runs fn under the named operation's retry policy and breaker.
func (e *Executor) Do(ctx context.Context, operation string, classify Classifier, fn func(context.Context) error) error {
	if classify == nil {
		return errNoClassifier
	}
	op := strings.TrimSpace(operation)
	if op == "" {
		op = "unnamed"
	}
	if !e.cfg.BreakerEnabled {
		return e.retry(ctx, op, classify, fn)
	}
	_, err := e.breaker(op, classify).Execute(func() (struct{}, error) {
		return struct{}{}, e.retry(ctx, op, classify, fn)
	})
	return err
}

func (e *Executor) retry(ctx context.Context, op string, classify Classifier, fn func(context.Context) error) error {
	wait := e.cfg.RetryInitialBackoff
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if !classify(err).Retry || attempt >= e.cfg.RetryMaxAttempts {
			return err
		}
		e.logger.Warn("operation failed, retrying",
			"operation", op,
			"attempt", attempt,
			"max_attempts", e.cfg.RetryMaxAttempts,
			"backoff", wait,
			"error", err,
		)
		if !sleep(ctx, wait) {
			return err
		}
		wait = min(time.Duration(float64(wait)*e.cfg.RetryMultiplier), e.cfg.RetryMaxBackoff)
	}
}

// sleep waits for d and reports false if ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (e *Executor) breaker(op string, classify Classifier) *gobreaker.CircuitBreaker[struct{}] {
	e.mu.Lock()
	defer e.mu.Unlock()
	if b, ok := e.breakers[op]; ok {
		return b
	}
	b := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        op,
		MaxRequests: e.cfg.BreakerHalfOpenMaxCalls,
		Timeout:     e.cfg.BreakerOpenTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.Requests >= e.cfg.BreakerMinRequests &&
				float64(c.TotalFailures) >= e.cfg.BreakerFailureRatio*float64(c.Requests)
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !classify(err).Trip
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			e.logger.Warn("circuit breaker state change", "operation", name, "from", from.String(), "to", to.String())
		},
	})
	e.breakers[op] = b
	return b
}

// State reports the breaker state of an operation. Operations that never ran
// are closed.
func (e *Executor) State(operation string) gobreaker.State {
	e.mu.Lock()
	defer e.mu.Unlock()
	if b, ok := e.breakers[operation]; ok {
		return b.State()
	}
	return gobreaker.StateClosed
}

func IsCircuitOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

// Cancelled reports whether err comes from the caller giving up. Such errors
// are never retried and never trip a breaker.
func Cancelled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
