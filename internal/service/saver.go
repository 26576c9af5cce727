package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/vbonduro/sitecheck/internal/domain"
	"github.com/vbonduro/sitecheck/internal/metrics"
	"github.com/vbonduro/sitecheck/internal/resilience"
	"github.com/vbonduro/sitecheck/internal/store"
)

// Gateway persists one aggregate per property. Load returns nil, nil when the
// property has never been saved.
type Gateway interface {
	Load(ctx context.Context, propertyID string) (*domain.Aggregate, error)
	Save(ctx context.Context, a *domain.Aggregate) error
}

const saveOperation = "inspection.save"

// ErrSaverClosed is returned by Enqueue after Close.
var ErrSaverClosed = errors.New("saver closed")

// AsyncSaver writes snapshots in the background on a single worker, so saves
// of one property land in the order they were enqueued.
type AsyncSaver struct {
	gateway     Gateway
	executor    *resilience.Executor
	metrics     *metrics.Metrics
	logger      *slog.Logger
	saveTimeout time.Duration

	mu     sync.RWMutex
	closed bool
	queue  chan *domain.Aggregate
	done   chan struct{}
}

func NewAsyncSaver(gateway Gateway, executor *resilience.Executor, m *metrics.Metrics, queueSize int, logger *slog.Logger) *AsyncSaver {
	if queueSize <= 0 {
		queueSize = 1
	}
	s := &AsyncSaver{
		gateway:     gateway,
		executor:    executor,
		metrics:     m,
		logger:      logger,
		saveTimeout: 30 * time.Second,
		queue:       make(chan *domain.Aggregate, queueSize),
		done:        make(chan struct{}),
	}
	go s.run()
	return s
}

// Enqueue hands a snapshot to the worker. The caller must not modify a
// afterwards. It blocks while the queue is full.
func (s *AsyncSaver) Enqueue(ctx context.Context, a *domain.Aggregate) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrSaverClosed
	}

	select {
	case s.queue <- a:
		s.metrics.SetSaveQueueDepth(len(s.queue))
		return nil
	case <-ctx.Done():
		s.logger.Error("inspection snapshot dropped", "property_id", a.PropertyID, "error", ctx.Err())
		s.metrics.RecordSave(ctx.Err(), 0)
		return ctx.Err()
	}
}

// Close stops accepting snapshots and waits until the queued ones are written.
func (s *AsyncSaver) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		<-s.done
		return
	}
	s.closed = true
	close(s.queue)
	s.mu.Unlock()
	<-s.done
}

func (s *AsyncSaver) run() {
	defer close(s.done)
	for a := range s.queue {
		s.metrics.SetSaveQueueDepth(len(s.queue))
		s.save(a)
	}
}

func (s *AsyncSaver) save(a *domain.Aggregate) {
	ctx, cancel := context.WithTimeout(context.Background(), s.saveTimeout)
	defer cancel()

	start := time.Now()
	save := func(ctx context.Context) error { return s.gateway.Save(ctx, a) }
	var err error
	if s.executor != nil {
		err = s.executor.Do(ctx, saveOperation, store.ClassifySaveError, save)
		s.metrics.SetBreakerState(saveOperation, s.executor.State(saveOperation))
	} else {
		err = save(ctx)
	}
	elapsed := time.Since(start)
	s.metrics.RecordSave(err, elapsed)

	if err != nil {
		s.logger.Error("failed to save inspection",
			"property_id", a.PropertyID,
			"circuit_open", resilience.IsCircuitOpen(err),
			"error", err,
		)
		return
	}
	s.logger.Debug("inspection saved", "property_id", a.PropertyID, "duration", elapsed)
}
