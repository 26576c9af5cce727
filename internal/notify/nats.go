package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/vbonduro/sitecheck/internal/inspection"
	"github.com/vbonduro/sitecheck/internal/resilience"
)

// DefaultSubject is used when no subject is configured.
const DefaultSubject = "sitecheck.defects.capture"

type publishConn interface {
	Publish(subject string, data []byte) error
	Close()
}

// NATSPublisher publishes each capture as a JSON message.
type NATSPublisher struct {
	conn     publishConn
	subject  string
	executor *resilience.Executor
}

type NATSOptions struct {
	ConnectTimeout time.Duration
	ReconnectWait  time.Duration
	MaxReconnects  int
	Executor       *resilience.Executor
	Logger         *slog.Logger
}

func NewNATSPublisher(url, subject string, options NATSOptions) (*NATSPublisher, error) {
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := nats.Connect(
		url,
		nats.Name("sitecheck"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(true),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}
	return newNATSPublisher(conn, subject, options.Executor), nil
}

func newNATSPublisher(conn publishConn, subject string, executor *resilience.Executor) *NATSPublisher {
	if subject == "" {
		subject = DefaultSubject
	}
	return &NATSPublisher{conn: conn, subject: subject, executor: executor}
}

func (p *NATSPublisher) PublishDefectCapture(ctx context.Context, c inspection.DefectCapture) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode defect capture: %w", err)
	}
	call := func(context.Context) error {
		if err := p.conn.Publish(p.subject, data); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}
	if p.executor == nil {
		return call(ctx)
	}
	return p.executor.Do(ctx, "nats.publish", classifyPublishError, call)
}

// classifyPublishError retries while the client is between servers. Any
// other publish error is a misconfiguration and fails at once.
func classifyPublishError(err error) resilience.ErrorClass {
	switch {
	case resilience.Cancelled(err):
		return resilience.ErrorClass{}
	case errors.Is(err, nats.ErrNoServers),
		errors.Is(err, nats.ErrTimeout),
		errors.Is(err, nats.ErrConnectionClosed),
		errors.Is(err, nats.ErrDisconnected),
		errors.Is(err, nats.ErrConnectionReconnecting),
		errors.Is(err, nats.ErrReconnectBufExceeded):
		return resilience.ErrorClass{Retry: true, Trip: true}
	}
	return resilience.ErrorClass{Retry: false, Trip: true}
}

func (p *NATSPublisher) Close() {
	if p.conn != nil {
		p.conn.Close()
	}
}
