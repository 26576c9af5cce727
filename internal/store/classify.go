package store

import (
	"errors"
	"io"
	"net"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/vbonduro/sitecheck/internal/domain"
	"github.com/vbonduro/sitecheck/internal/resilience"
)

// ClassifySaveError decides how a failed aggregate save is retried. Lock
// contention and dropped connections are retried. Payloads that cannot be
// encoded fail at once and do not count against the backend's breaker.
func ClassifySaveError(err error) resilience.ErrorClass {
	switch {
	case err == nil:
		return resilience.ErrorClass{}
	case resilience.Cancelled(err):
		return resilience.ErrorClass{Retry: false, Trip: false}
	case errors.Is(err, domain.ErrCodec):
		return resilience.ErrorClass{Retry: false, Trip: false}
	case busySQLite(err), transientPostgres(err), connectionLost(err):
		return resilience.ErrorClass{Retry: true, Trip: true}
	}
	return resilience.ErrorClass{Retry: false, Trip: true}
}

func busySQLite(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return true
		}
		return false
	}
	// Wrapped driver errors sometimes only keep the message.
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "sqlite_busy")
}

// transientPostgres matches connection failures (class 08), serialization
// and deadlock aborts, and server restarts.
func transientPostgres(err error) bool {
	var pe *pgconn.PgError
	if errors.As(err, &pe) {
		switch {
		case strings.HasPrefix(pe.Code, "08"),
			pe.Code == "40001", pe.Code == "40P01",
			pe.Code == "57P01", pe.Code == "57P03":
			return true
		}
		return false
	}
	return pgconn.SafeToRetry(err)
}

func connectionLost(err error) bool {
	if errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
