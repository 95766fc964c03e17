package gormstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
)

// ErrBusyExhausted wraps the last contention error once retries run out.
var ErrBusyExhausted = errors.New("journal busy: retries exhausted")

// isBusy reports whether err is SQLite contention worth retrying.
func isBusy(err error) bool {
	if err == nil {
		return false
	}
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.Code == sqlite3.ErrBusy || se.Code == sqlite3.ErrLocked
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked") ||
		strings.Contains(msg, "sqlite_busy")
}

// withRetry runs fn up to BusyRetries times while it fails with contention,
// sleeping BusyBackoff between attempts. Other errors return immediately.
func (s *GormStore) withRetry(ctx context.Context, op string, fn func() error) error {
	var err error
	for attempt := 1; attempt <= s.opts.BusyRetries; attempt++ {
		err = fn()
		if err == nil || !isBusy(err) {
			return err
		}
		if attempt == s.opts.BusyRetries {
			break
		}
		if ctx.Err() != nil {
			return fmt.Errorf("%s: %w", op, ctx.Err())
		}
		journalLog.Warnf("%s: database busy (attempt %d/%d), retrying in %s", op, attempt, s.opts.BusyRetries, s.opts.BusyBackoff)
		t := time.NewTimer(s.opts.BusyBackoff)
		select {
		case <-ctx.Done():
			t.Stop()
			return fmt.Errorf("%s: %w", op, ctx.Err())
		case <-t.C:
		}
	}
	return fmt.Errorf("%s after %d attempts: %w: %w", op, s.opts.BusyRetries, ErrBusyExhausted, err)
}
