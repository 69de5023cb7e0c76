package tcc

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ConnectionHost wraps exactly one live DriverConn for management by the pool.
// At most one operation is ever in flight against a host: the conn is only
// borrowed for the duration of a single dispatched closure.
type ConnectionHost struct {
	ConnectionID uint64
	HostID       string
	ConnectedAt  time.Time

	conn     DriverConn
	borrowed int32
	poisoned int32
	logger   zerolog.Logger
}

// NewConnectionHost creates a ConnectionHost wrapper around a freshly opened driver connection.
func NewConnectionHost(conn DriverConn, connectionID uint64, logger zerolog.Logger) *ConnectionHost {
	return &ConnectionHost{
		ConnectionID: connectionID,
		HostID:       uuid.NewString(),
		ConnectedAt:  time.Now().UTC(),
		conn:         conn,
		logger:       logger,
	}
}

// borrow takes exclusive use of the underlying conn for one dispatched
// closure. A second borrow before release is a caller bug, not a race we
// paper over.
func (ch *ConnectionHost) borrow() (DriverConn, error) {
	if atomic.LoadInt32(&ch.poisoned) == 1 {
		return nil, ErrHandlePoisoned
	}

	if !atomic.CompareAndSwapInt32(&ch.borrowed, 0, 1) {
		return nil, ErrHandleBusy
	}

	return ch.conn, nil
}

func (ch *ConnectionHost) release() {
	atomic.StoreInt32(&ch.borrowed, 0)
}

// Poison marks the host unusable. Set after a Fatal classification or after
// an operation was abandoned mid-flight, leaving the conn state unknown.
func (ch *ConnectionHost) Poison() {
	atomic.StoreInt32(&ch.poisoned, 1)
}

// Broken reads only locally cached state, never performs I/O. Safe to call
// from non-suspending contexts.
func (ch *ConnectionHost) Broken() bool {
	return atomic.LoadInt32(&ch.poisoned) == 1
}

// Close releases the driver connection, best-effort. Close errors are logged,
// not propagated.
func (ch *ConnectionHost) Close() {
	if ch == nil || ch.conn == nil {
		return
	}

	defer func() { _ = recover() }()

	if err := ch.conn.Close(); err != nil {
		ch.logger.Warn().
			Err(err).
			Str("hostID", ch.HostID).
			Uint64("connectionID", ch.ConnectionID).
			Msg("error closing driver connection")
	}
}
