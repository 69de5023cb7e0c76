package tcc

import "time"

// ConnectionParameters holds the immutable data needed to open new connections.
// Created once at ConnectionManager construction and read-only thereafter.
type ConnectionParameters struct {
	Address        string
	Username       string
	Password       string
	ConnectTimeout time.Duration
	Options        map[string]string
}

// clone copies the parameters so later caller mutation can't reach the manager.
func (cp ConnectionParameters) clone() ConnectionParameters {
	dupe := cp
	if cp.Options != nil {
		dupe.Options = make(map[string]string, len(cp.Options))
		for k, v := range cp.Options {
			dupe.Options[k] = v
		}
	}
	return dupe
}

// Option returns a recognized pool-specific option by name.
func (cp ConnectionParameters) Option(name string) (string, bool) {
	value, ok := cp.Options[name]
	return value, ok
}

// Driver is the blocking, synchronous client the manager adapts.
// Open occupies the calling OS thread for the duration of network I/O,
// so it is only ever invoked through the BlockingDispatcher.
type Driver interface {
	Open(params ConnectionParameters) (DriverConn, error)
}

// DriverConn is a single live driver connection. It is not safe for
// concurrent use; the ConnectionHost enforces one in-flight operation.
type DriverConn interface {
	// Ping is a minimal, side-effect-free health probe. It must not
	// mutate session state.
	Ping() error

	// Close releases the connection, best-effort.
	Close() error
}
