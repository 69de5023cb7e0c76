package tcc

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Workiva/go-datastructures/queue"
	cmap "github.com/orcaman/concurrent-map"
	"github.com/rs/zerolog"
)

// ConnectionPool houses the pool of managed driver connections. Checkout and
// checkin serialize access per host; validation policy (every checkout, every
// checkin, or neither) is pool configuration, never hardcoded in the manager.
type ConnectionPool struct {
	Config PoolConfig

	manager              *ConnectionManager
	connections          *queue.Queue
	flaggedHosts         cmap.ConcurrentMap
	sleepOnErrorInterval time.Duration
	errorHandler         func(error)
	logger               zerolog.Logger
	shutdown             int32
}

// NewConnectionPool creates hosting structure for the ConnectionPool.
func NewConnectionPool(config *PoolConfig, manager *ConnectionManager, logger zerolog.Logger) (*ConnectionPool, error) {
	return NewConnectionPoolWithErrorHandler(config, manager, logger, nil)
}

// NewConnectionPoolWithErrorHandler creates hosting structure for the ConnectionPool with an error handler.
func NewConnectionPoolWithErrorHandler(
	config *PoolConfig,
	manager *ConnectionManager,
	logger zerolog.Logger,
	errorHandler func(error)) (*ConnectionPool, error) {

	if config.MaxConnectionCount == 0 {
		return nil, errors.New("connectionpool maxconnectioncount can't be 0")
	}

	if manager == nil {
		return nil, errors.New("connectionpool manager can't be nil")
	}

	cp := &ConnectionPool{
		Config:               *config,
		manager:              manager,
		connections:          queue.New(int64(config.MaxConnectionCount)), // possible overflow error
		flaggedHosts:         cmap.New(),
		sleepOnErrorInterval: time.Duration(config.SleepOnErrorInterval) * time.Millisecond,
		errorHandler:         errorHandler,
		logger:               logger,
	}

	if err := cp.initializeConnections(); err != nil {
		return nil, errors.New("initialization failed during connection creation")
	}

	return cp, nil
}

func (cp *ConnectionPool) initializeConnections() error {

	for i := uint64(0); i < cp.Config.MaxConnectionCount; i++ {

		host, err := cp.manager.Connect(context.Background())
		if err != nil {
			cp.handleError(err)
			return err
		}

		if err = cp.connections.Put(host); err != nil {
			cp.handleError(err)
			return err
		}
	}

	return nil
}

// GetConnection gets a connection based on whats in the ConnectionPool
// (blocking under bad network conditions). Broken or flagged hosts are
// replaced before being handed out; ValidateOnCheckout additionally runs the
// health probe first.
func (cp *ConnectionPool) GetConnection(ctx context.Context) (*ConnectionHost, error) {

	if atomic.LoadInt32(&cp.shutdown) == 1 {
		return nil, ErrConnectionPoolClosed
	}

	host, err := cp.getConnectionFromPool()
	if err != nil { // errors on bad data in the queue
		cp.handleError(err)
		return nil, err
	}

	host, err = cp.verifyHealthyConnection(ctx, host)
	if err != nil {
		cp.handleError(err)
		return nil, err
	}

	return host, nil
}

func (cp *ConnectionPool) getConnectionFromPool() (*ConnectionHost, error) {

	// Pull from the queue.
	// Pauses here indefinitely if the queue is empty.
	structs, err := cp.connections.Get(1)
	if err != nil {
		return nil, err
	}

	host, ok := structs[0].(*ConnectionHost)
	if !ok {
		return nil, errors.New("invalid struct type found in ConnectionPool queue")
	}

	return host, nil
}

// verifyHealthyConnection replaces the host when its cached state says broken
// and optionally confirms usability with a dispatched probe.
func (cp *ConnectionPool) verifyHealthyConnection(ctx context.Context, host *ConnectionHost) (*ConnectionHost, error) {

	if cp.isHostFlagged(host.HostID) || cp.manager.HasBroken(host) {
		return cp.triggerConnectionRecovery(ctx, host)
	}

	if cp.Config.ValidateOnCheckout {
		if err := cp.manager.IsValid(ctx, host); err != nil {
			cp.handleError(err)
			return cp.triggerConnectionRecovery(ctx, host)
		}
	}

	return host, nil
}

func (cp *ConnectionPool) triggerConnectionRecovery(ctx context.Context, host *ConnectionHost) (*ConnectionHost, error) {

	cp.unflagHost(host.HostID)
	go host.Close()

	// Stay here till we replace the connection or the caller gives up.
	for {
		replacement, err := cp.manager.Connect(ctx)
		if err != nil {
			cp.handleError(err)

			select {
			case <-ctx.Done():
				return nil, &ClassifiedError{Class: ClassFatal, Op: OpConnect, Inner: ctx.Err()}
			default:
			}

			if cp.sleepOnErrorInterval > 0 {
				time.Sleep(cp.sleepOnErrorInterval)
			}
			continue
		}

		return replacement, nil
	}
}

// ReturnConnection puts the connection back in the queue and flags it for
// eviction when the caller saw a fatal error or abandoned an operation.
// This helps maintain a Round Robin on connections and their resources.
func (cp *ConnectionPool) ReturnConnection(host *ConnectionHost, flag bool) {

	if host == nil {
		return
	}

	if flag {
		cp.flagHost(host.HostID)
	} else if cp.Config.ValidateOnCheckin {
		if err := cp.manager.IsValid(context.Background(), host); err != nil {
			cp.handleError(err)
			cp.flagHost(host.HostID)
		}
	}

	if err := cp.connections.Put(host); err != nil {
		// Pool is disposed, nothing left to do but close the conn.
		cp.handleError(err)
		go host.Close()
	}
}

// flagHost marks that host as non-usable in the future.
func (cp *ConnectionPool) flagHost(hostID string) {
	cp.flaggedHosts.Set(hostID, true)
}

// unflagHost marks that host as usable in the future.
func (cp *ConnectionPool) unflagHost(hostID string) {
	cp.flaggedHosts.Remove(hostID)
}

// isHostFlagged checks to see if the host has been flagged for removal.
func (cp *ConnectionPool) isHostFlagged(hostID string) bool {
	if flagged, ok := cp.flaggedHosts.Get(hostID); ok {
		return flagged.(bool)
	}

	return false
}

// Shutdown closes all connections in the ConnectionPool and resets the Pool
// to pre-initialized state.
func (cp *ConnectionPool) Shutdown() {

	if cp == nil {
		return
	}

	if !atomic.CompareAndSwapInt32(&cp.shutdown, 0, 1) {
		return
	}

	wg := &sync.WaitGroup{}
	for !cp.connections.Empty() {
		items, _ := cp.connections.Get(cp.connections.Len())

		for _, item := range items {
			wg.Add(1)

			host := item.(*ConnectionHost)

			go func(host *ConnectionHost) {
				defer wg.Done()

				host.Close()
			}(host)
		}
	}

	wg.Wait()

	cp.connections.Dispose()
	cp.flaggedHosts = cmap.New()

	cp.logger.Info().Msg("connection pool shutdown complete")
}

func (cp *ConnectionPool) handleError(err error) {
	if cp.errorHandler != nil {
		cp.errorHandler(err)
	}
	cp.logger.Debug().Err(err).Msg("connection pool error")
}
