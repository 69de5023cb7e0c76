package tcc

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// ConnectionManager implements the pool-facing contract (Connect / IsValid /
// HasBroken) over a blocking Driver by composing the BlockingDispatcher,
// ConnectionHost and an ErrorClassifier. The manager is a factory/validator
// only: it never retains a handle reference beyond the call.
type ConnectionManager struct {
	params       ConnectionParameters
	driver       Driver
	classifier   ErrorClassifier
	dispatcher   *BlockingDispatcher
	logger       zerolog.Logger
	connectionID uint64
}

// NewConnectionManager creates a ConnectionManager around an explicitly owned
// dispatcher. ConnectionParameters are copied and immutable from here on.
func NewConnectionManager(
	params ConnectionParameters,
	driver Driver,
	classifier ErrorClassifier,
	dispatcher *BlockingDispatcher,
	logger zerolog.Logger) (*ConnectionManager, error) {

	if driver == nil || classifier == nil {
		return nil, errors.New("connectionmanager driver or classifier can't be nil")
	}

	if dispatcher == nil {
		return nil, errors.New("connectionmanager dispatcher can't be nil")
	}

	return &ConnectionManager{
		params:     params.clone(),
		driver:     driver,
		classifier: classifier,
		dispatcher: dispatcher,
		logger:     logger,
	}, nil
}

// Parameters returns a copy of the immutable connection parameters.
func (cm *ConnectionManager) Parameters() ConnectionParameters {
	return cm.params.clone()
}

// Connect dispatches a blocking driver open and wraps the fresh connection in
// a ConnectionHost. Open failures are classified and never retried here; the
// pool owns retry/backoff policy.
func (cm *ConnectionManager) Connect(ctx context.Context) (*ConnectionHost, error) {
	result, err := cm.dispatcher.Dispatch(ctx, func() (interface{}, error) {
		return cm.driver.Open(cm.params)
	})
	if err != nil {
		return nil, &ClassifiedError{Class: ClassFatal, Op: OpConnect, Inner: err}
	}

	outcome, err := result.Await(ctx)
	if err != nil {
		// The open may still succeed in the background; that orphan
		// connection has no owner and gets closed on arrival.
		result.Discard(cm.closeOrphanedConnection)
		return nil, &ClassifiedError{Class: ClassFatal, Op: OpConnect, Inner: err}
	}

	switch outcome.Origin {
	case DispatchCompleted:
		conn, ok := outcome.Value.(DriverConn)
		if !ok {
			return nil, &ClassifiedError{
				Class: ClassFatal,
				Op:    OpConnect,
				Inner: fmt.Errorf("driver open returned invalid type %T", outcome.Value),
			}
		}

		connectionID := atomic.AddUint64(&cm.connectionID, 1)
		return NewConnectionHost(conn, connectionID, cm.logger), nil

	case DispatchAborted:
		return nil, &ClassifiedError{Class: ClassFatal, Op: OpConnect, Inner: outcome.Err}

	default:
		return nil, &ClassifiedError{
			Class: cm.classifier.Classify(OpConnect, outcome.Err),
			Op:    OpConnect,
			Inner: outcome.Err,
		}
	}
}

// IsValid dispatches a side-effect-free probe against the live connection.
// ValidationFailed or Fatal outcomes tell the pool to discard the handle
// instead of returning it to circulation.
func (cm *ConnectionManager) IsValid(ctx context.Context, host *ConnectionHost) error {
	conn, err := host.borrow()
	if err != nil {
		if errors.Is(err, ErrHandleBusy) {
			return err
		}
		return &ClassifiedError{Class: ClassValidationFailed, Op: OpValidate, Inner: err}
	}

	result, err := cm.dispatcher.Dispatch(ctx, func() (interface{}, error) {
		defer host.release()
		return nil, conn.Ping()
	})
	if err != nil {
		// Closure never ran, release here.
		host.release()
		return &ClassifiedError{Class: ClassValidationFailed, Op: OpValidate, Inner: err}
	}

	outcome, err := result.Await(ctx)
	if err != nil {
		// Probe still running; conn state is unknown once it finishes.
		host.Poison()
		result.Discard(func(discarded DispatchOutcome) {
			cm.logger.Warn().
				Str("hostID", host.HostID).
				Str("origin", discarded.Origin.String()).
				Msg("discarded outcome of abandoned validation probe")
		})
		return &ClassifiedError{Class: ClassValidationFailed, Op: OpValidate, Inner: err}
	}

	switch outcome.Origin {
	case DispatchCompleted:
		return nil

	case DispatchAborted:
		host.Poison()
		return &ClassifiedError{Class: ClassFatal, Op: OpValidate, Inner: outcome.Err}

	default:
		class := cm.classifier.Classify(OpValidate, outcome.Err)
		if class == ClassFatal {
			host.Poison()
		}
		return &ClassifiedError{Class: class, Op: OpValidate, Inner: outcome.Err}
	}
}

// HasBroken cheaply reports whether the handle is unusable. Never performs
// I/O; the pool may call this from a non-suspending context.
func (cm *ConnectionManager) HasBroken(host *ConnectionHost) bool {
	if host == nil {
		return true
	}
	return host.Broken()
}

func (cm *ConnectionManager) closeOrphanedConnection(outcome DispatchOutcome) {
	if outcome.Origin != DispatchCompleted {
		return
	}

	conn, ok := outcome.Value.(DriverConn)
	if !ok {
		return
	}

	if err := conn.Close(); err != nil {
		cm.logger.Warn().Err(err).Msg("error closing orphaned driver connection")
	}
}
