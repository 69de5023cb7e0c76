package tcc_test

import (
	"errors"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/houseofcat/turbocookedconn/pkg/tcc"
)

var errNetworkReset = errors.New("driver: connection reset by peer")

// fakeDriver opens fakeConns, optionally failing or blocking per test.
type fakeDriver struct {
	openErr   error
	openGate  chan struct{} // when set, Open blocks until the gate closes
	openCount int64
	opened    chan *fakeConn
	pingErr   error
	pingGate  chan struct{}
	pingPanic bool
}

func (fd *fakeDriver) Open(params tcc.ConnectionParameters) (tcc.DriverConn, error) {
	atomic.AddInt64(&fd.openCount, 1)

	if fd.openGate != nil {
		<-fd.openGate
	}

	if fd.openErr != nil {
		return nil, fd.openErr
	}

	conn := &fakeConn{
		pingErr:   fd.pingErr,
		pingGate:  fd.pingGate,
		pingPanic: fd.pingPanic,
	}

	if fd.opened != nil {
		fd.opened <- conn
	}

	return conn, nil
}

func (fd *fakeDriver) opens() int64 {
	return atomic.LoadInt64(&fd.openCount)
}

// fakeConn is a controllable stand-in for a blocking driver connection.
type fakeConn struct {
	pingErr   error
	pingGate  chan struct{}
	pingPanic bool
	pingCount int64
	closed    int64
	closeErr  error
}

func (fc *fakeConn) Ping() error {
	atomic.AddInt64(&fc.pingCount, 1)

	if fc.pingGate != nil {
		<-fc.pingGate
	}

	if fc.pingPanic {
		panic("fake driver fault")
	}

	return fc.pingErr
}

func (fc *fakeConn) Close() error {
	atomic.AddInt64(&fc.closed, 1)
	return fc.closeErr
}

func (fc *fakeConn) pings() int64 {
	return atomic.LoadInt64(&fc.pingCount)
}

func (fc *fakeConn) isClosed() bool {
	return atomic.LoadInt64(&fc.closed) > 0
}

// explosiveDriver fails the test world on any call: used to prove HasBroken
// never touches the driver.
type explosiveDriver struct {
	calls int64
}

func (ed *explosiveDriver) Open(params tcc.ConnectionParameters) (tcc.DriverConn, error) {
	atomic.AddInt64(&ed.calls, 1)
	return &explosiveConn{driver: ed}, nil
}

func (ed *explosiveDriver) count() int64 {
	return atomic.LoadInt64(&ed.calls)
}

type explosiveConn struct {
	driver *explosiveDriver
}

func (ec *explosiveConn) Ping() error {
	atomic.AddInt64(&ec.driver.calls, 1)
	return errors.New("explosive conn pinged")
}

func (ec *explosiveConn) Close() error {
	atomic.AddInt64(&ec.driver.calls, 1)
	return errors.New("explosive conn closed")
}

// fakeClassifier classifies by sentinel identity, defaulting to Fatal.
type fakeClassifier struct {
	transient        error
	validationFailed error
}

func (fc *fakeClassifier) Classify(op tcc.Operation, err error) tcc.ErrorClass {
	switch {
	case fc.transient != nil && errors.Is(err, fc.transient):
		return tcc.ClassTransient
	case fc.validationFailed != nil && errors.Is(err, fc.validationFailed):
		return tcc.ClassValidationFailed
	default:
		return tcc.ClassFatal
	}
}

func newTestManager(driver tcc.Driver, classifier tcc.ErrorClassifier, maxWorkers uint64) (*tcc.ConnectionManager, *tcc.BlockingDispatcher) {
	dispatcher, err := tcc.NewBlockingDispatcher(maxWorkers, zerolog.Nop())
	if err != nil {
		panic(err)
	}

	if classifier == nil {
		classifier = &fakeClassifier{}
	}

	manager, err := tcc.NewConnectionManager(
		tcc.ConnectionParameters{Address: "localhost:3306"},
		driver,
		classifier,
		dispatcher,
		zerolog.Nop())
	if err != nil {
		panic(err)
	}

	return manager, dispatcher
}
