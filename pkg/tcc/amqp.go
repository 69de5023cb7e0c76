package tcc

import (
	"errors"
	"net"
	"time"

	"github.com/streadway/amqp"
)

// AMQPDriver adapts the blocking streadway/amqp client to the Driver
// interface. Address is a full amqp:// or amqps:// URI; explicit credentials
// override any embedded in the URI. Recognized option: "heartbeat" in seconds.
type AMQPDriver struct {
	heartbeatInterval time.Duration
}

// NewAMQPDriver creates the AMQP driver adapter.
func NewAMQPDriver(heartbeatInterval time.Duration) *AMQPDriver {
	return &AMQPDriver{heartbeatInterval: heartbeatInterval}
}

// Open dials a single AMQP connection with heartbeat and dial timeout.
func (ad *AMQPDriver) Open(params ConnectionParameters) (DriverConn, error) {

	config := amqp.Config{
		Heartbeat: ad.heartbeatInterval,
		Dial:      amqp.DefaultDial(params.ConnectTimeout),
	}

	if name, ok := params.Option("connection_name"); ok {
		config.Properties = amqp.Table{
			"connection_name": name,
		}
	}

	if params.Username != "" {
		config.SASL = []amqp.Authentication{
			&amqp.PlainAuth{
				Username: params.Username,
				Password: params.Password,
			},
		}
	}

	conn, err := amqp.DialConfig(params.Address, config)
	if err != nil {
		return nil, err
	}

	return &amqpConn{conn: conn}, nil
}

// amqpConn wraps a single amqp.Connection.
type amqpConn struct {
	conn *amqp.Connection
}

// Ping round-trips a channel open/close. The protocol has no dedicated ping;
// a channel pair is the cheapest full round trip that leaves no state behind.
func (ac *amqpConn) Ping() error {
	if ac.conn.IsClosed() {
		return amqp.ErrClosed
	}

	channel, err := ac.conn.Channel()
	if err != nil {
		return err
	}

	return channel.Close()
}

func (ac *amqpConn) Close() error {
	if ac.conn.IsClosed() {
		return nil
	}

	return ac.conn.Close()
}

// AMQPClassifier maps raw amqp errors into the ErrorClass taxonomy. The
// broker marks retryable conditions with Recover on amqp.Error; everything
// unrecognized is Fatal.
type AMQPClassifier struct{}

// NewAMQPClassifier creates the AMQP error classifier.
func NewAMQPClassifier() *AMQPClassifier {
	return &AMQPClassifier{}
}

// Classify maps a raw error to exactly one ErrorClass.
func (ac *AMQPClassifier) Classify(op Operation, err error) ErrorClass {
	if err == nil {
		return ClassTransient
	}

	// The sentinel errors (amqp.ErrClosed, amqp.ErrSASL, ...) are all
	// *amqp.Error values, so this branch covers them too.
	var amqpErr *amqp.Error
	if errors.As(err, &amqpErr) {
		if amqpErr.Recover {
			return ClassTransient
		}

		if op == OpValidate && !connectionLevelAMQPError(amqpErr.Code) {
			return ClassValidationFailed
		}
		return ClassFatal
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if op == OpValidate && netErr.Timeout() {
			return ClassValidationFailed
		}
		return ClassFatal
	}

	return ClassFatal
}

// connectionLevelAMQPError reports codes that condemn the whole connection
// rather than a single channel.
func connectionLevelAMQPError(code int) bool {
	switch code {
	case amqp.ConnectionForced,
		amqp.InvalidPath,
		amqp.FrameError,
		amqp.SyntaxError,
		amqp.CommandInvalid,
		amqp.ChannelError,
		amqp.UnexpectedFrame,
		amqp.ResourceError,
		amqp.NotAllowed,
		amqp.NotImplemented,
		amqp.InternalError,
		amqp.AccessRefused:
		return true
	default:
		return false
	}
}
