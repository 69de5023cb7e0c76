package tcc_test

import (
	"errors"
	"net"
	"testing"

	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"

	"github.com/houseofcat/turbocookedconn/pkg/tcc"
)

func TestAMQPClassifierRecoverableErrorsAreTransient(t *testing.T) {
	classifier := tcc.NewAMQPClassifier()

	for _, code := range []int{amqp.ContentTooLarge, amqp.NoRoute, amqp.NoConsumers, amqp.PreconditionFailed} {
		err := &amqp.Error{Code: code, Reason: "soft failure", Recover: true}
		assert.Equal(t, tcc.ClassTransient, classifier.Classify(tcc.OpConnect, err), "code %d", code)
	}
}

func TestAMQPClassifierConnectionLevelErrorsAreFatal(t *testing.T) {
	classifier := tcc.NewAMQPClassifier()

	for _, code := range []int{amqp.ConnectionForced, amqp.FrameError, amqp.AccessRefused, amqp.InternalError} {
		err := &amqp.Error{Code: code, Reason: "hard failure"}
		assert.Equal(t, tcc.ClassFatal, classifier.Classify(tcc.OpValidate, err), "code %d", code)
	}

	assert.Equal(t, tcc.ClassFatal, classifier.Classify(tcc.OpValidate, amqp.ErrClosed))
	assert.Equal(t, tcc.ClassFatal, classifier.Classify(tcc.OpConnect, amqp.ErrSASL))
	assert.Equal(t, tcc.ClassFatal, classifier.Classify(tcc.OpConnect, amqp.ErrCredentials))
}

func TestAMQPClassifierProbeTimeoutIsValidationFailure(t *testing.T) {
	classifier := tcc.NewAMQPClassifier()

	timeout := &net.OpError{Op: "read", Net: "tcp", Err: timeoutError{}}
	assert.Equal(t, tcc.ClassValidationFailed, classifier.Classify(tcc.OpValidate, timeout))
	assert.Equal(t, tcc.ClassFatal, classifier.Classify(tcc.OpConnect, timeout))
}

func TestAMQPClassifierTotalAndDeterministic(t *testing.T) {
	classifier := tcc.NewAMQPClassifier()

	rawErrors := []error{
		nil,
		errors.New("completely novel failure"),
		amqp.ErrClosed,
		amqp.ErrSASL,
		amqp.ErrCredentials,
		amqp.ErrVhost,
		&net.OpError{Op: "dial", Net: "tcp", Err: timeoutError{}},
	}
	for _, code := range []int{
		amqp.ContentTooLarge, amqp.NoRoute, amqp.NoConsumers, amqp.ConnectionForced,
		amqp.InvalidPath, amqp.AccessRefused, amqp.NotFound, amqp.ResourceLocked,
		amqp.PreconditionFailed, amqp.FrameError, amqp.SyntaxError, amqp.CommandInvalid,
		amqp.ChannelError, amqp.UnexpectedFrame, amqp.ResourceError, amqp.NotAllowed,
		amqp.NotImplemented, amqp.InternalError,
	} {
		rawErrors = append(rawErrors,
			&amqp.Error{Code: code, Recover: true},
			&amqp.Error{Code: code, Recover: false})
	}

	for _, op := range []tcc.Operation{tcc.OpConnect, tcc.OpValidate, tcc.OpClose} {
		for _, raw := range rawErrors {
			first := classifier.Classify(op, raw)
			second := classifier.Classify(op, raw)

			assert.Equal(t, first, second, "op %s raw %v", op, raw)
			assert.Contains(t,
				[]tcc.ErrorClass{tcc.ClassFatal, tcc.ClassTransient, tcc.ClassValidationFailed},
				first, "op %s raw %v", op, raw)
		}
	}
}
