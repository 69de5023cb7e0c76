package tcc

import (
	"context"
	"database/sql/driver"
	"errors"
	"net"

	"github.com/go-sql-driver/mysql"
)

// MySQLDriver adapts the blocking go-sql-driver/mysql client to the Driver
// interface. Open performs the full dial + handshake on the calling thread.
type MySQLDriver struct{}

// NewMySQLDriver creates the MySQL driver adapter.
func NewMySQLDriver() *MySQLDriver {
	return &MySQLDriver{}
}

// Open dials and authenticates a single MySQL connection. Recognized options:
// "database" selects the schema, "params" style options are passed through.
func (md *MySQLDriver) Open(params ConnectionParameters) (DriverConn, error) {

	cfg := mysql.NewConfig()
	cfg.Net = "tcp"
	cfg.Addr = params.Address
	cfg.User = params.Username
	cfg.Passwd = params.Password
	cfg.Timeout = params.ConnectTimeout
	cfg.ReadTimeout = params.ConnectTimeout
	cfg.WriteTimeout = params.ConnectTimeout

	if database, ok := params.Option("database"); ok {
		cfg.DBName = database
	}

	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, err
	}

	conn, err := connector.Connect(context.Background())
	if err != nil {
		return nil, err
	}

	return &mysqlConn{conn: conn}, nil
}

// mysqlConn wraps a raw driver.Conn from the mysql client.
type mysqlConn struct {
	conn driver.Conn
}

// Ping round-trips a protocol-level ping, no session state is touched.
func (mc *mysqlConn) Ping() error {
	pinger, ok := mc.conn.(driver.Pinger)
	if !ok {
		return nil
	}

	return pinger.Ping(context.Background())
}

func (mc *mysqlConn) Close() error {
	return mc.conn.Close()
}

// MySQL server error numbers the classifier recognizes as retryable.
const (
	mysqlErrTooManyConnections  = 1040
	mysqlErrLockWaitTimeout     = 1205
	mysqlErrDeadlockFound       = 1213
	mysqlErrUserLimitReached    = 1226
	mysqlErrOutOfResources      = 1041
	mysqlErrAccessDenied        = 1045
	mysqlErrDBAccessDenied      = 1044
	mysqlErrUnknownDatabase     = 1049
	mysqlErrAbortingConnection  = 1152
	mysqlErrNetPacketOutOfOrder = 1156
	mysqlErrNetReadError        = 1158
	mysqlErrNetReadInterrupted  = 1159
	mysqlErrNetWriteError       = 1160
	mysqlErrServerShutdown      = 1053
)

// MySQLClassifier maps raw mysql driver errors into the ErrorClass taxonomy.
// Total and deterministic; anything unrecognized is Fatal so a connection of
// unknown health is never handed back to the pool.
type MySQLClassifier struct{}

// NewMySQLClassifier creates the MySQL error classifier.
func NewMySQLClassifier() *MySQLClassifier {
	return &MySQLClassifier{}
}

// Classify maps a raw error to exactly one ErrorClass.
func (mc *MySQLClassifier) Classify(op Operation, err error) ErrorClass {
	if err == nil {
		return ClassTransient
	}

	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		switch mysqlErr.Number {
		case mysqlErrTooManyConnections,
			mysqlErrLockWaitTimeout,
			mysqlErrDeadlockFound,
			mysqlErrUserLimitReached,
			mysqlErrOutOfResources:
			return ClassTransient

		case mysqlErrAccessDenied,
			mysqlErrDBAccessDenied,
			mysqlErrUnknownDatabase,
			mysqlErrServerShutdown,
			mysqlErrAbortingConnection,
			mysqlErrNetPacketOutOfOrder,
			mysqlErrNetReadError,
			mysqlErrNetReadInterrupted,
			mysqlErrNetWriteError:
			return ClassFatal
		}

		// Unrecognized server error during a probe means the conn is suspect.
		if op == OpValidate {
			return ClassValidationFailed
		}
		return ClassFatal
	}

	if errors.Is(err, mysql.ErrInvalidConn) || errors.Is(err, driver.ErrBadConn) {
		return ClassFatal
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if op == OpValidate && netErr.Timeout() {
			return ClassValidationFailed
		}
		return ClassFatal
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		if op == OpValidate {
			return ClassValidationFailed
		}
		return ClassFatal
	}

	return ClassFatal
}
