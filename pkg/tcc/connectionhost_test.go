package tcc_test

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/houseofcat/turbocookedconn/pkg/tcc"
)

func TestConnectionHostIdentity(t *testing.T) {
	first := tcc.NewConnectionHost(&fakeConn{}, 1, zerolog.Nop())
	second := tcc.NewConnectionHost(&fakeConn{}, 2, zerolog.Nop())

	assert.NotEmpty(t, first.HostID)
	assert.NotEqual(t, first.HostID, second.HostID)
	assert.NotEqual(t, first.ConnectionID, second.ConnectionID)
	assert.False(t, first.ConnectedAt.IsZero())
}

func TestConnectionHostPoisonIsSticky(t *testing.T) {
	host := tcc.NewConnectionHost(&fakeConn{}, 1, zerolog.Nop())
	assert.False(t, host.Broken())

	host.Poison()
	assert.True(t, host.Broken())
	assert.True(t, host.Broken())
}

func TestConnectionHostCloseSwallowsDriverError(t *testing.T) {
	conn := &fakeConn{closeErr: errors.New("close exploded")}
	host := tcc.NewConnectionHost(conn, 1, zerolog.Nop())

	// Best-effort close: error is logged, never propagated or panicked.
	host.Close()
	assert.True(t, conn.isClosed())

	var nilHost *tcc.ConnectionHost
	nilHost.Close()
}
