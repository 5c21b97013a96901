package memory

import (
	"context"
	"sync/atomic"

	"internship-backend/application/ports"
	"internship-backend/infrastructure/persistence/connection"
)

// Connection is a connection.Connection backed by a Store. It is used for
// local development ("memory://" URIs) and tests.
type Connection struct {
	store *Store
	state atomic.Int32
	name  string
}

// NewConnection returns a connected in-memory connection over store.
func NewConnection(store *Store, database string) *Connection {
	c := &Connection{store: store, name: database}
	c.state.Store(int32(connection.Connected))
	return c
}

func (c *Connection) State() connection.State {
	return connection.State(c.state.Load())
}

// SetState simulates the driver reporting a new state.
func (c *Connection) SetState(state connection.State) {
	c.state.Store(int32(state))
}

func (c *Connection) Documents() ports.DocumentStore {
	return c.store
}

func (c *Connection) Info() connection.Info {
	return connection.Info{Driver: "memory", Host: "in-process", Database: c.name}
}

func (c *Connection) Close(ctx context.Context) error {
	c.state.Store(int32(connection.Disconnected))
	return nil
}

// Dialer hands out connections over one shared Store, so data survives
// reconnects within the process.
type Dialer struct {
	store *Store
}

// NewDialer creates a dialer with an empty store.
func NewDialer() *Dialer {
	return &Dialer{store: NewStore()}
}

// Dial implements connection.Dialer.
func (d *Dialer) Dial(ctx context.Context, opts connection.Options) (connection.Connection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return NewConnection(d.store, opts.Database), nil
}
