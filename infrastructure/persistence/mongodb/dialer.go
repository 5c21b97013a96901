package mongodb

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"

	"internship-backend/application/ports"
	"internship-backend/infrastructure/persistence/connection"

	"go.mongodb.org/mongo-driver/event"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/description"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/x/mongo/driver/connstring"
)

// Dialer opens MongoDB connections for "mongodb" and "mongodb+srv" URIs.
type Dialer struct {
	// AppName is reported to the server in the handshake.
	AppName string
}

// NewDialer creates a MongoDB dialer
func NewDialer(appName string) *Dialer {
	return &Dialer{AppName: appName}
}

// Dial connects and pings the primary. The returned connection tracks the
// driver's topology, so its State follows server availability without I/O.
func (d *Dialer) Dial(ctx context.Context, opts connection.Options) (connection.Connection, error) {
	cs, err := connstring.ParseAndValidate(opts.URI)
	if err != nil {
		return nil, &connection.HandshakeError{Kind: connection.FailureConfiguration, Err: err}
	}

	database := cs.Database
	if database == "" {
		database = opts.Database
	}

	conn := &Connection{
		info: connection.Info{
			Driver:   "mongodb",
			Host:     strings.Join(cs.Hosts, ","),
			Database: database,
		},
	}
	conn.state.Store(int32(connection.Connecting))

	clientOpts := options.Client().
		ApplyURI(opts.URI).
		SetAppName(d.AppName).
		SetConnectTimeout(opts.ConnectTimeout).
		SetServerSelectionTimeout(opts.ServerSelectionTimeout).
		SetSocketTimeout(opts.SocketTimeout).
		SetBSONOptions(&options.BSONOptions{DefaultDocumentM: true}).
		SetServerMonitor(&event.ServerMonitor{
			TopologyDescriptionChanged: conn.onTopologyChanged,
		})
	if opts.MaxPoolSize > 0 {
		clientOpts.SetMaxPoolSize(opts.MaxPoolSize)
	}
	if err := clientOpts.Validate(); err != nil {
		return nil, &connection.HandshakeError{Kind: connection.FailureConfiguration, Err: err}
	}

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, classify(err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), opts.ConnectTimeout)
		defer cancel()
		_ = client.Disconnect(disconnectCtx)
		return nil, classify(err)
	}

	conn.client = client
	conn.store = NewStore(client.Database(database))
	conn.state.Store(int32(connection.Connected))
	conn.ready.Store(true)
	return conn, nil
}

// Connection is a connection.Connection over a mongo.Client.
type Connection struct {
	client *mongo.Client
	store  *Store
	info   connection.Info
	state  atomic.Int32
	ready  atomic.Bool
	closed atomic.Bool
}

func (c *Connection) State() connection.State {
	return connection.State(c.state.Load())
}

func (c *Connection) Documents() ports.DocumentStore {
	return c.store
}

func (c *Connection) Info() connection.Info {
	return c.info
}

// Close disconnects the client.
func (c *Connection) Close(ctx context.Context) error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.state.Store(int32(connection.Disconnecting))
	err := c.client.Disconnect(ctx)
	c.state.Store(int32(connection.Disconnected))
	return err
}

// onTopologyChanged runs with the topology locked; it must not issue
// operations on the client.
func (c *Connection) onTopologyChanged(e *event.TopologyDescriptionChangedEvent) {
	if c.closed.Load() {
		return
	}
	if writable(e.NewDescription) {
		c.state.Store(int32(connection.Connected))
		return
	}
	// The handshake itself decides the first transition to Connected.
	if c.ready.Load() {
		c.state.Store(int32(connection.Disconnected))
	}
}

func writable(topology description.Topology) bool {
	return topology.Kind == description.LoadBalanced || topology.HasWritableServer()
}

// classify maps driver errors onto failure kinds for the operator hint.
func classify(err error) error {
	kind := connection.FailureUnknown

	var cmdErr mongo.CommandError
	switch {
	case errors.As(err, &cmdErr) && (cmdErr.Code == 18 || cmdErr.Code == 13):
		kind = connection.FailureAuthentication
	case strings.Contains(strings.ToLower(err.Error()), "auth"):
		kind = connection.FailureAuthentication
	case mongo.IsTimeout(err):
		kind = connection.FailureTimeout
	case mongo.IsNetworkError(err):
		kind = connection.FailureNetwork
	default:
		kind = connection.Classify(err)
	}
	return &connection.HandshakeError{Kind: kind, Err: err}
}
