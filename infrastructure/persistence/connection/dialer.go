package connection

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"internship-backend/application/ports"
)

// Connection is a live handle to the document database.
type Connection interface {
	// State reads the driver's view of the connection. It must not block.
	State() State
	Documents() ports.DocumentStore
	Info() Info
	Close(ctx context.Context) error
}

// Info describes where a connection points.
type Info struct {
	Driver   string
	Host     string
	Database string
}

// Options configures a handshake.
type Options struct {
	URI                    string
	Database               string
	ConnectTimeout         time.Duration
	ServerSelectionTimeout time.Duration
	SocketTimeout          time.Duration
	MaxPoolSize            uint64
}

// HandshakeTimeout bounds a whole handshake: opening the socket plus
// selecting a server.
func (o Options) HandshakeTimeout() time.Duration {
	if d := o.ConnectTimeout + o.ServerSelectionTimeout; d > 0 {
		return d
	}
	return defaultHandshakeTimeout
}

const defaultHandshakeTimeout = time.Minute

// Dialer performs the handshake for one kind of database.
type Dialer interface {
	Dial(ctx context.Context, opts Options) (Connection, error)
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(ctx context.Context, opts Options) (Connection, error)

// Dial calls f.
func (f DialerFunc) Dial(ctx context.Context, opts Options) (Connection, error) {
	return f(ctx, opts)
}

// SchemeDialer routes a handshake to the dialer registered for the URI
// scheme, e.g. "mongodb", "mongodb+srv" or "dynamodb".
type SchemeDialer map[string]Dialer

// Dial implements Dialer.
func (d SchemeDialer) Dial(ctx context.Context, opts Options) (Connection, error) {
	scheme := Scheme(opts.URI)
	dialer, ok := d[scheme]
	if !ok {
		return nil, &HandshakeError{
			Kind: FailureConfiguration,
			Err:  fmt.Errorf("no dialer registered for scheme %q", scheme),
		}
	}
	return dialer.Dial(ctx, opts)
}

// Scheme returns the lower-cased scheme of a database URI.
func Scheme(uri string) string {
	if i := strings.Index(uri, "://"); i > 0 {
		return strings.ToLower(uri[:i])
	}
	return ""
}

// RedactURI strips credentials and query from a URI so it can be logged.
func RedactURI(uri string) string {
	u, err := url.Parse(uri)
	if err != nil {
		return Scheme(uri) + "://<unparseable>"
	}
	u.User = nil
	u.RawQuery = ""
	return u.String()
}
