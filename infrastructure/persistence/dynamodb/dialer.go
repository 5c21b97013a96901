package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"sync/atomic"

	"internship-backend/application/ports"
	"internship-backend/infrastructure/persistence/connection"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-xray-sdk-go/instrumentation/awsv2"
	"github.com/aws/smithy-go"
)

// target is the parsed form of dynamodb://<table>?region=<r>&endpoint=<url>.
type target struct {
	Table    string
	Region   string
	Endpoint string
}

func parseURI(uri string) (target, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return target{}, fmt.Errorf("invalid dynamodb uri: %w", err)
	}
	if !strings.EqualFold(u.Scheme, "dynamodb") {
		return target{}, fmt.Errorf("unexpected scheme %q", u.Scheme)
	}
	table := u.Host
	if table == "" {
		table = strings.Trim(u.Path, "/")
	}
	if table == "" {
		return target{}, errors.New("dynamodb uri has no table name")
	}
	q := u.Query()
	return target{
		Table:    table,
		Region:   q.Get("region"),
		Endpoint: q.Get("endpoint"),
	}, nil
}

// Dialer opens DynamoDB-backed connections. The handshake is a
// DescribeTable call that must find an ACTIVE table.
type Dialer struct {
	// Tracing instruments the AWS client with X-Ray subsegments.
	Tracing bool
}

// NewDialer creates a DynamoDB dialer
func NewDialer(tracing bool) *Dialer {
	return &Dialer{Tracing: tracing}
}

func (d *Dialer) Dial(ctx context.Context, opts connection.Options) (connection.Connection, error) {
	t, err := parseURI(opts.URI)
	if err != nil {
		return nil, &connection.HandshakeError{Kind: connection.FailureConfiguration, Err: err}
	}

	httpClient := awshttp.NewBuildableClient().
		WithTimeout(opts.SocketTimeout).
		WithDialerOptions(func(nd *net.Dialer) {
			nd.Timeout = opts.ConnectTimeout
		})

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithHTTPClient(httpClient),
	}
	if t.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(t.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, &connection.HandshakeError{Kind: connection.FailureConfiguration, Err: fmt.Errorf("failed to load AWS config: %w", err)}
	}
	if d.Tracing {
		awsv2.AWSV2Instrumentor(&awsCfg.APIOptions)
	}

	client := awsdynamodb.NewFromConfig(awsCfg, func(o *awsdynamodb.Options) {
		if t.Endpoint != "" {
			o.BaseEndpoint = aws.String(t.Endpoint)
		}
	})

	out, err := client.DescribeTable(ctx, &awsdynamodb.DescribeTableInput{
		TableName: aws.String(t.Table),
	})
	if err != nil {
		return nil, classify(err)
	}
	if out.Table != nil && out.Table.TableStatus != types.TableStatusActive && out.Table.TableStatus != types.TableStatusUpdating {
		return nil, &connection.HandshakeError{
			Kind: connection.FailureConfiguration,
			Err:  fmt.Errorf("table %s is %s", t.Table, out.Table.TableStatus),
		}
	}

	conn := &Connection{
		store:     NewStore(client, t.Table),
		transport: httpClient,
		info: connection.Info{
			Driver:   "dynamodb",
			Host:     hostOf(t, awsCfg.Region),
			Database: t.Table,
		},
	}
	conn.state.Store(int32(connection.Connected))
	return conn, nil
}

func hostOf(t target, region string) string {
	if t.Endpoint != "" {
		return t.Endpoint
	}
	return "dynamodb." + region + ".amazonaws.com"
}

// Connection wraps a DynamoDB client. The service is reached over
// stateless HTTPS requests, so the connection stays usable until closed.
type Connection struct {
	store     *Store
	transport *awshttp.BuildableClient
	info      connection.Info
	state     atomic.Int32
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

func (c *Connection) Close(ctx context.Context) error {
	c.state.Store(int32(connection.Disconnected))
	c.transport.GetTransport().CloseIdleConnections()
	return nil
}

func classify(err error) error {
	kind := connection.Classify(err)

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "UnrecognizedClientException", "InvalidSignatureException",
			"AccessDeniedException", "ExpiredTokenException", "MissingAuthenticationToken":
			kind = connection.FailureAuthentication
		case "ResourceNotFoundException", "ValidationException":
			kind = connection.FailureConfiguration
		}
	}
	return &connection.HandshakeError{Kind: kind, Err: err}
}
