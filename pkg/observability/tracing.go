package observability

import (
	"context"
	"fmt"

	"github.com/aws/aws-xray-sdk-go/xray"
)

// Tracer provides distributed tracing capabilities. When disabled every
// call runs the wrapped function untraced.
type Tracer struct {
	serviceName string
	enabled     bool
}

// NewTracer creates a new tracer instance
func NewTracer(serviceName string, enabled bool) *Tracer {
	return &Tracer{
		serviceName: serviceName,
		enabled:     enabled,
	}
}

// Enabled reports whether segments are recorded.
func (t *Tracer) Enabled() bool {
	return t.enabled
}

// StartSegment starts a new trace segment
func (t *Tracer) StartSegment(ctx context.Context, name string) (context.Context, *xray.Segment) {
	return xray.BeginSegment(ctx, fmt.Sprintf("%s.%s", t.serviceName, name))
}

// TraceFunction wraps fn in a subsegment of the segment carried by ctx.
// Detached contexts, such as the shared handshake, get a segment of their own.
func (t *Tracer) TraceFunction(ctx context.Context, name string, fn func(context.Context) error) error {
	if !t.enabled {
		return fn(ctx)
	}

	var seg *xray.Segment
	var subCtx context.Context
	if xray.GetSegment(ctx) == nil {
		subCtx, seg = t.StartSegment(ctx, name)
	} else {
		subCtx, seg = xray.BeginSubsegment(ctx, name)
	}
	if seg == nil {
		return fn(ctx)
	}

	err := fn(subCtx)
	seg.Close(err)
	return err
}
