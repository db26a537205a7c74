package arclight

import (
	"context"
	"sync"
	"time"

	"github.com/arclight-ai/arclight-go/internal/codec"
	"github.com/arclight-ai/arclight-go/internal/event"
	"github.com/arclight-ai/arclight-go/otelbridge"
)

// Span is one timed unit of work. Log and End emit partial events for the
// span's row; the pipeline merges them before transmission.
type Span struct {
	client    *Client
	container event.Container

	name       string
	rowID      string
	spanID     string
	rootSpanID string
	parents    []string

	start   time.Time
	endOnce sync.Once
}

type spanCtxKey struct{}

// CurrentSpan returns the span carried by ctx, or nil. Span state is always
// context-scoped, never a process global, so concurrent requests cannot leak
// parents into each other.
func CurrentSpan(ctx context.Context) *Span {
	s, _ := ctx.Value(spanCtxKey{}).(*Span)
	return s
}

func contextWithSpan(ctx context.Context, s *Span) context.Context {
	return context.WithValue(ctx, spanCtxKey{}, s)
}

// StartSpan creates a span and makes it current on the returned context.
// Parentage, in priority order: the current native span on ctx, then an
// OpenTelemetry span on ctx (via the bridge), else a new root. A child
// shares its parent's root_span_id and records the parent span id as its
// sole parent.
func (c *Client) StartSpan(ctx context.Context, name string) (context.Context, *Span) {
	s := &Span{
		client:    c,
		container: c.container,
		name:      name,
		rowID:     codec.NewRowID(),
		spanID:    codec.NewSpanID(),
		start:     time.Now(),
	}

	if parent := CurrentSpan(ctx); parent != nil {
		s.container = parent.container
		s.rootSpanID = parent.rootSpanID
		s.parents = []string{parent.spanID}
	} else if p, ok := otelbridge.ParentFromContext(ctx); ok && codec.ActiveScheme() == codec.SchemeOTel {
		s.rootSpanID = p.TraceID
		s.parents = []string{p.SpanID}
	} else {
		s.rootSpanID = rootIDFor(s.spanID)
	}

	data := map[string]any{
		"created":         s.start.UTC().Format(time.RFC3339Nano),
		"span_id":         s.spanID,
		"root_span_id":    s.rootSpanID,
		"span_attributes": map[string]any{"name": name},
		"metrics":         map[string]any{"start": float64(s.start.UnixNano()) / 1e9},
	}
	if len(s.parents) > 0 {
		data["span_parents"] = s.parents
	}
	c.enqueue(event.Event{Container: s.container, ID: s.rowID, IsMerge: true, Data: data})

	ctx = contextWithSpan(ctx, s)
	if codec.ActiveScheme() == codec.SchemeOTel {
		// make this span current for otel instrumentation as well
		if bridged, err := otelbridge.ContextWithNativeSpan(ctx, s.rootSpanID, s.spanID); err == nil {
			ctx = bridged
		}
	}
	return ctx, s
}

// Log emits a partial update for the span's row. Field values for matching
// keys overwrite earlier ones; nested objects merge recursively.
func (s *Span) Log(fields Fields) error {
	if err := event.ValidateMetadata(fields["metadata"]); err != nil {
		return err
	}

	data := make(map[string]any, len(fields)+2)
	for k, v := range fields {
		data[k] = v
	}
	data["span_id"] = s.spanID
	data["root_span_id"] = s.rootSpanID

	s.client.enqueue(event.Event{Container: s.container, ID: s.rowID, IsMerge: true, Data: data})
	return nil
}

// End closes the span, recording its end timestamp. Safe to call more than
// once; only the first call emits.
func (s *Span) End() {
	s.endOnce.Do(func() {
		end := time.Now()
		s.client.enqueue(event.Event{
			Container: s.container,
			ID:        s.rowID,
			IsMerge:   true,
			Data: map[string]any{
				"span_id":      s.spanID,
				"root_span_id": s.rootSpanID,
				"metrics":      map[string]any{"end": float64(end.UnixNano()) / 1e9},
			},
		})
	})
}

// SpanID returns the span's identifier.
func (s *Span) SpanID() string { return s.spanID }

// RootSpanID returns the identifier shared by every span of this trace.
func (s *Span) RootSpanID() string { return s.rootSpanID }

// Export encodes the span's identity as an opaque handle string that any
// process can resume logging from.
func (s *Span) Export() (string, error) {
	components := codec.Components{
		Kind:        containerKind(s.container),
		ContainerID: s.container.ID(),
		Row: &codec.RowRef{
			RowID:      s.rowID,
			SpanID:     s.spanID,
			RootSpanID: s.rootSpanID,
		},
	}
	return components.Encode()
}

// ResumeSpan reconstructs a span from an exported handle. Logging continues
// against the original row, and spans started under the resumed span share
// its trace with the original span as their parent.
func (c *Client) ResumeSpan(handle string) (*Span, error) {
	components, err := codec.DecodeComponents(handle)
	if err != nil {
		return nil, err
	}
	if components.Row == nil {
		return nil, codec.ErrMalformedHandle
	}

	return &Span{
		client:     c,
		container:  containerFrom(components),
		rowID:      components.Row.RowID,
		spanID:     components.Row.SpanID,
		rootSpanID: components.Row.RootSpanID,
		start:      time.Now(),
	}, nil
}

// ContextWithResumedSpan resumes a handle and makes the span current, so
// StartSpan nests new work under the originating trace.
func (c *Client) ContextWithResumedSpan(ctx context.Context, handle string) (context.Context, *Span, error) {
	s, err := c.ResumeSpan(handle)
	if err != nil {
		return ctx, nil, err
	}
	return contextWithSpan(ctx, s), s, nil
}

// containerKind maps the event container union onto the handle wire tag.
func containerKind(c event.Container) codec.ContainerKind {
	switch c.Kind {
	case event.KindExperiment:
		return codec.ContainerExperiment
	case event.KindProjectLogs:
		return codec.ContainerProjectLogs
	default:
		panic("arclight: unknown container kind")
	}
}

// containerFrom maps decoded handle components back onto the event container
// union.
func containerFrom(components codec.Components) event.Container {
	switch components.Kind {
	case codec.ContainerExperiment:
		return event.Experiment(components.ContainerID)
	default:
		return event.ProjectLogs(components.ContainerID)
	}
}
