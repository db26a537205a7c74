package arclight

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/arclight-ai/arclight-go/internal/batch"
	"github.com/arclight-ai/arclight-go/internal/codec"
	"github.com/arclight-ai/arclight-go/internal/config"
	"github.com/arclight-ai/arclight-go/internal/delivery"
	"github.com/arclight-ai/arclight-go/internal/event"
	"github.com/arclight-ai/arclight-go/internal/logging"
	"github.com/arclight-ai/arclight-go/internal/monitoring"
	"github.com/arclight-ai/arclight-go/internal/queue"
)

// Fields is the payload of one log call: row fields such as "input",
// "output", "metadata", "metrics", and "scores".
type Fields map[string]any

// Client owns one delivery pipeline: a bounded queue and its background
// worker, targeting a single container (an experiment or a project's log
// stream).
type Client struct {
	container event.Container
	queue     *queue.Queue
	worker    *delivery.Worker
	log       *zap.Logger
	metrics   *monitoring.Metrics
}

type options struct {
	cfg        *config.Config
	container  *event.Container
	logger     *zap.Logger
	registerer prometheus.Registerer
}

// Option configures a Client.
type Option func(*options)

// WithExperiment routes events to an evaluation experiment.
func WithExperiment(experimentID string) Option {
	return func(o *options) {
		c := event.Experiment(experimentID)
		o.container = &c
	}
}

// WithProject routes events to a project's log stream.
func WithProject(projectID string) Option {
	return func(o *options) {
		c := event.ProjectLogs(projectID)
		o.container = &c
	}
}

// WithAPIKey sets the ingestion API key, overriding ARCLIGHT_API_KEY.
func WithAPIKey(key string) Option {
	return func(o *options) { o.cfg.App.APIKey = key }
}

// WithAppURL sets the ingestion base URL, overriding ARCLIGHT_APP_URL.
func WithAppURL(url string) Option {
	return func(o *options) { o.cfg.App.URL = url }
}

// WithQueueSize bounds the delivery queue.
func WithQueueSize(n int) Option {
	return func(o *options) { o.cfg.Queue.MaxSize = n }
}

// WithBlockingEnqueue makes producers wait for queue space instead of
// dropping on overflow. Explicit opt-in: the default never stalls callers.
func WithBlockingEnqueue() Option {
	return func(o *options) { o.cfg.Queue.Blocking = true }
}

// WithFlushInterval sets the background worker cadence.
func WithFlushInterval(d time.Duration) Option {
	return func(o *options) { o.cfg.Flush.Interval = d }
}

// WithBatchLimits bounds each transmitted batch by item count and byte size.
// Zero means unlimited for that dimension.
func WithBatchLimits(maxItems, maxBytes int) Option {
	return func(o *options) {
		o.cfg.Flush.MaxBatchItems = maxItems
		o.cfg.Flush.MaxBatchBytes = maxBytes
	}
}

// WithRetryBudget bounds transient delivery retries per batch.
func WithRetryBudget(n int) Option {
	return func(o *options) { o.cfg.Retry.Budget = n }
}

// WithOTelCompat switches span and trace ids to the OpenTelemetry hex
// format, enabling the otelbridge package. The identifier scheme is fixed
// process-wide by the first client created.
func WithOTelCompat() Option {
	return func(o *options) { o.cfg.IDs.OTelCompat = true }
}

// WithLogger injects the host application's logger for SDK diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithConfig supplies a fully resolved configuration, skipping the
// environment.
func WithConfig(cfg *config.Config) Option {
	return func(o *options) { o.cfg = cfg }
}

// WithMetricsRegistry registers pipeline metrics on the given registry
// instead of the Prometheus default.
func WithMetricsRegistry(reg prometheus.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

// New creates a client and starts its background delivery worker. A
// container (WithExperiment or WithProject) is required.
func New(opts ...Option) (*Client, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	o := options{cfg: cfg}
	for _, opt := range opts {
		opt(&o)
	}

	if o.container == nil {
		return nil, errors.New("arclight: a container is required: use WithExperiment or WithProject")
	}
	if err := o.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("arclight: %w", err)
	}

	scheme := codec.SchemeUUID
	if o.cfg.IDs.OTelCompat {
		scheme = codec.SchemeOTel
	}
	if err := codec.SetScheme(scheme); err != nil {
		return nil, fmt.Errorf("arclight: %w", err)
	}

	log := o.logger
	if log == nil {
		log, err = logging.New(logging.Config{
			Level:       o.cfg.Logging.Level,
			Development: o.cfg.Logging.Development,
		})
		if err != nil {
			return nil, fmt.Errorf("arclight: %w", err)
		}
	}

	metrics := monitoring.Default()
	if o.registerer != nil {
		metrics = monitoring.New(o.registerer)
	}

	q := queue.New(o.cfg.Queue.MaxSize, o.cfg.Queue.Blocking)
	worker := delivery.NewWorker(delivery.Config{
		URL:           o.cfg.App.URL,
		APIKey:        o.cfg.App.APIKey,
		FlushInterval: o.cfg.Flush.Interval,
		Batch: batch.Limits{
			MaxItems: o.cfg.Flush.MaxBatchItems,
			MaxBytes: o.cfg.Flush.MaxBatchBytes,
		},
		RetryBudget:    o.cfg.Retry.Budget,
		AttemptTimeout: o.cfg.Retry.AttemptTimeout,
		RetryMinWait:   o.cfg.Retry.MinWait,
		RetryMaxWait:   o.cfg.Retry.MaxWait,
	}, q, log, metrics)
	worker.Start()

	return &Client{
		container: *o.container,
		queue:     q,
		worker:    worker,
		log:       log,
		metrics:   metrics,
	}, nil
}

// Log writes a standalone row to the client's container: a complete entry
// with its own identity and no parents.
func (c *Client) Log(fields Fields) error {
	if err := event.ValidateMetadata(fields["metadata"]); err != nil {
		return err
	}

	spanID := codec.NewSpanID()
	data := make(map[string]any, len(fields)+3)
	for k, v := range fields {
		data[k] = v
	}
	data["created"] = time.Now().UTC().Format(time.RFC3339Nano)
	data["span_id"] = spanID
	data["root_span_id"] = rootIDFor(spanID)

	c.enqueue(event.Event{
		Container: c.container,
		ID:        codec.NewRowID(),
		Data:      data,
	})
	return nil
}

// Flush blocks until every event enqueued before the call has been through
// one delivery attempt cycle. The context bounds the wait; on expiry,
// undelivered events stay queued for the next cycle.
func (c *Client) Flush(ctx context.Context) error {
	return c.worker.Flush(ctx)
}

// DropCount returns the total number of events lost so far: queue overflow
// plus permanent delivery failures and exhausted retries. Monotonic.
func (c *Client) DropCount() uint64 {
	return c.queue.Dropped() + c.worker.Dropped()
}

// Close drains the queue one final time and stops the worker.
func (c *Client) Close(ctx context.Context) error {
	return c.worker.Stop(ctx)
}

// enqueue hands an event to the queue, accounting for overflow. Delivery
// problems are never surfaced here: producers have already returned.
func (c *Client) enqueue(ev event.Event) {
	err := c.queue.Enqueue(context.Background(), ev)
	switch {
	case err == nil:
		c.metrics.EventsEnqueued.Inc()
	case errors.Is(err, queue.ErrDropped):
		c.metrics.EventsDropped.WithLabelValues(monitoring.ReasonOverflow).Inc()
	}
}

// rootIDFor returns the root span id for a fresh root span: self-referential
// under the UUID scheme, a distinct trace id under the otel scheme.
func rootIDFor(spanID string) string {
	if codec.ActiveScheme() == codec.SchemeOTel {
		return codec.NewTraceID()
	}
	return spanID
}
