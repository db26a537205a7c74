package delivery

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/arclight-ai/arclight-go/internal/batch"
	"github.com/arclight-ai/arclight-go/internal/event"
	"github.com/arclight-ai/arclight-go/internal/monitoring"
	"github.com/arclight-ai/arclight-go/internal/queue"
	"github.com/arclight-ai/arclight-go/internal/resilience"
)

// Worker drains the queue on a cadence, merges and partitions the drained
// events, and transmits the resulting batches. It is an explicit actor: the
// only ways in are Flush, Stop, and the queue itself.
type Worker struct {
	cfg     Config
	queue   *queue.Queue
	log     *zap.Logger
	metrics *monitoring.Metrics
	client  *resty.Client
	breaker *resilience.Breaker

	// warnLimit throttles failure logging so a broken endpoint surfaces
	// once per window instead of per batch.
	warnLimit *rate.Limiter

	flushCh  chan flushRequest
	stopCh   chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	dropped  atomic.Uint64
}

type flushRequest struct {
	ctx  context.Context
	done chan error
}

// NewWorker wires a worker to its queue. Start must be called before events
// are delivered.
func NewWorker(cfg Config, q *queue.Queue, log *zap.Logger, metrics *monitoring.Metrics) *Worker {
	return &Worker{
		cfg:       cfg,
		queue:     q,
		log:       log,
		metrics:   metrics,
		client:    newHTTPClient(cfg),
		breaker:   resilience.New(resilience.Settings{}),
		warnLimit: rate.NewLimiter(rate.Every(10*time.Second), 1),
		flushCh:   make(chan flushRequest),
		stopCh:    make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start launches the background loop.
func (w *Worker) Start() {
	go w.run()
}

func (w *Worker) run() {
	defer close(w.done)

	ticker := time.NewTicker(w.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.cycle(context.Background())
		case <-w.queue.Wake():
			w.cycle(context.Background())
		case req := <-w.flushCh:
			req.done <- w.cycle(req.ctx)
		case <-w.stopCh:
			// final drain so Close loses nothing that was enqueued
			w.cycle(context.Background())
			return
		}
	}
}

// Flush blocks until everything enqueued before the call has been through
// exactly one delivery cycle. Items enqueued after the flush begins are not
// waited on. On deadline expiry undelivered items stay queued for the next
// cycle and the context error is returned.
func (w *Worker) Flush(ctx context.Context) error {
	req := flushRequest{ctx: ctx, done: make(chan error, 1)}

	select {
	case w.flushCh <- req:
	case <-w.done:
		return errors.New("delivery worker is stopped")
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-req.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop performs a final drain and halts the worker.
func (w *Worker) Stop(ctx context.Context) error {
	w.stopOnce.Do(func() { close(w.stopCh) })

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dropped returns the number of events lost in delivery (permanent failures
// and exhausted retries). Queue overflow is counted separately by the queue.
func (w *Worker) Dropped() uint64 {
	return w.dropped.Load()
}

// cycle runs one drain/merge/partition/transmit pass. Merge and serialization
// failures are programming errors: they abort the cycle (dropping its events)
// but never the process.
func (w *Worker) cycle(ctx context.Context) error {
	events := w.queue.Drain()
	w.metrics.QueueDepth.Set(float64(w.queue.Len()))
	if len(events) == 0 {
		return nil
	}

	merged, err := event.Merge(events)
	if err != nil {
		w.drop(len(events), monitoring.ReasonInternal)
		w.log.Error("merge failed, dropping cycle",
			zap.Error(err),
			zap.Int("events", len(events)),
		)
		return err
	}

	kept := make([]event.Event, 0, len(merged))
	payloads := make([][]byte, 0, len(merged))
	for _, ev := range merged {
		raw, err := sonic.Marshal(ev.Row())
		if err != nil {
			w.drop(1, monitoring.ReasonInternal)
			w.log.Error("row serialization failed", zap.Error(err), zap.String("row_id", ev.ID))
			continue
		}
		kept = append(kept, ev)
		payloads = append(payloads, raw)
	}

	offset := 0
	for _, items := range batch.Partition(payloads, w.cfg.Batch) {
		if ctx.Err() != nil {
			// deadline hit mid-flush: the rest stays pending
			w.requeue(kept[offset:])
			return ctx.Err()
		}
		w.deliver(ctx, items, kept[offset:offset+len(items)])
		offset += len(items)
	}
	// nil normally; the deadline error when it expired during the last batch
	return ctx.Err()
}

// deliver transmits one batch and settles the fate of its events.
func (w *Worker) deliver(ctx context.Context, items [][]byte, events []event.Event) {
	body := buildBody(items)
	w.metrics.BatchBytes.Observe(float64(len(body)))

	compressed, err := gzipBytes(body)
	if err != nil {
		w.drop(len(events), monitoring.ReasonInternal)
		w.log.Error("batch compression failed", zap.Error(err))
		return
	}

	requestID := ulid.Make().String()
	start := time.Now()

	var resp *resty.Response
	err = w.breaker.Do(func() error {
		r, callErr := w.client.R().
			SetContext(ctx).
			SetHeader("x-request-id", requestID).
			SetBody(compressed).
			Post(ingestPath)
		if callErr != nil {
			return callErr
		}
		resp = r
		if code := resp.StatusCode(); code == 429 || code >= 500 {
			return fmt.Errorf("ingestion endpoint returned %d", code)
		}
		return nil
	})

	w.metrics.DeliverySeconds.Observe(time.Since(start).Seconds())
	w.metrics.BatchesSent.Inc()

	switch {
	case errors.Is(err, resilience.ErrCircuitOpen):
		// endpoint is cooling off; this is transient, not a drop
		w.requeue(events)
	case err != nil && ctx.Err() != nil:
		// flush deadline hit mid-transmit; the batch stays pending
		w.requeue(events)
	case err != nil:
		w.drop(len(events), monitoring.ReasonExhausted)
		w.warn("telemetry batch dropped after exhausting retries",
			zap.Error(err),
			zap.String("request_id", requestID),
			zap.Int("events", len(events)),
		)
	case resp.IsSuccess():
		w.metrics.EventsDelivered.Add(float64(len(events)))
	default:
		w.drop(len(events), monitoring.ReasonPermanent)
		w.warn("telemetry batch rejected by ingestion endpoint",
			zap.Int("status", resp.StatusCode()),
			zap.String("request_id", requestID),
			zap.Int("events", len(events)),
		)
	}
}

// requeue returns undelivered events to the queue for the next cycle. It
// never blocks, even on a blocking-mode queue: the worker is the only
// drainer, so waiting for space here would deadlock.
func (w *Worker) requeue(events []event.Event) {
	for _, ev := range events {
		if err := w.queue.TryEnqueue(ev); err != nil {
			w.metrics.EventsDropped.WithLabelValues(monitoring.ReasonOverflow).Inc()
		}
	}
}

func (w *Worker) drop(n int, reason string) {
	w.dropped.Add(uint64(n))
	w.metrics.EventsDropped.WithLabelValues(reason).Add(float64(n))
}

func (w *Worker) warn(msg string, fields ...zap.Field) {
	if w.warnLimit.Allow() {
		w.log.Warn(msg, fields...)
	}
}
