// Package delivery runs the background worker that turns the event queue
// into rate-limited, size-bounded network writes.
//
// A single worker goroutine owns the drain/merge/partition/transmit cycle;
// producers only ever touch the queue. Failures are classified per batch:
// network errors, 429 and 5xx responses retry with backoff up to the retry
// budget (handled by the retryable transport), other 4xx responses drop
// immediately. Both terminal outcomes feed the drop counter; neither ever
// propagates to producers. A circuit breaker keeps a dead endpoint from
// burning every batch's retry budget, and a synchronous flush gives callers
// a best-effort delivery confirmation before shutdown.
package delivery
