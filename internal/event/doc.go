// Package event defines the row/event data model the pipeline transports and
// the merge engine that collapses partial updates to the same logical row
// into a single record before transmission.
//
// A row's identity is the pair (container, row id). Rows marked with the
// merge flag are partial updates combined key-by-key with their peers; rows
// without the flag replace the accumulated payload wholesale. Lineage fields
// (created, span_id, root_span_id, _parent_id, span_parents) are structural
// rather than payload: they propagate forward on a last-writer-wins basis
// regardless of the merge flag.
package event
