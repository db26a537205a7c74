// Package codec provides identifier generation and the compact encodings
// used to pass span identity across process and protocol boundaries.
//
// Three concerns live here:
//   - Span/trace identifier generation under one of two process-wide
//     schemes: canonical UUIDs (default) or OpenTelemetry-compatible hex
//     identifiers (8-byte span ids, 16-byte trace ids).
//   - SpanComponents: a versioned, self-describing binary handle to a
//     logging container and optionally a specific row/span/root-span
//     triple, base64-encoded for transport as an opaque string.
//   - Xact cursors: an invertible obfuscation of the internal transaction
//     counter used for pagination, rendered as 16 lowercase hex characters.
//
// All encode/decode operations are pure functions. Identifier generation
// draws from crypto/rand.
package codec
