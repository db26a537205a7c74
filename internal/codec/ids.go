package codec

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Scheme selects how span and trace identifiers are generated. Exactly one
// scheme is active per process: the first call to SetScheme (or the first
// identifier generated) fixes it for the process lifetime.
type Scheme int

const (
	// SchemeUUID renders identifiers as canonical UUIDv4 strings. A root
	// span's root_span_id may equal its own span_id.
	SchemeUUID Scheme = iota

	// SchemeOTel renders span ids as 16 lowercase hex characters (8 random
	// bytes) and trace ids as 32 lowercase hex characters (16 random bytes),
	// matching the OpenTelemetry wire format. Required by the otel bridge.
	SchemeOTel
)

// String returns the string representation of the scheme.
func (s Scheme) String() string {
	switch s {
	case SchemeUUID:
		return "uuid"
	case SchemeOTel:
		return "otel"
	default:
		return "unknown"
	}
}

var (
	schemeMu    sync.Mutex
	scheme      = SchemeUUID
	schemeFixed bool
)

// SetScheme selects the process-wide identifier scheme. The scheme is fixed
// on first use; selecting a different scheme afterwards is an error.
func SetScheme(s Scheme) error {
	schemeMu.Lock()
	defer schemeMu.Unlock()

	if schemeFixed && scheme != s {
		return fmt.Errorf("identifier scheme already fixed to %s for this process", scheme)
	}
	scheme = s
	schemeFixed = true
	return nil
}

// ActiveScheme returns the currently selected identifier scheme without
// fixing it.
func ActiveScheme() Scheme {
	schemeMu.Lock()
	defer schemeMu.Unlock()
	return scheme
}

// fixScheme pins the current scheme and returns it.
func fixScheme() Scheme {
	schemeMu.Lock()
	defer schemeMu.Unlock()
	schemeFixed = true
	return scheme
}

// resetScheme clears scheme fixation. Test support only.
func resetScheme() {
	schemeMu.Lock()
	defer schemeMu.Unlock()
	scheme = SchemeUUID
	schemeFixed = false
}

// NewSpanID generates a span identifier under the active scheme.
func NewSpanID() string {
	if fixScheme() == SchemeOTel {
		return randomHex(8)
	}
	return uuid.NewString()
}

// NewTraceID generates a trace (root span) identifier under the active
// scheme.
func NewTraceID() string {
	if fixScheme() == SchemeOTel {
		return randomHex(16)
	}
	return uuid.NewString()
}

// NewRowID generates a row identifier. Row ids are always UUID-shaped
// regardless of the span id scheme so they pack into fixed-width handle
// fields.
func NewRowID() string {
	return uuid.NewString()
}

// randomHex returns n cryptographically random bytes as lowercase hex.
func randomHex(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand never fails on supported platforms
		panic(fmt.Sprintf("codec: rand.Read: %v", err))
	}
	return hex.EncodeToString(buf)
}
