package codec

import (
	"fmt"
	"strconv"
)

// The internal transaction counter is never exposed directly. Cursors handed
// to clients are the counter multiplied by a fixed odd constant modulo 2^64;
// odd constants are coprime to 2^64, so the transform is a bijection and
// inverts by multiplying with the modular inverse. No lookup table, no hash.
const (
	xactMultiplier uint64 = 0x9e3779b97f4a7c15
	xactInverse    uint64 = 0xf1de83e19937733d

	// XactEpochBase is the first value the transaction counter is allocated
	// from. The high-bit pattern tags every live transaction id so cursors
	// are distinguishable from raw counters.
	XactEpochBase uint64 = 0xe000_0000_0000_0000
)

// EncodeXact obfuscates an internal transaction id into a pagination cursor.
// The output is always exactly 16 lowercase hex characters.
func EncodeXact(id uint64) string {
	return fmt.Sprintf("%016x", id*xactMultiplier)
}

// DecodeXact inverts EncodeXact. Cursors must be exactly 16 hex characters;
// anything else is ErrMalformedHandle.
func DecodeXact(s string) (uint64, error) {
	if len(s) != 16 {
		return 0, fmt.Errorf("%w: cursor must be 16 hex characters, got %d", ErrMalformedHandle, len(s))
	}
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMalformedHandle, err)
	}
	return v * xactInverse, nil
}
