package codec

import (
	"math"
	"math/rand"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var hexCursor = regexp.MustCompile(`^[0-9a-f]{16}$`)

func TestXactBijection(t *testing.T) {
	cases := []uint64{
		0, 1, 2, 1000000,
		XactEpochBase, XactEpochBase + 1, XactEpochBase + 987654321,
		math.MaxUint64, math.MaxUint64 - 1,
	}

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 1000; i++ {
		cases = append(cases, rng.Uint64())
	}

	for _, n := range cases {
		encoded := EncodeXact(n)
		require.True(t, hexCursor.MatchString(encoded),
			"cursor %q is not 16 lowercase hex chars", encoded)

		decoded, err := DecodeXact(encoded)
		require.NoError(t, err)
		assert.Equal(t, n, decoded)
	}
}

func TestXactNotIdentity(t *testing.T) {
	// The cursor must obfuscate: the hex rendering of the raw id is not a
	// valid cursor for itself.
	n := XactEpochBase + 12345
	assert.NotEqual(t, EncodeXact(n), "e000000000003039")
}

func TestDecodeXactMalformed(t *testing.T) {
	tests := []string{
		"",
		"abc",
		"e0000000000030390", // 17 chars
		"zzzzzzzzzzzzzzzz",
	}

	for _, s := range tests {
		_, err := DecodeXact(s)
		assert.ErrorIs(t, err, ErrMalformedHandle, "cursor %q", s)
	}
}
