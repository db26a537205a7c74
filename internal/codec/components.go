package codec

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ErrMalformedHandle is returned for any structurally invalid span handle or
// pagination cursor. Decoding is all-or-nothing: there is no partial parse.
var ErrMalformedHandle = errors.New("malformed span handle or handle from a mismatched SDK version")

// ContainerKind tags the logical destination of a span handle.
type ContainerKind byte

const (
	// ContainerExperiment routes rows to an evaluation experiment.
	ContainerExperiment ContainerKind = 1
	// ContainerProjectLogs routes rows to a project's log stream.
	ContainerProjectLogs ContainerKind = 2
)

// String returns the string representation of the container kind.
func (k ContainerKind) String() string {
	switch k {
	case ContainerExperiment:
		return "experiment"
	case ContainerProjectLogs:
		return "project_logs"
	default:
		return "unknown"
	}
}

// componentsVersion is the handle wire format version. Bump on any layout
// change; decoders reject versions they do not understand.
const componentsVersion = 1

// RowRef identifies a specific row within a container together with its span
// identity. The three fields are present as a unit: all set or the RowRef is
// absent entirely.
type RowRef struct {
	RowID      string
	SpanID     string
	RootSpanID string
}

// Components is the decoded form of a portable span handle: a container
// reference and, optionally, a row/span/root-span triple to resume logging
// against.
type Components struct {
	Kind        ContainerKind
	ContainerID string // canonical UUID
	Row         *RowRef
}

// Binary layout, base64 (std) encoded for transport:
//
//	[0]     version
//	[1]     container kind
//	[2]     row triple present (0|1)
//	[3]     row id is UUID-shaped (0|1)
//	[4:20]  container id (UUID bytes)
//	if row triple present:
//	[20:36] span id field
//	[36:52] root span id field
//	[52:]   row id (16 UUID bytes if flagged, else UTF-8 to end)
//
// Span and root id fields hold UUID bytes under SchemeUUID; under SchemeOTel
// the 8-byte span id sits right-aligned in its field and the 16-byte trace id
// fills its field.
const (
	componentsHeaderLen = 4
	componentsFixedLen  = componentsHeaderLen + 16
	rowTripleIDsLen     = 32
)

// Encode serializes the components into an opaque base64 handle string.
func (c Components) Encode() (string, error) {
	switch c.Kind {
	case ContainerExperiment, ContainerProjectLogs:
	default:
		return "", fmt.Errorf("encode span handle: unknown container kind %d", c.Kind)
	}

	containerID, err := uuidBytes(c.ContainerID)
	if err != nil {
		return "", fmt.Errorf("encode span handle: container id: %w", err)
	}

	buf := make([]byte, componentsHeaderLen, componentsFixedLen)
	buf[0] = componentsVersion
	buf[1] = byte(c.Kind)
	buf = append(buf, containerID[:]...)

	if c.Row == nil {
		return base64.StdEncoding.EncodeToString(buf), nil
	}

	if c.Row.RowID == "" || c.Row.SpanID == "" || c.Row.RootSpanID == "" {
		return "", errors.New("encode span handle: row triple requires row, span, and root span ids")
	}
	buf[2] = 1

	spanField, err := packSpanID(c.Row.SpanID)
	if err != nil {
		return "", fmt.Errorf("encode span handle: span id: %w", err)
	}
	rootField, err := packRootSpanID(c.Row.RootSpanID)
	if err != nil {
		return "", fmt.Errorf("encode span handle: root span id: %w", err)
	}
	buf = append(buf, spanField[:]...)
	buf = append(buf, rootField[:]...)

	if rowID, err := uuidBytes(c.Row.RowID); err == nil {
		buf[3] = 1
		buf = append(buf, rowID[:]...)
	} else {
		buf = append(buf, []byte(c.Row.RowID)...)
	}

	return base64.StdEncoding.EncodeToString(buf), nil
}

// DecodeComponents parses an opaque handle string. Any structural violation
// (bad base64, wrong version, wrong byte count, non-UUID bytes where UUID
// bytes are claimed) yields ErrMalformedHandle.
func DecodeComponents(s string) (Components, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return Components{}, fmt.Errorf("%w: %v", ErrMalformedHandle, err)
	}
	if len(raw) < componentsFixedLen {
		return Components{}, fmt.Errorf("%w: truncated (%d bytes)", ErrMalformedHandle, len(raw))
	}
	if raw[0] != componentsVersion {
		return Components{}, fmt.Errorf("%w: unsupported version %d", ErrMalformedHandle, raw[0])
	}

	kind := ContainerKind(raw[1])
	switch kind {
	case ContainerExperiment, ContainerProjectLogs:
	default:
		return Components{}, fmt.Errorf("%w: unknown container kind %d", ErrMalformedHandle, raw[1])
	}
	if raw[2] > 1 || raw[3] > 1 {
		return Components{}, fmt.Errorf("%w: invalid flag bytes", ErrMalformedHandle)
	}
	hasRow := raw[2] == 1
	rowIsUUID := raw[3] == 1

	containerID, err := uuid.FromBytes(raw[componentsHeaderLen:componentsFixedLen])
	if err != nil {
		return Components{}, fmt.Errorf("%w: container id: %v", ErrMalformedHandle, err)
	}

	out := Components{Kind: kind, ContainerID: containerID.String()}
	rest := raw[componentsFixedLen:]

	if !hasRow {
		if len(rest) != 0 || rowIsUUID {
			return Components{}, fmt.Errorf("%w: trailing bytes without row triple", ErrMalformedHandle)
		}
		return out, nil
	}

	if len(rest) < rowTripleIDsLen+1 {
		return Components{}, fmt.Errorf("%w: truncated row triple", ErrMalformedHandle)
	}
	spanID, err := unpackSpanID([16]byte(rest[:16]))
	if err != nil {
		return Components{}, fmt.Errorf("%w: span id: %v", ErrMalformedHandle, err)
	}
	rootSpanID, err := unpackRootSpanID([16]byte(rest[16:32]))
	if err != nil {
		return Components{}, fmt.Errorf("%w: root span id: %v", ErrMalformedHandle, err)
	}

	rowBytes := rest[rowTripleIDsLen:]
	var rowID string
	if rowIsUUID {
		if len(rowBytes) != 16 {
			return Components{}, fmt.Errorf("%w: row id byte count %d", ErrMalformedHandle, len(rowBytes))
		}
		u, err := uuid.FromBytes(rowBytes)
		if err != nil {
			return Components{}, fmt.Errorf("%w: row id: %v", ErrMalformedHandle, err)
		}
		rowID = u.String()
	} else {
		rowID = string(rowBytes)
	}

	out.Row = &RowRef{RowID: rowID, SpanID: spanID, RootSpanID: rootSpanID}
	return out, nil
}

// uuidBytes parses a canonical UUID string into its 16 raw bytes. Strings
// that parse but are not in canonical lowercase form are rejected so that
// encode/decode round trips are byte-exact.
func uuidBytes(s string) ([16]byte, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return [16]byte{}, err
	}
	if u.String() != s {
		return [16]byte{}, fmt.Errorf("%q is not a canonical UUID", s)
	}
	return u, nil
}

// packSpanID serializes a span id into its fixed-width handle field under
// the active identifier scheme.
func packSpanID(id string) ([16]byte, error) {
	var field [16]byte
	if fixScheme() == SchemeOTel {
		raw, err := hex.DecodeString(id)
		if err != nil || len(raw) != 8 || strings.ToLower(id) != id {
			return field, fmt.Errorf("%q is not a 16-char hex span id", id)
		}
		copy(field[8:], raw)
		return field, nil
	}
	return uuidBytes(id)
}

// packRootSpanID serializes a root span (trace) id into its fixed-width
// handle field under the active identifier scheme.
func packRootSpanID(id string) ([16]byte, error) {
	if fixScheme() == SchemeOTel {
		raw, err := hex.DecodeString(id)
		if err != nil || len(raw) != 16 || strings.ToLower(id) != id {
			return [16]byte{}, fmt.Errorf("%q is not a 32-char hex trace id", id)
		}
		return [16]byte(raw), nil
	}
	return uuidBytes(id)
}

// unpackSpanID renders a span id field back to its string form under the
// active identifier scheme.
func unpackSpanID(field [16]byte) (string, error) {
	if fixScheme() == SchemeOTel {
		for _, b := range field[:8] {
			if b != 0 {
				return "", errors.New("span id field has non-zero padding")
			}
		}
		return hex.EncodeToString(field[8:]), nil
	}
	u, err := uuid.FromBytes(field[:])
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

// unpackRootSpanID renders a root span id field back to its string form
// under the active identifier scheme.
func unpackRootSpanID(field [16]byte) (string, error) {
	if fixScheme() == SchemeOTel {
		return hex.EncodeToString(field[:]), nil
	}
	u, err := uuid.FromBytes(field[:])
	if err != nil {
		return "", err
	}
	return u.String(), nil
}
