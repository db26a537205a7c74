package codec

import (
	"testing"

	"github.com/google/uuid"
)

func TestNewSpanIDUUIDScheme(t *testing.T) {
	resetScheme()

	id1 := NewSpanID()
	id2 := NewSpanID()

	if id1 == id2 {
		t.Error("generated span ids should be unique")
	}
	if _, err := uuid.Parse(id1); err != nil {
		t.Errorf("span id should be a UUID under the default scheme: %v", err)
	}
}

func TestNewSpanIDOTelScheme(t *testing.T) {
	resetScheme()
	if err := SetScheme(SchemeOTel); err != nil {
		t.Fatalf("SetScheme: %v", err)
	}

	span := NewSpanID()
	trace := NewTraceID()

	if len(span) != 16 {
		t.Errorf("otel span id should be 16 hex chars, got %d", len(span))
	}
	if len(trace) != 32 {
		t.Errorf("otel trace id should be 32 hex chars, got %d", len(trace))
	}
}

func TestSchemeFixedAfterFirstUse(t *testing.T) {
	resetScheme()

	_ = NewSpanID() // fixes SchemeUUID

	if err := SetScheme(SchemeOTel); err == nil {
		t.Error("switching scheme after first use should fail")
	}
	if err := SetScheme(SchemeUUID); err != nil {
		t.Errorf("re-selecting the active scheme should succeed: %v", err)
	}
}

func TestNewRowIDAlwaysUUID(t *testing.T) {
	resetScheme()
	if err := SetScheme(SchemeOTel); err != nil {
		t.Fatalf("SetScheme: %v", err)
	}

	if _, err := uuid.Parse(NewRowID()); err != nil {
		t.Errorf("row ids should be UUID-shaped under every scheme: %v", err)
	}
}
