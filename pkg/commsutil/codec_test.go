package commsutil

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type envelope struct {
	ID        string `cbor:"id"`
	Signature string `cbor:"signature,omitempty"`
	Body      []byte `cbor:"body,omitempty"`
}

func TestEncodePayload_Deterministic(t *testing.T) {
	a, err := EncodePayload(map[string]any{"b": 1, "a": "x", "c": []int{1, 2}})
	if err != nil {
		t.Fatalf("commsutil:codec_test - unexpected error: %v", err)
	}
	b, err := EncodePayload(map[string]any{"c": []int{1, 2}, "a": "x", "b": 1})
	if err != nil {
		t.Fatalf("commsutil:codec_test - unexpected error: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Errorf("commsutil:codec_test - map key order changed the encoding")
	}
}

func TestEncodePayload_Unsupported(t *testing.T) {
	if _, err := EncodePayload(make(chan int)); err == nil {
		t.Fatal("commsutil:codec_test - expected error for channel")
	}
}

func TestDecodePayload_Struct(t *testing.T) {
	in := envelope{ID: "req-1", Signature: "sb", Body: []byte{3, 'a', 'b', 'c', 1}}
	data, err := EncodePayload(in)
	if err != nil {
		t.Fatalf("commsutil:codec_test - encode: %v", err)
	}
	var out envelope
	if err := DecodePayload(data, &out); err != nil {
		t.Fatalf("commsutil:codec_test - decode: %v", err)
	}
	if diff := cmp.Diff(in, out); diff != "" {
		t.Errorf("commsutil:codec_test - mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodePayload_UntypedMapHasStringKeys(t *testing.T) {
	data, err := EncodePayload(map[string]any{"outer": map[string]int{"inner": 1}})
	if err != nil {
		t.Fatalf("commsutil:codec_test - encode: %v", err)
	}
	var out any
	if err := DecodePayload(data, &out); err != nil {
		t.Fatalf("commsutil:codec_test - decode: %v", err)
	}
	m, ok := out.(map[string]any)
	if !ok {
		t.Fatalf("commsutil:codec_test - got %T, want map[string]any", out)
	}
	if _, ok := m["outer"].(map[string]any); !ok {
		t.Errorf("commsutil:codec_test - nested map is %T, want map[string]any", m["outer"])
	}
}

func TestDecodePayload_Errors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"truncated", []byte{0xa1, 0x62, 'i'}},
		{"wrong type", []byte{0x01}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out envelope
			if err := DecodePayload(tt.data, &out); err == nil {
				t.Errorf("commsutil:codec_test - expected error")
			}
		})
	}
}

func TestDiagnose(t *testing.T) {
	data, err := EncodePayload(envelope{ID: "x"})
	if err != nil {
		t.Fatalf("commsutil:codec_test - encode: %v", err)
	}
	got, err := Diagnose(data)
	if err != nil {
		t.Fatalf("commsutil:codec_test - diagnose: %v", err)
	}
	if !strings.Contains(got, `"id": "x"`) {
		t.Errorf("commsutil:codec_test - Diagnose = %s", got)
	}
}
