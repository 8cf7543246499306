package safetensors

import "testing"

func sampleTensors() []Tensor {
	return []Tensor{
		{Name: "b.weight", Shape: []int{2, 3}, Values: []float32{1, 2, 3, 4, 5, 6}},
		{Name: "a.bias", Shape: []int{4}, Values: []float32{-1, 0.5, 0, 3.25}},
	}
}

// TestEncodeParseRoundTrip writes an archive and reads it back, checking
// that shapes, metadata and every value survive bit-identically.
func TestEncodeParseRoundTrip(t *testing.T) {
	meta := map[string]string{"kind": "c2k", "heads": "4"}
	data, err := Encode(sampleTensors(), meta)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	f, err := Parse(data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if f.Metadata["kind"] != "c2k" || f.Metadata["heads"] != "4" {
		t.Fatalf("metadata lost: %v", f.Metadata)
	}
	for _, want := range sampleTensors() {
		values, info, err := f.ReadTensorF32(want.Name)
		if err != nil {
			t.Fatalf("read %s: %v", want.Name, err)
		}
		if len(info.Shape) != len(want.Shape) {
			t.Fatalf("%s: shape %v, want %v", want.Name, info.Shape, want.Shape)
		}
		for i, v := range want.Values {
			if values[i] != v {
				t.Fatalf("%s[%d] = %f, want %f", want.Name, i, values[i], v)
			}
		}
	}
}

// TestEncodeDeterministic verifies that encoding the same tensors twice
// yields identical bytes, the basis of the round-trip guarantee.
func TestEncodeDeterministic(t *testing.T) {
	a, err := Encode(sampleTensors(), map[string]string{"k": "v"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	b, err := Encode(sampleTensors(), map[string]string{"k": "v"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if string(a) != string(b) {
		t.Fatal("two encodes of the same input differ")
	}
}

// TestParseTruncated covers archives cut off in the length prefix, the
// header and the payload.
func TestParseTruncated(t *testing.T) {
	data, err := Encode(sampleTensors(), nil)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	for _, n := range []int{0, 4, 12, len(data) - 5} {
		if _, err := Parse(data[:n]); err == nil {
			t.Fatalf("expected error for archive truncated to %d bytes", n)
		}
	}
}

// TestReadTensorErrors covers missing tensors and dtype/shape mismatches.
func TestReadTensorErrors(t *testing.T) {
	data, err := Encode(sampleTensors(), nil)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	f, err := Parse(data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if _, _, err := f.ReadTensorF32("missing"); err == nil {
		t.Fatal("expected error for missing tensor")
	}

	// A non-F32 dtype must be rejected.
	bad := `{"x":{"dtype":"F16","shape":[2],"data_offsets":[0,4]}}`
	raw := make([]byte, 0, 8+len(bad)+4)
	raw = append(raw, byte(len(bad)), 0, 0, 0, 0, 0, 0, 0)
	raw = append(raw, bad...)
	raw = append(raw, 0, 0, 0, 0)
	ff, err := Parse(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if _, _, err := ff.ReadTensorF32("x"); err == nil {
		t.Fatal("expected error for unsupported dtype")
	}
}

// TestEncodeRejectsBadShapes verifies shape/value count validation.
func TestEncodeRejectsBadShapes(t *testing.T) {
	if _, err := Encode([]Tensor{{Name: "x", Shape: []int{3}, Values: []float32{1}}}, nil); err == nil {
		t.Fatal("expected error for value count mismatch")
	}
	if _, err := Encode([]Tensor{{Name: "x", Shape: []int{0}, Values: nil}}, nil); err == nil {
		t.Fatal("expected error for zero dim")
	}
}

// TestParseRejectsBadOffsets verifies that offsets pointing outside the
// payload are caught at parse time.
func TestParseRejectsBadOffsets(t *testing.T) {
	bad := `{"x":{"dtype":"F32","shape":[2],"data_offsets":[0,999]}}`
	raw := make([]byte, 0, 8+len(bad))
	raw = append(raw, byte(len(bad)), 0, 0, 0, 0, 0, 0, 0)
	raw = append(raw, bad...)
	if _, err := Parse(raw); err == nil {
		t.Fatal("expected error for out-of-payload offsets")
	}
}
