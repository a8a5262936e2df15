package bitvector

import "testing"

func TestEncodeDecodeRoundTrip(t *testing.T) {
	v := New(200)
	v.Set(0)
	v.Set(150)
	buf := Encode(v)
	if len(buf) != SerializedLength(v.Width()) {
		t.Fatalf("unexpected serialized length: %d", len(buf))
	}
	got, err := Decode(buf)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if !got.Equal(v) {
		t.Fatalf("round trip mismatch: got %v want %v", got.Words(), v.Words())
	}
}

func TestDecodeRejectsMismatchedLength(t *testing.T) {
	v := New(64)
	buf := Encode(v)
	if _, err := Decode(buf[:len(buf)-1]); err == nil {
		t.Fatal("expected error for truncated buffer")
	}
}

// TestExpandingDecodeTwoDaemonEightRanks exercises §8 scenario 1: two
// one-word daemon payloads slotted into a two-word total vector.
func TestExpandingDecodeTwoDaemonEightRanks(t *testing.T) {
	d0 := New(4) // ranks 0-3, one word
	for _, r := range []int{0, 1, 2, 3} {
		d0.Set(r)
	}
	d1 := New(4) // ranks 4-7 locally re-based to 0-3, one word
	for _, r := range []int{0, 1, 2, 3} {
		d1.Set(r)
	}

	buf0 := Encode(d0)
	buf1 := Encode(d1)

	out0, err := ExpandingDecode(buf0, 2, 0, 1)
	if err != nil {
		t.Fatalf("child0: %v", err)
	}
	out1, err := ExpandingDecode(buf1, 2, 1, 1)
	if err != nil {
		t.Fatalf("child1: %v", err)
	}

	merged := out0.Clone()
	if err := merged.Or(out1); err != nil {
		t.Fatalf("merge: %v", err)
	}

	if merged.Words()[0] != 0x0F || merged.Words()[1] != 0x0F {
		t.Fatalf("expected word0=0x0F word1=0x0F, got %#x %#x", merged.Words()[0], merged.Words()[1])
	}
	if merged.PrettyPrint() != "[0-3,64-67]" {
		t.Fatalf("unexpected pretty print: %s", merged.PrettyPrint())
	}
}

func TestExpandingDecodeRejectsOutOfRangeSlice(t *testing.T) {
	v := New(64)
	buf := Encode(v)
	if _, err := ExpandingDecode(buf, 1, 1, 1); err == nil {
		t.Fatal("expected error for slice exceeding total width")
	}
}

func TestExpandingDecodeRejectsWidthMismatch(t *testing.T) {
	v := New(64)
	buf := Encode(v)
	if _, err := ExpandingDecode(buf, 4, 0, 2); err == nil {
		t.Fatal("expected error for child width mismatch")
	}
}
