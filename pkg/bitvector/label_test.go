package bitvector

import "testing"

func TestLabelMergeBitvector(t *testing.T) {
	a := NewBitvectorLabel(New(64))
	a.Vec.Set(1)
	b := NewBitvectorLabel(New(64))
	b.Vec.Set(2)

	merged, err := a.Merge(b)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if merged.Vec.Count() != 2 {
		t.Fatalf("expected 2 bits set, got %d", merged.Vec.Count())
	}
}

func TestLabelMergeCountRep(t *testing.T) {
	a := NewCountRepLabel(CountRep{Count: 3, Representative: 5, Checksum: 0xAA})
	b := NewCountRepLabel(CountRep{Count: 2, Representative: 1, Checksum: 0x55})

	merged, err := a.Merge(b)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if merged.CountRep.Count != 5 {
		t.Fatalf("expected count 5, got %d", merged.CountRep.Count)
	}
	if merged.CountRep.Representative != 1 {
		t.Fatalf("expected representative 1 (lowest rank), got %d", merged.CountRep.Representative)
	}
}

func TestLabelMergeRejectsMismatchedVariants(t *testing.T) {
	a := NewBitvectorLabel(New(64))
	b := NewCountRepLabel(CountRep{})
	if _, err := a.Merge(b); err == nil {
		t.Fatal("expected error merging differing variants")
	}
}

func TestCountRepEncodeDecodeRoundTrip(t *testing.T) {
	c := CountRep{Count: 42, Representative: 7, Checksum: -1}
	buf := EncodeCountRep(c)
	if len(buf) != 24 {
		t.Fatalf("expected 24-byte record, got %d", len(buf))
	}
	got, err := DecodeCountRep(buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != c {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, c)
	}
}
