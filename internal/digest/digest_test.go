package digest

import "testing"

func TestSumDeterministic(t *testing.T) {
	a := SumString("héllo wörld")
	b := Sum([]byte("héllo wörld"))
	if a != b {
		t.Fatal("string and byte digests of the same UTF-8 input differ")
	}
	if Sum([]byte("x")) == Sum([]byte("y")) {
		t.Fatal("different inputs produced equal digests")
	}
}

func TestEmptyInputHasDigest(t *testing.T) {
	var zero Digest
	if Sum(nil) == zero {
		t.Fatal("empty input must not collapse to the zero digest")
	}
	if Sum(nil) != Sum([]byte{}) {
		t.Error("nil and empty slices should hash identically")
	}
}

func TestParseRoundTrip(t *testing.T) {
	d := SumString("abc")
	got, err := Parse(d.String())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got != d {
		t.Errorf("Parse(%s) = %s", d, got)
	}
	if _, err := Parse("abc"); err == nil {
		t.Error("expected error for short input")
	}
	if _, err := Parse(string(make([]byte, 2*Size))); err == nil {
		t.Error("expected error for non-hex input")
	}
}
