package objectid

import "testing"

func TestFromHexRoundTrip(t *testing.T) {
	const s = "507f1f77bcf86cd799439011"
	id, err := FromHex(s)
	if err != nil {
		t.Fatalf("FromHex: %v", err)
	}

	want := ObjectId{0x50, 0x7f, 0x1f, 0x77, 0xbc, 0xf8, 0x6c, 0xd7, 0x99, 0x43, 0x90, 0x11}
	if id != want {
		t.Fatalf("FromHex(%q) = %x, want %x", s, id, want)
	}

	if got := id.String(); got != s {
		t.Fatalf("String() = %q, want %q", got, s)
	}
}

func TestFromHexRejectsWrongLength(t *testing.T) {
	for _, s := range []string{"", "abc", "507f1f77bcf86cd79943901", "507f1f77bcf86cd7994390111"} {
		if _, err := FromHex(s); err == nil {
			t.Errorf("FromHex(%q) unexpectedly succeeded", s)
		}
	}
}

func TestFromHexRejectsNonHex(t *testing.T) {
	if _, err := FromHex("zzzzzzzzzzzzzzzzzzzzzzzz"); err == nil {
		t.Fatal("FromHex of non-hex string unexpectedly succeeded")
	}
}

func TestNewIsUniqueAndOrdered(t *testing.T) {
	a := New()
	b := New()
	if a == b {
		t.Fatal("two successive New() calls produced the same ObjectId")
	}
	if a.Compare(b) > 0 {
		t.Fatal("ObjectId generated first should not sort after one generated later within the same process")
	}
}

func TestCompare(t *testing.T) {
	low := ObjectId{0x00}
	high := ObjectId{0x01}
	if low.Compare(high) != -1 {
		t.Fatal("expected low < high")
	}
	if high.Compare(low) != 1 {
		t.Fatal("expected high > low")
	}
	if low.Compare(low) != 0 {
		t.Fatal("expected equal ids to compare 0")
	}
}

func TestIsZero(t *testing.T) {
	var id ObjectId
	if !id.IsZero() {
		t.Fatal("zero value should report IsZero")
	}
	if New().IsZero() {
		t.Fatal("generated id should not be zero")
	}
}
