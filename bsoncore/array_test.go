package bsoncore

import "testing"

func TestArrayDecimalIndexKeys(t *testing.T) {
	a := NewArray().
		AppendString("zero").
		AppendString("one").
		AppendString("two")

	if !Document(a).Validate() {
		t.Fatalf("array failed to validate: %s", Document(a).DebugString())
	}

	it := a.Iterator()
	wantKeys := []string{"0", "1", "2"}
	wantVals := []string{"zero", "one", "two"}
	for i := 0; i < 3; i++ {
		if !it.Next() {
			t.Fatalf("expected element %d", i)
		}
		if it.Key() != wantKeys[i] {
			t.Fatalf("key[%d] = %q, want %q", i, it.Key(), wantKeys[i])
		}
		v, ok := it.StringValue()
		if !ok || v != wantVals[i] {
			t.Fatalf("value[%d] = %q, %v, want %q", i, v, ok, wantVals[i])
		}
	}
	if it.Next() {
		t.Fatal("expected exactly 3 elements")
	}
}

func TestArrayStringRendering(t *testing.T) {
	a := NewArray().AppendInt32(1).AppendInt32(2).AppendInt32(3)
	got := a.String()
	want := "[ 1, 2, 3 ]"
	if got != want {
		t.Fatalf("String() = %q, want %q", got, want)
	}
}

func TestArrayOfDocuments(t *testing.T) {
	a := NewArray().
		AppendDocument(NewEmpty().AppendInt32("x", 1)).
		AppendDocument(NewEmpty().AppendInt32("x", 2))

	it := a.Iterator()
	sum := int32(0)
	for it.Next() {
		sub, ok := it.Document()
		if !ok {
			t.Fatal("expected embedded document")
		}
		subIt := sub.Iterator()
		if !subIt.Next() {
			t.Fatal("expected field x")
		}
		v, _ := subIt.Int32()
		sum += v
	}
	if sum != 3 {
		t.Fatalf("sum = %d, want 3", sum)
	}
}

func TestItoa(t *testing.T) {
	cases := map[int]string{0: "0", 1: "1", 9: "9", 10: "10", 123: "123", 10000: "10000"}
	for n, want := range cases {
		if got := itoa(n); got != want {
			t.Fatalf("itoa(%d) = %q, want %q", n, got, want)
		}
	}
}
