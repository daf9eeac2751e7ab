package bsoncore

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/streamdb/mongowire/objectid"
)

func TestNewEmpty(t *testing.T) {
	d := NewEmpty()
	want := []byte{0x05, 0x00, 0x00, 0x00, 0x00}
	if diff := cmp.Diff(want, []byte(d)); diff != "" {
		t.Fatalf("NewEmpty() mismatch (-want +got):\n%s", diff)
	}
	if !d.IsEmpty() {
		t.Fatal("expected IsEmpty")
	}

	it := d.Iterator()
	if it.Next() {
		t.Fatal("Next() on empty document should return false")
	}
}

func TestNewFromBytesRejectsBadLength(t *testing.T) {
	if _, ok := NewFromBytes([]byte{0x06, 0x00, 0x00, 0x00, 0x00}); ok {
		t.Fatal("expected rejection of mismatched length prefix")
	}
	if _, ok := NewFromBytes([]byte{0x05, 0x00, 0x00, 0x00, 0x01}); ok {
		t.Fatal("expected rejection of missing NUL terminator")
	}
	if _, ok := NewFromBytes(nil); ok {
		t.Fatal("expected rejection of too-short buffer")
	}
}

func TestNewFromBytesAccepts(t *testing.T) {
	d, ok := NewFromBytes([]byte{0x05, 0x00, 0x00, 0x00, 0x00})
	if !ok {
		t.Fatal("expected acceptance of valid empty document")
	}
	if !d.Validate() {
		t.Fatal("expected valid document")
	}
}

func TestNewWithObjectID(t *testing.T) {
	fixed := objectid.ObjectId{0x50, 0x7f, 0x1f, 0x77, 0xbc, 0xf8, 0x6c, 0xd7, 0x99, 0x43, 0x90, 0x11}
	d := NewWithObjectID(objectid.SupplierFunc(func() objectid.ObjectId { return fixed }))

	it := d.Iterator()
	if !it.Next() {
		t.Fatal("expected one element")
	}
	if it.Key() != "_id" {
		t.Fatalf("key = %q, want _id", it.Key())
	}
	got, ok := it.ObjectID()
	if !ok || got != fixed {
		t.Fatalf("ObjectID() = %x, %v, want %x, true", got, ok, fixed)
	}
	if it.Next() {
		t.Fatal("expected exactly one element")
	}
}

func TestAppendAllTypesRoundTrip(t *testing.T) {
	id := objectid.New()
	now := time.Now().UTC().Round(time.Millisecond)
	sub := NewEmpty().AppendInt32("n", 1)
	arr := NewArray().AppendInt32(1).AppendInt32(2)
	str := "hello"

	d := NewEmpty().
		AppendDouble("d", 3.5).
		AppendString("s", &str).
		AppendString("nilstr", nil).
		AppendDocument("sub", sub).
		AppendArray("arr", arr).
		AppendUndefined("u").
		AppendObjectID("_id", id).
		AppendBoolean("b", true).
		AppendDateTime("dt", now).
		AppendNull("null").
		AppendRegex("re", "^a", "i").
		AppendInt32("i32", -7).
		AppendInt64("i64", 1<<40)

	if !d.Validate() {
		t.Fatalf("document failed to validate: %s", d.DebugString())
	}

	it := d.Iterator()

	must := func(ok bool) {
		t.Helper()
		if !ok {
			t.Fatalf("Next() unexpectedly false at key %q", it.Key())
		}
	}

	must(it.Next())
	if v, ok := it.Double(); !ok || v != 3.5 {
		t.Fatalf("Double() = %v, %v", v, ok)
	}

	must(it.Next())
	if v, ok := it.StringValue(); !ok || v != "hello" {
		t.Fatalf("StringValue() = %q, %v", v, ok)
	}

	must(it.Next())
	if !it.IsNull() {
		t.Fatal("nil *string should append Null")
	}

	must(it.Next())
	if v, ok := it.Document(); !ok || !v.Equal(sub) {
		t.Fatalf("Document() = %v, %v", v, ok)
	}

	must(it.Next())
	if v, ok := it.ArrayValue(); !ok || !Document(v).Equal(Document(arr)) {
		t.Fatalf("ArrayValue() = %v, %v", v, ok)
	}

	must(it.Next())
	if !it.IsUndefined() {
		t.Fatal("expected undefined")
	}

	must(it.Next())
	if v, ok := it.ObjectID(); !ok || v != id {
		t.Fatalf("ObjectID() = %x, %v", v, ok)
	}

	must(it.Next())
	if v, ok := it.Boolean(); !ok || !v {
		t.Fatalf("Boolean() = %v, %v", v, ok)
	}

	must(it.Next())
	if v, ok := it.DateTime(); !ok || !v.Equal(now) {
		t.Fatalf("DateTime() = %v, %v, want %v", v, ok, now)
	}

	must(it.Next())
	if !it.IsNull() {
		t.Fatal("expected null")
	}

	must(it.Next())
	if p, o, ok := it.Regex(); !ok || p != "^a" || o != "i" {
		t.Fatalf("Regex() = %q, %q, %v", p, o, ok)
	}

	must(it.Next())
	if v, ok := it.Int32(); !ok || v != -7 {
		t.Fatalf("Int32() = %v, %v", v, ok)
	}

	must(it.Next())
	if v, ok := it.Int64(); !ok || v != 1<<40 {
		t.Fatalf("Int64() = %v, %v", v, ok)
	}

	if it.Next() {
		t.Fatal("expected no more elements")
	}
}

func TestBooleanLenientCoercion(t *testing.T) {
	d := NewEmpty().
		AppendInt32("zero", 0).
		AppendInt32("nonzero", 5).
		AppendInt64("zero64", 0).
		AppendDouble("one", 1.0).
		AppendDouble("notone", 2.0).
		AppendString("s", strPtr("x"))

	expect := []bool{false, true, false, true}
	it := d.Iterator()
	for i := 0; i < 4; i++ {
		if !it.Next() {
			t.Fatalf("Next() failed at index %d", i)
		}
		v, ok := it.Boolean()
		if !ok || v != expect[i] {
			t.Fatalf("index %d: Boolean() = %v, %v, want %v", i, v, ok, expect[i])
		}
	}

	if !it.Next() { // notone
		t.Fatal("expected notone")
	}
	if v, ok := it.Boolean(); !ok || v {
		t.Fatalf("2.0 should coerce to false, got %v, %v", v, ok)
	}

	if !it.Next() { // s
		t.Fatal("expected s")
	}
	if _, ok := it.Boolean(); ok {
		t.Fatal("string should not coerce to boolean")
	}
}

func TestJoin(t *testing.T) {
	a := NewEmpty().AppendInt32("a", 1)
	b := NewEmpty().AppendInt32("b", 2)

	joined := a.Join(b)
	if !joined.Validate() {
		t.Fatalf("joined document invalid: %s", joined.DebugString())
	}

	it := joined.Iterator()
	var keys []string
	for it.Next() {
		keys = append(keys, it.Key())
	}
	if diff := cmp.Diff([]string{"a", "b"}, keys); diff != "" {
		t.Fatalf("keys mismatch (-want +got):\n%s", diff)
	}
}

func TestJoinWithEmptyIsNoOp(t *testing.T) {
	a := NewEmpty().AppendInt32("a", 1)
	joined := a.Join(NewEmpty())
	if !joined.Equal(a) {
		t.Fatal("joining an empty document should be a no-op")
	}
}

func strPtr(s string) *string { return &s }
