package bsoncore

import (
	"strings"
	"testing"
	"time"

	"github.com/streamdb/mongowire/objectid"
)

func TestDocumentStringBasic(t *testing.T) {
	d := NewEmpty().AppendInt32("a", 1).AppendStringValue("b", "x")
	got := d.String()
	want := `{ "a": 1, "b": "x" }`
	if got != want {
		t.Fatalf("String() = %q, want %q", got, want)
	}
}

func TestDocumentStringEmpty(t *testing.T) {
	if got := NewEmpty().String(); got != "{}" {
		t.Fatalf("String() = %q, want {}", got)
	}
}

func TestRenderObjectIdAndDateTimeAndInt64(t *testing.T) {
	id := objectid.New()
	now := time.Date(2021, 3, 4, 5, 6, 7, 0, time.UTC)
	d := NewEmpty().
		AppendObjectID("_id", id).
		AppendDateTime("ts", now).
		AppendInt64("big", 1<<40)

	got := d.String()
	if !strings.Contains(got, `ObjectId("`+id.String()+`")`) {
		t.Fatalf("String() = %q, missing ObjectId rendering", got)
	}
	if !strings.Contains(got, `ISODate("2021-03-04T05:06:07.000Z")`) {
		t.Fatalf("String() = %q, missing ISODate rendering", got)
	}
	if !strings.Contains(got, "NumberLong(1099511627776)") {
		t.Fatalf("String() = %q, missing NumberLong rendering", got)
	}
}

func TestRenderRegex(t *testing.T) {
	d := NewEmpty().AppendRegex("re", "^a$", "i")
	got := d.String()
	want := `{ "re": Regex("^a$","i") }`
	if got != want {
		t.Fatalf("String() = %q, want %q", got, want)
	}
}

func TestDebugStringIncludesAllElements(t *testing.T) {
	d := NewEmpty().AppendInt32("a", 1).AppendBoolean("b", true)
	got := d.DebugString()
	if !strings.Contains(got, "a:") || !strings.Contains(got, "b:") {
		t.Fatalf("DebugString() = %q, missing expected keys", got)
	}
}

func TestValidateRejectsTruncatedBuffer(t *testing.T) {
	d := NewEmpty().AppendInt32("a", 1).AppendInt32("b", 2)
	truncated := Document(d[:len(d)-3])
	if truncated.Validate() {
		t.Fatal("truncated document should not validate")
	}
}

func TestValidateAcceptsWellFormed(t *testing.T) {
	d := NewWithObjectID(nil)
	if !d.Validate() {
		t.Fatalf("document failed to validate: %s", d.DebugString())
	}
}

func TestArrayValidateDelegatesToDocument(t *testing.T) {
	a := NewArray().AppendInt32(1).AppendInt32(2)
	if !a.Validate() {
		t.Fatal("expected valid array")
	}
	bad := Array(Document(a)[:len(a)-2])
	if bad.Validate() {
		t.Fatal("truncated array should not validate")
	}
}
