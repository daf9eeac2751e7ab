package wiremessage

import (
	"bytes"
	"testing"

	"github.com/davecgh/go-spew/spew"

	"github.com/streamdb/mongowire/bsoncore"
)

func TestHeaderRoundTrip(t *testing.T) {
	h := Header{MessageLength: 44, RequestID: 7, ResponseTo: 0, OpCode: OpQuery}
	var buf [HeaderLen]byte
	WriteHeader(buf[:], h)
	got := ReadHeader(buf[:])
	if got != h {
		t.Fatalf("ReadHeader(WriteHeader(h)) = %+v, want %+v", got, h)
	}
}

func TestQuerySerializeByteExact(t *testing.T) {
	q := Query{
		Flags:          QuerySlaveOK | QueryExhaust,
		FullCollection: "test.users",
		NumberToSkip:   0,
		NumberToReturn: 1,
		QueryDoc:       bsoncore.NewEmpty(),
	}

	if int32(q.Flags) != 0x44 {
		t.Fatalf("flags = %#x, want 0x44", int32(q.Flags))
	}

	buf := q.Save(0, 0)
	if len(buf) != 44 {
		t.Fatalf("len(buf) = %d, want 44", len(buf))
	}

	wantPrefix := []byte{0x2c, 0x00, 0x00, 0x00}
	if !bytes.Equal(buf[0:4], wantPrefix) {
		t.Fatalf("length prefix = % x, want % x", buf[0:4], wantPrefix)
	}

	wantOpCode := []byte{0xd4, 0x07, 0x00, 0x00}
	if !bytes.Equal(buf[12:16], wantOpCode) {
		t.Fatalf("op code bytes = % x, want % x", buf[12:16], wantOpCode)
	}
}

func TestQueryLoadBodyRoundTrip(t *testing.T) {
	q := Query{
		Flags:          QueryTailableCursor | QueryPartial,
		FullCollection: "db.coll",
		NumberToSkip:   5,
		NumberToReturn: 100,
		QueryDoc:       bsoncore.NewEmpty().AppendInt32("a", 1),
	}
	buf := q.Save(1, 0)

	msg, h, err := Decode(buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if h.OpCode != OpQuery {
		t.Fatalf("OpCode = %v, want OpQuery", h.OpCode)
	}
	got := msg.(*Query)
	if got.Flags != q.Flags || got.FullCollection != q.FullCollection ||
		got.NumberToSkip != q.NumberToSkip || got.NumberToReturn != q.NumberToReturn {
		t.Fatalf("round trip mismatch:\ngot:  %s\nwant: %s", spew.Sdump(got), spew.Sdump(q))
	}
	if !bsoncore.Document(got.QueryDoc).Equal(bsoncore.Document(q.QueryDoc)) {
		t.Fatalf("query doc mismatch")
	}
	if got.ReturnFieldsSel != nil {
		t.Fatal("expected no field selector")
	}
}

func TestQueryWithFieldSelector(t *testing.T) {
	q := Query{
		FullCollection: "db.coll",
		QueryDoc:       bsoncore.NewEmpty(),
		ReturnFieldsSel: bsoncore.NewEmpty().AppendInt32("a", 1).Bytes(),
	}
	buf := q.Save(1, 0)
	msg, _, err := Decode(buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	got := msg.(*Query)
	if got.ReturnFieldsSel == nil {
		t.Fatal("expected field selector to round trip")
	}
}

func TestQueryIsCommand(t *testing.T) {
	cases := map[string]bool{
		"db.$cmd":  true,
		"db.users": false,
	}
	for coll, want := range cases {
		q := Query{FullCollection: coll}
		if got := q.IsCommand(); got != want {
			t.Fatalf("IsCommand(%q) = %v, want %v", coll, got, want)
		}
	}
}

func TestReplyRoundTrip(t *testing.T) {
	r := Reply{
		Flags:          ReplyAwaitCapable,
		CursorID:       12345,
		StartingFrom:   0,
		NumberReturned: 2,
		Documents: []bsoncore.Document{
			bsoncore.NewEmpty().AppendInt32("n", 1),
			bsoncore.NewEmpty().AppendInt32("n", 2),
		},
	}
	buf := r.Save(0, 7)

	msg, h, err := Decode(buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if h.ResponseTo != 7 {
		t.Fatalf("ResponseTo = %d, want 7", h.ResponseTo)
	}
	got := msg.(*Reply)
	if got.CursorID != r.CursorID || got.NumberReturned != 2 || len(got.Documents) != 2 {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestReplyRejectsMismatchedDocumentCount(t *testing.T) {
	r := Reply{
		NumberReturned: 2,
		Documents:      []bsoncore.Document{bsoncore.NewEmpty()},
	}
	buf := r.Save(0, 0)
	// Patch the declared number_returned back up to 2 so the body is short
	// one document relative to what the header claims; LoadBody must catch
	// the mismatch instead of reading past the buffer.
	writeI32(buf, 16+16, 2)
	if _, _, err := Decode(buf); err == nil {
		t.Fatal("expected error decoding a reply whose document count disagrees with the body")
	}
}

func TestUpdateRoundTrip(t *testing.T) {
	u := Update{
		FullCollection: "db.coll",
		Flags:          UpdateUpsert | UpdateMultiUpdate,
		Selector:       bsoncore.NewEmpty().AppendInt32("_id", 1),
		UpdateDoc:      bsoncore.NewEmpty().AppendInt32("x", 2),
	}
	buf := u.Save(3, 0)
	msg, _, err := Decode(buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	got := msg.(*Update)
	if got.FullCollection != u.FullCollection || got.Flags != u.Flags {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestInsertRoundTrip(t *testing.T) {
	ins := Insert{
		FullCollection: "db.coll",
		Documents: []bsoncore.Document{
			bsoncore.NewEmpty().AppendInt32("a", 1),
			bsoncore.NewEmpty().AppendInt32("a", 2),
			bsoncore.NewEmpty().AppendInt32("a", 3),
		},
	}
	buf := ins.Save(4, 0)
	msg, _, err := Decode(buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	got := msg.(*Insert)
	if len(got.Documents) != 3 {
		t.Fatalf("len(Documents) = %d, want 3", len(got.Documents))
	}
}

func TestInsertRejectsEmptyBatch(t *testing.T) {
	ins := &Insert{}
	if ins.LoadBody([]byte{0, 0, 0, 0, 'd', 'b', '.', 'c', 0}) {
		t.Fatal("expected rejection of an insert with zero documents")
	}
}

func TestDeleteRoundTrip(t *testing.T) {
	d := Delete{
		FullCollection: "db.coll",
		Flags:          DeleteSingleRemove,
		Selector:       bsoncore.NewEmpty().AppendInt32("_id", 9),
	}
	buf := d.Save(5, 0)
	msg, _, err := Decode(buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	got := msg.(*Delete)
	if got.Flags != DeleteSingleRemove || got.FullCollection != "db.coll" {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestGetMoreRoundTrip(t *testing.T) {
	g := GetMore{FullCollection: "db.coll", NumberToReturn: 100, CursorID: 99887766}
	buf := g.Save(6, 0)
	msg, _, err := Decode(buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	got := msg.(*GetMore)
	if got.CursorID != g.CursorID || got.NumberToReturn != g.NumberToReturn {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestKillCursorsRoundTrip(t *testing.T) {
	k := KillCursors{CursorIDs: []int64{1, 2, 3}}
	buf := k.Save(0, 0)
	msg, _, err := Decode(buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	got := msg.(*KillCursors)
	if len(got.CursorIDs) != 3 || got.CursorIDs[2] != 3 {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestMsgRoundTrip(t *testing.T) {
	m := Msg{Message: "deprecated notice"}
	buf := m.Save(0, 0)
	msg, h, err := Decode(buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if h.OpCode != OpMessage {
		t.Fatalf("OpCode = %v, want OpMessage", h.OpCode)
	}
	if msg.(*Msg).Message != "deprecated notice" {
		t.Fatalf("message = %q", msg.(*Msg).Message)
	}
}

func TestDecodeRejectsLengthMismatch(t *testing.T) {
	q := Query{FullCollection: "db.coll", QueryDoc: bsoncore.NewEmpty()}
	buf := q.Save(0, 0)
	truncated := buf[:len(buf)-1]
	if _, _, err := Decode(truncated); err == nil {
		t.Fatal("expected error decoding a buffer shorter than its declared length")
	}
}

func TestOpCodeClassification(t *testing.T) {
	if !OpInsert.IsMutation() || !OpUpdate.IsMutation() || !OpDelete.IsMutation() {
		t.Fatal("INSERT/UPDATE/DELETE must be classified as mutations")
	}
	if OpQuery.IsMutation() || OpGetMore.IsMutation() {
		t.Fatal("QUERY/GETMORE must not be classified as mutations")
	}
	if !OpQuery.HasServerReply() || !OpGetMore.HasServerReply() {
		t.Fatal("QUERY/GETMORE must expect a server reply")
	}
	if OpInsert.HasServerReply() || OpKillCursors.HasServerReply() {
		t.Fatal("INSERT/KILL_CURSORS must not expect a server reply")
	}
}
