package ftn

import (
	"bytes"
	"errors"
	"slices"
	"strings"
	"testing"
	"time"
)

func TestWirePacketRoundTrip(t *testing.T) {
	created := time.Date(2026, time.February, 9, 12, 30, 45, 0, time.Local)
	hdr := NewPacketHeader(MustParseAddress("1:103/705"), MustParseAddress("1:104/56.2"), "secret", created)

	msgs := []*PackedMessage{
		{
			MsgType:  2,
			OrigNode: 705,
			DestNode: 56,
			OrigNet:  103,
			DestNet:  104,
			Attr:     MsgAttrLocal,
			DateTime: FormatFTNDateTime(created),
			To:       "All",
			From:     "Test User",
			Subject:  "Test Subject",
			Body:     "AREA:GENERAL\r\x01MSGID: 1:103/705 12345678\rHello World!\r * Origin: Test BBS (1:103/705)\rSEEN-BY: 103/705\r\x01PATH: 103/705\r",
		},
	}

	var buf bytes.Buffer
	if err := WritePacket(&buf, hdr, msgs); err != nil {
		t.Fatalf("WritePacket: %v", err)
	}

	hdr2, msgs2, err := ReadPacket(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("ReadPacket: %v", err)
	}
	if got := hdr2.Origin().String(); got != "1:103/705" {
		t.Errorf("origin: got %s, want 1:103/705", got)
	}
	if got := hdr2.Destination().String(); got != "1:104/56.2" {
		t.Errorf("destination: got %s, want 1:104/56.2", got)
	}
	if got := hdr2.PasswordString(); got != "secret" {
		t.Errorf("password: got %q, want %q", got, "secret")
	}
	if !hdr2.Created().Equal(created) {
		t.Errorf("created: got %v, want %v", hdr2.Created(), created)
	}
	if len(msgs2) != 1 {
		t.Fatalf("message count: got %d, want 1", len(msgs2))
	}
	if *msgs2[0] != *msgs[0] {
		t.Errorf("message mismatch:\ngot:  %+v\nwant: %+v", *msgs2[0], *msgs[0])
	}
}

func TestPasswordTruncated(t *testing.T) {
	hdr := NewPacketHeader(Address{}, Address{}, "verylongpassword", time.Now())
	if got := hdr.PasswordString(); got != "verylong" {
		t.Errorf("password: got %q, want %q", got, "verylong")
	}
	if got := PacketPassword("verylongpassword"); got != hdr.PasswordString() {
		t.Errorf("PacketPassword: got %q, want %q", got, hdr.PasswordString())
	}
	if got := PacketPassword("short"); got != "short" {
		t.Errorf("PacketPassword: got %q, want short", got)
	}
}

func TestLongFieldsTruncated(t *testing.T) {
	msg := &PackedMessage{
		MsgType:  2,
		DateTime: FormatFTNDateTime(time.Now()),
		To:       strings.Repeat("T", 50),
		From:     strings.Repeat("F", 36),
		Subject:  strings.Repeat("S", 100),
		Body:     "body\r",
	}
	var buf bytes.Buffer
	if err := WritePacket(&buf, NewPacketHeader(Address{}, Address{}, "", time.Now()), []*PackedMessage{msg}); err != nil {
		t.Fatalf("WritePacket: %v", err)
	}
	_, msgs, err := ReadPacket(&buf)
	if err != nil {
		t.Fatalf("ReadPacket: %v", err)
	}
	if len(msgs[0].To) != 35 || len(msgs[0].From) != 35 || len(msgs[0].Subject) != 71 {
		t.Errorf("field lengths: got %d/%d/%d, want 35/35/71",
			len(msgs[0].To), len(msgs[0].From), len(msgs[0].Subject))
	}
}

func TestFormatAndParseFTNDateTime(t *testing.T) {
	ts := time.Date(2026, 2, 9, 14, 30, 45, 0, time.Local)
	s := FormatFTNDateTime(ts)
	if s != "09 Feb 26  14:30:45" {
		t.Errorf("FormatFTNDateTime: got %q, want %q", s, "09 Feb 26  14:30:45")
	}

	parsed, err := ParseFTNDateTime(s)
	if err != nil {
		t.Fatalf("ParseFTNDateTime: %v", err)
	}
	if !parsed.Equal(ts) {
		t.Errorf("round trip: got %v, want %v", parsed, ts)
	}

	if _, err := ParseFTNDateTime("09 Feb 26 14:30:45"); err != nil {
		t.Errorf("single-space format: %v", err)
	}
}

func testPacket() *Packet {
	created := time.Date(2026, time.March, 2, 8, 15, 0, 0, time.Local)
	return &Packet{
		Origin:   MustParseAddress("2:5020/1042"),
		Dest:     MustParseAddress("2:5020/52"),
		Password: "PaSs",
		Created:  created,
		Messages: []*Message{
			{
				FromAddr: MustParseAddress("2:5020/1042.3"),
				FromName: "Иван Петров",
				ToName:   "All",
				Area:     "GENERAL",
				Subject:  "Привет",
				Date:     created.Add(-time.Hour),
				MsgID:    "2:5020/1042.3 5f3a1c20",
				Text:     "\x01MSGID: 2:5020/1042.3 5f3a1c20\nHello, world!\n--- v3toss\n * Origin: Test Station (2:5020/1042.3)\n",
				SeenBy:   []Ftn2D{{5020, 52}, {5020, 1042}, {5030, 1}},
				Path:     []Ftn2D{{5030, 1}, {5020, 1042}},
			},
			{
				FromAddr: MustParseAddress("1:103/705.4"),
				ToAddr:   MustParseAddress("2:5020/52.9"),
				FromName: "Sysop",
				ToName:   "Point User",
				Subject:  "Netmail",
				Date:     created,
				Attr:     MsgAttrPrivate,
				Text:     "\x01MSGID: 1:103/705.4 00000001\nPrivate text\n",
				MsgID:    "1:103/705.4 00000001",
			},
		},
	}
}

func assertMessagesEqual(t *testing.T, got, want *Message) {
	t.Helper()
	if got.FromAddr != want.FromAddr || got.ToAddr != want.ToAddr {
		t.Errorf("addresses: got %s -> %s, want %s -> %s", got.FromAddr, got.ToAddr, want.FromAddr, want.ToAddr)
	}
	if got.FromName != want.FromName || got.ToName != want.ToName {
		t.Errorf("names: got %q -> %q, want %q -> %q", got.FromName, got.ToName, want.FromName, want.ToName)
	}
	if got.Area != want.Area {
		t.Errorf("area: got %q, want %q", got.Area, want.Area)
	}
	if got.Subject != want.Subject {
		t.Errorf("subject: got %q, want %q", got.Subject, want.Subject)
	}
	if !got.Date.Equal(want.Date) {
		t.Errorf("date: got %v, want %v", got.Date, want.Date)
	}
	if got.MsgID != want.MsgID {
		t.Errorf("msgid: got %q, want %q", got.MsgID, want.MsgID)
	}
	if got.Attr != want.Attr {
		t.Errorf("attr: got 0x%04x, want 0x%04x", got.Attr, want.Attr)
	}
	if got.Text != want.Text {
		t.Errorf("text mismatch:\ngot:  %q\nwant: %q", got.Text, want.Text)
	}
	if !slices.Equal(got.SeenBy, want.SeenBy) {
		t.Errorf("seen-by: got %v, want %v", got.SeenBy, want.SeenBy)
	}
	if !slices.Equal(got.Path, want.Path) {
		t.Errorf("path: got %v, want %v", got.Path, want.Path)
	}
}

func TestCodecRoundTrip(t *testing.T) {
	pkt := testPacket()

	data, err := DefaultCodec.Encode(pkt)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := DefaultCodec.Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if got.Origin != pkt.Origin || got.Dest != pkt.Dest {
		t.Errorf("header addresses: got %s -> %s, want %s -> %s", got.Origin, got.Dest, pkt.Origin, pkt.Dest)
	}
	if got.Password != pkt.Password {
		t.Errorf("password: got %q, want %q", got.Password, pkt.Password)
	}
	if !got.Created.Equal(pkt.Created) {
		t.Errorf("created: got %v, want %v", got.Created, pkt.Created)
	}
	if len(got.Messages) != len(pkt.Messages) {
		t.Fatalf("message count: got %d, want %d", len(got.Messages), len(pkt.Messages))
	}
	for i := range pkt.Messages {
		assertMessagesEqual(t, got.Messages[i], pkt.Messages[i])
	}
}

func TestCodecRegeneratesControlLines(t *testing.T) {
	pkt := testPacket()
	data, err := DefaultCodec.Encode(pkt)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	_, raw, err := ReadPacket(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("ReadPacket: %v", err)
	}

	echo := raw[0].Body
	if !strings.HasPrefix(echo, "AREA:GENERAL\r") {
		t.Errorf("echomail body should start with AREA line: %q", echo)
	}
	if !strings.HasSuffix(echo, "SEEN-BY: 5020/52 1042 5030/1\r\x01PATH: 5030/1 5020/1042\r") {
		t.Errorf("echomail control lines: %q", echo)
	}
	if raw[0].DestNet != 5020 || raw[0].DestNode != 52 {
		t.Errorf("echomail dest: got %d/%d, want packet destination", raw[0].DestNet, raw[0].DestNode)
	}

	net := raw[1].Body
	for _, want := range []string{"\x01INTL 2:5020/52 1:103/705\r", "\x01FMPT 4\r", "\x01TOPT 9\r"} {
		if !strings.Contains(net, want) {
			t.Errorf("netmail body missing %q: %q", want, net)
		}
	}
	if strings.Contains(net, "\n") {
		t.Errorf("wire body must use CR line breaks: %q", net)
	}
}

func TestDecodeEchomailOriginFallback(t *testing.T) {
	pkt := &Packet{
		Origin:  MustParseAddress("2:5020/52"),
		Dest:    MustParseAddress("2:5020/1042"),
		Created: time.Now(),
		Messages: []*Message{
			{FromAddr: MustParseAddress("2:5020/52"), Area: "TEST", Text: "\x01MSGID: 2:5030/7@fidonet abcd\nNo origin\n"},
			{FromAddr: MustParseAddress("2:5020/77"), Area: "TEST", Text: "plain\n"},
		},
	}
	data, err := DefaultCodec.Encode(pkt)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := DefaultCodec.Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if a := got.Messages[0].FromAddr.String(); a != "2:5030/7" {
		t.Errorf("from MSGID: got %s, want 2:5030/7", a)
	}
	if a := got.Messages[1].FromAddr.String(); a != "2:5020/77" {
		t.Errorf("from header: got %s, want 2:5020/77", a)
	}
}

func TestDecodeAreaUppercased(t *testing.T) {
	hdr := NewPacketHeader(MustParseAddress("1:1/1"), MustParseAddress("1:1/2"), "", time.Now())
	var buf bytes.Buffer
	err := WritePacket(&buf, hdr, []*PackedMessage{{
		MsgType: 2, OrigNet: 1, OrigNode: 1, DateTime: "garbage",
		Body: "AREA:general\r\x01MSGID: 1:1/1 1\rtext\r",
	}})
	if err != nil {
		t.Fatalf("WritePacket: %v", err)
	}
	pkt, err := DefaultCodec.Decode(buf.Bytes())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	m := pkt.Messages[0]
	if m.Area != "GENERAL" {
		t.Errorf("area: got %q, want GENERAL", m.Area)
	}
	if m.IsNetmail() {
		t.Error("echomail reported as netmail")
	}
	if !m.Date.Equal(pkt.Created) {
		t.Errorf("unparseable date should fall back to packet date: got %v", m.Date)
	}
}

func TestDecodeTruncatedHeader(t *testing.T) {
	_, err := DefaultCodec.Decode([]byte{0x01, 0x02, 0x03})
	if !errors.Is(err, ErrMalformedPacket) || !errors.Is(err, ErrTruncatedPacket) {
		t.Errorf("got %v, want ErrMalformedPacket wrapping ErrTruncatedPacket", err)
	}
}

func TestDecodeInvalidType(t *testing.T) {
	var buf bytes.Buffer
	hdr := NewPacketHeader(Address{}, Address{}, "", time.Now())
	hdr.PktType = 1
	if err := WritePacket(&buf, hdr, nil); err != nil {
		t.Fatalf("WritePacket: %v", err)
	}
	if _, err := DefaultCodec.Decode(buf.Bytes()); !errors.Is(err, ErrInvalidPacketType) {
		t.Errorf("got %v, want ErrInvalidPacketType", err)
	}
}

func TestDecodeTruncatedMessageKeepsSiblings(t *testing.T) {
	data, err := DefaultCodec.Encode(testPacket())
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	// Drop the terminator and the tail of the second body.
	damaged := data[:len(data)-5]

	pkt, err := DefaultCodec.Decode(damaged)
	if !errors.Is(err, ErrMalformedPacket) {
		t.Fatalf("got %v, want ErrMalformedPacket", err)
	}
	if pkt == nil || len(pkt.Messages) != 1 {
		t.Fatalf("expected the first message to survive, got %+v", pkt)
	}
	if pkt.Messages[0].Area != "GENERAL" {
		t.Errorf("surviving message: got area %q", pkt.Messages[0].Area)
	}
}

func TestEmptyPacket(t *testing.T) {
	pkt := &Packet{Origin: MustParseAddress("1:1/1"), Dest: MustParseAddress("1:1/2"), Created: time.Now()}
	data, err := DefaultCodec.Encode(pkt)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(data) != PacketHeaderSize+2 {
		t.Errorf("empty packet size: got %d, want %d", len(data), PacketHeaderSize+2)
	}
	got, err := DefaultCodec.Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(got.Messages) != 0 {
		t.Errorf("expected no messages, got %d", len(got.Messages))
	}
}

func TestNewCodec(t *testing.T) {
	if _, err := NewCodec("klingon"); err == nil {
		t.Error("expected error for unknown charset")
	}
	c, err := NewCodec("UTF-8")
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	pkt := testPacket()
	data, err := c.Encode(pkt)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := c.Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.Messages[0].FromName != "Иван Петров" {
		t.Errorf("utf-8 name: got %q", got.Messages[0].FromName)
	}
}
