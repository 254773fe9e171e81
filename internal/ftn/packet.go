package ftn

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"
)

// PacketType2Plus is the packet version identifier for Type-2+ packets.
const PacketType2Plus = 2

// CWValidation is the capability word validation value per FSC-0048.
const CWValidation = 0x0100

// MaxFieldLen limits null-terminated string fields.
const MaxFieldLen = 256

// Field sizes including the null terminator (FTS-0001).
const (
	nameFieldLen    = 36
	subjectFieldLen = 72
)

// Errors
var (
	ErrMalformedPacket   = errors.New("ftn: malformed packet")
	ErrInvalidPacketType = errors.New("ftn: invalid packet type (expected 2)")
	ErrTruncatedPacket   = errors.New("ftn: truncated packet data")
	ErrTruncatedMessage  = errors.New("ftn: truncated message in packet")
)

// PacketHeader represents an FTN Type-2+ packet header (58 bytes).
type PacketHeader struct {
	OrigNode  uint16
	DestNode  uint16
	Year      uint16
	Month     uint16 // 0-based (0=Jan)
	Day       uint16
	Hour      uint16
	Minute    uint16
	Second    uint16
	Baud      uint16 // Unused, set to 0
	PktType   uint16 // Must be 2
	OrigNet   uint16
	DestNet   uint16
	ProdCode  uint8
	ProdRev   uint8
	Password  [8]byte
	QOrigZone uint16 // QMail orig zone
	QDestZone uint16 // QMail dest zone
	AuxNet    uint16 // Auxiliary net (point routing)
	CWCopy    uint16 // Capability word validation copy (swapped)
	ProdCode2 uint8  // Product code high byte
	ProdRev2  uint8  // Product revision minor
	CapWord   uint16 // Capability word (bit 0 = Type-2+)
	OrigZone  uint16
	DestZone  uint16
	OrigPoint uint16
	DestPoint uint16
	ProdData  [4]byte // Product-specific data
}

// PacketHeaderSize is the fixed size of a Type-2+ packet header.
const PacketHeaderSize = 58

// PackedMessage represents a single message within an FTN packet. String
// fields hold raw bytes in the packet charset.
type PackedMessage struct {
	MsgType  uint16 // Always 2 for stored messages
	OrigNode uint16
	DestNode uint16
	OrigNet  uint16
	DestNet  uint16
	Attr     uint16 // Message attribute flags
	Cost     uint16
	DateTime string // "DD Mon YY  HH:MM:SS\x00" format
	To       string // Max 35 chars
	From     string // Max 35 chars
	Subject  string // Max 71 chars
	Body     string // Full message body including kludges
}

// Packed message attribute flags (FTS-0001).
const (
	MsgAttrPrivate  = 0x0001
	MsgAttrCrash    = 0x0002
	MsgAttrReceived = 0x0004
	MsgAttrSent     = 0x0008
	MsgAttrFile     = 0x0010
	MsgAttrTransit  = 0x0020
	MsgAttrOrphan   = 0x0040
	MsgAttrKillSent = 0x0080
	MsgAttrLocal    = 0x0100
	MsgAttrHold     = 0x0200
	MsgAttrFRQ      = 0x0800
)

// NewPacketHeader creates a header for the given addresses, password and
// creation time.
func NewPacketHeader(orig, dest Address, password string, created time.Time) *PacketHeader {
	h := &PacketHeader{
		OrigNode:  uint16(orig.Node),
		DestNode:  uint16(dest.Node),
		Year:      uint16(created.Year()),
		Month:     uint16(created.Month() - 1), // 0-based
		Day:       uint16(created.Day()),
		Hour:      uint16(created.Hour()),
		Minute:    uint16(created.Minute()),
		Second:    uint16(created.Second()),
		PktType:   PacketType2Plus,
		OrigNet:   uint16(orig.Net),
		DestNet:   uint16(dest.Net),
		QOrigZone: uint16(orig.Zone),
		QDestZone: uint16(dest.Zone),
		OrigZone:  uint16(orig.Zone),
		DestZone:  uint16(dest.Zone),
		OrigPoint: uint16(orig.Point),
		DestPoint: uint16(dest.Point),
		CapWord:   0x0001, // Type-2+ capable
		CWCopy:    CWValidation,
	}

	// Copy password (max 8 bytes, null-padded)
	copy(h.Password[:], PacketPassword(password))

	return h
}

// PacketPassword returns the part of a link secret that fits the 8-byte
// packet header field.
func PacketPassword(secret string) string {
	if len(secret) > 8 {
		return secret[:8]
	}
	return secret
}

// Origin returns the originating address recorded in the header.
func (h *PacketHeader) Origin() Address {
	zone := h.OrigZone
	if zone == 0 {
		zone = h.QOrigZone
	}
	return Address{Zone: int(zone), Net: int(h.OrigNet), Node: int(h.OrigNode), Point: int(h.OrigPoint)}
}

// Destination returns the destination address recorded in the header.
func (h *PacketHeader) Destination() Address {
	zone := h.DestZone
	if zone == 0 {
		zone = h.QDestZone
	}
	return Address{Zone: int(zone), Net: int(h.DestNet), Node: int(h.DestNode), Point: int(h.DestPoint)}
}

// PasswordString returns the packet password without null padding.
func (h *PacketHeader) PasswordString() string {
	return string(bytes.TrimRight(h.Password[:], "\x00"))
}

// Created returns the packet creation time (local time zone, second precision).
func (h *PacketHeader) Created() time.Time {
	return time.Date(int(h.Year), time.Month(h.Month+1), int(h.Day),
		int(h.Hour), int(h.Minute), int(h.Second), 0, time.Local)
}

// ReadPacketHeader parses only the 58-byte header at the start of data.
// This is cheaper than ReadPacket when only the addresses are needed.
func ReadPacketHeader(data []byte) (*PacketHeader, error) {
	if len(data) < PacketHeaderSize {
		return nil, ErrTruncatedPacket
	}

	hdr := &PacketHeader{}
	if err := binary.Read(bytes.NewReader(data[:PacketHeaderSize]), binary.LittleEndian, hdr); err != nil {
		return nil, fmt.Errorf("parse header: %w", err)
	}
	if hdr.PktType != PacketType2Plus {
		return nil, ErrInvalidPacketType
	}
	return hdr, nil
}

// ReadPacket parses a complete .PKT from the reader. When a message record is
// damaged, the header and the messages preceding it are returned together
// with the error.
func ReadPacket(r io.Reader) (*PacketHeader, []*PackedMessage, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, fmt.Errorf("ftn: read packet: %w", err)
	}

	if len(data) < PacketHeaderSize+2 { // Header + terminator
		return nil, nil, ErrTruncatedPacket
	}

	hdr, err := ReadPacketHeader(data)
	if err != nil {
		return nil, nil, err
	}

	// Parse messages
	var msgs []*PackedMessage
	pos := PacketHeaderSize

	for pos < len(data)-1 {
		// Check for packet terminator (two null bytes for msg type)
		if data[pos] == 0 && data[pos+1] == 0 {
			break
		}

		msg, nextPos, err := readPackedMessage(data, pos)
		if err != nil {
			return hdr, msgs, fmt.Errorf("ftn: message at offset %d: %w", pos, err)
		}
		msgs = append(msgs, msg)
		pos = nextPos
	}

	return hdr, msgs, nil
}

// readPackedMessage parses a single packed message starting at pos.
// Returns the message and the position after the message.
func readPackedMessage(data []byte, pos int) (*PackedMessage, int, error) {
	if pos+14 > len(data) {
		return nil, pos, ErrTruncatedMessage
	}

	msg := &PackedMessage{
		MsgType:  binary.LittleEndian.Uint16(data[pos:]),
		OrigNode: binary.LittleEndian.Uint16(data[pos+2:]),
		DestNode: binary.LittleEndian.Uint16(data[pos+4:]),
		OrigNet:  binary.LittleEndian.Uint16(data[pos+6:]),
		DestNet:  binary.LittleEndian.Uint16(data[pos+8:]),
		Attr:     binary.LittleEndian.Uint16(data[pos+10:]),
		Cost:     binary.LittleEndian.Uint16(data[pos+12:]),
	}
	pos += 14

	// Read null-terminated fields: DateTime, To, From, Subject, Body
	var s string
	var err error

	s, pos, err = readNullTerminated(data, pos, MaxFieldLen)
	if err != nil {
		return nil, pos, fmt.Errorf("datetime: %w", err)
	}
	msg.DateTime = s

	s, pos, err = readNullTerminated(data, pos, nameFieldLen)
	if err != nil {
		return nil, pos, fmt.Errorf("to: %w", err)
	}
	msg.To = s

	s, pos, err = readNullTerminated(data, pos, nameFieldLen)
	if err != nil {
		return nil, pos, fmt.Errorf("from: %w", err)
	}
	msg.From = s

	s, pos, err = readNullTerminated(data, pos, subjectFieldLen)
	if err != nil {
		return nil, pos, fmt.Errorf("subject: %w", err)
	}
	msg.Subject = s

	// Body can be very large - no practical limit
	s, pos, err = readNullTerminated(data, pos, len(data)-pos)
	if err != nil {
		return nil, pos, fmt.Errorf("body: %w", err)
	}
	msg.Body = s

	return msg, pos, nil
}

// readNullTerminated reads a null-terminated string from data at pos. maxLen
// includes the terminator.
func readNullTerminated(data []byte, pos, maxLen int) (string, int, error) {
	end := pos
	limit := pos + maxLen
	if limit > len(data) {
		limit = len(data)
	}

	for end < limit {
		if data[end] == 0 {
			s := string(data[pos:end])
			return s, end + 1, nil // Skip the null terminator
		}
		end++
	}

	return "", pos, ErrTruncatedMessage
}

// WritePacket writes a complete .PKT to the writer.
func WritePacket(w io.Writer, hdr *PacketHeader, msgs []*PackedMessage) error {
	// Write header
	if err := binary.Write(w, binary.LittleEndian, hdr); err != nil {
		return fmt.Errorf("ftn: write header: %w", err)
	}

	// Write messages
	for i, msg := range msgs {
		if err := writePackedMessage(w, msg); err != nil {
			return fmt.Errorf("ftn: write message %d: %w", i, err)
		}
	}

	// Write packet terminator (two null bytes)
	if _, err := w.Write([]byte{0, 0}); err != nil {
		return fmt.Errorf("ftn: write terminator: %w", err)
	}

	return nil
}

// writePackedMessage writes a single packed message.
func writePackedMessage(w io.Writer, msg *PackedMessage) error {
	// Write fixed header fields
	hdr := make([]byte, 14)
	binary.LittleEndian.PutUint16(hdr[0:], msg.MsgType)
	binary.LittleEndian.PutUint16(hdr[2:], msg.OrigNode)
	binary.LittleEndian.PutUint16(hdr[4:], msg.DestNode)
	binary.LittleEndian.PutUint16(hdr[6:], msg.OrigNet)
	binary.LittleEndian.PutUint16(hdr[8:], msg.DestNet)
	binary.LittleEndian.PutUint16(hdr[10:], msg.Attr)
	binary.LittleEndian.PutUint16(hdr[12:], msg.Cost)

	if _, err := w.Write(hdr); err != nil {
		return err
	}

	// Write null-terminated string fields
	to := truncateField(msg.To, nameFieldLen-1)
	from := truncateField(msg.From, nameFieldLen-1)
	subject := truncateField(msg.Subject, subjectFieldLen-1)
	for _, s := range []string{msg.DateTime, to, from, subject, msg.Body} {
		if _, err := w.Write(append([]byte(s), 0)); err != nil {
			return err
		}
	}

	return nil
}

func truncateField(s string, max int) string {
	if len(s) > max {
		return s[:max]
	}
	return s
}

// FormatFTNDateTime formats a time in FTN packed message format.
// Format: "DD Mon YY  HH:MM:SS" (note: double space before time).
func FormatFTNDateTime(t time.Time) string {
	months := []string{"Jan", "Feb", "Mar", "Apr", "May", "Jun",
		"Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}
	return fmt.Sprintf("%02d %s %02d  %02d:%02d:%02d",
		t.Day(), months[t.Month()-1], t.Year()%100,
		t.Hour(), t.Minute(), t.Second())
}

// ParseFTNDateTime parses an FTN datetime string in the local time zone.
func ParseFTNDateTime(s string) (time.Time, error) {
	// Try standard FTN format: "DD Mon YY  HH:MM:SS"
	t, err := time.ParseInLocation("02 Jan 06  15:04:05", s, time.Local)
	if err != nil {
		// Some implementations use single space
		t, err = time.ParseInLocation("02 Jan 06 15:04:05", s, time.Local)
	}
	return t, err
}
