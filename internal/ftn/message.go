package ftn

import (
	"bytes"
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// Kludge prefixes recognised in message bodies.
const (
	areaPrefix  = "AREA:"
	msgIDPrefix = "\x01MSGID:"
	intlPrefix  = "\x01INTL "
	fmptPrefix  = "\x01FMPT "
	toptPrefix  = "\x01TOPT "
)

var originLineRe = regexp.MustCompile(`(?m)^ \* Origin: .*\(([^()]+)\)\s*$`)

// Message is a decoded packed message. Netmail has an empty Area and a
// meaningful ToAddr; echomail has an upper-case Area and no ToAddr.
//
// Text uses "\n" line breaks and keeps every kludge except the ones the codec
// regenerates: AREA, SEEN-BY, PATH, and for netmail INTL, FMPT and TOPT.
type Message struct {
	FromAddr Address
	ToAddr   Address
	FromName string
	ToName   string
	Area     string
	Subject  string
	Date     time.Time
	MsgID    string
	Attr     uint16
	Text     string
	SeenBy   []Ftn2D
	Path     []Ftn2D
}

// IsNetmail reports whether the message is point-to-point mail.
func (m *Message) IsNetmail() bool {
	return m.Area == ""
}

// Packet is a decoded packet: header fields plus its messages in order.
type Packet struct {
	Origin   Address
	Dest     Address
	Password string
	Created  time.Time
	Messages []*Message
}

// Codec converts between Packet values and Type-2+ packet bytes, translating
// text fields through the configured 8-bit charset.
type Codec struct {
	charset encoding.Encoding
}

var charsets = map[string]encoding.Encoding{
	"cp866":      charmap.CodePage866,
	"ibm866":     charmap.CodePage866,
	"cp437":      charmap.CodePage437,
	"cp850":      charmap.CodePage850,
	"koi8-r":     charmap.KOI8R,
	"cp1251":     charmap.Windows1251,
	"latin-1":    charmap.ISO8859_1,
	"iso-8859-1": charmap.ISO8859_1,
	"utf-8":      unicode.UTF8,
}

// NewCodec returns a codec for the named charset. An empty name selects CP866.
func NewCodec(charset string) (*Codec, error) {
	if charset == "" {
		charset = "cp866"
	}
	enc, ok := charsets[strings.ToLower(charset)]
	if !ok {
		return nil, fmt.Errorf("ftn: unsupported charset %q", charset)
	}
	return &Codec{charset: enc}, nil
}

// DefaultCodec is a CP866 codec.
var DefaultCodec = &Codec{charset: charmap.CodePage866}

func (c *Codec) decodeString(s string) string {
	out, err := c.charset.NewDecoder().String(s)
	if err != nil {
		return s
	}
	return out
}

func (c *Codec) encodeString(s string) string {
	out, err := encoding.ReplaceUnsupported(c.charset.NewEncoder()).String(s)
	if err != nil {
		return s
	}
	return out
}

// Decode parses a packet. A damaged header fails with ErrMalformedPacket and
// no packet. A damaged message record also fails with ErrMalformedPacket,
// but the packet holding the messages read before it is returned as well.
func (c *Codec) Decode(data []byte) (*Packet, error) {
	hdr, raw, readErr := ReadPacket(bytes.NewReader(data))
	if hdr == nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedPacket, readErr)
	}

	pkt := &Packet{
		Origin:   hdr.Origin(),
		Dest:     hdr.Destination(),
		Password: hdr.PasswordString(),
		Created:  hdr.Created(),
		Messages: make([]*Message, 0, len(raw)),
	}
	for _, pm := range raw {
		pkt.Messages = append(pkt.Messages, c.decodeMessage(pkt, pm))
	}

	if readErr != nil {
		return pkt, fmt.Errorf("%w: %w", ErrMalformedPacket, readErr)
	}
	return pkt, nil
}

func (c *Codec) decodeMessage(pkt *Packet, pm *PackedMessage) *Message {
	msg := &Message{
		FromName: c.decodeString(pm.From),
		ToName:   c.decodeString(pm.To),
		Subject:  c.decodeString(pm.Subject),
		Attr:     pm.Attr,
	}

	date, err := ParseFTNDateTime(pm.DateTime)
	if err != nil {
		log.Printf("TRACE: Unparseable message date %q, using packet date", pm.DateTime)
		date = pkt.Created
	}
	msg.Date = date

	body := strings.ReplaceAll(c.decodeString(pm.Body), "\r\n", "\r")
	body = strings.ReplaceAll(body, "\n", "\r")
	lines := strings.Split(body, "\r")

	if len(lines) > 0 && strings.HasPrefix(lines[0], areaPrefix) {
		msg.Area = strings.ToUpper(strings.TrimSpace(strings.TrimPrefix(lines[0], areaPrefix)))
		lines = lines[1:]
	}

	var (
		kept                  []string
		seenBy, path          []string
		intl                  string
		fromPoint, toPoint    int
		hasFromPt, hasToPoint bool
	)
	for _, line := range lines {
		switch {
		case strings.HasPrefix(line, SeenByTag):
			seenBy = append(seenBy, line)
		case strings.HasPrefix(line, PathTag):
			path = append(path, line)
		case msg.IsNetmail() && strings.HasPrefix(line, intlPrefix):
			intl = strings.TrimPrefix(line, intlPrefix)
		case msg.IsNetmail() && strings.HasPrefix(line, fmptPrefix):
			fromPoint, hasFromPt = parseKludgeInt(line, fmptPrefix)
		case msg.IsNetmail() && strings.HasPrefix(line, toptPrefix):
			toPoint, hasToPoint = parseKludgeInt(line, toptPrefix)
		default:
			if msg.MsgID == "" && strings.HasPrefix(line, msgIDPrefix) {
				msg.MsgID = strings.TrimSpace(strings.TrimPrefix(line, msgIDPrefix))
			}
			kept = append(kept, line)
		}
	}
	msg.Text = strings.Join(kept, "\n")
	msg.SeenBy = ParseSeenBy(strings.Join(seenBy, "\n"))
	msg.Path = ParsePath(strings.Join(path, "\n"))

	if msg.IsNetmail() {
		msg.FromAddr = Address{Zone: pkt.Origin.Zone, Net: int(pm.OrigNet), Node: int(pm.OrigNode)}
		msg.ToAddr = Address{Zone: pkt.Dest.Zone, Net: int(pm.DestNet), Node: int(pm.DestNode)}
		if intl != "" {
			applyINTL(intl, &msg.FromAddr, &msg.ToAddr)
		}
		if hasFromPt {
			msg.FromAddr.Point = fromPoint
		}
		if hasToPoint {
			msg.ToAddr.Point = toPoint
		}
		return msg
	}

	msg.FromAddr = echomailOrigin(msg, pkt, pm)
	return msg
}

func parseKludgeInt(line, prefix string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, prefix)))
	if err != nil || n < 0 {
		log.Printf("TRACE: Ignoring malformed kludge %q", strings.TrimPrefix(line, "\x01"))
		return 0, false
	}
	return n, true
}

// applyINTL takes the zones from an "INTL <dest> <orig>" kludge value.
func applyINTL(value string, from, to *Address) {
	fields := strings.Fields(value)
	if len(fields) != 2 {
		log.Printf("TRACE: Ignoring malformed INTL kludge %q", value)
		return
	}
	if dest, err := ParseAddress(fields[0]); err == nil {
		to.Zone = dest.Zone
	}
	if orig, err := ParseAddress(fields[1]); err == nil {
		from.Zone = orig.Zone
	}
}

// echomailOrigin derives the sender of an echomail message from the Origin
// line, then the MSGID kludge, then the packet header.
func echomailOrigin(msg *Message, pkt *Packet, pm *PackedMessage) Address {
	if m := originLineRe.FindAllStringSubmatch(msg.Text, -1); len(m) > 0 {
		if a, err := parseDomainAddress(m[len(m)-1][1]); err == nil {
			return a
		}
	}
	if msg.MsgID != "" {
		if a, err := parseDomainAddress(strings.Fields(msg.MsgID)[0]); err == nil {
			return a
		}
	}
	return Address{Zone: pkt.Origin.Zone, Net: int(pm.OrigNet), Node: int(pm.OrigNode)}
}

// parseDomainAddress parses an address that may carry an "@domain" suffix.
func parseDomainAddress(s string) (Address, error) {
	s, _, _ = strings.Cut(strings.TrimSpace(s), "@")
	return ParseAddress(s)
}

// Encode serialises the packet. AREA, SEEN-BY and PATH lines, and the
// INTL/FMPT/TOPT kludges of netmail, are generated from the message fields.
// Non-empty text always ends with a line break on the wire.
func (c *Codec) Encode(p *Packet) ([]byte, error) {
	hdr := NewPacketHeader(p.Origin, p.Dest, p.Password, p.Created)

	msgs := make([]*PackedMessage, 0, len(p.Messages))
	for _, m := range p.Messages {
		msgs = append(msgs, c.encodeMessage(p, m))
	}

	var buf bytes.Buffer
	if err := WritePacket(&buf, hdr, msgs); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (c *Codec) encodeMessage(p *Packet, m *Message) *PackedMessage {
	pm := &PackedMessage{
		MsgType:  2,
		OrigNet:  uint16(m.FromAddr.Net),
		OrigNode: uint16(m.FromAddr.Node),
		Attr:     m.Attr,
		DateTime: FormatFTNDateTime(m.Date),
		To:       c.encodeString(m.ToName),
		From:     c.encodeString(m.FromName),
		Subject:  c.encodeString(m.Subject),
	}

	var body strings.Builder
	if m.IsNetmail() {
		pm.DestNet = uint16(m.ToAddr.Net)
		pm.DestNode = uint16(m.ToAddr.Node)
		fmt.Fprintf(&body, "%s%s %s\r", intlPrefix, m.ToAddr.Boss(), m.FromAddr.Boss())
		if m.FromAddr.Point != 0 {
			fmt.Fprintf(&body, "%s%d\r", fmptPrefix, m.FromAddr.Point)
		}
		if m.ToAddr.Point != 0 {
			fmt.Fprintf(&body, "%s%d\r", toptPrefix, m.ToAddr.Point)
		}
	} else {
		pm.DestNet = uint16(p.Dest.Net)
		pm.DestNode = uint16(p.Dest.Node)
		body.WriteString(areaPrefix + m.Area + "\r")
	}

	text := strings.ReplaceAll(m.Text, "\r\n", "\n")
	if text != "" && !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	body.WriteString(text)
	body.WriteString(WriteSeenBy(m.SeenBy))
	body.WriteString(WritePath(m.Path))

	pm.Body = c.encodeString(strings.ReplaceAll(body.String(), "\n", "\r"))
	return pm
}
