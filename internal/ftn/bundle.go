package ftn

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"log"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrMalformedArchive is returned when a bundle cannot be opened as a ZIP
// archive or one of its packet entries cannot be decoded.
var ErrMalformedArchive = errors.New("ftn: malformed archive")

// zipMagic is the 4-byte magic number for ZIP archives (PK\x03\x04).
var zipMagic = []byte{0x50, 0x4B, 0x03, 0x04}

var packetNameRe = regexp.MustCompile(`(?i)^[0-9a-f]{8}\.pkt$`)

// ArtifactKind classifies an inbound transport artifact.
type ArtifactKind int

const (
	// ArtifactFile is an attached file that is stored without parsing.
	ArtifactFile ArtifactKind = iota
	// ArtifactPacket is a bare Type-2+ packet.
	ArtifactPacket
	// ArtifactArchive is a ZIP bundle holding one or more packets.
	ArtifactArchive
)

func (k ArtifactKind) String() string {
	switch k {
	case ArtifactPacket:
		return "packet"
	case ArtifactArchive:
		return "archive"
	default:
		return "file"
	}
}

// ClassifyArtifact decides how an inbound artifact is handled from its name
// and leading bytes. A ".pkt" name is a packet; a bundle name or ZIP content
// is an archive; anything else is an attached file.
func ClassifyArtifact(name string, data []byte) ArtifactKind {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	switch {
	case strings.EqualFold(path.Ext(base), ".pkt"):
		return ArtifactPacket
	case IsZIP(data):
		return ArtifactArchive
	case BundleExtension(base):
		return ArtifactArchive
	}
	return ArtifactFile
}

// BundleExtension reports whether a filename looks like an FTN echomail bundle
// based on its extension. Binkd uses day-of-week suffixes for bundles:
//
//	.mo0 .tu0 .we0 .th0 .fr0 .sa0 .su0  (day-based, normal)
//	.mo1 .tu1 ...                          (day-based, overflow)
//	.zip                                   (explicit ZIP bundle)
//
// It also handles uppercase variants.
func BundleExtension(name string) bool {
	ext := strings.ToLower(path.Ext(name))
	if ext == ".zip" {
		return true
	}
	if len(ext) == 4 {
		switch ext[1:3] {
		case "mo", "tu", "we", "th", "fr", "sa", "su":
			return ext[3] >= '0' && ext[3] <= '9'
		}
	}
	return false
}

// IsZIP reports whether data begins with the ZIP magic bytes.
func IsZIP(data []byte) bool {
	return bytes.HasPrefix(data, zipMagic)
}

// IsPacketName reports whether name follows the "<8 hex>.pkt" convention.
func IsPacketName(name string) bool {
	return packetNameRe.MatchString(name)
}

// NewArtifactName returns "<8 lowercase hex>.<ext>" with a random identifier.
func NewArtifactName(ext string) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return id[:8] + "." + strings.TrimPrefix(ext, ".")
}

// BundleDayExtension returns the day-of-week bundle extension for t
// (e.g. "mo0" on Monday).
func BundleDayExtension(t time.Time) string {
	days := []string{"su", "mo", "tu", "we", "th", "fr", "sa"}
	return days[t.Weekday()] + "0"
}

// DecodeArchive opens a ZIP bundle and decodes every entry that carries a
// type 2+ packet header, whatever its name. Entries that fail to decode are
// reported in the returned error next to the packets that did decode; a
// packet damaged after its header still contributes the messages read
// before the damage.
func (c *Codec) DecodeArchive(data []byte) ([]*Packet, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedArchive, err)
	}

	var (
		pkts []*Packet
		errs []error
	)
	for _, zf := range zr.File {
		if zf.FileInfo().IsDir() {
			continue
		}
		name := path.Base(zf.Name) // ignore any directory component in the ZIP
		raw, err := readZipFile(zf)
		if err != nil {
			errs = append(errs, fmt.Errorf("extract %s: %w", name, err))
			continue
		}
		if _, err := ReadPacketHeader(raw); err != nil {
			if strings.EqualFold(path.Ext(name), ".pkt") {
				errs = append(errs, fmt.Errorf("decode %s: %w", name, err))
			} else {
				log.Printf("TRACE: Skipping non-packet entry %s in bundle", zf.Name)
			}
			continue
		}
		pkt, err := c.Decode(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("decode %s: %w", name, err))
		}
		if pkt != nil {
			pkts = append(pkts, pkt)
		}
	}
	if len(errs) > 0 {
		return pkts, fmt.Errorf("%w: %w", ErrMalformedArchive, errors.Join(errs...))
	}
	return pkts, nil
}

// readZipFile returns the contents of a single zip.File entry.
func readZipFile(zf *zip.File) ([]byte, error) {
	rc, err := zf.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// EncodeArchive wraps each packet into its own deflated ZIP entry named
// "<8 hex>.pkt". The writer records CRC32 and the uncompressed size.
func (c *Codec) EncodeArchive(pkts []*Packet) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	for i, p := range pkts {
		raw, err := c.Encode(p)
		if err != nil {
			zw.Close()
			return nil, fmt.Errorf("ftn: encode packet %d: %w", i, err)
		}

		header := &zip.FileHeader{
			Name:     NewArtifactName("pkt"),
			Method:   zip.Deflate,
			Modified: p.Created,
		}
		w, err := zw.CreateHeader(header)
		if err != nil {
			zw.Close()
			return nil, fmt.Errorf("ftn: add packet %d to bundle: %w", i, err)
		}
		if _, err := w.Write(raw); err != nil {
			zw.Close()
			return nil, fmt.Errorf("ftn: write packet %d to bundle: %w", i, err)
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("ftn: close zip writer: %w", err)
	}
	return buf.Bytes(), nil
}
