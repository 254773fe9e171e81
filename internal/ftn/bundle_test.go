package ftn

import (
	"archive/zip"
	"bytes"
	"errors"
	"testing"
	"time"
)

func TestBundleExtension(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"0003007b.mo0", true},
		{"0003007b.TU1", true},
		{"0003007b.su9", true},
		{"bundle.zip", true},
		{"0003007b.pkt", false},
		{"0003007b.clo", false},
		{"0003007b.mox", false},
		{"readme.txt", false},
	}
	for _, tt := range tests {
		if got := BundleExtension(tt.name); got != tt.want {
			t.Errorf("BundleExtension(%q): got %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestClassifyArtifact(t *testing.T) {
	zipData := append([]byte{}, zipMagic...)
	tests := []struct {
		name string
		data []byte
		want ArtifactKind
	}{
		{"abcdef12.pkt", []byte{0x01}, ArtifactPacket},
		{"ABCDEF12.PKT", nil, ArtifactPacket},
		{"abcdef12.we0", []byte("junk"), ArtifactArchive},
		{"upload.bin", zipData, ArtifactArchive},
		{"nodelist.123", []byte("text"), ArtifactFile},
		{`..\evil.txt`, []byte("text"), ArtifactFile},
	}
	for _, tt := range tests {
		if got := ClassifyArtifact(tt.name, tt.data); got != tt.want {
			t.Errorf("ClassifyArtifact(%q): got %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestNewArtifactName(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		name := NewArtifactName("pkt")
		if !IsPacketName(name) {
			t.Fatalf("NewArtifactName: %q does not match the packet naming convention", name)
		}
		seen[name] = true
	}
	if len(seen) < 45 {
		t.Errorf("expected random names, got only %d distinct of 50", len(seen))
	}
	if got := NewArtifactName(".mo0"); len(got) != 12 || got[8:] != ".mo0" {
		t.Errorf("NewArtifactName(.mo0): got %q", got)
	}
}

func TestBundleDayExtension(t *testing.T) {
	monday := time.Date(2026, time.February, 9, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		offset int
		want   string
	}{
		{0, "mo0"}, {1, "tu0"}, {2, "we0"}, {3, "th0"}, {4, "fr0"}, {5, "sa0"}, {6, "su0"},
	}
	for _, tt := range tests {
		day := monday.AddDate(0, 0, tt.offset)
		if got := BundleDayExtension(day); got != tt.want {
			t.Errorf("BundleDayExtension(%s): got %q, want %q", day.Weekday(), got, tt.want)
		}
	}
}

func TestArchiveRoundTrip(t *testing.T) {
	first := testPacket()
	second := testPacket()
	second.Messages = second.Messages[1:]

	data, err := DefaultCodec.EncodeArchive([]*Packet{first, second})
	if err != nil {
		t.Fatalf("EncodeArchive: %v", err)
	}
	if !IsZIP(data) {
		t.Fatal("encoded archive lacks ZIP magic")
	}

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("zip.NewReader: %v", err)
	}
	for _, zf := range zr.File {
		if !IsPacketName(zf.Name) {
			t.Errorf("entry name %q does not follow the packet naming convention", zf.Name)
		}
		if zf.CRC32 == 0 || zf.UncompressedSize64 == 0 {
			t.Errorf("entry %s: missing CRC32 or size", zf.Name)
		}
	}

	pkts, err := DefaultCodec.DecodeArchive(data)
	if err != nil {
		t.Fatalf("DecodeArchive: %v", err)
	}
	if len(pkts) != 2 {
		t.Fatalf("packet count: got %d, want 2", len(pkts))
	}
	if len(pkts[0].Messages) != 2 || len(pkts[1].Messages) != 1 {
		t.Fatalf("message counts: got %d/%d, want 2/1", len(pkts[0].Messages), len(pkts[1].Messages))
	}
	assertMessagesEqual(t, pkts[1].Messages[0], second.Messages[0])
}

func TestDecodeArchiveSkipsBadEntries(t *testing.T) {
	good, err := DefaultCodec.Encode(testPacket())
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range map[string][]byte{
		"sub/00000001.pkt": good,
		"00000002.pkt":     []byte("not a packet"),
		"readme.txt":       []byte("ignored"),
	} {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		w.Write(content)
	}
	zw.Close()

	pkts, err := DefaultCodec.DecodeArchive(buf.Bytes())
	if !errors.Is(err, ErrMalformedArchive) {
		t.Errorf("got %v, want ErrMalformedArchive for the broken .pkt entry", err)
	}
	if len(pkts) != 1 {
		t.Fatalf("packet count: got %d, want 1", len(pkts))
	}
	if len(pkts[0].Messages) != 2 {
		t.Errorf("message count: got %d, want 2", len(pkts[0].Messages))
	}
}

func TestDecodeArchiveAnyEntryName(t *testing.T) {
	good, err := DefaultCodec.Encode(testPacket())
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range []string{"5020ffff.out", "readme.txt"} {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if name == "readme.txt" {
			w.Write([]byte("ignored"))
		} else {
			w.Write(good)
		}
	}
	zw.Close()

	pkts, err := DefaultCodec.DecodeArchive(buf.Bytes())
	if err != nil {
		t.Fatalf("DecodeArchive: %v", err)
	}
	if len(pkts) != 1 {
		t.Fatalf("packet count: got %d, want 1", len(pkts))
	}
}

func TestDecodeArchiveMalformed(t *testing.T) {
	_, err := DefaultCodec.DecodeArchive([]byte("PK\x03\x04 this is not really a zip"))
	if !errors.Is(err, ErrMalformedArchive) {
		t.Errorf("got %v, want ErrMalformedArchive", err)
	}
}
