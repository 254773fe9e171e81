package outbound

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stlalpha/v3toss/internal/ftn"
	"github.com/stlalpha/v3toss/internal/store"
	"github.com/stlalpha/v3toss/internal/tosser"
)

type fakePacker struct {
	mu      sync.Mutex
	bundles map[string][]tosser.Bundle
	err     error
	calls   int
}

func (p *fakePacker) BuildBundles(_ context.Context, link store.Link) ([]tosser.Bundle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	b := p.bundles[link.Address]
	delete(p.bundles, link.Address)
	return b, p.err
}

func readFlow(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read flow file: %v", err)
	}
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

func TestFlowExt(t *testing.T) {
	tests := []struct {
		flavour, want string
	}{
		{"crash", ".clo"},
		{"HOLD", ".hlo"},
		{"Direct", ".dlo"},
		{"normal", ".flo"},
		{"", ".flo"},
	}
	for _, tt := range tests {
		if got := flowExt(tt.flavour); got != tt.want {
			t.Errorf("flowExt(%q): got %q, want %q", tt.flavour, got, tt.want)
		}
	}
}

func TestLinkDir(t *testing.T) {
	s := New("/var/spool/outbound", 2, nil)
	tests := []struct {
		addr     string
		wantDir  string
		wantBase string
	}{
		{"2:5020/1", "/var/spool/outbound", "139c0001"},
		{"2:5020/1.7", "/var/spool/outbound/139c0001.pnt", "00000007"},
		{"1:103/705", "/var/spool/outbound.001", "006702c1"},
	}
	for _, tt := range tests {
		dir, base := s.linkDir(ftn.MustParseAddress(tt.addr))
		if dir != filepath.FromSlash(tt.wantDir) || base != tt.wantBase {
			t.Errorf("%s: got %s %s, want %s %s", tt.addr, dir, base, tt.wantDir, tt.wantBase)
		}
	}
}

func TestFlushWritesBundlesAndFlowFile(t *testing.T) {
	dir := t.TempDir()
	p := &fakePacker{bundles: map[string][]tosser.Bundle{
		"2:5020/1": {
			{Name: "0000abcd.mo0", Kind: ftn.ArtifactArchive, Data: []byte("echo"), Messages: 2},
			{Name: "0000abce.pkt", Kind: ftn.ArtifactPacket, Data: []byte("net"), Messages: 1},
		},
	}}
	s := New(dir, 2, p)

	paths, err := s.Flush(context.Background(), store.Link{Address: "2:5020/1", Flavour: "crash"})
	if err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if len(paths) != 2 {
		t.Fatalf("paths: got %v, want 2", paths)
	}
	for i, want := range []string{"echo", "net"} {
		got, err := os.ReadFile(paths[i])
		if err != nil || string(got) != want {
			t.Errorf("bundle %d: got %q, %v", i, got, err)
		}
	}

	lines := readFlow(t, filepath.Join(dir, "139c0001.clo"))
	if len(lines) != 2 || lines[0] != "^"+paths[0] || lines[1] != "^"+paths[1] {
		t.Errorf("flow lines: got %v", lines)
	}
	if _, err := os.Stat(filepath.Join(dir, "139c0001.bsy")); !os.IsNotExist(err) {
		t.Errorf("busy flag left behind: %v", err)
	}
}

func TestFlushBusyLink(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "139c0001.bsy"), nil, 0644); err != nil {
		t.Fatal(err)
	}
	p := &fakePacker{}
	s := New(dir, 2, p)

	_, err := s.Flush(context.Background(), store.Link{Address: "2:5020/1"})
	if !errors.Is(err, ErrBusy) {
		t.Errorf("got %v, want ErrBusy", err)
	}
	if p.calls != 0 {
		t.Errorf("packer called %d times while busy", p.calls)
	}
}

func TestFlushReplacesStaleBusyFlag(t *testing.T) {
	dir := t.TempDir()
	bsy := filepath.Join(dir, "139c0001.bsy")
	if err := os.WriteFile(bsy, []byte("12345\n"), 0644); err != nil {
		t.Fatal(err)
	}
	old := time.Now().Add(-StaleBusyAge - time.Minute)
	if err := os.Chtimes(bsy, old, old); err != nil {
		t.Fatal(err)
	}
	p := &fakePacker{bundles: map[string][]tosser.Bundle{
		"2:5020/1": {{Name: "0000abcd.pkt", Kind: ftn.ArtifactPacket, Data: []byte("net"), Messages: 1}},
	}}
	s := New(dir, 2, p)

	paths, err := s.Flush(context.Background(), store.Link{Address: "2:5020/1"})
	if err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if len(paths) != 1 {
		t.Errorf("paths: got %v, want 1", paths)
	}
	if _, err := os.Stat(bsy); !os.IsNotExist(err) {
		t.Errorf("busy flag left behind: %v", err)
	}
}

func TestResolveUniquePath(t *testing.T) {
	dir := t.TempDir()
	taken := filepath.Join(dir, "0000abcd.mo0")
	if err := os.WriteFile(taken, nil, 0644); err != nil {
		t.Fatal(err)
	}
	if got, want := resolveUniquePath(taken), filepath.Join(dir, "0000abcd.mo1"); got != want {
		t.Errorf("day bundle: got %s, want %s", got, want)
	}

	pkt := filepath.Join(dir, "0000abcd.pkt")
	if err := os.WriteFile(pkt, nil, 0644); err != nil {
		t.Fatal(err)
	}
	got := resolveUniquePath(pkt)
	if got == pkt || !ftn.IsPacketName(filepath.Base(got)) {
		t.Errorf("packet: got %s", got)
	}
}

func TestFlushAll(t *testing.T) {
	dir := t.TempDir()
	p := &fakePacker{bundles: map[string][]tosser.Bundle{
		"2:5020/1": {{Name: "00000001.pkt", Data: []byte("a"), Messages: 1}},
		"2:5020/2": {{Name: "00000002.pkt", Data: []byte("b"), Messages: 1}},
		"2:5020/3": nil,
	}}
	s := New(dir, 2, p)
	links := []store.Link{{Address: "2:5020/1"}, {Address: "2:5020/2"}, {Address: "2:5020/3"}}

	n, err := s.FlushAll(context.Background(), links, 2)
	if err != nil {
		t.Fatalf("FlushAll: %v", err)
	}
	if n != 2 {
		t.Errorf("files: got %d, want 2", n)
	}
	if p.calls != 3 {
		t.Errorf("packer calls: got %d, want 3", p.calls)
	}

	p.err = errors.New("store down")
	if _, err := s.FlushAll(context.Background(), links, 2); err == nil {
		t.Error("expected error from failing packer")
	}
}
