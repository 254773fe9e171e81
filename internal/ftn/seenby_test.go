package ftn

import (
	"slices"
	"strings"
	"testing"
)

func TestWriteSeenByCompressesNets(t *testing.T) {
	set := []Ftn2D{{104, 56}, {103, 706}, {103, 705}}
	got := WriteSeenBy(set)
	want := "SEEN-BY: 103/705 706 104/56\n"
	if got != want {
		t.Errorf("WriteSeenBy: got %q, want %q", got, want)
	}
}

func TestWritePathKeepsOrder(t *testing.T) {
	path := []Ftn2D{{104, 56}, {103, 705}, {103, 706}}
	got := WritePath(path)
	want := "\x01PATH: 104/56 103/705 706\n"
	if got != want {
		t.Errorf("WritePath: got %q, want %q", got, want)
	}
}

func TestWriteEmpty(t *testing.T) {
	if got := WriteSeenBy(nil); got != "" {
		t.Errorf("WriteSeenBy(nil): got %q, want empty", got)
	}
	if got := WritePath(nil); got != "" {
		t.Errorf("WritePath(nil): got %q, want empty", got)
	}
	if got := ParseSeenBy(""); len(got) != 0 {
		t.Errorf("ParseSeenBy(empty): got %v, want empty", got)
	}
}

func TestParseSeenByInheritsNet(t *testing.T) {
	got := ParseSeenBy("SEEN-BY: 103/705 706 104/56 57\nSEEN-BY: 705 5020/1")
	want := []Ftn2D{{103, 705}, {103, 706}, {104, 56}, {104, 57}, {104, 705}, {5020, 1}}
	if !slices.Equal(got, want) {
		t.Errorf("ParseSeenBy: got %v, want %v", got, want)
	}
}

func TestParseSeenBySkipsMalformed(t *testing.T) {
	got := ParseSeenBy("SEEN-BY: 103/705 x/1 706 103/705")
	want := []Ftn2D{{103, 705}, {103, 706}}
	if !slices.Equal(got, want) {
		t.Errorf("ParseSeenBy: got %v, want %v", got, want)
	}
}

func largeSet(n int) []Ftn2D {
	var list []Ftn2D
	for i := 0; i < n; i++ {
		list = append(list, Ftn2D{Net: 5000 + (i*7)%31, Node: (i * 13) % 997})
	}
	return Append2D(nil, list...)
}

func TestSeenByRoundTripLarge(t *testing.T) {
	set := largeSet(250)
	if len(set) < 200 {
		t.Fatalf("test set too small: %d", len(set))
	}

	text := WriteSeenBy(set)
	lines := strings.Split(strings.TrimSuffix(text, "\n"), "\n")
	if len(lines) < 2 {
		t.Fatalf("expected wrapped output, got %d line(s)", len(lines))
	}
	for i, line := range lines {
		if !strings.HasPrefix(line, SeenByTag+" ") {
			t.Errorf("line %d: missing tag: %q", i, line)
		}
		// A fresh line always restates the net of its first entry.
		first := strings.Fields(line)[1]
		if !strings.Contains(first, "/") {
			t.Errorf("line %d: first entry %q lacks net prefix", i, first)
		}
	}

	got := ParseSeenBy(text)
	if !slices.Equal(got, Sorted2D(set)) {
		t.Errorf("seen-by round trip mismatch: got %d entries, want %d", len(got), len(set))
	}
}

func TestPathRoundTripLarge(t *testing.T) {
	path := largeSet(220)
	text := WritePath(path)
	if strings.Count(text, PathTag) < 2 {
		t.Fatalf("expected several PATH lines, got %q", text)
	}
	got := ParsePath(text)
	if !slices.Equal(got, path) {
		t.Errorf("path round trip mismatch: got %d entries, want %d", len(got), len(path))
	}
}

func TestParse2DList(t *testing.T) {
	got := Parse2DList("103/705 bogus 104/x 104/56 103/705")
	want := []Ftn2D{{103, 705}, {104, 56}}
	if !slices.Equal(got, want) {
		t.Errorf("Parse2DList: got %v, want %v", got, want)
	}
}

func TestFormat2DList(t *testing.T) {
	list := []Ftn2D{{104, 56}, {103, 705}}
	if got := Format2DList(list, false); got != "104/56 103/705" {
		t.Errorf("Format2DList unsorted: got %q", got)
	}
	if got := Format2DList(list, true); got != "103/705 104/56" {
		t.Errorf("Format2DList sorted: got %q", got)
	}
	if got := Parse2DList(Format2DList(list, false)); !slices.Equal(got, list) {
		t.Errorf("round trip: got %v, want %v", got, list)
	}
}
