package ftn

import (
	"fmt"
	"log"
	"slices"
	"strconv"
	"strings"
)

// Control line tags for loop-prevention metadata.
const (
	SeenByTag = "SEEN-BY:"
	PathTag   = "\x01PATH:"
)

// seenByWrap is the column at which SEEN-BY and PATH lines are wrapped.
const seenByWrap = 72

// Ftn2D is a net/node pair for SEEN-BY/PATH processing. The zone is implied
// by the network the message travels in.
type Ftn2D struct {
	Net  int
	Node int
}

// String returns "net/node".
func (d Ftn2D) String() string {
	return fmt.Sprintf("%d/%d", d.Net, d.Node)
}

// Compare orders pairs by net, then by node.
func (d Ftn2D) Compare(o Ftn2D) int {
	if d.Net != o.Net {
		if d.Net < o.Net {
			return -1
		}
		return 1
	}
	switch {
	case d.Node < o.Node:
		return -1
	case d.Node > o.Node:
		return 1
	}
	return 0
}

// Contains2D reports whether list holds d.
func Contains2D(list []Ftn2D, d Ftn2D) bool {
	return slices.Contains(list, d)
}

// Append2D appends the pairs not already present, preserving insertion order.
func Append2D(list []Ftn2D, add ...Ftn2D) []Ftn2D {
	for _, d := range add {
		if !Contains2D(list, d) {
			list = append(list, d)
		}
	}
	return list
}

// Sorted2D returns a sorted copy of list.
func Sorted2D(list []Ftn2D) []Ftn2D {
	out := slices.Clone(list)
	slices.SortFunc(out, Ftn2D.Compare)
	return out
}

// ParseSeenBy parses one or more SEEN-BY lines into a de-duplicated list.
// Format: "SEEN-BY: 103/705 706 104/56" (a bare node inherits the last net).
func ParseSeenBy(lines string) []Ftn2D {
	return parseNetNodeLines(lines, SeenByTag)
}

// ParsePath parses one or more PATH lines, preserving hop order.
func ParsePath(lines string) []Ftn2D {
	return parseNetNodeLines(lines, PathTag)
}

func parseNetNodeLines(lines, tag string) []Ftn2D {
	var result []Ftn2D
	net := 0
	bareTag := strings.TrimPrefix(tag, "\x01")

	for _, part := range strings.Fields(lines) {
		if part == tag || part == bareTag {
			continue
		}
		var d Ftn2D
		if netStr, nodeStr, ok := strings.Cut(part, "/"); ok {
			n, err1 := strconv.Atoi(netStr)
			node, err2 := strconv.Atoi(nodeStr)
			if err1 != nil || err2 != nil {
				log.Printf("TRACE: Skipping malformed %s entry %q", bareTag, part)
				continue
			}
			net = n
			d = Ftn2D{Net: n, Node: node}
		} else {
			node, err := strconv.Atoi(part)
			if err != nil {
				log.Printf("TRACE: Skipping malformed %s entry %q", bareTag, part)
				continue
			}
			d = Ftn2D{Net: net, Node: node}
		}
		result = Append2D(result, d)
	}
	return result
}

// WriteSeenBy formats the set as SEEN-BY lines sorted by net, then node.
// Consecutive entries in the same net are compressed to the bare node number.
func WriteSeenBy(set []Ftn2D) string {
	return writeNetNodeLines(Sorted2D(set), SeenByTag)
}

// WritePath formats the list as PATH lines in the given order.
func WritePath(path []Ftn2D) string {
	return writeNetNodeLines(path, PathTag)
}

func writeNetNodeLines(list []Ftn2D, tag string) string {
	if len(list) == 0 {
		return ""
	}

	var buf strings.Builder
	lineLen := 0
	lastNet := -1

	for _, d := range list {
		if lineLen >= seenByWrap {
			buf.WriteByte('\n')
			lineLen = 0
			lastNet = -1
		}
		if lineLen == 0 {
			buf.WriteString(tag)
			lineLen += len(tag)
		}
		var entry string
		if d.Net != lastNet {
			entry = " " + d.String()
			lastNet = d.Net
		} else {
			entry = " " + strconv.Itoa(d.Node)
		}
		buf.WriteString(entry)
		lineLen += len(entry)
	}
	buf.WriteByte('\n')
	return buf.String()
}

// Parse2DList parses a space-delimited "net/node net/node" list as kept in
// storage. Malformed entries are logged and skipped.
func Parse2DList(s string) []Ftn2D {
	var result []Ftn2D
	for _, part := range strings.Fields(s) {
		netStr, nodeStr, ok := strings.Cut(part, "/")
		if !ok {
			log.Printf("WARN: Invalid 2D address %q in %q", part, s)
			continue
		}
		n, err1 := strconv.Atoi(netStr)
		node, err2 := strconv.Atoi(nodeStr)
		if err1 != nil || err2 != nil {
			log.Printf("WARN: Invalid 2D address %q in %q", part, s)
			continue
		}
		result = Append2D(result, Ftn2D{Net: n, Node: node})
	}
	return result
}

// Format2DList writes the list as space-delimited "net/node" tokens,
// sorting first when sort is true.
func Format2DList(list []Ftn2D, sort bool) string {
	if sort {
		list = Sorted2D(list)
	}
	parts := make([]string, len(list))
	for i, d := range list {
		parts[i] = d.String()
	}
	return strings.Join(parts, " ")
}
