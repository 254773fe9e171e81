// Package nodelist answers address-validity questions for the tosser from an
// FTS-0005 nodelist.
package nodelist

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/charmap"

	"github.com/stlalpha/v3toss/internal/ftn"
)

// Status is the reachability of a listed node.
type Status int

const (
	StatusOK Status = iota
	StatusHold
	StatusDown
	StatusUnknown
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusHold:
		return "HOLD"
	case StatusDown:
		return "DOWN"
	}
	return "UNKNOWN"
}

// Reachable reports whether mail may be routed to a node with this status.
// Only DOWN nodes are unreachable.
func (s Status) Reachable() bool {
	return s != StatusDown
}

// Entry is one listed system.
type Entry struct {
	Address  ftn.Address
	Keyword  string
	Status   Status
	Name     string
	Location string
	Sysop    string
}

// Directory looks up systems by address. Point addresses resolve to their
// boss node.
type Directory interface {
	Lookup(addr ftn.Address) (Entry, bool)
}

// Nodelist is an in-memory index of a parsed nodelist. It is immutable after
// Parse returns and safe for concurrent lookups.
type Nodelist struct {
	entries map[ftn.Address]Entry
}

// Lookup returns the entry for addr or its boss.
func (n *Nodelist) Lookup(addr ftn.Address) (Entry, bool) {
	e, ok := n.entries[addr.Boss()]
	return e, ok
}

// Len returns the number of indexed systems.
func (n *Nodelist) Len() int {
	return len(n.entries)
}

// LoadFile parses the nodelist at path.
func LoadFile(path string) (*Nodelist, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open nodelist: %w", err)
	}
	defer f.Close()

	nl, err := Parse(f)
	if err != nil {
		return nil, err
	}
	log.Printf("INFO: Loaded nodelist %s (%d systems)", path, nl.Len())
	return nl, nil
}

// Parse reads an FTS-0005 nodelist. Text is decoded as CP437. Malformed
// lines are logged and skipped.
func Parse(r io.Reader) (*Nodelist, error) {
	nl := &Nodelist{entries: make(map[ftn.Address]Entry)}
	sc := bufio.NewScanner(charmap.CodePage437.NewDecoder().Reader(r))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	zone, net := 0, 0
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimRight(sc.Text(), "\r\x1a")
		if line == "" || strings.HasPrefix(line, ";") {
			continue
		}

		fields := strings.Split(line, ",")
		if len(fields) < 2 {
			log.Printf("WARN: nodelist line %d: too few fields", lineNo)
			continue
		}
		number, err := strconv.Atoi(strings.TrimSpace(fields[1]))
		if err != nil || number < 0 {
			log.Printf("WARN: nodelist line %d: bad number %q", lineNo, fields[1])
			continue
		}

		keyword := strings.TrimSpace(fields[0])
		status := StatusOK
		var addr ftn.Address
		switch strings.ToLower(keyword) {
		case "zone":
			zone, net = number, number
			addr = ftn.Address{Zone: zone, Net: net}
		case "region", "host":
			net = number
			addr = ftn.Address{Zone: zone, Net: net}
		case "hub", "pvt", "":
			addr = ftn.Address{Zone: zone, Net: net, Node: number}
		case "hold":
			status = StatusHold
			addr = ftn.Address{Zone: zone, Net: net, Node: number}
		case "down":
			status = StatusDown
			addr = ftn.Address{Zone: zone, Net: net, Node: number}
		default:
			log.Printf("WARN: nodelist line %d: unknown keyword %q", lineNo, keyword)
			continue
		}
		if zone == 0 {
			log.Printf("WARN: nodelist line %d: entry before first Zone line", lineNo)
			continue
		}

		e := Entry{Address: addr, Keyword: keyword, Status: status}
		if len(fields) > 2 {
			e.Name = strings.ReplaceAll(fields[2], "_", " ")
		}
		if len(fields) > 3 {
			e.Location = strings.ReplaceAll(fields[3], "_", " ")
		}
		if len(fields) > 4 {
			e.Sysop = strings.ReplaceAll(fields[4], "_", " ")
		}
		nl.entries[addr] = e
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read nodelist: %w", err)
	}
	return nl, nil
}

// AllowAll is a Directory that lists every address as OK. It is used when
// no nodelist is configured.
type AllowAll struct{}

func (AllowAll) Lookup(addr ftn.Address) (Entry, bool) {
	return Entry{Address: addr.Boss(), Status: StatusOK}, true
}

// Static is a fixed address-to-status table.
type Static map[ftn.Address]Status

func (s Static) Lookup(addr ftn.Address) (Entry, bool) {
	st, ok := s[addr.Boss()]
	if !ok {
		return Entry{}, false
	}
	return Entry{Address: addr.Boss(), Status: st}, true
}

// Overlay consults each directory in order and returns the first hit.
type Overlay []Directory

func (o Overlay) Lookup(addr ftn.Address) (Entry, bool) {
	for _, d := range o {
		if e, ok := d.Lookup(addr); ok {
			return e, true
		}
	}
	return Entry{}, false
}
