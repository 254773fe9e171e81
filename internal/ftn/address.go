package ftn

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidAddress is returned when a string is not a valid FTN address.
var ErrInvalidAddress = errors.New("ftn: invalid address")

// Address represents a FidoNet 4D address (Zone:Net/Node.Point).
type Address struct {
	Zone  int
	Net   int
	Node  int
	Point int
}

// ParseAddress parses a FidoNet address string in the format "Z:N/N" or "Z:N/N.P".
func ParseAddress(addr string) (Address, error) {
	addr = strings.TrimSpace(addr)

	zonePart, rest, ok := strings.Cut(addr, ":")
	if !ok {
		return Address{}, fmt.Errorf("%w: %q", ErrInvalidAddress, addr)
	}
	netPart, rest, ok := strings.Cut(rest, "/")
	if !ok {
		return Address{}, fmt.Errorf("%w: missing net/node in %q", ErrInvalidAddress, addr)
	}
	nodePart, pointPart, hasPoint := strings.Cut(rest, ".")

	var a Address
	var err error
	if a.Zone, err = parseAddressField(zonePart); err != nil {
		return Address{}, fmt.Errorf("%w: zone %q", ErrInvalidAddress, zonePart)
	}
	if a.Net, err = parseAddressField(netPart); err != nil {
		return Address{}, fmt.Errorf("%w: net %q", ErrInvalidAddress, netPart)
	}
	if a.Node, err = parseAddressField(nodePart); err != nil {
		return Address{}, fmt.Errorf("%w: node %q", ErrInvalidAddress, nodePart)
	}
	if hasPoint {
		if a.Point, err = parseAddressField(pointPart); err != nil {
			return Address{}, fmt.Errorf("%w: point %q", ErrInvalidAddress, pointPart)
		}
	}
	return a, nil
}

// MustParseAddress is like ParseAddress but panics on error. Intended for
// tests and static tables.
func MustParseAddress(addr string) Address {
	a, err := ParseAddress(addr)
	if err != nil {
		panic(err)
	}
	return a
}

// parseAddressField parses a single non-negative decimal address component.
func parseAddressField(s string) (int, error) {
	if s == "" || s[0] == '+' || s[0] == '-' {
		return 0, strconv.ErrSyntax
	}
	return strconv.Atoi(s)
}

// String returns the full 4D address. Point is omitted if zero.
func (a Address) String() string {
	if a.Point == 0 {
		return fmt.Sprintf("%d:%d/%d", a.Zone, a.Net, a.Node)
	}
	return fmt.Sprintf("%d:%d/%d.%d", a.Zone, a.Net, a.Node, a.Point)
}

// Boss returns the address with the point stripped.
func (a Address) Boss() Address {
	a.Point = 0
	return a
}

// IsPoint reports whether the address is a point beneath a boss node.
func (a Address) IsPoint() bool {
	return a.Point != 0
}

// To2D projects the address to the net/node pair used in SEEN-BY and PATH.
func (a Address) To2D() Ftn2D {
	return Ftn2D{Net: a.Net, Node: a.Node}
}

// String2D returns the 2D address format (net/node) used for SEEN-BY and PATH.
func (a Address) String2D() string {
	return a.To2D().String()
}
