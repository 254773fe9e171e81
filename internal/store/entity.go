package store

import "time"

// Link is a peer node this station exchanges bundles with.
type Link struct {
	ID       int64  `db:"id"`
	Address  string `db:"address"`
	Name     string `db:"name"`
	Password string `db:"password"`
	Host     string `db:"host"`
	Port     int    `db:"port"`
	Flavour  string `db:"flavour"` // normal, crash, hold, direct
}

func (l Link) FieldValue(field string) (any, bool) {
	switch field {
	case "id":
		return l.ID, true
	case "address":
		return l.Address, true
	case "name":
		return l.Name, true
	case "password":
		return l.Password, true
	case "host":
		return l.Host, true
	case "port":
		return l.Port, true
	case "flavour":
		return l.Flavour, true
	}
	return nil, false
}

// Reachable reports whether the link has a transport endpoint to poll.
func (l Link) Reachable() bool {
	return l.Host != ""
}

// MaskAny in a rule field matches every value, or in a replacement field
// leaves the value unchanged.
const MaskAny = "*"

// Route sends netmail matching the masks to LinkID.
type Route struct {
	ID       int64  `db:"id"`
	Priority int    `db:"priority"`
	FromAddr string `db:"from_addr"`
	ToAddr   string `db:"to_addr"`
	FromName string `db:"from_name"`
	ToName   string `db:"to_name"`
	Subject  string `db:"subject"`
	LinkID   int64  `db:"link_id"`
}

func (r Route) FieldValue(field string) (any, bool) {
	switch field {
	case "id":
		return r.ID, true
	case "priority":
		return r.Priority, true
	case "from_addr":
		return r.FromAddr, true
	case "to_addr":
		return r.ToAddr, true
	case "from_name":
		return r.FromName, true
	case "to_name":
		return r.ToName, true
	case "subject":
		return r.Subject, true
	case "link_id":
		return r.LinkID, true
	}
	return nil, false
}

// RewriteType selects which messages a rewrite rule applies to.
type RewriteType string

const (
	RewriteNetmail  RewriteType = "NETMAIL"
	RewriteEchomail RewriteType = "ECHOMAIL"
)

// Rewrite replaces header fields of messages matching the Orig masks.
type Rewrite struct {
	ID           int64       `db:"id"`
	Type         RewriteType `db:"type"`
	Priority     int         `db:"priority"`
	Last         bool        `db:"last"`
	OrigFromAddr string      `db:"orig_from_addr"`
	OrigToAddr   string      `db:"orig_to_addr"`
	OrigFromName string      `db:"orig_from_name"`
	OrigToName   string      `db:"orig_to_name"`
	OrigSubject  string      `db:"orig_subject"`
	NewFromAddr  string      `db:"new_from_addr"`
	NewToAddr    string      `db:"new_to_addr"`
	NewFromName  string      `db:"new_from_name"`
	NewToName    string      `db:"new_to_name"`
	NewSubject   string      `db:"new_subject"`
}

func (r Rewrite) FieldValue(field string) (any, bool) {
	switch field {
	case "id":
		return r.ID, true
	case "type":
		return string(r.Type), true
	case "priority":
		return r.Priority, true
	case "last":
		return r.Last, true
	case "orig_from_addr":
		return r.OrigFromAddr, true
	case "orig_to_addr":
		return r.OrigToAddr, true
	case "orig_from_name":
		return r.OrigFromName, true
	case "orig_to_name":
		return r.OrigToName, true
	case "orig_subject":
		return r.OrigSubject, true
	case "new_from_addr":
		return r.NewFromAddr, true
	case "new_to_addr":
		return r.NewToAddr, true
	case "new_from_name":
		return r.NewFromName, true
	case "new_to_name":
		return r.NewToName, true
	case "new_subject":
		return r.NewSubject, true
	}
	return nil, false
}

// Area is an echomail conference.
type Area struct {
	ID          int64  `db:"id"`
	Name        string `db:"name"`
	Description string `db:"description"`
}

func (a Area) FieldValue(field string) (any, bool) {
	switch field {
	case "id":
		return a.ID, true
	case "name":
		return a.Name, true
	case "description":
		return a.Description, true
	}
	return nil, false
}

// Subscription ties a link to an area. Last is the id of the last echomail
// considered for the link.
type Subscription struct {
	LinkID int64 `db:"link_id"`
	AreaID int64 `db:"area_id"`
	Last   int64 `db:"last"`
}

func (s Subscription) FieldValue(field string) (any, bool) {
	switch field {
	case "link_id":
		return s.LinkID, true
	case "area_id":
		return s.AreaID, true
	case "last":
		return s.Last, true
	}
	return nil, false
}

// Echomail is an accepted conference message. SeenBy and Path hold
// space-delimited "net/node" lists.
type Echomail struct {
	ID       int64     `db:"id"`
	AreaID   int64     `db:"area_id"`
	FromAddr string    `db:"from_addr"`
	FromName string    `db:"from_name"`
	ToName   string    `db:"to_name"`
	Subject  string    `db:"subject"`
	Date     time.Time `db:"date"`
	MsgID    string    `db:"msgid"`
	Text     string    `db:"text"`
	SeenBy   string    `db:"seenby"`
	Path     string    `db:"path"`
}

func (e Echomail) FieldValue(field string) (any, bool) {
	switch field {
	case "id":
		return e.ID, true
	case "area_id":
		return e.AreaID, true
	case "from_addr":
		return e.FromAddr, true
	case "from_name":
		return e.FromName, true
	case "to_name":
		return e.ToName, true
	case "subject":
		return e.Subject, true
	case "date":
		return e.Date, true
	case "msgid":
		return e.MsgID, true
	case "text":
		return e.Text, true
	case "seenby":
		return e.SeenBy, true
	case "path":
		return e.Path, true
	}
	return nil, false
}

// Netmail is a routed point-to-point message waiting for RouteVia.
type Netmail struct {
	ID       int64     `db:"id"`
	RouteVia int64     `db:"route_via"`
	FromAddr string    `db:"from_addr"`
	ToAddr   string    `db:"to_addr"`
	FromName string    `db:"from_name"`
	ToName   string    `db:"to_name"`
	Subject  string    `db:"subject"`
	Date     time.Time `db:"date"`
	Text     string    `db:"text"`
}

func (n Netmail) FieldValue(field string) (any, bool) {
	switch field {
	case "id":
		return n.ID, true
	case "route_via":
		return n.RouteVia, true
	case "from_addr":
		return n.FromAddr, true
	case "to_addr":
		return n.ToAddr, true
	case "from_name":
		return n.FromName, true
	case "to_name":
		return n.ToName, true
	case "subject":
		return n.Subject, true
	case "date":
		return n.Date, true
	case "text":
		return n.Text, true
	}
	return nil, false
}
