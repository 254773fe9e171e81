package tosser

import (
	"fmt"

	"github.com/stlalpha/v3toss/internal/ftn"
	"github.com/stlalpha/v3toss/internal/store"
)

// Stored rows keep seen-by and path as received.
func echomailRow(msg *ftn.Message, areaID int64) store.Echomail {
	return store.Echomail{
		AreaID:   areaID,
		FromAddr: msg.FromAddr.String(),
		FromName: msg.FromName,
		ToName:   msg.ToName,
		Subject:  msg.Subject,
		Date:     msg.Date,
		MsgID:    msg.MsgID,
		Text:     msg.Text,
		SeenBy:   ftn.Format2DList(msg.SeenBy, true),
		Path:     ftn.Format2DList(msg.Path, false),
	}
}

func echomailMessage(row store.Echomail, area string) (*ftn.Message, error) {
	from, err := ftn.ParseAddress(row.FromAddr)
	if err != nil {
		return nil, fmt.Errorf("echomail #%d: %w", row.ID, err)
	}
	return &ftn.Message{
		FromAddr: from,
		FromName: row.FromName,
		ToName:   row.ToName,
		Area:     area,
		Subject:  row.Subject,
		Date:     row.Date,
		MsgID:    row.MsgID,
		Text:     row.Text,
		SeenBy:   ftn.Parse2DList(row.SeenBy),
		Path:     ftn.Parse2DList(row.Path),
	}, nil
}

func netmailRow(msg *ftn.Message, routeVia int64) store.Netmail {
	return store.Netmail{
		RouteVia: routeVia,
		FromAddr: msg.FromAddr.String(),
		ToAddr:   msg.ToAddr.String(),
		FromName: msg.FromName,
		ToName:   msg.ToName,
		Subject:  msg.Subject,
		Date:     msg.Date,
		Text:     msg.Text,
	}
}

func netmailMessage(row store.Netmail) (*ftn.Message, error) {
	from, err := ftn.ParseAddress(row.FromAddr)
	if err != nil {
		return nil, fmt.Errorf("netmail #%d: %w", row.ID, err)
	}
	to, err := ftn.ParseAddress(row.ToAddr)
	if err != nil {
		return nil, fmt.Errorf("netmail #%d: %w", row.ID, err)
	}
	return &ftn.Message{
		FromAddr: from,
		ToAddr:   to,
		FromName: row.FromName,
		ToName:   row.ToName,
		Subject:  row.Subject,
		Date:     row.Date,
		Text:     row.Text,
		Attr:     ftn.MsgAttrPrivate,
	}, nil
}
