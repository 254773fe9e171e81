package tosser

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/stlalpha/v3toss/internal/ftn"
	"github.com/stlalpha/v3toss/internal/logging"
	"github.com/stlalpha/v3toss/internal/store"
)

// Bundle is one outbound transport artifact for a link.
type Bundle struct {
	Name     string
	Kind     ftn.ArtifactKind // ArtifactArchive for echomail, ArtifactPacket for netmail
	Data     []byte
	Messages int
}

type subKey struct {
	linkID, areaID int64
}

// subscriptionLock serialises packing of one (link, area) subscription.
func (t *Tosser) subscriptionLock(linkID, areaID int64) *sync.Mutex {
	v, _ := t.locks.LoadOrStore(subKey{linkID, areaID}, &sync.Mutex{})
	return v.(*sync.Mutex)
}

// BuildBundles computes the next outbound bundles for link: at most one
// echomail archive and one netmail packet. On error the bundles built so
// far are returned with it; their messages are already marked as sent.
func (t *Tosser) BuildBundles(ctx context.Context, link store.Link) ([]Bundle, error) {
	dest, err := ftn.ParseAddress(link.Address)
	if err != nil {
		return nil, fmt.Errorf("link #%d: %w", link.ID, err)
	}
	now := t.now()

	var bundles []Bundle
	echo, err := t.packEchomail(ctx, link, dest, now)
	if echo != nil {
		bundles = append(bundles, *echo)
	}
	if err != nil {
		return bundles, err
	}

	net, err := t.packNetmail(ctx, link, dest, now)
	if net != nil {
		bundles = append(bundles, *net)
	}
	return bundles, err
}

func (t *Tosser) packetFor(link store.Link, dest ftn.Address, now time.Time, msgs []*ftn.Message) *ftn.Packet {
	return &ftn.Packet{
		Origin:   t.cfg.Address,
		Dest:     dest,
		Password: link.Password,
		Created:  now,
		Messages: msgs,
	}
}

func (t *Tosser) packEchomail(ctx context.Context, link store.Link, dest ftn.Address, now time.Time) (*Bundle, error) {
	subs, err := t.store.Subscriptions(ctx, store.Where(store.Eq("link_id", link.ID)).Order("area_id", false))
	if err != nil {
		return nil, fmt.Errorf("load subscriptions: %w", err)
	}
	if len(subs) == 0 {
		return nil, nil
	}

	addrs, err := t.linkAddresses(ctx)
	if err != nil {
		return nil, err
	}

	var msgs []*ftn.Message
	for _, sub := range subs {
		picked, err := t.packSubscription(ctx, link, dest, sub.AreaID, addrs)
		msgs = append(msgs, picked...)
		if err != nil {
			log.Printf("ERROR: Packing area #%d for %s: %v", sub.AreaID, link.Address, err)
			if ctx.Err() != nil {
				break
			}
		}
	}
	if len(msgs) == 0 {
		return nil, ctx.Err()
	}

	data, err := t.codec.EncodeArchive([]*ftn.Packet{t.packetFor(link, dest, now, msgs)})
	if err != nil {
		return nil, err
	}
	t.metrics.packed(link.Address, "echomail", len(msgs))
	return &Bundle{
		Name:     ftn.NewArtifactName(ftn.BundleDayExtension(now)),
		Kind:     ftn.ArtifactArchive,
		Data:     data,
		Messages: len(msgs),
	}, ctx.Err()
}

// linkAddresses maps link ids to their 2D addresses.
func (t *Tosser) linkAddresses(ctx context.Context) (map[int64]ftn.Ftn2D, error) {
	links, err := t.store.Links(ctx, store.All())
	if err != nil {
		return nil, fmt.Errorf("load links: %w", err)
	}
	addrs := make(map[int64]ftn.Ftn2D, len(links))
	for _, l := range links {
		a, err := ftn.ParseAddress(l.Address)
		if err != nil {
			log.Printf("WARN: Link #%d has invalid address %q", l.ID, l.Address)
			continue
		}
		addrs[l.ID] = a.To2D()
	}
	return addrs, nil
}

// packSubscription selects the unsent echomail of one area for link and
// advances the subscription mark past every message it considered.
func (t *Tosser) packSubscription(ctx context.Context, link store.Link, dest ftn.Address, areaID int64, addrs map[int64]ftn.Ftn2D) ([]*ftn.Message, error) {
	mu := t.subscriptionLock(link.ID, areaID)
	mu.Lock()
	defer mu.Unlock()

	// Re-read under the lock so a mark advanced by a concurrent pack is seen.
	sub, err := store.FindSubscription(ctx, t.store, link.ID, areaID)
	if err != nil {
		return nil, err
	}
	areas, err := t.store.Areas(ctx, store.Where(store.Eq("id", areaID)).Take(1))
	if err != nil {
		return nil, err
	}
	if len(areas) == 0 {
		return nil, fmt.Errorf("area #%d: %w", areaID, store.ErrNotFound)
	}
	area := areas[0]

	rows, err := t.store.Echomails(ctx,
		store.Where(store.Eq("area_id", areaID), store.Gt("id", sub.Last)).Order("id", false))
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	subscribers, err := t.store.Subscriptions(ctx, store.Where(store.Eq("area_id", areaID)))
	if err != nil {
		return nil, err
	}
	own := t.cfg.Address.To2D()
	target := dest.To2D()
	extra := []ftn.Ftn2D{own, target}
	for _, s := range subscribers {
		if a, ok := addrs[s.LinkID]; ok {
			extra = append(extra, a)
		}
	}

	var picked []*ftn.Message
	last := sub.Last
	var loopErr error
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			loopErr = err
			break
		}
		last = row.ID

		created, err := t.store.MarkRead(ctx, link.ID, row.ID)
		if err != nil {
			loopErr = err
			last = row.ID - 1
			break
		}
		if !created {
			continue
		}

		stored := ftn.Parse2DList(row.SeenBy)
		if ftn.Contains2D(stored, target) && !dest.IsPoint() {
			logging.Debug("Echomail #%d already seen by %s", row.ID, link.Address)
			continue
		}

		msg, err := echomailMessage(row, area.Name)
		if err != nil {
			log.Printf("WARN: Skipping %v", err)
			continue
		}
		msg.SeenBy = ftn.Append2D(msg.SeenBy, extra...)
		msg.Path = ftn.Append2D(msg.Path, own)
		picked = append(picked, msg)
	}

	if last > sub.Last {
		if err := t.store.AdvanceSubscription(ctx, link.ID, areaID, last); err != nil {
			return picked, fmt.Errorf("advance subscription: %w", err)
		}
	}
	if len(picked) > 0 {
		logging.Debug("Packed %d message(s) from %s for %s", len(picked), area.Name, link.Address)
	}
	return picked, loopErr
}

func (t *Tosser) packNetmail(ctx context.Context, link store.Link, dest ftn.Address, now time.Time) (*Bundle, error) {
	rows, err := t.store.Netmails(ctx, store.Where(store.Eq("route_via", link.ID)).Order("id", false))
	if err != nil {
		return nil, fmt.Errorf("load netmail: %w", err)
	}

	var msgs []*ftn.Message
	for _, row := range rows {
		msg, err := netmailMessage(row)
		if err != nil {
			log.Printf("ERROR: Skipping %v", err)
			continue
		}
		// Deleting first hands each row to exactly one concurrent packer.
		if err := t.store.DeleteNetmail(ctx, row.ID); err != nil {
			if !store.IsNotFound(err) {
				log.Printf("ERROR: Failed to dequeue netmail #%d: %v", row.ID, err)
			}
			continue
		}
		msg.Text = appendVia(msg.Text, t.cfg.Address, t.version, now)
		msgs = append(msgs, msg)
	}
	if len(msgs) == 0 {
		return nil, nil
	}

	pkt := t.packetFor(link, dest, now, msgs)
	data, err := t.codec.Encode(pkt)
	if err != nil {
		return nil, err
	}
	t.metrics.packed(link.Address, "netmail", len(msgs))
	return &Bundle{
		Name:     ftn.NewArtifactName("pkt"),
		Kind:     ftn.ArtifactPacket,
		Data:     data,
		Messages: len(msgs),
	}, nil
}

// appendVia adds a Via trailer for this station to netmail text.
func appendVia(text string, own ftn.Address, tag string, now time.Time) string {
	if text != "" && !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	return text + fmt.Sprintf("\x01Via %s %s %s\n", own, tag, now.Format(time.RFC1123Z))
}
