package tosser

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/stlalpha/v3toss/internal/ftn"
	"github.com/stlalpha/v3toss/internal/logging"
	"github.com/stlalpha/v3toss/internal/robot"
	"github.com/stlalpha/v3toss/internal/store"
)

// NetmailClass is the summary key for netmail counts.
const NetmailClass = "netmail"

// Inbound is one artifact received from the transport.
type Inbound struct {
	Name string
	Data []byte
	// Link is the authenticated peer of the session. When nil the link is
	// looked up from each packet's origin address.
	Link *store.Link
	// Secure is set for password-protected sessions.
	Secure bool
}

// Result summarises one toss. Tossed and Rejected are keyed by area name,
// or NetmailClass for netmail. Bad is set when the artifact, or a packet in
// it, was malformed or failed the password check.
type Result struct {
	Packets  int
	Tossed   map[string]int
	Rejected map[string]int
	Files    []string
	Polled   []string
	Bad      bool
}

func newResult() *Result {
	return &Result{Tossed: map[string]int{}, Rejected: map[string]int{}}
}

func (r *Result) tossed(class string)   { r.Tossed[class]++ }
func (r *Result) rejected(class string) { r.Rejected[class]++ }

// Merge adds the counts of o to r.
func (r *Result) Merge(o *Result) {
	r.Packets += o.Packets
	for k, n := range o.Tossed {
		r.Tossed[k] += n
	}
	for k, n := range o.Rejected {
		r.Rejected[k] += n
	}
	r.Files = append(r.Files, o.Files...)
	r.Polled = append(r.Polled, o.Polled...)
	r.Bad = r.Bad || o.Bad
}

// TotalTossed returns the number of accepted messages.
func (r *Result) TotalTossed() int {
	n := 0
	for _, v := range r.Tossed {
		n += v
	}
	return n
}

// TotalRejected returns the number of rejected messages.
func (r *Result) TotalRejected() int {
	n := 0
	for _, v := range r.Rejected {
		n += v
	}
	return n
}

// session is the peer context a single packet is tossed under.
type session struct {
	link   *store.Link
	secure bool
}

// Toss files every message of an inbound artifact. Message and packet
// problems are logged and counted in the result; the error is non-nil only
// when the context is cancelled or an attached file cannot be saved.
func (t *Tosser) Toss(ctx context.Context, in Inbound) (*Result, error) {
	res := newResult()

	var pkts []*ftn.Packet
	switch kind := ftn.ClassifyArtifact(in.Name, in.Data); kind {
	case ftn.ArtifactPacket:
		pkt, err := t.codec.Decode(in.Data)
		if err != nil {
			log.Printf("ERROR: Malformed packet %s: %v", in.Name, err)
			t.metrics.packet("malformed")
			res.Bad = true
		}
		if pkt != nil {
			pkts = append(pkts, pkt)
		}
	case ftn.ArtifactArchive:
		var err error
		pkts, err = t.codec.DecodeArchive(in.Data)
		if err != nil {
			log.Printf("ERROR: Malformed bundle %s: %v", in.Name, err)
			t.metrics.packet("malformed")
			res.Bad = true
		}
	default:
		name, err := t.saveFile(in.Name, in.Data)
		if err != nil {
			return res, err
		}
		if name != "" {
			res.Files = append(res.Files, name)
		}
		return res, nil
	}

	polls := make(map[int64]store.Link)
	for _, pkt := range pkts {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		sess, err := t.packetSession(ctx, in, pkt)
		if err != nil {
			log.Printf("ERROR: Failed to resolve link for packet from %s: %v", pkt.Origin, err)
			t.metrics.packet("error")
			continue
		}
		if sess.secure && !strings.EqualFold(pkt.Password, ftn.PacketPassword(sess.link.Password)) {
			log.Printf("WARN: Password mismatch in packet from %s (%s), %d message(s) dropped",
				pkt.Origin, in.Name, len(pkt.Messages))
			t.metrics.packet("password")
			res.Bad = true
			continue
		}
		t.metrics.packet("accepted")
		res.Packets++

		for _, msg := range pkt.Messages {
			t.tossMessage(ctx, sess, msg, res, polls)
		}
	}

	logSummary(in.Name, res)
	t.metrics.summary(res)
	t.triggerPolls(ctx, polls, res)
	return res, nil
}

// packetSession picks the link a packet is tossed for. A secure session
// without a known link is downgraded to insecure.
func (t *Tosser) packetSession(ctx context.Context, in Inbound, pkt *ftn.Packet) (session, error) {
	if in.Link != nil {
		return session{link: in.Link, secure: in.Secure}, nil
	}
	link, err := store.FindLink(ctx, t.store, pkt.Origin.String())
	if store.IsNotFound(err) && pkt.Origin.IsPoint() {
		link, err = store.FindLink(ctx, t.store, pkt.Origin.Boss().String())
	}
	switch {
	case err == nil:
		return session{link: link, secure: in.Secure}, nil
	case store.IsNotFound(err):
		if in.Secure {
			log.Printf("WARN: Secure packet from unknown link %s treated as insecure", pkt.Origin)
		}
		return session{}, nil
	default:
		return session{}, err
	}
}

func (t *Tosser) tossMessage(ctx context.Context, sess session, msg *ftn.Message, res *Result, polls map[int64]store.Link) {
	if sess.secure && msg.IsNetmail() && msg.ToAddr == t.cfg.Address {
		if h, ok := t.robots.Lookup(msg.ToName); ok {
			name := strings.ToLower(msg.ToName)
			err := robot.Execute(ctx, name, h, msg)
			if err != nil {
				log.Printf("ERROR: %v", err)
			} else {
				log.Printf("INFO: Robot %s handled message from %s", name, msg.FromAddr)
			}
			t.metrics.robot(name, err)
			return
		}
	}

	if msg.IsNetmail() {
		t.tossNetmail(ctx, msg, res, polls)
		return
	}
	if !sess.secure {
		logging.Debug("Dropping echomail %s in %s from insecure session", msg.MsgID, msg.Area)
		return
	}
	t.tossEchomail(ctx, sess.link, msg, res)
}

func (t *Tosser) tossNetmail(ctx context.Context, msg *ftn.Message, res *Result, polls map[int64]store.Link) {
	// Nodelist failures are dropped silently: logged, never counted.
	if _, ok := t.dir.Lookup(msg.FromAddr); !ok {
		log.Printf("WARN: Netmail from %s dropped: sender not in nodelist", msg.FromAddr)
		return
	}

	dest, ok := t.dir.Lookup(msg.ToAddr)
	switch {
	case !ok:
		log.Printf("WARN: Netmail %s -> %s dropped: destination not in nodelist", msg.FromAddr, msg.ToAddr)
		return
	case !dest.Status.Reachable():
		log.Printf("WARN: Netmail %s -> %s dropped: destination is %s", msg.FromAddr, msg.ToAddr, dest.Status)
		link, err := t.writeReply(ctx, msg, "Destination is DOWN",
			"Sorry, but destination of your netmail is DOWN\nMessage rejected")
		if err != nil {
			log.Printf("ERROR: Failed to bounce netmail to %s: %v", msg.FromAddr, err)
		} else if link != nil {
			polls[link.ID] = *link
		}
		return
	}

	if err := t.rewriter.Apply(ctx, msg); err != nil {
		log.Printf("ERROR: Netmail %s -> %s: %v", msg.FromAddr, msg.ToAddr, err)
		res.rejected(NetmailClass)
		return
	}

	link, err := t.router.Resolve(ctx, msg)
	if err != nil {
		log.Printf("ERROR: Netmail %s -> %s: %v", msg.FromAddr, msg.ToAddr, err)
		res.rejected(NetmailClass)
		return
	}
	if link == nil {
		log.Printf("WARN: No route for netmail %s -> %s", msg.FromAddr, msg.ToAddr)
		res.rejected(NetmailClass)
		return
	}

	row := netmailRow(msg, link.ID)
	if err := t.store.CreateNetmail(ctx, &row); err != nil {
		log.Printf("ERROR: Failed to store netmail %s -> %s: %v", msg.FromAddr, msg.ToAddr, err)
		res.rejected(NetmailClass)
		return
	}
	logging.Debug("Netmail %s -> %s routed via %s", msg.FromAddr, msg.ToAddr, link.Address)
	polls[link.ID] = *link
	res.tossed(NetmailClass)
}

func (t *Tosser) tossEchomail(ctx context.Context, link *store.Link, msg *ftn.Message, res *Result) {
	area, err := t.resolveArea(ctx, msg.Area, link)
	if err != nil {
		log.Printf("ERROR: Area %s: %v", msg.Area, err)
		res.rejected(msg.Area)
		return
	}

	if _, err := store.FindSubscription(ctx, t.store, link.ID, area.ID); err != nil {
		if store.IsNotFound(err) {
			log.Printf("WARN: Link %s is not subscribed to %s", link.Address, area.Name)
		} else {
			log.Printf("ERROR: Subscription %s/%s: %v", link.Address, area.Name, err)
		}
		res.rejected(area.Name)
		return
	}

	admitted := false
	if msg.MsgID != "" {
		created, err := t.gate.Admit(ctx, *area, msg.MsgID)
		if err != nil {
			log.Printf("ERROR: Dupe check %s in %s: %v", msg.MsgID, area.Name, err)
			res.rejected(area.Name)
			return
		}
		if !created {
			log.Printf("WARN: Duplicate message %s in %s", msg.MsgID, area.Name)
			res.rejected(area.Name)
			return
		}
		admitted = true
	}

	if err := t.persistEchomail(ctx, link, area, msg); err != nil {
		log.Printf("ERROR: Failed to store echomail %s in %s: %v", msg.MsgID, area.Name, err)
		if admitted {
			if ferr := t.gate.Forget(ctx, *area, msg.MsgID); ferr != nil {
				log.Printf("ERROR: Failed to release dupe record %s in %s: %v", msg.MsgID, area.Name, ferr)
			}
		}
		res.rejected(area.Name)
		return
	}
	res.tossed(area.Name)
}

func (t *Tosser) persistEchomail(ctx context.Context, link *store.Link, area *store.Area, msg *ftn.Message) error {
	if err := t.rewriter.Apply(ctx, msg); err != nil {
		return err
	}
	row := echomailRow(msg, area.ID)
	if err := t.store.CreateEchomail(ctx, &row); err != nil {
		return err
	}
	if _, err := t.store.MarkRead(ctx, link.ID, row.ID); err != nil {
		log.Printf("ERROR: Failed to mark echomail #%d read for %s: %v", row.ID, link.Address, err)
	}
	return nil
}

// resolveArea finds the area by name, creating it with a subscription for
// the delivering link when it does not exist yet.
func (t *Tosser) resolveArea(ctx context.Context, name string, link *store.Link) (*store.Area, error) {
	area, err := store.FindArea(ctx, t.store, name)
	if err == nil {
		return area, nil
	}
	if !store.IsNotFound(err) {
		return nil, err
	}

	area = &store.Area{Name: name}
	if err := t.store.CreateArea(ctx, area); err != nil {
		if !store.IsDuplicate(err) {
			return nil, fmt.Errorf("create area: %w", err)
		}
		// Created concurrently by another toss.
		return store.FindArea(ctx, t.store, name)
	}
	log.Printf("INFO: Created area %s for link %s", name, link.Address)

	sub := &store.Subscription{LinkID: link.ID, AreaID: area.ID}
	if err := t.store.CreateSubscription(ctx, sub); err != nil && !store.IsDuplicate(err) {
		return nil, fmt.Errorf("subscribe %s: %w", link.Address, err)
	}
	return area, nil
}

// saveFile stores an attached file in the files area and returns its name.
func (t *Tosser) saveFile(name string, data []byte) (string, error) {
	base := sanitizeFileName(name)
	if t.cfg.FilesPath == "" {
		log.Printf("WARN: No files area configured, attached file %s dropped", base)
		return "", nil
	}
	if err := os.MkdirAll(t.cfg.FilesPath, 0755); err != nil {
		return "", fmt.Errorf("create files area: %w", err)
	}

	dst := filepath.Join(t.cfg.FilesPath, base)
	if _, err := os.Stat(dst); err == nil {
		base = strings.TrimSuffix(ftn.NewArtifactName("x"), ".x") + "_" + base
		dst = filepath.Join(t.cfg.FilesPath, base)
	}
	if err := os.WriteFile(dst, data, 0644); err != nil {
		return "", fmt.Errorf("save file %s: %w", base, err)
	}
	log.Printf("INFO: Received file %s (%d bytes)", base, len(data))
	return base, nil
}

// sanitizeFileName strips directories and leading dots from a received name.
func sanitizeFileName(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	trimmed := strings.TrimLeft(base, ".")
	base = strings.Repeat("_", len(base)-len(trimmed)) + trimmed
	if base == "" || base == "/" {
		base = ftn.NewArtifactName("bin")
	}
	return base
}

func logSummary(name string, res *Result) {
	if len(res.Tossed) == 0 && len(res.Rejected) == 0 {
		logging.Debug("No messages in %s", name)
		return
	}
	for _, area := range sortedKeys(res.Tossed) {
		log.Printf("INFO: Tossed %d message(s) to %s", res.Tossed[area], area)
	}
	for _, area := range sortedKeys(res.Rejected) {
		log.Printf("WARN: Rejected %d message(s) for %s", res.Rejected[area], area)
	}
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// triggerPolls starts a poll of every reachable link that received netmail.
// Polls run detached from the toss; only Wait blocks on them.
func (t *Tosser) triggerPolls(ctx context.Context, links map[int64]store.Link, res *Result) {
	poller := t.currentPoller()
	if poller == nil || len(links) == 0 {
		return
	}
	ids := make([]int64, 0, len(links))
	for id := range links {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	pollCtx := context.WithoutCancel(ctx)
	for _, id := range ids {
		link := links[id]
		if !link.Reachable() {
			logging.Debug("Link %s has no transport endpoint, not polling", link.Address)
			continue
		}
		res.Polled = append(res.Polled, link.Address)
		t.metrics.poll()
		t.polls.Add(1)
		go func() {
			defer t.polls.Done()
			poller.Poll(pollCtx, link)
		}()
	}
}
