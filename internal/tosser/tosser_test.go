package tosser

import (
	"context"
	"testing"
	"time"

	"github.com/stlalpha/v3toss/internal/ftn"
	"github.com/stlalpha/v3toss/internal/nodelist"
	"github.com/stlalpha/v3toss/internal/store"
	"github.com/stlalpha/v3toss/internal/store/memory"
)

var (
	ownAddr   = ftn.MustParseAddress("2:5020/9999")
	fixedTime = time.Date(2026, time.April, 6, 12, 0, 0, 0, time.Local)
)

// chanPoller records polled link addresses.
type chanPoller chan string

func (p chanPoller) Poll(_ context.Context, link store.Link) {
	p <- link.Address
}

type fixture struct {
	tosser *Tosser
	store  *memory.Store
	hub    store.Link // 2:5020/1, no transport endpoint
	peer   store.Link // 2:5020/2, reachable
	polls  chanPoller
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	ctx := context.Background()
	st := memory.New()

	f := &fixture{
		store: st,
		hub:   store.Link{Address: "2:5020/1", Name: "Hub", Password: "SECRET"},
		peer:  store.Link{Address: "2:5020/2", Name: "Peer", Password: "pw2", Host: "peer.example.net", Port: 24554},
		polls: make(chanPoller, 16),
	}
	if err := st.CreateLink(ctx, &f.hub); err != nil {
		t.Fatalf("CreateLink: %v", err)
	}
	if err := st.CreateLink(ctx, &f.peer); err != nil {
		t.Fatalf("CreateLink: %v", err)
	}

	dir := nodelist.Static{
		ownAddr:                            nodelist.StatusOK,
		ftn.MustParseAddress("2:5020/1"):   nodelist.StatusOK,
		ftn.MustParseAddress("2:5020/2"):   nodelist.StatusOK,
		ftn.MustParseAddress("2:5020/3"):   nodelist.StatusOK,
		ftn.MustParseAddress("2:5020/66"):  nodelist.StatusDown,
		ftn.MustParseAddress("2:5020/123"): nodelist.StatusHold,
	}
	base := []Option{
		WithDirectory(dir),
		WithPoller(f.polls),
		WithClock(func() time.Time { return fixedTime }),
	}
	f.tosser = New(Config{Address: ownAddr, StationName: "Test Station", FilesPath: t.TempDir()}, st, append(base, opts...)...)
	return f
}

func (f *fixture) subscribe(t *testing.T, link store.Link, areaName string) store.Area {
	t.Helper()
	ctx := context.Background()
	area, err := store.FindArea(ctx, f.store, areaName)
	if store.IsNotFound(err) {
		area = &store.Area{Name: areaName}
		err = f.store.CreateArea(ctx, area)
	}
	if err != nil {
		t.Fatalf("area %s: %v", areaName, err)
	}
	if err := f.store.CreateSubscription(ctx, &store.Subscription{LinkID: link.ID, AreaID: area.ID}); err != nil {
		t.Fatalf("CreateSubscription: %v", err)
	}
	return *area
}

func echomail(area, msgid string) *ftn.Message {
	return &ftn.Message{
		FromAddr: ftn.MustParseAddress("2:5020/1"),
		FromName: "John Doe",
		ToName:   "All",
		Area:     area,
		Subject:  "Hello",
		Date:     fixedTime.Add(-time.Hour),
		MsgID:    msgid,
		Text:     "\x01MSGID: " + msgid + "\nHello world\n",
	}
}

func netmail(from, to string) *ftn.Message {
	return &ftn.Message{
		FromAddr: ftn.MustParseAddress(from),
		ToAddr:   ftn.MustParseAddress(to),
		FromName: "John Doe",
		ToName:   "Jane Roe",
		Subject:  "Private",
		Date:     fixedTime.Add(-time.Hour),
		Attr:     ftn.MsgAttrPrivate,
		Text:     "\x01MSGID: " + from + " 0badc0de\nHi Jane\n",
	}
}

func encodePacket(t *testing.T, origin, password string, msgs ...*ftn.Message) []byte {
	t.Helper()
	data, err := ftn.DefaultCodec.Encode(&ftn.Packet{
		Origin:   ftn.MustParseAddress(origin),
		Dest:     ownAddr,
		Password: password,
		Created:  fixedTime,
		Messages: msgs,
	})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	return data
}

func (f *fixture) toss(t *testing.T, in Inbound) *Result {
	t.Helper()
	res, err := f.tosser.Toss(context.Background(), in)
	if err != nil {
		t.Fatalf("Toss: %v", err)
	}
	return res
}

func countMap(m map[string]int, key string) int {
	return m[key]
}

func (f *fixture) netmails(t *testing.T) []store.Netmail {
	t.Helper()
	rows, err := f.store.Netmails(context.Background(), store.All().Order("id", false))
	if err != nil {
		t.Fatalf("Netmails: %v", err)
	}
	return rows
}

func (f *fixture) echomails(t *testing.T) []store.Echomail {
	t.Helper()
	rows, err := f.store.Echomails(context.Background(), store.All().Order("id", false))
	if err != nil {
		t.Fatalf("Echomails: %v", err)
	}
	return rows
}

func (f *fixture) expectPoll(t *testing.T, want string) {
	t.Helper()
	select {
	case got := <-f.polls:
		if got != want {
			t.Errorf("polled %s, want %s", got, want)
		}
	case <-time.After(2 * time.Second):
		t.Errorf("no poll for %s", want)
	}
}
