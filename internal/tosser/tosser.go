// Package tosser files inbound FTN mail into the store and builds the
// outbound bundles for each link.
package tosser

import (
	"context"
	"sync"
	"time"

	"github.com/stlalpha/v3toss/internal/dedup"
	"github.com/stlalpha/v3toss/internal/ftn"
	"github.com/stlalpha/v3toss/internal/nodelist"
	"github.com/stlalpha/v3toss/internal/robot"
	"github.com/stlalpha/v3toss/internal/store"
	"github.com/stlalpha/v3toss/internal/version"
)

// Config holds the station identity used by the tosser.
type Config struct {
	Address     ftn.Address
	StationName string
	// FilesPath receives inbound artifacts that are neither packets nor
	// bundles. Empty drops them with a warning.
	FilesPath string
	// BadPath receives inbound artifacts that were malformed or failed the
	// password check. Empty means a "bad" directory inside the inbound.
	BadPath string
}

// Poller starts an outbound exchange with a link. The tosser calls Poll on
// its own goroutine and never waits for it during a toss; Wait drains the
// polls still running.
type Poller interface {
	Poll(ctx context.Context, link store.Link)
}

// Tosser runs the inbound toss pipeline and the outbound packer.
type Tosser struct {
	cfg      Config
	store    store.Store
	codec    *ftn.Codec
	gate     dedup.Gate
	dir      nodelist.Directory
	robots   *robot.Registry
	router   *Router
	rewriter *Rewriter
	metrics  *Metrics
	now      func() time.Time
	version  string

	pollerMu sync.RWMutex
	poller   Poller
	polls    sync.WaitGroup

	locks sync.Map // subKey -> *sync.Mutex
}

// Option configures a Tosser.
type Option func(*Tosser)

// WithCodec sets the packet codec. The default is CP866.
func WithCodec(c *ftn.Codec) Option {
	return func(t *Tosser) { t.codec = c }
}

// WithGate sets the dedup gate. The default keeps dedup records in the store.
func WithGate(g dedup.Gate) Option {
	return func(t *Tosser) { t.gate = g }
}

// WithDirectory sets the node directory. The default accepts every address.
func WithDirectory(d nodelist.Directory) Option {
	return func(t *Tosser) { t.dir = d }
}

// WithRobots sets the robot registry consulted for netmail to this station.
func WithRobots(r *robot.Registry) Option {
	return func(t *Tosser) { t.robots = r }
}

// WithPoller sets the transport triggered for links that received netmail.
func WithPoller(p Poller) Option {
	return func(t *Tosser) { t.poller = p }
}

// WithMetrics enables Prometheus counters.
func WithMetrics(m *Metrics) Option {
	return func(t *Tosser) { t.metrics = m }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(t *Tosser) { t.now = now }
}

// New returns a tosser filing mail into s.
func New(cfg Config, s store.Store, opts ...Option) *Tosser {
	t := &Tosser{
		cfg:      cfg,
		store:    s,
		codec:    ftn.DefaultCodec,
		gate:     dedup.NewStoreGate(s),
		dir:      nodelist.AllowAll{},
		router:   NewRouter(s),
		rewriter: NewRewriter(s),
		now:      time.Now,
		version:  version.Tag(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// SetPoller replaces the poll trigger. It exists for transports that need
// the tosser to build their bundles.
func (t *Tosser) SetPoller(p Poller) {
	t.pollerMu.Lock()
	t.poller = p
	t.pollerMu.Unlock()
}

func (t *Tosser) currentPoller() Poller {
	t.pollerMu.RLock()
	defer t.pollerMu.RUnlock()
	return t.poller
}

// Wait blocks until every poll started by a toss has returned.
func (t *Tosser) Wait() {
	t.polls.Wait()
}

// Address returns the station address.
func (t *Tosser) Address() ftn.Address {
	return t.cfg.Address
}

// Router returns the netmail routing resolver.
func (t *Tosser) Router() *Router {
	return t.router
}
