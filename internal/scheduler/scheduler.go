package scheduler

import (
	"context"
	"log"
	"sync"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/stlalpha/v3toss/internal/config"
	"github.com/stlalpha/v3toss/internal/store"
)

// Flusher writes the pending bundles of a link to the outbound.
type Flusher interface {
	Flush(ctx context.Context, link store.Link) ([]string, error)
}

// Scheduler polls links on a cron schedule and on demand.
type Scheduler struct {
	config       config.PollConfig
	store        store.Store
	flusher      Flusher
	outboundPath string
	cron         *cron.Cron
	history      map[string]*PollHistory
	runningLinks map[string]bool
	mu           sync.RWMutex
	pollSem      chan struct{}
	ctx          context.Context
	cancel       context.CancelFunc
}

// NewScheduler creates a link poll scheduler.
func NewScheduler(cfg config.PollConfig, s store.Store, f Flusher, outboundPath string) *Scheduler {
	if cfg.MaxConcurrentPolls <= 0 {
		cfg.MaxConcurrentPolls = 3
	}

	history := make(map[string]*PollHistory)
	if cfg.HistoryPath != "" {
		loaded, err := LoadHistory(cfg.HistoryPath)
		if err != nil {
			log.Printf("WARN: Failed to load poll history from %s: %v", cfg.HistoryPath, err)
		} else {
			history = loaded
		}
	}

	return &Scheduler{
		config:       cfg,
		store:        s,
		flusher:      f,
		outboundPath: outboundPath,
		history:      history,
		runningLinks: make(map[string]bool),
		pollSem:      make(chan struct{}, cfg.MaxConcurrentPolls),
	}
}

// Start runs the poll schedule until ctx is cancelled, then stops.
func (s *Scheduler) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)
	defer s.cancel()

	if !s.config.Enabled {
		log.Printf("INFO: Scheduled polling disabled, polling on demand only")
		<-s.ctx.Done()
		s.Stop()
		return nil
	}

	s.cron = cron.New(cron.WithSeconds())
	if _, err := s.cron.AddFunc(s.config.Schedule, func() { s.PollAll(s.ctx) }); err != nil {
		log.Printf("ERROR: Failed to schedule polls (%s): %v", s.config.Schedule, err)
		return err
	}

	s.cron.Start()
	log.Printf("INFO: Poll scheduler running: %s (max concurrent: %d)",
		s.config.Schedule, s.config.MaxConcurrentPolls)

	<-s.ctx.Done()

	log.Printf("INFO: Poll scheduler stopping...")
	s.Stop()
	return nil
}

// Stop waits for running polls and saves the history.
func (s *Scheduler) Stop() {
	if s.cron != nil {
		cronCtx := s.cron.Stop()
		<-cronCtx.Done()
		log.Printf("INFO: All scheduled polls completed")
	}

	if s.config.HistoryPath == "" {
		return
	}
	s.mu.RLock()
	err := SaveHistory(s.config.HistoryPath, s.history)
	s.mu.RUnlock()
	if err != nil {
		log.Printf("ERROR: Failed to save poll history: %v", err)
	} else {
		log.Printf("INFO: Poll history saved to %s", s.config.HistoryPath)
	}
}

// Poll polls one link, waiting for a free slot. It satisfies tosser.Poller.
func (s *Scheduler) Poll(ctx context.Context, link store.Link) {
	s.pollWithConcurrency(ctx, link)
}

// PollAll polls every known link. Links already being polled are skipped.
func (s *Scheduler) PollAll(ctx context.Context) {
	links, err := s.store.Links(ctx, store.All().Order("address", false))
	if err != nil {
		log.Printf("ERROR: Poll: failed to list links: %v", err)
		return
	}

	var g errgroup.Group
	for _, link := range links {
		link := link // per-iteration copy for goroutine (pre-Go 1.22 loop semantics)
		g.Go(func() error {
			s.pollWithConcurrency(ctx, link)
			return nil
		})
	}
	g.Wait()
}

// pollWithConcurrency polls link unless it is already running, waiting
// for one of the MaxConcurrentPolls slots.
func (s *Scheduler) pollWithConcurrency(ctx context.Context, link store.Link) bool {
	s.mu.Lock()
	if s.runningLinks[link.Address] {
		s.mu.Unlock()
		log.Printf("WARN: Poll of %s skipped: already running", link.Address)
		return false
	}
	s.runningLinks[link.Address] = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.runningLinks, link.Address)
		s.mu.Unlock()
	}()

	select {
	case s.pollSem <- struct{}{}:
	case <-ctx.Done():
		log.Printf("WARN: Poll of %s abandoned: %v", link.Address, ctx.Err())
		return false
	}
	defer func() { <-s.pollSem }()

	result := s.pollLink(ctx, link)
	s.updateHistory(result)
	return true
}

// GetHistory returns a copy of the poll history.
func (s *Scheduler) GetHistory() map[string]*PollHistory {
	s.mu.RLock()
	defer s.mu.RUnlock()

	historyCopy := make(map[string]*PollHistory, len(s.history))
	for k, v := range s.history {
		hCopy := *v
		historyCopy[k] = &hCopy
	}
	return historyCopy
}
