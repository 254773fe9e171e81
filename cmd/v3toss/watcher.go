package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/stlalpha/v3toss/internal/tosser"
)

// inboundWatcher tosses an inbound directory whenever files land in it.
type inboundWatcher struct {
	tosser   *tosser.Tosser
	dir      string
	secure   bool
	debounce time.Duration
}

func newInboundWatcher(t *tosser.Tosser, dir string, secure bool) *inboundWatcher {
	return &inboundWatcher{tosser: t, dir: dir, secure: secure, debounce: 500 * time.Millisecond}
}

// Run tosses the directory once, then again after every burst of Create or
// Write events, until ctx is cancelled.
func (w *inboundWatcher) Run(ctx context.Context) error {
	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return fmt.Errorf("inbound %s: %w", w.dir, err)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer fw.Close()
	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.dir, err)
	}
	log.Printf("INFO: Watching inbound %s (secure=%v)", w.dir, w.secure)

	w.toss(ctx)

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				timer.Reset(w.debounce)
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			log.Printf("ERROR: Inbound watcher error on %s: %v", w.dir, err)
		case <-timer.C:
			w.toss(ctx)
		case <-ctx.Done():
			log.Printf("INFO: Stopping inbound watcher for %s", w.dir)
			return nil
		}
	}
}

func (w *inboundWatcher) toss(ctx context.Context) {
	res, err := w.tosser.TossDir(ctx, w.dir, w.secure)
	if err != nil && ctx.Err() == nil {
		log.Printf("ERROR: Toss of %s failed: %v", w.dir, err)
	}
	if res != nil && res.Packets+len(res.Files) > 0 {
		log.Printf("INFO: Inbound %s: %d packet(s), %d tossed, %d rejected, %d file(s)",
			w.dir, res.Packets, res.TotalTossed(), res.TotalRejected(), len(res.Files))
	}
}
