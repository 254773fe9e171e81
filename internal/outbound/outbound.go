// Package outbound hands packed bundles to an external binkley-style mailer
// by writing them into a BSO outbound directory with flow files.
package outbound

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/stlalpha/v3toss/internal/ftn"
	"github.com/stlalpha/v3toss/internal/logging"
	"github.com/stlalpha/v3toss/internal/store"
	"github.com/stlalpha/v3toss/internal/tosser"
)

// ErrBusy is returned when a mailer holds the busy flag of a link.
var ErrBusy = errors.New("outbound: link is busy")

// StaleBusyAge is the age after which a busy flag is taken to be left over
// from a crashed process and is removed.
const StaleBusyAge = 2 * time.Hour

// Packer builds the pending bundles of a link.
type Packer interface {
	BuildBundles(ctx context.Context, link store.Link) ([]tosser.Bundle, error)
}

// Spool writes bundles into a BSO outbound tree.
type Spool struct {
	dir         string
	defaultZone int
	packer      Packer
	mu          sync.Mutex // serialises flow file appends
}

// New returns a spool rooted at dir. Links outside defaultZone go to the
// zone-suffixed sibling directory ("outbound.002").
func New(dir string, defaultZone int, p Packer) *Spool {
	return &Spool{dir: dir, defaultZone: defaultZone, packer: p}
}

// flowExt maps a link flavour to its flow file extension.
func flowExt(flavour string) string {
	switch strings.ToUpper(flavour) {
	case "CRASH":
		return ".clo"
	case "HOLD":
		return ".hlo"
	case "DIRECT":
		return ".dlo"
	default: // "NORMAL", ""
		return ".flo"
	}
}

// linkDir returns the directory holding the files of addr and the base
// name used for its flow and busy files.
func (s *Spool) linkDir(addr ftn.Address) (string, string) {
	dir := s.dir
	if addr.Zone != s.defaultZone && addr.Zone != 0 {
		dir = fmt.Sprintf("%s.%03x", strings.TrimRight(s.dir, string(filepath.Separator)), addr.Zone)
	}
	base := fmt.Sprintf("%04x%04x", addr.Net, addr.Node)
	if addr.IsPoint() {
		return filepath.Join(dir, base+".pnt"), fmt.Sprintf("%08x", addr.Point)
	}
	return dir, base
}

// Flush packs the link and spools every bundle it produced. It returns the
// paths written, which are valid even when err is non-nil.
func (s *Spool) Flush(ctx context.Context, link store.Link) ([]string, error) {
	addr, err := ftn.ParseAddress(link.Address)
	if err != nil {
		return nil, fmt.Errorf("link #%d: %w", link.ID, err)
	}
	dir, base := s.linkDir(addr)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create outbound dir: %w", err)
	}

	release, err := acquireBusy(filepath.Join(dir, base+".bsy"))
	if err != nil {
		return nil, err
	}
	defer release()

	bundles, packErr := s.packer.BuildBundles(ctx, link)
	var written []string
	for _, b := range bundles {
		path, err := s.writeBundle(dir, b)
		if err != nil {
			return written, errors.Join(packErr, err)
		}
		if err := s.appendFlow(filepath.Join(dir, base+flowExt(link.Flavour)), path); err != nil {
			return written, errors.Join(packErr, fmt.Errorf("write flow file: %w", err))
		}
		written = append(written, path)
		log.Printf("INFO: Spooled %s (%d message(s)) for %s", filepath.Base(path), b.Messages, link.Address)
	}
	return written, packErr
}

// Poll flushes the link in the background of the caller. It satisfies
// tosser.Poller for tossers without an active scheduler.
func (s *Spool) Poll(ctx context.Context, link store.Link) {
	if _, err := s.Flush(ctx, link); err != nil {
		log.Printf("ERROR: Outbound for %s: %v", link.Address, err)
	}
}

// FlushAll flushes every link with at most limit links in flight and
// returns the number of files written. Failures of one link do not stop the
// others; the first error is returned.
func (s *Spool) FlushAll(ctx context.Context, links []store.Link, limit int) (int, error) {
	var (
		g     errgroup.Group
		mu    sync.Mutex
		total int
	)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for _, link := range links {
		link := link // per-iteration copy for goroutine (pre-Go 1.22 loop semantics)
		g.Go(func() error {
			paths, err := s.Flush(ctx, link)
			mu.Lock()
			total += len(paths)
			mu.Unlock()
			if errors.Is(err, ErrBusy) {
				log.Printf("WARN: %s is busy, skipped", link.Address)
				return nil
			}
			if err != nil {
				return fmt.Errorf("%s: %w", link.Address, err)
			}
			return nil
		})
	}
	err := g.Wait()
	return total, err
}

// writeBundle stores b under a name not yet present in dir.
func (s *Spool) writeBundle(dir string, b tosser.Bundle) (string, error) {
	path := resolveUniquePath(filepath.Join(dir, b.Name))
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b.Data, 0644); err != nil {
		return "", fmt.Errorf("write bundle: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("rename bundle: %w", err)
	}
	return path, nil
}

// resolveUniquePath returns path if it is free. A taken day bundle tries
// the next digit (.mo0 -> .mo1 ... .mo9); anything else gets a new random
// base name.
func resolveUniquePath(path string) string {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return path
	}
	dir := filepath.Dir(path)
	name := filepath.Base(path)
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)

	if ftn.BundleExtension(name) && len(ext) == 4 {
		prefix := ext[:3]
		for i := 1; i <= 9; i++ {
			candidate := filepath.Join(dir, fmt.Sprintf("%s%s%d", base, prefix, i))
			if _, err := os.Stat(candidate); os.IsNotExist(err) {
				return candidate
			}
		}
	}
	for {
		candidate := filepath.Join(dir, ftn.NewArtifactName(ext))
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate
		}
	}
}

// appendFlow adds a kill-after-send entry for path to a flow file.
func (s *Spool) appendFlow(flowPath, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(flowPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}
	_, err = fmt.Fprintf(f, "^%s\n", absPath)
	return err
}

// acquireBusy creates a BSO busy flag. A flag older than StaleBusyAge is
// replaced. The returned func removes it.
func acquireBusy(path string) (func(), error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if os.IsExist(err) {
		if fi, serr := os.Stat(path); serr == nil && time.Since(fi.ModTime()) > StaleBusyAge {
			log.Printf("WARN: Removing stale busy flag %s (%s old)", path, time.Since(fi.ModTime()).Round(time.Second))
			if rerr := os.Remove(path); rerr != nil && !os.IsNotExist(rerr) {
				return nil, fmt.Errorf("remove stale busy flag: %w", rerr)
			}
			f, err = os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
		}
	}
	if err != nil {
		if os.IsExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrBusy, filepath.Base(path))
		}
		return nil, fmt.Errorf("create busy flag: %w", err)
	}
	fmt.Fprintf(f, "%d\n", os.Getpid())
	f.Close()
	return func() {
		if err := os.Remove(path); err != nil {
			logging.Debug("Failed to remove busy flag %s: %v", path, err)
		}
	}, nil
}
