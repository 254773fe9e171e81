package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/stlalpha/v3toss/internal/config"
	"github.com/stlalpha/v3toss/internal/dedup"
	"github.com/stlalpha/v3toss/internal/ftn"
	"github.com/stlalpha/v3toss/internal/logging"
	"github.com/stlalpha/v3toss/internal/nodelist"
	"github.com/stlalpha/v3toss/internal/outbound"
	"github.com/stlalpha/v3toss/internal/robot"
	"github.com/stlalpha/v3toss/internal/store"
	"github.com/stlalpha/v3toss/internal/store/memory"
	"github.com/stlalpha/v3toss/internal/store/postgres"
	"github.com/stlalpha/v3toss/internal/tosser"
)

// deps is the wired tosser stack shared by the sub-commands.
type deps struct {
	cfg    config.TossConfig
	store  store.Store
	tosser *tosser.Tosser
	spool  *outbound.Spool

	closers []func() error
}

// loadDeps reads toss.json from configDir and wires store, dedup gate,
// directory, robots and outbound spool. reg may be nil.
func loadDeps(ctx context.Context, configDir string, reg prometheus.Registerer) (*deps, error) {
	cfg, err := config.LoadTossConfig(configDir)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid toss.json: %w", err)
	}

	d := &deps{cfg: cfg}
	logFile, err := logging.Setup(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("log file: %w", err)
	}
	d.closers = append(d.closers, logFile.Close)

	if err := d.wire(ctx, reg); err != nil {
		d.Close()
		return nil, err
	}
	return d, nil
}

func (d *deps) wire(ctx context.Context, reg prometheus.Registerer) error {
	cfg := d.cfg
	own, err := cfg.OwnAddress()
	if err != nil {
		return err
	}

	st, err := openStore(ctx, cfg.Database)
	if err != nil {
		return err
	}
	d.store = st
	if err := cfg.Seed(ctx, st); err != nil {
		return fmt.Errorf("seed store: %w", err)
	}

	gate, err := d.openGate(ctx)
	if err != nil {
		return err
	}

	codec, err := ftn.NewCodec(cfg.Charset)
	if err != nil {
		return err
	}

	robots := robot.NewRegistry()
	opts := []tosser.Option{
		tosser.WithCodec(codec),
		tosser.WithGate(gate),
		tosser.WithDirectory(loadDirectory(cfg, own)),
		tosser.WithRobots(robots),
	}
	if reg != nil {
		opts = append(opts, tosser.WithMetrics(tosser.NewMetrics(reg)))
	}
	d.tosser = tosser.New(tosser.Config{
		Address:     own,
		StationName: cfg.StationName,
		FilesPath:   cfg.FilesPath,
		BadPath:     cfg.BadPath,
	}, st, opts...)

	for _, name := range cfg.Robots {
		switch strings.ToLower(name) {
		case "ping":
			if err := robots.Register(name, &robot.Ping{Replier: d.tosser}); err != nil {
				return err
			}
		default:
			log.Printf("WARN: Unknown robot %q in toss.json, ignored", name)
		}
	}

	d.spool = outbound.New(cfg.OutboundPath, own.Zone, d.tosser)
	d.tosser.SetPoller(d.spool)
	return nil
}

func openStore(ctx context.Context, cfg config.DatabaseConfig) (store.Store, error) {
	switch strings.ToLower(cfg.Driver) {
	case "postgres":
		var opts []postgres.Option
		if cfg.TimeoutSeconds > 0 {
			opts = append(opts, postgres.WithTimeout(time.Duration(cfg.TimeoutSeconds)*time.Second))
		}
		pg, err := postgres.Open(ctx, cfg.DSN, opts...)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		log.Printf("INFO: Using PostgreSQL message store")
		return pg, nil
	default:
		log.Printf("INFO: Using in-memory message store")
		return memory.New(), nil
	}
}

func (d *deps) openGate(ctx context.Context) (dedup.Gate, error) {
	cfg := d.cfg.Dedup
	maxAge := time.Duration(cfg.MaxAgeDays) * 24 * time.Hour
	switch strings.ToLower(cfg.Backend) {
	case "redis":
		g, err := dedup.NewRedisGate(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, maxAge)
		if err != nil {
			return nil, fmt.Errorf("dedup redis: %w", err)
		}
		d.closers = append(d.closers, g.Close)
		return g, nil
	case "file":
		g, err := dedup.NewFileGate(cfg.FilePath, maxAge)
		if err != nil {
			return nil, fmt.Errorf("dedup file: %w", err)
		}
		if err := g.Purge(); err != nil {
			log.Printf("WARN: Failed to purge dupe file %s: %v", cfg.FilePath, err)
		}
		d.closers = append(d.closers, g.Save)
		return g, nil
	default:
		return dedup.NewStoreGate(d.store), nil
	}
}

// loadDirectory builds the node directory: the nodelist when one is
// configured, with this station and its links always listed.
func loadDirectory(cfg config.TossConfig, own ftn.Address) nodelist.Directory {
	known := nodelist.Static{own: nodelist.StatusOK}
	for _, l := range cfg.Links {
		if addr, err := ftn.ParseAddress(l.Address); err == nil {
			known[addr] = nodelist.StatusOK
		}
	}

	if cfg.NodelistPath == "" {
		log.Printf("INFO: No nodelist configured, every address is accepted")
		return nodelist.AllowAll{}
	}
	nl, err := nodelist.LoadFile(cfg.NodelistPath)
	if err != nil {
		log.Printf("WARN: %v; every address is accepted", err)
		return nodelist.AllowAll{}
	}
	return nodelist.Overlay{nl, known}
}

// volatile reports whether the store loses its contents when the process
// exits.
func (d *deps) volatile() bool {
	_, ok := d.store.(*memory.Store)
	return ok
}

// Close waits for polls started by tosses, then releases the store, dedup
// gate and log file.
func (d *deps) Close() {
	if d.tosser != nil {
		d.tosser.Wait()
	}
	if c, ok := d.store.(interface{ Close() error }); ok {
		d.closers = append(d.closers, c.Close)
	}
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
}
