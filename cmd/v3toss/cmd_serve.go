package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/stlalpha/v3toss/internal/scheduler"
	"github.com/stlalpha/v3toss/internal/version"
)

// cmdServe implements 'v3toss serve': watch both inbounds, poll links on
// the configured schedule and expose Prometheus metrics.
func cmdServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configDir := fs.String("config", "configs", "Config directory")
	metricsAddr := fs.String("metrics", "", "Metrics listen address (default: metrics_listen from toss.json)")
	fs.Parse(args)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	d, err := loadDeps(ctx, *configDir, reg)
	if err != nil {
		return err
	}
	defer d.Close()

	sched := scheduler.NewScheduler(d.cfg.Poll, d.store, d.spool, d.cfg.OutboundPath)
	d.tosser.SetPoller(sched)

	log.Printf("INFO: %s serving %s", version.Tag(), d.tosser.Address())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return newInboundWatcher(d.tosser, d.cfg.SecureInboundPath, true).Run(gctx) })
	g.Go(func() error { return newInboundWatcher(d.tosser, d.cfg.InboundPath, false).Run(gctx) })
	g.Go(func() error { return sched.Start(gctx) })

	listen := *metricsAddr
	if listen == "" {
		listen = d.cfg.MetricsListen
	}
	if listen != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
		srv := &http.Server{Addr: listen, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		g.Go(func() error {
			log.Printf("INFO: Metrics listening on %s", listen)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	err = g.Wait()
	log.Printf("INFO: %s stopped", version.Name)
	return err
}
