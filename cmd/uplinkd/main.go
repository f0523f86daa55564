// Command uplinkd runs the uplink scheduling daemon: a bounded-
// concurrency job scheduler, an encryption-key delivery coalescer, a
// memory-pressure listener, and cron-driven upload jobs.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/uplink-foundation/uplink"
	"github.com/uplink-foundation/uplink/ext"
	"github.com/uplink-foundation/uplink/keydelivery"
	"github.com/uplink-foundation/uplink/middleware"
	"github.com/uplink-foundation/uplink/observability"
	"github.com/uplink-foundation/uplink/pressure"
	"github.com/uplink-foundation/uplink/scheduler"
	"github.com/uplink-foundation/uplink/upload"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "", "path to YAML config")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfgPath); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfgPath string) error {
	cfg, err := LoadConfig(cfgPath)
	if err != nil {
		return err
	}

	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)

	limit, err := parseTaskLimit(cfg.TaskLimit)
	if err != nil {
		return err
	}

	observers := ext.NewRegistry(logger)
	observers.Register(observability.NewMetricsObserver())

	schedOpts := []scheduler.Option{
		scheduler.WithLogger(logger),
		scheduler.WithTaskLimit(limit),
		scheduler.WithObservers(observers),
	}
	if cfg.EnqueuePerSecond > 0 {
		burst := cfg.EnqueueBurst
		if burst < 1 {
			burst = 1
		}
		schedOpts = append(schedOpts,
			scheduler.WithEnqueueLimiter(rate.NewLimiter(rate.Limit(cfg.EnqueuePerSecond), burst)))
	}
	sched := scheduler.New(schedOpts...)
	defer sched.Close()

	starter := newUploaderStarter(logger)

	kd, err := keydelivery.New(staticEncryption{}, starter,
		keydelivery.WithLogger(logger),
		keydelivery.WithObservers(observers),
	)
	if err != nil {
		return err
	}
	defer kd.Close()

	if cfg.KeyUpdatePeriod > 0 {
		kd.StartPeriodicKeyUpdate(cfg.KeyUpdatePeriod)
	}

	listener, err := pressure.NewListener(sched, pressure.WithLogger(logger))
	if err != nil {
		return err
	}

	schedule := cron.New()
	for _, uc := range cfg.Uploads {
		if err := addUploadEntry(schedule, sched, starter, logger, uc); err != nil {
			return err
		}
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		schedule.Start()
		<-ctx.Done()
		<-schedule.Stop().Done()
		return nil
	})

	// SIGUSR1 raises memory pressure one step, SIGUSR2 clears it.
	// This is the seam a platform pressure source plugs into.
	g.Go(func() error {
		raise := make(chan os.Signal, 1)
		relax := make(chan os.Signal, 1)
		signal.Notify(raise, syscall.SIGUSR1)
		signal.Notify(relax, syscall.SIGUSR2)
		defer signal.Stop(raise)
		defer signal.Stop(relax)

		for {
			select {
			case <-ctx.Done():
				return nil
			case <-raise:
				switch listener.Current() {
				case pressure.LevelNone:
					listener.OnPressureChanged(pressure.LevelModerate)
				default:
					listener.OnPressureChanged(pressure.LevelCritical)
				}
			case <-relax:
				listener.OnPressureChanged(pressure.LevelNone)
			}
		}
	})

	logger.Info("uplinkd started",
		slog.String("task_limit", limit.String()),
		slog.Int("scheduled_uploads", len(cfg.Uploads)),
	)

	return g.Wait()
}

// addUploadEntry registers a cron entry that enqueues a fresh upload
// job on every fire.
func addUploadEntry(schedule *cron.Cron, sched *scheduler.Scheduler, starter uplink.AsyncStartUploader, logger *slog.Logger, uc UploadConfig) error {
	reason, err := parseUploadReason(uc.Reason)
	if err != nil {
		return err
	}

	mws := []middleware.Middleware{
		middleware.Logging(logger),
		middleware.Metrics(),
		middleware.Tracing(),
		middleware.Recover(logger),
	}

	_, err = schedule.AddFunc(uc.Schedule, func() {
		d, err := upload.New(uc.Name, reason, starter, heartbeatFill(uc.Name),
			upload.WithLogger(logger),
			upload.WithMiddleware(mws...),
		)
		if err != nil {
			logger.Error("upload delegate construction failed",
				slog.String("name", uc.Name),
				slog.String("error", err.Error()),
			)
			return
		}
		j, err := sched.NewJob(d)
		if err != nil {
			logger.Error("job construction failed",
				slog.String("name", uc.Name),
				slog.String("error", err.Error()),
			)
			return
		}
		sched.EnqueueJob(j)
	})
	if err != nil {
		return fmt.Errorf("upload %q: bad schedule: %w", uc.Name, err)
	}
	return nil
}

// heartbeatFill pushes a single marker record through the session.
// A real deployment replaces this with a storage-backed fill.
func heartbeatFill(name string) upload.FillFunc {
	return func(ctx context.Context, up uplink.Uploader) uplink.Status {
		done := make(chan bool, 1)
		up.ProcessRecord(ctx, []byte(name), func(more bool) { done <- more })
		select {
		case <-done:
			return uplink.OK()
		case <-ctx.Done():
			return uplink.NewStatus(uplink.CodeCancelled, uplink.ReasonNone, ctx.Err().Error())
		}
	}
}

func newLogger(cfg LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "", "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}
