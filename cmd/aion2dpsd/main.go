// Command aion2dpsd runs the AION2 DPS telemetry engine: it captures
// local TCP traffic, reconstructs the combat protocol stream, and
// serves live and periodic combat statistics to whatever transport is
// wired on top of the bus.Publisher it constructs.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ZDYoung0519/NOIA2/internal/aggregator"
	"github.com/ZDYoung0519/NOIA2/internal/archive"
	"github.com/ZDYoung0519/NOIA2/internal/bus"
	"github.com/ZDYoung0519/NOIA2/internal/capture"
	"github.com/ZDYoung0519/NOIA2/internal/channel"
	"github.com/ZDYoung0519/NOIA2/internal/command"
	"github.com/ZDYoung0519/NOIA2/internal/config"
	"github.com/ZDYoung0519/NOIA2/internal/control"
	"github.com/ZDYoung0519/NOIA2/internal/dispatcher"
	"github.com/ZDYoung0519/NOIA2/internal/logging"
	"github.com/ZDYoung0519/NOIA2/internal/mainplayer"
	"github.com/ZDYoung0519/NOIA2/internal/metrics"
	"github.com/ZDYoung0519/NOIA2/internal/skillcode"
	"github.com/ZDYoung0519/NOIA2/internal/snapshot"
	"github.com/ZDYoung0519/NOIA2/internal/storage"
	"github.com/ZDYoung0519/NOIA2/internal/summary"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config.yaml")
	flag.Parse()

	if err := run(*configPath); err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return errors.Wrap(err, "load config")
	}

	loggers, err := logging.New(cfg.Log.Level, cfg.Log.Debug)
	if err != nil {
		return errors.Wrap(err, "build loggers")
	}
	defer loggers.Sync()

	catalog, err := skillcode.Load(cfg.SkillCatalog.Path)
	if err != nil {
		loggers.Root.Warn("skill catalog unavailable, using built-in table", zap.Error(err))
	}

	store := storage.New(catalog)
	ch := channel.New(cfg.Channel.Capacity)
	pub := bus.NewChannelPublisher()

	disp := dispatcher.New(ch, store, loggers.Decoder, pub, cfg.Log.Debug)
	arc := archive.New(cfg.Archive, loggers.Archive)
	ctrl := control.New(store, disp, ch, pub, loggers.Dispatcher).WithArchiver(arc)

	sumLog := summary.New(loggers.Summary)

	agg := aggregator.New(store, cfg.Aggregator.Interval(), func(snap snapshot.Snapshot) {
		sumLog.Observe(snap)
		if err := pub.Publish(control.SnapshotTopic, snap); err != nil {
			loggers.Aggregator.Warn("publish snapshot failed", zap.Error(err))
		}
	}, loggers.Aggregator)

	sampler, err := metrics.NewSampler(ch, disp, dispatcher.ChannelDropped, loggers.Metrics)
	if err != nil {
		return errors.Wrap(err, "build metrics sampler")
	}

	src, err := capture.OpenPcapSource(cfg.Capture.Interface)
	if err != nil {
		return errors.Wrap(err, "open capture source")
	}
	defer src.Close()

	cmds := make(chan command.Command, 1)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sumLog.Start()
	defer sumLog.Stop()

	httpServer := &http.Server{Addr: cfg.Metrics.ListenAddr, Handler: sampler.Handler()}

	group, gctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return src.Run(gctx, func(p capture.Payload) {
			ch.TrySend(channel.Payload{SrcPort: p.SrcPort, DstPort: p.DstPort, Data: p.Data})
		})
	})
	group.Go(func() error { return disp.Run(gctx) })
	group.Go(func() error { return agg.Run(gctx) })
	group.Go(func() error { return sampler.Run(gctx, cfg.Metrics.SampleInterval()) })
	group.Go(func() error { return mainplayer.NoopDetector{}.Run(gctx, store.SetMainPlayer) })
	group.Go(func() error { return ctrl.Run(gctx, cmds) })
	group.Go(func() error {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-gctx.Done()
		return httpServer.Close()
	})
	group.Go(func() error {
		<-gctx.Done()
		ctrl.Reset()
		return nil
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		loggers.Root.Error("shutting down due to error", zap.Error(err))
		return err
	}
	return nil
}
