// Package metrics implements spec.md §5's "Metrics thread": a
// Prometheus registry exposed over HTTP, sampled at a configurable
// cadence with process CPU/RSS figures (via gopsutil) plus the channel
// size and the number of flows with an active assembler. Per-flow
// assembler buffer sizes are not sampled. None of it feeds back into
// Storage or the decode path — it is purely observational.
package metrics

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/v3/process"
	"go.uber.org/zap"

	"github.com/ZDYoung0519/NOIA2/internal/channel"
	"github.com/ZDYoung0519/NOIA2/internal/dispatcher"
)

// Sampler periodically refreshes the process and pipeline gauges.
type Sampler struct {
	registry *prometheus.Registry
	proc     *process.Process

	ch   *channel.Channel
	disp *dispatcher.Dispatcher
	log  *zap.Logger

	cpuPercent   prometheus.Gauge
	rssBytes     prometheus.Gauge
	vmsBytes     prometheus.Gauge
	memPercent   prometheus.Gauge
	channelSize  prometheus.Gauge
	channelDrops prometheus.Counter
	flowCount    prometheus.Gauge

	lastDropped int64
}

// NewSampler constructs a Sampler and registers every gauge/counter
// on a fresh registry (never the global default, so the HTTP handler
// this package serves is self-contained).
func NewSampler(ch *channel.Channel, disp *dispatcher.Dispatcher, channelDrops prometheus.Counter, log *zap.Logger) (*Sampler, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()

	s := &Sampler{
		registry: reg,
		proc:     proc,
		ch:       ch,
		disp:     disp,
		log:      log,

		cpuPercent: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "aion2dps_process_cpu_percent", Help: "Process CPU utilization percent.",
		}),
		rssBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "aion2dps_process_rss_bytes", Help: "Process resident set size in bytes.",
		}),
		vmsBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "aion2dps_process_vms_bytes", Help: "Process virtual memory size in bytes.",
		}),
		memPercent: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "aion2dps_process_memory_percent", Help: "Process memory utilization percent.",
		}),
		channelSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "aion2dps_channel_size", Help: "Current number of queued capture payloads.",
		}),
		channelDrops: channelDrops,
		flowCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "aion2dps_flow_count", Help: "Number of TCP flows with an active assembler.",
		}),
	}

	reg.MustRegister(s.cpuPercent, s.rssBytes, s.vmsBytes, s.memPercent, s.channelSize, s.flowCount)
	if s.channelDrops != nil {
		reg.MustRegister(s.channelDrops)
	}

	return s, nil
}

// Handler returns the /metrics HTTP handler for this Sampler's registry.
func (s *Sampler) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}

// Run samples at interval until ctx is cancelled.
func (s *Sampler) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.sample()
		}
	}
}

func (s *Sampler) sample() {
	if cpu, err := s.proc.CPUPercent(); err == nil {
		s.cpuPercent.Set(cpu)
	} else if s.log != nil {
		s.log.Debug("metrics: cpu sample failed", zap.Error(err))
	}

	if memInfo, err := s.proc.MemoryInfo(); err == nil && memInfo != nil {
		s.rssBytes.Set(float64(memInfo.RSS))
		s.vmsBytes.Set(float64(memInfo.VMS))
	}

	if memPercent, err := s.proc.MemoryPercent(); err == nil {
		s.memPercent.Set(float64(memPercent))
	}

	s.channelSize.Set(float64(s.ch.Size()))
	s.flowCount.Set(float64(s.disp.FlowCount()))

	if s.channelDrops != nil {
		dropped := s.ch.Dropped()
		if delta := dropped - s.lastDropped; delta > 0 {
			s.channelDrops.Add(float64(delta))
		}
		s.lastDropped = dropped
	}
}
