package workers

import (
	"context"
	"dwilive/contract"
	"log/slog"
	"os"
	"time"

	"github.com/shirou/gopsutil/process"
)

type Stats struct {
	Connections int
	Rooms       int
	RSS         uint64
	CPUPercent  float64
}

// StatsWorker periodically logs the process footprint next to the live
// connection and room counts.
type StatsWorker struct {
	log      *slog.Logger
	registry contract.IRegistry
	interval time.Duration
	proc     *process.Process
}

func NewStatsWorker(log *slog.Logger, registry contract.IRegistry, interval time.Duration) *StatsWorker {
	return &StatsWorker{log: log, registry: registry, interval: interval}
}

func (w *StatsWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping stats")
			return nil
		case <-ticker.C:
			s := w.Collect()
			w.log.Info("Runtime stats",
				"connections", s.Connections,
				"rooms", s.Rooms,
				"rss_bytes", s.RSS,
				"cpu_percent", s.CPUPercent)
		}
	}
}

// Collect never fails: process figures stay zero when they cannot be read.
func (w *StatsWorker) Collect() Stats {
	var s Stats
	s.Connections, s.Rooms = w.registry.Counts()

	if w.proc == nil {
		p, err := process.NewProcess(int32(os.Getpid()))
		if err != nil {
			w.log.Debug("Error while retrieving process", "err", err)
			return s
		}
		w.proc = p
	}
	if mem, err := w.proc.MemoryInfo(); err == nil {
		s.RSS = mem.RSS
	} else {
		w.log.Debug("Error while finding process ram usage", "err", err)
	}
	if cpu, err := w.proc.CPUPercent(); err == nil {
		s.CPUPercent = cpu
	} else {
		w.log.Debug("Error while finding process cpu usage", "err", err)
	}
	return s
}
