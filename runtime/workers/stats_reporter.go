package workers

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/shirou/gopsutil/process"
)

// ProcessStats is the resource usage of the running server.
type ProcessStats struct {
	RSSBytes   uint64  `json:"rss_bytes"`
	CPUPercent float64 `json:"cpu_percent"`
	Threads    int32   `json:"threads"`
}

// StatsReporter periodically logs what stats returns. Process usage comes from
// the provider too, see SelfStats.
type StatsReporter struct {
	log      *slog.Logger
	interval time.Duration
	stats    func() map[string]any
}

func NewStatsReporter(log *slog.Logger, interval time.Duration, stats func() map[string]any) *StatsReporter {
	return &StatsReporter{log: log, interval: interval, stats: stats}
}

func (w *StatsReporter) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			attrs := []any{}
			for k, v := range w.stats() {
				attrs = append(attrs, k, v)
			}
			w.log.Info("Realtime stats", attrs...)
		}
	}
}

// ReadProcessStats retrieves memory, CPU and thread count for the given process.
func ReadProcessStats(p *process.Process) (ProcessStats, error) {
	memInfo, err := p.MemoryInfo()
	if err != nil {
		return ProcessStats{}, err
	}
	cpuPercent, err := p.CPUPercent()
	if err != nil {
		return ProcessStats{}, err
	}
	threads, err := p.NumThreads()
	if err != nil {
		return ProcessStats{}, err
	}
	return ProcessStats{RSSBytes: memInfo.RSS, CPUPercent: cpuPercent, Threads: threads}, nil
}

// SelfStats reads ProcessStats for the current process.
func SelfStats() (ProcessStats, error) {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return ProcessStats{}, err
	}
	return ReadProcessStats(p)
}
