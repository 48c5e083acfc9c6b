package telemetry

import (
	"context"
	"os"
	"time"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/cwsl/blesniffercore/internal/corelog"
)

// SelfMetricsSink receives a process self-metrics sample. Metrics
// implements it; cmd/blesniffer may additionally fold a sample into a
// DEBUG frame the way RadioCore's own dprintf does.
type SelfMetricsSink interface {
	SetSelfMetrics(rssBytes uint64, cpuPercent float64)
}

// RunSelfMetrics samples this process's RSS and CPU usage via gopsutil
// every interval until ctx is cancelled, the same "process self-metrics"
// role gopsutil plays for the teacher's own health reporting (instance
// reporter / admin CPU-info calls), applied here to the process itself
// rather than the host's aggregate CPU info.
func RunSelfMetrics(ctx context.Context, sink SelfMetricsSink, interval time.Duration, log *corelog.Logger) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		if log != nil {
			log.Printf("telemetry: gopsutil process handle: %v", err)
		}
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sampleOnce(proc, sink, log)
		}
	}
}

func sampleOnce(proc *process.Process, sink SelfMetricsSink, log *corelog.Logger) {
	memInfo, err := proc.MemoryInfo()
	if err != nil {
		if log != nil {
			log.Debugf("telemetry: gopsutil memory sample: %v", err)
		}
		return
	}
	cpuPercent, err := proc.CPUPercent()
	if err != nil {
		if log != nil {
			log.Debugf("telemetry: gopsutil cpu sample: %v", err)
		}
		return
	}
	sink.SetSelfMetrics(memInfo.RSS, cpuPercent)
}
