package monitor

import (
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/armadaproject/jobbench/internal/common/logging"
)

// Summary condenses a sampler run into the figures worth reading before the chart.
type Summary struct {
	Samples         int
	Start           time.Time
	End             time.Time
	MeanCPU         float64
	MaxCPU          float64
	MeanMemory      float64
	MaxMemory       float64
	PeakConnections int64
	PeakActive      int64
	MaxLockWaits    int64
}

func Summarise(samples []Sample) Summary {
	if len(samples) == 0 {
		return Summary{}
	}
	cpu := make([]float64, len(samples))
	mem := make([]float64, len(samples))
	summary := Summary{
		Samples: len(samples),
		Start:   samples[0].Timestamp,
		End:     samples[len(samples)-1].Timestamp,
	}
	for i, s := range samples {
		cpu[i] = s.CPUPercent
		mem[i] = s.MemoryPercent
		summary.PeakConnections = max(summary.PeakConnections, s.TotalConnections)
		summary.PeakActive = max(summary.PeakActive, s.ActiveConnections)
		summary.MaxLockWaits = max(summary.MaxLockWaits, s.LockWaits)
	}
	summary.MeanCPU = round2(stat.Mean(cpu, nil))
	summary.MaxCPU = floats.Max(cpu)
	summary.MeanMemory = round2(stat.Mean(mem, nil))
	summary.MaxMemory = floats.Max(mem)
	return summary
}

func (s Summary) Log() {
	logging.
		WithField("samples", s.Samples).
		WithField("span", s.End.Sub(s.Start).Round(time.Second).String()).
		WithField("meanCpu", s.MeanCPU).
		WithField("maxCpu", s.MaxCPU).
		WithField("meanMem", s.MeanMemory).
		WithField("maxMem", s.MaxMemory).
		WithField("peakConnections", s.PeakConnections).
		WithField("peakActive", s.PeakActive).
		WithField("maxLockWaits", s.MaxLockWaits).
		Info("Monitoring summary")
}
