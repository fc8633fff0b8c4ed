package monitor

import (
	"math"
	"strconv"
	"time"

	"github.com/pkg/errors"
)

// ResourceUsage is the container's resource consumption at one instant.
type ResourceUsage struct {
	CPUPercent    float64
	MemoryPercent float64
	MemoryUsageMB float64
}

// StoreActivity summarises pg_stat_activity at one instant.
type StoreActivity struct {
	TotalConnections   int64
	ActiveConnections  int64
	IdleConnections    int64
	LockWaits          int64
	WaitingConnections int64
}

type Sample struct {
	Timestamp time.Time
	ResourceUsage
	StoreActivity
}

var csvHeader = []string{
	"timestamp",
	"cpu_percent",
	"memory_percent",
	"memory_usage_mb",
	"total_connections",
	"active_connections",
	"idle_connections",
	"lock_waits",
	"waiting_connections",
}

// Header returns the column names of the sample CSV.
func Header() []string {
	return append([]string(nil), csvHeader...)
}

func (s Sample) record() []string {
	return []string{
		s.Timestamp.Format(time.RFC3339Nano),
		formatFloat(s.CPUPercent),
		formatFloat(s.MemoryPercent),
		formatFloat(s.MemoryUsageMB),
		strconv.FormatInt(s.TotalConnections, 10),
		strconv.FormatInt(s.ActiveConnections, 10),
		strconv.FormatInt(s.IdleConnections, 10),
		strconv.FormatInt(s.LockWaits, 10),
		strconv.FormatInt(s.WaitingConnections, 10),
	}
}

func parseRecord(record []string) (Sample, error) {
	if len(record) != len(csvHeader) {
		return Sample{}, errors.Errorf("expected %d columns, got %d", len(csvHeader), len(record))
	}
	var s Sample
	var err error
	if s.Timestamp, err = time.Parse(time.RFC3339Nano, record[0]); err != nil {
		return Sample{}, errors.WithStack(err)
	}
	floats := []*float64{&s.CPUPercent, &s.MemoryPercent, &s.MemoryUsageMB}
	for i, f := range floats {
		if *f, err = strconv.ParseFloat(record[1+i], 64); err != nil {
			return Sample{}, errors.Wrapf(err, "column %s", csvHeader[1+i])
		}
	}
	ints := []*int64{&s.TotalConnections, &s.ActiveConnections, &s.IdleConnections, &s.LockWaits, &s.WaitingConnections}
	for i, n := range ints {
		if *n, err = strconv.ParseInt(record[4+i], 10, 64); err != nil {
			return Sample{}, errors.Wrapf(err, "column %s", csvHeader[4+i])
		}
	}
	return s, nil
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(round2(f), 'f', -1, 64)
}
