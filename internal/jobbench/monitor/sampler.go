package monitor

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"k8s.io/utils/clock"

	"github.com/armadaproject/jobbench/internal/common/logging"
)

// Sampler takes one Sample per interval until its duration has elapsed or its context is cancelled.
type Sampler struct {
	resources ResourceSource
	activity  ActivitySource
	sink      SampleWriter
	clock     clock.Clock
	interval  time.Duration
	duration  time.Duration
}

func NewSampler(
	resources ResourceSource,
	activity ActivitySource,
	sink SampleWriter,
	clock clock.Clock,
	interval time.Duration,
	duration time.Duration,
) *Sampler {
	return &Sampler{
		resources: resources,
		activity:  activity,
		sink:      sink,
		clock:     clock,
		interval:  interval,
		duration:  duration,
	}
}

// Run returns every sample written to the sink. Cancellation is a normal way to stop and is not reported as an
// error. A failed collection or write ends the run, returning the samples taken so far together with the error.
func (s *Sampler) Run(ctx context.Context) ([]Sample, error) {
	var samples []Sample
	start := s.clock.Now()
	for {
		if ctx.Err() != nil {
			return samples, nil
		}
		tickStart := s.clock.Now()
		elapsed := tickStart.Sub(start)
		if elapsed >= s.duration {
			return samples, nil
		}

		sample, err := s.collect(ctx, tickStart)
		if err != nil {
			if ctx.Err() != nil {
				return samples, nil
			}
			return samples, err
		}
		if err := s.sink.Write(sample); err != nil {
			return samples, errors.WithMessage(err, "writing sample")
		}
		samples = append(samples, sample)
		logging.
			WithField("progress", round2(100*float64(elapsed)/float64(s.duration))).
			WithField("cpu", sample.CPUPercent).
			WithField("mem", sample.MemoryPercent).
			WithField("activeConnections", sample.ActiveConnections).
			WithField("lockWaits", sample.LockWaits).
			Info("Sample collected")

		wait := s.interval - s.clock.Since(tickStart)
		if wait <= 0 {
			continue
		}
		timer := s.clock.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return samples, nil
		case <-timer.C():
		}
	}
}

func (s *Sampler) collect(ctx context.Context, at time.Time) (Sample, error) {
	usage, err := s.resources.Usage(ctx)
	if err != nil {
		return Sample{}, errors.WithMessage(err, "collecting container stats")
	}
	activity, err := s.activity.Activity(ctx)
	if err != nil {
		return Sample{}, errors.WithMessage(err, "collecting database activity")
	}
	usage.CPUPercent = round2(usage.CPUPercent)
	usage.MemoryPercent = round2(usage.MemoryPercent)
	usage.MemoryUsageMB = round2(usage.MemoryUsageMB)
	return Sample{Timestamp: at, ResourceUsage: usage, StoreActivity: activity}, nil
}
