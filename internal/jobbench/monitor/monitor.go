package monitor

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"k8s.io/utils/clock"

	"github.com/armadaproject/jobbench/internal/common/logging"
)

const (
	DataFileName  = "monitoring_data.csv"
	ChartFileName = "monitoring_summary.png"
)

type Config struct {
	Interval  time.Duration
	Duration  time.Duration
	OutputDir string
}

// Monitor samples the database container for the length of a benchmark and leaves a CSV and chart behind.
type Monitor struct {
	resources ResourceSource
	activity  ActivitySource
	clock     clock.Clock
	config    Config
}

func New(resources ResourceSource, activity ActivitySource, clock clock.Clock, config Config) *Monitor {
	return &Monitor{
		resources: resources,
		activity:  activity,
		clock:     clock,
		config:    config,
	}
}

// Run fails before creating any output if the container or database cannot be observed. Once sampling has started,
// whatever was captured is finalized and rendered even when sampling ends in an error.
func (m *Monitor) Run(ctx context.Context) error {
	if err := m.precheck(ctx); err != nil {
		return err
	}
	if err := os.MkdirAll(m.config.OutputDir, 0o755); err != nil {
		return errors.WithStack(err)
	}
	dataPath := filepath.Join(m.config.OutputDir, DataFileName)
	sink, err := CreateCSVSink(dataPath)
	if err != nil {
		return err
	}
	logging.Infof("Monitoring every %s for up to %s, writing to %s", m.config.Interval, m.config.Duration, sink.Path())

	var result *multierror.Error
	samples, err := NewSampler(m.resources, m.activity, sink, m.clock, m.config.Interval, m.config.Duration).Run(ctx)
	if err != nil {
		result = multierror.Append(result, err)
	}
	if err := sink.Close(); err != nil {
		result = multierror.Append(result, errors.WithMessage(err, "closing sample file"))
	}

	if len(samples) == 0 {
		logging.Warn("No data collected")
		return result.ErrorOrNil()
	}
	Summarise(samples).Log()
	chartPath := filepath.Join(m.config.OutputDir, ChartFileName)
	if err := RenderChart(samples, chartPath); err != nil {
		result = multierror.Append(result, errors.WithMessage(err, "rendering chart"))
	} else {
		logging.Infof("Wrote %d samples to %s and chart to %s", len(samples), dataPath, chartPath)
	}
	return result.ErrorOrNil()
}

func (m *Monitor) precheck(ctx context.Context) error {
	var result *multierror.Error
	if err := m.resources.Check(ctx); err != nil {
		result = multierror.Append(result, err)
	}
	if err := m.activity.Check(ctx); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}

// Replot renders the chart for an existing sample file.
func Replot(dataPath, chartPath string) error {
	samples, err := ReadSamples(dataPath)
	if err != nil {
		return err
	}
	if len(samples) == 0 {
		logging.Warn("No data collected")
		return ErrNoSamples
	}
	Summarise(samples).Log()
	return RenderChart(samples, chartPath)
}
