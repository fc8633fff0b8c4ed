package dbcontainer

import (
	"context"
	"encoding/json"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"
	"github.com/pkg/errors"

	"github.com/armadaproject/jobbench/internal/jobbench/monitor"
)

// StatsSource reads resource usage of a named container from the Docker daemon.
type StatsSource struct {
	client *client.Client
	name   string
}

// NewStatsSource observes a container the caller did not start.
func NewStatsSource(name string) (*StatsSource, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, errors.Wrap(err, "creating docker client")
	}
	return &StatsSource{client: cli, name: name}, nil
}

func (s *StatsSource) Check(ctx context.Context) error {
	info, err := s.client.ContainerInspect(ctx, s.name)
	if errdefs.IsNotFound(err) {
		return errors.Errorf("container %s not found", s.name)
	}
	if err != nil {
		return errors.Wrapf(err, "inspecting container %s", s.name)
	}
	if info.State == nil || !info.State.Running {
		return errors.Errorf("container %s is not running", s.name)
	}
	return nil
}

// Usage asks for a non-streamed snapshot, for which the daemon fills in the previous CPU reading itself.
func (s *StatsSource) Usage(ctx context.Context) (monitor.ResourceUsage, error) {
	resp, err := s.client.ContainerStats(ctx, s.name, false)
	if err != nil {
		return monitor.ResourceUsage{}, errors.Wrapf(err, "reading stats of container %s", s.name)
	}
	defer resp.Body.Close()
	var stats container.StatsResponse
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		return monitor.ResourceUsage{}, errors.Wrapf(err, "decoding stats of container %s", s.name)
	}
	return computeUsage(stats), nil
}

func (s *StatsSource) Close() error {
	return s.client.Close()
}

const bytesPerMB = 1024 * 1024

// computeUsage derives percentages the same way `docker stats` does.
func computeUsage(stats container.StatsResponse) monitor.ResourceUsage {
	var usage monitor.ResourceUsage

	memUsage := stats.MemoryStats.Usage
	if limit := stats.MemoryStats.Limit; limit > 0 {
		usage.MemoryPercent = float64(memUsage) / float64(limit) * 100
	}
	usage.MemoryUsageMB = float64(memUsage) / bytesPerMB

	cpuDelta := float64(stats.CPUStats.CPUUsage.TotalUsage) - float64(stats.PreCPUStats.CPUUsage.TotalUsage)
	systemDelta := float64(stats.CPUStats.SystemUsage) - float64(stats.PreCPUStats.SystemUsage)
	if cpuDelta > 0 && systemDelta > 0 {
		usage.CPUPercent = cpuDelta / systemDelta * float64(onlineCPUs(stats)) * 100
	}
	return usage
}

func onlineCPUs(stats container.StatsResponse) int {
	if stats.CPUStats.OnlineCPUs > 0 {
		return int(stats.CPUStats.OnlineCPUs)
	}
	if n := len(stats.CPUStats.CPUUsage.PercpuUsage); n > 0 {
		return n
	}
	return 1
}
