// Package dbcontainer runs the benchmark's Postgres server in a local Docker container.
package dbcontainer

import (
	"context"
	"io"
	"strconv"
	"time"

	"github.com/avast/retry-go"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"
	"github.com/docker/go-connections/nat"
	"github.com/pkg/errors"

	"github.com/armadaproject/jobbench/internal/common/database"
	"github.com/armadaproject/jobbench/internal/common/logging"
	"github.com/armadaproject/jobbench/internal/jobbench/configuration"
)

const postgresPort nat.Port = "5432/tcp"

const readyPollInterval = time.Second

type Manager struct {
	client *client.Client
	config configuration.ContainerConfig
}

// NewManager connects to the Docker daemon named by the standard DOCKER_* environment variables.
func NewManager(config configuration.ContainerConfig) (*Manager, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, errors.Wrap(err, "creating docker client")
	}
	return &Manager{client: cli, config: config}, nil
}

func (m *Manager) Close() error {
	return m.client.Close()
}

// Reset replaces any existing container of the configured name with a fresh one, discarding its data.
func (m *Manager) Reset(ctx context.Context) error {
	err := m.client.ContainerRemove(ctx, m.config.Name, container.RemoveOptions{Force: true, RemoveVolumes: true})
	switch {
	case err == nil:
		logging.Infof("Removed container %s", m.config.Name)
	case errdefs.IsNotFound(err):
	default:
		return errors.Wrapf(err, "removing container %s", m.config.Name)
	}

	if err := m.ensureImage(ctx); err != nil {
		return err
	}

	containerConfig, hostConfig := containerConfigs(m.config)
	created, err := m.client.ContainerCreate(ctx, containerConfig, hostConfig, nil, nil, m.config.Name)
	if err != nil {
		return errors.Wrapf(err, "creating container %s", m.config.Name)
	}
	for _, warning := range created.Warnings {
		logging.Warnf("Docker: %s", warning)
	}
	if err := m.client.ContainerStart(ctx, created.ID, container.StartOptions{}); err != nil {
		return errors.Wrapf(err, "starting container %s", m.config.Name)
	}
	logging.
		WithField("container", m.config.Name).
		WithField("image", m.config.Image).
		WithField("hostPort", m.config.HostPort).
		WithField("cpus", m.config.Cpus).
		WithField("memory", m.config.Memory.String()).
		WithField("maxConnections", m.config.MaxConnections).
		Info("Started postgres container")
	return nil
}

func (m *Manager) ensureImage(ctx context.Context) error {
	if _, _, err := m.client.ImageInspectWithRaw(ctx, m.config.Image); err == nil {
		return nil
	} else if !errdefs.IsNotFound(err) {
		return errors.Wrapf(err, "inspecting image %s", m.config.Image)
	}
	logging.Infof("Pulling image %s", m.config.Image)
	reader, err := m.client.ImagePull(ctx, m.config.Image, image.PullOptions{})
	if err != nil {
		return errors.Wrapf(err, "pulling image %s", m.config.Image)
	}
	defer reader.Close()
	_, err = io.Copy(io.Discard, reader)
	return errors.Wrapf(err, "pulling image %s", m.config.Image)
}

// WaitReady polls the server until it accepts connections or ReadyTimeout elapses.
func (m *Manager) WaitReady(ctx context.Context, config database.PostgresConfig) error {
	ctx, cancel := context.WithTimeout(ctx, m.config.ReadyTimeout)
	defer cancel()
	attempts := uint(m.config.ReadyTimeout / readyPollInterval)
	if attempts == 0 {
		attempts = 1
	}
	err := retry.Do(
		func() error {
			conn, err := database.OpenPgxConn(ctx, config)
			if err != nil {
				return err
			}
			defer conn.Close(context.Background())
			return conn.Ping(ctx)
		},
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(readyPollInterval),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			logging.WithError(err).Debugf("Postgres not ready (attempt %d)", n+1)
		}),
	)
	if err != nil {
		return errors.WithMessagef(err, "postgres at %s not ready after %s", database.Describe(config), m.config.ReadyTimeout)
	}
	logging.Infof("Postgres at %s is ready", database.Describe(config))
	return nil
}

func containerConfigs(config configuration.ContainerConfig) (*container.Config, *container.HostConfig) {
	containerConfig := &container.Config{
		Image:        config.Image,
		Env:          []string{"POSTGRES_PASSWORD=" + config.Password},
		Cmd:          []string{"postgres", "-c", "max_connections=" + strconv.Itoa(config.MaxConnections)},
		ExposedPorts: nat.PortSet{postgresPort: struct{}{}},
	}
	hostConfig := &container.HostConfig{
		PortBindings: nat.PortMap{
			postgresPort: []nat.PortBinding{{HostIP: "0.0.0.0", HostPort: strconv.Itoa(config.HostPort)}},
		},
		Resources: container.Resources{
			NanoCPUs: int64(config.Cpus * 1e9),
			Memory:   config.Memory.Value(),
		},
	}
	return containerConfig, hostConfig
}
