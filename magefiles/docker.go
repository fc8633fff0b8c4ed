//go:build mage

package main

import (
	"strings"

	semver "github.com/Masterminds/semver/v3"
	"github.com/magefile/mage/sh"
	"github.com/pkg/errors"
)

const DOCKER_SERVER_VERSION_CONSTRAINT = ">= 20.10.0"

func dockerBinary() string {
	return binaryWithExt("docker")
}

func dockerOutput(args ...string) (string, error) {
	return sh.Output(dockerBinary(), args...)
}

func dockerRun(args ...string) error {
	return sh.Run(dockerBinary(), args...)
}

// dockerServerVersion asks the daemon rather than the CLI, so it also fails when no daemon is reachable.
func dockerServerVersion() (*semver.Version, error) {
	output, err := dockerOutput("version", "--format", "{{.Server.Version}}")
	if err != nil {
		return nil, errors.Errorf("error reaching docker daemon: %v", err)
	}
	version, err := semver.NewVersion(strings.TrimSpace(output))
	if err != nil {
		return nil, errors.Errorf("error parsing version %q: %v", output, err)
	}
	return version, nil
}

func dockerCheck() error {
	version, err := dockerServerVersion()
	if err != nil {
		return err
	}
	constraint, err := semver.NewConstraint(DOCKER_SERVER_VERSION_CONSTRAINT)
	if err != nil {
		return errors.Errorf("error parsing constraint: %v", err)
	}
	if !constraint.Check(version) {
		return errors.Errorf("found docker server %v but it failed constraint %v", version, constraint)
	}
	return nil
}
