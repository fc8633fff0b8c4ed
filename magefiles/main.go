//go:build mage

package main

import (
	"fmt"
	"os"
	"time"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

const binaryDir = "bin"

// BootstrapTools installs the tools listed in tools.yaml.
func BootstrapTools() error {
	mg.Deps(goCheck)
	type ToolsList struct {
		Tools []string
	}

	tools := &ToolsList{}
	err := readYaml("tools.yaml", tools)
	if err != nil {
		return err
	}

	for _, tool := range tools.Tools {
		if err := goRun("install", tool); err != nil {
			return err
		}
	}
	return nil
}

// Check dependent tools are present and the correct version.
func CheckDeps() error {
	checks := []struct {
		name  string
		check func() error
	}{
		{"docker", dockerCheck},
		{"go", goCheck},
	}
	failures := false
	for _, check := range checks {
		fmt.Printf("Checking %s... ", check.name)
		if err := check.check(); err != nil {
			fmt.Printf("FAILED\nReason: %v\n", err)
			failures = true
		} else {
			fmt.Println("PASSED")
		}
	}
	if failures {
		return errors.New("check(s) failed.")
	}
	return nil
}

// Build compiles the jobbench binary into bin/.
func Build() error {
	mg.Deps(goCheck)
	timeTaken := time.Now()
	if err := os.MkdirAll(binaryDir, os.ModeDir|0o755); err != nil {
		return err
	}
	if err := goRun("build", "-o", binaryDir+"/"+binaryWithExt("jobbench"), "./cmd/jobbench"); err != nil {
		return err
	}
	fmt.Println("Time to build jobbench:", time.Since(timeTaken))
	return nil
}

// Removes build output and test reports.
func Clean() {
	fmt.Println("Cleaning...")
	for _, path := range []string{binaryDir, "test_reports"} {
		os.RemoveAll(path)
	}
}

// Generate mocks.
func Mocks() error {
	return sh.Run("go", "generate", "./internal/jobbench/lifecycle/...")
}

// readYaml reads a yaml file and unmarshalls the result into out
func readYaml(filename string, out interface{}) error {
	bytes, err := os.ReadFile(filename)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(bytes, out)
}
