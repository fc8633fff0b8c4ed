//go:build mage

package main

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const testPostgresName = "jobbench-test-postgres"

var Gotestsum string

var LocalBin = filepath.Join(os.Getenv("PWD"), "/bin")

func makeLocalBin() error {
	if _, err := os.Stat(LocalBin); os.IsNotExist(err) {
		err = os.MkdirAll(LocalBin, os.ModePerm)
		if err != nil {
			return err
		}
	}
	return nil
}

// Gotestsum downloads gotestsum locally if necessary
func gotestsum() error {
	mg.Deps(makeLocalBin)
	Gotestsum = filepath.Join(LocalBin, "/gotestsum")

	if _, err := os.Stat(Gotestsum); os.IsNotExist(err) {
		fmt.Println(Gotestsum)
		cmd := exec.Command("go", "install", "gotest.tools/gotestsum@v1.8.2")
		cmd.Env = append(os.Environ(), "GOBIN="+LocalBin)
		return cmd.Run()
	}
	return nil
}

// Tests starts a throwaway Postgres, runs every test against it and writes coverage reports.
func Tests() (err error) {
	mg.Deps(gotestsum, dockerCheck)

	_ = dockerRun("rm", "-f", testPostgresName)
	err = dockerRun("run", "-d", "--name="+testPostgresName, "-p", "5432:5432", "-e", "POSTGRES_PASSWORD=psw", "postgres:16")
	if err != nil {
		return err
	}
	defer func() {
		dockerErr := dockerRun("rm", "-f", testPostgresName)
		if dockerErr != nil {
			if err == nil {
				err = dockerErr
			} else {
				err = fmt.Errorf("%w; %s", err, dockerErr.Error())
			}
		}
	}()

	if err = sh.Run("sleep", "3"); err != nil {
		return err
	}
	if err = os.MkdirAll("test_reports", os.ModePerm); err != nil {
		return err
	}
	if err = runtest("internal_coverage.xml", "internal.txt", "./internal/..."); err != nil {
		return err
	}
	return runtest("cmd_coverage.xml", "cmd.txt", "./cmd/...")
}

// TestsNoSetup runs the tests against whatever Postgres is already listening, skipping database tests if none is.
func TestsNoSetup() error {
	mg.Deps(gotestsum)
	if err := os.MkdirAll("test_reports", os.ModePerm); err != nil {
		return err
	}
	if err := runtest("", "internal.txt", "./internal/..."); err != nil {
		return err
	}
	return runtest("", "cmd.txt", "./cmd/...")
}

func runtest(coverageFileName, outputFileName string, directories ...string) error {
	args := []string{"--", "-v", "-count=1"}
	if coverageFileName != "" {
		args = append(args, "-coverprofile", coverageFileName)
	}
	args = append(args, directories...)

	cmd := exec.Command(Gotestsum, args...)
	file, err := os.Create(filepath.Join("test_reports", outputFileName))
	if err != nil {
		return err
	}
	defer file.Close()

	timeTaken := time.Now()
	cmd.Stdout = io.MultiWriter(os.Stdout, file)
	cmd.Stderr = os.Stderr
	err = cmd.Run()
	fmt.Printf("Time to test %v: %s\n", directories, time.Since(timeTaken))
	return err
}
