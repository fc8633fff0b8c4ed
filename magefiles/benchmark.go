//go:build mage

package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

func jobbenchBinary() string {
	return binaryDir + "/" + binaryWithExt("jobbench")
}

// Benchmark builds jobbench and runs a full benchmark with the given fleet shape.
func Benchmark(workers, concurrency int) error {
	mg.Deps(Build, dockerCheck)
	timeTaken := time.Now()
	err := sh.RunV(jobbenchBinary(), "run",
		"--workers", strconv.Itoa(workers),
		"--concurrency", strconv.Itoa(concurrency),
	)
	fmt.Println("Time to benchmark:", time.Since(timeTaken))
	return err
}

// BenchmarkPlan prints the stages a benchmark would run.
func BenchmarkPlan() error {
	mg.Deps(Build)
	return sh.RunV(jobbenchBinary(), "run", "--dry-run")
}

// Replot renders monitoring_summary.png again from a run directory's samples.
func Replot(runDir string) error {
	mg.Deps(Build)
	return sh.RunV(jobbenchBinary(), "monitor", "plot", "--input", runDir+"/monitoring_data.csv")
}
