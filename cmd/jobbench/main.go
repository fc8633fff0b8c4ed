package main

import (
	"os"

	"github.com/armadaproject/jobbench/cmd/jobbench/cmd"
	"github.com/armadaproject/jobbench/internal/common/logging"
)

func main() {
	logging.MustConfigureApplicationLogging()
	if err := cmd.RootCmd().Execute(); err != nil {
		logging.WithStacktrace(err).Error("jobbench failed")
		os.Exit(1)
	}
}
