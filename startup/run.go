// Package startup is intended as a helper package to
// run services in go routines in main
package startup

import (
	"os"

	"github.com/datatrails/go-wallpaper-mirror/environment"
	"github.com/datatrails/go-wallpaper-mirror/logger"
	"github.com/datatrails/go-wallpaper-mirror/tracing"
)

type Runner func(logger.Logger) error

// Run initialises logging and tracing, calls run and exits with its status.
// portName names the environment variable holding the service port, used as
// the tracing endpoint host.
//
// defers do not work in main() because of the os.Exit(
func Run(serviceName string, portName string, run Runner) {
	os.Exit(runService(serviceName, portName, run))
}

func runService(serviceName string, portName string, run Runner) int {
	logger.New(environment.GetLogLevel())
	defer logger.OnExit()
	log := logger.Sugar.WithServiceName(serviceName)

	exitCode := func() int {
		if portName != "" {
			closer, err := tracing.NewFromEnv(log, serviceName, environment.GetWithDefault(portName, "0"))
			if err != nil {
				log.Infof("Error configuring tracing: %v", err)
				return 1
			}
			if closer != nil {
				defer closer.Close()
			}
		}
		if err := run(log); err != nil {
			log.Infof("Error at startup: %v", err)
			return 1
		}
		return 0
	}()

	log.Infof("Shutting down")
	return exitCode
}
