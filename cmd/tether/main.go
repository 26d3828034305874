// The tether command runs a standalone monitor harness: it accepts a single
// client connection at a time, records everything the client sends, and
// optionally echoes each chunk back. It takes care of loading configuration
// and wiring the logger, the traffic recorder, and the transcript store.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"gorm.io/gorm"

	"github.com/tetherproject/tether/internal/capture"
	"github.com/tetherproject/tether/internal/capture/data"
	"github.com/tetherproject/tether/internal/core"
	"github.com/tetherproject/tether/internal/core/debug"
)

var configFlag = flag.String("config", "./", "Path to the directory containing the harness config file")

func main() {
	flag.Parse()

	config := core.LoadConfig(*configFlag)
	fmt.Println("using configuration file:", *configFlag)

	// Change to the same directory as the config file so that any relative
	// paths in the config file will resolve.
	if err := os.Chdir(filepath.Dir(*configFlag)); err != nil {
		fmt.Println("error changing to config directory:", err)
		os.Exit(1)
	}

	logger, err := core.NewLogger(config)
	if err != nil {
		fmt.Println("error initializing logger:", err)
		os.Exit(1)
	}

	if config.Debugging.PprofEnabled {
		debug.StartPprofServer(logger, config.Debugging.PprofPort)
	}

	var db *gorm.DB
	if config.Database.Engine != "" {
		dataSource := config.Database.Filename
		if config.Database.Engine == "postgres" {
			dataSource = config.DatabaseURL()
		}

		db, err = data.Initialize(config.Database.Engine, dataSource, config.Debugging.DatabaseLoggingEnabled)
		if err != nil {
			logger.Errorf("error initializing transcript store: %v", err)
			os.Exit(1)
		}
		defer func() {
			if err := data.Shutdown(db); err != nil {
				logger.Warnf("%v", err)
			}
		}()
	}

	// Bind the monitor to one top-level context so that we can shut down cleanly.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Register a SIGTERM handler so that Ctrl-C will shut the harness down gracefully.
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		logger.Info("waiting to shut down gracefully...")
		cancel()
	}()

	m := &monitor{
		config:   config,
		logger:   logger,
		recorder: capture.NewRecorder(config.SessionTTLDuration(), config.SweepIntervalDuration()),
		db:       db,
	}
	if err := m.run(ctx); err != nil {
		if !errors.Is(err, context.Canceled) {
			logger.Errorf("%v", err)
		}
	}
	logger.Info("shut down")
}
