// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"audiosync/cmd"
	"audiosync/internal/audio"
	"audiosync/internal/config"
	applog "audiosync/internal/log"
	"audiosync/internal/tui"
	"audiosync/pkg/build"
)

// main is the entry point for the audio feature streamer.
// The program flow is divided into three distinct phases:
//
// 1. Startup Phase (Cold Path):
//   - Initialize build information
//   - Parse command line arguments and load configuration
//   - Configure logging
//   - Execute one-off commands if requested
//
// 2. Concurrent Phase (Hot Path):
//   - Capture callback pushes into the sample buffer
//   - Processing loop analyses and broadcasts one frame per hop
//   - Optional metrics and websocket servers
//
// 3. Shutdown Phase (Cold Path):
//   - Handle termination signals
//   - Finish the recording if active
//   - Release capture, sockets and servers
func main() {
	os.Exit(run())
}

func run() int {
	// ==================== STARTUP PHASE (Cold Path) ====================

	// Development builds carry no ldflags and run with default build info.
	buildErr := build.Initialize()

	cfg, err := cmd.ParseArgs(os.Args[1:])
	if err != nil {
		applog.Errorf("%v", err)
		return 1
	}
	if cfg == nil {
		return 0 // help or version
	}

	configureLogging(cfg)
	if buildErr != nil {
		applog.Debugf("build: %v, using development build info", buildErr)
	}

	// Setup signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := execute(ctx, cfg); err != nil {
		if errors.Is(err, tui.ErrCancelled) {
			return 0
		}
		applog.Errorf("%v", err)
		return 1
	}
	return 0
}

// execute dispatches to the requested command. The streaming command runs
// the concurrent phase and returns after shutdown.
func execute(ctx context.Context, cfg *config.Config) error {
	switch cfg.Command {
	case cmd.CommandList:
		if err := audio.Initialize(); err != nil {
			return err
		}
		defer audio.Terminate()
		return audio.ListDevices(os.Stdout)

	case cmd.CommandReceive:
		return cmd.Receive(ctx, cfg, os.Stdout)

	default:
		// ==================== CONCURRENT PHASE (Hot Path) ====================
		return cmd.Stream(ctx, cfg)
	}
}

func configureLogging(cfg *config.Config) {
	level, ok := applog.ParseLevel(cfg.LogLevel)
	if !ok {
		applog.Warnf("Unknown log level %q, using info", cfg.LogLevel)
	}
	if cfg.Debug {
		level = applog.LevelDebug
	}
	applog.SetLevel(level)
}
