// Package main is the entry point for the vigil renderer.
package main

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/Faultbox/vigil/internal/app"
	"github.com/Faultbox/vigil/internal/config"
	"github.com/Faultbox/vigil/internal/logger"
	"github.com/Faultbox/vigil/internal/viewer"
)

func main() {
	// Parse CLI flags first
	config.ParseFlags()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("=== vigil ===")
	logger.Log.Debug("config", zap.Any("config", cfg))

	if n := config.HeadlessFrames(); n > 0 {
		_, err := app.RunHeadless(cfg, n)
		logger.Check(err, "headless run failed", zap.Int("frames", n))
		return
	}

	v, err := viewer.New(cfg)
	logger.Check(err, "failed to create viewer")
	defer v.Close()

	if err := v.Run(); err != nil {
		logger.Error("viewer error", zap.Error(err))
		v.Close()
		logger.Sync()
		os.Exit(1)
	}

	logger.Info("viewer closed normally")
}
