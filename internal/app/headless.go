package app

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/vigil/internal/config"
	"github.com/Faultbox/vigil/internal/engine/gpu"
	"github.com/Faultbox/vigil/internal/engine/gpu/soft"
	"github.com/Faultbox/vigil/internal/engine/visibility"
)

// Report summarizes a headless run.
type Report struct {
	Frames   int
	Presents int
	Elapsed  time.Duration
	// Last is the command statistics of the final frame.
	Last soft.Stats
}

// RunHeadless renders frames on the software device into an offscreen
// swapchain of the configured window size.
func RunHeadless(cfg *config.Config, frames int) (Report, error) {
	if frames <= 0 {
		return Report{}, fmt.Errorf("headless frame count must be positive, got %d", frames)
	}
	dev := soft.New()
	visibility.RegisterKernels(dev)
	defer dev.Destroy()

	extent := gpu.Extent2D{Width: cfg.Graphics.Width, Height: cfg.Graphics.Height}
	sc, err := dev.NewSwapchain(extent, cfg.Graphics.FramesInFlight+1)
	if err != nil {
		return Report{}, err
	}
	defer sc.Destroy()

	s, err := NewSession(dev, sc, cfg)
	if err != nil {
		return Report{}, err
	}
	defer s.Close()

	// Fixed frame times keep runs reproducible.
	const step = float32(1.0 / 60)
	start := time.Now()
	for i := range frames {
		if err := s.Frame(float32(i) * step); err != nil {
			return Report{}, fmt.Errorf("frame %d: %w", i, err)
		}
	}

	r := Report{
		Frames:   frames,
		Presents: sc.Presents(),
		Elapsed:  time.Since(start),
		Last:     dev.Stats(),
	}
	s.log.Info("headless run finished",
		zap.Int("frames", r.Frames),
		zap.Int("presents", r.Presents),
		zap.Duration("elapsed", r.Elapsed),
		zap.Int("draws", len(r.Last.Draws)),
		zap.Int("dispatches", r.Last.Dispatches),
		zap.Int("barriers", r.Last.Barriers),
		zap.Strings("passes", r.Last.Passes),
	)
	return r, nil
}
