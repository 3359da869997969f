package gpu

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by backends.
var (
	// ErrOutOfDate means the swapchain no longer matches the surface and must
	// be recreated before the next Acquire.
	ErrOutOfDate = errors.New("gpu: swapchain out of date")

	// ErrSuboptimal means presentation still works but the swapchain should
	// be recreated.
	ErrSuboptimal = errors.New("gpu: swapchain suboptimal")

	ErrDeviceLost  = errors.New("gpu: device lost")
	ErrOutOfMemory = errors.New("gpu: out of memory")
	ErrUnsupported = errors.New("gpu: unsupported")

	// ErrHazard is wrapped by HazardError.
	ErrHazard = errors.New("gpu: synchronization hazard")
)

// IsSwapchainStale reports whether err asks for a swapchain rebuild.
func IsSwapchainStale(err error) bool {
	return errors.Is(err, ErrOutOfDate) || errors.Is(err, ErrSuboptimal)
}

// HazardKind classifies a synchronization hazard.
type HazardKind int

// Hazard kinds.
const (
	ReadAfterWrite HazardKind = iota
	WriteAfterWrite
	WriteAfterRead
	BadLayout
)

func (k HazardKind) String() string {
	switch k {
	case ReadAfterWrite:
		return "read-after-write"
	case WriteAfterWrite:
		return "write-after-write"
	case WriteAfterRead:
		return "write-after-read"
	case BadLayout:
		return "layout"
	}
	return "hazard(?)"
}

// HazardError reports an access that is not ordered with an earlier access
// to the same memory by any barrier or subpass dependency.
type HazardError struct {
	Kind     HazardKind
	Resource string
	// Command is the offending command, Prev the earlier one it conflicts with.
	Command string
	Prev    string
	Sync    Sync
	Access  Access
	Detail  string
}

func (e *HazardError) Error() string {
	s := fmt.Sprintf("gpu: %s hazard on %s: %s (%s, %s) after %s", e.Kind, e.Resource, e.Command, e.Sync, e.Access, e.Prev)
	if e.Detail != "" {
		s += ": " + e.Detail
	}
	return s
}

func (e *HazardError) Unwrap() error { return ErrHazard }
