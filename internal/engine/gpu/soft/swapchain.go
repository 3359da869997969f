package soft

import (
	"fmt"

	"github.com/Faultbox/vigil/internal/engine/gpu"
)

// Swapchain is a headless gpu.Swapchain. The surface size is set with
// Resize; Invalidate makes the next Acquire report gpu.ErrOutOfDate.
type Swapchain struct {
	dev      *Device
	format   gpu.Format
	n        int
	surface  gpu.Extent2D
	extent   gpu.Extent2D
	images   []gpu.Image
	views    []gpu.ImageView
	next     int
	stale    bool
	acquired int
	presents int
}

var _ gpu.Swapchain = (*Swapchain)(nil)

// NewSwapchain creates n images of the given extent.
func (d *Device) NewSwapchain(extent gpu.Extent2D, n int) (*Swapchain, error) {
	sc := &Swapchain{dev: d, format: gpu.BGRA8un, n: n, surface: extent, acquired: -1}
	if err := sc.Recreate(extent); err != nil {
		return nil, err
	}
	return sc, nil
}

// Resize changes the surface size and invalidates the swapchain.
func (sc *Swapchain) Resize(extent gpu.Extent2D) {
	sc.surface = extent
	sc.stale = true
}

// Invalidate makes the next Acquire fail with gpu.ErrOutOfDate.
func (sc *Swapchain) Invalidate() { sc.stale = true }

// Presents returns how many images were presented.
func (sc *Swapchain) Presents() int { return sc.presents }

func (sc *Swapchain) release() {
	for _, v := range sc.views {
		v.Destroy()
	}
	for _, img := range sc.images {
		img.Destroy()
	}
	sc.views, sc.images = nil, nil
}

// Recreate implements gpu.Swapchain.
func (sc *Swapchain) Recreate(extent gpu.Extent2D) error {
	if extent == (gpu.Extent2D{}) {
		extent = sc.surface
	}
	sc.release()
	for i := 0; i < sc.n; i++ {
		img, err := sc.dev.NewImage(gpu.ImageDesc{
			Name:   fmt.Sprintf("swapchain %d", i),
			Format: sc.format,
			Extent: extent,
			Layers: 1,
			Usage:  gpu.UColorTarget,
		})
		if err != nil {
			sc.release()
			return err
		}
		v, err := sc.dev.NewView(img, 0, 1)
		if err != nil {
			img.Destroy()
			sc.release()
			return err
		}
		sc.images = append(sc.images, img)
		sc.views = append(sc.views, v)
	}
	sc.extent = extent
	sc.next = 0
	sc.acquired = -1
	sc.stale = extent != sc.surface
	return nil
}

// Acquire implements gpu.Swapchain.
func (sc *Swapchain) Acquire() (int, error) {
	if sc.stale {
		return -1, gpu.ErrOutOfDate
	}
	i := sc.next
	sc.next = (sc.next + 1) % sc.n
	sc.acquired = i
	return i, nil
}

// Present implements gpu.Swapchain.
func (sc *Swapchain) Present(index int) error {
	if index != sc.acquired {
		return fmt.Errorf("soft: present of image %d, acquired %d", index, sc.acquired)
	}
	img := sc.images[index].(*image)
	if l := img.layers[0].layout; l != gpu.LPresent {
		return &gpu.HazardError{
			Kind: gpu.BadLayout, Resource: img.Name(), Command: "present", Prev: l.String(),
			Detail: "presented image not in present layout",
		}
	}
	sc.acquired = -1
	sc.presents++
	if sc.stale {
		return gpu.ErrSuboptimal
	}
	return nil
}

// Views implements gpu.Swapchain.
func (sc *Swapchain) Views() []gpu.ImageView { return sc.views }

// Format implements gpu.Swapchain.
func (sc *Swapchain) Format() gpu.Format { return sc.format }

// Extent implements gpu.Swapchain.
func (sc *Swapchain) Extent() gpu.Extent2D { return sc.extent }

// Destroy implements gpu.Swapchain.
func (sc *Swapchain) Destroy() { sc.release() }
