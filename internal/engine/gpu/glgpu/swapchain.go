package glgpu

import (
	"fmt"

	"github.com/go-gl/gl/v4.6-core/gl"

	"github.com/Faultbox/vigil/internal/engine/gpu"
)

// Surface is the window side of a swapchain.
type Surface interface {
	// DrawableSize returns the size of the default framebuffer in pixels.
	DrawableSize() gpu.Extent2D
	SwapBuffers()
}

// Swapchain renders into offscreen images and blits the presented one to
// the default framebuffer of the surface. GL has a single back buffer, so
// the images only decouple recording from presentation.
type Swapchain struct {
	dev     *Device
	surface Surface
	n       int
	extent  gpu.Extent2D
	images  []*image
	views   []gpu.ImageView
	// read framebuffers used as blit sources, one per image.
	fbos     []uint32
	next      int
	acquired  int
	presented int
}

var _ gpu.Swapchain = (*Swapchain)(nil)

// NewSwapchain creates an n-image swapchain at the current surface size.
func (d *Device) NewSwapchain(s Surface, n int) (*Swapchain, error) {
	sc := &Swapchain{dev: d, surface: s, n: n, acquired: -1, presented: -1}
	if err := sc.Recreate(gpu.Extent2D{}); err != nil {
		return nil, err
	}
	return sc, nil
}

func (sc *Swapchain) release() {
	if len(sc.fbos) > 0 {
		gl.DeleteFramebuffers(int32(len(sc.fbos)), &sc.fbos[0])
	}
	for _, v := range sc.views {
		v.Destroy()
	}
	for _, img := range sc.images {
		img.Destroy()
	}
	sc.fbos, sc.views, sc.images = nil, nil, nil
}

// Recreate implements gpu.Swapchain.
func (sc *Swapchain) Recreate(extent gpu.Extent2D) error {
	if extent == (gpu.Extent2D{}) {
		extent = sc.surface.DrawableSize()
	}
	if extent.Width <= 0 || extent.Height <= 0 {
		// Minimized windows report zero; keep a valid one pixel chain.
		extent = gpu.Extent2D{Width: 1, Height: 1}
	}
	sc.release()
	sc.fbos = make([]uint32, sc.n)
	gl.CreateFramebuffers(int32(sc.n), &sc.fbos[0])
	for i := range sc.n {
		im, err := sc.dev.NewImage(gpu.ImageDesc{
			Name:   fmt.Sprintf("swapchain %d", i),
			Format: gpu.BGRA8un,
			Extent: extent,
			Layers: 1,
			Usage:  gpu.UColorTarget,
		})
		if err != nil {
			sc.release()
			return err
		}
		v, err := sc.dev.NewView(im, 0, 1)
		if err != nil {
			im.Destroy()
			sc.release()
			return err
		}
		img := im.(*image)
		gl.NamedFramebufferTexture(sc.fbos[i], gl.COLOR_ATTACHMENT0, img.id, 0)
		gl.NamedFramebufferReadBuffer(sc.fbos[i], gl.COLOR_ATTACHMENT0)
		sc.images = append(sc.images, img)
		sc.views = append(sc.views, v)
	}
	sc.extent = extent
	sc.next = 0
	sc.acquired = -1
	sc.presented = -1
	return nil
}

func (sc *Swapchain) stale() bool {
	s := sc.surface.DrawableSize()
	return s.Width > 0 && s.Height > 0 && s != sc.extent
}

// Acquire implements gpu.Swapchain.
func (sc *Swapchain) Acquire() (int, error) {
	if sc.stale() {
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
		return fmt.Errorf("glgpu: present of image %d, acquired %d", index, sc.acquired)
	}
	w, h := int32(sc.extent.Width), int32(sc.extent.Height)
	gl.Disable(gl.SCISSOR_TEST)
	gl.BlitNamedFramebuffer(sc.fbos[index], 0, 0, 0, w, h, 0, 0, w, h, gl.COLOR_BUFFER_BIT, gl.NEAREST)
	sc.surface.SwapBuffers()
	sc.presented = index
	sc.acquired = -1
	if sc.stale() {
		return gpu.ErrSuboptimal
	}
	return nil
}

// ReadPresented reads back the last presented image as tightly packed BGRA8
// rows, bottom row first.
func (sc *Swapchain) ReadPresented() ([]byte, gpu.Extent2D, error) {
	if sc.presented < 0 {
		return nil, gpu.Extent2D{}, fmt.Errorf("glgpu: no image presented since the last recreate")
	}
	e := sc.extent
	pixels := make([]byte, e.Width*e.Height*4)
	gl.PixelStorei(gl.PACK_ALIGNMENT, 1)
	gl.GetTextureImage(sc.images[sc.presented].id, 0, gl.BGRA, gl.UNSIGNED_BYTE, int32(len(pixels)), gl.Ptr(pixels))
	return pixels, e, nil
}

// Views implements gpu.Swapchain.
func (sc *Swapchain) Views() []gpu.ImageView { return sc.views }

// Format implements gpu.Swapchain.
func (sc *Swapchain) Format() gpu.Format { return gpu.BGRA8un }

// Extent implements gpu.Swapchain.
func (sc *Swapchain) Extent() gpu.Extent2D { return sc.extent }

// Destroy implements gpu.Swapchain.
func (sc *Swapchain) Destroy() { sc.release() }
