package swapchain

import (
	"fmt"
	"io"
	"log"

	"github.com/cockroachdb/errors"
)

var errInjected = errors.New("injected failure")

// fakeDriver hands out increasing handle ids and records every call.
type fakeDriver struct {
	caps    Capabilities
	formats []SurfaceFormat
	modes   []PresentMode

	imageCount int

	failCapabilities  bool
	failCreate        bool
	failImages        bool
	failViewAt        int // 1-based; 0 disables
	failFramebufferAt int // 1-based; 0 disables

	nextID       uint64
	viewCalls    int
	fbCalls      int
	createInfos  []CreateInfo
	calls        []string
	liveChains   map[Handle]bool
	liveViews    map[View]bool
	liveFBs      map[Framebuffer]bool
	formatQueries int
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{
		caps: Capabilities{
			MinImageCount:  2,
			MaxImageCount:  8,
			CurrentExtent:  Extent{Width: 800, Height: 600},
			MinImageExtent: Extent{Width: 1, Height: 1},
			MaxImageExtent: Extent{Width: 4096, Height: 4096},
		},
		formats: []SurfaceFormat{
			{Format: 44, ColorSpace: ColorSpaceSRGBNonlinear},
			{Format: FormatB8G8R8A8SRGB, ColorSpace: ColorSpaceSRGBNonlinear},
		},
		modes:      []PresentMode{PresentModeFIFO, PresentModeMailbox},
		imageCount: 3,
		liveChains: map[Handle]bool{},
		liveViews:  map[View]bool{},
		liveFBs:    map[Framebuffer]bool{},
	}
}

func (d *fakeDriver) id() uint64 {
	d.nextID++
	return d.nextID
}

func (d *fakeDriver) record(format string, args ...any) {
	d.calls = append(d.calls, fmt.Sprintf(format, args...))
}

func (d *fakeDriver) SurfaceCapabilities() (Capabilities, error) {
	d.record("capabilities")
	if d.failCapabilities {
		return Capabilities{}, errInjected
	}
	return d.caps, nil
}

func (d *fakeDriver) SurfaceFormats() ([]SurfaceFormat, error) {
	d.formatQueries++
	return d.formats, nil
}

func (d *fakeDriver) SurfacePresentModes() ([]PresentMode, error) {
	return d.modes, nil
}

func (d *fakeDriver) CreateSwapchain(info CreateInfo) (Handle, error) {
	d.record("create-swapchain")
	if d.failCreate {
		return 0, errInjected
	}
	d.createInfos = append(d.createInfos, info)
	h := Handle(d.id())
	d.liveChains[h] = true
	return h, nil
}

func (d *fakeDriver) SwapchainImages(swapchain Handle) ([]Image, error) {
	if d.failImages {
		return nil, errInjected
	}
	images := make([]Image, d.imageCount)
	for i := range images {
		images[i] = Image(d.id())
	}
	return images, nil
}

func (d *fakeDriver) DestroySwapchain(swapchain Handle) {
	d.record("destroy-swapchain")
	delete(d.liveChains, swapchain)
}

func (d *fakeDriver) CreateImageView(image Image, format Format) (View, error) {
	d.viewCalls++
	if d.failViewAt != 0 && d.viewCalls == d.failViewAt {
		return 0, errInjected
	}
	d.record("create-view")
	v := View(d.id())
	d.liveViews[v] = true
	return v, nil
}

func (d *fakeDriver) DestroyImageView(view View) {
	d.record("destroy-view")
	delete(d.liveViews, view)
}

func (d *fakeDriver) CreateFramebuffer(pass RenderPass, view View, extent Extent) (Framebuffer, error) {
	d.fbCalls++
	if d.failFramebufferAt != 0 && d.fbCalls == d.failFramebufferAt {
		return 0, errInjected
	}
	d.record("create-framebuffer")
	fb := Framebuffer(d.id())
	d.liveFBs[fb] = true
	return fb, nil
}

func (d *fakeDriver) DestroyFramebuffer(framebuffer Framebuffer) {
	d.record("destroy-framebuffer")
	delete(d.liveFBs, framebuffer)
}

func (d *fakeDriver) WaitIdle() error {
	d.record("wait-idle")
	return nil
}

func (d *fakeDriver) resetCalls() {
	d.calls = nil
}

type fakeWindow struct {
	width, height int
}

func (w *fakeWindow) FramebufferSize() (int, int) {
	return w.width, w.height
}

func quietConfig() Config {
	return Config{Logger: log.New(io.Discard, "", 0)}
}
