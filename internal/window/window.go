// Package window owns the SDL2 window the session presents to.
package window

import (
	"time"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/veandco/go-sdl2/sdl"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_surface"
	vkng_sdl2 "github.com/vkngwrapper/integrations/sdl2/v3"
)

// Window is a resizable Vulkan-capable SDL window. All methods must be
// called from the thread that called Create.
type Window struct {
	window    *sdl.Window
	minimized bool
	resized   bool
}

func Create(title string, width, height int) (*Window, error) {
	if err := sdl.Init(sdl.INIT_VIDEO); err != nil {
		return nil, errors.Wrap(err, "init sdl video")
	}

	window, err := sdl.CreateWindow(title, sdl.WINDOWPOS_UNDEFINED, sdl.WINDOWPOS_UNDEFINED,
		int32(width), int32(height), sdl.WINDOW_SHOWN|sdl.WINDOW_VULKAN|sdl.WINDOW_RESIZABLE)
	if err != nil {
		sdl.Quit()
		return nil, errors.Wrap(err, "create window")
	}
	return &Window{window: window}, nil
}

func (w *Window) Destroy() {
	if w.window != nil {
		w.window.Destroy()
		w.window = nil
	}
	sdl.Quit()
}

// ProcAddr is vkGetInstanceProcAddr as loaded by SDL.
func (w *Window) ProcAddr() unsafe.Pointer {
	return sdl.VulkanGetVkGetInstanceProcAddr()
}

func (w *Window) RequiredInstanceExtensions() []string {
	return w.window.VulkanGetInstanceExtensions()
}

func (w *Window) CreateSurface(instance core1_0.Instance, ext khr_surface.ExtensionDriver) (khr_surface.Surface, error) {
	return vkng_sdl2.CreateSurface(instance, ext, w.window)
}

// FramebufferSize is the drawable size in pixels, which differs from the
// window size on high-DPI displays.
func (w *Window) FramebufferSize() (width, height int) {
	wi, hi := w.window.VulkanGetDrawableSize()
	return int(wi), int(hi)
}

// Minimized reports whether the window is minimized or has no drawable area.
func (w *Window) Minimized() bool {
	if w.minimized || w.window.GetFlags()&sdl.WINDOW_MINIMIZED != 0 {
		return true
	}
	width, height := w.FramebufferSize()
	return width == 0 || height == 0
}

// Resized reports whether a resize was seen since the last call.
func (w *Window) Resized() bool {
	resized := w.resized
	w.resized = false
	return resized
}

// PollEvents drains pending events and returns false once the user asked to
// quit.
func (w *Window) PollEvents() bool {
	for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
		if !w.handle(event) {
			return false
		}
	}
	return true
}

// WaitEvent blocks for at most timeout for one event and handles it. It
// returns false once the user asked to quit.
func (w *Window) WaitEvent(timeout time.Duration) bool {
	event := sdl.WaitEventTimeout(int(timeout / time.Millisecond))
	if event == nil {
		return true
	}
	return w.handle(event) && w.PollEvents()
}

func (w *Window) handle(event sdl.Event) bool {
	switch e := event.(type) {
	case *sdl.QuitEvent:
		return false
	case *sdl.WindowEvent:
		switch e.Event {
		case sdl.WINDOWEVENT_MINIMIZED:
			w.minimized = true
		case sdl.WINDOWEVENT_RESTORED:
			w.minimized = false
		case sdl.WINDOWEVENT_RESIZED, sdl.WINDOWEVENT_SIZE_CHANGED:
			w.resized = true
		}
	}
	return true
}
