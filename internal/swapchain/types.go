package swapchain

import "fmt"

// Opaque backend handles. Zero is the null handle.
type (
	Handle      uint64
	Image       uint64
	View        uint64
	Framebuffer uint64
	RenderPass  uint64
)

// UndefinedExtent is reported in CurrentExtent when the surface size is
// decided by the swapchain rather than by the window system.
const UndefinedExtent = -1

type Extent struct {
	Width  int
	Height int
}

func (e Extent) Empty() bool {
	return e.Width == 0 || e.Height == 0
}

func (e Extent) String() string {
	return fmt.Sprintf("%dx%d", e.Width, e.Height)
}

// Format, ColorSpace and PresentMode carry raw Vulkan enum values.
type (
	Format      int32
	ColorSpace  int32
	PresentMode int32
)

const (
	FormatB8G8R8A8SRGB      Format     = 50
	ColorSpaceSRGBNonlinear ColorSpace = 0
)

const (
	PresentModeImmediate   PresentMode = 0
	PresentModeMailbox     PresentMode = 1
	PresentModeFIFO        PresentMode = 2
	PresentModeFIFORelaxed PresentMode = 3
)

func (m PresentMode) String() string {
	switch m {
	case PresentModeImmediate:
		return "immediate"
	case PresentModeMailbox:
		return "mailbox"
	case PresentModeFIFO:
		return "fifo"
	case PresentModeFIFORelaxed:
		return "fifo-relaxed"
	}
	return fmt.Sprintf("PresentMode(%d)", int32(m))
}

type SurfaceFormat struct {
	Format     Format
	ColorSpace ColorSpace
}

type Capabilities struct {
	MinImageCount int
	// MaxImageCount of 0 means there is no upper limit.
	MaxImageCount int

	CurrentExtent  Extent
	MinImageExtent Extent
	MaxImageExtent Extent

	CurrentTransform uint32
}

// CreateInfo is everything the backend needs to build a swapchain.
type CreateInfo struct {
	ImageCount    int
	SurfaceFormat SurfaceFormat
	PresentMode   PresentMode
	Extent        Extent
	Transform     uint32

	// ConcurrentFamilies is empty for exclusive image sharing.
	ConcurrentFamilies []int
}

// Driver is the slice of the graphics device a Chain consumes.
type Driver interface {
	SurfaceCapabilities() (Capabilities, error)
	SurfaceFormats() ([]SurfaceFormat, error)
	SurfacePresentModes() ([]PresentMode, error)

	CreateSwapchain(info CreateInfo) (Handle, error)
	SwapchainImages(swapchain Handle) ([]Image, error)
	DestroySwapchain(swapchain Handle)

	CreateImageView(image Image, format Format) (View, error)
	DestroyImageView(view View)

	CreateFramebuffer(pass RenderPass, view View, extent Extent) (Framebuffer, error)
	DestroyFramebuffer(framebuffer Framebuffer)

	WaitIdle() error
}

// Window reports the drawable size in pixels.
type Window interface {
	FramebufferSize() (width, height int)
}
