package frame

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/vkngwrapper/hellovk/internal/swapchain"
)

// ErrFatal marks failures the frame loop cannot recover from.
var ErrFatal = errors.New("fatal frame error")

// Opaque backend handles. Zero is the null handle.
type (
	Fence         uint64
	Semaphore     uint64
	CommandBuffer uint64
)

// Outcome classifies the result of acquiring or presenting an image.
type Outcome int

const (
	OutcomeOK Outcome = iota
	// OutcomeDegraded means the image is usable but no longer matches the
	// surface exactly. The chain should be rebuilt after this frame.
	OutcomeDegraded
	// OutcomeStale means the chain no longer matches the surface and must be
	// rebuilt before it can be used again.
	OutcomeStale
	OutcomeFatal
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeDegraded:
		return "degraded"
	case OutcomeStale:
		return "stale"
	case OutcomeFatal:
		return "fatal"
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// Result reports what a single DrawFrame call did.
type Result int

const (
	ResultPresented Result = iota
	ResultSkipped
	ResultRebuilt
)

func (r Result) String() string {
	switch r {
	case ResultPresented:
		return "presented"
	case ResultSkipped:
		return "skipped"
	case ResultRebuilt:
		return "rebuilt"
	}
	return fmt.Sprintf("Result(%d)", int(r))
}

// Slot is the set of objects one in-flight frame uses. InFlight is created
// signaled so the first wait on a fresh slot returns immediately.
type Slot struct {
	CommandBuffer  CommandBuffer
	ImageAvailable Semaphore
	RenderFinished Semaphore
	InFlight       Fence
}

type Viewport struct {
	X, Y          float32
	Width, Height float32
	MinDepth      float32
	MaxDepth      float32
}

// ViewportFor covers extent. With flipY the viewport height is negative and
// its origin sits at the bottom edge, so +Y points up in clip space.
func ViewportFor(extent swapchain.Extent, flipY bool) Viewport {
	vp := Viewport{
		Width:    float32(extent.Width),
		Height:   float32(extent.Height),
		MaxDepth: 1,
	}
	if flipY {
		vp.Y = float32(extent.Height)
		vp.Height = -float32(extent.Height)
	}
	return vp
}

// RecordInfo describes one render pass instance drawing into framebuffer.
type RecordInfo struct {
	CommandBuffer CommandBuffer
	Framebuffer   swapchain.Framebuffer
	RenderArea    swapchain.Extent
	Viewport      Viewport
	Scissor       swapchain.Extent
	ClearColor    mgl32.Vec4
}

// SubmitInfo is a single graphics submission. Wait is waited on at the color
// attachment output stage.
type SubmitInfo struct {
	CommandBuffer CommandBuffer
	Wait          Semaphore
	Signal        Semaphore
	Fence         Fence
}

// Device is the slice of the graphics device the scheduler drives.
type Device interface {
	CreateSlot() (Slot, error)
	DestroySlot(slot Slot)

	// WaitForFence blocks without a timeout.
	WaitForFence(fence Fence) error
	ResetFence(fence Fence) error

	AcquireNextImage(chain swapchain.Handle, signal Semaphore) (int, Outcome, error)
	ResetCommandBuffer(buffer CommandBuffer) error
	Record(info RecordInfo) error
	Submit(info SubmitInfo) error
	Present(chain swapchain.Handle, image int, wait Semaphore) (Outcome, error)

	WaitIdle() error
}

// Chain is the presentation chain as seen by the scheduler.
type Chain interface {
	Handle() swapchain.Handle
	Extent() swapchain.Extent
	Framebuffer(index int) swapchain.Framebuffer
	Recreate() (swapchain.Status, error)
}
