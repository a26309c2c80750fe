// Package swapchain owns the presentable image chain and everything built
// per image on top of it, and knows how to tear it all down and rebuild it
// when the surface changes.
package swapchain

import (
	"fmt"
	"log"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/hellovk/internal/scope"
)

var (
	// ErrChainCreateFailed marks every failure to build the chain or its
	// framebuffers. Nothing created by the failed attempt is left alive.
	ErrChainCreateFailed = errors.New("swapchain creation failed")

	ErrDestroyed = errors.New("swapchain already destroyed")
)

type State int

const (
	StateUninitialized State = iota
	StateLive
	StateRebuilding
	StateDestroyed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateLive:
		return "live"
	case StateRebuilding:
		return "rebuilding"
	case StateDestroyed:
		return "destroyed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Status is the outcome of Recreate.
type Status int

const (
	// StatusOK means the chain was rebuilt and is live.
	StatusOK Status = iota
	// StatusDegenerate means the surface has no area right now (usually a
	// minimized window). Nothing was touched; try again later.
	StatusDegenerate
	// StatusFailed means the rebuild failed and the chain is torn down.
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusDegenerate:
		return "degenerate"
	case StatusFailed:
		return "failed"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

type Config struct {
	// ConcurrentFamilies lists the queue families sharing the images. Leave
	// empty for exclusive sharing.
	ConcurrentFamilies []int
	// ImageCount is the requested number of images before clamping to the
	// surface limits. Zero means PreferredImageCount.
	ImageCount int
	Logger     *log.Logger
}

// Chain is a swapchain with one view and one framebuffer per image. It is
// only ever rebuilt as a whole.
type Chain struct {
	driver Driver
	window Window
	cfg    Config
	logger *log.Logger

	state  State
	handle Handle

	resolved      bool
	surfaceFormat SurfaceFormat
	presentMode   PresentMode

	extent       Extent
	images       []Image
	views        []View
	framebuffers []Framebuffer
	renderPass   RenderPass
}

func New(driver Driver, window Window, cfg Config) *Chain {
	if cfg.ImageCount <= 0 {
		cfg.ImageCount = PreferredImageCount
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Chain{
		driver: driver,
		window: window,
		cfg:    cfg,
		logger: logger,
	}
}

func createFailed(err error, msg string) error {
	return errors.Mark(errors.Wrap(err, msg), ErrChainCreateFailed)
}

// resolveSurface picks format, color space and present mode on the first
// creation. They do not change across rebuilds for the same surface.
func (c *Chain) resolveSurface() error {
	if c.resolved {
		return nil
	}

	formats, err := c.driver.SurfaceFormats()
	if err != nil {
		return errors.Wrap(err, "query surface formats")
	}
	surfaceFormat, err := ChooseSurfaceFormat(formats)
	if err != nil {
		return err
	}

	modes, err := c.driver.SurfacePresentModes()
	if err != nil {
		return errors.Wrap(err, "query present modes")
	}

	c.surfaceFormat = surfaceFormat
	c.presentMode = ChoosePresentMode(modes)
	c.resolved = true
	return nil
}

// Create builds the swapchain and one image view per image.
func (c *Chain) Create() error {
	if c.state == StateDestroyed {
		return ErrDestroyed
	}
	if c.handle != 0 {
		return errors.AssertionFailedf("swapchain: Create called on a live chain")
	}

	caps, err := c.driver.SurfaceCapabilities()
	if err != nil {
		return createFailed(err, "query surface capabilities")
	}
	if err := c.resolveSurface(); err != nil {
		return createFailed(err, "resolve surface format")
	}

	width, height := c.window.FramebufferSize()
	extent := ChooseExtent(caps, width, height)

	info := CreateInfo{
		ImageCount:         ChooseImageCount(caps, c.cfg.ImageCount),
		SurfaceFormat:      c.surfaceFormat,
		PresentMode:        c.presentMode,
		Extent:             extent,
		Transform:          caps.CurrentTransform,
		ConcurrentFamilies: c.cfg.ConcurrentFamilies,
	}

	var rollback scope.Stack
	defer rollback.Release()

	handle, err := c.driver.CreateSwapchain(info)
	if err != nil {
		return createFailed(err, "create swapchain")
	}
	rollback.Push("swapchain", func() { c.driver.DestroySwapchain(handle) })

	images, err := c.driver.SwapchainImages(handle)
	if err != nil {
		return createFailed(err, "get swapchain images")
	}

	views := make([]View, 0, len(images))
	for i, image := range images {
		view, err := c.driver.CreateImageView(image, c.surfaceFormat.Format)
		if err != nil {
			return createFailed(err, fmt.Sprintf("create view for image %d", i))
		}
		rollback.Push("image view", func() { c.driver.DestroyImageView(view) })
		views = append(views, view)
	}

	rollback.Disarm()

	c.handle = handle
	c.images = images
	c.views = views
	c.framebuffers = nil
	c.extent = extent
	c.state = StateLive
	return nil
}

// CreateFramebuffers builds one framebuffer per view for pass. The pass is
// remembered for Recreate.
func (c *Chain) CreateFramebuffers(pass RenderPass) error {
	if c.handle == 0 {
		return createFailed(errors.New("swapchain is not live"), "create framebuffers")
	}

	c.destroyFramebuffers()
	c.renderPass = pass

	var rollback scope.Stack
	defer rollback.Release()

	framebuffers := make([]Framebuffer, 0, len(c.views))
	for i, view := range c.views {
		framebuffer, err := c.driver.CreateFramebuffer(pass, view, c.extent)
		if err != nil {
			return createFailed(err, fmt.Sprintf("create framebuffer %d", i))
		}
		rollback.Push("framebuffer", func() { c.driver.DestroyFramebuffer(framebuffer) })
		framebuffers = append(framebuffers, framebuffer)
	}

	rollback.Disarm()
	c.framebuffers = framebuffers
	return nil
}

func (c *Chain) destroyFramebuffers() {
	for _, framebuffer := range c.framebuffers {
		c.driver.DestroyFramebuffer(framebuffer)
	}
	c.framebuffers = nil
}

// Cleanup waits for the device to go idle and destroys framebuffers, views
// and the swapchain, in that order. It does nothing when there is no
// swapchain.
func (c *Chain) Cleanup() error {
	if c.handle == 0 {
		return nil
	}

	waitErr := c.driver.WaitIdle()

	c.destroyFramebuffers()

	for _, view := range c.views {
		c.driver.DestroyImageView(view)
	}
	c.views = nil
	c.images = nil

	c.driver.DestroySwapchain(c.handle)
	c.handle = 0

	if c.state != StateDestroyed && c.state != StateRebuilding {
		c.state = StateUninitialized
	}

	if waitErr != nil {
		return errors.Wrap(waitErr, "wait for device idle")
	}
	return nil
}

func (c *Chain) degenerate(caps Capabilities) bool {
	if caps.CurrentExtent.Width == UndefinedExtent {
		width, height := c.window.FramebufferSize()
		return width == 0 || height == 0
	}
	return caps.CurrentExtent.Empty()
}

// Recreate rebuilds the chain against the current surface. A surface with
// no area yields StatusDegenerate and leaves the chain exactly as it was.
func (c *Chain) Recreate() (Status, error) {
	if c.state == StateDestroyed {
		return StatusFailed, ErrDestroyed
	}

	caps, err := c.driver.SurfaceCapabilities()
	if err != nil {
		return StatusFailed, errors.Wrap(err, "query surface capabilities")
	}
	if c.degenerate(caps) {
		return StatusDegenerate, nil
	}

	c.state = StateRebuilding
	pass := c.renderPass

	if err := c.Cleanup(); err != nil {
		c.state = StateUninitialized
		return StatusFailed, err
	}

	if err := c.Create(); err != nil {
		c.state = StateUninitialized
		return StatusFailed, err
	}

	if pass != 0 {
		if err := c.CreateFramebuffers(pass); err != nil {
			_ = c.Cleanup()
			c.state = StateUninitialized
			return StatusFailed, err
		}
	}

	c.logger.Printf("swapchain: rebuilt %s, %d images, %s", c.extent, len(c.images), c.presentMode)
	return StatusOK, nil
}

// Destroy tears the chain down for good.
func (c *Chain) Destroy() error {
	err := c.Cleanup()
	c.state = StateDestroyed
	return err
}

func (c *Chain) State() State { return c.state }
func (c *Chain) Handle() Handle { return c.handle }
func (c *Chain) Extent() Extent { return c.extent }
func (c *Chain) SurfaceFormat() SurfaceFormat { return c.surfaceFormat }
func (c *Chain) PresentMode() PresentMode { return c.presentMode }
func (c *Chain) RenderPass() RenderPass { return c.renderPass }
func (c *Chain) ImageCount() int { return len(c.images) }
func (c *Chain) ViewCount() int { return len(c.views) }
func (c *Chain) FramebufferCount() int { return len(c.framebuffers) }

// Framebuffer returns the framebuffer for the swapchain image at index, or
// the null handle when there is none.
func (c *Chain) Framebuffer(index int) Framebuffer {
	if index < 0 || index >= len(c.framebuffers) {
		return 0
	}
	return c.framebuffers[index]
}
