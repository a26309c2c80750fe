// Package frame drives the per-frame acquire, record, submit and present
// loop with a fixed number of frames in flight.
package frame

import (
	"log"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/vkngwrapper/hellovk/internal/scope"
	"github.com/vkngwrapper/hellovk/internal/swapchain"
)

type Config struct {
	// FramesInFlight is the number of slots cycled round-robin. At least 1.
	FramesInFlight int
	FlipY          bool
	ClearColor     mgl32.Vec4
	Logger         *log.Logger
	// Stats is optional.
	Stats *Stats
}

// Scheduler owns the frame slots. It is not safe for concurrent use; one
// goroutine drives DrawFrame.
type Scheduler struct {
	dev    Device
	chain  Chain
	cfg    Config
	logger *log.Logger

	slots  []Slot
	index  int
	closed bool

	resized bool
}

func NewScheduler(dev Device, chain Chain, cfg Config) (*Scheduler, error) {
	if cfg.FramesInFlight < 1 {
		return nil, errors.Newf("frames in flight must be at least 1, got %d", cfg.FramesInFlight)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}

	var rollback scope.Stack
	defer rollback.Release()

	slots := make([]Slot, 0, cfg.FramesInFlight)
	for i := 0; i < cfg.FramesInFlight; i++ {
		slot, err := dev.CreateSlot()
		if err != nil {
			return nil, errors.Wrapf(err, "create frame slot %d", i)
		}
		rollback.Push("frame slot", func() { dev.DestroySlot(slot) })
		slots = append(slots, slot)
	}
	rollback.Disarm()

	return &Scheduler{
		dev:    dev,
		chain:  chain,
		cfg:    cfg,
		logger: logger,
		slots:  slots,
	}, nil
}

func fatal(err error, msg string) error {
	if err == nil {
		return errors.Mark(errors.New(msg), ErrFatal)
	}
	return errors.Mark(errors.Wrap(err, msg), ErrFatal)
}

// DrawFrame runs one cycle on the current slot. Stale and degenerate surfaces
// are handled internally and show up as ResultSkipped or ResultRebuilt; every
// returned error is marked ErrFatal.
func (s *Scheduler) DrawFrame() (Result, error) {
	if s.closed {
		return ResultSkipped, errors.Mark(errors.AssertionFailedf("frame: DrawFrame after Close"), ErrFatal)
	}

	start := s.cfg.Stats.Begin()
	result, err := s.cycle(s.slots[s.index])
	if err != nil {
		return result, err
	}

	s.cfg.Stats.End(start, result)
	s.index = (s.index + 1) % len(s.slots)
	return result, nil
}

func (s *Scheduler) cycle(slot Slot) (Result, error) {
	if err := s.dev.WaitForFence(slot.InFlight); err != nil {
		return ResultSkipped, fatal(err, "wait for in-flight fence")
	}

	image, outcome, err := s.dev.AcquireNextImage(s.chain.Handle(), slot.ImageAvailable)
	switch {
	case outcome == OutcomeStale:
		// Nothing was submitted, so the fence stays signaled for the next
		// use of this slot.
		return s.rebuild()
	case outcome == OutcomeFatal || err != nil:
		return ResultSkipped, fatal(err, "acquire swapchain image")
	}
	rebuildPending := outcome == OutcomeDegraded

	extent := s.chain.Extent()

	if err := s.dev.ResetFence(slot.InFlight); err != nil {
		return ResultSkipped, fatal(err, "reset in-flight fence")
	}
	if err := s.dev.ResetCommandBuffer(slot.CommandBuffer); err != nil {
		return ResultSkipped, fatal(err, "reset command buffer")
	}

	err = s.dev.Record(RecordInfo{
		CommandBuffer: slot.CommandBuffer,
		Framebuffer:   s.chain.Framebuffer(image),
		RenderArea:    extent,
		Viewport:      ViewportFor(extent, s.cfg.FlipY),
		Scissor:       extent,
		ClearColor:    s.cfg.ClearColor,
	})
	if err != nil {
		return ResultSkipped, fatal(err, "record command buffer")
	}

	err = s.dev.Submit(SubmitInfo{
		CommandBuffer: slot.CommandBuffer,
		Wait:          slot.ImageAvailable,
		Signal:        slot.RenderFinished,
		Fence:         slot.InFlight,
	})
	if err != nil {
		return ResultSkipped, fatal(err, "submit draw command buffer")
	}

	outcome, err = s.dev.Present(s.chain.Handle(), image, slot.RenderFinished)
	switch {
	case outcome == OutcomeStale || outcome == OutcomeDegraded:
		rebuildPending = true
	case outcome == OutcomeFatal || err != nil:
		return ResultSkipped, fatal(err, "present swapchain image")
	}

	if rebuildPending || s.resized {
		s.resized = false
		return s.rebuild()
	}
	return ResultPresented, nil
}

func (s *Scheduler) rebuild() (Result, error) {
	status, err := s.chain.Recreate()
	switch status {
	case swapchain.StatusOK:
		return ResultRebuilt, nil
	case swapchain.StatusDegenerate:
		s.logger.Printf("frame: surface has no area, skipping frame")
		return ResultSkipped, nil
	}
	return ResultSkipped, fatal(err, "rebuild swapchain")
}

// RequestRebuild makes the next presented frame rebuild the chain. Some
// platforms never report a resized surface as stale or degraded.
func (s *Scheduler) RequestRebuild() {
	s.resized = true
}

// Close waits for the device to go idle and destroys every slot. It is safe
// to call more than once.
func (s *Scheduler) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	waitErr := s.dev.WaitIdle()
	for i := len(s.slots) - 1; i >= 0; i-- {
		s.dev.DestroySlot(s.slots[i])
	}
	s.slots = nil

	if waitErr != nil {
		return errors.Wrap(waitErr, "wait for device idle")
	}
	return nil
}

// Index is the slot the next DrawFrame will use.
func (s *Scheduler) Index() int { return s.index }

func (s *Scheduler) Slots() []Slot {
	return append([]Slot(nil), s.slots...)
}
