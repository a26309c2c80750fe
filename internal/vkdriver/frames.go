package vkdriver

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"
	"github.com/vkngwrapper/hellovk/internal/frame"
	"github.com/vkngwrapper/hellovk/internal/gpu"
	"github.com/vkngwrapper/hellovk/internal/scope"
	"github.com/vkngwrapper/hellovk/internal/swapchain"
)

var _ frame.Device = (*Device)(nil)

// classify maps a presentation result onto the scheduler's outcomes.
func classify(res common.VkResult, err error) (frame.Outcome, error) {
	switch {
	case res == khr_swapchain.VKErrorOutOfDate:
		return frame.OutcomeStale, nil
	case res == khr_swapchain.VKSuboptimal:
		return frame.OutcomeDegraded, nil
	case err != nil:
		return frame.OutcomeFatal, err
	}
	return frame.OutcomeOK, nil
}

// CreateSlot allocates a command buffer from the graphics pool, two
// semaphores and a signaled fence.
func (d *Device) CreateSlot() (frame.Slot, error) {
	var rollback scope.Stack
	defer rollback.Release()

	buffers, _, err := d.driver.AllocateCommandBuffers(core1_0.CommandBufferAllocateInfo{
		CommandPool:        d.commandPool,
		Level:              core1_0.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	})
	if err != nil {
		return frame.Slot{}, errors.Wrap(err, "allocate command buffer")
	}
	rollback.Push("command buffer", func() { d.driver.FreeCommandBuffers(buffers...) })

	var semaphores [2]core1_0.Semaphore
	for i := range semaphores {
		semaphore, _, err := d.driver.CreateSemaphore(nil, core1_0.SemaphoreCreateInfo{})
		if err != nil {
			return frame.Slot{}, errors.Wrap(err, "create semaphore")
		}
		rollback.Push("semaphore", func() { d.driver.DestroySemaphore(semaphore, nil) })
		semaphores[i] = semaphore
	}

	fence, _, err := d.driver.CreateFence(nil, core1_0.FenceCreateInfo{
		Flags: core1_0.FenceCreateSignaled,
	})
	if err != nil {
		return frame.Slot{}, errors.Wrap(err, "create fence")
	}

	rollback.Disarm()
	return frame.Slot{
		CommandBuffer:  frame.CommandBuffer(d.commandBuffers.put(buffers[0])),
		ImageAvailable: frame.Semaphore(d.semaphores.put(semaphores[0])),
		RenderFinished: frame.Semaphore(d.semaphores.put(semaphores[1])),
		InFlight:       frame.Fence(d.fences.put(fence)),
	}, nil
}

func (d *Device) DestroySlot(slot frame.Slot) {
	if fence, ok := d.fences.drop(uint64(slot.InFlight)); ok {
		d.driver.DestroyFence(fence, nil)
	}
	for _, id := range []frame.Semaphore{slot.RenderFinished, slot.ImageAvailable} {
		if semaphore, ok := d.semaphores.drop(uint64(id)); ok {
			d.driver.DestroySemaphore(semaphore, nil)
		}
	}
	if buffer, ok := d.commandBuffers.drop(uint64(slot.CommandBuffer)); ok {
		d.driver.FreeCommandBuffers(buffer)
	}
}

func (d *Device) fence(id frame.Fence) (core1_0.Fence, error) {
	fence, ok := d.fences.get(uint64(id))
	if !ok {
		return fence, errors.AssertionFailedf("vkdriver: unknown fence %d", id)
	}
	return fence, nil
}

func (d *Device) semaphore(id frame.Semaphore) (core1_0.Semaphore, error) {
	semaphore, ok := d.semaphores.get(uint64(id))
	if !ok {
		return semaphore, errors.AssertionFailedf("vkdriver: unknown semaphore %d", id)
	}
	return semaphore, nil
}

func (d *Device) commandBuffer(id frame.CommandBuffer) (core1_0.CommandBuffer, error) {
	buffer, ok := d.commandBuffers.get(uint64(id))
	if !ok {
		return buffer, errors.AssertionFailedf("vkdriver: unknown command buffer %d", id)
	}
	return buffer, nil
}

func (d *Device) WaitForFence(id frame.Fence) error {
	fence, err := d.fence(id)
	if err != nil {
		return err
	}
	_, err = d.driver.WaitForFences(true, common.NoTimeout, fence)
	return err
}

func (d *Device) ResetFence(id frame.Fence) error {
	fence, err := d.fence(id)
	if err != nil {
		return err
	}
	_, err = d.driver.ResetFences(fence)
	return err
}

func (d *Device) AcquireNextImage(handle swapchain.Handle, signal frame.Semaphore) (int, frame.Outcome, error) {
	sc, ok := d.swapchains.get(uint64(handle))
	if !ok {
		// The chain was torn down by a failed rebuild; ask for another.
		return 0, frame.OutcomeStale, nil
	}
	semaphore, err := d.semaphore(signal)
	if err != nil {
		return 0, frame.OutcomeFatal, err
	}

	index, res, err := d.swapchainExt.AcquireNextImage(sc, common.NoTimeout, &semaphore, nil)
	outcome, err := classify(res, err)
	return index, outcome, err
}

func (d *Device) ResetCommandBuffer(id frame.CommandBuffer) error {
	buffer, err := d.commandBuffer(id)
	if err != nil {
		return err
	}
	_, err = d.driver.ResetCommandBuffer(buffer, 0)
	return err
}

// Record draws the uploaded mesh with the graphics pipeline inside one
// render pass instance.
func (d *Device) Record(info frame.RecordInfo) error {
	buffer, err := d.commandBuffer(info.CommandBuffer)
	if err != nil {
		return err
	}
	framebuffer, ok := d.framebuffers.get(uint64(info.Framebuffer))
	if !ok {
		return errors.AssertionFailedf("vkdriver: unknown framebuffer %d", info.Framebuffer)
	}
	if !d.pipeline.Initialized() || !d.meshBuffer.Initialized() {
		return errors.AssertionFailedf("vkdriver: Record before pipeline and mesh are ready")
	}

	if _, err := d.driver.BeginCommandBuffer(buffer, core1_0.CommandBufferBeginInfo{}); err != nil {
		return errors.Wrap(err, "begin command buffer")
	}

	err = d.driver.CmdBeginRenderPass(buffer, core1_0.SubpassContentsInline,
		core1_0.RenderPassBeginInfo{
			RenderPass:  d.pipelinePass,
			Framebuffer: framebuffer,
			RenderArea: core1_0.Rect2D{
				Offset: core1_0.Offset2D{X: 0, Y: 0},
				Extent: fromExtent(info.RenderArea),
			},
			ClearValues: []core1_0.ClearValue{
				core1_0.ClearValueFloat{info.ClearColor[0], info.ClearColor[1], info.ClearColor[2], info.ClearColor[3]},
			},
		})
	if err != nil {
		return errors.Wrap(err, "begin render pass")
	}

	d.driver.CmdBindPipeline(buffer, core1_0.PipelineBindPointGraphics, d.pipeline)
	d.driver.CmdSetViewport(buffer, core1_0.Viewport{
		X:        info.Viewport.X,
		Y:        info.Viewport.Y,
		Width:    info.Viewport.Width,
		Height:   info.Viewport.Height,
		MinDepth: info.Viewport.MinDepth,
		MaxDepth: info.Viewport.MaxDepth,
	})
	d.driver.CmdSetScissor(buffer, core1_0.Rect2D{
		Offset: core1_0.Offset2D{X: 0, Y: 0},
		Extent: fromExtent(info.Scissor),
	})
	d.driver.CmdBindVertexBuffers(buffer, 0, []core1_0.Buffer{d.meshBuffer}, []int{0})
	d.driver.CmdBindIndexBuffer(buffer, d.meshBuffer, d.indexOffset, core1_0.IndexTypeUInt32)
	d.driver.CmdDrawIndexed(buffer, d.indexCount, 1, 0, 0, 0)
	d.driver.CmdEndRenderPass(buffer)

	if _, err := d.driver.EndCommandBuffer(buffer); err != nil {
		return errors.Wrap(err, "end command buffer")
	}
	return nil
}

// Submit puts one command buffer on the graphics queue, gated on Wait at the
// color attachment output stage.
func (d *Device) Submit(info frame.SubmitInfo) error {
	buffer, err := d.commandBuffer(info.CommandBuffer)
	if err != nil {
		return err
	}
	wait, err := d.semaphore(info.Wait)
	if err != nil {
		return err
	}
	signal, err := d.semaphore(info.Signal)
	if err != nil {
		return err
	}
	fence, err := d.fence(info.Fence)
	if err != nil {
		return err
	}

	_, err = d.driver.QueueSubmit(d.queues[gpu.RoleGraphics], &fence,
		core1_0.SubmitInfo{
			WaitSemaphores:   []core1_0.Semaphore{wait},
			WaitDstStageMask: []core1_0.PipelineStageFlags{core1_0.PipelineStageColorAttachmentOutput},
			CommandBuffers:   []core1_0.CommandBuffer{buffer},
			SignalSemaphores: []core1_0.Semaphore{signal},
		},
	)
	return err
}

func (d *Device) Present(handle swapchain.Handle, image int, wait frame.Semaphore) (frame.Outcome, error) {
	sc, ok := d.swapchains.get(uint64(handle))
	if !ok {
		return frame.OutcomeStale, nil
	}
	semaphore, err := d.semaphore(wait)
	if err != nil {
		return frame.OutcomeFatal, err
	}

	res, err := d.swapchainExt.QueuePresent(d.queues[gpu.RolePresent], khr_swapchain.PresentInfo{
		WaitSemaphores: []core1_0.Semaphore{semaphore},
		Swapchains:     []khr_swapchain.Swapchain{sc},
		ImageIndices:   []int{image},
	})
	return classify(res, err)
}
