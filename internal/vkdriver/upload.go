package vkdriver

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/hellovk/internal/gpu"
	"github.com/vkngwrapper/hellovk/internal/mesh"
)

// UploadMesh copies m into one device-local buffer holding the vertices and
// then the indices. The copy runs on the transfer queue and UploadMesh waits
// for it to finish.
func (d *Device) UploadMesh(m mesh.Mesh) error {
	if d.meshBuffer.Initialized() {
		return errors.AssertionFailedf("vkdriver: mesh already uploaded")
	}
	data, err := m.Encode(common.ByteOrder)
	if err != nil {
		return errors.Wrap(err, "encode mesh")
	}

	staging, stagingMemory, err := d.createBuffer(len(data),
		core1_0.BufferUsageTransferSrc,
		core1_0.MemoryPropertyHostVisible|core1_0.MemoryPropertyHostCoherent,
		nil)
	if err != nil {
		return errors.Wrap(err, "create staging buffer")
	}
	defer d.driver.DestroyBuffer(staging, nil)
	defer d.driver.FreeMemory(stagingMemory, nil)

	if err := d.writeData(stagingMemory, 0, data); err != nil {
		return err
	}

	families := []int{d.plan.Family(gpu.RoleGraphics)}
	if transfer := d.plan.Family(gpu.RoleTransfer); transfer != families[0] {
		families = append(families, transfer)
	}

	buffer, memory, err := d.createBuffer(len(data),
		core1_0.BufferUsageTransferDst|core1_0.BufferUsageVertexBuffer|core1_0.BufferUsageIndexBuffer,
		core1_0.MemoryPropertyDeviceLocal,
		families)
	if err != nil {
		return errors.Wrap(err, "create mesh buffer")
	}

	if err := d.copyBuffer(staging, buffer, len(data)); err != nil {
		d.driver.DestroyBuffer(buffer, nil)
		d.driver.FreeMemory(memory, nil)
		return err
	}

	d.meshBuffer = buffer
	d.meshMemory = memory
	d.indexOffset = m.IndexOffset()
	d.indexCount = len(m.Indices)
	return nil
}

// copyBuffer records a one-shot copy on a transient pool of the transfer
// family, submits it and waits for the transfer queue to drain.
func (d *Device) copyBuffer(src, dst core1_0.Buffer, size int) error {
	pool, _, err := d.driver.CreateCommandPool(nil, core1_0.CommandPoolCreateInfo{
		QueueFamilyIndex: d.plan.Family(gpu.RoleTransfer),
		Flags:            core1_0.CommandPoolCreateTransient,
	})
	if err != nil {
		return errors.Wrap(err, "create transfer command pool")
	}
	defer d.driver.DestroyCommandPool(pool, nil)

	buffers, _, err := d.driver.AllocateCommandBuffers(core1_0.CommandBufferAllocateInfo{
		CommandPool:        pool,
		Level:              core1_0.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	})
	if err != nil {
		return errors.Wrap(err, "allocate transfer command buffer")
	}
	buffer := buffers[0]
	defer d.driver.FreeCommandBuffers(buffer)

	_, err = d.driver.BeginCommandBuffer(buffer, core1_0.CommandBufferBeginInfo{
		Flags: core1_0.CommandBufferUsageOneTimeSubmit,
	})
	if err != nil {
		return errors.Wrap(err, "begin transfer command buffer")
	}

	err = d.driver.CmdCopyBuffer(buffer, src, dst,
		core1_0.BufferCopy{
			SrcOffset: 0,
			DstOffset: 0,
			Size:      size,
		},
	)
	if err != nil {
		return errors.Wrap(err, "record buffer copy")
	}

	if _, err := d.driver.EndCommandBuffer(buffer); err != nil {
		return errors.Wrap(err, "end transfer command buffer")
	}

	queue := d.queues[gpu.RoleTransfer]
	_, err = d.driver.QueueSubmit(queue, nil,
		core1_0.SubmitInfo{
			CommandBuffers: []core1_0.CommandBuffer{buffer},
		},
	)
	if err != nil {
		return errors.Wrap(err, "submit buffer copy")
	}

	if _, err := d.driver.QueueWaitIdle(queue); err != nil {
		return errors.Wrap(err, "wait for transfer queue")
	}
	return nil
}

func (d *Device) destroyMesh() {
	if d.meshBuffer.Initialized() {
		d.driver.DestroyBuffer(d.meshBuffer, nil)
		d.meshBuffer = core1_0.Buffer{}
	}
	if d.meshMemory.Initialized() {
		d.driver.FreeMemory(d.meshMemory, nil)
		d.meshMemory = core1_0.DeviceMemory{}
	}
	d.indexOffset, d.indexCount = 0, 0
}
