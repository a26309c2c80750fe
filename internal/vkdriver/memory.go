package vkdriver

import (
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"
)

func (d *Device) findMemoryType(typeFilter uint32, properties core1_0.MemoryPropertyFlags) (int, error) {
	memProperties := d.inst.driver.GetPhysicalDeviceMemoryProperties(d.physical)
	for i, memoryType := range memProperties.MemoryTypes {
		typeBit := uint32(1 << i)

		if typeFilter&typeBit != 0 && memoryType.PropertyFlags&properties == properties {
			return i, nil
		}
	}

	return 0, errors.Newf("no memory type matches filter %#x with properties %v", typeFilter, properties)
}

// createBuffer allocates and binds dedicated memory for a new buffer. With
// more than one family in families the buffer is shared concurrently.
func (d *Device) createBuffer(size int, usage core1_0.BufferUsageFlags, properties core1_0.MemoryPropertyFlags, families []int) (core1_0.Buffer, core1_0.DeviceMemory, error) {
	info := core1_0.BufferCreateInfo{
		Size:        size,
		Usage:       usage,
		SharingMode: core1_0.SharingModeExclusive,
	}
	if len(families) > 1 {
		info.SharingMode = core1_0.SharingModeConcurrent
		info.QueueFamilyIndices = families
	}

	buffer, _, err := d.driver.CreateBuffer(nil, info)
	if err != nil {
		return core1_0.Buffer{}, core1_0.DeviceMemory{}, errors.Wrap(err, "create buffer")
	}

	memRequirements := d.driver.GetBufferMemoryRequirements(buffer)
	memoryTypeIndex, err := d.findMemoryType(memRequirements.MemoryTypeBits, properties)
	if err != nil {
		d.driver.DestroyBuffer(buffer, nil)
		return core1_0.Buffer{}, core1_0.DeviceMemory{}, err
	}

	memory, _, err := d.driver.AllocateMemory(nil, core1_0.MemoryAllocateInfo{
		AllocationSize:  memRequirements.Size,
		MemoryTypeIndex: memoryTypeIndex,
	})
	if err != nil {
		d.driver.DestroyBuffer(buffer, nil)
		return core1_0.Buffer{}, core1_0.DeviceMemory{}, errors.Wrap(err, "allocate buffer memory")
	}

	if _, err := d.driver.BindBufferMemory(buffer, memory, 0); err != nil {
		d.driver.FreeMemory(memory, nil)
		d.driver.DestroyBuffer(buffer, nil)
		return core1_0.Buffer{}, core1_0.DeviceMemory{}, errors.Wrap(err, "bind buffer memory")
	}
	return buffer, memory, nil
}

// writeData copies data into host-visible memory at offset.
func (d *Device) writeData(memory core1_0.DeviceMemory, offset int, data []byte) error {
	memoryPtr, _, err := d.driver.MapMemory(memory, offset, len(data), 0)
	if err != nil {
		return errors.Wrap(err, "map memory")
	}
	defer d.driver.UnmapMemory(memory)

	copy(unsafe.Slice((*byte)(memoryPtr), len(data)), data)
	return nil
}
