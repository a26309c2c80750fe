package vkdriver

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"
	"github.com/vkngwrapper/hellovk/internal/gpu"
)

var deviceClasses = map[core1_0.PhysicalDeviceType]gpu.DeviceClass{
	core1_0.PhysicalDeviceTypeIntegratedGPU: gpu.ClassIntegrated,
	core1_0.PhysicalDeviceTypeDiscreteGPU:   gpu.ClassDiscrete,
	core1_0.PhysicalDeviceTypeVirtualGPU:    gpu.ClassVirtual,
	core1_0.PhysicalDeviceTypeCPU:           gpu.ClassCPU,
}

// Candidates enumerates the physical devices that can drive a swapchain.
// Candidate.Index refers to the enumeration order and stays valid for the
// life of the instance.
func (i *Instance) Candidates() ([]gpu.Candidate, error) {
	physical, _, err := i.driver.EnumeratePhysicalDevices()
	if err != nil {
		return nil, errors.Wrap(err, "enumerate physical devices")
	}
	i.physical = physical

	var candidates []gpu.Candidate
	for index, device := range physical {
		props, err := i.driver.GetPhysicalDeviceProperties(device)
		if err != nil {
			return nil, errors.Wrapf(err, "get properties of physical device %d", index)
		}

		extensions, _, err := i.driver.EnumerateDeviceExtensionProperties(device)
		if err != nil {
			return nil, errors.Wrapf(err, "enumerate extensions of %s", props.DriverName)
		}
		if _, ok := extensions[khr_swapchain.ExtensionName]; !ok {
			i.logger.Printf("vkdriver: skipping %s, no %s", props.DriverName, khr_swapchain.ExtensionName)
			continue
		}

		class, ok := deviceClasses[props.DriverType]
		if !ok {
			class = gpu.ClassOther
		}
		candidates = append(candidates, gpu.Candidate{
			Index:      index,
			Name:       props.DriverName,
			APIVersion: gpu.Version(props.APIVersion),
			VendorID:   props.VendorID,
			DeviceID:   props.DeviceID,
			Class:      class,
			Limits: gpu.Limits{
				MaxImageDimension1D:  uint32(props.Limits.MaxImageDimension1D),
				MaxImageDimension2D:  uint32(props.Limits.MaxImageDimension2D),
				MaxFramebufferWidth:  uint32(props.Limits.MaxFramebufferWidth),
				MaxFramebufferHeight: uint32(props.Limits.MaxFramebufferHeight),
			},
		})
	}
	return candidates, nil
}

func (i *Instance) physicalDevice(c gpu.Candidate) (core1_0.PhysicalDevice, error) {
	if c.Index < 0 || c.Index >= len(i.physical) {
		return core1_0.PhysicalDevice{}, errors.AssertionFailedf("vkdriver: candidate index %d out of range", c.Index)
	}
	return i.physical[c.Index], nil
}

// QueueFamilies describes the queue families of c, including whether each
// can present to the instance's surface.
func (i *Instance) QueueFamilies(c gpu.Candidate) ([]gpu.QueueFamily, error) {
	device, err := i.physicalDevice(c)
	if err != nil {
		return nil, err
	}
	if !i.surface.Initialized() {
		return nil, errors.AssertionFailedf("vkdriver: QueueFamilies called before CreateSurface")
	}

	props := i.driver.GetPhysicalDeviceQueueFamilyProperties(device)
	families := make([]gpu.QueueFamily, 0, len(props))
	for index, family := range props {
		present, _, err := i.surfaceExt.GetPhysicalDeviceSurfaceSupport(i.surface, device, index)
		if err != nil {
			return nil, errors.Wrapf(err, "query present support of queue family %d", index)
		}

		var flags gpu.QueueFlags
		if family.QueueFlags&core1_0.QueueGraphics != 0 {
			flags |= gpu.QueueGraphics
		}
		if family.QueueFlags&core1_0.QueueCompute != 0 {
			flags |= gpu.QueueCompute
		}
		if family.QueueFlags&core1_0.QueueTransfer != 0 {
			flags |= gpu.QueueTransfer
		}

		families = append(families, gpu.QueueFamily{
			Index:   index,
			Flags:   flags,
			Present: present,
			Count:   family.QueueCount,
		})
	}
	return families, nil
}
