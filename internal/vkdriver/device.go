package vkdriver

import (
	"log"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_portability_subset"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"
	"github.com/vkngwrapper/hellovk/internal/gpu"
	"github.com/vkngwrapper/hellovk/internal/pipecache"
	"github.com/vkngwrapper/hellovk/internal/scope"
	"github.com/vkngwrapper/hellovk/internal/swapchain"
)

// Device is the logical device plus every object the session creates on it.
// Objects the core packages refer to are handed out as registry ids.
type Device struct {
	logger *log.Logger
	inst   *Instance

	physical core1_0.PhysicalDevice
	identity pipecache.Identity
	plan     *gpu.QueuePlan

	driver       core1_0.CoreDeviceDriver
	swapchainExt khr_swapchain.ExtensionDriver
	queues       map[gpu.Role]core1_0.Queue
	commandPool  core1_0.CommandPool

	swapchains     *registry[khr_swapchain.Swapchain]
	chainImages    map[uint64][]uint64
	images         *registry[core1_0.Image]
	views          *registry[core1_0.ImageView]
	framebuffers   *registry[core1_0.Framebuffer]
	renderPasses   *registry[core1_0.RenderPass]
	fences         *registry[core1_0.Fence]
	semaphores     *registry[core1_0.Semaphore]
	commandBuffers *registry[core1_0.CommandBuffer]

	pipelineCache  core1_0.PipelineCache
	pipelineLayout core1_0.PipelineLayout
	pipeline       core1_0.Pipeline
	pipelinePass   core1_0.RenderPass

	meshBuffer  core1_0.Buffer
	meshMemory  core1_0.DeviceMemory
	indexOffset int
	indexCount  int
}

// NewDevice creates the logical device for c with one queue per family in
// plan, and a resettable command pool on the graphics family.
func NewDevice(inst *Instance, c gpu.Candidate, plan *gpu.QueuePlan, logger *log.Logger) (*Device, error) {
	if logger == nil {
		logger = log.Default()
	}

	physical, err := inst.physicalDevice(c)
	if err != nil {
		return nil, err
	}
	props, err := inst.driver.GetPhysicalDeviceProperties(physical)
	if err != nil {
		return nil, errors.Wrap(err, "get physical device properties")
	}

	var queueInfos []core1_0.DeviceQueueCreateInfo
	for _, family := range plan.QueueFamilies() {
		queueInfos = append(queueInfos, core1_0.DeviceQueueCreateInfo{
			QueueFamilyIndex: family,
			QueuePriorities:  []float32{1.0},
		})
	}

	extensionNames := []string{khr_swapchain.ExtensionName}
	extensions, _, err := inst.driver.EnumerateDeviceExtensionProperties(physical)
	if err != nil {
		return nil, errors.Wrap(err, "enumerate device extensions")
	}
	if _, ok := extensions[khr_portability_subset.ExtensionName]; ok {
		extensionNames = append(extensionNames, khr_portability_subset.ExtensionName)
	}

	driver, _, err := inst.driver.CreateDevice(physical, nil, core1_0.DeviceCreateInfo{
		QueueCreateInfos:      queueInfos,
		EnabledFeatures:       &core1_0.PhysicalDeviceFeatures{},
		EnabledExtensionNames: extensionNames,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "create logical device on %s", c.Name)
	}

	var rollback scope.Stack
	defer rollback.Release()
	rollback.Push("device", func() { driver.DestroyDevice(nil) })

	identity := pipecache.Identity{
		VendorID:  props.VendorID,
		DeviceID:  props.DeviceID,
		CacheUUID: props.PipelineCacheUUID,
	}

	d := &Device{
		logger:         logger,
		inst:           inst,
		physical:       physical,
		plan:           plan,
		identity:       identity,
		driver:         driver,
		swapchainExt:   khr_swapchain.CreateExtensionDriverFromCoreDriver(driver),
		queues:         make(map[gpu.Role]core1_0.Queue),
		swapchains:     newRegistry[khr_swapchain.Swapchain](),
		chainImages:    make(map[uint64][]uint64),
		images:         newRegistry[core1_0.Image](),
		views:          newRegistry[core1_0.ImageView](),
		framebuffers:   newRegistry[core1_0.Framebuffer](),
		renderPasses:   newRegistry[core1_0.RenderPass](),
		fences:         newRegistry[core1_0.Fence](),
		semaphores:     newRegistry[core1_0.Semaphore](),
		commandBuffers: newRegistry[core1_0.CommandBuffer](),
	}

	// Roles that share a family get the same queue.
	for _, role := range gpu.Roles {
		d.queues[role] = driver.GetQueue(plan.Family(role), 0)
	}

	d.commandPool, _, err = driver.CreateCommandPool(nil, core1_0.CommandPoolCreateInfo{
		QueueFamilyIndex: plan.Family(gpu.RoleGraphics),
		Flags:            core1_0.CommandPoolCreateResetBuffer,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create graphics command pool")
	}

	rollback.Disarm()
	logger.Printf("vkdriver: device %s ready, queues %s", c.Name, plan)
	return d, nil
}

// CacheIdentity identifies pipeline cache blobs this device can reuse.
func (d *Device) CacheIdentity() pipecache.Identity {
	return d.identity
}

// WaitIdle blocks until the device has finished all submitted work.
func (d *Device) WaitIdle() error {
	if _, err := d.driver.DeviceWaitIdle(); err != nil {
		return errors.Wrap(err, "wait for device idle")
	}
	return nil
}

// Close destroys what the device still owns and then the device itself. The
// presentation chain and frame slots must already be destroyed.
func (d *Device) Close() {
	if d.driver == nil {
		return
	}

	for name, n := range map[string]int{
		"swapchains":      d.swapchains.len(),
		"image views":     d.views.len(),
		"framebuffers":    d.framebuffers.len(),
		"fences":          d.fences.len(),
		"semaphores":      d.semaphores.len(),
		"command buffers": d.commandBuffers.len(),
	} {
		if n > 0 {
			d.logger.Printf("vkdriver: closing device with %d live %s", n, name)
		}
	}

	d.destroyPipeline()
	for id := range d.renderPasses.objects {
		d.DestroyRenderPass(swapchain.RenderPass(id))
	}
	d.destroyMesh()

	if d.commandPool.Initialized() {
		d.driver.DestroyCommandPool(d.commandPool, nil)
		d.commandPool = core1_0.CommandPool{}
	}

	d.driver.DestroyDevice(nil)
	d.driver = nil
}
