// Package vkdriver implements the device-facing interfaces of the session on
// top of vkngwrapper.
package vkdriver

import (
	"log"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/ext_debug_utils"
	"github.com/vkngwrapper/extensions/v3/khr_portability_enumeration"
	"github.com/vkngwrapper/extensions/v3/khr_surface"
)

const validationLayer = "VK_LAYER_KHRONOS_validation"

type InstanceConfig struct {
	AppName string
	// Extensions are required by the window system.
	Extensions []string
	// Validation enables the Khronos validation layer and a debug messenger.
	Validation bool
	// APIVersion is the highest version the session will use.
	APIVersion common.APIVersion
	Logger     *log.Logger
}

// SurfaceSource creates a presentation surface for an instance.
type SurfaceSource interface {
	CreateSurface(instance core1_0.Instance, ext khr_surface.ExtensionDriver) (khr_surface.Surface, error)
}

// Instance owns the instance, its debug messenger and the window surface.
type Instance struct {
	logger *log.Logger

	global core1_0.GlobalDriver
	driver core1_0.CoreInstanceDriver

	debug     ext_debug_utils.ExtensionDriver
	messenger ext_debug_utils.DebugUtilsMessenger

	surfaceExt khr_surface.ExtensionDriver
	surface    khr_surface.Surface

	physical []core1_0.PhysicalDevice
}

func (i *Instance) debugMessengerOptions() ext_debug_utils.DebugUtilsMessengerCreateInfo {
	return ext_debug_utils.DebugUtilsMessengerCreateInfo{
		MessageSeverity: ext_debug_utils.SeverityError | ext_debug_utils.SeverityWarning,
		MessageType:     ext_debug_utils.TypeGeneral | ext_debug_utils.TypeValidation | ext_debug_utils.TypePerformance,
		UserCallback:    i.logDebug,
	}
}

func (i *Instance) logDebug(msgType ext_debug_utils.DebugUtilsMessageTypeFlags, severity ext_debug_utils.DebugUtilsMessageSeverityFlags, data *ext_debug_utils.DebugUtilsMessengerCallbackData) bool {
	i.logger.Printf("[%s %s] - %s", severity, msgType, data.Message)
	return false
}

// NewInstance loads the driver through procAddr and creates an instance with
// every extension the window needs.
func NewInstance(procAddr unsafe.Pointer, cfg InstanceConfig) (*Instance, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	inst := &Instance{logger: logger}

	global, err := core.CreateDriverFromProcAddr(procAddr)
	if err != nil {
		return nil, errors.Wrap(err, "load vulkan driver")
	}
	inst.global = global

	info := core1_0.InstanceCreateInfo{
		ApplicationName:    cfg.AppName,
		ApplicationVersion: common.CreateVersion(1, 0, 0),
		EngineName:         "No Engine",
		EngineVersion:      common.CreateVersion(1, 0, 0),
		APIVersion:         cfg.APIVersion,
	}

	extensions, _, err := global.AvailableExtensions()
	if err != nil {
		return nil, errors.Wrap(err, "enumerate instance extensions")
	}
	for _, ext := range cfg.Extensions {
		if _, ok := extensions[ext]; !ok {
			return nil, errors.Newf("window system needs missing instance extension %s", ext)
		}
		info.EnabledExtensionNames = append(info.EnabledExtensionNames, ext)
	}

	if _, ok := extensions[khr_portability_enumeration.ExtensionName]; ok {
		info.EnabledExtensionNames = append(info.EnabledExtensionNames, khr_portability_enumeration.ExtensionName)
		info.Flags |= khr_portability_enumeration.InstanceCreateEnumeratePortability
	}

	if cfg.Validation {
		if _, ok := extensions[ext_debug_utils.ExtensionName]; !ok {
			return nil, errors.Newf("validation needs missing instance extension %s", ext_debug_utils.ExtensionName)
		}
		info.EnabledExtensionNames = append(info.EnabledExtensionNames, ext_debug_utils.ExtensionName)

		layers, _, err := global.AvailableLayers()
		if err != nil {
			return nil, errors.Wrap(err, "enumerate instance layers")
		}
		if _, ok := layers[validationLayer]; !ok {
			return nil, errors.Newf("layer %s not available, install the LunarG Vulkan SDK", validationLayer)
		}
		info.EnabledLayerNames = append(info.EnabledLayerNames, validationLayer)
		info.Next = inst.debugMessengerOptions()
	}

	inst.driver, _, err = global.CreateInstance(nil, info)
	if err != nil {
		return nil, errors.Wrap(err, "create instance")
	}

	if cfg.Validation {
		inst.debug = ext_debug_utils.CreateExtensionDriverFromCoreDriver(inst.driver)
		inst.messenger, _, err = inst.debug.CreateDebugUtilsMessenger(nil, inst.debugMessengerOptions())
		if err != nil {
			inst.driver.DestroyInstance(nil)
			return nil, errors.Wrap(err, "create debug messenger")
		}
	}

	inst.surfaceExt = khr_surface.CreateExtensionDriverFromCoreDriver(inst.driver)
	logger.Printf("vkdriver: instance created, validation=%t", cfg.Validation)
	return inst, nil
}

func (i *Instance) CreateSurface(src SurfaceSource) error {
	if i.surface.Initialized() {
		return errors.AssertionFailedf("vkdriver: surface already created")
	}

	surface, err := src.CreateSurface(i.driver.Instance(), i.surfaceExt)
	if err != nil {
		return errors.Wrap(err, "create window surface")
	}
	i.surface = surface
	return nil
}

func (i *Instance) DestroySurface() {
	if i.surface.Initialized() {
		i.surfaceExt.DestroySurface(i.surface, nil)
		i.surface = khr_surface.Surface{}
	}
}

// Close destroys the debug messenger and the instance. The surface and every
// device must be gone already.
func (i *Instance) Close() {
	if i.messenger.Initialized() {
		i.debug.DestroyDebugUtilsMessenger(i.messenger, nil)
		i.messenger = ext_debug_utils.DebugUtilsMessenger{}
	}
	if i.driver != nil {
		i.driver.DestroyInstance(nil)
		i.driver = nil
	}
}
