package vkdriver

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_surface"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"
	"github.com/vkngwrapper/hellovk/internal/swapchain"
)

var _ swapchain.Driver = (*Device)(nil)

func toExtent(e core1_0.Extent2D) swapchain.Extent {
	return swapchain.Extent{Width: e.Width, Height: e.Height}
}

func fromExtent(e swapchain.Extent) core1_0.Extent2D {
	return core1_0.Extent2D{Width: e.Width, Height: e.Height}
}

func (d *Device) SurfaceCapabilities() (swapchain.Capabilities, error) {
	caps, _, err := d.inst.surfaceExt.GetPhysicalDeviceSurfaceCapabilities(d.inst.surface, d.physical)
	if err != nil {
		return swapchain.Capabilities{}, errors.Wrap(err, "get surface capabilities")
	}

	return swapchain.Capabilities{
		MinImageCount:    int(caps.MinImageCount),
		MaxImageCount:    int(caps.MaxImageCount),
		CurrentExtent:    toExtent(caps.CurrentExtent),
		MinImageExtent:   toExtent(caps.MinImageExtent),
		MaxImageExtent:   toExtent(caps.MaxImageExtent),
		CurrentTransform: uint32(caps.CurrentTransform),
	}, nil
}

func (d *Device) SurfaceFormats() ([]swapchain.SurfaceFormat, error) {
	formats, _, err := d.inst.surfaceExt.GetPhysicalDeviceSurfaceFormats(d.inst.surface, d.physical)
	if err != nil {
		return nil, errors.Wrap(err, "get surface formats")
	}

	out := make([]swapchain.SurfaceFormat, 0, len(formats))
	for _, f := range formats {
		out = append(out, swapchain.SurfaceFormat{
			Format:     swapchain.Format(f.Format),
			ColorSpace: swapchain.ColorSpace(f.ColorSpace),
		})
	}
	return out, nil
}

func (d *Device) SurfacePresentModes() ([]swapchain.PresentMode, error) {
	modes, _, err := d.inst.surfaceExt.GetPhysicalDeviceSurfacePresentModes(d.inst.surface, d.physical)
	if err != nil {
		return nil, errors.Wrap(err, "get surface present modes")
	}

	out := make([]swapchain.PresentMode, 0, len(modes))
	for _, m := range modes {
		out = append(out, swapchain.PresentMode(m))
	}
	return out, nil
}

func (d *Device) CreateSwapchain(info swapchain.CreateInfo) (swapchain.Handle, error) {
	sharingMode := core1_0.SharingModeExclusive
	var families []int
	if len(info.ConcurrentFamilies) > 1 {
		sharingMode = core1_0.SharingModeConcurrent
		families = info.ConcurrentFamilies
	}

	sc, _, err := d.swapchainExt.CreateSwapchain(nil, khr_swapchain.SwapchainCreateInfo{
		Surface: d.inst.surface,

		MinImageCount:    info.ImageCount,
		ImageFormat:      core1_0.Format(info.SurfaceFormat.Format),
		ImageColorSpace:  khr_surface.ColorSpace(info.SurfaceFormat.ColorSpace),
		ImageExtent:      fromExtent(info.Extent),
		ImageArrayLayers: 1,
		ImageUsage:       core1_0.ImageUsageColorAttachment,

		ImageSharingMode:   sharingMode,
		QueueFamilyIndices: families,

		PreTransform:   khr_surface.SurfaceTransformFlags(info.Transform),
		CompositeAlpha: khr_surface.CompositeAlphaOpaque,
		PresentMode:    khr_surface.PresentMode(info.PresentMode),
		Clipped:        true,
	})
	if err != nil {
		return 0, err
	}
	return swapchain.Handle(d.swapchains.put(sc)), nil
}

func (d *Device) SwapchainImages(handle swapchain.Handle) ([]swapchain.Image, error) {
	sc, ok := d.swapchains.get(uint64(handle))
	if !ok {
		return nil, errors.AssertionFailedf("vkdriver: unknown swapchain %d", handle)
	}

	images, _, err := d.swapchainExt.GetSwapchainImages(sc)
	if err != nil {
		return nil, err
	}

	ids := make([]uint64, 0, len(images))
	out := make([]swapchain.Image, 0, len(images))
	for _, image := range images {
		id := d.images.put(image)
		ids = append(ids, id)
		out = append(out, swapchain.Image(id))
	}
	d.chainImages[uint64(handle)] = append(d.chainImages[uint64(handle)], ids...)
	return out, nil
}

// DestroySwapchain also forgets the swapchain's images, which it owns.
func (d *Device) DestroySwapchain(handle swapchain.Handle) {
	for _, id := range d.chainImages[uint64(handle)] {
		d.images.drop(id)
	}
	delete(d.chainImages, uint64(handle))

	if sc, ok := d.swapchains.drop(uint64(handle)); ok {
		d.swapchainExt.DestroySwapchain(sc, nil)
	}
}

func (d *Device) CreateImageView(image swapchain.Image, format swapchain.Format) (swapchain.View, error) {
	img, ok := d.images.get(uint64(image))
	if !ok {
		return 0, errors.AssertionFailedf("vkdriver: unknown image %d", image)
	}

	view, _, err := d.driver.CreateImageView(nil, core1_0.ImageViewCreateInfo{
		Image:    img,
		ViewType: core1_0.ImageViewType2D,
		Format:   core1_0.Format(format),
		Components: core1_0.ComponentMapping{
			R: core1_0.ComponentSwizzleIdentity,
			G: core1_0.ComponentSwizzleIdentity,
			B: core1_0.ComponentSwizzleIdentity,
			A: core1_0.ComponentSwizzleIdentity,
		},
		SubresourceRange: core1_0.ImageSubresourceRange{
			AspectMask:     core1_0.ImageAspectColor,
			BaseMipLevel:   0,
			LevelCount:     1,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	})
	if err != nil {
		return 0, err
	}
	return swapchain.View(d.views.put(view)), nil
}

func (d *Device) DestroyImageView(view swapchain.View) {
	if v, ok := d.views.drop(uint64(view)); ok {
		d.driver.DestroyImageView(v, nil)
	}
}

func (d *Device) CreateFramebuffer(pass swapchain.RenderPass, view swapchain.View, extent swapchain.Extent) (swapchain.Framebuffer, error) {
	rp, ok := d.renderPasses.get(uint64(pass))
	if !ok {
		return 0, errors.AssertionFailedf("vkdriver: unknown render pass %d", pass)
	}
	v, ok := d.views.get(uint64(view))
	if !ok {
		return 0, errors.AssertionFailedf("vkdriver: unknown image view %d", view)
	}

	framebuffer, _, err := d.driver.CreateFramebuffer(nil, core1_0.FramebufferCreateInfo{
		RenderPass:  rp,
		Layers:      1,
		Attachments: []core1_0.ImageView{v},
		Width:       extent.Width,
		Height:      extent.Height,
	})
	if err != nil {
		return 0, err
	}
	return swapchain.Framebuffer(d.framebuffers.put(framebuffer)), nil
}

func (d *Device) DestroyFramebuffer(framebuffer swapchain.Framebuffer) {
	if fb, ok := d.framebuffers.drop(uint64(framebuffer)); ok {
		d.driver.DestroyFramebuffer(fb, nil)
	}
}
