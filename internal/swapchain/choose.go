package swapchain

import "github.com/cockroachdb/errors"

// PreferredImageCount asks for triple buffering when the surface allows it.
const PreferredImageCount = 3

func ChooseSurfaceFormat(available []SurfaceFormat) (SurfaceFormat, error) {
	if len(available) == 0 {
		return SurfaceFormat{}, errors.New("surface reports no formats")
	}

	for _, format := range available {
		if format.Format == FormatB8G8R8A8SRGB && format.ColorSpace == ColorSpaceSRGBNonlinear {
			return format, nil
		}
	}

	return available[0], nil
}

// ChoosePresentMode prefers mailbox and falls back to FIFO, which every
// surface must support.
func ChoosePresentMode(available []PresentMode) PresentMode {
	for _, mode := range available {
		if mode == PresentModeMailbox {
			return mode
		}
	}

	return PresentModeFIFO
}

func ChooseImageCount(caps Capabilities, target int) int {
	count := target
	if caps.MaxImageCount > 0 && count > caps.MaxImageCount {
		count = caps.MaxImageCount
	}
	if count < caps.MinImageCount {
		count = caps.MinImageCount
	}
	return count
}

// ChooseExtent uses the surface's current extent when it has one, and
// otherwise clamps the window's framebuffer size into the supported range.
func ChooseExtent(caps Capabilities, width, height int) Extent {
	if caps.CurrentExtent.Width != UndefinedExtent {
		return caps.CurrentExtent
	}

	return Extent{
		Width:  clamp(width, caps.MinImageExtent.Width, caps.MaxImageExtent.Width),
		Height: clamp(height, caps.MinImageExtent.Height, caps.MaxImageExtent.Height),
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
