package vkrender

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_surface"

	"github.com/brendenhoffman/CubicEngine/render"
)

// extSwapchainColorspaceName is the instance extension that unlocks the
// non-SDR color spaces below. Enabled by name; only the enum values reach the
// device.
const extSwapchainColorspaceName = "VK_EXT_swapchain_colorspace"

// VkColorSpaceKHR values from VK_EXT_swapchain_colorspace.
const (
	colorSpaceDisplayP3Nonlinear    khr_surface.ColorSpace = 1000104001
	colorSpaceExtendedSRGBLinear    khr_surface.ColorSpace = 1000104002
	colorSpaceHDR10ST2084           khr_surface.ColorSpace = 1000104008
	colorSpaceExtendedSRGBNonlinear khr_surface.ColorSpace = 1000104014
)

// Format selection rationale tags, logged alongside every swapchain build so
// fallback behavior is observable in the field.
const (
	pickHdr10PQ           = "hdr10_pq"
	pickScrgbFP16         = "scrgb_fp16"
	pickDriverDefaultHdr  = "driver_default_hdr"
	pickSdrBgra8Srgb      = "sdr_bgra8_srgb"
	pickSdrRgba8Srgb      = "sdr_rgba8_srgb"
	pickSdrBgra8UnormSrgb = "sdr_bgra8_unorm_srgbcs"
	pickDriverDefault     = "driver_default"
)

// choosePresentMode maps the vsync settings onto the surface's supported
// present modes. FIFO support is mandated by the platform, so the final
// fallback always succeeds.
func choosePresentMode(modes []khr_surface.PresentMode, vsync bool, mode render.VsyncMode) khr_surface.PresentMode {
	has := func(want khr_surface.PresentMode) bool {
		for _, m := range modes {
			if m == want {
				return true
			}
		}
		return false
	}

	if !vsync {
		if has(khr_surface.PresentModeImmediate) {
			return khr_surface.PresentModeImmediate
		}
		if has(khr_surface.PresentModeMailbox) {
			return khr_surface.PresentModeMailbox
		}
		return khr_surface.PresentModeFIFO
	}

	if mode == render.VsyncMailbox && has(khr_surface.PresentModeMailbox) {
		return khr_surface.PresentModeMailbox
	}
	return khr_surface.PresentModeFIFO
}

func isHdr10Format(f core1_0.Format) bool {
	switch f {
	case core1_0.FormatA2B10G10R10UnsignedNormalizedPacked,
		core1_0.FormatA2R10G10B10UnsignedNormalizedPacked,
		core1_0.FormatR16G16B16A16SignedFloat:
		return true
	}
	return false
}

func isScrgbColorSpace(cs khr_surface.ColorSpace) bool {
	return cs == colorSpaceExtendedSRGBLinear ||
		cs == colorSpaceExtendedSRGBNonlinear
}

func findHdr10(formats []khr_surface.SurfaceFormat) (khr_surface.SurfaceFormat, bool) {
	for _, f := range formats {
		if isHdr10Format(f.Format) && f.ColorSpace == colorSpaceHDR10ST2084 {
			return f, true
		}
	}
	return khr_surface.SurfaceFormat{}, false
}

func findScrgb(formats []khr_surface.SurfaceFormat) (khr_surface.SurfaceFormat, bool) {
	for _, f := range formats {
		if f.Format == core1_0.FormatR16G16B16A16SignedFloat && isScrgbColorSpace(f.ColorSpace) {
			return f, true
		}
	}
	return khr_surface.SurfaceFormat{}, false
}

// chooseSurfaceFormat picks the swapchain format and color space for the
// current HDR settings and returns the rationale tag for the choice.
//
// HDR candidates are considered only when the extended color space extension
// was enabled at instance creation; the preferred flavor is tried first and
// the other flavor is the fallback. When neither matches, any non-SDR color
// space the driver advertises is accepted before dropping to the SDR ladder:
// BGRA8 sRGB, RGBA8 sRGB, BGRA8 UNORM in an sRGB color space, and finally
// whatever the driver lists first.
func chooseSurfaceFormat(formats []khr_surface.SurfaceFormat, wantHDR, extendedColorSpace bool, flavor render.HdrFlavor) (khr_surface.SurfaceFormat, string) {
	if wantHDR && extendedColorSpace {
		if flavor == render.PreferHdr10 {
			if f, ok := findHdr10(formats); ok {
				return f, pickHdr10PQ
			}
			if f, ok := findScrgb(formats); ok {
				return f, pickScrgbFP16
			}
		} else {
			if f, ok := findScrgb(formats); ok {
				return f, pickScrgbFP16
			}
			if f, ok := findHdr10(formats); ok {
				return f, pickHdr10PQ
			}
		}
		for _, f := range formats {
			if f.ColorSpace != khr_surface.ColorSpaceSRGBNonlinear {
				return f, pickDriverDefaultHdr
			}
		}
	}

	for _, f := range formats {
		if f.Format == core1_0.FormatB8G8R8A8SRGB && f.ColorSpace == khr_surface.ColorSpaceSRGBNonlinear {
			return f, pickSdrBgra8Srgb
		}
	}
	for _, f := range formats {
		if f.Format == core1_0.FormatR8G8B8A8SRGB && f.ColorSpace == khr_surface.ColorSpaceSRGBNonlinear {
			return f, pickSdrRgba8Srgb
		}
	}
	for _, f := range formats {
		if f.Format == core1_0.FormatB8G8R8A8UnsignedNormalized && f.ColorSpace == khr_surface.ColorSpaceSRGBNonlinear {
			return f, pickSdrBgra8UnormSrgb
		}
	}
	return formats[0], pickDriverDefault
}

// chooseExtent resolves the swapchain extent. When the surface pins the
// extent the driver value wins; otherwise the requested size is clamped to
// the supported range.
func chooseExtent(caps *khr_surface.SurfaceCapabilities, want render.Size) core1_0.Extent2D {
	if caps.CurrentExtent.Width != -1 {
		return caps.CurrentExtent
	}
	clamp := func(v, lo, hi int) int {
		if v < lo {
			return lo
		}
		if v > hi {
			return hi
		}
		return v
	}
	return core1_0.Extent2D{
		Width:  clamp(int(want.Width), caps.MinImageExtent.Width, caps.MaxImageExtent.Width),
		Height: clamp(int(want.Height), caps.MinImageExtent.Height, caps.MaxImageExtent.Height),
	}
}

// chooseImageCount sizes the swapchain. Mailbox needs at least three images
// to actually drop frames; everything else runs with one above the minimum.
// MaxImageCount of zero means unbounded.
func chooseImageCount(caps *khr_surface.SurfaceCapabilities, mode khr_surface.PresentMode) int {
	count := caps.MinImageCount + 1
	if mode == khr_surface.PresentModeMailbox && count < 3 {
		count = 3
	}
	if caps.MaxImageCount > 0 && count > caps.MaxImageCount {
		count = caps.MaxImageCount
	}
	return count
}

// choosePreTransform keeps the identity transform when the surface allows
// it, avoiding a driver-side rotation pass.
func choosePreTransform(caps *khr_surface.SurfaceCapabilities) khr_surface.SurfaceTransformFlags {
	if caps.SupportedTransforms&khr_surface.TransformIdentity != 0 {
		return khr_surface.TransformIdentity
	}
	return caps.CurrentTransform
}

// chooseCompositeAlpha picks the first supported mode from a fixed
// preference order. Opaque first; the alpha modes only matter for windows
// composited with transparency.
func chooseCompositeAlpha(caps *khr_surface.SurfaceCapabilities) khr_surface.CompositeAlphaFlags {
	preferred := []khr_surface.CompositeAlphaFlags{
		khr_surface.CompositeAlphaOpaque,
		khr_surface.CompositeAlphaPreMultiplied,
		khr_surface.CompositeAlphaPostMultiplied,
		khr_surface.CompositeAlphaInherit,
	}
	for _, mode := range preferred {
		if caps.SupportedCompositeAlpha&mode != 0 {
			return mode
		}
	}
	return khr_surface.CompositeAlphaOpaque
}

// chooseDepthFormat picks the depth attachment format from the formats the
// device supports for optimal-tiling depth attachments. Only pure depth
// formats are considered; the pipeline never uses stencil.
func chooseDepthFormat(physicalDevice core1_0.PhysicalDevice, instanceDriver core1_0.CoreInstanceDriver) (core1_0.Format, error) {
	candidates := []core1_0.Format{
		core1_0.FormatD32SignedFloat,
		core1_0.FormatD16UnsignedNormalized,
	}
	for _, format := range candidates {
		props := instanceDriver.GetPhysicalDeviceFormatProperties(physicalDevice, format)
		if props.OptimalTilingFeatures&core1_0.FormatFeatureDepthStencilAttachment != 0 {
			return format, nil
		}
	}
	return 0, errors.New("no supported depth attachment format")
}
