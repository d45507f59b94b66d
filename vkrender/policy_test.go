package vkrender

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_surface"

	"github.com/brendenhoffman/CubicEngine/render"
)

func TestChoosePresentModeVsyncOff(t *testing.T) {
	all := []khr_surface.PresentMode{
		khr_surface.PresentModeFIFO,
		khr_surface.PresentModeMailbox,
		khr_surface.PresentModeImmediate,
	}
	require.Equal(t, khr_surface.PresentModeImmediate, choosePresentMode(all, false, render.VsyncFIFO))

	noImmediate := []khr_surface.PresentMode{
		khr_surface.PresentModeFIFO,
		khr_surface.PresentModeMailbox,
	}
	require.Equal(t, khr_surface.PresentModeMailbox, choosePresentMode(noImmediate, false, render.VsyncFIFO))

	fifoOnly := []khr_surface.PresentMode{khr_surface.PresentModeFIFO}
	require.Equal(t, khr_surface.PresentModeFIFO, choosePresentMode(fifoOnly, false, render.VsyncFIFO))
}

func TestChoosePresentModeVsyncOn(t *testing.T) {
	all := []khr_surface.PresentMode{
		khr_surface.PresentModeFIFO,
		khr_surface.PresentModeMailbox,
		khr_surface.PresentModeImmediate,
	}
	require.Equal(t, khr_surface.PresentModeMailbox, choosePresentMode(all, true, render.VsyncMailbox))
	require.Equal(t, khr_surface.PresentModeFIFO, choosePresentMode(all, true, render.VsyncFIFO))

	fifoOnly := []khr_surface.PresentMode{khr_surface.PresentModeFIFO}
	require.Equal(t, khr_surface.PresentModeFIFO, choosePresentMode(fifoOnly, true, render.VsyncMailbox))
}

func sdrFormats() []khr_surface.SurfaceFormat {
	return []khr_surface.SurfaceFormat{
		{Format: core1_0.FormatR8G8B8A8SRGB, ColorSpace: khr_surface.ColorSpaceSRGBNonlinear},
		{Format: core1_0.FormatB8G8R8A8SRGB, ColorSpace: khr_surface.ColorSpaceSRGBNonlinear},
		{Format: core1_0.FormatB8G8R8A8UnsignedNormalized, ColorSpace: khr_surface.ColorSpaceSRGBNonlinear},
	}
}

func TestChooseSurfaceFormatSDRLadder(t *testing.T) {
	f, why := chooseSurfaceFormat(sdrFormats(), false, true, render.PreferScrgb)
	require.Equal(t, core1_0.FormatB8G8R8A8SRGB, f.Format)
	require.Equal(t, "sdr_bgra8_srgb", why)

	noBgraSrgb := []khr_surface.SurfaceFormat{
		{Format: core1_0.FormatR8G8B8A8SRGB, ColorSpace: khr_surface.ColorSpaceSRGBNonlinear},
		{Format: core1_0.FormatB8G8R8A8UnsignedNormalized, ColorSpace: khr_surface.ColorSpaceSRGBNonlinear},
	}
	f, why = chooseSurfaceFormat(noBgraSrgb, false, true, render.PreferScrgb)
	require.Equal(t, core1_0.FormatR8G8B8A8SRGB, f.Format)
	require.Equal(t, "sdr_rgba8_srgb", why)

	unormOnly := []khr_surface.SurfaceFormat{
		{Format: core1_0.FormatB8G8R8A8UnsignedNormalized, ColorSpace: khr_surface.ColorSpaceSRGBNonlinear},
	}
	f, why = chooseSurfaceFormat(unormOnly, false, true, render.PreferScrgb)
	require.Equal(t, core1_0.FormatB8G8R8A8UnsignedNormalized, f.Format)
	require.Equal(t, "sdr_bgra8_unorm_srgbcs", why)

	exotic := []khr_surface.SurfaceFormat{
		{Format: core1_0.FormatR5G6B5UnsignedNormalizedPacked, ColorSpace: khr_surface.ColorSpaceSRGBNonlinear},
	}
	f, why = chooseSurfaceFormat(exotic, false, true, render.PreferScrgb)
	require.Equal(t, core1_0.FormatR5G6B5UnsignedNormalizedPacked, f.Format)
	require.Equal(t, "driver_default", why)
}

func TestChooseSurfaceFormatHDRFlavors(t *testing.T) {
	formats := append(sdrFormats(),
		khr_surface.SurfaceFormat{
			Format:     core1_0.FormatA2B10G10R10UnsignedNormalizedPacked,
			ColorSpace: colorSpaceHDR10ST2084,
		},
		khr_surface.SurfaceFormat{
			Format:     core1_0.FormatR16G16B16A16SignedFloat,
			ColorSpace: colorSpaceExtendedSRGBLinear,
		},
	)

	f, why := chooseSurfaceFormat(formats, true, true, render.PreferHdr10)
	require.Equal(t, "hdr10_pq", why)
	require.Equal(t, colorSpaceHDR10ST2084, f.ColorSpace)

	f, why = chooseSurfaceFormat(formats, true, true, render.PreferScrgb)
	require.Equal(t, "scrgb_fp16", why)
	require.Equal(t, core1_0.FormatR16G16B16A16SignedFloat, f.Format)
}

func TestChooseSurfaceFormatHDRFallsBackToOtherFlavor(t *testing.T) {
	hdr10Only := append(sdrFormats(), khr_surface.SurfaceFormat{
		Format:     core1_0.FormatA2R10G10B10UnsignedNormalizedPacked,
		ColorSpace: colorSpaceHDR10ST2084,
	})
	_, why := chooseSurfaceFormat(hdr10Only, true, true, render.PreferScrgb)
	require.Equal(t, "hdr10_pq", why)

	scrgbOnly := append(sdrFormats(), khr_surface.SurfaceFormat{
		Format:     core1_0.FormatR16G16B16A16SignedFloat,
		ColorSpace: colorSpaceExtendedSRGBNonlinear,
	})
	_, why = chooseSurfaceFormat(scrgbOnly, true, true, render.PreferHdr10)
	require.Equal(t, "scrgb_fp16", why)
}

func TestChooseSurfaceFormatHDRRequiresExtendedColorSpace(t *testing.T) {
	formats := append(sdrFormats(), khr_surface.SurfaceFormat{
		Format:     core1_0.FormatA2B10G10R10UnsignedNormalizedPacked,
		ColorSpace: colorSpaceHDR10ST2084,
	})
	// Without the instance extension, HDR intent must not leak into the
	// selection: the SDR ladder wins.
	_, why := chooseSurfaceFormat(formats, true, false, render.PreferHdr10)
	require.Equal(t, "sdr_bgra8_srgb", why)
}

func TestChooseSurfaceFormatDriverDefaultHdr(t *testing.T) {
	formats := append(sdrFormats(), khr_surface.SurfaceFormat{
		Format:     core1_0.FormatB8G8R8A8UnsignedNormalized,
		ColorSpace: colorSpaceDisplayP3Nonlinear,
	})
	f, why := chooseSurfaceFormat(formats, true, true, render.PreferHdr10)
	require.Equal(t, "driver_default_hdr", why)
	require.Equal(t, colorSpaceDisplayP3Nonlinear, f.ColorSpace)
}

func TestChooseExtentPinnedByDriver(t *testing.T) {
	caps := &khr_surface.SurfaceCapabilities{
		CurrentExtent:  core1_0.Extent2D{Width: 800, Height: 600},
		MinImageExtent: core1_0.Extent2D{Width: 1, Height: 1},
		MaxImageExtent: core1_0.Extent2D{Width: 4096, Height: 4096},
	}
	extent := chooseExtent(caps, render.Size{Width: 1280, Height: 720})
	require.Equal(t, core1_0.Extent2D{Width: 800, Height: 600}, extent)
}

func TestChooseExtentClamped(t *testing.T) {
	caps := &khr_surface.SurfaceCapabilities{
		CurrentExtent:  core1_0.Extent2D{Width: -1, Height: -1},
		MinImageExtent: core1_0.Extent2D{Width: 64, Height: 64},
		MaxImageExtent: core1_0.Extent2D{Width: 1920, Height: 1080},
	}
	require.Equal(t, core1_0.Extent2D{Width: 1280, Height: 720},
		chooseExtent(caps, render.Size{Width: 1280, Height: 720}))
	require.Equal(t, core1_0.Extent2D{Width: 64, Height: 64},
		chooseExtent(caps, render.Size{Width: 16, Height: 16}))
	require.Equal(t, core1_0.Extent2D{Width: 1920, Height: 1080},
		chooseExtent(caps, render.Size{Width: 8192, Height: 8192}))
}

func TestChooseImageCount(t *testing.T) {
	caps := &khr_surface.SurfaceCapabilities{MinImageCount: 2, MaxImageCount: 8}
	require.Equal(t, 3, chooseImageCount(caps, khr_surface.PresentModeFIFO))
	require.Equal(t, 3, chooseImageCount(caps, khr_surface.PresentModeMailbox))

	lowMin := &khr_surface.SurfaceCapabilities{MinImageCount: 1, MaxImageCount: 8}
	require.Equal(t, 2, chooseImageCount(lowMin, khr_surface.PresentModeFIFO))
	require.Equal(t, 3, chooseImageCount(lowMin, khr_surface.PresentModeMailbox))

	capped := &khr_surface.SurfaceCapabilities{MinImageCount: 2, MaxImageCount: 2}
	require.Equal(t, 2, chooseImageCount(capped, khr_surface.PresentModeMailbox))

	unbounded := &khr_surface.SurfaceCapabilities{MinImageCount: 4, MaxImageCount: 0}
	require.Equal(t, 5, chooseImageCount(unbounded, khr_surface.PresentModeFIFO))
}

func TestChoosePreTransform(t *testing.T) {
	caps := &khr_surface.SurfaceCapabilities{
		SupportedTransforms: khr_surface.TransformIdentity | khr_surface.TransformRotate90,
		CurrentTransform:    khr_surface.TransformRotate90,
	}
	require.Equal(t, khr_surface.TransformIdentity, choosePreTransform(caps))

	rotated := &khr_surface.SurfaceCapabilities{
		SupportedTransforms: khr_surface.TransformRotate90,
		CurrentTransform:    khr_surface.TransformRotate90,
	}
	require.Equal(t, khr_surface.TransformRotate90, choosePreTransform(rotated))
}

func TestChooseCompositeAlpha(t *testing.T) {
	caps := &khr_surface.SurfaceCapabilities{
		SupportedCompositeAlpha: khr_surface.CompositeAlphaPostMultiplied | khr_surface.CompositeAlphaInherit,
	}
	require.Equal(t, khr_surface.CompositeAlphaPostMultiplied, chooseCompositeAlpha(caps))

	opaque := &khr_surface.SurfaceCapabilities{
		SupportedCompositeAlpha: khr_surface.CompositeAlphaOpaque | khr_surface.CompositeAlphaInherit,
	}
	require.Equal(t, khr_surface.CompositeAlphaOpaque, chooseCompositeAlpha(opaque))
}
