package vkrender

import (
	"context"
	"log/slog"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_surface"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"

	"github.com/brendenhoffman/CubicEngine/render"
)

// buildSwapchain creates the replacement swapchain at the requested size,
// chaining from the old handle so the driver can recycle buffered frames,
// then destroys the old handle and fetches the new images and views.
func (r *Renderer) buildSwapchain(size render.Size) (swapchainState, error) {
	caps, _, err := r.surfaceExtension.GetPhysicalDeviceSurfaceCapabilities(r.surface, r.physicalDevice)
	if err != nil {
		return swapchainState{}, errors.Wrap(err, "querying surface capabilities")
	}
	formats, _, err := r.surfaceExtension.GetPhysicalDeviceSurfaceFormats(r.surface, r.physicalDevice)
	if err != nil {
		return swapchainState{}, errors.Wrap(err, "querying surface formats")
	}
	modes, _, err := r.surfaceExtension.GetPhysicalDeviceSurfacePresentModes(r.surface, r.physicalDevice)
	if err != nil {
		return swapchainState{}, errors.Wrap(err, "querying present modes")
	}
	if len(formats) == 0 || len(modes) == 0 {
		return swapchainState{}, errors.New("surface reports no formats or present modes")
	}

	surfaceFormat, rationale := chooseSurfaceFormat(formats, r.policy.hdr, r.policy.extendedColorSpace, r.policy.hdrFlavor)
	presentMode := choosePresentMode(modes, r.policy.vsync, r.policy.vsyncMode)
	extent := chooseExtent(caps, size)
	imageCount := chooseImageCount(caps, presentMode)

	oldSwapchain := r.swapchain

	swapchain, _, err := r.swapchainExtension.CreateSwapchain(nil, khr_swapchain.SwapchainCreateInfo{
		Surface: r.surface,

		MinImageCount:    imageCount,
		ImageFormat:      surfaceFormat.Format,
		ImageColorSpace:  surfaceFormat.ColorSpace,
		ImageExtent:      extent,
		ImageArrayLayers: 1,
		ImageUsage:       core1_0.ImageUsageColorAttachment,

		ImageSharingMode: core1_0.SharingModeExclusive,

		PreTransform:   choosePreTransform(caps),
		CompositeAlpha: chooseCompositeAlpha(caps),
		PresentMode:    presentMode,
		Clipped:        true,

		OldSwapchain: oldSwapchain,
	})
	if err != nil {
		return swapchainState{}, errors.Wrap(err, "creating swapchain")
	}

	if oldSwapchain.Initialized() {
		r.swapchainExtension.DestroySwapchain(oldSwapchain, nil)
	}

	r.swapchain = swapchain
	r.colorFormat = surfaceFormat.Format
	r.colorSpace = surfaceFormat.ColorSpace
	r.extent = extent

	images, _, err := r.swapchainExtension.GetSwapchainImages(swapchain)
	if err != nil {
		return swapchainState{}, errors.Wrap(err, "fetching swapchain images")
	}
	r.images = images

	r.imageViews = make([]core1_0.ImageView, 0, len(images))
	for _, image := range images {
		view, err := r.createImageView(image, r.colorFormat, core1_0.ImageAspectColor)
		if err != nil {
			return swapchainState{}, err
		}
		r.imageViews = append(r.imageViews, view)
	}

	r.log.LogAttrs(context.Background(), slog.LevelInfo, "swapchain built",
		slog.String("format_rationale", rationale),
		slog.Int("width", extent.Width),
		slog.Int("height", extent.Height),
		slog.Int("images", len(images)),
		slog.String("present_mode", presentModeName(presentMode)))

	return swapchainState{format: r.colorFormat, imageCount: len(images)}, nil
}

func presentModeName(mode khr_surface.PresentMode) string {
	switch mode {
	case khr_surface.PresentModeImmediate:
		return "immediate"
	case khr_surface.PresentModeMailbox:
		return "mailbox"
	case khr_surface.PresentModeFIFO:
		return "fifo"
	}
	return "other"
}

// applyHDRMetadata reacts to the color space of the new chain. The Vulkan
// binding exposes no VK_EXT_hdr_metadata entry points, so HDR10 presents with
// the driver's default mastering metadata; activation is logged so the mode
// is observable in the field.
func (r *Renderer) applyHDRMetadata() {
	if r.colorSpace != colorSpaceHDR10ST2084 {
		return
	}
	r.log.LogAttrs(context.Background(), slog.LevelInfo, "hdr10 active",
		slog.String("mastering_metadata", "driver_default"))
}

// rebuildDepth recreates the depth attachment for the current extent. The
// depth format itself was chosen once at construction and never moves.
func (r *Renderer) rebuildDepth() error {
	if r.depthView.Initialized() {
		r.deviceDriver.DestroyImageView(r.depthView, nil)
		r.depthView = core1_0.ImageView{}
	}
	if r.depthImage.Initialized() {
		r.deviceDriver.DestroyImage(r.depthImage, nil)
		r.depthImage = core1_0.Image{}
	}
	if r.depthMemory.Initialized() {
		r.deviceDriver.FreeMemory(r.depthMemory, nil)
		r.depthMemory = core1_0.DeviceMemory{}
	}

	var err error
	r.depthImage, r.depthMemory, err = r.createImage(
		r.extent.Width, r.extent.Height,
		r.depthFormat,
		core1_0.ImageUsageDepthStencilAttachment,
		core1_0.MemoryPropertyDeviceLocal)
	if err != nil {
		return errors.Wrap(err, "creating depth image")
	}

	r.depthView, err = r.createImageView(r.depthImage, r.depthFormat, core1_0.ImageAspectDepth)
	if err != nil {
		return errors.Wrap(err, "creating depth view")
	}
	return nil
}

// rebuildFramebuffers creates one framebuffer per swapchain image over the
// shared depth attachment. Framebuffers die with the image views; command
// recording recreates them when they are gone.
func (r *Renderer) rebuildFramebuffers() error {
	for _, view := range r.imageViews {
		framebuffer, _, err := r.deviceDriver.CreateFramebuffer(nil, core1_0.FramebufferCreateInfo{
			RenderPass: r.renderPass,
			Layers:     1,
			Attachments: []core1_0.ImageView{
				view,
				r.depthView,
			},
			Width:  r.extent.Width,
			Height: r.extent.Height,
		})
		if err != nil {
			return errors.Wrap(err, "creating framebuffer")
		}
		r.framebuffers = append(r.framebuffers, framebuffer)
	}
	return nil
}
