package vkrender

import (
	"github.com/vkngwrapper/core/v3/core1_0"

	"github.com/brendenhoffman/CubicEngine/render"
)

// swapchainState is the part of a swapchain build that later rebuild steps
// condition on: pipelines depend on the color format, command buffer
// allocation depends on the image count.
type swapchainState struct {
	format     core1_0.Format
	imageCount int
}

// swapchainHost is the set of ordered operations a swapchain rebuild is made
// of. The renderer implements it against the device; tests drive the
// sequencing logic with a spy.
type swapchainHost interface {
	// waitRetired blocks until every submitted frame has retired.
	waitRetired() error
	// quiesce waits for the device to go fully idle.
	quiesce() error
	// releaseImageResources destroys the image views and the per-image and
	// per-slot semaphores of the outgoing swapchain.
	releaseImageResources()
	// releaseFrameUniforms destroys the per-image uniform buffers and the
	// descriptor pool that allocated their sets.
	releaseFrameUniforms()
	// buildSwapchain creates the replacement swapchain, handing the old
	// handle to the driver for buffered-frame reuse, then destroys the old
	// handle. It reports the properties rebuild decisions depend on.
	buildSwapchain(size render.Size) (swapchainState, error)
	// applyHDRMetadata reacts to the new chain's color space when the
	// selected mode calls for display metadata.
	applyHDRMetadata()
	// rebuildDepth recreates the depth attachment at the new extent.
	rebuildDepth() error
	// rebuildFrameUniforms recreates one uniform buffer and descriptor set
	// per swapchain image.
	rebuildFrameUniforms(imageCount int) error
	// rebuildSemaphores recreates the per-image present semaphores and the
	// acquire slot semaphores, rewinding the slot ring.
	rebuildSemaphores(imageCount int) error
	// rebuildPipeline recreates the graphics pipeline. Only invoked when
	// the color format changed.
	rebuildPipeline() error
	// reallocCommandBuffers frees and reallocates the per-image command
	// buffers. Only invoked when the image count changed.
	reallocCommandBuffers(imageCount int) error
	// recordCommands re-records every per-image command buffer.
	recordCommands() error
}

// rebuildSwapchain replaces the swapchain at the requested size, running the
// host steps in dependency order. It returns the new swapchain state and
// whether a rebuild happened at all: a zero-area size is reported as
// (old, false, nil) without touching the host, and the caller pauses.
//
// Steps that merely release resources run unconditionally; the expensive
// rebuild steps are skipped when their inputs did not change -- the pipeline
// survives any rebuild that keeps the color format, and command buffers are
// reallocated only when the image count moves.
func rebuildSwapchain(h swapchainHost, size render.Size, old swapchainState) (swapchainState, bool, error) {
	if size.IsZero() {
		return old, false, nil
	}

	if err := h.waitRetired(); err != nil {
		return old, false, err
	}
	if err := h.quiesce(); err != nil {
		return old, false, err
	}

	h.releaseImageResources()
	h.releaseFrameUniforms()

	next, err := h.buildSwapchain(size)
	if err != nil {
		return old, false, err
	}
	h.applyHDRMetadata()

	if err := h.rebuildDepth(); err != nil {
		return next, false, err
	}
	if err := h.rebuildFrameUniforms(next.imageCount); err != nil {
		return next, false, err
	}
	if err := h.rebuildSemaphores(next.imageCount); err != nil {
		return next, false, err
	}
	if next.format != old.format {
		if err := h.rebuildPipeline(); err != nil {
			return next, false, err
		}
	}
	if next.imageCount != old.imageCount {
		if err := h.reallocCommandBuffers(next.imageCount); err != nil {
			return next, false, err
		}
	}
	if err := h.recordCommands(); err != nil {
		return next, false, err
	}
	return next, true, nil
}

// teardownHost splits final destruction into the three ownership groups the
// renderer maintains, ordered from most to least frequently recycled.
type teardownHost interface {
	waitRetired() error
	quiesce() error
	// destroySwapchainGroup releases everything recycled on every rebuild:
	// image views, semaphores, the swapchain handle, the depth attachment.
	destroySwapchainGroup()
	// destroyFrameGroup releases the per-image uniform buffers and their
	// descriptor pool.
	destroyFrameGroup()
	// destroyDeviceGroup releases device-lifetime objects and finally the
	// device, surface, and instance.
	destroyDeviceGroup()
}

// runTeardown drains the GPU, then destroys the three resource groups in
// dependency order. Wait errors are ignored: teardown must make progress
// even on a lost device.
func runTeardown(h teardownHost) {
	_ = h.waitRetired()
	_ = h.quiesce()
	h.destroySwapchainGroup()
	h.destroyFrameGroup()
	h.destroyDeviceGroup()
}
