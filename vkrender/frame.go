package vkrender

import (
	"context"
	"log/slog"
	"math"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_surface"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"

	"github.com/brendenhoffman/CubicEngine/render"
)

// staleBackoffFrames is how many frames to skip after the driver reports the
// swapchain stale. Compositors often deliver a burst of staleness during
// interactive resizes; pausing briefly avoids rebuilding on every one.
const staleBackoffFrames = 2

const (
	cameraFovY = math.Pi / 3
	cameraNear = 0.1
	cameraFar  = 100.0
)

// skipFrame applies the frame gates: a paused renderer renders nothing, and
// every pending backoff frame is consumed without touching the device.
func (r *Renderer) skipFrame() bool {
	if r.paused {
		return true
	}
	if r.backoffFrames > 0 {
		r.backoffFrames--
		return true
	}
	return false
}

// Render implements render.Renderer. One call records nothing new in the
// common case: command buffers are pre-recorded per image, so a frame is
// wait, acquire, camera update, submit, present.
func (r *Renderer) Render() error {
	if r.skipFrame() {
		return nil
	}

	if err := r.pollShaderReload(); err != nil {
		return err
	}

	caps, _, err := r.surfaceExtension.GetPhysicalDeviceSurfaceCapabilities(r.surface, r.physicalDevice)
	if err != nil {
		r.paused = true
		r.log.LogAttrs(context.Background(), slog.LevelWarn, "surface query failed, pausing",
			slog.String("error", err.Error()))
		return nil
	}
	if caps.CurrentExtent.Width == 0 || caps.CurrentExtent.Height == 0 {
		r.paused = true
		return nil
	}

	if err := r.ring.waitReusable(r); err != nil {
		return err
	}

	slot := r.ring.current()
	imageIndex, res, err := r.swapchainExtension.AcquireNextImage(r.swapchain, common.NoTimeout, &slot.semaphore, nil)
	switch {
	case res == khr_swapchain.VKErrorOutOfDate || res == khr_swapchain.VKSuboptimal:
		r.backoffFrames = staleBackoffFrames
		return r.recoverStale(caps)
	case res == khr_surface.VKErrorSurfaceLost:
		return r.recoverSurfaceLoss()
	case res == core1_0.VKErrorDeviceLost:
		return errors.Wrap(err, "device lost during acquire")
	case err != nil:
		return errors.Wrap(err, "acquiring swapchain image")
	}

	r.updateCamera(imageIndex)

	next := r.ring.nextValue()
	res, err = r.sync.submitFrame(r.queue, frameSubmit{
		waitAcquire:    slot.semaphore,
		waitStage:      core1_0.PipelineStageColorAttachmentOutput,
		commandBuffer:  r.commandBuffers[imageIndex],
		signalPresent:  r.presentDone[imageIndex],
		signalTimeline: r.timeline,
		timelineValue:  next,
	})
	if err != nil {
		if res == core1_0.VKErrorDeviceLost {
			return errors.Wrap(err, "device lost during submit")
		}
		return errors.Wrap(err, "submitting frame")
	}
	// The timeline only moves forward on a submission the queue accepted.
	r.ring.commit(next)

	res, err = r.swapchainExtension.QueuePresent(r.queue, khr_swapchain.PresentInfo{
		WaitSemaphores: []core1_0.Semaphore{r.presentDone[imageIndex]},
		Swapchains:     []khr_swapchain.Swapchain{r.swapchain},
		ImageIndices:   []int{imageIndex},
	})
	switch {
	case res == khr_swapchain.VKErrorOutOfDate || res == khr_swapchain.VKSuboptimal:
		r.backoffFrames = staleBackoffFrames
		return r.recoverStale(caps)
	case res == khr_surface.VKErrorSurfaceLost:
		return r.recoverSurfaceLoss()
	case res == core1_0.VKErrorDeviceLost:
		return errors.Wrap(err, "device lost during present")
	case err != nil:
		return errors.Wrap(err, "presenting frame")
	}

	r.ring.advance()
	return nil
}

// recoverStale rebuilds at the extent the surface reports now. The rebuild
// resets the acquire ring, so no slot rotation happens on this path.
func (r *Renderer) recoverStale(caps *khr_surface.SurfaceCapabilities) error {
	r.log.LogAttrs(context.Background(), slog.LevelDebug, "swapchain stale, rebuilding")
	return r.rebuildNow(render.Size{
		Width:  uint32(caps.CurrentExtent.Width),
		Height: uint32(caps.CurrentExtent.Height),
	})
}

// surfaceRecoveryHost is the slice of the renderer that surface-loss
// recovery drives. The renderer implements it against the device; tests
// exercise the retry policy with a spy.
type surfaceRecoveryHost interface {
	recreateSurface() error
	rebuildAtCurrentExtent() error
}

// recoverLostSurface replaces the surface and retries the swapchain build on
// it once, reporting whether rendering can continue. A failure on either step
// means the window is gone for now; the caller pauses instead of surfacing a
// fatal error.
func recoverLostSurface(h surfaceRecoveryHost, log *slog.Logger) bool {
	if err := h.recreateSurface(); err != nil {
		log.LogAttrs(context.Background(), slog.LevelError, "surface unrecoverable, pausing",
			slog.String("error", err.Error()))
		return false
	}
	if err := h.rebuildAtCurrentExtent(); err != nil {
		log.LogAttrs(context.Background(), slog.LevelError, "rebuild on recreated surface failed, pausing",
			slog.String("error", err.Error()))
		return false
	}
	return true
}

func (r *Renderer) recoverSurfaceLoss() error {
	if !recoverLostSurface(r, r.log) {
		r.paused = true
	}
	return nil
}

// pollShaderReload swaps in replacement bytecode from the reload trigger and
// rebuilds the pipeline. The swapchain stays; only the pipeline and the
// recorded commands change.
func (r *Renderer) pollShaderReload() error {
	if r.reload == nil {
		return nil
	}
	vert, frag, ok := r.reload.Poll()
	if !ok {
		return nil
	}
	if len(vert) == 0 || len(frag) == 0 || len(vert)%4 != 0 || len(frag)%4 != 0 {
		r.log.LogAttrs(context.Background(), slog.LevelWarn, "ignoring invalid shader reload")
		return nil
	}
	r.vertCode = vert
	r.fragCode = frag

	if err := r.waitRetired(); err != nil {
		return err
	}
	if err := r.rebuildPipeline(); err != nil {
		r.log.LogAttrs(context.Background(), slog.LevelWarn, "shader reload rejected",
			slog.String("error", err.Error()))
		return nil
	}
	if err := r.recordCommands(); err != nil {
		return err
	}
	r.log.LogAttrs(context.Background(), slog.LevelInfo, "shaders reloaded")
	return nil
}

// updateCamera writes this image's camera block through its persistent
// mapping. The projection swaps the near and far planes, which together with
// the GreaterOrEqual depth test gives the reverse depth mapping.
func (r *Renderer) updateCamera(imageIndex int) {
	aspect := float32(r.extent.Width) / float32(r.extent.Height)

	ubo := cameraUniform{}
	ubo.MVP.SetPerspective(cameraFovY, aspect, cameraFar, cameraNear)

	*(*cameraUniform)(r.uniformPtrs[imageIndex]) = ubo
}
