// Package vkrender implements the Vulkan presentation backend: device and
// swapchain lifecycle, per-frame synchronization on a render timeline, and
// the built-in textured geometry pipeline.
package vkrender

import (
	"context"
	"log/slog"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/veandco/go-sdl2/sdl"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/ext_debug_utils"
	"github.com/vkngwrapper/extensions/v3/khr_surface"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"

	"github.com/brendenhoffman/CubicEngine/render"
)

// runtimePolicy is the adjustable presentation policy. Every field change
// that affects the swapchain triggers a rebuild at the current extent.
type runtimePolicy struct {
	vsync     bool
	vsyncMode render.VsyncMode
	hdr       bool
	hdrFlavor render.HdrFlavor
	// extendedColorSpace records whether the colorspace instance extension
	// was enabled. Fixed at instance creation; HDR requests without it
	// silently resolve to SDR.
	extendedColorSpace bool
}

// Renderer is the Vulkan implementation of render.Renderer for one window.
type Renderer struct {
	log    *slog.Logger
	window *sdl.Window

	globalDriver   core1_0.GlobalDriver
	instanceDriver core1_0.CoreInstanceDriver
	deviceDriver   core1_0.CoreDeviceDriver
	sync           syncDriver
	path           renderPath

	debugDriver    ext_debug_utils.ExtensionDriver
	debugMessenger ext_debug_utils.DebugUtilsMessenger

	surfaceExtension khr_surface.ExtensionDriver
	surface          khr_surface.Surface

	physicalDevice core1_0.PhysicalDevice
	queueFamily    int
	queue          core1_0.Queue
	choice         deviceChoice

	swapchainExtension khr_swapchain.ExtensionDriver

	swapchain    khr_swapchain.Swapchain
	colorFormat  core1_0.Format
	colorSpace   khr_surface.ColorSpace
	extent       core1_0.Extent2D
	images       []core1_0.Image
	imageViews   []core1_0.ImageView
	framebuffers []core1_0.Framebuffer
	presentDone  []core1_0.Semaphore

	depthFormat core1_0.Format
	depthImage  core1_0.Image
	depthMemory core1_0.DeviceMemory
	depthView   core1_0.ImageView

	cameraLayout   core1_0.DescriptorSetLayout
	materialLayout core1_0.DescriptorSetLayout

	uniformBuffers []core1_0.Buffer
	uniformMemory  []core1_0.DeviceMemory
	uniformPtrs    []unsafe.Pointer
	descriptorPool core1_0.DescriptorPool
	descriptorSets []core1_0.DescriptorSet

	materialPool   core1_0.DescriptorPool
	materialSet    core1_0.DescriptorSet
	textureImage   core1_0.Image
	textureMemory  core1_0.DeviceMemory
	textureView    core1_0.ImageView
	textureSampler core1_0.Sampler

	vertexBuffer core1_0.Buffer
	vertexMemory core1_0.DeviceMemory
	indexBuffer  core1_0.Buffer
	indexMemory  core1_0.DeviceMemory
	indexCount   int

	pipelineCache  core1_0.PipelineCache
	cachePath      string
	pipelineLayout core1_0.PipelineLayout
	// renderPassFormat is the color format the current render pass was built
	// for; a pipeline rebuild replaces the pass only when it moved.
	renderPass       core1_0.RenderPass
	renderPassFormat core1_0.Format
	pipeline         core1_0.Pipeline
	vertCode         []byte
	fragCode         []byte

	commandPool    core1_0.CommandPool
	commandBuffers []core1_0.CommandBuffer

	timeline core1_0.Semaphore
	ring     frameRing

	policy     runtimePolicy
	clearColor [4]float32
	paused     bool
	// backoffFrames counts frames to skip after the surface reported a
	// stale swapchain, giving the compositor time to settle.
	backoffFrames int

	reload render.ReloadTrigger
}

var _ render.Renderer = (*Renderer)(nil)

// New creates a renderer for the window. The window must have been created
// with the SDL Vulkan flag. Device and render path selection happen here: a
// device that offers timeline semaphores through neither Vulkan 1.2 nor the
// VK_KHR_timeline_semaphore extension is rejected before device creation.
func New(window *sdl.Window, size render.Size, cfg render.Config) (*Renderer, error) {
	log := cfg.Logger
	if log == nil {
		log = slog.New(discardHandler{})
	}

	r := &Renderer{
		log:    log,
		window: window,
		policy: runtimePolicy{
			vsync:     cfg.Vsync,
			vsyncMode: cfg.VsyncMode,
			hdr:       cfg.HDR,
			hdrFlavor: cfg.HDRFlavor,
		},
		clearColor: cfg.ClearColor,
		reload:     cfg.Reload,
	}

	err := r.initVulkan(size, cfg)
	if err != nil {
		r.Destroy()
		return nil, err
	}
	return r, nil
}

func (r *Renderer) initVulkan(size render.Size, cfg render.Config) error {
	var err error
	r.globalDriver, err = createGlobalDriver()
	if err != nil {
		return err
	}

	err = r.createInstance(cfg.Validation)
	if err != nil {
		return err
	}

	if cfg.Validation {
		err = r.setupDebugMessenger()
		if err != nil {
			return err
		}
	}

	err = r.createSurface()
	if err != nil {
		return err
	}

	err = r.pickPhysicalDevice(cfg.ForceExtensionPath)
	if err != nil {
		return err
	}

	err = r.createLogicalDevice()
	if err != nil {
		return err
	}

	// The depth format is a device property; it is chosen once here and
	// every depth attachment rebuild reuses it.
	r.depthFormat, err = chooseDepthFormat(r.physicalDevice, r.instanceDriver)
	if err != nil {
		return err
	}

	err = r.createTimeline()
	if err != nil {
		return err
	}

	err = r.createCommandPool()
	if err != nil {
		return err
	}

	err = r.openPipelineCache(cfg.CacheDir)
	if err != nil {
		return err
	}

	err = r.createDescriptorSetLayouts()
	if err != nil {
		return err
	}

	err = r.createPipelineLayout()
	if err != nil {
		return err
	}

	err = r.loadShaders()
	if err != nil {
		return err
	}

	err = r.createGeometry(cfg.Mesh)
	if err != nil {
		return err
	}

	err = r.createMaterial()
	if err != nil {
		return err
	}

	// The initial swapchain build runs through the same machinery as every
	// later rebuild; the zero state forces the pipeline and command buffer
	// steps to run.
	_, built, err := rebuildSwapchain(r, size, swapchainState{})
	if err != nil {
		return err
	}
	r.paused = !built
	return nil
}

// Resize implements render.Renderer. A zero-area size pauses rendering; any
// other size rebuilds the swapchain immediately rather than waiting for the
// driver to report it stale.
func (r *Renderer) Resize(size render.Size) error {
	if size.IsZero() {
		r.paused = true
		r.log.LogAttrs(context.Background(), slog.LevelDebug, "paused on zero-area resize")
		return nil
	}
	return r.rebuildNow(size)
}

// rebuildNow rebuilds the swapchain at the given size and updates the pause
// state from the outcome.
func (r *Renderer) rebuildNow(size render.Size) error {
	old := swapchainState{format: r.colorFormat, imageCount: len(r.images)}
	_, built, err := rebuildSwapchain(r, size, old)
	if err != nil {
		return err
	}
	r.paused = !built
	return nil
}

// rebuildAtCurrentExtent re-queries the surface and rebuilds at whatever
// size it reports now. Used for policy changes and stale-swapchain recovery,
// where the window system, not the caller, knows the real size.
func (r *Renderer) rebuildAtCurrentExtent() error {
	caps, _, err := r.surfaceExtension.GetPhysicalDeviceSurfaceCapabilities(r.surface, r.physicalDevice)
	if err != nil {
		r.paused = true
		return nil
	}
	size := render.Size{Width: uint32(caps.CurrentExtent.Width), Height: uint32(caps.CurrentExtent.Height)}
	if size.IsZero() {
		r.paused = true
		return nil
	}
	return r.rebuildNow(size)
}

// SetClearColor implements render.Renderer. Only the recorded commands
// change; the swapchain is untouched.
func (r *Renderer) SetClearColor(rgba [4]float32) {
	if r.clearColor == rgba {
		return
	}
	r.clearColor = rgba
	if r.paused {
		return
	}
	if err := r.waitRetired(); err != nil {
		r.log.LogAttrs(context.Background(), slog.LevelWarn, "clear color re-record wait failed",
			slog.String("error", err.Error()))
		return
	}
	if err := r.recordCommands(); err != nil {
		r.log.LogAttrs(context.Background(), slog.LevelWarn, "clear color re-record failed",
			slog.String("error", err.Error()))
	}
}

// SetVsync implements render.Renderer.
func (r *Renderer) SetVsync(on bool) {
	if r.policy.vsync == on {
		return
	}
	r.policy.vsync = on
	r.applyPolicy("vsync")
}

// SetVsyncMode implements render.Renderer.
func (r *Renderer) SetVsyncMode(mode render.VsyncMode) {
	if r.policy.vsyncMode == mode {
		return
	}
	r.policy.vsyncMode = mode
	r.applyPolicy("vsync_mode")
}

// SetHDREnabled implements render.Renderer.
func (r *Renderer) SetHDREnabled(on bool) {
	if r.policy.hdr == on {
		return
	}
	r.policy.hdr = on
	r.applyPolicy("hdr")
}

// SetHDRFlavor implements render.Renderer.
func (r *Renderer) SetHDRFlavor(flavor render.HdrFlavor) {
	if r.policy.hdrFlavor == flavor {
		return
	}
	r.policy.hdrFlavor = flavor
	r.applyPolicy("hdr_flavor")
}

func (r *Renderer) applyPolicy(what string) {
	if r.paused {
		// The next unpause rebuilds anyway.
		return
	}
	if err := r.rebuildAtCurrentExtent(); err != nil {
		r.log.LogAttrs(context.Background(), slog.LevelWarn, "policy change rebuild failed",
			slog.String("setting", what),
			slog.String("error", err.Error()))
	}
}

// Destroy implements render.Renderer.
func (r *Renderer) Destroy() {
	runTeardown(r)
}

// waitRetired blocks until the last successfully submitted frame retired.
// Fresh timelines need no wait.
func (r *Renderer) waitRetired() error {
	if r.ring.value == 0 {
		return nil
	}
	return r.waitTimeline(r.ring.value)
}

// waitTimeline implements timelineWaiter against the render timeline
// semaphore.
func (r *Renderer) waitTimeline(value uint64) error {
	res, err := r.sync.waitTimeline(r.timeline, value)
	if err != nil {
		return errors.Wrapf(err, "timeline wait for %d failed (%s)", value, res)
	}
	return nil
}

func (r *Renderer) quiesce() error {
	if r.deviceDriver == nil {
		return nil
	}
	_, err := r.deviceDriver.DeviceWaitIdle()
	return err
}

// releaseImageResources tears down everything tied to the current swapchain
// images: their framebuffers and views, the per-image present semaphores, and
// the acquire slot semaphores. The swapchain handle itself survives so the
// replacement build can chain from it.
func (r *Renderer) releaseImageResources() {
	for _, framebuffer := range r.framebuffers {
		r.deviceDriver.DestroyFramebuffer(framebuffer, nil)
	}
	r.framebuffers = nil

	for _, view := range r.imageViews {
		r.deviceDriver.DestroyImageView(view, nil)
	}
	r.imageViews = nil
	r.images = nil

	for _, semaphore := range r.presentDone {
		r.deviceDriver.DestroySemaphore(semaphore, nil)
	}
	r.presentDone = nil

	for i := range r.ring.slots {
		if r.ring.slots[i].semaphore.Initialized() {
			r.deviceDriver.DestroySemaphore(r.ring.slots[i].semaphore, nil)
			r.ring.slots[i].semaphore = core1_0.Semaphore{}
		}
	}
}

func (r *Renderer) releaseFrameUniforms() {
	for i := range r.uniformBuffers {
		if len(r.uniformPtrs) > i && r.uniformPtrs[i] != nil {
			r.deviceDriver.UnmapMemory(r.uniformMemory[i])
		}
		r.deviceDriver.DestroyBuffer(r.uniformBuffers[i], nil)
		r.deviceDriver.FreeMemory(r.uniformMemory[i], nil)
	}
	r.uniformBuffers = nil
	r.uniformMemory = nil
	r.uniformPtrs = nil
	r.descriptorSets = nil

	if r.descriptorPool.Initialized() {
		r.deviceDriver.DestroyDescriptorPool(r.descriptorPool, nil)
		r.descriptorPool = core1_0.DescriptorPool{}
	}
}

// rebuildSemaphores recreates the per-image present semaphores and the
// acquire slot semaphores. The acquire semaphores are replaced rather than
// reused: an acquire that signaled but never reached a submission leaves a
// binary semaphore stuck signaled, which a fresh handle sidesteps.
func (r *Renderer) rebuildSemaphores(imageCount int) error {
	r.presentDone = make([]core1_0.Semaphore, 0, imageCount)
	for i := 0; i < imageCount; i++ {
		semaphore, _, err := r.deviceDriver.CreateSemaphore(nil, core1_0.SemaphoreCreateInfo{})
		if err != nil {
			return errors.Wrap(err, "creating present semaphore")
		}
		r.presentDone = append(r.presentDone, semaphore)
	}

	var slots [acquireSlotCount]core1_0.Semaphore
	for i := range slots {
		semaphore, _, err := r.deviceDriver.CreateSemaphore(nil, core1_0.SemaphoreCreateInfo{})
		if err != nil {
			return errors.Wrap(err, "creating acquire semaphore")
		}
		slots[i] = semaphore
	}
	r.ring.rebind(slots)
	return nil
}

func (r *Renderer) destroySwapchainGroup() {
	r.releaseImageResources()

	if r.swapchain.Initialized() {
		r.swapchainExtension.DestroySwapchain(r.swapchain, nil)
		r.swapchain = khr_swapchain.Swapchain{}
	}

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
}

func (r *Renderer) destroyFrameGroup() {
	r.releaseFrameUniforms()
}

func (r *Renderer) destroyDeviceGroup() {
	if r.deviceDriver != nil {
		if r.pipeline.Initialized() {
			r.deviceDriver.DestroyPipeline(r.pipeline, nil)
		}
		if r.renderPass.Initialized() {
			r.deviceDriver.DestroyRenderPass(r.renderPass, nil)
		}
		if r.pipelineLayout.Initialized() {
			r.deviceDriver.DestroyPipelineLayout(r.pipelineLayout, nil)
		}
		if r.cameraLayout.Initialized() {
			r.deviceDriver.DestroyDescriptorSetLayout(r.cameraLayout, nil)
		}
		if r.materialLayout.Initialized() {
			r.deviceDriver.DestroyDescriptorSetLayout(r.materialLayout, nil)
		}
		if r.materialPool.Initialized() {
			r.deviceDriver.DestroyDescriptorPool(r.materialPool, nil)
		}

		if r.textureSampler.Initialized() {
			r.deviceDriver.DestroySampler(r.textureSampler, nil)
		}
		if r.textureView.Initialized() {
			r.deviceDriver.DestroyImageView(r.textureView, nil)
		}
		if r.textureImage.Initialized() {
			r.deviceDriver.DestroyImage(r.textureImage, nil)
		}
		if r.textureMemory.Initialized() {
			r.deviceDriver.FreeMemory(r.textureMemory, nil)
		}

		if r.indexBuffer.Initialized() {
			r.deviceDriver.DestroyBuffer(r.indexBuffer, nil)
		}
		if r.indexMemory.Initialized() {
			r.deviceDriver.FreeMemory(r.indexMemory, nil)
		}
		if r.vertexBuffer.Initialized() {
			r.deviceDriver.DestroyBuffer(r.vertexBuffer, nil)
		}
		if r.vertexMemory.Initialized() {
			r.deviceDriver.FreeMemory(r.vertexMemory, nil)
		}

		if r.timeline.Initialized() {
			r.deviceDriver.DestroySemaphore(r.timeline, nil)
		}
		if r.commandPool.Initialized() {
			r.deviceDriver.DestroyCommandPool(r.commandPool, nil)
		}

		r.savePipelineCache()
		if r.pipelineCache.Initialized() {
			r.deviceDriver.DestroyPipelineCache(r.pipelineCache, nil)
		}

		r.deviceDriver.DestroyDevice(nil)
		r.deviceDriver = nil
	}

	if r.debugMessenger.Initialized() {
		r.debugDriver.DestroyDebugUtilsMessenger(r.debugMessenger, nil)
		r.debugMessenger = ext_debug_utils.DebugUtilsMessenger{}
	}

	if r.surface.Initialized() {
		r.surfaceExtension.DestroySurface(r.surface, nil)
		r.surface = khr_surface.Surface{}
	}

	if r.instanceDriver != nil {
		r.instanceDriver.DestroyInstance(nil)
		r.instanceDriver = nil
	}
}

// discardHandler drops every record. Used when no logger is configured.
type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (discardHandler) WithAttrs([]slog.Attr) slog.Handler        { return discardHandler{} }
func (discardHandler) WithGroup(string) slog.Handler             { return discardHandler{} }
