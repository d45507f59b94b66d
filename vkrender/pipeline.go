package vkrender

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"
)

// cacheFileName derives a per-device cache file name so caches from
// different GPUs or driver versions never collide.
func cacheFileName(props *core1_0.PhysicalDeviceProperties) string {
	return fmt.Sprintf("vk_pipeline_cache_%04x_%04x_%08x_%s.bin",
		props.VendorID, props.DeviceID, props.DriverVersion, props.PipelineCacheUUID)
}

// validateCacheHeader checks the standard pipeline cache header against the
// running device. A cache from another device or driver build is worse than
// no cache: the driver would parse and reject it on every creation.
func validateCacheHeader(data []byte, props *core1_0.PhysicalDeviceProperties) bool {
	reader := bytes.NewReader(data)

	var headerLength uint32
	var headerVersion core1_0.PipelineCacheHeaderVersion
	var vendorID, deviceID uint32
	var cacheUUID uuid.UUID

	for _, field := range []any{&headerLength, &headerVersion, &vendorID, &deviceID, &cacheUUID} {
		if err := binary.Read(reader, common.ByteOrder, field); err != nil {
			return false
		}
	}

	return headerLength > 0 &&
		headerVersion == core1_0.PipelineCacheHeaderVersionOne &&
		vendorID == uint32(props.VendorID) &&
		deviceID == uint32(props.DeviceID) &&
		cacheUUID == props.PipelineCacheUUID
}

// openPipelineCache creates the pipeline cache, seeded from disk when a
// valid cache file for this device exists.
func (r *Renderer) openPipelineCache(dir string) error {
	props, err := r.instanceDriver.GetPhysicalDeviceProperties(r.physicalDevice)
	if err != nil {
		return err
	}
	r.cachePath = filepath.Join(dir, cacheFileName(props))

	var initialData []byte
	data, err := os.ReadFile(r.cachePath)
	if err == nil {
		if validateCacheHeader(data, props) {
			initialData = data
		} else {
			r.log.LogAttrs(context.Background(), slog.LevelWarn, "discarding stale pipeline cache",
				slog.String("path", r.cachePath))
			_ = os.Remove(r.cachePath)
		}
	}

	r.pipelineCache, _, err = r.deviceDriver.CreatePipelineCache(nil, core1_0.PipelineCacheCreateInfo{
		InitialData: initialData,
	})
	if err != nil {
		return errors.Wrap(err, "creating pipeline cache")
	}

	r.log.LogAttrs(context.Background(), slog.LevelDebug, "pipeline cache opened",
		slog.String("path", r.cachePath),
		slog.Bool("seeded", initialData != nil))
	return nil
}

// savePipelineCache writes the cache back to disk. Best effort: a failed
// write only costs the next run its warm start.
func (r *Renderer) savePipelineCache() {
	if !r.pipelineCache.Initialized() || r.cachePath == "" {
		return
	}
	data, _, err := r.deviceDriver.GetPipelineCacheData(r.pipelineCache)
	if err != nil {
		r.log.LogAttrs(context.Background(), slog.LevelWarn, "reading pipeline cache failed",
			slog.String("error", err.Error()))
		return
	}
	err = os.WriteFile(r.cachePath, data, 0o644)
	if err != nil {
		r.log.LogAttrs(context.Background(), slog.LevelWarn, "writing pipeline cache failed",
			slog.String("path", r.cachePath),
			slog.String("error", err.Error()))
	}
}

func bytesToBytecode(b []byte) []uint32 {
	byteCode := make([]uint32, len(b)/4)
	for i := 0; i < len(byteCode); i++ {
		byteIndex := i * 4
		byteCode[i] = 0
		byteCode[i] |= uint32(b[byteIndex])
		byteCode[i] |= uint32(b[byteIndex+1]) << 8
		byteCode[i] |= uint32(b[byteIndex+2]) << 16
		byteCode[i] |= uint32(b[byteIndex+3]) << 24
	}
	return byteCode
}

func (r *Renderer) createPipelineLayout() error {
	var err error
	r.pipelineLayout, _, err = r.deviceDriver.CreatePipelineLayout(nil, core1_0.PipelineLayoutCreateInfo{
		SetLayouts: []core1_0.DescriptorSetLayout{
			r.cameraLayout,
			r.materialLayout,
		},
	})
	return errors.Wrap(err, "creating pipeline layout")
}

// rebuildRenderPass recreates the render pass for the current color format.
// The pass clears both attachments, and its color attachment ends in the
// present layout, so the recorded commands carry no explicit layout barriers.
func (r *Renderer) rebuildRenderPass() error {
	if r.renderPass.Initialized() {
		r.deviceDriver.DestroyRenderPass(r.renderPass, nil)
		r.renderPass = core1_0.RenderPass{}
	}

	renderPass, _, err := r.deviceDriver.CreateRenderPass(nil, core1_0.RenderPassCreateInfo{
		Attachments: []core1_0.AttachmentDescription{
			{
				Format:         r.colorFormat,
				Samples:        core1_0.Samples1,
				LoadOp:         core1_0.AttachmentLoadOpClear,
				StoreOp:        core1_0.AttachmentStoreOpStore,
				StencilLoadOp:  core1_0.AttachmentLoadOpDontCare,
				StencilStoreOp: core1_0.AttachmentStoreOpDontCare,
				InitialLayout:  core1_0.ImageLayoutUndefined,
				FinalLayout:    khr_swapchain.ImageLayoutPresentSrc,
			},
			{
				Format:         r.depthFormat,
				Samples:        core1_0.Samples1,
				LoadOp:         core1_0.AttachmentLoadOpClear,
				StoreOp:        core1_0.AttachmentStoreOpDontCare,
				StencilLoadOp:  core1_0.AttachmentLoadOpDontCare,
				StencilStoreOp: core1_0.AttachmentStoreOpDontCare,
				InitialLayout:  core1_0.ImageLayoutUndefined,
				FinalLayout:    core1_0.ImageLayoutDepthStencilAttachmentOptimal,
			},
		},
		Subpasses: []core1_0.SubpassDescription{
			{
				PipelineBindPoint: core1_0.PipelineBindPointGraphics,
				ColorAttachments: []core1_0.AttachmentReference{
					{
						Attachment: 0,
						Layout:     core1_0.ImageLayoutColorAttachmentOptimal,
					},
				},
				DepthStencilAttachment: &core1_0.AttachmentReference{
					Attachment: 1,
					Layout:     core1_0.ImageLayoutDepthStencilAttachmentOptimal,
				},
			},
		},
		SubpassDependencies: []core1_0.SubpassDependency{
			{
				SrcSubpass: core1_0.SubpassExternal,
				DstSubpass: 0,

				SrcStageMask:  core1_0.PipelineStageColorAttachmentOutput | core1_0.PipelineStageEarlyFragmentTests,
				SrcAccessMask: 0,

				DstStageMask:  core1_0.PipelineStageColorAttachmentOutput | core1_0.PipelineStageEarlyFragmentTests,
				DstAccessMask: core1_0.AccessColorAttachmentWrite | core1_0.AccessDepthStencilAttachmentWrite,
			},
		},
	})
	if err != nil {
		return errors.Wrap(err, "creating render pass")
	}
	r.renderPass = renderPass
	r.renderPassFormat = r.colorFormat
	return nil
}

// rebuildPipeline recreates the graphics pipeline for the current color and
// depth formats, replacing the render pass first when the color format moved.
// Viewport and scissor are dynamic, so a pipeline survives every resize; only
// a format change forces it through here again.
func (r *Renderer) rebuildPipeline() error {
	if !r.renderPass.Initialized() || r.renderPassFormat != r.colorFormat {
		if err := r.rebuildRenderPass(); err != nil {
			return err
		}
	}

	if r.pipeline.Initialized() {
		r.deviceDriver.DestroyPipeline(r.pipeline, nil)
		r.pipeline = core1_0.Pipeline{}
	}

	vertShader, _, err := r.deviceDriver.CreateShaderModule(nil, core1_0.ShaderModuleCreateInfo{
		Code: bytesToBytecode(r.vertCode),
	})
	if err != nil {
		return errors.Wrap(err, "creating vertex shader module")
	}
	defer r.deviceDriver.DestroyShaderModule(vertShader, nil)

	fragShader, _, err := r.deviceDriver.CreateShaderModule(nil, core1_0.ShaderModuleCreateInfo{
		Code: bytesToBytecode(r.fragCode),
	})
	if err != nil {
		return errors.Wrap(err, "creating fragment shader module")
	}
	defer r.deviceDriver.DestroyShaderModule(fragShader, nil)

	vertexInput := &core1_0.PipelineVertexInputStateCreateInfo{
		VertexBindingDescriptions:   vertexBindingDescription(),
		VertexAttributeDescriptions: vertexAttributeDescriptions(),
	}

	inputAssembly := &core1_0.PipelineInputAssemblyStateCreateInfo{
		Topology: core1_0.PrimitiveTopologyTriangleList,
	}

	vertStage := core1_0.PipelineShaderStageCreateInfo{
		Stage:  core1_0.StageVertex,
		Module: vertShader,
		Name:   "main",
	}

	fragStage := core1_0.PipelineShaderStageCreateInfo{
		Stage:  core1_0.StageFragment,
		Module: fragShader,
		Name:   "main",
	}

	// One viewport and scissor slot, provided at record time.
	viewport := &core1_0.PipelineViewportStateCreateInfo{
		Viewports: []core1_0.Viewport{{}},
		Scissors:  []core1_0.Rect2D{{}},
	}

	dynamicState := &core1_0.PipelineDynamicStateCreateInfo{
		DynamicStates: []core1_0.DynamicState{
			core1_0.DynamicStateViewport,
			core1_0.DynamicStateScissor,
		},
	}

	rasterization := &core1_0.PipelineRasterizationStateCreateInfo{
		PolygonMode: core1_0.PolygonModeFill,
		CullMode:    core1_0.CullModeBack,
		FrontFace:   core1_0.FrontFaceCounterClockwise,
		LineWidth:   1.0,
	}

	multisample := &core1_0.PipelineMultisampleStateCreateInfo{
		RasterizationSamples: core1_0.Samples1,
		MinSampleShading:     1.0,
	}

	// Reverse depth: near is 1, far is 0.
	depthStencil := &core1_0.PipelineDepthStencilStateCreateInfo{
		DepthTestEnable:  true,
		DepthWriteEnable: true,
		DepthCompareOp:   core1_0.CompareOpGreaterOrEqual,
	}

	colorBlend := &core1_0.PipelineColorBlendStateCreateInfo{
		Attachments: []core1_0.PipelineColorBlendAttachmentState{
			{
				ColorWriteMask: core1_0.ColorComponentRed | core1_0.ColorComponentGreen |
					core1_0.ColorComponentBlue | core1_0.ColorComponentAlpha,
			},
		},
	}

	createInfo := core1_0.GraphicsPipelineCreateInfo{
		Stages: []core1_0.PipelineShaderStageCreateInfo{
			vertStage,
			fragStage,
		},
		VertexInputState:   vertexInput,
		InputAssemblyState: inputAssembly,
		ViewportState:      viewport,
		DynamicState:       dynamicState,
		RasterizationState: rasterization,
		MultisampleState:   multisample,
		DepthStencilState:  depthStencil,
		ColorBlendState:    colorBlend,
		Layout:             r.pipelineLayout,
		RenderPass:         r.renderPass,
		Subpass:            0,
		BasePipelineIndex:  -1,
	}

	pipelines, _, err := r.deviceDriver.CreateGraphicsPipelines(&r.pipelineCache, nil, createInfo)
	if err != nil {
		return errors.Wrap(err, "creating graphics pipeline")
	}
	r.pipeline = pipelines[0]
	return nil
}
