package vkrender

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"
)

func (r *Renderer) beginSingleTimeCommands() (core1_0.CommandBuffer, error) {
	buffers, _, err := r.deviceDriver.AllocateCommandBuffers(core1_0.CommandBufferAllocateInfo{
		CommandPool:        r.commandPool,
		Level:              core1_0.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	})
	if err != nil {
		return core1_0.CommandBuffer{}, err
	}

	buffer := buffers[0]
	_, err = r.deviceDriver.BeginCommandBuffer(buffer, core1_0.CommandBufferBeginInfo{
		Flags: core1_0.CommandBufferUsageOneTimeSubmit,
	})
	return buffer, err
}

func (r *Renderer) endSingleTimeCommands(buffer core1_0.CommandBuffer) error {
	_, err := r.deviceDriver.EndCommandBuffer(buffer)
	if err != nil {
		return err
	}

	_, err = r.deviceDriver.QueueSubmit(r.queue, nil,
		core1_0.SubmitInfo{
			CommandBuffers: []core1_0.CommandBuffer{buffer},
		},
	)
	if err != nil {
		return err
	}

	_, err = r.deviceDriver.QueueWaitIdle(r.queue)
	if err != nil {
		return err
	}

	r.deviceDriver.FreeCommandBuffers(buffer)
	return nil
}

func (r *Renderer) copyBuffer(srcBuffer core1_0.Buffer, dstBuffer core1_0.Buffer, size int) error {
	buffer, err := r.beginSingleTimeCommands()
	if err != nil {
		return err
	}

	err = r.deviceDriver.CmdCopyBuffer(buffer, srcBuffer, dstBuffer,
		core1_0.BufferCopy{
			SrcOffset: 0,
			DstOffset: 0,
			Size:      size,
		},
	)
	if err != nil {
		return err
	}

	return r.endSingleTimeCommands(buffer)
}

func (r *Renderer) copyBufferToImage(buffer core1_0.Buffer, image core1_0.Image, width, height int) error {
	cmdBuffer, err := r.beginSingleTimeCommands()
	if err != nil {
		return err
	}

	err = r.deviceDriver.CmdCopyBufferToImage(cmdBuffer, buffer, image, core1_0.ImageLayoutTransferDstOptimal,
		core1_0.BufferImageCopy{
			ImageSubresource: core1_0.ImageSubresourceLayers{
				AspectMask: core1_0.ImageAspectColor,
				LayerCount: 1,
			},
			ImageExtent: core1_0.Extent3D{Width: width, Height: height, Depth: 1},
		},
	)
	if err != nil {
		return err
	}

	return r.endSingleTimeCommands(cmdBuffer)
}

// transitionImageLayout runs an upload-path barrier. Frame rendering leaves
// layout transitions to the render pass; only uploads transition explicitly.
func (r *Renderer) transitionImageLayout(image core1_0.Image, oldLayout core1_0.ImageLayout, newLayout core1_0.ImageLayout) error {
	buffer, err := r.beginSingleTimeCommands()
	if err != nil {
		return err
	}

	var sourceStage, destStage core1_0.PipelineStageFlags
	var sourceAccess, destAccess core1_0.AccessFlags

	if oldLayout == core1_0.ImageLayoutUndefined && newLayout == core1_0.ImageLayoutTransferDstOptimal {
		sourceAccess = 0
		destAccess = core1_0.AccessTransferWrite
		sourceStage = core1_0.PipelineStageTopOfPipe
		destStage = core1_0.PipelineStageTransfer
	} else if oldLayout == core1_0.ImageLayoutTransferDstOptimal && newLayout == core1_0.ImageLayoutShaderReadOnlyOptimal {
		sourceAccess = core1_0.AccessTransferWrite
		destAccess = core1_0.AccessShaderRead
		sourceStage = core1_0.PipelineStageTransfer
		destStage = core1_0.PipelineStageFragmentShader
	} else {
		return errors.Newf("unexpected layout transition: %s -> %s", oldLayout, newLayout)
	}

	err = r.deviceDriver.CmdPipelineBarrier(buffer, sourceStage, destStage, 0, nil, nil, []core1_0.ImageMemoryBarrier{
		{
			OldLayout:           oldLayout,
			NewLayout:           newLayout,
			SrcQueueFamilyIndex: -1,
			DstQueueFamilyIndex: -1,
			Image:               image,
			SubresourceRange: core1_0.ImageSubresourceRange{
				AspectMask: core1_0.ImageAspectColor,
				LevelCount: 1,
				LayerCount: 1,
			},
			SrcAccessMask: sourceAccess,
			DstAccessMask: destAccess,
		},
	})
	if err != nil {
		return err
	}

	return r.endSingleTimeCommands(buffer)
}

// reallocCommandBuffers frees the per-image command buffers and allocates a
// fresh set, one per swapchain image.
func (r *Renderer) reallocCommandBuffers(imageCount int) error {
	if len(r.commandBuffers) > 0 {
		r.deviceDriver.FreeCommandBuffers(r.commandBuffers...)
		r.commandBuffers = nil
	}

	buffers, _, err := r.deviceDriver.AllocateCommandBuffers(core1_0.CommandBufferAllocateInfo{
		CommandPool:        r.commandPool,
		Level:              core1_0.CommandBufferLevelPrimary,
		CommandBufferCount: imageCount,
	})
	if err != nil {
		return errors.Wrap(err, "allocating command buffers")
	}
	r.commandBuffers = buffers
	return nil
}

// recordCommands re-records every per-image command buffer: one render pass
// over the geometry, recreating the framebuffers first when the swapchain's
// views changed underneath them. The render pass clears both attachments and
// hands the color image to the presentation engine, so no explicit barriers
// appear here. The viewport has negative height so the world keeps a Y-up
// convention.
func (r *Renderer) recordCommands() error {
	if r.framebuffers == nil {
		if err := r.rebuildFramebuffers(); err != nil {
			return err
		}
	}

	for imageIndex, buffer := range r.commandBuffers {
		_, err := r.deviceDriver.ResetCommandBuffer(buffer, 0)
		if err != nil {
			return err
		}
		_, err = r.deviceDriver.BeginCommandBuffer(buffer, core1_0.CommandBufferBeginInfo{})
		if err != nil {
			return err
		}

		// Depth clears to zero: reverse depth maps the far plane to 0 and
		// compares with GreaterOrEqual.
		err = r.deviceDriver.CmdBeginRenderPass(buffer, core1_0.SubpassContentsInline,
			core1_0.RenderPassBeginInfo{
				RenderPass:  r.renderPass,
				Framebuffer: r.framebuffers[imageIndex],
				RenderArea: core1_0.Rect2D{
					Extent: r.extent,
				},
				ClearValues: []core1_0.ClearValue{
					core1_0.ClearValueFloat{
						r.clearColor[0], r.clearColor[1], r.clearColor[2], r.clearColor[3],
					},
					core1_0.ClearValueDepthStencil{Depth: 0.0, Stencil: 0},
				},
			})
		if err != nil {
			return err
		}

		r.deviceDriver.CmdBindPipeline(buffer, core1_0.PipelineBindPointGraphics, r.pipeline)

		r.deviceDriver.CmdSetViewport(buffer, []core1_0.Viewport{
			{
				X:        0,
				Y:        float32(r.extent.Height),
				Width:    float32(r.extent.Width),
				Height:   -float32(r.extent.Height),
				MinDepth: 0,
				MaxDepth: 1,
			},
		}...)
		r.deviceDriver.CmdSetScissor(buffer, []core1_0.Rect2D{
			{
				Extent: r.extent,
			},
		}...)

		r.deviceDriver.CmdBindDescriptorSets(buffer, core1_0.PipelineBindPointGraphics, r.pipelineLayout, 0,
			[]core1_0.DescriptorSet{
				r.descriptorSets[imageIndex],
				r.materialSet,
			}, nil)
		r.deviceDriver.CmdBindVertexBuffers(buffer, 0, []core1_0.Buffer{r.vertexBuffer}, []int{0})
		r.deviceDriver.CmdBindIndexBuffer(buffer, r.indexBuffer, 0, core1_0.IndexTypeUInt32)
		r.deviceDriver.CmdDrawIndexed(buffer, r.indexCount, 1, 0, 0, 0)

		r.deviceDriver.CmdEndRenderPass(buffer)

		_, err = r.deviceDriver.EndCommandBuffer(buffer)
		if err != nil {
			return err
		}
	}
	return nil
}
