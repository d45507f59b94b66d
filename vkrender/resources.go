package vkrender

import (
	"bytes"
	"encoding/binary"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
	vkngmath "github.com/vkngwrapper/math"

	"github.com/brendenhoffman/CubicEngine/render"
)

// cameraUniform is the per-frame camera block at set 0, binding 0. The
// projection already includes the reverse depth mapping.
type cameraUniform struct {
	MVP vkngmath.Mat4x4[float32]
}

// defaultMesh is the built-in test geometry: two overlapping triangles, the
// red one in front of the blue one, which makes broken depth ordering
// obvious at a glance.
func defaultMesh() *render.Mesh {
	return &render.Mesh{
		Vertices: []render.Vertex{
			{Position: [3]float32{-0.6, -0.5, 0.3}, Color: [3]float32{1, 0.1, 0.1}, UV: [2]float32{0, 0}},
			{Position: [3]float32{0.4, -0.5, 0.3}, Color: [3]float32{1, 0.1, 0.1}, UV: [2]float32{1, 0}},
			{Position: [3]float32{-0.1, 0.5, 0.3}, Color: [3]float32{1, 0.1, 0.1}, UV: [2]float32{0.5, 1}},

			{Position: [3]float32{-0.4, -0.3, 0.6}, Color: [3]float32{0.1, 0.1, 1}, UV: [2]float32{0, 0}},
			{Position: [3]float32{0.6, -0.3, 0.6}, Color: [3]float32{0.1, 0.1, 1}, UV: [2]float32{1, 0}},
			{Position: [3]float32{0.1, 0.7, 0.6}, Color: [3]float32{0.1, 0.1, 1}, UV: [2]float32{0.5, 1}},
		},
		Indices: []uint32{0, 1, 2, 3, 4, 5},
	}
}

func vertexBindingDescription() []core1_0.VertexInputBindingDescription {
	return []core1_0.VertexInputBindingDescription{
		{
			Binding:   0,
			Stride:    int(unsafe.Sizeof(render.Vertex{})),
			InputRate: core1_0.VertexInputRateVertex,
		},
	}
}

func vertexAttributeDescriptions() []core1_0.VertexInputAttributeDescription {
	v := render.Vertex{}
	return []core1_0.VertexInputAttributeDescription{
		{
			Binding:  0,
			Location: 0,
			Format:   core1_0.FormatR32G32B32SignedFloat,
			Offset:   int(unsafe.Offsetof(v.Position)),
		},
		{
			Binding:  0,
			Location: 1,
			Format:   core1_0.FormatR32G32B32SignedFloat,
			Offset:   int(unsafe.Offsetof(v.Color)),
		},
		{
			Binding:  0,
			Location: 2,
			Format:   core1_0.FormatR32G32SignedFloat,
			Offset:   int(unsafe.Offsetof(v.UV)),
		},
	}
}

func (r *Renderer) createImageView(image core1_0.Image, format core1_0.Format, aspect core1_0.ImageAspectFlags) (core1_0.ImageView, error) {
	imageView, _, err := r.deviceDriver.CreateImageView(nil, core1_0.ImageViewCreateInfo{
		Image:    image,
		ViewType: core1_0.ImageViewType2D,
		Format:   format,
		SubresourceRange: core1_0.ImageSubresourceRange{
			AspectMask: aspect,
			LevelCount: 1,
			LayerCount: 1,
		},
	})
	return imageView, err
}

func (r *Renderer) createImage(width, height int, format core1_0.Format, usage core1_0.ImageUsageFlags, memoryProperties core1_0.MemoryPropertyFlags) (core1_0.Image, core1_0.DeviceMemory, error) {
	image, _, err := r.deviceDriver.CreateImage(nil, core1_0.ImageCreateInfo{
		ImageType: core1_0.ImageType2D,
		Extent: core1_0.Extent3D{
			Width:  width,
			Height: height,
			Depth:  1,
		},
		MipLevels:     1,
		ArrayLayers:   1,
		Format:        format,
		Tiling:        core1_0.ImageTilingOptimal,
		InitialLayout: core1_0.ImageLayoutUndefined,
		Usage:         usage,
		SharingMode:   core1_0.SharingModeExclusive,
		Samples:       core1_0.Samples1,
	})
	if err != nil {
		return core1_0.Image{}, core1_0.DeviceMemory{}, err
	}

	memReqs := r.deviceDriver.GetImageMemoryRequirements(image)
	memoryIndex, err := r.findMemoryType(memReqs.MemoryTypeBits, memoryProperties)
	if err != nil {
		return core1_0.Image{}, core1_0.DeviceMemory{}, err
	}

	imageMemory, _, err := r.deviceDriver.AllocateMemory(nil, core1_0.MemoryAllocateInfo{
		AllocationSize:  memReqs.Size,
		MemoryTypeIndex: memoryIndex,
	})
	if err != nil {
		return core1_0.Image{}, core1_0.DeviceMemory{}, err
	}

	_, err = r.deviceDriver.BindImageMemory(image, imageMemory, 0)
	if err != nil {
		return core1_0.Image{}, core1_0.DeviceMemory{}, err
	}

	return image, imageMemory, nil
}

func (r *Renderer) createBuffer(size int, usage core1_0.BufferUsageFlags, properties core1_0.MemoryPropertyFlags) (core1_0.Buffer, core1_0.DeviceMemory, error) {
	buffer, _, err := r.deviceDriver.CreateBuffer(nil, core1_0.BufferCreateInfo{
		Size:        size,
		Usage:       usage,
		SharingMode: core1_0.SharingModeExclusive,
	})
	if err != nil {
		return core1_0.Buffer{}, core1_0.DeviceMemory{}, err
	}

	memRequirements := r.deviceDriver.GetBufferMemoryRequirements(buffer)
	memoryTypeIndex, err := r.findMemoryType(memRequirements.MemoryTypeBits, properties)
	if err != nil {
		return buffer, core1_0.DeviceMemory{}, err
	}

	memory, _, err := r.deviceDriver.AllocateMemory(nil, core1_0.MemoryAllocateInfo{
		AllocationSize:  memRequirements.Size,
		MemoryTypeIndex: memoryTypeIndex,
	})
	if err != nil {
		return buffer, core1_0.DeviceMemory{}, err
	}

	_, err = r.deviceDriver.BindBufferMemory(buffer, memory, 0)
	return buffer, memory, err
}

func (r *Renderer) findMemoryType(typeFilter uint32, properties core1_0.MemoryPropertyFlags) (int, error) {
	memProperties := r.instanceDriver.GetPhysicalDeviceMemoryProperties(r.physicalDevice)
	for i, memoryType := range memProperties.MemoryTypes {
		typeBit := uint32(1 << i)
		if (typeFilter&typeBit) != 0 && (memoryType.PropertyFlags&properties) == properties {
			return i, nil
		}
	}
	return 0, errors.New("no suitable memory type")
}

func writeData(driver core1_0.DeviceDriver, memory core1_0.DeviceMemory, offset int, data any) error {
	bufferSize := binary.Size(data)

	memoryPtr, _, err := driver.MapMemory(memory, offset, bufferSize, 0)
	if err != nil {
		return err
	}
	defer driver.UnmapMemory(memory)

	dataBuffer := unsafe.Slice((*byte)(memoryPtr), bufferSize)

	buf := &bytes.Buffer{}
	err = binary.Write(buf, common.ByteOrder, data)
	if err != nil {
		return err
	}

	copy(dataBuffer, buf.Bytes())
	return nil
}

// createDescriptorSetLayouts builds the two set layouts: set 0 holds the
// per-image camera block, set 1 the swapchain-invariant material sampler.
// Splitting them keeps the material set alive across every rebuild.
func (r *Renderer) createDescriptorSetLayouts() error {
	var err error
	r.cameraLayout, _, err = r.deviceDriver.CreateDescriptorSetLayout(nil, core1_0.DescriptorSetLayoutCreateInfo{
		Bindings: []core1_0.DescriptorSetLayoutBinding{
			{
				Binding:         0,
				DescriptorType:  core1_0.DescriptorTypeUniformBuffer,
				DescriptorCount: 1,
				StageFlags:      core1_0.StageVertex,
			},
		},
	})
	if err != nil {
		return errors.Wrap(err, "creating camera set layout")
	}

	r.materialLayout, _, err = r.deviceDriver.CreateDescriptorSetLayout(nil, core1_0.DescriptorSetLayoutCreateInfo{
		Bindings: []core1_0.DescriptorSetLayoutBinding{
			{
				Binding:         0,
				DescriptorType:  core1_0.DescriptorTypeCombinedImageSampler,
				DescriptorCount: 1,
				StageFlags:      core1_0.StageFragment,
			},
		},
	})
	if err != nil {
		return errors.Wrap(err, "creating material set layout")
	}
	return nil
}

// rebuildFrameUniforms creates one persistently mapped camera buffer and one
// descriptor set per swapchain image.
func (r *Renderer) rebuildFrameUniforms(imageCount int) error {
	bufferSize := int(unsafe.Sizeof(cameraUniform{}))

	for i := 0; i < imageCount; i++ {
		buffer, memory, err := r.createBuffer(bufferSize,
			core1_0.BufferUsageUniformBuffer,
			core1_0.MemoryPropertyHostVisible|core1_0.MemoryPropertyHostCoherent)
		if err != nil {
			return errors.Wrap(err, "creating camera buffer")
		}
		ptr, _, err := r.deviceDriver.MapMemory(memory, 0, bufferSize, 0)
		if err != nil {
			return errors.Wrap(err, "mapping camera buffer")
		}

		r.uniformBuffers = append(r.uniformBuffers, buffer)
		r.uniformMemory = append(r.uniformMemory, memory)
		r.uniformPtrs = append(r.uniformPtrs, ptr)
	}

	var err error
	r.descriptorPool, _, err = r.deviceDriver.CreateDescriptorPool(nil, core1_0.DescriptorPoolCreateInfo{
		MaxSets: imageCount,
		PoolSizes: []core1_0.DescriptorPoolSize{
			{
				Type:            core1_0.DescriptorTypeUniformBuffer,
				DescriptorCount: imageCount,
			},
		},
	})
	if err != nil {
		return errors.Wrap(err, "creating camera descriptor pool")
	}

	allocLayouts := make([]core1_0.DescriptorSetLayout, imageCount)
	for i := range allocLayouts {
		allocLayouts[i] = r.cameraLayout
	}

	r.descriptorSets, _, err = r.deviceDriver.AllocateDescriptorSets(core1_0.DescriptorSetAllocateInfo{
		DescriptorPool: r.descriptorPool,
		SetLayouts:     allocLayouts,
	})
	if err != nil {
		return errors.Wrap(err, "allocating camera descriptor sets")
	}

	for i := 0; i < imageCount; i++ {
		err = r.deviceDriver.UpdateDescriptorSets([]core1_0.WriteDescriptorSet{
			{
				DstSet:         r.descriptorSets[i],
				DstBinding:     0,
				DescriptorType: core1_0.DescriptorTypeUniformBuffer,
				BufferInfo: []core1_0.DescriptorBufferInfo{
					{
						Buffer: r.uniformBuffers[i],
						Offset: 0,
						Range:  bufferSize,
					},
				},
			},
		}, nil)
		if err != nil {
			return errors.Wrap(err, "writing camera descriptors")
		}
	}
	return nil
}

// createMaterial builds the fallback texture, its sampler, and the material
// descriptor set. A 2x2 checkerboard stands in until real textures exist, so
// UV problems show up as a visible pattern instead of a black screen.
func (r *Renderer) createMaterial() error {
	pixels := []byte{
		230, 230, 230, 255, 90, 90, 90, 255,
		90, 90, 90, 255, 230, 230, 230, 255,
	}

	stagingBuffer, stagingMemory, err := r.createBuffer(len(pixels),
		core1_0.BufferUsageTransferSrc,
		core1_0.MemoryPropertyHostVisible|core1_0.MemoryPropertyHostCoherent)
	if err != nil {
		return errors.Wrap(err, "creating texture staging buffer")
	}
	defer r.deviceDriver.DestroyBuffer(stagingBuffer, nil)
	defer r.deviceDriver.FreeMemory(stagingMemory, nil)

	err = writeData(r.deviceDriver, stagingMemory, 0, pixels)
	if err != nil {
		return err
	}

	r.textureImage, r.textureMemory, err = r.createImage(2, 2,
		core1_0.FormatR8G8B8A8UnsignedNormalized,
		core1_0.ImageUsageTransferDst|core1_0.ImageUsageSampled,
		core1_0.MemoryPropertyDeviceLocal)
	if err != nil {
		return errors.Wrap(err, "creating fallback texture")
	}

	err = r.transitionImageLayout(r.textureImage, core1_0.ImageLayoutUndefined, core1_0.ImageLayoutTransferDstOptimal)
	if err != nil {
		return err
	}
	err = r.copyBufferToImage(stagingBuffer, r.textureImage, 2, 2)
	if err != nil {
		return err
	}
	err = r.transitionImageLayout(r.textureImage, core1_0.ImageLayoutTransferDstOptimal, core1_0.ImageLayoutShaderReadOnlyOptimal)
	if err != nil {
		return err
	}

	r.textureView, err = r.createImageView(r.textureImage, core1_0.FormatR8G8B8A8UnsignedNormalized, core1_0.ImageAspectColor)
	if err != nil {
		return err
	}

	r.textureSampler, _, err = r.deviceDriver.CreateSampler(nil, core1_0.SamplerCreateInfo{
		MagFilter:    core1_0.FilterNearest,
		MinFilter:    core1_0.FilterNearest,
		AddressModeU: core1_0.SamplerAddressModeRepeat,
		AddressModeV: core1_0.SamplerAddressModeRepeat,
		AddressModeW: core1_0.SamplerAddressModeRepeat,
		BorderColor:  core1_0.BorderColorIntOpaqueBlack,
		MipmapMode:   core1_0.SamplerMipmapModeNearest,
	})
	if err != nil {
		return errors.Wrap(err, "creating sampler")
	}

	r.materialPool, _, err = r.deviceDriver.CreateDescriptorPool(nil, core1_0.DescriptorPoolCreateInfo{
		MaxSets: 1,
		PoolSizes: []core1_0.DescriptorPoolSize{
			{
				Type:            core1_0.DescriptorTypeCombinedImageSampler,
				DescriptorCount: 1,
			},
		},
	})
	if err != nil {
		return errors.Wrap(err, "creating material descriptor pool")
	}

	sets, _, err := r.deviceDriver.AllocateDescriptorSets(core1_0.DescriptorSetAllocateInfo{
		DescriptorPool: r.materialPool,
		SetLayouts:     []core1_0.DescriptorSetLayout{r.materialLayout},
	})
	if err != nil {
		return errors.Wrap(err, "allocating material descriptor set")
	}
	r.materialSet = sets[0]

	return r.deviceDriver.UpdateDescriptorSets([]core1_0.WriteDescriptorSet{
		{
			DstSet:         r.materialSet,
			DstBinding:     0,
			DescriptorType: core1_0.DescriptorTypeCombinedImageSampler,
			ImageInfo: []core1_0.DescriptorImageInfo{
				{
					ImageView:   r.textureView,
					Sampler:     r.textureSampler,
					ImageLayout: core1_0.ImageLayoutShaderReadOnlyOptimal,
				},
			},
		},
	}, nil)
}

// createGeometry uploads the mesh through a staging buffer into device-local
// vertex and index buffers.
func (r *Renderer) createGeometry(mesh *render.Mesh) error {
	if mesh == nil {
		mesh = defaultMesh()
	}
	if len(mesh.Vertices) == 0 || len(mesh.Indices) == 0 {
		return errors.New("mesh has no geometry")
	}
	r.indexCount = len(mesh.Indices)

	var err error
	r.vertexBuffer, r.vertexMemory, err = r.uploadDeviceLocal(mesh.Vertices, core1_0.BufferUsageVertexBuffer)
	if err != nil {
		return errors.Wrap(err, "uploading vertices")
	}

	r.indexBuffer, r.indexMemory, err = r.uploadDeviceLocal(mesh.Indices, core1_0.BufferUsageIndexBuffer)
	if err != nil {
		return errors.Wrap(err, "uploading indices")
	}
	return nil
}

func (r *Renderer) uploadDeviceLocal(data any, usage core1_0.BufferUsageFlags) (core1_0.Buffer, core1_0.DeviceMemory, error) {
	bufferSize := binary.Size(data)

	stagingBuffer, stagingMemory, err := r.createBuffer(bufferSize,
		core1_0.BufferUsageTransferSrc,
		core1_0.MemoryPropertyHostVisible|core1_0.MemoryPropertyHostCoherent)
	if stagingBuffer.Initialized() {
		defer r.deviceDriver.DestroyBuffer(stagingBuffer, nil)
	}
	if stagingMemory.Initialized() {
		defer r.deviceDriver.FreeMemory(stagingMemory, nil)
	}
	if err != nil {
		return core1_0.Buffer{}, core1_0.DeviceMemory{}, err
	}

	err = writeData(r.deviceDriver, stagingMemory, 0, data)
	if err != nil {
		return core1_0.Buffer{}, core1_0.DeviceMemory{}, err
	}

	buffer, memory, err := r.createBuffer(bufferSize,
		core1_0.BufferUsageTransferDst|usage,
		core1_0.MemoryPropertyDeviceLocal)
	if err != nil {
		return core1_0.Buffer{}, core1_0.DeviceMemory{}, err
	}

	err = r.copyBuffer(stagingBuffer, buffer, bufferSize)
	return buffer, memory, err
}
