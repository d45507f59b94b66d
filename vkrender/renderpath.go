package vkrender

import (
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/core/v3/core1_2"
	"github.com/vkngwrapper/extensions/v3/khr_timeline_semaphore"
)

// renderPath identifies where timeline semaphores come from. It is decided
// once, before device creation, and a device only ever uses one path's entry
// points.
type renderPath int

const (
	// pathCore12 uses the Vulkan 1.2 core timeline entry points.
	pathCore12 renderPath = iota
	// pathKhrExt uses VK_KHR_timeline_semaphore on a pre-1.2 device.
	pathKhrExt
)

func (p renderPath) String() string {
	if p == pathKhrExt {
		return "khr_timeline_semaphore"
	}
	return "core_1_2"
}

// frameSubmit is one frame's queue submission: wait for the acquire
// semaphore, run the command buffer, signal the per-image present semaphore
// and the render timeline.
type frameSubmit struct {
	waitAcquire    core1_0.Semaphore
	waitStage      core1_0.PipelineStageFlags
	commandBuffer  core1_0.CommandBuffer
	signalPresent  core1_0.Semaphore
	signalTimeline core1_0.Semaphore
	timelineValue  uint64
}

// syncDriver is the per-path slice of the device surface: everything the
// frame loop needs that Vulkan 1.2 and the KHR extension spell differently.
// All call sites go through this interface so the two chains never mix.
type syncDriver interface {
	// timelineSemaphoreOptions is the create-info chain entry that turns a
	// semaphore into a timeline starting at zero.
	timelineSemaphoreOptions() common.Options
	// waitTimeline blocks until the timeline semaphore reaches value.
	waitTimeline(timeline core1_0.Semaphore, value uint64) (common.VkResult, error)
	// submitFrame submits one frame, chaining the timeline signal value onto
	// the submission.
	submitFrame(queue core1_0.Queue, s frameSubmit) (common.VkResult, error)
}

// core12Sync drives timeline semaphores through the 1.2 core entry points.
type core12Sync struct {
	core   core1_0.CoreDeviceDriver
	driver core1_2.DeviceDriver
}

func (d *core12Sync) timelineSemaphoreOptions() common.Options {
	return core1_2.SemaphoreTypeCreateInfo{
		SemaphoreType: core1_2.SemaphoreTypeTimeline,
		InitialValue:  0,
	}
}

func (d *core12Sync) waitTimeline(timeline core1_0.Semaphore, value uint64) (common.VkResult, error) {
	return d.driver.WaitSemaphores(common.NoTimeout, core1_2.SemaphoreWaitInfo{
		Semaphores: []core1_0.Semaphore{timeline},
		Values:     []uint64{value},
	})
}

func (d *core12Sync) submitFrame(queue core1_0.Queue, s frameSubmit) (common.VkResult, error) {
	submit := core1_0.SubmitInfo{
		WaitSemaphores:   []core1_0.Semaphore{s.waitAcquire},
		WaitDstStageMask: []core1_0.PipelineStageFlags{s.waitStage},
		CommandBuffers:   []core1_0.CommandBuffer{s.commandBuffer},
		SignalSemaphores: []core1_0.Semaphore{s.signalPresent, s.signalTimeline},
	}
	// The value lists run parallel to the semaphore lists; binary semaphores
	// keep a zero slot.
	submit.Next = core1_2.TimelineSemaphoreSubmitInfo{
		WaitSemaphoreValues:   []uint64{0},
		SignalSemaphoreValues: []uint64{0, s.timelineValue},
	}
	return d.core.QueueSubmit(queue, nil, submit)
}

// khrTimelineSync drives the same operations through the
// VK_KHR_timeline_semaphore extension on a 1.1 device.
type khrTimelineSync struct {
	core      core1_0.CoreDeviceDriver
	extension khr_timeline_semaphore.ExtensionDriver
}

func (d *khrTimelineSync) timelineSemaphoreOptions() common.Options {
	return khr_timeline_semaphore.SemaphoreTypeCreateInfo{
		SemaphoreType: khr_timeline_semaphore.SemaphoreTypeTimeline,
		InitialValue:  0,
	}
}

func (d *khrTimelineSync) waitTimeline(timeline core1_0.Semaphore, value uint64) (common.VkResult, error) {
	return d.extension.WaitSemaphores(common.NoTimeout, khr_timeline_semaphore.SemaphoreWaitInfo{
		Semaphores: []core1_0.Semaphore{timeline},
		Values:     []uint64{value},
	})
}

func (d *khrTimelineSync) submitFrame(queue core1_0.Queue, s frameSubmit) (common.VkResult, error) {
	submit := core1_0.SubmitInfo{
		WaitSemaphores:   []core1_0.Semaphore{s.waitAcquire},
		WaitDstStageMask: []core1_0.PipelineStageFlags{s.waitStage},
		CommandBuffers:   []core1_0.CommandBuffer{s.commandBuffer},
		SignalSemaphores: []core1_0.Semaphore{s.signalPresent, s.signalTimeline},
	}
	submit.Next = khr_timeline_semaphore.TimelineSemaphoreSubmitInfo{
		WaitSemaphoreValues:   []uint64{0},
		SignalSemaphoreValues: []uint64{0, s.timelineValue},
	}
	return d.core.QueueSubmit(queue, nil, submit)
}
