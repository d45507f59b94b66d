package vkrender

import (
	"context"
	"log/slog"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/core/v3/core1_2"
	"github.com/vkngwrapper/extensions/v3/khr_portability_subset"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"
	"github.com/vkngwrapper/extensions/v3/khr_timeline_semaphore"
)

// deviceChoice is everything decided while inspecting a physical device:
// which queue family drives it, which render path its features permit, and
// the optional extensions worth enabling.
type deviceChoice struct {
	queueFamily    int
	path           renderPath
	hasPortability bool
}

// pickPhysicalDevice selects the first device that can present to the
// surface from a single graphics queue family and supports one of the two
// render paths. Devices that support neither path are rejected here, before
// any device object exists.
func (r *Renderer) pickPhysicalDevice(forceExtensionPath bool) error {
	physicalDevices, _, err := r.instanceDriver.EnumeratePhysicalDevices()
	if err != nil {
		return err
	}

	for _, device := range physicalDevices {
		choice, ok, err := r.evaluateDevice(device, forceExtensionPath)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		r.physicalDevice = device
		r.queueFamily = choice.queueFamily
		r.path = choice.path
		r.choice = choice

		properties, err := r.instanceDriver.GetPhysicalDeviceProperties(device)
		if err != nil {
			return err
		}
		r.log.LogAttrs(context.Background(), slog.LevelInfo, "physical device selected",
			slog.String("device", properties.DriverName),
			slog.String("render_path", r.path.String()),
			slog.Int("queue_family", r.queueFamily))
		return nil
	}

	return errors.New("no device offers timeline semaphores through vulkan 1.2 or VK_KHR_timeline_semaphore")
}

func (r *Renderer) evaluateDevice(device core1_0.PhysicalDevice, forceExtensionPath bool) (deviceChoice, bool, error) {
	var choice deviceChoice

	family, ok, err := r.findQueueFamily(device)
	if err != nil || !ok {
		return choice, false, err
	}
	choice.queueFamily = family

	extensions, _, err := r.instanceDriver.EnumerateDeviceExtensionProperties(device)
	if err != nil {
		return choice, false, err
	}
	if _, hasSwapchain := extensions[khr_swapchain.ExtensionName]; !hasSwapchain {
		return choice, false, nil
	}
	_, choice.hasPortability = extensions[khr_portability_subset.ExtensionName]

	formats, _, err := r.surfaceExtension.GetPhysicalDeviceSurfaceFormats(r.surface, device)
	if err != nil || len(formats) == 0 {
		return choice, false, err
	}
	modes, _, err := r.surfaceExtension.GetPhysicalDeviceSurfacePresentModes(r.surface, device)
	if err != nil || len(modes) == 0 {
		return choice, false, err
	}

	properties, err := r.instanceDriver.GetPhysicalDeviceProperties(device)
	if err != nil {
		return choice, false, err
	}

	_, hasTimelineExt := extensions[khr_timeline_semaphore.ExtensionName]

	// 1.1 is the floor on both paths: the command recorder flips the
	// viewport, which needs the maintenance1 behavior promoted there.
	switch {
	case properties.APIVersion >= common.Vulkan1_2 && !forceExtensionPath:
		choice.path = pathCore12
	case properties.APIVersion >= common.Vulkan1_1 && hasTimelineExt:
		choice.path = pathKhrExt
	default:
		return choice, false, nil
	}
	return choice, true, nil
}

// findQueueFamily locates one family that can both run graphics and present
// to the surface. Split graphics/present families are not supported.
func (r *Renderer) findQueueFamily(device core1_0.PhysicalDevice) (int, bool, error) {
	queueFamilies := r.instanceDriver.GetPhysicalDeviceQueueFamilyProperties(device)
	for familyIndex, family := range queueFamilies {
		if family.QueueFlags&core1_0.QueueGraphics == 0 {
			continue
		}
		supported, _, err := r.surfaceExtension.GetPhysicalDeviceSurfaceSupport(r.surface, device, familyIndex)
		if err != nil {
			return 0, false, err
		}
		if supported {
			return familyIndex, true, nil
		}
	}
	return 0, false, nil
}

// createLogicalDevice creates the device with the feature chain of the
// selected render path. The two paths never share a chain: 1.2 devices get
// the Vulkan12Features block, older devices get the extension's feature
// struct alongside its extension name.
func (r *Renderer) createLogicalDevice() error {
	queuePriority := float32(1.0)

	extensionNames := []string{khr_swapchain.ExtensionName}
	if r.choice.hasPortability {
		extensionNames = append(extensionNames, khr_portability_subset.ExtensionName)
	}
	if r.path == pathKhrExt {
		extensionNames = append(extensionNames, khr_timeline_semaphore.ExtensionName)
	}

	createInfo := core1_0.DeviceCreateInfo{
		QueueCreateInfos: []core1_0.DeviceQueueCreateInfo{
			{
				QueueFamilyIndex: r.queueFamily,
				QueuePriorities:  []float32{queuePriority},
			},
		},
		EnabledFeatures:       &core1_0.PhysicalDeviceFeatures{},
		EnabledExtensionNames: extensionNames,
	}
	if r.path == pathCore12 {
		createInfo.Next = core1_2.PhysicalDeviceVulkan12Features{
			TimelineSemaphore: true,
		}
	} else {
		createInfo.Next = khr_timeline_semaphore.PhysicalDeviceTimelineSemaphoreFeatures{
			TimelineSemaphore: true,
		}
	}

	var err error
	r.deviceDriver, _, err = r.instanceDriver.CreateDevice(r.physicalDevice, nil, createInfo)
	if err != nil {
		return errors.Wrap(err, "creating logical device")
	}

	if r.path == pathCore12 {
		driver12, ok := r.deviceDriver.(core1_2.DeviceDriver)
		if !ok {
			return errors.New("device driver does not expose vulkan 1.2 entry points")
		}
		r.sync = &core12Sync{core: r.deviceDriver, driver: driver12}
	} else {
		r.sync = &khrTimelineSync{
			core:      r.deviceDriver,
			extension: khr_timeline_semaphore.CreateExtensionDriverFromCoreDriver(r.deviceDriver),
		}
	}

	r.swapchainExtension = khr_swapchain.CreateExtensionDriverFromCoreDriver(r.deviceDriver)

	r.queue = r.deviceDriver.GetQueue(r.queueFamily, 0)
	return nil
}

// createTimeline creates the render timeline semaphore. It lives for the
// whole device lifetime and is never recreated: its value orders every
// submission the renderer ever makes.
func (r *Renderer) createTimeline() error {
	createInfo := core1_0.SemaphoreCreateInfo{}
	createInfo.Next = r.sync.timelineSemaphoreOptions()

	timeline, _, err := r.deviceDriver.CreateSemaphore(nil, createInfo)
	if err != nil {
		return errors.Wrap(err, "creating timeline semaphore")
	}
	r.timeline = timeline
	return nil
}

func (r *Renderer) createCommandPool() error {
	pool, _, err := r.deviceDriver.CreateCommandPool(nil, core1_0.CommandPoolCreateInfo{
		QueueFamilyIndex: r.queueFamily,
		Flags:            core1_0.CommandPoolCreateResetBuffer,
	})
	if err != nil {
		return errors.Wrap(err, "creating command pool")
	}
	r.commandPool = pool
	return nil
}
