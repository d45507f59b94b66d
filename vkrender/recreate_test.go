package vkrender

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/core/v3/core1_0"

	"github.com/brendenhoffman/CubicEngine/render"
)

type spyHost struct {
	calls []string

	next     swapchainState
	buildErr error
}

func (s *spyHost) record(name string) { s.calls = append(s.calls, name) }

func (s *spyHost) waitRetired() error { s.record("waitRetired"); return nil }
func (s *spyHost) quiesce() error { s.record("quiesce"); return nil }
func (s *spyHost) releaseImageResources() { s.record("releaseImageResources") }
func (s *spyHost) releaseFrameUniforms() { s.record("releaseFrameUniforms") }

func (s *spyHost) buildSwapchain(size render.Size) (swapchainState, error) {
	s.record("buildSwapchain")
	return s.next, s.buildErr
}

func (s *spyHost) applyHDRMetadata() { s.record("applyHDRMetadata") }
func (s *spyHost) rebuildDepth() error { s.record("rebuildDepth"); return nil }
func (s *spyHost) rebuildFrameUniforms(n int) error { s.record("rebuildFrameUniforms"); return nil }
func (s *spyHost) rebuildSemaphores(n int) error { s.record("rebuildSemaphores"); return nil }
func (s *spyHost) rebuildPipeline() error { s.record("rebuildPipeline"); return nil }
func (s *spyHost) reallocCommandBuffers(n int) error { s.record("reallocCommandBuffers"); return nil }
func (s *spyHost) recordCommands() error { s.record("recordCommands"); return nil }

func TestRebuildSwapchainFullOrder(t *testing.T) {
	old := swapchainState{format: core1_0.FormatB8G8R8A8SRGB, imageCount: 3}
	spy := &spyHost{next: swapchainState{format: core1_0.FormatR16G16B16A16SignedFloat, imageCount: 4}}

	next, rebuilt, err := rebuildSwapchain(spy, render.Size{Width: 1280, Height: 720}, old)
	require.NoError(t, err)
	require.True(t, rebuilt)
	require.Equal(t, spy.next, next)

	require.Equal(t, []string{
		"waitRetired",
		"quiesce",
		"releaseImageResources",
		"releaseFrameUniforms",
		"buildSwapchain",
		"applyHDRMetadata",
		"rebuildDepth",
		"rebuildFrameUniforms",
		"rebuildSemaphores",
		"rebuildPipeline",
		"reallocCommandBuffers",
		"recordCommands",
	}, spy.calls)
}

func TestRebuildSwapchainSkipsPipelineWhenFormatUnchanged(t *testing.T) {
	old := swapchainState{format: core1_0.FormatB8G8R8A8SRGB, imageCount: 3}
	spy := &spyHost{next: swapchainState{format: core1_0.FormatB8G8R8A8SRGB, imageCount: 4}}

	_, rebuilt, err := rebuildSwapchain(spy, render.Size{Width: 640, Height: 480}, old)
	require.NoError(t, err)
	require.True(t, rebuilt)
	require.NotContains(t, spy.calls, "rebuildPipeline")
	require.Contains(t, spy.calls, "reallocCommandBuffers")
}

func TestRebuildSwapchainSkipsCommandReallocWhenCountUnchanged(t *testing.T) {
	old := swapchainState{format: core1_0.FormatB8G8R8A8SRGB, imageCount: 3}
	spy := &spyHost{next: swapchainState{format: core1_0.FormatR8G8B8A8SRGB, imageCount: 3}}

	_, rebuilt, err := rebuildSwapchain(spy, render.Size{Width: 640, Height: 480}, old)
	require.NoError(t, err)
	require.True(t, rebuilt)
	require.Contains(t, spy.calls, "rebuildPipeline")
	require.NotContains(t, spy.calls, "reallocCommandBuffers")
	// Commands are always re-recorded: the extent changed even if nothing
	// else did.
	require.Equal(t, "recordCommands", spy.calls[len(spy.calls)-1])
}

func TestRebuildSwapchainNothingChanged(t *testing.T) {
	state := swapchainState{format: core1_0.FormatB8G8R8A8SRGB, imageCount: 3}
	spy := &spyHost{next: state}

	_, rebuilt, err := rebuildSwapchain(spy, render.Size{Width: 640, Height: 480}, state)
	require.NoError(t, err)
	require.True(t, rebuilt)
	require.NotContains(t, spy.calls, "rebuildPipeline")
	require.NotContains(t, spy.calls, "reallocCommandBuffers")
}

func TestRebuildSwapchainZeroExtentIsNoOp(t *testing.T) {
	old := swapchainState{format: core1_0.FormatB8G8R8A8SRGB, imageCount: 3}
	spy := &spyHost{}

	next, rebuilt, err := rebuildSwapchain(spy, render.Size{Width: 0, Height: 720}, old)
	require.NoError(t, err)
	require.False(t, rebuilt)
	require.Equal(t, old, next)
	require.Empty(t, spy.calls)
}

func TestRebuildSwapchainBuildFailureStops(t *testing.T) {
	old := swapchainState{format: core1_0.FormatB8G8R8A8SRGB, imageCount: 3}
	spy := &spyHost{buildErr: errors.New("surface gone")}

	next, rebuilt, err := rebuildSwapchain(spy, render.Size{Width: 640, Height: 480}, old)
	require.Error(t, err)
	require.False(t, rebuilt)
	require.Equal(t, old, next)
	require.Equal(t, "buildSwapchain", spy.calls[len(spy.calls)-1])
}

type spyTeardown struct {
	calls []string
}

func (s *spyTeardown) waitRetired() error { s.calls = append(s.calls, "waitRetired"); return errors.New("device lost") }
func (s *spyTeardown) quiesce() error { s.calls = append(s.calls, "quiesce"); return nil }
func (s *spyTeardown) destroySwapchainGroup() { s.calls = append(s.calls, "swapchainGroup") }
func (s *spyTeardown) destroyFrameGroup() { s.calls = append(s.calls, "frameGroup") }
func (s *spyTeardown) destroyDeviceGroup() { s.calls = append(s.calls, "deviceGroup") }

func TestTeardownOrderSurvivesWaitErrors(t *testing.T) {
	spy := &spyTeardown{}
	runTeardown(spy)
	require.Equal(t, []string{
		"waitRetired",
		"quiesce",
		"swapchainGroup",
		"frameGroup",
		"deviceGroup",
	}, spy.calls)
}
