package vkrender

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/core/v3/core1_0"

	"github.com/brendenhoffman/CubicEngine/render"
)

func TestSkipFrameWhilePaused(t *testing.T) {
	r := &Renderer{paused: true}

	require.True(t, r.skipFrame())
	// Pausing never decays on its own.
	require.True(t, r.skipFrame())
	require.True(t, r.paused)
}

func TestSkipFrameConsumesBackoffExactly(t *testing.T) {
	r := &Renderer{backoffFrames: staleBackoffFrames}

	require.True(t, r.skipFrame())
	require.True(t, r.skipFrame())
	require.False(t, r.skipFrame())
	require.Equal(t, 0, r.backoffFrames)

	// Once consumed, frames keep running.
	require.False(t, r.skipFrame())
}

func TestResizeZeroAreaPausesWithoutTouchingDevice(t *testing.T) {
	// No device objects exist on this renderer; a zero-area resize must not
	// reach for any of them.
	r := &Renderer{log: slog.New(discardHandler{})}

	require.NoError(t, r.Resize(render.Size{Width: 0, Height: 540}))
	require.True(t, r.paused)
	require.True(t, r.skipFrame())
}

func TestResizeBackFromPausedRebuildsOnce(t *testing.T) {
	state := swapchainState{format: core1_0.FormatB8G8R8A8SRGB, imageCount: 3}
	spy := &spyHost{next: state}

	// The pause itself costs nothing.
	next, rebuilt, err := rebuildSwapchain(spy, render.Size{}, state)
	require.NoError(t, err)
	require.False(t, rebuilt)
	require.Empty(t, spy.calls)

	// Coming back runs exactly one full recreation.
	_, rebuilt, err = rebuildSwapchain(spy, render.Size{Width: 1024, Height: 768}, next)
	require.NoError(t, err)
	require.True(t, rebuilt)

	builds := 0
	for _, call := range spy.calls {
		if call == "buildSwapchain" {
			builds++
		}
	}
	require.Equal(t, 1, builds)
}
