package vkrender

import (
	"log/slog"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
)

type spyRecovery struct {
	calls []string

	recreateErr error
	rebuildErr  error
}

func (s *spyRecovery) recreateSurface() error {
	s.calls = append(s.calls, "recreateSurface")
	return s.recreateErr
}

func (s *spyRecovery) rebuildAtCurrentExtent() error {
	s.calls = append(s.calls, "rebuildAtCurrentExtent")
	return s.rebuildErr
}

func TestRecoverLostSurfaceRetriesOnce(t *testing.T) {
	spy := &spyRecovery{}

	ok := recoverLostSurface(spy, slog.New(discardHandler{}))
	require.True(t, ok)
	require.Equal(t, []string{"recreateSurface", "rebuildAtCurrentExtent"}, spy.calls)
}

func TestRecoverLostSurfaceRecreateFailureReportsPause(t *testing.T) {
	spy := &spyRecovery{recreateErr: errors.New("window gone")}

	ok := recoverLostSurface(spy, slog.New(discardHandler{}))
	require.False(t, ok)
	// No rebuild attempt on a surface that could not be recreated.
	require.Equal(t, []string{"recreateSurface"}, spy.calls)
}

func TestRecoverLostSurfaceRebuildFailureReportsPause(t *testing.T) {
	// The common repeat case: the fresh surface dies before the swapchain
	// lands on it. This must come back as a pause, not an error.
	spy := &spyRecovery{rebuildErr: errors.New("surface lost again")}

	ok := recoverLostSurface(spy, slog.New(discardHandler{}))
	require.False(t, ok)
	require.Equal(t, []string{"recreateSurface", "rebuildAtCurrentExtent"}, spy.calls)
}
