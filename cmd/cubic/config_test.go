package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/brendenhoffman/CubicEngine/render"
)

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := loadConfig(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	require.True(t, cfg.Render.Vsync)
	require.Equal(t, "fifo", cfg.Render.VsyncMode)
	require.Equal(t, int32(800), cfg.Window.Width)
}

func TestLoadConfigOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cubic.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[window]
title = "Test"
width = 1280
height = 720

[render]
vsync = false
hdr = true
hdr_flavor = "hdr10"
clear_color = [0.1, 0.2, 0.3, 1.0]
`), 0o644))

	cfg, err := loadConfig(path)
	require.NoError(t, err)
	require.Equal(t, "Test", cfg.Window.Title)
	require.Equal(t, int32(1280), cfg.Window.Width)
	require.False(t, cfg.Render.Vsync)
	require.True(t, cfg.Render.HDR)
	require.Equal(t, "hdr10", cfg.Render.HDRFlavor)
	require.Equal(t, [4]float32{0.1, 0.2, 0.3, 1.0}, cfg.Render.ClearColor)
}

func TestLoadConfigRejectsBadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cubic.toml")
	require.NoError(t, os.WriteFile(path, []byte("[window\n"), 0o644))

	_, err := loadConfig(path)
	require.Error(t, err)
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("CUBIC_HDR", "1")
	t.Setenv("CUBIC_FORCE_KHR", "1")
	t.Setenv("CUBIC_HDR_FLAVOR", "hdr10")

	cfg := defaultConfig()
	applyEnvOverrides(&cfg)
	require.True(t, cfg.Render.HDR)
	require.True(t, cfg.Render.ForceKHR)
	require.Equal(t, "hdr10", cfg.Render.HDRFlavor)
}

func TestParseVsyncMode(t *testing.T) {
	mode, err := parseVsyncMode("mailbox")
	require.NoError(t, err)
	require.Equal(t, render.VsyncMailbox, mode)

	mode, err = parseVsyncMode("")
	require.NoError(t, err)
	require.Equal(t, render.VsyncFIFO, mode)

	_, err = parseVsyncMode("adaptive")
	require.Error(t, err)
}

func TestParseHDRFlavor(t *testing.T) {
	flavor, err := parseHDRFlavor("hdr10")
	require.NoError(t, err)
	require.Equal(t, render.PreferHdr10, flavor)

	_, err = parseHDRFlavor("dolby")
	require.Error(t, err)
}
