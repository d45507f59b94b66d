package main

import (
	"log/slog"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/pelletier/go-toml/v2"

	"github.com/brendenhoffman/CubicEngine/render"
)

type windowConfig struct {
	Title  string `toml:"title"`
	Width  int32  `toml:"width"`
	Height int32  `toml:"height"`
}

type renderConfig struct {
	Vsync      bool       `toml:"vsync"`
	VsyncMode  string     `toml:"vsync_mode"`
	HDR        bool       `toml:"hdr"`
	HDRFlavor  string     `toml:"hdr_flavor"`
	ClearColor [4]float32 `toml:"clear_color"`
	Validation bool       `toml:"validation"`
	// ForceKHR takes the extension-based device path even on drivers that
	// support the core path.
	ForceKHR bool   `toml:"force_khr"`
	CacheDir string `toml:"cache_dir"`
}

type assetConfig struct {
	Mesh     string `toml:"mesh"`
	Material string `toml:"material"`
	// VertShader and FragShader are compiled SPIR-V files watched for live
	// reload. Empty disables watching.
	VertShader string `toml:"vert_shader"`
	FragShader string `toml:"frag_shader"`
}

type appConfig struct {
	Window windowConfig `toml:"window"`
	Render renderConfig `toml:"render"`
	Assets assetConfig  `toml:"assets"`
	Log    struct {
		Level string `toml:"level"`
	} `toml:"log"`
}

func defaultConfig() appConfig {
	cfg := appConfig{
		Window: windowConfig{Title: "Cubic", Width: 800, Height: 600},
		Render: renderConfig{
			Vsync:      true,
			VsyncMode:  "fifo",
			HDRFlavor:  "scrgb",
			ClearColor: [4]float32{0.0, 0.0, 0.0, 1.0},
		},
	}
	cfg.Log.Level = "info"
	return cfg
}

// loadConfig reads the TOML config file if it exists. A missing file is not
// an error; the defaults stand.
func loadConfig(path string) (appConfig, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, errors.Wrapf(err, "reading config %s", path)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "parsing config %s", path)
	}
	return cfg, nil
}

// applyEnvOverrides lets the environment flip individual switches without
// editing the config file. Useful when bisecting driver issues.
func applyEnvOverrides(cfg *appConfig) {
	if v, ok := os.LookupEnv("CUBIC_VALIDATION"); ok {
		cfg.Render.Validation = v == "1"
	}
	if v, ok := os.LookupEnv("CUBIC_HDR"); ok {
		cfg.Render.HDR = v == "1"
	}
	if v, ok := os.LookupEnv("CUBIC_HDR_FLAVOR"); ok {
		cfg.Render.HDRFlavor = v
	}
	if v, ok := os.LookupEnv("CUBIC_FORCE_KHR"); ok {
		cfg.Render.ForceKHR = v == "1"
	}
}

func parseVsyncMode(s string) (render.VsyncMode, error) {
	switch s {
	case "", "fifo":
		return render.VsyncFIFO, nil
	case "mailbox":
		return render.VsyncMailbox, nil
	}
	return render.VsyncFIFO, errors.Newf("unknown vsync_mode %q (want fifo or mailbox)", s)
}

func parseHDRFlavor(s string) (render.HdrFlavor, error) {
	switch s {
	case "", "scrgb":
		return render.PreferScrgb, nil
	case "hdr10":
		return render.PreferHdr10, nil
	}
	return render.PreferScrgb, errors.Newf("unknown hdr_flavor %q (want scrgb or hdr10)", s)
}

func parseLogLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
