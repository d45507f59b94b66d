package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"runtime"
	"time"

	"github.com/loov/hrtime"
	"github.com/veandco/go-sdl2/sdl"

	"github.com/brendenhoffman/CubicEngine/render"
	"github.com/brendenhoffman/CubicEngine/vkrender"
)

func init() {
	// SDL and the swapchain must stay on the main OS thread.
	runtime.LockOSThread()
}

func main() {
	configPath := flag.String("config", "cubic.toml", "path to the TOML config file")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Log.Level),
	}))
	if err != nil {
		log.LogAttrs(context.Background(), slog.LevelError, "config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	applyEnvOverrides(&cfg)

	if err := run(cfg, log); err != nil {
		log.LogAttrs(context.Background(), slog.LevelError, "fatal", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(cfg appConfig, log *slog.Logger) error {
	vsyncMode, err := parseVsyncMode(cfg.Render.VsyncMode)
	if err != nil {
		return err
	}
	hdrFlavor, err := parseHDRFlavor(cfg.Render.HDRFlavor)
	if err != nil {
		return err
	}

	rcfg := render.Config{
		Vsync:              cfg.Render.Vsync,
		VsyncMode:          vsyncMode,
		HDR:                cfg.Render.HDR,
		HDRFlavor:          hdrFlavor,
		ClearColor:         cfg.Render.ClearColor,
		ForceExtensionPath: cfg.Render.ForceKHR,
		Validation:         cfg.Render.Validation,
		CacheDir:           cfg.Render.CacheDir,
		Logger:             log,
	}

	if cfg.Assets.Mesh != "" {
		mesh, err := loadMesh(cfg.Assets.Mesh, cfg.Assets.Material)
		if err != nil {
			return err
		}
		rcfg.Mesh = mesh
		log.LogAttrs(context.Background(), slog.LevelInfo, "mesh loaded",
			slog.String("path", cfg.Assets.Mesh),
			slog.Int("vertices", len(mesh.Vertices)),
			slog.Int("indices", len(mesh.Indices)))
	}

	if cfg.Assets.VertShader != "" && cfg.Assets.FragShader != "" {
		rcfg.Reload = render.NewFileTrigger(cfg.Assets.VertShader, cfg.Assets.FragShader)
		log.LogAttrs(context.Background(), slog.LevelInfo, "watching shaders",
			slog.String("vert", cfg.Assets.VertShader),
			slog.String("frag", cfg.Assets.FragShader))
	}

	if err := sdl.Init(sdl.INIT_VIDEO); err != nil {
		return err
	}
	defer sdl.Quit()

	window, err := sdl.CreateWindow(cfg.Window.Title,
		sdl.WINDOWPOS_UNDEFINED, sdl.WINDOWPOS_UNDEFINED,
		cfg.Window.Width, cfg.Window.Height,
		sdl.WINDOW_SHOWN|sdl.WINDOW_VULKAN|sdl.WINDOW_RESIZABLE)
	if err != nil {
		return err
	}
	defer window.Destroy()

	w, h := window.VulkanGetDrawableSize()
	renderer, err := vkrender.New(window, render.Size{Width: uint32(w), Height: uint32(h)}, rcfg)
	if err != nil {
		return err
	}
	defer renderer.Destroy()

	return mainLoop(window, renderer, rcfg, log)
}

func mainLoop(window *sdl.Window, renderer render.Renderer, rcfg render.Config, log *slog.Logger) error {
	vsync := rcfg.Vsync
	vsyncMode := rcfg.VsyncMode
	hdr := rcfg.HDR
	hdrFlavor := rcfg.HDRFlavor
	clearIndex := 0
	clearColors := [][4]float32{
		rcfg.ClearColor,
		{0.05, 0.05, 0.10, 1.0},
		{0.10, 0.05, 0.05, 1.0},
	}

	frames := 0
	fpsStart := hrtime.Now()

appLoop:
	for {
		for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
			switch e := event.(type) {
			case *sdl.QuitEvent:
				break appLoop
			case *sdl.WindowEvent:
				switch e.Event {
				case sdl.WINDOWEVENT_MINIMIZED:
					if err := renderer.Resize(render.Size{}); err != nil {
						return err
					}
				case sdl.WINDOWEVENT_RESTORED, sdl.WINDOWEVENT_RESIZED, sdl.WINDOWEVENT_SIZE_CHANGED:
					w, h := window.VulkanGetDrawableSize()
					if err := renderer.Resize(render.Size{Width: uint32(w), Height: uint32(h)}); err != nil {
						return err
					}
				}
			case *sdl.KeyboardEvent:
				if e.Type != sdl.KEYDOWN || e.Repeat != 0 {
					break
				}
				switch e.Keysym.Sym {
				case sdl.K_ESCAPE:
					break appLoop
				case sdl.K_v:
					vsync = !vsync
					renderer.SetVsync(vsync)
					log.LogAttrs(context.Background(), slog.LevelInfo, "vsync", slog.Bool("on", vsync))
				case sdl.K_m:
					if vsyncMode == render.VsyncFIFO {
						vsyncMode = render.VsyncMailbox
					} else {
						vsyncMode = render.VsyncFIFO
					}
					renderer.SetVsyncMode(vsyncMode)
					log.LogAttrs(context.Background(), slog.LevelInfo, "vsync mode", slog.String("mode", vsyncMode.String()))
				case sdl.K_h:
					hdr = !hdr
					renderer.SetHDREnabled(hdr)
					log.LogAttrs(context.Background(), slog.LevelInfo, "hdr", slog.Bool("on", hdr))
				case sdl.K_f:
					if hdrFlavor == render.PreferScrgb {
						hdrFlavor = render.PreferHdr10
					} else {
						hdrFlavor = render.PreferScrgb
					}
					renderer.SetHDRFlavor(hdrFlavor)
					log.LogAttrs(context.Background(), slog.LevelInfo, "hdr flavor", slog.String("flavor", hdrFlavor.String()))
				case sdl.K_c:
					clearIndex = (clearIndex + 1) % len(clearColors)
					renderer.SetClearColor(clearColors[clearIndex])
				}
			}
		}

		if err := renderer.Render(); err != nil {
			return err
		}

		frames++
		if elapsed := hrtime.Since(fpsStart); elapsed >= 2*time.Second {
			log.LogAttrs(context.Background(), slog.LevelDebug, "fps",
				slog.Float64("fps", float64(frames)/elapsed.Seconds()))
			frames = 0
			fpsStart = hrtime.Now()
		}
	}

	return nil
}
