// Package render defines the backend-agnostic presentation surface of the
// engine: the Renderer contract, runtime configuration, and the small value
// types shared between backends and the application shell.
package render

import "log/slog"

// Size is a framebuffer size in pixels.
type Size struct {
	Width  uint32
	Height uint32
}

// IsZero reports whether either dimension is zero. A zero-area surface
// cannot be presented to and pauses rendering.
func (s Size) IsZero() bool {
	return s.Width == 0 || s.Height == 0
}

// VsyncMode selects the preferred presentation cadence when vsync is enabled.
type VsyncMode int

const (
	// VsyncFIFO prefers the always-available FIFO queue.
	VsyncFIFO VsyncMode = iota
	// VsyncMailbox prefers mailbox presentation when the surface offers it,
	// falling back to FIFO.
	VsyncMailbox
)

func (m VsyncMode) String() string {
	if m == VsyncMailbox {
		return "mailbox"
	}
	return "fifo"
}

// HdrFlavor selects which HDR swapchain format family to try first when HDR
// output is requested. Either flavor falls back to the other before dropping
// to SDR.
type HdrFlavor int

const (
	// PreferScrgb tries extended-sRGB FP16 surfaces first.
	PreferScrgb HdrFlavor = iota
	// PreferHdr10 tries 10-bit HDR10/PQ surfaces first.
	PreferHdr10
)

func (f HdrFlavor) String() string {
	if f == PreferHdr10 {
		return "hdr10"
	}
	return "scrgb"
}

// Vertex is the interleaved vertex layout consumed by the built-in pipeline.
type Vertex struct {
	Position [3]float32
	Color    [3]float32
	UV       [2]float32
}

// Mesh is an indexed triangle list.
type Mesh struct {
	Vertices []Vertex
	Indices  []uint32
}

// ReloadTrigger supplies replacement shader bytecode while the application is
// running. Backends poll it once per frame; a pending change causes a pipeline
// rebuild on that frame.
type ReloadTrigger interface {
	// Poll returns replacement vertex and fragment SPIR-V when a change is
	// pending. It must be cheap to call every frame.
	Poll() (vert []byte, frag []byte, ok bool)
}

// Config carries the renderer options fixed or adjustable at runtime.
// The zero value is a usable default: vsync on, FIFO, SDR output.
type Config struct {
	// Vsync enables synchronized presentation. When false the backend
	// prefers tear-prone immediate presentation where available.
	Vsync bool
	// VsyncMode picks the queueing behavior used when Vsync is true.
	VsyncMode VsyncMode
	// HDR requests a high-dynamic-range swapchain. Honored only when the
	// platform exposes extended color spaces; otherwise output stays SDR.
	HDR bool
	// HDRFlavor orders the HDR format preference when HDR is true.
	HDRFlavor HdrFlavor
	// ClearColor is the initial clear color, linear RGBA.
	ClearColor [4]float32
	// ForceExtensionPath makes the backend take its extension-based feature
	// path even on devices that support the newer core path. Useful for
	// exercising the compatibility path on modern drivers.
	ForceExtensionPath bool
	// Validation enables the debug layer and messenger when present.
	Validation bool
	// Mesh overrides the built-in test geometry.
	Mesh *Mesh
	// Reload, when non-nil, is polled each frame for shader replacements.
	Reload ReloadTrigger
	// CacheDir is the directory for on-disk pipeline caches. Empty means
	// the current working directory.
	CacheDir string
	// Logger receives policy decisions and lifecycle events. Nil disables
	// logging.
	Logger *slog.Logger
}

// Renderer drives presentation for one window. Implementations are not safe
// for concurrent use; all methods must be called from the thread that owns
// the window.
type Renderer interface {
	// Resize notifies the renderer of a new framebuffer size. A zero-area
	// size pauses rendering until a non-zero resize arrives.
	Resize(size Size) error
	// Render records and presents one frame. It is a no-op while paused.
	Render() error
	// SetClearColor changes the clear color without rebuilding the swapchain.
	SetClearColor(rgba [4]float32)
	// SetVsync toggles synchronized presentation.
	SetVsync(on bool)
	// SetVsyncMode changes the vsync queueing preference.
	SetVsyncMode(mode VsyncMode)
	// SetHDREnabled toggles HDR output where supported.
	SetHDREnabled(on bool)
	// SetHDRFlavor changes the HDR format preference.
	SetHDRFlavor(flavor HdrFlavor)
	// Destroy releases all resources. The renderer is unusable afterwards.
	Destroy()
}
