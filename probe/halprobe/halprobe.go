//go:build !nogpu

// Package halprobe implements probe.API on top of gogpu/wgpu HAL backends.
//
// The Vulkan backend is compiled in by this package. Hosts that want Metal,
// DX12 or GL probing blank-import the corresponding wgpu HAL package; Default
// skips any backend that is not registered.
package halprobe

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"
	_ "github.com/gogpu/wgpu/hal/vulkan"
	"golang.org/x/text/cases"

	"github.com/gogpu/adaptive"
	"github.com/gogpu/adaptive/probe"
)

var (
	// ErrNoBackend is returned by Acquire when the API has no HAL backend.
	ErrNoBackend = errors.New("halprobe: backend not available")

	// ErrNoAdapter is returned by Acquire when the backend exposes no adapters.
	ErrNoAdapter = errors.New("halprobe: no GPU adapters found")
)

// ExtensionWGSL is reported when WGSL shaders compile for this host.
const ExtensionWGSL = "wgsl"

// probeShaderWGSL is the smallest compute shader naga accepts.
const probeShaderWGSL = `
@compute @workgroup_size(1)
fn main() {}
`

// backendOrder lists HAL backends newest first. GL is the legacy tier.
var backendOrder = []struct {
	backend gputypes.Backend
	name    string
	modern  bool
}{
	{gputypes.BackendVulkan, "vulkan", true},
	{gputypes.BackendMetal, "metal", true},
	{gputypes.BackendDX12, "dx12", true},
	{gputypes.BackendGL, "gl", false},
}

// Default returns an API for every registered HAL backend, newest first.
func Default() []probe.API {
	var apis []probe.API
	for _, b := range backendOrder {
		backend, ok := hal.GetBackend(b.backend)
		if !ok {
			continue
		}
		apis = append(apis, New(backend, b.name, b.modern))
	}
	return apis
}

// API probes a single HAL backend.
type API struct {
	backend hal.Backend
	name    string
	modern  bool
}

// New creates an API over backend. modern marks the newer API tier.
func New(backend hal.Backend, name string, modern bool) *API {
	return &API{backend: backend, name: name, modern: modern}
}

// Name returns the backend name.
func (a *API) Name() string { return a.name }

// Modern reports whether this backend is the newer API tier.
func (a *API) Modern() bool { return a.modern }

// Acquire opens a device on the best adapter and allocates a width x height
// render target. The returned surface owns the instance, device and texture.
func (a *API) Acquire(width, height int) (probe.Surface, error) {
	if a.backend == nil {
		return nil, ErrNoBackend
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("halprobe: invalid surface size %dx%d", width, height)
	}

	instance, err := a.backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("create instance: %w", err)
	}

	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, ErrNoAdapter
	}
	selected := selectAdapter(adapters)

	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("open device: %w", err)
	}

	s := &surface{
		instance: instance,
		device:   openDev.Device,
		renderer: rendererName(selected.Info),
		vendor:   selected.Info.Vendor,
		limits:   limitsOf(selected),
	}

	//nolint:gosec // G115: probe surface dimensions are tiny
	tex, err := openDev.Device.CreateTexture(&hal.TextureDescriptor{
		Label: "adaptive_probe_surface",
		Size: hal.Extent3D{
			Width:              uint32(width),
			Height:             uint32(height),
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        gputypes.TextureFormatRGBA8Unorm,
		Usage:         gputypes.TextureUsageRenderAttachment,
	})
	if err != nil {
		s.Release()
		return nil, fmt.Errorf("create probe surface: %w", err)
	}
	s.texture = tex

	if _, err := naga.Compile(probeShaderWGSL); err != nil {
		adaptive.Logger().Debug("halprobe: WGSL compile check failed", "api", a.name, "err", err)
	} else {
		s.extensions = append(s.extensions, ExtensionWGSL)
	}

	return s, nil
}

// softwareName is the renderer reported for an unnamed CPU adapter.
const softwareName = "Software Renderer"

// rendererName returns the adapter name, marked as software for CPU
// adapters so the default scoring policy caps it.
func rendererName(info gputypes.AdapterInfo) string {
	if info.DeviceType == gputypes.DeviceTypeCPU {
		if info.Name == "" {
			return softwareName
		}
		return markSoftware(info.Name)
	}
	return info.Name
}

// markSoftware appends a software marker unless name already carries one.
func markSoftware(name string) string {
	if strings.Contains(cases.Fold().String(name), "software") {
		return name
	}
	return name + " (Software)"
}

// selectAdapter prefers a discrete or integrated GPU over software adapters.
func selectAdapter(adapters []hal.ExposedAdapter) *hal.ExposedAdapter {
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			return &adapters[i]
		}
	}
	return &adapters[0]
}

// limitsOf reads texture limits from the adapter capabilities, falling back
// to the WebGPU baseline when the adapter reports none.
func limitsOf(a *hal.ExposedAdapter) probe.Limits {
	dim := a.Capabilities.Limits.MaxTextureDimension2D
	if dim == 0 {
		dim = gputypes.DefaultLimits().MaxTextureDimension2D
	}
	return probe.Limits{
		MaxTextureSize:      int(dim),
		MaxRenderTargetSize: int(dim),
	}
}

// surface holds the HAL resources acquired for one probe.
type surface struct {
	instance   hal.Instance
	device     hal.Device
	texture    hal.Texture
	renderer   string
	vendor     string
	limits     probe.Limits
	extensions []string
	released   bool
}

func (s *surface) Limits() probe.Limits { return s.limits }

func (s *surface) Extensions() []string { return s.extensions }

func (s *surface) DebugInfo() (probe.DebugInfo, bool) {
	if s.renderer == "" && s.vendor == "" {
		return probe.DebugInfo{}, false
	}
	return probe.DebugInfo{Renderer: s.renderer, Vendor: s.vendor}, true
}

// Release destroys resources in reverse order of creation.
func (s *surface) Release() {
	if s.released {
		return
	}
	s.released = true

	if s.texture != nil {
		s.device.DestroyTexture(s.texture)
		s.texture = nil
	}
	if s.device != nil {
		s.device.Destroy()
		s.device = nil
	}
	if s.instance != nil {
		s.instance.Destroy()
		s.instance = nil
	}
}

// Ensure API implements probe.API.
var _ probe.API = (*API)(nil)
