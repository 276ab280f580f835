//go:build !nogpu

package halprobe

import (
	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"

	"github.com/gogpu/adaptive/probe"
)

// VendorProvider is an optional interface for device providers that know
// their adapter vendor. gpucontext.AdapterInfo carries only name and type.
type VendorProvider interface {
	AdapterVendor() string
}

// LimitsProvider is an optional interface for device providers that expose
// the limits their device was created with.
type LimitsProvider interface {
	Limits() gputypes.Limits
}

// SharedAPI probes a device owned by the host application (e.g. a gogpu
// window). It never creates or destroys GPU resources.
type SharedAPI struct {
	provider gpucontext.DeviceProvider
}

// Shared creates an API over the host's device provider.
func Shared(provider gpucontext.DeviceProvider) *SharedAPI {
	return &SharedAPI{provider: provider}
}

// Name returns "shared".
func (a *SharedAPI) Name() string { return "shared" }

// Modern reports true: a gpucontext device is a WebGPU-class device.
func (a *SharedAPI) Modern() bool { return true }

// Acquire returns a view of the provider's device. Size is ignored because
// no surface is allocated on a device the host owns.
func (a *SharedAPI) Acquire(_, _ int) (probe.Surface, error) {
	if a.provider == nil || a.provider.Device() == nil {
		return nil, ErrNoBackend
	}

	limits := gputypes.DefaultLimits()
	if lp, ok := a.provider.(LimitsProvider); ok {
		limits = lp.Limits()
	}

	s := &sharedSurface{
		limits: probe.Limits{
			MaxTextureSize:      int(limits.MaxTextureDimension2D),
			MaxRenderTargetSize: int(limits.MaxTextureDimension2D),
		},
	}
	if info := a.provider.AdapterInfo(); info.Name != "" {
		s.info.Renderer = info.Name
		if info.Type == gpucontext.AdapterTypeSoftware {
			s.info.Renderer = markSoftware(info.Name)
		}
		s.info.Vendor = probe.UnknownName
		if vp, ok := a.provider.(VendorProvider); ok && vp.AdapterVendor() != "" {
			s.info.Vendor = vp.AdapterVendor()
		}
		s.hasInfo = true
	} else if info.Type == gpucontext.AdapterTypeSoftware {
		s.info = probe.DebugInfo{Renderer: softwareName, Vendor: probe.UnknownName}
		s.hasInfo = true
	}
	if _, err := naga.Compile(probeShaderWGSL); err == nil {
		s.extensions = []string{ExtensionWGSL}
	}
	return s, nil
}

type sharedSurface struct {
	limits     probe.Limits
	info       probe.DebugInfo
	hasInfo    bool
	extensions []string
}

func (s *sharedSurface) Limits() probe.Limits { return s.limits }

func (s *sharedSurface) Extensions() []string { return s.extensions }

func (s *sharedSurface) DebugInfo() (probe.DebugInfo, bool) { return s.info, s.hasInfo }

// Release is a no-op: the host owns the device.
func (s *sharedSurface) Release() {}

// Ensure SharedAPI implements probe.API.
var _ probe.API = (*SharedAPI)(nil)
