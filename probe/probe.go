// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package probe

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/adaptive"
)

// ErrUnsupported is returned when no graphics context could be acquired.
// It is fatal to 3D rendering; the host should present a non-3D experience.
var ErrUnsupported = errors.New("probe: no usable graphics context")

// probeSurfaceSize is the edge length of the throwaway probe surface.
const probeSurfaceSize = 1

// API is one graphics API tier the host can try to acquire.
//
// Implementations are provided by backend packages (see probe/halprobe)
// or by the host application.
type API interface {
	// Name returns the API name (e.g., "vulkan", "gl").
	Name() string

	// Modern reports whether this is the newer API tier.
	Modern() bool

	// Acquire creates a throwaway render surface of the given size.
	// The caller must Release the surface.
	Acquire(width, height int) (Surface, error)
}

// Surface is a short-lived render surface used only for probing.
type Surface interface {
	// Limits returns the context limits.
	Limits() Limits

	// Extensions returns the supported extension names.
	Extensions() []string

	// DebugInfo returns the unmasked renderer and vendor strings.
	// ok is false when the debug-info path is unavailable.
	DebugInfo() (info DebugInfo, ok bool)

	// Release frees the surface and its context.
	Release()
}

// Prober detects hardware capabilities once and caches the result.
//
// A Prober is constructed once at startup and passed to the components that
// need it. Probe may be called any number of times; only the first call
// touches the graphics APIs.
//
// Prober is safe for concurrent use.
type Prober struct {
	apis []API

	once sync.Once
	caps Capabilities
	err  error
}

// NewProber creates a prober that tries apis in order. List the newest API
// first; the first API that can be acquired wins.
func NewProber(apis ...API) *Prober {
	list := make([]API, 0, len(apis))
	for _, a := range apis {
		if a != nil {
			list = append(list, a)
		}
	}
	return &Prober{apis: list}
}

// Probe returns the hardware capabilities, probing on first use.
// It returns ErrUnsupported if none of the APIs could be acquired.
func (p *Prober) Probe() (Capabilities, error) {
	p.once.Do(func() {
		p.caps, p.err = p.run()
	})
	return p.caps, p.err
}

func (p *Prober) run() (Capabilities, error) {
	log := adaptive.Logger()

	var errs []error
	for _, api := range p.apis {
		caps, err := query(api)
		if err != nil {
			log.Debug("probe: api not available", "api", api.Name(), "err", err)
			errs = append(errs, fmt.Errorf("%s: %w", api.Name(), err))
			continue
		}
		log.Info("probe: graphics context acquired",
			"api", caps.API(),
			"modern", caps.SupportsModernAPI(),
			"renderer", caps.Renderer(),
			"vendor", caps.Vendor(),
			"maxTextureSize", caps.MaxTextureSize())
		return caps, nil
	}

	log.Warn("probe: no graphics context", "tried", len(p.apis))
	if len(errs) == 0 {
		return Capabilities{}, ErrUnsupported
	}
	return Capabilities{}, fmt.Errorf("%w: %w", ErrUnsupported, errors.Join(errs...))
}

// query acquires a probe surface from api, reads it, and releases it.
func query(api API) (Capabilities, error) {
	surface, err := api.Acquire(probeSurfaceSize, probeSurfaceSize)
	if err != nil {
		return Capabilities{}, err
	}
	if surface == nil {
		return Capabilities{}, errors.New("nil surface")
	}
	defer surface.Release()

	limits := surface.Limits()
	if limits.MaxRenderTargetSize == 0 {
		limits.MaxRenderTargetSize = limits.MaxTextureSize
	}

	info, ok := surface.DebugInfo()
	if !ok {
		info = DebugInfo{Renderer: UnknownName, Vendor: UnknownName}
	}

	return NewCapabilities(api.Name(), api.Modern(), limits, info, surface.Extensions()), nil
}

// StaticAPI is an API backed by fixed values. It is useful for tests and
// for hosts that learn their capabilities out of band (e.g. from a browser).
type StaticAPI struct {
	APIName    string
	IsModern   bool
	Limits     Limits
	Info       *DebugInfo // nil means debug info is unavailable
	Extensions []string
	Err        error // non-nil makes Acquire fail

	// Released counts Release calls on surfaces handed out by Acquire.
	Released int
}

// Name returns the configured API name.
func (s *StaticAPI) Name() string { return s.APIName }

// Modern reports the configured API tier.
func (s *StaticAPI) Modern() bool { return s.IsModern }

// Acquire returns a surface reporting the configured values, or Err.
func (s *StaticAPI) Acquire(width, height int) (Surface, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("probe: invalid surface size %dx%d", width, height)
	}
	return &staticSurface{api: s}, nil
}

type staticSurface struct {
	api *StaticAPI
}

func (s *staticSurface) Limits() Limits { return s.api.Limits }

func (s *staticSurface) Extensions() []string { return s.api.Extensions }

func (s *staticSurface) DebugInfo() (DebugInfo, bool) {
	if s.api.Info == nil {
		return DebugInfo{}, false
	}
	return *s.api.Info, true
}

func (s *staticSurface) Release() { s.api.Released++ }

// Ensure StaticAPI implements API.
var _ API = (*StaticAPI)(nil)
