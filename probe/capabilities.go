// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package probe

import (
	"fmt"
	"slices"
)

// UnknownName is reported for renderer and vendor when the graphics API
// exposes no debug information.
const UnknownName = "Unknown"

// Limits holds the numeric limits queried from a graphics context.
type Limits struct {
	// MaxTextureSize is the maximum 2D texture dimension in pixels.
	MaxTextureSize int

	// MaxRenderTargetSize is the maximum render target dimension in pixels.
	MaxRenderTargetSize int
}

// DebugInfo holds the unmasked renderer and vendor strings.
type DebugInfo struct {
	Renderer string
	Vendor   string
}

// Capabilities is an immutable snapshot of the host graphics hardware.
// It is created once by a Prober and never modified.
type Capabilities struct {
	supported    bool
	modernAPI    bool
	api          string
	limits       Limits
	renderer     string
	vendor       string
	extensions   map[string]struct{}
	extensionSeq []string
}

// NewCapabilities builds a supported Capabilities snapshot.
// Empty renderer or vendor strings are replaced by UnknownName.
// The extension list is copied and deduplicated.
func NewCapabilities(api string, modern bool, limits Limits, info DebugInfo, extensions []string) Capabilities {
	if info.Renderer == "" {
		info.Renderer = UnknownName
	}
	if info.Vendor == "" {
		info.Vendor = UnknownName
	}

	set := make(map[string]struct{}, len(extensions))
	seq := make([]string, 0, len(extensions))
	for _, ext := range extensions {
		if ext == "" {
			continue
		}
		if _, dup := set[ext]; dup {
			continue
		}
		set[ext] = struct{}{}
		seq = append(seq, ext)
	}
	slices.Sort(seq)

	return Capabilities{
		supported:    true,
		modernAPI:    modern,
		api:          api,
		limits:       limits,
		renderer:     info.Renderer,
		vendor:       info.Vendor,
		extensions:   set,
		extensionSeq: seq,
	}
}

// Supported reports whether any graphics context could be acquired.
func (c Capabilities) Supported() bool { return c.supported }

// SupportsModernAPI reports whether the newest API tier was acquired.
func (c Capabilities) SupportsModernAPI() bool { return c.modernAPI }

// API returns the name of the graphics API that was acquired.
func (c Capabilities) API() string { return c.api }

// Limits returns the queried context limits.
func (c Capabilities) Limits() Limits { return c.limits }

// MaxTextureSize returns the maximum 2D texture dimension.
func (c Capabilities) MaxTextureSize() int { return c.limits.MaxTextureSize }

// MaxRenderTargetSize returns the maximum render target dimension.
func (c Capabilities) MaxRenderTargetSize() int { return c.limits.MaxRenderTargetSize }

// Renderer returns the renderer string, or UnknownName.
func (c Capabilities) Renderer() string {
	if c.renderer == "" {
		return UnknownName
	}
	return c.renderer
}

// Vendor returns the vendor string, or UnknownName.
func (c Capabilities) Vendor() string {
	if c.vendor == "" {
		return UnknownName
	}
	return c.vendor
}

// HasExtension reports whether the named extension is supported.
func (c Capabilities) HasExtension(name string) bool {
	_, ok := c.extensions[name]
	return ok
}

// Extensions returns the sorted extension names.
// The returned slice is a copy and can be safely modified.
func (c Capabilities) Extensions() []string {
	return slices.Clone(c.extensionSeq)
}

// String returns a human-readable description of the capabilities.
func (c Capabilities) String() string {
	if !c.supported {
		return "Capabilities[unsupported]"
	}
	return fmt.Sprintf("Capabilities[%s modern=%t tex=%d rt=%d renderer=%q vendor=%q ext=%d]",
		c.api, c.modernAPI, c.limits.MaxTextureSize, c.limits.MaxRenderTargetSize,
		c.Renderer(), c.Vendor(), len(c.extensionSeq))
}
