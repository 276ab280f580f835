// Package adaptive keeps a real-time renderer inside its frame budget.
//
// # Overview
//
// adaptive is the performance-adaptive rendering controller for the GoGPU
// ecosystem. It does not draw anything. It decides how much detail a renderer
// should produce and when to reduce it:
//
//   - probe: one-shot hardware capability detection and scoring
//   - quality: discrete quality tiers (High, Medium, Low) and the active profile
//   - perf: periodic frame-time sampling, rolling metrics, threshold events
//   - lod: per-object level-of-detail selection and culling statistics
//   - degrade: applies degradation actions to quality and lod
//   - session: wires all of the above for a host render loop
//
// # Quick Start
//
//	s := session.New(session.WithAPIs(halprobe.Default()...))
//	defer s.Close()
//	s.Start()
//
//	for running {
//	    stats := s.Frame(lod.Camera{Position: cameraPos})
//	    profile := s.Profiles().ActiveProfile()
//	    // render using profile.ShadowsEnabled, profile.RenderScale, ...
//	    _ = stats
//	}
//
// # Logging
//
// adaptive is silent by default. Call [SetLogger] to route diagnostics to
// any [log/slog] handler.
package adaptive
