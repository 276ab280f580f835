// Package metrics exports adaptive state to Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/gogpu/adaptive"
	"github.com/gogpu/adaptive/degrade"
	"github.com/gogpu/adaptive/lod"
	"github.com/gogpu/adaptive/perf"
	"github.com/gogpu/adaptive/quality"
)

const namespace = "adaptive"

// Source is the state the collector reads. *session.Session implements it.
type Source interface {
	Monitor() *perf.Monitor
	Profiles() *quality.Manager
	LOD() *lod.Manager
	Controller() *degrade.Controller
	LastStatistics() lod.Statistics
}

// Collector is a prometheus.Collector reporting frame rate, the active
// quality profile, LOD statistics, and applied degradation actions.
// Gauges are read from the source at scrape time.
type Collector struct {
	src     Source
	token   adaptive.Token
	actions *prometheus.CounterVec

	fps, avgFPS, frameTime, memory       *prometheus.Desc
	tier, renderScale, shadows, post     *prometheus.Desc
	fallback, lodScale                   *prometheus.Desc
	objects, visible, complexity, culled *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector creates a collector for src and subscribes to its
// controller. Call Close to unsubscribe.
func NewCollector(src Source) *Collector {
	desc := func(name, help string, labels ...string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, labels, nil)
	}
	c := &Collector{
		src: src,
		actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "degradation_actions_total",
			Help:      "Degradation actions that took effect, by action.",
		}, []string{"action"}),

		fps:         desc("fps", "Frame rate of the most recent sample."),
		avgFPS:      desc("fps_average", "Mean frame rate over the sample window."),
		frameTime:   desc("frame_time_seconds", "Frame time of the most recent sample."),
		memory:      desc("memory_bytes", "Memory in use as reported by the memory source."),
		tier:        desc("quality_tier", "Active quality tier (0 low, 1 medium, 2 high)."),
		renderScale: desc("render_scale", "Active render scale."),
		shadows:     desc("shadows_enabled", "1 if shadows are enabled."),
		post:        desc("post_processing_enabled", "1 if post-processing is enabled."),
		fallback:    desc("static_fallback", "1 after the static fallback was triggered."),
		lodScale:    desc("lod_distance_scale", "Global LOD distance scale."),
		objects:     desc("lod_objects", "Registered LOD objects."),
		visible:     desc("lod_visible_objects", "Visible LOD objects in the last frame."),
		complexity:  desc("lod_complexity", "Total complexity of visible objects in the last frame."),
		culled:      desc("lod_culled_objects", "Culled objects in the last frame.", "reason"),
	}
	for _, a := range perf.Actions() {
		c.actions.WithLabelValues(a.String())
	}
	c.token = src.Controller().OnApplied(func(a perf.Action) {
		c.actions.WithLabelValues(a.String()).Inc()
	})
	return c
}

// Close unsubscribes from the controller.
func (c *Collector) Close() {
	c.src.Controller().Unsubscribe(c.token)
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		c.fps, c.avgFPS, c.frameTime, c.memory,
		c.tier, c.renderScale, c.shadows, c.post,
		c.fallback, c.lodScale,
		c.objects, c.visible, c.complexity, c.culled,
	} {
		ch <- d
	}
	c.actions.Describe(ch)
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	gauge := func(d *prometheus.Desc, v float64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, v, labels...)
	}

	m := c.src.Monitor().Snapshot()
	gauge(c.fps, m.InstantFPS)
	gauge(c.avgFPS, m.AverageFPS)
	gauge(c.frameTime, m.FrameTimeMs/1000)
	gauge(c.memory, m.MemoryMB*1024*1024)

	p := c.src.Profiles().ActiveProfile()
	gauge(c.tier, float64(p.Tier))
	gauge(c.renderScale, p.RenderScale)
	gauge(c.shadows, boolValue(p.ShadowsEnabled))
	gauge(c.post, boolValue(p.PostProcessingEnabled))
	gauge(c.fallback, boolValue(c.src.Controller().FallenBack()))

	gauge(c.lodScale, c.src.LOD().DistanceScale())
	s := c.src.LastStatistics()
	gauge(c.objects, float64(c.src.LOD().Len()))
	gauge(c.visible, float64(s.VisibleObjects))
	gauge(c.complexity, float64(s.TotalComplexity))
	gauge(c.culled, float64(s.FrustumCulledCount), "frustum")
	gauge(c.culled, float64(s.OcclusionCulledCount), "occlusion")

	c.actions.Collect(ch)
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
