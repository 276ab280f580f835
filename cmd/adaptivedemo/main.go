// Command adaptivedemo runs a headless simulation of an adaptive render loop.
//
// It probes the real GPU backends, registers synthetic objects, and feeds
// the monitor with frame times from a simple cost model so that tier and
// LOD changes can be observed without a window.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"math"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/image/math/f64"

	"github.com/gogpu/adaptive"
	"github.com/gogpu/adaptive/internal/config"
	"github.com/gogpu/adaptive/lod"
	"github.com/gogpu/adaptive/metrics"
	"github.com/gogpu/adaptive/perf"
	"github.com/gogpu/adaptive/probe/halprobe"
	"github.com/gogpu/adaptive/quality"
	"github.com/gogpu/adaptive/session"
)

func main() {
	var (
		frames      = flag.Int("frames", 1200, "number of simulated frames")
		objects     = flag.Int("objects", 400, "number of synthetic objects")
		load        = flag.Float64("load", 1.0, "frame cost multiplier")
		sampleEvery = flag.Int("sample-every", 30, "frames per monitor sample")
		envFile     = flag.String("env", "", "optional .env file")
		metricsAddr = flag.String("metrics", "", "serve Prometheus metrics on this address (e.g. :9100)")
	)
	flag.Parse()

	var files []string
	if *envFile != "" {
		files = append(files, *envFile)
	}
	cfg, err := config.Load(files...)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *metricsAddr == "" {
		*metricsAddr = cfg.MetricsAddr
	}

	adaptive.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel})))

	sim := clock.NewMock()
	opts := append(cfg.SessionOptions(),
		session.WithAPIs(halprobe.Default()...),
		session.WithMonitorOptions(perf.WithClock(sim)),
	)
	s := session.New(opts...)
	defer s.Close()

	if err := s.ProbeErr(); err != nil {
		log.Printf("No GPU context, running on the fallback profile: %v", err)
	} else {
		caps := s.Capabilities()
		log.Printf("Probed %s: %s (%s), score %d", caps.API(), caps.Renderer(), caps.Vendor(), s.Profiles().Score())
	}
	log.Printf("Initial profile: %v", s.Profiles().ActiveProfile())

	s.Profiles().OnChange(func(p quality.Profile) {
		log.Printf("Profile changed: %v", p)
	})
	s.Controller().OnApplied(func(a perf.Action) {
		log.Printf("Applied %v (LOD scale %.2f)", a, s.LOD().DistanceScale())
	})
	s.Controller().OnFallback(func(m perf.Metrics) {
		log.Printf("Static fallback at %v", m)
	})

	if err := registerObjects(s.LOD(), *objects); err != nil {
		log.Fatalf("Failed to register objects: %v", err)
	}

	if *metricsAddr != "" {
		collector := metrics.NewCollector(s)
		defer collector.Close()
		serveMetrics(*metricsAddr, collector)
	}

	run(s, sim, *frames, *sampleEvery, *load)

	stats := s.LastStatistics()
	log.Printf("Final: %v, %v, LOD scale %.2f", s.Profiles().ActiveProfile(), stats, s.LOD().DistanceScale())

	if *metricsAddr != "" {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		log.Printf("Serving metrics on %s, press Ctrl+C to exit", *metricsAddr)
		<-ctx.Done()
	}
}

// registerObjects places objects on a spiral with three variants each.
func registerObjects(m *lod.Manager, n int) error {
	for i := range n {
		angle := float64(i) * 0.5
		r := 2 + float64(i)*0.25
		err := m.Register(lod.Registration{
			ObjectID: fmt.Sprintf("object-%d", i),
			Anchor:   f64.Vec3{r * math.Cos(angle), 0, r * math.Sin(angle)},
			Radius:   1,
			Variants: []lod.Variant{
				{MaxDistance: 15, ComplexityCost: 5000},
				{MaxDistance: 40, ComplexityCost: 1200},
				{MaxDistance: 1000, ComplexityCost: 150},
			},
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// run drives the session. Time is simulated: the mock clock advances by
// the modeled frame time of every frame.
func run(s *session.Session, sim *clock.Mock, frames, sampleEvery int, load float64) {
	sampleEvery = max(1, sampleEvery)
	var elapsed float64
	for i := range frames {
		angle := float64(i) * 0.01
		cam := lod.Camera{Position: f64.Vec3{10 * math.Cos(angle), 2, 10 * math.Sin(angle)}}

		stats := s.Frame(cam)
		ft := frameCost(stats, s.Profiles().ActiveProfile(), load)
		sim.Add(time.Duration(ft * float64(time.Millisecond)))
		elapsed += ft

		if (i+1)%sampleEvery == 0 {
			s.Monitor().Push(perf.Sample{
				FrameTimeMs: elapsed / float64(sampleEvery),
				TimestampMs: sim.Now().UnixMilli(),
			})
			elapsed = 0
		}
		if !s.Interactive() && s.ProbeErr() == nil {
			log.Printf("Stopped at frame %d", i)
			return
		}
	}
}

// frameCost models frame time in milliseconds from scene complexity and
// the enabled features.
func frameCost(stats lod.Statistics, p quality.Profile, load float64) float64 {
	ms := 2 + float64(stats.TotalComplexity)/40000
	if p.ShadowsEnabled {
		ms *= 1.4
	}
	if p.PostProcessingEnabled {
		ms *= 1.25
	}
	ms *= p.RenderScale * p.RenderScale
	ms += float64(p.MaxLightCount) * 0.5
	return ms * load
}

func serveMetrics(addr string, c prometheus.Collector) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(c)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Metrics server: %v", err)
		}
	}()
}
