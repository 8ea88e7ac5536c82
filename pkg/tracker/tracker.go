// Package tracker keeps thread-safe running statistics over every
// completed frame, included or excluded.
package tracker

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/utracetools/frametree/pkg/processor"
	"github.com/utracetools/frametree/pkg/xlog"
)

type trackerMetrics struct {
	includedFrames prometheus.Counter
	excludedFrames prometheus.Counter
	failedFrames   prometheus.Counter

	parsedNodes prometheus.Counter
	keptNodes   prometheus.Counter

	parseSeconds   prometheus.Counter
	convertSeconds prometheus.Counter
}

func newTrackerMetrics(reg prometheus.Registerer) *trackerMetrics {
	frames := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "frametree_frames_total",
		Help: "Frames processed, by outcome.",
	}, []string{"status"})
	nodes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "frametree_nodes_total",
		Help: "Nodes seen, by disposition.",
	}, []string{"kind"})
	parseSeconds := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "frametree_parse_seconds_total",
		Help: "Cumulative tree reconstruction time.",
	})
	convertSeconds := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "frametree_convert_seconds_total",
		Help: "Cumulative filter and serialization time.",
	})

	if reg != nil {
		reg.MustRegister(frames, nodes, parseSeconds, convertSeconds)
	}

	return &trackerMetrics{
		includedFrames: frames.WithLabelValues("included"),
		excludedFrames: frames.WithLabelValues("excluded"),
		failedFrames:   frames.WithLabelValues("failed"),
		parsedNodes:    nodes.WithLabelValues("parsed"),
		keptNodes:      nodes.WithLabelValues("kept"),
		parseSeconds:   parseSeconds,
		convertSeconds: convertSeconds,
	}
}

// Summary is a consistent snapshot of a run's statistics.
type Summary struct {
	TotalFrames    uint64
	IncludedFrames uint64
	ExcludedFrames uint64
	FailedFrames   uint64

	TotalNodes   uint64
	KeptNodes    uint64
	DroppedNodes uint64

	TotalTime       time.Duration
	AvgParseTime    time.Duration
	AvgConvertTime  time.Duration
	FramesPerSecond float64
}

// Tracker accumulates per-frame outcomes. All methods are safe for
// concurrent use; Summary never returns a torn snapshot.
type Tracker struct {
	l       xlog.Logger
	metrics *trackerMetrics

	progressEvery uint64

	mu             sync.Mutex
	start          time.Time
	frames         uint64
	excludedFrames uint64
	failedFrames   uint64
	totalNodes     uint64
	keptNodes      uint64
	parseTime      time.Duration
	convertTime    time.Duration
}

func New(l xlog.Logger, reg prometheus.Registerer, progressEvery uint64) *Tracker {
	return &Tracker{
		l:             l.WithName("tracker"),
		metrics:       newTrackerMetrics(reg),
		progressEvery: progressEvery,
		start:         time.Now(),
	}
}

// Track records one completed frame.
func (t *Tracker) Track(ctx context.Context, res *processor.Result) {
	t.mu.Lock()
	t.frames++
	t.totalNodes += uint64(res.OriginalNodes)
	t.keptNodes += uint64(res.FilteredNodes)
	t.parseTime += res.ParseTime
	t.convertTime += res.ConvertTime
	if !res.Included {
		t.excludedFrames++
	}
	if res.Err != nil {
		t.failedFrames++
	}
	frames := t.frames
	elapsed := time.Since(t.start)
	t.mu.Unlock()

	t.metrics.parsedNodes.Add(float64(res.OriginalNodes))
	t.metrics.keptNodes.Add(float64(res.FilteredNodes))
	t.metrics.parseSeconds.Add(res.ParseTime.Seconds())
	t.metrics.convertSeconds.Add(res.ConvertTime.Seconds())
	switch {
	case res.Err != nil:
		t.metrics.failedFrames.Inc()
	case res.Included:
		t.metrics.includedFrames.Inc()
	default:
		t.metrics.excludedFrames.Inc()
	}

	if t.progressEvery > 0 && frames%t.progressEvery == 0 {
		fps := 0.0
		if elapsed > 0 {
			fps = float64(frames) / elapsed.Seconds()
		}
		t.l.Info(ctx, "Progress",
			zap.Uint64("frame", res.Index),
			zap.Int("original_nodes", res.OriginalNodes),
			zap.Int("filtered_nodes", res.FilteredNodes),
			zap.Duration("parse_time", res.ParseTime),
			zap.Duration("convert_time", res.ConvertTime),
			zap.Duration("elapsed", elapsed),
			zap.Float64("frames_per_second", fps),
			zap.Bool("included", res.Included),
		)
	}
}

// Summary returns a snapshot of everything tracked so far.
func (t *Tracker) Summary() Summary {
	t.mu.Lock()
	defer t.mu.Unlock()

	elapsed := time.Since(t.start)
	s := Summary{
		TotalFrames:    t.frames,
		IncludedFrames: t.frames - t.excludedFrames,
		ExcludedFrames: t.excludedFrames,
		FailedFrames:   t.failedFrames,
		TotalNodes:     t.totalNodes,
		KeptNodes:      t.keptNodes,
		DroppedNodes:   t.totalNodes - t.keptNodes,
		TotalTime:      elapsed,
	}
	if t.frames > 0 {
		s.AvgParseTime = t.parseTime / time.Duration(t.frames)
		s.AvgConvertTime = t.convertTime / time.Duration(t.frames)
	}
	if elapsed > 0 {
		s.FramesPerSecond = float64(t.frames) / elapsed.Seconds()
	}
	return s
}
