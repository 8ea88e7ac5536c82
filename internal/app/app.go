// Package app wires the trace-processing pipeline together: reader,
// segmenter, processors, scheduler, tracker and writer.
package app

import (
	"context"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/utracetools/frametree/internal/output"
	"github.com/utracetools/frametree/internal/scheduler"
	"github.com/utracetools/frametree/pkg/processor"
	"github.com/utracetools/frametree/pkg/trace"
	"github.com/utracetools/frametree/pkg/tracker"
	"github.com/utracetools/frametree/pkg/tree"
	"github.com/utracetools/frametree/pkg/xlog"
)

// Report is what a finished (or aborted) run amounts to.
type Report struct {
	Summary       tracker.Summary
	MalformedRows uint64
}

type App struct {
	l    xlog.Logger
	fs   afero.Fs
	conf *Config

	registry *prometheus.Registry
}

type Option func(*App)

// WithFS overrides the filesystem, for tests.
func WithFS(fs afero.Fs) Option {
	return func(a *App) {
		a.fs = fs
	}
}

func New(conf *Config, l xlog.Logger, opts ...Option) (*App, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}

	a := &App{
		l:        l.WithName("app"),
		fs:       afero.NewOsFs(),
		conf:     conf,
		registry: prometheus.NewRegistry(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Run processes the configured trace end to end. Cancellation stops
// submission of new frames; the output stays a valid JSON array. On a
// sink failure the sink is closed before the error propagates.
func (a *App) Run(ctx context.Context) (*Report, error) {
	runID, err := uuid.NewV4()
	if err != nil {
		return nil, fmt.Errorf("app: generate run id: %w", err)
	}
	ctx = xlog.WrapContext(ctx, zap.String("run_id", runID.String()))

	a.l.Info(ctx, "Starting trace processing",
		zap.String("input", a.conf.InputPath),
		zap.String("output", a.conf.Output.Path),
		zap.Int("workers", a.conf.Processing.WorkerCount),
		zap.Int("batch_size", a.conf.Processing.BatchSize),
		zap.String("tree_builder", a.conf.Processing.TreeBuilder),
	)

	input, err := a.fs.Open(a.conf.InputPath)
	if err != nil {
		return nil, fmt.Errorf("app: open input: %w", err)
	}
	defer input.Close()

	reader, err := trace.NewReader(input)
	if err != nil {
		return nil, err
	}

	var segOpts []trace.SegmenterOption
	if m := a.conf.Processing.MaxFrameCount; m != nil && *m > 0 {
		segOpts = append(segOpts, trace.WithMaxFrames(*m))
	}
	segmenter := trace.NewSegmenter(reader, segOpts...)

	pipe, err := a.buildPipeline()
	if err != nil {
		return nil, err
	}

	sink, err := a.fs.Create(a.conf.Output.Path)
	if err != nil {
		return nil, fmt.Errorf("app: create output: %w", err)
	}
	writer, err := output.NewWriter(sink, a.conf.Output.Compress)
	if err != nil {
		_ = sink.Close()
		return nil, err
	}

	track := tracker.New(a.l, a.registry, a.conf.ProgressEvery)
	sched := scheduler.New(a.l, scheduler.Config{
		Workers:   a.conf.Processing.WorkerCount,
		BatchSize: a.conf.Processing.BatchSize,
	})

	runErr := sched.Run(ctx, segmenter, pipe, func(res *processor.Result) error {
		track.Track(ctx, res)
		if !res.Included {
			return nil
		}
		return writer.WriteFrame(res.Data)
	})

	// Closed unconditionally so even a truncated run leaves a
	// parseable array behind.
	closeErr := writer.Close()
	if runErr == nil {
		runErr = closeErr
	}

	report := &Report{
		Summary:       track.Summary(),
		MalformedRows: reader.MalformedRows(),
	}

	if runErr != nil {
		a.l.Error(ctx, "Trace processing failed", zap.Error(runErr))
		return report, runErr
	}

	a.logSummary(ctx, report)

	if a.conf.MetricsPath != "" {
		if err := a.dumpMetrics(); err != nil {
			a.l.Warn(ctx, "Failed to dump metrics", zap.Error(err))
		}
	}

	return report, nil
}

func (a *App) buildPipeline() (*processor.Pipeline, error) {
	var builder tree.Builder
	switch a.conf.Processing.TreeBuilder {
	case BuilderStack:
		builder = tree.NewStackBuilder()
	case BuilderInterval:
		builder = tree.NewIntervalBuilder()
	default:
		return nil, fmt.Errorf("app: unknown tree_builder %q", a.conf.Processing.TreeBuilder)
	}

	var maxFrames uint64
	if m := a.conf.Processing.MaxFrameCount; m != nil {
		maxFrames = *m
	}

	return processor.NewPipeline(
		builder,
		processor.NewCachedNameProcessor(processor.NewDefaultNameProcessor()),
		processor.NewDefaultNodeProcessor(a.conf.Processing.MinNodeDuration, a.conf.Processing.ExcludedCategories),
		processor.NewDefaultFrameProcessor(a.conf.Processing.MinFrameDuration, maxFrames),
	), nil
}

func (a *App) logSummary(ctx context.Context, report *Report) {
	s := report.Summary
	a.l.Info(ctx, "Trace processing finished",
		zap.Uint64("total_frames", s.TotalFrames),
		zap.Uint64("included_frames", s.IncludedFrames),
		zap.Uint64("excluded_frames", s.ExcludedFrames),
		zap.Uint64("failed_frames", s.FailedFrames),
		zap.Uint64("total_nodes", s.TotalNodes),
		zap.Uint64("kept_nodes", s.KeptNodes),
		zap.Uint64("dropped_nodes", s.DroppedNodes),
		zap.Uint64("malformed_rows", report.MalformedRows),
		zap.Duration("total_time", s.TotalTime),
		zap.Duration("avg_parse_time", s.AvgParseTime),
		zap.Duration("avg_convert_time", s.AvgConvertTime),
		zap.Float64("frames_per_second", s.FramesPerSecond),
	)
}

func (a *App) dumpMetrics() error {
	families, err := a.registry.Gather()
	if err != nil {
		return fmt.Errorf("app: gather metrics: %w", err)
	}

	f, err := a.fs.Create(a.conf.MetricsPath)
	if err != nil {
		return fmt.Errorf("app: create metrics file: %w", err)
	}
	defer f.Close()

	enc := expfmt.NewEncoder(f, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, family := range families {
		if err := enc.Encode(family); err != nil {
			return fmt.Errorf("app: encode metrics: %w", err)
		}
	}
	return nil
}
