package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/utracetools/frametree/pkg/xlog"
)

const csvHeader = "TimerId,TimerName,StartTime,EndTime,Duration,Depth\n"

func writeInput(t *testing.T, fs afero.Fs, path, content string) {
	t.Helper()
	require.NoError(t, afero.WriteFile(fs, path, []byte(content), 0o644))
}

func runApp(t *testing.T, fs afero.Fs, conf *Config) (*Report, []byte) {
	t.Helper()

	conf.FillDefault()
	a, err := New(conf, xlog.NewNop(), WithFS(fs))
	require.NoError(t, err)

	report, err := a.Run(context.Background())
	require.NoError(t, err)

	out, err := afero.ReadFile(fs, conf.Output.Path)
	require.NoError(t, err)
	return report, out
}

// Frame 0 is shorter than the frame threshold and must be entirely
// absent; frame 1 survives with no children.
func TestApp_FrameThresholdScenario(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeInput(t, fs, "/trace.csv", csvHeader+
		"1,Tick,0.0,0.016,0.016,0\n"+
		"2,Child,0.001,0.005,0.004,1\n"+
		"1,Tick,0.016,0.056,0.040,0\n")

	conf := &Config{
		InputPath:  "/trace.csv",
		Output:     OutputConfig{Path: "/out.json"},
		Processing: ProcessingConfig{MinFrameDuration: 0.02},
	}
	report, out := runApp(t, fs, conf)

	var frames []struct {
		TimerName string         `json:"timer_name"`
		Duration  float64        `json:"duration"`
		Children  []any          `json:"children"`
		Metadata  map[string]any `json:"metadata"`
	}
	require.NoError(t, json.Unmarshal(out, &frames))
	require.Len(t, frames, 1)
	require.Equal(t, "Tick", frames[0].TimerName)
	require.InDelta(t, 0.040, frames[0].Duration, 1e-9)
	require.Empty(t, frames[0].Children)
	require.EqualValues(t, 1, frames[0].Metadata["frame_index"])

	require.EqualValues(t, 2, report.Summary.TotalFrames)
	require.EqualValues(t, 1, report.Summary.IncludedFrames)
	require.EqualValues(t, 1, report.Summary.ExcludedFrames)
}

func syntheticTrace(frames int) string {
	var sb strings.Builder
	sb.WriteString(csvHeader)
	for i := 0; i < frames; i++ {
		start := float64(i) * 0.020
		// Durations vary so some frames cross annotation thresholds.
		rootDur := 0.010 + float64(i%4)*0.008
		fmt.Fprintf(&sb, "1,FEngineLoop::Tick,%.6f,%.6f,%.6f,0\n", start, start+rootDur, rootDur)
		fmt.Fprintf(&sb, "2,STAT_RenderScene%d,%.6f,%.6f,%.6f,1\n", i%7, start+0.001, start+0.006, 0.005)
		fmt.Fprintf(&sb, "3,DrawCalls,%.6f,%.6f,%.6f,2\n", start+0.002, start+0.005, 0.003)
		fmt.Fprintf(&sb, "4,PhysicsStep,%.6f,%.6f,%.6f,1\n", start+0.007, start+0.009, 0.002)
	}
	return sb.String()
}

func baseConfig(workers int) *Config {
	return &Config{
		InputPath: "/trace.csv",
		Output:    OutputConfig{Path: fmt.Sprintf("/out-w%d.json", workers)},
		Processing: ProcessingConfig{
			MinNodeDuration: 0.0001,
			WorkerCount:     workers,
			BatchSize:       50,
		},
	}
}

// Concurrency must not be observable in the output: 1000 frames with 4
// workers come out byte-identical to the single-threaded run.
func TestApp_ConcurrentOutputMatchesSequential(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeInput(t, fs, "/trace.csv", syntheticTrace(1000))

	_, sequential := runApp(t, fs, baseConfig(1))
	_, concurrent := runApp(t, fs, baseConfig(4))

	require.Equal(t, sequential, concurrent)

	var frames []json.RawMessage
	require.NoError(t, json.Unmarshal(concurrent, &frames))
	require.Len(t, frames, 1000)
}

func TestApp_Deterministic(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeInput(t, fs, "/trace.csv", syntheticTrace(200))

	conf := baseConfig(4)
	_, first := runApp(t, fs, conf)
	_, second := runApp(t, fs, conf)
	require.Equal(t, first, second)
}

// included + node-dropped + nodes of excluded frames add up to every
// parsed row.
func TestApp_NodeAccounting(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeInput(t, fs, "/trace.csv", syntheticTrace(500))

	conf := baseConfig(4)
	conf.Processing.MinNodeDuration = 0.004
	conf.Processing.MinFrameDuration = 0.015

	report, out := runApp(t, fs, conf)
	s := report.Summary

	require.EqualValues(t, 500, s.TotalFrames)
	require.EqualValues(t, 4*500, s.TotalNodes)
	require.Equal(t, s.TotalNodes, s.KeptNodes+s.DroppedNodes)
	require.EqualValues(t, 0, report.MalformedRows)

	// No node below the duration threshold in the output.
	var frames []json.RawMessage
	require.NoError(t, json.Unmarshal(out, &frames))
	var checkDurations func(raw json.RawMessage)
	checkDurations = func(raw json.RawMessage) {
		var n struct {
			Duration float64           `json:"duration"`
			Children []json.RawMessage `json:"children"`
		}
		require.NoError(t, json.Unmarshal(raw, &n))
		require.GreaterOrEqual(t, n.Duration, conf.Processing.MinNodeDuration)
		for _, c := range n.Children {
			checkDurations(c)
		}
	}
	for _, f := range frames {
		checkDurations(f)
	}
}

func TestApp_ZstdInputMatchesPlain(t *testing.T) {
	fs := afero.NewMemMapFs()
	trace := syntheticTrace(100)
	writeInput(t, fs, "/trace.csv", trace)

	var compressed bytes.Buffer
	enc, err := zstd.NewWriter(&compressed)
	require.NoError(t, err)
	_, err = enc.Write([]byte(trace))
	require.NoError(t, err)
	require.NoError(t, enc.Close())
	require.NoError(t, afero.WriteFile(fs, "/trace.csv.zst", compressed.Bytes(), 0o644))

	_, plain := runApp(t, fs, baseConfig(2))

	conf := baseConfig(2)
	conf.InputPath = "/trace.csv.zst"
	conf.Output.Path = "/out-zst.json"
	_, fromZstd := runApp(t, fs, conf)

	require.Equal(t, plain, fromZstd)
}

func TestApp_MalformedRowsCounted(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeInput(t, fs, "/trace.csv", csvHeader+
		"1,Tick,0.0,0.040,0.040,0\n"+
		"garbage,row,here\n"+
		"2,Draw,0.001,0.005,0.004,not-a-depth\n")

	conf := &Config{
		InputPath: "/trace.csv",
		Output:    OutputConfig{Path: "/out.json"},
	}
	report, out := runApp(t, fs, conf)

	require.EqualValues(t, 2, report.MalformedRows)
	require.EqualValues(t, 1, report.Summary.TotalFrames)

	var frames []json.RawMessage
	require.NoError(t, json.Unmarshal(out, &frames))
	require.Len(t, frames, 1)
}

func TestApp_MaxFrameCountStopsEarly(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeInput(t, fs, "/trace.csv", syntheticTrace(100))

	maxFrames := uint64(10)
	conf := baseConfig(1)
	conf.Processing.MaxFrameCount = &maxFrames

	report, out := runApp(t, fs, conf)
	require.EqualValues(t, 10, report.Summary.TotalFrames)

	var frames []json.RawMessage
	require.NoError(t, json.Unmarshal(out, &frames))
	require.Len(t, frames, 10)
}

// Cancellation aborts the run but never corrupts the document: the
// sink still holds a parseable JSON array.
func TestApp_CancelledRunLeavesValidArray(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeInput(t, fs, "/trace.csv", syntheticTrace(100))

	conf := baseConfig(4)
	conf.FillDefault()
	a, err := New(conf, xlog.NewNop(), WithFS(fs))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = a.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)

	out, err := afero.ReadFile(fs, conf.Output.Path)
	require.NoError(t, err)
	var frames []json.RawMessage
	require.NoError(t, json.Unmarshal(out, &frames))
}

func TestApp_IntervalBuilderMatchesStack(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeInput(t, fs, "/trace.csv", syntheticTrace(50))

	stack := baseConfig(2)
	stack.Processing.TreeBuilder = BuilderStack
	_, stackOut := runApp(t, fs, stack)

	interval := baseConfig(2)
	interval.Output.Path = "/out-interval.json"
	interval.Processing.TreeBuilder = BuilderInterval
	_, intervalOut := runApp(t, fs, interval)

	require.Equal(t, stackOut, intervalOut)
}

func TestApp_MetricsDump(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeInput(t, fs, "/trace.csv", syntheticTrace(20))

	conf := baseConfig(1)
	conf.MetricsPath = "/metrics.prom"
	_, _ = runApp(t, fs, conf)

	metrics, err := afero.ReadFile(fs, "/metrics.prom")
	require.NoError(t, err)
	require.Contains(t, string(metrics), "frametree_frames_total")
	require.Contains(t, string(metrics), "frametree_nodes_total")
}

func TestConfig_Validate(t *testing.T) {
	conf := &Config{}
	conf.FillDefault()
	require.Error(t, conf.Validate())

	conf.InputPath = "/in"
	conf.Output.Path = "/out"
	require.NoError(t, conf.Validate())

	conf.Processing.TreeBuilder = "bogus"
	require.Error(t, conf.Validate())
}
