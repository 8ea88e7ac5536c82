package trace

import (
	"errors"
	"io"
)

const statsNameSample = 20

// Stats summarizes a trace stream in a single pass, without building
// any trees. Used by the stats command to size a run up front.
type Stats struct {
	TotalRows        uint64
	FrameCount       uint64
	MaxDepth         int
	UniqueTimerNames int
	MalformedRows    uint64

	// AvgNodesPerFrame is zero when the trace has no frames.
	AvgNodesPerFrame float64

	TimerNamesSample []string
}

func CollectStats(r *Reader) (*Stats, error) {
	stats := &Stats{}
	names := make(map[string]struct{})

	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		stats.TotalRows++
		if rec.Depth == 0 {
			stats.FrameCount++
		}
		if rec.Depth > stats.MaxDepth {
			stats.MaxDepth = rec.Depth
		}
		if _, ok := names[rec.TimerName]; !ok {
			names[rec.TimerName] = struct{}{}
			if len(stats.TimerNamesSample) < statsNameSample {
				stats.TimerNamesSample = append(stats.TimerNamesSample, rec.TimerName)
			}
		}
	}

	stats.UniqueTimerNames = len(names)
	stats.MalformedRows = r.MalformedRows()
	if stats.FrameCount > 0 {
		stats.AvgNodesPerFrame = float64(stats.TotalRows) / float64(stats.FrameCount)
	}
	return stats, nil
}
