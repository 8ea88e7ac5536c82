package trace

// EventRecord is one row of an instrumented-timer trace: a single timer
// invocation with its time interval and nesting depth. Depth 0 marks the
// root event of a frame.
type EventRecord struct {
	TimerID   int64
	TimerName string
	StartTime float64
	EndTime   float64
	Duration  float64
	Depth     int
}

// FrameRows is the row group of a single frame, in input order.
// Index is 0-based and assigned in segmentation order.
type FrameRows struct {
	Index uint64
	Rows  []EventRecord
}
