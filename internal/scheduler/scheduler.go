// Package scheduler fans per-frame pipeline work out over a bounded
// worker pool and hands results to the sink in strict frame-index
// order, whatever the completion order.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/utracetools/frametree/internal/reorder"
	"github.com/utracetools/frametree/pkg/processor"
	"github.com/utracetools/frametree/pkg/trace"
	"github.com/utracetools/frametree/pkg/xlog"
)

const (
	DefaultBatchSize  = 50
	defaultMaxWorkers = 8
)

// FrameSource yields per-frame row groups in index order, io.EOF at
// the end. *trace.Segmenter satisfies it.
type FrameSource interface {
	Next() (*trace.FrameRows, error)
}

// Sink receives results in strictly ascending index order, one per
// segmented frame. A sink error aborts the run.
type Sink func(res *processor.Result) error

type Config struct {
	// Workers bounds concurrent frame pipelines. Zero means
	// min(GOMAXPROCS, 8); one degenerates to inline processing.
	Workers int

	// BatchSize is how many frames are in flight before the scheduler
	// waits for the batch to drain. Bounds reorder-buffer memory.
	BatchSize int
}

func (c *Config) fillDefault() {
	if c.Workers <= 0 {
		c.Workers = min(runtime.GOMAXPROCS(0), defaultMaxWorkers)
	}
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
}

type Scheduler struct {
	l    xlog.Logger
	conf Config
}

func New(l xlog.Logger, conf Config) *Scheduler {
	conf.fillDefault()
	return &Scheduler{
		l:    l.WithName("scheduler"),
		conf: conf,
	}
}

// Run consumes the source to exhaustion. Batches are not pipelined:
// one batch is fully submitted and drained before the next is read,
// which keeps pending results bounded by one batch. Worker failures
// and panics turn into excluded-frame results so ordering never stalls
// on a missing index.
func (s *Scheduler) Run(ctx context.Context, source FrameSource, pipe *processor.Pipeline, sink Sink) error {
	if s.conf.Workers == 1 {
		return s.runInline(ctx, source, pipe, sink)
	}

	buf := reorder.New[*processor.Result]()
	sem := semaphore.NewWeighted(int64(s.conf.Workers))

	for batchIndex := 0; ; batchIndex++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		batch, err := s.nextBatch(source)
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			return nil
		}

		s.l.Debug(ctx, "Submitting batch",
			zap.Int("batch", batchIndex),
			zap.Uint64("first_frame", batch[0].Index),
			zap.Int("frames", len(batch)),
		)

		if err := s.runBatch(ctx, batch, buf, sem, pipe, sink); err != nil {
			return err
		}
		if buf.Pending() != 0 {
			return fmt.Errorf("scheduler: %d results stuck in reorder buffer after batch drain", buf.Pending())
		}
	}
}

func (s *Scheduler) nextBatch(source FrameSource) ([]*trace.FrameRows, error) {
	batch := make([]*trace.FrameRows, 0, s.conf.BatchSize)
	for len(batch) < s.conf.BatchSize {
		frame, err := source.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("scheduler: read frames: %w", err)
		}
		batch = append(batch, frame)
	}
	return batch, nil
}

func (s *Scheduler) runBatch(
	ctx context.Context,
	batch []*trace.FrameRows,
	buf *reorder.Buffer[*processor.Result],
	sem *semaphore.Weighted,
	pipe *processor.Pipeline,
	sink Sink,
) error {
	completions := make(chan *processor.Result, len(batch))

	// Workers own their row group and tree outright; the only shared
	// state is the completion channel.
	g, gctx := errgroup.WithContext(ctx)
	for _, frame := range batch {
		frame := frame
		g.Go(func() error {
			if err := sem.Acquire(gctx, 1); err != nil {
				completions <- &processor.Result{
					Index:         frame.Index,
					OriginalNodes: len(frame.Rows),
					Err:           err,
				}
				return nil
			}
			defer sem.Release(1)

			completions <- s.processFrame(gctx, pipe, frame)
			return nil
		})
	}

	var sinkErr error
	for received := 0; received < len(batch); received++ {
		res := <-completions
		if sinkErr != nil {
			continue
		}
		if err := buf.Push(res.Index, res); err != nil {
			sinkErr = err
			continue
		}
		for {
			next, ok := buf.Pop()
			if !ok {
				break
			}
			if err := sink(next); err != nil {
				sinkErr = err
				break
			}
		}
	}

	if err := g.Wait(); err != nil && sinkErr == nil {
		sinkErr = err
	}
	return sinkErr
}

// processFrame never lets a frame take the run down: a pipeline panic
// is converted to a failed, excluded result.
func (s *Scheduler) processFrame(ctx context.Context, pipe *processor.Pipeline, frame *trace.FrameRows) (res *processor.Result) {
	defer func() {
		if r := recover(); r != nil {
			s.l.Error(ctx, "Frame pipeline panicked",
				zap.Uint64("frame", frame.Index),
				zap.Any("panic", r),
			)
			res = &processor.Result{
				Index:         frame.Index,
				OriginalNodes: len(frame.Rows),
				Err:           fmt.Errorf("frame %d panicked: %v", frame.Index, r),
			}
		}
	}()

	res = pipe.ProcessFrame(frame)
	if res.Err != nil {
		s.l.Warn(ctx, "Frame excluded after pipeline failure",
			zap.Uint64("frame", frame.Index),
			zap.Error(res.Err),
		)
	}
	return res
}

// runInline is the single-threaded path: same semantics, no pool and
// no reorder buffer.
func (s *Scheduler) runInline(ctx context.Context, source FrameSource, pipe *processor.Pipeline, sink Sink) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		frame, err := source.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("scheduler: read frames: %w", err)
		}

		if err := sink(s.processFrame(ctx, pipe, frame)); err != nil {
			return err
		}
	}
}
