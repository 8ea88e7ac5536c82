// Package output writes the processed frames as one incrementally
// built JSON array, so the whole document is never held in memory.
package output

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
)

var ErrClosed = errors.New("output: writer is closed")

// Writer emits `[` once, pre-serialized frame objects separated by
// `,\n`, and `\n]` on Close. Frames must arrive in index order; the
// writer owns the sink exclusively and closes it even after a failed
// or truncated run, so the document stays a parseable array.
type Writer struct {
	buf  *bufio.Writer
	zstd *zstd.Encoder
	sink io.WriteCloser

	opened bool
	wrote  bool
	closed bool
}

func NewWriter(sink io.WriteCloser, compress bool) (*Writer, error) {
	w := &Writer{sink: sink}
	if compress {
		enc, err := zstd.NewWriter(sink)
		if err != nil {
			return nil, fmt.Errorf("output: init zstd: %w", err)
		}
		w.zstd = enc
		w.buf = bufio.NewWriter(enc)
	} else {
		w.buf = bufio.NewWriter(sink)
	}
	return w, nil
}

// WriteFrame appends one serialized frame object to the array.
func (w *Writer) WriteFrame(data []byte) error {
	if w.closed {
		return ErrClosed
	}

	if !w.opened {
		if _, err := w.buf.WriteString("["); err != nil {
			return fmt.Errorf("output: %w", err)
		}
		w.opened = true
	} else if w.wrote {
		if _, err := w.buf.WriteString(",\n"); err != nil {
			return fmt.Errorf("output: %w", err)
		}
	}

	if _, err := w.buf.Write(data); err != nil {
		return fmt.Errorf("output: %w", err)
	}
	w.wrote = true
	return nil
}

// Close terminates the array and closes the sink. Safe to call after a
// write error; the close is attempted regardless and the first error
// wins.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if !w.opened {
		_, err := w.buf.WriteString("[")
		keep(err)
	}
	_, err := w.buf.WriteString("\n]")
	keep(err)
	keep(w.buf.Flush())
	if w.zstd != nil {
		keep(w.zstd.Close())
	}
	keep(w.sink.Close())

	if firstErr != nil {
		return fmt.Errorf("output: close: %w", firstErr)
	}
	return nil
}
