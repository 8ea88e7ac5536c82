package trace

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/klauspost/compress/zstd"
)

var requiredColumns = []string{"TimerId", "TimerName", "StartTime", "EndTime", "Duration", "Depth"}

var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// Reader decodes delimited trace records from a stream.
// Zstd-compressed input is detected transparently. Malformed rows
// (wrong arity, non-numeric fields, negative depth) are skipped and
// counted, never fatal. I/O failures in the underlying stream are fatal
// and propagate to the caller.
type Reader struct {
	csv       *csv.Reader
	columns   map[string]int
	malformed uint64
}

func NewReader(r io.Reader) (*Reader, error) {
	br := bufio.NewReader(r)

	head, err := br.Peek(len(zstdMagic))
	if err == nil && bytes.Equal(head, zstdMagic) {
		zr, err := zstd.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("trace: open zstd stream: %w", err)
		}
		br = bufio.NewReader(zr)
	}

	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("trace: read header: %w", err)
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[name] = i
	}
	for _, name := range requiredColumns {
		if _, ok := columns[name]; !ok {
			return nil, fmt.Errorf("trace: header is missing column %q", name)
		}
	}

	return &Reader{csv: cr, columns: columns}, nil
}

// Read returns the next well-formed record, or io.EOF at stream end.
func (r *Reader) Read() (EventRecord, error) {
	for {
		row, err := r.csv.Read()
		if errors.Is(err, io.EOF) {
			return EventRecord{}, io.EOF
		}
		var perr *csv.ParseError
		if errors.As(err, &perr) {
			// Quoting or arity problems on a single line.
			r.malformed++
			continue
		}
		if err != nil {
			// Underlying I/O failure, would repeat on every call.
			return EventRecord{}, fmt.Errorf("trace: read row: %w", err)
		}

		rec, ok := r.parseRow(row)
		if !ok {
			r.malformed++
			continue
		}
		return rec, nil
	}
}

func (r *Reader) parseRow(row []string) (EventRecord, bool) {
	field := func(name string) (string, bool) {
		idx := r.columns[name]
		if idx >= len(row) {
			return "", false
		}
		return row[idx], true
	}

	var rec EventRecord
	var ok bool
	var err error

	var s string
	if s, ok = field("TimerId"); !ok {
		return rec, false
	}
	if rec.TimerID, err = strconv.ParseInt(s, 10, 64); err != nil {
		return rec, false
	}

	if rec.TimerName, ok = field("TimerName"); !ok {
		return rec, false
	}

	if s, ok = field("StartTime"); !ok {
		return rec, false
	}
	if rec.StartTime, err = strconv.ParseFloat(s, 64); err != nil {
		return rec, false
	}

	if s, ok = field("EndTime"); !ok {
		return rec, false
	}
	if rec.EndTime, err = strconv.ParseFloat(s, 64); err != nil {
		return rec, false
	}

	if s, ok = field("Duration"); !ok {
		return rec, false
	}
	if rec.Duration, err = strconv.ParseFloat(s, 64); err != nil {
		return rec, false
	}

	if s, ok = field("Depth"); !ok {
		return rec, false
	}
	if rec.Depth, err = strconv.Atoi(s); err != nil || rec.Depth < 0 {
		return rec, false
	}

	return rec, true
}

// MalformedRows reports how many rows were skipped so far.
func (r *Reader) MalformedRows() uint64 {
	return r.malformed
}
