package source

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"

	json "github.com/goccy/go-json"
	"github.com/golang/snappy"

	"github.com/robolake/robolake/pkg/types"
)

// snappyFrameMagic is the header of a snappy framing-format stream.
var snappyFrameMagic = []byte{0xff, 0x06, 0x00, 0x00, 's', 'N', 'a', 'P', 'p', 'Y'}

// LogReader reads a recorded event log: one JSON document per line, each
// carrying the topic, message type, receive time (nanoseconds), and the
// nested value tree. The stream may be snappy-framed; the reader detects
// the framing header and decompresses transparently.
//
// Numbers are decoded with integer/float fidelity preserved: integral
// values become int64, everything else float64.
type LogReader struct {
	path    string
	file    *os.File
	scanner *bufio.Scanner
	framed  bool
	offset  int64
	closed  bool
}

// logLine is the wire shape of one record.
type logLine struct {
	Topic string          `json:"topic"`
	Type  string          `json:"type"`
	Time  int64           `json:"time"`
	Data  json.RawMessage `json:"data"`
}

// OpenLog opens an event log file for reading.
func OpenLog(path string) (*LogReader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("source: failed to open log: %w", err)
	}

	r := &LogReader{path: path, file: file}
	if err := r.rewind(); err != nil {
		file.Close()
		return nil, err
	}
	return r, nil
}

// rewind positions the reader at the start of the stream and rebuilds the
// line scanner, sniffing the snappy framing header.
func (r *LogReader) rewind() error {
	if _, err := r.file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("source: failed to seek log: %w", err)
	}

	br := bufio.NewReader(r.file)
	head, err := br.Peek(len(snappyFrameMagic))
	if err != nil && err != io.EOF {
		return fmt.Errorf("source: failed to read log header: %w", err)
	}
	r.framed = bytes.Equal(head, snappyFrameMagic)

	var stream io.Reader = br
	if r.framed {
		stream = snappy.NewReader(br)
	}

	scanner := bufio.NewScanner(stream)
	scanner.Buffer(make([]byte, 64*1024), 64*1024*1024)
	r.scanner = scanner
	r.offset = 0
	return nil
}

// Next returns the next record, io.EOF at the end of the log, or a
// *DecodeError for a malformed line. A malformed line is consumed, so the
// caller can keep iterating.
func (r *LogReader) Next() (*types.RawRecord, error) {
	if r.closed {
		return nil, fmt.Errorf("source: log reader is closed")
	}
	if !r.scanner.Scan() {
		if err := r.scanner.Err(); err != nil {
			return nil, fmt.Errorf("source: failed to read log: %w", err)
		}
		return nil, io.EOF
	}

	line := r.scanner.Bytes()
	lineOffset := r.offset
	// Offsets are within the decompressed stream for framed logs.
	r.offset += int64(len(line)) + 1

	if len(bytes.TrimSpace(line)) == 0 {
		return r.Next()
	}

	var entry logLine
	if err := json.Unmarshal(line, &entry); err != nil {
		return nil, &DecodeError{Offset: lineOffset, Err: err}
	}
	if entry.Topic == "" {
		return nil, &DecodeError{Offset: lineOffset, Err: fmt.Errorf("record has no topic")}
	}

	value, err := decodeValue(entry.Data)
	if err != nil {
		return nil, &DecodeError{Topic: entry.Topic, Offset: lineOffset, Err: err}
	}

	return &types.RawRecord{
		Topic:        entry.Topic,
		Type:         entry.Type,
		ReceivedTime: entry.Time,
		Value:        value,
	}, nil
}

// Reset restarts the iteration from the first record.
func (r *LogReader) Reset() error {
	if r.closed {
		return fmt.Errorf("source: log reader is closed")
	}
	return r.rewind()
}

// Close closes the underlying file.
func (r *LogReader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	return r.file.Close()
}

// decodeValue unmarshals a record body preserving the int/float distinction.
func decodeValue(raw json.RawMessage) (any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return normalize(v), nil
}

// normalize rewrites decoded JSON into the pipeline's value vocabulary:
// json.Number becomes int64 when integral, float64 otherwise.
func normalize(v any) any {
	switch val := v.(type) {
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i
		}
		f, err := val.Float64()
		if err != nil {
			return val.String()
		}
		return f
	case map[string]any:
		for k, elem := range val {
			val[k] = normalize(elem)
		}
		return val
	case []any:
		for i, elem := range val {
			val[i] = normalize(elem)
		}
		return val
	default:
		return v
	}
}
