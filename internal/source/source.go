// Package source provides record sources for the conversion pipeline: a
// lazy, finite, restartable iteration over raw records grouped by topic.
package source

import (
	"errors"
	"fmt"

	"github.com/robolake/robolake/pkg/types"
)

// Source yields raw records one at a time.
//
// Next returns io.EOF at the end of the sequence and a *DecodeError for a
// single malformed record; a decode failure does not invalidate the
// iteration, and callers are expected to count and continue.
type Source interface {
	// Next returns the next record in the sequence.
	Next() (*types.RawRecord, error)

	// Reset restarts the iteration from the beginning.
	Reset() error

	// Close releases underlying resources.
	Close() error
}

// DecodeError reports one malformed record. It carries the topic when the
// reader could attribute the failure to a channel, and the byte offset of
// the record in the input when available (-1 otherwise).
type DecodeError struct {
	Topic  string
	Offset int64
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Topic != "" {
		return fmt.Sprintf("source: decode failed on %s at offset %d: %v", e.Topic, e.Offset, e.Err)
	}
	return fmt.Sprintf("source: decode failed at offset %d: %v", e.Offset, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// AsDecodeError extracts a DecodeError from an error chain.
func AsDecodeError(err error) (*DecodeError, bool) {
	var de *DecodeError
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}
