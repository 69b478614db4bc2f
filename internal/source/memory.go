package source

import (
	"io"

	"github.com/robolake/robolake/pkg/types"
)

// memoryItem is one element of an in-memory sequence: a record or a decode
// failure injected in its place.
type memoryItem struct {
	record *types.RawRecord
	err    *DecodeError
}

// MemorySource is an in-memory Source used by tests and embedding callers.
type MemorySource struct {
	items []memoryItem
	pos   int
}

// NewMemorySource creates a source over the given records, in order.
func NewMemorySource(records ...*types.RawRecord) *MemorySource {
	s := &MemorySource{}
	for _, rec := range records {
		s.Append(rec)
	}
	return s
}

// Append adds a record to the end of the sequence.
func (s *MemorySource) Append(rec *types.RawRecord) {
	s.items = append(s.items, memoryItem{record: rec})
}

// AppendDecodeError injects a per-record decode failure at the current end
// of the sequence.
func (s *MemorySource) AppendDecodeError(topic string, err error) {
	s.items = append(s.items, memoryItem{err: &DecodeError{Topic: topic, Offset: -1, Err: err}})
}

// Next returns the next record, io.EOF at the end, or the injected
// *DecodeError for a failure slot.
func (s *MemorySource) Next() (*types.RawRecord, error) {
	if s.pos >= len(s.items) {
		return nil, io.EOF
	}
	item := s.items[s.pos]
	s.pos++
	if item.err != nil {
		return nil, item.err
	}
	return item.record, nil
}

// Reset restarts the iteration.
func (s *MemorySource) Reset() error {
	s.pos = 0
	return nil
}

// Close is a no-op for in-memory sources.
func (s *MemorySource) Close() error {
	return nil
}
