// Package flatten converts nested record values into flat column→value
// mappings. The generic walk handles arbitrary self-described structures; a
// data-driven extractor table overrides it for well-known message types.
package flatten

import (
	"fmt"
	"sort"
	"strconv"

	json "github.com/goccy/go-json"

	"github.com/robolake/robolake/pkg/types"
)

// DefaultMaxArraySlots is the default slot bound for flattened arrays.
// Sequences longer than the bound collapse to a single json_text column.
const DefaultMaxArraySlots = 5

// Options configures a Flattener.
type Options struct {
	// MaxArraySlots is the array slot bound (0 uses DefaultMaxArraySlots)
	MaxArraySlots int
}

// Flattener converts one RawRecord into one FlatRow.
// A Flattener is safe for concurrent use once configured.
type Flattener struct {
	maxSlots   int
	extractors map[string]Extractor
}

// New creates a Flattener with the known-type extractor table installed.
func New(opts Options) *Flattener {
	maxSlots := opts.MaxArraySlots
	if maxSlots <= 0 {
		maxSlots = DefaultMaxArraySlots
	}

	f := &Flattener{
		maxSlots:   maxSlots,
		extractors: make(map[string]Extractor),
	}
	for typeID, fn := range knownExtractors {
		f.extractors[typeID] = fn
	}
	return f
}

// RegisterExtractor installs (or replaces) the extractor for a message type.
// Must not be called concurrently with Flatten.
func (f *Flattener) RegisterExtractor(typeID string, fn Extractor) {
	f.extractors[typeID] = fn
}

// Flatten converts a record's nested value tree into a FlatRow.
//
// Every row carries the baseline columns topic, timestamp (seconds), and
// msgtype first, followed by header_timestamp when the value carries a
// conventional header/stamp shape. Known message types are handled by their
// extractor; everything else goes through the generic walk.
func (f *Flattener) Flatten(rec *types.RawRecord) *types.FlatRow {
	row := types.NewFlatRow()
	row.Set(types.ColumnTopic, rec.Topic)
	row.Set(types.ColumnTimestamp, float64(rec.ReceivedTime)/1e9)
	row.Set(types.ColumnMsgType, rec.Type)

	if ts, ok := headerTimestamp(rec.Value); ok {
		row.Set(types.ColumnHeaderTimestamp, ts)
	}

	if extract, ok := f.extractors[rec.Type]; ok {
		extract(row, rec.Value)
		return row
	}

	f.walk(row, "", rec.Value)
	return row
}

// walk recurses over the tagged-union value tree, emitting one row entry per
// scalar leaf. Map keys are sorted before path construction so that the same
// value tree always yields the same row.
func (f *Flattener) walk(row *types.FlatRow, prefix string, value any) {
	switch v := value.(type) {
	case nil:
		// Absent values contribute nothing; the unifier fills NULLs.

	case bool, int64, float64, string:
		row.Set(leafPath(prefix), v)

	case []byte:
		// Bulk payload bytes are reduced to metadata, not per-byte columns.
		row.Set(sizePath(prefix), int64(len(v)))

	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			f.walk(row, joinPath(prefix, k), v[k])
		}

	case []any:
		if len(v) <= f.maxSlots {
			for i, elem := range v {
				f.walk(row, joinPath(prefix, strconv.Itoa(i)), elem)
			}
			return
		}
		encoded, err := json.Marshal(v)
		if err != nil {
			// Unencodable sequences degrade to their printed form.
			row.Set(leafPath(prefix), fmt.Sprintf("%v", v))
			return
		}
		row.Set(leafPath(prefix), types.JSONText(encoded))

	default:
		// Unknown scalar kinds (custom extractor output, odd decoders)
		// are stored as their string form rather than dropped.
		row.Set(leafPath(prefix), fmt.Sprintf("%v", v))
	}
}

// joinPath extends a dotted path with one segment.
func joinPath(prefix, segment string) string {
	if prefix == "" {
		return segment
	}
	return prefix + "." + segment
}

// leafPath names the column for a leaf value. A record whose whole body is a
// bare scalar lands at the empty root prefix and gets a stable column name.
func leafPath(prefix string) string {
	if prefix == "" {
		return "value"
	}
	return prefix
}

// sizePath names the metadata column that replaces a bulk byte payload.
func sizePath(prefix string) string {
	if prefix == "" {
		return "size"
	}
	return prefix + "_size"
}

// headerTimestamp detects the conventional header/stamp shape
// (header.stamp.sec + header.stamp.nanosec) and converts it to seconds.
func headerTimestamp(value any) (float64, bool) {
	stamp, ok := lookupMap(value, "header", "stamp")
	if !ok {
		return 0, false
	}
	sec, okSec := lookupNumber(stamp, "sec")
	nanosec, okNano := lookupNumber(stamp, "nanosec")
	if !okSec || !okNano {
		return 0, false
	}
	return sec + nanosec/1e9, true
}

// lookupMap walks nested maps along the given key path.
func lookupMap(value any, path ...string) (map[string]any, bool) {
	current, ok := value.(map[string]any)
	if !ok {
		return nil, false
	}
	for _, key := range path {
		next, ok := current[key].(map[string]any)
		if !ok {
			return nil, false
		}
		current = next
	}
	return current, true
}

// lookupNumber reads a numeric field from a map, accepting int64 or float64.
func lookupNumber(m map[string]any, key string) (float64, bool) {
	switch v := m[key].(type) {
	case int64:
		return float64(v), true
	case float64:
		return v, true
	default:
		return 0, false
	}
}
