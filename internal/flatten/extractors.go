package flatten

import (
	"github.com/robolake/robolake/pkg/types"
)

// Extractor produces a curated set of columns for one well-known message
// type instead of the fully generic walk. Extractors set only the fields
// present in the value; missing fields are left to the unifier's NULL fill.
type Extractor func(row *types.FlatRow, value any)

// knownExtractors maps message type identifiers to their extractor. The
// table is data, not control flow: unknown types fall through to the
// generic walk, and callers may register additional entries.
var knownExtractors = map[string]Extractor{
	"geometry_msgs/msg/PointStamped": extractPointStamped,
	"sensor_msgs/msg/Image":          extractImage,
	"sensor_msgs/msg/Imu":            extractImu,
}

// extractPointStamped pulls the position coordinates out of a stamped point.
func extractPointStamped(row *types.FlatRow, value any) {
	if point, ok := lookupMap(value, "point"); ok {
		setNumber(row, "x", point, "x")
		setNumber(row, "y", point, "y")
		setNumber(row, "z", point, "z")
	}
}

// extractImage reduces an image message to its dimensions and encoding.
// The pixel payload itself is represented only by its byte length.
func extractImage(row *types.FlatRow, value any) {
	m, ok := value.(map[string]any)
	if !ok {
		return
	}
	setNumber(row, "width", m, "width")
	setNumber(row, "height", m, "height")
	if enc, ok := m["encoding"].(string); ok {
		row.Set("encoding", enc)
	}
	switch data := m["data"].(type) {
	case []byte:
		row.Set("data_size", int64(len(data)))
	case []any:
		row.Set("data_size", int64(len(data)))
	case string:
		row.Set("data_size", int64(len(data)))
	default:
		row.Set("data_size", int64(0))
	}
}

// extractImu pulls linear acceleration and angular velocity components.
func extractImu(row *types.FlatRow, value any) {
	if acc, ok := lookupMap(value, "linear_acceleration"); ok {
		setNumber(row, "accel_x", acc, "x")
		setNumber(row, "accel_y", acc, "y")
		setNumber(row, "accel_z", acc, "z")
	}
	if gyro, ok := lookupMap(value, "angular_velocity"); ok {
		setNumber(row, "gyro_x", gyro, "x")
		setNumber(row, "gyro_y", gyro, "y")
		setNumber(row, "gyro_z", gyro, "z")
	}
}

// setNumber copies a numeric field into the row under the given column name.
func setNumber(row *types.FlatRow, column string, m map[string]any, key string) {
	switch v := m[key].(type) {
	case int64:
		row.Set(column, v)
	case float64:
		row.Set(column, v)
	}
}
