// Package types provides core data types for RoboLake.
package types

// RawRecord is one decoded event from a recording, tagged with the channel
// it was emitted on and its self-described message type.
type RawRecord struct {
	// Topic is the channel name the record was emitted on (e.g. "/imu/data")
	Topic string `json:"topic"`

	// Type is the message type identifier (e.g. "sensor_msgs/msg/Imu")
	Type string `json:"type"`

	// ReceivedTime is the Unix timestamp (nanoseconds) the record was logged
	ReceivedTime int64 `json:"time"`

	// Value is the deserialized record body: a nested tree over
	// bool | int64 | float64 | string | []byte | []any | map[string]any
	Value any `json:"data"`
}

// JSONText marks a string as a serialized JSON encoding of a value that was
// collapsed during flattening (e.g. an array above the slot bound). The
// unifier types columns holding only JSONText values as json_text.
type JSONText string
