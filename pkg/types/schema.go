package types

import (
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/spaolacci/murmur3"
)

// ColumnType is the inferred type of a table column.
type ColumnType string

const (
	TypeBool     ColumnType = "bool"
	TypeInt64    ColumnType = "int64"
	TypeFloat64  ColumnType = "float64"
	TypeString   ColumnType = "string"
	TypeBytes    ColumnType = "bytes"
	TypeJSONText ColumnType = "json_text"
)

// SQLiteType returns the SQLite storage type for the column type.
func (t ColumnType) SQLiteType() string {
	switch t {
	case TypeBool, TypeInt64:
		return "INTEGER"
	case TypeFloat64:
		return "REAL"
	case TypeBytes:
		return "BLOB"
	default:
		// string and json_text
		return "TEXT"
	}
}

// ColumnSchema defines a single column in a table schema.
type ColumnSchema struct {
	// Name is the dotted column path
	Name string `json:"name"`

	// Type is the inferred column type
	Type ColumnType `json:"type"`

	// Nullable indicates whether any row may carry NULL for this column
	Nullable bool `json:"nullable"`
}

// TableSchema is the ordered, typed column list for one channel-conversion
// unit. Column names are unique; order equals first-seen order across the
// unification pass. Immutable once a materialization pass begins.
type TableSchema struct {
	Columns []ColumnSchema `json:"columns"`
}

// ColumnNames returns the column names in schema order.
func (s TableSchema) ColumnNames() []string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}

// Fingerprint returns a stable hex digest of the schema, computed with
// murmur3-128 over the canonical column encoding. Two schemas with the same
// columns, types, nullability, and order share a fingerprint.
func (s TableSchema) Fingerprint() string {
	var b strings.Builder
	for _, c := range s.Columns {
		b.WriteString(c.Name)
		b.WriteByte(':')
		b.WriteString(string(c.Type))
		b.WriteByte(':')
		b.WriteString(strconv.FormatBool(c.Nullable))
		b.WriteByte('\n')
	}
	h1, h2 := murmur3.Sum128([]byte(b.String()))
	digest := make([]byte, 16)
	for i := 0; i < 8; i++ {
		digest[i] = byte(h1 >> (56 - 8*i))
		digest[8+i] = byte(h2 >> (56 - 8*i))
	}
	return hex.EncodeToString(digest)
}

// Baseline column names carried by every flattened row regardless of type.
const (
	ColumnTopic           = "topic"
	ColumnTimestamp       = "timestamp"
	ColumnMsgType         = "msgtype"
	ColumnHeaderTimestamp = "header_timestamp"
)

// BaselineSchema returns the schema of a channel with no messages: the four
// baseline columns and nothing else.
func BaselineSchema() TableSchema {
	return TableSchema{
		Columns: []ColumnSchema{
			{Name: ColumnTopic, Type: TypeString},
			{Name: ColumnTimestamp, Type: TypeFloat64},
			{Name: ColumnMsgType, Type: TypeString},
			{Name: ColumnHeaderTimestamp, Type: TypeFloat64, Nullable: true},
		},
	}
}
