package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestColumnType_SQLiteType(t *testing.T) {
	assert.Equal(t, "INTEGER", TypeBool.SQLiteType())
	assert.Equal(t, "INTEGER", TypeInt64.SQLiteType())
	assert.Equal(t, "REAL", TypeFloat64.SQLiteType())
	assert.Equal(t, "TEXT", TypeString.SQLiteType())
	assert.Equal(t, "BLOB", TypeBytes.SQLiteType())
	assert.Equal(t, "TEXT", TypeJSONText.SQLiteType())
}

func TestTableSchema_Fingerprint(t *testing.T) {
	a := TableSchema{Columns: []ColumnSchema{
		{Name: "topic", Type: TypeString},
		{Name: "accel_x", Type: TypeFloat64, Nullable: true},
	}}
	b := TableSchema{Columns: []ColumnSchema{
		{Name: "topic", Type: TypeString},
		{Name: "accel_x", Type: TypeFloat64, Nullable: true},
	}}
	assert.Equal(t, a.Fingerprint(), b.Fingerprint(), "identical schemas must share a fingerprint")
	assert.Len(t, a.Fingerprint(), 32)

	// Order matters.
	c := TableSchema{Columns: []ColumnSchema{
		{Name: "accel_x", Type: TypeFloat64, Nullable: true},
		{Name: "topic", Type: TypeString},
	}}
	assert.NotEqual(t, a.Fingerprint(), c.Fingerprint())

	// So do type and nullability.
	d := TableSchema{Columns: []ColumnSchema{
		{Name: "topic", Type: TypeString},
		{Name: "accel_x", Type: TypeFloat64, Nullable: false},
	}}
	assert.NotEqual(t, a.Fingerprint(), d.Fingerprint())
}

func TestFlatRow_InsertionOrder(t *testing.T) {
	row := NewFlatRow()
	row.Set("b", int64(1))
	row.Set("a", int64(2))
	row.Set("b", int64(3)) // overwrite keeps position

	assert.Equal(t, []string{"b", "a"}, row.Paths())
	v, ok := row.Get("b")
	assert.True(t, ok)
	assert.Equal(t, int64(3), v)
	assert.Equal(t, 2, row.Len())
}

func TestBaselineSchema(t *testing.T) {
	schema := BaselineSchema()
	assert.Equal(t, []string{ColumnTopic, ColumnTimestamp, ColumnMsgType, ColumnHeaderTimestamp},
		schema.ColumnNames())
	assert.False(t, schema.Columns[0].Nullable)
	assert.True(t, schema.Columns[3].Nullable)
}
