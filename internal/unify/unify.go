// Package unify merges the column sets and value types observed across all
// flattened rows of one channel into a single consistent table schema, and
// projects every row onto it.
package unify

import (
	"encoding/base64"
	"strconv"

	"github.com/robolake/robolake/pkg/types"
)

// columnState accumulates per-column observations during the scan pass.
type columnState struct {
	sawBool   bool
	sawInt    bool
	sawFloat  bool
	sawString bool
	sawBytes  bool
	sawJSON   bool
	present   int
}

// Unify consumes the full finite row sequence for one channel and returns
// the unified schema plus one projected row per input row.
//
// Column order is first-seen order. Type widening is a single global
// decision made after the full scan: every row of the final table uses one
// consistent type per column. An empty input yields the baseline schema and
// zero rows; this requires the whole channel to be buffered in memory, which
// is the dominant scalability limit of the pipeline.
func Unify(rows []*types.FlatRow) (types.TableSchema, []types.ProjectedRow) {
	if len(rows) == 0 {
		return types.BaselineSchema(), nil
	}

	// Scan pass: column order and observed value kinds.
	var order []string
	states := make(map[string]*columnState)
	for _, row := range rows {
		for _, path := range row.Paths() {
			st, ok := states[path]
			if !ok {
				st = &columnState{}
				states[path] = st
				order = append(order, path)
			}
			value, _ := row.Get(path)
			if value == nil {
				continue
			}
			st.present++
			switch value.(type) {
			case bool:
				st.sawBool = true
			case int64:
				st.sawInt = true
			case float64:
				st.sawFloat = true
			case string:
				st.sawString = true
			case []byte:
				st.sawBytes = true
			case types.JSONText:
				st.sawJSON = true
			default:
				st.sawString = true
			}
		}
	}

	schema := types.TableSchema{Columns: make([]types.ColumnSchema, len(order))}
	index := make(map[string]int, len(order))
	for i, name := range order {
		st := states[name]
		schema.Columns[i] = types.ColumnSchema{
			Name:     name,
			Type:     resolveType(st),
			Nullable: st.present < len(rows),
		}
		index[name] = i
	}

	// Projection pass: every row gets a value (or nil) for every column,
	// coerced to the globally decided column type.
	projected := make([]types.ProjectedRow, len(rows))
	for r, row := range rows {
		out := make(types.ProjectedRow, len(schema.Columns))
		for _, path := range row.Paths() {
			value, _ := row.Get(path)
			if value == nil {
				continue
			}
			i := index[path]
			out[i] = coerce(value, schema.Columns[i].Type)
		}
		projected[r] = out
	}

	return schema, projected
}

// resolveType decides a column's final type from everything observed for it.
//
// All-boolean columns stay bool, all-integral stay int64, numeric mixes
// widen to float64, pure serialized-array columns stay json_text, and any
// other mix widens to string for the whole table.
func resolveType(st *columnState) types.ColumnType {
	switch {
	case st.sawBool && !st.sawInt && !st.sawFloat && !st.sawString && !st.sawBytes && !st.sawJSON:
		return types.TypeBool
	case st.sawInt && !st.sawBool && !st.sawFloat && !st.sawString && !st.sawBytes && !st.sawJSON:
		return types.TypeInt64
	case (st.sawInt || st.sawFloat) && !st.sawBool && !st.sawString && !st.sawBytes && !st.sawJSON:
		return types.TypeFloat64
	case st.sawJSON && !st.sawBool && !st.sawInt && !st.sawFloat && !st.sawString && !st.sawBytes:
		return types.TypeJSONText
	case st.sawBytes && !st.sawBool && !st.sawInt && !st.sawFloat && !st.sawString && !st.sawJSON:
		return types.TypeBytes
	default:
		return types.TypeString
	}
}

// coerce converts a single value to the column's final type.
func coerce(value any, target types.ColumnType) any {
	switch target {
	case types.TypeFloat64:
		if v, ok := value.(int64); ok {
			return float64(v)
		}
		return value
	case types.TypeString:
		return stringify(value)
	case types.TypeJSONText:
		if v, ok := value.(types.JSONText); ok {
			return string(v)
		}
		return stringify(value)
	default:
		return value
	}
}

// stringify renders any observed value as text for a widened string column.
func stringify(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case types.JSONText:
		return string(v)
	case bool:
		return strconv.FormatBool(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case []byte:
		return base64.StdEncoding.EncodeToString(v)
	default:
		return ""
	}
}
