package types

// FlatRow is an insertion-ordered mapping from dotted column path to a
// scalar value. One FlatRow is derived from exactly one RawRecord.
// Paths use "." for nesting and a numeric suffix for array slots.
type FlatRow struct {
	paths  []string
	values map[string]any
}

// NewFlatRow creates an empty FlatRow.
func NewFlatRow() *FlatRow {
	return &FlatRow{values: make(map[string]any)}
}

// Set records a value under the given path. The first Set for a path fixes
// its position in the row's path order; a second Set overwrites in place.
func (r *FlatRow) Set(path string, value any) {
	if _, ok := r.values[path]; !ok {
		r.paths = append(r.paths, path)
	}
	r.values[path] = value
}

// Get returns the value stored under path, if any.
func (r *FlatRow) Get(path string) (any, bool) {
	v, ok := r.values[path]
	return v, ok
}

// Paths returns the column paths in insertion order.
// The returned slice is owned by the row and must not be modified.
func (r *FlatRow) Paths() []string {
	return r.paths
}

// Len returns the number of columns in the row.
func (r *FlatRow) Len() int {
	return len(r.paths)
}

// ProjectedRow is one table row projected onto a unified schema: one value
// per column in schema order, nil for NULL.
type ProjectedRow []any
