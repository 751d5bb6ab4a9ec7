package ygggo_gamedb

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
)

// Field is one column value of the current row. The zero Field reads as NULL
// and every accessor returns the type's zero value for it.
type Field struct {
	v any
}

// IsNull reports whether the column is SQL NULL (or absent).
func (f Field) IsNull() bool { return f.v == nil }

// Raw returns the driver value.
func (f Field) Raw() any { return f.v }

func (f Field) Bool() bool { return f.Int64() != 0 }

func (f Field) Int8() int8   { return int8(f.Int64()) }
func (f Field) Int16() int16 { return int16(f.Int64()) }
func (f Field) Int32() int32 { return int32(f.Int64()) }

func (f Field) Uint8() uint8   { return uint8(f.Uint64()) }
func (f Field) Uint16() uint16 { return uint16(f.Uint64()) }
func (f Field) Uint32() uint32 { return uint32(f.Uint64()) }

func (f Field) Int64() int64 {
	switch v := f.v.(type) {
	case nil:
		return 0
	case int64:
		return v
	case int32:
		return int64(v)
	case int:
		return int64(v)
	case uint64:
		return int64(v)
	case float64:
		return int64(v)
	case float32:
		return int64(v)
	case bool:
		if v {
			return 1
		}
		return 0
	case []byte:
		n, _ := strconv.ParseInt(string(v), 10, 64)
		return n
	case string:
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	case time.Time:
		return v.Unix()
	}
	return 0
}

func (f Field) Uint64() uint64 {
	switch v := f.v.(type) {
	case uint64:
		return v
	case []byte:
		n, _ := strconv.ParseUint(string(v), 10, 64)
		return n
	case string:
		n, _ := strconv.ParseUint(v, 10, 64)
		return n
	}
	return uint64(f.Int64())
}

func (f Field) Float() float32 { return float32(f.Double()) }

func (f Field) Double() float64 {
	switch v := f.v.(type) {
	case nil:
		return 0
	case float64:
		return v
	case float32:
		return float64(v)
	case []byte:
		n, _ := strconv.ParseFloat(string(v), 64)
		return n
	case string:
		n, _ := strconv.ParseFloat(v, 64)
		return n
	case uint64:
		if v > math.MaxInt64 {
			return float64(v)
		}
	}
	return float64(f.Int64())
}

func (f Field) String() string {
	switch v := f.v.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case time.Time:
		return v.Format(time.DateTime)
	}
	return fmt.Sprint(f.v)
}

// Bytes returns the value as a byte slice; it does not copy driver buffers.
func (f Field) Bytes() []byte {
	switch v := f.v.(type) {
	case nil:
		return nil
	case []byte:
		return v
	case string:
		return []byte(v)
	}
	return []byte(f.String())
}

// ResultSet is a forward-only cursor over a fully read result. It starts on
// the first row; NextRow past the last row releases the buffered rows.
type ResultSet struct {
	columns []string
	index   map[string]int
	rows    [][]any
	count   int
	pos     int
}

func newResultSet(columns []string, rows [][]any) *ResultSet {
	idx := make(map[string]int, len(columns))
	for i, c := range columns {
		idx[c] = i
	}
	return &ResultSet{columns: columns, index: idx, rows: rows, count: len(rows)}
}

// readResultSet drains rows into memory and closes them.
func readResultSet(rows *sqlx.Rows) (*ResultSet, error) {
	defer rows.Close()
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var data [][]any
	for rows.Next() {
		vals, err := rows.SliceScan()
		if err != nil {
			return nil, err
		}
		data = append(data, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return newResultSet(cols, data), nil
}

// IsEmpty reports whether there is no current row.
func (r *ResultSet) IsEmpty() bool { return r == nil || r.pos >= len(r.rows) }

// RowCount is the total number of rows the query returned.
func (r *ResultSet) RowCount() int {
	if r == nil {
		return 0
	}
	return r.count
}

// Columns returns the column names.
func (r *ResultSet) Columns() []string {
	if r == nil {
		return nil
	}
	return r.columns
}

// NextRow advances the cursor. It returns false, and releases the rows, once
// the cursor moves past the last row.
func (r *ResultSet) NextRow() bool {
	if r.IsEmpty() {
		return false
	}
	r.pos++
	if r.pos >= len(r.rows) {
		r.rows = nil
		r.pos = 0
		return false
	}
	return true
}

// Fetch returns the current row, or nil when the cursor has no row.
func (r *ResultSet) Fetch() []Field {
	if r.IsEmpty() {
		return nil
	}
	row := r.rows[r.pos]
	out := make([]Field, len(row))
	for i, v := range row {
		out[i] = Field{v: v}
	}
	return out
}

// Field returns column i of the current row.
func (r *ResultSet) Field(i int) Field {
	if r.IsEmpty() || i < 0 || i >= len(r.rows[r.pos]) {
		return Field{}
	}
	return Field{v: r.rows[r.pos][i]}
}

// FieldByName returns the named column of the current row.
func (r *ResultSet) FieldByName(name string) Field {
	if r == nil {
		return Field{}
	}
	i, ok := r.index[name]
	if !ok {
		return Field{}
	}
	return r.Field(i)
}
