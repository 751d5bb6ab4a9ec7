package ygggo_gamedb

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResultSet_Cursor(t *testing.T) {
	rs := newResultSet([]string{"guid", "name", "money"}, [][]any{
		{int64(1), []byte("Jaina"), []byte("1500")},
		{int64(2), "Sylvanas", nil},
	})

	assert.False(t, rs.IsEmpty())
	assert.Equal(t, 2, rs.RowCount())
	assert.Equal(t, []string{"guid", "name", "money"}, rs.Columns())

	assert.Equal(t, uint32(1), rs.Field(0).Uint32())
	assert.Equal(t, "Jaina", rs.FieldByName("name").String())
	assert.Equal(t, int64(1500), rs.Field(2).Int64())

	assert.True(t, rs.NextRow())
	row := rs.Fetch()
	assert.Len(t, row, 3)
	assert.Equal(t, "Sylvanas", row[1].String())
	assert.True(t, row[2].IsNull())
	assert.Equal(t, uint64(0), row[2].Uint64())

	assert.False(t, rs.NextRow())
	assert.True(t, rs.IsEmpty())
	assert.Nil(t, rs.Fetch())
	assert.True(t, rs.Field(0).IsNull())
	assert.Equal(t, 2, rs.RowCount(), "row count survives exhaustion")
	assert.False(t, rs.NextRow())
}

func TestResultSet_Empty(t *testing.T) {
	rs := newResultSet([]string{"a"}, nil)
	assert.True(t, rs.IsEmpty())
	assert.Equal(t, 0, rs.RowCount())
	assert.False(t, rs.NextRow())

	var nilSet *ResultSet
	assert.True(t, nilSet.IsEmpty())
	assert.Equal(t, 0, nilSet.RowCount())
	assert.True(t, nilSet.FieldByName("a").IsNull())
}

func TestField_Conversions(t *testing.T) {
	assert.True(t, Field{v: int64(1)}.Bool())
	assert.Equal(t, int8(-3), Field{v: []byte("-3")}.Int8())
	assert.Equal(t, uint64(18446744073709551615), Field{v: []byte("18446744073709551615")}.Uint64())
	assert.InDelta(t, 2.5, Field{v: []byte("2.5")}.Double(), 1e-9)
	assert.InDelta(t, float32(0.25), Field{v: float64(0.25)}.Float(), 1e-6)
	assert.Equal(t, "42", Field{v: int64(42)}.String())
	assert.Equal(t, []byte("abc"), Field{v: "abc"}.Bytes())
	assert.Nil(t, Field{}.Bytes())
	assert.Nil(t, Field{}.Raw())
}
