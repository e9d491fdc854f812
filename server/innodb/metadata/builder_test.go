package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableBuilder_ResolvesIndexParts(t *testing.T) {
	tab, err := NewTableBuilder("test", "t1").
		AddColumn("id", ColumnTypeLong).
		AddColumn("name", ColumnTypeVarchar, WithLength(20), Nullable()).
		AddIndex("idx_name", IndexTypeMultiple, []IndexPart{Part("name").Prefix(10).Desc()}).
		Build()
	require.NoError(t, err)

	require.Len(t, tab.Indexes, 1)
	elem := tab.Indexes[0].Elements[0]
	assert.Equal(t, uint32(2), elem.ColumnOrdinal)
	assert.Equal(t, uint32(10), elem.Length)
	assert.Equal(t, OrderDesc, elem.Order)
	assert.Equal(t, uint32(11), tab.Columns[0].CharLength)
	assert.Equal(t, uint32(1), tab.Indexes[0].OrdinalPosition)
}

func TestTableBuilder_UnknownIndexColumn(t *testing.T) {
	_, err := NewTableBuilder("test", "t1").
		AddColumn("id", ColumnTypeLong).
		AddIndex("idx", IndexTypeUnique, Parts("missing")).
		Build()
	assert.Error(t, err)
}

func TestTableMetadata_Validate(t *testing.T) {
	tab := &TableMetadata{Name: "t1", Columns: []*ColumnMetadata{
		{Name: "a", OrdinalPosition: 1},
		{Name: "b", OrdinalPosition: 1},
	}}
	assert.Error(t, tab.Validate())

	tab.Columns[1].OrdinalPosition = 2
	assert.NoError(t, tab.Validate())

	tab.Columns[0].Name = ""
	assert.Error(t, tab.Validate())
}

func TestTableBuilder_PartitionNumbering(t *testing.T) {
	tab := NewTableBuilder("test", "t1").
		AddColumn("id", ColumnTypeLong).
		PartitionBy(PartitionTypeRange, "id").
		SubpartitionBy(SubpartitionTypeHash, "id").
		AddPartition("p0", Literal(0, 0, "10")).
		AddPartition("p1", MaxValue(0, 0)).
		AddSubpartition("s0").
		AddSubpartition("s1").
		MustBuild()

	require.Len(t, tab.Partitions, 4)
	assert.Equal(t, uint32(1), tab.Partitions[1].Number)
	assert.Equal(t, uint32(1), tab.Partitions[3].Level)
	assert.Equal(t, uint32(1), tab.Partitions[3].Number)
	assert.True(t, tab.IsPartitioned())
}

func TestProperties_TypedGetters(t *testing.T) {
	p := Properties{"max_rows": "100", "pack_keys": "1", "bad": "x"}

	v, ok, err := p.GetUint64("max_rows")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint64(100), v)

	b, ok, err := p.GetBool("pack_keys")
	require.NoError(t, err)
	assert.True(t, ok && b)

	_, ok, err = p.GetUint32("bad")
	assert.True(t, ok)
	assert.Error(t, err)

	_, ok, err = p.GetUint32("missing")
	assert.False(t, ok)
	assert.NoError(t, err)
	assert.Equal(t, "bad=x;max_rows=100;pack_keys=1", p.String())
}

func TestHexBytes_Text(t *testing.T) {
	var h HexBytes
	require.NoError(t, h.UnmarshalText([]byte("0a0b")))
	assert.Equal(t, HexBytes{0x0a, 0x0b}, h)
	out, err := h.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "0a0b", string(out))
	assert.Error(t, h.UnmarshalText([]byte("zz")))
}

func TestTableMetadata_Normalize(t *testing.T) {
	tab := &TableMetadata{
		Name:        "t1",
		CollationID: 8,
		Columns: []*ColumnMetadata{
			{Name: "id", Type: ColumnTypeLong},
			{Name: "name", Type: ColumnTypeVarchar, CollationID: 63},
		},
		Indexes: []*IndexMetadata{
			{Name: "PRIMARY", Type: IndexTypePrimary, Elements: []*IndexElementMetadata{{ColumnName: "id"}}},
			{Name: "k_name", Type: IndexTypeMultiple, Elements: []*IndexElementMetadata{{ColumnName: "name", Length: 4}}},
		},
	}
	require.NoError(t, tab.Normalize())
	assert.Equal(t, uint32(2), tab.Columns[1].OrdinalPosition)
	assert.Equal(t, uint32(8), tab.Columns[0].CollationID)
	assert.Equal(t, uint32(63), tab.Columns[1].CollationID)
	assert.Equal(t, uint32(2), tab.Indexes[1].OrdinalPosition)
	assert.Equal(t, uint32(2), tab.Indexes[1].Elements[0].ColumnOrdinal)

	tab.Indexes[0].Elements[0] = &IndexElementMetadata{ColumnName: "missing"}
	assert.Error(t, tab.Normalize())

	tab.Indexes[0].Elements[0] = &IndexElementMetadata{ColumnName: "id", ColumnOrdinal: 2}
	assert.Error(t, tab.Normalize())
}
