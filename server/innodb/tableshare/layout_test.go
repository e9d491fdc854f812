package tableshare

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhukovaskychina/xmysql-tabledef/server/innodb/metadata"
	"github.com/zhukovaskychina/xmysql-tabledef/util"
)

func eightNullableColumns(packRecord bool) *metadata.TableMetadata {
	b := metadata.NewTableBuilder("test", "nulls")
	for _, name := range []string{"c0", "c1", "c2", "c3", "c4", "c5", "c6", "c7"} {
		b.AddColumn(name, metadata.ColumnTypeTiny, metadata.Nullable())
	}
	if packRecord {
		b.WithOption(metadata.TableOptionPackRecord, "1")
	}
	return b.MustBuild()
}

func TestRecordLayout_NullBitsWithPackRecord(t *testing.T) {
	c, _ := newTestCompiler()
	desc, _, err := c.Compile(eightNullableColumns(true))
	require.NoError(t, err)

	rec := desc.Record
	assert.Equal(t, uint32(2), rec.NullBytes)
	assert.Equal(t, uint32(8), rec.NullFields)
	assert.Equal(t, 0, desc.Fields[0].NullByte)
	assert.Equal(t, uint8(1<<1), desc.Fields[0].NullBit)
	assert.Equal(t, 1, desc.Fields[7].NullByte)
	assert.Equal(t, uint8(1), desc.Fields[7].NullBit)
	assert.Equal(t, uint8(1), rec.LastNullBitPos)
	assert.Equal(t, "11111111 11111111", util.BitmapString(rec.DefaultRow[:rec.NullBytes]))
	assert.Equal(t, uint32(2), desc.Fields[0].Offset)
}

func TestRecordLayout_NullBitsWithoutPackRecord(t *testing.T) {
	c, _ := newTestCompiler()
	desc, _, err := c.Compile(eightNullableColumns(false))
	require.NoError(t, err)

	rec := desc.Record
	assert.Equal(t, uint32(1), rec.NullBytes)
	assert.Equal(t, uint8(1), desc.Fields[0].NullBit)
	assert.Equal(t, uint8(1<<7), desc.Fields[7].NullBit)
	assert.Equal(t, uint8(0), rec.LastNullBitPos)
	assert.Equal(t, byte(0xFF), rec.DefaultRow[0])
	assert.Equal(t, uint32(8), rec.StoredRecordLength)
}

func TestRecordLayout_VirtualColumnsAfterStored(t *testing.T) {
	c, _ := newTestCompiler()
	tab := metadata.NewTableBuilder("test", "gen").
		AddColumn("a", metadata.ColumnTypeLong).
		AddColumn("v", metadata.ColumnTypeLong, metadata.Nullable(), metadata.Virtual("a + 1")).
		AddColumn("c", metadata.ColumnTypeShort).
		MustBuild()
	desc, _, err := c.Compile(tab)
	require.NoError(t, err)

	a, v, cc := desc.Fields[0], desc.Fields[1], desc.Fields[2]
	assert.Equal(t, uint32(1), a.Offset)
	assert.Equal(t, uint32(5), cc.Offset)
	assert.Equal(t, uint32(7), v.Offset)
	assert.Equal(t, GenerationVirtual, v.Generation)
	assert.Equal(t, "a + 1", v.Expression)
	assert.Equal(t, 0, v.NullByte)
	assert.Equal(t, uint8(1), v.NullBit)
	assert.Equal(t, uint32(6), desc.Record.StoredRecordLength)
	assert.Equal(t, uint32(10), desc.Record.RecordLength)
	assert.Equal(t, 1, desc.VirtualFields)
}

func TestRecordLayout_Defaults(t *testing.T) {
	c, _ := newTestCompiler()
	tab := metadata.NewTableBuilder("test", "defaults").
		AddColumn("a", metadata.ColumnTypeLong, metadata.WithDefault([]byte{1, 0, 0, 0})).
		AddColumn("b", metadata.ColumnTypeLong, metadata.Nullable(), metadata.WithDefault([]byte{2, 0, 0, 0})).
		MustBuild()
	desc, _, err := c.Compile(tab)
	require.NoError(t, err)
	assert.Equal(t, metadata.HexBytes{0xFE, 1, 0, 0, 0, 2, 0, 0, 0}, desc.Record.DefaultRow)

	tab.Columns[0].DefaultValue = []byte{1}
	_, _, err = c.Compile(tab)
	assert.True(t, IsInvalidMetadata(err), "%v", err)
}

func TestRecordLayout_BitLeftoverInNullBitmap(t *testing.T) {
	c, _ := newTestCompiler()
	tab := metadata.NewTableBuilder("test", "bits").
		AddColumn("flags", metadata.ColumnTypeBit, metadata.WithLength(10), metadata.WithDefault([]byte{0xAB, 0x01})).
		MustBuild()
	desc, _, err := c.Compile(tab)
	require.NoError(t, err)

	f := desc.Fields[0]
	assert.Equal(t, uint8(2), f.BitLen)
	assert.Equal(t, 0, f.BitByte)
	assert.Equal(t, uint8(0), f.BitOfs)
	assert.Equal(t, uint32(2), f.PackLength)
	assert.Equal(t, uint32(1), f.RecLength)
	assert.Equal(t, metadata.HexBytes{0xFD, 0xAB}, desc.Record.DefaultRow)
	assert.Equal(t, byte(1), util.GetRecBits(desc.Record.DefaultRow, f.BitOfs, f.BitLen))
}

func TestRecordLayout_NullableBitAfterNullBit(t *testing.T) {
	c, _ := newTestCompiler()
	tab := metadata.NewTableBuilder("test", "bits").
		AddColumn("b", metadata.ColumnTypeBit, metadata.WithLength(3), metadata.Nullable()).
		MustBuild()
	desc, _, err := c.Compile(tab)
	require.NoError(t, err)

	f := desc.Fields[0]
	assert.Equal(t, uint8(1), f.NullBit)
	assert.Equal(t, uint8(1), f.BitOfs)
	assert.Equal(t, uint32(4), f.Preamble)
	assert.Equal(t, uint32(0), desc.Record.RecordLength)
	assert.Equal(t, metadata.HexBytes{0xF1}, desc.Record.DefaultRow)
}

func TestRecordLayout_TypeGeometry(t *testing.T) {
	c, _ := newTestCompiler()
	tab := metadata.NewTableBuilder("test", "types").
		AddColumn("dt", metadata.ColumnTypeDatetime2, metadata.WithLength(23)).
		AddColumn("ts", metadata.ColumnTypeTimestamp2).
		AddColumn("tm", metadata.ColumnTypeTime2, metadata.WithLength(14)).
		AddColumn("price", metadata.ColumnTypeNewDecimal, metadata.WithLength(12), metadata.WithScale(2)).
		AddColumn("ratio", metadata.ColumnTypeFloat).
		AddColumn("color", metadata.ColumnTypeEnum, metadata.WithElements("red", "green", "blue")).
		AddColumn("tags", metadata.ColumnTypeSet, metadata.WithElements("a", "b", "c", "d", "e", "f", "g", "h", "i")).
		AddColumn("body", metadata.ColumnTypeBlob, metadata.Nullable()).
		AddColumn("secret", metadata.ColumnTypeLong, metadata.Hidden()).
		MustBuild()
	desc, _, err := c.Compile(tab)
	require.NoError(t, err)
	require.Len(t, desc.Fields, 8)

	packs := map[string]uint32{
		"dt": 7, "ts": 4, "tm": 5, "price": 5, "ratio": 4, "color": 1, "tags": 2, "body": 10,
	}
	for name, want := range packs {
		f, ok := desc.FieldByName(name)
		require.True(t, ok, name)
		assert.Equal(t, want, f.PackLength, name)
	}
	_, ok := desc.FieldByName("secret")
	assert.False(t, ok)

	ratio, _ := desc.FieldByName("ratio")
	assert.Equal(t, uint32(NotFixedDec), ratio.Decimals)
	body, _ := desc.FieldByName("body")
	assert.True(t, body.IsBlob())
	assert.Equal(t, []int{7}, desc.BlobFields)
	assert.Equal(t, []uint32{body.Offset}, desc.Record.BlobOffsets)
}

func TestRecordLayout_DecimalWithoutScale(t *testing.T) {
	c, _ := newTestCompiler()
	tab := metadata.NewTableBuilder("test", "dec").
		AddColumn("price", metadata.ColumnTypeNewDecimal, metadata.WithLength(12)).
		MustBuild()
	_, _, err := c.Compile(tab)
	assert.True(t, IsInvalidMetadata(err), "%v", err)
}

func TestRecordLayout_UnknownColumnType(t *testing.T) {
	c, _ := newTestCompiler()
	tab := metadata.NewTableBuilder("test", "odd").
		AddColumn("x", metadata.ColumnType("VECTOR")).
		MustBuild()
	_, _, err := c.Compile(tab)
	assert.True(t, IsInvalidMetadata(err), "%v", err)
}
