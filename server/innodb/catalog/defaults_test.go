package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhukovaskychina/xmysql-tabledef/server/innodb/metadata"
)

func scaleOf(n uint32) *uint32 { return &n }

func withDefault(r columnRow, text string) columnRow {
	r.defaultValue = &text
	if r.nullable == "" {
		r.nullable = "NO"
	}
	return r
}

func TestColumnDefaults_Encoded(t *testing.T) {
	tests := []struct {
		name string
		row  columnRow
		want metadata.HexBytes
	}{
		{"decimal", withDefault(columnRow{dataType: "decimal", columnType: "decimal(10,2)", precision: 10, scale: scaleOf(2)}, "1.50"),
			metadata.HexBytes{0x80, 0, 0, 0x01, 0x32}},
		{"negative decimal", withDefault(columnRow{dataType: "decimal", columnType: "decimal(10,2)", precision: 10, scale: scaleOf(2)}, "-1.50"),
			metadata.HexBytes{0x7f, 0xff, 0xff, 0xfe, 0xcd}},
		{"wide decimal", withDefault(columnRow{dataType: "decimal", columnType: "decimal(20,4)", precision: 20, scale: scaleOf(4)}, "12345678901.2345"),
			metadata.HexBytes{0x80, 0, 0, 0x0c, 0x14, 0x9a, 0xa4, 0x35, 0x09, 0x29}},
		{"decimal rounds to scale", withDefault(columnRow{dataType: "decimal", columnType: "decimal(4,1)", precision: 4, scale: scaleOf(1)}, "2.06"),
			metadata.HexBytes{0x80, 0x02, 0x01}},
		{"float", withDefault(columnRow{dataType: "float", columnType: "float"}, "1.5"),
			metadata.HexBytes{0, 0, 0xc0, 0x3f}},
		{"double", withDefault(columnRow{dataType: "double", columnType: "double"}, "-2"),
			metadata.HexBytes{0, 0, 0, 0, 0, 0, 0, 0xc0}},
		{"char", withDefault(columnRow{dataType: "char", columnType: "char(4)", charMaxLength: 4, octetLength: 4}, "ab"),
			metadata.HexBytes("ab  ")},
		{"binary", withDefault(columnRow{dataType: "binary", columnType: "binary(3)", charMaxLength: 3, octetLength: 3}, "a"),
			metadata.HexBytes{'a', 0, 0}},
		{"varchar", withDefault(columnRow{dataType: "varchar", columnType: "varchar(3)", charMaxLength: 3, octetLength: 3}, "hi"),
			metadata.HexBytes{2, 0, 'h', 'i', 0}},
		{"year", withDefault(columnRow{dataType: "year", columnType: "year"}, "2024"),
			metadata.HexBytes{124}},
		{"date", withDefault(columnRow{dataType: "date", columnType: "date"}, "2021-03-04"),
			metadata.HexBytes{0x64, 0xca, 0x0f}},
		{"datetime", withDefault(columnRow{dataType: "datetime", columnType: "datetime"}, "2000-01-01 00:00:00"),
			metadata.HexBytes{0x99, 0x64, 0x42, 0, 0}},
		{"negative time", withDefault(columnRow{dataType: "time", columnType: "time"}, "-00:00:01"),
			metadata.HexBytes{0x7f, 0xff, 0xff}},
		{"time with fraction", withDefault(columnRow{dataType: "time", columnType: "time(2)", fsp: 2}, "01:00:00.50"),
			metadata.HexBytes{0x80, 0x10, 0x00, 0x32}},
		{"timestamp", withDefault(columnRow{dataType: "timestamp", columnType: "timestamp"}, "1970-01-02 00:00:00"),
			metadata.HexBytes{0, 0x01, 0x51, 0x80}},
		{"timestamp with fraction", withDefault(columnRow{dataType: "timestamp", columnType: "timestamp(3)", fsp: 3}, "2000-01-01 00:00:00.123"),
			metadata.HexBytes{0x38, 0x6d, 0x43, 0x80, 0x04, 0xce}},
		{"bit with leftover", withDefault(columnRow{dataType: "bit", columnType: "bit(10)", precision: 10}, "b'1100000001'"),
			metadata.HexBytes{0x01, 0x03}},
		{"bit byte", withDefault(columnRow{dataType: "bit", columnType: "bit(8)", precision: 8}, "255"),
			metadata.HexBytes{0xff}},
		{"set", withDefault(columnRow{dataType: "set", columnType: "set('a','b','c')"}, "a,c"),
			metadata.HexBytes{5}},
		{"empty set", withDefault(columnRow{dataType: "set", columnType: "set('a','b','c')"}, ""),
			metadata.HexBytes{0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := tt.row
			r.name = "c"
			col, err := r.toColumn()
			require.NoError(t, err)
			assert.Equal(t, tt.want, col.DefaultValue)
			assert.False(t, col.DefaultNull)
		})
	}
}

func TestColumnDefaults_Unencodable(t *testing.T) {
	tests := []struct {
		name string
		row  columnRow
	}{
		{"json literal", withDefault(columnRow{dataType: "json", columnType: "json"}, "{}")},
		{"blob literal", withDefault(columnRow{dataType: "blob", columnType: "blob"}, "abc")},
		{"decimal overflow", withDefault(columnRow{dataType: "decimal", columnType: "decimal(10,2)", precision: 10, scale: scaleOf(2)}, "123456789.1")},
		{"decimal garbage", withDefault(columnRow{dataType: "decimal", columnType: "decimal(10,2)", precision: 10, scale: scaleOf(2)}, "ten")},
		{"unknown enum member", withDefault(columnRow{dataType: "enum", columnType: "enum('a')"}, "b")},
		{"unknown set member", withDefault(columnRow{dataType: "set", columnType: "set('a')"}, "a,z")},
		{"char too long", withDefault(columnRow{dataType: "char", columnType: "char(1)", charMaxLength: 1, octetLength: 1}, "ab")},
		{"bit too wide", withDefault(columnRow{dataType: "bit", columnType: "bit(2)", precision: 2}, "b'111'")},
		{"malformed date", withDefault(columnRow{dataType: "date", columnType: "date"}, "2021/03/04")},
		{"negative fractional time", withDefault(columnRow{dataType: "time", columnType: "time(1)", fsp: 1}, "-00:00:01.5")},
		{"integer garbage", withDefault(columnRow{dataType: "int", columnType: "int", precision: 10}, "1e3")},
		{"year out of range", withDefault(columnRow{dataType: "year", columnType: "year"}, "1800")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := tt.row
			r.name = "c"
			_, err := r.toColumn()
			require.Error(t, err)
			assert.Contains(t, err.Error(), "column c: default")
		})
	}
}

func TestColumnDefaults_NullableDecimalKeepsLiteral(t *testing.T) {
	idRow := columnRow{name: "id", position: 1, dataType: "int", columnType: "int", nullable: "NO", precision: 10}
	priceRow := withDefault(columnRow{name: "price", position: 2, dataType: "decimal", columnType: "decimal(10,2)",
		nullable: "YES", precision: 10, scale: scaleOf(2)}, "1.50")

	id, err := idRow.toColumn()
	require.NoError(t, err)
	price, err := priceRow.toColumn()
	require.NoError(t, err)
	require.False(t, price.DefaultNull)

	tab := &metadata.TableMetadata{Schema: "shop", Name: "prices", Engine: "InnoDB", CollationID: 255,
		Columns: []*metadata.ColumnMetadata{id, price}}
	desc, _, err := newCompiler().Compile(tab)
	require.NoError(t, err)

	field := desc.Fields[1]
	row := desc.Record.DefaultRow
	assert.Zero(t, row[field.NullByte]&field.NullBit)
	assert.Equal(t, []byte{0x80, 0, 0, 0x01, 0x32}, []byte(row[field.Offset:field.Offset+5]))
}
