package metadata

import "strings"

// ColumnType is the catalog type tag of a column.
// 列在数据字典中的类型标记
type ColumnType string

const (
	ColumnTypeDecimal    ColumnType = "DECIMAL"
	ColumnTypeTiny       ColumnType = "TINY"
	ColumnTypeShort      ColumnType = "SHORT"
	ColumnTypeLong       ColumnType = "LONG"
	ColumnTypeFloat      ColumnType = "FLOAT"
	ColumnTypeDouble     ColumnType = "DOUBLE"
	ColumnTypeNull       ColumnType = "TYPE_NULL"
	ColumnTypeTimestamp  ColumnType = "TIMESTAMP"
	ColumnTypeLonglong   ColumnType = "LONGLONG"
	ColumnTypeInt24      ColumnType = "INT24"
	ColumnTypeDate       ColumnType = "DATE"
	ColumnTypeTime       ColumnType = "TIME"
	ColumnTypeDatetime   ColumnType = "DATETIME"
	ColumnTypeYear       ColumnType = "YEAR"
	ColumnTypeNewDate    ColumnType = "NEWDATE"
	ColumnTypeVarchar    ColumnType = "VARCHAR"
	ColumnTypeBit        ColumnType = "BIT"
	ColumnTypeTimestamp2 ColumnType = "TIMESTAMP2"
	ColumnTypeDatetime2  ColumnType = "DATETIME2"
	ColumnTypeTime2      ColumnType = "TIME2"
	ColumnTypeNewDecimal ColumnType = "NEWDECIMAL"
	ColumnTypeEnum       ColumnType = "ENUM"
	ColumnTypeSet        ColumnType = "SET"
	ColumnTypeTinyBlob   ColumnType = "TINY_BLOB"
	ColumnTypeMediumBlob ColumnType = "MEDIUM_BLOB"
	ColumnTypeLongBlob   ColumnType = "LONG_BLOB"
	ColumnTypeBlob       ColumnType = "BLOB"
	ColumnTypeVarString  ColumnType = "VAR_STRING"
	ColumnTypeString     ColumnType = "STRING"
	ColumnTypeGeometry   ColumnType = "GEOMETRY"
	ColumnTypeJSON       ColumnType = "JSON"
)

// Normalize upper-cases the tag so catalog files may use any case.
func (t ColumnType) Normalize() ColumnType {
	return ColumnType(strings.ToUpper(strings.TrimSpace(string(t))))
}

// Column option keys understood by the compiler.
const (
	ColumnOptionTreatBitAsChar = "treat_bit_as_char"
	ColumnOptionGeomType       = "geom_type"
	ColumnOptionStorage        = "storage"
	ColumnOptionColumnFormat   = "column_format"
)

// Generation describes a generated column.
type Generation struct {
	Expression string `yaml:"expression" json:"expression"`
	Virtual    bool   `yaml:"virtual" json:"virtual"`
}

// ColumnMetadata is the catalog record of one column.
// 数据字典中的列记录
type ColumnMetadata struct {
	Name            string      `yaml:"name" json:"name"`
	Type            ColumnType  `yaml:"type" json:"type"`
	OrdinalPosition uint32      `yaml:"ordinal_position" json:"ordinal_position"`
	Nullable        bool        `yaml:"nullable" json:"nullable"`
	Unsigned        bool        `yaml:"unsigned,omitempty" json:"unsigned,omitempty"`
	Zerofill        bool        `yaml:"zerofill,omitempty" json:"zerofill,omitempty"`
	CharLength      uint32      `yaml:"char_length" json:"char_length"`
	CollationID     uint32      `yaml:"collation_id" json:"collation_id"`
	NumericScale    *uint32     `yaml:"numeric_scale,omitempty" json:"numeric_scale,omitempty"`
	AutoIncrement   bool        `yaml:"auto_increment,omitempty" json:"auto_increment,omitempty"`
	DefaultOption   string      `yaml:"default_option,omitempty" json:"default_option,omitempty"`
	UpdateOption    string      `yaml:"update_option,omitempty" json:"update_option,omitempty"`
	HasNoDefault    bool        `yaml:"has_no_default,omitempty" json:"has_no_default,omitempty"`
	DefaultValue    HexBytes    `yaml:"default_value,omitempty" json:"default_value,omitempty"`
	DefaultNull     bool        `yaml:"default_null,omitempty" json:"default_null,omitempty"`
	Generation      *Generation `yaml:"generation,omitempty" json:"generation,omitempty"`
	Elements        []string    `yaml:"elements,omitempty" json:"elements,omitempty"`
	Options         Properties  `yaml:"options,omitempty" json:"options,omitempty"`
	Comment         string      `yaml:"comment,omitempty" json:"comment,omitempty"`
	Hidden          bool        `yaml:"hidden,omitempty" json:"hidden,omitempty"`
}

// IsGenerated reports whether the column has a generation expression.
func (c *ColumnMetadata) IsGenerated() bool {
	return c.Generation != nil && c.Generation.Expression != ""
}

// IsVirtual reports a generated column that is computed on read.
func (c *ColumnMetadata) IsVirtual() bool {
	return c.IsGenerated() && c.Generation.Virtual
}
