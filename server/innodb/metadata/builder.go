package metadata

import "fmt"

// TableBuilder assembles a TableMetadata record the way a catalog would
// persist it. Index elements are declared by column name and resolved to
// ordinal positions in Build.
// 用于构建 TableMetadata 的构建器
type TableBuilder struct {
	table   *TableMetadata
	pending []pendingIndex
}

type pendingIndex struct {
	index *IndexMetadata
	parts []IndexPart
}

// DefaultTableCollationID is the collation a built table starts with.
const DefaultTableCollationID uint32 = 255

// NewTableBuilder creates a new TableBuilder
func NewTableBuilder(schema, name string) *TableBuilder {
	return &TableBuilder{
		table: &TableMetadata{
			Schema:      schema,
			Name:        name,
			Engine:      "InnoDB",
			CollationID: DefaultTableCollationID,
			Options:     Properties{},
		},
	}
}

// WithEngine sets the storage engine
func (b *TableBuilder) WithEngine(engine string) *TableBuilder {
	b.table.Engine = engine
	return b
}

// WithCollation sets the table collation id
func (b *TableBuilder) WithCollation(id uint32) *TableBuilder {
	b.table.CollationID = id
	return b
}

// WithComment sets the table comment
func (b *TableBuilder) WithComment(comment string) *TableBuilder {
	b.table.Comment = comment
	return b
}

// WithRowFormat sets the real row format
func (b *TableBuilder) WithRowFormat(format string) *TableBuilder {
	b.table.RowFormat = format
	return b
}

// WithTablespace sets the tablespace name
func (b *TableBuilder) WithTablespace(name string) *TableBuilder {
	b.table.Tablespace = name
	return b
}

// WithOption stores a table option
func (b *TableBuilder) WithOption(key, value string) *TableBuilder {
	b.table.Options[key] = value
	return b
}

// AddColumn appends a column; its ordinal position is its 1-based place.
func (b *TableBuilder) AddColumn(name string, typ ColumnType, options ...ColumnOption) *TableBuilder {
	col := &ColumnMetadata{
		Name:            name,
		Type:            typ,
		OrdinalPosition: uint32(len(b.table.Columns) + 1),
		CharLength:      defaultCharLength(typ),
	}
	for _, opt := range options {
		opt(col)
	}
	b.table.Columns = append(b.table.Columns, col)
	return b
}

// AddIndex appends an index over the named parts.
func (b *TableBuilder) AddIndex(name string, typ IndexType, parts []IndexPart, options ...IndexOption) *TableBuilder {
	idx := &IndexMetadata{
		Name:            name,
		Type:            typ,
		Algorithm:       IndexAlgorithmBtree,
		Visible:         true,
		OrdinalPosition: uint32(len(b.pending) + 1),
	}
	switch typ {
	case IndexTypeFulltext:
		idx.Algorithm = IndexAlgorithmFulltext
	case IndexTypeSpatial:
		idx.Algorithm = IndexAlgorithmRtree
	}
	for _, opt := range options {
		opt(idx)
	}
	b.pending = append(b.pending, pendingIndex{index: idx, parts: parts})
	return b
}

// AddPrimaryKey appends a PRIMARY index over the named columns.
func (b *TableBuilder) AddPrimaryKey(columns ...string) *TableBuilder {
	parts := make([]IndexPart, 0, len(columns))
	for _, c := range columns {
		parts = append(parts, Part(c))
	}
	return b.AddIndex("PRIMARY", IndexTypePrimary, parts)
}

// PartitionBy sets the partitioning scheme and expression.
func (b *TableBuilder) PartitionBy(typ PartitionType, expression string) *TableBuilder {
	b.table.PartitionType = typ
	b.table.PartitionExpression = expression
	b.table.DefaultPartitioning = DefaultPartitioningNo
	return b
}

// SubpartitionBy sets the subpartitioning scheme and expression.
func (b *TableBuilder) SubpartitionBy(typ SubpartitionType, expression string) *TableBuilder {
	b.table.SubpartitionType = typ
	b.table.SubpartitionExpression = expression
	b.table.DefaultSubpartitioning = DefaultPartitioningNo
	return b
}

// AddPartition appends a level 0 record numbered after the previous ones.
func (b *TableBuilder) AddPartition(name string, values ...*PartitionValueMetadata) *TableBuilder {
	return b.addPartitionRecord(name, 0, values)
}

// AddSubpartition appends a level 1 record numbered after the previous ones.
func (b *TableBuilder) AddSubpartition(name string) *TableBuilder {
	return b.addPartitionRecord(name, 1, nil)
}

func (b *TableBuilder) addPartitionRecord(name string, level uint32, values []*PartitionValueMetadata) *TableBuilder {
	var number uint32
	for _, p := range b.table.Partitions {
		if p.Level == level {
			number++
		}
	}
	b.table.Partitions = append(b.table.Partitions, &PartitionMetadata{
		Name:   name,
		Level:  level,
		Number: number,
		Values: values,
	})
	return b
}

// Build resolves index parts and returns the table. Columns without a
// collation take the table collation.
func (b *TableBuilder) Build() (*TableMetadata, error) {
	for _, col := range b.table.Columns {
		if col.CollationID == 0 {
			col.CollationID = b.table.CollationID
		}
	}
	b.table.Indexes = b.table.Indexes[:0]
	for _, p := range b.pending {
		p.index.Elements = make([]*IndexElementMetadata, 0, len(p.parts))
		for _, part := range p.parts {
			col := b.table.ColumnByName(part.Column)
			if col == nil {
				return nil, fmt.Errorf("index %s: unknown column %s", p.index.Name, part.Column)
			}
			p.index.Elements = append(p.index.Elements, &IndexElementMetadata{
				ColumnOrdinal: col.OrdinalPosition,
				Length:        part.Length,
				Order:         part.Order,
				Hidden:        part.Hidden,
			})
		}
		b.table.Indexes = append(b.table.Indexes, p.index)
	}
	if err := b.table.Validate(); err != nil {
		return nil, err
	}
	return b.table, nil
}

// MustBuild is Build for fixtures that are known to be valid.
func (b *TableBuilder) MustBuild() *TableMetadata {
	tab, err := b.Build()
	if err != nil {
		panic(err)
	}
	return tab
}

func defaultCharLength(typ ColumnType) uint32 {
	switch typ {
	case ColumnTypeTiny:
		return 4
	case ColumnTypeShort:
		return 6
	case ColumnTypeInt24:
		return 9
	case ColumnTypeLong:
		return 11
	case ColumnTypeLonglong:
		return 20
	case ColumnTypeFloat:
		return 12
	case ColumnTypeDouble:
		return 22
	case ColumnTypeYear:
		return 4
	case ColumnTypeDate, ColumnTypeNewDate:
		return 10
	case ColumnTypeTime, ColumnTypeTime2:
		return 10
	case ColumnTypeDatetime, ColumnTypeDatetime2, ColumnTypeTimestamp, ColumnTypeTimestamp2:
		return 19
	case ColumnTypeBit:
		return 1
	case ColumnTypeTinyBlob:
		return 255
	case ColumnTypeBlob:
		return 65535
	case ColumnTypeMediumBlob:
		return 16777215
	case ColumnTypeLongBlob, ColumnTypeJSON, ColumnTypeGeometry:
		return 4294967295
	}
	return 0
}

// ColumnOption is a function that modifies a ColumnMetadata
// 用于修改 ColumnMetadata 的函数类型
type ColumnOption func(*ColumnMetadata)

// WithLength sets the byte length of the column
func WithLength(length uint32) ColumnOption {
	return func(c *ColumnMetadata) {
		c.CharLength = length
	}
}

// Nullable marks the column as nullable
func Nullable() ColumnOption {
	return func(c *ColumnMetadata) {
		c.Nullable = true
	}
}

// Unsigned marks the column as unsigned
func Unsigned() ColumnOption {
	return func(c *ColumnMetadata) {
		c.Unsigned = true
	}
}

// Zerofill marks the column as zerofill
func Zerofill() ColumnOption {
	return func(c *ColumnMetadata) {
		c.Zerofill = true
	}
}

// WithScale sets the numeric scale
func WithScale(scale uint32) ColumnOption {
	return func(c *ColumnMetadata) {
		c.NumericScale = &scale
	}
}

// WithCollationID sets the column collation
func WithCollationID(id uint32) ColumnOption {
	return func(c *ColumnMetadata) {
		c.CollationID = id
	}
}

// WithDefault sets the default value bytes in record format
func WithDefault(value []byte) ColumnOption {
	return func(c *ColumnMetadata) {
		c.DefaultValue = value
		c.DefaultNull = false
	}
}

// DefaultNull makes NULL the default value
func DefaultNull() ColumnOption {
	return func(c *ColumnMetadata) {
		c.DefaultNull = true
		c.DefaultValue = nil
	}
}

// NoDefault marks a column declared without a default
func NoDefault() ColumnOption {
	return func(c *ColumnMetadata) {
		c.HasNoDefault = true
	}
}

// AutoIncrement marks the column as auto-increment
func AutoIncrement() ColumnOption {
	return func(c *ColumnMetadata) {
		c.AutoIncrement = true
	}
}

// DefaultNow sets CURRENT_TIMESTAMP as the default
func DefaultNow() ColumnOption {
	return func(c *ColumnMetadata) {
		c.DefaultOption = "CURRENT_TIMESTAMP"
	}
}

// OnUpdateNow sets ON UPDATE CURRENT_TIMESTAMP
func OnUpdateNow() ColumnOption {
	return func(c *ColumnMetadata) {
		c.UpdateOption = "CURRENT_TIMESTAMP"
	}
}

// Virtual makes the column a virtual generated column
func Virtual(expression string) ColumnOption {
	return func(c *ColumnMetadata) {
		c.Generation = &Generation{Expression: expression, Virtual: true}
	}
}

// Stored makes the column a stored generated column
func Stored(expression string) ColumnOption {
	return func(c *ColumnMetadata) {
		c.Generation = &Generation{Expression: expression}
	}
}

// Hidden hides the column from the compiled layout
func Hidden() ColumnOption {
	return func(c *ColumnMetadata) {
		c.Hidden = true
	}
}

// WithElements sets ENUM or SET elements
func WithElements(elements ...string) ColumnOption {
	return func(c *ColumnMetadata) {
		c.Elements = elements
	}
}

// WithColumnOption stores a column option
func WithColumnOption(key, value string) ColumnOption {
	return func(c *ColumnMetadata) {
		if c.Options == nil {
			c.Options = Properties{}
		}
		c.Options[key] = value
	}
}

// WithColumnComment sets the column comment
func WithColumnComment(comment string) ColumnOption {
	return func(c *ColumnMetadata) {
		c.Comment = comment
	}
}

// IndexPart names a column of an index under construction.
type IndexPart struct {
	Column string
	Length uint32
	Order  ElementOrder
	Hidden bool
}

// Part declares a full-length ascending part.
func Part(column string) IndexPart {
	return IndexPart{Column: column, Order: OrderAsc}
}

// Prefix limits the part to length bytes.
func (p IndexPart) Prefix(length uint32) IndexPart {
	p.Length = length
	return p
}

// WithLength sets an explicit part length.
func (p IndexPart) WithLength(length uint32) IndexPart {
	p.Length = length
	return p
}

// Desc sorts the part in descending order.
func (p IndexPart) Desc() IndexPart {
	p.Order = OrderDesc
	return p
}

// AsHidden marks the element as engine-added.
func (p IndexPart) AsHidden() IndexPart {
	p.Hidden = true
	return p
}

// Parts declares full-length ascending parts.
func Parts(columns ...string) []IndexPart {
	out := make([]IndexPart, 0, len(columns))
	for _, c := range columns {
		out = append(out, Part(c))
	}
	return out
}

// IndexOption is a function that modifies an IndexMetadata
type IndexOption func(*IndexMetadata)

// Invisible marks the index invisible
func Invisible() IndexOption {
	return func(i *IndexMetadata) {
		i.Visible = false
	}
}

// HiddenIndex hides the index from compilation
func HiddenIndex() IndexOption {
	return func(i *IndexMetadata) {
		i.Hidden = true
	}
}

// GeneratedIndex marks an index created by the server
func GeneratedIndex() IndexOption {
	return func(i *IndexMetadata) {
		i.Generated = true
	}
}

// WithAlgorithm sets an explicit algorithm
func WithAlgorithm(algorithm IndexAlgorithm) IndexOption {
	return func(i *IndexMetadata) {
		i.Algorithm = algorithm
		i.AlgorithmExplicit = true
	}
}

// WithIndexOption stores an index option
func WithIndexOption(key, value string) IndexOption {
	return func(i *IndexMetadata) {
		if i.Options == nil {
			i.Options = Properties{}
		}
		i.Options[key] = value
	}
}

// WithIndexComment sets the index comment
func WithIndexComment(comment string) IndexOption {
	return func(i *IndexMetadata) {
		i.Comment = comment
	}
}

// Literal is a partition boundary cell holding text.
func Literal(list, column uint32, value string) *PartitionValueMetadata {
	return &PartitionValueMetadata{ListNum: list, ColumnNum: column, Value: value}
}

// MaxValue is a MAXVALUE partition boundary cell.
func MaxValue(list, column uint32) *PartitionValueMetadata {
	return &PartitionValueMetadata{ListNum: list, ColumnNum: column, MaxValue: true}
}

// NullValue is a NULL partition boundary cell.
func NullValue(list, column uint32) *PartitionValueMetadata {
	return &PartitionValueMetadata{ListNum: list, ColumnNum: column, IsNull: true}
}
