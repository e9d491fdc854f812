package metadata

import "fmt"

// Table option keys understood by the compiler.
const (
	TableOptionMaxRows          = "max_rows"
	TableOptionMinRows          = "min_rows"
	TableOptionAvgRowLength     = "avg_row_length"
	TableOptionPackRecord       = "pack_record"
	TableOptionPackKeys         = "pack_keys"
	TableOptionChecksum         = "checksum"
	TableOptionDelayKeyWrite    = "delay_key_write"
	TableOptionStatsPersistent  = "stats_persistent"
	TableOptionRowType          = "row_type"
	TableOptionStatsSamplePages = "stats_sample_pages"
	TableOptionStatsAutoRecalc  = "stats_auto_recalc"
	TableOptionKeyBlockSize     = "key_block_size"
	TableOptionStorage          = "storage"
	TableOptionConnectionString = "connection_string"
	TableOptionCompress         = "compress"
	TableOptionEncryptType      = "encrypt_type"
)

// TableMetadata is the catalog record of a table together with its
// columns, indexes and flat partition list.
// 数据字典中的表记录
type TableMetadata struct {
	Schema         string     `yaml:"schema" json:"schema"`
	Name           string     `yaml:"name" json:"name"`
	Engine         string     `yaml:"engine" json:"engine"`
	CollationID    uint32     `yaml:"collation_id" json:"collation_id"`
	Comment        string     `yaml:"comment,omitempty" json:"comment,omitempty"`
	MySQLVersionID uint32     `yaml:"mysql_version_id,omitempty" json:"mysql_version_id,omitempty"`
	RowFormat      string     `yaml:"row_format,omitempty" json:"row_format,omitempty"`
	Tablespace     string     `yaml:"tablespace,omitempty" json:"tablespace,omitempty"`
	Options        Properties `yaml:"options,omitempty" json:"options,omitempty"`

	PartitionType          PartitionType       `yaml:"partition_type,omitempty" json:"partition_type,omitempty"`
	PartitionExpression    string              `yaml:"partition_expression,omitempty" json:"partition_expression,omitempty"`
	DefaultPartitioning    DefaultPartitioning `yaml:"default_partitioning,omitempty" json:"default_partitioning,omitempty"`
	SubpartitionType       SubpartitionType    `yaml:"subpartition_type,omitempty" json:"subpartition_type,omitempty"`
	SubpartitionExpression string              `yaml:"subpartition_expression,omitempty" json:"subpartition_expression,omitempty"`
	DefaultSubpartitioning DefaultPartitioning `yaml:"default_subpartitioning,omitempty" json:"default_subpartitioning,omitempty"`

	Columns    []*ColumnMetadata    `yaml:"columns" json:"columns"`
	Indexes    []*IndexMetadata     `yaml:"indexes,omitempty" json:"indexes,omitempty"`
	Partitions []*PartitionMetadata `yaml:"partitions,omitempty" json:"partitions,omitempty"`
}

// QualifiedName returns schema.name.
func (t *TableMetadata) QualifiedName() string {
	if t.Schema == "" {
		return t.Name
	}
	return t.Schema + "." + t.Name
}

// IsPartitioned reports whether the table declares a partitioning scheme.
func (t *TableMetadata) IsPartitioned() bool {
	return t.PartitionType != PartitionTypeNone
}

// ColumnByName returns the first column named name.
func (t *TableMetadata) ColumnByName(name string) *ColumnMetadata {
	for _, c := range t.Columns {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// ColumnByOrdinal returns the column at the given ordinal position.
func (t *TableMetadata) ColumnByOrdinal(pos uint32) *ColumnMetadata {
	for _, c := range t.Columns {
		if c.OrdinalPosition == pos {
			return c
		}
	}
	return nil
}

// Validate checks the coarse structural rules a catalog guarantees: a table
// name, non-empty column names and unique ordinal positions.
func (t *TableMetadata) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("table name cannot be empty")
	}
	seen := make(map[uint32]string, len(t.Columns))
	for _, c := range t.Columns {
		if c.Name == "" {
			return fmt.Errorf("table %s: column at position %d has no name", t.Name, c.OrdinalPosition)
		}
		if prev, ok := seen[c.OrdinalPosition]; ok {
			return fmt.Errorf("table %s: columns %s and %s share ordinal position %d", t.Name, prev, c.Name, c.OrdinalPosition)
		}
		seen[c.OrdinalPosition] = c.Name
	}
	return nil
}

// Normalize fills in what a hand written catalog file may leave out:
// column and index ordinal positions, column collations (taken from the
// table) and index elements that name their column instead of giving its
// position.
// 补全手写目录文件中省略的序号
func (t *TableMetadata) Normalize() error {
	assigned := true
	for _, c := range t.Columns {
		if c.OrdinalPosition != 0 {
			assigned = false
			break
		}
	}
	for i, c := range t.Columns {
		if assigned {
			c.OrdinalPosition = uint32(i + 1)
		}
		if c.CollationID == 0 {
			c.CollationID = t.CollationID
		}
	}
	for i, idx := range t.Indexes {
		if idx.OrdinalPosition == 0 {
			idx.OrdinalPosition = uint32(i + 1)
		}
		for _, elem := range idx.Elements {
			if elem.ColumnName == "" {
				continue
			}
			col := t.ColumnByName(elem.ColumnName)
			if col == nil {
				return fmt.Errorf("table %s: index %s references unknown column %s", t.Name, idx.Name, elem.ColumnName)
			}
			if elem.ColumnOrdinal != 0 && elem.ColumnOrdinal != col.OrdinalPosition {
				return fmt.Errorf("table %s: index %s names column %s but gives position %d", t.Name, idx.Name, elem.ColumnName, elem.ColumnOrdinal)
			}
			elem.ColumnOrdinal = col.OrdinalPosition
		}
	}
	return t.Validate()
}
