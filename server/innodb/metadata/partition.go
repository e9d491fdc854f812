package metadata

// PartitionType is the partitioning scheme of a table.
type PartitionType string

const (
	PartitionTypeNone         PartitionType = ""
	PartitionTypeHash         PartitionType = "HASH"
	PartitionTypeLinearHash   PartitionType = "LINEAR_HASH"
	PartitionTypeKey51        PartitionType = "KEY_51"
	PartitionTypeKey55        PartitionType = "KEY_55"
	PartitionTypeLinearKey51  PartitionType = "LINEAR_KEY_51"
	PartitionTypeLinearKey55  PartitionType = "LINEAR_KEY_55"
	PartitionTypeRange        PartitionType = "RANGE"
	PartitionTypeList         PartitionType = "LIST"
	PartitionTypeRangeColumns PartitionType = "RANGE_COLUMNS"
	PartitionTypeListColumns  PartitionType = "LIST_COLUMNS"
	PartitionTypeAuto         PartitionType = "AUTO"
	PartitionTypeAutoLinear   PartitionType = "AUTO_LINEAR"
)

// SubpartitionType is the subpartitioning scheme of a table.
type SubpartitionType string

const (
	SubpartitionTypeNone        SubpartitionType = ""
	SubpartitionTypeHash        SubpartitionType = "HASH"
	SubpartitionTypeLinearHash  SubpartitionType = "LINEAR_HASH"
	SubpartitionTypeKey51       SubpartitionType = "KEY_51"
	SubpartitionTypeKey55       SubpartitionType = "KEY_55"
	SubpartitionTypeLinearKey51 SubpartitionType = "LINEAR_KEY_51"
	SubpartitionTypeLinearKey55 SubpartitionType = "LINEAR_KEY_55"
)

// DefaultPartitioning records how the partition list was declared.
type DefaultPartitioning string

const (
	DefaultPartitioningNone   DefaultPartitioning = ""
	DefaultPartitioningNo     DefaultPartitioning = "NO"
	DefaultPartitioningYes    DefaultPartitioning = "YES"
	DefaultPartitioningNumber DefaultPartitioning = "NUMBER"
)

// Partition option keys understood by the compiler.
const (
	PartitionOptionMaxRows       = "max_rows"
	PartitionOptionMinRows       = "min_rows"
	PartitionOptionDataFileName  = "data_file_name"
	PartitionOptionIndexFileName = "index_file_name"
	PartitionOptionNodegroupID   = "nodegroup_id"
)

// PartitionValueMetadata is one boundary cell of a partition.
type PartitionValueMetadata struct {
	ColumnNum uint32 `yaml:"column_num" json:"column_num"`
	ListNum   uint32 `yaml:"list_num" json:"list_num"`
	IsNull    bool   `yaml:"null,omitempty" json:"null,omitempty"`
	MaxValue  bool   `yaml:"max_value,omitempty" json:"max_value,omitempty"`
	Value     string `yaml:"value,omitempty" json:"value,omitempty"`
}

// PartitionMetadata is one flat partition record. Level 0 records are
// partitions, level 1 records are subpartitions.
// 扁平化的分区记录
type PartitionMetadata struct {
	Name       string                    `yaml:"name" json:"name"`
	Level      uint32                    `yaml:"level" json:"level"`
	Number     uint32                    `yaml:"number" json:"number"`
	Values     []*PartitionValueMetadata `yaml:"values,omitempty" json:"values,omitempty"`
	Options    Properties                `yaml:"options,omitempty" json:"options,omitempty"`
	Tablespace string                    `yaml:"tablespace,omitempty" json:"tablespace,omitempty"`
	Comment    string                    `yaml:"comment,omitempty" json:"comment,omitempty"`
}

// PartitionDefinition groups the partitioning attributes of a table. It is
// what a partition definition text parses back into.
type PartitionDefinition struct {
	Type                   PartitionType
	Expression             string
	SubpartitionType       SubpartitionType
	SubpartitionExpression string
	Engine                 string
	Partitions             []*PartitionMetadata

	// Set only when the text used the PARTITIONS n / SUBPARTITIONS n form.
	DefaultPartitioning    DefaultPartitioning
	DefaultSubpartitioning DefaultPartitioning
}

// ApplyTo returns a shallow copy of tab carrying this partitioning.
func (d *PartitionDefinition) ApplyTo(tab *TableMetadata) *TableMetadata {
	out := *tab
	out.PartitionType = d.Type
	out.PartitionExpression = d.Expression
	out.SubpartitionType = d.SubpartitionType
	out.SubpartitionExpression = d.SubpartitionExpression
	out.Partitions = d.Partitions
	if d.DefaultPartitioning != DefaultPartitioningNone {
		out.DefaultPartitioning = d.DefaultPartitioning
	}
	if d.DefaultSubpartitioning != DefaultPartitioningNone {
		out.DefaultSubpartitioning = d.DefaultSubpartitioning
	}
	return &out
}
