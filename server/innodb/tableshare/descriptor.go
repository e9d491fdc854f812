package tableshare

import (
	"github.com/bits-and-blooms/bitset"

	"github.com/zhukovaskychina/xmysql-tabledef/server/innodb/metadata"
)

// NoKey marks the absence of a key or field reference.
const NoKey = -1

// NotFixedDec is the decimals value of FLOAT/DOUBLE columns without a scale.
const NotFixedDec = 31

// NodegroupUndefined is the nodegroup of partitions that did not set one.
const NodegroupUndefined = 65535

// CreateOption is the bit set of table creation options.
type CreateOption uint32

const (
	OptionPackRecord CreateOption = 1 << iota
	OptionPackKeys
	OptionNoPackKeys
	OptionChecksum
	OptionDelayKeyWrite
	OptionStatsPersistent
	OptionNoStatsPersistent
)

// RowType is a row format.
type RowType string

const (
	RowTypeDefault    RowType = "DEFAULT"
	RowTypeFixed      RowType = "FIXED"
	RowTypeDynamic    RowType = "DYNAMIC"
	RowTypeCompressed RowType = "COMPRESSED"
	RowTypeRedundant  RowType = "REDUNDANT"
	RowTypeCompact    RowType = "COMPACT"
	RowTypePaged      RowType = "PAGED"
)

// StatsAutoRecalc controls automatic statistics recalculation.
type StatsAutoRecalc string

const (
	StatsAutoRecalcDefault StatsAutoRecalc = "DEFAULT"
	StatsAutoRecalcOn      StatsAutoRecalc = "ON"
	StatsAutoRecalcOff     StatsAutoRecalc = "OFF"
)

// StorageMedia is the declared storage of a table or column.
type StorageMedia string

const (
	StorageDefault StorageMedia = "DEFAULT"
	StorageDisk    StorageMedia = "DISK"
	StorageMemory  StorageMedia = "MEMORY"
)

// TableOptions are the resolved table-level settings.
type TableOptions struct {
	Engine           string          `json:"engine"`
	CollationID      uint32          `json:"collation_id"`
	Collation        string          `json:"collation"`
	Charset          string          `json:"charset"`
	Comment          string          `json:"comment,omitempty"`
	MySQLVersion     uint32          `json:"mysql_version"`
	MaxRows          uint64          `json:"max_rows"`
	MinRows          uint64          `json:"min_rows"`
	AvgRowLength     uint64          `json:"avg_row_length"`
	CreateOptions    CreateOption    `json:"create_options"`
	RowType          RowType         `json:"row_type"`
	RealRowType      RowType         `json:"real_row_type"`
	StatsSamplePages uint32          `json:"stats_sample_pages"`
	StatsAutoRecalc  StatsAutoRecalc `json:"stats_auto_recalc"`
	KeyBlockSize     uint32          `json:"key_block_size"`
	StorageMedia     StorageMedia    `json:"storage_media"`
	Tablespace       string          `json:"tablespace,omitempty"`
	ConnectString    string          `json:"connect_string,omitempty"`
	Compress         string          `json:"compress,omitempty"`
	EncryptType      string          `json:"encrypt_type,omitempty"`
}

// Has reports whether all bits of opt are set.
func (o CreateOption) Has(opt CreateOption) bool {
	return o&opt == opt
}

// GenerationKind says how a column gets its value.
type GenerationKind string

const (
	GenerationNone    GenerationKind = "none"
	GenerationVirtual GenerationKind = "virtual"
	GenerationStored  GenerationKind = "stored"
)

// AutoFlag marks columns filled by the server.
type AutoFlag uint8

const (
	AutoNone        AutoFlag = 0
	AutoDefaultNow  AutoFlag = 1 << 0
	AutoOnUpdateNow AutoFlag = 1 << 1
	AutoNextNumber  AutoFlag = 1 << 2
)

// ColumnDescriptor is a compiled column. Offset is relative to the start of
// the row image, which begins with the null bitmap.
// 编译后的列描述
type ColumnDescriptor struct {
	Name            string              `json:"name"`
	FieldIndex      int                 `json:"field_index"`
	OrdinalPosition uint32              `json:"ordinal_position"`
	ColumnType      metadata.ColumnType `json:"column_type"`
	Type            byte                `json:"type"`
	Nullable        bool                `json:"nullable"`
	CharLength      uint32              `json:"char_length"`
	CollationID     uint32              `json:"collation_id"`
	Decimals        uint32              `json:"decimals"`
	Flags           uint                `json:"flags"`
	AutoFlags       AutoFlag            `json:"auto_flags"`

	PackLength uint32 `json:"pack_length"`
	// RecLength is the part of PackLength stored in the record body.
	RecLength uint32 `json:"rec_length"`
	KeyLength uint32 `json:"key_length"`
	Offset    uint32 `json:"offset"`

	// NullByte is the byte of the null flag, NoKey when not nullable.
	NullByte int    `json:"null_byte"`
	NullBit  uint8  `json:"null_bit"`
	BitByte  int    `json:"bit_byte"`
	BitOfs   uint8  `json:"bit_ofs"`
	BitLen   uint8  `json:"bit_len"`
	Preamble uint32 `json:"preamble_bits"`

	Generation     GenerationKind `json:"generation"`
	Expression     string         `json:"expression,omitempty"`
	DefaultNull    bool           `json:"default_null"`
	Elements       []string       `json:"elements,omitempty"`
	TreatBitAsChar bool           `json:"treat_bit_as_char,omitempty"`
	GeomType       uint32         `json:"geom_type,omitempty"`
	Storage        StorageMedia   `json:"storage"`
	ColumnFormat   string         `json:"column_format,omitempty"`
	Comment        string         `json:"comment,omitempty"`

	PartOfKey     *bitset.BitSet `json:"part_of_key"`
	PartOfSortKey *bitset.BitSet `json:"part_of_sortkey"`
}

// IsVirtual reports a virtual generated column.
func (c *ColumnDescriptor) IsVirtual() bool {
	return c.Generation == GenerationVirtual
}

// IsBlob reports columns stored behind a length and a pointer.
func (c *ColumnDescriptor) IsBlob() bool {
	return c.Flags&blobFlag != 0
}

// KeyKind is the declared kind of a key.
type KeyKind string

const (
	KeyPrimary  KeyKind = "primary"
	KeyUnique   KeyKind = "unique"
	KeyMultiple KeyKind = "multiple"
	KeyFulltext KeyKind = "fulltext"
	KeySpatial  KeyKind = "spatial"
)

// KeyAlgorithm is the access method of a key.
type KeyAlgorithm string

const (
	AlgorithmSESpecific KeyAlgorithm = "SE_SPECIFIC"
	AlgorithmBtree      KeyAlgorithm = "BTREE"
	AlgorithmRtree      KeyAlgorithm = "RTREE"
	AlgorithmHash       KeyAlgorithm = "HASH"
	AlgorithmFulltext   KeyAlgorithm = "FULLTEXT"
)

// KeyFlag is the bit set of key properties.
type KeyFlag uint32

const (
	KeyNoSame KeyFlag = 1 << iota
	KeyPackKey
	KeyFulltextFlag
	KeySpatialFlag
	KeyVarLengthPart
	KeyNullPartKey
	KeyBlobPart
	KeyBinaryPackKey
	KeyGenerated
	KeyUsesComment
	KeyUsesParser
	KeyUsesBlockSize
	KeyVirtualGenerated
)

// persistedKeyFlags are the only bits a catalog may store in the "flags"
// index option.
const persistedKeyFlags = KeyPackKey | KeyBinaryPackKey

// Has reports whether all bits of f are set.
func (k KeyFlag) Has(f KeyFlag) bool {
	return k&f == f
}

// KeyPartFlag is the bit set of key part properties.
type KeyPartFlag uint16

const (
	PartReverseSort KeyPartFlag = 1 << iota
	PartKeySegment
	PartNullable
	PartBlob
	PartVarLength
	PartExtended
)

// Has reports whether all bits of f are set.
func (k KeyPartFlag) Has(f KeyPartFlag) bool {
	return k&f == f
}

// KeyPartDescriptor is one compiled key part. FieldIndex indexes the
// descriptor's Fields.
type KeyPartDescriptor struct {
	FieldIndex  int         `json:"field_index"`
	FieldNr     uint32      `json:"fieldnr"`
	Type        byte        `json:"type"`
	Offset      uint32      `json:"offset"`
	Length      uint32      `json:"length"`
	StoreLength uint32      `json:"store_length"`
	NullByte    int         `json:"null_byte"`
	NullBit     uint8       `json:"null_bit"`
	Flags       KeyPartFlag `json:"flags"`
	BinCmp      bool        `json:"bin_cmp"`
}

// KeyDescriptor is a compiled key. Parts holds the user-defined parts
// followed by engine-appended primary key parts.
// 编译后的索引描述
type KeyDescriptor struct {
	Name              string       `json:"name"`
	Kind              KeyKind      `json:"kind"`
	Primary           bool         `json:"primary"`
	Algorithm         KeyAlgorithm `json:"algorithm"`
	AlgorithmExplicit bool         `json:"algorithm_explicit"`
	Visible           bool         `json:"visible"`
	Generated         bool         `json:"generated"`
	Flags             KeyFlag      `json:"flags"`
	ActualFlags       KeyFlag      `json:"actual_flags"`

	UserDefinedKeyParts int `json:"user_defined_key_parts"`
	ActualKeyParts      int `json:"actual_key_parts"`
	UsableKeyParts      int `json:"usable_key_parts"`

	Parts     []KeyPartDescriptor `json:"parts"`
	RecPerKey []float32           `json:"rec_per_key"`
	KeyLength uint32              `json:"key_length"`
	BlockSize uint32              `json:"block_size"`
	Parser    string              `json:"parser,omitempty"`
	Comment   string              `json:"comment,omitempty"`
}

// UserParts returns the declared parts only.
func (k *KeyDescriptor) UserParts() []KeyPartDescriptor {
	return k.Parts[:k.UserDefinedKeyParts]
}

// RecordLayout is the physical row geometry. Lengths measure the record
// body, which starts right after the NullBytes of the null bitmap.
// 物理行布局
type RecordLayout struct {
	RecordLength       uint32            `json:"record_length"`
	StoredRecordLength uint32            `json:"stored_record_length"`
	NullBytes          uint32            `json:"null_bytes"`
	NullFields         uint32            `json:"null_fields"`
	LastNullBitPos     uint8             `json:"last_null_bit_pos"`
	DefaultRow         metadata.HexBytes `json:"default_row"`
	BlobOffsets        []uint32          `json:"blob_offsets"`
}

// RowLength is the full row image size.
func (r *RecordLayout) RowLength() uint32 {
	return r.NullBytes + r.RecordLength
}

// PartitionMethod is the top level partitioning method.
type PartitionMethod string

const (
	MethodNone  PartitionMethod = ""
	MethodRange PartitionMethod = "RANGE"
	MethodList  PartitionMethod = "LIST"
	MethodHash  PartitionMethod = "HASH"
)

// KeyAlgorithmVersion is the hashing variant of KEY partitioning.
type KeyAlgorithmVersion uint8

const (
	KeyAlgorithmNone KeyAlgorithmVersion = 0
	KeyAlgorithm51   KeyAlgorithmVersion = 1
	KeyAlgorithm55   KeyAlgorithmVersion = 2
)

// PartitionValue is one boundary cell.
type PartitionValue struct {
	ListIndex   uint32 `json:"list_index"`
	ColumnIndex uint32 `json:"column_index"`
	Null        bool   `json:"null,omitempty"`
	MaxValue    bool   `json:"max_value,omitempty"`
	Literal     string `json:"literal,omitempty"`
}

// IntValue is a parsed integer boundary; Unsigned values keep their bits
// in Value.
type IntValue struct {
	Value    int64 `json:"value"`
	Unsigned bool  `json:"unsigned"`
}

// PartitionDescriptor is a partition or subpartition.
type PartitionDescriptor struct {
	Name          string `json:"name"`
	Level         uint32 `json:"level"`
	Number        uint32 `json:"number"`
	Engine        string `json:"engine"`
	Tablespace    string `json:"tablespace,omitempty"`
	Comment       string `json:"comment,omitempty"`
	MaxRows       uint64 `json:"max_rows"`
	MinRows       uint64 `json:"min_rows"`
	DataFileName  string `json:"data_file_name,omitempty"`
	IndexFileName string `json:"index_file_name,omitempty"`
	NodegroupID   uint32 `json:"nodegroup_id"`

	// Values keeps every boundary cell ordered by list, then column.
	Values []PartitionValue `json:"values,omitempty"`
	// RangeValue is the bound of a non-column RANGE partition.
	RangeValue   *IntValue  `json:"range_value,omitempty"`
	MaxValue     bool       `json:"max_value,omitempty"`
	ListValues   []IntValue `json:"list_values,omitempty"`
	HasNullValue bool       `json:"has_null_value,omitempty"`

	Subpartitions []*PartitionDescriptor `json:"subpartitions,omitempty"`
}

// PartitionInfo is the two level partition tree plus its canonical text.
// 分区信息
type PartitionInfo struct {
	Method             PartitionMethod     `json:"method"`
	ColumnList         bool                `json:"column_list"`
	Linear             bool                `json:"linear"`
	KeyAlgorithm       KeyAlgorithmVersion `json:"key_algorithm"`
	ListOfPartFields   bool                `json:"list_of_part_fields"`
	PartFieldList      []string            `json:"part_field_list,omitempty"`
	PartExpression     string              `json:"part_expression,omitempty"`
	IsAuto             bool                `json:"is_auto"`
	UseDefaultParts    bool                `json:"use_default_partitions"`
	UseDefaultNumParts bool                `json:"use_default_num_partitions"`

	SubMethod             PartitionMethod     `json:"sub_method"`
	LinearSub             bool                `json:"linear_sub"`
	SubKeyAlgorithm       KeyAlgorithmVersion `json:"sub_key_algorithm"`
	ListOfSubpartFields   bool                `json:"list_of_subpart_fields"`
	SubpartFieldList      []string            `json:"subpart_field_list,omitempty"`
	SubpartExpression     string              `json:"subpart_expression,omitempty"`
	UseDefaultSubparts    bool                `json:"use_default_subpartitions"`
	UseDefaultNumSubparts bool                `json:"use_default_num_subpartitions"`

	NumParts    int `json:"num_parts"`
	NumSubparts int `json:"num_subparts"`
	NumColumns  int `json:"num_columns"`

	Partitions []*PartitionDescriptor `json:"partitions"`
	Text       string                 `json:"text"`
}

// IsSubpartitioned reports a two level tree.
func (p *PartitionInfo) IsSubpartitioned() bool {
	return p.SubMethod != MethodNone
}

// TableDescriptor is the compiled, immutable runtime description of a table.
// 表的运行时描述（TABLE_SHARE）
type TableDescriptor struct {
	Schema  string       `json:"schema"`
	Name    string       `json:"name"`
	Options TableOptions `json:"options"`

	Fields    []*ColumnDescriptor `json:"fields"`
	Keys      []*KeyDescriptor    `json:"keys"`
	KeyParts  int                 `json:"key_parts"`
	Record    RecordLayout        `json:"record"`
	Partition *PartitionInfo      `json:"partition,omitempty"`

	PrimaryKey      int    `json:"primary_key"`
	RowIDField      int    `json:"rowid_field"`
	NextNumberField int    `json:"next_number_field"`
	NextNumberIndex int    `json:"next_number_index"`
	NextNumberPart  int    `json:"next_number_keypart"`
	NextNumberKeyOf uint32 `json:"next_number_key_offset"`
	MaxKeyLength    uint32 `json:"max_key_length"`
	TotalKeyLength  uint32 `json:"total_key_length"`
	MaxUniqueLength uint32 `json:"max_unique_length"`

	KeysInUse      *bitset.BitSet `json:"keys_in_use"`
	VisibleIndexes *bitset.BitSet `json:"visible_indexes"`
	KeysForKeyread *bitset.BitSet `json:"keys_for_keyread"`
	AllSet         *bitset.BitSet `json:"all_set"`
	BlobFields     []int          `json:"blob_fields"`
	VirtualFields  int            `json:"virtual_fields"`

	System   bool   `json:"system"`
	Crashed  bool   `json:"crashed"`
	Checksum uint64 `json:"checksum"`

	fieldsByName map[string]int
}

// HasPrimaryKey reports whether a primary key was declared or promoted.
func (t *TableDescriptor) HasPrimaryKey() bool {
	return t.PrimaryKey != NoKey
}

// PrimaryKeyDescriptor returns the primary key or nil.
func (t *TableDescriptor) PrimaryKeyDescriptor() *KeyDescriptor {
	if t.PrimaryKey == NoKey {
		return nil
	}
	return t.Keys[t.PrimaryKey]
}

// Field returns the field at index i with bounds checking.
func (t *TableDescriptor) Field(i int) (*ColumnDescriptor, bool) {
	if i < 0 || i >= len(t.Fields) {
		return nil, false
	}
	return t.Fields[i], true
}

// FieldByName looks a field up by name.
func (t *TableDescriptor) FieldByName(name string) (*ColumnDescriptor, bool) {
	if t.fieldsByName == nil {
		for _, f := range t.Fields {
			if f.Name == name {
				return f, true
			}
		}
		return nil, false
	}
	i, ok := t.fieldsByName[name]
	if !ok {
		return nil, false
	}
	return t.Fields[i], true
}

// KeyByName looks a key up by name.
func (t *TableDescriptor) KeyByName(name string) (*KeyDescriptor, int) {
	for i, k := range t.Keys {
		if k.Name == name {
			return k, i
		}
	}
	return nil, NoKey
}
