package metadata

import "strings"

// IndexType is the declared kind of an index.
type IndexType string

const (
	IndexTypePrimary  IndexType = "PRIMARY"
	IndexTypeUnique   IndexType = "UNIQUE"
	IndexTypeMultiple IndexType = "MULTIPLE"
	IndexTypeFulltext IndexType = "FULLTEXT"
	IndexTypeSpatial  IndexType = "SPATIAL"
)

// IndexAlgorithm is the access method of an index.
type IndexAlgorithm string

const (
	IndexAlgorithmSESpecific IndexAlgorithm = "SE_SPECIFIC"
	IndexAlgorithmBtree      IndexAlgorithm = "BTREE"
	IndexAlgorithmRtree      IndexAlgorithm = "RTREE"
	IndexAlgorithmHash       IndexAlgorithm = "HASH"
	IndexAlgorithmFulltext   IndexAlgorithm = "FULLTEXT"
)

// ElementOrder is the declared sort order of an index element.
type ElementOrder string

const (
	OrderUndefined ElementOrder = ""
	OrderAsc       ElementOrder = "ASC"
	OrderDesc      ElementOrder = "DESC"
)

// Index option keys understood by the compiler.
const (
	IndexOptionFlags      = "flags"
	IndexOptionBlockSize  = "block_size"
	IndexOptionParserName = "parser_name"
)

// IndexElementMetadata references one column of an index.
type IndexElementMetadata struct {
	// ColumnOrdinal is the ordinal position of the referenced column.
	ColumnOrdinal uint32 `yaml:"column" json:"column"`
	// ColumnName may stand in for ColumnOrdinal in hand written catalog
	// files; Normalize resolves it.
	ColumnName string `yaml:"column_name,omitempty" json:"column_name,omitempty"`
	// Length is the indexed byte length; 0 selects the column's full key length.
	Length uint32       `yaml:"length,omitempty" json:"length,omitempty"`
	Order  ElementOrder `yaml:"order,omitempty" json:"order,omitempty"`
	Hidden bool         `yaml:"hidden,omitempty" json:"hidden,omitempty"`
}

// IndexMetadata is the catalog record of one index.
// 数据字典中的索引记录
type IndexMetadata struct {
	Name              string                  `yaml:"name" json:"name"`
	Type              IndexType               `yaml:"type" json:"type"`
	Algorithm         IndexAlgorithm          `yaml:"algorithm,omitempty" json:"algorithm,omitempty"`
	AlgorithmExplicit bool                    `yaml:"algorithm_explicit,omitempty" json:"algorithm_explicit,omitempty"`
	Visible           bool                    `yaml:"visible" json:"visible"`
	Generated         bool                    `yaml:"generated,omitempty" json:"generated,omitempty"`
	Hidden            bool                    `yaml:"hidden,omitempty" json:"hidden,omitempty"`
	OrdinalPosition   uint32                  `yaml:"ordinal_position" json:"ordinal_position"`
	Elements          []*IndexElementMetadata `yaml:"elements" json:"elements"`
	Options           Properties              `yaml:"options,omitempty" json:"options,omitempty"`
	Comment           string                  `yaml:"comment,omitempty" json:"comment,omitempty"`
}

// Normalize upper-cases the index type tag.
func (t IndexType) Normalize() IndexType {
	return IndexType(strings.ToUpper(strings.TrimSpace(string(t))))
}

// Normalize upper-cases the algorithm tag.
func (a IndexAlgorithm) Normalize() IndexAlgorithm {
	return IndexAlgorithm(strings.ToUpper(strings.TrimSpace(string(a))))
}
