package tableshare

import (
	"strconv"
	"strings"

	jerrors "github.com/juju/errors"

	"github.com/zhukovaskychina/xmysql-tabledef/server/innodb/metadata"
)

// FieldListSeparator separates column names in a column-based partition
// expression. A backslash escapes the next character.
const FieldListSeparator = ';'

type schemeInfo struct {
	method     PartitionMethod
	columnList bool
	linear     bool
	keyAlg     KeyAlgorithmVersion
	fieldList  bool
	auto       bool
}

var partitionSchemes = map[metadata.PartitionType]schemeInfo{
	metadata.PartitionTypeRange:        {method: MethodRange},
	metadata.PartitionTypeRangeColumns: {method: MethodRange, columnList: true, fieldList: true},
	metadata.PartitionTypeList:         {method: MethodList},
	metadata.PartitionTypeListColumns:  {method: MethodList, columnList: true, fieldList: true},
	metadata.PartitionTypeHash:         {method: MethodHash},
	metadata.PartitionTypeLinearHash:   {method: MethodHash, linear: true},
	metadata.PartitionTypeKey51:        {method: MethodHash, keyAlg: KeyAlgorithm51, fieldList: true},
	metadata.PartitionTypeKey55:        {method: MethodHash, keyAlg: KeyAlgorithm55, fieldList: true},
	metadata.PartitionTypeLinearKey51:  {method: MethodHash, linear: true, keyAlg: KeyAlgorithm51, fieldList: true},
	metadata.PartitionTypeLinearKey55:  {method: MethodHash, linear: true, keyAlg: KeyAlgorithm55, fieldList: true},
	metadata.PartitionTypeAuto:         {method: MethodHash, keyAlg: KeyAlgorithm55, fieldList: true, auto: true},
	metadata.PartitionTypeAutoLinear:   {method: MethodHash, linear: true, keyAlg: KeyAlgorithm55, fieldList: true, auto: true},
}

var subpartitionSchemes = map[metadata.SubpartitionType]schemeInfo{
	metadata.SubpartitionTypeHash:        {method: MethodHash},
	metadata.SubpartitionTypeLinearHash:  {method: MethodHash, linear: true},
	metadata.SubpartitionTypeKey51:       {method: MethodHash, keyAlg: KeyAlgorithm51, fieldList: true},
	metadata.SubpartitionTypeKey55:       {method: MethodHash, keyAlg: KeyAlgorithm55, fieldList: true},
	metadata.SubpartitionTypeLinearKey51: {method: MethodHash, linear: true, keyAlg: KeyAlgorithm51, fieldList: true},
	metadata.SubpartitionTypeLinearKey55: {method: MethodHash, linear: true, keyAlg: KeyAlgorithm55, fieldList: true},
}

// SplitFieldList splits a column-based partition expression into names.
func SplitFieldList(expr string) []string {
	if expr == "" {
		return nil
	}
	var (
		out     []string
		cur     strings.Builder
		escaped bool
	)
	for _, r := range expr {
		switch {
		case escaped:
			cur.WriteRune(r)
			escaped = false
		case r == '\\':
			escaped = true
		case r == FieldListSeparator:
			out = append(out, cur.String())
			cur.Reset()
		default:
			cur.WriteRune(r)
		}
	}
	return append(out, cur.String())
}

// JoinFieldList is the inverse of SplitFieldList.
func JoinFieldList(fields []string) string {
	escaped := make([]string, len(fields))
	for i, f := range fields {
		f = strings.ReplaceAll(f, `\`, `\\`)
		escaped[i] = strings.ReplaceAll(f, string(FieldListSeparator), `\`+string(FieldListSeparator))
	}
	return strings.Join(escaped, string(FieldListSeparator))
}

func defaultPartitioningFlags(dp metadata.DefaultPartitioning) (useDefault, useDefaultNum bool) {
	switch dp {
	case metadata.DefaultPartitioningYes:
		return true, true
	case metadata.DefaultPartitioningNumber:
		return true, false
	}
	return false, false
}

func (cp *compilation) compilePartitionStage() error {
	info, err := cp.compilePartitions()
	if err != nil {
		return err
	}
	cp.desc.Partition = info
	return nil
}

// compilePartitions rebuilds the partition tree from the flat records,
// then renders its canonical text. Non-partitioned tables yield nil.
func (cp *compilation) compilePartitions() (*PartitionInfo, error) {
	tab := cp.tab
	if !tab.IsPartitioned() {
		return nil, nil
	}
	if !cp.engine.Supports(CapPartitioning) {
		return nil, newError(KindInvalidMetadata, cp.tableName(), "", "storage engine %s does not support partitioning", cp.engine.Name())
	}
	scheme, ok := partitionSchemes[tab.PartitionType]
	if !ok {
		return nil, newError(KindInvalidMetadata, cp.tableName(), "", "unknown partition type %q", tab.PartitionType)
	}

	info := &PartitionInfo{
		Method:           scheme.method,
		ColumnList:       scheme.columnList,
		Linear:           scheme.linear,
		KeyAlgorithm:     scheme.keyAlg,
		ListOfPartFields: scheme.fieldList,
		IsAuto:           scheme.auto,
	}
	if scheme.fieldList {
		info.PartFieldList = SplitFieldList(tab.PartitionExpression)
	} else {
		info.PartExpression = tab.PartitionExpression
	}
	info.UseDefaultParts, info.UseDefaultNumParts = defaultPartitioningFlags(tab.DefaultPartitioning)

	if tab.SubpartitionType != metadata.SubpartitionTypeNone {
		sub, ok := subpartitionSchemes[tab.SubpartitionType]
		if !ok {
			return nil, newError(KindInvalidMetadata, cp.tableName(), "", "unknown subpartition type %q", tab.SubpartitionType)
		}
		info.SubMethod = sub.method
		info.LinearSub = sub.linear
		info.SubKeyAlgorithm = sub.keyAlg
		info.ListOfSubpartFields = sub.fieldList
		if sub.fieldList {
			info.SubpartFieldList = SplitFieldList(tab.SubpartitionExpression)
		} else {
			info.SubpartExpression = tab.SubpartitionExpression
		}
		info.UseDefaultSubparts, info.UseDefaultNumSubparts = defaultPartitioningFlags(tab.DefaultSubpartitioning)
	}

	// Sizing pass: validate order and count both levels.
	numParts, numSubRecords := 0, 0
	var prevLevel, prevNumber uint32
	for i, rec := range tab.Partitions {
		if rec.Level > 1 {
			return nil, newError(KindInvalidMetadata, cp.tableName(), "partition "+rec.Name, "unexpected partition level %d", rec.Level)
		}
		if i > 0 && (rec.Level < prevLevel || (rec.Level == prevLevel && rec.Number <= prevNumber)) {
			return nil, newError(KindInvalidMetadata, cp.tableName(), "partition "+rec.Name, "partition records are not sorted by level and number")
		}
		prevLevel, prevNumber = rec.Level, rec.Number
		if rec.Level == 0 {
			numParts++
		} else {
			numSubRecords++
		}
	}
	if numParts == 0 {
		return nil, newError(KindInvalidMetadata, cp.tableName(), "", "partitioned table has no partitions")
	}
	if numSubRecords > 0 && !info.IsSubpartitioned() {
		return nil, newError(KindInvalidMetadata, cp.tableName(), "", "subpartition records on a table without subpartitioning")
	}
	if info.IsSubpartitioned() {
		if numSubRecords == 0 || numSubRecords%numParts != 0 {
			return nil, newError(KindInvalidMetadata, cp.tableName(), "",
				"%d subpartitions cannot be spread uniformly over %d partitions", numSubRecords, numParts)
		}
		info.NumSubparts = numSubRecords / numParts
	}
	info.NumParts = numParts

	if err := cp.mem.charge(int64(numParts+numSubRecords)*sizeofPartition, "partitions"); err != nil {
		return nil, err
	}
	nodes := make([]PartitionDescriptor, numParts+numSubRecords)
	info.Partitions = make([]*PartitionDescriptor, numParts)

	// Fill pass.
	sub := 0
	for i, rec := range tab.Partitions {
		node := &nodes[i]
		if err := cp.fillPartition(node, rec); err != nil {
			return nil, err
		}
		if rec.Level == 0 {
			if int(rec.Number) != i {
				return nil, newError(KindInvalidMetadata, cp.tableName(), "partition "+rec.Name, "partition number %d at position %d", rec.Number, i)
			}
			if err := cp.fillPartitionValues(info, node, rec); err != nil {
				return nil, err
			}
			if info.IsSubpartitioned() {
				node.Subpartitions = make([]*PartitionDescriptor, 0, info.NumSubparts)
			}
			info.Partitions[i] = node
			continue
		}
		if int(rec.Number) != sub {
			return nil, newError(KindInvalidMetadata, cp.tableName(), "subpartition "+rec.Name, "subpartition number %d at position %d", rec.Number, sub)
		}
		if len(rec.Values) > 0 {
			return nil, newError(KindInvalidMetadata, cp.tableName(), "subpartition "+rec.Name, "subpartitions carry no values")
		}
		parent := info.Partitions[sub/info.NumSubparts]
		parent.Subpartitions = append(parent.Subpartitions, node)
		sub++
	}

	if cp.c.syntax != nil {
		text, err := cp.c.syntax.GeneratePartitionSyntax(info)
		if err != nil {
			return nil, jerrors.Annotate(err, "generate partition syntax")
		}
		info.Text = text
	}
	cp.log.Debugf("partitions: %s, %d parts, %d subparts each", info.Method, info.NumParts, info.NumSubparts)
	return info, nil
}

func (cp *compilation) fillPartition(node *PartitionDescriptor, rec *metadata.PartitionMetadata) error {
	object := "partition " + rec.Name
	if rec.Name == "" {
		return newError(KindInvalidMetadata, cp.tableName(), "", "partition %d at level %d has no name", rec.Number, rec.Level)
	}
	node.Name = rec.Name
	node.Level = rec.Level
	node.Number = rec.Number
	node.Engine = cp.engine.Name()
	node.Tablespace = rec.Tablespace
	node.Comment = rec.Comment
	node.NodegroupID = NodegroupUndefined

	var err error
	o := rec.Options
	if node.MaxRows, _, err = o.GetUint64(metadata.PartitionOptionMaxRows); err != nil {
		return newError(KindInvalidMetadata, cp.tableName(), object, "%v", err)
	}
	if node.MinRows, _, err = o.GetUint64(metadata.PartitionOptionMinRows); err != nil {
		return newError(KindInvalidMetadata, cp.tableName(), object, "%v", err)
	}
	node.DataFileName, _ = o.Get(metadata.PartitionOptionDataFileName)
	node.IndexFileName, _ = o.Get(metadata.PartitionOptionIndexFileName)
	nodegroup, ok, err := o.GetUint32(metadata.PartitionOptionNodegroupID)
	if err != nil {
		return newError(KindInvalidMetadata, cp.tableName(), object, "%v", err)
	}
	if ok {
		node.NodegroupID = nodegroup
	}
	return nil
}

// parseIntValue reads an integer boundary; the sign comes from a leading '-'.
func parseIntValue(text string) (IntValue, error) {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "-") {
		v, err := strconv.ParseInt(text, 10, 64)
		return IntValue{Value: v}, err
	}
	v, err := strconv.ParseUint(text, 10, 64)
	return IntValue{Value: int64(v), Unsigned: true}, err
}

// fillPartitionValues validates and stores the boundary values of a level
// 0 partition.
func (cp *compilation) fillPartitionValues(info *PartitionInfo, node *PartitionDescriptor, rec *metadata.PartitionMetadata) error {
	object := "partition " + rec.Name
	invalid := func(format string, args ...interface{}) error {
		return newError(KindInvalidMetadata, cp.tableName(), object, format, args...)
	}

	if info.Method == MethodHash {
		if len(rec.Values) > 0 {
			return invalid("hash partitions carry no values")
		}
		return nil
	}
	if len(rec.Values) == 0 {
		return invalid("partition has no values")
	}

	var maxCol, maxList uint32
	for _, v := range rec.Values {
		if v.ColumnNum > maxCol {
			maxCol = v.ColumnNum
		}
		if v.ListNum > maxList {
			maxList = v.ListNum
		}
	}
	cells := int(maxCol+1) * int(maxList+1)
	if len(rec.Values) != cells {
		return invalid("%d values for a %dx%d value matrix", len(rec.Values), maxList+1, maxCol+1)
	}
	if !info.ColumnList && maxCol != 0 {
		return invalid("column index %d on a single expression partition", maxCol)
	}
	if info.Method == MethodRange && maxList != 0 {
		return invalid("range partition with %d value lists", maxList+1)
	}
	if info.ColumnList {
		if n := len(info.PartFieldList); n > 0 && int(maxCol+1) != n {
			return invalid("%d value columns for %d partitioning columns", maxCol+1, n)
		}
		info.NumColumns = int(maxCol + 1)
	}

	if err := cp.mem.charge(int64(cells)*sizeofPartValue, object); err != nil {
		return err
	}
	node.Values = make([]PartitionValue, cells)
	seen := make([]bool, cells)
	for _, v := range rec.Values {
		at := int(v.ListNum)*int(maxCol+1) + int(v.ColumnNum)
		if seen[at] {
			return invalid("duplicate value at list %d column %d", v.ListNum, v.ColumnNum)
		}
		seen[at] = true
		if v.IsNull && v.MaxValue {
			return invalid("value at list %d column %d is both NULL and MAXVALUE", v.ListNum, v.ColumnNum)
		}
		node.Values[at] = PartitionValue{
			ListIndex:   v.ListNum,
			ColumnIndex: v.ColumnNum,
			Null:        v.IsNull,
			MaxValue:    v.MaxValue,
			Literal:     v.Value,
		}
	}
	if info.ColumnList {
		return nil
	}

	if info.Method == MethodRange {
		v := node.Values[0]
		switch {
		case v.MaxValue:
			node.MaxValue = true
		case v.Null:
			return invalid("range partition bound is NULL")
		default:
			iv, err := parseIntValue(v.Literal)
			if err != nil {
				return invalid("range bound %q is not an integer", v.Literal)
			}
			node.RangeValue = &iv
		}
		return nil
	}

	// Non-column LIST: an empty literal is NULL.
	node.ListValues = make([]IntValue, 0, cells)
	for i := range node.Values {
		v := &node.Values[i]
		if v.MaxValue {
			return invalid("MAXVALUE in a list partition")
		}
		if v.Null || v.Literal == "" {
			if node.HasNullValue {
				return invalid("more than one NULL value")
			}
			v.Null = true
			node.HasNullValue = true
			continue
		}
		iv, err := parseIntValue(v.Literal)
		if err != nil {
			return invalid("list value %q is not an integer", v.Literal)
		}
		node.ListValues = append(node.ListValues, iv)
	}
	return nil
}
