package partition

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/zhukovaskychina/xmysql-tabledef/server/innodb/tableshare"
)

// Generator renders a partition tree as its canonical definition text.
// The text always spells out the partition list, so Parse can rebuild the
// flat records from it.
// 生成分区定义语句
type Generator struct{}

// NewGenerator creates a Generator.
func NewGenerator() *Generator {
	return &Generator{}
}

// GeneratePartitionSyntax implements tableshare.SyntaxGenerator.
func (g *Generator) GeneratePartitionSyntax(info *tableshare.PartitionInfo) (string, error) {
	if info == nil {
		return "", errors.New("no partition info")
	}
	var sb strings.Builder
	sb.WriteString("PARTITION BY ")
	scheme, err := schemeClause(info.Method, info.Linear, info.ColumnList, info.KeyAlgorithm,
		info.ListOfPartFields, info.IsAuto, info.PartFieldList, info.PartExpression)
	if err != nil {
		return "", err
	}
	sb.WriteString(scheme)

	if info.IsSubpartitioned() {
		sub, err := schemeClause(info.SubMethod, info.LinearSub, false, info.SubKeyAlgorithm,
			info.ListOfSubpartFields, false, info.SubpartFieldList, info.SubpartExpression)
		if err != nil {
			return "", errors.Wrap(err, "subpartition scheme")
		}
		sb.WriteString("\nSUBPARTITION BY ")
		sb.WriteString(sub)
	}

	sb.WriteString("\n(")
	for i, p := range info.Partitions {
		if i > 0 {
			sb.WriteString(",\n ")
		}
		if err := writePartition(&sb, info, p); err != nil {
			return "", errors.Wrapf(err, "partition %s", p.Name)
		}
	}
	sb.WriteString(")")
	return sb.String(), nil
}

func schemeClause(method tableshare.PartitionMethod, linear, columnList bool, alg tableshare.KeyAlgorithmVersion,
	fieldList, auto bool, fields []string, expr string) (string, error) {
	var sb strings.Builder
	if linear {
		sb.WriteString("LINEAR ")
	}
	switch method {
	case tableshare.MethodRange, tableshare.MethodList:
		sb.WriteString(string(method))
		if columnList {
			sb.WriteString(" COLUMNS(")
			sb.WriteString(quoteFields(fields))
			sb.WriteString(")")
			return sb.String(), nil
		}
		sb.WriteString(" (")
		sb.WriteString(expr)
		sb.WriteString(")")
	case tableshare.MethodHash:
		switch {
		case auto:
			sb.WriteString("AUTO")
			if len(fields) > 0 {
				sb.WriteString(" (")
				sb.WriteString(quoteFields(fields))
				sb.WriteString(")")
			}
		case fieldList:
			sb.WriteString("KEY ")
			if alg == tableshare.KeyAlgorithm51 {
				sb.WriteString("ALGORITHM = 1 ")
			}
			sb.WriteString("(")
			sb.WriteString(quoteFields(fields))
			sb.WriteString(")")
		default:
			sb.WriteString("HASH (")
			sb.WriteString(expr)
			sb.WriteString(")")
		}
	default:
		return "", errors.Errorf("unknown partition method %q", method)
	}
	return sb.String(), nil
}

func writePartition(sb *strings.Builder, info *tableshare.PartitionInfo, p *tableshare.PartitionDescriptor) error {
	sb.WriteString("PARTITION ")
	sb.WriteString(QuoteIdentifier(p.Name))
	switch info.Method {
	case tableshare.MethodRange:
		if len(p.Values) == 0 {
			return errors.New("range partition without a bound")
		}
		sb.WriteString(" VALUES LESS THAN ")
		if !info.ColumnList && p.MaxValue {
			sb.WriteString("MAXVALUE")
		} else {
			writeValueList(sb, p.Values)
		}
	case tableshare.MethodList:
		if len(p.Values) == 0 {
			return errors.New("list partition without values")
		}
		sb.WriteString(" VALUES IN ")
		if info.ColumnList && info.NumColumns > 1 {
			sb.WriteString("(")
			for start := 0; start < len(p.Values); start += info.NumColumns {
				if start > 0 {
					sb.WriteString(",")
				}
				writeValueList(sb, p.Values[start:start+info.NumColumns])
			}
			sb.WriteString(")")
		} else {
			writeValueList(sb, p.Values)
		}
	}

	writeOptions(sb, p, len(p.Subpartitions) == 0)
	if len(p.Subpartitions) > 0 {
		sb.WriteString("\n (")
		for i, s := range p.Subpartitions {
			if i > 0 {
				sb.WriteString(",\n  ")
			}
			sb.WriteString("SUBPARTITION ")
			sb.WriteString(QuoteIdentifier(s.Name))
			writeOptions(sb, s, true)
		}
		sb.WriteString(")")
	}
	return nil
}

func writeValueList(sb *strings.Builder, values []tableshare.PartitionValue) {
	sb.WriteString("(")
	for i, v := range values {
		if i > 0 {
			sb.WriteString(",")
		}
		switch {
		case v.MaxValue:
			sb.WriteString("MAXVALUE")
		case v.Null:
			sb.WriteString("NULL")
		default:
			sb.WriteString(v.Literal)
		}
	}
	sb.WriteString(")")
}

func writeOptions(sb *strings.Builder, p *tableshare.PartitionDescriptor, withEngine bool) {
	if p.Tablespace != "" {
		sb.WriteString(" TABLESPACE = ")
		sb.WriteString(QuoteIdentifier(p.Tablespace))
	}
	if p.Comment != "" {
		sb.WriteString(" COMMENT = ")
		sb.WriteString(QuoteString(p.Comment))
	}
	if p.DataFileName != "" {
		sb.WriteString(" DATA DIRECTORY = ")
		sb.WriteString(QuoteString(p.DataFileName))
	}
	if p.IndexFileName != "" {
		sb.WriteString(" INDEX DIRECTORY = ")
		sb.WriteString(QuoteString(p.IndexFileName))
	}
	if p.MaxRows > 0 {
		sb.WriteString(" MAX_ROWS = ")
		sb.WriteString(strconv.FormatUint(p.MaxRows, 10))
	}
	if p.MinRows > 0 {
		sb.WriteString(" MIN_ROWS = ")
		sb.WriteString(strconv.FormatUint(p.MinRows, 10))
	}
	if p.NodegroupID != tableshare.NodegroupUndefined {
		sb.WriteString(" NODEGROUP = ")
		sb.WriteString(strconv.FormatUint(uint64(p.NodegroupID), 10))
	}
	if withEngine && p.Engine != "" {
		sb.WriteString(" ENGINE = ")
		sb.WriteString(p.Engine)
	}
}

func quoteFields(fields []string) string {
	quoted := make([]string, len(fields))
	for i, f := range fields {
		quoted[i] = QuoteIdentifier(f)
	}
	return strings.Join(quoted, ",")
}

// QuoteIdentifier wraps name in backquotes.
func QuoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// QuoteString renders s as a single quoted SQL string.
func QuoteString(s string) string {
	return "'" + strings.ReplaceAll(strings.ReplaceAll(s, `\`, `\\`), "'", "''") + "'"
}
