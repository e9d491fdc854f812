package catalog

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/zhukovaskychina/xmysql-tabledef/server/innodb/metadata"
)

// dataTypes maps information_schema.COLUMNS.DATA_TYPE to catalog tags.
var dataTypes = map[string]metadata.ColumnType{
	"tinyint":            metadata.ColumnTypeTiny,
	"smallint":           metadata.ColumnTypeShort,
	"mediumint":          metadata.ColumnTypeInt24,
	"int":                metadata.ColumnTypeLong,
	"integer":            metadata.ColumnTypeLong,
	"bigint":             metadata.ColumnTypeLonglong,
	"float":              metadata.ColumnTypeFloat,
	"double":             metadata.ColumnTypeDouble,
	"real":               metadata.ColumnTypeDouble,
	"decimal":            metadata.ColumnTypeNewDecimal,
	"numeric":            metadata.ColumnTypeNewDecimal,
	"date":               metadata.ColumnTypeNewDate,
	"time":               metadata.ColumnTypeTime2,
	"datetime":           metadata.ColumnTypeDatetime2,
	"timestamp":          metadata.ColumnTypeTimestamp2,
	"year":               metadata.ColumnTypeYear,
	"char":               metadata.ColumnTypeString,
	"binary":             metadata.ColumnTypeString,
	"varchar":            metadata.ColumnTypeVarchar,
	"varbinary":          metadata.ColumnTypeVarchar,
	"tinytext":           metadata.ColumnTypeTinyBlob,
	"tinyblob":           metadata.ColumnTypeTinyBlob,
	"text":               metadata.ColumnTypeBlob,
	"blob":               metadata.ColumnTypeBlob,
	"mediumtext":         metadata.ColumnTypeMediumBlob,
	"mediumblob":         metadata.ColumnTypeMediumBlob,
	"longtext":           metadata.ColumnTypeLongBlob,
	"longblob":           metadata.ColumnTypeLongBlob,
	"enum":               metadata.ColumnTypeEnum,
	"set":                metadata.ColumnTypeSet,
	"bit":                metadata.ColumnTypeBit,
	"json":               metadata.ColumnTypeJSON,
	"geometry":           metadata.ColumnTypeGeometry,
	"point":              metadata.ColumnTypeGeometry,
	"linestring":         metadata.ColumnTypeGeometry,
	"polygon":            metadata.ColumnTypeGeometry,
	"multipoint":         metadata.ColumnTypeGeometry,
	"multilinestring":    metadata.ColumnTypeGeometry,
	"multipolygon":       metadata.ColumnTypeGeometry,
	"geometrycollection": metadata.ColumnTypeGeometry,
	"geomcollection":     metadata.ColumnTypeGeometry,
}

// geomTypes is the geom_type option of the spatial subtypes.
var geomTypes = map[string]string{
	"geometry":           "0",
	"point":              "1",
	"linestring":         "2",
	"polygon":            "3",
	"multipoint":         "4",
	"multilinestring":    "5",
	"multipolygon":       "6",
	"geometrycollection": "7",
	"geomcollection":     "7",
}

// columnRow is one row of information_schema.COLUMNS.
type columnRow struct {
	name          string
	position      uint32
	dataType      string
	columnType    string
	nullable      string
	charMaxLength uint64
	octetLength   uint64
	precision     uint64
	scale         *uint32
	fsp           uint32
	collationID   uint32
	defaultValue  *string
	extra         string
	generation    string
	comment       string
}

// mbMaxLen is the byte width of one character, used to turn a character
// prefix length into bytes.
func (r *columnRow) mbMaxLen() uint32 {
	if r.charMaxLength == 0 || r.octetLength < r.charMaxLength {
		return 1
	}
	return uint32(r.octetLength / r.charMaxLength)
}

func (r *columnRow) unsigned() bool {
	return strings.Contains(strings.ToLower(r.columnType), "unsigned")
}

// toColumn converts the row into a catalog column record.
func (r *columnRow) toColumn() (*metadata.ColumnMetadata, error) {
	dataType := strings.ToLower(r.dataType)
	typ, ok := dataTypes[dataType]
	if !ok {
		return nil, errors.Errorf("column %s: unsupported data type %q", r.name, r.dataType)
	}
	col := &metadata.ColumnMetadata{
		Name:            r.name,
		Type:            typ,
		OrdinalPosition: r.position,
		Nullable:        strings.EqualFold(r.nullable, "YES"),
		Unsigned:        r.unsigned(),
		Zerofill:        strings.Contains(strings.ToLower(r.columnType), "zerofill"),
		CollationID:     r.collationID,
		Comment:         r.comment,
	}
	col.CharLength = r.charLength(typ, col.Unsigned)
	switch typ {
	case metadata.ColumnTypeNewDecimal, metadata.ColumnTypeFloat, metadata.ColumnTypeDouble:
		col.NumericScale = r.scale
	case metadata.ColumnTypeEnum, metadata.ColumnTypeSet:
		elems, err := parseElements(r.columnType)
		if err != nil {
			return nil, errors.Wrapf(err, "column %s", r.name)
		}
		col.Elements = elems
	case metadata.ColumnTypeGeometry:
		col.Options = metadata.Properties{metadata.ColumnOptionGeomType: geomTypes[dataType]}
	}

	extra := strings.ToLower(r.extra)
	col.AutoIncrement = strings.Contains(extra, "auto_increment")
	switch {
	case strings.Contains(extra, "virtual generated"):
		col.Generation = &metadata.Generation{Expression: r.generation, Virtual: true}
	case strings.Contains(extra, "stored generated"):
		col.Generation = &metadata.Generation{Expression: r.generation}
	}
	if strings.Contains(extra, "on update current_timestamp") {
		col.UpdateOption = "CURRENT_TIMESTAMP"
	}

	switch {
	case col.IsGenerated():
	case r.defaultValue == nil && col.Nullable:
		col.DefaultNull = true
	case r.defaultValue == nil:
		col.HasNoDefault = !col.AutoIncrement
	case strings.HasPrefix(strings.ToUpper(*r.defaultValue), "CURRENT_TIMESTAMP"):
		col.DefaultOption = "CURRENT_TIMESTAMP"
	case strings.Contains(extra, "default_generated"):
		// expression default, evaluated at insert time
	default:
		image, err := r.encodeDefault(col, *r.defaultValue)
		if err != nil {
			return nil, errors.Wrapf(err, "column %s: default %q", r.name, *r.defaultValue)
		}
		col.DefaultValue = image
	}
	return col, nil
}

// charLength reproduces the data dictionary's char_length for a column.
func (r *columnRow) charLength(typ metadata.ColumnType, unsigned bool) uint32 {
	sign := uint32(1)
	if unsigned {
		sign = 0
	}
	withFsp := func(base uint32) uint32 {
		if r.fsp > 0 {
			return base + 1 + r.fsp
		}
		return base
	}
	switch typ {
	case metadata.ColumnTypeTiny, metadata.ColumnTypeShort, metadata.ColumnTypeInt24,
		metadata.ColumnTypeLong, metadata.ColumnTypeLonglong:
		return uint32(r.precision) + sign
	case metadata.ColumnTypeNewDecimal:
		length := uint32(r.precision) + sign
		if r.scale != nil && *r.scale > 0 {
			length++
		}
		return length
	case metadata.ColumnTypeFloat:
		return 12
	case metadata.ColumnTypeDouble:
		return 22
	case metadata.ColumnTypeYear:
		return 4
	case metadata.ColumnTypeNewDate:
		return 10
	case metadata.ColumnTypeTime2:
		return withFsp(10)
	case metadata.ColumnTypeDatetime2, metadata.ColumnTypeTimestamp2:
		return withFsp(19)
	case metadata.ColumnTypeBit:
		return uint32(r.precision)
	case metadata.ColumnTypeJSON, metadata.ColumnTypeGeometry:
		return 4294967295
	}
	return uint32(r.octetLength)
}

// parseElements splits enum('a','b''c') into its unquoted members.
func parseElements(columnType string) ([]string, error) {
	open := strings.IndexByte(columnType, '(')
	if open < 0 || !strings.HasSuffix(columnType, ")") {
		return nil, errors.Errorf("malformed element list %q", columnType)
	}
	body := columnType[open+1 : len(columnType)-1]
	var elems []string
	for i := 0; i < len(body); {
		if body[i] != '\'' {
			return nil, errors.Errorf("malformed element list %q", columnType)
		}
		var sb strings.Builder
		i++
		for ; i < len(body); i++ {
			if body[i] == '\'' {
				if i+1 < len(body) && body[i+1] == '\'' {
					sb.WriteByte('\'')
					i++
					continue
				}
				break
			}
			sb.WriteByte(body[i])
		}
		if i >= len(body) {
			return nil, errors.Errorf("unterminated element in %q", columnType)
		}
		elems = append(elems, sb.String())
		i++
		if i < len(body) && body[i] == ',' {
			i++
		}
	}
	return elems, nil
}
