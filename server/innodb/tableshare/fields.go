package tableshare

import (
	"strconv"
	"strings"

	"github.com/zhukovaskychina/xmysql-tabledef/server/innodb/metadata"
	"github.com/zhukovaskychina/xmysql-tabledef/server/mysql"
)

const blobFlag = mysql.BlobFlag

const (
	maxDatetimeWidth = 19
	maxTimeWidth     = 10
	blobPointerSize  = 8
	// keyBlobLength is the length prefix a variable key part carries.
	keyBlobLength = 2
	// varcharLengthBytes is the length prefix of a VARCHAR in the record.
	varcharLengthBytes = 2
	geometryPointSize  = 25
	geomTypePoint      = 1
)

var columnTypeCodes = map[metadata.ColumnType]byte{
	metadata.ColumnTypeDecimal:    mysql.TypeDecimal,
	metadata.ColumnTypeTiny:       mysql.TypeTiny,
	metadata.ColumnTypeShort:      mysql.TypeShort,
	metadata.ColumnTypeLong:       mysql.TypeLong,
	metadata.ColumnTypeFloat:      mysql.TypeFloat,
	metadata.ColumnTypeDouble:     mysql.TypeDouble,
	metadata.ColumnTypeNull:       mysql.TypeNull,
	metadata.ColumnTypeTimestamp:  mysql.TypeTimestamp,
	metadata.ColumnTypeLonglong:   mysql.TypeLonglong,
	metadata.ColumnTypeInt24:      mysql.TypeInt24,
	metadata.ColumnTypeDate:       mysql.TypeDate,
	metadata.ColumnTypeTime:       mysql.TypeDuration,
	metadata.ColumnTypeDatetime:   mysql.TypeDatetime,
	metadata.ColumnTypeYear:       mysql.TypeYear,
	metadata.ColumnTypeNewDate:    mysql.TypeNewDate,
	metadata.ColumnTypeVarchar:    mysql.TypeVarchar,
	metadata.ColumnTypeBit:        mysql.TypeBit,
	metadata.ColumnTypeTimestamp2: mysql.TypeTimestamp2,
	metadata.ColumnTypeDatetime2:  mysql.TypeDatetime2,
	metadata.ColumnTypeTime2:      mysql.TypeDuration2,
	metadata.ColumnTypeNewDecimal: mysql.TypeNewDecimal,
	metadata.ColumnTypeEnum:       mysql.TypeEnum,
	metadata.ColumnTypeSet:        mysql.TypeSet,
	metadata.ColumnTypeTinyBlob:   mysql.TypeTinyBlob,
	metadata.ColumnTypeMediumBlob: mysql.TypeMediumBlob,
	metadata.ColumnTypeLongBlob:   mysql.TypeLongBlob,
	metadata.ColumnTypeBlob:       mysql.TypeBlob,
	metadata.ColumnTypeVarString:  mysql.TypeVarString,
	metadata.ColumnTypeString:     mysql.TypeString,
	metadata.ColumnTypeGeometry:   mysql.TypeGeometry,
	metadata.ColumnTypeJSON:       mysql.TypeJSON,
}

// dig2bytes is the storage of a decimal group with n leftover digits.
var dig2bytes = [10]uint32{0, 1, 1, 2, 2, 3, 3, 4, 4, 4}

const digitsPerDecimalGroup = 9

// fieldGeometry is the physical shape of a column.
type fieldGeometry struct {
	typ        byte
	packLength uint32
	recLength  uint32
	keyLength  uint32
	bitLen     uint8
	decimals   uint32
}

// typeCode maps a catalog type tag to its field type code.
func typeCode(t metadata.ColumnType) (byte, bool) {
	code, ok := columnTypeCodes[t.Normalize()]
	return code, ok
}

// columnDecimals is the decimals attribute of a column.
func columnDecimals(col *metadata.ColumnMetadata, typ byte) (uint32, bool) {
	switch typ {
	case mysql.TypeDecimal, mysql.TypeNewDecimal:
		if col.NumericScale == nil {
			return 0, false
		}
		return *col.NumericScale, true
	case mysql.TypeFloat, mysql.TypeDouble:
		if col.NumericScale == nil {
			return NotFixedDec, true
		}
		return *col.NumericScale, true
	}
	return 0, true
}

// fractionalDigits derives fsp from the display width of temporal types.
func fractionalDigits(charLength, base uint32) uint32 {
	if charLength > base {
		return charLength - base - 1
	}
	return 0
}

func decimalPrecision(length, scale uint32, unsigned bool) uint32 {
	p := length
	if scale > 0 && p > 0 {
		p--
	}
	if !unsigned && p > 0 {
		p--
	}
	return p
}

func decimalBinarySize(precision, scale uint32) uint32 {
	intg := uint32(0)
	if precision > scale {
		intg = precision - scale
	}
	intg0 := intg / digitsPerDecimalGroup
	frac0 := scale / digitsPerDecimalGroup
	return intg0*4 + dig2bytes[intg%digitsPerDecimalGroup] + frac0*4 + dig2bytes[scale%digitsPerDecimalGroup]
}

func blobPackLength(typ byte) uint32 {
	switch typ {
	case mysql.TypeTinyBlob:
		return 1
	case mysql.TypeBlob:
		return 2
	case mysql.TypeMediumBlob:
		return 3
	}
	return 4
}

func enumPackLength(elements int) uint32 {
	if elements < 256 {
		return 1
	}
	return 2
}

func setPackLength(elements int) uint32 {
	n := uint32(elements+7) / 8
	if n > 4 {
		return 8
	}
	return n
}

// computeGeometry returns pack, record and natural key lengths of a column.
func computeGeometry(col *metadata.ColumnMetadata, typ byte, decimals uint32, treatBitAsChar bool) fieldGeometry {
	g := fieldGeometry{typ: typ, decimals: decimals}
	length := col.CharLength
	switch typ {
	case mysql.TypeTiny, mysql.TypeYear:
		g.packLength = 1
	case mysql.TypeShort:
		g.packLength = 2
	case mysql.TypeInt24, mysql.TypeDate, mysql.TypeNewDate, mysql.TypeDuration:
		g.packLength = 3
	case mysql.TypeLong, mysql.TypeFloat, mysql.TypeTimestamp:
		g.packLength = 4
	case mysql.TypeLonglong, mysql.TypeDouble, mysql.TypeDatetime:
		g.packLength = 8
	case mysql.TypeTimestamp2:
		g.packLength = 4 + (fractionalDigits(length, maxDatetimeWidth)+1)/2
	case mysql.TypeDatetime2:
		g.packLength = 5 + (fractionalDigits(length, maxDatetimeWidth)+1)/2
	case mysql.TypeDuration2:
		g.packLength = 3 + (fractionalDigits(length, maxTimeWidth)+1)/2
	case mysql.TypeNewDecimal:
		g.packLength = decimalBinarySize(decimalPrecision(length, decimals, col.Unsigned), decimals)
	case mysql.TypeDecimal, mysql.TypeString, mysql.TypeVarString:
		g.packLength = length
	case mysql.TypeVarchar:
		g.packLength = varcharLengthBytes + length
		g.keyLength = length
		g.recLength = g.packLength
		return g
	case mysql.TypeTinyBlob, mysql.TypeBlob, mysql.TypeMediumBlob, mysql.TypeLongBlob, mysql.TypeJSON, mysql.TypeGeometry:
		g.packLength = blobPackLength(typ) + blobPointerSize
		g.recLength = g.packLength
		g.keyLength = 0
		return g
	case mysql.TypeEnum:
		g.packLength = enumPackLength(len(col.Elements))
	case mysql.TypeSet:
		g.packLength = setPackLength(len(col.Elements))
	case mysql.TypeBit:
		if treatBitAsChar {
			g.packLength = (length + 7) / 8
			g.recLength = g.packLength
		} else {
			g.bitLen = uint8(length & 7)
			g.recLength = length / 8
			g.packLength = g.recLength
			if g.bitLen > 0 {
				g.packLength++
			}
		}
		g.keyLength = (length + 7) / 8
		return g
	case mysql.TypeNull:
		g.packLength = 0
	}
	g.recLength = g.packLength
	g.keyLength = g.packLength
	return g
}

// preambleBits is the number of null-bitmap bits a column occupies.
func preambleBits(col *metadata.ColumnMetadata, typ byte, treatBitAsChar bool) uint32 {
	bits := uint32(0)
	if col.Nullable {
		bits++
	}
	if typ == mysql.TypeBit && !treatBitAsChar {
		bits += col.CharLength & 7
	}
	return bits
}

// fieldFlags derives the flag word of a column.
func fieldFlags(col *metadata.ColumnMetadata, typ byte, binary bool) uint {
	var flags uint
	if !col.Nullable {
		flags |= mysql.NotNullFlag
	}
	if col.Unsigned {
		flags |= mysql.UnsignedFlag
	}
	if col.Zerofill {
		flags |= mysql.ZerofillFlag
	}
	if mysql.IsBlobType(typ) {
		flags |= mysql.BlobFlag
	}
	if binary {
		flags |= mysql.BinaryFlag
	}
	if col.AutoIncrement {
		flags |= mysql.AutoIncrementFlag
	}
	if col.HasNoDefault {
		flags |= mysql.NoDefaultValueFlag
	}
	if col.UpdateOption != "" {
		flags |= mysql.OnUpdateNowFlag
	}
	switch typ {
	case mysql.TypeEnum:
		flags |= mysql.EnumFlag
	case mysql.TypeSet:
		flags |= mysql.SetFlag
	case mysql.TypeTimestamp, mysql.TypeTimestamp2:
		flags |= mysql.TimestampFlag
	}
	return flags
}

func autoFlags(col *metadata.ColumnMetadata) AutoFlag {
	flags := AutoNone
	if col.DefaultOption != "" {
		flags |= AutoDefaultNow
	}
	if col.UpdateOption != "" {
		flags |= AutoOnUpdateNow
	}
	if col.AutoIncrement {
		flags |= AutoNextNumber
	}
	return flags
}

// isVariableKeyType reports types whose key parts carry a length prefix.
func isVariableKeyType(typ byte) bool {
	return typ == mysql.TypeVarchar || mysql.IsBlobType(typ)
}

func parseStorageMedia(raw string) (StorageMedia, bool) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "", "DEFAULT", "0":
		return StorageDefault, true
	case "DISK", "1":
		return StorageDisk, true
	case "MEMORY", "2":
		return StorageMemory, true
	}
	return StorageDefault, false
}

func parseGeomType(raw string) (uint32, bool) {
	v, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 32)
	if err != nil {
		return 0, false
	}
	return uint32(v), true
}
