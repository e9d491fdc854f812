package tableshare

import (
	"strings"

	"github.com/bits-and-blooms/bitset"

	"github.com/zhukovaskychina/xmysql-tabledef/server/innodb/metadata"
	"github.com/zhukovaskychina/xmysql-tabledef/server/mysql"
	"github.com/zhukovaskychina/xmysql-tabledef/util"
)

// nullCursor walks the null bitmap one preamble at a time.
type nullCursor struct {
	pos int
	bit uint32
}

func (n *nullCursor) advance(bits uint32) {
	n.bit += bits
	n.pos += int(n.bit / 8)
	n.bit &= 7
}

func (cp *compilation) firstNullBit() uint32 {
	if cp.desc.Options.CreateOptions.Has(OptionPackRecord) {
		return 1
	}
	return 0
}

// compileRecordLayout builds the fields, assigns offsets and null bits, and
// fills the default row image.
func (cp *compilation) compileRecordLayout() error {
	for _, col := range cp.tab.Columns {
		if !col.Hidden {
			cp.visibleColumns = append(cp.visibleColumns, col)
		}
	}
	n := len(cp.visibleColumns)
	if err := cp.mem.charge(int64(n)*sizeofField, "fields"); err != nil {
		return err
	}
	cp.desc.Fields = make([]*ColumnDescriptor, n)
	cp.collations = make([]CollationHandle, n)
	cp.fieldByOrdinal = make(map[uint32]int, n)
	cp.desc.fieldsByName = make(map[string]int, n)

	geometries := make([]fieldGeometry, n)
	firstBit := cp.firstNullBit()
	nullBits := firstBit
	var body uint32
	for i, col := range cp.visibleColumns {
		field, geom, err := cp.newField(i, col)
		if err != nil {
			return err
		}
		cp.desc.Fields[i] = field
		geometries[i] = geom
		if _, dup := cp.fieldByOrdinal[col.OrdinalPosition]; dup {
			return newError(KindInvalidMetadata, cp.tableName(), "column "+col.Name, "duplicate ordinal position %d", col.OrdinalPosition)
		}
		cp.fieldByOrdinal[col.OrdinalPosition] = i
		cp.desc.fieldsByName[col.Name] = i
		nullBits += field.Preamble
		if col.Nullable {
			cp.desc.Record.NullFields++
		}
		body += geom.recLength
	}

	rec := &cp.desc.Record
	rec.NullBytes = (nullBits + 7) / 8
	if err := cp.mem.charge(int64(rec.NullBytes+body), "default row"); err != nil {
		return err
	}
	row := make([]byte, rec.NullBytes+body)
	if firstBit > 0 {
		// Deleted-row marker.
		row[0] |= 1
	}

	// Stored columns first; virtual columns still consume their null bits.
	nc := nullCursor{bit: firstBit}
	recPos := rec.NullBytes
	hasVirtual := false
	for i, col := range cp.visibleColumns {
		field := cp.desc.Fields[i]
		if !col.IsVirtual() {
			if err := cp.placeField(field, col, geometries[i], nc, recPos, row); err != nil {
				return err
			}
			recPos += geometries[i].recLength
		} else {
			hasVirtual = true
		}
		nc.advance(field.Preamble)
	}
	rec.StoredRecordLength = recPos - rec.NullBytes
	lastNull := nc

	if hasVirtual {
		nc = nullCursor{bit: firstBit}
		for i, col := range cp.visibleColumns {
			field := cp.desc.Fields[i]
			if col.IsVirtual() {
				if err := cp.placeField(field, col, geometries[i], nc, recPos, row); err != nil {
					return err
				}
				recPos += geometries[i].recLength
				cp.desc.VirtualFields++
			}
			nc.advance(field.Preamble)
		}
	}
	rec.RecordLength = recPos - rec.NullBytes
	rec.LastNullBitPos = uint8(lastNull.bit)

	// Unused trailing bits of the last null byte are set.
	if lastNull.bit != 0 {
		row[lastNull.pos] |= ^byte((1 << lastNull.bit) - 1)
	}
	rec.DefaultRow = row

	for i, f := range cp.desc.Fields {
		if f.IsBlob() {
			cp.desc.BlobFields = append(cp.desc.BlobFields, i)
			rec.BlobOffsets = append(rec.BlobOffsets, f.Offset)
		}
	}
	cp.log.Debugf("record layout: %d null bytes, stored %d, total %d", rec.NullBytes, rec.StoredRecordLength, rec.RecordLength)
	return nil
}

// newField builds the descriptor of a column without placing it.
func (cp *compilation) newField(i int, col *metadata.ColumnMetadata) (*ColumnDescriptor, fieldGeometry, error) {
	object := "column " + col.Name
	if col.Name == "" {
		return nil, fieldGeometry{}, newError(KindInvalidMetadata, cp.tableName(), "", "column at position %d has no name", col.OrdinalPosition)
	}
	typ, ok := typeCode(col.Type)
	if !ok {
		return nil, fieldGeometry{}, newError(KindInvalidMetadata, cp.tableName(), object, "unknown column type %q", col.Type)
	}
	collation, ok := cp.resolveCollation(col.CollationID)
	if !ok {
		return nil, fieldGeometry{}, newError(KindUnknownCollation, cp.tableName(), object, "unknown collation id %d", col.CollationID)
	}
	cp.collations[i] = collation

	decimals, ok := columnDecimals(col, typ)
	if !ok {
		return nil, fieldGeometry{}, newError(KindInvalidMetadata, cp.tableName(), object, "decimal column has no numeric scale")
	}

	field := &ColumnDescriptor{
		Name:            col.Name,
		FieldIndex:      i,
		OrdinalPosition: col.OrdinalPosition,
		ColumnType:      col.Type.Normalize(),
		Type:            typ,
		Nullable:        col.Nullable,
		CharLength:      col.CharLength,
		CollationID:     collation.ID(),
		Decimals:        decimals,
		AutoFlags:       autoFlags(col),
		NullByte:        NoKey,
		BitByte:         NoKey,
		Generation:      GenerationNone,
		DefaultNull:     col.DefaultNull,
		Elements:        col.Elements,
		Storage:         StorageDefault,
		Comment:         col.Comment,
		PartOfKey:       bitset.New(0),
		PartOfSortKey:   bitset.New(0),
	}
	if col.IsGenerated() {
		field.Expression = col.Generation.Expression
		field.Generation = GenerationStored
		if col.Generation.Virtual {
			field.Generation = GenerationVirtual
		}
	}

	o := col.Options
	treatBitAsChar, _, err := o.GetBool(metadata.ColumnOptionTreatBitAsChar)
	if err != nil {
		return nil, fieldGeometry{}, newError(KindInvalidMetadata, cp.tableName(), object, "%v", err)
	}
	field.TreatBitAsChar = treatBitAsChar
	if raw, ok := o.Get(metadata.ColumnOptionGeomType); ok {
		gt, valid := parseGeomType(raw)
		if !valid {
			return nil, fieldGeometry{}, newError(KindInvalidMetadata, cp.tableName(), object, "invalid geometry type %q", raw)
		}
		field.GeomType = gt
	}
	if raw, ok := o.Get(metadata.ColumnOptionStorage); ok {
		media, valid := parseStorageMedia(raw)
		if !valid {
			return nil, fieldGeometry{}, newError(KindInvalidMetadata, cp.tableName(), object, "unknown storage %q", raw)
		}
		field.Storage = media
	}
	if raw, ok := o.Get(metadata.ColumnOptionColumnFormat); ok {
		field.ColumnFormat = strings.ToUpper(raw)
	}

	geom := computeGeometry(col, typ, decimals, field.TreatBitAsChar)
	field.PackLength = geom.packLength
	field.RecLength = geom.recLength
	field.KeyLength = geom.keyLength
	field.BitLen = geom.bitLen
	field.Preamble = preambleBits(col, typ, field.TreatBitAsChar)
	field.Flags = fieldFlags(col, typ, collation.BinarySort())
	return field, geom, nil
}

// placeField assigns the null slot and offset of a field and writes its
// default value into row.
func (cp *compilation) placeField(field *ColumnDescriptor, col *metadata.ColumnMetadata, geom fieldGeometry, nc nullCursor, recPos uint32, row []byte) error {
	field.Offset = recPos
	bitOfs := nc.bit
	bitByte := nc.pos
	if col.Nullable {
		field.NullByte = nc.pos
		field.NullBit = 1 << nc.bit
		bitOfs++
		if bitOfs == 8 {
			bitByte++
			bitOfs = 0
		}
	}
	if geom.bitLen > 0 {
		field.BitByte = bitByte
		field.BitOfs = uint8(bitOfs)
	}
	return cp.writeDefault(field, col, geom, row)
}

func (cp *compilation) writeDefault(field *ColumnDescriptor, col *metadata.ColumnMetadata, geom fieldGeometry, row []byte) error {
	body := row[field.Offset : field.Offset+geom.recLength]
	if col.DefaultNull || (len(col.DefaultValue) == 0 && col.Nullable) {
		for i := range body {
			body[i] = 0
		}
		if geom.bitLen > 0 {
			util.SetRecBits(row[field.BitByte:], field.BitOfs, geom.bitLen, 0)
		}
		if col.Nullable {
			row[field.NullByte] |= field.NullBit
		}
		return nil
	}
	if len(col.DefaultValue) == 0 {
		return nil
	}
	if uint32(len(col.DefaultValue)) < geom.packLength {
		return newError(KindInvalidMetadata, cp.tableName(), "column "+col.Name,
			"default value has %d bytes, column needs %d", len(col.DefaultValue), geom.packLength)
	}
	if col.Nullable {
		row[field.NullByte] &^= field.NullBit
	}
	if geom.bitLen > 0 {
		leftover := col.DefaultValue[geom.packLength-1]
		util.SetRecBits(row[field.BitByte:], field.BitOfs, geom.bitLen, leftover)
		copy(body, col.DefaultValue[:geom.packLength-1])
		return nil
	}
	copy(body, col.DefaultValue[:geom.recLength])
	return nil
}

// isBinaryCollation reports whether a field compares raw bytes.
func (cp *compilation) isBinaryCollation(i int) bool {
	return cp.collations[i] != nil && cp.collations[i].BinarySort()
}

func isStringType(typ byte) bool {
	return typ == mysql.TypeVarchar || typ == mysql.TypeString
}
