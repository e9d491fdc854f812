package tableshare

import (
	"encoding/binary"

	"github.com/bits-and-blooms/bitset"

	"github.com/zhukovaskychina/xmysql-tabledef/server/mysql"
	"github.com/zhukovaskychina/xmysql-tabledef/util"
)

// assemble derives whole-table aggregates and checks cross-stage
// invariants.
func (cp *compilation) assemble() error {
	desc := cp.desc
	desc.AllSet = bitset.New(uint(len(desc.Fields)))
	for i := range desc.Fields {
		desc.AllSet.Set(uint(i))
	}
	desc.System = desc.Options.MaxRows == 1 && desc.Options.MinRows == 1 && len(desc.Keys) == 0

	for i, f := range desc.Fields {
		if f.AutoFlags&AutoNextNumber == 0 {
			continue
		}
		if desc.NextNumberField != NoKey {
			return newError(KindInvalidMetadata, cp.tableName(), "column "+f.Name, "more than one auto-increment column")
		}
		index, part, offset := findRefKey(desc.Keys, i, f)
		if index == NoKey {
			return newError(KindInvalidMetadata, cp.tableName(), "column "+f.Name, "Wrong field definition.")
		}
		desc.NextNumberField = i
		desc.NextNumberIndex = index
		desc.NextNumberPart = part
		desc.NextNumberKeyOf = offset
		f.Flags |= mysql.AutoIncrementFlag
	}

	if err := cp.checkInvariants(); err != nil {
		return err
	}
	desc.Checksum = descriptorChecksum(desc)
	return nil
}

// findRefKey finds the key used to look up the next auto-increment value:
// the first key led by the field, else the first key containing it, with
// the byte offset of the field inside that key. BIT columns never match.
func findRefKey(keys []*KeyDescriptor, fieldIndex int, field *ColumnDescriptor) (index, part int, offset uint32) {
	if field.Type == mysql.TypeBit {
		return NoKey, NoKey, 0
	}
	for i, key := range keys {
		if key.UserDefinedKeyParts > 0 && key.Parts[0].FieldIndex == fieldIndex {
			return i, 0, 0
		}
	}
	for i, key := range keys {
		offset = 0
		for j, p := range key.UserParts() {
			if p.FieldIndex == fieldIndex {
				return i, j, offset
			}
			offset += p.StoreLength
		}
	}
	return NoKey, NoKey, 0
}

func (cp *compilation) checkInvariants() error {
	desc := cp.desc
	invalid := func(format string, args ...interface{}) error {
		return newError(KindInvalidMetadata, cp.tableName(), "", format, args...)
	}

	for _, key := range desc.Keys {
		for _, p := range key.Parts {
			if _, ok := desc.Field(p.FieldIndex); !ok {
				return invalid("key %s references field %d of %d", key.Name, p.FieldIndex, len(desc.Fields))
			}
		}
	}

	used := cp.firstNullBit()
	for _, f := range desc.Fields {
		used += f.Preamble
	}
	capacity := 8 * desc.Record.NullBytes
	if used > capacity || capacity-used > 7 {
		return invalid("%d null bits do not fit %d null bytes", used, desc.Record.NullBytes)
	}

	primaries := 0
	for i, key := range desc.Keys {
		if key.Primary {
			primaries++
			if i != desc.PrimaryKey {
				return invalid("key %s is marked primary but the primary key is %d", key.Name, desc.PrimaryKey)
			}
		}
	}
	if primaries > 1 {
		return invalid("%d keys are marked primary", primaries)
	}

	var maxStored uint32
	minVirtual := ^uint32(0)
	for _, f := range desc.Fields {
		if f.IsVirtual() {
			if f.Offset < minVirtual {
				minVirtual = f.Offset
			}
		} else if end := f.Offset + f.RecLength; end > maxStored {
			maxStored = end
		}
	}
	if desc.VirtualFields > 0 && maxStored > minVirtual {
		return invalid("virtual columns overlap stored columns")
	}

	if info := desc.Partition; info != nil && info.Method != MethodHash {
		for _, p := range info.Partitions {
			if len(p.Values) == 0 {
				return invalid("partition %s has no values", p.Name)
			}
			last := p.Values[len(p.Values)-1]
			if int(last.ListIndex+1)*int(last.ColumnIndex+1) != len(p.Values) {
				return invalid("partition %s has an incomplete value matrix", p.Name)
			}
		}
	}
	return nil
}

// descriptorChecksum fingerprints the physical contract of a descriptor:
// the default row, key geometry and partition text.
func descriptorChecksum(desc *TableDescriptor) uint64 {
	buf := make([]byte, 0, len(desc.Record.DefaultRow)+16*desc.KeyParts+len(desc.Fields)*8)
	buf = append(buf, desc.Record.DefaultRow...)
	for _, f := range desc.Fields {
		buf = binary.LittleEndian.AppendUint32(buf, f.Offset)
		buf = binary.LittleEndian.AppendUint32(buf, f.PackLength)
	}
	for _, key := range desc.Keys {
		buf = append(buf, key.Name...)
		for _, p := range key.Parts {
			buf = binary.LittleEndian.AppendUint32(buf, uint32(p.FieldIndex))
			buf = binary.LittleEndian.AppendUint32(buf, p.Length)
			buf = binary.LittleEndian.AppendUint32(buf, p.StoreLength)
			buf = binary.LittleEndian.AppendUint16(buf, uint16(p.Flags))
		}
	}
	if desc.Partition != nil {
		buf = append(buf, desc.Partition.Text...)
	}
	return util.HashCode(buf)
}
