package tableshare

import (
	"github.com/bits-and-blooms/bitset"

	"github.com/zhukovaskychina/xmysql-tabledef/server/innodb/metadata"
	"github.com/zhukovaskychina/xmysql-tabledef/server/mysql"
)

// Persisted index "flags" option bits.
const (
	storedPackKey       = 2
	storedBinaryPackKey = 32
)

// recPerKeyUnknown initialises per key part statistics.
const recPerKeyUnknown float32 = -1.0

// keyPlan is the sizing pass result for one visible index.
type keyPlan struct {
	meta    *metadata.IndexMetadata
	kind    KeyKind
	fields  []int
	lengths []uint32
	orders  []metadata.ElementOrder
	// extParts is the number of primary key parts appended to this key.
	extParts int
}

func (p *keyPlan) userParts() int {
	return len(p.fields)
}

func (p *keyPlan) noSame() bool {
	return p.kind == KeyPrimary || p.kind == KeyUnique
}

var keyKinds = map[metadata.IndexType]KeyKind{
	metadata.IndexTypePrimary:  KeyPrimary,
	metadata.IndexTypeUnique:   KeyUnique,
	metadata.IndexTypeMultiple: KeyMultiple,
	metadata.IndexTypeFulltext: KeyFulltext,
	metadata.IndexTypeSpatial:  KeySpatial,
}

var keyAlgorithms = map[metadata.IndexAlgorithm]KeyAlgorithm{
	metadata.IndexAlgorithmSESpecific: AlgorithmSESpecific,
	metadata.IndexAlgorithmBtree:      AlgorithmBtree,
	metadata.IndexAlgorithmRtree:      AlgorithmRtree,
	metadata.IndexAlgorithmHash:       AlgorithmHash,
	metadata.IndexAlgorithmFulltext:   AlgorithmFulltext,
}

// compileKeys builds the keys in two passes: the first sizes every key and
// resolves the primary key, the second fills exact-size part arrays.
func (cp *compilation) compileKeys() error {
	plans, err := cp.planKeys()
	if err != nil {
		return err
	}
	desc := cp.desc
	desc.KeysInUse = bitset.New(uint(len(plans)))
	desc.VisibleIndexes = bitset.New(uint(len(plans)))
	desc.KeysForKeyread = bitset.New(uint(len(plans)))
	if len(plans) == 0 {
		return nil
	}

	pk := cp.choosePrimaryKey(plans)
	extend := pk != NoKey && cp.engine.Supports(CapExtendedKeys) && !cp.needsDecimalClamp(plans[pk])
	total := 0
	for i, p := range plans {
		if extend && i != pk && !p.noSame() {
			p.extParts = plans[pk].userParts()
		}
		total += p.userParts() + p.extParts
	}

	if err := cp.mem.charge(int64(len(plans))*sizeofKey+int64(total)*(sizeofKeyPart+sizeofRecPerKey), "keys"); err != nil {
		return err
	}
	parts := make([]KeyPartDescriptor, total)
	recPerKey := make([]float32, total)
	for i := range recPerKey {
		recPerKey[i] = recPerKeyUnknown
	}

	desc.Keys = make([]*KeyDescriptor, len(plans))
	desc.PrimaryKey = pk
	off := 0
	for i, p := range plans {
		n := p.userParts() + p.extParts
		key, err := cp.newKey(p, i == pk)
		if err != nil {
			return err
		}
		key.Parts = parts[off : off+p.userParts() : off+n]
		key.RecPerKey = recPerKey[off : off+n : off+n]
		off += n
		desc.Keys[i] = key
		desc.KeysInUse.Set(uint(i))
		if key.Visible {
			desc.VisibleIndexes.Set(uint(i))
		}
	}
	if off != total {
		return newError(KindInvalidMetadata, cp.tableName(), "", "key part count mismatch: sized %d, laid out %d", total, off)
	}

	for i, p := range plans {
		if err := cp.fillKeyParts(i, p); err != nil {
			return err
		}
	}
	if pk != NoKey {
		cp.markPrimaryKeyFields(pk)
	}
	for i, p := range plans {
		if p.extParts > 0 {
			cp.extendKey(i, pk)
		}
	}

	for i, key := range desc.Keys {
		key.ActualKeyParts = len(key.Parts)
		desc.KeyParts += key.ActualKeyParts
		if desc.MaxKeyLength < key.KeyLength+uint32(key.UserDefinedKeyParts) {
			desc.MaxKeyLength = key.KeyLength + uint32(key.UserDefinedKeyParts)
		}
		desc.TotalKeyLength += key.KeyLength
		if key.Flags.Has(KeyNoSame) || cp.engine.Supports(CapAnyIndexMayBeUnique) {
			if desc.MaxUniqueLength < key.KeyLength {
				desc.MaxUniqueLength = key.KeyLength
			}
		}
		cp.log.Debugf("key %d %s: %d/%d parts, length %d", i, key.Name, key.UserDefinedKeyParts, key.ActualKeyParts, key.KeyLength)
	}

	if pk != NoKey {
		pkey := desc.Keys[pk]
		if pkey.UserDefinedKeyParts == 1 {
			field := desc.Fields[pkey.Parts[0].FieldIndex]
			if mysql.IsIntResultType(field.Type) {
				desc.RowIDField = field.FieldIndex
			}
		}
	}
	return nil
}

// planKeys is the sizing pass: it resolves every visible element of every
// visible index to a compiled field.
func (cp *compilation) planKeys() ([]*keyPlan, error) {
	var plans []*keyPlan
	primaries := 0
	for _, idx := range cp.tab.Indexes {
		if idx.Hidden {
			continue
		}
		object := "index " + idx.Name
		if idx.Name == "" {
			return nil, newError(KindInvalidMetadata, cp.tableName(), "", "index at position %d has no name", idx.OrdinalPosition)
		}
		kind, ok := keyKinds[idx.Type.Normalize()]
		if !ok {
			return nil, newError(KindInvalidMetadata, cp.tableName(), object, "unknown index type %q", idx.Type)
		}
		if kind == KeyPrimary {
			primaries++
			if primaries > 1 {
				return nil, newError(KindInvalidMetadata, cp.tableName(), object, "more than one primary key")
			}
		}
		p := &keyPlan{meta: idx, kind: kind}
		for _, elem := range idx.Elements {
			if elem.Hidden {
				continue
			}
			fi, ok := cp.fieldByOrdinal[elem.ColumnOrdinal]
			if !ok {
				return nil, newError(KindInvalidMetadata, cp.tableName(), object,
					"element references column %d which is not a compiled column", elem.ColumnOrdinal)
			}
			field := cp.desc.Fields[fi]
			length := elem.Length
			if length == 0 {
				// blob family columns have no natural key length
				if mysql.IsBlobType(field.Type) && kind != KeyFulltext && kind != KeySpatial {
					return nil, newError(KindInvalidMetadata, cp.tableName(), object,
						"element on %s needs an explicit length", field.Name)
				}
				length = field.KeyLength
			}
			p.fields = append(p.fields, fi)
			p.lengths = append(p.lengths, length)
			p.orders = append(p.orders, elem.Order)
		}
		if p.userParts() == 0 {
			return nil, newError(KindInvalidMetadata, cp.tableName(), object, "index has no visible elements")
		}
		plans = append(plans, p)
	}
	return plans, nil
}

// choosePrimaryKey returns the declared primary key, or the first unique
// key whose parts all qualify for promotion.
func (cp *compilation) choosePrimaryKey(plans []*keyPlan) int {
	for i, p := range plans {
		if p.kind == KeyPrimary {
			return i
		}
	}
	for i, p := range plans {
		if !p.noSame() {
			continue
		}
		suitable := true
		for j, fi := range p.fields {
			if !isSuitableForPrimaryKey(cp.desc.Fields[fi], p.lengths[j]) {
				suitable = false
				break
			}
		}
		if suitable {
			return i
		}
	}
	return NoKey
}

// isSuitableForPrimaryKey decides whether a unique key part may serve in a
// promoted primary key.
func isSuitableForPrimaryKey(field *ColumnDescriptor, length uint32) bool {
	if field.IsVirtual() {
		return false
	}
	if field.Nullable {
		return false
	}
	switch field.Type {
	case mysql.TypeTinyBlob, mysql.TypeBlob, mysql.TypeMediumBlob, mysql.TypeLongBlob:
		return length > 0 && field.CharLength == length
	case mysql.TypeGeometry:
		return field.GeomType == geomTypePoint && length == geometryPointSize
	case mysql.TypeJSON:
		return false
	}
	return field.KeyLength == length
}

func (cp *compilation) needsDecimalClamp(p *keyPlan) bool {
	for j, fi := range p.fields {
		f := cp.desc.Fields[fi]
		if f.Type == mysql.TypeNewDecimal && f.KeyLength != p.lengths[j] {
			return true
		}
	}
	return false
}

// newKey fills key level attributes.
func (cp *compilation) newKey(p *keyPlan, primary bool) (*KeyDescriptor, error) {
	idx := p.meta
	object := "index " + idx.Name
	algorithm, ok := keyAlgorithms[idx.Algorithm.Normalize()]
	if !ok {
		if idx.Algorithm != "" {
			return nil, newError(KindInvalidMetadata, cp.tableName(), object, "unknown index algorithm %q", idx.Algorithm)
		}
		algorithm = AlgorithmSESpecific
	}
	key := &KeyDescriptor{
		Name:                idx.Name,
		Kind:                p.kind,
		Primary:             primary,
		Algorithm:           algorithm,
		AlgorithmExplicit:   idx.AlgorithmExplicit,
		Visible:             idx.Visible,
		Generated:           idx.Generated,
		UserDefinedKeyParts: p.userParts(),
		Comment:             idx.Comment,
	}
	switch p.kind {
	case KeyPrimary, KeyUnique:
		key.Flags = KeyNoSame
	case KeyFulltext:
		key.Flags = KeyFulltextFlag
	case KeySpatial:
		key.Flags = KeySpatialFlag
	}
	if idx.Generated {
		key.Flags |= KeyGenerated
	}

	stored, ok, err := idx.Options.GetUint32(metadata.IndexOptionFlags)
	if err != nil {
		return nil, newError(KindInvalidMetadata, cp.tableName(), object, "%v", err)
	}
	if ok {
		if stored&^(storedPackKey|storedBinaryPackKey) != 0 {
			return nil, newError(KindInvalidMetadata, cp.tableName(), object, "unexpected persisted key flags %#x", stored)
		}
		if stored&storedPackKey != 0 {
			key.Flags |= KeyPackKey
		}
		if stored&storedBinaryPackKey != 0 {
			key.Flags |= KeyBinaryPackKey
		}
	}

	blockSize, ok, err := idx.Options.GetUint32(metadata.IndexOptionBlockSize)
	if err != nil {
		return nil, newError(KindInvalidMetadata, cp.tableName(), object, "%v", err)
	}
	if ok {
		key.BlockSize = blockSize
		key.Flags |= KeyUsesBlockSize
	}

	if name, ok := idx.Options.Get(metadata.IndexOptionParserName); ok {
		if cp.c.parsers == nil {
			return nil, newError(KindPluginNotLoaded, cp.tableName(), object, "full-text parser %s is not loaded", name)
		}
		parser, loaded := cp.c.parsers.LoadFulltextParser(name)
		if !loaded {
			return nil, newError(KindPluginNotLoaded, cp.tableName(), object, "full-text parser %s is not loaded", name)
		}
		key.Parser = parser.Name()
		key.Flags |= KeyUsesParser
	}
	if idx.Comment != "" {
		key.Flags |= KeyUsesComment
	}
	return key, nil
}

// fillKeyParts fills the user-defined parts of key i.
func (cp *compilation) fillKeyParts(i int, p *keyPlan) error {
	desc := cp.desc
	key := desc.Keys[i]
	usable := 0
	for j, fi := range p.fields {
		field := desc.Fields[fi]
		part := &key.Parts[j]
		*part = KeyPartDescriptor{
			FieldIndex:  fi,
			FieldNr:     field.OrdinalPosition,
			Type:        field.Type,
			Offset:      field.Offset,
			Length:      p.lengths[j],
			StoreLength: p.lengths[j],
			NullByte:    NoKey,
			BinCmp:      !isStringType(field.Type) || cp.isBinaryCollation(fi),
		}
		key.KeyLength += part.Length
		if p.orders[j] == metadata.OrderDesc {
			part.Flags |= PartReverseSort
		}
		if field.Nullable {
			part.NullByte = field.NullByte
			part.NullBit = field.NullBit
			part.Flags |= PartNullable
			part.StoreLength++
			key.KeyLength++
			key.Flags |= KeyNullPartKey
		}
		if isVariableKeyType(field.Type) {
			part.StoreLength += keyBlobLength
			key.KeyLength += keyBlobLength
			if field.Type == mysql.TypeVarchar {
				part.Flags |= PartVarLength
				key.Flags |= KeyVarLengthPart
			} else {
				part.Flags |= PartBlob
				key.Flags |= KeyBlobPart
			}
		}
		if field.IsVirtual() {
			key.Flags |= KeyVirtualGenerated
		}

		cp.markKeyPartField(i, j, key, part, &usable)

		if field.KeyLength != part.Length {
			if field.Type == mysql.TypeNewDecimal {
				diff := part.Length - field.KeyLength
				key.KeyLength -= diff
				part.StoreLength -= diff
				part.Length = field.KeyLength
				desc.Crashed = true
				cp.warn(CodeCrashedOnUsage, "index "+key.Name,
					"Found wrong key definition in %s; Please do \"ALTER TABLE `%s` FORCE\" to fix it!", cp.tab.Name, cp.tab.Name)
				continue
			}
			part.Flags |= PartKeySegment
		}
	}
	key.ActualFlags = key.Flags
	key.UsableKeyParts = usable
	return nil
}

// markKeyPartField records key membership on the field of part j of key i.
func (cp *compilation) markKeyPartField(i, j int, key *KeyDescriptor, part *KeyPartDescriptor, usable *int) {
	field := cp.desc.Fields[part.FieldIndex]
	field.Flags |= mysql.PartKeyFlag
	if j == 0 && i != cp.desc.PrimaryKey {
		if key.Flags.Has(KeyNoSame) && key.UserDefinedKeyParts == 1 {
			field.Flags |= mysql.UniqueKeyFlag
		} else {
			field.Flags |= mysql.MultipleKeyFlag
		}
	}
	if field.KeyLength == part.Length && !field.IsBlob() {
		if cp.engine.Supports(CapKeyreadOnly) {
			cp.desc.KeysForKeyread.Set(uint(i))
			field.PartOfKey.Set(uint(i))
		}
		if cp.engine.Supports(CapReadOrder) {
			field.PartOfSortKey.Set(uint(i))
		}
	}
	if !part.Flags.Has(PartReverseSort) && *usable == j {
		*usable++
	}
}

// markPrimaryKeyFields flags primary key fields and, for engines whose
// indexes all carry the primary key, widens their key membership.
func (cp *compilation) markPrimaryKeyFields(pk int) {
	key := cp.desc.Keys[pk]
	for _, part := range key.UserParts() {
		field := cp.desc.Fields[part.FieldIndex]
		field.Flags |= mysql.PriKeyFlag
		if !cp.engine.Supports(CapPrimaryKeyInReadIndex) {
			continue
		}
		if field.KeyLength == part.Length && !field.IsBlob() {
			field.PartOfKey = cp.desc.KeysInUse.Clone()
		}
		if field.PartOfSortKey.Test(uint(pk)) {
			field.PartOfSortKey = cp.desc.KeysInUse.Clone()
		}
	}
}

// extendKey appends the primary key parts to secondary key i.
func (cp *compilation) extendKey(i, pk int) {
	key := cp.desc.Keys[i]
	pkey := cp.desc.Keys[pk]
	usable := key.UsableKeyParts
	for _, pkPart := range pkey.UserParts() {
		j := len(key.Parts)
		key.Parts = append(key.Parts, pkPart)
		part := &key.Parts[j]
		part.Flags |= PartExtended
		cp.markKeyPartField(i, j, key, part, &usable)
	}
	key.UsableKeyParts = usable
	key.ActualFlags = key.Flags | KeyNoSame
}
