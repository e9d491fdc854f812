package tableshare

import (
	"strings"

	"github.com/zhukovaskychina/xmysql-tabledef/server/innodb/metadata"
)

var rowTypes = map[string]RowType{
	"DEFAULT":    RowTypeDefault,
	"FIXED":      RowTypeFixed,
	"DYNAMIC":    RowTypeDynamic,
	"COMPRESSED": RowTypeCompressed,
	"REDUNDANT":  RowTypeRedundant,
	"COMPACT":    RowTypeCompact,
	"PAGED":      RowTypePaged,
}

func parseRowType(raw string) (RowType, bool) {
	rt, ok := rowTypes[strings.ToUpper(strings.TrimSpace(raw))]
	return rt, ok
}

func parseStatsAutoRecalc(raw string) (StatsAutoRecalc, bool) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "DEFAULT", "0":
		return StatsAutoRecalcDefault, true
	case "ON", "1":
		return StatsAutoRecalcOn, true
	case "OFF", "2":
		return StatsAutoRecalcOff, true
	}
	return StatsAutoRecalcDefault, false
}

func (cp *compilation) resolveEngine() (EngineHandle, error) {
	name := cp.tab.Engine
	if name == "" {
		return nil, newError(KindUnknownStorageEngine, cp.tableName(), "", "no storage engine named")
	}
	if cp.c.engines == nil {
		return nil, newError(KindUnknownStorageEngine, cp.tableName(), "", "storage engine %s is not available", name)
	}
	engine, ok := cp.c.engines.ResolveEngine(name)
	if !ok {
		return nil, newError(KindUnknownStorageEngine, cp.tableName(), "", "storage engine %s is not available", name)
	}
	return engine, nil
}

func (cp *compilation) invalidOption(key string, err error) error {
	return newError(KindInvalidMetadata, cp.tableName(), "option "+key, "%v", err)
}

// resolveTableOptions fills the table-level settings.
func (cp *compilation) resolveTableOptions() error {
	tab := cp.tab
	engine, err := cp.resolveEngine()
	if err != nil {
		return err
	}
	cp.engine = engine

	opts := &cp.desc.Options
	opts.Engine = engine.Name()
	opts.Comment = tab.Comment
	opts.MySQLVersion = tab.MySQLVersionID
	opts.Tablespace = tab.Tablespace
	opts.RowType = RowTypeDefault
	opts.StatsAutoRecalc = StatsAutoRecalcDefault
	opts.StorageMedia = StorageDefault

	// An unknown table collation is survivable; columns carry their own.
	collation, ok := cp.resolveCollation(tab.CollationID)
	if !ok {
		cp.warn(CodeUnknownCollation, "", "unknown collation id %d, using %d", tab.CollationID, cp.c.defaultCollation)
		collation, ok = cp.resolveCollation(cp.c.defaultCollation)
		if !ok {
			return newError(KindUnknownCollation, cp.tableName(), "", "default collation %d does not resolve", cp.c.defaultCollation)
		}
	}
	opts.CollationID = collation.ID()
	opts.Collation = collation.Name()
	opts.Charset = collation.Charset()

	o := tab.Options
	if opts.MaxRows, _, err = o.GetUint64(metadata.TableOptionMaxRows); err != nil {
		return cp.invalidOption(metadata.TableOptionMaxRows, err)
	}
	if opts.MinRows, _, err = o.GetUint64(metadata.TableOptionMinRows); err != nil {
		return cp.invalidOption(metadata.TableOptionMinRows, err)
	}
	if opts.AvgRowLength, _, err = o.GetUint64(metadata.TableOptionAvgRowLength); err != nil {
		return cp.invalidOption(metadata.TableOptionAvgRowLength, err)
	}

	flagOptions := []struct {
		key string
		on  CreateOption
		off CreateOption
	}{
		{metadata.TableOptionPackRecord, OptionPackRecord, 0},
		{metadata.TableOptionPackKeys, OptionPackKeys, OptionNoPackKeys},
		{metadata.TableOptionChecksum, OptionChecksum, 0},
		{metadata.TableOptionDelayKeyWrite, OptionDelayKeyWrite, 0},
		{metadata.TableOptionStatsPersistent, OptionStatsPersistent, OptionNoStatsPersistent},
	}
	for _, fo := range flagOptions {
		v, ok, err := o.GetBool(fo.key)
		if err != nil {
			return cp.invalidOption(fo.key, err)
		}
		switch {
		case !ok:
		case v:
			opts.CreateOptions |= fo.on
		default:
			opts.CreateOptions |= fo.off
		}
	}

	if raw, ok := o.Get(metadata.TableOptionRowType); ok {
		rt, valid := parseRowType(raw)
		if !valid {
			return newError(KindInvalidMetadata, cp.tableName(), "option row_type", "unknown row type %q", raw)
		}
		opts.RowType = rt
	}
	opts.RealRowType = opts.RowType
	if tab.RowFormat != "" {
		rt, valid := parseRowType(tab.RowFormat)
		if !valid || rt == RowTypeDefault {
			return newError(KindInvalidMetadata, cp.tableName(), "row_format", "unknown row format %q", tab.RowFormat)
		}
		opts.RealRowType = rt
	}

	if opts.StatsSamplePages, _, err = o.GetUint32(metadata.TableOptionStatsSamplePages); err != nil {
		return cp.invalidOption(metadata.TableOptionStatsSamplePages, err)
	}
	if raw, ok := o.Get(metadata.TableOptionStatsAutoRecalc); ok {
		v, valid := parseStatsAutoRecalc(raw)
		if !valid {
			return newError(KindInvalidMetadata, cp.tableName(), "option stats_auto_recalc", "unknown value %q", raw)
		}
		opts.StatsAutoRecalc = v
	}
	if opts.KeyBlockSize, _, err = o.GetUint32(metadata.TableOptionKeyBlockSize); err != nil {
		return cp.invalidOption(metadata.TableOptionKeyBlockSize, err)
	}
	if raw, ok := o.Get(metadata.TableOptionStorage); ok {
		media, valid := parseStorageMedia(raw)
		if !valid {
			return newError(KindInvalidMetadata, cp.tableName(), "option storage", "unknown storage %q", raw)
		}
		opts.StorageMedia = media
	}
	opts.ConnectString, _ = o.Get(metadata.TableOptionConnectionString)
	opts.Compress, _ = o.Get(metadata.TableOptionCompress)
	opts.EncryptType, _ = o.Get(metadata.TableOptionEncryptType)

	if tab.IsPartitioned() && !engine.Supports(CapPartitioning) {
		return newError(KindInvalidMetadata, cp.tableName(), "", "storage engine %s does not support partitioning", engine.Name())
	}
	cp.log.Debugf("engine %s, collation %s, row type %s", opts.Engine, opts.Collation, opts.RealRowType)
	return nil
}

func (cp *compilation) resolveCollation(id uint32) (CollationHandle, bool) {
	if cp.c.collations == nil {
		return nil, false
	}
	return cp.c.collations.ResolveCollation(id)
}
