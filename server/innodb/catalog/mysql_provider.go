package catalog

import (
	"context"
	"database/sql"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"

	"github.com/zhukovaskychina/xmysql-tabledef/logger"
	"github.com/zhukovaskychina/xmysql-tabledef/server/innodb/metadata"
	"github.com/zhukovaskychina/xmysql-tabledef/server/innodb/partition"
)

const (
	tableQuery = "SELECT t.ENGINE, IFNULL(c.ID, 0), IFNULL(t.TABLE_COMMENT, ''), IFNULL(t.ROW_FORMAT, ''), IFNULL(t.CREATE_OPTIONS, '') " +
		"FROM information_schema.TABLES t LEFT JOIN information_schema.COLLATIONS c ON c.COLLATION_NAME = t.TABLE_COLLATION " +
		"WHERE t.TABLE_SCHEMA = ? AND t.TABLE_NAME = ?"

	columnQuery = "SELECT c.COLUMN_NAME, c.ORDINAL_POSITION, c.DATA_TYPE, c.COLUMN_TYPE, c.IS_NULLABLE, " +
		"IFNULL(c.CHARACTER_MAXIMUM_LENGTH, 0), IFNULL(c.CHARACTER_OCTET_LENGTH, 0), IFNULL(c.NUMERIC_PRECISION, 0), " +
		"c.NUMERIC_SCALE, IFNULL(c.DATETIME_PRECISION, 0), IFNULL(co.ID, 0), c.COLUMN_DEFAULT, c.EXTRA, " +
		"IFNULL(c.GENERATION_EXPRESSION, ''), c.COLUMN_COMMENT " +
		"FROM information_schema.COLUMNS c LEFT JOIN information_schema.COLLATIONS co ON co.COLLATION_NAME = c.COLLATION_NAME " +
		"WHERE c.TABLE_SCHEMA = ? AND c.TABLE_NAME = ? ORDER BY c.ORDINAL_POSITION"

	indexQuery = "SELECT INDEX_NAME, NON_UNIQUE, COLUMN_NAME, SUB_PART, COLLATION, INDEX_TYPE, IS_VISIBLE, INDEX_COMMENT " +
		"FROM information_schema.STATISTICS WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ? " +
		"ORDER BY INDEX_NAME <> 'PRIMARY', INDEX_NAME, SEQ_IN_INDEX"

	listQuery = "SELECT TABLE_NAME FROM information_schema.TABLES " +
		"WHERE TABLE_SCHEMA = ? AND TABLE_TYPE = 'BASE TABLE' ORDER BY TABLE_NAME"
)

// MySQL error numbers that mean the object is missing.
const (
	errUnknownDatabase = 1049
	errNoSuchTable     = 1146
)

// createOptionKeys maps CREATE_OPTIONS keys to catalog option keys.
var createOptionKeys = map[string]string{
	"max_rows":           metadata.TableOptionMaxRows,
	"min_rows":           metadata.TableOptionMinRows,
	"avg_row_length":     metadata.TableOptionAvgRowLength,
	"pack_keys":          metadata.TableOptionPackKeys,
	"checksum":           metadata.TableOptionChecksum,
	"delay_key_write":    metadata.TableOptionDelayKeyWrite,
	"stats_persistent":   metadata.TableOptionStatsPersistent,
	"stats_auto_recalc":  metadata.TableOptionStatsAutoRecalc,
	"stats_sample_pages": metadata.TableOptionStatsSamplePages,
	"key_block_size":     metadata.TableOptionKeyBlockSize,
	"row_format":         metadata.TableOptionRowType,
	"compression":        metadata.TableOptionCompress,
	"encryption":         metadata.TableOptionEncryptType,
}

// MySQLProvider reads table records from a live server's
// information_schema.
// 从 information_schema 读取表定义
type MySQLProvider struct {
	db *sql.DB
}

// NewMySQLProvider wraps an open connection pool.
func NewMySQLProvider(db *sql.DB) *MySQLProvider {
	return &MySQLProvider{db: db}
}

// OpenMySQL validates dsn and opens a pool with the go-sql-driver driver.
func OpenMySQL(ctx context.Context, dsn string) (*sql.DB, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, errors.Wrap(err, "parse mysql dsn")
	}
	// TIMESTAMP defaults are read back as UTC literals
	if cfg.Params == nil {
		cfg.Params = map[string]string{}
	}
	if _, ok := cfg.Params["time_zone"]; !ok {
		cfg.Params["time_zone"] = "'+00:00'"
	}
	db, err := sql.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return nil, errors.Wrap(err, "open mysql")
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "connect to %s", cfg.Addr)
	}
	return db, nil
}

// LoadTable implements Provider.
func (p *MySQLProvider) LoadTable(ctx context.Context, schema, table string) (*metadata.TableMetadata, error) {
	tab := &metadata.TableMetadata{Schema: schema, Name: table, Options: metadata.Properties{}}
	var createOptions string
	err := p.db.QueryRowContext(ctx, tableQuery, schema, table).
		Scan(&tab.Engine, &tab.CollationID, &tab.Comment, &tab.RowFormat, &createOptions)
	if err == sql.ErrNoRows {
		return nil, notFound(schema, table)
	}
	if err != nil {
		return nil, p.queryError(err, schema, table)
	}
	partitioned := applyCreateOptions(tab.Options, createOptions)

	mbMaxLen, err := p.loadColumns(ctx, tab)
	if err != nil {
		return nil, err
	}
	if err := p.loadIndexes(ctx, tab, mbMaxLen); err != nil {
		return nil, err
	}
	if partitioned {
		if err := p.loadPartitions(ctx, tab); err != nil {
			return nil, err
		}
	}
	if err := tab.Normalize(); err != nil {
		return nil, errors.WithStack(err)
	}
	logger.Debugf("loaded %s from information_schema: %d columns, %d indexes, %d partitions",
		tab.QualifiedName(), len(tab.Columns), len(tab.Indexes), len(tab.Partitions))
	return tab, nil
}

// ListTables implements Provider.
func (p *MySQLProvider) ListTables(ctx context.Context, schema string) ([]string, error) {
	rows, err := p.db.QueryContext(ctx, listQuery, schema)
	if err != nil {
		return nil, p.queryError(err, schema, "")
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, errors.Wrap(err, "scan table name")
		}
		names = append(names, name)
	}
	return names, errors.Wrapf(rows.Err(), "list schema %s", schema)
}

func (p *MySQLProvider) queryError(err error, schema, table string) error {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && (myErr.Number == errUnknownDatabase || myErr.Number == errNoSuchTable) {
		return notFound(schema, table)
	}
	if table == "" {
		return errors.Wrapf(err, "query schema %s", schema)
	}
	return errors.Wrapf(err, "query %s.%s", schema, table)
}

// applyCreateOptions copies the recognised CREATE_OPTIONS entries into
// opts and reports whether the table is partitioned.
func applyCreateOptions(opts metadata.Properties, raw string) bool {
	partitioned := false
	for _, field := range strings.Fields(raw) {
		key, value, hasValue := strings.Cut(field, "=")
		key = strings.ToLower(key)
		if !hasValue {
			if key == "partitioned" {
				partitioned = true
			}
			continue
		}
		if target, ok := createOptionKeys[key]; ok {
			opts[target] = strings.Trim(value, "'\"")
		}
	}
	return partitioned
}

func (p *MySQLProvider) loadColumns(ctx context.Context, tab *metadata.TableMetadata) (map[string]uint32, error) {
	rows, err := p.db.QueryContext(ctx, columnQuery, tab.Schema, tab.Name)
	if err != nil {
		return nil, p.queryError(err, tab.Schema, tab.Name)
	}
	defer rows.Close()

	mbMaxLen := make(map[string]uint32)
	for rows.Next() {
		var (
			r       columnRow
			scale   sql.NullInt64
			deflt   sql.NullString
			comment sql.NullString
		)
		if err := rows.Scan(&r.name, &r.position, &r.dataType, &r.columnType, &r.nullable,
			&r.charMaxLength, &r.octetLength, &r.precision, &scale, &r.fsp, &r.collationID,
			&deflt, &r.extra, &r.generation, &comment); err != nil {
			return nil, errors.Wrapf(err, "scan column of %s", tab.QualifiedName())
		}
		if scale.Valid {
			s := uint32(scale.Int64)
			r.scale = &s
		}
		if deflt.Valid {
			r.defaultValue = &deflt.String
		}
		r.comment = comment.String
		col, err := r.toColumn()
		if err != nil {
			return nil, errors.Wrapf(err, "table %s", tab.QualifiedName())
		}
		if col.CollationID == 0 {
			col.CollationID = tab.CollationID
		}
		mbMaxLen[col.Name] = r.mbMaxLen()
		tab.Columns = append(tab.Columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrapf(err, "read columns of %s", tab.QualifiedName())
	}
	if len(tab.Columns) == 0 {
		return nil, notFound(tab.Schema, tab.Name)
	}
	return mbMaxLen, nil
}

func (p *MySQLProvider) loadIndexes(ctx context.Context, tab *metadata.TableMetadata, mbMaxLen map[string]uint32) error {
	rows, err := p.db.QueryContext(ctx, indexQuery, tab.Schema, tab.Name)
	if err != nil {
		return p.queryError(err, tab.Schema, tab.Name)
	}
	defer rows.Close()

	var (
		current    *metadata.IndexMetadata
		functional = make(map[string]bool)
	)
	for rows.Next() {
		var (
			name, indexType, visible string
			nonUnique                int
			column, order, comment   sql.NullString
			subPart                  sql.NullInt64
		)
		if err := rows.Scan(&name, &nonUnique, &column, &subPart, &order, &indexType, &visible, &comment); err != nil {
			return errors.Wrapf(err, "scan index of %s", tab.QualifiedName())
		}
		if current == nil || current.Name != name {
			current = &metadata.IndexMetadata{
				Name:      name,
				Type:      indexKind(name, nonUnique, indexType),
				Algorithm: indexAlgorithm(indexType),
				Visible:   !strings.EqualFold(visible, "NO"),
				Comment:   comment.String,
			}
			tab.Indexes = append(tab.Indexes, current)
		}
		if !column.Valid {
			functional[name] = true
			continue
		}
		elem := &metadata.IndexElementMetadata{ColumnName: column.String}
		if subPart.Valid {
			elem.Length = uint32(subPart.Int64) * mbMaxLen[column.String]
		}
		switch order.String {
		case "A":
			elem.Order = metadata.OrderAsc
		case "D":
			elem.Order = metadata.OrderDesc
		}
		current.Elements = append(current.Elements, elem)
	}
	if err := rows.Err(); err != nil {
		return errors.Wrapf(err, "read indexes of %s", tab.QualifiedName())
	}
	if len(functional) == 0 {
		return nil
	}
	// Functional key parts index hidden generated columns that
	// information_schema does not expose.
	kept := tab.Indexes[:0]
	for _, idx := range tab.Indexes {
		if functional[idx.Name] {
			logger.Warnf("%s: skipping functional index %s", tab.QualifiedName(), idx.Name)
			continue
		}
		kept = append(kept, idx)
	}
	tab.Indexes = kept
	return nil
}

func indexKind(name string, nonUnique int, indexType string) metadata.IndexType {
	switch {
	case name == "PRIMARY":
		return metadata.IndexTypePrimary
	case strings.EqualFold(indexType, "FULLTEXT"):
		return metadata.IndexTypeFulltext
	case strings.EqualFold(indexType, "SPATIAL"):
		return metadata.IndexTypeSpatial
	case nonUnique == 0:
		return metadata.IndexTypeUnique
	}
	return metadata.IndexTypeMultiple
}

func indexAlgorithm(indexType string) metadata.IndexAlgorithm {
	if strings.EqualFold(indexType, "SPATIAL") {
		return metadata.IndexAlgorithmRtree
	}
	return metadata.IndexAlgorithm(indexType).Normalize()
}

// loadPartitions reads the partition clause of SHOW CREATE TABLE back
// through the partition definition parser.
func (p *MySQLProvider) loadPartitions(ctx context.Context, tab *metadata.TableMetadata) error {
	stmt := "SHOW CREATE TABLE " + partition.QuoteIdentifier(tab.Schema) + "." + partition.QuoteIdentifier(tab.Name)
	var name, ddl string
	if err := p.db.QueryRowContext(ctx, stmt).Scan(&name, &ddl); err != nil {
		return p.queryError(err, tab.Schema, tab.Name)
	}
	clause, ok := partitionClause(ddl)
	if !ok {
		return errors.Errorf("%s is partitioned but SHOW CREATE TABLE has no PARTITION BY clause", tab.QualifiedName())
	}
	def, err := partition.Parse(clause)
	if err != nil {
		return errors.Wrapf(err, "partition clause of %s", tab.QualifiedName())
	}
	*tab = *def.ApplyTo(tab)
	if tab.DefaultPartitioning == metadata.DefaultPartitioningNone {
		tab.DefaultPartitioning = metadata.DefaultPartitioningNo
	}
	if tab.SubpartitionType != metadata.SubpartitionTypeNone && tab.DefaultSubpartitioning == metadata.DefaultPartitioningNone {
		tab.DefaultSubpartitioning = metadata.DefaultPartitioningNo
	}
	return nil
}

// partitionClause cuts the PARTITION BY clause out of a CREATE TABLE
// statement, dropping the version comment around it.
func partitionClause(ddl string) (string, bool) {
	i := strings.Index(ddl, "PARTITION BY")
	if i < 0 {
		return "", false
	}
	clause := strings.TrimSpace(ddl[i:])
	clause = strings.TrimSpace(strings.TrimSuffix(clause, "*/"))
	return clause, true
}
