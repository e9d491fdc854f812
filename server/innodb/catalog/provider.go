// Package catalog loads table records from a persistent data dictionary.
package catalog

import (
	"context"

	"github.com/pkg/errors"

	"github.com/zhukovaskychina/xmysql-tabledef/server/innodb/metadata"
)

// ErrTableNotFound is the cause of every lookup that finds no table.
var ErrTableNotFound = errors.New("table not found")

// Provider reads catalog records.
// 数据字典读取接口
type Provider interface {
	// LoadTable returns the record of schema.table.
	LoadTable(ctx context.Context, schema, table string) (*metadata.TableMetadata, error)
	// ListTables returns the table names of a schema in name order.
	ListTables(ctx context.Context, schema string) ([]string, error)
}

// IsNotFound reports whether err means the table does not exist.
func IsNotFound(err error) bool {
	return errors.Cause(err) == ErrTableNotFound
}

func notFound(schema, table string) error {
	return errors.Wrapf(ErrTableNotFound, "%s.%s", schema, table)
}
