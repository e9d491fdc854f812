package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhukovaskychina/xmysql-tabledef/server/conf"
	"github.com/zhukovaskychina/xmysql-tabledef/server/innodb/catalog"
	"github.com/zhukovaskychina/xmysql-tabledef/server/innodb/snapshot"
	"github.com/zhukovaskychina/xmysql-tabledef/server/innodb/tableshare"
)

const ordersYAML = `
schema: shop
name: orders
engine: InnoDB
collation_id: 255
columns:
  - name: id
    type: LONG
    char_length: 11
  - name: year
    type: LONG
    char_length: 11
indexes:
  - name: PRIMARY
    type: PRIMARY
    visible: true
    elements:
      - column_name: id
      - column_name: year
partition_type: HASH
partition_expression: year
default_partitioning: "NUMBER"
partitions:
  - name: p0
  - name: p1
    number: 1
`

// setup writes a catalog and a config file and returns the config path.
func setup(t *testing.T, extra string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	catalogDir := filepath.Join(dir, "catalog")
	require.NoError(t, os.MkdirAll(filepath.Join(catalogDir, "shop"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(catalogDir, "shop", "orders.yaml"), []byte(ordersYAML), 0o644))

	cfgPath := filepath.Join(dir, "tabledef.ini")
	doc := "[logs]\nlog_level = error\n\n[catalog]\nsource = yaml\nyaml_dir = " + catalogDir + "\n" + extra
	require.NoError(t, os.WriteFile(cfgPath, []byte(doc), 0o644))
	return dir, cfgPath
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	app := newApp()
	var out, errOut bytes.Buffer
	app.Writer = &out
	app.ErrWriter = &errOut
	err := app.Run(append([]string{"xmysql-tabledef"}, args...))
	return out.String(), err
}

func TestApp_Compile(t *testing.T) {
	_, cfgPath := setup(t, "")

	out, err := run(t, "--config", cfgPath, "compile", "shop", "orders")
	require.NoError(t, err)

	var desc tableshare.TableDescriptor
	require.NoError(t, json.Unmarshal([]byte(out), &desc))
	assert.Equal(t, "orders", desc.Name)
	require.NotNil(t, desc.Partition)
	assert.Equal(t, 2, desc.Partition.NumParts)

	_, err = run(t, "--config", cfgPath, "compile", "shop")
	assert.Error(t, err)

	_, err = run(t, "--config", cfgPath, "compile", "shop", "missing")
	require.Error(t, err)
	assert.True(t, catalog.IsNotFound(err))
}

func TestApp_Inspect(t *testing.T) {
	dir, cfgPath := setup(t, "")

	out, err := run(t, "--config", cfgPath, "inspect", filepath.Join(dir, "catalog", "shop", "orders.yaml"))
	require.NoError(t, err)
	assert.Contains(t, out, `"name": "orders"`)

	_, err = run(t, "--config", cfgPath, "inspect", filepath.Join(dir, "nope.yaml"))
	assert.Error(t, err)
}

func TestApp_Partitions(t *testing.T) {
	_, cfgPath := setup(t, "")

	out, err := run(t, "--config", cfgPath, "partitions", "shop", "orders")
	require.NoError(t, err)
	assert.Contains(t, out, "PARTITION BY HASH (year)")
}

func TestApp_Snapshot(t *testing.T) {
	dir, cfgPath := setup(t, "\n[snapshot]\ncompress = lz4\n")
	path := filepath.Join(dir, "orders.snap")

	_, err := run(t, "--config", cfgPath, "snapshot", "--out", path, "shop", "orders")
	require.NoError(t, err)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	desc, err := snapshot.Read(f)
	require.NoError(t, err)
	assert.Equal(t, "orders", desc.Name)

	_, err = run(t, "--config", cfgPath, "snapshot", "--compress", "gzip", "shop", "orders")
	assert.Error(t, err)
}

func TestApp_Export(t *testing.T) {
	dir, cfgPath := setup(t, "")
	target := filepath.Join(dir, "exported")

	_, err := run(t, "--config", cfgPath, "export", "--dir", target, "shop")
	require.NoError(t, err)

	names, err := catalog.NewYAMLProvider(target).ListTables(context.Background(), "shop")
	require.NoError(t, err)
	assert.Equal(t, []string{"orders"}, names)
}

func TestNewCompiler_Config(t *testing.T) {
	cfg, err := conf.NewCfg().LoadString("[engine.Archive]\ncapabilities = keyread_only\n")
	require.NoError(t, err)
	compiler, err := newCompiler(cfg)
	require.NoError(t, err)
	assert.NotNil(t, compiler)

	cfg, err = conf.NewCfg().LoadString("[compiler]\ndefault_collation_id = 9999\n")
	require.NoError(t, err)
	_, err = newCompiler(cfg)
	assert.Error(t, err)
}
