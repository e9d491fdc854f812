package conf

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCfg_Defaults(t *testing.T) {
	cfg := NewCfg()
	assert.Equal(t, uint32(255), cfg.DefaultCollationID)
	assert.Equal(t, SourceYAML, cfg.CatalogSource)
	assert.Equal(t, "127.0.0.1:8080", cfg.ListenAddress())
	assert.Equal(t, "none", cfg.SnapshotCompress)
}

func TestCfg_LoadString(t *testing.T) {
	cfg, err := NewCfg().LoadString(`
[logs]
log_level = DEBUG

[compiler]
default_collation_id = 45
memory_limit = 65536

[catalog]
source = MySQL
mysql_dsn = root@tcp(127.0.0.1:3306)/

[snapshot]
compress = lz4

[http]
bind_address = 0.0.0.0
port = 9090
cache_size = 16

[parsers]
fulltext = ngram, mecab

[engine.Archive]
capabilities = keyread_only
`)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, uint32(45), cfg.DefaultCollationID)
	assert.Equal(t, int64(65536), cfg.MemoryLimit)
	assert.Equal(t, SourceMySQL, cfg.CatalogSource)
	assert.Equal(t, "lz4", cfg.SnapshotCompress)
	assert.Equal(t, "0.0.0.0:9090", cfg.ListenAddress())
	assert.Equal(t, 16, cfg.CacheSize)
	assert.Equal(t, []string{"ngram", "mecab"}, cfg.FulltextParsers)
	assert.Equal(t, "keyread_only", cfg.Raw.Section("engine.Archive").Key("capabilities").String())
	assert.Equal(t, 9090, cfg.GetInt("http.port"))
	assert.Equal(t, "", cfg.GetString("nosection"))
}

func TestCfg_LoadString_Invalid(t *testing.T) {
	for _, doc := range []string{
		"[compiler]\ndefault_collation_id = 0",
		"[compiler]\nmemory_limit = -1",
		"[catalog]\nsource = postgres",
		"[catalog]\nsource = mysql",
		"[http]\nbind_address = not-an-ip",
		"[http]\nport = 70000",
	} {
		_, err := NewCfg().LoadString(doc)
		assert.Error(t, err, doc)
	}
}

func TestCfg_LoadLogLevelFallback(t *testing.T) {
	cfg, err := NewCfg().LoadString("[logs]\nlog_level = verbose")
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestCfg_Load(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tabledef.ini")
	require.NoError(t, os.WriteFile(path, []byte("[catalog]\nyaml_dir = /srv/catalog\n"), 0o644))

	cfg, err := NewCfg().Load(&CommandLineArgs{ConfigPath: path})
	require.NoError(t, err)
	assert.Equal(t, "/srv/catalog", cfg.YAMLDir)
	assert.Equal(t, path, ConfigPath)

	_, err = NewCfg().Load(&CommandLineArgs{ConfigPath: filepath.Join(t.TempDir(), "missing.ini")})
	assert.Error(t, err)
}
