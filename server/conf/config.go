package conf

import (
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/ini.v1"

	"github.com/zhukovaskychina/xmysql-tabledef/logger"
)

var ConfigPath string

// Catalog sources.
const (
	SourceYAML  = "yaml"
	SourceMySQL = "mysql"
)

type CommandLineArgs struct {
	ConfigPath string
}

/*
*
[logs]
log_error  = /var/log/tabledef/error.log
log_infos  = /var/log/tabledef/tabledef.log
log_level  = info

[compiler]
default_collation_id = 255
memory_limit         = 0
collations_file      = conf/collations.toml

[catalog]
source    = yaml
yaml_dir  = catalog
mysql_dsn = root@tcp(127.0.0.1:3306)/

[snapshot]
compress = snappy

[http]
bind_address = 127.0.0.1
port         = 8080
cache_size   = 256

[parsers]
fulltext = ngram, mecab

[engine.Archive]
capabilities = keyread_only
*/
type Cfg struct {
	Raw *ini.File

	// logs
	LogError string `default:"" yaml:"log_error" json:"log_error,omitempty"`
	LogInfos string `default:"" yaml:"log_infos" json:"log_infos,omitempty"`
	LogLevel string `default:"info" yaml:"log_level" json:"log_level,omitempty"`

	// compiler
	DefaultCollationID uint32 `default:"255" yaml:"default_collation_id" json:"default_collation_id,omitempty"`
	MemoryLimit        int64  `default:"0" yaml:"memory_limit" json:"memory_limit,omitempty"`
	CollationsFile     string `default:"" yaml:"collations_file" json:"collations_file,omitempty"`

	// catalog
	CatalogSource string `default:"yaml" yaml:"source" json:"source,omitempty"`
	YAMLDir       string `default:"catalog" yaml:"yaml_dir" json:"yaml_dir,omitempty"`
	MySQLDSN      string `default:"" yaml:"mysql_dsn" json:"mysql_dsn,omitempty"`

	// snapshot
	SnapshotCompress string `default:"none" yaml:"compress" json:"compress,omitempty"`

	// http
	BindAddress string `default:"127.0.0.1" yaml:"bind_address" json:"bind_address,omitempty"`
	Port        int    `default:"8080" yaml:"port" json:"port,omitempty"`
	CacheSize   int    `default:"256" yaml:"cache_size" json:"cache_size,omitempty"`

	// parsers
	FulltextParsers []string `yaml:"fulltext" json:"fulltext,omitempty"`
}

func NewCfg() *Cfg {
	return &Cfg{
		Raw:                ini.Empty(),
		LogLevel:           "info",
		DefaultCollationID: 255,
		CatalogSource:      SourceYAML,
		YAMLDir:            "catalog",
		SnapshotCompress:   "none",
		BindAddress:        "127.0.0.1",
		Port:               8080,
		CacheSize:          256,
	}
}

// Load reads the ini file named by args over the defaults. A missing file
// leaves the defaults in place.
func (cfg *Cfg) Load(args *CommandLineArgs) (*Cfg, error) {
	setHomePath(args)
	iniFile, err := cfg.loadConfiguration(args)
	if err != nil {
		return nil, err
	}
	return cfg.apply(iniFile)
}

// LoadString is Load over an in-memory document.
func (cfg *Cfg) LoadString(doc string) (*Cfg, error) {
	iniFile, err := ini.Load([]byte(doc))
	if err != nil {
		return nil, errors.Wrap(err, "parse configuration")
	}
	return cfg.apply(iniFile)
}

func (cfg *Cfg) apply(iniFile *ini.File) (*Cfg, error) {
	cfg.Raw = iniFile
	cfg.parseLogsCfg(cfg.Raw.Section("logs"))
	if err := cfg.parseCompilerCfg(cfg.Raw.Section("compiler")); err != nil {
		return nil, err
	}
	if err := cfg.parseCatalogCfg(cfg.Raw.Section("catalog")); err != nil {
		return nil, err
	}
	cfg.SnapshotCompress, _ = valueAsString(cfg.Raw.Section("snapshot"), "compress", cfg.SnapshotCompress)
	if err := cfg.parseHTTPCfg(cfg.Raw.Section("http")); err != nil {
		return nil, err
	}
	cfg.parseParsersCfg(cfg.Raw.Section("parsers"))
	return cfg, nil
}

func setHomePath(args *CommandLineArgs) {
	if args.ConfigPath != "" {
		ConfigPath = args.ConfigPath
		return
	}

	ConfigPath, _ = filepath.Abs(".")

}

func (cfg *Cfg) loadConfiguration(args *CommandLineArgs) (*ini.File, error) {
	// 如果没有指定配置文件路径，使用默认的conf/tabledef.ini
	configFile := "conf/tabledef.ini"
	if args.ConfigPath != "" {
		configFile = args.ConfigPath
	}

	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		if args.ConfigPath != "" {
			return nil, errors.Errorf("configuration file %s does not exist", configFile)
		}
		logger.Debugf("配置文件不存在: %s，使用默认配置", configFile)
		return ini.Empty(), nil
	}

	parsedFile, err := ini.Load(configFile)
	if err != nil {
		return nil, errors.Wrapf(err, "parse configuration %s", configFile)
	}

	logger.Debugf("成功加载配置文件: %s", configFile)
	return parsedFile, nil
}

func valueAsString(section *ini.Section, keyName string, defaultValue string) (value string, err error) {
	if section == nil {
		return defaultValue, nil
	}
	value = section.Key(keyName).MustString(defaultValue)
	if value == "" {
		value = defaultValue
	}
	return value, nil
}

// GetString 获取配置项的字符串值
func (cfg *Cfg) GetString(key string) string {
	parts := strings.Split(key, ".")
	if len(parts) < 2 {
		return ""
	}

	section := cfg.Raw.Section(parts[0])
	if section == nil {
		return ""
	}

	value, err := valueAsString(section, strings.Join(parts[1:], "."), "")
	if err != nil {
		return ""
	}
	return value
}

// GetInt 获取配置项的整数值
func (cfg *Cfg) GetInt(key string) int {
	parts := strings.Split(key, ".")
	if len(parts) < 2 {
		return 0
	}

	section := cfg.Raw.Section(parts[0])
	if section == nil {
		return 0
	}

	return section.Key(strings.Join(parts[1:], ".")).MustInt(0)
}

// ListenAddress is bind_address:port of the descriptor service.
func (cfg *Cfg) ListenAddress() string {
	return net.JoinHostPort(cfg.BindAddress, strconv.Itoa(cfg.Port))
}

func (cfg *Cfg) parseLogsCfg(section *ini.Section) *Cfg {
	if section == nil {
		return cfg
	}

	cfg.LogError, _ = valueAsString(section, "log_error", cfg.LogError)
	cfg.LogInfos, _ = valueAsString(section, "log_infos", cfg.LogInfos)

	logLevel, err := valueAsString(section, "log_level", cfg.LogLevel)
	if err == nil {
		cfg.LogLevel = strings.ToLower(logLevel)
		// 验证日志级别是否有效
		validLevels := []string{"debug", "info", "warn", "error", "fatal", "panic"}
		isValid := false
		for _, level := range validLevels {
			if cfg.LogLevel == level {
				isValid = true
				break
			}
		}
		if !isValid {
			logger.Debugf("警告: 无效的日志级别 '%s', 使用默认级别 'info'", logLevel)
			cfg.LogLevel = "info"
		}
	}

	return cfg
}

func (cfg *Cfg) parseCompilerCfg(section *ini.Section) error {
	if section == nil {
		return nil
	}
	if section.HasKey("default_collation_id") {
		id, err := section.Key("default_collation_id").Uint()
		if err != nil || id == 0 {
			return errors.Errorf("compiler.default_collation_id: invalid value %q", section.Key("default_collation_id").String())
		}
		cfg.DefaultCollationID = uint32(id)
	}
	if section.HasKey("memory_limit") {
		limit, err := section.Key("memory_limit").Int64()
		if err != nil || limit < 0 {
			return errors.Errorf("compiler.memory_limit: invalid value %q", section.Key("memory_limit").String())
		}
		cfg.MemoryLimit = limit
	}
	cfg.CollationsFile, _ = valueAsString(section, "collations_file", cfg.CollationsFile)
	return nil
}

func (cfg *Cfg) parseCatalogCfg(section *ini.Section) error {
	if section == nil {
		return nil
	}
	source, _ := valueAsString(section, "source", cfg.CatalogSource)
	source = strings.ToLower(source)
	if source != SourceYAML && source != SourceMySQL {
		return errors.Errorf("catalog.source: unknown source %q", source)
	}
	cfg.CatalogSource = source
	cfg.YAMLDir, _ = valueAsString(section, "yaml_dir", cfg.YAMLDir)
	cfg.MySQLDSN, _ = valueAsString(section, "mysql_dsn", cfg.MySQLDSN)
	if source == SourceMySQL && cfg.MySQLDSN == "" {
		return errors.New("catalog.mysql_dsn is required when source = mysql")
	}
	return nil
}

func (cfg *Cfg) parseHTTPCfg(section *ini.Section) error {
	if section == nil {
		return nil
	}
	bindAddress, _ := valueAsString(section, "bind_address", cfg.BindAddress)
	if net.ParseIP(bindAddress) == nil && bindAddress != "localhost" {
		return errors.Errorf("http.bind_address: invalid address %q", bindAddress)
	}
	cfg.BindAddress = bindAddress

	port := section.Key("port").MustInt(cfg.Port)
	if port < 0 || port > 65535 {
		return errors.Errorf("http.port: %d out of range", port)
	}
	cfg.Port = port
	cfg.CacheSize = section.Key("cache_size").MustInt(cfg.CacheSize)
	return nil
}

func (cfg *Cfg) parseParsersCfg(section *ini.Section) *Cfg {
	if section == nil || !section.HasKey("fulltext") {
		return cfg
	}
	cfg.FulltextParsers = cfg.FulltextParsers[:0]
	for _, name := range section.Key("fulltext").Strings(",") {
		if name != "" {
			cfg.FulltextParsers = append(cfg.FulltextParsers, name)
		}
	}
	return cfg
}
