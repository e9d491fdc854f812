package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"github.com/zhukovaskychina/xmysql-tabledef/logger"
	"github.com/zhukovaskychina/xmysql-tabledef/server/conf"
	"github.com/zhukovaskychina/xmysql-tabledef/server/innodb/catalog"
	"github.com/zhukovaskychina/xmysql-tabledef/server/innodb/partition"
	"github.com/zhukovaskychina/xmysql-tabledef/server/innodb/registry"
	"github.com/zhukovaskychina/xmysql-tabledef/server/innodb/snapshot"
	"github.com/zhukovaskychina/xmysql-tabledef/server/innodb/tableshare"
	"github.com/zhukovaskychina/xmysql-tabledef/server/net"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// environment is everything a command needs, built from the configuration.
type environment struct {
	cfg      *conf.Cfg
	compiler *tableshare.Compiler
	provider catalog.Provider
	closers  []io.Closer
}

func (env *environment) Close() {
	for _, c := range env.closers {
		_ = c.Close()
	}
}

func loadConfig(c *cli.Context) (*conf.Cfg, error) {
	cfg, err := conf.NewCfg().Load(&conf.CommandLineArgs{ConfigPath: c.String("config")})
	if err != nil {
		return nil, err
	}
	if err := logger.InitLogger(logger.LogConfig{
		ErrorLogPath: cfg.LogError,
		InfoLogPath:  cfg.LogInfos,
		LogLevel:     cfg.LogLevel,
	}); err != nil {
		return nil, errors.Wrap(err, "init logger")
	}
	return cfg, nil
}

// newCompiler builds the registries named by cfg on top of the defaults.
func newCompiler(cfg *conf.Cfg) (*tableshare.Compiler, error) {
	engines := registry.DefaultEngines()
	if err := engines.LoadEngines(cfg.Raw); err != nil {
		return nil, errors.Wrap(err, "load engines")
	}
	collations := registry.DefaultCollations()
	if cfg.CollationsFile != "" {
		if err := collations.LoadCollationFile(cfg.CollationsFile); err != nil {
			return nil, err
		}
	}
	if _, ok := collations.ResolveCollation(cfg.DefaultCollationID); !ok {
		return nil, errors.Errorf("default collation %d is not registered", cfg.DefaultCollationID)
	}
	opts := []tableshare.Option{tableshare.WithDefaultCollation(cfg.DefaultCollationID)}
	if cfg.MemoryLimit > 0 {
		opts = append(opts, tableshare.WithMemoryLimit(cfg.MemoryLimit))
	}
	return tableshare.NewCompiler(engines, collations,
		registry.NewParserRegistry(cfg.FulltextParsers...), partition.NewGenerator(), opts...), nil
}

func newProvider(ctx context.Context, cfg *conf.Cfg) (catalog.Provider, io.Closer, error) {
	switch cfg.CatalogSource {
	case conf.SourceMySQL:
		db, err := catalog.OpenMySQL(ctx, cfg.MySQLDSN)
		if err != nil {
			return nil, nil, err
		}
		return catalog.NewMySQLProvider(db), db, nil
	default:
		return catalog.NewYAMLProvider(cfg.YAMLDir), nil, nil
	}
}

func newEnvironment(c *cli.Context, withProvider bool) (*environment, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	compiler, err := newCompiler(cfg)
	if err != nil {
		return nil, err
	}
	env := &environment{cfg: cfg, compiler: compiler}
	if withProvider {
		provider, closer, err := newProvider(c.Context, cfg)
		if err != nil {
			return nil, err
		}
		env.provider = provider
		if closer != nil {
			env.closers = append(env.closers, closer)
		}
	}
	return env, nil
}

func tableArgs(c *cli.Context) (string, string, error) {
	if c.NArg() != 2 {
		return "", "", errors.Errorf("%s expects <schema> <table>", c.Command.Name)
	}
	return c.Args().Get(0), c.Args().Get(1), nil
}

func printDiagnostics(w io.Writer, diags tableshare.Diagnostics) {
	for _, d := range diags {
		fmt.Fprintf(w, "%s %d: %s\n", d.Severity, d.Code, d.Message)
	}
}

func printJSON(w io.Writer, v interface{}) error {
	body, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(body))
	return err
}

func compileCommand() *cli.Command {
	return &cli.Command{
		Name:      "compile",
		Usage:     "compile one table from the configured catalog",
		ArgsUsage: "<schema> <table>",
		Action: func(c *cli.Context) error {
			schema, table, err := tableArgs(c)
			if err != nil {
				return err
			}
			env, err := newEnvironment(c, true)
			if err != nil {
				return err
			}
			defer env.Close()

			tab, err := env.provider.LoadTable(c.Context, schema, table)
			if err != nil {
				return err
			}
			desc, diags, err := env.compiler.Compile(tab)
			if err != nil {
				return err
			}
			printDiagnostics(c.App.ErrWriter, diags)
			return printJSON(c.App.Writer, desc)
		},
	}
}

func inspectCommand() *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Usage:     "compile a table definition file",
		ArgsUsage: "<file.yaml>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return errors.New("inspect expects one file")
			}
			env, err := newEnvironment(c, false)
			if err != nil {
				return err
			}
			f, err := os.Open(c.Args().First())
			if err != nil {
				return errors.WithStack(err)
			}
			defer f.Close()

			tab, err := catalog.DecodeTable(f)
			if err != nil {
				return errors.Wrap(err, c.Args().First())
			}
			desc, diags, err := env.compiler.Compile(tab)
			if err != nil {
				return err
			}
			printDiagnostics(c.App.ErrWriter, diags)
			return printJSON(c.App.Writer, desc)
		},
	}
}

func partitionsCommand() *cli.Command {
	return &cli.Command{
		Name:      "partitions",
		Usage:     "print the canonical partition clause of a table",
		ArgsUsage: "<schema> <table>",
		Action: func(c *cli.Context) error {
			schema, table, err := tableArgs(c)
			if err != nil {
				return err
			}
			env, err := newEnvironment(c, true)
			if err != nil {
				return err
			}
			defer env.Close()

			tab, err := env.provider.LoadTable(c.Context, schema, table)
			if err != nil {
				return err
			}
			info, err := env.compiler.CompilePartitions(tab)
			if err != nil {
				return err
			}
			if info == nil {
				return errors.Errorf("%s is not partitioned", tab.QualifiedName())
			}
			_, err = fmt.Fprintln(c.App.Writer, info.Text)
			return err
		},
	}
}

func snapshotCommand() *cli.Command {
	return &cli.Command{
		Name:      "snapshot",
		Usage:     "write a compiled descriptor snapshot",
		ArgsUsage: "<schema> <table>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "out",
				Aliases: []string{"o"},
				Usage:   "output file, stdout when empty",
			},
			&cli.StringFlag{
				Name:  "compress",
				Usage: "none, snappy or lz4; defaults to [snapshot] compress",
			},
		},
		Action: func(c *cli.Context) error {
			schema, table, err := tableArgs(c)
			if err != nil {
				return err
			}
			env, err := newEnvironment(c, true)
			if err != nil {
				return err
			}
			defer env.Close()

			name := c.String("compress")
			if name == "" {
				name = env.cfg.SnapshotCompress
			}
			compress, err := snapshot.ParseCompressType(name)
			if err != nil {
				return err
			}
			tab, err := env.provider.LoadTable(c.Context, schema, table)
			if err != nil {
				return err
			}
			desc, diags, err := env.compiler.Compile(tab)
			if err != nil {
				return err
			}
			printDiagnostics(c.App.ErrWriter, diags)

			out := c.App.Writer
			if path := c.String("out"); path != "" {
				f, err := os.Create(path)
				if err != nil {
					return errors.WithStack(err)
				}
				defer f.Close()
				out = f
			}
			return snapshot.Write(out, desc, compress)
		},
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "serve compiled descriptors over HTTP",
		Action: func(c *cli.Context) error {
			env, err := newEnvironment(c, true)
			if err != nil {
				return err
			}
			defer env.Close()

			cache, err := net.NewDescriptorCache(env.cfg.CacheSize)
			if err != nil {
				return err
			}
			handler := net.NewDescriptorHandler(env.provider, env.compiler, cache)
			server := net.NewServer(handler, net.WithLocalAddress(env.cfg.ListenAddress()))

			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()
			return server.RunContext(ctx)
		},
	}
}

func exportCommand() *cli.Command {
	return &cli.Command{
		Name:      "export",
		Usage:     "copy table definitions from the configured catalog into a YAML directory",
		ArgsUsage: "<schema> [table...]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "dir",
				Usage:    "target directory",
				Required: true,
			},
			&cli.BoolFlag{
				Name:  "check",
				Usage: "compile every table before writing it",
				Value: true,
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return errors.New("export expects <schema> [table...]")
			}
			env, err := newEnvironment(c, true)
			if err != nil {
				return err
			}
			defer env.Close()

			schema := c.Args().First()
			tables := c.Args().Tail()
			if len(tables) == 0 {
				if tables, err = env.provider.ListTables(c.Context, schema); err != nil {
					return err
				}
			}
			return exportTables(c.Context, env, catalog.NewYAMLProvider(c.String("dir")), schema, tables, c.Bool("check"))
		},
	}
}

func exportTables(ctx context.Context, env *environment, target *catalog.YAMLProvider, schema string, tables []string, check bool) error {
	for _, name := range tables {
		tab, err := env.provider.LoadTable(ctx, schema, name)
		if err != nil {
			return err
		}
		if check {
			if _, _, err := env.compiler.Compile(tab); err != nil {
				return errors.Wrapf(err, "export %s", tab.QualifiedName())
			}
		}
		path, err := target.SaveTable(tab)
		if err != nil {
			return err
		}
		logger.Infof("exported %s to %s", tab.QualifiedName(), path)
	}
	return nil
}
