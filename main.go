package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

const banner = `
******************************************************************************************
 xmysql-tabledef: 数据字典到表描述的编译器
*1. compile     编译一张表并输出描述
*2. inspect     编译本地YAML表定义文件
*3. partitions  输出分区子句
*4. snapshot    导出压缩的描述快照
*5. serve       启动HTTP描述服务
*6. export      从MySQL导出表定义到YAML目录
******************************************************************************************
`

func main() {
	app := newApp()
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:        "xmysql-tabledef",
		Usage:       "compile data dictionary records into table descriptors",
		Description: banner,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path of the ini configuration file",
			},
		},
		Commands: []*cli.Command{
			compileCommand(),
			inspectCommand(),
			partitionsCommand(),
			snapshotCommand(),
			serveCommand(),
			exportCommand(),
		},
	}
}
