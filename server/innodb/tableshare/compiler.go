package tableshare

import (
	"fmt"

	jerrors "github.com/juju/errors"
	"github.com/sirupsen/logrus"

	"github.com/zhukovaskychina/xmysql-tabledef/logger"
	"github.com/zhukovaskychina/xmysql-tabledef/server/innodb/metadata"
)

// DefaultCollationID is utf8mb4_0900_ai_ci.
const DefaultCollationID uint32 = 255

// Compiler turns catalog records into table descriptors. It holds only
// read-only collaborators, so one Compiler serves concurrent compilations.
// 将数据字典记录编译为运行时表描述
type Compiler struct {
	engines    EngineRegistry
	collations CollationResolver
	parsers    ParserLoader
	syntax     SyntaxGenerator

	defaultCollation uint32
	memoryLimit      int64
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithDefaultCollation sets the collation used when a table collation does
// not resolve.
func WithDefaultCollation(id uint32) Option {
	return func(c *Compiler) {
		c.defaultCollation = id
	}
}

// WithMemoryLimit caps the bytes a single descriptor may allocate. Zero
// means unlimited.
func WithMemoryLimit(limit int64) Option {
	return func(c *Compiler) {
		c.memoryLimit = limit
	}
}

// NewCompiler wires a compiler to its collaborators.
func NewCompiler(engines EngineRegistry, collations CollationResolver, parsers ParserLoader, syntax SyntaxGenerator, opts ...Option) *Compiler {
	c := &Compiler{
		engines:          engines,
		collations:       collations,
		parsers:          parsers,
		syntax:           syntax,
		defaultCollation: DefaultCollationID,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// compilation is the state of one Compile call.
type compilation struct {
	c      *Compiler
	tab    *metadata.TableMetadata
	desc   *TableDescriptor
	diags  Diagnostics
	mem    *memRoot
	engine EngineHandle
	log    *logrus.Entry

	// fieldByOrdinal maps column ordinal positions to field indexes.
	fieldByOrdinal map[uint32]int
	// visibleColumns are the non-hidden columns in logical order.
	visibleColumns []*metadata.ColumnMetadata
	collations     []CollationHandle
}

func (c *Compiler) newCompilation(tab *metadata.TableMetadata) *compilation {
	return &compilation{
		c:   c,
		tab: tab,
		desc: &TableDescriptor{
			Schema:          tab.Schema,
			Name:            tab.Name,
			PrimaryKey:      NoKey,
			RowIDField:      NoKey,
			NextNumberField: NoKey,
			NextNumberIndex: NoKey,
			NextNumberPart:  NoKey,
		},
		mem: newMemRoot(tab.QualifiedName(), c.memoryLimit),
		log: logger.WithFields(logrus.Fields{"table": tab.QualifiedName()}),
	}
}

func (cp *compilation) tableName() string {
	return cp.tab.QualifiedName()
}

func (cp *compilation) warn(code uint16, object, format string, args ...interface{}) {
	d := Diagnostic{Severity: SeverityWarning, Code: code, Object: object}
	d.Message = fmt.Sprintf(format, args...)
	cp.diags = append(cp.diags, d)
	cp.log.WithFields(logrus.Fields{"object": object, "code": code}).Warn(d.Message)
}

// Compile runs the pipeline: table options, record layout, keys,
// partitions, then assembly. The first failing stage aborts the call and no
// descriptor is returned. Diagnostics collected before a failure are still
// returned.
func (c *Compiler) Compile(tab *metadata.TableMetadata) (*TableDescriptor, Diagnostics, error) {
	if tab == nil {
		return nil, nil, newError(KindInvalidMetadata, "", "", "no table metadata")
	}
	cp := c.newCompilation(tab)
	if tab.Name == "" {
		return nil, nil, newError(KindInvalidMetadata, tab.Schema, "", "table name is empty")
	}

	stages := []struct {
		name string
		run  func() error
	}{
		{"table options", cp.resolveTableOptions},
		{"record layout", cp.compileRecordLayout},
		{"keys", cp.compileKeys},
		{"partitions", cp.compilePartitionStage},
		{"assembly", cp.assemble},
	}
	for _, stage := range stages {
		cp.log.Debugf("compiling %s", stage.name)
		if err := stage.run(); err != nil {
			cp.log.WithFields(logrus.Fields{"stage": stage.name}).Debugf("compilation failed: %v", err)
			return nil, cp.diags, jerrors.Annotatef(err, "compile %s", stage.name)
		}
	}
	cp.log.Debugf("compiled %d fields, %d keys, %d bytes in use", len(cp.desc.Fields), len(cp.desc.Keys), cp.mem.used)
	return cp.desc, cp.diags, nil
}

// CompilePartitions runs only the partition stage for tab. The partition
// tree of a table depends on nothing but its engine and partition records,
// so this is what a canonical definition text is re-parsed through.
func (c *Compiler) CompilePartitions(tab *metadata.TableMetadata) (*PartitionInfo, error) {
	if tab == nil {
		return nil, newError(KindInvalidMetadata, "", "", "no table metadata")
	}
	cp := c.newCompilation(tab)
	engine, err := cp.resolveEngine()
	if err != nil {
		return nil, newError(KindInvalidMetadata, cp.tableName(), "", "partition engine: %v", jerrors.Cause(err))
	}
	cp.engine = engine
	info, err := cp.compilePartitions()
	if err != nil {
		return nil, jerrors.Annotate(err, "compile partitions")
	}
	return info, nil
}
