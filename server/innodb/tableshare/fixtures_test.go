package tableshare

import (
	"fmt"
	"strings"

	"github.com/zhukovaskychina/xmysql-tabledef/server/innodb/metadata"
)

type fakeEngine struct {
	name string
	caps map[Capability]bool
}

func (e *fakeEngine) Name() string { return e.name }

func (e *fakeEngine) Supports(c Capability) bool { return e.caps[c] }

type fakeEngines map[string]*fakeEngine

func (f fakeEngines) ResolveEngine(name string) (EngineHandle, bool) {
	e, ok := f[strings.ToLower(name)]
	if !ok {
		return nil, false
	}
	return e, true
}

type fakeCollation struct {
	id      uint32
	name    string
	charset string
	binary  bool
}

func (c *fakeCollation) ID() uint32       { return c.id }
func (c *fakeCollation) Name() string     { return c.name }
func (c *fakeCollation) Charset() string  { return c.charset }
func (c *fakeCollation) BinarySort() bool { return c.binary }

type fakeCollations map[uint32]*fakeCollation

func (f fakeCollations) ResolveCollation(id uint32) (CollationHandle, bool) {
	c, ok := f[id]
	if !ok {
		return nil, false
	}
	return c, true
}

type fakeParser string

func (p fakeParser) Name() string { return string(p) }

type fakeParsers []string

func (f fakeParsers) LoadFulltextParser(name string) (ParserHandle, bool) {
	for _, p := range f {
		if p == name {
			return fakeParser(p), true
		}
	}
	return nil, false
}

// fakeSyntax renders just enough to tell trees apart.
type fakeSyntax struct {
	calls int
}

func (s *fakeSyntax) GeneratePartitionSyntax(info *PartitionInfo) (string, error) {
	s.calls++
	return fmt.Sprintf("PARTITION BY %s PARTITIONS %d", info.Method, info.NumParts), nil
}

var allCapabilities = map[Capability]bool{
	CapPartitioning:          true,
	CapExtendedKeys:          true,
	CapPrimaryKeyInReadIndex: true,
	CapAnyIndexMayBeUnique:   false,
	CapKeyreadOnly:           true,
	CapReadOrder:             true,
}

func testEngines() fakeEngines {
	return fakeEngines{
		"innodb": {name: "InnoDB", caps: allCapabilities},
		"myisam": {name: "MyISAM", caps: map[Capability]bool{
			CapKeyreadOnly: true,
			CapReadOrder:   true,
		}},
	}
}

func testCollations() fakeCollations {
	return fakeCollations{
		255: {id: 255, name: "utf8mb4_0900_ai_ci", charset: "utf8mb4"},
		63:  {id: 63, name: "binary", charset: "binary", binary: true},
		8:   {id: 8, name: "latin1_swedish_ci", charset: "latin1"},
	}
}

func newTestCompiler(opts ...Option) (*Compiler, *fakeSyntax) {
	syntax := &fakeSyntax{}
	return NewCompiler(testEngines(), testCollations(), fakeParsers{"ngram"}, syntax, opts...), syntax
}

// twoColumnTable is id INT NOT NULL, name VARCHAR(20) NULL with a unique
// key on id.
func twoColumnTable() *metadata.TableMetadata {
	return metadata.NewTableBuilder("test", "t1").
		AddColumn("id", metadata.ColumnTypeLong).
		AddColumn("name", metadata.ColumnTypeVarchar, metadata.WithLength(20), metadata.Nullable()).
		AddIndex("uk_id", metadata.IndexTypeUnique, metadata.Parts("id")).
		MustBuild()
}
