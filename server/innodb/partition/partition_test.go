package partition

import (
	"testing"

	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhukovaskychina/xmysql-tabledef/server/innodb/metadata"
	"github.com/zhukovaskychina/xmysql-tabledef/server/innodb/registry"
	"github.com/zhukovaskychina/xmysql-tabledef/server/innodb/tableshare"
)

func newCompiler() *tableshare.Compiler {
	return tableshare.NewCompiler(registry.DefaultEngines(), registry.DefaultCollations(),
		registry.NewParserRegistry("ngram"), NewGenerator())
}

func baseTable(name string) *metadata.TableBuilder {
	return metadata.NewTableBuilder("test", name).
		AddColumn("id", metadata.ColumnTypeLong).
		AddColumn("year", metadata.ColumnTypeLong).
		AddColumn("code", metadata.ColumnTypeVarchar, metadata.WithLength(8))
}

func TestGenerate_Range(t *testing.T) {
	tab := baseTable("sales").
		PartitionBy(metadata.PartitionTypeRange, "year").
		AddPartition("p0", metadata.Literal(0, 0, "2000")).
		AddPartition("p1", metadata.MaxValue(0, 0)).
		MustBuild()
	info, err := newCompiler().CompilePartitions(tab)
	require.NoError(t, err)

	want := "PARTITION BY RANGE (year)\n" +
		"(PARTITION `p0` VALUES LESS THAN (2000) ENGINE = InnoDB,\n" +
		" PARTITION `p1` VALUES LESS THAN MAXVALUE ENGINE = InnoDB)"
	assert.Equal(t, want, info.Text)
}

func TestGenerate_SubpartitionsAndOptions(t *testing.T) {
	tab := baseTable("sales").
		PartitionBy(metadata.PartitionTypeList, "year").
		SubpartitionBy(metadata.SubpartitionTypeKey51, "id").
		AddPartition("p0", metadata.Literal(0, 0, "1"), metadata.NullValue(1, 0)).
		AddPartition("p1", metadata.Literal(0, 0, "2")).
		AddSubpartition("s0").
		AddSubpartition("s1").
		MustBuild()
	tab.Partitions[0].Comment = "it's old"
	tab.Partitions[0].Tablespace = "ts1"
	tab.Partitions[1].Options = metadata.Properties{
		metadata.PartitionOptionMaxRows:     "100",
		metadata.PartitionOptionNodegroupID: "3",
	}
	info, err := newCompiler().CompilePartitions(tab)
	require.NoError(t, err)

	want := "PARTITION BY LIST (year)\n" +
		"SUBPARTITION BY KEY ALGORITHM = 1 (`id`)\n" +
		"(PARTITION `p0` VALUES IN (1,NULL) TABLESPACE = `ts1` COMMENT = 'it''s old'\n" +
		" (SUBPARTITION `s0` ENGINE = InnoDB),\n" +
		" PARTITION `p1` VALUES IN (2) MAX_ROWS = 100 NODEGROUP = 3\n" +
		" (SUBPARTITION `s1` ENGINE = InnoDB))"
	assert.Equal(t, want, info.Text)
}

func TestGenerate_Schemes(t *testing.T) {
	g := NewGenerator()
	cases := []struct {
		info *tableshare.PartitionInfo
		want string
	}{
		{&tableshare.PartitionInfo{Method: tableshare.MethodHash, Linear: true, PartExpression: "id % 7"},
			"PARTITION BY LINEAR HASH (id % 7)"},
		{&tableshare.PartitionInfo{Method: tableshare.MethodHash, ListOfPartFields: true,
			KeyAlgorithm: tableshare.KeyAlgorithm55, PartFieldList: []string{"a", "we`ird"}},
			"PARTITION BY KEY (`a`,`we``ird`)"},
		{&tableshare.PartitionInfo{Method: tableshare.MethodHash, ListOfPartFields: true, IsAuto: true,
			KeyAlgorithm: tableshare.KeyAlgorithm55}, "PARTITION BY AUTO"},
		{&tableshare.PartitionInfo{Method: tableshare.MethodRange, ColumnList: true, PartFieldList: []string{"a", "b"}},
			"PARTITION BY RANGE COLUMNS(`a`,`b`)"},
	}
	for _, tc := range cases {
		text, err := g.GeneratePartitionSyntax(tc.info)
		require.NoError(t, err)
		assert.Equal(t, tc.want+"\n()", text)
	}

	_, err := g.GeneratePartitionSyntax(nil)
	assert.Error(t, err)
	_, err = g.GeneratePartitionSyntax(&tableshare.PartitionInfo{Method: "ROUND_ROBIN"})
	assert.Error(t, err)
}

func TestParse_Definition(t *testing.T) {
	def, err := Parse("partition by range columns(`year`, code)\n" +
		"(PARTITION p0 VALUES LESS THAN (2000, 'a,b') COMMENT 'first' DATA DIRECTORY = '/d0' STORAGE ENGINE = InnoDB,\n" +
		" PARTITION `p1` VALUES LESS THAN (MAXVALUE, MAXVALUE) ENGINE InnoDB)")
	require.NoError(t, err)

	assert.Equal(t, metadata.PartitionTypeRangeColumns, def.Type)
	assert.Equal(t, "year;code", def.Expression)
	assert.Equal(t, "InnoDB", def.Engine)
	require.Len(t, def.Partitions, 2)

	p0 := def.Partitions[0]
	assert.Equal(t, "first", p0.Comment)
	assert.Equal(t, "/d0", p0.Options[metadata.PartitionOptionDataFileName])
	require.Len(t, p0.Values, 2)
	assert.Equal(t, "2000", p0.Values[0].Value)
	assert.Equal(t, "'a,b'", p0.Values[1].Value)
	assert.Equal(t, uint32(1), p0.Values[1].ColumnNum)

	p1 := def.Partitions[1]
	assert.True(t, p1.Values[0].MaxValue)
	assert.True(t, p1.Values[1].MaxValue)
	assert.Equal(t, uint32(1), p1.Number)
}

func TestParse_ListColumnsTuples(t *testing.T) {
	def, err := Parse("PARTITION BY LIST COLUMNS(`a`,`b`)\n" +
		"(PARTITION `p0` VALUES IN ((1,'x'),(2,NULL)) ENGINE = InnoDB)")
	require.NoError(t, err)
	values := def.Partitions[0].Values
	require.Len(t, values, 4)
	assert.Equal(t, uint32(1), values[3].ListNum)
	assert.Equal(t, uint32(1), values[3].ColumnNum)
	assert.True(t, values[3].IsNull)
	assert.Equal(t, "'x'", values[1].Value)
}

func TestParse_HashWithSubpartitionsNumbering(t *testing.T) {
	def, err := Parse("PARTITION BY RANGE (TO_DAYS(d))\n" +
		"SUBPARTITION BY LINEAR HASH (id)\n" +
		"(PARTITION p0 VALUES LESS THAN (TO_DAYS('2000-01-01'))\n" +
		" (SUBPARTITION s0, SUBPARTITION s1),\n" +
		" PARTITION p1 VALUES LESS THAN MAXVALUE\n" +
		" (SUBPARTITION s2, SUBPARTITION s3))")
	require.NoError(t, err)
	assert.Equal(t, "TO_DAYS(d)", def.Expression)
	assert.Equal(t, metadata.SubpartitionTypeLinearHash, def.SubpartitionType)
	assert.Equal(t, "id", def.SubpartitionExpression)
	require.Len(t, def.Partitions, 6)
	assert.Equal(t, "TO_DAYS('2000-01-01')", def.Partitions[0].Values[0].Value)
	assert.Equal(t, "s2", def.Partitions[4].Name)
	assert.Equal(t, uint32(1), def.Partitions[4].Level)
	assert.Equal(t, uint32(2), def.Partitions[4].Number)
}

func TestParse_PartitionCounts(t *testing.T) {
	def, err := Parse("PARTITION BY HASH (`id`)\nPARTITIONS 4")
	require.NoError(t, err)
	require.Len(t, def.Partitions, 4)
	assert.Equal(t, "p3", def.Partitions[3].Name)
	assert.Equal(t, "`id`", def.Expression)
	assert.Equal(t, metadata.DefaultPartitioningNumber, def.DefaultPartitioning)
	assert.Equal(t, metadata.DefaultPartitioningNone, def.DefaultSubpartitioning)

	tab := baseTable("t").PartitionBy(metadata.PartitionTypeHash, "id").MustBuild()
	applied := def.ApplyTo(tab)
	assert.Equal(t, metadata.DefaultPartitioningNumber, applied.DefaultPartitioning)
	assert.Equal(t, metadata.DefaultPartitioningNo, tab.DefaultPartitioning)

	def, err = Parse("PARTITION BY RANGE (id) SUBPARTITION BY KEY (id) SUBPARTITIONS 2 " +
		"(PARTITION p0 VALUES LESS THAN (10), PARTITION p1 VALUES LESS THAN MAXVALUE)")
	require.NoError(t, err)
	require.Len(t, def.Partitions, 6)
	var names []string
	for _, rec := range def.Partitions[2:] {
		assert.Equal(t, uint32(1), rec.Level)
		names = append(names, rec.Name)
	}
	assert.Equal(t, []string{"p0sp0", "p0sp1", "p1sp0", "p1sp1"}, names)
	assert.Equal(t, uint32(3), def.Partitions[5].Number)
	assert.Equal(t, metadata.DefaultPartitioningNone, def.DefaultPartitioning)
	assert.Equal(t, metadata.DefaultPartitioningNumber, def.DefaultSubpartitioning)
}

func TestParse_Errors(t *testing.T) {
	bad := []string{
		"",
		"PARTITION BY ROUND_ROBIN (a) (PARTITION p0)",
		"PARTITION BY LINEAR RANGE (a) (PARTITION p0 VALUES LESS THAN (1))",
		"PARTITION BY RANGE (a) (PARTITION p0)",
		"PARTITION BY HASH (a) (PARTITION p0 VALUES IN (1))",
		"PARTITION BY HASH (a) (PARTITION p0 (SUBPARTITION s0))",
		"PARTITION BY HASH (a) (PARTITION p0 ENGINE = InnoDB, PARTITION p1 ENGINE = MyISAM)",
		"PARTITION BY KEY ALGORITHM = 3 (a) (PARTITION p0)",
		"PARTITION BY RANGE (a) (PARTITION p0 VALUES LESS THAN (1) COMMENT = 'open)",
		"PARTITION BY HASH (a) (PARTITION p0) trailing",
		"PARTITION BY RANGE (a) SUBPARTITION BY RANGE (b) (PARTITION p0 VALUES LESS THAN (1))",
		"PARTITION BY HASH (a)",
		"PARTITION BY HASH (a) PARTITIONS 0",
		"PARTITION BY RANGE (a) PARTITIONS 2",
		"PARTITION BY HASH (a) PARTITIONS 3 (PARTITION p0, PARTITION p1)",
		"PARTITION BY HASH (a) SUBPARTITION BY HASH (b) SUBPARTITIONS 2 (PARTITION p0 (SUBPARTITION s0))",
	}
	for _, text := range bad {
		_, err := Parse(text)
		assert.Error(t, err, text)
	}

	_, err := Parse("PARTITION BY HASH (a) (PARTITION p0) trailing")
	var syn *SyntaxError
	require.True(t, pkgerrors.As(err, &syn))
	assert.Greater(t, syn.Offset, 0)
}

func TestRoundTrip(t *testing.T) {
	tables := map[string]*metadata.TableMetadata{
		"range": baseTable("r").
			PartitionBy(metadata.PartitionTypeRange, "year").
			AddPartition("p0", metadata.Literal(0, 0, "-10")).
			AddPartition("p1", metadata.Literal(0, 0, "2000")).
			AddPartition("p2", metadata.MaxValue(0, 0)).
			MustBuild(),
		"list columns": baseTable("lc").
			PartitionBy(metadata.PartitionTypeListColumns, "year;code").
			AddPartition("p0",
				metadata.Literal(0, 0, "1"), metadata.Literal(0, 1, "'a'"),
				metadata.Literal(1, 0, "2"), metadata.NullValue(1, 1)).
			MustBuild(),
		"list with null": baseTable("ln").
			PartitionBy(metadata.PartitionTypeList, "year").
			AddPartition("p0", metadata.Literal(0, 0, "1"), metadata.Literal(1, 0, "")).
			AddPartition("p1", metadata.Literal(0, 0, "2")).
			MustBuild(),
		"linear key": baseTable("lk").
			PartitionBy(metadata.PartitionTypeLinearKey51, "id;year").
			AddPartition("p0").
			AddPartition("p1").
			MustBuild(),
		"range with key subpartitions": baseTable("rs").
			PartitionBy(metadata.PartitionTypeRange, "year").
			SubpartitionBy(metadata.SubpartitionTypeKey55, "id").
			AddPartition("p0", metadata.Literal(0, 0, "2000")).
			AddPartition("p1", metadata.MaxValue(0, 0)).
			AddSubpartition("s0").
			AddSubpartition("s1").
			AddSubpartition("s2").
			AddSubpartition("s3").
			MustBuild(),
	}
	c := newCompiler()
	for name, tab := range tables {
		t.Run(name, func(t *testing.T) {
			tab.Partitions[0].Comment = "first 'one'"
			tab.Partitions[0].Options = metadata.Properties{metadata.PartitionOptionIndexFileName: "/idx"}

			info, err := c.CompilePartitions(tab)
			require.NoError(t, err)

			def, err := Parse(info.Text)
			require.NoError(t, err, info.Text)
			again, err := c.CompilePartitions(def.ApplyTo(tab))
			require.NoError(t, err)
			assert.Equal(t, info, again)
		})
	}
}
