package partition

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/zhukovaskychina/xmysql-tabledef/server/innodb/metadata"
	"github.com/zhukovaskychina/xmysql-tabledef/server/innodb/tableshare"
)

// SyntaxError reports where a definition text stopped making sense.
type SyntaxError struct {
	Offset int
	Msg    string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("partition syntax error at offset %d: %s", e.Offset, e.Msg)
}

// scheme is a parsed PARTITION BY or SUBPARTITION BY clause.
type scheme struct {
	method     tableshare.PartitionMethod
	linear     bool
	columnList bool
	keyAlg     tableshare.KeyAlgorithmVersion
	fieldList  bool
	auto       bool
	fields     []string
	expr       string
}

type partitionOptions struct {
	tablespace string
	comment    string
	engine     string
	options    metadata.Properties
}

type parsedPartition struct {
	name   string
	values []*metadata.PartitionValueMetadata
	opts   partitionOptions
	subs   []parsedSubpartition
}

type parsedSubpartition struct {
	name string
	opts partitionOptions
}

// Parse reads a canonical partition definition back into flat partition
// records. Literal values are kept verbatim.
// 解析分区定义语句
func Parse(text string) (*metadata.PartitionDefinition, error) {
	p := &parser{input: text}
	if err := p.keywords("PARTITION", "BY"); err != nil {
		return nil, err
	}
	part, err := p.scheme()
	if err != nil {
		return nil, err
	}
	partCount, err := p.count("PARTITIONS")
	if err != nil {
		return nil, err
	}
	var sub *scheme
	var subCount uint32
	if p.tryKeyword("SUBPARTITION") {
		if err := p.keywords("BY"); err != nil {
			return nil, err
		}
		if sub, err = p.scheme(); err != nil {
			return nil, err
		}
		if sub.method != tableshare.MethodHash || sub.auto {
			return nil, p.errorf("subpartitions must use HASH or KEY")
		}
		if subCount, err = p.count("SUBPARTITIONS"); err != nil {
			return nil, err
		}
	}

	var parts []parsedPartition
	if p.accept('(') {
		for {
			pp, err := p.partition(part)
			if err != nil {
				return nil, err
			}
			parts = append(parts, pp)
			if p.accept(',') {
				continue
			}
			if err := p.expect(')'); err != nil {
				return nil, err
			}
			break
		}
	} else if partCount == 0 {
		return nil, p.errorf("expected a partition list or PARTITIONS")
	}
	p.skipSpace()
	if !p.eof() {
		return nil, p.errorf("unexpected trailing text")
	}

	def := &metadata.PartitionDefinition{}
	switch {
	case parts == nil && part.method != tableshare.MethodHash:
		return nil, errors.New("RANGE and LIST partitioning need an explicit partition list")
	case parts == nil:
		def.DefaultPartitioning = metadata.DefaultPartitioningNumber
		for i := uint32(0); i < partCount; i++ {
			parts = append(parts, parsedPartition{name: fmt.Sprintf("p%d", i)})
		}
	case partCount > 0 && uint32(len(parts)) != partCount:
		return nil, errors.Errorf("PARTITIONS %d but %d partitions listed", partCount, len(parts))
	}
	if subCount > 0 {
		generated := false
		for i := range parts {
			pp := &parts[i]
			if len(pp.subs) == 0 {
				generated = true
				for j := uint32(0); j < subCount; j++ {
					pp.subs = append(pp.subs, parsedSubpartition{name: fmt.Sprintf("%ssp%d", pp.name, j)})
				}
			} else if uint32(len(pp.subs)) != subCount {
				return nil, errors.Errorf("SUBPARTITIONS %d but partition %s lists %d", subCount, pp.name, len(pp.subs))
			}
		}
		if generated {
			def.DefaultSubpartitioning = metadata.DefaultPartitioningNumber
		}
	}
	return buildDefinition(def, part, sub, parts)
}

// count reads an optional "PARTITIONS n" style clause; 0 means absent.
func (p *parser) count(kw string) (uint32, error) {
	if !p.tryKeyword(kw) {
		return 0, nil
	}
	n, err := strconv.ParseUint(p.word(), 10, 32)
	if err != nil || n == 0 {
		return 0, p.errorf("%s needs a positive number", kw)
	}
	return uint32(n), nil
}

func buildDefinition(def *metadata.PartitionDefinition, part, sub *scheme, parts []parsedPartition) (*metadata.PartitionDefinition, error) {
	def.Type = part.partitionType()
	def.Expression = part.expression()
	if sub != nil {
		def.SubpartitionType = sub.subpartitionType()
		def.SubpartitionExpression = sub.expression()
	}

	setEngine := func(engine string) error {
		switch {
		case engine == "":
		case def.Engine == "":
			def.Engine = engine
		case !strings.EqualFold(def.Engine, engine):
			return errors.Errorf("partitions use both %s and %s", def.Engine, engine)
		}
		return nil
	}

	var subRecords []*metadata.PartitionMetadata
	for i, pp := range parts {
		if sub == nil && len(pp.subs) > 0 {
			return nil, errors.Errorf("partition %s has subpartitions but no SUBPARTITION BY clause", pp.name)
		}
		if err := setEngine(pp.opts.engine); err != nil {
			return nil, err
		}
		def.Partitions = append(def.Partitions, pp.opts.record(pp.name, 0, uint32(i), pp.values))
		for _, s := range pp.subs {
			if err := setEngine(s.opts.engine); err != nil {
				return nil, err
			}
			subRecords = append(subRecords, s.opts.record(s.name, 1, uint32(len(subRecords)), nil))
		}
	}
	def.Partitions = append(def.Partitions, subRecords...)
	return def, nil
}

func (o partitionOptions) record(name string, level, number uint32, values []*metadata.PartitionValueMetadata) *metadata.PartitionMetadata {
	return &metadata.PartitionMetadata{
		Name:       name,
		Level:      level,
		Number:     number,
		Values:     values,
		Options:    o.options,
		Tablespace: o.tablespace,
		Comment:    o.comment,
	}
}

func (s *scheme) expression() string {
	if s.fieldList || s.columnList {
		return tableshare.JoinFieldList(s.fields)
	}
	return s.expr
}

func (s *scheme) partitionType() metadata.PartitionType {
	switch s.method {
	case tableshare.MethodRange:
		if s.columnList {
			return metadata.PartitionTypeRangeColumns
		}
		return metadata.PartitionTypeRange
	case tableshare.MethodList:
		if s.columnList {
			return metadata.PartitionTypeListColumns
		}
		return metadata.PartitionTypeList
	}
	switch {
	case s.auto && s.linear:
		return metadata.PartitionTypeAutoLinear
	case s.auto:
		return metadata.PartitionTypeAuto
	case s.fieldList && s.linear && s.keyAlg == tableshare.KeyAlgorithm51:
		return metadata.PartitionTypeLinearKey51
	case s.fieldList && s.linear:
		return metadata.PartitionTypeLinearKey55
	case s.fieldList && s.keyAlg == tableshare.KeyAlgorithm51:
		return metadata.PartitionTypeKey51
	case s.fieldList:
		return metadata.PartitionTypeKey55
	case s.linear:
		return metadata.PartitionTypeLinearHash
	}
	return metadata.PartitionTypeHash
}

func (s *scheme) subpartitionType() metadata.SubpartitionType {
	switch {
	case s.fieldList && s.linear && s.keyAlg == tableshare.KeyAlgorithm51:
		return metadata.SubpartitionTypeLinearKey51
	case s.fieldList && s.linear:
		return metadata.SubpartitionTypeLinearKey55
	case s.fieldList && s.keyAlg == tableshare.KeyAlgorithm51:
		return metadata.SubpartitionTypeKey51
	case s.fieldList:
		return metadata.SubpartitionTypeKey55
	case s.linear:
		return metadata.SubpartitionTypeLinearHash
	}
	return metadata.SubpartitionTypeHash
}

// parser is a hand-rolled recursive descent reader over the definition
// text. Expressions and literals are captured as raw text.
type parser struct {
	input string
	pos   int
}

func (p *parser) errorf(format string, args ...interface{}) error {
	return errors.WithStack(&SyntaxError{Offset: p.pos, Msg: fmt.Sprintf(format, args...)})
}

func (p *parser) eof() bool {
	return p.pos >= len(p.input)
}

func (p *parser) skipSpace() {
	for !p.eof() {
		switch p.input[p.pos] {
		case ' ', '\t', '\n', '\r':
			p.pos++
		default:
			return
		}
	}
}

func (p *parser) peek() byte {
	p.skipSpace()
	if p.eof() {
		return 0
	}
	return p.input[p.pos]
}

func (p *parser) accept(c byte) bool {
	if p.peek() == c {
		p.pos++
		return true
	}
	return false
}

func (p *parser) expect(c byte) error {
	if !p.accept(c) {
		return p.errorf("expected %q", c)
	}
	return nil
}

func isWordByte(c byte) bool {
	return c == '_' || c == '$' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// word reads a bare word without consuming anything on failure.
func (p *parser) word() string {
	p.skipSpace()
	start := p.pos
	for !p.eof() && isWordByte(p.input[p.pos]) {
		p.pos++
	}
	return p.input[start:p.pos]
}

func (p *parser) tryKeyword(kw string) bool {
	save := p.pos
	if strings.EqualFold(p.word(), kw) {
		return true
	}
	p.pos = save
	return false
}

func (p *parser) keywords(kws ...string) error {
	for _, kw := range kws {
		if !p.tryKeyword(kw) {
			return p.errorf("expected %s", kw)
		}
	}
	return nil
}

// quoted reads a string delimited by q; a doubled q or a backslash escapes.
func (p *parser) quoted(q byte) (string, error) {
	if p.peek() != q {
		return "", p.errorf("expected %c", q)
	}
	p.pos++
	var sb strings.Builder
	for !p.eof() {
		c := p.input[p.pos]
		switch {
		case c == '\\' && q == '\'' && p.pos+1 < len(p.input):
			sb.WriteByte(p.input[p.pos+1])
			p.pos += 2
		case c == q && p.pos+1 < len(p.input) && p.input[p.pos+1] == q:
			sb.WriteByte(q)
			p.pos += 2
		case c == q:
			p.pos++
			return sb.String(), nil
		default:
			sb.WriteByte(c)
			p.pos++
		}
	}
	return "", p.errorf("unterminated %c quote", q)
}

func (p *parser) identifier() (string, error) {
	if p.peek() == '`' {
		return p.quoted('`')
	}
	if w := p.word(); w != "" {
		return w, nil
	}
	return "", p.errorf("expected identifier")
}

func (p *parser) identifierList() ([]string, error) {
	if err := p.expect('('); err != nil {
		return nil, err
	}
	var out []string
	if p.accept(')') {
		return out, nil
	}
	for {
		name, err := p.identifier()
		if err != nil {
			return nil, err
		}
		out = append(out, name)
		if p.accept(',') {
			continue
		}
		return out, p.expect(')')
	}
}

// balanced captures the raw text of a parenthesised group, quotes
// respected, and consumes the closing parenthesis.
func (p *parser) balanced() (string, error) {
	if err := p.expect('('); err != nil {
		return "", err
	}
	start := p.pos
	end, err := p.scanGroup()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(p.input[start:end]), nil
}

// scanGroup moves past the ')' that closes the current group and returns
// its offset.
func (p *parser) scanGroup() (int, error) {
	depth := 0
	for !p.eof() {
		c := p.input[p.pos]
		switch c {
		case '\'', '"', '`':
			if _, err := p.quoted(c); err != nil {
				return 0, err
			}
			continue
		case '(':
			depth++
		case ')':
			if depth == 0 {
				end := p.pos
				p.pos++
				return end, nil
			}
			depth--
		}
		p.pos++
	}
	return 0, p.errorf("unbalanced parentheses")
}

// valueList reads "(v1,v2,...)" splitting at top level commas.
func (p *parser) valueList() ([]string, error) {
	if err := p.expect('('); err != nil {
		return nil, err
	}
	var (
		out   []string
		start = p.pos
		depth = 0
	)
	for !p.eof() {
		c := p.input[p.pos]
		switch c {
		case '\'', '"', '`':
			if _, err := p.quoted(c); err != nil {
				return nil, err
			}
			continue
		case '(':
			depth++
		case ')':
			if depth == 0 {
				out = append(out, strings.TrimSpace(p.input[start:p.pos]))
				p.pos++
				return out, nil
			}
			depth--
		case ',':
			if depth == 0 {
				out = append(out, strings.TrimSpace(p.input[start:p.pos]))
				start = p.pos + 1
			}
		}
		p.pos++
	}
	return nil, p.errorf("unterminated value list")
}

func (p *parser) scheme() (*scheme, error) {
	s := &scheme{}
	s.linear = p.tryKeyword("LINEAR")
	kw := strings.ToUpper(p.word())
	var err error
	switch kw {
	case "RANGE", "LIST":
		if s.linear {
			return nil, p.errorf("LINEAR %s is not a partitioning scheme", kw)
		}
		s.method = tableshare.MethodRange
		if kw == "LIST" {
			s.method = tableshare.MethodList
		}
		if p.tryKeyword("COLUMNS") {
			s.columnList = true
			s.fields, err = p.identifierList()
			return s, err
		}
		s.expr, err = p.balanced()
		return s, err
	case "HASH":
		s.method = tableshare.MethodHash
		s.expr, err = p.balanced()
		return s, err
	case "KEY":
		s.method = tableshare.MethodHash
		s.fieldList = true
		s.keyAlg = tableshare.KeyAlgorithm55
		if p.tryKeyword("ALGORITHM") {
			p.accept('=')
			switch p.word() {
			case "1":
				s.keyAlg = tableshare.KeyAlgorithm51
			case "2":
			default:
				return nil, p.errorf("unknown key algorithm")
			}
		}
		s.fields, err = p.identifierList()
		return s, err
	case "AUTO":
		s.method = tableshare.MethodHash
		s.fieldList = true
		s.auto = true
		s.keyAlg = tableshare.KeyAlgorithm55
		if p.peek() == '(' {
			s.fields, err = p.identifierList()
		}
		return s, err
	}
	return nil, p.errorf("unknown partitioning scheme %q", kw)
}

func (p *parser) partition(s *scheme) (parsedPartition, error) {
	var pp parsedPartition
	if err := p.keywords("PARTITION"); err != nil {
		return pp, err
	}
	name, err := p.identifier()
	if err != nil {
		return pp, err
	}
	pp.name = name

	if p.tryKeyword("VALUES") {
		if pp.values, err = p.values(s); err != nil {
			return pp, err
		}
	} else if s.method != tableshare.MethodHash {
		return pp, p.errorf("partition %s has no VALUES clause", name)
	}

	if pp.opts, err = p.options(); err != nil {
		return pp, err
	}
	if p.peek() == '(' {
		p.pos++
		for {
			if err := p.keywords("SUBPARTITION"); err != nil {
				return pp, err
			}
			var sub parsedSubpartition
			if sub.name, err = p.identifier(); err != nil {
				return pp, err
			}
			if sub.opts, err = p.options(); err != nil {
				return pp, err
			}
			pp.subs = append(pp.subs, sub)
			if p.accept(',') {
				continue
			}
			if err := p.expect(')'); err != nil {
				return pp, err
			}
			break
		}
	}
	return pp, nil
}

func cell(list, column uint32, text string) *metadata.PartitionValueMetadata {
	switch strings.ToUpper(text) {
	case "NULL":
		return metadata.NullValue(list, column)
	case "MAXVALUE":
		return metadata.MaxValue(list, column)
	}
	return metadata.Literal(list, column, text)
}

func (p *parser) values(s *scheme) ([]*metadata.PartitionValueMetadata, error) {
	var out []*metadata.PartitionValueMetadata
	switch s.method {
	case tableshare.MethodRange:
		if err := p.keywords("LESS", "THAN"); err != nil {
			return nil, err
		}
		if !s.columnList && p.tryKeyword("MAXVALUE") {
			return []*metadata.PartitionValueMetadata{metadata.MaxValue(0, 0)}, nil
		}
		cells, err := p.valueList()
		if err != nil {
			return nil, err
		}
		for col, text := range cells {
			out = append(out, cell(0, uint32(col), text))
		}
	case tableshare.MethodList:
		if err := p.keywords("IN"); err != nil {
			return nil, err
		}
		if s.columnList && len(s.fields) > 1 {
			return p.tupleList()
		}
		cells, err := p.valueList()
		if err != nil {
			return nil, err
		}
		for list, text := range cells {
			out = append(out, cell(uint32(list), 0, text))
		}
	default:
		return nil, p.errorf("hash partitions take no VALUES clause")
	}
	return out, nil
}

// tupleList reads "((a,b),(c,d))".
func (p *parser) tupleList() ([]*metadata.PartitionValueMetadata, error) {
	if err := p.expect('('); err != nil {
		return nil, err
	}
	var out []*metadata.PartitionValueMetadata
	for list := uint32(0); ; list++ {
		cells, err := p.valueList()
		if err != nil {
			return nil, err
		}
		for col, text := range cells {
			out = append(out, cell(list, uint32(col), text))
		}
		if p.accept(',') {
			continue
		}
		return out, p.expect(')')
	}
}

func (p *parser) options() (partitionOptions, error) {
	var o partitionOptions
	set := func(key, value string) {
		if o.options == nil {
			o.options = metadata.Properties{}
		}
		o.options[key] = value
	}
	for {
		save := p.pos
		kw := strings.ToUpper(p.word())
		var err error
		switch kw {
		case "TABLESPACE":
			p.accept('=')
			o.tablespace, err = p.identifier()
		case "COMMENT":
			p.accept('=')
			o.comment, err = p.quoted('\'')
		case "DATA", "INDEX":
			if err = p.keywords("DIRECTORY"); err != nil {
				return o, err
			}
			p.accept('=')
			var dir string
			if dir, err = p.quoted('\''); err == nil {
				key := metadata.PartitionOptionDataFileName
				if kw == "INDEX" {
					key = metadata.PartitionOptionIndexFileName
				}
				set(key, dir)
			}
		case "MAX_ROWS", "MIN_ROWS", "NODEGROUP":
			p.accept('=')
			n := p.word()
			if n == "" {
				return o, p.errorf("%s needs a number", kw)
			}
			key := map[string]string{
				"MAX_ROWS":  metadata.PartitionOptionMaxRows,
				"MIN_ROWS":  metadata.PartitionOptionMinRows,
				"NODEGROUP": metadata.PartitionOptionNodegroupID,
			}[kw]
			set(key, n)
		case "STORAGE", "ENGINE":
			if kw == "STORAGE" {
				if err = p.keywords("ENGINE"); err != nil {
					return o, err
				}
			}
			p.accept('=')
			o.engine, err = p.identifier()
		default:
			p.pos = save
			return o, nil
		}
		if err != nil {
			return o, err
		}
	}
}
