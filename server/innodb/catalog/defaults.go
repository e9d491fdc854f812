package catalog

import (
	"encoding/binary"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/zhukovaskychina/xmysql-tabledef/server/innodb/metadata"
)

const (
	digitsPerGroup = 9
	datetimeIntOfs = 0x8000000000
	timeIntOfs     = 0x800000
)

var dig2bytes = [digitsPerGroup + 1]int{0, 1, 1, 2, 2, 3, 3, 4, 4, 4}

var intWidth = map[metadata.ColumnType]int{
	metadata.ColumnTypeTiny:     1,
	metadata.ColumnTypeShort:    2,
	metadata.ColumnTypeInt24:    3,
	metadata.ColumnTypeLong:     4,
	metadata.ColumnTypeLonglong: 8,
}

// encodeDefault turns the textual COLUMN_DEFAULT into the column's record
// image. A default that cannot be represented is an error.
func (r *columnRow) encodeDefault(col *metadata.ColumnMetadata, text string) (metadata.HexBytes, error) {
	switch typ := col.Type; typ {
	case metadata.ColumnTypeTiny, metadata.ColumnTypeShort, metadata.ColumnTypeInt24,
		metadata.ColumnTypeLong, metadata.ColumnTypeLonglong:
		return encodeInteger(text, intWidth[typ], col.Unsigned)
	case metadata.ColumnTypeYear:
		y, err := strconv.Atoi(text)
		if err != nil || (y != 0 && (y < 1901 || y > 2155)) {
			return nil, errors.New("year out of range")
		}
		if y == 0 {
			return metadata.HexBytes{0}, nil
		}
		return metadata.HexBytes{byte(y - 1900)}, nil
	case metadata.ColumnTypeFloat:
		f, err := strconv.ParseFloat(strings.TrimSpace(text), 32)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		buf := make([]byte, 4)
		binary.LittleEndian.PutUint32(buf, math.Float32bits(float32(f)))
		return buf, nil
	case metadata.ColumnTypeDouble:
		f, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		buf := make([]byte, 8)
		binary.LittleEndian.PutUint64(buf, math.Float64bits(f))
		return buf, nil
	case metadata.ColumnTypeNewDecimal:
		scale := 0
		if r.scale != nil {
			scale = int(*r.scale)
		}
		return encodeDecimal(text, int(r.precision), scale)
	case metadata.ColumnTypeEnum:
		for i, e := range col.Elements {
			if e == text {
				n := i + 1
				if len(col.Elements) < 256 {
					return metadata.HexBytes{byte(n)}, nil
				}
				return metadata.HexBytes{byte(n), byte(n >> 8)}, nil
			}
		}
		return nil, errors.New("not an element of the enum")
	case metadata.ColumnTypeSet:
		return encodeSet(text, col.Elements)
	case metadata.ColumnTypeBit:
		return encodeBit(text, uint32(r.precision))
	case metadata.ColumnTypeString:
		if uint64(len(text)) > r.octetLength {
			return nil, errors.Errorf("%d bytes do not fit CHAR of %d bytes", len(text), r.octetLength)
		}
		pad := byte(' ')
		if strings.EqualFold(r.dataType, "binary") {
			pad = 0
		}
		buf := make([]byte, r.octetLength)
		n := copy(buf, text)
		for i := n; i < len(buf); i++ {
			buf[i] = pad
		}
		return buf, nil
	case metadata.ColumnTypeVarchar:
		if uint64(len(text)) > r.octetLength {
			return nil, errors.Errorf("%d bytes do not fit VARCHAR of %d bytes", len(text), r.octetLength)
		}
		buf := make([]byte, 2+r.octetLength)
		binary.LittleEndian.PutUint16(buf, uint16(len(text)))
		copy(buf[2:], text)
		return buf, nil
	case metadata.ColumnTypeNewDate:
		t, err := parseTemporal(text, false)
		if err != nil {
			return nil, err
		}
		v := uint32(t.day) | uint32(t.month)<<5 | uint32(t.year)<<9
		return metadata.HexBytes{byte(v), byte(v >> 8), byte(v >> 16)}, nil
	case metadata.ColumnTypeDatetime2:
		t, err := parseTemporal(text, false)
		if err != nil {
			return nil, err
		}
		ymd := uint64((t.year*13+t.month)<<5 | t.day)
		hms := uint64(t.hour<<12 | t.minute<<6 | t.second)
		buf := putUintBE(nil, (ymd<<17|hms)+datetimeIntOfs, 5)
		return appendFraction(buf, t.micro, r.fsp), nil
	case metadata.ColumnTypeTimestamp2:
		t, err := parseTemporal(text, false)
		if err != nil {
			return nil, err
		}
		buf := putUintBE(nil, uint64(t.unix()), 4)
		return appendFraction(buf, t.micro, r.fsp), nil
	case metadata.ColumnTypeTime2:
		t, err := parseTemporal(text, true)
		if err != nil {
			return nil, err
		}
		hms := int64(t.hour<<12 | t.minute<<6 | t.second)
		if t.negative {
			if t.micro != 0 && r.fsp > 0 {
				return nil, errors.New("negative fractional TIME defaults are not supported")
			}
			hms = -hms
		}
		buf := putUintBE(nil, uint64(hms+timeIntOfs), 3)
		return appendFraction(buf, t.micro, r.fsp), nil
	}
	return nil, errors.Errorf("literal defaults are not supported for %s columns", col.Type)
}

func encodeInteger(text string, width int, unsigned bool) (metadata.HexBytes, error) {
	var v uint64
	if unsigned {
		u, err := strconv.ParseUint(text, 10, width*8)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		v = u
	} else {
		s, err := strconv.ParseInt(text, 10, width*8)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		v = uint64(s)
	}
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	return metadata.HexBytes(buf[:width]), nil
}

// encodeDecimal writes the sortable binary decimal image: groups of nine
// digits stored big endian, leading and trailing partial groups narrowed,
// the sign folded into the top bit.
func encodeDecimal(text string, precision, scale int) (metadata.HexBytes, error) {
	if precision <= 0 || scale > precision {
		return nil, errors.Errorf("invalid decimal(%d,%d)", precision, scale)
	}
	d, err := decimal.NewFromString(strings.TrimSpace(text))
	if err != nil {
		return nil, errors.WithStack(err)
	}
	negative := d.Sign() < 0
	digits := d.Abs().Round(int32(scale)).Mul(decimal.New(1, int32(scale))).BigInt().String()
	if len(digits) > precision {
		return nil, errors.Errorf("%s does not fit decimal(%d,%d)", text, precision, scale)
	}
	digits = strings.Repeat("0", precision-len(digits)) + digits
	intDigits, frac := digits[:precision-scale], digits[precision-scale:]

	var buf []byte
	group := func(s string) {
		v, _ := strconv.ParseUint(s, 10, 32)
		buf = putUintBE(buf, v, dig2bytes[len(s)])
	}
	lead := len(intDigits) % digitsPerGroup
	if lead > 0 {
		group(intDigits[:lead])
	}
	for i := lead; i < len(intDigits); i += digitsPerGroup {
		group(intDigits[i : i+digitsPerGroup])
	}
	for i := 0; i < len(frac); i += digitsPerGroup {
		end := i + digitsPerGroup
		if end > len(frac) {
			end = len(frac)
		}
		group(frac[i:end])
	}
	if negative {
		for i := range buf {
			buf[i] = ^buf[i]
		}
	}
	buf[0] ^= 0x80
	return buf, nil
}

func encodeSet(text string, elements []string) (metadata.HexBytes, error) {
	var mask uint64
	if text != "" {
		for _, member := range strings.Split(text, ",") {
			found := false
			for i, e := range elements {
				if e == member {
					mask |= 1 << uint(i)
					found = true
					break
				}
			}
			if !found {
				return nil, errors.Errorf("%q is not a member of the set", member)
			}
		}
	}
	width := (len(elements) + 7) / 8
	if width > 4 {
		width = 8
	}
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], mask)
	return metadata.HexBytes(buf[:width]), nil
}

// encodeBit accepts b'0101' and plain numbers. The image holds the whole
// bytes big endian followed by the leftover high bits, which the compiler
// moves into the null bitmap.
func encodeBit(text string, length uint32) (metadata.HexBytes, error) {
	var (
		v   uint64
		err error
	)
	lower := strings.ToLower(strings.TrimSpace(text))
	if strings.HasPrefix(lower, "b'") && strings.HasSuffix(lower, "'") {
		v, err = strconv.ParseUint(lower[2:len(lower)-1], 2, 64)
	} else {
		v, err = strconv.ParseUint(lower, 10, 64)
	}
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if length == 0 || length > 64 || (length < 64 && v>>length != 0) {
		return nil, errors.Errorf("%s does not fit BIT(%d)", text, length)
	}
	full := int(length / 8)
	buf := putUintBE(nil, v, full)
	if length%8 != 0 {
		buf = append(buf, byte(v>>(uint(full)*8)))
	}
	return buf, nil
}

func putUintBE(buf []byte, v uint64, width int) []byte {
	for i := width - 1; i >= 0; i-- {
		buf = append(buf, byte(v>>(uint(i)*8)))
	}
	return buf
}

// appendFraction adds the fractional seconds of a TIME2, DATETIME2 or
// TIMESTAMP2 image: one byte per two digits of precision.
func appendFraction(buf []byte, micro int, fsp uint32) []byte {
	switch fsp {
	case 1, 2:
		return putUintBE(buf, uint64(micro/10000), 1)
	case 3, 4:
		return putUintBE(buf, uint64(micro/100), 2)
	case 5, 6:
		return putUintBE(buf, uint64(micro), 3)
	}
	return buf
}

type temporal struct {
	negative             bool
	year, month, day     int
	hour, minute, second int
	micro                int
}

// parseTemporal reads 'YYYY-MM-DD[ hh:mm:ss[.ffffff]]', or '[-]hhh:mm:ss[.ffffff]'
// when duration is set.
func parseTemporal(text string, duration bool) (temporal, error) {
	var t temporal
	s := strings.TrimSpace(text)
	fail := func() (temporal, error) {
		return temporal{}, errors.Errorf("malformed temporal literal %q", text)
	}
	if dot := strings.IndexByte(s, '.'); dot >= 0 {
		frac := s[dot+1:]
		if len(frac) == 0 || len(frac) > 6 {
			return fail()
		}
		n, err := strconv.Atoi(frac + strings.Repeat("0", 6-len(frac)))
		if err != nil {
			return fail()
		}
		t.micro = n
		s = s[:dot]
	}
	clock := s
	if !duration {
		date := s
		clock = ""
		if sp := strings.IndexByte(s, ' '); sp >= 0 {
			date, clock = s[:sp], s[sp+1:]
		}
		parts := strings.Split(date, "-")
		if len(parts) != 3 {
			return fail()
		}
		var err error
		if t.year, err = strconv.Atoi(parts[0]); err != nil {
			return fail()
		}
		if t.month, err = strconv.Atoi(parts[1]); err != nil || t.month > 12 {
			return fail()
		}
		if t.day, err = strconv.Atoi(parts[2]); err != nil || t.day > 31 {
			return fail()
		}
		if clock == "" {
			return t, nil
		}
	} else if strings.HasPrefix(clock, "-") {
		t.negative = true
		clock = clock[1:]
	}
	parts := strings.Split(clock, ":")
	if len(parts) != 3 {
		return fail()
	}
	var err error
	if t.hour, err = strconv.Atoi(parts[0]); err != nil || (!duration && t.hour > 23) || t.hour > 838 {
		return fail()
	}
	if t.minute, err = strconv.Atoi(parts[1]); err != nil || t.minute > 59 {
		return fail()
	}
	if t.second, err = strconv.Atoi(parts[2]); err != nil || t.second > 59 {
		return fail()
	}
	return t, nil
}

// unix is the UTC epoch second of a TIMESTAMP literal; the provider's
// session runs with time_zone '+00:00'.
func (t temporal) unix() int64 {
	if t.year == 0 && t.month == 0 && t.day == 0 {
		return 0
	}
	return time.Date(t.year, time.Month(t.month), t.day, t.hour, t.minute, t.second, 0, time.UTC).Unix()
}
