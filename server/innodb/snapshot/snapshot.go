// Package snapshot persists compiled table descriptors so a server can
// start without recompiling its catalog.
package snapshot

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"strings"

	"github.com/golang/snappy"
	jsoniter "github.com/json-iterator/go"
	"github.com/pierrec/lz4/v4"
	"github.com/pkg/errors"

	"github.com/zhukovaskychina/xmysql-tabledef/server/innodb/tableshare"
	"github.com/zhukovaskychina/xmysql-tabledef/util"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// CompressType selects how the snapshot body is compressed.
type CompressType uint8

const (
	CompressNone CompressType = iota
	CompressSnappy
	CompressLZ4
)

const (
	formatVersion = 1
	// magic(4) version(1) compress(1) checksum(8)
	headerSize = 14
)

var magic = [4]byte{'X', 'T', 'D', 'S'}

var (
	// ErrBadMagic means the data is not a descriptor snapshot.
	ErrBadMagic = errors.New("not a descriptor snapshot")
	// ErrChecksumMismatch means the payload was damaged.
	ErrChecksumMismatch = errors.New("snapshot checksum mismatch")
)

var compressNames = map[CompressType]string{
	CompressNone:   "none",
	CompressSnappy: "snappy",
	CompressLZ4:    "lz4",
}

func (c CompressType) String() string {
	if name, ok := compressNames[c]; ok {
		return name
	}
	return fmt.Sprintf("compress(%d)", uint8(c))
}

// ParseCompressType maps a configured name to a CompressType.
func ParseCompressType(name string) (CompressType, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return CompressNone, nil
	}
	for c, n := range compressNames {
		if n == name {
			return c, nil
		}
	}
	return CompressNone, errors.Errorf("unknown snapshot compression %q", name)
}

// Encode serializes desc into a self-checking snapshot.
func Encode(desc *tableshare.TableDescriptor, c CompressType) ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(&buf, desc, c); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Write streams a snapshot of desc to w.
// 写出表描述快照
func Write(w io.Writer, desc *tableshare.TableDescriptor, c CompressType) error {
	if desc == nil {
		return errors.New("nil descriptor")
	}
	payload, err := json.Marshal(desc)
	if err != nil {
		return errors.Wrapf(err, "marshal %s.%s", desc.Schema, desc.Name)
	}

	var header [headerSize]byte
	copy(header[:4], magic[:])
	header[4] = formatVersion
	header[5] = byte(c)
	binary.LittleEndian.PutUint64(header[6:], util.HashCode(payload))
	if _, err := w.Write(header[:]); err != nil {
		return errors.Wrap(err, "write snapshot header")
	}

	switch c {
	case CompressNone:
		_, err = w.Write(payload)
	case CompressSnappy:
		sw := snappy.NewBufferedWriter(w)
		if _, err = sw.Write(payload); err == nil {
			err = sw.Close()
		}
	case CompressLZ4:
		lw := lz4.NewWriter(w)
		if _, err = lw.Write(payload); err == nil {
			err = lw.Close()
		}
	default:
		return errors.Errorf("illegal compress type %d", c)
	}
	return errors.Wrap(err, "write snapshot body")
}

// Decode is Read over an in-memory snapshot.
func Decode(data []byte) (*tableshare.TableDescriptor, error) {
	return Read(bytes.NewReader(data))
}

// Read parses and verifies one snapshot.
// 读取并校验表描述快照
func Read(r io.Reader) (*tableshare.TableDescriptor, error) {
	var header [headerSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, errors.WithStack(ErrBadMagic)
		}
		return nil, errors.Wrap(err, "read snapshot header")
	}
	if !bytes.Equal(header[:4], magic[:]) {
		return nil, errors.WithStack(ErrBadMagic)
	}
	if header[4] != formatVersion {
		return nil, errors.Errorf("unsupported snapshot version %d", header[4])
	}
	want := binary.LittleEndian.Uint64(header[6:])

	var body io.Reader
	switch c := CompressType(header[5]); c {
	case CompressNone:
		body = r
	case CompressSnappy:
		body = snappy.NewReader(r)
	case CompressLZ4:
		body = lz4.NewReader(r)
	default:
		return nil, errors.Errorf("illegal compress type %d", c)
	}
	payload, err := io.ReadAll(body)
	if err != nil {
		return nil, errors.Wrap(err, "read snapshot body")
	}
	if util.HashCode(payload) != want {
		return nil, errors.WithStack(ErrChecksumMismatch)
	}

	desc := &tableshare.TableDescriptor{}
	if err := json.Unmarshal(payload, desc); err != nil {
		return nil, errors.Wrap(err, "unmarshal descriptor")
	}
	return desc, nil
}
