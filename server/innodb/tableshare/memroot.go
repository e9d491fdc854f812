package tableshare

import "unsafe"

// memRoot is the allocation budget of one descriptor. Every container a
// stage sizes is charged here first; the whole budget goes away with the
// descriptor.
type memRoot struct {
	table string
	limit int64
	used  int64
}

func newMemRoot(table string, limit int64) *memRoot {
	return &memRoot{table: table, limit: limit}
}

func (m *memRoot) charge(bytes int64, what string) error {
	if bytes < 0 {
		return newError(KindOutOfMemory, m.table, what, "negative allocation of %d bytes", bytes)
	}
	if m.limit > 0 && m.used+bytes > m.limit {
		return newError(KindOutOfMemory, m.table, what,
			"allocating %d bytes exceeds the %d byte descriptor budget (%d in use)", bytes, m.limit, m.used)
	}
	m.used += bytes
	return nil
}

var (
	sizeofField     = int64(unsafe.Sizeof(ColumnDescriptor{}))
	sizeofKey       = int64(unsafe.Sizeof(KeyDescriptor{}))
	sizeofKeyPart   = int64(unsafe.Sizeof(KeyPartDescriptor{}))
	sizeofRecPerKey = int64(unsafe.Sizeof(float32(0)))
	sizeofPartition = int64(unsafe.Sizeof(PartitionDescriptor{}))
	sizeofPartValue = int64(unsafe.Sizeof(PartitionValue{}))
)
