package metadata

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Properties is a string keyed option bag as persisted in the catalog.
// 目录中持久化的选项集合
type Properties map[string]string

// Exists reports whether key is present.
func (p Properties) Exists(key string) bool {
	if p == nil {
		return false
	}
	_, ok := p[key]
	return ok
}

// Get returns the raw value of key.
func (p Properties) Get(key string) (string, bool) {
	if p == nil {
		return "", false
	}
	v, ok := p[key]
	return v, ok
}

// GetUint64 parses key as an unsigned integer. A missing key yields ok=false.
func (p Properties) GetUint64(key string) (value uint64, ok bool, err error) {
	raw, ok := p.Get(key)
	if !ok {
		return 0, false, nil
	}
	value, err = strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, true, fmt.Errorf("option %s: %q is not an unsigned integer", key, raw)
	}
	return value, true, nil
}

// GetUint32 parses key as a 32 bit unsigned integer.
func (p Properties) GetUint32(key string) (uint32, bool, error) {
	v, ok, err := p.GetUint64(key)
	if err != nil || !ok {
		return 0, ok, err
	}
	if v > 0xFFFFFFFF {
		return 0, true, fmt.Errorf("option %s: %d overflows 32 bits", key, v)
	}
	return uint32(v), true, nil
}

// GetBool parses key as a boolean. "1", "0", "true", "false" are accepted.
func (p Properties) GetBool(key string) (value bool, ok bool, err error) {
	raw, ok := p.Get(key)
	if !ok {
		return false, false, nil
	}
	value, err = strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return false, true, fmt.Errorf("option %s: %q is not a boolean", key, raw)
	}
	return value, true, nil
}

// Clone returns an independent copy.
func (p Properties) Clone() Properties {
	if p == nil {
		return nil
	}
	out := make(Properties, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// String renders the bag as key=value pairs in key order.
func (p Properties) String() string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var sb strings.Builder
	for i, k := range keys {
		if i > 0 {
			sb.WriteByte(';')
		}
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(p[k])
	}
	return sb.String()
}
