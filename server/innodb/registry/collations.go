package registry

import (
	"strings"
	"sync"

	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"

	"github.com/zhukovaskychina/xmysql-tabledef/server/innodb/tableshare"
)

// Collation describes one collation.
type Collation struct {
	id      uint32
	name    string
	charset string
	binary  bool
}

// NewCollation creates a collation handle.
func NewCollation(id uint32, name, charset string, binary bool) *Collation {
	return &Collation{id: id, name: name, charset: charset, binary: binary}
}

func (c *Collation) ID() uint32       { return c.id }
func (c *Collation) Name() string     { return c.name }
func (c *Collation) Charset() string  { return c.charset }
func (c *Collation) BinarySort() bool { return c.binary }

var builtinCollations = []*Collation{
	NewCollation(8, "latin1_swedish_ci", "latin1", false),
	NewCollation(11, "ascii_general_ci", "ascii", false),
	NewCollation(28, "gbk_chinese_ci", "gbk", false),
	NewCollation(33, "utf8mb3_general_ci", "utf8mb3", false),
	NewCollation(45, "utf8mb4_general_ci", "utf8mb4", false),
	NewCollation(46, "utf8mb4_bin", "utf8mb4", true),
	NewCollation(47, "latin1_bin", "latin1", true),
	NewCollation(63, "binary", "binary", true),
	NewCollation(65, "ascii_bin", "ascii", true),
	NewCollation(83, "utf8mb3_bin", "utf8mb3", true),
	NewCollation(87, "gbk_bin", "gbk", true),
	NewCollation(224, "utf8mb4_unicode_ci", "utf8mb4", false),
	NewCollation(255, "utf8mb4_0900_ai_ci", "utf8mb4", false),
	NewCollation(309, "utf8mb4_0900_bin", "utf8mb4", true),
}

// CollationRegistry resolves collations by id.
// 字符集排序规则注册表
type CollationRegistry struct {
	mu   sync.RWMutex
	byID map[uint32]*Collation
}

// NewCollationRegistry returns an empty registry.
func NewCollationRegistry() *CollationRegistry {
	return &CollationRegistry{byID: make(map[uint32]*Collation)}
}

// DefaultCollations registers the built-in collations.
func DefaultCollations() *CollationRegistry {
	r := NewCollationRegistry()
	for _, c := range builtinCollations {
		r.Register(c)
	}
	return r
}

// Register adds or replaces a collation.
func (r *CollationRegistry) Register(c *Collation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[c.id] = c
}

// ResolveCollation implements tableshare.CollationResolver.
func (r *CollationRegistry) ResolveCollation(id uint32) (tableshare.CollationHandle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byID[id]
	if !ok {
		return nil, false
	}
	return c, true
}

// ByName finds a collation by name.
func (r *CollationRegistry) ByName(name string) (*Collation, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.byID {
		if strings.EqualFold(c.name, name) {
			return c, true
		}
	}
	return nil, false
}

// LoadCollationFile registers the collations of a TOML file.
func (r *CollationRegistry) LoadCollationFile(path string) error {
	tree, err := toml.LoadFile(path)
	if err != nil {
		return errors.Wrapf(err, "load collations from %s", path)
	}
	return r.loadTree(tree)
}

// LoadCollations registers the collations of a TOML document:
//
//	[[collation]]
//	id = 246
//	name = "utf8mb4_tr_0900_ai_ci"
//	charset = "utf8mb4"
//	binary = false
func (r *CollationRegistry) LoadCollations(doc string) error {
	tree, err := toml.Load(doc)
	if err != nil {
		return errors.Wrap(err, "parse collations")
	}
	return r.loadTree(tree)
}

func (r *CollationRegistry) loadTree(tree *toml.Tree) error {
	raw := tree.Get("collation")
	if raw == nil {
		return nil
	}
	entries, ok := raw.([]*toml.Tree)
	if !ok {
		return errors.New("collation must be an array of tables")
	}
	for i, entry := range entries {
		id, ok := entry.Get("id").(int64)
		if !ok || id <= 0 || id > 0xFFFFFFFF {
			return errors.Errorf("collation #%d: missing or invalid id", i)
		}
		name, _ := entry.Get("name").(string)
		if name == "" {
			return errors.Errorf("collation %d: missing name", id)
		}
		charset, _ := entry.Get("charset").(string)
		if charset == "" {
			charset = name
			if idx := strings.IndexByte(name, '_'); idx > 0 {
				charset = name[:idx]
			}
		}
		binary, ok := entry.Get("binary").(bool)
		if !ok {
			binary = strings.HasSuffix(name, "_bin") || name == "binary"
		}
		r.Register(NewCollation(uint32(id), name, charset, binary))
	}
	return nil
}
