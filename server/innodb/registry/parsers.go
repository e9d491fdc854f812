package registry

import (
	"strings"
	"sync"

	"github.com/zhukovaskychina/xmysql-tabledef/server/innodb/tableshare"
)

// Parser is a loaded full-text parser plugin.
type Parser struct {
	name string
}

func (p *Parser) Name() string {
	return p.name
}

// ParserRegistry tracks which full-text parser plugins are loaded.
type ParserRegistry struct {
	mu      sync.RWMutex
	plugins map[string]*Parser
}

// NewParserRegistry loads the named parsers.
func NewParserRegistry(names ...string) *ParserRegistry {
	r := &ParserRegistry{plugins: make(map[string]*Parser)}
	for _, n := range names {
		r.Load(n)
	}
	return r
}

// Load marks a parser plugin as loaded.
func (r *ParserRegistry) Load(name string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.plugins[strings.ToLower(name)] = &Parser{name: name}
}

// LoadFulltextParser implements tableshare.ParserLoader.
func (r *ParserRegistry) LoadFulltextParser(name string) (tableshare.ParserHandle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.plugins[strings.ToLower(name)]
	if !ok {
		return nil, false
	}
	return p, true
}
