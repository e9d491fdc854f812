package registry

import (
	"strings"
	"sync"

	"github.com/pkg/errors"
	"gopkg.in/ini.v1"

	"github.com/zhukovaskychina/xmysql-tabledef/server/innodb/tableshare"
)

// EngineSectionPrefix prefixes the ini sections that declare engines, as
// in [engine.InnoDB].
const EngineSectionPrefix = "engine."

// Engine is a storage engine known by name and capability set.
type Engine struct {
	name string
	caps map[tableshare.Capability]bool
}

// NewEngine creates an engine handle with the given capabilities.
func NewEngine(name string, caps ...tableshare.Capability) *Engine {
	e := &Engine{name: name, caps: make(map[tableshare.Capability]bool, len(caps))}
	for _, c := range caps {
		e.caps[c] = true
	}
	return e
}

func (e *Engine) Name() string {
	return e.name
}

func (e *Engine) Supports(c tableshare.Capability) bool {
	return e.caps[c]
}

// Capabilities lists the supported capabilities in a stable order.
func (e *Engine) Capabilities() []tableshare.Capability {
	var out []tableshare.Capability
	for _, c := range knownCapabilities {
		if e.caps[c] {
			out = append(out, c)
		}
	}
	return out
}

var knownCapabilities = []tableshare.Capability{
	tableshare.CapPartitioning,
	tableshare.CapExtendedKeys,
	tableshare.CapPrimaryKeyInReadIndex,
	tableshare.CapAnyIndexMayBeUnique,
	tableshare.CapKeyreadOnly,
	tableshare.CapReadOrder,
}

func parseCapability(raw string) (tableshare.Capability, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	for _, c := range knownCapabilities {
		if string(c) == raw {
			return c, nil
		}
	}
	return "", errors.Errorf("unknown engine capability %q", raw)
}

// EngineRegistry resolves engines by case-insensitive name.
// 存储引擎注册表
type EngineRegistry struct {
	mu      sync.RWMutex
	engines map[string]*Engine
}

// NewEngineRegistry returns an empty registry.
func NewEngineRegistry() *EngineRegistry {
	return &EngineRegistry{engines: make(map[string]*Engine)}
}

// DefaultEngines registers the built-in engines.
func DefaultEngines() *EngineRegistry {
	r := NewEngineRegistry()
	r.Register(NewEngine("InnoDB",
		tableshare.CapPartitioning,
		tableshare.CapExtendedKeys,
		tableshare.CapPrimaryKeyInReadIndex,
		tableshare.CapKeyreadOnly,
		tableshare.CapReadOrder))
	r.Register(NewEngine("MyISAM", tableshare.CapKeyreadOnly, tableshare.CapReadOrder))
	r.Register(NewEngine("MEMORY", tableshare.CapReadOrder))
	r.Register(NewEngine("CSV"))
	return r
}

// Register adds or replaces an engine.
func (r *EngineRegistry) Register(e *Engine) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.engines[strings.ToLower(e.name)] = e
}

// Unregister removes an engine.
func (r *EngineRegistry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.engines, strings.ToLower(name))
}

// ResolveEngine implements tableshare.EngineRegistry.
func (r *EngineRegistry) ResolveEngine(name string) (tableshare.EngineHandle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.engines[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, false
	}
	return e, true
}

// Names lists registered engine names.
func (r *EngineRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.engines))
	for _, e := range r.engines {
		out = append(out, e.name)
	}
	return out
}

// LoadEngines applies [engine.NAME] sections:
//
//	[engine.Archive]
//	capabilities = keyread_only, read_order
//	enabled = true
func (r *EngineRegistry) LoadEngines(file *ini.File) error {
	for _, section := range file.Sections() {
		if !strings.HasPrefix(section.Name(), EngineSectionPrefix) {
			continue
		}
		name := strings.TrimPrefix(section.Name(), EngineSectionPrefix)
		if name == "" {
			return errors.Errorf("section %q names no engine", section.Name())
		}
		if !section.Key("enabled").MustBool(true) {
			r.Unregister(name)
			continue
		}
		var caps []tableshare.Capability
		for _, raw := range section.Key("capabilities").Strings(",") {
			c, err := parseCapability(raw)
			if err != nil {
				return errors.Wrapf(err, "engine %s", name)
			}
			caps = append(caps, c)
		}
		r.Register(NewEngine(name, caps...))
	}
	return nil
}
