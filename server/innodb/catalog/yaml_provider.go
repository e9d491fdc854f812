package catalog

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"go.yaml.in/yaml/v3"

	"github.com/zhukovaskychina/xmysql-tabledef/server/innodb/metadata"
)

var yamlExtensions = []string{".yaml", ".yml"}

// YAMLProvider serves tables from a directory tree laid out as
// <dir>/<schema>/<table>.yaml, one table record per file.
type YAMLProvider struct {
	dir string
}

// NewYAMLProvider returns a provider rooted at dir.
func NewYAMLProvider(dir string) *YAMLProvider {
	return &YAMLProvider{dir: dir}
}

// Dir is the root directory.
func (p *YAMLProvider) Dir() string {
	return p.dir
}

func (p *YAMLProvider) lookup(schema, table string) (string, error) {
	for _, ext := range yamlExtensions {
		path := filepath.Join(p.dir, schema, table+ext)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		} else if !os.IsNotExist(err) {
			return "", errors.Wrapf(err, "stat %s", path)
		}
	}
	return "", notFound(schema, table)
}

// LoadTable implements Provider.
func (p *YAMLProvider) LoadTable(ctx context.Context, schema, table string) (*metadata.TableMetadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := p.lookup(schema, table)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	tab, err := DecodeTable(f)
	if err != nil {
		return nil, errors.Wrapf(err, "load %s", path)
	}
	if tab.Schema == "" {
		tab.Schema = schema
	}
	if tab.Name == "" {
		tab.Name = table
	}
	if tab.Schema != schema || tab.Name != table {
		return nil, errors.Errorf("%s describes %s, not %s.%s", path, tab.QualifiedName(), schema, table)
	}
	return tab, nil
}

// ListTables implements Provider.
func (p *YAMLProvider) ListTables(ctx context.Context, schema string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(filepath.Join(p.dir, schema))
	if err != nil {
		return nil, errors.Wrapf(err, "list schema %s", schema)
	}
	seen := make(map[string]bool)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		for _, ext := range yamlExtensions {
			if name := strings.TrimSuffix(e.Name(), ext); name != e.Name() && !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	sort.Strings(names)
	return names, nil
}

// SaveTable writes tab to <dir>/<schema>/<name>.yaml, replacing any
// previous record.
func (p *YAMLProvider) SaveTable(tab *metadata.TableMetadata) (string, error) {
	dir := filepath.Join(p.dir, tab.Schema)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrapf(err, "create %s", dir)
	}
	path := filepath.Join(dir, tab.Name+".yaml")
	f, err := os.Create(path)
	if err != nil {
		return "", errors.Wrapf(err, "create %s", path)
	}
	if err := EncodeTable(f, tab); err != nil {
		f.Close()
		return "", errors.Wrapf(err, "write %s", path)
	}
	return path, errors.Wrapf(f.Close(), "close %s", path)
}

// DecodeTable reads one table record. Unknown keys are rejected so that
// a misspelt option does not silently vanish.
func DecodeTable(r io.Reader) (*metadata.TableMetadata, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	tab := &metadata.TableMetadata{}
	if err := dec.Decode(tab); err != nil {
		if err == io.EOF {
			return nil, errors.New("empty table file")
		}
		return nil, errors.Wrap(err, "decode table")
	}
	if err := tab.Normalize(); err != nil {
		return nil, errors.WithStack(err)
	}
	return tab, nil
}

// EncodeTable writes tab as YAML.
func EncodeTable(w io.Writer, tab *metadata.TableMetadata) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(tab); err != nil {
		return errors.Wrap(err, "encode table")
	}
	return errors.WithStack(enc.Close())
}
