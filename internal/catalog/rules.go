package catalog

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/JonMunkholm/viewkit/internal/validate"
)

// LoadRules replaces the form rules of every definition that has a
// <key>.yaml file in dir. Each file is compiled against reg first so a bad
// override fails at startup rather than when the form is opened. It returns
// the overridden keys, sorted.
func (c *Catalog) LoadRules(dir string, reg *validate.Registry) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var loaded []string
	for key, def := range c.defs {
		path := filepath.Join(dir, key+".yaml")
		spec, err := readSpec(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if _, err := validate.Compile(spec, validate.Options{Name: key, Registry: reg, Columns: def.RuleColumns}); err != nil {
			return nil, fmt.Errorf("rules %s: %w", path, err)
		}
		def.Rules = spec
		c.defs[key] = def
		loaded = append(loaded, key)
	}
	sort.Strings(loaded)
	return loaded, nil
}

func readSpec(path string) (validate.Spec, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	spec, err := validate.LoadSpec(f)
	if err != nil {
		return nil, fmt.Errorf("rules %s: %w", path, err)
	}
	return spec, nil
}
