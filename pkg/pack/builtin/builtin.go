// Package builtin ships the standard compliance packs as embedded YAML.
package builtin

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strings"

	"skuldbot/compliance/pkg/pack"
	"skuldbot/compliance/pkg/pack/parser"
)

//go:embed packs/*.yaml
var files embed.FS

// Names returns the built-in pack file names without extension, sorted.
func Names() []string {
	entries, err := fs.ReadDir(files, "packs")
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), path.Ext(e.Name())))
	}
	slices.Sort(names)
	return names
}

// Load parses the built-in pack called name.
func Load(name string) (*pack.Pack, error) {
	file := "packs/" + name + ".yaml"
	data, err := files.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("builtin pack %q: %w", name, err)
	}
	return parser.NewParser().ParseBytes(data, "builtin:"+name)
}

// Packs parses the built-in packs whose names are listed, or all of them
// when names is empty.
func Packs(names ...string) ([]*pack.Pack, error) {
	if len(names) == 0 {
		names = Names()
	}
	packs := make([]*pack.Pack, 0, len(names))
	for _, name := range names {
		p, err := Load(name)
		if err != nil {
			return nil, err
		}
		packs = append(packs, p)
	}
	return packs, nil
}
