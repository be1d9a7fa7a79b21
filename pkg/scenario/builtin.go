package scenario

import (
	"embed"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/samber/lo"
)

//go:embed builtin/*.yaml
var builtinFS embed.FS

// BuiltinNames lists the scenarios shipped with the binary.
func BuiltinNames() []string {
	entries, err := builtinFS.ReadDir("builtin")
	if err != nil {
		return nil
	}
	names := lo.FilterMap(entries, func(e os.DirEntry, _ int) (string, bool) {
		return strings.TrimSuffix(e.Name(), ".yaml"), strings.HasSuffix(e.Name(), ".yaml")
	})
	sort.Strings(names)
	return names
}

func Builtin(name string, vars map[string]string) (*Scenario, error) {
	data, err := builtinFS.ReadFile(path.Join("builtin", name+".yaml"))
	if err != nil {
		return nil, errors.Errorf("unknown scenario %q (available: %s)", name, strings.Join(BuiltinNames(), ", "))
	}
	return Parse(data, vars)
}

// Resolve loads ref as a scenario file when it looks like a path and as a
// built-in scenario otherwise.
func Resolve(ref string, vars map[string]string) (*Scenario, error) {
	if strings.HasSuffix(ref, ".yaml") || strings.HasSuffix(ref, ".yml") || strings.ContainsRune(ref, os.PathSeparator) {
		return LoadFile(ref, vars)
	}
	return Builtin(ref, vars)
}
