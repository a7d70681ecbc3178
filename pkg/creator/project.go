package creator

import (
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/openfroyo/archetype/pkg/engine"
	"github.com/openfroyo/archetype/pkg/pom"
)

// projectModule is one module of the source project.
type projectModule struct {
	// dir is the module directory relative to the project root, slash
	// separated; "" for the root.
	dir string

	project *pom.Project
	pomData []byte

	children []*projectModule
}

// readModules reads the POM in dir and, for aggregators, every listed module.
func readModules(root, dir string) (*projectModule, error) {
	p := filepath.Join(root, filepath.FromSlash(dir), pom.FileName)
	project, err := pom.ReadFile(p)
	if err != nil {
		return nil, engine.NewError(engine.KindCreationFailure, "cannot read project POM", err).WithPath(p)
	}
	data, err := readBytes(p)
	if err != nil {
		return nil, err
	}

	m := &projectModule{dir: dir, project: project, pomData: data}
	if project.EffectivePackaging() != "pom" {
		return m, nil
	}
	for _, name := range project.Modules {
		name = strings.Trim(strings.TrimSpace(name), "/")
		if name == "" {
			continue
		}
		child, err := readModules(root, path.Join(dir, name))
		if err != nil {
			return nil, err
		}
		m.children = append(m.children, child)
	}
	return m, nil
}

// all returns m and its descendants, parents first.
func (m *projectModule) all() []*projectModule {
	out := []*projectModule{m}
	for _, c := range m.children {
		out = append(out, c.all()...)
	}
	return out
}

// name is the last element of the module directory.
func (m *projectModule) name() string {
	return path.Base(m.dir)
}

// owner returns the innermost module containing the project-relative file.
func owner(root *projectModule, file string) *projectModule {
	for _, c := range root.children {
		if strings.HasPrefix(file, c.dir+"/") {
			return owner(c, file)
		}
	}
	return root
}

// detectPackage returns the deepest package shared by every source file in
// a language directory ("src/<x>/<language>/..."), or "".
func detectPackage(files []string, languages []string) string {
	var common []string
	found := false
	for _, f := range files {
		segments := strings.Split(f, "/")
		i := languageIndex(segments, languages)
		if i < 0 {
			continue
		}
		dirs := segments[i+1 : len(segments)-1]
		if !found {
			common = append([]string(nil), dirs...)
			found = true
			continue
		}
		n := 0
		for n < len(common) && n < len(dirs) && common[n] == dirs[n] {
			n++
		}
		common = common[:n]
	}
	return strings.Join(common, ".")
}

// languageIndex finds "src/<x>/<language>" in a module-relative path and
// returns the index of the language segment, or -1.
func languageIndex(segments, languages []string) int {
	for i := 0; i+2 < len(segments); i++ {
		if segments[i] == "src" && contains(languages, segments[i+2]) && i+3 < len(segments) {
			return i + 2
		}
	}
	return -1
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
