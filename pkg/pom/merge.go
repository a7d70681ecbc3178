package pom

import (
	"strings"
)

// MergeResult lists what Merge added.
type MergeResult struct {
	Dependencies []string
	Modules      []string
	Properties   []string
	Plugins      []string
}

// Changed reports whether anything was added.
func (r MergeResult) Changed() bool {
	return len(r.Dependencies)+len(r.Modules)+len(r.Properties)+len(r.Plugins) > 0
}

// Merge folds a generated POM into an existing one. Dependencies, modules,
// properties and build plugins missing from existing are appended using the
// generated text; nothing already in existing is changed.
func Merge(existing, generated []byte) ([]byte, MergeResult, error) {
	var result MergeResult

	have, err := Parse(existing)
	if err != nil {
		return nil, result, err
	}
	gen, err := Parse(generated)
	if err != nil {
		return nil, result, err
	}
	genElements, err := scan(generated)
	if err != nil {
		return nil, result, err
	}

	out := existing

	// Dependencies, matched by groupId:artifactId:type:classifier.
	haveDeps := make(map[string]bool)
	for _, d := range have.Dependencies {
		haveDeps[d.Key()] = true
	}
	var deps []string
	for i, e := range findAll(genElements, "project/dependencies/dependency") {
		if i >= len(gen.Dependencies) {
			break
		}
		key := gen.Dependencies[i].Key()
		if haveDeps[key] {
			continue
		}
		haveDeps[key] = true
		deps = append(deps, snippet(generated, e))
		result.Dependencies = append(result.Dependencies, key)
	}
	if out, err = appendChildren(out, []string{"project", "dependencies"}, deps); err != nil {
		return nil, result, err
	}

	// Modules.
	var mods []string
	for _, m := range gen.Modules {
		if have.HasModule(m) || contains(result.Modules, m) {
			continue
		}
		mods = append(mods, "<module>"+m+"</module>")
		result.Modules = append(result.Modules, m)
	}
	if out, err = appendChildren(out, []string{"project", "modules"}, mods); err != nil {
		return nil, result, err
	}

	// Properties, matched by name.
	var props []string
	for _, e := range genElements {
		if !strings.HasPrefix(e.path, "project/properties/") || strings.Count(e.path, "/") != 2 {
			continue
		}
		name := e.path[len("project/properties/"):]
		if _, ok := have.Properties.Get(name); ok || contains(result.Properties, name) {
			continue
		}
		props = append(props, snippet(generated, e))
		result.Properties = append(result.Properties, name)
	}
	if out, err = appendChildren(out, []string{"project", "properties"}, props); err != nil {
		return nil, result, err
	}

	// Build plugins, matched by groupId:artifactId.
	havePlugins := make(map[string]bool)
	if have.Build != nil {
		for _, p := range have.Build.Plugins {
			havePlugins[p.Key()] = true
		}
	}
	var plugins []string
	if gen.Build != nil {
		for i, e := range findAll(genElements, "project/build/plugins/plugin") {
			if i >= len(gen.Build.Plugins) {
				break
			}
			key := gen.Build.Plugins[i].Key()
			if havePlugins[key] {
				continue
			}
			havePlugins[key] = true
			plugins = append(plugins, snippet(generated, e))
			result.Plugins = append(result.Plugins, key)
		}
	}
	if out, err = appendChildren(out, []string{"project", "build", "plugins"}, plugins); err != nil {
		return nil, result, err
	}

	return out, result, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
