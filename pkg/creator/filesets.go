package creator

import (
	"path"
	"sort"
	"strings"

	"github.com/openfroyo/archetype/pkg/descriptor"
	"github.com/openfroyo/archetype/pkg/fileset"
)

// template is one project file as it will be stored in the archetype.
type template struct {
	// source is the path relative to the owning module.
	source string

	// dir is the fileset directory and rel the path below it, package
	// stripped for packaged files, both before __artifactId__ renaming.
	dir string
	rel string

	packaged bool
	filtered bool
	encoding string
}

// stored is the path below the module's template directory.
func (t template) stored() string {
	if t.dir == "" {
		return t.rel
	}
	return t.dir + "/" + t.rel
}

type filesetKey struct {
	dir      string
	packaged bool
	filtered bool
	encoding string
}

// classify places a module-relative file into a fileset:
//
//	src/<x>/<language>/<package path>/...  packaged fileset src/<x>/<language>
//	src/<x>/<language>/...                 unpackaged fileset src/<x>/<language>
//	src/<a>/<b>/...                        fileset src/<a>/<b>
//	anything else                          the module's root fileset
func classify(file string, languages []string, pkgPath string) template {
	segments := strings.Split(file, "/")
	if len(segments) >= 4 && segments[0] == "src" {
		dir := strings.Join(segments[:3], "/")
		rest := strings.Join(segments[3:], "/")
		if contains(languages, segments[2]) && pkgPath != "" && strings.HasPrefix(rest, pkgPath+"/") {
			return template{source: file, dir: dir, rel: strings.TrimPrefix(rest, pkgPath+"/"), packaged: true}
		}
		return template{source: file, dir: dir, rel: rest}
	}
	return template{source: file, rel: file}
}

// buildFileSets groups templates into filesets. Each fileset includes
// "**/*.<ext>" patterns; files of other filesets that such a pattern would
// also select are excluded explicitly so no file is generated twice.
func buildFileSets(templates []template) []descriptor.FileSet {
	groups := make(map[filesetKey][]template)
	var keys []filesetKey
	for _, t := range templates {
		k := filesetKey{dir: t.dir, packaged: t.packaged, filtered: t.filtered, encoding: t.encoding}
		if _, ok := groups[k]; !ok {
			keys = append(keys, k)
		}
		groups[k] = append(groups[k], t)
	}
	sort.Slice(keys, func(i, j int) bool { return keyLess(keys[i], keys[j]) })

	sets := make([]descriptor.FileSet, 0, len(keys))
	for _, k := range keys {
		members := groups[k]
		var includes []string
		own := make(map[string]bool, len(members))
		for _, t := range members {
			includes = appendUnique(includes, fileset.IncludeFor(t.rel))
			own[t.stored()] = true
		}
		sort.Strings(includes)

		var excludes []string
		// Directories of nested filesets.
		for _, other := range keys {
			if other.dir != k.dir && under(other.dir, k.dir) {
				excludes = appendUnique(excludes, relativeTo(other.dir, k.dir)+"/**")
			}
		}

		set := descriptor.FileSet{
			Filtered:  k.filtered,
			Packaged:  k.packaged,
			Directory: k.dir,
			Includes:  includes,
		}
		if k.encoding != "" && k.encoding != "UTF-8" {
			set.Encoding = k.encoding
		}

		// Remaining overlaps with files of other filesets in the same tree.
		matcher, err := fileset.NewMatcher(includes, excludes, false)
		if err == nil {
			for _, t := range templates {
				stored := t.stored()
				if own[stored] || !under(t.dir, k.dir) {
					continue
				}
				rel := relativeTo(stored, k.dir)
				if matcher.Match(rel) {
					excludes = appendUnique(excludes, rel)
				}
			}
		}
		sort.Strings(excludes)
		set.Excludes = excludes
		sets = append(sets, set)
	}
	return sets
}

func keyLess(a, b filesetKey) bool {
	if a.dir != b.dir {
		return a.dir < b.dir
	}
	if a.packaged != b.packaged {
		return a.packaged
	}
	if a.filtered != b.filtered {
		return a.filtered
	}
	return a.encoding < b.encoding
}

// under reports whether dir is parent or a directory below it.
func under(dir, parent string) bool {
	return parent == "" || dir == parent || strings.HasPrefix(dir, parent+"/")
}

func relativeTo(p, parent string) string {
	if parent == "" {
		return p
	}
	return strings.TrimPrefix(strings.TrimPrefix(p, parent), "/")
}

func appendUnique(list []string, s string) []string {
	for _, v := range list {
		if v == s {
			return list
		}
	}
	return append(list, s)
}

// isFiltered reports whether a file is filtered by extension; dotfiles and
// files without an extension match on their name.
func isFiltered(file string, extensions []string) bool {
	ext := fileset.ExtensionOf(file)
	if ext == "" {
		ext = strings.TrimPrefix(path.Base(file), ".")
	}
	for _, e := range extensions {
		if strings.EqualFold(strings.TrimPrefix(e, "."), ext) {
			return true
		}
	}
	return false
}
