// Package fileset selects files with Ant-style include and exclude patterns.
//
// Patterns use '/' as separator. "*" matches within one path segment, "**"
// matches any number of segments including none, "?" matches one character,
// and a trailing "/" is shorthand for "/**".
package fileset

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/gobwas/glob"
)

// DefaultExcludes are left out of every scan unless disabled.
var DefaultExcludes = []string{
	"**/*~",
	"**/#*#",
	"**/.#*",
	"**/%*%",
	"**/._*",
	"**/CVS/**",
	"**/.cvsignore",
	"**/SCCS/**",
	"**/vssver.scc",
	"**/.svn/**",
	"**/.DS_Store",
	"**/.git/**",
	"**/.gitattributes",
	"**/.gitignore",
	"**/.gitmodules",
	"**/.hg/**",
	"**/.hgignore",
	"**/.hgsub",
	"**/.hgsubstate",
	"**/.hgtags",
	"**/.bzr/**",
	"**/.bzrignore",
}

// Pattern is one compiled Ant-style pattern.
type Pattern struct {
	source string
	globs  []glob.Glob
}

// Compile compiles an Ant-style pattern.
func Compile(pattern string) (*Pattern, error) {
	normalized := normalize(pattern)
	if normalized == "" {
		return nil, fmt.Errorf("empty pattern %q", pattern)
	}
	p := &Pattern{source: pattern}
	for _, variant := range variants(normalized) {
		g, err := glob.Compile(quote(variant), '/')
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
		}
		p.globs = append(p.globs, g)
	}
	return p, nil
}

// String returns the pattern as written.
func (p *Pattern) String() string {
	return p.source
}

// Match reports whether a slash-separated relative path matches.
func (p *Pattern) Match(name string) bool {
	name = strings.TrimPrefix(path.Clean("/"+name), "/")
	for _, g := range p.globs {
		if g.Match(name) {
			return true
		}
	}
	return false
}

func normalize(pattern string) string {
	p := strings.TrimSpace(strings.ReplaceAll(pattern, "\\", "/"))
	p = strings.TrimPrefix(p, "./")
	p = strings.TrimLeft(p, "/")
	if strings.HasSuffix(p, "/") {
		p += "**"
	}
	return p
}

// variants expands every "**/" into the forms with and without it, so that
// "**/" also matches zero directories. A trailing "/**" also matches the
// directory itself.
func variants(p string) []string {
	var out []string
	i := strings.Index(p, "**/")
	if i < 0 {
		out = []string{p}
	} else {
		head := p[:i]
		for _, tail := range variants(p[i+3:]) {
			out = append(out, head+"**/"+tail, head+tail)
		}
	}
	if strings.HasSuffix(p, "/**") && i < 0 {
		out = append(out, strings.TrimSuffix(p, "/**"))
	}
	return out
}

// quote escapes glob syntax that has no meaning in Ant patterns.
func quote(p string) string {
	var b strings.Builder
	for i := 0; i < len(p); i++ {
		switch c := p[i]; c {
		case '{', '}', '[', ']', '\\':
			b.WriteByte('\\')
			b.WriteByte(c)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// Matcher combines includes and excludes. A path is selected when it matches
// an include (everything when there are none) and no exclude.
type Matcher struct {
	includes []*Pattern
	excludes []*Pattern
}

// NewMatcher compiles a matcher. DefaultExcludes are added when
// useDefaultExcludes is set.
func NewMatcher(includes, excludes []string, useDefaultExcludes bool) (*Matcher, error) {
	m := &Matcher{}
	for _, inc := range includes {
		p, err := Compile(inc)
		if err != nil {
			return nil, err
		}
		m.includes = append(m.includes, p)
	}
	all := excludes
	if useDefaultExcludes {
		all = append(append([]string(nil), excludes...), DefaultExcludes...)
	}
	for _, exc := range all {
		p, err := Compile(exc)
		if err != nil {
			return nil, err
		}
		m.excludes = append(m.excludes, p)
	}
	return m, nil
}

// Match reports whether name is selected.
func (m *Matcher) Match(name string) bool {
	return m.Included(name) && !m.Excluded(name)
}

// Included reports whether name matches an include.
func (m *Matcher) Included(name string) bool {
	if len(m.includes) == 0 {
		return true
	}
	for _, p := range m.includes {
		if p.Match(name) {
			return true
		}
	}
	return false
}

// Excluded reports whether name matches an exclude.
func (m *Matcher) Excluded(name string) bool {
	for _, p := range m.excludes {
		if p.Match(name) {
			return true
		}
	}
	return false
}

// Filter returns the selected paths, in input order.
func (m *Matcher) Filter(paths []string) []string {
	var out []string
	for _, p := range paths {
		if m.Match(p) {
			out = append(out, p)
		}
	}
	return out
}

// Scan walks fsys from its root and returns the selected regular files as
// sorted slash-separated paths. Excluded directories are not descended.
func Scan(ctx context.Context, fsys fs.FS, m *Matcher) ([]string, error) {
	var files []string
	err := fs.WalkDir(fsys, ".", func(name string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if name == "." {
			return nil
		}
		if d.IsDir() {
			if m.Excluded(name) {
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if m.Match(name) {
			files = append(files, name)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// ScanDir scans a directory on disk.
func ScanDir(ctx context.Context, dir string, includes, excludes []string) ([]string, error) {
	m, err := NewMatcher(includes, excludes, true)
	if err != nil {
		return nil, err
	}
	return Scan(ctx, os.DirFS(dir), m)
}

// ExtensionOf returns the extension of name without the dot. Dotfiles such
// as ".gitignore" have no extension.
func ExtensionOf(name string) string {
	base := path.Base(name)
	i := strings.LastIndexByte(base, '.')
	if i <= 0 {
		return ""
	}
	return base[i+1:]
}

// IncludeFor returns the include pattern that selects files like name:
// "**/*.<ext>" or, for files without an extension, "**/<name>".
func IncludeFor(name string) string {
	if ext := ExtensionOf(name); ext != "" {
		return "**/*." + ext
	}
	return "**/" + path.Base(name)
}
