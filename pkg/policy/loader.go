package policy

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

// Policy file extensions.
const (
	regoExt = ".rego"
	jsonExt = ".json"
)

// Annotations read from the leading comment block of a .rego file.
const (
	annotationSeverity   = "severity"
	annotationOperations = "operations"
	annotationTags       = "tags"
	annotationEnabled    = "enabled"
)

// Loader reads policies from the files and directories listed under
// policy.paths in the configuration.
type Loader struct {
	logger zerolog.Logger
}

// NewLoader creates a new policy loader.
func NewLoader(logger zerolog.Logger) *Loader {
	return &Loader{logger: logger.With().Str("component", "policy-loader").Logger()}
}

// LoadFromPaths loads the policies of every path in order. A file named
// directly must parse; broken files found while walking a directory are
// skipped with a warning. When two files define the same policy name the
// later one wins once applied to an Engine.
func (l *Loader) LoadFromPaths(ctx context.Context, paths []string) ([]Policy, error) {
	var all []Policy
	sources := make(map[string]string)

	for _, p := range paths {
		found, err := l.loadPath(ctx, p)
		if err != nil {
			return nil, fmt.Errorf("failed to load policies from %s: %w", p, err)
		}
		for _, pol := range found {
			src := sourceOf(&pol)
			if prev, ok := sources[pol.Name]; ok {
				l.logger.Warn().
					Str("policy", pol.Name).
					Str("previous", prev).
					Str("source", src).
					Msg("Policy defined twice, the later file wins")
			}
			sources[pol.Name] = src
		}
		all = append(all, found...)
	}

	l.logger.Debug().
		Int("policies", len(all)).
		Int("paths", len(paths)).
		Msg("Policies loaded")

	return all, nil
}

func (l *Loader) loadPath(ctx context.Context, p string) ([]Policy, error) {
	info, err := os.Stat(p)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		pol, err := loadFile(p, info)
		if err != nil {
			return nil, err
		}
		return []Policy{*pol}, nil
	}

	var found []Policy
	err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || !isPolicyFile(path) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		pol, err := loadFile(path, info)
		if err != nil {
			l.logger.Warn().Err(err).Str("path", path).Msg("Skipping policy file")
			return nil
		}
		found = append(found, *pol)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

func isPolicyFile(path string) bool {
	ext := filepath.Ext(path)
	return ext == regoExt || ext == jsonExt
}

func loadFile(path string, info fs.FileInfo) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var pol *Policy
	switch filepath.Ext(path) {
	case regoExt:
		pol, err = parseRego(path, string(data))
	case jsonExt:
		pol, err = parseJSON(path, data)
	default:
		return nil, fmt.Errorf("%s: not a .rego or .json policy", path)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	pol.CreatedAt = info.ModTime()
	pol.UpdatedAt = info.ModTime()
	if pol.Metadata == nil {
		pol.Metadata = make(map[string]interface{})
	}
	pol.Metadata["source"] = path
	return pol, nil
}

// parseRego turns a Rego module into a policy named after its file. The
// leading comment block is the description, except for annotation lines:
//
//	# Projects must live under org.acme
//	# severity: error
//	# operations: generate
//	package acme.groups
func parseRego(path, src string) (*Policy, error) {
	pol := &Policy{
		Name:     strings.TrimSuffix(filepath.Base(path), regoExt),
		Rego:     src,
		Severity: SeverityWarning,
		Enabled:  true,
	}

	header, annotations := splitHeader(src)
	pol.Description = header

	for key, value := range annotations {
		switch key {
		case annotationSeverity:
			pol.Severity = Severity(value)
		case annotationOperations:
			pol.Operations = splitList(value)
		case annotationTags:
			pol.Tags = splitList(value)
		case annotationEnabled:
			pol.Enabled = value != "false"
		}
	}
	if err := validate(pol); err != nil {
		return nil, err
	}
	return pol, nil
}

// parseJSON reads a serialized Policy. Missing fields take the same
// defaults as a .rego file.
func parseJSON(path string, data []byte) (*Policy, error) {
	var doc struct {
		Policy
		Enabled *bool `json:"enabled"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("invalid JSON policy: %w", err)
	}

	pol := doc.Policy
	if pol.Name == "" {
		pol.Name = strings.TrimSuffix(filepath.Base(path), jsonExt)
	}
	if pol.Severity == "" {
		pol.Severity = SeverityWarning
	}
	pol.Enabled = doc.Enabled == nil || *doc.Enabled
	if strings.TrimSpace(pol.Rego) == "" {
		return nil, fmt.Errorf("policy %s has no rego", pol.Name)
	}
	if err := validate(&pol); err != nil {
		return nil, err
	}
	return &pol, nil
}

func validate(pol *Policy) error {
	switch pol.Severity {
	case SeverityInfo, SeverityWarning, SeverityError, SeverityCritical:
	default:
		return fmt.Errorf("policy %s: unknown severity %q", pol.Name, pol.Severity)
	}
	for _, op := range pol.Operations {
		if op != OperationGenerate && op != OperationCreate {
			return fmt.Errorf("policy %s: unknown operation %q", pol.Name, op)
		}
	}
	return nil
}

// splitHeader returns the description and annotations of the comment
// block before the first code line.
func splitHeader(src string) (string, map[string]string) {
	var desc []string
	annotations := make(map[string]string)

	for _, line := range strings.Split(src, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			if len(desc) > 0 || len(annotations) > 0 {
				break
			}
			continue
		}
		if !strings.HasPrefix(trimmed, "#") {
			break
		}
		comment := strings.TrimSpace(strings.TrimPrefix(trimmed, "#"))
		if comment == "" {
			continue
		}
		if key, value, ok := strings.Cut(comment, ":"); ok && isAnnotation(key) {
			annotations[strings.TrimSpace(key)] = strings.TrimSpace(value)
			continue
		}
		desc = append(desc, comment)
	}
	return strings.Join(desc, " "), annotations
}

func isAnnotation(key string) bool {
	switch strings.TrimSpace(key) {
	case annotationSeverity, annotationOperations, annotationTags, annotationEnabled:
		return true
	}
	return false
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func sourceOf(p *Policy) string {
	if s, ok := p.Metadata["source"].(string); ok {
		return s
	}
	return ""
}
