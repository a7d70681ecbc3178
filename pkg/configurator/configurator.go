// Package configurator resolves the property set a generation runs with.
package configurator

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"dario.cat/mergo"
	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"

	"github.com/openfroyo/archetype/pkg/descriptor"
	"github.com/openfroyo/archetype/pkg/engine"
	"github.com/openfroyo/archetype/pkg/properties"
	"github.com/openfroyo/archetype/pkg/velocity"
)

// BaseRequirements are needed by every archetype.
func BaseRequirements() []engine.PropertyRequirement {
	return []engine.PropertyRequirement{
		{Key: engine.PropGroupID},
		{Key: engine.PropArtifactID},
		{Key: engine.PropVersion, DefaultValue: engine.DefaultVersion},
		{Key: engine.PropPackage, DefaultValue: "${" + engine.PropGroupID + "}"},
	}
}

// Requirements returns the base requirements followed by the descriptor's.
// A descriptor entry for a base key replaces its default and regex.
func Requirements(d *descriptor.Loaded) []engine.PropertyRequirement {
	reqs := BaseRequirements()
	if d == nil || d.Fileset == nil {
		return reqs
	}
	index := make(map[string]int, len(reqs))
	for i, r := range reqs {
		index[r.Key] = i
	}
	for _, p := range d.Fileset.RequiredProperties {
		r := engine.PropertyRequirement{Key: p.Key, DefaultValue: p.DefaultValue, ValidationRegex: p.ValidationRegex}
		if i, ok := index[p.Key]; ok {
			if r.DefaultValue == "" {
				r.DefaultValue = reqs[i].DefaultValue
			}
			reqs[i] = r
			continue
		}
		index[p.Key] = len(reqs)
		reqs = append(reqs, r)
	}
	return reqs
}

// Configurator resolves properties from the request, descriptor defaults
// and, in interactive mode, the user.
type Configurator struct {
	templates *velocity.Engine
	prompter  engine.Prompter
	logger    zerolog.Logger
}

// New creates a configurator. prompter may be nil for batch use.
func New(prompter engine.Prompter, logger zerolog.Logger) *Configurator {
	l := logger.With().Str("component", "configurator").Logger()
	return &Configurator{
		templates: velocity.NewEngine(l),
		prompter:  prompter,
		logger:    l,
	}
}

var _ engine.Configurator = (*Configurator)(nil)

// given returns every value the request supplies. Request fields win over
// request properties.
func given(req *engine.GenerationRequest) (map[string]string, error) {
	values := make(map[string]string, len(req.Properties)+4)
	for k, v := range req.Properties {
		values[k] = v
	}
	fields := make(map[string]string)
	for k, v := range map[string]string{
		engine.PropGroupID:    req.GroupID,
		engine.PropArtifactID: req.ArtifactID,
		engine.PropVersion:    req.Version,
		engine.PropPackage:    req.Package,
	} {
		if v != "" {
			fields[k] = v
		}
	}
	if err := mergo.Merge(&values, fields, mergo.WithOverride); err != nil {
		return nil, fmt.Errorf("merge request properties: %w", err)
	}
	return values, nil
}

// Configure resolves every requirement. Batch mode fails with
// archetype-not-configured listing all missing or invalid properties.
func (c *Configurator) Configure(ctx context.Context, req *engine.GenerationRequest, required []engine.PropertyRequirement) (*engine.Configuration, error) {
	values, err := given(req)
	if err != nil {
		return nil, err
	}
	interactive := req.Interactive && c.prompter != nil

	conf := engine.NewConfiguration()
	var (
		missing []string
		result  *multierror.Error
	)

	for _, r := range required {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		value, ok := values[r.Key]
		if !ok {
			def, err := c.defaultValue(r, conf)
			if err != nil {
				return nil, err
			}
			switch {
			case interactive:
				if value, err = c.ask(r, def); err != nil {
					return nil, err
				}
			case def != "":
				value = def
			default:
				missing = append(missing, r.Key)
				result = multierror.Append(result, fmt.Errorf("property %s is missing", r.Key))
				continue
			}
		}

		if err := Check(r, value); err != nil {
			if !interactive {
				result = multierror.Append(result, err)
				continue
			}
			if value, err = c.askValid(r, value, err); err != nil {
				return nil, err
			}
		}
		conf.Set(r.Key, value)
	}

	if err := result.ErrorOrNil(); err != nil {
		return nil, engine.NewArchetypeNotConfiguredError(missing, err)
	}

	// Extra request properties travel with the configuration.
	extra := make([]string, 0, len(values))
	for k := range values {
		if _, ok := conf.Get(k); !ok {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	for _, k := range extra {
		conf.Set(k, values[k])
	}

	if interactive {
		if err := c.confirm(ctx, required, conf); err != nil {
			return nil, err
		}
	}

	c.logger.Debug().Strs("properties", conf.Keys).Msg("Resolved configuration")
	return conf, nil
}

// defaultValue evaluates a default against the properties resolved so far.
func (c *Configurator) defaultValue(r engine.PropertyRequirement, conf *engine.Configuration) (string, error) {
	if r.DefaultValue == "" {
		return "", nil
	}
	if !strings.ContainsAny(r.DefaultValue, "$#") {
		return r.DefaultValue, nil
	}
	out, err := c.templates.Evaluate("default value of "+r.Key, r.DefaultValue, velocity.NewContext(conf.Map()))
	if err != nil {
		return "", engine.NewError(engine.KindInvalidDescriptor,
			fmt.Sprintf("cannot evaluate default value of %s", r.Key), err)
	}
	return out, nil
}

func (c *Configurator) ask(r engine.PropertyRequirement, def string) (string, error) {
	message := "Define value for property '" + r.Key + "'"
	if r.ValidationRegex != "" {
		message += " (should match " + r.ValidationRegex + ")"
	}
	v, err := c.prompter.Input(message, def)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(v), nil
}

// askValid re-asks until the value passes Check.
func (c *Configurator) askValid(r engine.PropertyRequirement, value string, problem error) (string, error) {
	for problem != nil {
		c.logger.Warn().Str("property", r.Key).Str("value", value).Msg(problem.Error())
		var err error
		if value, err = c.ask(r, ""); err != nil {
			return "", err
		}
		problem = Check(r, value)
	}
	return value, nil
}

// confirm shows the configuration until the user accepts it, re-asking
// every required property after a refusal.
func (c *Configurator) confirm(ctx context.Context, required []engine.PropertyRequirement, conf *engine.Configuration) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		var b strings.Builder
		b.WriteString("Confirm properties configuration:")
		for _, k := range conf.Keys {
			fmt.Fprintf(&b, "\n%s: %s", k, conf.Value(k))
		}
		ok, err := c.prompter.Confirm(b.String(), true)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		for _, r := range required {
			v, err := c.ask(r, conf.Value(r.Key))
			if err != nil {
				return err
			}
			if err := Check(r, v); err != nil {
				if v, err = c.askValid(r, v, err); err != nil {
					return err
				}
			}
			conf.Set(r.Key, v)
		}
	}
}

// Check validates a value against the requirement's regex and, for the
// package property, the Java package syntax.
func Check(r engine.PropertyRequirement, value string) error {
	if value == "" {
		return fmt.Errorf("property %s must not be empty", r.Key)
	}
	if r.ValidationRegex != "" {
		re, err := regexp.Compile(r.ValidationRegex)
		if err != nil {
			return fmt.Errorf("property %s: invalid validationRegex %q: %w", r.Key, r.ValidationRegex, err)
		}
		if !re.MatchString(value) {
			return fmt.Errorf("property %s: value %q does not match %s", r.Key, value, r.ValidationRegex)
		}
	}
	if r.Key == engine.PropPackage && !IsJavaPackage(value) {
		return fmt.Errorf("property package: %q is not a valid Java package name", value)
	}
	return nil
}

var identifier = regexp.MustCompile(`^[\p{L}_$][\p{L}\p{N}_$]*$`)

var javaKeywords = map[string]bool{
	"abstract": true, "assert": true, "boolean": true, "break": true, "byte": true,
	"case": true, "catch": true, "char": true, "class": true, "const": true,
	"continue": true, "default": true, "do": true, "double": true, "else": true,
	"enum": true, "extends": true, "final": true, "finally": true, "float": true,
	"for": true, "goto": true, "if": true, "implements": true, "import": true,
	"instanceof": true, "int": true, "interface": true, "long": true, "native": true,
	"new": true, "package": true, "private": true, "protected": true, "public": true,
	"return": true, "short": true, "static": true, "strictfp": true, "super": true,
	"switch": true, "synchronized": true, "this": true, "throw": true, "throws": true,
	"transient": true, "try": true, "void": true, "volatile": true, "while": true,
	"true": true, "false": true, "null": true,
}

// IsJavaPackage reports whether name is a dotted list of Java identifiers
// that are not keywords.
func IsJavaPackage(name string) bool {
	if name == "" {
		return false
	}
	for _, part := range strings.Split(name, ".") {
		if !identifier.MatchString(part) || javaKeywords[part] {
			return false
		}
	}
	return true
}

// ToProperties renders a configuration as an archetype.properties file,
// optionally recording the archetype it was made for.
func ToProperties(conf *engine.Configuration, archetype engine.Coordinates) *properties.File {
	f := properties.FromMap(conf.Map())
	if archetype.IsComplete() {
		f.Set(properties.KeyArchetypeGroupID, archetype.GroupID)
		f.Set(properties.KeyArchetypeArtifactID, archetype.ArtifactID)
		f.Set(properties.KeyArchetypeVersion, archetype.Version)
	}
	return f
}

// FromProperties turns an archetype.properties file into request fields:
// the archetype coordinates, the four base properties and the rest as
// additional properties.
func FromProperties(f *properties.File, req *engine.GenerationRequest) {
	if v := f.GetString(properties.KeyArchetypeGroupID, ""); v != "" && req.Archetype.GroupID == "" {
		req.Archetype.GroupID = v
	}
	if v := f.GetString(properties.KeyArchetypeArtifactID, ""); v != "" && req.Archetype.ArtifactID == "" {
		req.Archetype.ArtifactID = v
	}
	if v := f.GetString(properties.KeyArchetypeVersion, ""); v != "" && req.Archetype.Version == "" {
		req.Archetype.Version = v
	}
	if req.Properties == nil {
		req.Properties = make(map[string]string)
	}
	for k, v := range f.ProjectProperties() {
		if _, ok := req.Properties[k]; !ok {
			req.Properties[k] = v
		}
	}
}
