package config

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
)

// Built-in schema names.
const (
	SchemaConfig  = "config"
	SchemaRequest = "request"
)

// SchemaRegistry manages CUE schemas for validation. Each schema is a CUE
// source declaring one definition; data is unified with that definition.
type SchemaRegistry struct {
	ctx     *cue.Context
	schemas map[string]cue.Value
	mu      sync.Mutex
}

// NewSchemaRegistry creates a new schema registry with built-in schemas.
func NewSchemaRegistry() *SchemaRegistry {
	sr := &SchemaRegistry{
		ctx:     cuecontext.New(),
		schemas: make(map[string]cue.Value),
	}

	sr.registerBuiltInSchemas()

	return sr
}

// registerBuiltInSchemas registers all built-in schemas. They are constants,
// so a compile failure is a programming error.
func (sr *SchemaRegistry) registerBuiltInSchemas() {
	if err := sr.RegisterSchema(SchemaConfig, "#Config", builtinConfigSchema); err != nil {
		panic(err)
	}
	if err := sr.RegisterSchema(SchemaRequest, "#Request", builtinRequestSchema); err != nil {
		panic(err)
	}
}

// RegisterSchema compiles source and registers its definition under name.
func (sr *SchemaRegistry) RegisterSchema(name, definition, source string) error {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	val := sr.ctx.CompileString(source, cue.Filename(name+".cue"))
	if err := val.Err(); err != nil {
		return fmt.Errorf("failed to compile schema %s: %w", name, err)
	}

	def := val.LookupPath(cue.ParsePath(definition))
	if !def.Exists() {
		return fmt.Errorf("schema %s does not declare %s", name, definition)
	}

	sr.schemas[name] = def
	return nil
}

// ValidateAgainstSchema validates data against a named schema. Fields the
// schema marks optional may be absent.
func (sr *SchemaRegistry) ValidateAgainstSchema(ctx context.Context, schemaName string, data interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	// cue.Context is not safe for concurrent use.
	sr.mu.Lock()
	defer sr.mu.Unlock()

	schema, ok := sr.schemas[schemaName]
	if !ok {
		return fmt.Errorf("schema %s not found", schemaName)
	}

	dataVal := sr.ctx.Encode(data)
	if err := dataVal.Err(); err != nil {
		return fmt.Errorf("failed to encode data: %w", err)
	}

	unified := schema.Unify(dataVal)
	if err := unified.Validate(cue.Concrete(false)); err != nil {
		return fmt.Errorf("validation failed: %s", formatCUEError(err))
	}

	return nil
}

// ValidateConfig validates a decoded configuration document.
func (sr *SchemaRegistry) ValidateConfig(ctx context.Context, doc map[string]interface{}) error {
	return sr.ValidateAgainstSchema(ctx, SchemaConfig, doc)
}

// ValidateRequest validates the properties of a generation request.
func (sr *SchemaRegistry) ValidateRequest(ctx context.Context, props map[string]string) error {
	return sr.ValidateAgainstSchema(ctx, SchemaRequest, props)
}

// formatCUEError flattens a CUE error list into a single line.
func formatCUEError(err error) string {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err.Error()
	}
	lines := make([]string, 0, len(errs))
	for _, e := range errs {
		msg := cueerrors.Details(e, nil)
		lines = append(lines, strings.TrimSpace(msg))
	}
	return strings.Join(lines, "; ")
}

const builtinConfigSchema = `
// Config is the archetype.yaml document.
#Config: {
	// Maven local repository holding archetype jars
	local_repository?: string

	// Catalog sources in lookup order: internal, local, file://<path> or a path
	catalogs?: [...string]

	// archetype.xml registry used by create
	registry_file?: string

	interactive?: bool

	// Holds the history database
	data_dir?: string

	history?: {
		enabled?:   bool
		retention?: string
	}

	policy?: {
		enabled?: bool
		paths?: [...string]
		enable?: [...string]
		disable?: [...string]
	}

	script?: {
		timeout?: string
	}

	telemetry?: {
		logging?: {
			level?:       "trace" | "debug" | "info" | "warn" | "error" | "fatal"
			format?:      "console" | "json"
			output?:      string
			caller?:      bool
			time_format?: "unix" | "unixms" | "unixmicro" | "rfc3339"
		}
		metrics?: {
			enabled?:   bool
			textfile?:  string
			namespace?: string
			buckets?: [...number]
		}
		tracing?: {
			enabled?:               bool
			exporter?:              "otlp" | "stdout" | "none"
			endpoint?:              string
			sampling_rate?:         number & >=0 & <=1
			max_export_batch_size?: int & >=0
			export_timeout?:        string
			headers?: {[string]: string}
			insecure?: bool
		}
	}
}
`

const builtinRequestSchema = `
#Identifier: =~"^[A-Za-z0-9_.-]+$"

// Request holds the properties of a generation request.
#Request: {
	groupId?:    string & #Identifier
	artifactId?: string & #Identifier
	version?:    string & !=""
	"package"?:  string & =~"^[A-Za-z_$][A-Za-z0-9_$]*(\\.[A-Za-z_$][A-Za-z0-9_$]*)*$"

	archetypeGroupId?:    string & #Identifier
	archetypeArtifactId?: string & #Identifier
	archetypeVersion?:    string & !=""

	[string]: string
}
`
