package engine

import (
	"context"
)

// Selector resolves which archetype a request refers to.
type Selector interface {
	// Select returns the archetype definition for the request, prompting when
	// the request is interactive and incomplete.
	Select(ctx context.Context, req *GenerationRequest) (*ArchetypeDefinition, error)
}

// PropertyRequirement is a property an archetype needs before generation.
type PropertyRequirement struct {
	// Key is the property name.
	Key string

	// DefaultValue is a template evaluated against resolved properties.
	DefaultValue string

	// ValidationRegex constrains the value, if set.
	ValidationRegex string
}

// Configurator resolves the property set for a generation.
type Configurator interface {
	// Configure merges request values, defaults and answers into a configuration.
	Configure(ctx context.Context, req *GenerationRequest, required []PropertyRequirement) (*Configuration, error)
}

// Generator generates a project from an archetype.
type Generator interface {
	// Generate runs the whole pipeline for a request.
	Generate(ctx context.Context, req *GenerationRequest) (*GenerationResult, error)
}

// Creator creates an archetype from an existing project.
type Creator interface {
	// Create walks the project and writes an archetype project.
	Create(ctx context.Context, req *CreationRequest) (*CreationResult, error)
}

// CatalogEntry is one archetype listed in a catalog.
type CatalogEntry struct {
	Coordinates

	// Repository is the repository the archetype lives in.
	Repository string `json:"repository,omitempty"`

	// Description is a short human-readable description.
	Description string `json:"description,omitempty"`
}

// CatalogSource provides catalog entries.
type CatalogSource interface {
	// Name identifies the source (e.g., "internal", "local", a path).
	Name() string

	// Entries returns every archetype the source lists.
	Entries(ctx context.Context) ([]CatalogEntry, error)
}

// Prompter asks the user for values.
type Prompter interface {
	// Input asks for a free-form value.
	Input(message, defaultValue string) (string, error)

	// Select asks the user to pick one option; returns the chosen index.
	Select(message string, options []string, defaultIndex int) (int, error)

	// Confirm asks a yes/no question.
	Confirm(message string, defaultValue bool) (bool, error)
}
