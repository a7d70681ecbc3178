// Package selector decides which archetype a generation request uses.
package selector

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/openfroyo/archetype/pkg/archive"
	"github.com/openfroyo/archetype/pkg/catalog"
	"github.com/openfroyo/archetype/pkg/engine"
	"github.com/openfroyo/archetype/pkg/repository"
)

// Default archetype offered when the user just presses enter.
var Default = engine.Coordinates{
	GroupID:    "org.apache.maven.archetypes",
	ArtifactID: "maven-archetype-quickstart",
}

// Selector resolves archetypes from an explicit file, the configured
// catalogs and the local repository.
type Selector struct {
	sources  []engine.CatalogSource
	repo     *repository.Repository
	prompter engine.Prompter
	logger   zerolog.Logger
}

// New creates a selector. repo may be nil when only explicit archetype files
// are used; prompter may be nil for batch use.
func New(sources []engine.CatalogSource, repo *repository.Repository, prompter engine.Prompter, logger zerolog.Logger) *Selector {
	return &Selector{
		sources:  sources,
		repo:     repo,
		prompter: prompter,
		logger:   logger.With().Str("component", "selector").Logger(),
	}
}

var _ engine.Selector = (*Selector)(nil)

// Select resolves the archetype of req and fills in its location.
func (s *Selector) Select(ctx context.Context, req *engine.GenerationRequest) (*engine.ArchetypeDefinition, error) {
	if req.ArchetypeFile != "" {
		return s.fromFile(req)
	}

	entries, err := catalog.Collect(ctx, s.sources, s.logger)
	if err != nil {
		return nil, err
	}

	coords := req.Archetype
	var def *engine.ArchetypeDefinition
	switch {
	case coords.IsComplete():
		def = &engine.ArchetypeDefinition{Coordinates: coords, Repository: req.ArchetypeRepository}
		if e, ok := catalog.Find(entries, coords); ok {
			def.Description = e.Description
			if def.Repository == "" {
				def.Repository = e.Repository
			}
		}

	case coords.ArtifactID != "":
		def, err = s.latest(entries, coords)
		if err != nil {
			return nil, err
		}

	case coords.IsEmpty():
		if !req.Interactive || s.prompter == nil {
			return nil, engine.NewArchetypeNotDefinedError()
		}
		def, err = s.choose(entries, req.Filter)
		if err != nil {
			return nil, err
		}

	default:
		return nil, engine.NewUnknownArchetypeError(coords, fmt.Errorf("artifactId is required"))
	}

	file, err := s.resolveFile(def.Coordinates)
	if err != nil {
		return nil, err
	}
	def.File = file

	s.logger.Info().Str("archetype", def.String()).Str("file", def.File).Msg("Selected archetype")
	return def, nil
}

func (s *Selector) fromFile(req *engine.GenerationRequest) (*engine.ArchetypeDefinition, error) {
	if _, err := os.Stat(req.ArchetypeFile); err != nil {
		return nil, engine.NewUnknownArchetypeError(req.Archetype, err).WithPath(req.ArchetypeFile)
	}
	def := &engine.ArchetypeDefinition{Coordinates: req.Archetype, File: req.ArchetypeFile}

	// Fill in coordinates from the archetype's own metadata when not given.
	if !def.IsComplete() {
		if a, err := archive.Open(req.ArchetypeFile); err == nil {
			if c, ok := archive.ReadPomProperties(a); ok {
				def.Coordinates = c
			}
			a.Close()
		}
	}
	s.logger.Info().Str("file", def.File).Str("archetype", def.String()).Msg("Using archetype file")
	return def, nil
}

// latest resolves coordinates missing a group or version: the catalogs first,
// then the versions installed in the local repository.
func (s *Selector) latest(entries []engine.CatalogEntry, coords engine.Coordinates) (*engine.ArchetypeDefinition, error) {
	if coords.Version != "" && coords.GroupID == "" {
		for _, e := range catalog.FindByArtifactID(entries, coords.ArtifactID) {
			if e.Version == coords.Version {
				return &engine.ArchetypeDefinition{Coordinates: e.Coordinates, Repository: e.Repository, Description: e.Description}, nil
			}
		}
		return nil, engine.NewUnknownArchetypeError(coords, nil)
	}

	if e, ok := catalog.Latest(entries, coords.GroupID, coords.ArtifactID); ok {
		return &engine.ArchetypeDefinition{Coordinates: e.Coordinates, Repository: e.Repository, Description: e.Description}, nil
	}

	if s.repo != nil && coords.GroupID != "" {
		versions, err := s.repo.Versions(coords.GroupID, coords.ArtifactID)
		if err == nil && len(versions) > 0 {
			coords.Version = versions[len(versions)-1]
			return &engine.ArchetypeDefinition{Coordinates: coords}, nil
		}
	}
	return nil, engine.NewUnknownArchetypeError(coords, nil)
}

// choose lists the catalog archetypes and asks for one, then for its version.
func (s *Selector) choose(entries []engine.CatalogEntry, filter string) (*engine.ArchetypeDefinition, error) {
	entries = catalog.Filter(entries, filter)
	if len(entries) == 0 {
		return nil, engine.NewError(engine.KindArchetypeNotDefined,
			fmt.Sprintf("no archetype matches filter %q", filter), nil)
	}
	catalog.Sort(entries)

	// One option per groupId:artifactId; the versions are asked next.
	var (
		ids      []engine.Coordinates
		options  []string
		defIndex = 0
	)
	seen := make(map[engine.Coordinates]bool)
	for _, e := range entries {
		id := engine.Coordinates{GroupID: e.GroupID, ArtifactID: e.ArtifactID}
		if seen[id] {
			continue
		}
		seen[id] = true
		if id == Default {
			defIndex = len(ids)
		}
		ids = append(ids, id)
		label := id.GroupID + ":" + id.ArtifactID
		if e.Description != "" {
			label += " (" + e.Description + ")"
		}
		options = append(options, label)
	}

	i, err := s.prompter.Select("Choose archetype", options, defIndex)
	if err != nil {
		return nil, err
	}
	chosen := ids[i]

	versions := catalog.Versions(entries, chosen.GroupID, chosen.ArtifactID)
	chosen.Version = versions[len(versions)-1]
	if len(versions) > 1 {
		j, err := s.prompter.Select("Choose "+chosen.GroupID+":"+chosen.ArtifactID+" version", versions, len(versions)-1)
		if err != nil {
			return nil, err
		}
		chosen.Version = versions[j]
	}

	e, _ := catalog.Find(entries, chosen)
	return &engine.ArchetypeDefinition{Coordinates: chosen, Repository: e.Repository, Description: e.Description}, nil
}

func (s *Selector) resolveFile(coords engine.Coordinates) (string, error) {
	if s.repo == nil {
		return "", engine.NewUnknownArchetypeError(coords, fmt.Errorf("no local repository configured"))
	}
	p, err := s.repo.Resolve(coords)
	if err != nil {
		return "", err
	}
	return p, nil
}
