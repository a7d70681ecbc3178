// Package engine provides the core types and interfaces for the archetype engine.
//
// # Overview
//
// An archetype is a packaged project template: a resource tree under
// archetype-resources/ plus a descriptor under META-INF/maven/. The engine works
// in two directions:
//
//  1. Select - resolve which archetype to use (Selector)
//  2. Configure - resolve the property set the template needs (Configurator)
//  3. Generate - copy and merge the template into a new project (Generator)
//
// and, in reverse,
//
//  4. Create - turn an existing project into a fileset archetype (Creator)
//
// # Core Domain Types
//
//   - Coordinates: groupId/artifactId/version of an artifact
//   - ArchetypeDefinition: the archetype a selector settled on
//   - GenerationRequest / GenerationResult: input and outcome of generation
//   - CreationRequest / CreationResult: input and outcome of creation
//   - Configuration: the ordered, resolved property set
//
// # Errors
//
// Every failure a user can act on is an *ArchetypeError carrying a Kind.
// Use errors.Is with the Err* sentinels, or the Is* predicates:
//
//	if errors.Is(err, engine.ErrProjectDirectoryExists) {
//	    // ask the user to pick another artifactId
//	}
package engine
