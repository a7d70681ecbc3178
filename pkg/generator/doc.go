// Package generator turns an archetype into a project.
//
// Fileset archetypes (archetype-metadata.xml) are processed module by
// module: the module POM first, then each fileset, then nested modules,
// whose POMs are linked to the enclosing one with <parent> and <modules>.
// Legacy archetypes (archetype.xml) map their entries onto the standard
// Maven source layout.
//
// Filtered files go through the Velocity engine; __property__ tokens in
// paths are replaced with property values. When the archetype is partial,
// files that already exist are kept, except POMs, which are merged.
//
// Generate also records a history run, checks policies and runs the
// archetype's post-generate script:
//
//	g := generator.New(generator.Options{
//		Selector:     sel,
//		Configurator: configurator.New(prompter, logger),
//		Store:        store,
//		Logger:       logger,
//	})
//	result, err := g.Generate(ctx, req)
package generator
