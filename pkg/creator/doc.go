// Package creator builds an archetype project from an existing Maven project.
//
// Every module is read from its POM. Files are split into filesets by their
// location: sources under src/<x>/<language>/<package> become packaged
// filesets, other src/<a>/<b> trees plain ones, and anything else falls in
// the module's root fileset. Text files whose extension is filtered are
// reverse substituted: property values become ${key} references, and
// characters the template engine would read are escaped. Paths containing
// the artifactId are renamed with __artifactId__ (__rootArtifactId__ inside
// nested modules).
//
// The result is a complete archetype project: its POM, the templates below
// src/main/resources/archetype-resources, the archetype-metadata.xml
// descriptor and a basic integration test project.
//
//	c := creator.New(creator.Options{Logger: logger})
//	result, err := c.Create(ctx, &engine.CreationRequest{
//		ProjectDirectory: ".",
//		OutputDirectory:  "target/generated-sources/archetype",
//	})
//
// Watch keeps the archetype up to date while the project is edited.
package creator
