package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"

	"github.com/openfroyo/archetype/pkg/archive"
	"github.com/openfroyo/archetype/pkg/engine"
	"github.com/openfroyo/archetype/pkg/pom"
)

func newJarCommand() *cobra.Command {
	var (
		projectDir string
		output     string
		archetype  string
	)

	cmd := &cobra.Command{
		Use:   "jar",
		Short: "Package an archetype project as a jar",
		Long: `Package an archetype project as a jar.

The jar holds src/main/resources of the archetype project, a manifest and the
Maven metadata (pom.xml and pom.properties). Coordinates are read from the
project POM unless --archetype is given.`,
		Example: `  # Package the archetype created by "archetype create"
  archetype jar --project target/generated-sources/archetype

  # Choose the jar location
  archetype jar -p my-archetype -o /tmp/my-archetype.jar`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			coords, err := projectCoordinates(projectDir, archetype)
			if err != nil {
				return err
			}
			dest := output
			if dest == "" {
				dest = filepath.Join(projectDir, "target", coords.JarName())
			}

			return withApp(ctx, func(a *app) (err error) {
				op := a.operation(ctx, "archetype.jar",
					attribute.String("archetype.coordinates", coords.String()),
					attribute.String("archetype.jar", dest))
				defer func() { op.End(err) }()

				op.Logger.Zerolog().Info().
					Str("project", projectDir).
					Str("archetype", coords.String()).
					Str("jar", dest).
					Msg("Packaging archetype")

				n, err := archive.WriteJar(op.Ctx, projectDir, coords, dest)
				if err != nil {
					return err
				}
				if jsonOutput {
					return printJSON(os.Stdout, map[string]interface{}{
						"archetype": coords,
						"jar":       absOrSelf(dest),
						"entries":   n,
					})
				}
				fmt.Printf("✓ Packaged %s into %s (%d entries)\n", coords, dest, n)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&projectDir, "project", "p", ".", "archetype project directory")
	cmd.Flags().StringVarP(&output, "output", "o", "", "jar to write (default <project>/target/<artifactId>-<version>.jar)")
	cmd.Flags().StringVar(&archetype, "archetype", "", "archetype coordinates groupId:artifactId:version")

	return cmd
}

// projectCoordinates returns explicit coordinates, completed from the
// project POM.
func projectCoordinates(projectDir, explicit string) (engine.Coordinates, error) {
	coords := engine.ParseCoordinates(explicit)
	if coords.IsComplete() {
		return coords, nil
	}
	project, err := pom.ReadFile(filepath.Join(projectDir, "pom.xml"))
	if err != nil {
		return coords, fmt.Errorf("failed to read archetype project POM: %w", err)
	}
	fromPom := project.Coordinates()
	if coords.GroupID == "" {
		coords.GroupID = fromPom.GroupID
	}
	if coords.ArtifactID == "" {
		coords.ArtifactID = fromPom.ArtifactID
	}
	if coords.Version == "" {
		coords.Version = fromPom.Version
	}
	if !coords.IsComplete() {
		return coords, fmt.Errorf("incomplete archetype coordinates %q", coords)
	}
	return coords, nil
}
