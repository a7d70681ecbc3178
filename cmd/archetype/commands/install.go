package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"

	"github.com/openfroyo/archetype/pkg/archive"
	"github.com/openfroyo/archetype/pkg/catalog"
	"github.com/openfroyo/archetype/pkg/engine"
)

func newInstallCommand() *cobra.Command {
	var (
		archetype   string
		description string
	)

	cmd := &cobra.Command{
		Use:   "install <jar>",
		Short: "Install an archetype jar into the local repository",
		Long: `Install an archetype jar into the local repository and add it to the
local catalog.

Coordinates come from the jar's pom.properties unless --archetype is given.`,
		Example: `  # Install a packaged archetype
  archetype install target/shop-archetype-1.0.jar

  # Install with explicit coordinates
  archetype install shop.jar --archetype com.acme:shop-archetype:1.0`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			jar := args[0]
			return withApp(ctx, func(a *app) (err error) {
				op := a.operation(ctx, "archetype.install", attribute.String("archetype.jar", jar))
				defer func() { op.End(err) }()
				ctx := op.Ctx

				arch, err := archive.Open(jar)
				if err != nil {
					return err
				}
				defer func() { _ = arch.Close() }()

				coords := engine.ParseCoordinates(archetype)
				if !coords.IsComplete() {
					found, ok := archive.ReadPomProperties(arch)
					if !ok {
						return fmt.Errorf("%s carries no pom.properties; pass --archetype", jar)
					}
					coords = found
				}
				entry := engine.CatalogEntry{Coordinates: coords, Description: description}
				if entry.Description == "" {
					if loaded, err := arch.Descriptor(); err == nil {
						entry.Description = loaded.Name()
					}
				}

				op.Logger.Zerolog().Info().Str("jar", jar).Str("archetype", coords.String()).Msg("Installing archetype")

				dest, err := a.repository().Install(ctx, jar, coords)
				if err != nil {
					return err
				}
				added, err := catalog.UpdateLocal(a.cfg.LocalRepository, entry)
				if err != nil {
					return err
				}
				a.audit(ctx, "archetype.installed", coords.String(), map[string]string{"path": dest})

				if jsonOutput {
					return printJSON(os.Stdout, map[string]interface{}{
						"archetype": coords,
						"path":      dest,
						"cataloged": added > 0,
					})
				}
				fmt.Printf("✓ Installed %s to %s\n", coords, dest)
				if added > 0 {
					fmt.Printf("  Added to %s\n", catalog.LocalPath(a.cfg.LocalRepository))
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&archetype, "archetype", "", "archetype coordinates groupId:artifactId:version")
	cmd.Flags().StringVar(&description, "description", "", "catalog description")

	return cmd
}
