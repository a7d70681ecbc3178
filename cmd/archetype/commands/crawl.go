package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"

	"github.com/openfroyo/archetype/pkg/catalog"
	"github.com/openfroyo/archetype/pkg/repository"
	"github.com/openfroyo/archetype/pkg/stores"
)

func newCrawlCommand() *cobra.Command {
	var (
		repoRoot string
		noIndex  bool
	)

	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Catalog every archetype in the local repository",
		Long: `Walk the local repository and catalog every jar holding an archetype
descriptor.

New archetypes are added to the local catalog. When history is enabled the
crawl also replaces the searchable index that the "index" catalog source
reads.`,
		Example: `  # Crawl the configured local repository
  archetype crawl

  # Crawl another repository without touching the index
  archetype crawl --repository /srv/m2 --no-index`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withApp(ctx, func(a *app) (err error) {
				root := a.cfg.LocalRepository
				if repoRoot != "" {
					root = repoRoot
				}

				op := a.operation(ctx, "archetype.crawl", attribute.String("archetype.repository", root))
				defer func() { op.End(err) }()
				ctx := op.Ctx
				op.Logger.Zerolog().Info().Str("repository", root).Msg("Crawling repository")

				entries, err := repository.New(root, op.Logger.Zerolog()).Crawl(ctx)
				if err != nil {
					return err
				}
				added, err := catalog.UpdateLocal(root, entries...)
				if err != nil {
					return err
				}

				indexed := 0
				if a.store != nil && !noIndex {
					indexed, err = a.store.ReplaceCatalogEntries(ctx, stores.SourceIndex, entries)
					if err != nil {
						return err
					}
				}
				a.audit(ctx, "repository.crawled", root, map[string]int{
					"found":   len(entries),
					"added":   added,
					"indexed": indexed,
				})

				if jsonOutput {
					return printJSON(os.Stdout, map[string]interface{}{
						"repository": root,
						"archetypes": entries,
						"added":      added,
						"indexed":    indexed,
					})
				}
				fmt.Printf("✓ Found %d archetypes in %s\n", len(entries), root)
				fmt.Printf("  Added to catalog: %d\n", added)
				if indexed > 0 {
					fmt.Printf("  Indexed:          %d\n", indexed)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&repoRoot, "repository", "", "repository to crawl (default the configured local repository)")
	cmd.Flags().BoolVar(&noIndex, "no-index", false, "do not update the search index")

	return cmd
}
