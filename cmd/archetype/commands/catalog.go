package commands

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/openfroyo/archetype/pkg/catalog"
	"github.com/openfroyo/archetype/pkg/engine"
)

func newCatalogCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "List and search archetype catalogs",
	}
	cmd.AddCommand(newCatalogListCommand())
	cmd.AddCommand(newCatalogSearchCommand())
	return cmd
}

func newCatalogListCommand() *cobra.Command {
	var (
		filter   string
		catalogs []string
		latest   bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the archetypes of the configured catalogs",
		Example: `  # Everything the configured catalogs know
  archetype catalog list

  # Only quickstart archetypes from the internal catalog
  archetype catalog list --catalog internal --filter quickstart`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withApp(ctx, func(a *app) error {
				sources, err := a.sources(catalogs)
				if err != nil {
					return err
				}
				entries, err := catalog.Collect(ctx, sources, a.logger)
				if err != nil {
					return err
				}
				entries = catalog.Filter(entries, filter)
				if latest {
					entries = latestOnly(entries)
				}
				catalog.Sort(entries)

				if jsonOutput {
					return printJSON(os.Stdout, entries)
				}
				return printEntries(entries)
			})
		},
	}

	cmd.Flags().StringVar(&filter, "filter", "", "text or groupId:artifactId the archetypes must match")
	cmd.Flags().StringSliceVar(&catalogs, "catalog", nil, "catalog sources (internal, local, index, file path)")
	cmd.Flags().BoolVar(&latest, "latest", false, "show only the latest version of each archetype")

	return cmd
}

func newCatalogSearchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <text>",
		Short: "Search the crawled archetype index",
		Long: `Search the archetype index built by "archetype crawl". The text is matched
against coordinates and descriptions.`,
		Example: `  archetype catalog search webapp`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withApp(ctx, func(a *app) error {
				if a.store == nil {
					return fmt.Errorf("the archetype index needs history enabled")
				}
				found, err := a.store.SearchCatalogEntries(ctx, args[0])
				if err != nil {
					return err
				}
				if jsonOutput {
					return printJSON(os.Stdout, found)
				}
				w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "ARCHETYPE\tDESCRIPTION\tINDEXED")
				for _, e := range found {
					fmt.Fprintf(w, "%s\t%s\t%s\n", e.Coordinates, e.Description, e.IndexedAt.Format(time.DateTime))
				}
				return w.Flush()
			})
		},
	}
	return cmd
}

func latestOnly(entries []engine.CatalogEntry) []engine.CatalogEntry {
	seen := make(map[string]bool)
	var out []engine.CatalogEntry
	for _, e := range entries {
		key := e.GroupID + ":" + e.ArtifactID
		if seen[key] {
			continue
		}
		seen[key] = true
		if l, ok := catalog.Latest(entries, e.GroupID, e.ArtifactID); ok {
			out = append(out, l)
		}
	}
	return out
}

func printEntries(entries []engine.CatalogEntry) error {
	if len(entries) == 0 {
		fmt.Println("No archetypes found")
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "GROUP\tARTIFACT\tVERSION\tDESCRIPTION")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.GroupID, e.ArtifactID, e.Version, e.Description)
	}
	return w.Flush()
}
