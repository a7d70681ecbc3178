package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	configPath string
	verbose    bool
	jsonOutput bool

	appVersion = "dev"
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	appVersion = version
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "archetype",
		Short: "Project templates for Maven-style builds",
		Long: `archetype generates projects from archetypes and creates archetypes from
existing projects.

Features:
  - Fileset (archetype-metadata.xml) and legacy (archetype.xml) archetypes
  - Velocity templates with __property__ file names
  - Multi-module projects linked to their parent POM
  - Partial archetypes merged into existing projects
  - Catalogs, a local repository, and a crawled index
  - Naming policies, post-generate scripts, and run history`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	rootCmd.AddCommand(newInitCommand())
	rootCmd.AddCommand(newGenerateCommand())
	rootCmd.AddCommand(newCreateCommand())
	rootCmd.AddCommand(newJarCommand())
	rootCmd.AddCommand(newInstallCommand())
	rootCmd.AddCommand(newCrawlCommand())
	rootCmd.AddCommand(newCatalogCommand())
	rootCmd.AddCommand(newIntegrationTestCommand())
	rootCmd.AddCommand(newRegistryCommand())
	rootCmd.AddCommand(newHistoryCommand())
	rootCmd.AddCommand(newPolicyCommand())

	return rootCmd
}
