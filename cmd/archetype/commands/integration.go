package commands

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/openfroyo/archetype/pkg/configurator"
	"github.com/openfroyo/archetype/pkg/generator"
	"github.com/openfroyo/archetype/pkg/integration"
	"github.com/openfroyo/archetype/pkg/script"
)

func newIntegrationTestCommand() *cobra.Command {
	var (
		workDir     string
		parallelism int
	)

	cmd := &cobra.Command{
		Use:   "integration-test [archetype-project]",
		Short: "Run the integration test projects of an archetype project",
		Long: `Generate every test project below src/test/resources/projects of an
archetype project and compare it with its reference/ directory.

Each test project is a directory holding an archetype.properties file with
the answers for generation and, optionally, a goal.txt and a reference/
tree. Line endings are ignored when comparing text files.`,
		Example: `  # Test the archetype project in the current directory
  archetype integration-test

  # Test a created archetype, four projects at a time
  archetype integration-test target/generated-sources/archetype --parallel 4`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			return withApp(ctx, func(a *app) error {
				gen := generator.New(generator.Options{
					Configurator: configurator.New(nil, a.logger),
					Scripts:      script.NewRunner(a.cfg.Script.Timeout, a.logger),
					Metrics:      a.tel.Metrics,
					Tracer:       a.tel.Tracer,
					Logger:       a.logger,
				})
				runner := integration.New(integration.Options{
					Generator:   gen,
					Parallelism: parallelism,
					Logger:      a.logger,
				})

				log.Info().Str("archetype", dir).Int("parallel", parallelism).Msg("Running integration tests")

				report, err := runner.Run(ctx, dir, workDir)
				if err != nil {
					return err
				}
				failed := report.Failed()

				if jsonOutput {
					if err := printJSON(os.Stdout, report); err != nil {
						return err
					}
				} else {
					printReport(report)
				}
				if len(failed) > 0 {
					return fmt.Errorf("%d of %d integration tests failed", len(failed), len(report.Projects))
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&workDir, "work-dir", "", "directory projects are generated into (default <archetype>/target/test-classes/projects)")
	cmd.Flags().IntVar(&parallelism, "parallel", 1, "projects generated at the same time")

	return cmd
}

func printReport(report *integration.Report) {
	if len(report.Projects) == 0 {
		fmt.Println("No integration test projects found")
		return
	}
	for _, p := range report.Projects {
		switch {
		case p.Err != nil:
			fmt.Printf("✗ %s: %v\n", p.Name, p.Err)
		case len(p.Differences) > 0:
			fmt.Printf("✗ %s: %d differences from reference\n", p.Name, len(p.Differences))
			for _, d := range p.Differences {
				fmt.Printf("    %-10s %s\n", d.Kind, d.Path)
			}
		case p.Compared:
			fmt.Printf("✓ %s (%d files, matches reference)\n", p.Name, p.Files)
		default:
			fmt.Printf("✓ %s (%d files)\n", p.Name, p.Files)
		}
	}
}
