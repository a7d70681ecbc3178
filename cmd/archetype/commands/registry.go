package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/openfroyo/archetype/pkg/registry"
)

func newRegistryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "registry",
		Short: "Show and edit the archetype registry",
		Long: `Show and edit the archetype registry (archetype.xml).

The registry holds the archetype groups searched for unqualified archetypes,
the repositories archetypes are fetched from, and the default languages and
filtered extensions used by "archetype create".`,
	}

	cmd.AddCommand(newRegistryShowCommand())
	for _, op := range registry.Operations {
		cmd.AddCommand(newRegistryOperationCommand(op))
	}
	return cmd
}

func newRegistryShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the registry",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app) error {
				reg, err := registry.Load(a.cfg.RegistryFile)
				if err != nil {
					return err
				}
				if jsonOutput {
					return printJSON(os.Stdout, reg)
				}
				data, err := reg.Bytes()
				if err != nil {
					return err
				}
				fmt.Printf("# %s\n", a.cfg.RegistryFile)
				_, err = os.Stdout.Write(data)
				return err
			})
		},
	}
}

func newRegistryOperationCommand(op registry.Operation) *cobra.Command {
	verb, noun, _ := strings.Cut(string(op), "-")
	var example string
	switch noun {
	case "languages":
		example = "kotlin"
	case "extensions":
		example = "yaml"
	case "repositories":
		example = "central=https://repo.maven.apache.org/maven2"
	case "groups":
		example = "com.acme.archetypes"
	}

	return &cobra.Command{
		Use:     string(op) + " <value>...",
		Short:   fmt.Sprintf("%s registry %s", strings.ToUpper(verb[:1])+verb[1:], noun),
		Example: fmt.Sprintf("  archetype registry %s %s", op, example),
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withApp(ctx, func(a *app) error {
				log.Info().Str("operation", string(op)).Strs("values", args).Msg("Updating registry")

				changed, err := registry.Update(a.cfg.RegistryFile, op, args)
				if err != nil {
					return err
				}
				if len(changed) > 0 {
					a.audit(ctx, "registry.updated", a.cfg.RegistryFile, map[string]interface{}{
						"operation": op,
						"changed":   changed,
					})
				}

				if jsonOutput {
					return printJSON(os.Stdout, map[string]interface{}{
						"operation": op,
						"changed":   changed,
					})
				}
				if len(changed) == 0 {
					fmt.Println("Registry unchanged")
					return nil
				}
				fmt.Printf("✓ %s: %s\n", op, strings.Join(changed, ", "))
				return nil
			})
		},
	}
}
