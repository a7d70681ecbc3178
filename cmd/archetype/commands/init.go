package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/openfroyo/archetype/pkg/config"
	"github.com/openfroyo/archetype/pkg/registry"
	"github.com/openfroyo/archetype/pkg/stores"
)

func newInitCommand() *cobra.Command {
	var (
		force bool
		local bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize the archetype configuration",
		Long: `Write a configuration file with the defaults, create the data directory
and history database, and write the archetype registry when it is missing.

Without --config the file goes to ~/.archetype/archetype.yaml, or to the
working directory with --local.`,
		Example: `  # Initialize ~/.archetype
  archetype init

  # Configuration for this directory only
  archetype init --local

  # Overwrite an existing configuration
  archetype init --force`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			path := configPath
			switch {
			case path != "":
			case local:
				path = config.FileName
			default:
				path = filepath.Join(config.DefaultDir(), config.FileName)
			}

			log.Info().Str("config", path).Bool("force", force).Msg("Initializing configuration")

			cfg := config.DefaultConfig()
			if err := config.Write(path, cfg, force); err != nil {
				return err
			}
			fmt.Printf("✓ Wrote configuration: %s\n", path)

			if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
				return fmt.Errorf("failed to create data directory %s: %w", cfg.DataDir, err)
			}
			fmt.Printf("✓ Created directory: %s\n", cfg.DataDir)

			store, err := stores.Open(ctx, cfg.DatabasePath())
			if err != nil {
				return fmt.Errorf("failed to initialize history: %w", err)
			}
			if err := store.Close(); err != nil {
				return err
			}
			fmt.Printf("✓ Initialized history: %s\n", cfg.DatabasePath())

			if _, err := os.Stat(cfg.RegistryFile); os.IsNotExist(err) {
				if err := registry.Default().Save(cfg.RegistryFile); err != nil {
					return err
				}
				fmt.Printf("✓ Wrote registry: %s\n", cfg.RegistryFile)
			}

			fmt.Println("\nArchetype is ready. Try: archetype catalog list")
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing configuration")
	cmd.Flags().BoolVar(&local, "local", false, "write the configuration to the working directory")

	return cmd
}
