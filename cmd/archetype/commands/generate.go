package commands

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/openfroyo/archetype/pkg/config"
	"github.com/openfroyo/archetype/pkg/configurator"
	"github.com/openfroyo/archetype/pkg/engine"
	"github.com/openfroyo/archetype/pkg/generator"
	"github.com/openfroyo/archetype/pkg/properties"
	"github.com/openfroyo/archetype/pkg/script"
	"github.com/openfroyo/archetype/pkg/selector"
)

func newGenerateCommand() *cobra.Command {
	var (
		archetype     string
		archetypeFile string
		repository    string
		groupID       string
		artifactID    string
		version       string
		pkg           string
		defines       []string
		propsFile     string
		saveProps     string
		outputDir     string
		batch         bool
		filter        string
		catalogs      []string
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a project from an archetype",
		Long: `Generate a project from an archetype.

The archetype is picked from the configured catalogs, given by coordinates or
given as a jar or directory. Its required properties are resolved from the
flags, an archetype.properties file, the descriptor defaults and, unless
--batch is set, interactive prompts. The project is written below the output
directory in a folder named after the artifactId.`,
		Example: `  # Pick an archetype and answer prompts
  archetype generate

  # Non-interactive generation
  archetype generate --batch \
    --archetype org.apache.maven.archetypes:maven-archetype-quickstart:1.4 \
    -g com.example -a demo --version 1.0-SNAPSHOT --package com.example.demo

  # Generate from a local archetype jar with extra properties
  archetype generate --archetype-file ./my-archetype.jar -D author=jane

  # Keep the answers and replay them later
  archetype generate --save-properties demo.properties
  archetype generate --batch --properties demo.properties -o /tmp/again`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withApp(ctx, func(a *app) error {
				props, err := parseDefines(defines)
				if err != nil {
					return err
				}

				req := &engine.GenerationRequest{
					Archetype:           engine.ParseCoordinates(archetype),
					ArchetypeRepository: repository,
					ArchetypeFile:       archetypeFile,
					GroupID:             groupID,
					ArtifactID:          artifactID,
					Version:             version,
					Package:             pkg,
					Properties:          props,
					OutputDirectory:     outputDir,
					Interactive:         a.cfg.Interactive && !batch,
					Filter:              filter,
					Catalogs:            catalogs,
					LocalRepository:     a.cfg.LocalRepository,
				}
				if propsFile != "" {
					f, err := properties.Load(propsFile)
					if err != nil {
						return fmt.Errorf("failed to read %s: %w", propsFile, err)
					}
					configurator.FromProperties(f, req)
				}

				if err := config.NewSchemaRegistry().ValidateRequest(ctx, requestValues(req)); err != nil {
					return err
				}

				sources, err := a.sources(catalogs)
				if err != nil {
					return err
				}
				prompter := a.prompter(req.Interactive)
				opts := generator.Options{
					Selector:     selector.New(sources, a.repository(), prompter, a.logger),
					Configurator: configurator.New(prompter, a.logger),
					Store:        a.store,
					Scripts:      script.NewRunner(a.cfg.Script.Timeout, a.logger),
					Metrics:      a.tel.Metrics,
					Tracer:       a.tel.Tracer,
					Logger:       a.logger,
				}
				policies, err := a.policies(ctx)
				if err != nil {
					return err
				}
				if policies != nil {
					opts.Policy = policies
				}

				log.Info().
					Str("archetype", archetype).
					Str("output", outputDir).
					Bool("interactive", req.Interactive).
					Msg("Generating project")

				result, err := generator.New(opts).Generate(ctx, req)
				if err != nil {
					return err
				}

				if saveProps != "" {
					f := configurator.ToProperties(result.Configuration, result.Archetype.Coordinates)
					if err := f.Save(saveProps, "Answers used to generate "+result.ProjectDirectory); err != nil {
						return fmt.Errorf("failed to save properties: %w", err)
					}
					a.logger.Debug().Str("path", saveProps).Msg("Saved properties")
				}

				if jsonOutput {
					return printJSON(os.Stdout, result)
				}
				fmt.Printf("✓ Generated %s from %s\n", result.ProjectDirectory, result.Archetype.Coordinates)
				fmt.Printf("  Files written: %d\n", len(result.Files))
				if len(result.Skipped) > 0 {
					fmt.Printf("  Files kept:    %d\n", len(result.Skipped))
				}
				if len(result.MergedPoms) > 0 {
					fmt.Printf("  POMs merged:   %d\n", len(result.MergedPoms))
				}
				if result.RunID != "" {
					fmt.Printf("  Run:           %s\n", result.RunID)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&archetype, "archetype", "", "archetype coordinates groupId:artifactId:version")
	cmd.Flags().StringVar(&archetypeFile, "archetype-file", "", "archetype jar or directory")
	cmd.Flags().StringVar(&repository, "repository", "", "repository the archetype is listed in")
	cmd.Flags().StringVarP(&groupID, "group-id", "g", "", "groupId of the new project")
	cmd.Flags().StringVarP(&artifactID, "artifact-id", "a", "", "artifactId of the new project")
	cmd.Flags().StringVar(&version, "version", "", "version of the new project")
	cmd.Flags().StringVar(&pkg, "package", "", "base package of the new project")
	cmd.Flags().StringArrayVarP(&defines, "define", "D", nil, "extra property key=value (repeatable)")
	cmd.Flags().StringVar(&propsFile, "properties", "", "archetype.properties file with answers")
	cmd.Flags().StringVar(&saveProps, "save-properties", "", "write the resolved answers to this archetype.properties file")
	cmd.Flags().StringVarP(&outputDir, "output", "o", ".", "directory the project is generated into")
	cmd.Flags().BoolVar(&batch, "batch", false, "never prompt")
	cmd.Flags().StringVar(&filter, "filter", "", "narrow the archetype list (text or groupId:artifactId)")
	cmd.Flags().StringSliceVar(&catalogs, "catalog", nil, "catalog sources (internal, local, index, file path)")

	return cmd
}

// requestValues flattens a request for schema validation.
func requestValues(req *engine.GenerationRequest) map[string]string {
	values := make(map[string]string, len(req.Properties)+7)
	for k, v := range req.Properties {
		values[k] = v
	}
	set := func(k, v string) {
		if v != "" {
			values[k] = v
		}
	}
	set(engine.PropGroupID, req.GroupID)
	set(engine.PropArtifactID, req.ArtifactID)
	set(engine.PropVersion, req.Version)
	set(engine.PropPackage, req.Package)
	set("archetypeGroupId", req.Archetype.GroupID)
	set("archetypeArtifactId", req.Archetype.ArtifactID)
	set("archetypeVersion", req.Archetype.Version)
	return values
}
