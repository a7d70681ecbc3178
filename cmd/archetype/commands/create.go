package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/openfroyo/archetype/pkg/creator"
	"github.com/openfroyo/archetype/pkg/engine"
	"github.com/openfroyo/archetype/pkg/properties"
	"github.com/openfroyo/archetype/pkg/registry"
)

func newCreateCommand() *cobra.Command {
	var (
		projectDir   string
		outputDir    string
		archetype    string
		pkg          string
		defines      []string
		languages    []string
		extensions   []string
		excludes     []string
		encoding     string
		partial      bool
		preserveCRLF bool
		keepParent   bool
		propsFile    string
		watch        bool
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an archetype from an existing project",
		Long: `Create an archetype project from an existing Maven project.

Every module is read from its POM and its files are grouped into filesets.
Values of the project properties found in filtered files are replaced by
${property} references, and file names holding the artifactId become
__artifactId__. The archetype project is written to the output directory with
its POM, descriptor, templates and an integration test project.

Settings are read from the flags, then from the properties file, then from
the archetype registry.`,
		Example: `  # Create an archetype from the project in the current directory
  archetype create

  # Choose the archetype coordinates and extra properties
  archetype create --project ../shop --archetype com.acme:shop-archetype:1.0 -D author=jane

  # Rebuild the archetype whenever the project changes
  archetype create --watch`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withApp(ctx, func(a *app) error {
				props, err := parseDefines(defines)
				if err != nil {
					return err
				}
				req := &engine.CreationRequest{
					ProjectDirectory:   projectDir,
					OutputDirectory:    outputDir,
					Archetype:          engine.ParseCoordinates(archetype),
					PackageName:        pkg,
					Properties:         props,
					Languages:          languages,
					FilteredExtensions: extensions,
					ExcludePatterns:    excludes,
					DefaultEncoding:    encoding,
					Partial:            partial,
					PreserveCRLF:       preserveCRLF,
					KeepParent:         keepParent,
				}
				if propsFile != "" {
					f, err := properties.Load(propsFile)
					if err != nil {
						return fmt.Errorf("failed to read %s: %w", propsFile, err)
					}
					applyCreationProperties(cmd, f, req)
				}

				reg, err := registry.Load(a.cfg.RegistryFile)
				if err != nil {
					return err
				}
				opts := creator.Options{
					Registry: reg,
					Store:    a.store,
					Metrics:  a.tel.Metrics,
					Tracer:   a.tel.Tracer,
					Logger:   a.logger,
				}
				policies, err := a.policies(ctx)
				if err != nil {
					return err
				}
				if policies != nil {
					opts.Policy = policies
				}
				c := creator.New(opts)

				log.Info().
					Str("project", projectDir).
					Str("output", outputDir).
					Bool("watch", watch).
					Msg("Creating archetype")

				if watch {
					watchCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
					defer stop()
					return c.Watch(watchCtx, req, func(result *engine.CreationResult, err error) {
						if err != nil {
							fmt.Fprintf(os.Stderr, "✗ %v\n", err)
							return
						}
						printCreation(result)
					})
				}

				result, err := c.Create(ctx, req)
				if err != nil {
					return err
				}
				if jsonOutput {
					return printJSON(os.Stdout, result)
				}
				printCreation(result)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&projectDir, "project", "p", ".", "project to create the archetype from")
	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "archetype project directory (default <project>/"+creator.DefaultOutputDirectory+")")
	cmd.Flags().StringVar(&archetype, "archetype", "", "archetype coordinates groupId:artifactId:version")
	cmd.Flags().StringVar(&pkg, "package", "", "base package (detected when empty)")
	cmd.Flags().StringArrayVarP(&defines, "define", "D", nil, "extra property key=value to reverse substitute (repeatable)")
	cmd.Flags().StringSliceVar(&languages, "languages", nil, "source directories treated as packaged languages")
	cmd.Flags().StringSliceVar(&extensions, "filtered-extensions", nil, "extensions of files to filter")
	cmd.Flags().StringSliceVar(&excludes, "exclude", nil, "extra Ant-style exclude patterns")
	cmd.Flags().StringVar(&encoding, "encoding", "", "encoding of filtered files")
	cmd.Flags().BoolVar(&partial, "partial", false, "create a partial archetype")
	cmd.Flags().BoolVar(&preserveCRLF, "preserve-crlf", false, "keep CRLF line endings in filtered files")
	cmd.Flags().BoolVar(&keepParent, "keep-parent", false, "keep the parent of the root POM")
	cmd.Flags().StringVar(&propsFile, "properties", "", "archetype.properties file with settings and properties")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "recreate the archetype when the project changes")

	return cmd
}

// applyCreationProperties fills the request from a properties file without
// overriding flags that were set.
func applyCreationProperties(cmd *cobra.Command, f *properties.File, req *engine.CreationRequest) {
	unset := func(name string) bool { return !cmd.Flags().Changed(name) }

	if req.Archetype.IsEmpty() {
		req.Archetype = engine.Coordinates{
			GroupID:    f.GetString(properties.KeyArchetypeGroupID, ""),
			ArtifactID: f.GetString(properties.KeyArchetypeArtifactID, ""),
			Version:    f.GetString(properties.KeyArchetypeVersion, ""),
		}
	}
	if req.PackageName == "" {
		req.PackageName = f.GetString(properties.KeyPackage, "")
	}
	if unset("languages") {
		req.Languages = f.GetList(properties.KeyLanguages)
	}
	if unset("filtered-extensions") {
		req.FilteredExtensions = f.GetList(properties.KeyFilteredExtensions)
	}
	if unset("exclude") {
		req.ExcludePatterns = f.GetList(properties.KeyExcludePatterns)
	}
	if unset("encoding") {
		req.DefaultEncoding = f.GetString(properties.KeyEncoding, "")
	}
	if unset("partial") {
		req.Partial = f.GetBool(properties.KeyPartialArchetype, false)
	}
	if unset("preserve-crlf") {
		req.PreserveCRLF = f.GetBool(properties.KeyPreserveCRLF, false)
	}
	if unset("keep-parent") {
		req.KeepParent = f.GetBool(properties.KeyKeepParent, false)
	}

	if req.Properties == nil {
		req.Properties = make(map[string]string)
	}
	for k, v := range f.ProjectProperties() {
		if k == properties.KeyPackage {
			continue
		}
		if _, ok := req.Properties[k]; !ok {
			req.Properties[k] = v
		}
	}
}

func printCreation(result *engine.CreationResult) {
	fmt.Printf("✓ Created archetype %s in %s\n", result.Archetype, result.ArchetypeDirectory)
	fmt.Printf("  Templates:  %d\n", result.ResourceCount)
	if len(result.Modules) > 0 {
		fmt.Printf("  Modules:    %d\n", len(result.Modules))
	}
	fmt.Printf("  Descriptor: %s\n", result.DescriptorPath)
}
