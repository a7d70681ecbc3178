package commands

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/openfroyo/archetype/pkg/config"
	"github.com/openfroyo/archetype/pkg/policy"
)

func newPolicyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "policy",
		Short: "List, toggle and try naming policies",
		Long: `List the policies checked before a project is generated or an archetype is
created, and evaluate them against a set of coordinates.

Built-in policies check Maven naming rules; more Rego or JSON policies are
loaded from the configured policy paths. "enable" and "disable" record an
override in the configuration file.`,
	}
	cmd.AddCommand(newPolicyListCommand())
	cmd.AddCommand(newPolicyShowCommand())
	cmd.AddCommand(newPolicyToggleCommand(true))
	cmd.AddCommand(newPolicyToggleCommand(false))
	cmd.AddCommand(newPolicyCheckCommand())
	return cmd
}

func newPolicyListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List loaded policies",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withApp(ctx, func(a *app) error {
				e, err := a.loadPolicies(ctx)
				if err != nil {
					return err
				}
				policies := e.ListPolicies()
				if jsonOutput {
					return printJSON(os.Stdout, policies)
				}
				if !a.cfg.Policy.Enabled {
					fmt.Println("Policies are disabled in the configuration")
				}
				w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "NAME\tSEVERITY\tENABLED\tDESCRIPTION")
				for _, p := range policies {
					fmt.Fprintf(w, "%s\t%s\t%t\t%s\n", p.Name, p.Severity, p.Enabled, p.Description)
				}
				return w.Flush()
			})
		},
	}
}

func newPolicyShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <name>",
		Short: "Show a policy and its Rego source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withApp(ctx, func(a *app) error {
				e, err := a.loadPolicies(ctx)
				if err != nil {
					return err
				}
				p, err := e.GetPolicy(args[0])
				if err != nil {
					return err
				}
				if jsonOutput {
					return printJSON(os.Stdout, p)
				}
				fmt.Printf("Name:        %s\n", p.Name)
				fmt.Printf("Severity:    %s\n", p.Severity)
				fmt.Printf("Enabled:     %t\n", p.Enabled)
				if len(p.Operations) > 0 {
					fmt.Printf("Operations:  %s\n", strings.Join(p.Operations, ", "))
				}
				if len(p.Tags) > 0 {
					fmt.Printf("Tags:        %s\n", strings.Join(p.Tags, ", "))
				}
				if src, ok := p.Metadata["source"].(string); ok {
					fmt.Printf("Source:      %s\n", src)
				}
				fmt.Printf("Description: %s\n\n%s\n", p.Description, strings.TrimRight(p.Rego, "\n"))
				return nil
			})
		},
	}
}

// newPolicyToggleCommand builds "policy enable" or "policy disable". Both
// move the name between policy.enable and policy.disable in the
// configuration file.
func newPolicyToggleCommand(enable bool) *cobra.Command {
	use, short := "disable", "Turn a policy off"
	if enable {
		use, short = "enable", "Turn a policy on, even one its file marks disabled"
	}
	return &cobra.Command{
		Use:   use + " <name>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			name := args[0]
			return withApp(ctx, func(a *app) error {
				e, err := a.loadPolicies(ctx)
				if err != nil {
					return err
				}
				if _, err := e.GetPolicy(name); err != nil {
					return err
				}

				enabled := without(a.cfg.Policy.Enable, name)
				disabled := without(a.cfg.Policy.Disable, name)
				if enable {
					enabled = append(enabled, name)
				} else {
					disabled = append(disabled, name)
				}

				path := a.configFile()
				err = config.UpdateFile(ctx, path, func(doc map[string]interface{}) {
					section, _ := doc["policy"].(map[string]interface{})
					if section == nil {
						section = map[string]interface{}{}
						doc["policy"] = section
					}
					setList(section, "enable", enabled)
					setList(section, "disable", disabled)
				})
				if err != nil {
					return err
				}
				a.audit(ctx, "policy."+use+"d", name, map[string]string{"config": path})

				if jsonOutput {
					return printJSON(os.Stdout, map[string]interface{}{"policy": name, "enabled": enable, "config": path})
				}
				fmt.Printf("✓ Policy %s %sd in %s\n", name, use, path)
				return nil
			})
		},
	}
}

func without(list []string, name string) []string {
	out := make([]string, 0, len(list))
	for _, s := range list {
		if s != name {
			out = append(out, s)
		}
	}
	return out
}

func setList(section map[string]interface{}, key string, list []string) {
	if len(list) == 0 {
		delete(section, key)
		return
	}
	section[key] = list
}

func newPolicyCheckCommand() *cobra.Command {
	var (
		operation  string
		groupID    string
		artifactID string
		version    string
		pkg        string
		archetype  string
		defines    []string
	)

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Evaluate policies against project coordinates",
		Example: `  # Would this project be accepted?
  archetype policy check -g com.example -a My_Project --version 1.0

  # Check an archetype about to be created
  archetype policy check --operation create -g com.acme -a shop-archetype --version 1.0`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if operation != policy.OperationGenerate && operation != policy.OperationCreate {
				return fmt.Errorf("unknown operation %q, want %s or %s", operation, policy.OperationGenerate, policy.OperationCreate)
			}
			props, err := parseDefines(defines)
			if err != nil {
				return err
			}
			return withApp(ctx, func(a *app) error {
				e, err := a.loadPolicies(ctx)
				if err != nil {
					return err
				}
				result, err := e.Evaluate(ctx, &policy.Input{
					Operation: operation,
					Request: policy.RequestInput{
						GroupID:    groupID,
						ArtifactID: artifactID,
						Version:    version,
						Package:    pkg,
						Properties: props,
						Archetype:  archetype,
					},
					Context: &policy.Context{User: actor(), Timestamp: time.Now()},
				})
				if err != nil {
					return err
				}
				if jsonOutput {
					if err := printJSON(os.Stdout, result); err != nil {
						return err
					}
				} else {
					for _, v := range result.Violations {
						fmt.Printf("✗ %s [%s] %s\n", v.Policy, v.Severity, v.Message)
					}
					for _, w := range result.Warnings {
						fmt.Printf("! %s [%s] %s\n", w.Policy, w.Severity, w.Message)
					}
					if result.Allowed {
						fmt.Printf("✓ Allowed (%d policies evaluated)\n", len(result.EvaluatedPolicies))
					}
				}
				if !result.Allowed {
					return fmt.Errorf("%d policy violation(s)", len(result.Violations))
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&operation, "operation", policy.OperationGenerate, "operation to check (generate, create)")
	cmd.Flags().StringVarP(&groupID, "group-id", "g", "", "groupId")
	cmd.Flags().StringVarP(&artifactID, "artifact-id", "a", "", "artifactId")
	cmd.Flags().StringVar(&version, "version", "", "version")
	cmd.Flags().StringVar(&pkg, "package", "", "package")
	cmd.Flags().StringVar(&archetype, "archetype", "", "archetype coordinates")
	cmd.Flags().StringArrayVarP(&defines, "define", "D", nil, "extra property key=value (repeatable)")

	return cmd
}
