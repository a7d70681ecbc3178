package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/openfroyo/archetype/pkg/stores"
)

var errHistoryDisabled = errors.New("history is disabled; enable history in the configuration")

func newHistoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect recorded generations and creations",
		Long: `Inspect the run history.

Every generation and creation is recorded with its archetype, project
coordinates, file counts and outcome. Maintenance actions such as installs,
crawls and registry edits are kept in the audit log.`,
	}
	cmd.AddCommand(newHistoryListCommand())
	cmd.AddCommand(newHistoryShowCommand())
	cmd.AddCommand(newHistoryDeleteCommand())
	cmd.AddCommand(newHistoryPruneCommand())
	cmd.AddCommand(newHistoryAuditCommand())
	return cmd
}

// withHistory runs fn with an open store.
func withHistory(ctx context.Context, fn func(*app) error) error {
	return withApp(ctx, func(a *app) error {
		if a.store == nil {
			return errHistoryDisabled
		}
		return fn(a)
	})
}

func newHistoryListCommand() *cobra.Command {
	var (
		kind   string
		limit  int
		offset int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent runs",
		Example: `  archetype history list
  archetype history list --kind create --limit 5`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withHistory(ctx, func(a *app) error {
				runs, err := a.store.ListRuns(ctx, stores.RunKind(kind), limit, offset)
				if err != nil {
					return err
				}
				if jsonOutput {
					return printJSON(os.Stdout, runs)
				}
				if len(runs) == 0 {
					fmt.Println("No runs recorded")
					return nil
				}
				w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tKIND\tSTATUS\tARCHETYPE\tPROJECT\tFILES\tSTARTED")
				for _, r := range runs {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
						r.ID, r.Kind, r.Status, r.Archetype, projectOf(r), r.Files, r.StartedAt.Format(time.DateTime))
				}
				return w.Flush()
			})
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "", "only runs of this kind (generate, create)")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of runs")
	cmd.Flags().IntVar(&offset, "offset", 0, "runs to skip")

	return cmd
}

func newHistoryShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show one run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withHistory(ctx, func(a *app) error {
				r, err := a.store.GetRun(ctx, args[0])
				if err != nil {
					return err
				}
				if jsonOutput {
					return printJSON(os.Stdout, r)
				}
				fmt.Printf("Run:         %s\n", r.ID)
				fmt.Printf("Kind:        %s\n", r.Kind)
				fmt.Printf("Status:      %s\n", r.Status)
				fmt.Printf("Archetype:   %s\n", r.Archetype)
				fmt.Printf("Project:     %s\n", projectOf(r))
				fmt.Printf("Directory:   %s\n", r.ProjectDir)
				fmt.Printf("Files:       %d (kept %d, merged POMs %d)\n", r.Files, r.Skipped, r.MergedPoms)
				fmt.Printf("Started:     %s\n", r.StartedAt.Format(time.RFC3339))
				if r.CompletedAt != nil {
					fmt.Printf("Duration:    %s\n", r.Duration().Round(time.Millisecond))
				}
				if r.Error != nil {
					fmt.Printf("Error:       %s\n", *r.Error)
				}
				fmt.Printf("Metadata:    %s\n", r.Metadata)
				return nil
			})
		},
	}
}

func newHistoryDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <run-id>",
		Short: "Delete one run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withHistory(ctx, func(a *app) error {
				if err := a.store.DeleteRun(ctx, args[0]); err != nil {
					return err
				}
				a.audit(ctx, "history.deleted", args[0], nil)
				fmt.Printf("✓ Deleted run %s\n", args[0])
				return nil
			})
		},
	}
}

func newHistoryPruneCommand() *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:     "prune",
		Short:   "Delete runs older than a duration",
		Example: `  archetype history prune --older-than 720h`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if olderThan <= 0 {
				return fmt.Errorf("--older-than must be positive")
			}
			return withHistory(ctx, func(a *app) error {
				n, err := a.store.PruneRuns(ctx, time.Now().Add(-olderThan))
				if err != nil {
					return err
				}
				a.audit(ctx, "history.pruned", olderThan.String(), map[string]int64{"runs": n})
				fmt.Printf("✓ Pruned %d runs\n", n)
				return nil
			})
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "age of the runs to delete")

	return cmd
}

func newHistoryAuditCommand() *cobra.Command {
	var (
		action string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show the audit log",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withHistory(ctx, func(a *app) error {
				var filter *string
				if action != "" {
					filter = &action
				}
				entries, err := a.store.ListAuditEntries(ctx, filter, limit, 0)
				if err != nil {
					return err
				}
				if jsonOutput {
					return printJSON(os.Stdout, entries)
				}
				w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "TIME\tACTION\tACTOR\tTARGET")
				for _, e := range entries {
					target := ""
					if e.TargetID != nil {
						target = *e.TargetID
					}
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.Timestamp.Format(time.DateTime), e.Action, e.Actor, target)
				}
				return w.Flush()
			})
		},
	}

	cmd.Flags().StringVar(&action, "action", "", "only entries with this action")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum number of entries")

	return cmd
}

func projectOf(r *stores.Run) string {
	if r.ArtifactID == "" {
		return "-"
	}
	return r.GroupID + ":" + r.ArtifactID + ":" + r.Version
}
