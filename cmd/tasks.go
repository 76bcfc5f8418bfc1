package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"homunculus/internal/bootstrap"
	"homunculus/internal/bootstrap/logging"
	"homunculus/internal/dispatch"
	"homunculus/internal/errs"
	"homunculus/internal/infrastructure/persistence/sqlite/repository"
)

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "Inspect dispatched tasks",
}

var tasksListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recently dispatched tasks",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App, _ *dispatch.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		limit, _ := cmd.Flags().GetInt("limit")
		history := repository.NewTaskHistoryRepository(app.DB)

		items, err := history.ListRecent(ctx, limit)
		if err != nil {
			logging.Error(ctx, "list tasks failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "list tasks")
		}

		if len(items) == 0 {
			if _, err := fmt.Fprintln(cmd.OutOrStdout(), "no tasks"); err != nil {
				return errs.Wrap(err, "write list output")
			}
			return nil
		}

		for _, item := range items {
			status := "running"
			if item.CompletedAt != nil {
				status = fmt.Sprintf("exit=%d", derefInt(item.ExitCode))
			}
			session := "-"
			if item.SessionID != nil && *item.SessionID != "" {
				session = *item.SessionID
			}

			if _, err := fmt.Fprintf(
				cmd.OutOrStdout(),
				"%s %s %s#%d [%s] session=%s dispatched=%s\n",
				item.TaskID,
				item.Action,
				item.Repo,
				item.Number,
				status,
				session,
				item.DispatchedAt,
			); err != nil {
				return errs.Wrap(err, "write list item")
			}
		}
		return nil
	}),
}

func derefInt(ptr *int) int {
	if ptr == nil {
		return 0
	}
	return *ptr
}

func init() {
	rootCmd.AddCommand(tasksCmd)
	tasksCmd.AddCommand(tasksListCmd)

	tasksListCmd.Flags().Int("limit", 20, "Maximum number of tasks to show")
}
