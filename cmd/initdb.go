package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"homunculus/internal/bootstrap"
	"homunculus/internal/bootstrap/logging"
	"homunculus/internal/dispatch"
	"homunculus/internal/errs"
)

var initDbCmd = &cobra.Command{
	Use:   "init-db",
	Short: "Initialize the task history schema",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App, _ *dispatch.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))
		logging.Info(ctx, "start init-db")

		if err := app.InitSchema(ctx); err != nil {
			logging.Error(ctx, "initialize schema failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "initialize schema")
		}

		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "database schema initialized: %s\n", app.Config.Database.DSN); err != nil {
			return errs.Wrap(err, "write init-db output")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(initDbCmd)
}
