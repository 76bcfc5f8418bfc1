package cmd

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"homunculus/internal/bootstrap"
	"homunculus/internal/bootstrap/logging"
	"homunculus/internal/dispatch"
	"homunculus/internal/errs"
	"homunculus/internal/githubapp"
	"homunculus/internal/task"
)

// tokenCmd is an operator utility for checking app credentials outside the
// webhook flow, for example `GH_TOKEN=$(homunculus token --repo o/r) gh ...`.
var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Print an installation token for a repository",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App, _ *dispatch.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		repoFlag, _ := cmd.Flags().GetString("repo")
		owner, repo, ok := task.OwnerRepo(repoFlag)
		if !ok {
			return errors.New("--repo must be owner/name")
		}

		if app.Config.GitHub.PrivateKeyFile == "" {
			return errors.New("github.private_key_file is not configured")
		}

		broker, err := githubapp.NewBroker(
			app.Config.GitHub.AppID,
			app.Config.GitHub.PrivateKeyFile,
			app.Config.GitHub.APIBaseURL,
		)
		if err != nil {
			return errs.Wrap(err, "build token broker")
		}

		token, err := broker.GetInstallationToken(ctx, owner, repo)
		if err != nil {
			logging.Error(ctx, "mint installation token failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "mint installation token")
		}

		if _, err := fmt.Fprintln(cmd.OutOrStdout(), token); err != nil {
			return errs.Wrap(err, "write token output")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(tokenCmd)

	tokenCmd.Flags().String("repo", "", "Repository as owner/name")
	_ = tokenCmd.MarkFlagRequired("repo")
}
