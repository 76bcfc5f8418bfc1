package bootstrap

import (
	"context"
	"log/slog"

	"go.uber.org/fx"
	"gorm.io/gorm"

	"homunculus/internal/agent"
	"homunculus/internal/bootstrap/config"
	"homunculus/internal/bootstrap/database"
	"homunculus/internal/bootstrap/logging"
	"homunculus/internal/dedup"
	"homunculus/internal/dispatch"
	"homunculus/internal/errs"
	"homunculus/internal/executor"
	"homunculus/internal/githubapp"
	"homunculus/internal/infrastructure/persistence/sqlite/repository"
	"homunculus/internal/notify"
	"homunculus/internal/ports"
	"homunculus/internal/task"
	"homunculus/internal/webhook"
)

var Module = fx.Options(
	fx.Provide(provideConfig),
	fx.Provide(provideDatabase),
	fx.Provide(provideApp),
	fx.Provide(provideFilter),
	fx.Provide(provideClassifier),
	fx.Provide(provideGuard),
	fx.Provide(provideTokenSource),
	fx.Provide(provideAgentExecutor),
	fx.Provide(provideNotifier),
	fx.Provide(
		fx.Annotate(
			repository.NewTaskHistoryRepository,
			fx.As(new(ports.TaskHistory)),
		),
	),
	fx.Provide(dispatch.NewService),
)

type configParams struct {
	fx.In

	Ctx        context.Context
	ConfigFile string `name:"configFile"`
}

func provideConfig(p configParams) (config.Config, error) {
	ctx := logging.WithAttrs(p.Ctx, slog.String("component", "bootstrap.fx"))
	return config.Load(ctx, p.ConfigFile)
}

func provideDatabase(lc fx.Lifecycle, ctx context.Context, cfg config.Config) (*gorm.DB, error) {
	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.fx"))

	db, err := database.Open(logCtx, cfg.Database)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		},
	})

	return db, nil
}

func provideApp(cfg config.Config, db *gorm.DB) *App {
	return &App{
		Config: cfg,
		DB:     db,
	}
}

func provideFilter(cfg config.Config) *webhook.Filter {
	return webhook.NewFilter(cfg.Webhook.AllowedInstallations, cfg.Bot.Login, cfg.Bot.Suffix)
}

func provideClassifier(cfg config.Config) *webhook.Classifier {
	return webhook.NewClassifier(cfg.Workspace.Root)
}

func provideGuard(lc fx.Lifecycle) *dedup.Guard {
	guard := dedup.NewGuard()

	sweepCtx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			guard.StartSweeper(sweepCtx)
			return nil
		},
		OnStop: func(_ context.Context) error {
			cancel()
			return nil
		},
	})

	return guard
}

// provideTokenSource returns nil when no app private key is configured; the
// dispatcher then proceeds on ambient gh/git credentials alone.
func provideTokenSource(ctx context.Context, cfg config.Config) (dispatch.TokenSource, error) {
	if cfg.GitHub.PrivateKeyFile == "" {
		logging.Warn(ctx, "github app credentials not configured, installation tokens disabled",
			slog.String("component", "bootstrap.fx"))
		return nil, nil
	}

	broker, err := githubapp.NewBroker(cfg.GitHub.AppID, cfg.GitHub.PrivateKeyFile, cfg.GitHub.APIBaseURL)
	if err != nil {
		return nil, errs.Wrap(err, "build token broker")
	}
	return broker, nil
}

type agentExecutor struct {
	e *executor.Executor
}

func (a agentExecutor) Execute(ctx context.Context, t task.CommandTask, token string) (dispatch.TaskHandle, error) {
	return a.e.Execute(ctx, t, token)
}

func provideAgentExecutor(cfg config.Config) (dispatch.AgentExecutor, error) {
	profile, err := agent.LoadProfile(cfg.Agent.ProfileFile)
	if err != nil {
		return nil, errs.Wrap(err, "load agent profile")
	}
	return agentExecutor{e: executor.New(profile, cfg.Git.AuthorName, cfg.Git.AuthorEmail)}, nil
}

func provideNotifier() dispatch.Notifier {
	return notify.NewNotifier()
}
