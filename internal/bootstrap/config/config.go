package config

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/spf13/viper"

	"homunculus/internal/bootstrap/logging"
	"homunculus/internal/errs"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Webhook   WebhookConfig   `mapstructure:"webhook"`
	GitHub    GitHubConfig    `mapstructure:"github"`
	Bot       BotConfig       `mapstructure:"bot"`
	Workspace WorkspaceConfig `mapstructure:"workspace"`
	Agent     AgentConfig     `mapstructure:"agent"`
	Git       GitConfig       `mapstructure:"git"`
	Database  DatabaseConfig  `mapstructure:"database"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

type WebhookConfig struct {
	// Secret signs inbound payloads (X-Hub-Signature-256). Empty disables
	// verification, which is logged loudly at startup.
	Secret string `mapstructure:"secret"`
	// AllowedInstallations restricts processing to these installation IDs.
	// Empty accepts every installation.
	AllowedInstallations []int64 `mapstructure:"allowed_installations"`
}

type GitHubConfig struct {
	// AppID and PrivateKeyFile enable the installation token broker.
	// Leaving PrivateKeyFile empty runs without app credentials; the agent
	// then relies on ambient gh/git auth.
	AppID          int64  `mapstructure:"app_id"`
	PrivateKeyFile string `mapstructure:"private_key_file"`
	APIBaseURL     string `mapstructure:"api_base_url"`
}

type BotConfig struct {
	// Login is the bot's own account; events it authors are dropped to
	// break comment loops.
	Login  string `mapstructure:"login"`
	Suffix string `mapstructure:"suffix"`
}

type WorkspaceConfig struct {
	Root string `mapstructure:"root"`
}

type AgentConfig struct {
	ProfileFile string `mapstructure:"profile_file"`
}

type GitConfig struct {
	AuthorName  string `mapstructure:"author_name"`
	AuthorEmail string `mapstructure:"author_email"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

func Load(ctx context.Context, configFile string) (Config, error) {
	if ctx == nil {
		return Config{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return Config{}, errs.Wrap(err, "check context")
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.config"))

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("HOM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile == "" && errors.As(err, &notFound) {
			// Keep default and env-backed config when no file is provided.
			logging.Warn(logCtx, "config file not found, fallback to defaults and env")
		} else {
			return Config{}, errs.Wrap(err, "read config")
		}
	} else {
		logging.Info(logCtx, "using config file", slog.String("path", v.ConfigFileUsed()))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errs.Wrap(err, "unmarshal config")
	}

	if strings.TrimSpace(cfg.Workspace.Root) == "" {
		return Config{}, errors.New("workspace.root is required")
	}
	if cfg.GitHub.PrivateKeyFile != "" && cfg.GitHub.AppID <= 0 {
		return Config{}, errors.New("github.app_id is required when github.private_key_file is set")
	}

	if cfg.Webhook.Secret == "" {
		logging.Warn(logCtx, "webhook secret not set, signature verification disabled")
	}

	logging.Info(
		logCtx,
		"config loaded",
		slog.String("addr", cfg.Server.Addr),
		slog.String("workspace_root", cfg.Workspace.Root),
		slog.Int("allowed_installations", len(cfg.Webhook.AllowedInstallations)),
		slog.Bool("app_credentials", cfg.GitHub.PrivateKeyFile != ""),
	)

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("github.api_base_url", "https://api.github.com/")
	v.SetDefault("bot.login", "dwarf-in-the-flask[bot]")
	v.SetDefault("bot.suffix", "[bot]")
	v.SetDefault("workspace.root", "/tmp/homunculus-workspaces")
	v.SetDefault("agent.profile_file", "configs/agent.toml")
	v.SetDefault("git.author_name", "Homunculus")
	v.SetDefault("git.author_email", "homunculus[bot]@users.noreply.github.com")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", ".homunculus/tasks.sqlite")
}
