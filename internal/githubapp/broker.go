// Package githubapp mints installation-scoped access tokens for a GitHub
// App, with a per-repository cache.
package githubapp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/bradleyfalzon/ghinstallation/v2"
	"github.com/google/go-github/v68/github"

	"homunculus/internal/bootstrap/logging"
	"homunculus/internal/errs"
)

const defaultAPIBaseURL = "https://api.github.com/"

// refreshBuffer forces a refresh when a cached token has less than this
// much validity left, so a token handed to a long clone does not expire
// mid-operation.
const refreshBuffer = 5 * time.Minute

type cachedToken struct {
	token     string
	expiresAt time.Time
}

// Broker exchanges the app's signed JWT for installation tokens via the
// two-step Apps API flow: repository -> installation id -> access token.
// The JWT itself (iat -60s, exp +600s, RS256) is handled by the apps
// transport.
type Broker struct {
	client *github.Client
	now    func() time.Time

	mu    sync.Mutex
	cache map[string]cachedToken
}

// NewBroker builds a broker from the app's id and private key file.
func NewBroker(appID int64, privateKeyFile string, apiBaseURL string) (*Broker, error) {
	if appID <= 0 {
		return nil, errors.New("app id is required")
	}
	if strings.TrimSpace(privateKeyFile) == "" {
		return nil, errors.New("private key file is required")
	}

	transport, err := ghinstallation.NewAppsTransportKeyFromFile(http.DefaultTransport, appID, privateKeyFile)
	if err != nil {
		return nil, errs.Wrap(err, "load app private key")
	}

	client := github.NewClient(&http.Client{Transport: transport})
	base := strings.TrimSpace(apiBaseURL)
	if base != "" && base != defaultAPIBaseURL {
		transport.BaseURL = strings.TrimSuffix(base, "/")
		client, err = client.WithEnterpriseURLs(base, base)
		if err != nil {
			return nil, errs.Wrap(err, "set api base url")
		}
	}

	return newBroker(client, time.Now), nil
}

func newBroker(client *github.Client, now func() time.Time) *Broker {
	return &Broker{
		client: client,
		now:    now,
		cache:  make(map[string]cachedToken),
	}
}

// GetInstallationToken returns a token valid for at least the refresh
// buffer, minting a fresh one when the cache cannot satisfy that.
func (b *Broker) GetInstallationToken(ctx context.Context, owner string, repo string) (string, error) {
	if ctx == nil {
		return "", errors.New("context is required")
	}
	if owner == "" || repo == "" {
		return "", errors.New("owner and repo are required")
	}

	key := owner + "/" + repo
	logCtx := logging.WithAttrs(ctx,
		slog.String("component", "githubapp.broker"),
		slog.String("repo", key),
	)

	b.mu.Lock()
	cached, ok := b.cache[key]
	b.mu.Unlock()
	if ok && cached.expiresAt.After(b.now().Add(refreshBuffer)) {
		logging.Info(logCtx, "using cached installation token")
		return cached.token, nil
	}

	installation, _, err := b.client.Apps.FindRepositoryInstallation(ctx, owner, repo)
	if err != nil {
		return "", errs.Wrapf(err, "find installation for %s", key)
	}
	installationID := installation.GetID()
	if installationID == 0 {
		return "", fmt.Errorf("no installation id for %s", key)
	}

	// Scope the token to the single repository the task acts on.
	token, _, err := b.client.Apps.CreateInstallationToken(ctx, installationID, &github.InstallationTokenOptions{
		Repositories: []string{repo},
	})
	if err != nil {
		return "", errs.Wrapf(err, "create installation token for %s", key)
	}
	if token.GetToken() == "" {
		return "", fmt.Errorf("empty installation token for %s", key)
	}

	expiresAt := token.GetExpiresAt().Time
	b.mu.Lock()
	b.cache[key] = cachedToken{token: token.GetToken(), expiresAt: expiresAt}
	b.mu.Unlock()

	logging.Info(logCtx, "minted installation token",
		slog.Int64("installation_id", installationID),
		slog.Time("expires_at", expiresAt),
	)
	return token.GetToken(), nil
}
