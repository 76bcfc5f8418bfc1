package cmd

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"homunculus/internal/bootstrap"
	"homunculus/internal/bootstrap/logging"
	"homunculus/internal/dispatch"
	"homunculus/internal/errs"
	"homunculus/internal/webhook"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the GitHub webhook dispatch server",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App, svc *dispatch.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		addr, _ := cmd.Flags().GetString("addr")
		addr = strings.TrimSpace(addr)
		if addr == "" {
			addr = app.Config.Server.Addr
		}

		server := &http.Server{
			Addr:    addr,
			Handler: newWebhookHandler(ctx, svc, app.Config.Webhook.Secret),
		}

		logging.Info(ctx, "webhook server started",
			slog.String("addr", addr),
			slog.Bool("signature_verification", app.Config.Webhook.Secret != ""),
		)

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error(ctx, "webhook server failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "serve webhook")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Listen address (default: server.addr from config)")
}

type dispatchService interface {
	HandleEvent(ctx context.Context, ev webhook.Event) dispatch.Decision
}

type webhookHTTPHandler struct {
	baseCtx context.Context
	svc     dispatchService
	secret  string
}

func newWebhookHandler(baseCtx context.Context, svc dispatchService, secret string) http.Handler {
	h := &webhookHTTPHandler{
		baseCtx: baseCtx,
		svc:     svc,
		secret:  secret,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Get("/health", h.handleHealth)
	r.Post("/webhook", h.handleWebhook)
	return r
}

func (h *webhookHTTPHandler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeText(w, http.StatusOK, "homunculus webhook server is running")
}

func (h *webhookHTTPHandler) handleWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := logging.WithAttrs(h.baseCtx, slog.String("request_id", middleware.GetReqID(r.Context())))

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeText(w, http.StatusBadRequest, "failed to read payload")
		return
	}

	if err := webhook.VerifySignature(h.secret, r.Header.Get("X-Hub-Signature-256"), body); err != nil {
		logging.Warn(ctx, "signature verification failed", slog.Any("err", errs.Loggable(err)))
		writeText(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	ev, err := webhook.ParseEvent(
		r.Header.Get("X-GitHub-Event"),
		r.Header.Get("X-GitHub-Delivery"),
		body,
	)
	if err != nil {
		logging.Warn(ctx, "payload decode failed", slog.Any("err", errs.Loggable(err)))
		writeText(w, http.StatusBadRequest, "invalid payload")
		return
	}

	decision := h.svc.HandleEvent(ctx, ev)
	writeText(w, decision.Status, decision.Message)
}

func writeText(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(message))
}
