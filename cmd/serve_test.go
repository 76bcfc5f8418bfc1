package cmd

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"homunculus/internal/dispatch"
	"homunculus/internal/webhook"
)

type fakeDispatch struct {
	events   []webhook.Event
	decision dispatch.Decision
}

func (f *fakeDispatch) HandleEvent(_ context.Context, ev webhook.Event) dispatch.Decision {
	f.events = append(f.events, ev)
	return f.decision
}

func postWebhook(t *testing.T, handler http.Handler, secret string, event string, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader([]byte(body)))
	req.Header.Set("X-GitHub-Event", event)
	req.Header.Set("X-GitHub-Delivery", "delivery-1")
	if secret != "" {
		req.Header.Set("X-Hub-Signature-256", webhook.SignBody(secret, []byte(body)))
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestWebhookHandler_AcceptedCommand(t *testing.T) {
	svc := &fakeDispatch{decision: dispatch.Decision{Status: http.StatusAccepted, Message: "Command triggered: review"}}
	handler := newWebhookHandler(context.Background(), svc, "topsecret")

	rec := postWebhook(t, handler, "topsecret", "issue_comment", `{"action":"created"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}
	if got := rec.Body.String(); got != "Command triggered: review" {
		t.Fatalf("body = %q", got)
	}
	if len(svc.events) != 1 {
		t.Fatalf("dispatched events = %d, want 1", len(svc.events))
	}
	if ev := svc.events[0]; ev.Type != "issue_comment" || ev.Delivery != "delivery-1" {
		t.Fatalf("event = %+v", ev)
	}
}

func TestWebhookHandler_BadSignatureIs401(t *testing.T) {
	svc := &fakeDispatch{decision: dispatch.Decision{Status: http.StatusAccepted}}
	handler := newWebhookHandler(context.Background(), svc, "topsecret")

	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("X-Hub-Signature-256", webhook.SignBody("wrong-secret", []byte(`{}`)))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if len(svc.events) != 0 {
		t.Fatalf("dispatched %d events past a bad signature", len(svc.events))
	}
}

func TestWebhookHandler_MissingSignatureIs401(t *testing.T) {
	svc := &fakeDispatch{}
	handler := newWebhookHandler(context.Background(), svc, "topsecret")

	rec := postWebhook(t, handler, "", "issues", `{"action":"opened"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestWebhookHandler_NoSecretSkipsVerification(t *testing.T) {
	svc := &fakeDispatch{decision: dispatch.Decision{Status: http.StatusOK, Message: "no command"}}
	handler := newWebhookHandler(context.Background(), svc, "")

	rec := postWebhook(t, handler, "", "issue_comment", `{"action":"created"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if len(svc.events) != 1 {
		t.Fatalf("dispatched events = %d, want 1", len(svc.events))
	}
}

func TestWebhookHandler_MalformedJSONIs400(t *testing.T) {
	svc := &fakeDispatch{}
	handler := newWebhookHandler(context.Background(), svc, "")

	rec := postWebhook(t, handler, "", "issues", `{not json`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if len(svc.events) != 0 {
		t.Fatalf("dispatched %d events from malformed payload", len(svc.events))
	}
}

func TestWebhookHandler_Health(t *testing.T) {
	handler := newWebhookHandler(context.Background(), &fakeDispatch{}, "s")

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	if string(body) != "homunculus webhook server is running" {
		t.Fatalf("body = %q", body)
	}
}

func TestWebhookHandler_GetWebhookIs405(t *testing.T) {
	handler := newWebhookHandler(context.Background(), &fakeDispatch{}, "")

	req := httptest.NewRequest(http.MethodGet, "/webhook", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
}
