package webhook

import (
	"net/http"
	"testing"
)

func mustEvent(t *testing.T, eventType string, payload string) Event {
	t.Helper()

	ev, err := ParseEvent(eventType, "delivery-1", []byte(payload))
	if err != nil {
		t.Fatalf("ParseEvent() error = %v", err)
	}
	return ev
}

func TestFilter_InstallationAllowlist(t *testing.T) {
	f := NewFilter([]int64{123456}, "dwarf-in-the-flask[bot]", "[bot]")

	tests := []struct {
		name       string
		payload    string
		wantStatus int
		wantReject bool
	}{
		{
			name:       "allowed installation",
			payload:    `{"action":"opened","installation":{"id":123456},"issue":{"number":1,"user":{"login":"alice"}}}`,
			wantReject: false,
		},
		{
			name:       "installation not in allowlist",
			payload:    `{"action":"opened","installation":{"id":999},"issue":{"number":1}}`,
			wantStatus: http.StatusForbidden,
			wantReject: true,
		},
		{
			name:       "missing installation",
			payload:    `{"action":"opened","issue":{"number":1}}`,
			wantStatus: http.StatusForbidden,
			wantReject: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rejection := f.Authorize(mustEvent(t, EventIssues, tt.payload))
			if tt.wantReject {
				if rejection == nil {
					t.Fatalf("Authorize() accepted, want rejection")
				}
				if rejection.Status != tt.wantStatus {
					t.Fatalf("Authorize() status = %d, want %d", rejection.Status, tt.wantStatus)
				}
				return
			}
			if rejection != nil {
				t.Fatalf("Authorize() rejected: %s", rejection.Reason)
			}
		})
	}
}

func TestFilter_EmptyAllowlistAcceptsAnyInstallation(t *testing.T) {
	f := NewFilter(nil, "", "[bot]")

	ev := mustEvent(t, EventIssues, `{"action":"opened","installation":{"id":42},"issue":{"number":1,"user":{"login":"alice"}}}`)
	if rejection := f.Authorize(ev); rejection != nil {
		t.Fatalf("Authorize() rejected: %s", rejection.Reason)
	}

	ev = mustEvent(t, EventIssues, `{"action":"opened","issue":{"number":1,"user":{"login":"alice"}}}`)
	if rejection := f.Authorize(ev); rejection != nil {
		t.Fatalf("Authorize() rejected payload without installation: %s", rejection.Reason)
	}
}

func TestFilter_EventActionAllowlist(t *testing.T) {
	f := NewFilter(nil, "", "[bot]")

	tests := []struct {
		name      string
		eventType string
		action    string
		allowed   bool
	}{
		{name: "issues opened", eventType: EventIssues, action: "opened", allowed: true},
		{name: "issues edited", eventType: EventIssues, action: "edited", allowed: true},
		{name: "issues closed", eventType: EventIssues, action: "closed", allowed: false},
		{name: "comment created", eventType: EventIssueComment, action: "created", allowed: true},
		{name: "comment deleted", eventType: EventIssueComment, action: "deleted", allowed: false},
		{name: "review submitted", eventType: EventPullRequestReview, action: "submitted", allowed: true},
		{name: "unknown event", eventType: "push", action: "created", allowed: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := mustEvent(t, tt.eventType, `{"action":"`+tt.action+`","sender":{"login":"alice"}}`)
			rejection := f.Authorize(ev)
			if tt.allowed && rejection != nil {
				t.Fatalf("Authorize() rejected: %s", rejection.Reason)
			}
			if !tt.allowed {
				if rejection == nil {
					t.Fatalf("Authorize() accepted")
				}
				if rejection.Status != http.StatusOK {
					t.Fatalf("noise filter status = %d, want 200", rejection.Status)
				}
			}
		})
	}
}

func TestFilter_BotLoopSuppression(t *testing.T) {
	f := NewFilter(nil, "dwarf-in-the-flask[bot]", "[bot]")

	tests := []struct {
		name    string
		payload string
		blocked bool
	}{
		{
			name:    "own login",
			payload: `{"action":"created","comment":{"body":"///accept","user":{"login":"dwarf-in-the-flask[bot]"}},"issue":{"number":3}}`,
			blocked: true,
		},
		{
			name:    "other bot via suffix",
			payload: `{"action":"created","comment":{"body":"///review","user":{"login":"dependabot[bot]"}},"issue":{"number":3}}`,
			blocked: true,
		},
		{
			name:    "human actor",
			payload: `{"action":"created","comment":{"body":"///review","user":{"login":"alice"}},"issue":{"number":3}}`,
			blocked: false,
		},
		{
			name:    "sender fallback is bot",
			payload: `{"action":"opened","issue":{"number":3},"sender":{"login":"some-bot[bot]"}}`,
			blocked: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eventType := EventIssueComment
			if tt.name == "sender fallback is bot" {
				eventType = EventIssues
			}
			rejection := f.Authorize(mustEvent(t, eventType, tt.payload))
			if tt.blocked {
				if rejection == nil {
					t.Fatalf("Authorize() accepted bot actor")
				}
				if rejection.Status != http.StatusOK {
					t.Fatalf("bot suppression status = %d, want 200", rejection.Status)
				}
				return
			}
			if rejection != nil {
				t.Fatalf("Authorize() rejected human actor: %s", rejection.Reason)
			}
		})
	}
}
