package webhook

import (
	"fmt"
	"net/http"
	"strings"
)

// allowedActions is a noise filter, not a security boundary: GitHub delivers
// every action of a subscribed event and most of them mean nothing here.
var allowedActions = map[string]map[string]bool{
	EventIssues:            {"opened": true, "edited": true},
	EventIssueComment:      {"created": true},
	EventPullRequestReview: {"submitted": true},
}

// Rejection says how to answer a request that will not be processed. Filter
// rejections are not errors; most answer 200 so GitHub stops redelivering.
type Rejection struct {
	Status int
	Reason string
}

// Filter applies the installation allowlist, the event/action allowlist, and
// bot-loop suppression, in that order.
type Filter struct {
	allowedInstallations map[int64]bool
	botLogin             string
	botSuffix            string
}

func NewFilter(allowedInstallations []int64, botLogin string, botSuffix string) *Filter {
	var allowed map[int64]bool
	if len(allowedInstallations) > 0 {
		allowed = make(map[int64]bool, len(allowedInstallations))
		for _, id := range allowedInstallations {
			allowed[id] = true
		}
	}

	return &Filter{
		allowedInstallations: allowed,
		botLogin:             strings.TrimSpace(botLogin),
		botSuffix:            strings.TrimSpace(botSuffix),
	}
}

// Authorize returns nil when the event may proceed to classification.
func (f *Filter) Authorize(ev Event) *Rejection {
	if f.allowedInstallations != nil {
		id, present := ev.Payload.InstallationID()
		if !present {
			return &Rejection{
				Status: http.StatusForbidden,
				Reason: "no installation id in payload",
			}
		}
		if !f.allowedInstallations[id] {
			return &Rejection{
				Status: http.StatusForbidden,
				Reason: fmt.Sprintf("installation %d not allowed", id),
			}
		}
	}

	actions, knownEvent := allowedActions[ev.Type]
	if !knownEvent {
		return &Rejection{Status: http.StatusOK, Reason: "event not processed"}
	}
	if !actions[ev.Payload.Action] {
		return &Rejection{Status: http.StatusOK, Reason: "action not processed"}
	}

	if login := ev.Payload.ActorLogin(); login != "" {
		if f.botLogin != "" && login == f.botLogin {
			return &Rejection{Status: http.StatusOK, Reason: "bot comment ignored"}
		}
		if f.botSuffix != "" && strings.HasSuffix(login, f.botSuffix) {
			return &Rejection{Status: http.StatusOK, Reason: "bot comment ignored"}
		}
	}

	return nil
}
