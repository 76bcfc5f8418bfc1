package webhook

import (
	"encoding/json"

	"github.com/google/go-github/v68/github"

	"homunculus/internal/errs"
)

// Event types this server reacts to. Everything else is filtered before
// classification.
const (
	EventIssues            = "issues"
	EventIssueComment      = "issue_comment"
	EventPullRequestReview = "pull_request_review"
)

// Payload is the subset of a webhook payload shared by the event types we
// handle. Field presence varies per event; accessors below pick the first
// populated source.
type Payload struct {
	Action       string                    `json:"action"`
	Issue        *github.Issue             `json:"issue"`
	PullRequest  *github.PullRequest       `json:"pull_request"`
	Comment      *github.IssueComment      `json:"comment"`
	Review       *github.PullRequestReview `json:"review"`
	Repository   *github.Repository        `json:"repository"`
	Installation *github.Installation      `json:"installation"`
	Sender       *github.User              `json:"sender"`
}

// Event is one inbound webhook delivery. Constructed at ingress, discarded
// after dispatch.
type Event struct {
	Type     string
	Delivery string
	RawBody  []byte
	Payload  Payload
}

func ParseEvent(eventType string, delivery string, body []byte) (Event, error) {
	var payload Payload
	if err := json.Unmarshal(body, &payload); err != nil {
		return Event{}, errs.Wrap(err, "decode webhook payload")
	}

	return Event{
		Type:     eventType,
		Delivery: delivery,
		RawBody:  body,
		Payload:  payload,
	}, nil
}

// CommandText returns the text scanned for slash commands: comment body,
// else issue body, else review body.
func (p Payload) CommandText() string {
	if p.Comment != nil && p.Comment.GetBody() != "" {
		return p.Comment.GetBody()
	}
	if p.Issue != nil && p.Issue.GetBody() != "" {
		return p.Issue.GetBody()
	}
	if p.Review != nil && p.Review.GetBody() != "" {
		return p.Review.GetBody()
	}
	return ""
}

// ActorLogin returns the acting user: comment author, else issue author,
// else sender.
func (p Payload) ActorLogin() string {
	if p.Comment != nil && p.Comment.GetUser().GetLogin() != "" {
		return p.Comment.GetUser().GetLogin()
	}
	if p.Issue != nil && p.Issue.GetUser().GetLogin() != "" {
		return p.Issue.GetUser().GetLogin()
	}
	return p.Sender.GetLogin()
}

func (p Payload) RepoFullName() string {
	if p.Repository != nil {
		return p.Repository.GetFullName()
	}
	if p.PullRequest != nil {
		return p.PullRequest.GetBase().GetRepo().GetFullName()
	}
	return ""
}

// InstallationID returns (id, true) when the payload carries an app
// installation. PAT-delivered webhooks have none.
func (p Payload) InstallationID() (int64, bool) {
	if p.Installation == nil || p.Installation.ID == nil {
		return 0, false
	}
	return p.Installation.GetID(), true
}
