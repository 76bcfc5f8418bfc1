package task

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

type Action string

const (
	ActionReview   Action = "review"
	ActionAccept   Action = "accept"
	ActionPRReview Action = "pr-review"
)

// CommandTask is one accepted command, ready for the executor.
type CommandTask struct {
	ID           string
	Action       Action
	RepoFullName string
	Number       int
	IsIssue      bool
	WorkDir      string
	Prompt       string
}

// NewID returns a 16 lowercase hex character task identifier.
func NewID() string {
	id := uuid.New()
	return strings.ReplaceAll(id.String(), "-", "")[:16]
}

// WorkDirFor builds the per-task working directory under root. The task id
// keeps concurrent tasks on the same repository from colliding.
func WorkDirFor(root string, repoFullName string, taskID string) string {
	slug := strings.ReplaceAll(repoFullName, "/", "-")
	return filepath.Join(root, fmt.Sprintf("%s-%s", slug, taskID))
}

// DedupKey identifies a command for the duplicate-suppression window.
func DedupKey(repoFullName string, number int, action Action) string {
	return fmt.Sprintf("%s#%d-%s", repoFullName, number, action)
}

// OwnerRepo splits "owner/name". ok is false for anything else.
func OwnerRepo(fullName string) (owner string, repo string, ok bool) {
	owner, repo, found := strings.Cut(fullName, "/")
	if !found || owner == "" || repo == "" {
		return "", "", false
	}
	return owner, repo, true
}
