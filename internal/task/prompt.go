package task

import "fmt"

// Prompt templates are collaborator data: the classifier only guarantees the
// repository name and issue/PR number are interpolated correctly.

const reviewTemplate = `You are working on issue #%d in repository %s.

Read the issue with "gh issue view %d" and review the request. Investigate the
codebase, then post a comment on the issue with your assessment: what the
change involves, which files are affected, and any open questions. Do not
modify any files yet.`

const acceptTemplate = `You are working on issue #%d in repository %s.

Read the issue with "gh issue view %d", including all comments. Implement the
requested change on a new branch, commit your work, push the branch, and open
a pull request that references the issue.`

const prReviewTemplate = `You are responding to review feedback on pull request #%d in repository %s.

Read the pull request and its reviews with "gh pr view %d --comments". Address
each review comment: update the code on the pull request branch, commit, and
push. Reply to the review with a summary of what changed.`

// BuildPrompt renders the fixed instruction template for an action.
func BuildPrompt(action Action, repoFullName string, number int) string {
	switch action {
	case ActionAccept:
		return fmt.Sprintf(acceptTemplate, number, repoFullName, number)
	case ActionPRReview:
		return fmt.Sprintf(prReviewTemplate, number, repoFullName, number)
	default:
		return fmt.Sprintf(reviewTemplate, number, repoFullName, number)
	}
}
