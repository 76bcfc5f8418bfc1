package executor

import (
	"encoding/json"
	"strings"
)

// agentOutput is the final JSON document the agent prints in JSON output
// mode. Both session id spellings have been observed across agent versions.
type agentOutput struct {
	SessionID    string `json:"session_id"`
	SessionIDAlt string `json:"sessionId"`
}

// extractSessionID parses the accumulated stdout as a single JSON document
// and returns the session id, or "" when the output is not parseable. A
// parse failure is not a task failure.
func extractSessionID(stdout []byte) string {
	trimmed := strings.TrimSpace(string(stdout))
	if trimmed == "" {
		return ""
	}

	var out agentOutput
	if err := json.Unmarshal([]byte(trimmed), &out); err != nil {
		return ""
	}
	if out.SessionID != "" {
		return out.SessionID
	}
	return out.SessionIDAlt
}
