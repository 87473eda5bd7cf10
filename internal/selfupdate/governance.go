package selfupdate

import "strings"

// FailureGovernanceIdentityEdits is the rejection code when a patch
// touches an agent's identity file and changes one of the governance
// keys an agent must never self-modify.
const FailureGovernanceIdentityEdits = "governance_identity_edits"

// governanceKeys are the frontmatter keys in an agent's identity.md
// that only an operator, never a self-proposed patch, may change.
var governanceKeys = []string{
	"allowed_tools",
	"risk_tier",
	"max_actions_per_step",
	"allowed_paths",
	"can_request_privileged_change",
}

// violatesGovernanceGuardrail reports whether diff touches any
// identity.md file and its added or removed lines mention a governance
// key, which blocks the patch regardless of evidence quality.
func violatesGovernanceGuardrail(files []FileDiff) bool {
	for _, f := range files {
		if !strings.HasSuffix(f.Path, "identity.md") {
			continue
		}
		for _, key := range governanceKeys {
			if touchesKey(f.AddedLines, key) || touchesKey(f.RemovedLines, key) {
				return true
			}
		}
	}
	return false
}

func touchesKey(lines []string, key string) bool {
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, key+":") {
			return true
		}
	}
	return false
}
