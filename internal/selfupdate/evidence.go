package selfupdate

import (
	"fmt"

	"github.com/nextlevelbuilder/agentcore/internal/store"
)

// FailureEvidenceMissing is the rejection code when the evidence
// contract is not satisfied at propose time.
const FailureEvidenceMissing = "evidence_missing"

// validateEvidence enforces that a proposal carries every field the
// evidence contract requires: none of file_refs, line_refs,
// policy_refs, invariant_checks, or baseline_ref may be empty.
func validateEvidence(baselineRef string, e store.Evidence) error {
	switch {
	case baselineRef == "":
		return fmt.Errorf("baseline_ref is required")
	case len(e.FileRefs) == 0:
		return fmt.Errorf("file_refs must be non-empty")
	case len(e.LineRefs) == 0:
		return fmt.Errorf("line_refs must be non-empty")
	case len(e.PolicyRefs) == 0:
		return fmt.Errorf("policy_refs must be non-empty")
	case len(e.InvariantChecks) == 0:
		return fmt.Errorf("invariant_checks must be non-empty")
	}
	return nil
}
