package dto

// Blocking types returned by eligibility validation so the intake UI can
// branch on the machine-readable cause.
const (
	// BlockingPassedPrevious means a prior attempt already achieved a passing grade.
	BlockingPassedPrevious = "passed_previous"
	// BlockingUnmarkedSubmission means a prior attempt is still in the marking pipeline.
	BlockingUnmarkedSubmission = "unmarked_submission"
	// BlockingMalpracticeLimit means a malpractice enforcement caps or forbids attempts.
	BlockingMalpracticeLimit = "malpractice_limit"
	// BlockingAttemptLimit means the global attempt cap has been reached.
	BlockingAttemptLimit = "attempt_limit"
)

// EligibilityResult is the structured outcome of an eligibility check. An
// ineligible result is a negative answer, not an error: Reason is rendered to
// the learner and BlockingType drives UI branching.
type EligibilityResult struct {
	Eligible     bool                   `json:"eligible"`
	Reason       string                 `json:"reason,omitempty"`
	BlockingType string                 `json:"blocking_type,omitempty"`
	Details      map[string]interface{} `json:"details,omitempty"`
}

// Eligible constructs a positive result.
func Eligible() EligibilityResult {
	return EligibilityResult{Eligible: true}
}

// Blocked constructs a negative result with its cause.
func Blocked(blockingType, reason string, details map[string]interface{}) EligibilityResult {
	return EligibilityResult{
		Reason:       reason,
		BlockingType: blockingType,
		Details:      details,
	}
}
