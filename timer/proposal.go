package timer

// Requirement names the confirmation an intent needs before it commits.
type Requirement string

const (
	RequireNothing               Requirement = ""
	RequireDuplicateConfirmation Requirement = "duplicate_name"
	RequirePauseConfirmation     Requirement = "pause_active"
)

// Proposal is the outcome of validating an intent without applying it.
type Proposal struct {
	Requirement Requirement `json:"requirement,omitempty"`

	// ConflictID and ConflictName identify the task that triggered the
	// requirement: the existing duplicate, or the task that would be paused.
	ConflictID   int64  `json:"conflictId,omitempty"`
	ConflictName string `json:"conflictName,omitempty"`
}

// NeedsConfirmation reports whether the host must ask before committing.
func (p Proposal) NeedsConfirmation() bool {
	return p.Requirement != RequireNothing
}
