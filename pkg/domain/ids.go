package domain

// Typed identifiers for the audit hierarchy and its participants.
//
// Codes are generated (internal/codegen) and encode lineage; the string
// form is the wire and storage representation everywhere, so these stay
// plain string types rather than opaque structs.
type (
	// ProcessCode identifies one audit run.
	ProcessCode string
	// StepCode identifies one step within an audit run.
	StepCode string
	// ChecklistCode identifies one scorable item within a step.
	ChecklistCode string

	// TeacherID identifies the teacher under audit.
	TeacherID string
	// AuditorID identifies the user performing the audit. Empty means
	// unassigned.
	AuditorID string
	// EventRef references the lesson/session event that triggered the audit.
	EventRef string
)

func (c ProcessCode) String() string   { return string(c) }
func (c StepCode) String() string      { return string(c) }
func (c ChecklistCode) String() string { return string(c) }
func (id TeacherID) String() string    { return string(id) }
func (id AuditorID) String() string    { return string(id) }
func (r EventRef) String() string      { return string(r) }

// IsZero reports whether no auditor is assigned.
func (id AuditorID) IsZero() bool { return id == "" }
