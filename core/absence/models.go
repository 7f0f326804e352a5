package absence

import "time"

type Status string

const (
	StatusAbsent  Status = "absent"
	StatusExcused Status = "excused"
)

// Absence is one missed course occurrence.
// Justified mirrors "at least one linked proof is accepted" and is only written by the proof workflow.
type Absence struct {
	ID           string    `json:"id"`
	StudentID    string    `json:"student_id"`
	CourseSlotID string    `json:"course_slot_id"`
	SlotStart    time.Time `json:"slot_start"`
	Status       Status    `json:"status"`
	Justified    bool      `json:"justified"`
	CreatedAt    time.Time `json:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at"` // UTC
}

// Link joins a proof to an absence. ProofStatus is the linked proof's current status, read-only.
type Link struct {
	ProofID     string    `json:"proof_id"`
	AbsenceID   string    `json:"absence_id"`
	ProofStatus string    `json:"proof_status,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// PeriodFilter selects a student's absences whose slot starts within [Start, End].
type PeriodFilter struct {
	StudentID string
	Start     time.Time
	End       time.Time
	Status    Status   // empty: any
	Justified *bool    // nil: any
	LinkedTo  []string // excludes absences linked to a proof in one of these statuses
}

// LinkFilter matches links on any of ProofIDs or AbsenceIDs.
type LinkFilter struct {
	ProofIDs   []string
	AbsenceIDs []string
}

func (f LinkFilter) IsEmpty() bool {
	return len(f.ProofIDs) == 0 && len(f.AbsenceIDs) == 0
}

// JustificationUpdate sets Justified on an absence. An empty Status leaves the status unchanged.
type JustificationUpdate struct {
	AbsenceID string
	Justified bool
	Status    Status
}

// Matches reports whether a satisfies every criterion of f except LinkedTo.
func (f PeriodFilter) Matches(a Absence) bool {
	if a.StudentID != f.StudentID {
		return false
	}
	if a.SlotStart.Before(f.Start) || a.SlotStart.After(f.End) {
		return false
	}
	if f.Status != "" && a.Status != f.Status {
		return false
	}
	if f.Justified != nil && a.Justified != *f.Justified {
		return false
	}
	return true
}

// NewAbsence is an absence reported by the attendance process.
type NewAbsence struct {
	StudentID    string    `json:"student_id" validate:"required,identifier,max=64"`
	CourseSlotID string    `json:"course_slot_id" validate:"required,identifier,max=64"`
	SlotStart    time.Time `json:"slot_start" validate:"required"`
}
