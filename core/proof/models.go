package proof

import (
	"path"
	"strings"
	"time"

	"github.com/trezcool/absento/core"
)

type Status string

// Proof states
const (
	StatusPending     Status = "pending"
	StatusUnderReview Status = "under_review"
	StatusAccepted    Status = "accepted"
	StatusRejected    Status = "rejected"
)

var Statuses = []Status{StatusPending, StatusUnderReview, StatusAccepted, StatusRejected}

type Event string

const (
	EventSubmit      Event = "submit"
	EventAccept      Event = "accept"
	EventReject      Event = "reject"
	EventRequestInfo Event = "request_info"
	EventResubmit    Event = "resubmit"
)

func ParseStatus(s string) (Status, bool) {
	for _, st := range Statuses {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}

// Rank orders statuses by how much they weigh on a linked absence:
// accepted > under_review > pending > rejected > none.
func Rank(s Status) int {
	switch s {
	case StatusAccepted:
		return 4
	case StatusUnderReview:
		return 3
	case StatusPending:
		return 2
	case StatusRejected:
		return 1
	}
	return 0
}

// LinkBlocking lists the statuses whose links keep an absence out of new submissions:
// every status that outranks rejected.
func LinkBlocking() []string {
	res := make([]string, 0, len(Statuses))
	for _, s := range Statuses {
		if Rank(s) > Rank(StatusRejected) {
			res = append(res, string(s))
		}
	}
	return res
}

// EffectiveStatus picks the highest ranked status, or "" when there is none.
func EffectiveStatus(statuses []Status) Status {
	var eff Status
	for _, s := range statuses {
		if Rank(s) > Rank(eff) {
			eff = s
		}
	}
	return eff
}

type FileRef struct {
	Key         string `json:"key"`
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

type Proof struct {
	ID               string     `json:"id"`
	StudentID        string     `json:"student_id"`
	AbsenceStartDate time.Time  `json:"absence_start_date"`
	AbsenceEndDate   time.Time  `json:"absence_end_date"`
	MainReason       string     `json:"main_reason"`
	CustomReason     string     `json:"custom_reason"`
	Files            []FileRef  `json:"files"`
	StudentComment   string     `json:"student_comment"`
	ManagerComment   string     `json:"manager_comment"`
	DecisionReason   string     `json:"decision_reason"`
	Status           Status     `json:"status"`
	SubmissionDate   time.Time  `json:"submission_date"` // UTC
	ProcessingDate   *time.Time `json:"processing_date"` // UTC
	ProcessedBy      string     `json:"processed_by"`
	Version          int        `json:"version"`
	UpdatedAt        time.Time  `json:"updated_at"` // UTC

	AbsenceIDs []string `json:"absence_ids,omitempty"`
}

func (p Proof) IsOwnedBy(studentID string) bool {
	return p.StudentID != "" && p.StudentID == studentID
}

// Upload is a file received from a student, not stored yet.
type Upload struct {
	Name        string
	ContentType string
	Data        []byte
}

func (u Upload) Ext() string {
	return strings.ToLower(path.Ext(u.Name))
}

type NewProof struct {
	StudentID        string    `json:"-"`
	AbsenceStartDate time.Time `json:"absence_start_date" validate:"required"`
	AbsenceEndDate   time.Time `json:"absence_end_date" validate:"required,gtefield=AbsenceStartDate"`
	MainReason       string    `json:"main_reason" validate:"required,mainreason"`
	CustomReason     string    `json:"custom_reason" validate:"max=255"`
	StudentComment   string    `json:"student_comment" validate:"max=2000"`
}

func (np *NewProof) Clean() {
	np.MainReason = core.CleanString(np.MainReason, true /* lower */)
	np.CustomReason = core.CleanString(np.CustomReason)
	np.StudentComment = core.CleanString(np.StudentComment)
}

// Decision is a manager's verdict on a pending proof.
// A zero Version skips the stale read check but the write is still version checked.
type Decision struct {
	ProofID        string `json:"-"`
	ActorID        string `json:"-"`
	Kind           string `json:"decision" validate:"required,oneof=accept reject request_info"`
	Reason         string `json:"reason" validate:"max=255"`
	CustomReason   string `json:"custom_reason" validate:"max=255"`
	ManagerComment string `json:"manager_comment" validate:"max=2000"`
	Version        int    `json:"version" validate:"min=0"`
}

func (d *Decision) Clean() {
	d.Kind = core.CleanString(d.Kind, true /* lower */)
	d.Reason = core.CleanString(d.Reason)
	d.CustomReason = core.CleanString(d.CustomReason)
	d.ManagerComment = core.CleanString(d.ManagerComment)
}

func (d Decision) Event() Event {
	return Event(d.Kind)
}

// EditProof is a student's resubmission of a proof put under review.
type EditProof struct {
	ProofID        string   `json:"-"`
	StudentID      string   `json:"-"`
	MainReason     string   `json:"main_reason" validate:"required,mainreason"`
	CustomReason   string   `json:"custom_reason" validate:"max=255"`
	StudentComment string   `json:"student_comment" validate:"max=2000"`
	RemoveFiles    []string `json:"remove_files"` // file keys
	Version        int      `json:"version" validate:"min=0"`
}

func (ep *EditProof) Clean() {
	ep.MainReason = core.CleanString(ep.MainReason, true /* lower */)
	ep.CustomReason = core.CleanString(ep.CustomReason)
	ep.StudentComment = core.CleanString(ep.StudentComment)
}

// Orderings maps the sortable fields to their columns.
var Orderings = map[string]string{
	"submission_date":    "submission_date",
	"absence_start_date": "absence_start_date",
	"student_id":         "student_id",
	"status":             "status",
}

type QueryFilter struct {
	StudentID string    `query:"student"`
	Status    string    `query:"status"`
	From      time.Time `query:"from"`
	To        time.Time `query:"to"`
}

func (f *QueryFilter) Clean() {
	f.StudentID = core.CleanString(f.StudentID)
	f.Status = core.CleanString(f.Status, true /* lower */)
	if _, ok := ParseStatus(f.Status); !ok {
		f.Status = ""
	}
}

// Matches reports whether p satisfies every set field of f.
// From and To bound the proof's absence period.
func (f QueryFilter) Matches(p Proof) bool {
	if f.StudentID != "" && p.StudentID != f.StudentID {
		return false
	}
	if f.Status != "" && string(p.Status) != f.Status {
		return false
	}
	if !f.From.IsZero() && p.AbsenceEndDate.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && p.AbsenceStartDate.After(f.To) {
		return false
	}
	return true
}

// NotificationFailure records a notification that could not be handed over.
type NotificationFailure struct {
	ID        int       `json:"id"`
	ProofID   string    `json:"proof_id"`
	StudentID string    `json:"student_id"`
	Channel   string    `json:"channel"`
	Subject   string    `json:"subject"`
	Error     string    `json:"error"`
	CreatedAt time.Time `json:"created_at"` // UTC
}
