package reason

import (
	"strings"
	"time"
)

type Kind string

const (
	KindRejection  Kind = "rejection"
	KindValidation Kind = "validation"
	KindAbsence    Kind = "absence" // student main reasons; built-in, never stored
)

// Other is the sentinel used when none of the listed reasons fits.
const Other = "other"

// Student main reasons
const (
	Illness            = "illness"
	FamilyDeath        = "family_death"
	Transport          = "transport"
	MedicalAppointment = "medical_appointment"
	OfficialSummons    = "official_summons"
)

var (
	StudentReasons = []string{Illness, FamilyDeath, Transport, MedicalAppointment, OfficialSummons, Other}

	labels = map[string]string{
		Illness:            "Maladie",
		FamilyDeath:        "Décès dans la famille",
		Transport:          "Problème de transport",
		MedicalAppointment: "Rendez-vous médical",
		OfficialSummons:    "Convocation officielle",
		Other:              "Autre",
	}

	otherLabels = map[string]struct{}{Other: {}, "autre": {}}
)

type Entry struct {
	ID        int       `json:"id"`
	Kind      Kind      `json:"kind"`
	Label     string    `json:"label"`
	CreatedAt time.Time `json:"created_at"` // UTC
}

// Stored reports whether entries of kind k live in the catalog.
func (k Kind) Stored() bool {
	return k == KindRejection || k == KindValidation
}

func ParseKind(s string) (Kind, bool) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	switch k {
	case KindRejection, KindValidation, KindAbsence:
		return k, true
	}
	return "", false
}

// IsOther reports whether s is the "other" sentinel, spelled as the key or as its label.
func IsOther(s string) bool {
	_, ok := otherLabels[strings.ToLower(strings.TrimSpace(s))]
	return ok
}

func IsStudentReason(s string) bool {
	for _, r := range StudentReasons {
		if r == s {
			return true
		}
	}
	return false
}
