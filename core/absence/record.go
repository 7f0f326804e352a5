package absence

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/absento/core"
)

// Record validates and stores an absence reported by the attendance process.
// Recorded absences start absent and unjustified.
func Record(ctx context.Context, repo Repository, validate *validator.Validate, na NewAbsence) (Absence, error) {
	na.StudentID = core.CleanString(na.StudentID)
	na.CourseSlotID = core.CleanString(na.CourseSlotID)
	if err := validate.Struct(na); err != nil {
		return Absence{}, err
	}

	abs, err := repo.CreateAbsence(ctx, Absence{
		ID:           uuid.New().String(),
		StudentID:    na.StudentID,
		CourseSlotID: na.CourseSlotID,
		SlotStart:    na.SlotStart.UTC(),
		Status:       StatusAbsent,
	})
	return abs, errors.Wrap(err, "creating absence")
}
