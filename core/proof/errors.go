package proof

import (
	"github.com/pkg/errors"

	"github.com/trezcool/absento/core"
)

var (
	ErrNotFound = errors.New("proof not found")

	ErrInvalidState   = core.NewDomainError(core.CodeInvalidState, "this proof cannot be decided in its current state")
	ErrNotUnderReview = core.NewDomainError(core.CodeNotUnderReview, "this proof is not awaiting changes")
	ErrNotOwner       = core.NewDomainError(core.CodeNotOwner, "this proof belongs to another student")

	ErrMissingReason = core.NewValidationError(nil, core.FieldError{
		Field: "reason",
		Error: "a reason is required to reject a proof",
	})
	ErrMissingCustomReason = core.NewValidationError(nil, core.FieldError{
		Field: "custom_reason",
		Error: "a custom reason is required when the reason is \"other\"",
	})
	ErrNoFile = core.NewValidationError(nil, core.FieldError{
		Field: "files",
		Error: "at least one file is required",
	})
)
