package proof

import (
	"context"

	"github.com/trezcool/absento/core"
)

type (
	Repository interface {
		CreateProof(ctx context.Context, p Proof, exec ...core.DBExecutor) (Proof, error)
		GetProof(ctx context.Context, id string, exec ...core.DBExecutor) (Proof, error)
		// UpdateProof saves p if its stored version still equals p.Version and returns it with the next version.
		// It returns core.ErrConcurrentModification otherwise.
		UpdateProof(ctx context.Context, p Proof, exec ...core.DBExecutor) (Proof, error)
		QueryProofs(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering) ([]Proof, error)
	}

	NotificationFailureRepository interface {
		RecordFailure(ctx context.Context, nf NotificationFailure) error
		ListFailures(ctx context.Context, proofID string) ([]NotificationFailure, error)
	}

	// NotificationSink delivers a message to a student. Delivery itself is best-effort.
	NotificationSink interface {
		Send(ctx context.Context, studentID string, msg *core.EmailMessage) error
	}

	FileStore interface {
		Save(ctx context.Context, key string, upload Upload) (FileRef, error)
		Delete(ctx context.Context, key string) error
	}

	// ReceiptRenderer renders the submission receipt attached to the confirmation email.
	ReceiptRenderer interface {
		Render(receipt Receipt) ([]byte, error)
	}
)

// Receipt is what a submission receipt shows.
type Receipt struct {
	Proof        Proof
	ReasonLabel  string
	AbsenceCount int
}
