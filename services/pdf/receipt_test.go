package pdfsvc

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/absento/core"
	"github.com/trezcool/absento/core/proof"
)

func TestReceiptRenderer_Render(t *testing.T) {
	r := NewReceiptRenderer(&core.Config{AppName: "Absento", Timezone: "UTC"})
	start := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		comment string
	}{
		{name: "without comment"},
		{name: "with comment", comment: "Certificat médical joint, rendez-vous à l'hôpital."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := r.Render(proof.Receipt{
				Proof: proof.Proof{
					ID:               "0b6f6d0e-8a51-4c1e-9f77-3c2b0e4b9a10",
					StudentID:        "s1",
					AbsenceStartDate: start,
					AbsenceEndDate:   start.Add(24 * time.Hour),
					StudentComment:   tt.comment,
					Files:            []proof.FileRef{{Key: "k", Name: "certificat.pdf"}},
					SubmissionDate:   start.Add(30 * time.Hour),
				},
				ReasonLabel:  "Maladie",
				AbsenceCount: 3,
			})
			require.NoError(t, err)
			assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
			assert.True(t, bytes.Contains(out, []byte("%%EOF")))
		})
	}
}
