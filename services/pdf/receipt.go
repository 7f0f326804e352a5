// Package pdfsvc renders the PDF documents sent to students.
package pdfsvc

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/pkg/errors"

	"github.com/trezcool/absento/core"
	"github.com/trezcool/absento/core/proof"
)

const dateLayout = "02/01/2006"

type ReceiptRenderer struct {
	appName string
	loc     *time.Location
}

var _ proof.ReceiptRenderer = (*ReceiptRenderer)(nil) // interface compliance check

func NewReceiptRenderer(conf *core.Config) *ReceiptRenderer {
	return &ReceiptRenderer{appName: conf.AppName, loc: conf.Location()}
}

// Render lays the receipt out on a single A4 page.
func (r *ReceiptRenderer) Render(rc proof.Receipt) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 20)
	pdf.SetTitle("Accusé de réception", true)
	pdf.SetAuthor(r.appName, true)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.AddPage()
	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 10, tr("Accusé de réception de justificatif"), "", 1, "L", false, 0, "")
	pdf.SetFont("Arial", "", 9)
	pdf.SetTextColor(110, 110, 110)
	pdf.CellFormat(0, 6, tr(r.appName+" - bureau de la vie scolaire"), "", 1, "L", false, 0, "")
	pdf.SetTextColor(0, 0, 0)
	pdf.Ln(6)

	p := rc.Proof
	rows := [][2]string{
		{"Référence", p.ID},
		{"Étudiant", p.StudentID},
		{"Période", fmt.Sprintf("du %s au %s", r.date(p.AbsenceStartDate), r.date(p.AbsenceEndDate))},
		{"Motif", rc.ReasonLabel},
		{"Absences concernées", fmt.Sprintf("%d", rc.AbsenceCount)},
		{"Fichiers joints", fmt.Sprintf("%d", len(p.Files))},
		{"Déposé le", p.SubmissionDate.In(r.loc).Format(dateLayout + " 15:04")},
	}
	for i, row := range rows {
		fill := i%2 == 0
		pdf.SetFillColor(242, 242, 242)
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(55, 8, tr(row[0]), "", 0, "L", fill, 0, "")
		pdf.SetFont("Arial", "", 10)
		pdf.CellFormat(0, 8, tr(row[1]), "", 1, "L", fill, 0, "")
	}

	if p.StudentComment != "" {
		pdf.Ln(4)
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(0, 8, tr("Commentaire"), "", 1, "L", false, 0, "")
		pdf.SetFont("Arial", "", 10)
		pdf.MultiCell(0, 6, tr(p.StudentComment), "", "L", false)
	}

	pdf.Ln(8)
	pdf.SetFont("Arial", "I", 9)
	pdf.MultiCell(0, 5, tr("Ce document atteste du dépôt du justificatif. Il ne vaut pas acceptation."), "", "L", false)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, errors.Wrap(err, "rendering receipt")
	}
	return buf.Bytes(), nil
}

func (r *ReceiptRenderer) date(t time.Time) string {
	return t.In(r.loc).Format(dateLayout)
}
