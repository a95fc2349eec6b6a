package appraisal

import (
	"fmt"
	"io"

	"github.com/jung-kurt/gofpdf"
)

// WriteArchivePDF renders one archived cycle for emp.
func WriteArchivePDF(w io.Writer, emp Employee, rec ArchiveRecord) error {
	name := emp.Name
	if name == "" {
		name = rec.EmployeeID
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Appraisal record", false)
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(40, 10, "Appraisal record")
	pdf.Ln(12)
	pdf.SetFont("Helvetica", "", 12)
	pdf.Cell(0, 8, fmt.Sprintf("Employee: %s", name))
	pdf.Ln(7)
	if emp.Email != "" {
		pdf.Cell(0, 8, fmt.Sprintf("Email: %s", emp.Email))
		pdf.Ln(7)
	}
	if !rec.PeriodStart.IsZero() {
		pdf.Cell(0, 8, fmt.Sprintf("Period: %s to %s", rec.PeriodStart.Format("2006-01-02"), rec.PeriodEnd.Format("2006-01-02")))
		pdf.Ln(7)
	}
	pdf.Cell(0, 8, fmt.Sprintf("Weightage: %.2f", rec.Weightage))
	pdf.Ln(7)
	pdf.Cell(0, 8, fmt.Sprintf("Archived: %s", rec.ArchivedAt.Format("2006-01-02 15:04")))
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(80, 8, "Stage", "1", 0, "L", false, 0, "")
	pdf.CellFormat(60, 8, "State", "1", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 12)
	for _, s := range Stages {
		state, ok := rec.States[s.String()]
		if !ok {
			state = StateNotApplicable
		}
		pdf.CellFormat(80, 8, s.Label(), "1", 0, "L", false, 0, "")
		pdf.CellFormat(60, 8, string(state), "1", 1, "L", false, 0, "")
	}
	pdf.Ln(4)
	pdf.Cell(0, 8, fmt.Sprintf("Final status: %s", rec.Status))

	return pdf.Output(w)
}
