package reports

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/phpdave11/gofpdf"
)

const dateLayout = "2006-01-02"

// RenderPDF lays the summary out as one labelled table per section.
func RenderPDF(s *Summary, providerName string) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Provider Summary", false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, "Provider Summary")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 11)
	if providerName != "" {
		pdf.Cell(0, 6, "Provider: "+providerName)
		pdf.Ln(6)
	}
	pdf.Cell(0, 6, "Period: "+periodLabel(s.Range))
	pdf.Ln(6)
	pdf.Cell(0, 6, "Generated: "+s.GeneratedAt.Format("2006-01-02 15:04 MST"))
	pdf.Ln(10)

	for _, section := range s.Sections {
		pdf.SetFont("Helvetica", "B", 12)
		pdf.Cell(0, 7, section.Title)
		pdf.Ln(8)

		pdf.SetFont("Helvetica", "", 11)
		for _, row := range section.Rows {
			pdf.CellFormat(120, 6, row.Label, "B", 0, "L", false, 0, "")
			pdf.CellFormat(40, 6, strconv.FormatInt(row.Value, 10), "B", 1, "R", false, 0, "")
		}
		pdf.Ln(6)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render summary pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func periodLabel(r DateRange) string {
	from, to := "beginning", "now"
	if r.From != nil {
		from = r.From.Format(dateLayout)
	}
	if r.To != nil {
		to = r.To.Format(dateLayout)
	}
	return from + " to " + to
}
