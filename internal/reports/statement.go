// Package reports renders period statements as PDF documents.
package reports

import (
	"fmt"
	"io"
	"time"

	"github.com/phpdave11/gofpdf"

	"zenith/internal/core"
	"zenith/internal/metrics"
)

// MaxRows caps the transaction table; longer periods are truncated.
const MaxRows = 500

var tableCols = []float64{24, 80, 42, 36}

// Filename suggests a download name for a report.
func Filename(r metrics.ReportView) string {
	return fmt.Sprintf("zenith-%s-%s.pdf", r.Period, r.Start.Format("2006-01"))
}

// WriteStatement renders r as an A4 statement to w. Category ids are
// resolved through reg; generated stamps the footer.
func WriteStatement(w io.Writer, r metrics.ReportView, reg *core.Registry, generated time.Time) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	// core fonts are cp1252; translate the UTF-8 category names
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetMargins(14, 14, 14)
	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont("Helvetica", "", 8)
		pdf.SetTextColor(120, 120, 120)
		pdf.CellFormat(0, 10, fmt.Sprintf("Generated %s - page %d", generated.Format("2006-01-02 15:04"), pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.SetTextColor(20, 20, 20)
	pdf.Cell(0, 10, "Zenith statement")
	pdf.Ln(9)
	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(80, 80, 80)
	last := r.End.AddDate(0, 0, -1)
	pdf.Cell(0, 6, fmt.Sprintf("%s: %s to %s", r.Period.Label(), r.Start.Format("2006-01-02"), last.Format("2006-01-02")))
	pdf.Ln(10)

	summary(pdf, r)
	breakdown(pdf, tr, "Expenses by category", r.Expenses)
	breakdown(pdf, tr, "Income by category", r.Income)
	table(pdf, tr, r.Transactions, reg)

	return pdf.Output(w)
}

func summary(pdf *gofpdf.Fpdf, r metrics.ReportView) {
	w := []float64{45.5, 45.5, 45.5, 45.5}
	pdf.SetDrawColor(200, 200, 200)
	pdf.SetFillColor(245, 245, 245)
	pdf.SetTextColor(20, 20, 20)
	pdf.SetFont("Helvetica", "B", 10)
	for i, h := range []string{"Income", "Expenses", "Net", "Savings rate"} {
		ln := 0
		if i == len(w)-1 {
			ln = 1
		}
		pdf.CellFormat(w[i], 8, h, "1", ln, "C", true, 0, "")
	}
	pdf.SetFont("Helvetica", "", 10)
	vals := []string{
		r.Totals.Income.Format(),
		r.Totals.Expenses.Format(),
		r.Totals.Net.Format(),
		fmt.Sprintf("%.1f%%", r.SavingsRate),
	}
	for i, v := range vals {
		ln := 0
		if i == len(vals)-1 {
			ln = 1
		}
		pdf.CellFormat(w[i], 8, v, "1", ln, "C", false, 0, "")
	}
	pdf.Ln(6)
}

func breakdown(pdf *gofpdf.Fpdf, tr func(string) string, title string, rows []core.CategoryAmount) {
	if len(rows) == 0 {
		return
	}
	pdf.SetFont("Helvetica", "B", 11)
	pdf.Cell(0, 7, title)
	pdf.Ln(7)
	pdf.SetFont("Helvetica", "", 9)
	for _, c := range rows {
		pdf.CellFormat(120, 6, tr(c.Name), "B", 0, "L", false, 0, "")
		pdf.CellFormat(62, 6, c.Amount.Format(), "B", 1, "R", false, 0, "")
	}
	pdf.Ln(5)
}

func tableHeader(pdf *gofpdf.Fpdf) {
	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetFillColor(245, 245, 245)
	for i, h := range []string{"DATE", "DESCRIPTION", "CATEGORY", "AMOUNT"} {
		align, ln := "L", 0
		if i == 3 {
			align, ln = "R", 1
		}
		pdf.CellFormat(tableCols[i], 7, h, "1", ln, align, true, 0, "")
	}
	pdf.SetFont("Helvetica", "", 8)
}

func table(pdf *gofpdf.Fpdf, tr func(string) string, txs []core.Transaction, reg *core.Registry) {
	pdf.SetFont("Helvetica", "B", 11)
	pdf.Cell(0, 7, fmt.Sprintf("Transactions (%d)", len(txs)))
	pdf.Ln(7)
	if len(txs) == 0 {
		pdf.SetFont("Helvetica", "I", 9)
		pdf.Cell(0, 6, "No transactions in this period.")
		return
	}
	tableHeader(pdf)
	for i, t := range txs {
		if i >= MaxRows {
			pdf.SetFont("Helvetica", "I", 8)
			pdf.CellFormat(0, 7, fmt.Sprintf("%d more not shown", len(txs)-MaxRows), "1", 1, "C", false, 0, "")
			break
		}
		if pdf.GetY() > 270 {
			pdf.AddPage()
			tableHeader(pdf)
		}
		pdf.CellFormat(tableCols[0], 6, t.Date.String(), "1", 0, "L", false, 0, "")
		pdf.CellFormat(tableCols[1], 6, tr(truncate(t.Description, 48)), "1", 0, "L", false, 0, "")
		pdf.CellFormat(tableCols[2], 6, tr(truncate(reg.Resolve(t.CategoryID), 24)), "1", 0, "L", false, 0, "")
		if t.Type == core.Expense {
			pdf.SetTextColor(170, 30, 30)
		} else {
			pdf.SetTextColor(20, 120, 60)
		}
		pdf.CellFormat(tableCols[3], 6, t.Signed().Format(), "1", 1, "R", false, 0, "")
		pdf.SetTextColor(20, 20, 20)
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "..."
}
