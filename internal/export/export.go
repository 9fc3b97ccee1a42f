package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/segyhp/loan-tracker/internal/domain"
)

const (
	LoansSheet   = "Loans"
	SummarySheet = "Summary"

	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	ContentTypeCSV  = "text/csv"
)

// Columns is the header row of the loans table.
var Columns = []string{
	"Source",
	"Type",
	"Total Amount",
	"Paid Amount",
	"Remaining Amount",
	"Monthly Payment",
	"Status",
	"Next Payment Date",
}

// FileName returns the report name stamped with the export time,
// e.g. loan_report_2024-01-25T09-30-00.xlsx.
func FileName(now time.Time, ext string) string {
	return fmt.Sprintf("loan_report_%s.%s", now.Format("2006-01-02T15-04-05"), ext)
}

func loanRow(l *domain.Loan) []string {
	return []string{
		l.Source,
		l.LoanType,
		l.TotalAmount.StringFixed(2),
		l.PaidAmount.StringFixed(2),
		l.RemainingAmount.StringFixed(2),
		l.MonthlyPayment.StringFixed(2),
		l.Status(),
		l.NextPaymentDate.String(),
	}
}

// WriteCSV writes one header row and one row per loan.
func WriteCSV(w io.Writer, loans []*domain.Loan) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return err
	}
	for _, l := range loans {
		if err := cw.Write(loanRow(l)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteXLSX renders the loans table and the aggregate view as a workbook.
func WriteXLSX(w io.Writer, loans []*domain.Loan, summary domain.Summary) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", LoansSheet); err != nil {
		return err
	}

	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}

	if err := writeLoans(f, loans, header); err != nil {
		return fmt.Errorf("loans sheet: %w", err)
	}
	if err := writeSummary(f, summary, header); err != nil {
		return fmt.Errorf("summary sheet: %w", err)
	}

	return f.Write(w)
}

func writeLoans(f *excelize.File, loans []*domain.Loan, header int) error {
	row := make([]interface{}, len(Columns))
	for i, c := range Columns {
		row[i] = c
	}
	if err := f.SetSheetRow(LoansSheet, "A1", &row); err != nil {
		return err
	}
	if err := f.SetRowStyle(LoansSheet, 1, 1, header); err != nil {
		return err
	}

	for i, l := range loans {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := []interface{}{
			l.Source,
			l.LoanType,
			money(l.TotalAmount),
			money(l.PaidAmount),
			money(l.RemainingAmount),
			money(l.MonthlyPayment),
			l.Status(),
			l.NextPaymentDate.String(),
		}
		if err := f.SetSheetRow(LoansSheet, cell, &values); err != nil {
			return err
		}
	}

	return f.SetColWidth(LoansSheet, "A", "H", 18)
}

func writeSummary(f *excelize.File, s domain.Summary, header int) error {
	if _, err := f.NewSheet(SummarySheet); err != nil {
		return err
	}

	rows := [][]interface{}{
		{"Metric", "Value"},
		{"Total Borrowed", money(s.TotalBorrowed)},
		{"Total Paid", money(s.TotalPaid)},
		{"Total Remaining", money(s.TotalRemaining)},
		{"Monthly Payment Due", money(s.MonthlyPaymentDue)},
		{"Paid Percent", money(s.PaidPercent)},
		{"Active Loans", s.ActiveLoans},
		{"Completed Loans", s.CompletedLoans},
		{"Total Loans", s.TotalLoans},
	}
	for i := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(SummarySheet, cell, &rows[i]); err != nil {
			return err
		}
	}
	if err := f.SetRowStyle(SummarySheet, 1, 1, header); err != nil {
		return err
	}
	return f.SetColWidth(SummarySheet, "A", "A", 22)
}

// money keeps cells numeric so spreadsheets can sum them.
func money(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}
