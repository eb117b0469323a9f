package report

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"time"

	"github.com/zombor/hsa-ledger/internal/ledger"
	"github.com/zombor/hsa-ledger/internal/paths"
	"github.com/zombor/hsa-ledger/internal/workbook"
)

// ErrNoRecords is returned when an export would contain no bills
var ErrNoRecords = errors.New("no records found")

// DefaultHSAPath is where the HSA reconciliation is written when no path is given
const DefaultHSAPath = "hsa_reconciliation.xlsx"

// DefaultTaxPath returns where the tax export for year is written when no path is given
func DefaultTaxPath(year int) string {
	return fmt.Sprintf("tax_export_%d.xlsx", year)
}

// CategoryTotal is the summed amount for one category
type CategoryTotal struct {
	Category string
	Amount   float64
}

// MonthTotal is the summed amount for one calendar month
type MonthTotal struct {
	Month  int
	Name   string
	Amount float64
}

// YearTotal is the summed amount for one year
type YearTotal struct {
	Year   int
	Amount float64
}

// TaxExport is the content of a tax-year export
type TaxExport struct {
	Year       int
	Details    []ledger.Bill
	Categories []CategoryTotal
	Months     []MonthTotal
	Total      float64
	Average    float64
}

// BuildTaxExport collects the bills for year, oldest first, with their
// category and monthly totals.
func BuildTaxExport(bills []ledger.Bill, year int) (*TaxExport, error) {
	details := sortedByDate(bills, func(b ledger.Bill) bool { return b.Year == year })
	if len(details) == 0 {
		return nil, fmt.Errorf("%w for year %d", ErrNoRecords, year)
	}

	byCategory := make(map[string]float64)
	byMonth := make(map[int]float64)
	for _, b := range details {
		byCategory[b.Category] += b.Amount
		byMonth[b.Month] += b.Amount
	}

	export := &TaxExport{
		Year:    year,
		Details: details,
		Total:   total(details),
	}
	export.Average = export.Total / float64(len(details))

	categories := make([]string, 0, len(byCategory))
	for c := range byCategory {
		categories = append(categories, c)
	}
	slices.Sort(categories)
	for _, c := range categories {
		export.Categories = append(export.Categories, CategoryTotal{Category: c, Amount: byCategory[c]})
	}

	for m := 1; m <= 12; m++ {
		if amount, ok := byMonth[m]; ok {
			export.Months = append(export.Months, MonthTotal{
				Month:  m,
				Name:   time.Month(m).String(),
				Amount: amount,
			})
		}
	}
	return export, nil
}

// Sheets lays the export out as the Details, Category Summary, Monthly Summary
// and Summary sheets.
func (e *TaxExport) Sheets() []workbook.Sheet {
	details := make([][]any, 0, len(e.Details))
	for _, b := range e.Details {
		details = append(details, []any{
			b.Date.Format(ledger.DateLayout),
			b.Provider,
			b.Category,
			b.Amount,
			b.Description,
		})
	}

	categories := make([][]any, 0, len(e.Categories))
	for _, c := range e.Categories {
		categories = append(categories, []any{c.Category, c.Amount})
	}

	months := make([][]any, 0, len(e.Months))
	for _, m := range e.Months {
		months = append(months, []any{m.Month, m.Name, m.Amount})
	}

	return []workbook.Sheet{
		{
			Name:   "Details",
			Header: []string{"date", "provider", "category", "amount", "description"},
			Rows:   details,
		},
		{
			Name:   "Category Summary",
			Header: []string{"Category", "Total Amount"},
			Rows:   categories,
		},
		{
			Name:   "Monthly Summary",
			Header: []string{"Month", "Month Name", "Amount"},
			Rows:   months,
		},
		{
			Name:   "Summary",
			Header: []string{"Metric", "Value"},
			Rows: [][]any{
				{"Total Amount", Currency(e.Total)},
				{"Number of Bills", len(e.Details)},
				{"Average Bill Amount", Currency(e.Average)},
				{"Tax Year", e.Year},
			},
		},
	}
}

// ExportForTaxes writes the tax export for year to outputPath, or to
// DefaultTaxPath when outputPath is empty, and returns the absolute path.
func ExportForTaxes(bills []ledger.Bill, year int, outputPath string) (string, error) {
	export, err := BuildTaxExport(bills, year)
	if err != nil {
		return "", err
	}

	if outputPath == "" {
		outputPath = DefaultTaxPath(year)
	}
	path, err := write(outputPath, export.Sheets())
	if err != nil {
		return "", fmt.Errorf("exporting tax year %d: %w", year, err)
	}

	slog.Info("Tax export saved", "year", year, "path", path, "bills", len(export.Details))
	return path, nil
}

// HSAReconciliation is the content of an HSA reconciliation export
type HSAReconciliation struct {
	Expenses []ledger.Bill
	Years    []YearTotal
}

// BuildHSAReconciliation collects the HSA-eligible bills, oldest first, with
// their yearly totals.
func BuildHSAReconciliation(bills []ledger.Bill) (*HSAReconciliation, error) {
	expenses := sortedByDate(bills, ledger.Bill.IsHSAEligible)
	if len(expenses) == 0 {
		return nil, fmt.Errorf("%w: no HSA-eligible bills", ErrNoRecords)
	}

	byYear := make(map[int]float64)
	var years []int
	for _, b := range expenses {
		if _, ok := byYear[b.Year]; !ok {
			years = append(years, b.Year)
		}
		byYear[b.Year] += b.Amount
	}
	slices.Sort(years)

	recon := &HSAReconciliation{Expenses: expenses}
	for _, y := range years {
		recon.Years = append(recon.Years, YearTotal{Year: y, Amount: byYear[y]})
	}
	return recon, nil
}

// Sheets lays the reconciliation out as the HSA Expenses and Yearly Totals sheets
func (r *HSAReconciliation) Sheets() []workbook.Sheet {
	expenses := make([][]any, 0, len(r.Expenses))
	for _, b := range r.Expenses {
		expenses = append(expenses, []any{
			b.Date.Format(ledger.DateLayout),
			b.Provider,
			b.Category,
			b.Amount,
			b.Description,
			b.PDFPath,
		})
	}

	years := make([][]any, 0, len(r.Years))
	for _, y := range r.Years {
		years = append(years, []any{y.Year, y.Amount})
	}

	return []workbook.Sheet{
		{
			Name:   "HSA Expenses",
			Header: []string{"date", "provider", "category", "amount", "description", "pdf_path"},
			Rows:   expenses,
		},
		{
			Name:   "Yearly Totals",
			Header: []string{"Year", "Total HSA-Eligible Amount"},
			Rows:   years,
		},
	}
}

// ExportHSAReconciliation writes the HSA reconciliation to outputPath, or to
// DefaultHSAPath when outputPath is empty, and returns the absolute path.
func ExportHSAReconciliation(bills []ledger.Bill, outputPath string) (string, error) {
	recon, err := BuildHSAReconciliation(bills)
	if err != nil {
		return "", err
	}

	if outputPath == "" {
		outputPath = DefaultHSAPath
	}
	path, err := write(outputPath, recon.Sheets())
	if err != nil {
		return "", fmt.Errorf("exporting HSA reconciliation: %w", err)
	}

	slog.Info("HSA reconciliation saved", "path", path, "bills", len(recon.Expenses))
	return path, nil
}

func write(outputPath string, sheets []workbook.Sheet) (string, error) {
	path, err := paths.Resolve(outputPath)
	if err != nil {
		return "", fmt.Errorf("resolving output path: %w", err)
	}
	if err := workbook.Write(path, sheets...); err != nil {
		return "", err
	}
	return path, nil
}

// Currency formats an amount as dollars rounded to cents, for display only.
// Rounding applies to the binary value, so 10.005 shows as $10.00.
func Currency(amount float64) string {
	return "$" + strconv.FormatFloat(amount, 'f', 2, 64)
}
