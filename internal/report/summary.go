// Package report computes aggregate views over the bill ledger and writes the
// tax and HSA export workbooks.
package report

import (
	"slices"

	"github.com/shopspring/decimal"

	"github.com/zombor/hsa-ledger/internal/ledger"
)

// Summary describes the whole ledger
type Summary struct {
	TotalRecords int                `json:"total_records"`
	TotalAmount  float64            `json:"total_amount"`
	Message      string             `json:"message,omitempty"`
	DateRange    *DateRange         `json:"date_range,omitempty"`
	ByCategory   map[string]float64 `json:"by_category,omitempty"`
	ByYear       map[int]float64    `json:"by_year,omitempty"`
	ByProvider   map[string]float64 `json:"by_provider,omitempty"`
}

// DateRange holds the earliest and latest bill dates as text
type DateRange struct {
	Earliest string `json:"earliest"`
	Latest   string `json:"latest"`
}

// Summarize totals the bills overall and grouped by category, year and provider
func Summarize(bills []ledger.Bill) Summary {
	if len(bills) == 0 {
		return Summary{
			TotalRecords: 0,
			TotalAmount:  0,
			Message:      "No records found",
		}
	}

	summary := Summary{
		TotalRecords: len(bills),
		ByCategory:   make(map[string]float64),
		ByYear:       make(map[int]float64),
		ByProvider:   make(map[string]float64),
	}

	summary.TotalAmount = total(bills)

	earliest, latest := bills[0].Date, bills[0].Date
	for _, b := range bills {
		summary.ByCategory[b.Category] += b.Amount
		summary.ByYear[b.Year] += b.Amount
		summary.ByProvider[b.Provider] += b.Amount

		if b.Date.Before(earliest) {
			earliest = b.Date
		}
		if b.Date.After(latest) {
			latest = b.Date
		}
	}

	summary.DateRange = &DateRange{
		Earliest: earliest.Format(ledger.DateLayout),
		Latest:   latest.Format(ledger.DateLayout),
	}
	return summary
}

// sortedByDate returns the bills that pass keep, oldest first
func sortedByDate(bills []ledger.Bill, keep func(ledger.Bill) bool) []ledger.Bill {
	var out []ledger.Bill
	for _, b := range bills {
		if keep(b) {
			out = append(out, b)
		}
	}
	slices.SortStableFunc(out, func(a, b ledger.Bill) int {
		return a.Date.Compare(b.Date)
	})
	return out
}

// total sums the amounts in decimal so entered cents add up exactly
func total(bills []ledger.Bill) float64 {
	sum := decimal.Zero
	for _, b := range bills {
		sum = sum.Add(decimal.NewFromFloat(b.Amount))
	}
	return sum.InexactFloat64()
}
