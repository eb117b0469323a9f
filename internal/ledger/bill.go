package ledger

import (
	"slices"
	"strings"
	"time"
)

// DateLayout is how dates and timestamps are written to the ledger file.
// The ledger keeps times to one-second precision.
const DateLayout = "2006-01-02 15:04:05"

// DefaultCategory is used when a bill arrives without a category
const DefaultCategory = "medical"

// HSAEligible lists the categories that count toward HSA reconciliation.
// Bills in any other category are tracked but left out of HSA exports.
var HSAEligible = []string{"medical", "dental", "vision", "prescription", "pharmacy"}

// Bill is one entry in the ledger
type Bill struct {
	Date        time.Time `json:"date"`
	Provider    string    `json:"provider"`
	Amount      float64   `json:"amount"`
	Category    string    `json:"category"`
	Description string    `json:"description"`
	PDFPath     string    `json:"pdf_path"`
	Year        int       `json:"year"`
	Month       int       `json:"month"`
	AddedOn     time.Time `json:"added_on"`

	// DateSubstituted marks a bill whose date could not be parsed and was
	// replaced with the time it was added. It is not persisted.
	DateSubstituted bool `json:"date_substituted,omitempty"`
}

// Input holds caller-supplied fields for a new bill. Zero values take the
// ledger defaults.
type Input struct {
	Provider    string  `json:"provider"`
	Date        string  `json:"date"`
	Amount      float64 `json:"amount"`
	Category    string  `json:"category"`
	Description string  `json:"description"`
	PDFPath     string  `json:"pdf_path"`
}

// IsHSAEligible reports whether the bill's category counts toward HSA reconciliation
func (b Bill) IsHSAEligible() bool {
	return slices.Contains(HSAEligible, b.Category)
}

// setDate assigns the date and the year/month derived from it
func (b *Bill) setDate(date time.Time) {
	b.Date = date
	b.Year = date.Year()
	b.Month = int(date.Month())
}

// normalizeCategory trims and lower-cases a category, falling back to DefaultCategory
func normalizeCategory(category string) string {
	category = strings.ToLower(strings.TrimSpace(category))
	if category == "" {
		return DefaultCategory
	}
	return category
}
