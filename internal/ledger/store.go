// Package ledger keeps the bill ledger: an in-memory table of bills that is
// loaded from, and saved to, a single workbook file.
package ledger

import (
	"cmp"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/zombor/hsa-ledger/internal/workbook"
)

// DefaultPath is the ledger file used when none is configured
const DefaultPath = "healthcare_bills.xlsx"

// Sheet names in the ledger file
const (
	BillsSheet      = "Bills"
	ByYearSheet     = "By Year"
	ByCategorySheet = "By Category"
	ByProviderSheet = "By Provider"
)

// Columns is the canonical column set of the Bills sheet, in order
var Columns = []string{
	"date",
	"provider",
	"amount",
	"category",
	"description",
	"pdf_path",
	"year",
	"month",
	"added_on",
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Store owns the in-memory ledger for one session
type Store struct {
	path       string
	bills      []Bill
	timeSource TimeSource
}

// Open loads the ledger at path. A missing file gives an empty ledger; an
// unreadable one is logged and also gives an empty ledger.
func Open(path string) *Store {
	return NewStoreWithClock(path, &defaultTimeSource{})
}

// NewStoreWithClock opens the ledger at path using a custom time source
func NewStoreWithClock(path string, timeSource TimeSource) *Store {
	s := &Store{
		path:       path,
		timeSource: timeSource,
	}
	s.bills = s.load()
	return s
}

// Path returns the ledger file path
func (s *Store) Path() string {
	return s.path
}

// Len returns the number of bills in the ledger
func (s *Store) Len() int {
	return len(s.bills)
}

// Bills returns a copy of the ledger
func (s *Store) Bills() []Bill {
	return slices.Clone(s.bills)
}

func (s *Store) load() []Bill {
	if _, err := os.Stat(s.path); errors.Is(err, os.ErrNotExist) {
		return []Bill{}
	}

	bills, err := ReadBills(s.path)
	if err != nil {
		slog.Warn("Could not load existing ledger, starting empty", "path", s.path, "error", err)
		return []Bill{}
	}
	return bills
}

// Add appends a bill built from in. It never rejects input: an unparseable
// date is replaced with the current time. Nothing is written to disk.
func (s *Store) Add(in Input) Bill {
	now := s.timeSource.Now().Truncate(time.Second)

	bill := Bill{
		Provider:    in.Provider,
		Amount:      in.Amount,
		Category:    normalizeCategory(in.Category),
		Description: in.Description,
		PDFPath:     in.PDFPath,
		AddedOn:     now,
	}

	date, err := parseDate(in.Date)
	if err != nil {
		slog.Warn("Unparseable bill date, using current time",
			"date", in.Date,
			"provider", in.Provider,
			"error", err,
		)
		date = now
		bill.DateSubstituted = true
	}
	bill.setDate(date)

	s.bills = append(s.bills, bill)
	return bill
}

// dateLayouts are tried when dateparse gives up. Dashed dates read month
// first, dotted dates read day first.
var dateLayouts = []string{
	"01-02-2006",
	"02-01-2006",
	"02.01.2006",
	"01.02.2006",
	"2006.01.02",
	"02/01/2006",
}

// parseDate reads a free-form date in the local time zone. Ambiguous
// day/month orders are retried with the fields swapped.
func parseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, errors.New("empty date")
	}

	t, err := dateparse.ParseIn(value, time.Local, dateparse.RetryAmbiguousDateWithSwap(true))
	if err == nil {
		return t, nil
	}
	for _, layout := range dateLayouts {
		if t, layoutErr := time.ParseInLocation(layout, value, time.Local); layoutErr == nil {
			return t, nil
		}
	}
	return time.Time{}, err
}

// Save sorts the ledger newest first and overwrites the ledger file with the
// Bills sheet and its By Year, By Category and By Provider summaries. Saving an
// empty ledger does nothing.
func (s *Store) Save() error {
	if len(s.bills) == 0 {
		slog.Warn("No data to save", "path", s.path)
		return nil
	}

	slices.SortStableFunc(s.bills, func(a, b Bill) int {
		return b.Date.Compare(a.Date)
	})

	sheets := []workbook.Sheet{billsSheet(s.bills)}
	sheets = append(sheets, groupSheets(s.bills)...)

	if err := workbook.Write(s.path, sheets...); err != nil {
		return fmt.Errorf("saving ledger: %w", err)
	}

	slog.Info("Saved ledger", "path", s.path, "bills", len(s.bills))
	return nil
}

func billsSheet(bills []Bill) workbook.Sheet {
	rows := make([][]any, 0, len(bills))
	for _, b := range bills {
		rows = append(rows, []any{
			b.Date.Format(DateLayout),
			b.Provider,
			b.Amount,
			b.Category,
			b.Description,
			b.PDFPath,
			b.Year,
			b.Month,
			b.AddedOn.Format(DateLayout),
		})
	}
	return workbook.Sheet{
		Name:   BillsSheet,
		Header: Columns,
		Rows:   rows,
		Styled: true,
	}
}

type group struct {
	amount float64
	count  int
}

func groupBy[K cmp.Ordered](bills []Bill, key func(Bill) K) ([]K, map[K]*group) {
	groups := make(map[K]*group)
	var keys []K
	for _, b := range bills {
		k := key(b)
		g, ok := groups[k]
		if !ok {
			g = &group{}
			groups[k] = g
			keys = append(keys, k)
		}
		g.amount += b.Amount
		g.count++
	}
	slices.Sort(keys)
	return keys, groups
}

func groupRows[K cmp.Ordered](keys []K, groups map[K]*group) [][]any {
	rows := make([][]any, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, []any{k, groups[k].amount, groups[k].count})
	}
	return rows
}

// groupSheets builds the auxiliary summary sheets. Years and categories are
// listed in key order, providers by amount descending.
func groupSheets(bills []Bill) []workbook.Sheet {
	years, byYear := groupBy(bills, func(b Bill) int { return b.Year })
	categories, byCategory := groupBy(bills, func(b Bill) string { return b.Category })
	providers, byProvider := groupBy(bills, func(b Bill) string { return b.Provider })

	slices.SortStableFunc(providers, func(a, b string) int {
		return cmp.Compare(byProvider[b].amount, byProvider[a].amount)
	})

	return []workbook.Sheet{
		{
			Name:   ByYearSheet,
			Header: []string{"year", "amount", "num_bills"},
			Rows:   groupRows(years, byYear),
		},
		{
			Name:   ByCategorySheet,
			Header: []string{"category", "amount", "num_bills"},
			Rows:   groupRows(categories, byCategory),
		},
		{
			Name:   ByProviderSheet,
			Header: []string{"provider", "amount", "num_bills"},
			Rows:   groupRows(providers, byProvider),
		},
	}
}

// ReadBills reads the Bills sheet of the ledger file at path. Unlike Open it
// returns any read or parse failure. Year and month are recomputed from the
// date column.
func ReadBills(path string) ([]Bill, error) {
	rows, err := workbook.ReadSheet(path, BillsSheet)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet %q has no header", BillsSheet)
	}

	index := make(map[string]int, len(rows[0]))
	for i, name := range rows[0] {
		index[strings.TrimSpace(name)] = i
	}
	for _, col := range Columns {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("sheet %q is missing column %q", BillsSheet, col)
		}
	}

	bills := make([]Bill, 0, len(rows)-1)
	for i, row := range rows[1:] {
		cell := func(col string) string {
			if idx := index[col]; idx < len(row) {
				return row[idx]
			}
			return ""
		}

		bill, err := parseRow(cell)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		bills = append(bills, bill)
	}
	return bills, nil
}

func parseRow(cell func(string) string) (Bill, error) {
	date, err := time.ParseInLocation(DateLayout, strings.TrimSpace(cell("date")), time.Local)
	if err != nil {
		return Bill{}, fmt.Errorf("parsing date: %w", err)
	}

	var amount float64
	if raw := strings.TrimSpace(cell("amount")); raw != "" {
		amount, err = strconv.ParseFloat(raw, 64)
		if err != nil {
			return Bill{}, fmt.Errorf("parsing amount: %w", err)
		}
	}

	var addedOn time.Time
	if raw := strings.TrimSpace(cell("added_on")); raw != "" {
		addedOn, err = time.ParseInLocation(DateLayout, raw, time.Local)
		if err != nil {
			return Bill{}, fmt.Errorf("parsing added_on: %w", err)
		}
	}

	bill := Bill{
		Provider:    cell("provider"),
		Amount:      amount,
		Category:    cell("category"),
		Description: cell("description"),
		PDFPath:     cell("pdf_path"),
		AddedOn:     addedOn,
	}
	bill.setDate(date)
	return bill, nil
}
