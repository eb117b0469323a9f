// Package tools exposes the ledger operations as tool-style calls that always
// return a Result instead of failing, for use by an agent or the HTTP API.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/zombor/hsa-ledger/internal/document"
	"github.com/zombor/hsa-ledger/internal/interpret"
	"github.com/zombor/hsa-ledger/internal/ledger"
	"github.com/zombor/hsa-ledger/internal/report"
)

// ErrNoInterpreter is returned by IngestPDF when no interpreter is configured
var ErrNoInterpreter = errors.New("no interpreter configured")

// Result is the outcome of one tool call
type Result struct {
	Text    string `json:"text"`
	IsError bool   `json:"is_error,omitempty"`
}

func success(text string) Result {
	return Result{Text: text}
}

func failure(prefix string, err error) Result {
	slog.Error(prefix, "error", err)
	return Result{Text: fmt.Sprintf("%s: %v", prefix, err), IsError: true}
}

// StoreOpener opens the ledger for one call
type StoreOpener func(path string) *ledger.Store

// Service runs tool calls against one ledger file. Calls that read or write
// the ledger are serialized, so one Service may be shared by concurrent
// requests.
type Service struct {
	mu sync.Mutex

	ledgerPath  string
	extractor   document.Extractor
	interpreter interpret.Interpreter
	openStore   StoreOpener
}

// NewService creates a new Service. interpreter may be nil, which disables IngestPDF.
func NewService(ledgerPath string, extractor document.Extractor, interpreter interpret.Interpreter) *Service {
	return NewServiceWithDeps(ledgerPath, extractor, interpreter, ledger.Open)
}

// NewServiceWithDeps creates a new Service with a custom store opener for testing
func NewServiceWithDeps(ledgerPath string, extractor document.Extractor, interpreter interpret.Interpreter, openStore StoreOpener) *Service {
	return &Service{
		ledgerPath:  ledgerPath,
		extractor:   extractor,
		interpreter: interpreter,
		openStore:   openStore,
	}
}

func prettyJSON(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

// ScanPDFs lists the PDFs in a directory
func (s *Service) ScanPDFs(directory string, recursive bool) Result {
	if directory == "" {
		directory = "."
	}

	files, err := document.ListFiles(directory, recursive)
	if err != nil {
		return failure("Error scanning directory", err)
	}

	return success(prettyJSON(map[string]any{
		"found": len(files),
		"files": files,
	}))
}

// ExtractPDFContent returns the text of a PDF
func (s *Service) ExtractPDFContent(path string) Result {
	if path == "" {
		return failure("Error", errors.New("pdf_path is required"))
	}

	text, err := s.extractor.ExtractText(path)
	if err != nil {
		return failure("Error extracting PDF content", err)
	}
	return success(fmt.Sprintf("Extracted content from %s:\n\n%s", path, text))
}

// PDFInfo returns file details and document properties of a PDF
func (s *Service) PDFInfo(path string) Result {
	if path == "" {
		return failure("Error", errors.New("pdf_path is required"))
	}

	info, err := document.Metadata(path)
	if err != nil {
		return failure("Error reading PDF metadata", err)
	}
	return success(prettyJSON(info))
}

// AddBill adds a bill to the ledger and saves it
func (s *Service) AddBill(in ledger.Input) Result {
	bill, err := s.addBill(in)
	if err != nil {
		return failure("Error adding record to spreadsheet", err)
	}
	return success("Successfully added bill record:\n" + prettyJSON(bill))
}

func (s *Service) addBill(in ledger.Input) (ledger.Bill, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	store := s.openStore(s.ledgerPath)
	bill := store.Add(in)
	if err := store.Save(); err != nil {
		return ledger.Bill{}, err
	}
	return bill, nil
}

// bills loads a snapshot of the ledger
func (s *Service) bills() []ledger.Bill {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.openStore(s.ledgerPath).Bills()
}

// Summary summarizes every bill in the ledger
func (s *Service) Summary() Result {
	summary := report.Summarize(s.bills())
	return success("Healthcare Bills Summary:\n" + prettyJSON(summary))
}

// ExportForTaxes writes the tax export for year. An empty outputPath uses the default.
func (s *Service) ExportForTaxes(year int, outputPath string) Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	store := s.openStore(s.ledgerPath)
	path, err := report.ExportForTaxes(store.Bills(), year, outputPath)
	if err != nil {
		return failure("Error exporting tax records", err)
	}
	return success(fmt.Sprintf("Successfully exported tax records for %d to %s", year, path))
}

// ExportHSAReconciliation writes the HSA reconciliation. An empty outputPath uses the default.
func (s *Service) ExportHSAReconciliation(outputPath string) Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	store := s.openStore(s.ledgerPath)
	path, err := report.ExportHSAReconciliation(store.Bills(), outputPath)
	if err != nil {
		return failure("Error exporting HSA reconciliation", err)
	}
	return success(fmt.Sprintf("Successfully exported HSA reconciliation to %s", path))
}

// IngestPDF extracts a PDF, interprets its text into bill fields and adds the bill
func (s *Service) IngestPDF(ctx context.Context, path string) Result {
	if s.interpreter == nil {
		return failure("Error ingesting PDF", ErrNoInterpreter)
	}

	text, err := s.extractor.ExtractText(path)
	if err != nil {
		return failure("Error extracting PDF content", err)
	}

	fields, err := s.interpreter.Interpret(ctx, text)
	if err != nil {
		slog.Error("Failed to interpret bill",
			"path", path,
			"text_length", len(text),
			"error", err,
		)
		return failure("Error interpreting PDF content", err)
	}

	bill, err := s.addBill(ledger.Input{
		Provider:    fields.Provider,
		Date:        fields.Date,
		Amount:      fields.Amount,
		Category:    fields.Category,
		Description: fields.Description,
		PDFPath:     path,
	})
	if err != nil {
		return failure("Error adding record to spreadsheet", err)
	}
	return success("Successfully added bill record:\n" + prettyJSON(bill))
}
