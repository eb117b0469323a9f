package tools

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/zombor/hsa-ledger/internal/ledger"
)

// corsError writes an error response with CORS headers set
func corsError(w http.ResponseWriter, message string, code int) {
	setCORSHeaders(w)
	http.Error(w, message, code)
}

// setCORSHeaders sets CORS headers on a response
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

// writeResult encodes a tool result. Tool errors are reported as 422 so callers
// can tell them from malformed requests.
func writeResult(w http.ResponseWriter, result Result) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	if result.IsError {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}
	if err := json.NewEncoder(w).Encode(result); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// decodeBody reads a JSON request body into v, answering 400 on failure
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		slog.Error("Error decoding request body", "path", r.URL.Path, "error", err)
		corsError(w, "Invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

type pathRequest struct {
	PDFPath string `json:"pdf_path"`
}

// handleScan lists the PDFs in a directory
func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	req := struct {
		Directory string `json:"directory"`
		Recursive *bool  `json:"recursive"`
	}{}
	if !decodeBody(w, r, &req) {
		return
	}

	recursive := true
	if req.Recursive != nil {
		recursive = *req.Recursive
	}
	writeResult(w, s.service.ScanPDFs(req.Directory, recursive))
}

// handleExtract returns the text of a PDF
func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	var req pathRequest
	if !decodeBody(w, r, &req) {
		return
	}
	writeResult(w, s.service.ExtractPDFContent(req.PDFPath))
}

// handleInfo returns the metadata of a PDF
func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	var req pathRequest
	if !decodeBody(w, r, &req) {
		return
	}
	writeResult(w, s.service.PDFInfo(req.PDFPath))
}

// handleIngest extracts, interprets and records a PDF
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req pathRequest
	if !decodeBody(w, r, &req) {
		return
	}
	writeResult(w, s.service.IngestPDF(r.Context(), req.PDFPath))
}

// handleAddBill adds a bill to the ledger
func (s *Server) handleAddBill(w http.ResponseWriter, r *http.Request) {
	var in ledger.Input
	if !decodeBody(w, r, &in) {
		return
	}
	writeResult(w, s.service.AddBill(in))
}

// handleSummary summarizes the ledger
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	writeResult(w, s.service.Summary())
}

// handleExportTaxes writes the tax export for a year
func (s *Server) handleExportTaxes(w http.ResponseWriter, r *http.Request) {
	req := struct {
		Year       int    `json:"year"`
		OutputPath string `json:"output_path"`
	}{}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Year == 0 {
		corsError(w, "year is required", http.StatusBadRequest)
		return
	}
	writeResult(w, s.service.ExportForTaxes(req.Year, req.OutputPath))
}

// handleExportHSA writes the HSA reconciliation
func (s *Server) handleExportHSA(w http.ResponseWriter, r *http.Request) {
	req := struct {
		OutputPath string `json:"output_path"`
	}{}
	if r.ContentLength != 0 && !decodeBody(w, r, &req) {
		return
	}
	writeResult(w, s.service.ExportHSAReconciliation(req.OutputPath))
}
