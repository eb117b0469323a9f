package document

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gen2brain/go-fitz"
	"github.com/ledongthuc/pdf"

	"github.com/zombor/hsa-ledger/internal/paths"
)

// FitzExtractor reads PDF text with MuPDF
type FitzExtractor struct{}

// ExtractText returns the text of every page of the PDF at path
func (FitzExtractor) ExtractText(path string) (string, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return "", fmt.Errorf("opening PDF: %w", err)
	}
	defer doc.Close()

	pages := make([]string, doc.NumPage())
	for i := range pages {
		text, err := doc.Text(i)
		if err != nil {
			return "", fmt.Errorf("reading page %d: %w", i+1, err)
		}
		pages[i] = text
	}
	return joinPages(pages), nil
}

// PlainExtractor reads PDF text with a pure Go parser. It copes with fewer
// layouts than MuPDF but needs no native library.
type PlainExtractor struct{}

// ExtractText returns the plain text of every page of the PDF at path
func (PlainExtractor) ExtractText(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening PDF: %w", err)
	}
	defer f.Close()

	pages := make([]string, r.NumPage())
	for i := range pages {
		page := r.Page(i + 1)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("reading page %d: %w", i+1, err)
		}
		pages[i] = text
	}
	return joinPages(pages), nil
}

// Info describes a PDF file
type Info struct {
	Path         string `json:"file_path"`
	Name         string `json:"file_name"`
	Size         int64  `json:"file_size_bytes"`
	Pages        int    `json:"num_pages,omitempty"`
	Title        string `json:"title,omitempty"`
	Author       string `json:"author,omitempty"`
	Subject      string `json:"subject,omitempty"`
	Creator      string `json:"creator,omitempty"`
	Producer     string `json:"producer,omitempty"`
	CreationDate string `json:"creation_date,omitempty"`

	// Error holds why the document properties could not be read. File details
	// are still filled in.
	Error string `json:"error,omitempty"`
}

// Metadata returns file details and document properties of the PDF at path
func Metadata(path string) (*Info, error) {
	resolved, err := paths.Resolve(path)
	if err != nil {
		return nil, err
	}

	stat, err := os.Stat(resolved)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, resolved)
	}

	info := &Info{
		Path: resolved,
		Name: filepath.Base(resolved),
		Size: stat.Size(),
	}

	doc, err := fitz.New(resolved)
	if err != nil {
		info.Error = fmt.Sprintf("failed to extract metadata: %v", err)
		return info, nil
	}
	defer doc.Close()

	meta := doc.Metadata()
	info.Pages = doc.NumPage()
	info.Title = meta["title"]
	info.Author = meta["author"]
	info.Subject = meta["subject"]
	info.Creator = meta["creator"]
	info.Producer = meta["producer"]
	info.CreationDate = meta["creationDate"]
	return info, nil
}
