package document

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoText is returned when a PDF yields no text, usually because it is
// image-based or encrypted.
var ErrNoText = errors.New("no text could be extracted from the PDF; it might be image-based or encrypted")

// Extractor pulls the text out of a PDF
type Extractor interface {
	ExtractText(path string) (string, error)
}

// ExtractionError reports that both the primary and fallback extractors failed
type ExtractionError struct {
	Primary  error
	Fallback error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("failed to extract text using both methods: primary: %v, fallback: %v", e.Primary, e.Fallback)
}

func (e *ExtractionError) Unwrap() []error {
	return []error{e.Primary, e.Fallback}
}

// FallbackExtractor validates the path, then tries Primary and, if that fails
// or finds no text, Fallback.
type FallbackExtractor struct {
	Primary  Extractor
	Fallback Extractor
}

// NewExtractor returns the default extractor: MuPDF first, then a pure Go reader
func NewExtractor() *FallbackExtractor {
	return &FallbackExtractor{
		Primary:  &FitzExtractor{},
		Fallback: &PlainExtractor{},
	}
}

// ExtractText returns the trimmed text of the PDF at path
func (f *FallbackExtractor) ExtractText(path string) (string, error) {
	resolved, err := ValidatePDF(path)
	if err != nil {
		return "", err
	}

	text, primaryErr := f.Primary.ExtractText(resolved)
	if primaryErr != nil || strings.TrimSpace(text) == "" {
		fallbackText, fallbackErr := f.Fallback.ExtractText(resolved)
		switch {
		case fallbackErr == nil:
			text = fallbackText
		case primaryErr != nil:
			return "", &ExtractionError{Primary: primaryErr, Fallback: fallbackErr}
		}
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrNoText
	}
	return text, nil
}

// joinPages concatenates page texts with page markers, skipping blank pages.
// Pages are numbered from one.
func joinPages(pages []string) string {
	var b strings.Builder
	for i, page := range pages {
		if strings.TrimSpace(page) == "" {
			continue
		}
		fmt.Fprintf(&b, "\n--- Page %d ---\n", i+1)
		b.WriteString(page)
		b.WriteString("\n")
	}
	return b.String()
}
