// Package document finds bill PDFs on disk and pulls their text out.
package document

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/zombor/hsa-ledger/internal/paths"
)

// Suffix is the file extension of documents we ingest
const Suffix = ".pdf"

var (
	// ErrInvalidDirectory is returned when a scan path is missing or not a directory
	ErrInvalidDirectory = errors.New("invalid directory")

	// ErrFileNotFound is returned when a document path does not exist
	ErrFileNotFound = errors.New("file does not exist")

	// ErrNotPDF is returned when a document path does not name a PDF
	ErrNotPDF = errors.New("file is not a PDF")
)

// ListFiles returns the absolute paths of the PDFs in dir, sorted. With
// recursive set, subdirectories are searched too.
func ListFiles(dir string, recursive bool) ([]string, error) {
	root, err := paths.Resolve(dir)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %s does not exist", ErrInvalidDirectory, dir)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrInvalidDirectory, dir)
	}

	files := make([]string, 0)
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && !recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() && strings.HasSuffix(d.Name(), Suffix) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", dir, err)
	}

	slices.Sort(files)
	return files, nil
}

// ValidatePDF checks that path exists and names a PDF, returning its absolute form
func ValidatePDF(path string) (string, error) {
	resolved, err := paths.Resolve(path)
	if err != nil {
		return "", err
	}

	if _, err := os.Stat(resolved); err != nil {
		return "", fmt.Errorf("%w: %s", ErrFileNotFound, resolved)
	}
	if !strings.EqualFold(filepath.Ext(resolved), Suffix) {
		return "", fmt.Errorf("%w: %s", ErrNotPDF, resolved)
	}
	return resolved, nil
}
