package workbook

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestWorkbook(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Workbook Suite")
}

var _ = Describe("Write", func() {
	var (
		path   string
		sheets []Sheet
		err    error
	)

	BeforeEach(func() {
		path = filepath.Join(GinkgoT().TempDir(), "book.xlsx")
		sheets = []Sheet{
			{
				Name:   "Bills",
				Header: []string{"provider", "amount"},
				Rows: [][]any{
					{"Dr. Smith", 120.5},
					{"Vision Co", 80},
				},
				Styled: true,
			},
			{
				Name:   "By Year",
				Header: []string{"year", "amount"},
				Rows:   [][]any{{2024, 200.5}},
			},
		}
	})

	JustBeforeEach(func() {
		err = Write(path, sheets...)
	})

	When("writing succeeds", func() {
		It("should not return an error", func() {
			Expect(err).NotTo(HaveOccurred())
		})

		It("should create the file", func() {
			Expect(path).To(BeAnExistingFile())
		})

		It("should keep the sheet order", func() {
			names, nameErr := SheetNames(path)
			Expect(nameErr).NotTo(HaveOccurred())
			Expect(names).To(Equal([]string{"Bills", "By Year"}))
		})

		It("should round-trip cell values", func() {
			rows, readErr := ReadSheet(path, "Bills")
			Expect(readErr).NotTo(HaveOccurred())
			Expect(rows).To(Equal([][]string{
				{"provider", "amount"},
				{"Dr. Smith", "120.5"},
				{"Vision Co", "80"},
			}))
		})
	})

	When("no sheets are given", func() {
		BeforeEach(func() {
			sheets = nil
		})

		It("returns the error", func() {
			Expect(err).To(HaveOccurred())
		})

		It("should not create the file", func() {
			_, statErr := os.Stat(path)
			Expect(os.IsNotExist(statErr)).To(BeTrue())
		})
	})

	When("the directory does not exist", func() {
		BeforeEach(func() {
			path = filepath.Join(GinkgoT().TempDir(), "missing", "book.xlsx")
		})

		It("returns the error", func() {
			Expect(err).To(MatchError(ContainSubstring("saving workbook")))
		})
	})
})

var _ = Describe("ReadSheet", func() {
	var path string

	BeforeEach(func() {
		path = filepath.Join(GinkgoT().TempDir(), "book.xlsx")
		Expect(Write(path, Sheet{Name: "Bills", Header: []string{"a"}})).To(Succeed())
	})

	When("the sheet does not exist", func() {
		It("returns ErrSheetNotFound", func() {
			_, err := ReadSheet(path, "Nope")
			Expect(errors.Is(err, ErrSheetNotFound)).To(BeTrue())
		})
	})

	When("the file is not a workbook", func() {
		BeforeEach(func() {
			Expect(os.WriteFile(path, []byte("not a workbook"), 0644)).To(Succeed())
		})

		It("returns the error", func() {
			_, err := ReadSheet(path, "Bills")
			Expect(err).To(MatchError(ContainSubstring("opening workbook")))
		})
	})
})

var _ = Describe("ColumnWidths", func() {
	It("should size to the longest value plus two", func() {
		widths := ColumnWidths(Sheet{
			Header: []string{"id", "provider"},
			Rows:   [][]any{{1, "Dr. Smith"}, {12345, "X"}},
		})
		Expect(widths).To(Equal([]float64{7, 11}))
	})

	It("should cap the width", func() {
		long := make([]byte, 200)
		for i := range long {
			long[i] = 'x'
		}
		widths := ColumnWidths(Sheet{
			Header: []string{"description"},
			Rows:   [][]any{{string(long)}},
		})
		Expect(widths).To(Equal([]float64{50}))
	})
})
