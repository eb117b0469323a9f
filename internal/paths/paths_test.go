package paths

import (
	"os"
	"path/filepath"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestPaths(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Paths Suite")
}

var _ = Describe("Resolve", func() {
	var home string

	BeforeEach(func() {
		home = GinkgoT().TempDir()
		DeferCleanup(os.Setenv, "HOME", os.Getenv("HOME"))
		Expect(os.Setenv("HOME", home)).To(Succeed())
	})

	When("the path starts with ~/", func() {
		It("should expand it to the home directory", func() {
			Expect(Resolve("~/bills/hsa.xlsx")).To(Equal(filepath.Join(home, "bills", "hsa.xlsx")))
		})
	})

	When("the path is ~", func() {
		It("should return the home directory", func() {
			Expect(Resolve("~")).To(Equal(home))
		})
	})

	When("the path names another user's home", func() {
		It("should leave the ~ alone", func() {
			wd, err := os.Getwd()
			Expect(err).NotTo(HaveOccurred())
			Expect(Resolve("~bob/x.xlsx")).To(Equal(filepath.Join(wd, "~bob", "x.xlsx")))
		})
	})

	When("the path is relative", func() {
		It("should make it absolute", func() {
			wd, err := os.Getwd()
			Expect(err).NotTo(HaveOccurred())
			Expect(Resolve("hsa.xlsx")).To(Equal(filepath.Join(wd, "hsa.xlsx")))
		})
	})
})
