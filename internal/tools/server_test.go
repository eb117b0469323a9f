package tools

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"

	"github.com/zombor/hsa-ledger/internal/ledger"
	"github.com/zombor/hsa-ledger/internal/report"
)

var _ = Describe("Server", func() {
	var (
		tmpDir      string
		ledgerPath  string
		service     *Service
		server      *Server
		auth        BasicAuth
		ghttpServer *ghttp.Server
	)

	setupServer := func() {
		if ghttpServer != nil {
			ghttpServer.Close()
		}
		server = NewServerWithMux(service, auth, http.NewServeMux())
		ghttpServer = ghttp.NewServer()
		ghttpServer.AllowUnhandledRequests = true
		ghttpServer.UnhandledRequestStatusCode = http.StatusNotFound
		ghttpServer.RouteToHandler(http.MethodGet, "/api/summary", server.ServeHTTP)
		for _, path := range []string{"/api/scan", "/api/extract", "/api/info", "/api/ingest", "/api/bills", "/api/exports/taxes", "/api/exports/hsa"} {
			ghttpServer.RouteToHandler(http.MethodPost, path, server.ServeHTTP)
		}
	}

	post := func(path string, body any) *http.Response {
		data, err := json.Marshal(body)
		Expect(err).NotTo(HaveOccurred())
		resp, err := http.Post(ghttpServer.URL()+path, "application/json", bytes.NewReader(data))
		Expect(err).NotTo(HaveOccurred())
		return resp
	}

	decodeResult := func(resp *http.Response) Result {
		defer resp.Body.Close()
		var result Result
		Expect(json.NewDecoder(resp.Body).Decode(&result)).To(Succeed())
		return result
	}

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
		ledgerPath = filepath.Join(tmpDir, "bills.xlsx")
		service = NewServiceWithDeps(ledgerPath, &mockExtractor{text: "Amount Due $80.00"}, newMockInterpreter(),
			fixedClockOpener(time.Date(2025, 1, 2, 3, 4, 5, 0, time.Local)))
		auth = BasicAuth{}
		setupServer()
	})

	AfterEach(func() {
		if ghttpServer != nil {
			ghttpServer.Close()
			ghttpServer = nil
		}
	})

	Describe("handleAddBill", func() {
		When("the body is valid", func() {
			It("should return status OK with the result", func() {
				resp := post("/api/bills", map[string]any{
					"provider": "Vision Co",
					"date":     "2024-03-02",
					"amount":   80,
					"category": "vision",
				})
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
				Expect(resp.Header.Get("Content-Type")).To(Equal("application/json"))
				result := decodeResult(resp)
				Expect(result.IsError).To(BeFalse())
				Expect(result.Text).To(ContainSubstring("Vision Co"))
			})
		})

		When("the body is not JSON", func() {
			It("should return status Bad Request", func() {
				resp, err := http.Post(ghttpServer.URL()+"/api/bills", "application/json", strings.NewReader("{"))
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			})
		})

		When("many bills are posted at once", func() {
			It("should keep every bill", func() {
				const n = 20
				var wg sync.WaitGroup
				for i := 0; i < n; i++ {
					wg.Add(1)
					go func(i int) {
						defer GinkgoRecover()
						defer wg.Done()
						resp := post("/api/bills", map[string]any{
							"provider": "Dr. Smith",
							"date":     "2024-01-15",
							"amount":   i + 1,
						})
						defer resp.Body.Close()
						Expect(resp.StatusCode).To(Equal(http.StatusOK))
					}(i)
				}
				wg.Wait()

				bills, err := ledger.ReadBills(ledgerPath)
				Expect(err).NotTo(HaveOccurred())
				Expect(bills).To(HaveLen(n))
			})
		})

		When("the amount is not a number", func() {
			It("should return status Bad Request", func() {
				resp := post("/api/bills", map[string]any{"provider": "x", "amount": "lots"})
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			})
		})
	})

	Describe("handleSummary", func() {
		It("should return the summary", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/summary")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			result := decodeResult(resp)
			Expect(result.Text).To(ContainSubstring("No records found"))
		})
	})

	Describe("handleScan", func() {
		When("the directory does not exist", func() {
			It("should return status Unprocessable Entity", func() {
				resp := post("/api/scan", map[string]any{"directory": filepath.Join(tmpDir, "missing")})
				Expect(resp.StatusCode).To(Equal(http.StatusUnprocessableEntity))
				result := decodeResult(resp)
				Expect(result.IsError).To(BeTrue())
			})
		})

		When("recursion is turned off", func() {
			BeforeEach(func() {
				Expect(os.MkdirAll(filepath.Join(tmpDir, "sub"), 0755)).To(Succeed())
				Expect(os.WriteFile(filepath.Join(tmpDir, "sub", "deep.pdf"), []byte("%PDF"), 0644)).To(Succeed())
			})

			It("should only list the top level", func() {
				resp := post("/api/scan", map[string]any{"directory": tmpDir, "recursive": false})
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
				result := decodeResult(resp)
				Expect(result.Text).To(ContainSubstring(`"found": 0`))
			})
		})
	})

	Describe("handleExtract", func() {
		It("should return the text", func() {
			resp := post("/api/extract", map[string]any{"pdf_path": "/bills/a.pdf"})
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(decodeResult(resp).Text).To(ContainSubstring("Amount Due $80.00"))
		})
	})

	Describe("handleInfo", func() {
		It("should report a missing file", func() {
			resp := post("/api/info", map[string]any{"pdf_path": filepath.Join(tmpDir, "missing.pdf")})
			Expect(resp.StatusCode).To(Equal(http.StatusUnprocessableEntity))
			Expect(decodeResult(resp).Text).To(ContainSubstring("file does not exist"))
		})
	})

	Describe("handleIngest", func() {
		It("should add the interpreted bill", func() {
			resp := post("/api/ingest", map[string]any{"pdf_path": "/bills/a.pdf"})
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(decodeResult(resp).Text).To(ContainSubstring("Dr. Smith"))
			Expect(ledgerPath).To(BeAnExistingFile())
		})
	})

	Describe("handleExportTaxes", func() {
		When("the year has no bills", func() {
			It("should return status Unprocessable Entity", func() {
				resp := post("/api/exports/taxes", map[string]any{"year": 2099, "output_path": filepath.Join(tmpDir, "t.xlsx")})
				Expect(resp.StatusCode).To(Equal(http.StatusUnprocessableEntity))
				Expect(decodeResult(resp).Text).To(ContainSubstring(report.ErrNoRecords.Error()))
			})
		})

		When("no year is given", func() {
			It("should return status Bad Request", func() {
				resp := post("/api/exports/taxes", map[string]any{})
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			})
		})

		When("the year has bills", func() {
			It("should write the export", func() {
				post("/api/bills", map[string]any{"provider": "Dr. Smith", "date": "2024-01-15", "amount": 120}).Body.Close()
				output := filepath.Join(tmpDir, "t.xlsx")
				resp := post("/api/exports/taxes", map[string]any{"year": 2024, "output_path": output})
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
				resp.Body.Close()
				Expect(output).To(BeAnExistingFile())
			})
		})
	})

	Describe("handleExportHSA", func() {
		It("should write the export", func() {
			post("/api/bills", map[string]any{"provider": "Dr. Smith", "date": "2024-01-15", "amount": 120}).Body.Close()
			output := filepath.Join(tmpDir, "hsa.xlsx")
			resp := post("/api/exports/hsa", map[string]any{"output_path": output})
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			resp.Body.Close()
			Expect(output).To(BeAnExistingFile())
		})
	})

	Describe("basic auth", func() {
		BeforeEach(func() {
			auth = BasicAuth{Username: "user", Password: "pass"}
			setupServer()
		})

		When("no credentials are sent", func() {
			It("should return status Unauthorized", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/summary")
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
				Expect(resp.Header.Get("WWW-Authenticate")).To(ContainSubstring("HSA Ledger"))
			})
		})

		When("valid credentials are sent", func() {
			It("should return status OK", func() {
				req, err := http.NewRequest(http.MethodGet, ghttpServer.URL()+"/api/summary", nil)
				Expect(err).NotTo(HaveOccurred())
				req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte("user:pass")))
				resp, err := http.DefaultClient.Do(req)
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
			})
		})

		When("the username is wrong", func() {
			It("should return status Unauthorized", func() {
				req, err := http.NewRequest(http.MethodGet, ghttpServer.URL()+"/api/summary", nil)
				Expect(err).NotTo(HaveOccurred())
				req.SetBasicAuth("admin", "pass")
				resp, err := http.DefaultClient.Do(req)
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
			})
		})

		When("the authorization header is not basic", func() {
			It("should return status Unauthorized", func() {
				req, err := http.NewRequest(http.MethodGet, ghttpServer.URL()+"/api/summary", nil)
				Expect(err).NotTo(HaveOccurred())
				req.Header.Set("Authorization", "Bearer user:pass")
				resp, err := http.DefaultClient.Do(req)
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
			})
		})

		When("wrong credentials are sent", func() {
			It("should return status Unauthorized", func() {
				req, err := http.NewRequest(http.MethodGet, ghttpServer.URL()+"/api/summary", nil)
				Expect(err).NotTo(HaveOccurred())
				req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte("user:nope")))
				resp, err := http.DefaultClient.Do(req)
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				body, _ := io.ReadAll(resp.Body)
				Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
				Expect(string(body)).To(ContainSubstring("Unauthorized"))
			})
		})
	})

	Describe("corsMiddleware", func() {
		It("should answer preflight requests", func() {
			handler := server.corsMiddleware(server)
			testServer := ghttp.NewServer()
			defer testServer.Close()
			testServer.AppendHandlers(handler.ServeHTTP)

			req, err := http.NewRequest(http.MethodOptions, testServer.URL()+"/api/bills", nil)
			Expect(err).NotTo(HaveOccurred())
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
			Expect(resp.Header.Get("Access-Control-Allow-Origin")).To(Equal("*"))
		})
	})
})
