package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/zombor/hsa-ledger/internal/document"
	"github.com/zombor/hsa-ledger/internal/interpret"
	"github.com/zombor/hsa-ledger/internal/ledger"
	"github.com/zombor/hsa-ledger/internal/paths"
	"github.com/zombor/hsa-ledger/internal/tools"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

// errToolFailed marks a tool call whose error text was already printed
var errToolFailed = errors.New("tool call failed")

type config struct {
	ledgerPath  *string
	cachePath   *string
	interpreter *string
	geminiKey   *string
	geminiModel *string
	ollamaURL   *string
	ollamaModel *string
}

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCommand()
	err := root.ParseAndRun(ctx, os.Args[1:], ff.WithEnvVarPrefix("HSA_LEDGER"))
	switch {
	case err == nil:
	case errors.Is(err, ff.ErrHelp), errors.Is(err, ff.ErrNoExec):
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Command(root.GetSelected()))
	case errors.Is(err, errToolFailed):
		os.Exit(1)
	default:
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Command(root.GetSelected()))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *ff.Command {
	fs := ff.NewFlagSet("hsa-ledger")
	cfg := config{
		ledgerPath:  fs.StringLong("ledger", ledger.DefaultPath, "Ledger workbook path"),
		cachePath:   fs.StringLong("cache", "", "Extraction cache database path (disabled when empty)"),
		interpreter: fs.StringLong("interpreter", "gemini", "Bill interpreter for ingest: 'gemini' or 'ollama'"),
		geminiKey:   fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)"),
		geminiModel: fs.StringLong("gemini-model", "gemini-2.5-pro", "Google Gemini model name"),
		ollamaURL:   fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL"),
		ollamaModel: fs.StringLong("ollama-model", "llama3.1", "Ollama model name"),
	}
	fs.BoolLong("version", "Show version information")

	return &ff.Command{
		Name:      "hsa-ledger",
		Usage:     "hsa-ledger [FLAGS] <SUBCOMMAND> ...",
		ShortHelp: "track healthcare bills for HSA reconciliation and taxes",
		Flags:     fs,
		Subcommands: []*ff.Command{
			scanCommand(fs, cfg),
			extractCommand(fs, cfg),
			infoCommand(fs, cfg),
			addCommand(fs, cfg),
			summaryCommand(fs, cfg),
			exportTaxesCommand(fs, cfg),
			exportHSACommand(fs, cfg),
			ingestCommand(fs, cfg),
			serveCommand(fs, cfg),
		},
	}
}

// printResult writes a tool result, returning errToolFailed for error results
func printResult(result tools.Result) error {
	if result.IsError {
		fmt.Fprintln(os.Stderr, result.Text)
		return errToolFailed
	}
	fmt.Println(result.Text)
	return nil
}

// oneArg returns the single positional argument a command expects
func oneArg(args []string, name string) (string, error) {
	if len(args) != 1 {
		return "", fmt.Errorf("expected exactly one %s argument, got %d", name, len(args))
	}
	return args[0], nil
}

// newService builds the service. The returned cleanup releases the cache and
// interpreter.
func newService(cfg config, withInterpreter bool) (*tools.Service, func(), error) {
	var closers []func() error
	cleanup := func() {
		for _, c := range closers {
			if err := c(); err != nil {
				slog.Warn("Failed to close resource", "error", err)
			}
		}
	}

	ledgerPath, err := paths.Resolve(*cfg.ledgerPath)
	if err != nil {
		return nil, cleanup, fmt.Errorf("resolving ledger path: %w", err)
	}

	var extractor document.Extractor = document.NewExtractor()
	if *cfg.cachePath != "" {
		cachePath, err := paths.Resolve(*cfg.cachePath)
		if err != nil {
			return nil, cleanup, fmt.Errorf("resolving cache path: %w", err)
		}
		slog.Info("Opening extraction cache...", "path", cachePath)
		cache, err := document.NewBoltCache(cachePath)
		if err != nil {
			return nil, cleanup, fmt.Errorf("initializing extraction cache: %w", err)
		}
		closers = append(closers, cache.Close)
		extractor = document.NewCachedExtractor(extractor, cache)
	}

	var interpreter interpret.Interpreter
	if withInterpreter {
		interpreter, err = newInterpreter(cfg)
		if err != nil {
			cleanup()
			return nil, func() {}, err
		}
		closers = append(closers, interpreter.Close)
	}

	return tools.NewService(ledgerPath, extractor, interpreter), cleanup, nil
}

func newInterpreter(cfg config) (interpret.Interpreter, error) {
	switch *cfg.interpreter {
	case "gemini":
		apiKey := *cfg.geminiKey
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		if apiKey == "" {
			return nil, errors.New("gemini API key is required: set --gemini-key or GEMINI_API_KEY")
		}
		slog.Info("Initializing Gemini interpreter...", "model", *cfg.geminiModel)
		return interpret.NewGemini(apiKey, *cfg.geminiModel)
	case "ollama":
		slog.Info("Initializing Ollama interpreter...", "url", *cfg.ollamaURL, "model", *cfg.ollamaModel)
		return interpret.NewOllama(*cfg.ollamaURL, *cfg.ollamaModel)
	default:
		return nil, fmt.Errorf("invalid interpreter %q: want gemini or ollama", *cfg.interpreter)
	}
}

func scanCommand(parent *ff.FlagSet, cfg config) *ff.Command {
	fs := ff.NewFlagSet("scan").SetParent(parent)
	shallow := fs.BoolLong("shallow", "Only scan the top-level directory")
	return &ff.Command{
		Name:      "scan",
		Usage:     "hsa-ledger scan [FLAGS] [DIR]",
		ShortHelp: "list PDF files in a directory",
		Flags:     fs,
		Exec: func(ctx context.Context, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}
			service, cleanup, err := newService(cfg, false)
			defer cleanup()
			if err != nil {
				return err
			}
			return printResult(service.ScanPDFs(dir, !*shallow))
		},
	}
}

func extractCommand(parent *ff.FlagSet, cfg config) *ff.Command {
	fs := ff.NewFlagSet("extract").SetParent(parent)
	return &ff.Command{
		Name:      "extract",
		Usage:     "hsa-ledger extract PDF",
		ShortHelp: "print the text of a PDF",
		Flags:     fs,
		Exec: func(ctx context.Context, args []string) error {
			path, err := oneArg(args, "PDF")
			if err != nil {
				return err
			}
			service, cleanup, err := newService(cfg, false)
			defer cleanup()
			if err != nil {
				return err
			}
			return printResult(service.ExtractPDFContent(path))
		},
	}
}

func infoCommand(parent *ff.FlagSet, cfg config) *ff.Command {
	fs := ff.NewFlagSet("info").SetParent(parent)
	return &ff.Command{
		Name:      "info",
		Usage:     "hsa-ledger info PDF",
		ShortHelp: "print file details and document properties of a PDF",
		Flags:     fs,
		Exec: func(ctx context.Context, args []string) error {
			path, err := oneArg(args, "PDF")
			if err != nil {
				return err
			}
			service, cleanup, err := newService(cfg, false)
			defer cleanup()
			if err != nil {
				return err
			}
			return printResult(service.PDFInfo(path))
		},
	}
}

func addCommand(parent *ff.FlagSet, cfg config) *ff.Command {
	fs := ff.NewFlagSet("add").SetParent(parent)
	var (
		provider    = fs.StringLong("provider", "", "Provider or facility name")
		date        = fs.StringLong("date", "", "Bill date in any common format (defaults to now)")
		amount      = fs.StringLong("amount", "0", "Amount in dollars")
		category    = fs.StringLong("category", ledger.DefaultCategory, "Category: medical, dental, vision, prescription, pharmacy, ...")
		description = fs.StringLong("description", "", "Description of the service")
		pdfPath     = fs.StringLong("pdf", "", "Path of the source PDF")
	)
	return &ff.Command{
		Name:      "add",
		Usage:     "hsa-ledger add [FLAGS]",
		ShortHelp: "add a bill to the ledger",
		Flags:     fs,
		Exec: func(ctx context.Context, args []string) error {
			value, err := strconv.ParseFloat(strings.TrimPrefix(strings.TrimSpace(*amount), "$"), 64)
			if err != nil {
				return fmt.Errorf("invalid amount %q: %w", *amount, err)
			}
			service, cleanup, err := newService(cfg, false)
			defer cleanup()
			if err != nil {
				return err
			}
			return printResult(service.AddBill(ledger.Input{
				Provider:    *provider,
				Date:        *date,
				Amount:      value,
				Category:    *category,
				Description: *description,
				PDFPath:     *pdfPath,
			}))
		},
	}
}

func summaryCommand(parent *ff.FlagSet, cfg config) *ff.Command {
	fs := ff.NewFlagSet("summary").SetParent(parent)
	return &ff.Command{
		Name:      "summary",
		Usage:     "hsa-ledger summary",
		ShortHelp: "summarize the ledger",
		Flags:     fs,
		Exec: func(ctx context.Context, args []string) error {
			service, cleanup, err := newService(cfg, false)
			defer cleanup()
			if err != nil {
				return err
			}
			return printResult(service.Summary())
		},
	}
}

func exportTaxesCommand(parent *ff.FlagSet, cfg config) *ff.Command {
	fs := ff.NewFlagSet("export-taxes").SetParent(parent)
	var (
		year   = fs.IntLong("year", 0, "Tax year to export")
		output = fs.StringLong("output", "", "Output path (default tax_export_{year}.xlsx)")
	)
	return &ff.Command{
		Name:      "export-taxes",
		Usage:     "hsa-ledger export-taxes --year YEAR [FLAGS]",
		ShortHelp: "export one year's bills for tax filing",
		Flags:     fs,
		Exec: func(ctx context.Context, args []string) error {
			if *year == 0 {
				return errors.New("--year is required")
			}
			service, cleanup, err := newService(cfg, false)
			defer cleanup()
			if err != nil {
				return err
			}
			return printResult(service.ExportForTaxes(*year, *output))
		},
	}
}

func exportHSACommand(parent *ff.FlagSet, cfg config) *ff.Command {
	fs := ff.NewFlagSet("export-hsa").SetParent(parent)
	output := fs.StringLong("output", "", "Output path (default hsa_reconciliation.xlsx)")
	return &ff.Command{
		Name:      "export-hsa",
		Usage:     "hsa-ledger export-hsa [FLAGS]",
		ShortHelp: "export HSA-eligible bills for reconciliation",
		Flags:     fs,
		Exec: func(ctx context.Context, args []string) error {
			service, cleanup, err := newService(cfg, false)
			defer cleanup()
			if err != nil {
				return err
			}
			return printResult(service.ExportHSAReconciliation(*output))
		},
	}
}

func ingestCommand(parent *ff.FlagSet, cfg config) *ff.Command {
	fs := ff.NewFlagSet("ingest").SetParent(parent)
	shallow := fs.BoolLong("shallow", "Only scan the top level of directory arguments")
	return &ff.Command{
		Name:      "ingest",
		Usage:     "hsa-ledger ingest [FLAGS] PATH...",
		ShortHelp: "extract, interpret and record PDFs or directories of PDFs",
		Flags:     fs,
		Exec: func(ctx context.Context, args []string) error {
			if len(args) == 0 {
				return errors.New("at least one PDF or directory is required")
			}
			service, cleanup, err := newService(cfg, true)
			defer cleanup()
			if err != nil {
				return err
			}

			var failed int
			for _, arg := range args {
				paths := []string{arg}
				if info, err := os.Stat(arg); err == nil && info.IsDir() {
					if paths, err = document.ListFiles(arg, !*shallow); err != nil {
						return err
					}
				}
				for _, path := range paths {
					if ctx.Err() != nil {
						return ctx.Err()
					}
					slog.Info("Ingesting bill", "path", path)
					if err := printResult(service.IngestPDF(ctx, path)); err != nil {
						failed++
					}
				}
			}
			if failed > 0 {
				slog.Error("Some bills could not be ingested", "failed", failed)
				return errToolFailed
			}
			return nil
		},
	}
}

func serveCommand(parent *ff.FlagSet, cfg config) *ff.Command {
	fs := ff.NewFlagSet("serve").SetParent(parent)
	var (
		port        = fs.IntLong("port", 8080, "HTTP server port")
		authUser    = fs.StringLong("auth-user", "", "Basic auth username (optional)")
		authPass    = fs.StringLong("auth-pass", "", "Basic auth password (optional)")
		interpreter = fs.BoolLong("ingest", "Enable the ingest endpoint (requires an interpreter)")
	)
	return &ff.Command{
		Name:      "serve",
		Usage:     "hsa-ledger serve [FLAGS]",
		ShortHelp: "serve the ledger tools over HTTP",
		Flags:     fs,
		Exec: func(ctx context.Context, args []string) error {
			service, cleanup, err := newService(cfg, *interpreter)
			defer cleanup()
			if err != nil {
				return err
			}

			server := tools.NewServer(service, tools.BasicAuth{
				Username: *authUser,
				Password: *authPass,
			})

			addr := fmt.Sprintf(":%d", *port)
			errc := make(chan error, 1)
			go func() {
				errc <- server.Start(addr)
			}()

			slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", addr), "ledger", *cfg.ledgerPath)
			if *authUser != "" || *authPass != "" {
				slog.Info("Basic auth enabled", "user", *authUser)
			}

			select {
			case err := <-errc:
				return fmt.Errorf("server error: %w", err)
			case <-ctx.Done():
				slog.Info("Shutting down...")
				return nil
			}
		},
	}
}
