package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/MeKo-Tech/lipi/internal/pdf"
	"github.com/MeKo-Tech/lipi/internal/pipeline"
	"github.com/spf13/cobra"
)

// pdfCmd represents the pdf command.
var pdfCmd = &cobra.Command{
	Use:   "pdf [files...]",
	Short: "Transcribe scanned PDF documents",
	Long: `Transcribe the page images embedded in scanned PDF files.

Each page's images are transcribed in order and the pages are joined with a
blank line.

Examples:
  lipi pdf notebook.pdf
  lipi pdf notebook.pdf --pages 1-3,5 --language nepali
  lipi pdf locked.pdf --password secret --format json`,
	Args: cobra.MinimumNArgs(1),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return bindFlags(cmd, outputFlagBindings)
	},
	RunE: runPDF,
}

func runPDF(cmd *cobra.Command, args []string) error {
	cfg, err := GetConfig()
	if err != nil {
		return err
	}
	if cfg.Output.Format == pipeline.FormatCSV {
		return errors.New("csv output is not available for PDFs, use text, json or yaml")
	}
	lang, err := languageFlag(cmd, cfg)
	if err != nil {
		return err
	}
	pages, _ := cmd.Flags().GetString("pages")
	if err := validatePageRange(pages); err != nil {
		return err
	}
	var creds *pdf.Credentials
	if pw, _ := cmd.Flags().GetString("password"); pw != "" {
		creds = &pdf.Credentials{UserPassword: pw, OwnerPassword: pw}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var progress pipeline.ProgressCallback
	if show, _ := cmd.Flags().GetBool("progress"); show {
		progress = pipeline.NewConsoleProgressCallback(cmd.ErrOrStderr(), "Recognizing")
	}
	svc, err := newServices(ctx, cfg, progress)
	if err != nil {
		return err
	}
	defer svc.close()

	results := make([]*pipeline.PDFResult, 0, len(args))
	for _, path := range args {
		res, err := svc.pipeline.RunPDF(ctx, path, pages, lang, creds)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		slog.Info("Transcribed PDF", "file", path, "pages", len(res.Pages), "status", string(res.Status))
		results = append(results, res)
	}

	out, err := renderPDFResults(results, cfg.Output.Format)
	if err != nil {
		return err
	}
	return writeOutput(cmd, cfg.Output.File, out)
}

func renderPDFResults(results []*pipeline.PDFResult, format string) (string, error) {
	if len(results) == 1 {
		return pipeline.Format(results[0], format)
	}
	switch format {
	case pipeline.FormatJSON:
		return pipeline.ToJSON(results)
	case pipeline.FormatYAML:
		return pipeline.ToYAML(results)
	}
	var b strings.Builder
	for i, r := range results {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "== %s ==\n%s\n", r.Filename, strings.TrimRight(r.Text, "\n"))
	}
	return b.String(), nil
}

// validatePageRange accepts "", "3", "1-4" and comma separated lists of those.
func validatePageRange(pages string) error {
	if strings.TrimSpace(pages) == "" {
		return nil
	}
	for _, part := range strings.Split(pages, ",") {
		lo, hi, isRange := strings.Cut(strings.TrimSpace(part), "-")
		a, err := parsePage(lo)
		if err != nil {
			return fmt.Errorf("invalid page range %q: %w", pages, err)
		}
		if !isRange {
			continue
		}
		b, err := parsePage(hi)
		if err != nil {
			return fmt.Errorf("invalid page range %q: %w", pages, err)
		}
		if b < a {
			return fmt.Errorf("invalid page range %q: %d-%d is descending", pages, a, b)
		}
	}
	return nil
}

func parsePage(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 {
		return 0, fmt.Errorf("page %q must be a positive number", s)
	}
	return n, nil
}

func init() {
	rootCmd.AddCommand(pdfCmd)
	addOutputFlags(pdfCmd)
	pdfCmd.Flags().String("pages", "", "pages to process, e.g. 1-3,5 (default: all)")
	pdfCmd.Flags().String("password", "", "password for encrypted PDFs")
}
