package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/MeKo-Tech/lipi/internal/config"
	"github.com/MeKo-Tech/lipi/internal/pipeline"
	"github.com/MeKo-Tech/lipi/internal/script"
	"github.com/MeKo-Tech/lipi/internal/utils"
	"github.com/disintegration/imaging"
	"github.com/spf13/cobra"
)

// imageCmd represents the image command.
var imageCmd = &cobra.Command{
	Use:   "image [files...]",
	Short: "Transcribe handwritten images",
	Long: `Transcribe one or more image files.

Supported formats: JPEG, PNG, BMP, TIFF, WEBP

Examples:
  lipi image page.jpg
  lipi image *.png --language nepali --format json
  lipi image page.jpg --overlay-dir overlays --output page.txt`,
	Args: cobra.MinimumNArgs(1),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return bindFlags(cmd, append(outputFlagBindings, flagBinding{"output.overlay_dir", "overlay-dir"}))
	},
	RunE: runImage,
}

var outputFlagBindings = []flagBinding{
	{"output.format", "format"},
	{"output.file", "output"},
	{"recognizer.backend", "backend"},
}

// imageResult pairs a transcript with the file it came from.
type imageResult struct {
	File   string           `json:"file" yaml:"file"`
	Result *pipeline.Result `json:"result,omitempty" yaml:"result,omitempty"`
	Error  string           `json:"error,omitempty" yaml:"error,omitempty"`
	err    error
}

func runImage(cmd *cobra.Command, args []string) error {
	cfg, err := GetConfig()
	if err != nil {
		return err
	}
	lang, err := languageFlag(cmd, cfg)
	if err != nil {
		return err
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

	results := make([]imageResult, 0, len(args))
	for _, path := range args {
		r := transcribeFile(ctx, svc.pipeline, path, lang, cfg)
		if r.err != nil && errors.Is(r.err, context.Canceled) {
			return r.err
		}
		results = append(results, r)
	}

	out, err := renderImageResults(results, cfg.Output.Format)
	if err != nil {
		return err
	}
	if err := writeOutput(cmd, cfg.Output.File, out); err != nil {
		return err
	}

	failed := 0
	for _, r := range results {
		if r.err != nil {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d image(s) failed", failed, len(results))
	}
	return nil
}

func transcribeFile(ctx context.Context, p *pipeline.Pipeline, path string, lang script.Language, cfg *config.Config) imageResult {
	r := imageResult{File: path}
	data, err := utils.ReadImageFile(path)
	if err == nil {
		r.Result, err = p.Run(ctx, data, lang)
	}
	if err != nil {
		slog.Error("Transcription failed", "file", path, "error", err)
		r.err, r.Error = err, err.Error()
		return r
	}
	slog.Info("Transcribed image", "file", path, "status", string(r.Result.Status), "lines", len(r.Result.Lines))

	if cfg.Output.OverlayDir != "" {
		if err := saveOverlay(cfg.Output.OverlayDir, path, data, r.Result, cfg.ToOverlayOptions()); err != nil {
			slog.Warn("Failed to write overlay", "file", path, "error", err)
		}
	}
	return r
}

// saveOverlay writes <dir>/<name>_overlay.png with the regions drawn.
func saveOverlay(dir, path string, data []byte, res *pipeline.Result, opts pipeline.OverlayOptions) error {
	img, _, err := utils.DecodeImage(data)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return err
	}
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return imaging.Save(pipeline.DrawOverlay(img, res, opts), filepath.Join(dir, base+"_overlay.png"))
}

// renderImageResults formats one or many transcripts. Several files in text
// or csv get a header per file, json and yaml become a list.
func renderImageResults(results []imageResult, format string) (string, error) {
	if len(results) == 1 && results[0].err == nil {
		return pipeline.Format(results[0].Result, format)
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
		fmt.Fprintf(&b, "== %s ==\n", r.File)
		if r.err != nil {
			fmt.Fprintf(&b, "error: %s\n", r.Error)
			continue
		}
		s, err := pipeline.Format(r.Result, format)
		if err != nil {
			return "", err
		}
		b.WriteString(strings.TrimRight(s, "\n"))
		b.WriteString("\n")
	}
	return b.String(), nil
}

// languageFlag resolves --language, falling back to the server default.
func languageFlag(cmd *cobra.Command, cfg *config.Config) (script.Language, error) {
	name, _ := cmd.Flags().GetString("language")
	if name == "" {
		name = cfg.Server.DefaultLanguage
	}
	table, err := cfg.ScriptTable()
	if err != nil {
		return "", err
	}
	p, err := table.Lookup(script.Language(name))
	if err != nil {
		return "", err
	}
	return p.Language, nil
}

func writeOutput(cmd *cobra.Command, file, content string) error {
	if !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	if file == "" {
		_, err := fmt.Fprint(cmd.OutOrStdout(), content)
		return err
	}
	if err := os.WriteFile(file, []byte(content), 0o600); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	slog.Info("Wrote output", "file", file)
	return nil
}

func addOutputFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("language", "l", "", "page language (english, nepali); defaults to server.default_language")
	cmd.Flags().StringP("format", "f", pipeline.FormatText, "output format (text, json, yaml, csv)")
	cmd.Flags().StringP("output", "o", "", "output file (default: stdout)")
	cmd.Flags().String("backend", "onnx", "recognition backend (onnx, gemini, tesseract)")
	cmd.Flags().Bool("progress", false, "show a progress bar on stderr")
}

func init() {
	rootCmd.AddCommand(imageCmd)
	addOutputFlags(imageCmd)
	imageCmd.Flags().String("overlay-dir", "", "directory to write overlay images with the regions drawn")
}
