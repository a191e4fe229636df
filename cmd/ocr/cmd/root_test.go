package cmd

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MeKo-Tech/lipi/internal/config"
	"github.com/MeKo-Tech/lipi/internal/pipeline"
	"github.com/MeKo-Tech/lipi/internal/script"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// executeCommandAndCaptureOutput runs the root command with args.
func executeCommandAndCaptureOutput(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.Execute()
	return strings.TrimSpace(buf.String()), err
}

func TestRootCommand(t *testing.T) {
	assert.Equal(t, "lipi", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("verbose"))
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("config"))
}

func TestRootCommandHelp(t *testing.T) {
	out, err := executeCommandAndCaptureOutput(t, "--help")
	require.NoError(t, err)
	assert.Contains(t, out, "Available Commands:")
	assert.Contains(t, out, "reading order")
}

func TestRootCommandVersion(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Cleanup(func() { _ = rootCmd.Flags().Set("version", "false") })

	out, err := executeCommandAndCaptureOutput(t, "--version")
	require.NoError(t, err)
	assert.Contains(t, out, "lipi dev")
}

func TestRootCommandSubcommands(t *testing.T) {
	var names []string
	for _, c := range rootCmd.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"image", "pdf", "serve", "worker", "bot", "config", "runtime"} {
		assert.Contains(t, names, want)
	}
}

func TestRootCommandInvalidFlag(t *testing.T) {
	out, err := executeCommandAndCaptureOutput(t, "--invalid-flag")
	require.Error(t, err)
	assert.Contains(t, out, "unknown flag")
}

func TestImageRequiresFiles(t *testing.T) {
	_, err := executeCommandAndCaptureOutput(t, "image")
	require.Error(t, err)
}

func TestConfigInitCommand(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "custom.yaml")

	out, err := executeCommandAndCaptureOutput(t, "config", "init", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote")
	assert.FileExists(t, path)

	_, err = executeCommandAndCaptureOutput(t, "config", "init", path)
	require.Error(t, err, "refuses to overwrite")
}

func TestBindFlags(t *testing.T) {
	c := &cobra.Command{Use: "x"}
	c.Flags().String("format", "json", "")
	require.NoError(t, bindFlags(c, []flagBinding{{"output.format", "format"}}))
	require.Error(t, bindFlags(c, []flagBinding{{"output.file", "missing"}}))
}

func TestLanguageFlag(t *testing.T) {
	cfg := config.DefaultConfig()
	c := &cobra.Command{Use: "x"}
	addOutputFlags(c)

	lang, err := languageFlag(c, &cfg)
	require.NoError(t, err)
	assert.Equal(t, script.English, lang, "falls back to the server default")

	require.NoError(t, c.Flags().Set("language", "NE"))
	lang, err = languageFlag(c, &cfg)
	require.NoError(t, err)
	assert.Equal(t, script.Nepali, lang)

	require.NoError(t, c.Flags().Set("language", "klingon"))
	_, err = languageFlag(c, &cfg)
	require.ErrorIs(t, err, script.ErrUnsupportedLanguage)
}

func TestRenderImageResults(t *testing.T) {
	one := &pipeline.Result{Language: script.English, Status: pipeline.StatusComplete, Text: "hello\nworld"}
	two := &pipeline.Result{Language: script.English, Status: pipeline.StatusNoText}

	out, err := renderImageResults([]imageResult{{File: "a.png", Result: one}}, pipeline.FormatText)
	require.NoError(t, err)
	assert.Equal(t, "hello\nworld", out)

	results := []imageResult{
		{File: "a.png", Result: one},
		{File: "b.png", Result: two},
		{File: "c.png", Error: "boom", err: errors.New("boom")},
	}
	out, err = renderImageResults(results, pipeline.FormatText)
	require.NoError(t, err)
	assert.Equal(t, "== a.png ==\nhello\nworld\n\n== b.png ==\n\n\n== c.png ==\nerror: boom\n", out)

	out, err = renderImageResults(results, pipeline.FormatJSON)
	require.NoError(t, err)
	assert.Contains(t, out, `"file": "c.png"`)
	assert.Contains(t, out, `"error": "boom"`)

	_, err = renderImageResults(results[:1], "xml")
	require.Error(t, err)
}

func TestRenderPDFResults(t *testing.T) {
	a := &pipeline.PDFResult{Filename: "a.pdf", Text: "one"}
	b := &pipeline.PDFResult{Filename: "b.pdf", Text: "two\n"}

	out, err := renderPDFResults([]*pipeline.PDFResult{a}, pipeline.FormatText)
	require.NoError(t, err)
	assert.Equal(t, "one", out)

	out, err = renderPDFResults([]*pipeline.PDFResult{a, b}, pipeline.FormatText)
	require.NoError(t, err)
	assert.Equal(t, "== a.pdf ==\none\n\n== b.pdf ==\ntwo\n", out)
}

func TestValidatePageRange(t *testing.T) {
	for _, ok := range []string{"", "3", "1-4", "1-3, 5,7-7"} {
		assert.NoError(t, validatePageRange(ok), ok)
	}
	for _, bad := range []string{"0", "a", "3-1", "1-", "2x", "-4"} {
		assert.Error(t, validatePageRange(bad), bad)
	}
}

func TestWriteOutput(t *testing.T) {
	buf := new(bytes.Buffer)
	c := &cobra.Command{Use: "x"}
	c.SetOut(buf)
	require.NoError(t, writeOutput(c, "", "text"))
	assert.Equal(t, "text\n", buf.String())

	file := filepath.Join(t.TempDir(), "out.txt")
	require.NoError(t, writeOutput(c, file, "saved\n"))
	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Equal(t, "saved\n", string(data))
}

func TestRedact(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Telegram.Token = "123:abc"
	cfg.Database.DSN = "postgres://user:pw@db/lipi"

	r := redact(cfg)
	assert.Equal(t, "********", r.Telegram.Token)
	assert.Equal(t, "********", r.Database.DSN)
	assert.Empty(t, r.Detector.APIKey, "empty values stay empty")
	assert.Equal(t, "123:abc", cfg.Telegram.Token, "original is untouched")
}
