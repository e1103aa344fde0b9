package remote

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Runner lets us stub external converter commands in tests.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var out, errb bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errb
	err := cmd.Run()
	return out.Bytes(), errb.Bytes(), err
}

// Converter turns proprietary-format documents into PDF for remote pipelines
// that require portable-document input. Conversion is best effort: when every
// known converter is missing or fails, extraction proceeds on the original
// bytes.
type Converter struct {
	preferred string
	runner    Runner
	logger    *slog.Logger
}

func NewConverter(preferred string, logger *slog.Logger) *Converter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Converter{preferred: preferred, runner: execRunner{}, logger: logger}
}

// ToPDF converts the file at path into a sibling PDF and returns its path,
// or ok=false when no converter on this host could do it.
func (c *Converter) ToPDF(ctx context.Context, path string) (string, bool) {
	pdfPath := strings.TrimSuffix(path, filepath.Ext(path)) + "_converted.pdf"

	type attempt struct {
		name string
		args []string
		// libreoffice keeps the original basename; rename after.
		rename string
	}
	attempts := []attempt{
		{name: "hwp-converter", args: []string{path, pdfPath}},
		{name: "unoconv", args: []string{"-f", "pdf", "-o", pdfPath, path}},
		{
			name:   "libreoffice",
			args:   []string{"--headless", "--convert-to", "pdf", "--outdir", filepath.Dir(pdfPath), path},
			rename: strings.TrimSuffix(path, filepath.Ext(path)) + ".pdf",
		},
	}
	if c.preferred != "" {
		attempts = append([]attempt{{name: c.preferred, args: []string{path, pdfPath}}}, attempts...)
	}

	for _, a := range attempts {
		_, errb, err := c.runner.Run(ctx, a.name, a.args...)
		if err != nil {
			c.logger.Debug("convert.attempt_failed", "converter", a.name, "error", err, "stderr", string(errb))
			continue
		}
		produced := pdfPath
		if a.rename != "" {
			if _, err := os.Stat(a.rename); err == nil {
				if err := os.Rename(a.rename, pdfPath); err != nil {
					produced = a.rename
				}
			}
		}
		if _, err := os.Stat(produced); err == nil {
			c.logger.Info("convert.ok", "converter", a.name, "pdf", produced)
			return produced, true
		}
	}

	c.logger.Warn("convert.all_failed", "path", path)
	return "", false
}
