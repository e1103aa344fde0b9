package native

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/exec"
	"runtime"
	"strconv"
	"strings"

	"github.com/doculab/extract/internal/document"
)

// Session is one live connection to the native editor automation object.
// The underlying process is effectively single-instance, so a session must
// not be shared across goroutines and must always be closed.
type Session interface {
	Open(ctx context.Context, path string) error
	ExportText(ctx context.Context) (string, error)
	PageCount(ctx context.Context) (int, error)
	FieldText(ctx context.Context, field string) (string, error)
	Tables(ctx context.Context) ([]document.Table, error)
	ExportImages(ctx context.Context, dir string) ([]string, error)
	Close(ctx context.Context) error
}

// Launcher probes for and constructs automation sessions.
type Launcher interface {
	Available() bool
	NewSession() (Session, error)
}

// BridgeLauncher drives the editor through a small automation bridge
// executable, one subcommand per automation verb. The bridge itself only
// exists where the native editor is installed.
type BridgeLauncher struct {
	Binary string
	Runner Runner
}

func NewBridgeLauncher(binary string, logger *slog.Logger) *BridgeLauncher {
	if binary == "" {
		binary = "hwpauto"
	}
	return &BridgeLauncher{Binary: binary, Runner: newBridgeRunner(logger)}
}

// Available reports whether this host can drive the native editor: the
// automation runtime only ships on Windows, and the bridge must be on PATH.
func (l *BridgeLauncher) Available() bool {
	if runtime.GOOS != "windows" {
		return false
	}
	_, err := exec.LookPath(l.Binary)
	return err == nil
}

func (l *BridgeLauncher) NewSession() (Session, error) {
	if !l.Available() {
		return nil, fmt.Errorf("automation bridge %q not available on this host", l.Binary)
	}
	return &bridgeSession{bin: l.Binary, runner: l.Runner}, nil
}

type bridgeSession struct {
	bin    string
	runner Runner
	path   string
}

func (s *bridgeSession) Open(ctx context.Context, path string) error {
	_, errb, err := s.runner.Run(ctx, s.bin, "open", path)
	if err != nil {
		return fmt.Errorf("open document: %w: %s", err, string(errb))
	}
	s.path = path
	return nil
}

func (s *bridgeSession) ExportText(ctx context.Context) (string, error) {
	out, _, err := s.runner.Run(ctx, s.bin, "text", s.path)
	if err != nil {
		return "", fmt.Errorf("export text: %w", err)
	}
	return string(out), nil
}

func (s *bridgeSession) PageCount(ctx context.Context) (int, error) {
	out, _, err := s.runner.Run(ctx, s.bin, "pagecount", s.path)
	if err != nil {
		return 0, fmt.Errorf("page count: %w", err)
	}
	n, err := strconv.Atoi(strings.TrimSpace(string(out)))
	if err != nil {
		return 0, fmt.Errorf("page count: %w", err)
	}
	return n, nil
}

func (s *bridgeSession) FieldText(ctx context.Context, field string) (string, error) {
	out, _, err := s.runner.Run(ctx, s.bin, "field", field, s.path)
	if err != nil {
		return "", fmt.Errorf("field %q: %w", field, err)
	}
	return strings.TrimSpace(string(out)), nil
}

// Tables asks the bridge to scan control objects and dump every table as a
// JSON grid of cell text.
func (s *bridgeSession) Tables(ctx context.Context) ([]document.Table, error) {
	out, _, err := s.runner.Run(ctx, s.bin, "tables", s.path)
	if err != nil {
		return nil, fmt.Errorf("scan tables: %w", err)
	}
	var tables []document.Table
	if err := json.Unmarshal(out, &tables); err != nil {
		return nil, fmt.Errorf("decode tables: %w", err)
	}
	return tables, nil
}

// ExportImages saves every embedded shape under dir and returns the written
// file paths, one image per line on the bridge's stdout.
func (s *bridgeSession) ExportImages(ctx context.Context, dir string) ([]string, error) {
	out, _, err := s.runner.Run(ctx, s.bin, "images", "--outdir", dir, s.path)
	if err != nil {
		return nil, fmt.Errorf("export images: %w", err)
	}
	var paths []string
	for _, line := range strings.Split(strings.TrimSpace(string(out)), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			paths = append(paths, line)
		}
	}
	return paths, nil
}

func (s *bridgeSession) Close(ctx context.Context) error {
	_, _, err := s.runner.Run(ctx, s.bin, "close")
	return err
}
