// Command extract is the one-shot CLI: it runs the extraction pipeline over
// one or more documents and writes JSON results or an XLSX table export.
package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/doculab/extract/internal/arcxml"
	"github.com/doculab/extract/internal/common"
	"github.com/doculab/extract/internal/document"
	"github.com/doculab/extract/internal/export"
	"github.com/doculab/extract/internal/extract"
	"github.com/doculab/extract/internal/native"
	"github.com/doculab/extract/internal/olebin"
	"github.com/doculab/extract/internal/remote"
	"github.com/doculab/extract/internal/resilient"
	"github.com/doculab/extract/internal/server"
	"github.com/doculab/extract/internal/tasks"
)

var (
	flagIncludeImages bool
	flagImageLimit    int
	flagImageMinSize  int
	flagPages         string
	flagLanguage      string
	flagWorkers       int
	flagXLSX          string
	flagQuiet         bool
)

var rootCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract text, metadata and tables from HWP, HWPX and PDF documents",
}

var processCmd = &cobra.Command{
	Use:   "process <file> [file...]",
	Short: "Run the extraction pipeline and print JSON results",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runProcess,
}

func init() {
	rootCmd.AddCommand(processCmd)

	processCmd.Flags().BoolVar(&flagIncludeImages, "include-images", false, "Extract embedded images (base64 in JSON output)")
	processCmd.Flags().IntVar(&flagImageLimit, "image-limit", 0, "Maximum images to extract per document")
	processCmd.Flags().IntVar(&flagImageMinSize, "image-min-size", 0, "Minimum image size in bytes")
	processCmd.Flags().StringVar(&flagPages, "pages", "", `Page selection for remote extraction, e.g. "0-5,7"`)
	processCmd.Flags().StringVar(&flagLanguage, "language", "", "Document language hint for remote extraction")
	processCmd.Flags().IntVar(&flagWorkers, "workers", 0, "Worker pool size for batches (default from TASK_WORKERS)")
	processCmd.Flags().StringVar(&flagXLSX, "xlsx", "", "Write extracted tables to this XLSX file instead of JSON")
	processCmd.Flags().BoolVar(&flagQuiet, "quiet", false, "Suppress log output")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runProcess(cmd *cobra.Command, args []string) error {
	_ = godotenv.Load()
	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		return err
	}

	level := slog.LevelInfo
	if flagQuiet {
		level = slog.LevelError
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	opts := document.Options{
		IncludeImages: flagIncludeImages,
		ImageLimit:    flagImageLimit,
		ImageMinSize:  flagImageMinSize,
		Language:      flagLanguage,
	}
	if flagPages != "" {
		pages, err := server.ParsePages(flagPages)
		if err != nil {
			return err
		}
		opts.Pages = pages
	}

	factory, err := buildFactory(cfg, logger)
	if err != nil {
		return err
	}

	batch := make([]tasks.Task, 0, len(args))
	for _, path := range args {
		raw, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		batch = append(batch, tasks.Task{Name: filepath.Base(path), Raw: raw, Options: opts})
	}

	workers := flagWorkers
	if workers <= 0 {
		workers = cfg.Tasks.Workers
	}
	pool := tasks.NewPool(workers, factory, logger)
	results := pool.Run(cmd.Context(), batch)

	if flagXLSX != "" {
		return writeXLSX(results, logger)
	}
	return writeJSON(results)
}

func buildFactory(cfg *common.Config, logger *slog.Logger) (*extract.Factory, error) {
	cache, err := resilient.NewDiskCache(cfg.Cache.Dir, cfg.Cache.TTL, cfg.Cache.MaxEntries, logger)
	if err != nil {
		return nil, fmt.Errorf("open call cache: %w", err)
	}
	client := resilient.NewClient(cache, resilient.NewMetrics(), logger,
		resilient.WithHTTPClient(&http.Client{Timeout: cfg.Remote.Timeout}),
		resilient.WithRetryPolicy(resilient.RetryPolicy{
			MaxAttempts: cfg.Remote.MaxAttempts,
			BaseDelay:   cfg.Remote.BaseDelay,
		}),
		resilient.WithServiceInterval(remote.ServiceName, cfg.Remote.MinInterval),
		resilient.WithMemCacheSize(cfg.Cache.MemEntries),
	)

	launcher := native.NewBridgeLauncher(cfg.Native.Bridge, logger)
	caps := extract.Detect(launcher)

	var nativeH document.Handler
	if caps.NativeAutomation {
		nativeH = native.NewHandler(launcher, logger)
	}
	remoteH := remote.NewHandler(remote.Config{
		APIKey:   cfg.Remote.APIKey,
		BaseURL:  cfg.Remote.BaseURL,
		Language: cfg.Remote.Language,
	}, client, remote.NewConverter(cfg.Remote.Converter, logger), logger)

	return extract.NewFactory(caps, nativeH,
		olebin.NewParser(logger), arcxml.NewParser(logger), remoteH, logger), nil
}

func writeJSON(results []tasks.TaskResult) error {
	out := make(map[string]*document.Result, len(results))
	for _, r := range results {
		out[r.Name] = r.Result
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func writeXLSX(results []tasks.TaskResult, logger *slog.Logger) error {
	exporter := export.NewService(logger)
	var all []document.Table
	for _, r := range results {
		all = append(all, r.Result.Tables...)
	}
	data, err := exporter.TablesXLSX(strings.TrimSuffix(filepath.Base(flagXLSX), ".xlsx"), all)
	if err != nil {
		return err
	}
	if err := os.WriteFile(flagXLSX, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", flagXLSX, err)
	}
	fmt.Fprintf(os.Stdout, "wrote %d tables to %s\n", len(all), flagXLSX)
	return nil
}
