// Package remote delegates extraction to a remote document-intelligence
// service. It is format-agnostic and serves as the universal last-resort
// tier, at the cost of latency and an API key.
package remote

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/doculab/extract/constants"
	"github.com/doculab/extract/internal/document"
	"github.com/doculab/extract/internal/resilient"
)

// ServiceName keys the rate limiter, metrics and cache entries for the OCR
// service.
const ServiceName = "ocr"

// Config holds the remote extraction endpoint settings.
type Config struct {
	APIKey   string
	BaseURL  string
	Language string
}

// Handler submits whole documents to the OCR endpoint through the resilient
// call client.
type Handler struct {
	cfg       Config
	client    *resilient.Client
	converter *Converter
	logger    *slog.Logger
}

func NewHandler(cfg Config, client *resilient.Client, converter *Converter, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.mistral.ai/v1/ocr"
	}
	if cfg.Language == "" {
		cfg.Language = "ko"
	}
	return &Handler{cfg: cfg, client: client, converter: converter, logger: logger}
}

func (h *Handler) Name() string { return "remote-ocr" }

// request/response wire shapes for the OCR endpoint.
type ocrOptions struct {
	ExtractTables    bool   `json:"extract_tables"`
	ExtractStructure bool   `json:"extract_structure"`
	Language         string `json:"language"`
	ExtractImages    bool   `json:"extract_images,omitempty"`
	ImageLimit       int    `json:"image_limit,omitempty"`
	ImageMinSize     int    `json:"image_min_size,omitempty"`
	Pages            []int  `json:"pages,omitempty"`
}

type ocrRequest struct {
	Document string     `json:"document"`
	Options  ocrOptions `json:"options"`
}

type ocrCell struct {
	Row     int    `json:"row"`
	Col     int    `json:"column"`
	Content string `json:"content"`
	RowSpan int    `json:"rowSpan"`
	ColSpan int    `json:"colSpan"`
}

type ocrTable struct {
	Cells []ocrCell `json:"cells"`
}

type ocrImage struct {
	Binary string `json:"binary"`
}

type ocrPage struct {
	Index    int        `json:"index"`
	Content  string     `json:"content"`
	Markdown string     `json:"markdown"`
	Tables   []ocrTable `json:"tables"`
	Images   []ocrImage `json:"images"`
}

type ocrResponse struct {
	Pages    []ocrPage         `json:"pages"`
	Metadata map[string]string `json:"metadata"`
}

// Process encodes the document, best-effort converts proprietary formats to
// PDF, submits the bytes and normalizes the response.
func (h *Handler) Process(ctx context.Context, doc *document.Document, opts document.Options) (*document.Result, error) {
	if h.cfg.APIKey == "" {
		return nil, fmt.Errorf("remote extraction requires an API key")
	}

	raw := doc.Raw
	if doc.Format == constants.FormatBinaryContainer || doc.Format == constants.FormatArchiveXML {
		raw = h.maybeConvert(ctx, doc)
	}

	lang := opts.Language
	if lang == "" {
		lang = h.cfg.Language
	}
	req := ocrRequest{
		Document: base64.StdEncoding.EncodeToString(raw),
		Options: ocrOptions{
			ExtractTables:    true,
			ExtractStructure: true,
			Language:         lang,
			Pages:            opts.Pages,
		},
	}
	if opts.IncludeImages {
		req.Options.ExtractImages = true
		req.Options.ImageLimit = defaultInt(opts.ImageLimit, 10)
		req.Options.ImageMinSize = defaultInt(opts.ImageMinSize, 100)
	}

	headers := map[string]string{"Authorization": "Bearer " + h.cfg.APIKey}

	start := time.Now()
	body, err := h.client.Call(ctx, ServiceName, h.cfg.BaseURL, req, headers)
	if err != nil {
		return nil, fmt.Errorf("remote extraction: %w", err)
	}
	h.logger.Info("remote.ocr_done", "file", doc.Name, "elapsed_ms", time.Since(start).Milliseconds())

	if err := validateResponse(body); err != nil {
		return nil, fmt.Errorf("remote extraction: %w", err)
	}
	return h.normalize(body, doc)
}

// maybeConvert writes the document to disk and attempts a local conversion
// to PDF; on any failure the original bytes are used.
func (h *Handler) maybeConvert(ctx context.Context, doc *document.Document) []byte {
	if h.converter == nil {
		return doc.Raw
	}
	tmp, err := os.CreateTemp("", "extract-*"+filepath.Ext(doc.Name))
	if err != nil {
		h.logger.Warn("remote.convert_tmp_failed", "error", err)
		return doc.Raw
	}
	path := tmp.Name()
	defer os.Remove(path)
	if _, err := tmp.Write(doc.Raw); err != nil {
		tmp.Close()
		return doc.Raw
	}
	tmp.Close()

	pdfPath, ok := h.converter.ToPDF(ctx, path)
	if !ok {
		return doc.Raw
	}
	defer os.Remove(pdfPath)
	converted, err := os.ReadFile(pdfPath)
	if err != nil {
		h.logger.Warn("remote.convert_read_failed", "error", err)
		return doc.Raw
	}
	return converted
}

// normalize flattens the page-oriented response into an extraction result.
func (h *Handler) normalize(body []byte, doc *document.Document) (*document.Result, error) {
	var resp ocrResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode ocr response: %w", err)
	}

	var textParts []string
	var tables []document.Table
	var images [][]byte
	for _, page := range resp.Pages {
		content := page.Content
		if content == "" {
			content = page.Markdown
		}
		if content != "" {
			textParts = append(textParts, content)
		}
		for _, t := range page.Tables {
			if grid := ReconstructTable(t.Cells); len(grid) > 0 {
				tables = append(tables, grid)
			}
		}
		for _, img := range page.Images {
			data, err := base64.StdEncoding.DecodeString(img.Binary)
			if err != nil {
				h.logger.Warn("remote.image_decode_failed", "file", doc.Name, "error", err)
				continue
			}
			images = append(images, data)
		}
	}

	props := map[string]string{}
	for _, key := range []string{"title", "author", "creator", "producer", "creationDate", "modDate"} {
		if v, ok := resp.Metadata[key]; ok && v != "" {
			props[normalizeMetaKey(key)] = v
		}
	}

	return &document.Result{
		Text: strings.TrimSpace(strings.Join(textParts, "\n\n")),
		Metadata: document.Metadata{
			PageCount:  len(resp.Pages),
			Properties: props,
		},
		Tables:  tables,
		Images:  images,
		Handler: h.Name(),
	}, nil
}

// ReconstructTable turns a cell list into a rectangular grid. A cell with
// rowSpan=r and colSpan=c writes its content into all r*c covered positions.
// Cells with negative coordinates are dropped.
func ReconstructTable(cells []ocrCell) document.Table {
	if len(cells) == 0 {
		return nil
	}

	maxRow, maxCol := -1, -1
	for _, c := range cells {
		if c.Row < 0 || c.Col < 0 {
			continue
		}
		rs, cs := defaultInt(c.RowSpan, 1), defaultInt(c.ColSpan, 1)
		if end := c.Row + rs - 1; end > maxRow {
			maxRow = end
		}
		if end := c.Col + cs - 1; end > maxCol {
			maxCol = end
		}
	}
	if maxRow < 0 || maxCol < 0 {
		return nil
	}

	grid := make(document.Table, maxRow+1)
	for i := range grid {
		grid[i] = make([]string, maxCol+1)
	}
	for _, c := range cells {
		if c.Row < 0 || c.Col < 0 {
			continue
		}
		rs, cs := defaultInt(c.RowSpan, 1), defaultInt(c.ColSpan, 1)
		for r := c.Row; r < c.Row+rs && r <= maxRow; r++ {
			for col := c.Col; col < c.Col+cs && col <= maxCol; col++ {
				grid[r][col] = c.Content
			}
		}
	}
	return grid
}

func normalizeMetaKey(apiKey string) string {
	switch apiKey {
	case "creationDate":
		return "created"
	case "modDate":
		return "modified"
	default:
		return apiKey
	}
}

func defaultInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
