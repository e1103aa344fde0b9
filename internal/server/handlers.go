package server

import (
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/doculab/extract/constants"
	"github.com/doculab/extract/internal/common"
	"github.com/doculab/extract/internal/document"
)

// envelope is the uniform response shape for all JSON endpoints.
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func respondOK(c *gin.Context, message string, data any) {
	c.JSON(http.StatusOK, envelope{Success: true, Message: message, Data: data})
}

func respondError(c *gin.Context, status int, err error) {
	c.JSON(status, envelope{Success: false, Error: err.Error()})
}

// readUpload pulls the multipart "file" field plus extraction options off the
// request.
func (s *Server) readUpload(c *gin.Context) (string, []byte, document.Options, error) {
	fh, err := c.FormFile("file")
	if err != nil {
		return "", nil, document.Options{}, fmt.Errorf("missing file upload: %w", err)
	}
	ext := constants.NormalizeExt(filepath.Ext(fh.Filename))
	if _, ok := constants.AllowedExtensions[ext]; !ok {
		return "", nil, document.Options{},
			fmt.Errorf("%w: unsupported file extension %q", common.ErrInvalidInput, ext)
	}
	f, err := fh.Open()
	if err != nil {
		return "", nil, document.Options{}, common.WrapError(err, "open upload")
	}
	defer f.Close()
	raw, err := io.ReadAll(f)
	if err != nil {
		return "", nil, document.Options{}, common.WrapError(err, "read upload")
	}

	opts := document.Options{
		IncludeImages: c.PostForm("include_images") == "true",
		Language:      c.PostForm("language"),
	}
	if v := c.PostForm("image_limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			opts.ImageLimit = n
		}
	}
	if v := c.PostForm("image_min_size"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			opts.ImageMinSize = n
		}
	}
	if v := c.PostForm("pages"); v != "" {
		pages, err := ParsePages(v)
		if err != nil {
			return "", nil, document.Options{}, err
		}
		opts.Pages = pages
	}
	return fh.Filename, raw, opts, nil
}

// process runs the full pipeline with job bookkeeping and returns the result.
func (s *Server) process(c *gin.Context) (*document.Result, bool) {
	name, raw, upOpts, err := s.readUpload(c)
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return nil, false
	}

	doc := document.New(name, raw)
	// Caller-input errors are rejected before any job bookkeeping.
	if doc.Format == constants.FormatUnsupported {
		respondError(c, http.StatusBadRequest,
			fmt.Errorf("%w: unrecognized document content in %q", common.ErrInvalidInput, name))
		return nil, false
	}
	ctx := c.Request.Context()

	job, jerr := s.jobs.Start(ctx, doc.Name, doc.ContentHash, string(doc.Format))
	if jerr != nil {
		s.logger.Warn("job bookkeeping unavailable", "error", jerr)
	}

	start := time.Now()
	res := s.factory.Process(ctx, doc, upOpts)
	s.logger.Info("api.processed", "file", doc.Name, "handler", res.Handler,
		"elapsed_ms", time.Since(start).Milliseconds())

	if job != nil {
		switch {
		case res.Error == "":
			_ = s.jobs.FinishSuccess(ctx, job.ID, res.Handler, len(res.Text), len(res.Tables))
		case res.Text != "":
			_ = s.jobs.FinishPartial(ctx, job.ID, res.Handler, len(res.Text), res.Error)
		default:
			_ = s.jobs.FinishFailure(ctx, job.ID, res.Error)
		}
	}
	return res, true
}

// handleProcessDocument runs the complete extraction and returns the full
// result: text, metadata, tables and optionally images.
func (s *Server) handleProcessDocument(c *gin.Context) {
	res, ok := s.process(c)
	if !ok {
		return
	}
	if res.Error != "" && res.Text == "" {
		c.JSON(http.StatusUnprocessableEntity, envelope{Success: false, Error: res.Error, Data: res})
		return
	}
	respondOK(c, "document processed", res)
}

func (s *Server) handleExtractText(c *gin.Context) {
	res, ok := s.process(c)
	if !ok {
		return
	}
	if res.Error != "" && res.Text == "" {
		c.JSON(http.StatusUnprocessableEntity, envelope{Success: false, Error: res.Error})
		return
	}
	respondOK(c, "text extracted", gin.H{"text": res.Text, "handler": res.Handler})
}

func (s *Server) handleExtractMetadata(c *gin.Context) {
	res, ok := s.process(c)
	if !ok {
		return
	}
	if res.Error != "" && res.Text == "" {
		c.JSON(http.StatusUnprocessableEntity, envelope{Success: false, Error: res.Error})
		return
	}
	respondOK(c, "metadata extracted", gin.H{"metadata": res.Metadata, "handler": res.Handler})
}

// handleExportTables extracts tables and streams back an XLSX workbook.
func (s *Server) handleExportTables(c *gin.Context) {
	name, raw, opts, err := s.readUpload(c)
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	doc := document.New(name, raw)
	res := s.factory.Process(c.Request.Context(), doc, opts)
	if res.Error != "" && len(res.Tables) == 0 {
		c.JSON(http.StatusUnprocessableEntity, envelope{Success: false, Error: res.Error})
		return
	}

	xlsx, err := s.exporter.TablesXLSX(doc.Name, res.Tables)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	filename := strings.TrimSuffix(doc.Name, "."+extOf(doc.Name)) + "_tables.xlsx"
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", xlsx)
}

// handleStatus reports host capabilities and recent job history.
func (s *Server) handleStatus(c *gin.Context) {
	jobs, err := s.jobs.Recent(c.Request.Context(), 20)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	respondOK(c, "status", gin.H{
		"capabilities": gin.H{"native_automation": s.caps.NativeAutomation},
		"recent_jobs":  jobs,
	})
}

func (s *Server) handleMetrics(c *gin.Context) {
	respondOK(c, "metrics", s.metrics.Summary())
}

// ParsePages parses a page selection like "0-5,7,9-12" into a sorted-ish
// list of page indexes. Ranges are inclusive.
func ParsePages(expr string) ([]int, error) {
	var pages []int
	for _, part := range strings.Split(expr, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if lo, hi, ok := strings.Cut(part, "-"); ok {
			from, err := strconv.Atoi(strings.TrimSpace(lo))
			if err != nil {
				return nil, fmt.Errorf("invalid page range %q", part)
			}
			to, err := strconv.Atoi(strings.TrimSpace(hi))
			if err != nil || to < from {
				return nil, fmt.Errorf("invalid page range %q", part)
			}
			for p := from; p <= to; p++ {
				pages = append(pages, p)
			}
			continue
		}
		p, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid page %q", part)
		}
		pages = append(pages, p)
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("empty page selection %q", expr)
	}
	return pages, nil
}

func extOf(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[i+1:]
	}
	return ""
}
