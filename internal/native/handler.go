// Package native drives the installed document editor's automation object
// for highest-fidelity extraction. Only usable where the editor exists; the
// factory treats its absence as a silent trigger for the next tier.
package native

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/doculab/extract/internal/common"
	"github.com/doculab/extract/internal/document"
)

// Handler wraps an automation Launcher as an extraction strategy. The
// underlying automation object is single-instance per process, so Process
// serializes sessions with a mutex.
type Handler struct {
	launcher Launcher
	logger   *slog.Logger

	mu sync.Mutex
}

func NewHandler(launcher Launcher, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{launcher: launcher, logger: logger}
}

func (h *Handler) Name() string { return "native-automation" }

// Process opens the document in a native session and queries it field by
// field. A failure opening the document propagates so the factory can fall
// back; a failure on any single field degrades that field to empty. The
// session is always closed.
func (h *Handler) Process(ctx context.Context, doc *document.Document, opts document.Options) (res *document.Result, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	path, cleanup, err := writeTemp(doc)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	sess, err := h.launcher.NewSession()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrNativeUnavailable, err)
	}
	defer func() {
		if cerr := sess.Close(ctx); cerr != nil {
			h.logger.Warn("native.session_close_failed", "error", cerr)
		}
	}()

	if err := sess.Open(ctx, path); err != nil {
		return nil, fmt.Errorf("native open: %w", err)
	}

	res = &document.Result{Handler: h.Name()}

	text, err := sess.ExportText(ctx)
	if err != nil {
		h.logger.Warn("native.text_failed", "file", doc.Name, "error", err)
	} else {
		res.Text = text
	}

	res.Metadata = h.readMetadata(ctx, sess, doc)

	tables, err := sess.Tables(ctx)
	if err != nil {
		h.logger.Warn("native.tables_failed", "file", doc.Name, "error", err)
	} else {
		res.Tables = tables
	}

	if opts.IncludeImages {
		res.Images = h.readImages(ctx, sess, doc, opts)
	}

	if res.Text == "" {
		return nil, fmt.Errorf("native extraction produced no text for %s", doc.Name)
	}
	return res, nil
}

func (h *Handler) readMetadata(ctx context.Context, sess Session, doc *document.Document) document.Metadata {
	meta := document.Metadata{Properties: map[string]string{}}

	pages, err := sess.PageCount(ctx)
	if err != nil {
		h.logger.Warn("native.pagecount_failed", "file", doc.Name, "error", err)
	} else {
		meta.PageCount = pages
	}

	for _, field := range []string{"title", "author", "created", "modified"} {
		v, err := sess.FieldText(ctx, field)
		if err != nil {
			h.logger.Debug("native.field_failed", "field", field, "error", err)
			continue
		}
		if v != "" {
			meta.Properties[field] = v
		}
	}
	return meta
}

// readImages exports each embedded shape to a temp dir, reads the files back
// and removes them.
func (h *Handler) readImages(ctx context.Context, sess Session, doc *document.Document, opts document.Options) [][]byte {
	limit := opts.ImageLimit
	if limit <= 0 {
		limit = 10
	}

	dir, err := os.MkdirTemp("", "extract-img-*")
	if err != nil {
		h.logger.Warn("native.image_tmpdir_failed", "error", err)
		return nil
	}
	defer os.RemoveAll(dir)

	paths, err := sess.ExportImages(ctx, dir)
	if err != nil {
		h.logger.Warn("native.images_failed", "file", doc.Name, "error", err)
		return nil
	}

	var images [][]byte
	for _, p := range paths {
		if len(images) >= limit {
			break
		}
		data, err := os.ReadFile(p)
		if err != nil {
			h.logger.Warn("native.image_read_failed", "path", p, "error", err)
			continue
		}
		if opts.ImageMinSize > 0 && len(data) < opts.ImageMinSize {
			continue
		}
		images = append(images, data)
	}
	return images
}

// writeTemp materializes the document for the automation object, which only
// accepts filesystem paths.
func writeTemp(doc *document.Document) (string, func(), error) {
	f, err := os.CreateTemp("", "extract-*"+filepath.Ext(doc.Name))
	if err != nil {
		return "", nil, err
	}
	if _, err := f.Write(doc.Raw); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", nil, err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", nil, err
	}
	return f.Name(), func() { os.Remove(f.Name()) }, nil
}
