// Package extract selects and runs extraction handlers. It owns the
// fallback chain: native automation first where available, then the direct
// format parser, then remote OCR as the universal fallback.
package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/doculab/extract/constants"
	"github.com/doculab/extract/internal/common"
	"github.com/doculab/extract/internal/document"
)

// Factory builds the ordered handler chain for a document and runs it to
// completion. Individual handler failures advance the chain; only an
// unsupported format is rejected outright.
type Factory struct {
	caps   Capabilities
	native document.Handler
	olebin document.Handler
	arcxml document.Handler
	remote document.Handler
	logger *slog.Logger
}

func NewFactory(caps Capabilities, nativeH, olebinH, arcxmlH, remoteH document.Handler, logger *slog.Logger) *Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Factory{
		caps:   caps,
		native: nativeH,
		olebin: olebinH,
		arcxml: arcxmlH,
		remote: remoteH,
		logger: logger,
	}
}

// Chain returns the handlers to try for the document's format, in order.
// An Unsupported format yields ErrUnsupportedFormat before any work is done.
func (f *Factory) Chain(doc *document.Document) ([]document.Handler, error) {
	var chain []document.Handler
	switch doc.Format {
	case constants.FormatBinaryContainer:
		if f.caps.NativeAutomation && f.native != nil {
			chain = append(chain, f.native)
		}
		chain = append(chain, f.olebin)
	case constants.FormatArchiveXML:
		if f.caps.NativeAutomation && f.native != nil {
			chain = append(chain, f.native)
		}
		chain = append(chain, f.arcxml)
	case constants.FormatPortableDoc:
		// PDF has no direct parser tier; remote handles it below.
	default:
		return nil, common.NewAppError("UNSUPPORTED_FORMAT",
			fmt.Sprintf("unsupported format for %q", doc.Name), common.ErrUnsupportedFormat)
	}
	if f.remote != nil {
		chain = append(chain, f.remote)
	}
	if len(chain) == 0 {
		return nil, common.NewAppError("NO_HANDLER",
			fmt.Sprintf("no extraction handler configured for %q", doc.Name), nil)
	}
	return chain, nil
}

// Process runs the fallback chain. It always returns a non-nil Result: on
// total failure the Result carries the last handler error instead of text.
func (f *Factory) Process(ctx context.Context, doc *document.Document, opts document.Options) *document.Result {
	chain, err := f.Chain(doc)
	if err != nil {
		f.logger.Warn("extract.rejected", "file", doc.Name, "error", err)
		res := &document.Result{Error: err.Error()}
		res.Finalize()
		return res
	}

	var lastErr error
	for _, h := range chain {
		f.logger.Info("extract.attempt", "file", doc.Name, "handler", h.Name(), "format", string(doc.Format))
		res, err := h.Process(ctx, doc, opts)
		if err == nil && res != nil {
			res.Handler = h.Name()
			res.Finalize()
			f.logger.Info("extract.done", "file", doc.Name, "handler", h.Name(), "chars", len(res.Text))
			return res
		}
		lastErr = err
		f.logger.Warn("extract.handler_failed",
			"file", doc.Name, "handler", h.Name(), "kind", failureKind(err), "error", err)
		if ctx.Err() != nil {
			lastErr = ctx.Err()
			break
		}
	}

	if lastErr == nil {
		lastErr = errors.New("all extraction handlers failed")
	}
	res := &document.Result{Error: lastErr.Error()}
	res.Finalize()
	return res
}

// failureKind names the class of a tier failure for the log line.
func failureKind(err error) string {
	switch {
	case errors.Is(err, common.ErrNativeUnavailable):
		return "native-unavailable"
	case errors.Is(err, common.ErrParseFailure):
		return "parse-failure"
	default:
		return "handler-error"
	}
}
