// Package olebin extracts text and metadata directly from OLE compound
// binary documents. It needs no native runtime and is always available, at
// the cost of fidelity: the binary object model is out of reach, so tables
// and images are empty by design.
package olebin

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/richardlehane/mscfb"
	"github.com/richardlehane/msoleps"
	"golang.org/x/text/encoding/unicode"

	"github.com/doculab/extract/constants"
	"github.com/doculab/extract/internal/common"
	"github.com/doculab/extract/internal/document"
)

// Parser reads named streams out of the compound container.
type Parser struct {
	logger *slog.Logger
}

func NewParser(logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{logger: logger}
}

func (p *Parser) Name() string { return "binary-container" }

// Process enumerates the container's streams: preview-text streams first,
// falling back to any stream whose name carries the text marker. A stream
// that fails to decode is skipped, never fatal. Metadata comes from the
// summary-information stream when present.
func (p *Parser) Process(ctx context.Context, doc *document.Document, opts document.Options) (*document.Result, error) {
	cf, err := mscfb.New(bytes.NewReader(doc.Raw))
	if err != nil {
		return nil, fmt.Errorf("%w: open compound container: %w", common.ErrParseFailure, err)
	}

	var preview, other []string
	props := map[string]string{}

	for entry, err := cf.Next(); err == nil; entry, err = cf.Next() {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		switch {
		case entry.Name == constants.SummaryInfoStream:
			if m := p.readSummaryInfo(entry); len(m) > 0 {
				props = m
			}
		case strings.Contains(entry.Name, constants.PreviewTextStream):
			if text, ok := p.readTextStream(entry); ok {
				preview = append(preview, text)
			}
		case strings.Contains(entry.Name, constants.TextStreamMarker):
			if text, ok := p.readTextStream(entry); ok {
				other = append(other, text)
			}
		}
	}

	parts := preview
	if len(parts) == 0 {
		parts = other
	}

	res := &document.Result{
		Text:     strings.TrimSpace(strings.Join(parts, "\n\n")),
		Metadata: document.Metadata{Properties: props},
		Tables:   []document.Table{}, // no general-purpose parser for the binary object model
		Handler:  p.Name(),
	}
	if res.Text == "" {
		return nil, fmt.Errorf("%w: no readable text streams in container", common.ErrParseFailure)
	}
	return res, nil
}

// readTextStream decodes a stream as UTF-16LE, tolerating invalid sequences.
func (p *Parser) readTextStream(r io.Reader) (string, bool) {
	raw, err := io.ReadAll(r)
	if err != nil {
		p.logger.Warn("olebin.stream_read_failed", "error", err)
		return "", false
	}
	dec := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder()
	out, err := dec.Bytes(raw)
	if err != nil {
		p.logger.Warn("olebin.stream_decode_failed", "error", err)
		return "", false
	}
	text := strings.TrimRight(string(out), "\x00")
	if strings.TrimSpace(text) == "" {
		return "", false
	}
	return text, true
}

// readSummaryInfo parses an OLE property set into string properties.
// Absence or malformed content yields an empty map, not an error.
func (p *Parser) readSummaryInfo(r io.Reader) map[string]string {
	ps := msoleps.New()
	if err := ps.Reset(r); err != nil {
		p.logger.Warn("olebin.summary_parse_failed", "error", err)
		return nil
	}
	props := make(map[string]string, len(ps.Property))
	for _, prop := range ps.Property {
		if prop == nil || prop.Name == "" {
			continue
		}
		if v := strings.TrimSpace(prop.String()); v != "" {
			props[strings.ToLower(prop.Name)] = v
		}
	}
	return props
}
