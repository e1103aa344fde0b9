package document

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"

	"github.com/doculab/extract/constants"
)

// Document is an immutable in-memory copy of an uploaded file. The content
// hash is computed once and reused as the cache key for every remote call
// made on this document's behalf.
type Document struct {
	Name        string
	Raw         []byte
	ContentHash string
	Format      constants.Format
}

// New reads a document from raw bytes, classifying its format from the
// declared filename and leading bytes.
func New(name string, raw []byte) *Document {
	sum := sha256.Sum256(raw)
	return &Document{
		Name:        name,
		Raw:         raw,
		ContentHash: hex.EncodeToString(sum[:]),
		Format:      Classify(name, raw),
	}
}

// Ext returns the normalized filename extension.
func (d *Document) Ext() string {
	return constants.NormalizeExt(filepath.Ext(d.Name))
}

// Metadata holds structural document metadata. Properties are optional and
// absent when unrecoverable.
type Metadata struct {
	PageCount  int               `json:"page_count"`
	Properties map[string]string `json:"properties"`
}

// Table is a rectangular grid of cell text. Merged cells replicate their
// content across every spanned position.
type Table [][]string

// Result is the normalized extraction output consumed by the analysis/UI
// layer. Either Text is non-empty or Error is set; Finalize enforces this.
type Result struct {
	Text     string   `json:"text"`
	Metadata Metadata `json:"metadata"`
	Tables   []Table  `json:"tables"`
	Images   [][]byte `json:"images,omitempty"`
	Error    string   `json:"error,omitempty"`

	// Handler records which extraction strategy produced this result.
	Handler string `json:"handler,omitempty"`
}

// Finalize normalizes a result before it crosses the factory boundary:
// empty text with no recorded error is always reported as a partial failure.
func (r *Result) Finalize() {
	if r.Properties() == nil {
		r.Metadata.Properties = map[string]string{}
	}
	if r.Tables == nil {
		r.Tables = []Table{}
	}
	if r.Text == "" && r.Error == "" {
		r.Error = "extraction produced no text; the document may be empty or this environment cannot read it"
	}
}

// Properties is a nil-safe accessor for metadata properties.
func (r *Result) Properties() map[string]string {
	return r.Metadata.Properties
}

// Options control optional parts of an extraction.
type Options struct {
	IncludeImages bool
	ImageLimit    int
	ImageMinSize  int
	Pages         []int
	Language      string
}

// Handler is one extraction strategy for a document. Implementations return
// an error only for whole-handler failures; per-field failures degrade that
// field to empty inside the returned result.
type Handler interface {
	Name() string
	Process(ctx context.Context, doc *Document, opts Options) (*Result, error)
}

// ExtractText runs a handler and returns only the text field.
func ExtractText(ctx context.Context, h Handler, doc *Document, opts Options) (string, error) {
	res, err := h.Process(ctx, doc, opts)
	if err != nil {
		return "", err
	}
	return res.Text, nil
}

// ExtractMetadata runs a handler and returns only the metadata field.
func ExtractMetadata(ctx context.Context, h Handler, doc *Document, opts Options) (Metadata, error) {
	res, err := h.Process(ctx, doc, opts)
	if err != nil {
		return Metadata{}, err
	}
	return res.Metadata, nil
}

// ExtractTables runs a handler and returns only the tables field.
func ExtractTables(ctx context.Context, h Handler, doc *Document, opts Options) ([]Table, error) {
	res, err := h.Process(ctx, doc, opts)
	if err != nil {
		return nil, err
	}
	return res.Tables, nil
}

// ExtractImages runs a handler and returns only the images field.
func ExtractImages(ctx context.Context, h Handler, doc *Document, opts Options) ([][]byte, error) {
	opts.IncludeImages = true
	res, err := h.Process(ctx, doc, opts)
	if err != nil {
		return nil, err
	}
	return res.Images, nil
}
