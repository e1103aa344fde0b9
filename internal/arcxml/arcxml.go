// Package arcxml extracts content from the zip+XML document format by
// walking its XML parts directly. Always available, no native dependency.
package arcxml

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/doculab/extract/constants"
	"github.com/doculab/extract/internal/common"
	"github.com/doculab/extract/internal/document"
)

var sectionEntryRe = regexp.MustCompile("^" + constants.SectionEntryPrefix + `(\d+)\.xml$`)

// Parser walks section XML parts for text and tables, the binary-data
// directory for images, and the header part for metadata.
type Parser struct {
	logger *slog.Logger
}

func NewParser(logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{logger: logger}
}

func (p *Parser) Name() string { return "archive-xml" }

func (p *Parser) Process(ctx context.Context, doc *document.Document, opts document.Options) (*document.Result, error) {
	zr, err := zip.NewReader(bytes.NewReader(doc.Raw), int64(len(doc.Raw)))
	if err != nil {
		return nil, fmt.Errorf("%w: open archive: %w", common.ErrParseFailure, err)
	}

	sections := orderedSections(zr)

	var textParts []string
	var tables []document.Table
	for _, sec := range sections {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		text, secTables, err := p.parseSection(sec)
		if err != nil {
			p.logger.Warn("arcxml.section_parse_failed", "entry", sec.Name, "error", err)
			continue
		}
		if text != "" {
			textParts = append(textParts, text)
		}
		tables = append(tables, secTables...)
	}

	meta := p.parseHeader(zr)
	meta.PageCount = len(sections)
	if meta.PageCount < 1 {
		meta.PageCount = 1
	}

	res := &document.Result{
		Text:     strings.Join(textParts, "\n"),
		Metadata: meta,
		Tables:   tables,
		Handler:  p.Name(),
	}
	if opts.IncludeImages {
		res.Images = p.extractImages(zr, opts)
	}
	if res.Text == "" && len(res.Tables) == 0 {
		return nil, fmt.Errorf("%w: no content parts found in archive", common.ErrParseFailure)
	}
	return res, nil
}

// orderedSections returns the section entries in ascending numeric order.
// Concatenated section text must reproduce document order regardless of how
// the archive happens to list its entries.
func orderedSections(zr *zip.Reader) []*zip.File {
	type indexed struct {
		n int
		f *zip.File
	}
	var found []indexed
	for _, f := range zr.File {
		m := sectionEntryRe.FindStringSubmatch(f.Name)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		found = append(found, indexed{n: n, f: f})
	}
	sort.Slice(found, func(i, j int) bool { return found[i].n < found[j].n })
	out := make([]*zip.File, len(found))
	for i, s := range found {
		out[i] = s.f
	}
	return out
}

func (p *Parser) parseSection(f *zip.File) (string, []document.Table, error) {
	rc, err := f.Open()
	if err != nil {
		return "", nil, err
	}
	defer rc.Close()
	return parseSectionXML(rc)
}

// parseSectionXML streams one section part, collecting paragraph text and
// table/row/cell structures in a single token walk. Content of tables
// nested inside cells folds into the enclosing cell's text.
func parseSectionXML(r io.Reader) (string, []document.Table, error) {
	dec := xml.NewDecoder(r)

	var (
		textParts  []string
		tables     []document.Table
		table      document.Table
		row        []string
		cell       strings.Builder
		tableDepth int
		inCell     bool
		inText     bool
	)

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "table", "tbl":
				tableDepth++
				if tableDepth == 1 {
					table = document.Table{}
				}
			case "tr":
				if tableDepth == 1 {
					row = []string{}
				}
			case "td", "tc":
				if tableDepth == 1 {
					inCell = true
					cell.Reset()
				}
			case "t":
				if t.Name.Space == constants.NSParagraph || t.Name.Space == "" {
					inText = true
				}
			}
		case xml.CharData:
			if !inText {
				continue
			}
			s := string(t)
			if inCell {
				cell.WriteString(s)
			} else if s = strings.TrimSpace(s); s != "" {
				textParts = append(textParts, s)
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if inCell {
					cell.WriteString("\n")
				}
			case "td", "tc":
				if tableDepth == 1 && inCell {
					row = append(row, strings.TrimSpace(cell.String()))
					inCell = false
				}
			case "tr":
				if tableDepth == 1 && len(row) > 0 {
					table = append(table, row)
					row = nil
				}
			case "table", "tbl":
				if tableDepth == 1 && len(table) > 0 {
					tables = append(tables, table)
					table = nil
				}
				if tableDepth > 0 {
					tableDepth--
				}
			}
		}
	}

	return strings.Join(textParts, "\n"), tables, nil
}

// parseHeader maps the docsummary elements of the header part into metadata
// properties. Absence of the part or of any element is not an error.
func (p *Parser) parseHeader(zr *zip.Reader) document.Metadata {
	meta := document.Metadata{Properties: map[string]string{}}

	f, err := findEntry(zr, constants.HeaderEntry)
	if err != nil {
		return meta
	}
	rc, err := f.Open()
	if err != nil {
		return meta
	}
	defer rc.Close()

	wanted := map[string]string{
		"title":       "title",
		"author":      "author",
		"date":        "created",
		"description": "description",
	}

	dec := xml.NewDecoder(rc)
	var current string
	for {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if key, ok := wanted[t.Name.Local]; ok && (t.Name.Space == constants.NSHead || t.Name.Space == "") {
				current = key
			}
		case xml.CharData:
			if current == "" {
				continue
			}
			if v := strings.TrimSpace(string(t)); v != "" {
				meta.Properties[current] = v
			}
		case xml.EndElement:
			current = ""
		}
	}
	return meta
}

// extractImages scans the binary-data directory, keeping entries that carry
// a known raster signature or are large enough to be a vector blob.
func (p *Parser) extractImages(zr *zip.Reader, opts document.Options) [][]byte {
	limit := opts.ImageLimit
	if limit <= 0 {
		limit = 10
	}
	minSize := opts.ImageMinSize
	if minSize <= 0 {
		minSize = 100
	}

	var images [][]byte
	for _, f := range zr.File {
		if len(images) >= limit {
			break
		}
		if !strings.HasPrefix(f.Name, constants.BinDataPrefix) || strings.HasSuffix(f.Name, "/") {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			p.logger.Warn("arcxml.bindata_open_failed", "entry", f.Name, "error", err)
			continue
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			p.logger.Warn("arcxml.bindata_read_failed", "entry", f.Name, "error", err)
			continue
		}
		if isImageBlob(data, minSize) {
			images = append(images, data)
		}
	}
	return images
}

// isImageBlob recognizes JPEG, PNG, GIF and BMP by signature; anything else
// is kept only when big enough to plausibly be an unrecognized vector format.
func isImageBlob(data []byte, minSize int) bool {
	switch {
	case bytes.HasPrefix(data, []byte{0xFF, 0xD8}):
		return true
	case bytes.HasPrefix(data, []byte{0x89, 0x50, 0x4E, 0x47}):
		return true
	case bytes.HasPrefix(data, []byte("GIF")):
		return true
	case bytes.HasPrefix(data, []byte("BM")):
		return true
	default:
		return len(data) > minSize
	}
}

func findEntry(zr *zip.Reader, name string) (*zip.File, error) {
	for _, f := range zr.File {
		if f.Name == name {
			return f, nil
		}
	}
	return nil, fmt.Errorf("entry %q not found", name)
}
