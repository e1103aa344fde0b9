package arcxml

import (
	"archive/zip"
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doculab/extract/internal/common"
	"github.com/doculab/extract/internal/document"
)

func buildArchive(t *testing.T, entries map[string][]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, data := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func section(body string) []byte {
	return []byte(`<?xml version="1.0"?><sec xmlns="http://www.hancom.co.kr/hwpml/2011/paragraph">` + body + `</sec>`)
}

func TestSectionsConcatenateInNumericOrder(t *testing.T) {
	// Entries written out of order on purpose.
	raw := buildArchive(t, map[string][]byte{
		"Contents/section1.xml": section(`<p><t>Body</t></p>`),
		"Contents/section0.xml": section(`<p><t>Intro</t></p>`),
	})

	p := NewParser(nil)
	doc := document.New("doc.hwpx", raw)
	res, err := p.Process(context.Background(), doc, document.Options{})
	require.NoError(t, err)

	assert.Equal(t, "Intro\nBody", res.Text)
	assert.Equal(t, 2, res.Metadata.PageCount)
}

func TestSectionOrderingHandlesDoubleDigits(t *testing.T) {
	entries := map[string][]byte{}
	entries["Contents/section10.xml"] = section(`<p><t>ten</t></p>`)
	entries["Contents/section2.xml"] = section(`<p><t>two</t></p>`)
	raw := buildArchive(t, entries)

	p := NewParser(nil)
	res, err := p.Process(context.Background(), document.New("doc.hwpx", raw), document.Options{})
	require.NoError(t, err)
	assert.Equal(t, "two\nten", res.Text)
}

func TestTableParsing(t *testing.T) {
	body := `<p><t>before</t></p>` +
		`<table><tr><td><p><t>A</t></p></td><td><p><t>B</t></p></td></tr>` +
		`<tr><td><p><t>C</t></p></td><td><p><t>D</t></p></td></tr></table>`
	raw := buildArchive(t, map[string][]byte{
		"Contents/section0.xml": section(body),
	})

	p := NewParser(nil)
	res, err := p.Process(context.Background(), document.New("doc.hwpx", raw), document.Options{})
	require.NoError(t, err)

	require.Len(t, res.Tables, 1)
	assert.Equal(t, document.Table{{"A", "B"}, {"C", "D"}}, res.Tables[0])
	assert.Equal(t, "before", res.Text)
}

func TestNestedTableFoldsIntoCell(t *testing.T) {
	body := `<table><tr><td><p><t>outer</t></p>` +
		`<table><tr><td><p><t>inner</t></p></td></tr></table>` +
		`</td></tr></table>`
	raw := buildArchive(t, map[string][]byte{
		"Contents/section0.xml": section(body),
	})

	p := NewParser(nil)
	res, err := p.Process(context.Background(), document.New("doc.hwpx", raw), document.Options{})
	require.NoError(t, err)

	require.Len(t, res.Tables, 1, "nested table must not become a sibling table")
	require.Len(t, res.Tables[0], 1)
	assert.Contains(t, res.Tables[0][0][0], "outer")
	assert.Contains(t, res.Tables[0][0][0], "inner")
}

func TestHeaderMetadata(t *testing.T) {
	header := []byte(`<?xml version="1.0"?><head xmlns="http://www.hancom.co.kr/hwpml/2011/head">` +
		`<docsummary><title>Quarterly Report</title><author>Kim</author>` +
		`<date>2024-01-15</date></docsummary></head>`)
	raw := buildArchive(t, map[string][]byte{
		"Contents/header.xml":   header,
		"Contents/section0.xml": section(`<p><t>text</t></p>`),
	})

	p := NewParser(nil)
	res, err := p.Process(context.Background(), document.New("doc.hwpx", raw), document.Options{})
	require.NoError(t, err)

	assert.Equal(t, "Quarterly Report", res.Metadata.Properties["title"])
	assert.Equal(t, "Kim", res.Metadata.Properties["author"])
	assert.Equal(t, "2024-01-15", res.Metadata.Properties["created"])
}

func TestEmptyArchiveIsAnError(t *testing.T) {
	raw := buildArchive(t, map[string][]byte{
		"Contents/section0.xml": section(``),
	})

	p := NewParser(nil)
	_, err := p.Process(context.Background(), document.New("doc.hwpx", raw), document.Options{})
	assert.ErrorIs(t, err, common.ErrParseFailure)
}

func TestExtractImages(t *testing.T) {
	png := append([]byte{0x89, 0x50, 0x4E, 0x47}, bytes.Repeat([]byte{0}, 20)...)
	tiny := []byte{0x01, 0x02}
	raw := buildArchive(t, map[string][]byte{
		"Contents/section0.xml": section(`<p><t>text</t></p>`),
		"BinData/image1.png":    png,
		"BinData/blob.bin":      tiny,
	})

	p := NewParser(nil)
	res, err := p.Process(context.Background(), document.New("doc.hwpx", raw),
		document.Options{IncludeImages: true, ImageMinSize: 50})
	require.NoError(t, err)

	// The PNG is kept by signature; the tiny unknown blob is filtered by size.
	require.Len(t, res.Images, 1)
	assert.Equal(t, png, res.Images[0])
}

func TestImagesSkippedWithoutOptIn(t *testing.T) {
	png := append([]byte{0x89, 0x50, 0x4E, 0x47}, bytes.Repeat([]byte{0}, 20)...)
	raw := buildArchive(t, map[string][]byte{
		"Contents/section0.xml": section(`<p><t>text</t></p>`),
		"BinData/image1.png":    png,
	})

	p := NewParser(nil)
	res, err := p.Process(context.Background(), document.New("doc.hwpx", raw), document.Options{})
	require.NoError(t, err)
	assert.Empty(t, res.Images)
}

func TestIsImageBlob(t *testing.T) {
	assert.True(t, isImageBlob([]byte{0xFF, 0xD8, 0xFF}, 100))
	assert.True(t, isImageBlob([]byte("GIF89a"), 100))
	assert.True(t, isImageBlob([]byte("BM1234"), 100))
	assert.True(t, isImageBlob(bytes.Repeat([]byte{0x7}, 101), 100))
	assert.False(t, isImageBlob([]byte{0x7}, 100))
}
