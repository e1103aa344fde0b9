package remote

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doculab/extract/internal/document"
	"github.com/doculab/extract/internal/resilient"
)

func TestReconstructTableHonorsSpans(t *testing.T) {
	cells := []ocrCell{
		{Row: 0, Col: 0, Content: "A", RowSpan: 2, ColSpan: 1},
		{Row: 0, Col: 1, Content: "B"},
		{Row: 1, Col: 1, Content: "C"},
	}
	grid := ReconstructTable(cells)
	assert.Equal(t, document.Table{{"A", "B"}, {"A", "C"}}, grid)
}

func TestReconstructTableColSpanReplicates(t *testing.T) {
	cells := []ocrCell{
		{Row: 0, Col: 0, Content: "wide", ColSpan: 3},
		{Row: 1, Col: 0, Content: "a"},
		{Row: 1, Col: 1, Content: "b"},
		{Row: 1, Col: 2, Content: "c"},
	}
	grid := ReconstructTable(cells)
	assert.Equal(t, document.Table{{"wide", "wide", "wide"}, {"a", "b", "c"}}, grid)
}

func TestReconstructTableEmpty(t *testing.T) {
	assert.Nil(t, ReconstructTable(nil))
}

func TestReconstructTableDropsNegativeCoordinates(t *testing.T) {
	cells := []ocrCell{
		{Row: -1, Col: 0, Content: "bad row"},
		{Row: 0, Col: -3, Content: "bad col"},
		{Row: 0, Col: 0, Content: "ok"},
	}
	grid := ReconstructTable(cells)
	assert.Equal(t, document.Table{{"ok"}}, grid)

	assert.Nil(t, ReconstructTable([]ocrCell{{Row: -1, Col: -1, Content: "x"}}),
		"a table made only of unplaceable cells yields nothing")
}

func TestValidateResponse(t *testing.T) {
	assert.NoError(t, validateResponse([]byte(`{"pages":[{"index":0,"content":"x"}]}`)))
	assert.Error(t, validateResponse([]byte(`{"metadata":{}}`)), "missing pages is rejected")
	assert.Error(t, validateResponse([]byte(`{"pages":"nope"}`)))
	assert.Error(t, validateResponse([]byte(`not json`)))
}

func newTestHandler(t *testing.T, url string) *Handler {
	t.Helper()
	cache, err := resilient.NewDiskCache(t.TempDir(), time.Hour, 10, nil)
	require.NoError(t, err)
	client := resilient.NewClient(cache, nil, nil,
		resilient.WithRetryPolicy(resilient.RetryPolicy{MaxAttempts: 1, BaseDelay: time.Millisecond}))
	return NewHandler(Config{APIKey: "test-key", BaseURL: url}, client, nil, nil)
}

func TestProcessNormalizesResponse(t *testing.T) {
	var gotReq ocrRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		resp := map[string]any{
			"pages": []any{
				map[string]any{"index": 0, "content": "page one"},
				map[string]any{
					"index":    1,
					"markdown": "page two",
					"tables": []any{map[string]any{"cells": []any{
						map[string]any{"row": 0, "column": 0, "content": "X"},
					}}},
					"images": []any{map[string]any{
						"binary": base64.StdEncoding.EncodeToString([]byte{0xFF, 0xD8}),
					}},
				},
			},
			"metadata": map[string]any{"title": "Doc", "creationDate": "2024-01-01"},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	h := newTestHandler(t, srv.URL)
	doc := document.New("scan.pdf", []byte("%PDF-1.7 fake"))

	res, err := h.Process(context.Background(), doc, document.Options{IncludeImages: true})
	require.NoError(t, err)

	assert.Equal(t, "page one\n\npage two", res.Text)
	assert.Equal(t, 2, res.Metadata.PageCount)
	assert.Equal(t, "Doc", res.Metadata.Properties["title"])
	assert.Equal(t, "2024-01-01", res.Metadata.Properties["created"])
	require.Len(t, res.Tables, 1)
	assert.Equal(t, document.Table{{"X"}}, res.Tables[0])
	require.Len(t, res.Images, 1)
	assert.Equal(t, []byte{0xFF, 0xD8}, res.Images[0])

	// Request shape
	raw, err := base64.StdEncoding.DecodeString(gotReq.Document)
	require.NoError(t, err)
	assert.Equal(t, doc.Raw, raw)
	assert.True(t, gotReq.Options.ExtractTables)
	assert.True(t, gotReq.Options.ExtractImages)
}

func TestProcessRejectsSchemaViolation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"unexpected":"shape"}`))
	}))
	defer srv.Close()

	h := newTestHandler(t, srv.URL)
	doc := document.New("scan.pdf", []byte("%PDF-1.7 fake"))

	_, err := h.Process(context.Background(), doc, document.Options{})
	assert.Error(t, err)
}

func TestProcessSurvivesNegativeCellCoordinates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"pages":[{"index":0,"content":"hi","tables":[{"cells":[
			{"row":-1,"column":0,"content":"x"}]}]}]}`))
	}))
	defer srv.Close()

	h := newTestHandler(t, srv.URL)
	doc := document.New("scan.pdf", []byte("%PDF-1.7 fake"))

	res, err := h.Process(context.Background(), doc, document.Options{})
	require.NoError(t, err)
	assert.Equal(t, "hi", res.Text)
	assert.Empty(t, res.Tables)
}

func TestProcessRequiresAPIKey(t *testing.T) {
	h := NewHandler(Config{}, nil, nil, nil)
	doc := document.New("scan.pdf", []byte("%PDF-1.7 fake"))

	_, err := h.Process(context.Background(), doc, document.Options{})
	assert.Error(t, err)
}

type fakeRunner struct {
	calls   []string
	fail    bool
	produce string // file created on success, simulating the converter
}

func (f *fakeRunner) Run(_ context.Context, name string, _ ...string) ([]byte, []byte, error) {
	f.calls = append(f.calls, name)
	if f.fail {
		return nil, []byte("boom"), assert.AnError
	}
	if f.produce != "" {
		_ = os.WriteFile(f.produce, []byte("%PDF-1.7 converted"), 0o644)
	}
	return nil, nil, nil
}

func TestConverterFallsThroughOnFailure(t *testing.T) {
	c := NewConverter("", nil)
	runner := &fakeRunner{fail: true}
	c.runner = runner

	_, ok := c.ToPDF(context.Background(), "/tmp/doc.hwp")
	assert.False(t, ok)
	assert.Equal(t, []string{"hwp-converter", "unoconv", "libreoffice"}, runner.calls)
}

func TestConverterPreferredFirst(t *testing.T) {
	c := NewConverter("my-conv", nil)
	runner := &fakeRunner{fail: true}
	c.runner = runner

	_, ok := c.ToPDF(context.Background(), "/tmp/doc.hwp")
	assert.False(t, ok)
	require.NotEmpty(t, runner.calls)
	assert.Equal(t, "my-conv", runner.calls[0])
}

func TestConverterReturnsProducedPDF(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "doc.hwp")
	require.NoError(t, os.WriteFile(src, []byte("raw"), 0o644))

	c := NewConverter("", nil)
	runner := &fakeRunner{produce: filepath.Join(dir, "doc_converted.pdf")}
	c.runner = runner

	pdf, ok := c.ToPDF(context.Background(), src)
	require.True(t, ok)
	assert.Equal(t, runner.produce, pdf)
	assert.Equal(t, []string{"hwp-converter"}, runner.calls, "first successful converter wins")
}
