package native

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doculab/extract/internal/common"
	"github.com/doculab/extract/internal/document"
)

type fakeSession struct {
	text      string
	textErr   error
	pages     int
	fields    map[string]string
	tables    []document.Table
	tablesErr error
	openErr   error
	closed    bool
}

func (s *fakeSession) Open(_ context.Context, _ string) error { return s.openErr }
func (s *fakeSession) ExportText(context.Context) (string, error) {
	return s.text, s.textErr
}
func (s *fakeSession) PageCount(context.Context) (int, error) { return s.pages, nil }
func (s *fakeSession) FieldText(_ context.Context, field string) (string, error) {
	return s.fields[field], nil
}
func (s *fakeSession) Tables(context.Context) ([]document.Table, error) {
	return s.tables, s.tablesErr
}
func (s *fakeSession) ExportImages(context.Context, string) ([]string, error) {
	return nil, errors.New("no images")
}
func (s *fakeSession) Close(context.Context) error {
	s.closed = true
	return nil
}

type fakeLauncher struct {
	sess *fakeSession
	err  error
}

func (l *fakeLauncher) Available() bool { return true }
func (l *fakeLauncher) NewSession() (Session, error) {
	if l.err != nil {
		return nil, l.err
	}
	return l.sess, nil
}

func TestProcessCollectsAllFields(t *testing.T) {
	sess := &fakeSession{
		text:   "full fidelity text",
		pages:  4,
		fields: map[string]string{"title": "My Doc", "author": "Lee"},
		tables: []document.Table{{{"a"}}},
	}
	h := NewHandler(&fakeLauncher{sess: sess}, nil)
	doc := document.New("doc.hwp", []byte("raw bytes"))

	res, err := h.Process(context.Background(), doc, document.Options{})
	require.NoError(t, err)

	assert.Equal(t, "full fidelity text", res.Text)
	assert.Equal(t, 4, res.Metadata.PageCount)
	assert.Equal(t, "My Doc", res.Metadata.Properties["title"])
	assert.Equal(t, "Lee", res.Metadata.Properties["author"])
	assert.Len(t, res.Tables, 1)
	assert.True(t, sess.closed, "session must be closed")
}

func TestProcessDegradesPerField(t *testing.T) {
	sess := &fakeSession{
		text:      "text survives",
		tablesErr: errors.New("table scan crashed"),
	}
	h := NewHandler(&fakeLauncher{sess: sess}, nil)
	doc := document.New("doc.hwp", []byte("raw"))

	res, err := h.Process(context.Background(), doc, document.Options{})
	require.NoError(t, err)
	assert.Equal(t, "text survives", res.Text)
	assert.Empty(t, res.Tables)
}

func TestProcessOpenFailurePropagates(t *testing.T) {
	sess := &fakeSession{openErr: errors.New("file locked")}
	h := NewHandler(&fakeLauncher{sess: sess}, nil)
	doc := document.New("doc.hwp", []byte("raw"))

	_, err := h.Process(context.Background(), doc, document.Options{})
	require.Error(t, err)
	assert.True(t, sess.closed, "session must be closed even on open failure")
}

func TestProcessEmptyTextIsAnError(t *testing.T) {
	sess := &fakeSession{textErr: errors.New("export crashed")}
	h := NewHandler(&fakeLauncher{sess: sess}, nil)
	doc := document.New("doc.hwp", []byte("raw"))

	_, err := h.Process(context.Background(), doc, document.Options{})
	assert.Error(t, err)
}

func TestProcessSessionStartFailurePropagates(t *testing.T) {
	h := NewHandler(&fakeLauncher{err: errors.New("bridge missing")}, nil)
	doc := document.New("doc.hwp", []byte("raw"))

	_, err := h.Process(context.Background(), doc, document.Options{})
	assert.ErrorIs(t, err, common.ErrNativeUnavailable)
}

type scriptRunner struct {
	outputs map[string][]byte
	calls   [][]string
}

func (r *scriptRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	r.calls = append(r.calls, append([]string{name}, args...))
	if out, ok := r.outputs[args[0]]; ok {
		return out, nil, nil
	}
	return nil, nil, nil
}

func TestBridgeSessionParsesOutputs(t *testing.T) {
	runner := &scriptRunner{outputs: map[string][]byte{
		"text":      []byte("bridge text"),
		"pagecount": []byte("7\n"),
		"field":     []byte("The Title\n"),
		"tables":    []byte(`[[["a","b"],["c","d"]]]`),
	}}
	sess := &bridgeSession{bin: "hwpauto", runner: runner}
	ctx := context.Background()

	require.NoError(t, sess.Open(ctx, "/tmp/doc.hwp"))

	text, err := sess.ExportText(ctx)
	require.NoError(t, err)
	assert.Equal(t, "bridge text", text)

	pages, err := sess.PageCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7, pages)

	title, err := sess.FieldText(ctx, "title")
	require.NoError(t, err)
	assert.Equal(t, "The Title", title)

	tables, err := sess.Tables(ctx)
	require.NoError(t, err)
	require.Len(t, tables, 1)
	assert.Equal(t, document.Table{{"a", "b"}, {"c", "d"}}, tables[0])
}
