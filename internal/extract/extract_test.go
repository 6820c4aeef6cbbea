package extract

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"docindex-platform/models"
	"docindex-platform/utils"
)

func writeStored(t *testing.T, root, location string, data []byte) {
	t.Helper()
	p := filepath.Join(root, location)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
	require.NoError(t, os.WriteFile(p, data, 0644))
}

func TestStoragePathRejectsEscapes(t *testing.T) {
	s := NewStorage(t.TempDir())

	_, err := s.Path("docs/a.txt")
	require.NoError(t, err)

	// Leading ".." is clamped to the root rather than escaping it.
	p, err := s.Path("../../etc/passwd")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(p, s.root))
}

func TestDecodePlainText(t *testing.T) {
	text, err := DecodeText("notes.txt", []byte("\xEF\xBB\xBFhello world"))
	require.NoError(t, err)
	assert.Equal(t, "hello world", text)
}

func TestDecodeInvalidUTF8IsRepaired(t *testing.T) {
	text, err := DecodeText("notes.txt", []byte{'o', 'k', 0xff})
	require.NoError(t, err)
	assert.Equal(t, "ok�", text)
}

func TestDecodeHTML(t *testing.T) {
	page := `<html><head><title>Release notes</title><style>p{}</style></head>
<body><script>var x = 1;</script><h1>Version 2</h1><p>Faster   ingest.</p>
<ul><li>Fixed <b>sidecars</b></li></ul></body></html>`
	text, err := DecodeText("page.html", []byte(page))
	require.NoError(t, err)
	assert.Equal(t, "Release notes\nVersion 2\nFaster ingest.\nFixed sidecars", text)
	assert.NotContains(t, text, "var x")
}

func TestDecodeHTMLWithoutBlocks(t *testing.T) {
	text, err := DecodeText("page.htm", []byte(`<html><body>just   text</body></html>`))
	require.NoError(t, err)
	assert.Equal(t, "just text", text)
}

func TestDecodeCompressed(t *testing.T) {
	br, err := utils.CompressData([]byte("<p>inside brotli</p>"), utils.CompressionBrotli)
	require.NoError(t, err)
	text, err := DecodeText("page.html.br", br)
	require.NoError(t, err)
	assert.Equal(t, "inside brotli", text)

	gz, err := utils.CompressData([]byte("plain gz"), utils.CompressionGzip)
	require.NoError(t, err)
	text, err = DecodeText("notes.txt.gz", gz)
	require.NoError(t, err)
	assert.Equal(t, "plain gz", text)
}

func TestDecodeXLSX(t *testing.T) {
	f := excelize.NewFile()
	require.NoError(t, f.SetCellValue("Sheet1", "A1", "sku"))
	require.NoError(t, f.SetCellValue("Sheet1", "B1", "qty"))
	require.NoError(t, f.SetCellValue("Sheet1", "A2", "X-1"))
	require.NoError(t, f.SetCellValue("Sheet1", "B2", 4))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	require.NoError(t, f.Close())

	text, err := DecodeText("stock.xlsx", buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "# Sheet1\nsku\tqty\nX-1\t4", text)
}

func TestDecodeBrokenPDF(t *testing.T) {
	_, err := DecodeText("broken.pdf", []byte("not a pdf"))
	assert.Error(t, err)
}

func TestChunkText(t *testing.T) {
	assert.Empty(t, ChunkText("", 10, 2))
	assert.Empty(t, ChunkText("   \n ", 10, 2))
	assert.Equal(t, []string{"abcde", "defgh", "ghij"}, ChunkText("abcdefghij", 5, 2))
	assert.Equal(t, []string{"abc"}, ChunkText("abc", 5, 2))

	// Overlap >= size falls back to no overlap instead of looping forever.
	assert.Equal(t, []string{"ab", "cd"}, ChunkText("abcd", 2, 5))

	// Splits on runes, never inside a multi-byte character.
	for _, c := range ChunkText("日本語のテキスト", 3, 1) {
		assert.LessOrEqual(t, len([]rune(c)), 3)
	}
}

func TestHeuristicExtractor(t *testing.T) {
	text := "Quarterly Report\n\nRevenue grew. Revenue targets met. Margins improved, margins held."
	md, err := NewHeuristicExtractor().Extract(context.Background(), "doc-1", text)
	require.NoError(t, err)

	assert.Equal(t, "Quarterly Report", md["title"])
	assert.Equal(t, 11, md["word_count"])
	assert.Equal(t, []string{"margins", "revenue", "grew", "held", "improved", "quarterly", "report", "targets"}, md["keywords"])
	assert.Equal(t, "heuristic", md["extractor"])
}

func TestHeuristicExtractorHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewHeuristicExtractor().Extract(ctx, "doc-1", "text")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStripFence(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripFence("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripFence(` {"a":1} `))
}

func TestSidecarRoundTrip(t *testing.T) {
	storage := NewStorage(t.TempDir())
	sidecars := NewSidecarStore(storage)

	loc, err := sidecars.Write(context.Background(), "docs/a.pdf", map[string]any{"title": "A"})
	require.NoError(t, err)
	assert.Equal(t, "docs/a.pdf.metadata.json", loc)

	sc, err := sidecars.Read(context.Background(), loc)
	require.NoError(t, err)
	assert.Equal(t, "docs/a.pdf", sc.ContentLocation)
	assert.Equal(t, "A", sc.Metadata["title"])
}

type fakeWriter struct {
	resourceID string
	location   string
	chunks     []models.Chunk
	err        error
}

func (f *fakeWriter) ReplaceChunks(_ context.Context, resourceID, contentLocation string, chunks []models.Chunk) error {
	f.resourceID, f.location, f.chunks = resourceID, contentLocation, chunks
	return f.err
}

type fakeEmbedder struct {
	err error
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t))}
	}
	return out, nil
}

func newTestIngester(t *testing.T, writer ChunkWriter, embedder Embedder) (*Ingester, *SidecarStore, string) {
	t.Helper()
	root := t.TempDir()
	storage := NewStorage(root)
	sidecars := NewSidecarStore(storage)
	in := NewIngester(NewTextReader(storage), sidecars, writer, embedder, IngestOptions{ChunkSize: 10, Overlap: 0})
	return in, sidecars, root
}

func TestIngestWritesChunksWithMetadataAndVectors(t *testing.T) {
	writer := &fakeWriter{}
	in, sidecars, root := newTestIngester(t, writer, &fakeEmbedder{})
	writeStored(t, root, "docs/a.txt", []byte("0123456789abcdefghij"))
	sc, err := sidecars.Write(context.Background(), "docs/a.txt", map[string]any{"title": "A"})
	require.NoError(t, err)

	status, err := in.Ingest(context.Background(), "idx-1", "ds-1", "docs/a.txt", sc)
	require.NoError(t, err)
	assert.Equal(t, StatusIndexed, status)

	assert.Equal(t, "idx-1", writer.resourceID)
	require.Len(t, writer.chunks, 2)
	for i, ch := range writer.chunks {
		assert.Equal(t, i, ch.Order)
		assert.Equal(t, "ds-1", ch.DataSourceID)
		assert.Equal(t, "A", ch.Metadata["title"])
		assert.Equal(t, []float32{10}, ch.Vector)
	}
}

func TestIngestEmptyContentClearsChunks(t *testing.T) {
	writer := &fakeWriter{}
	in, _, root := newTestIngester(t, writer, nil)
	writeStored(t, root, "docs/empty.txt", []byte("  "))

	status, err := in.Ingest(context.Background(), "idx-1", "ds-1", "docs/empty.txt", "")
	require.NoError(t, err)
	assert.Equal(t, StatusEmpty, status)
	assert.Empty(t, writer.chunks)
	assert.Equal(t, "docs/empty.txt", writer.location)
}

func TestIngestFailures(t *testing.T) {
	t.Run("missing sidecar", func(t *testing.T) {
		in, _, root := newTestIngester(t, &fakeWriter{}, nil)
		writeStored(t, root, "a.txt", []byte("text"))
		_, err := in.Ingest(context.Background(), "idx-1", "ds-1", "a.txt", "a.txt.metadata.json")
		assert.ErrorContains(t, err, "read sidecar")
	})
	t.Run("embedding", func(t *testing.T) {
		in, _, root := newTestIngester(t, &fakeWriter{}, &fakeEmbedder{err: errors.New("quota")})
		writeStored(t, root, "a.txt", []byte("text"))
		_, err := in.Ingest(context.Background(), "idx-1", "ds-1", "a.txt", "")
		assert.ErrorContains(t, err, "embed chunks: quota")
	})
	t.Run("writer", func(t *testing.T) {
		in, _, root := newTestIngester(t, &fakeWriter{err: errors.New("bulk write")}, nil)
		writeStored(t, root, "a.txt", []byte("text"))
		_, err := in.Ingest(context.Background(), "idx-1", "ds-1", "a.txt", "")
		assert.ErrorContains(t, err, "bulk write")
	})
}

func TestReextractorExtractMetadataTagsSource(t *testing.T) {
	root := t.TempDir()
	storage := NewStorage(root)
	reader := NewTextReader(storage)
	writeStored(t, root, "docs/a.txt", []byte("Title line\nbody"))

	r := NewReextractor(reader, NewHeuristicExtractor(), NewSidecarStore(storage), nil)
	md, err := r.ExtractMetadata(context.Background(), "docs/a.txt", "doc-9")
	require.NoError(t, err)
	assert.Equal(t, "doc-9", md["document_id"])
	assert.Equal(t, "docs/a.txt", md["source_location"])
	assert.Equal(t, "Title line", md["title"])

	_, err = r.ReadText(context.Background(), "docs/missing.txt")
	assert.Error(t, err)
}
