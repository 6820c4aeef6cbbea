// Package extract re-derives searchable content from stored documents: it
// reads text out of the stored bytes, computes metadata, writes the metadata
// sidecar and ingests chunks into an index resource.
package extract

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"docindex-platform/utils"
)

// maxContentSize caps in-memory extraction.
const maxContentSize = 200 << 20

var ErrOutsideStorage = errors.New("content location escapes storage root")

// Storage resolves content locations against a local root directory.
type Storage struct {
	root string
}

func NewStorage(root string) *Storage {
	return &Storage{root: root}
}

// Path maps a stored location to a file path under the root.
func (s *Storage) Path(location string) (string, error) {
	clean := filepath.Clean("/" + filepath.ToSlash(location))
	p := filepath.Join(s.root, clean)
	rel, err := filepath.Rel(s.root, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrOutsideStorage, location)
	}
	return p, nil
}

func (s *Storage) ReadFile(ctx context.Context, location string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := s.Path(location)
	if err != nil {
		return nil, err
	}
	stat, err := os.Stat(p)
	if err != nil {
		return nil, err
	}
	if stat.Size() > maxContentSize {
		return nil, fmt.Errorf("%s too large for in-memory extraction", location)
	}
	return os.ReadFile(p)
}

// WriteFile replaces location atomically.
func (s *Storage) WriteFile(ctx context.Context, location string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := s.Path(location)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(p), ".sidecar-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), p)
}

// TextReader turns stored bytes into plain text.
type TextReader struct {
	storage *Storage
}

func NewTextReader(storage *Storage) *TextReader {
	return &TextReader{storage: storage}
}

func (r *TextReader) ReadText(ctx context.Context, location string) (string, error) {
	data, err := r.storage.ReadFile(ctx, location)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", location, err)
	}
	return DecodeText(location, data)
}

// DecodeText picks a decoder from the name's extension. Compressed names
// (".br", ".gz", ".zz") are unwrapped first and decoded by their inner
// extension.
func DecodeText(name string, data []byte) (string, error) {
	alg, inner := utils.AlgorithmForName(name)
	if alg != utils.CompressionNone {
		raw, err := utils.DecompressData(data, alg)
		if err != nil {
			return "", err
		}
		return DecodeText(inner, raw)
	}

	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return pdfText(data)
	case ".xlsx":
		return xlsxText(data)
	case ".html", ".htm":
		return htmlText(data)
	default:
		return plainText(data), nil
	}
}

func plainText(data []byte) string {
	data = trimBOM(data)
	if utf8.Valid(data) {
		return string(data)
	}
	return strings.ToValidUTF8(string(data), "�")
}

func trimBOM(data []byte) []byte {
	if len(data) >= 3 && data[0] == 0xEF && data[1] == 0xBB && data[2] == 0xBF {
		return data[3:]
	}
	return data
}
