package utils

import (
	"bytes"
	"compress/gzip"
	"compress/zlib"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/andybalholm/brotli"
)

// CompressionAlgorithm defines supported compression methods
type CompressionAlgorithm string

const (
	CompressionNone   CompressionAlgorithm = "none"
	CompressionGzip   CompressionAlgorithm = "gzip"
	CompressionZlib   CompressionAlgorithm = "zlib"
	CompressionBrotli CompressionAlgorithm = "brotli"
)

// AlgorithmForName infers the compression of a stored object from its
// extension and returns the name without that extension.
func AlgorithmForName(name string) (CompressionAlgorithm, string) {
	ext := strings.ToLower(filepath.Ext(name))
	switch ext {
	case ".gz":
		return CompressionGzip, strings.TrimSuffix(name, filepath.Ext(name))
	case ".zz":
		return CompressionZlib, strings.TrimSuffix(name, filepath.Ext(name))
	case ".br":
		return CompressionBrotli, strings.TrimSuffix(name, filepath.Ext(name))
	default:
		return CompressionNone, name
	}
}

// CompressData compresses data using the specified algorithm
func CompressData(data []byte, algorithm CompressionAlgorithm) ([]byte, error) {
	if len(data) == 0 {
		return data, nil
	}

	var (
		buf    bytes.Buffer
		writer io.WriteCloser
	)
	switch algorithm {
	case CompressionNone:
		return data, nil
	case CompressionGzip:
		writer = gzip.NewWriter(&buf)
	case CompressionZlib:
		writer = zlib.NewWriter(&buf)
	case CompressionBrotli:
		writer = brotli.NewWriterLevel(&buf, brotli.DefaultCompression)
	default:
		return nil, fmt.Errorf("unsupported compression algorithm: %s", algorithm)
	}

	if _, err := writer.Write(data); err != nil {
		return nil, fmt.Errorf("failed to write to %s writer: %w", algorithm, err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close %s writer: %w", algorithm, err)
	}
	return buf.Bytes(), nil
}

// DecompressData decompresses data using the specified algorithm
func DecompressData(compressed []byte, algorithm CompressionAlgorithm) ([]byte, error) {
	if len(compressed) == 0 {
		return compressed, nil
	}

	switch algorithm {
	case CompressionNone:
		return compressed, nil

	case CompressionGzip:
		reader, err := gzip.NewReader(bytes.NewReader(compressed))
		if err != nil {
			return nil, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		defer reader.Close()
		return readAll(reader, algorithm)

	case CompressionZlib:
		reader, err := zlib.NewReader(bytes.NewReader(compressed))
		if err != nil {
			return nil, fmt.Errorf("failed to create zlib reader: %w", err)
		}
		defer reader.Close()
		return readAll(reader, algorithm)

	case CompressionBrotli:
		return readAll(brotli.NewReader(bytes.NewReader(compressed)), algorithm)

	default:
		return nil, fmt.Errorf("unsupported compression algorithm: %s", algorithm)
	}
}

func readAll(r io.Reader, algorithm CompressionAlgorithm) ([]byte, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read from %s reader: %w", algorithm, err)
	}
	return data, nil
}
