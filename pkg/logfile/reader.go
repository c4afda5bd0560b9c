// Package logfile reads application log files in several container formats
// (LZMA/XZ, gzip, zip, plain text) and provides pattern search with context.
// No state is retained across calls.
package logfile

import (
	"archive/zip"
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ulikunitz/xz"
	"github.com/ulikunitz/xz/lzma"
)

// maxDecompressedSize caps how much a single file may decompress to, as a
// guard against decompression bombs in user-supplied archives.
const maxDecompressedSize = 512 << 20 // 512 MiB

// ReadFullContent opens path, decompresses it according to its extension,
// and returns the complete content as a string. Zip archives concatenate
// every member whose name ends with ".log".
func ReadFullContent(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xz":
		return readCompressed(path, func(r io.Reader) (io.Reader, error) {
			return xz.NewReader(r)
		})
	case ".lzma":
		return readCompressed(path, func(r io.Reader) (io.Reader, error) {
			return lzma.NewReader(r)
		})
	case ".gz":
		return readCompressed(path, func(r io.Reader) (io.Reader, error) {
			return gzip.NewReader(r)
		})
	case ".zip":
		return readZipLogs(path)
	default:
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("failed to read log file %s: %w", path, err)
		}
		return string(data), nil
	}
}

func readCompressed(path string, wrap func(io.Reader) (io.Reader, error)) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open log file %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	r, err := wrap(f)
	if err != nil {
		return "", fmt.Errorf("failed to open decompressor for %s: %w", path, err)
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, io.LimitReader(r, maxDecompressedSize)); err != nil {
		return "", fmt.Errorf("failed to decompress %s: %w", path, err)
	}
	return buf.String(), nil
}

// readZipLogs concatenates every ".log" member of a zip archive in archive
// order.
func readZipLogs(path string) (string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("failed to open zip %s: %w", path, err)
	}
	defer func() { _ = zr.Close() }()

	var buf bytes.Buffer
	for _, member := range zr.File {
		if !strings.HasSuffix(strings.ToLower(member.Name), ".log") {
			continue
		}
		rc, err := member.Open()
		if err != nil {
			return "", fmt.Errorf("failed to open zip member %s in %s: %w", member.Name, path, err)
		}
		_, copyErr := io.Copy(&buf, io.LimitReader(rc, maxDecompressedSize))
		_ = rc.Close()
		if copyErr != nil {
			return "", fmt.Errorf("failed to read zip member %s in %s: %w", member.Name, path, copyErr)
		}
	}
	return buf.String(), nil
}
