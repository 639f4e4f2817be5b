package r2client

import (
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"
)

// CompressFile writes a zstd-compressed copy of srcPath to dstPath and
// returns the compressed size.
func CompressFile(srcPath, dstPath string) (int64, error) {
	src, err := os.Open(srcPath)
	if err != nil {
		return 0, fmt.Errorf("compress: open source: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(dstPath)
	if err != nil {
		return 0, fmt.Errorf("compress: create dest: %w", err)
	}
	defer dst.Close()

	enc, err := zstd.NewWriter(dst, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		return 0, fmt.Errorf("compress: create encoder: %w", err)
	}
	if _, err := io.Copy(enc, src); err != nil {
		_ = enc.Close()
		return 0, fmt.Errorf("compress: copy: %w", err)
	}
	if err := enc.Close(); err != nil {
		return 0, fmt.Errorf("compress: close encoder: %w", err)
	}

	info, err := dst.Stat()
	if err != nil {
		return 0, fmt.Errorf("compress: stat dest: %w", err)
	}
	return info.Size(), nil
}

// DecompressStream writes the zstd stream r to dstPath.
func DecompressStream(r io.Reader, dstPath string) error {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return fmt.Errorf("decompress: create decoder: %w", err)
	}
	defer dec.Close()

	dst, err := os.Create(dstPath)
	if err != nil {
		return fmt.Errorf("decompress: create dest: %w", err)
	}
	if _, err := io.Copy(dst, dec); err != nil {
		_ = dst.Close()
		return fmt.Errorf("decompress: copy: %w", err)
	}
	return dst.Close()
}
