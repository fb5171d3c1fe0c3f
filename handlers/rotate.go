package handlers

import (
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"
)

// compressFile gzips a rotated file in place, producing path+".gz" and
// deleting the original only after the compressed copy has been fully
// written and synced.
func compressFile(path string) error {
	src, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open rotated file: %w", err)
	}
	defer src.Close()

	gzPath := path + ".gz"
	dst, err := os.OpenFile(gzPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to create compressed file: %w", err)
	}

	gw := gzip.NewWriter(dst)
	if _, err := io.Copy(gw, src); err != nil {
		gw.Close()
		dst.Close()
		os.Remove(gzPath)
		return fmt.Errorf("failed to compress %s: %w", path, err)
	}
	if err := gw.Close(); err != nil {
		dst.Close()
		os.Remove(gzPath)
		return fmt.Errorf("failed to finalize compressed file: %w", err)
	}
	if err := dst.Sync(); err != nil {
		dst.Close()
		os.Remove(gzPath)
		return fmt.Errorf("failed to sync compressed file: %w", err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(gzPath)
		return fmt.Errorf("failed to close compressed file: %w", err)
	}

	if err := os.Remove(path); err != nil {
		return fmt.Errorf("failed to delete uncompressed file after compression: %w", err)
	}
	return nil
}
