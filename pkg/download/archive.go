package download

import (
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	"github.com/klauspost/compress/zip"
)

// ExtractFile copies the zip member whose base name is member from
// archive into dir, and returns the written path.
func ExtractFile(archive, member, dir string) (string, error) {
	reader, err := zip.OpenReader(archive)
	if err != nil {
		return "", fmt.Errorf("failed to open archive %s: %w", archive, err)
	}
	defer reader.Close()

	for _, entry := range reader.File {
		if entry.FileInfo().IsDir() || path.Base(entry.Name) != member {
			continue
		}

		src, err := entry.Open()
		if err != nil {
			return "", fmt.Errorf("failed to open %s in archive: %w", entry.Name, err)
		}
		defer src.Close()

		dest := filepath.Join(dir, member)
		out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0755)
		if err != nil {
			return "", fmt.Errorf("failed to create %s: %w", dest, err)
		}
		if _, err := io.Copy(out, src); err != nil {
			out.Close()
			return "", fmt.Errorf("failed to extract %s: %w", member, err)
		}
		if err := out.Close(); err != nil {
			return "", err
		}
		return dest, nil
	}

	return "", fmt.Errorf("%s not found in archive %s", member, archive)
}
