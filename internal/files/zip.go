package files

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/flate"
)

// ErrTemplateDirMissing is returned when no client template directory is
// configured or present on disk.
var ErrTemplateDirMissing = errors.New("client template directory does not exist")

// WriteClientZip bundles the client template directory and the generated .tt
// file into outputPath. The .tt file lands under Client/ next to the client
// executable so the client picks it up on first start.
func WriteClientZip(templateDir, outputPath, ttFilename, ttContent string) error {
	info, err := os.Stat(templateDir)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrTemplateDirMissing, templateDir)
	}

	out, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("create zip file: %w", err)
	}
	defer out.Close()

	zw := zip.NewWriter(out)
	zw.RegisterCompressor(zip.Deflate, func(w io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(w, flate.DefaultCompression)
	})

	err = filepath.WalkDir(templateDir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(templateDir, path)
		if err != nil {
			return err
		}
		return addFileEntry(zw, filepath.ToSlash(rel), path)
	})
	if err != nil {
		zw.Close()
		return fmt.Errorf("copy template into zip: %w", err)
	}

	ttEntry, err := newDeflateEntry(zw, "Client/"+ttFilename)
	if err != nil {
		zw.Close()
		return fmt.Errorf("add tt file to zip: %w", err)
	}
	if _, err := io.WriteString(ttEntry, ttContent); err != nil {
		zw.Close()
		return fmt.Errorf("write tt file to zip: %w", err)
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("finalize zip: %w", err)
	}
	return out.Close()
}

func addFileEntry(zw *zip.Writer, name, path string) error {
	entry, err := newDeflateEntry(zw, name)
	if err != nil {
		return err
	}
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()
	_, err = io.Copy(entry, src)
	return err
}

func newDeflateEntry(zw *zip.Writer, name string) (io.Writer, error) {
	return zw.CreateHeader(&zip.FileHeader{
		Name:   strings.TrimPrefix(name, "/"),
		Method: zip.Deflate,
	})
}
