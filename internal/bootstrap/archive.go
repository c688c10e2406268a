package bootstrap

import (
	"archive/tar"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"researchctl/pkg/logging"
)

// ArchiveDirectory writes a gzipped tarball of srcDir into destDir and returns
// its path. srcDir itself is not modified. A missing srcDir yields "" and no
// error, since there is nothing to keep.
func ArchiveDirectory(srcDir, destDir string, now time.Time) (string, error) {
	if _, err := os.Stat(srcDir); errors.Is(err, fs.ErrNotExist) {
		logging.Debug("Archive", "Nothing to archive, %s does not exist", srcDir)
		return "", nil
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create archive directory %s: %w", destDir, err)
	}

	name := fmt.Sprintf("%s-%s.tar.gz", filepath.Base(srcDir), now.UTC().Format("20060102-150405"))
	out := filepath.Join(destDir, name)
	f, err := os.Create(out)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", out, err)
	}

	gz := gzip.NewWriter(f)
	tw := tar.NewWriter(gz)
	walkErr := filepath.WalkDir(srcDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(filepath.Dir(srcDir), path)
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if !info.Mode().IsRegular() && !info.IsDir() {
			return nil
		}
		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(rel)
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		src, err := os.Open(path)
		if err != nil {
			return err
		}
		defer src.Close()
		_, err = io.Copy(tw, src)
		return err
	})

	// Close in order even on failure so the file handle is released.
	errs := []error{walkErr, tw.Close(), gz.Close(), f.Close()}
	if err := errors.Join(errs...); err != nil {
		os.Remove(out)
		return "", fmt.Errorf("failed to archive %s: %w", srcDir, err)
	}

	logging.Info("Archive", "Archived %s to %s", srcDir, out)
	return out, nil
}
