package archive

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// CorruptError indicates the uploaded bytes are not a readable zip archive.
type CorruptError struct {
	Err error
}

func (e *CorruptError) Error() string { return "archive: corrupt zip: " + e.Err.Error() }
func (e *CorruptError) Unwrap() error { return e.Err }

// Entry is one file in an in-memory archive, path in forward-slash form.
type Entry struct {
	Path string
	Data []byte
}

// CleanEntryPath normalizes an archive entry path to forward-slash form and
// reports whether it is safe to place under an extraction or output root.
// Absolute paths, drive-letter paths, and anything that still contains a
// parent-directory segment after cleaning are rejected.
func CleanEntryPath(p string) (string, bool) {
	p = strings.TrimSpace(filepath.ToSlash(p))
	if p == "" || strings.ContainsRune(p, 0) {
		return "", false
	}
	if len(p) >= 2 && p[1] == ':' {
		return "", false
	}
	cleaned := path.Clean(p)
	if cleaned == "." || cleaned == "" {
		return "", false
	}
	if path.IsAbs(cleaned) {
		return "", false
	}
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", false
	}
	return cleaned, true
}

// Unpack extracts every entry of the zip in data into dest, creating
// directories as needed and overwriting files that already exist. Unreadable
// archive bytes yield a *CorruptError; any extraction failure aborts with no
// partial-recovery attempt. Entries with unsafe paths abort extraction.
func Unpack(data []byte, dest string) error {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return &CorruptError{Err: err}
	}
	for _, f := range r.File {
		rel, ok := CleanEntryPath(f.Name)
		if !ok {
			return fmt.Errorf("archive: unsafe entry path %q", f.Name)
		}
		target := filepath.Join(dest, filepath.FromSlash(rel))

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("archive: create directory: %w", err)
			}
			continue
		}
		if err := extractFile(f, target); err != nil {
			return err
		}
	}
	return nil
}

func extractFile(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("archive: create directory: %w", err)
	}
	src, err := f.Open()
	if err != nil {
		return fmt.Errorf("archive: open entry %q: %w", f.Name, err)
	}
	defer src.Close()

	dst, err := os.Create(target)
	if err != nil {
		return fmt.Errorf("archive: create file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("archive: extract %q: %w", f.Name, err)
	}
	return nil
}

// Pack builds an in-memory zip from the ordered entries. Entry paths are
// written in forward-slash form regardless of host conventions.
func Pack(entries []Entry) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		name := strings.TrimSpace(filepath.ToSlash(e.Path))
		if name == "" {
			return nil, errors.New("archive: entry with empty path")
		}
		w, err := zw.Create(name)
		if err != nil {
			return nil, fmt.Errorf("archive: add %q: %w", name, err)
		}
		if _, err := w.Write(e.Data); err != nil {
			return nil, fmt.Errorf("archive: write %q: %w", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("archive: finalize: %w", err)
	}
	return buf.Bytes(), nil
}

// PackDir packs every regular file under root at its root-relative
// forward-slash path.
func PackDir(root string) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		w, err := zw.Create(filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		src, err := os.Open(p)
		if err != nil {
			return err
		}
		defer src.Close()
		_, err = io.Copy(w, src)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("archive: pack %s: %w", root, err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("archive: finalize: %w", err)
	}
	return buf.Bytes(), nil
}
