// Package upload validates and persists user-supplied image files.
package upload

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
)

var (
	ErrNoFile        = errors.New("no file part in the request")
	ErrEmptyFilename = errors.New("no selected file")
	ErrNotAllowed    = errors.New("file not allowed")
	ErrTooLarge      = errors.New("file too large")
)

// Message returns the plain-text body sent to the client for a
// validation error, or "" when err is not one.
func Message(err error) string {
	switch {
	case errors.Is(err, ErrNoFile):
		return "No file part in the request"
	case errors.Is(err, ErrEmptyFilename):
		return "No selected file"
	case errors.Is(err, ErrNotAllowed):
		return "File not allowed"
	case errors.Is(err, ErrTooLarge):
		return "File too large"
	}
	return ""
}

// Store writes uploads into a single flat directory under the client's
// filename. A later upload with the same name replaces the earlier file.
type Store struct {
	dir      string
	allowed  map[string]struct{}
	maxBytes int64
}

func NewStore(dir string, allowedExtensions []string, maxBytes int64) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir failed: %w", err)
	}
	allowed := make(map[string]struct{}, len(allowedExtensions))
	for _, ext := range allowedExtensions {
		allowed[strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))] = struct{}{}
	}
	return &Store{dir: dir, allowed: allowed, maxBytes: maxBytes}, nil
}

func (s *Store) Dir() string {
	return s.dir
}

// AllowedFile reports whether name carries an allowed final extension.
// The comparison is case-insensitive and a dot is required.
func (s *Store) AllowedFile(name string) bool {
	idx := strings.LastIndex(name, ".")
	if idx < 0 {
		return false
	}
	_, ok := s.allowed[strings.ToLower(name[idx+1:])]
	return ok
}

// Validate applies the filename and size rules without touching disk.
// A nil header means the multipart field was absent.
func (s *Store) Validate(fh *multipart.FileHeader) error {
	if fh == nil {
		return ErrNoFile
	}
	if fh.Filename == "" {
		return ErrEmptyFilename
	}
	if !s.AllowedFile(fh.Filename) {
		return ErrNotAllowed
	}
	if s.maxBytes > 0 && fh.Size > s.maxBytes {
		return ErrTooLarge
	}
	return nil
}

// Save validates fh and copies its bytes verbatim to the upload dir.
// It returns the stored name, which is the base of the client filename.
func (s *Store) Save(fh *multipart.FileHeader) (string, error) {
	if err := s.Validate(fh); err != nil {
		return "", err
	}
	name, err := sanitize(fh.Filename)
	if err != nil {
		return "", err
	}

	src, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("open uploaded file failed: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(filepath.Join(s.dir, name))
	if err != nil {
		return "", fmt.Errorf("create upload file failed: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		return "", fmt.Errorf("write upload file failed: %w", err)
	}
	if err := dst.Close(); err != nil {
		return "", fmt.Errorf("close upload file failed: %w", err)
	}
	return name, nil
}

// Path resolves a stored name to its location inside the upload dir.
func (s *Store) Path(name string) (string, error) {
	clean, err := sanitize(name)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.dir, clean), nil
}

// sanitize keeps only the final path element so a filename can never
// escape the upload dir.
func sanitize(name string) (string, error) {
	base := filepath.Base(filepath.Clean("/" + strings.ReplaceAll(name, "\\", "/")))
	if base == "/" || base == "." || base == ".." || base == "" {
		return "", ErrEmptyFilename
	}
	return base, nil
}
