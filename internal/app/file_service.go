package app

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"aidesk/internal/pkg/pdfextract"
)

var ErrFileTypeNotAllowed = errors.New("file type not allowed")

var allowedExtensions = map[string]bool{
	".txt":  true,
	".pdf":  true,
	".png":  true,
	".jpg":  true,
	".jpeg": true,
}

// FileService stores uploads on disk under a single directory and extracts
// whatever text the file carries for prompt injection.
type FileService struct {
	uploadDir string
}

type StoredFile struct {
	Name string
	Path string
	Text string
}

func NewFileService(uploadDir string) (*FileService, error) {
	if err := os.MkdirAll(uploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir failed: %w", err)
	}
	return &FileService{uploadDir: uploadDir}, nil
}

// Save writes the upload to disk under a collision-free name and returns the
// stored file along with its extracted text. Images store fine but yield no
// text.
func (s *FileService) Save(fileName string, r io.Reader) (*StoredFile, error) {
	ext := strings.ToLower(filepath.Ext(fileName))
	if !allowedExtensions[ext] {
		return nil, ErrFileTypeNotAllowed
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read upload failed: %w", err)
	}

	storedName := uuid.NewString() + "_" + filepath.Base(fileName)
	storedPath := filepath.Join(s.uploadDir, storedName)
	if err := os.WriteFile(storedPath, data, 0o644); err != nil {
		return nil, fmt.Errorf("write upload failed: %w", err)
	}

	text, err := extractText(ext, data)
	if err != nil {
		// Unextractable content is not fatal; the file itself is stored.
		text = ""
	}

	return &StoredFile{
		Name: filepath.Base(fileName),
		Path: storedPath,
		Text: text,
	}, nil
}

func extractText(ext string, data []byte) (string, error) {
	switch ext {
	case ".txt":
		return string(data), nil
	case ".pdf":
		return pdfextract.ExtractText(bytes.NewReader(data))
	default:
		return "", nil
	}
}
