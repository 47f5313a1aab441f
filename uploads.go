package marketplace

import (
	"fmt"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

const (
	// MaxAvatarUploadSize caps profile image uploads.
	MaxAvatarUploadSize = 3 << 20
	// MaxWorkSampleUploadSize caps provider work sample uploads.
	MaxWorkSampleUploadSize = 5 << 20
)

var allowedImageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

var ErrUnsupportedFileType = goerrors.New(
	"unsupported file type",
	goerrors.CategoryValidation,
).WithTextCode("UNSUPPORTED_FILE_TYPE").WithCode(goerrors.CodeBadRequest)

var ErrFileTooLarge = goerrors.New(
	"uploaded file is too large",
	goerrors.CategoryValidation,
).WithTextCode("FILE_TOO_LARGE").WithCode(goerrors.CodeBadRequest)

// NormalizeFilePath converts stored upload paths to forward slashes and
// collapses duplicate separators. Records written by older builds on Windows
// carry backslashes.
func NormalizeFilePath(path string) string {
	if path == "" {
		return ""
	}

	path = strings.ReplaceAll(path, "\\", "/")
	for strings.Contains(path, "//") {
		path = strings.ReplaceAll(path, "//", "/")
	}

	return path
}

// UploadStore writes multipart uploads under a root directory, one
// subdirectory per concern (avatars, samples).
type UploadStore struct {
	root   string
	logger Logger
}

func NewUploadStore(root string, logger Logger) *UploadStore {
	if logger == nil {
		logger = defLogger{}
	}
	return &UploadStore{root: root, logger: logger}
}

// Save validates and persists the upload, returning the stored relative path.
func (s *UploadStore) Save(file *multipart.FileHeader, subdir string, maxSize int64) (string, error) {
	if file == nil {
		return "", goerrors.New("no file provided", goerrors.CategoryValidation)
	}

	if file.Size > maxSize {
		return "", ErrFileTooLarge.WithMetadata(map[string]any{
			"size":     file.Size,
			"max_size": maxSize,
		})
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !allowedImageExtensions[ext] {
		return "", ErrUnsupportedFileType.WithMetadata(map[string]any{"extension": ext})
	}

	dir := filepath.Join(s.root, subdir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "unable to create upload directory")
	}

	name := fmt.Sprintf("%d-%s%s", time.Now().UnixMilli(), uuid.NewString()[:8], ext)
	dst := filepath.Join(dir, name)

	src, err := file.Open()
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "unable to read upload")
	}
	defer src.Close()

	out, err := os.Create(dst)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "unable to store upload")
	}
	defer out.Close()

	if _, err := out.ReadFrom(src); err != nil {
		os.Remove(dst)
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "unable to store upload")
	}

	return NormalizeFilePath(filepath.Join(subdir, name)), nil
}

// Remove deletes a previously stored upload. Missing files are not an error,
// the record may reference a file a prior cleanup already removed.
func (s *UploadStore) Remove(relPath string) {
	if relPath == "" {
		return
	}

	full := filepath.Join(s.root, filepath.FromSlash(NormalizeFilePath(relPath)))
	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("failed to remove upload %s: %v", relPath, err)
	}
}
