package middlewares

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/sbilibin2017/gw-account-service/internal/logger"
)

// multipartMemory is how much of a multipart body is kept in memory before
// the rest spills to disk.
const multipartMemory = 1 << 20

// UploadMiddleware parses a multipart request and saves the first file of
// each named field to a temp file in dir. Handlers read the paths with
// GetUploadedFile. Every temp file is removed once the handler returns,
// whatever the outcome.
func UploadMiddleware(dir string, maxBytes int64, fields ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

			if err := r.ParseMultipartForm(multipartMemory); err != nil {
				logger.Log.Errorw("failed to parse multipart form", "err", err)
				var tooLarge *http.MaxBytesError
				if errors.As(err, &tooLarge) {
					writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
					return
				}
				writeError(w, http.StatusBadRequest, "invalid multipart form")
				return
			}
			defer r.MultipartForm.RemoveAll()

			files := make(map[string]string, len(fields))
			defer func() {
				for _, path := range files {
					removeTemp(path)
				}
			}()

			for _, field := range fields {
				headers := r.MultipartForm.File[field]
				if len(headers) == 0 {
					continue
				}
				path, err := saveTemp(dir, headers[0])
				if err != nil {
					logger.Log.Errorw("failed to store uploaded file", "field", field, "err", err)
					writeError(w, http.StatusInternalServerError, "Internal server error")
					return
				}
				files[field] = path
			}

			ctx := context.WithValue(r.Context(), uploadContextKey{}, files)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

type uploadContextKey struct{}

// GetUploadedFile returns the temp file path saved for a multipart field,
// or "" when the request carried no such file.
func GetUploadedFile(ctx context.Context, field string) string {
	files, _ := ctx.Value(uploadContextKey{}).(map[string]string)
	return files[field]
}

func saveTemp(dir string, header *multipart.FileHeader) (string, error) {
	src, err := header.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	dst, err := os.CreateTemp(dir, "upload-*"+ext)
	if err != nil {
		return "", err
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		removeTemp(dst.Name())
		return "", err
	}
	if err := dst.Close(); err != nil {
		removeTemp(dst.Name())
		return "", err
	}

	return dst.Name(), nil
}

func removeTemp(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Log.Warnw("failed to remove temp file", "path", path, "err", err)
	}
}
