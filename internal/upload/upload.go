// Package upload validates and stores post images.
package upload

import (
	"bytes"
	"context"
	"errors"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"time"

	_ "golang.org/x/image/webp"

	"github.com/ayush/flatblog/internal/logging"
	"github.com/ayush/flatblog/internal/metrics"
)

// MaxImageSize is the default upload limit.
const MaxImageSize int64 = 5 << 20

// AllowedExtensions lists the accepted file extensions, lowercase.
var AllowedExtensions = []string{"jpg", "jpeg", "png", "gif", "webp"}

var contentTypes = map[string]string{
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"webp": "image/webp",
}

// Cause classifies an upload failure.
type Cause string

const (
	CauseMissing     Cause = "missing"
	CauseTransport   Cause = "transport"
	CauseTooLarge    Cause = "too_large"
	CauseNotImage    Cause = "not_image"
	CauseUnsupported Cause = "unsupported"
	CausePermissions Cause = "permissions"
	CauseSave        Cause = "save"
)

var causeMessages = map[Cause]string{
	CauseMissing:     "Select an image to upload.",
	CauseTransport:   "Image upload failed.",
	CauseTooLarge:    "The image must be at most 5 MB.",
	CauseNotImage:    "The uploaded file is not an image.",
	CauseUnsupported: "Unsupported format. Use JPG, PNG, GIF or WEBP.",
	CausePermissions: "The uploads directory is not writable.",
	CauseSave:        "Could not save the image.",
}

// Error is an upload failure with a message that can be shown to the user.
type Error struct {
	Cause   Cause
	Message string
	Err     error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Err }

func newError(cause Cause, err error) *Error {
	return &Error{Cause: cause, Message: causeMessages[cause], Err: err}
}

// TransportError converts an error from reading the multipart form into an
// *Error.
func TransportError(err error) *Error {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.Is(err, http.ErrMissingFile):
		return newError(CauseMissing, err)
	case errors.As(err, &maxBytes), errors.Is(err, multipart.ErrMessageTooLarge):
		return newError(CauseTooLarge, err)
	default:
		return newError(CauseTransport, err)
	}
}

// FileStore is an optional mirror that receives a copy of every stored image.
type FileStore interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) error
	Remove(ctx context.Context, key string) error
}

// Config configures a Handler.
type Config struct {
	// Dir is where images are written.
	Dir string
	// WebPath is the public prefix of stored images, e.g. "uploads".
	WebPath  string
	MaxSize  int64
	Mirror   FileStore
	Location *time.Location
	// Clock defaults to time.Now.
	Clock func() time.Time
}

// Handler stores uploaded images under Dir and reports their public path.
type Handler struct {
	dir     string
	webPath string
	maxSize int64
	mirror  FileStore
	loc     *time.Location
	now     func() time.Time
}

func NewHandler(cfg Config) *Handler {
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = MaxImageSize
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Handler{
		dir:     cfg.Dir,
		webPath: strings.Trim(cfg.WebPath, "/"),
		maxSize: cfg.MaxSize,
		mirror:  cfg.Mirror,
		loc:     cfg.Location,
		now:     cfg.Clock,
	}
}

// HandleImageUpload validates file and moves it into the upload directory as
// <timestamp>-<slug(title)>.<ext>. It returns the public path of the image.
// Files with the same timestamp and title overwrite each other.
func (h *Handler) HandleImageUpload(ctx context.Context, file multipart.File, header *multipart.FileHeader, title string) (string, error) {
	publicPath, err := h.store(ctx, file, header, title)
	metrics.RecordUpload(err == nil)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("image upload rejected")
		return "", err
	}
	return publicPath, nil
}

func (h *Handler) store(ctx context.Context, file multipart.File, header *multipart.FileHeader, title string) (string, error) {
	if file == nil || header == nil {
		return "", newError(CauseMissing, nil)
	}
	if header.Size > h.maxSize {
		return "", newError(CauseTooLarge, nil)
	}

	data, err := io.ReadAll(io.LimitReader(file, h.maxSize+1))
	if err != nil {
		return "", newError(CauseTransport, err)
	}
	if int64(len(data)) > h.maxSize {
		return "", newError(CauseTooLarge, nil)
	}
	if len(data) == 0 {
		return "", newError(CauseMissing, nil)
	}

	if _, _, err := image.DecodeConfig(bytes.NewReader(data)); err != nil {
		return "", newError(CauseNotImage, err)
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(header.Filename), "."))
	if !slices.Contains(AllowedExtensions, ext) {
		return "", newError(CauseUnsupported, nil)
	}

	if err := os.MkdirAll(h.dir, 0o775); err != nil {
		return "", newError(CausePermissions, err)
	}
	if !writable(h.dir) {
		return "", newError(CausePermissions, nil)
	}

	filename := h.now().In(h.loc).Format("20060102150405") + "-" + Slugify(title) + "." + ext
	if err := os.WriteFile(filepath.Join(h.dir, filename), data, 0o664); err != nil {
		return "", newError(CauseSave, err)
	}

	if h.mirror != nil {
		if err := h.mirror.Upload(ctx, filename, data, contentTypes[ext]); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Str("file", filename).Msg("image mirror upload failed")
		}
	}

	return path.Join(h.webPath, filename), nil
}

// Remove deletes an image previously returned by HandleImageUpload. Paths
// outside the public upload prefix are ignored.
func (h *Handler) Remove(ctx context.Context, publicPath string) error {
	prefix := h.webPath + "/"
	if !strings.HasPrefix(publicPath, prefix) {
		return nil
	}
	name := path.Base(publicPath)
	if name == "." || name == "/" || name == ".." {
		return nil
	}

	err := os.Remove(filepath.Join(h.dir, name))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	if h.mirror != nil {
		if merr := h.mirror.Remove(ctx, name); merr != nil {
			logging.Ctx(ctx).Warn().Err(merr).Str("file", name).Msg("image mirror remove failed")
		}
	}
	return nil
}

// WebPath is the public prefix of stored images.
func (h *Handler) WebPath() string {
	return h.webPath
}

func writable(dir string) bool {
	f, err := os.CreateTemp(dir, ".writable-*")
	if err != nil {
		return false
	}
	name := f.Name()
	_ = f.Close()
	_ = os.Remove(name)
	return true
}
