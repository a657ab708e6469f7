package directives

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/myassine/ibis/internal/engine"
)

var imageExtensions = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
}

// ImageHandler implements the @image directive. The directive is erased from
// the rewritten input; the image travels as a media record so the same
// content is never duplicated inline.
type ImageHandler struct {
	baseDir string
	maxSize int64
}

func NewImageHandler(baseDir string) *ImageHandler {
	return &ImageHandler{baseDir: baseDir, maxSize: DefaultMaxFileSize}
}

func (h *ImageHandler) Name() string { return "image" }
func (h *ImageHandler) Description() string {
	return "Include an image from file or URL for vision-capable models"
}

func (h *ImageHandler) SubstitutionPolicy() Policy { return PolicyErase }

func (h *ImageHandler) Validate(arg string) error {
	if isRemoteURL(arg) {
		return nil
	}
	path, err := resolvePath(h.Name(), arg, h.baseDir, false)
	if err != nil {
		return err
	}
	ext := strings.ToLower(filepath.Ext(path))
	if _, ok := imageExtensions[ext]; !ok {
		return &ValidationError{
			Directive: h.Name(),
			Arg:       arg,
			Reason:    fmt.Sprintf("unsupported image format %q", ext),
		}
	}
	return nil
}

func (h *ImageHandler) Process(ctx context.Context, arg string) (Result, error) {
	if isRemoteURL(arg) {
		return Result{Media: []engine.MediaPart{{Type: "image", URL: arg, Format: strings.TrimPrefix(strings.ToLower(filepath.Ext(arg)), ".")}}}, nil
	}

	path, err := resolvePath(h.Name(), arg, h.baseDir, false)
	if err != nil {
		return Result{}, err
	}
	ext := strings.ToLower(filepath.Ext(path))
	mime, ok := imageExtensions[ext]
	if !ok {
		return Result{}, &ValidationError{Directive: h.Name(), Arg: arg, Reason: fmt.Sprintf("unsupported image format %q", ext)}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Result{}, &ExecutionError{Directive: h.Name(), Arg: arg, Err: err}
	}
	if int64(len(data)) > h.maxSize {
		return Result{}, &ValidationError{Directive: h.Name(), Arg: arg, Reason: "image exceeds the size limit"}
	}

	dataURL := fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(data))
	return Result{Media: []engine.MediaPart{{
		Type:   "image",
		URL:    dataURL,
		Format: strings.TrimPrefix(ext, "."),
	}}}, nil
}

func (h *ImageHandler) SuggestCompletions(partial string) []string {
	return completePath(h.baseDir, partial, func(ext string) bool {
		_, ok := imageExtensions[ext]
		return ok
	})
}
