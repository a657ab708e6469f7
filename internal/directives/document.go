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

// DocumentHandler implements the @pdf directive. Like @image, the directive
// is erased and the document travels as a media record.
type DocumentHandler struct {
	baseDir string
	maxSize int64
}

func NewDocumentHandler(baseDir string) *DocumentHandler {
	return &DocumentHandler{baseDir: baseDir, maxSize: DefaultMaxFileSize}
}

func (h *DocumentHandler) Name() string { return "pdf" }
func (h *DocumentHandler) Description() string {
	return "Include a PDF document from file or URL for document-capable models"
}

func (h *DocumentHandler) SubstitutionPolicy() Policy { return PolicyErase }

func (h *DocumentHandler) Validate(arg string) error {
	if isRemoteURL(arg) {
		return nil
	}
	path, err := resolvePath(h.Name(), arg, h.baseDir, false)
	if err != nil {
		return err
	}
	if strings.ToLower(filepath.Ext(path)) != ".pdf" {
		return &ValidationError{
			Directive: h.Name(),
			Arg:       arg,
			Reason:    fmt.Sprintf("unsupported file format %q, only PDF files are supported", filepath.Ext(path)),
		}
	}
	return nil
}

func (h *DocumentHandler) Process(ctx context.Context, arg string) (Result, error) {
	if isRemoteURL(arg) {
		return Result{Media: []engine.MediaPart{{Type: "document", URL: arg, Format: "pdf"}}}, nil
	}

	path, err := resolvePath(h.Name(), arg, h.baseDir, false)
	if err != nil {
		return Result{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Result{}, &ExecutionError{Directive: h.Name(), Arg: arg, Err: err}
	}
	if int64(len(data)) > h.maxSize {
		return Result{}, &ValidationError{Directive: h.Name(), Arg: arg, Reason: "document exceeds the size limit"}
	}

	dataURL := "data:application/pdf;base64," + base64.StdEncoding.EncodeToString(data)
	return Result{Media: []engine.MediaPart{{Type: "document", URL: dataURL, Format: "pdf"}}}, nil
}

func (h *DocumentHandler) SuggestCompletions(partial string) []string {
	return completePath(h.baseDir, partial, func(ext string) bool {
		return ext == ".pdf"
	})
}
