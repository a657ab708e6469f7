package directives

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/docker/go-units"
)

// textExtensions lists the file types handlers read as text.
var textExtensions = map[string]bool{
	".txt": true, ".py": true, ".js": true, ".ts": true, ".html": true,
	".css": true, ".json": true, ".xml": true, ".md": true, ".csv": true,
	".yml": true, ".yaml": true, ".toml": true, ".ini": true, ".conf": true,
	".sh": true, ".bash": true, ".sql": true, ".log": true, ".env": true,
	".rs": true, ".go": true, ".java": true, ".cpp": true, ".c": true,
	".h": true, ".hpp": true, ".mod": true, ".sum": true,
}

// DefaultMaxFileSize caps how much one @file or one walked file may contribute.
const DefaultMaxFileSize = 10 * units.MiB

// FileHandler implements the @file directive: include a local file or a
// fetched URL body, wrapped in a tag named after the file.
type FileHandler struct {
	baseDir string
	maxSize int64
	client  *http.Client
}

func NewFileHandler(baseDir string) *FileHandler {
	return &FileHandler{
		baseDir: baseDir,
		maxSize: DefaultMaxFileSize,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (h *FileHandler) Name() string        { return "file" }
func (h *FileHandler) Description() string { return "Include and process file contents" }

func (h *FileHandler) SubstitutionPolicy() Policy { return PolicyKeep }

func (h *FileHandler) Validate(arg string) error {
	if isRemoteURL(arg) {
		return nil
	}
	_, err := resolvePath(h.Name(), arg, h.baseDir, false)
	return err
}

func (h *FileHandler) Process(ctx context.Context, arg string) (Result, error) {
	if isRemoteURL(arg) {
		body, err := h.fetch(ctx, arg)
		if err != nil {
			return Result{}, &ExecutionError{Directive: h.Name(), Arg: arg, Err: err}
		}
		return Result{Content: wrapTagged(filepath.Base(arg), body)}, nil
	}

	path, err := resolvePath(h.Name(), arg, h.baseDir, false)
	if err != nil {
		return Result{}, err
	}
	if info, err := os.Stat(path); err == nil && info.Size() > h.maxSize {
		return Result{}, &ValidationError{
			Directive: h.Name(),
			Arg:       arg,
			Reason:    fmt.Sprintf("file is %s, larger than the %s limit", units.BytesSize(float64(info.Size())), units.BytesSize(float64(h.maxSize))),
		}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Result{}, &ExecutionError{Directive: h.Name(), Arg: arg, Err: err}
	}
	return Result{Content: wrapTagged(filepath.Base(path), string(data))}, nil
}

func (h *FileHandler) fetch(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %s", resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, h.maxSize))
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func (h *FileHandler) SuggestCompletions(partial string) []string {
	return completePath(h.baseDir, partial, func(ext string) bool {
		return textExtensions[ext]
	})
}

// wrapTagged wraps content in the <name>...</name> block the model sees.
func wrapTagged(name, content string) string {
	return fmt.Sprintf("<%s>\n%s\n</%s>", name, strings.TrimRight(content, "\n"), name)
}
