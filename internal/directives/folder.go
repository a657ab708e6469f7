package directives

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/docker/go-units"
	gitignore "github.com/sabhiram/go-gitignore"
)

// DefaultMaxFolderBytes caps the total content one @folder expansion may
// contribute.
const DefaultMaxFolderBytes = 48 * units.MiB

// FolderHandler implements the @folder directive: walk a directory and
// include a tree listing plus every text file's contents.
type FolderHandler struct {
	baseDir     string
	maxFileSize int64
	maxTotal    int64
}

func NewFolderHandler(baseDir string) *FolderHandler {
	return &FolderHandler{
		baseDir:     baseDir,
		maxFileSize: DefaultMaxFileSize,
		maxTotal:    DefaultMaxFolderBytes,
	}
}

func (h *FolderHandler) Name() string        { return "folder" }
func (h *FolderHandler) Description() string { return "Process and summarize folder contents" }

func (h *FolderHandler) SubstitutionPolicy() Policy { return PolicyKeep }

func (h *FolderHandler) Validate(arg string) error {
	_, err := resolvePath(h.Name(), arg, h.baseDir, true)
	return err
}

func (h *FolderHandler) Process(ctx context.Context, arg string) (Result, error) {
	root, err := resolvePath(h.Name(), arg, h.baseDir, true)
	if err != nil {
		return Result{}, err
	}

	files, err := h.walk(ctx, root)
	if err != nil {
		return Result{}, &ExecutionError{Directive: h.Name(), Arg: arg, Err: err}
	}

	var tree, content strings.Builder
	var total int64
	for _, rel := range files {
		fmt.Fprintf(&tree, "%s\n", rel)
		if total >= h.maxTotal {
			continue
		}
		data, err := os.ReadFile(filepath.Join(root, rel))
		if err != nil {
			continue
		}
		total += int64(len(data))
		fmt.Fprintf(&content, "%s\nFile: %s\n%s\n%s\n\n", sectionRule, rel, sectionRule, strings.TrimRight(string(data), "\n"))
	}

	body := fmt.Sprintf("```\n%s```\n\n%s", tree.String(), strings.TrimRight(content.String(), "\n"))
	return Result{Content: wrapTagged(filepath.Base(root), body)}, nil
}

const sectionRule = "================================================"

// walk collects relative paths of readable text files under root, honoring
// the root's .gitignore and skipping .git and oversized files.
func (h *FolderHandler) walk(ctx context.Context, root string) ([]string, error) {
	var ignorer *gitignore.GitIgnore
	if gi, err := gitignore.CompileIgnoreFile(filepath.Join(root, ".gitignore")); err == nil {
		ignorer = gi
	}

	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		rel, err := filepath.Rel(root, path)
		if err != nil || rel == "." {
			return nil
		}
		if d.IsDir() {
			if d.Name() == ".git" || (ignorer != nil && ignorer.MatchesPath(rel+"/")) {
				return filepath.SkipDir
			}
			return nil
		}
		if ignorer != nil && ignorer.MatchesPath(rel) {
			return nil
		}
		if !textExtensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		if info, err := d.Info(); err != nil || info.Size() > h.maxFileSize {
			return nil
		}
		files = append(files, rel)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

func (h *FolderHandler) SuggestCompletions(partial string) []string {
	return completePath(h.baseDir, partial, func(string) bool { return false })
}
