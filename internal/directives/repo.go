package directives

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"path"
	"regexp"
	"strings"
	"time"
)

var (
	githubURLPattern  = regexp.MustCompile(`^https?://github\.com/([a-zA-Z0-9-]+)/([a-zA-Z0-9._-]+)/?.*$`)
	githubSlugPattern = regexp.MustCompile(`^([a-zA-Z0-9-]+)/([a-zA-Z0-9._-]+)$`)
)

// GithubHandler implements the @github directive: fetch a repository's
// default-branch tarball and include its text files the way @folder does.
type GithubHandler struct {
	client      *http.Client
	maxFileSize int64
	maxTotal    int64
	// baseURL is swappable for tests; production uses codeload.github.com.
	baseURL string
}

func NewGithubHandler() *GithubHandler {
	return &GithubHandler{
		client:      &http.Client{Timeout: 120 * time.Second},
		maxFileSize: DefaultMaxFileSize,
		maxTotal:    DefaultMaxFolderBytes,
		baseURL:     "https://codeload.github.com",
	}
}

func (h *GithubHandler) Name() string { return "github" }
func (h *GithubHandler) Description() string {
	return "Process and analyze GitHub repository contents"
}

func (h *GithubHandler) SubstitutionPolicy() Policy { return PolicyKeep }

func (h *GithubHandler) Validate(arg string) error {
	if _, _, err := h.parse(arg); err != nil {
		return err
	}
	return nil
}

func (h *GithubHandler) parse(arg string) (owner, repo string, err error) {
	arg = strings.TrimRight(arg, "/")
	if m := githubURLPattern.FindStringSubmatch(arg); m != nil {
		return m[1], strings.TrimSuffix(m[2], ".git"), nil
	}
	if m := githubSlugPattern.FindStringSubmatch(arg); m != nil {
		return m[1], m[2], nil
	}
	return "", "", &ValidationError{
		Directive: h.Name(),
		Arg:       arg,
		Reason:    "expected a github.com URL or an owner/repo slug",
	}
}

func (h *GithubHandler) Process(ctx context.Context, arg string) (Result, error) {
	owner, repo, err := h.parse(arg)
	if err != nil {
		return Result{}, err
	}

	tarURL := fmt.Sprintf("%s/%s/%s/tar.gz/HEAD", h.baseURL, owner, repo)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, tarURL, nil)
	if err != nil {
		return Result{}, &ExecutionError{Directive: h.Name(), Arg: arg, Err: err}
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return Result{}, &ExecutionError{Directive: h.Name(), Arg: arg, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Result{}, &ExecutionError{
			Directive: h.Name(),
			Arg:       arg,
			Err:       fmt.Errorf("fetching %s/%s: unexpected status %s", owner, repo, resp.Status),
		}
	}

	body, err := h.ingest(resp.Body)
	if err != nil {
		return Result{}, &ExecutionError{Directive: h.Name(), Arg: arg, Err: err}
	}
	return Result{Content: wrapTagged(repo, body)}, nil
}

// ingest reads a gzipped tarball and renders a tree listing plus the
// contents of every text file, bounded by the handler's size caps.
func (h *GithubHandler) ingest(r io.Reader) (string, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return "", fmt.Errorf("reading tarball: %w", err)
	}
	defer gz.Close()

	var tree, content strings.Builder
	var total int64
	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("reading tarball: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		// Strip the repo-HEAD top-level directory the tarball wraps around.
		rel := hdr.Name
		if i := strings.IndexByte(rel, '/'); i >= 0 {
			rel = rel[i+1:]
		}
		if rel == "" || strings.HasPrefix(rel, ".git/") {
			continue
		}
		if !textExtensions[strings.ToLower(path.Ext(rel))] {
			continue
		}
		if hdr.Size > h.maxFileSize {
			continue
		}
		tree.WriteString(rel + "\n")
		if total >= h.maxTotal {
			continue
		}
		data, err := io.ReadAll(io.LimitReader(tr, h.maxFileSize))
		if err != nil {
			continue
		}
		total += int64(len(data))
		fmt.Fprintf(&content, "%s\nFile: %s\n%s\n%s\n\n", sectionRule, rel, sectionRule, strings.TrimRight(string(data), "\n"))
	}

	return fmt.Sprintf("```\n%s```\n\n%s", tree.String(), strings.TrimRight(content.String(), "\n")), nil
}

func (h *GithubHandler) SuggestCompletions(partial string) []string {
	if partial == "" {
		return []string{"https://github.com/"}
	}
	return nil
}
