// Package tools provides the built-in tool set offered to the model during
// a conversation turn.
package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/myassine/ibis/internal/directives"
	"github.com/myassine/ibis/internal/engine"
)

// NewRegistry assembles the built-in tools rooted at baseDir. Shell commands
// go through the same deny-list and timeout as $(...) expansion.
func NewRegistry(baseDir string) engine.ToolRegistry {
	reg := make(engine.ToolRegistry)
	reg.Register(NewReadFileTool(baseDir))
	reg.Register(NewListDirTool(baseDir))
	reg.Register(NewRunCommandTool(directives.NewShellHandler(baseDir)))
	reg.Register(NewCurrentTimeTool())
	return reg
}

// NewReadFileTool reads a file relative to baseDir. Paths escaping baseDir
// are rejected.
func NewReadFileTool(baseDir string) engine.Tool {
	return engine.Tool{
		Name:        "read_file",
		Description: "Read the content of a file. Provide the path relative to the working directory.",
		SchemaJSON:  `{"type":"object","properties":{"path":{"type":"string","description":"Path to the file, relative to the working directory"}},"required":["path"]}`,
		Fn: func(ctx context.Context, args map[string]any) (string, error) {
			path, ok := args["path"].(string)
			if !ok {
				return "", fmt.Errorf("path must be a string")
			}
			resolved, err := resolveWithin(baseDir, path)
			if err != nil {
				return "", err
			}
			data, err := os.ReadFile(resolved)
			if err != nil {
				return "", err
			}
			return string(data), nil
		},
	}
}

// NewListDirTool lists a directory's entries, directories suffixed with a
// separator, sorted by name.
func NewListDirTool(baseDir string) engine.Tool {
	return engine.Tool{
		Name:        "list_dir",
		Description: "List the entries of a directory. Provide the path relative to the working directory; defaults to the working directory itself.",
		SchemaJSON:  `{"type":"object","properties":{"path":{"type":"string","description":"Directory path, relative to the working directory"}}}`,
		Fn: func(ctx context.Context, args map[string]any) (string, error) {
			path := "."
			if raw, ok := args["path"]; ok {
				str, ok := raw.(string)
				if !ok {
					return "", fmt.Errorf("path must be a string")
				}
				if str != "" {
					path = str
				}
			}
			resolved, err := resolveWithin(baseDir, path)
			if err != nil {
				return "", err
			}
			entries, err := os.ReadDir(resolved)
			if err != nil {
				return "", err
			}
			names := make([]string, 0, len(entries))
			for _, entry := range entries {
				name := entry.Name()
				if entry.IsDir() {
					name += string(filepath.Separator)
				}
				names = append(names, name)
			}
			sort.Strings(names)
			if len(names) == 0 {
				return "(empty directory)", nil
			}
			return strings.Join(names, "\n"), nil
		},
	}
}

// NewRunCommandTool executes a shell command through the shared shell
// handler, inheriting its deny-list and timeout.
func NewRunCommandTool(shell *directives.ShellHandler) engine.Tool {
	return engine.Tool{
		Name:        "run_command",
		Description: "Run a shell command in the working directory and return its output. Destructive commands are rejected.",
		SchemaJSON:  `{"type":"object","properties":{"command":{"type":"string","description":"The shell command to run"}},"required":["command"]}`,
		Fn: func(ctx context.Context, args map[string]any) (string, error) {
			command, ok := args["command"].(string)
			if !ok {
				return "", fmt.Errorf("command must be a string")
			}
			if err := shell.Validate(command); err != nil {
				return "", err
			}
			res, err := shell.Process(ctx, command)
			if err != nil {
				return "", err
			}
			return res.Content, nil
		},
	}
}

// NewCurrentTimeTool reports the current local time.
func NewCurrentTimeTool() engine.Tool {
	return engine.Tool{
		Name:        "current_time",
		Description: "Get the current date and time.",
		SchemaJSON:  `{"type":"object"}`,
		Fn: func(ctx context.Context, args map[string]any) (string, error) {
			return time.Now().Format(time.RFC1123), nil
		},
	}
}

// resolveWithin joins path onto baseDir and rejects escapes.
func resolveWithin(baseDir, path string) (string, error) {
	resolved := filepath.Clean(filepath.Join(baseDir, path))
	base := filepath.Clean(baseDir)
	if resolved != base && !strings.HasPrefix(resolved, base+string(filepath.Separator)) {
		return "", fmt.Errorf("path %s is outside the working directory", path)
	}
	return resolved, nil
}
