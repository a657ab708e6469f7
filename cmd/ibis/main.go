package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/myassine/ibis/internal/config"
	"github.com/myassine/ibis/internal/directives"
	"github.com/myassine/ibis/internal/engine"
	"github.com/myassine/ibis/internal/logger"
	"github.com/myassine/ibis/internal/orchestrator"
	"github.com/myassine/ibis/internal/prompts"
	"github.com/myassine/ibis/internal/providers"
	"github.com/myassine/ibis/internal/session"
	"github.com/myassine/ibis/internal/tools"
)

func main() {
	_ = godotenv.Load()

	fs := flag.NewFlagSet("ibis", flag.ExitOnError)
	dirFlag := fs.String("dir", "", "Working directory for directives and tools (default: current directory)")
	providerFlag := fs.String("provider", "", "LLM provider (openai, anthropic, deepseek, groq, ollama, custom)")
	modelFlag := fs.String("model", "", "Model name override")
	logLevel := fs.String("log-level", "info", "Log level (debug, info, warn, error)")
	stream := fs.Bool("stream", true, "Stream assistant output as it arrives")
	if err := fs.Parse(os.Args[1:]); err != nil {
		os.Exit(2)
	}

	logger.Setup(*logLevel)

	if err := run(context.Background(), *dirFlag, *providerFlag, *modelFlag, *stream); err != nil {
		fmt.Fprintf(os.Stderr, "ibis: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, dir, providerOverride, modelOverride string, stream bool) error {
	baseDir, err := resolveBaseDir(dir)
	if err != nil {
		return err
	}

	cfgManager, err := config.NewManager()
	if err != nil {
		return err
	}
	cfg, err := cfgManager.Load()
	if err != nil {
		return err
	}
	if providerOverride != "" {
		cfg.Provider = providerOverride
	}
	if modelOverride != "" {
		cfg.Model = modelOverride
	}

	llm, model, err := providers.New(providers.Settings{
		Provider: cfg.Provider,
		Model:    cfg.Model,
		APIKey:   cfg.APIKey,
		BaseURL:  cfg.BaseURL,
	})
	if err != nil {
		return err
	}

	promptManager, err := prompts.NewManager(cfgManager.Dir())
	if err != nil {
		return err
	}
	watchCtx, cancelWatch := context.WithCancel(ctx)
	defer cancelWatch()
	go func() {
		if err := promptManager.Watch(watchCtx); err != nil && watchCtx.Err() == nil {
			slog.Warn("prompt watcher stopped", "err", err)
		}
	}()

	store, err := session.NewStore(cfgManager.Dir())
	if err != nil {
		return err
	}
	defer store.Close()

	shell := directives.NewShellHandler(baseDir)
	pipeline := directives.NewPipeline(directives.NewRegistry(
		directives.NewFileHandler(baseDir),
		directives.NewFolderHandler(baseDir),
		directives.NewGithubHandler(),
		directives.NewImageHandler(baseDir),
		directives.NewDocumentHandler(baseDir),
	), shell)

	loop := orchestrator.New(llm, tools.NewRegistry(baseDir), engine.ChatOptions{})
	if cfg.MaxIterations > 0 {
		loop.SetMaxIterations(cfg.MaxIterations)
	}

	compactInstruction := session.FallbackCompactInstruction
	if content, ok := promptManager.Get("compact"); ok {
		compactInstruction = content
	}

	r := &repl{
		baseDir:       baseDir,
		provider:      cfg.Provider,
		model:         model,
		stream:        stream,
		loop:          loop,
		pipeline:      pipeline,
		store:         store,
		prompts:       promptManager,
		compactor:     session.NewCompactor(llm, model, compactInstruction),
		defaultPrompt: cfg.DefaultPrompt,
	}
	return r.run(ctx)
}

func resolveBaseDir(dir string) (string, error) {
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to get current directory: %w", err)
		}
		return wd, nil
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve working directory: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil || !info.IsDir() {
		return "", fmt.Errorf("not a valid directory: %s", abs)
	}
	return abs, nil
}
