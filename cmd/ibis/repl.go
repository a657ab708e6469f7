package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/myassine/ibis/internal/directives"
	"github.com/myassine/ibis/internal/orchestrator"
	"github.com/myassine/ibis/internal/prompts"
	"github.com/myassine/ibis/internal/session"
)

type repl struct {
	baseDir       string
	provider      string
	model         string
	stream        bool
	loop          *orchestrator.Loop
	pipeline      *directives.Pipeline
	store         *session.Store
	prompts       *prompts.Manager
	compactor     *session.Compactor
	defaultPrompt string

	current *session.Session
}

func (r *repl) run(ctx context.Context) error {
	r.newSession("")
	fmt.Printf("ibis ready (provider: %s, model: %s). Type /help for commands.\n", r.providerName(), r.model)

	if r.stream {
		r.loop.OnDelta = func(text string) { fmt.Print(text) }
	}

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		fmt.Print("you> ")
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			if quit := r.handleCommand(ctx, line); quit {
				return nil
			}
			continue
		}
		r.turn(ctx, line)
	}
}

// turn expands directives in the input, appends the user message, and runs
// the tool-calling loop to completion.
func (r *repl) turn(ctx context.Context, input string) {
	expanded, media, err := r.pipeline.Process(ctx, input)
	if err != nil {
		fmt.Printf("directive error:\n%v\n", err)
		return
	}

	r.current.AppendUser(expanded, media...)

	answer, err := r.loop.Run(ctx, r.current)
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}
	if r.stream {
		// Deltas were already printed; just terminate the line.
		fmt.Println()
	} else {
		fmt.Println(answer)
	}
}

// handleCommand dispatches a slash command. Returns true on /quit.
func (r *repl) handleCommand(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "/help":
		r.printHelp()
	case "/quit", "/exit":
		return true
	case "/new":
		name := ""
		if len(args) > 0 {
			name = strings.Join(args, " ")
		}
		r.newSession(name)
		fmt.Printf("started session %s\n", r.current.ID)
	case "/save":
		if err := r.store.Save(r.current); err != nil {
			fmt.Printf("save failed: %v\n", err)
			return false
		}
		fmt.Printf("saved session %s\n", r.current.ID)
	case "/load":
		if len(args) != 1 {
			fmt.Println("usage: /load <session-id>")
			return false
		}
		s, err := r.store.Load(args[0])
		if err != nil {
			fmt.Printf("load failed: %v\n", err)
			return false
		}
		r.current = s
		fmt.Printf("loaded session %s (%d messages)\n", s.ID, len(s.Messages))
	case "/sessions":
		infos, err := r.store.List()
		if err != nil {
			fmt.Printf("list failed: %v\n", err)
			return false
		}
		if len(infos) == 0 {
			fmt.Println("no saved sessions")
			return false
		}
		for _, info := range infos {
			name := info.Name
			if name == "" {
				name = "(unnamed)"
			}
			fmt.Printf("%s  %s  %d messages  %s\n", info.ID, name, info.MessageCount, info.UpdatedAt.Format("2006-01-02 15:04"))
		}
	case "/rename":
		if len(args) == 0 {
			fmt.Println("usage: /rename <name>")
			return false
		}
		r.current.Rename(strings.Join(args, " "))
		fmt.Printf("session renamed to %q\n", r.current.Name)
	case "/delete":
		if len(args) != 1 {
			fmt.Println("usage: /delete <session-id>")
			return false
		}
		if err := r.store.Delete(args[0]); err != nil {
			fmt.Printf("delete failed: %v\n", err)
			return false
		}
		fmt.Println("deleted")
	case "/compact":
		summary, err := r.compactor.Compact(ctx, r.current)
		if err != nil {
			fmt.Printf("compact failed: %v\n", err)
			return false
		}
		fmt.Printf("compacted. summary:\n%s\n", summary)
	case "/reset-compact":
		r.compactor.Reset(r.current)
		fmt.Println("compaction removed, full history restored")
	case "/clear":
		r.current.ClearHistory(true)
		fmt.Println("history cleared")
	case "/prompt":
		if len(args) != 1 {
			fmt.Println("usage: /prompt <name>")
			return false
		}
		content, ok := r.prompts.Get(args[0])
		if !ok {
			fmt.Printf("prompt not found: %s\n", args[0])
			return false
		}
		r.current.SetSystemPrompt(content)
		fmt.Printf("system prompt set to %q\n", args[0])
	case "/prompts":
		for _, name := range r.prompts.List() {
			fmt.Println(name)
		}
	case "/usage":
		u := r.current.TotalUsage
		fmt.Printf("input: %d, output: %d, total: %d tokens\n", u.InputTokens, u.OutputTokens, u.TotalTokens)
	default:
		fmt.Printf("unknown command: %s (try /help)\n", cmd)
	}
	return false
}

func (r *repl) newSession(name string) {
	s := session.New(name, r.providerName(), r.model, "")
	promptName := r.defaultPrompt
	if promptName == "" {
		promptName = prompts.DefaultName
	}
	if content, ok := r.prompts.Get(promptName); ok {
		s.SetSystemPrompt(content)
	}
	r.current = s
}

func (r *repl) providerName() string {
	if r.provider != "" {
		return r.provider
	}
	return "openai"
}

func (r *repl) printHelp() {
	fmt.Print(`commands:
  /new [name]        start a fresh session
  /save              persist the current session
  /load <id>         load a saved session
  /sessions          list saved sessions
  /rename <name>     rename the current session
  /delete <id>       delete a saved session
  /compact           summarize older history to shrink the model context
  /reset-compact     undo compaction, restoring the full history
  /clear             drop all messages except the system prompt
  /prompt <name>     apply a named system prompt to this session
  /prompts           list named system prompts
  /usage             show accumulated token usage
  /quit              exit

directives (expanded inside your message):
  @file(path)        include a file's content
  @folder(path)      include a directory tree with file contents
  @github(url)       include a GitHub repository snapshot
  @image(path)       attach an image
  @pdf(path)         attach a PDF document
  $(command)         include a shell command's output
`)
}
