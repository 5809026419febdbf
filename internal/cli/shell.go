package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/peterh/liner"
	flag "github.com/spf13/pflag"
)

// lineReader is the part of [liner.State] the shell uses.
type lineReader interface {
	Prompt(prompt string) (string, error)
	AppendHistory(item string)
	Close() error
}

// ShellCmd returns the interactive shell. When in is the process stdin the
// shell has line editing and a persistent history; otherwise lines are read
// from in as they come.
func ShellCmd(app *App, in io.Reader) *Command {
	return &Command{
		Flags:   flag.NewFlagSet("shell", flag.ContinueOnError),
		Usage:   "shell",
		Short:   "Run commands interactively",
		MaxArgs: 0,
		Exec: func(ctx context.Context, o *IO, _ []string) error {
			return runShell(ctx, app, in, o)
		},
	}
}

func runShell(ctx context.Context, app *App, in io.Reader, o *IO) error {
	reader, interactive := newLineReader(app, in)

	defer func() { _ = reader.Close() }()

	if interactive {
		o.Println("confdbadm shell - type 'help' for commands, 'exit' to leave")
	}

	for ctx.Err() == nil {
		line, err := reader.Prompt("confdb> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				break
			}

			return fmt.Errorf("reading input: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		reader.AppendHistory(line)

		words, err := splitWords(line)
		if err != nil {
			o.ErrPrintln("error:", err)
			o.Fail()

			continue
		}

		switch words[0] {
		case "exit", "quit", "q":
			saveHistory(app, reader)

			return nil
		case "help", "?":
			o.Println("Commands:")

			for _, c := range commands(app) {
				o.Println(c.HelpLine())
			}

			o.Println("  exit")

			continue
		}

		cmd := findCommand(app, words[0])
		if cmd == nil {
			o.ErrPrintln("error:", fmt.Errorf("%w: %s", ErrUnknownCommand, words[0]))
			o.Fail()

			continue
		}

		code := cmd.Execute(ctx, o, words[1:])
		if code != 0 {
			o.Fail()
		}

		app.Log.Debugw("shell command", "line", line, "exit", code)
	}

	saveHistory(app, reader)

	return nil
}

func newLineReader(app *App, in io.Reader) (lineReader, bool) {
	if in == nil {
		in = strings.NewReader("")
	}

	if f, ok := in.(*os.File); !ok || f != os.Stdin {
		return &plainReader{scanner: bufio.NewScanner(in)}, false
	}

	state := liner.NewLiner()
	state.SetCtrlCAborts(true)
	state.SetCompleter(func(line string) []string {
		var out []string

		for _, c := range commands(app) {
			if strings.HasPrefix(c.Name(), line) {
				out = append(out, c.Name())
			}
		}

		return out
	})

	if path := app.Config.HistoryFile; path != "" {
		if f, err := os.Open(path); err == nil {
			_, _ = state.ReadHistory(f)
			_ = f.Close()
		}
	}

	return state, true
}

func saveHistory(app *App, reader lineReader) {
	state, ok := reader.(*liner.State)
	if !ok || app.Config.HistoryFile == "" {
		return
	}

	f, err := os.OpenFile(app.Config.HistoryFile, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		app.Log.Warnw("cannot save shell history", "path", app.Config.HistoryFile, "error", err)

		return
	}

	_, _ = state.WriteHistory(f)
	_ = f.Close()
}

// plainReader reads lines without editing, for scripted input.
type plainReader struct {
	scanner *bufio.Scanner
}

func (r *plainReader) Prompt(string) (string, error) {
	if r.scanner.Scan() {
		return r.scanner.Text(), nil
	}

	if err := r.scanner.Err(); err != nil {
		return "", err
	}

	return "", io.EOF
}

func (r *plainReader) AppendHistory(string) {}

func (r *plainReader) Close() error { return nil }

// splitWords splits a shell line into arguments. Single quotes keep
// everything literally, double quotes allow backslash escapes.
func splitWords(line string) ([]string, error) {
	var (
		words   []string
		cur     strings.Builder
		inWord  bool
		quote   rune
		escaped bool
	)

	for _, r := range line {
		switch {
		case escaped:
			cur.WriteRune(r)

			escaped = false
		case quote == '\'':
			if r == '\'' {
				quote = 0
			} else {
				cur.WriteRune(r)
			}
		case quote == '"':
			switch r {
			case '"':
				quote = 0
			case '\\':
				escaped = true
			default:
				cur.WriteRune(r)
			}
		case r == '\\':
			escaped = true
			inWord = true
		case r == '\'' || r == '"':
			quote = r
			inWord = true
		case r == ' ' || r == '\t':
			if inWord {
				words = append(words, cur.String())
				cur.Reset()

				inWord = false
			}
		default:
			cur.WriteRune(r)

			inWord = true
		}
	}

	if quote != 0 || escaped {
		return nil, fmt.Errorf("%w: unterminated quote or escape", ErrInvalidArgs)
	}

	if inWord {
		words = append(words, cur.String())
	}

	return words, nil
}
