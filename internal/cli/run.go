package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/confdb/internal/config"
)

// Run is the main entry point. Returns exit code.
func Run(in io.Reader, out io.Writer, errOut io.Writer, args []string, env map[string]string, sigCh <-chan os.Signal) int {
	globals := flag.NewFlagSet("confdbadm", flag.ContinueOnError)
	globals.SetInterspersed(false)
	globals.SetOutput(&strings.Builder{})

	var overrides config.Config

	workDir := globals.StringP("cwd", "C", "", "Run as if started in `dir`")
	settings := globals.StringP("settings", "s", "", "Read settings from `file`")
	globals.StringVar(&overrides.DocumentPath, "config-file", "", "Use this configuration `document`")
	globals.StringVar(&overrides.DatamodelsDir, "datamodels", "", "Load data models from `dir`")
	globals.StringVar(&overrides.AuditDB, "audit-db", "", "Record changes in this SQLite `file`")
	globals.StringVar(&overrides.LogLevel, "log-level", "", "debug, info, warn or error")
	globals.StringVar(&overrides.LogFormat, "log-format", "", "console or json")
	help := globals.BoolP("help", "h", false, "Show help")

	if len(args) < 2 {
		printUsage(out, globals)

		return 0
	}

	err := globals.Parse(args[1:])
	if err != nil {
		fprintln(errOut, "error:", err)
		printUsage(errOut, globals)

		return 1
	}

	rest := globals.Args()
	if *help || len(rest) == 0 {
		printUsage(out, globals)

		return 0
	}

	cfg, err := config.Load(config.LoadInput{
		WorkDir:      *workDir,
		SettingsPath: *settings,
		Overrides:    overrides,
		Env:          env,
	})
	if err != nil {
		fprintln(errOut, "error:", err)

		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if sigCh != nil {
		go func() {
			select {
			case <-sigCh:
				cancel()
			case <-ctx.Done():
			}
		}()
	}

	o := NewIO(out, errOut)
	name := rest[0]

	if name == "print-config" {
		code := PrintConfigCmd(cfg).Execute(ctx, o, rest[1:])
		if code != 0 {
			return code
		}

		return o.Finish()
	}

	if findCommand(&App{Config: cfg}, name) == nil && name != "shell" {
		fprintln(errOut, "error:", fmt.Errorf("%w: %s", ErrUnknownCommand, name))
		printUsage(errOut, globals)

		return 1
	}

	app, err := OpenApp(ctx, cfg, errOut)
	if err != nil {
		fprintln(errOut, "error:", err)

		return 1
	}

	defer func() {
		if closeErr := app.Close(); closeErr != nil {
			fprintln(errOut, "error:", closeErr)
		}
	}()

	var cmd Interface
	if name == "shell" {
		cmd = ShellCmd(app, in)
	} else {
		cmd = findCommand(app, name)
	}

	code := cmd.Execute(ctx, o, rest[1:])
	if code != 0 {
		return code
	}

	return o.Finish()
}

// commands returns a fresh set of the commands that work on the database.
// Flag state lives in the returned values, so every invocation needs its
// own set.
func commands(app *App) []*Command {
	return []*Command{
		ReadCmd(app),
		ExistsCmd(app),
		ListIDsCmd(app),
		CreateCmd(app),
		UpdateCmd(app),
		DeleteCmd(app),
		HistoryCmd(app),
		PrintConfigCmd(app.Config),
	}
}

func findCommand(app *App, name string) *Command {
	for _, c := range commands(app) {
		if c.Name() == name {
			return c
		}
	}

	return nil
}

func fprintln(w io.Writer, a ...any) {
	_, _ = fmt.Fprintln(w, a...)
}

func printUsage(w io.Writer, globals *flag.FlagSet) {
	fprintln(w, `confdbadm - inspect and change the configuration database

Usage: confdbadm [options] <command> [args]

Options:`)

	var buf strings.Builder
	globals.SetOutput(&buf)
	globals.PrintDefaults()
	globals.SetOutput(&strings.Builder{})
	_, _ = io.WriteString(w, buf.String())

	fprintln(w)
	fprintln(w, "Commands:")

	for _, c := range commands(&App{}) {
		fprintln(w, c.HelpLine())
	}

	fprintln(w, ShellCmd(&App{}, nil).HelpLine())
	fprintln(w)
	fprintln(w, `Run "confdbadm <command> --help" for command flags.`)
}
