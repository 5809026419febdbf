package cli

import (
	"context"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/confdb/internal/audit"
)

// HistoryCmd returns the history command.
func HistoryCmd(app *App) *Command {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	model := fs.StringP("model", "m", "", "Only show changes to this data model")
	limit := fs.IntP("limit", "n", 20, "Show at most N entries (0 for all)")
	asJSON := fs.Bool("json", false, "Print entries as JSON including object values")

	return &Command{
		Flags:   fs,
		Usage:   "history [--model M] [--limit N] [--json]",
		Short:   "Show recorded configuration changes, newest first",
		MaxArgs: 0,
		Exec: func(ctx context.Context, o *IO, _ []string) error {
			if app.Journal == nil {
				return ErrNoJournal
			}

			entries, err := app.Journal.List(ctx, audit.ListOptions{Model: *model, Limit: *limit})
			if err != nil {
				return err
			}

			if *asJSON {
				if entries == nil {
					entries = []audit.Entry{}
				}

				return printJSON(o, entries)
			}

			for _, e := range entries {
				id := e.ObjectID
				if id == "" {
					id = "-"
				}

				o.Printf("%d\t%s\t%s\t%s\t%s\n", e.ID, e.Time.UTC().Format(time.RFC3339), e.Kind, e.Model, id)
			}

			return nil
		},
	}
}
