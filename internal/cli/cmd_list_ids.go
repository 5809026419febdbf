package cli

import (
	"context"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/confdb/pkg/confdb"
)

// ListIDsCmd returns the list-ids command.
func ListIDsCmd(app *App) *Command {
	return &Command{
		Flags:   flag.NewFlagSet("list-ids", flag.ContinueOnError),
		Usage:   "list-ids <model>",
		Short:   "Print the identities of a collection, one per line",
		MinArgs: 1,
		MaxArgs: 1,
		Exec: func(ctx context.Context, o *IO, args []string) error {
			m, err := app.DB.Model(args[0])
			if err != nil {
				return err
			}

			if !m.IsIterable() {
				return &confdb.Error{Op: "list_ids", Model: m.ID, Err: confdb.ErrNotIterable}
			}

			res, err := app.DB.Get(ctx, m.ID, "")
			if err != nil {
				return err
			}

			for _, obj := range res.Objects() {
				o.Println(obj.ID())
			}

			return nil
		},
	}
}
