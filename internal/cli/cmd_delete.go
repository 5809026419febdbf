package cli

import (
	"context"
	"fmt"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/confdb/pkg/confdb"
)

// DeleteCmd returns the delete command.
func DeleteCmd(app *App) *Command {
	fs := flag.NewFlagSet("delete", flag.ContinueOnError)
	id := fs.StringP("uuid", "u", "", "Delete the object with this identity")
	filterJSON := fs.StringP("filter", "f", "", "Delete all objects matching a JSON filter")
	force := fs.Bool("force", false, "Delete even when other objects still reference it")

	return &Command{
		Flags:   fs,
		Usage:   "delete <model> (--uuid U | --filter JSON) [--force]",
		Short:   "Remove objects from a collection",
		MinArgs: 1,
		MaxArgs: 1,
		Mutates: true,
		Guard:   app.Tx,
		Long: `Remove objects from a collection and print their identities.

Objects of referenceable models that are still referenced elsewhere in the
document are refused unless --force is given. Either every selected object is
removed or none is.`,
		Exec: func(ctx context.Context, o *IO, args []string) error {
			if (*id == "") == (*filterJSON == "") {
				return invalidArgs("exactly one of --uuid or --filter is required")
			}

			var targets []*confdb.Object

			if *id != "" {
				m, err := app.DB.Model(args[0])
				if err != nil {
					return err
				}

				if !m.IsIterable() {
					return &confdb.Error{Op: "delete", Model: m.ID, Err: confdb.ErrNotIterable}
				}

				res, err := app.DB.Get(ctx, m.ID, *id)
				if err != nil {
					return err
				}

				targets = res.Objects()
			} else {
				f, err := parseFilter(*filterJSON)
				if err != nil {
					return err
				}

				targets, err = app.DB.FindByFilter(ctx, args[0], f)
				if err != nil {
					return err
				}

				if len(targets) == 0 {
					return &confdb.Error{Op: "delete", Model: args[0], Err: confdb.ErrNotFound}
				}
			}

			for _, obj := range targets {
				if !*force && obj.IsReferenceable() {
					used, err := app.DB.IsReferenced(ctx, obj)
					if err != nil {
						return err
					}

					if used {
						return fmt.Errorf("%w: %s %s (use --force)", ErrReferenced, obj.ModelID(), obj.ID())
					}
				}

				removed, err := app.DB.Delete(ctx, obj)
				if err != nil {
					return err
				}

				app.Log.Infow("deleted", "model", removed.ModelID(), "id", removed.ID())
				o.Println(removed.ID())
			}

			return nil
		},
	}
}
