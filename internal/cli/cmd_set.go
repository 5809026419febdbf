package cli

import (
	"context"
	"fmt"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/confdb/pkg/confdb"
	"github.com/calvinalkan/confdb/pkg/confdb/filter"
)

// CreateCmd returns the create command.
func CreateCmd(app *App) *Command {
	fs := flag.NewFlagSet("create", flag.ContinueOnError)
	unique := fs.StringSlice("unique", nil, "Refuse to create when another object has the same value for this property (repeatable)")

	return &Command{
		Flags:   fs,
		Usage:   "create <model> [JSON] [--unique F]",
		Short:   "Store a new object and print its identity",
		MinArgs: 1,
		MaxArgs: 2,
		Mutates: true,
		Guard:   app.Tx,
		Long: `Store a new object built from the model defaults and the given JSON
values. Collection objects get a fresh identity, which is printed. Keys may be
dotted paths into nested objects, e.g. {"ntp.enable": true}.`,
		Exec: func(ctx context.Context, o *IO, args []string) error {
			obj, err := app.DB.NewObject(args[0])
			if err != nil {
				return err
			}

			if len(args) == 2 {
				values, err := parseValues(args[1])
				if err != nil {
					return err
				}

				if _, ok := values[obj.Model().IDProperty()]; ok && obj.IsIterable() {
					return invalidArgs("create assigns the identity; use update to change an existing object")
				}

				err = obj.SetAssoc(values)
				if err != nil {
					return err
				}
			}

			err = checkUnique(ctx, app, obj, *unique)
			if err != nil {
				return err
			}

			_, err = app.DB.Set(ctx, obj)
			if err != nil {
				return err
			}

			if obj.IsIterable() {
				o.Println(obj.ID())

				return nil
			}

			return printJSON(o, obj)
		},
	}
}

// UpdateCmd returns the update command.
func UpdateCmd(app *App) *Command {
	fs := flag.NewFlagSet("update", flag.ContinueOnError)
	unique := fs.StringSlice("unique", nil, "Refuse to update when another object has the same value for this property (repeatable)")

	return &Command{
		Flags:   fs,
		Usage:   "update <model> <JSON> [--unique F]",
		Short:   "Change properties of a stored object",
		MinArgs: 2,
		MaxArgs: 2,
		Mutates: true,
		Guard:   app.Tx,
		Long: `Change properties of a stored object and print the result. For
collections the JSON must carry the identity property of the object.`,
		Exec: func(ctx context.Context, o *IO, args []string) error {
			m, err := app.DB.Model(args[0])
			if err != nil {
				return err
			}

			values, err := parseValues(args[1])
			if err != nil {
				return err
			}

			id := ""

			if m.IsIterable() {
				raw, ok := values[m.IDProperty()]
				if !ok {
					return fmt.Errorf("%w: %s", ErrIdentityMissing, m.IDProperty())
				}

				id = filter.Text(raw)
			}

			res, err := app.DB.Get(ctx, m.ID, id)
			if err != nil {
				return err
			}

			obj := res.Object()

			err = obj.SetAssoc(values)
			if err != nil {
				return err
			}

			err = checkUnique(ctx, app, obj, *unique)
			if err != nil {
				return err
			}

			_, err = app.DB.Set(ctx, obj)
			if err != nil {
				return err
			}

			return printJSON(o, obj)
		},
	}
}

func checkUnique(ctx context.Context, app *App, obj *confdb.Object, fields []string) error {
	for _, field := range fields {
		ok, err := app.DB.IsUnique(ctx, obj, field)
		if err != nil {
			return err
		}

		if !ok {
			return fmt.Errorf("%w: %s=%q is already used", ErrInvalidArgs, field, obj.GetString(field))
		}
	}

	return nil
}
