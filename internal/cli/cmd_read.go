package cli

import (
	"context"

	flag "github.com/spf13/pflag"
)

// ReadCmd returns the read command.
func ReadCmd(app *App) *Command {
	fs := flag.NewFlagSet("read", flag.ContinueOnError)
	id := fs.StringP("uuid", "u", "", "Read the object with this identity")
	filterJSON := fs.StringP("filter", "f", "", "Read objects matching a JSON filter")
	maxObjects := fs.IntP("max", "n", 0, "With --filter, return at most N objects (1 returns a single object)")

	return &Command{
		Flags:   fs,
		Usage:   "read <model> [--uuid U | --filter JSON [--max N]]",
		Short:   "Print configuration objects as JSON",
		MinArgs: 1,
		MaxArgs: 1,
		Long: `Print configuration objects of a data model as JSON.

A singleton model prints its only object. A collection prints all objects,
the object with --uuid, or the objects matching --filter.

Example filter:
  {"operator": "stringContains", "arg0": "id", "arg1": "monit"}`,
		Exec: func(ctx context.Context, o *IO, args []string) error {
			if *filterJSON == "" {
				res, err := app.DB.Get(ctx, args[0], *id)
				if err != nil {
					return err
				}

				return printResult(o, res)
			}

			if *id != "" {
				return invalidArgs("--uuid and --filter are mutually exclusive")
			}

			f, err := parseFilter(*filterJSON)
			if err != nil {
				return err
			}

			res, err := app.DB.GetByFilter(ctx, args[0], f, *maxObjects)
			if err != nil {
				return err
			}

			return printResult(o, res)
		},
	}
}
