package cli

import (
	"context"

	flag "github.com/spf13/pflag"
)

// ExistsCmd returns the exists command.
func ExistsCmd(app *App) *Command {
	fs := flag.NewFlagSet("exists", flag.ContinueOnError)
	filterJSON := fs.StringP("filter", "f", "", "Only count objects matching a JSON filter")
	quiet := fs.BoolP("quiet", "q", false, "Print nothing, only set the exit code")

	return &Command{
		Flags:   fs,
		Usage:   "exists <model> [--filter JSON]",
		Short:   "Exit 0 if a matching object exists, 1 otherwise",
		MinArgs: 1,
		MaxArgs: 1,
		Exec: func(ctx context.Context, o *IO, args []string) error {
			f, err := parseFilter(*filterJSON)
			if err != nil {
				return err
			}

			found, err := app.DB.Exists(ctx, args[0], f)
			if err != nil {
				return err
			}

			if !*quiet {
				o.Println(found)
			}

			if !found {
				return errSilent
			}

			return nil
		},
	}
}
