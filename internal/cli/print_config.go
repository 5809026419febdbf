package cli

import (
	"context"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/confdb/internal/config"
)

// PrintConfigCmd returns the print-config command.
func PrintConfigCmd(cfg config.Config) *Command {
	return &Command{
		Flags:   flag.NewFlagSet("print-config", flag.ContinueOnError),
		Usage:   "print-config",
		Short:   "Show resolved configuration",
		Long:    "Display the effective configuration and where it was loaded from.",
		MaxArgs: 0,
		Exec: func(_ context.Context, o *IO, _ []string) error {
			return execPrintConfig(o, cfg)
		},
	}
}

func execPrintConfig(o *IO, cfg config.Config) error {
	formatted, err := config.Format(cfg)
	if err != nil {
		return err
	}

	o.Println(formatted)
	o.Println("")
	o.Println("# sources")

	src := cfg.Sources
	if src.System == "" && src.Explicit == "" && len(src.Env) == 0 {
		o.Println("(defaults only)")

		return nil
	}

	if src.System != "" {
		o.Println("system_settings=" + src.System)
	}

	if src.Explicit != "" {
		o.Println("settings=" + src.Explicit)
	}

	if len(src.Env) > 0 {
		o.Println("env=" + strings.Join(src.Env, ","))
	}

	return nil
}
