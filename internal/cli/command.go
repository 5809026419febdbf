package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	flag "github.com/spf13/pflag"
)

// Interface is what every administrative command exposes to the
// dispatcher and the shell.
type Interface interface {
	Name() string
	Description() string
	ValidateArgs(args []string) error
	PrintUsage(o *IO)
	Execute(ctx context.Context, o *IO, args []string) int
}

// Transaction runs fn so that its changes are undone when it fails.
// [*backup.Guard] implements it.
type Transaction interface {
	Run(ctx context.Context, fn func(ctx context.Context) error) error
}

// errSilent makes a command exit 1 without printing an error.
var errSilent = errors.New("silent failure")

// Command defines a CLI command with unified help generation.
type Command struct {
	// Flags defines command-specific flags.
	// The FlagSet name is not used - command identity comes from Usage.
	Flags *flag.FlagSet

	// Usage is the freeform usage string shown after "confdbadm" in help.
	// Includes the command name and arguments/flags.
	// Examples: "read <model> [flags]", "list-ids <model>"
	Usage string

	// Short is a one-line description for the global help listing.
	Short string

	// Long is the full description shown in command help.
	// If empty, Short is used instead.
	Long string

	// MinArgs and MaxArgs bound the positional arguments. MaxArgs < 0
	// means unbounded.
	MinArgs int
	MaxArgs int

	// Mutates runs Exec inside Guard. Any failure rolls the document back.
	Mutates bool
	Guard   Transaction

	// Exec runs the command after flags are parsed and arguments validated.
	Exec func(ctx context.Context, o *IO, args []string) error
}

var _ Interface = (*Command)(nil)

// Name returns the command name (first word of Usage).
func (c *Command) Name() string {
	name, _, _ := strings.Cut(c.Usage, " ")

	return name
}

// Description returns the one-line description.
func (c *Command) Description() string {
	return c.Short
}

// HelpLine returns the short help line for the main usage display.
func (c *Command) HelpLine() string {
	return fmt.Sprintf("  %-44s %s", c.Usage, c.Short)
}

// ValidateArgs checks the number of positional arguments.
func (c *Command) ValidateArgs(args []string) error {
	if len(args) < c.MinArgs {
		return fmt.Errorf("%w: %s needs at least %d argument(s)", ErrInvalidArgs, c.Name(), c.MinArgs)
	}

	if c.MaxArgs >= 0 && len(args) > c.MaxArgs {
		return fmt.Errorf("%w: %s takes at most %d argument(s)", ErrInvalidArgs, c.Name(), c.MaxArgs)
	}

	return nil
}

// PrintUsage prints the full help output for "confdbadm <cmd> --help".
func (c *Command) PrintUsage(o *IO) {
	o.Printf("%s", c.usageText())
}

func (c *Command) usageText() string {
	var b strings.Builder

	fmt.Fprintln(&b, "Usage: confdbadm", c.Usage)
	fmt.Fprintln(&b)

	desc := c.Long
	if desc == "" {
		desc = c.Short
	}

	fmt.Fprintln(&b, desc)

	if c.Flags != nil && c.Flags.HasFlags() {
		fmt.Fprintln(&b)
		fmt.Fprintln(&b, "Flags:")

		c.Flags.SetOutput(&b)
		c.Flags.PrintDefaults()
		c.Flags.SetOutput(&strings.Builder{})
	}

	return b.String()
}

// Execute parses flags, validates arguments and runs the command. Returns
// the exit code. Errors are printed here for consistent output ordering.
func (c *Command) Execute(ctx context.Context, o *IO, args []string) int {
	if c.Flags == nil {
		c.Flags = flag.NewFlagSet(c.Name(), flag.ContinueOnError)
	}

	c.Flags.SetOutput(&strings.Builder{}) // discard pflag output

	err := c.Flags.Parse(args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			c.PrintUsage(o)

			return 0
		}

		o.ErrPrintln("error:", err)
		o.ErrPrintln()
		o.ErrPrintln(strings.TrimRight(c.usageText(), "\n"))

		return 1
	}

	rest := c.Flags.Args()

	err = c.ValidateArgs(rest)
	if err != nil {
		o.ErrPrintln("error:", err)
		o.ErrPrintln()
		o.ErrPrintln(strings.TrimRight(c.usageText(), "\n"))

		return 1
	}

	err = c.run(ctx, o, rest)
	if err != nil {
		if !errors.Is(err, errSilent) {
			o.ErrPrintln("error:", err)
		}

		return 1
	}

	return 0
}

func (c *Command) run(ctx context.Context, o *IO, args []string) error {
	if !c.Mutates {
		return c.Exec(ctx, o, args)
	}

	if c.Guard == nil {
		return fmt.Errorf("%s: no transaction guard configured", c.Name())
	}

	return c.Guard.Run(ctx, func(ctx context.Context) error {
		return c.Exec(ctx, o, args)
	})
}
