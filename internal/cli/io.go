package cli

import (
	"fmt"
	"io"
)

// IO routes command output. Results go to stdout, diagnostics to stderr.
type IO struct {
	out    io.Writer
	errOut io.Writer
	failed bool
}

// NewIO creates a new IO instance.
func NewIO(out, errOut io.Writer) *IO {
	return &IO{out: out, errOut: errOut}
}

// Println writes to stdout.
func (o *IO) Println(a ...any) {
	_, _ = fmt.Fprintln(o.out, a...)
}

// Printf writes formatted output to stdout.
func (o *IO) Printf(format string, a ...any) {
	_, _ = fmt.Fprintf(o.out, format, a...)
}

// ErrPrintln writes to stderr.
func (o *IO) ErrPrintln(a ...any) {
	_, _ = fmt.Fprintln(o.errOut, a...)
}

// Fail marks the invocation as failed without aborting it. The shell uses
// it so that a script with a failing line still exits 1.
func (o *IO) Fail() {
	o.failed = true
}

// Finish returns the exit code of the invocation.
func (o *IO) Finish() int {
	if o.failed {
		return 1
	}

	return 0
}
