package cli

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidArgs     = errors.New("invalid arguments")
	ErrUnknownCommand  = errors.New("unknown command")
	ErrReferenced      = errors.New("configuration object is referenced")
	ErrNoJournal       = errors.New("no audit_db configured")
	ErrIdentityMissing = errors.New("identity property missing")
)

func invalidArgs(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgs, msg)
}
