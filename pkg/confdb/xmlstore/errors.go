package xmlstore

import "errors"

var (
	// ErrStoreIO reports that the config document could not be read,
	// parsed or written.
	ErrStoreIO = errors.New("config store i/o")

	// ErrInvalidQuery reports an XPath expression that does not compile.
	ErrInvalidQuery = errors.New("invalid query")
)
