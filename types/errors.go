package types

import "github.com/pkg/errors"

// Everything the codec can complain about.  These are always returned wrapped with
// more detail, so test them with errors.Is.
var (
	ErrMalformedHex    = errors.New("malformed hex")
	ErrUnknownField    = errors.New("unknown field")
	ErrProtectedField  = errors.New("protected field")
	ErrUnsupportedKind = errors.New("unsupported kind")
	ErrValueTooLarge   = errors.New("value too large for field")
	ErrTruncated       = errors.New("save data truncated")
	ErrFieldAbsent     = errors.New("field absent")
)
